package stride

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// Channel message layout
const (
	FrameSize     = 9 // Channel number + broadcast payload
	PayloadSize   = 8 // ANT+ broadcast payload
	payloadOffset = 1 // Channel number precedes the payload
)

// Data page numbers for the stride profile
const (
	PageStrideData         = 0x01
	PageTemplate           = 0x02
	PageCalories           = 0x03
	PageDistanceSinceReset = 0x10 // Distance & strides since battery reset
	PageCapabilities       = 0x16
	PageManufacturerInfo   = 0x50 // Common page 80
	PageProductInfo        = 0x51 // Common page 81
)

// ErrFrameLength is returned for channel messages that are not exactly FrameSize bytes.
var ErrFrameLength = errors.New("channel message must be 9 bytes")

// Frame is a channel message split into channel number and payload
type Frame struct {
	Channel byte
	Payload [PayloadSize]byte
}

// Page is a decoded data page
type Page interface {
	Number() byte
	String() string
}

// StrideDataPage (0x01) carries the accumulated stride count
type StrideDataPage struct {
	StrideCount uint8 // payload[6]
}

func (p *StrideDataPage) Number() byte { return PageStrideData }

func (p *StrideDataPage) String() string {
	return fmt.Sprintf("StrideData{strides=%d}", p.StrideCount)
}

// CaloriesPage (0x03) carries the accumulated calorie count
type CaloriesPage struct {
	Calories uint8 // payload[6]
}

func (p *CaloriesPage) Number() byte { return PageCalories }

func (p *CaloriesPage) String() string {
	return fmt.Sprintf("Calories{calories=%d}", p.Calories)
}

// ManufacturerInfoPage (0x50) identifies the pod hardware
type ManufacturerInfoPage struct {
	HardwareRevision uint8  // payload[3]
	ManufacturerID   uint16 // payload[4-5] LE
	ModelNumber      uint16 // payload[6-7] LE
}

func (p *ManufacturerInfoPage) Number() byte { return PageManufacturerInfo }

func (p *ManufacturerInfoPage) String() string {
	return fmt.Sprintf("ManufacturerInfo{hw_rev=%d, manufacturer=%d, model=%d}",
		p.HardwareRevision, p.ManufacturerID, p.ModelNumber)
}

// ProductInfoPage (0x51) identifies the pod firmware and unit
type ProductInfoPage struct {
	SoftwareRevision uint8  // payload[3]
	SerialNumber     uint32 // payload[4-7] BE
}

func (p *ProductInfoPage) Number() byte { return PageProductInfo }

func (p *ProductInfoPage) String() string {
	return fmt.Sprintf("ProductInfo{sw_rev=%d, serial=%d}", p.SoftwareRevision, p.SerialNumber)
}

// ReservedPage is a page the profile defines but this decoder does not interpret
type ReservedPage struct {
	PageNumber byte
	Data       [PayloadSize - 1]byte
}

func (p *ReservedPage) Number() byte { return p.PageNumber }

func (p *ReservedPage) String() string {
	return fmt.Sprintf("%s{data=% x}", PageName(p.PageNumber), p.Data[:])
}

// UnknownPage - Fallback for page numbers outside the profile
type UnknownPage struct {
	PageNumber byte
	Data       [PayloadSize - 1]byte
}

func (p *UnknownPage) Number() byte { return p.PageNumber }

func (p *UnknownPage) String() string {
	return fmt.Sprintf("Unknown{page=0x%02x, data=% x}", p.PageNumber, p.Data[:])
}

// ParseFrame splits a raw channel message into channel number and payload
func ParseFrame(raw []byte) (*Frame, error) {
	if len(raw) != FrameSize {
		return nil, fmt.Errorf("%w: got %d", ErrFrameLength, len(raw))
	}
	f := &Frame{Channel: raw[0]}
	copy(f.Payload[:], raw[payloadOffset:])
	return f, nil
}

// PageNumber returns the data page selector (payload byte 0)
func (f *Frame) PageNumber() byte {
	return f.Payload[0]
}

// Bytes re-assembles the 9-byte channel message
func (f *Frame) Bytes() []byte {
	raw := make([]byte, FrameSize)
	raw[0] = f.Channel
	copy(raw[payloadOffset:], f.Payload[:])
	return raw
}

// ParsePage decodes the payload into a typed page. Every 8-byte payload
// decodes to some page, so there is no error return.
func (f *Frame) ParsePage() Page {
	p := f.Payload
	var rest [PayloadSize - 1]byte
	copy(rest[:], p[1:])

	switch p[0] {
	case PageStrideData:
		return &StrideDataPage{StrideCount: p[6]}
	case PageCalories:
		return &CaloriesPage{Calories: p[6]}
	case PageManufacturerInfo:
		return &ManufacturerInfoPage{
			HardwareRevision: p[3],
			ManufacturerID:   binary.LittleEndian.Uint16(p[4:6]),
			ModelNumber:      binary.LittleEndian.Uint16(p[6:8]),
		}
	case PageProductInfo:
		return &ProductInfoPage{
			SoftwareRevision: p[3],
			SerialNumber:     binary.BigEndian.Uint32(p[4:8]),
		}
	case PageTemplate, PageDistanceSinceReset, PageCapabilities:
		return &ReservedPage{PageNumber: p[0], Data: rest}
	default:
		return &UnknownPage{PageNumber: p[0], Data: rest}
	}
}

// String returns a human-readable representation of the frame
func (f *Frame) String() string {
	return fmt.Sprintf("Frame{channel=%d, page=%s, payload=% x}",
		f.Channel, PageName(f.PageNumber()), f.Payload[:])
}

// PageName returns a human-readable name for a data page number
func PageName(page byte) string {
	switch page {
	case PageStrideData:
		return "StrideData"
	case PageTemplate:
		return "Template"
	case PageCalories:
		return "Calories"
	case PageDistanceSinceReset:
		return "DistanceSinceReset"
	case PageCapabilities:
		return "Capabilities"
	case PageManufacturerInfo:
		return "ManufacturerInfo"
	case PageProductInfo:
		return "ProductInfo"
	default:
		return fmt.Sprintf("Unknown(0x%02x)", page)
	}
}
