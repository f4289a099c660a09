package capture

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"

	"github.com/muurk/antstride/internal/stride"
)

// Extended message layout (channel message followed by the flagged channel ID)
const (
	ExtendedFrameSize = stride.FrameSize + 5
	FlagChannelID     = 0x80 // Flag byte: channel ID follows

	// ANTMessageLayerNum identifies the layer
	ANTMessageLayerNum = 2457
)

// ErrMessageLength is returned when decoding a message that is neither a
// plain nor an extended channel message.
var ErrMessageLength = errors.New("ANT message must be 9 or 14 bytes")

// LayerTypeANTMessage is the gopacket layer type of a captured ANT broadcast.
var LayerTypeANTMessage = gopacket.RegisterLayerType(ANTMessageLayerNum,
	gopacket.LayerTypeMetadata{Name: "ANTMessage", Decoder: gopacket.DecodeFunc(decodeANTMessage)})

// ChannelID is the identity a device transmits in extended messages
type ChannelID struct {
	DeviceNumber     uint16 `json:"device_number" yaml:"device_number"`
	DeviceType       byte   `json:"device_type" yaml:"device_type"`
	TransmissionType uint8  `json:"transmission_type" yaml:"transmission_type"`
}

func (c ChannelID) String() string {
	return fmt.Sprintf("%d/0x%02x/%d", c.DeviceNumber, c.DeviceType, c.TransmissionType)
}

// Identity drops the device type.
func (c ChannelID) Identity() stride.Identity {
	return stride.Identity{DeviceNumber: c.DeviceNumber, TransmissionType: c.TransmissionType}
}

// ANTMessage is one broadcast as received on a channel. When Extended is
// set, ID holds the channel ID of the transmitter.
type ANTMessage struct {
	layers.BaseLayer
	Channel  byte
	Data     [stride.PayloadSize]byte
	Extended bool
	ID       ChannelID
}

// LayerType returns the type of the ANT message layer in the layer catalog
func (m *ANTMessage) LayerType() gopacket.LayerType {
	return LayerTypeANTMessage
}

// CanDecode returns the set of layer types this layer can decode.
func (m *ANTMessage) CanDecode() gopacket.LayerClass {
	return LayerTypeANTMessage
}

// NextLayerType returns LayerTypeZero; a data page is the end of the stack.
func (m *ANTMessage) NextLayerType() gopacket.LayerType {
	return gopacket.LayerTypeZero
}

func (m *ANTMessage) DecodeFromBytes(data []byte, df gopacket.DecodeFeedback) error {
	switch {
	case len(data) == stride.FrameSize:
		m.Extended = false
		m.ID = ChannelID{}
	case len(data) == ExtendedFrameSize && data[stride.FrameSize] == FlagChannelID:
		ext := data[stride.FrameSize+1:]
		m.Extended = true
		m.ID = ChannelID{
			DeviceNumber:     binary.LittleEndian.Uint16(ext[0:2]),
			DeviceType:       ext[2],
			TransmissionType: ext[3],
		}
	default:
		df.SetTruncated()
		return fmt.Errorf("%w: got %d", ErrMessageLength, len(data))
	}

	m.BaseLayer = layers.BaseLayer{Contents: data, Payload: nil}
	m.Channel = data[0]
	copy(m.Data[:], data[1:stride.FrameSize])
	return nil
}

// ChannelMessage returns a fresh copy of the 9-byte channel message, which is
// what a stride.ChannelHandler consumes.
func (m *ANTMessage) ChannelMessage() []byte {
	out := make([]byte, stride.FrameSize)
	out[0] = m.Channel
	copy(out[1:], m.Data[:])
	return out
}

// Serialize writes the message into buf, which must be large enough.
func (m *ANTMessage) Serialize(buf []byte) {
	buf[0] = m.Channel
	copy(buf[1:stride.FrameSize], m.Data[:])
	if m.Extended {
		buf[stride.FrameSize] = FlagChannelID
		binary.LittleEndian.PutUint16(buf[stride.FrameSize+1:], m.ID.DeviceNumber)
		buf[stride.FrameSize+3] = m.ID.DeviceType
		buf[stride.FrameSize+4] = m.ID.TransmissionType
	}
}

// Size is the encoded length of the message.
func (m *ANTMessage) Size() int {
	if m.Extended {
		return ExtendedFrameSize
	}
	return stride.FrameSize
}

// SerializeTo serializes the message into bytes and writes them to the SerializeBuffer
func (m *ANTMessage) SerializeTo(b gopacket.SerializeBuffer, opts gopacket.SerializeOptions) error {
	bytes, err := b.AppendBytes(m.Size())
	if err != nil {
		return err
	}
	m.Serialize(bytes)
	return nil
}

func (m *ANTMessage) String() string {
	page := m.Data[0]
	if m.Extended {
		return fmt.Sprintf("ANTMessage{ch=%d, page=%s, id=%s}", m.Channel, stride.PageName(page), m.ID)
	}
	return fmt.Sprintf("ANTMessage{ch=%d, page=%s}", m.Channel, stride.PageName(page))
}

func decodeANTMessage(data []byte, p gopacket.PacketBuilder) error {
	msg := &ANTMessage{}
	if err := msg.DecodeFromBytes(data, p); err != nil {
		return err
	}
	p.AddLayer(msg)
	return nil
}

// NewMessage builds an extended message for id from a stride frame.
func NewMessage(frame *stride.Frame, id *ChannelID) *ANTMessage {
	msg := &ANTMessage{Channel: frame.Channel, Data: frame.Payload}
	if id != nil {
		msg.Extended = true
		msg.ID = *id
	}
	return msg
}

// Encode serializes msg with gopacket.
func Encode(msg *ANTMessage) ([]byte, error) {
	buf := gopacket.NewSerializeBuffer()
	if err := gopacket.SerializeLayers(buf, gopacket.SerializeOptions{}, msg); err != nil {
		return nil, fmt.Errorf("failed to serialize ANT message: %w", err)
	}
	return buf.Bytes(), nil
}
