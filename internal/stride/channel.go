package stride

import (
	"fmt"
	"time"
)

// Channel parameters fixed by the ANT+ stride profile
const (
	ChannelFrequency = 0x39 // RF channel 57: 2457 MHz
	ChannelPeriod    = 8134 // 32768/8134 = ~4.03 Hz
	DeviceTypeStride = 0x7c
	SearchTimeout    = 30 * time.Second
	channelClockHz   = 32768
)

// WildcardDeviceNumber pairs with the first stride sensor found.
const WildcardDeviceNumber uint16 = 0

// ChannelParams describes the receive channel the decoder asks for
type ChannelParams struct {
	Frequency        byte
	Period           uint16
	DeviceType       byte
	TransmissionType uint8  // 0 matches any
	DeviceNumber     uint16 // 0 matches any
	SearchTimeout    time.Duration
}

// PeriodDuration converts the channel period from ANT ticks to wall time.
func (p ChannelParams) PeriodDuration() time.Duration {
	return time.Duration(p.Period) * time.Second / channelClockHz
}

// Matches reports whether a device with the given channel ID satisfies the
// search criteria. Zero device number or transmission type act as wildcards.
func (p ChannelParams) Matches(deviceNumber uint16, deviceType byte, transmissionType uint8) bool {
	if deviceType != p.DeviceType {
		return false
	}
	if p.DeviceNumber != WildcardDeviceNumber && p.DeviceNumber != deviceNumber {
		return false
	}
	if p.TransmissionType != 0 && p.TransmissionType != transmissionType {
		return false
	}
	return true
}

func (p ChannelParams) String() string {
	return fmt.Sprintf("Channel{freq=0x%02x, period=%d, device_type=0x%02x, device=%d, tx_type=%d, search_timeout=%s}",
		p.Frequency, p.Period, p.DeviceType, p.DeviceNumber, p.TransmissionType, p.SearchTimeout)
}

// ChannelHandler receives events for one open channel
type ChannelHandler interface {
	// OnMessage delivers a broadcast as a 9-byte channel message.
	OnMessage(raw []byte)
	// DeviceFound reports the channel ID of the device the search locked onto.
	DeviceFound(deviceNumber uint16, transmissionType uint8)
}

// ChannelManager is the ANT+ channel stack the decoder runs on
type ChannelManager interface {
	OpenChannel(params ChannelParams, handler ChannelHandler) error
}
