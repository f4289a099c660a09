package stride

import (
	"errors"
	"fmt"
	"sync"

	"github.com/muurk/antstride/internal/logging"
	"go.uber.org/zap"
)

var (
	// ErrAlreadyStarted is returned when Start is called on a running decoder.
	ErrAlreadyStarted = errors.New("stride decoder already started")
	// ErrNoChannelManager is returned when Start is called with a nil manager.
	ErrNoChannelManager = errors.New("stride decoder needs a channel manager")
)

// Identity is the channel ID of a paired device
type Identity struct {
	DeviceNumber     uint16 `json:"device_number" yaml:"device_number"`
	TransmissionType uint8  `json:"transmission_type" yaml:"transmission_type"`
}

func (i Identity) String() string {
	return fmt.Sprintf("%d/%d", i.DeviceNumber, i.TransmissionType)
}

// State holds the latest value of every decoded field
type State struct {
	StrideCount      Optional[uint8]  `json:"stride_count" yaml:"stride_count"`
	Calories         Optional[uint8]  `json:"calories" yaml:"calories"`
	HardwareRevision Optional[uint8]  `json:"hardware_revision" yaml:"hardware_revision"`
	ManufacturerID   Optional[uint16] `json:"manufacturer_id" yaml:"manufacturer_id"`
	ModelNumber      Optional[uint16] `json:"model_number" yaml:"model_number"`
	SoftwareRevision Optional[uint8]  `json:"software_revision" yaml:"software_revision"`
	SerialNumber     Optional[uint32] `json:"serial_number" yaml:"serial_number"`
}

// Snapshot is a consistent copy of the decoder taken under one lock
type Snapshot struct {
	Device Optional[Identity] `json:"device" yaml:"device"`
	State  State              `json:"state" yaml:"state"`
}

// Paired reports whether the snapshot was taken after DeviceFound.
func (s Snapshot) Paired() bool {
	return s.Device.Known()
}

// Callback receives decoder notifications. Both methods are invoked outside
// the decoder lock.
type Callback interface {
	// DeviceFound is called once, when the channel pairs with a device.
	DeviceFound(deviceNumber uint16, transmissionType uint8)
	// StrideData is called when the stride count changes. The profile
	// pages handled here carry no distance, so distance is always unknown.
	StrideData(numSteps uint8, distance Optional[float64])
}

// CallbackFuncs adapts plain functions to Callback. Nil fields are skipped.
type CallbackFuncs struct {
	OnDeviceFound func(deviceNumber uint16, transmissionType uint8)
	OnStrideData  func(numSteps uint8, distance Optional[float64])
}

func (c CallbackFuncs) DeviceFound(deviceNumber uint16, transmissionType uint8) {
	if c.OnDeviceFound != nil {
		c.OnDeviceFound(deviceNumber, transmissionType)
	}
}

func (c CallbackFuncs) StrideData(numSteps uint8, distance Optional[float64]) {
	if c.OnStrideData != nil {
		c.OnStrideData(numSteps, distance)
	}
}

// Decoder decodes stride profile pages for a single device
type Decoder struct {
	deviceNumber     uint16
	transmissionType uint8
	callback         Callback

	mu       sync.Mutex
	started  bool
	detected Optional[Identity]
	state    State
}

var _ ChannelHandler = (*Decoder)(nil)

// NewDecoder creates a decoder that will pair with deviceNumber, or with any
// stride sensor when deviceNumber is WildcardDeviceNumber. It has no side
// effects; call Start to open the channel. cb may be nil.
func NewDecoder(deviceNumber uint16, transmissionType uint8, cb Callback) *Decoder {
	return &Decoder{
		deviceNumber:     deviceNumber,
		transmissionType: transmissionType,
		callback:         cb,
	}
}

// ChannelParams returns the channel configuration requested by Start.
func (d *Decoder) ChannelParams() ChannelParams {
	return ChannelParams{
		Frequency:        ChannelFrequency,
		Period:           ChannelPeriod,
		DeviceType:       DeviceTypeStride,
		TransmissionType: d.transmissionType,
		DeviceNumber:     d.deviceNumber,
		SearchTimeout:    SearchTimeout,
	}
}

// Start asks mgr to open the stride channel with this decoder as handler.
func (d *Decoder) Start(mgr ChannelManager) error {
	if mgr == nil {
		return ErrNoChannelManager
	}

	d.mu.Lock()
	if d.started {
		d.mu.Unlock()
		return ErrAlreadyStarted
	}
	d.started = true
	d.mu.Unlock()

	// The manager may deliver events synchronously, so the lock is not held here.
	params := d.ChannelParams()
	if err := mgr.OpenChannel(params, d); err != nil {
		d.mu.Lock()
		d.started = false
		d.mu.Unlock()
		return fmt.Errorf("failed to open stride channel: %w", err)
	}

	logging.Info("Stride channel opened",
		zap.Uint16("device_number", params.DeviceNumber),
		zap.Uint8("transmission_type", params.TransmissionType),
		zap.Duration("search_timeout", params.SearchTimeout),
	)
	return nil
}

// DeviceFound records the paired device and forwards the notification.
// Only the first call has any effect.
func (d *Decoder) DeviceFound(deviceNumber uint16, transmissionType uint8) {
	d.mu.Lock()
	if d.detected.Known() {
		current, _ := d.detected.Get()
		d.mu.Unlock()
		logging.Debug("Ignoring device found after pairing",
			zap.Stringer("paired", current),
			zap.Uint16("device_number", deviceNumber),
			zap.Uint8("transmission_type", transmissionType),
		)
		return
	}
	d.detected = Some(Identity{DeviceNumber: deviceNumber, TransmissionType: transmissionType})
	cb := d.callback
	d.mu.Unlock()

	logging.LogDeviceFound(deviceNumber, transmissionType)
	if cb != nil {
		cb.DeviceFound(deviceNumber, transmissionType)
	}
}

// OnMessage consumes one channel message. Messages that are not exactly 9
// bytes and unknown page numbers are ignored.
func (d *Decoder) OnMessage(raw []byte) {
	frame, err := ParseFrame(raw)
	if err != nil {
		return
	}
	page := frame.ParsePage()

	d.mu.Lock()
	changed := d.apply(page)
	cb := d.callback
	d.mu.Unlock()

	switch p := page.(type) {
	case *ReservedPage:
		logging.LogPage(p.PageNumber, PageName(p.PageNumber), frame.Payload[:])
	case *StrideDataPage:
		if changed && cb != nil {
			cb.StrideData(p.StrideCount, Unknown[float64]())
		}
	}
}

// apply updates the state from page and reports whether the stride count
// changed. Caller holds d.mu.
func (d *Decoder) apply(page Page) bool {
	switch p := page.(type) {
	case *StrideDataPage:
		prev, ok := d.state.StrideCount.Get()
		d.state.StrideCount = Some(p.StrideCount)
		return !ok || prev != p.StrideCount
	case *CaloriesPage:
		d.state.Calories = Some(p.Calories)
	case *ManufacturerInfoPage:
		d.state.HardwareRevision = Some(p.HardwareRevision)
		d.state.ManufacturerID = Some(p.ManufacturerID)
		d.state.ModelNumber = Some(p.ModelNumber)
	case *ProductInfoPage:
		d.state.SoftwareRevision = Some(p.SoftwareRevision)
		d.state.SerialNumber = Some(p.SerialNumber)
	}
	return false
}

// Paired reports whether DeviceFound has been received.
func (d *Decoder) Paired() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.detected.Known()
}

// Snapshot returns the identity and all fields as one consistent copy.
func (d *Decoder) Snapshot() Snapshot {
	d.mu.Lock()
	defer d.mu.Unlock()
	return Snapshot{Device: d.detected, State: d.state}
}

// DetectedDevice returns the identity of the paired device. Pass it to
// NewDecoder to pair with the same pod next time.
func (d *Decoder) DetectedDevice() (Identity, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.detected.Get()
}

// StrideCount returns the accumulated stride count.
func (d *Decoder) StrideCount() (uint8, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state.StrideCount.Get()
}

// Calories returns the accumulated calories.
func (d *Decoder) Calories() (uint8, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state.Calories.Get()
}

// HardwareRevision is unknown until page 0x50 has been received.
func (d *Decoder) HardwareRevision() (uint8, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state.HardwareRevision.Get()
}

// ManufacturerID is unknown until page 0x50 has been received.
func (d *Decoder) ManufacturerID() (uint16, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state.ManufacturerID.Get()
}

// ModelNumber is unknown until page 0x50 has been received.
func (d *Decoder) ModelNumber() (uint16, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state.ModelNumber.Get()
}

// SoftwareRevision is unknown until page 0x51 has been received.
func (d *Decoder) SoftwareRevision() (uint8, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state.SoftwareRevision.Get()
}

// SerialNumber is unknown until page 0x51 has been received.
func (d *Decoder) SerialNumber() (uint32, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state.SerialNumber.Get()
}
