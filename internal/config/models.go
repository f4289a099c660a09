package config

import (
	"errors"
	"sort"
	"strconv"
	"time"

	"github.com/muurk/antstride/internal/stride"
)

// ErrNotPaired is returned when remembering a snapshot taken before pairing.
var ErrNotPaired = errors.New("decoder has not paired with a device")

// Registry represents the entire user configuration file.
// This stores the stride sensors seen before and application preferences.
type Registry struct {
	Version     int                `yaml:"version"`
	Devices     map[string]*Device `yaml:"devices,omitempty"` // Keyed by decimal device number
	Preferences *Preferences       `yaml:"preferences,omitempty"`
}

// Device represents what is known about one paired stride sensor.
type Device struct {
	Nickname         string       `yaml:"nickname,omitempty"`
	TransmissionType uint8        `yaml:"transmission_type"`
	LastSeen         time.Time    `yaml:"last_seen,omitempty"`
	Product          *ProductInfo `yaml:"product,omitempty"` // Last received product pages
}

// ProductInfo is the content of the manufacturer and product info pages.
type ProductInfo struct {
	HardwareRevision stride.Optional[uint8]  `yaml:"hardware_revision"`
	ManufacturerID   stride.Optional[uint16] `yaml:"manufacturer_id"`
	ModelNumber      stride.Optional[uint16] `yaml:"model_number"`
	SoftwareRevision stride.Optional[uint8]  `yaml:"software_revision"`
	SerialNumber     stride.Optional[uint32] `yaml:"serial_number"`
}

// Preferences represents application-wide user preferences.
type Preferences struct {
	MonitorHost     string `yaml:"monitor_host"`     // Address the monitor server binds to
	MonitorPort     int    `yaml:"monitor_port"`     // Port the monitor server listens on
	Advertise       bool   `yaml:"advertise"`        // Announce the monitor over mDNS
	DiscoverTimeout int    `yaml:"discover_timeout"` // mDNS discovery timeout in seconds
	LogLevel        string `yaml:"log_level,omitempty"`
}

// DefaultPreferences returns the preferences used when none are stored.
func DefaultPreferences() *Preferences {
	return &Preferences{
		MonitorHost:     "0.0.0.0",
		MonitorPort:     8457,
		Advertise:       true,
		DiscoverTimeout: 5,
	}
}

// NewRegistry creates a new Registry with default values.
func NewRegistry() *Registry {
	return &Registry{
		Version:     1,
		Devices:     make(map[string]*Device),
		Preferences: DefaultPreferences(),
	}
}

func deviceKey(deviceNumber uint16) string {
	return strconv.FormatUint(uint64(deviceNumber), 10)
}

// GetDevice retrieves a device by number.
// Returns nil if the device doesn't exist in the registry.
func (r *Registry) GetDevice(deviceNumber uint16) *Device {
	return r.Devices[deviceKey(deviceNumber)]
}

// EnsureDevice ensures a device entry exists in the registry.
// Returns the device entry (existing or newly created).
func (r *Registry) EnsureDevice(deviceNumber uint16) *Device {
	if r.Devices == nil {
		r.Devices = make(map[string]*Device)
	}

	key := deviceKey(deviceNumber)
	if device, exists := r.Devices[key]; exists {
		return device
	}

	device := &Device{}
	r.Devices[key] = device
	return device
}

// RememberDevice stores the identity and product info of a paired decoder so
// the next run can pair with the same sensor.
func (r *Registry) RememberDevice(snap stride.Snapshot) (*Device, error) {
	id, ok := snap.Device.Get()
	if !ok {
		return nil, ErrNotPaired
	}

	device := r.EnsureDevice(id.DeviceNumber)
	device.TransmissionType = id.TransmissionType
	device.LastSeen = time.Now()

	product := ProductInfo{
		HardwareRevision: snap.State.HardwareRevision,
		ManufacturerID:   snap.State.ManufacturerID,
		ModelNumber:      snap.State.ModelNumber,
		SoftwareRevision: snap.State.SoftwareRevision,
		SerialNumber:     snap.State.SerialNumber,
	}
	// Keep what an earlier run learned when the product pages were not seen this time.
	if device.Product != nil {
		product.merge(device.Product)
	}
	if product != (ProductInfo{}) {
		device.Product = &product
	}
	return device, nil
}

func (p *ProductInfo) merge(prev *ProductInfo) {
	if !p.HardwareRevision.Known() {
		p.HardwareRevision = prev.HardwareRevision
	}
	if !p.ManufacturerID.Known() {
		p.ManufacturerID = prev.ManufacturerID
	}
	if !p.ModelNumber.Known() {
		p.ModelNumber = prev.ModelNumber
	}
	if !p.SoftwareRevision.Known() {
		p.SoftwareRevision = prev.SoftwareRevision
	}
	if !p.SerialNumber.Known() {
		p.SerialNumber = prev.SerialNumber
	}
}

// SetDeviceNickname sets a user-friendly nickname for a device.
func (r *Registry) SetDeviceNickname(deviceNumber uint16, nickname string) {
	device := r.EnsureDevice(deviceNumber)
	device.Nickname = nickname
}

// RemoveDevice forgets a device. It reports whether the device was known.
func (r *Registry) RemoveDevice(deviceNumber uint16) bool {
	key := deviceKey(deviceNumber)
	if _, ok := r.Devices[key]; !ok {
		return false
	}
	delete(r.Devices, key)
	return true
}

// DeviceNumbers returns the numbers of all stored devices in ascending order.
// Entries whose key is not a device number are skipped.
func (r *Registry) DeviceNumbers() []uint16 {
	numbers := make([]uint16, 0, len(r.Devices))
	for key := range r.Devices {
		n, err := strconv.ParseUint(key, 10, 16)
		if err != nil {
			continue
		}
		numbers = append(numbers, uint16(n))
	}
	sort.Slice(numbers, func(i, j int) bool { return numbers[i] < numbers[j] })
	return numbers
}

// Identity returns the channel ID to pass to stride.NewDecoder.
func (d *Device) Identity(deviceNumber uint16) stride.Identity {
	return stride.Identity{DeviceNumber: deviceNumber, TransmissionType: d.TransmissionType}
}

// DisplayName returns the nickname, or the device number when none is set.
func (d *Device) DisplayName(deviceNumber uint16) string {
	if d.Nickname != "" {
		return d.Nickname
	}
	return "Stride sensor " + deviceKey(deviceNumber)
}
