package discovery

import (
	"fmt"
	"net"
	"strconv"
	"time"
)

// Monitor represents an antstride monitor found on the network
type Monitor struct {
	// Instance is the advertised service instance name (e.g., "antstride on kitchen-pi")
	Instance string

	// Hostname is the mDNS hostname (e.g., "kitchen-pi.local.")
	Hostname string

	// IP is the preferred address, IPv4 when available
	IP string

	// Port is the monitor HTTP port
	Port int

	// Metadata contains the TXT records
	// Common fields: "path=/api", "version=1.0.0", "device=12345/1"
	Metadata map[string]string

	// DiscoveredAt is when the monitor was discovered
	DiscoveredAt time.Time
}

// String returns a human-readable string representation of the monitor
func (m *Monitor) String() string {
	return fmt.Sprintf("Monitor %q (%s) at %s", m.Instance, m.Hostname, m.Addr())
}

// Addr returns host:port, bracketing IPv6 addresses.
func (m *Monitor) Addr() string {
	return net.JoinHostPort(m.IP, strconv.Itoa(m.Port))
}

// BaseURL returns the HTTP base URL for the monitor
func (m *Monitor) BaseURL() string {
	return "http://" + m.Addr()
}

// GetMetadata retrieves a metadata value by key, or returns empty string if not found
func (m *Monitor) GetMetadata(key string) string {
	if m.Metadata == nil {
		return ""
	}
	return m.Metadata[key]
}
