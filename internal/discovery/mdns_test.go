package discovery

import (
	"net"
	"testing"
	"time"

	"github.com/grandcat/zeroconf"
)

func TestParseServiceEntry(t *testing.T) {
	tests := []struct {
		name         string
		entry        *zeroconf.ServiceEntry
		wantNil      bool
		wantInstance string
		wantIP       string
		wantPort     int
	}{
		{
			name: "monitor with IPv4",
			entry: &zeroconf.ServiceEntry{
				ServiceRecord: zeroconf.ServiceRecord{Instance: "kitchen"},
				HostName:      "kitchen-pi.local.",
				Port:          8457,
				AddrIPv4:      []net.IP{net.ParseIP("192.168.4.16")},
				Text:          []string{"path=/api", "version=1.0.0"},
			},
			wantInstance: "kitchen",
			wantIP:       "192.168.4.16",
			wantPort:     8457,
		},
		{
			name: "IPv4 preferred over IPv6",
			entry: &zeroconf.ServiceEntry{
				ServiceRecord: zeroconf.ServiceRecord{Instance: "dual"},
				Port:          8457,
				AddrIPv4:      []net.IP{net.ParseIP("10.0.0.5")},
				AddrIPv6:      []net.IP{net.ParseIP("fe80::1")},
			},
			wantInstance: "dual",
			wantIP:       "10.0.0.5",
			wantPort:     8457,
		},
		{
			name: "IPv6 only",
			entry: &zeroconf.ServiceEntry{
				ServiceRecord: zeroconf.ServiceRecord{Instance: "v6"},
				Port:          9000,
				AddrIPv6:      []net.IP{net.ParseIP("fe80::1")},
			},
			wantInstance: "v6",
			wantIP:       "fe80::1",
			wantPort:     9000,
		},
		{
			name: "escaped instance name",
			entry: &zeroconf.ServiceEntry{
				ServiceRecord: zeroconf.ServiceRecord{Instance: `antstride\ on\ pi`},
				Port:          8457,
				AddrIPv4:      []net.IP{net.ParseIP("10.0.0.9")},
			},
			wantInstance: "antstride on pi",
			wantIP:       "10.0.0.9",
			wantPort:     8457,
		},
		{
			name: "no addresses",
			entry: &zeroconf.ServiceEntry{
				ServiceRecord: zeroconf.ServiceRecord{Instance: "lost"},
				Port:          8457,
			},
			wantNil: true,
		},
		{
			name: "no port",
			entry: &zeroconf.ServiceEntry{
				ServiceRecord: zeroconf.ServiceRecord{Instance: "portless"},
				AddrIPv4:      []net.IP{net.ParseIP("10.0.0.5")},
			},
			wantNil: true,
		},
		{
			name: "no instance",
			entry: &zeroconf.ServiceEntry{
				Port:     8457,
				AddrIPv4: []net.IP{net.ParseIP("10.0.0.5")},
			},
			wantNil: true,
		},
		{
			name:    "nil entry",
			entry:   nil,
			wantNil: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			before := time.Now()
			m := parseServiceEntry(tt.entry)

			if tt.wantNil {
				if m != nil {
					t.Errorf("parseServiceEntry() = %v, want nil", m)
				}
				return
			}
			if m == nil {
				t.Fatal("parseServiceEntry() = nil, want monitor")
			}
			if m.Instance != tt.wantInstance {
				t.Errorf("Instance = %q, want %q", m.Instance, tt.wantInstance)
			}
			if m.IP != tt.wantIP {
				t.Errorf("IP = %q, want %q", m.IP, tt.wantIP)
			}
			if m.Port != tt.wantPort {
				t.Errorf("Port = %d, want %d", m.Port, tt.wantPort)
			}
			if m.DiscoveredAt.Before(before) {
				t.Errorf("DiscoveredAt is not recent: %v", m.DiscoveredAt)
			}
		})
	}
}

func TestParseServiceEntry_Metadata(t *testing.T) {
	entry := &zeroconf.ServiceEntry{
		ServiceRecord: zeroconf.ServiceRecord{Instance: "kitchen"},
		Port:          8457,
		AddrIPv4:      []net.IP{net.ParseIP("192.168.4.16")},
		Text:          AdvertiseText("1.0.0", "12345/1"),
	}
	entry.Text = append(entry.Text, "flag")

	m := parseServiceEntry(entry)
	if m == nil {
		t.Fatal("parseServiceEntry() = nil, want monitor")
	}

	expected := map[string]string{
		"path":    "/api",
		"version": "1.0.0",
		"device":  "12345/1",
		"flag":    "",
	}
	if len(m.Metadata) != len(expected) {
		t.Errorf("Metadata has %d entries, want %d", len(m.Metadata), len(expected))
	}
	for key, want := range expected {
		if got, ok := m.Metadata[key]; !ok {
			t.Errorf("Metadata missing key %q", key)
		} else if got != want {
			t.Errorf("Metadata[%q] = %q, want %q", key, got, want)
		}
	}
}

func TestAdvertiseTextWithoutDevice(t *testing.T) {
	text := AdvertiseText("dev", "")
	if len(text) != 2 {
		t.Errorf("AdvertiseText() = %v, want path and version only", text)
	}
}

func TestNewScanner(t *testing.T) {
	scanner := NewScanner()

	if scanner == nil {
		t.Fatal("NewScanner() = nil, want scanner")
	}
	if scanner.Timeout != DefaultScanTimeout {
		t.Errorf("scanner.Timeout = %v, want %v", scanner.Timeout, DefaultScanTimeout)
	}
}

func TestMatchInstance(t *testing.T) {
	entry := func(instance string, port int) *zeroconf.ServiceEntry {
		return &zeroconf.ServiceEntry{
			ServiceRecord: zeroconf.ServiceRecord{Instance: instance},
			Port:          port,
			AddrIPv4:      []net.IP{net.ParseIP("192.168.4.16")},
		}
	}

	tests := []struct {
		name     string
		entries  []*zeroconf.ServiceEntry
		instance string
		wantPort int
	}{
		{
			name:     "match after others",
			entries:  []*zeroconf.ServiceEntry{entry("garage", 8001), entry("kitchen", 8457)},
			instance: "kitchen",
			wantPort: 8457,
		},
		{
			name:     "escaped space",
			entries:  []*zeroconf.ServiceEntry{entry(`left\ shoe`, 9000)},
			instance: "left shoe",
			wantPort: 9000,
		},
		{
			name:     "unusable entry skipped",
			entries:  []*zeroconf.ServiceEntry{entry("kitchen", 0), nil, entry("kitchen", 8457)},
			instance: "kitchen",
			wantPort: 8457,
		},
		{
			name:     "no match",
			entries:  []*zeroconf.ServiceEntry{entry("garage", 8001)},
			instance: "kitchen",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			entries := make(chan *zeroconf.ServiceEntry, len(tt.entries))
			for _, e := range tt.entries {
				entries <- e
			}
			close(entries)

			m := matchInstance(entries, tt.instance)
			if tt.wantPort == 0 {
				if m != nil {
					t.Errorf("matchInstance() = %v, want nil", m)
				}
				return
			}
			if m == nil {
				t.Fatal("matchInstance() = nil, want monitor")
			}
			if m.Instance != tt.instance || m.Port != tt.wantPort {
				t.Errorf("matchInstance() = %s:%d, want %s:%d", m.Instance, m.Port, tt.instance, tt.wantPort)
			}
		})
	}
}

// Note: live mDNS discovery needs multicast on the host network and is
// exercised by running "antstride monitor --mdns" and "antstride discover".
