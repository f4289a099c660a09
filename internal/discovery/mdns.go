package discovery

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/grandcat/zeroconf"
	"go.uber.org/zap"

	"github.com/muurk/antstride/internal/logging"
)

const (
	// ServiceType is the mDNS service type monitors advertise
	ServiceType = "_antstride._tcp"

	// ServiceDomain is the mDNS domain (typically "local.")
	ServiceDomain = "local."

	// DefaultScanTimeout is the default timeout for monitor discovery
	DefaultScanTimeout = 5 * time.Second
)

// Scanner handles mDNS monitor discovery
type Scanner struct {
	// Timeout is the maximum time to wait for monitors to answer
	Timeout time.Duration
}

// NewScanner creates a new mDNS scanner with default settings
func NewScanner() *Scanner {
	return &Scanner{
		Timeout: DefaultScanTimeout,
	}
}

// ScanForMonitors browses for monitors until the timeout or ctx expires.
func (s *Scanner) ScanForMonitors(ctx context.Context) ([]*Monitor, error) {
	ctx, cancel := context.WithTimeout(ctx, s.Timeout)
	defer cancel()

	entries := make(chan *zeroconf.ServiceEntry)
	var (
		mu       sync.Mutex
		monitors = make([]*Monitor, 0)
		seen     = make(map[string]bool)
	)

	resolver, err := zeroconf.NewResolver(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create mDNS resolver: %w", err)
	}

	go func() {
		for entry := range entries {
			monitor := parseServiceEntry(entry)
			if monitor == nil {
				continue
			}
			mu.Lock()
			if !seen[monitor.Instance] {
				seen[monitor.Instance] = true
				monitors = append(monitors, monitor)
			}
			mu.Unlock()
		}
	}()

	if err := resolver.Browse(ctx, ServiceType, ServiceDomain, entries); err != nil {
		return nil, fmt.Errorf("failed to browse for mDNS services: %w", err)
	}

	<-ctx.Done()

	mu.Lock()
	defer mu.Unlock()
	return append([]*Monitor(nil), monitors...), nil
}

// WaitForMonitor waits for the monitor advertising instance.
func (s *Scanner) WaitForMonitor(ctx context.Context, instance string) (*Monitor, error) {
	ctx, cancel := context.WithTimeout(ctx, s.Timeout)
	defer cancel()

	entries := make(chan *zeroconf.ServiceEntry)
	found := make(chan *Monitor, 1)

	resolver, err := zeroconf.NewResolver(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create mDNS resolver: %w", err)
	}

	go func() {
		if monitor := matchInstance(entries, instance); monitor != nil {
			found <- monitor
			cancel()
		}
	}()

	if err := resolver.Browse(ctx, ServiceType, ServiceDomain, entries); err != nil {
		return nil, fmt.Errorf("failed to browse for mDNS services: %w", err)
	}

	select {
	case monitor := <-found:
		return monitor, nil
	case <-ctx.Done():
		// The finder may have won the race with the deadline.
		select {
		case monitor := <-found:
			return monitor, nil
		default:
		}
		return nil, fmt.Errorf("monitor %q not found within %s", instance, s.Timeout)
	}
}

// matchInstance reads entries until one advertises instance. It returns nil
// if entries is closed first.
func matchInstance(entries <-chan *zeroconf.ServiceEntry, instance string) *Monitor {
	for entry := range entries {
		monitor := parseServiceEntry(entry)
		if monitor != nil && monitor.Instance == instance {
			return monitor
		}
	}
	return nil
}

// parseServiceEntry converts a zeroconf service entry to a Monitor
// Returns nil if the entry has no usable address
func parseServiceEntry(entry *zeroconf.ServiceEntry) *Monitor {
	if entry == nil || entry.Instance == "" {
		return nil
	}

	// Get IP address (prefer IPv4)
	var ip string
	for _, addr := range entry.AddrIPv4 {
		ip = addr.String()
		break
	}

	if ip == "" && len(entry.AddrIPv6) > 0 {
		ip = entry.AddrIPv6[0].String()
	}

	if ip == "" {
		return nil
	}

	port := entry.Port
	if port == 0 {
		return nil
	}

	// Parse TXT records into metadata
	metadata := make(map[string]string)
	for _, txt := range entry.Text {
		parts := strings.SplitN(txt, "=", 2)
		if len(parts) == 2 {
			metadata[parts[0]] = parts[1]
		} else {
			metadata[parts[0]] = ""
		}
	}

	return &Monitor{
		Instance:     unescapeInstance(entry.Instance),
		Hostname:     entry.HostName,
		IP:           ip,
		Port:         port,
		Metadata:     metadata,
		DiscoveredAt: time.Now(),
	}
}

// unescapeInstance undoes the DNS escaping zeroconf applies to spaces.
func unescapeInstance(instance string) string {
	return strings.ReplaceAll(instance, `\ `, " ")
}

// Advertise announces a monitor listening on port until ctx is cancelled.
func Advertise(ctx context.Context, instance string, port int, text []string) error {
	server, err := zeroconf.Register(instance, ServiceType, ServiceDomain, port, text, nil)
	if err != nil {
		return fmt.Errorf("failed to register mDNS service: %w", err)
	}
	defer server.Shutdown()

	logging.Info("Advertising monitor",
		zap.String("instance", instance),
		zap.String("service", ServiceType),
		zap.Int("port", port),
		zap.Strings("txt", text),
	)

	<-ctx.Done()
	return nil
}

// AdvertiseText builds the TXT records for a monitor.
func AdvertiseText(version, device string) []string {
	text := []string{"path=/api", "version=" + version}
	if device != "" {
		text = append(text, "device="+device)
	}
	return text
}

// ScanForMonitors is a convenience function to scan with a custom timeout
func ScanForMonitors(ctx context.Context, timeout time.Duration) ([]*Monitor, error) {
	scanner := NewScanner()
	scanner.Timeout = timeout
	return scanner.ScanForMonitors(ctx)
}
