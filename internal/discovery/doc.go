// Package discovery finds antstride monitors on the local network over mDNS.
//
// A monitor started with advertising enabled registers the "_antstride._tcp"
// service. Its TXT records carry the API path, the antstride version, and the
// paired device once known:
//
//	path=/api
//	version=1.2.0
//	device=12345/1
//
// # Usage Example
//
//	monitors, err := discovery.ScanForMonitors(ctx, 5*time.Second)
//	if err != nil {
//	    return err
//	}
//	for _, m := range monitors {
//	    fmt.Printf("%s at %s\n", m.Instance, m.BaseURL())
//	}
//
// # Network Requirements
//
// - Requires multicast support on the network interface
// - Monitors must be on the same local network segment
// - Firewall must allow mDNS (UDP port 5353)
package discovery
