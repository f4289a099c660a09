// Package config stores the stride sensors antstride has paired with and the
// user's preferences in a YAML file.
//
// # Configuration File Location
//
// The configuration file is stored in platform-appropriate locations:
//   - Linux: $XDG_CONFIG_HOME/antstride/config.yaml or $HOME/.config/antstride/config.yaml
//   - macOS: $HOME/.config/antstride/config.yaml
//   - Windows: %LOCALAPPDATA%\antstride\config.yaml
//
// Set ANTSTRIDE_CONFIG_DIR to use another directory.
//
// # Usage Example
//
//	registry, err := config.LoadRegistry()
//	if err != nil {
//	    return err
//	}
//
//	// After the decoder has paired
//	if _, err := registry.RememberDevice(decoder.Snapshot()); err != nil {
//	    return err
//	}
//	registry.SetDeviceNickname(12345, "Left shoe")
//	if err := registry.Save(); err != nil {
//	    return err
//	}
//
// # File Format
//
//	version: 1
//	devices:
//	  "12345":
//	    nickname: Left shoe
//	    transmission_type: 1
//	    last_seen: 2024-05-01T08:00:00Z
//	    product:
//	      hardware_revision: 3
//	      manufacturer_id: 1
//	      model_number: 15
//	      software_revision: 2
//	      serial_number: 7
//	preferences:
//	  monitor_host: 0.0.0.0
//	  monitor_port: 8457
//	  advertise: true
//	  discover_timeout: 5
//
// Unknown product fields are written as null.
package config
