// Package logging provides structured logging for antstride.
//
// This package wraps a zap logger with package-level convenience functions so
// that the decoder, the capture replayer and the monitor server all log through
// one configured sink.
//
// # Log Levels
//
//   - Debug: Raw frames, unhandled data pages, filtered channel IDs
//   - Info: Pairing, monitor start/stop, client connections
//   - Warn: Dropped websocket clients, malformed capture lines
//   - Error: Server failures
//
// # Configuration
//
// Logging is silent unless a level is given, either on the command line
// (--log-level) or through the ANTSTRIDE_LOG_LEVEL environment variable:
//
//	if err := logging.Initialize("debug"); err != nil {
//	    log.Fatal(err)
//	}
//	defer logging.Sync()
//
// Logs go to stderr so that command output on stdout stays machine readable.
//
// # Thread Safety
//
// All logging functions are safe for concurrent use.
package logging
