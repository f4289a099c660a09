// Package monitor serves a stride decoder over HTTP.
//
// # Endpoints
//
//	GET /api/device   current Reading as JSON, unknown fields are null
//	GET /api/pages    message count and last-seen time per data page
//	GET /ws           websocket; a Reading on connect and on every change
//
// The decoder must be started on a Tap so the server learns when messages
// arrive:
//
//	replayer := capture.NewReplayer(capture.NewReader(f))
//	tap := monitor.NewTap(replayer)
//	decoder := stride.NewDecoder(stride.WildcardDeviceNumber, 0, nil)
//	if err := decoder.Start(tap); err != nil {
//	    return err
//	}
//	srv := monitor.New(&monitor.Config{Port: monitor.DefaultPort}, decoder, tap)
//	go srv.Run(ctx)
//	return replayer.Run(ctx)
//
// A websocket client that falls sendBuffer readings behind is disconnected.
package monitor
