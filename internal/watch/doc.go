// Package watch shows a monitor's live readings in the terminal.
//
// The view is a bubbletea program fed by the monitor's websocket: a
// spinner while the channel is searching, then a box with the device
// identity and every decoded field. Unknown fields stay visibly unknown.
//
// When stdout is not a terminal, Run prints one JSON reading per line so
// the output can be piped.
package watch
