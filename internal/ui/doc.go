// Package ui renders antstride output in the terminal.
//
// Components follow a "print once" pattern: a Printer writes styled boxes
// and event lines and returns. The live view lives in package watch and
// reuses the styles defined here.
//
//	p := ui.NewPrinter(nil)
//	p.PrintEvent("Device found: %s", id)
//	p.PrintSnapshot("Stride sensor", decoder.Snapshot())
//
// Widths are clamped between MinTerminalWidth and MaxContentWidth.
package ui
