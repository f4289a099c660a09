package watch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/muurk/antstride/internal/logging"
	"github.com/muurk/antstride/internal/monitor"
	"github.com/muurk/antstride/internal/ui"
)

// Run connects to the monitor at addr and shows its readings until the
// user quits, the feed ends or ctx is cancelled. When stdout is not a
// terminal each reading is written as one JSON line instead.
func Run(ctx context.Context, addr string) error {
	url, err := monitor.NewClient(addr, 0).WebSocketURL()
	if err != nil {
		return err
	}

	feed, err := Dial(ctx, url)
	if err != nil {
		return err
	}
	defer feed.Close()

	// Unblock a pending read on cancellation.
	stop := context.AfterFunc(ctx, func() { _ = feed.Close() })
	defer stop()

	if !ui.IsTerminal(os.Stdout) {
		err := StreamJSON(feed, os.Stdout)
		if ctx.Err() != nil {
			return nil
		}
		return err
	}

	p := tea.NewProgram(NewModel(feed, addr), tea.WithContext(ctx))
	final, err := p.Run()
	if err != nil {
		if ctx.Err() != nil || errors.Is(err, tea.ErrProgramKilled) {
			return nil
		}
		return fmt.Errorf("watch UI failed: %w", err)
	}

	if m, ok := final.(Model); ok && m.Err != nil && !m.Quitting {
		if ctx.Err() != nil {
			return nil
		}
		return m.Err
	}
	return nil
}

// StreamJSON writes every reading from source to w as a JSON line until
// the source ends. A closed feed is not an error.
func StreamJSON(source Source, w io.Writer) error {
	enc := json.NewEncoder(w)
	for {
		reading, err := source.Next()
		if err != nil {
			if errors.Is(err, io.EOF) {
				logging.Debug("Feed closed by monitor")
				return nil
			}
			return err
		}
		if err := enc.Encode(reading); err != nil {
			return fmt.Errorf("failed to write reading: %w", err)
		}
	}
}
