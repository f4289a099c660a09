package watch

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/muurk/antstride/internal/logging"
	"github.com/muurk/antstride/internal/monitor"
)

// Source yields readings until it returns an error. io.EOF means the
// monitor closed the feed.
type Source interface {
	Next() (*monitor.Reading, error)
}

// Feed is a websocket connection to a monitor's live reading feed
type Feed struct {
	conn      *websocket.Conn
	closeOnce sync.Once
}

// Dial connects to the websocket feed at url.
func Dial(ctx context.Context, url string) (*Feed, error) {
	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("failed to connect to %s: %s: %w", url, resp.Status, err)
		}
		return nil, fmt.Errorf("failed to connect to %s: %w", url, err)
	}
	logging.LogConnection(url, "feed connected")
	return &Feed{conn: conn}, nil
}

// Next blocks until the monitor pushes a reading.
func (f *Feed) Next() (*monitor.Reading, error) {
	reading := &monitor.Reading{}
	if err := f.conn.ReadJSON(reading); err != nil {
		if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
			return nil, io.EOF
		}
		return nil, fmt.Errorf("feed read failed: %w", err)
	}
	logging.Debug("Reading received",
		zap.Bool("paired", reading.Paired),
		zap.Uint64("messages", reading.Messages),
	)
	return reading, nil
}

// Close sends a close frame and closes the connection. Safe to call more
// than once.
func (f *Feed) Close() error {
	var err error
	f.closeOnce.Do(func() {
		_ = f.conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		err = f.conn.Close()
	})
	return err
}
