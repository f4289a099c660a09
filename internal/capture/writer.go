package capture

import (
	"fmt"
	"io"
	"sync"
	"time"
)

// Writer records messages in the format Reader reads.
type Writer struct {
	mu sync.Mutex
	w  io.Writer
}

// NewWriter creates a Writer and writes a header comment to w.
func NewWriter(w io.Writer) (*Writer, error) {
	if _, err := fmt.Fprintf(w, "# antstride capture %s\n", time.Now().UTC().Format(time.RFC3339)); err != nil {
		return nil, fmt.Errorf("failed to write capture header: %w", err)
	}
	return &Writer{w: w}, nil
}

// WriteMessage appends one message line.
func (cw *Writer) WriteMessage(msg *ANTMessage) error {
	data, err := Encode(msg)
	if err != nil {
		return err
	}
	return cw.WriteRaw(data)
}

// WriteRaw appends data as one line without validating it.
func (cw *Writer) WriteRaw(data []byte) error {
	cw.mu.Lock()
	defer cw.mu.Unlock()
	if _, err := fmt.Fprintln(cw.w, FormatLine(data)); err != nil {
		return fmt.Errorf("failed to write capture line: %w", err)
	}
	return nil
}
