package capture

import (
	"bufio"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/gopacket"
	"go.uber.org/zap"

	"github.com/muurk/antstride/internal/logging"
	"github.com/muurk/antstride/internal/stride"
)

// ErrMalformedLine is returned by ParseLine for text that is not valid hex.
var ErrMalformedLine = errors.New("malformed capture line")

// Reader reads a capture file: one message per line in hex. Blank lines and
// lines starting with '#' are skipped. Whitespace, '|', '_' and an optional
// 0x prefix are ignored. Lines that are not hex are skipped and counted.
type Reader struct {
	scanner *bufio.Scanner
	line    int
	skipped atomic.Int64
}

var _ gopacket.PacketDataSource = (*Reader)(nil)

// NewReader creates a Reader over r.
func NewReader(r io.Reader) *Reader {
	return &Reader{
		scanner: bufio.NewScanner(r),
	}
}

// Line returns the line number of the last message read.
func (r *Reader) Line() int {
	return r.line
}

// Skipped returns the number of lines skipped because they were not hex.
// Safe to call while another goroutine reads.
func (r *Reader) Skipped() int {
	return int(r.skipped.Load())
}

// ReadPacketData returns the next message in the file.
// This method is from PacketDataSource interface.
func (r *Reader) ReadPacketData() ([]byte, gopacket.CaptureInfo, error) {
	for r.scanner.Scan() {
		r.line++
		text := strings.TrimSpace(r.scanner.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}

		data, err := ParseLine(text)
		if err != nil {
			r.skipped.Add(1)
			logging.Warn("Skipping malformed capture line", zap.Int("line", r.line), zap.Error(err))
			logging.LogRawBytes("Malformed capture line", []byte(text))
			continue
		}

		ci := gopacket.CaptureInfo{
			Timestamp:     time.Now(),
			CaptureLength: len(data),
			Length:        len(data),
			AncillaryData: []interface{}{r.line},
		}
		return data, ci, nil
	}
	if err := r.scanner.Err(); err != nil {
		return nil, gopacket.CaptureInfo{}, fmt.Errorf("failed to read capture: %w", err)
	}
	return nil, gopacket.CaptureInfo{}, io.EOF
}

// ParseLine decodes one capture line into message bytes.
func ParseLine(text string) ([]byte, error) {
	cleaned := strings.Map(func(r rune) rune {
		switch r {
		case ' ', '\t', '|', '_', ':':
			return -1
		}
		return r
	}, text)
	cleaned = strings.TrimPrefix(strings.TrimPrefix(cleaned, "0x"), "0X")

	if cleaned == "" {
		return nil, fmt.Errorf("%w: no data", ErrMalformedLine)
	}
	data, err := hex.DecodeString(cleaned)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedLine, err)
	}
	return data, nil
}

// FormatLine renders data the way ParseLine reads it back, with the channel
// ID of extended messages set apart by '|'.
func FormatLine(data []byte) string {
	var sb strings.Builder
	for i, b := range data {
		if i > 0 {
			if i == stride.FrameSize && len(data) == ExtendedFrameSize {
				sb.WriteString(" | ")
			} else {
				sb.WriteByte(' ')
			}
		}
		fmt.Fprintf(&sb, "%02X", b)
	}
	return sb.String()
}

// LineNumber returns the capture line a packet came from, if known.
func LineNumber(packet gopacket.Packet) (int, bool) {
	ad := packet.Metadata().CaptureInfo.AncillaryData
	if len(ad) < 1 {
		return 0, false
	}
	line, ok := ad[0].(int)
	return line, ok
}
