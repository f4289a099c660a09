package monitor

import (
	"bytes"
	"context"
	"net"
	"strings"
	"testing"

	"github.com/muurk/antstride/internal/capture"
	"github.com/muurk/antstride/internal/stride"
)

func netListen(t *testing.T) (net.Listener, error) {
	t.Helper()
	return net.Listen("tcp", "127.0.0.1:0")
}

func TestTapCountsAndRecords(t *testing.T) {
	// Plain messages for an explicit device number are paired on the first message.
	text := "00 01 00 00 00 00 00 01 00\n00 03 00 00 00 00 00 09 00\n01 02\n"
	replayer := capture.NewReplayer(capture.NewReader(strings.NewReader(text)), capture.WithInterval(0))
	tap := NewTap(replayer)

	var buf bytes.Buffer
	w, err := capture.NewWriter(&buf)
	if err != nil {
		t.Fatalf("NewWriter() error = %v", err)
	}
	tap.SetRecorder(w)

	updates := 0
	tap.OnUpdate(func() { updates++ })

	decoder := stride.NewDecoder(4242, 1, nil)
	if err := decoder.Start(tap); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if err := replayer.Run(context.Background()); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if tap.Messages() != 2 {
		t.Errorf("Messages() = %d, want 2", tap.Messages())
	}
	pages := tap.Pages()
	if pages["StrideData"].Count != 1 || pages["Calories"].Count != 1 {
		t.Errorf("Pages() = %+v, want one StrideData and one Calories", pages)
	}
	// one pairing event and two messages
	if updates != 3 {
		t.Errorf("updates = %d, want 3", updates)
	}
	if c, _ := decoder.Calories(); c != 9 {
		t.Errorf("decoder Calories() = %d, want 9", c)
	}

	// The recording replays into the same state, now with channel IDs.
	recorded := buf.String()
	if !strings.Contains(recorded, "| 80 92 10 7C 01") {
		t.Errorf("recording should carry the channel ID, got:\n%s", recorded)
	}

	again := stride.NewDecoder(stride.WildcardDeviceNumber, 0, nil)
	replay := capture.NewReplayer(capture.NewReader(strings.NewReader(recorded)), capture.WithInterval(0))
	if err := again.Start(replay); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if err := replay.Run(context.Background()); err != nil {
		t.Fatalf("Run() on recording error = %v", err)
	}
	if id, _ := again.DetectedDevice(); id.DeviceNumber != 4242 {
		t.Errorf("recording paired with %v, want 4242", id)
	}
}
