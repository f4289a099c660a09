package monitor

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/muurk/antstride/internal/capture"
	"github.com/muurk/antstride/internal/logging"
	"github.com/muurk/antstride/internal/stride"
)

// PageStat counts the messages received for one data page
type PageStat struct {
	Count    uint64    `json:"count"`
	LastSeen time.Time `json:"last_seen"`
}

// Tap sits between a channel manager and the decoder. It counts pages,
// optionally records messages, and tells the server when to publish.
type Tap struct {
	next stride.ChannelManager

	mu       sync.Mutex
	pages    map[byte]*PageStat
	messages uint64
	recorder *capture.Writer
	id       *capture.ChannelID
	notify   func()
}

var _ stride.ChannelManager = (*Tap)(nil)

// NewTap wraps next.
func NewTap(next stride.ChannelManager) *Tap {
	return &Tap{
		next:  next,
		pages: make(map[byte]*PageStat),
	}
}

// SetRecorder writes every channel message to w. Once the device is found,
// lines carry its channel ID.
func (t *Tap) SetRecorder(w *capture.Writer) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.recorder = w
}

// OnUpdate registers fn to run after every message or pairing event.
func (t *Tap) OnUpdate(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.notify = fn
}

// OpenChannel opens the channel on the wrapped manager with a counting handler.
func (t *Tap) OpenChannel(params stride.ChannelParams, handler stride.ChannelHandler) error {
	return t.next.OpenChannel(params, &tappedHandler{tap: t, next: handler, deviceType: params.DeviceType})
}

// Pages returns the counters keyed by page name.
func (t *Tap) Pages() map[string]PageStat {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make(map[string]PageStat, len(t.pages))
	for page, stat := range t.pages {
		out[stride.PageName(page)] = *stat
	}
	return out
}

// Messages returns the number of well-formed messages seen.
func (t *Tap) Messages() uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.messages
}

func (t *Tap) observe(raw []byte) {
	frame, err := stride.ParseFrame(raw)
	if err != nil {
		return
	}

	t.mu.Lock()
	t.messages++
	stat, ok := t.pages[frame.PageNumber()]
	if !ok {
		stat = &PageStat{}
		t.pages[frame.PageNumber()] = stat
	}
	stat.Count++
	stat.LastSeen = time.Now()
	recorder, id := t.recorder, t.id
	t.mu.Unlock()

	if recorder != nil {
		if err := recorder.WriteMessage(capture.NewMessage(frame, id)); err != nil {
			logging.Warn("Failed to record message", zap.Error(err))
		}
	}
}

func (t *Tap) paired(id capture.ChannelID) {
	t.mu.Lock()
	t.id = &id
	t.mu.Unlock()
}

func (t *Tap) fire() {
	t.mu.Lock()
	fn := t.notify
	t.mu.Unlock()
	if fn != nil {
		fn()
	}
}

type tappedHandler struct {
	tap        *Tap
	next       stride.ChannelHandler
	deviceType byte
}

func (h *tappedHandler) OnMessage(raw []byte) {
	h.next.OnMessage(raw)
	h.tap.observe(raw)
	h.tap.fire()
}

func (h *tappedHandler) DeviceFound(deviceNumber uint16, transmissionType uint8) {
	h.tap.paired(capture.ChannelID{
		DeviceNumber:     deviceNumber,
		DeviceType:       h.deviceType,
		TransmissionType: transmissionType,
	})
	h.next.DeviceFound(deviceNumber, transmissionType)
	h.tap.fire()
}
