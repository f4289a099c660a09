package capture

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/google/gopacket"
	"go.uber.org/zap"

	"github.com/muurk/antstride/internal/logging"
	"github.com/muurk/antstride/internal/stride"
)

var (
	// ErrChannelOpen is returned when OpenChannel is called twice.
	ErrChannelOpen = errors.New("replay channel already open")
	// ErrChannelNotOpen is returned when Run is called before OpenChannel.
	ErrChannelNotOpen = errors.New("replay channel not open")
	// ErrDeviceNotFound is returned when the capture ends without a single
	// message for the requested device.
	ErrDeviceNotFound = errors.New("no matching device in capture")
)

// Stats counts what happened to the messages of a capture
type Stats struct {
	Read      int `json:"read"`
	Forwarded int `json:"forwarded"`
	Filtered  int `json:"filtered"`
	Malformed int `json:"malformed"`
}

// Option configures a Replayer
type Option func(*Replayer)

// WithInterval sets the delay between forwarded messages. Zero replays as
// fast as the handler consumes them.
func WithInterval(d time.Duration) Option {
	return func(r *Replayer) {
		r.interval = d
		r.intervalSet = true
	}
}

// Replayer is a stride.ChannelManager that plays a capture into the handler
// of the channel it opens. Messages without a channel ID are assumed to come
// from the device being searched for.
type Replayer struct {
	source      gopacket.PacketDataSource
	interval    time.Duration
	intervalSet bool

	mu      sync.Mutex
	params  stride.ChannelParams
	handler stride.ChannelHandler
	stats   Stats
}

var _ stride.ChannelManager = (*Replayer)(nil)

// NewReplayer creates a replayer reading from source. By default messages
// are paced at the channel period requested in OpenChannel.
func NewReplayer(source gopacket.PacketDataSource, opts ...Option) *Replayer {
	r := &Replayer{source: source}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// OpenChannel records the channel configuration. Delivery starts with Run.
func (r *Replayer) OpenChannel(params stride.ChannelParams, handler stride.ChannelHandler) error {
	if handler == nil {
		return fmt.Errorf("open channel: nil handler")
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.handler != nil {
		return ErrChannelOpen
	}
	r.params = params
	r.handler = handler
	if !r.intervalSet {
		r.interval = params.PeriodDuration()
	}

	logging.Debug("Replay channel opened", zap.Stringer("params", params), zap.Duration("interval", r.interval))
	return nil
}

// skipCounter is implemented by sources that drop unreadable input before
// it becomes a packet, such as Reader.
type skipCounter interface {
	Skipped() int
}

// Stats returns a copy of the counters. Input the source skipped counts as
// read and malformed.
func (r *Replayer) Stats() Stats {
	r.mu.Lock()
	stats := r.stats
	r.mu.Unlock()

	if sc, ok := r.source.(skipCounter); ok {
		n := sc.Skipped()
		stats.Read += n
		stats.Malformed += n
	}
	return stats
}

// Run plays the capture until it ends or ctx is cancelled.
func (r *Replayer) Run(ctx context.Context) error {
	r.mu.Lock()
	params, handler, interval := r.params, r.handler, r.interval
	r.mu.Unlock()
	if handler == nil {
		return ErrChannelNotOpen
	}

	source := gopacket.NewPacketSource(r.source, LayerTypeANTMessage)
	source.NoCopy = true

	var ticker *time.Ticker
	if interval > 0 {
		ticker = time.NewTicker(interval)
		defer ticker.Stop()
	}

	search := &search{params: params, handler: handler}
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		packet, err := source.NextPacket()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return fmt.Errorf("failed to replay capture: %w", err)
		}
		r.count(func(s *Stats) { s.Read++ })

		msg, ok := packet.Layer(LayerTypeANTMessage).(*ANTMessage)
		if !ok {
			line, _ := LineNumber(packet)
			logging.Debug("Skipping malformed message", zap.Int("line", line), zap.Error(packetError(packet)))
			r.count(func(s *Stats) { s.Malformed++ })
			continue
		}
		if !search.accept(msg) {
			r.count(func(s *Stats) { s.Filtered++ })
			continue
		}

		if ticker != nil {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-ticker.C:
			}
		}

		frame := msg.ChannelMessage()
		logging.LogFrame("replay", frame)
		handler.OnMessage(frame)
		r.count(func(s *Stats) { s.Forwarded++ })
	}

	stats := r.Stats()
	logging.Info("Replay finished",
		zap.Int("read", stats.Read),
		zap.Int("forwarded", stats.Forwarded),
		zap.Int("filtered", stats.Filtered),
		zap.Int("malformed", stats.Malformed),
	)
	if stats.Forwarded == 0 {
		return ErrDeviceNotFound
	}
	return nil
}

func (r *Replayer) count(update func(*Stats)) {
	r.mu.Lock()
	update(&r.stats)
	r.mu.Unlock()
}

func packetError(packet gopacket.Packet) error {
	if el := packet.ErrorLayer(); el != nil {
		return el.Error()
	}
	return errors.New("no ANT message layer")
}

// search emulates the channel search: it locks onto the first device that
// matches the channel parameters and drops everything else afterwards.
type search struct {
	params  stride.ChannelParams
	handler stride.ChannelHandler
	paired  bool
	id      ChannelID
}

func (s *search) accept(msg *ANTMessage) bool {
	if s.paired {
		return !msg.Extended || msg.ID == s.id
	}

	if msg.Extended {
		if !s.params.Matches(msg.ID.DeviceNumber, msg.ID.DeviceType, msg.ID.TransmissionType) {
			return false
		}
		s.pair(msg.ID)
		return true
	}

	// Without a channel ID the identity can only be taken from the channel
	// parameters, and only when they name one device completely.
	if s.params.DeviceNumber != stride.WildcardDeviceNumber && s.params.TransmissionType != 0 {
		s.pair(ChannelID{
			DeviceNumber:     s.params.DeviceNumber,
			DeviceType:       s.params.DeviceType,
			TransmissionType: s.params.TransmissionType,
		})
	}
	return true
}

func (s *search) pair(id ChannelID) {
	s.paired = true
	s.id = id
	s.handler.DeviceFound(id.DeviceNumber, id.TransmissionType)
}
