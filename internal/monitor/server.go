package monitor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zapio"

	"github.com/muurk/antstride/internal/logging"
	"github.com/muurk/antstride/internal/stride"
)

// DefaultPort is where the monitor listens unless configured otherwise
const DefaultPort = 8457

// Reading is what the monitor publishes for its decoder
type Reading struct {
	Paired    bool                             `json:"paired"`
	Device    stride.Optional[stride.Identity] `json:"device"`
	State     stride.State                     `json:"state"`
	Messages  uint64                           `json:"messages"`
	UpdatedAt time.Time                        `json:"updated_at"`
}

// Config holds the server configuration
type Config struct {
	Host string
	Port int
}

// Addr returns host:port.
func (c *Config) Addr() string {
	return net.JoinHostPort(c.Host, fmt.Sprint(c.Port))
}

// Server serves one decoder over HTTP and websocket
type Server struct {
	config  *Config
	decoder *stride.Decoder
	tap     *Tap
	hub     *hub
	handler http.Handler

	upgrader websocket.Upgrader

	mu        sync.Mutex
	last      stride.Snapshot
	updatedAt time.Time
}

// New creates a server for decoder. tap must be the channel manager the
// decoder was started on; it drives publishing.
func New(config *Config, decoder *stride.Decoder, tap *Tap) *Server {
	s := &Server{
		config:  config,
		decoder: decoder,
		tap:     tap,
		hub:     newHub(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		updatedAt: time.Now(),
	}
	tap.OnUpdate(s.publish)
	s.handler = s.routes()
	return s
}

func (s *Server) routes() http.Handler {
	router := mux.NewRouter()
	api := router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/device", s.handleDevice()).Methods(http.MethodGet)
	api.HandleFunc("/pages", s.handlePages()).Methods(http.MethodGet)
	router.HandleFunc("/ws", s.handleWebSocket()).Methods(http.MethodGet)

	cors := handlers.CORS(
		handlers.AllowedOrigins([]string{"*"}),
		handlers.AllowedMethods([]string{http.MethodGet, http.MethodOptions}),
	)
	access := &zapio.Writer{Log: logging.GetLogger().Named("http"), Level: zapcore.DebugLevel}
	return handlers.LoggingHandler(access, cors(router))
}

// Handler returns the HTTP handler with all routes and middleware.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Reading returns the current reading.
func (s *Server) Reading() Reading {
	snap := s.decoder.Snapshot()
	s.mu.Lock()
	updated := s.updatedAt
	s.mu.Unlock()

	return Reading{
		Paired:    snap.Paired(),
		Device:    snap.Device,
		State:     snap.State,
		Messages:  s.tap.Messages(),
		UpdatedAt: updated,
	}
}

// publish pushes a reading to websocket clients when the decoder state has
// changed since the last push.
func (s *Server) publish() {
	snap := s.decoder.Snapshot()

	s.mu.Lock()
	if snap == s.last {
		s.mu.Unlock()
		return
	}
	s.last = snap
	s.updatedAt = time.Now()
	s.mu.Unlock()

	data, err := json.Marshal(s.Reading())
	if err != nil {
		logging.Error("Failed to encode reading", zap.Error(err))
		return
	}
	s.hub.broadcast(data)
}

// Serve accepts connections on ln until ctx is cancelled.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	httpServer := &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	logging.Info("Monitor listening", zap.String("addr", ln.Addr().String()))

	errChan := make(chan error, 1)
	go func() {
		errChan <- httpServer.Serve(ln)
	}()

	select {
	case <-ctx.Done():
		logging.Info("Shutting down monitor")
		s.hub.closeAll()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("failed to shut down monitor: %w", err)
		}
		return nil
	case err := <-errChan:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

// Run listens on the configured address and serves until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.config.Addr())
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.config.Addr(), err)
	}
	return s.Serve(ctx, ln)
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.Debug("Failed to write response", zap.Error(err))
	}
}

func (s *Server) handleDevice() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, s.Reading())
	}
}

func (s *Server) handlePages() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, s.tap.Pages())
	}
}

func (s *Server) handleWebSocket() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := s.upgrader.Upgrade(w, r, nil)
		if err != nil {
			// Upgrade has already replied with an error
			logging.Debug("Websocket upgrade failed", zap.String("remote_addr", r.RemoteAddr), zap.Error(err))
			return
		}
		logging.LogConnection(r.RemoteAddr, "websocket_upgraded")

		initial, err := json.Marshal(s.Reading())
		if err != nil {
			_ = conn.Close()
			return
		}

		c := &wsClient{conn: conn, addr: r.RemoteAddr, send: make(chan []byte, sendBuffer)}
		c.send <- initial
		s.hub.add(c)

		go c.writePump()
		go c.readPump(s.hub)
	}
}
