package feed

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/muurk/maxcul/internal/logging"
)

// Path is where the websocket feed is served.
const Path = "/ws"

// ShutdownTimeout bounds a graceful shutdown.
const ShutdownTimeout = 5 * time.Second

// Server serves a Hub over HTTP.
type Server struct {
	hub      *Hub
	addr     string
	mu       sync.Mutex
	listener net.Listener
	http     *http.Server
}

// NewServer creates a server listening on addr (e.g. ":8089").
func NewServer(addr string, hub *Hub) *Server {
	mux := http.NewServeMux()
	mux.Handle(Path, hub)
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		_, _ = fmt.Fprintf(w, "ok %d clients\n", hub.Clients())
	})

	return &Server{
		hub:  hub,
		addr: addr,
		http: &http.Server{
			Handler:           mux,
			ReadHeaderTimeout: 10 * time.Second,
		},
	}
}

// Listen binds the listening socket.
func (s *Server) Listen() error {
	listener, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.addr, err)
	}
	s.mu.Lock()
	s.listener = listener
	s.mu.Unlock()
	logging.Info("Feed listening", zap.String("addr", listener.Addr().String()), zap.String("path", Path))
	return nil
}

// Port returns the bound port, or 0 before Listen.
func (s *Server) Port() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return 0
	}
	if addr, ok := s.listener.Addr().(*net.TCPAddr); ok {
		return addr.Port
	}
	return 0
}

// Serve serves until ctx is done, then shuts down gracefully. Listen must
// have succeeded.
func (s *Server) Serve(ctx context.Context) error {
	s.mu.Lock()
	listener := s.listener
	s.mu.Unlock()
	if listener == nil {
		return errors.New("feed server not listening")
	}

	errChan := make(chan error, 1)
	go func() {
		errChan <- s.http.Serve(listener)
	}()

	select {
	case err := <-errChan:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		return s.Shutdown()
	}
}

// Shutdown stops accepting clients and disconnects the connected ones.
func (s *Server) Shutdown() error {
	logging.Info("Shutting down feed...")

	// Hijacked websocket connections are not tracked by http.Server
	s.hub.Close()

	ctx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
	defer cancel()
	if err := s.http.Shutdown(ctx); err != nil {
		logging.Warn("Feed shutdown timeout, forcing close", zap.Error(err))
		return s.http.Close()
	}
	return nil
}
