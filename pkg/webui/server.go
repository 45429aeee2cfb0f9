// Package webui provides an optional live dashboard for a running goose
// Attack: a JSON snapshot endpoint and a websocket stream that pushes
// the same running report the console prints, on the same 15-second
// cadence. Grounded on the teacher's cmd/announce-webui-simple, which
// used the same gorilla/mux + gorilla/websocket pairing for a live web
// UI over a background data source.
package webui

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"github.com/LionsAd/goose/pkg/logging"
)

// StatsSnapshot is the small, dashboard-facing projection of a running
// attack's state. The caller (the Supervisor) is responsible for
// periodically pushing updated snapshots via Server.Broadcast.
type StatsSnapshot struct {
	RunningSeconds int64          `json:"running_seconds"`
	UsersStarted   int            `json:"users_started"`
	RunningReport  string         `json:"running_report"`
	Endpoints      map[string]any `json:"endpoints,omitempty"`
}

// Server is the Dashboard's HTTP server: one /stats JSON endpoint and one
// /ws websocket endpoint that broadcasts every snapshot pushed via
// Broadcast to all currently connected clients.
type Server struct {
	router   *mux.Router
	upgrader websocket.Upgrader

	mu      sync.RWMutex
	latest  *StatsSnapshot
	clients map[*websocket.Conn]chan *StatsSnapshot

	logger *logging.Logger
}

// NewServer builds a Dashboard server with its routes registered, ready
// for http.Serve.
func NewServer() *Server {
	s := &Server{
		router: mux.NewRouter(),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		clients: make(map[*websocket.Conn]chan *StatsSnapshot),
		logger:  logging.GetGlobalLogger().WithComponent("webui"),
	}
	s.router.HandleFunc("/stats", s.handleStats).Methods(http.MethodGet)
	s.router.HandleFunc("/ws", s.handleWS)
	return s
}

// Handler returns the server's http.Handler for embedding in a custom
// *http.Server, or for ListenAndServe directly.
func (s *Server) Handler() http.Handler { return s.router }

// Broadcast pushes a new snapshot to every connected websocket client and
// stores it as the latest snapshot served by /stats.
func (s *Server) Broadcast(snap *StatsSnapshot) {
	s.mu.Lock()
	s.latest = snap
	clients := make([]chan *StatsSnapshot, 0, len(s.clients))
	for _, ch := range s.clients {
		clients = append(clients, ch)
	}
	s.mu.Unlock()

	for _, ch := range clients {
		select {
		case ch <- snap:
		default:
			// slow client: drop this update rather than block the broadcaster
		}
	}
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	snap := s.latest
	s.mu.RUnlock()

	w.Header().Set("Content-Type", "application/json")
	if snap == nil {
		snap = &StatsSnapshot{}
	}
	json.NewEncoder(w).Encode(snap)
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warnf("websocket upgrade failed: %v", err)
		return
	}

	ch := make(chan *StatsSnapshot, 8)
	s.mu.Lock()
	s.clients[conn] = ch
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		delete(s.clients, conn)
		s.mu.Unlock()
		conn.Close()
	}()

	for snap := range ch {
		if err := conn.WriteJSON(snap); err != nil {
			return
		}
	}
}

// ListenAndServe runs the Dashboard until ctx is cancelled. host may be
// empty, meaning "listen on all interfaces".
func (s *Server) ListenAndServe(ctx context.Context, host string, port int) error {
	addr := fmt.Sprintf("%s:%d", host, port)
	srv := &http.Server{Addr: addr, Handler: s.router}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Infof("dashboard listening on %s", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}
