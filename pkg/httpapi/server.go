// Package httpapi exposes the daemon's state over HTTP: a health probe, a
// JSON snapshot of the current sample and verdict, and a websocket stream
// that pushes every new sample to connected clients.
package httpapi

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"os"
	"sync"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"github.com/joshwalawender/AAGonRPi/pkg/store"
	"github.com/joshwalawender/AAGonRPi/pkg/weather"
)

// Config holds the listen address. The server is optional.
type Config struct {
	Enabled bool
	Bind    string
}

var upgrader = websocket.Upgrader{} // default options

// Server serves status requests and fans new samples out to websocket
// clients.
type Server struct {
	store store.Store
	http  *http.Server

	mu      sync.Mutex
	clients []*websocket.Conn
}

// New builds the router and server.
func New(cfg Config, st store.Store) *Server {
	s := &Server{store: st}

	r := mux.NewRouter()
	r.HandleFunc("/health", s.getHealth).Methods("GET")
	r.HandleFunc("/status", s.getStatus).Methods("GET")
	r.HandleFunc("/ws", s.clientStream)

	s.http = &http.Server{
		Addr:    cfg.Bind,
		Handler: handlers.CombinedLoggingHandler(os.Stdout, r),
	}
	return s
}

// Start blocks on the listener.
func (s *Server) Start() error {
	log.Printf("HTTP server listening on %s", s.http.Addr)
	return s.http.ListenAndServe()
}

// Stop shuts the server down gracefully.
func (s *Server) Stop(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}

func (s *Server) getHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

func (s *Server) getStatus(w http.ResponseWriter, r *http.Request) {
	current, err := s.store.Current()
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(err.Error()))
		return
	}
	if current == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(current)
}

// clientStream upgrades the connection, replays the current sample, and
// registers the client for future broadcasts.
func (s *Server) clientStream(w http.ResponseWriter, r *http.Request) {
	c, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("upgrade failure: %v", err)
		return
	}

	if current, err := s.store.Current(); err == nil && current != nil {
		if err := c.WriteJSON(current); err != nil {
			c.Close()
			return
		}
	}

	s.mu.Lock()
	s.clients = append(s.clients, c)
	s.mu.Unlock()
}

// Broadcast pushes a sample to every connected websocket client, dropping
// clients whose writes fail.
func (s *Server) Broadcast(sample weather.Sample) {
	s.mu.Lock()
	defer s.mu.Unlock()

	alive := s.clients[:0]
	for _, c := range s.clients {
		if err := c.WriteJSON(sample); err != nil {
			c.Close()
			continue
		}
		alive = append(alive, c)
	}
	s.clients = alive
}
