// Package remote exposes transport control over websockets so a phone or
// another machine can start and stop the metronome.
package remote

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

// Transport is the part of the scheduler the remote can drive
type Transport interface {
	Start() error
	Stop()
	IsRunning() bool
	SetTempo(bpm float64) error
	Tempo() float64
	SetVolume(level float64)
	Volume() float64
	Position() float64
	Err() error
}

// Status is the snapshot streamed on /status and returned after each command
type Status struct {
	Running  bool    `json:"running"`
	Tempo    float64 `json:"tempo"`
	Volume   float64 `json:"volume"`
	Position float64 `json:"position"`
	Error    string  `json:"error,omitempty"`
}

// Command is a control message: {"cmd":"tempo","value":140}
type Command struct {
	Cmd   string   `json:"cmd"`
	Value *float64 `json:"value,omitempty"`
}

// Reply answers a command
type Reply struct {
	OK     bool   `json:"ok"`
	Error  string `json:"error,omitempty"`
	Status Status `json:"status"`
}

var ErrMissingValue = errors.New("command needs a value")

// DefaultInterval is how often /status clients get a snapshot
const DefaultInterval = 100 * time.Millisecond

type Server struct {
	t        Transport
	interval time.Duration
	up       websocket.Upgrader

	mu        sync.Mutex
	clients   map[*websocket.Conn]bool
	startTime time.Time

	// OnCommand, if set, runs after every applied command
	OnCommand func(Command)
}

func NewServer(t Transport) *Server {
	return &Server{
		t:         t,
		interval:  DefaultInterval,
		up:        websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }},
		clients:   map[*websocket.Conn]bool{},
		startTime: time.Now(),
	}
}

// Handler routes /control, /status and /health
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/control", s.HandleControlWS)
	mux.HandleFunc("/status", s.HandleStatusWS)
	mux.HandleFunc("/health", s.HandleHealth)
	return mux
}

// ListenAndServe serves on addr until ctx is cancelled
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go s.Run(ctx)
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	log.Info().Str("addr", addr).Msg("remote control listening")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Run broadcasts status snapshots until ctx is cancelled
func (s *Server) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			s.closeClients()
			return
		case <-ticker.C:
			s.broadcast()
		}
	}
}

func (s *Server) HandleControlWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.up.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		var cmd Command
		reply := Reply{OK: true}
		if err := json.Unmarshal(data, &cmd); err != nil {
			reply = Reply{Error: "bad command: " + err.Error()}
		} else if err := s.apply(cmd); err != nil {
			reply = Reply{Error: err.Error()}
		}
		reply.Status = s.status()

		b, _ := json.Marshal(reply)
		conn.SetWriteDeadline(time.Now().Add(200 * time.Millisecond))
		if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
			return
		}
	}
}

func (s *Server) HandleStatusWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.up.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	b, _ := json.Marshal(s.status())

	s.mu.Lock()
	s.clients[conn] = true
	conn.SetWriteDeadline(time.Now().Add(200 * time.Millisecond))
	_ = conn.WriteMessage(websocket.TextMessage, b)
	s.mu.Unlock()

	go func() {
		defer func() {
			s.mu.Lock()
			delete(s.clients, conn)
			s.mu.Unlock()
			conn.Close()
		}()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

func (s *Server) HandleHealth(w http.ResponseWriter, r *http.Request) {
	st := s.status()
	resp := map[string]any{
		"ok":       st.Error == "",
		"uptime_s": time.Since(s.startTime).Seconds(),
		"running":  st.Running,
		"tempo":    st.Tempo,
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}

func (s *Server) apply(cmd Command) error {
	switch cmd.Cmd {
	case "start":
		if err := s.t.Start(); err != nil {
			return err
		}
	case "stop":
		s.t.Stop()
	case "toggle":
		if s.t.IsRunning() {
			s.t.Stop()
		} else if err := s.t.Start(); err != nil {
			return err
		}
	case "tempo":
		if cmd.Value == nil {
			return fmt.Errorf("tempo: %w", ErrMissingValue)
		}
		if err := s.t.SetTempo(*cmd.Value); err != nil {
			return err
		}
	case "volume":
		if cmd.Value == nil {
			return fmt.Errorf("volume: %w", ErrMissingValue)
		}
		s.t.SetVolume(*cmd.Value)
	case "status":
		return nil
	default:
		return fmt.Errorf("unknown command %q", cmd.Cmd)
	}

	log.Info().Str("cmd", cmd.Cmd).Msg("remote command")
	if s.OnCommand != nil {
		s.OnCommand(cmd)
	}
	return nil
}

func (s *Server) status() Status {
	st := Status{
		Running:  s.t.IsRunning(),
		Tempo:    s.t.Tempo(),
		Volume:   s.t.Volume(),
		Position: s.t.Position(),
	}
	if err := s.t.Err(); err != nil {
		st.Error = err.Error()
	}
	return st
}

func (s *Server) broadcast() {
	b, _ := json.Marshal(s.status())

	s.mu.Lock()
	defer s.mu.Unlock()
	for c := range s.clients {
		c.SetWriteDeadline(time.Now().Add(200 * time.Millisecond))
		if err := c.WriteMessage(websocket.TextMessage, b); err != nil {
			log.Debug().Err(err).Msg("write status")
		}
	}
}

func (s *Server) closeClients() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for c := range s.clients {
		c.Close()
	}
}
