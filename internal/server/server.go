// internal/server/server.go
//
// State server for display frontends. GET /state returns the execution state
// as JSON; /ws upgrades to a websocket that accepts step/pause/resume/reset
// commands and streams the state back after each one.
package server

import (
	"encoding/json"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"cstep/internal/interp"
)

type Server struct {
	mu     sync.Mutex
	in     *interp.Interpreter
	logger zerolog.Logger

	upgrader websocket.Upgrader
}

func New(in *interp.Interpreter, logger zerolog.Logger) *Server {
	return &Server{
		in:     in,
		logger: logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// the display is served from anywhere during development
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
}

// Handler returns the HTTP mux for the server.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/state", s.handleState)
	mux.HandleFunc("/ws", s.handleWS)
	return mux
}

// ListenAndServe blocks serving on addr.
func (s *Server) ListenAndServe(addr string) error {
	s.logger.Info().Str("addr", addr).Msg("state server listening")
	return http.ListenAndServe(addr, s.Handler())
}

func (s *Server) snapshot() interp.ExecutionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.in.Snapshot()
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(s.snapshot()); err != nil {
		s.logger.Error().Err(err).Msg("encode state")
	}
}

// command is one client message on the websocket.
type command struct {
	Cmd   string `json:"cmd"`
	Count int    `json:"count,omitempty"`
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error().Err(err).Msg("websocket upgrade")
		return
	}
	defer conn.Close()
	s.logger.Info().Str("remote", conn.RemoteAddr().String()).Msg("display connected")

	// initial state so the display can render before the first command
	if err := conn.WriteJSON(s.snapshot()); err != nil {
		return
	}
	for {
		var cmd command
		if err := conn.ReadJSON(&cmd); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.logger.Warn().Err(err).Msg("websocket read")
			}
			return
		}
		s.apply(cmd)
		if err := conn.WriteJSON(s.snapshot()); err != nil {
			s.logger.Warn().Err(err).Msg("websocket write")
			return
		}
	}
}

func (s *Server) apply(cmd command) {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch cmd.Cmd {
	case "step":
		n := cmd.Count
		if n <= 0 {
			n = 1
		}
		for k := 0; k < n; k++ {
			if res := s.in.Step(); res.State == interp.StateDone {
				break
			}
		}
	case "run":
		s.in.Run(interp.ContinueLimit)
	case "pause":
		s.in.Pause()
	case "resume":
		s.in.Resume()
	case "reset":
		s.in.Reset()
	default:
		s.logger.Warn().Str("cmd", cmd.Cmd).Msg("unknown command")
	}
}
