package api

import (
	"encoding/json"
	"net/http"
	"sort"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"ticarena/game/presence"
	"ticarena/game/session"
	"ticarena/transport/websocket"
)

// Server is the admin HTTP server. It reads engine snapshots and hands
// observer sockets to the hub; all game mutations stay on the wire
// protocol.
type Server struct {
	engine  *session.Engine
	hub     *websocket.Hub
	router  *mux.Router
	log     *zap.Logger
	started time.Time
}

// NewServer builds the admin surface. hub may be nil; the /ws route
// then answers 503.
func NewServer(engine *session.Engine, hub *websocket.Hub, log *zap.Logger) *Server {
	s := &Server{
		engine:  engine,
		hub:     hub,
		router:  mux.NewRouter(),
		log:     log,
		started: time.Now(),
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	api := s.router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/health", s.handleHealth).Methods("GET")
	api.HandleFunc("/games", s.handleListGames).Methods("GET")
	api.HandleFunc("/games/{id}", s.handleGetGame).Methods("GET")
	api.HandleFunc("/players", s.handleListPlayers).Methods("GET")

	s.router.HandleFunc("/ws", s.handleWebSocket)
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	games := s.engine.Games()
	players := s.engine.Players()

	online := 0
	for _, p := range players {
		if p.ConnectionStatus == presence.Online {
			online++
		}
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"status":         "ok",
		"uptime_seconds": int(time.Since(s.started).Seconds()),
		"games":          len(games),
		"players":        len(players),
		"players_online": online,
	})
}

// gameRow is one game in the admin listing.
type gameRow struct {
	GameID string `json:"game_id"`
	session.Game
}

func (s *Server) handleListGames(w http.ResponseWriter, r *http.Request) {
	games := s.engine.Games()

	rows := make([]gameRow, 0, len(games))
	for id, g := range games {
		rows = append(rows, gameRow{GameID: id, Game: g})
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].GameID < rows[j].GameID })

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"count": len(rows),
		"games": rows,
	})
}

func (s *Server) handleGetGame(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	g, ok := s.engine.Games()[id]
	if !ok {
		respondError(w, http.StatusNotFound, "unknown game")
		return
	}
	respondJSON(w, http.StatusOK, gameRow{GameID: id, Game: g})
}

// playerRow is one player in the admin listing.
type playerRow struct {
	PlayerID string `json:"player_id"`
	session.Player
}

func (s *Server) handleListPlayers(w http.ResponseWriter, r *http.Request) {
	players := s.engine.Players()

	rows := make([]playerRow, 0, len(players))
	for id, p := range players {
		rows = append(rows, playerRow{PlayerID: id, Player: p})
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].PlayerID < rows[j].PlayerID })

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"count":   len(rows),
		"players": rows,
	})
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	gameID := r.URL.Query().Get("game")
	if gameID == "" {
		http.Error(w, "game parameter required", http.StatusBadRequest)
		return
	}
	if s.hub == nil {
		http.Error(w, "observer hub disabled", http.StatusServiceUnavailable)
		return
	}
	if _, ok := s.engine.Games()[gameID]; !ok {
		http.Error(w, "unknown game", http.StatusNotFound)
		return
	}
	s.hub.ServeWS(w, r, gameID)
}
