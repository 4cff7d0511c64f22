package session

import (
	"time"

	"ticarena/game/engine"
	"ticarena/game/presence"
)

// GameStatus is the lifecycle phase of a game.
type GameStatus string

const (
	StatusWaiting      GameStatus = "waiting"
	StatusPlaying      GameStatus = "playing"
	StatusDisconnected GameStatus = "disconnected"
	StatusFinished     GameStatus = "finished"
)

// WinnerDraw is stored in Game.Winner and HistoryEntry.Winner when a full
// board produced no line.
const WinnerDraw = "draw"

// History end reasons.
const (
	ReasonWin        = "win"
	ReasonDraw       = "draw"
	ReasonForfeit    = "forfeit"
	ReasonDisconnect = "disconnect"
)

// Player is one registered identity. Players are never deleted so history
// stays attributable.
type Player struct {
	GameID           string          `json:"game_id"`
	Symbol           engine.Mark     `json:"symbol"`
	LastSeen         time.Time       `json:"last_seen"`
	ConnectionStatus presence.Status `json:"connection_status"`
}

// Game is one session from creation to finished. The player order defines
// turn rotation: Players[TurnIndex] moves next.
type Game struct {
	Board      engine.Board           `json:"board"`
	Players    []string               `json:"players"`
	Spectators []string               `json:"spectators"`
	TurnIndex  int                    `json:"current_turn_idx"`
	Status     GameStatus             `json:"status"`
	Winner     string                 `json:"winner"`
	Symbols    map[string]engine.Mark `json:"symbols"`
}

// HistoryEntry is the immutable record appended to every participant's and
// spectator's history when a game ends.
type HistoryEntry struct {
	GameID  string                 `json:"game_id"`
	Players []string               `json:"players"`
	Winner  string                 `json:"winner"`
	Date    time.Time              `json:"date"`
	Symbols map[string]engine.Mark `json:"symbols"`
	Reason  string                 `json:"reason"`
}

// State is the full persisted engine state. It is serialized wholesale to
// the Store after every mutation.
type State struct {
	Games   map[string]*Game          `json:"games"`
	Players map[string]*Player        `json:"players"`
	History map[string][]HistoryEntry `json:"game_history"`
}

// NewState returns an empty state with all maps allocated.
func NewState() *State {
	return &State{
		Games:   make(map[string]*Game),
		Players: make(map[string]*Player),
		History: make(map[string][]HistoryEntry),
	}
}

// normalize repairs a freshly decoded snapshot: nil maps, zero board cells,
// and players saved before connection status existed.
func (s *State) normalize() {
	if s.Games == nil {
		s.Games = make(map[string]*Game)
	}
	if s.Players == nil {
		s.Players = make(map[string]*Player)
	}
	if s.History == nil {
		s.History = make(map[string][]HistoryEntry)
	}
	for _, g := range s.Games {
		g.Board.Normalize()
		if g.Symbols == nil {
			g.Symbols = make(map[string]engine.Mark)
		}
	}
	for _, p := range s.Players {
		if p.ConnectionStatus == "" {
			p.ConnectionStatus = presence.Offline
		}
	}
}

// GameSummary is one row of the available-games listing.
type GameSummary struct {
	GameID    string     `json:"game_id"`
	CreatedBy string     `json:"created_by"`
	Status    GameStatus `json:"status"`
}

// GameState is the per-caller view of a game returned by join, spectate,
// move, and state calls. PlayerStatuses covers participants only; it is how
// a client notices an opponent going quiet without a separate call.
type GameState struct {
	Board          engine.Board               `json:"board"`
	GameStatus     GameStatus                 `json:"game_status"`
	CurrentTurn    string                     `json:"current_turn"`
	Winner         string                     `json:"winner"`
	YourSymbol     engine.Mark                `json:"your_symbol"`
	Players        []string                   `json:"players"`
	Symbols        map[string]engine.Mark     `json:"symbols"`
	PlayerStatuses map[string]presence.Status `json:"player_statuses"`
}
