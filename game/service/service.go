package service

import (
	"context"

	"ticarena/game/session"
)

// GameService exposes every game operation. All methods return either a
// typed success payload or a *session.Error carrying the failure kind.
type GameService interface {
	Register(ctx context.Context, playerID string) (*RegisterResult, error)
	CreateGame(ctx context.Context, playerID string) (*CreateResult, error)
	JoinGame(ctx context.Context, playerID, gameID string) (*StateResult, error)
	SpectateGame(ctx context.Context, playerID, gameID string) (*StateResult, error)
	MakeMove(ctx context.Context, playerID string, row, col int) (*StateResult, error)
	AvailableGames(ctx context.Context) (*GamesResult, error)
	GameState(ctx context.Context, playerID string) (*StateResult, error)
	History(ctx context.Context, playerID string) (*HistoryResult, error)
	Leave(ctx context.Context, playerID string) (*Envelope, error)
}

// Envelope is the common reply header. Status is "OK" on success and
// "ERROR" on structured failures.
type Envelope struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

// OK builds a success envelope.
func OK(message string) Envelope {
	return Envelope{Status: "OK", Message: message}
}

// ErrorReply builds the reply body for a failed operation.
func ErrorReply(message string) Envelope {
	return Envelope{Status: "ERROR", Message: message}
}

// RegisterResult answers POST /player/{id}.
type RegisterResult struct {
	Envelope
	PlayerID string `json:"player_id"`
}

// CreateResult answers POST /game/create/{id}.
type CreateResult struct {
	Envelope
	GameID string `json:"game_id"`
}

// StateResult answers join, spectate, move, and state calls.
type StateResult struct {
	Envelope
	GameState *session.GameState `json:"game_state"`
}

// GamesResult answers GET /games.
type GamesResult struct {
	Envelope
	AvailableGames []session.GameSummary `json:"available_games"`
}

// HistoryResult answers GET /history/{id}.
type HistoryResult struct {
	Envelope
	History []session.HistoryEntry `json:"history"`
}
