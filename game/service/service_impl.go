package service

import (
	"context"

	"ticarena/game/session"
)

// gameService implements GameService over a session engine. The engine's
// own lock makes every call atomic; this layer only shapes replies.
type gameService struct {
	engine *session.Engine
}

// New wraps the session engine in the GameService interface.
func New(engine *session.Engine) GameService {
	return &gameService{engine: engine}
}

func (s *gameService) Register(ctx context.Context, playerID string) (*RegisterResult, error) {
	if err := s.engine.Register(playerID); err != nil {
		return nil, err
	}
	return &RegisterResult{Envelope: OK("Player registered"), PlayerID: playerID}, nil
}

func (s *gameService) CreateGame(ctx context.Context, playerID string) (*CreateResult, error) {
	gameID, err := s.engine.CreateGame(playerID)
	if err != nil {
		return nil, err
	}
	return &CreateResult{Envelope: OK("Game created"), GameID: gameID}, nil
}

func (s *gameService) JoinGame(ctx context.Context, playerID, gameID string) (*StateResult, error) {
	state, err := s.engine.JoinGame(playerID, gameID)
	if err != nil {
		return nil, err
	}
	return &StateResult{Envelope: OK("Joined game"), GameState: state}, nil
}

func (s *gameService) SpectateGame(ctx context.Context, playerID, gameID string) (*StateResult, error) {
	state, err := s.engine.SpectateGame(playerID, gameID)
	if err != nil {
		return nil, err
	}
	return &StateResult{Envelope: OK("Now spectating game"), GameState: state}, nil
}

func (s *gameService) MakeMove(ctx context.Context, playerID string, row, col int) (*StateResult, error) {
	state, err := s.engine.MakeMove(playerID, row, col)
	if err != nil {
		return nil, err
	}
	return &StateResult{Envelope: OK("Move made"), GameState: state}, nil
}

func (s *gameService) AvailableGames(ctx context.Context) (*GamesResult, error) {
	return &GamesResult{
		Envelope:       Envelope{Status: "OK"},
		AvailableGames: s.engine.AvailableGames(),
	}, nil
}

func (s *gameService) GameState(ctx context.Context, playerID string) (*StateResult, error) {
	state, err := s.engine.State(playerID)
	if err != nil {
		return nil, err
	}
	return &StateResult{Envelope: Envelope{Status: "OK"}, GameState: state}, nil
}

func (s *gameService) History(ctx context.Context, playerID string) (*HistoryResult, error) {
	history, err := s.engine.History(playerID)
	if err != nil {
		return nil, err
	}
	return &HistoryResult{Envelope: Envelope{Status: "OK"}, History: history}, nil
}

func (s *gameService) Leave(ctx context.Context, playerID string) (*Envelope, error) {
	if err := s.engine.Leave(playerID); err != nil {
		return nil, err
	}
	env := OK("You have left the game")
	return &env, nil
}
