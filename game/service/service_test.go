package service

import (
	"context"
	"path/filepath"
	"testing"

	"go.uber.org/zap"

	"ticarena/game/presence"
	"ticarena/game/session"
)

func newTestService(t *testing.T) GameService {
	t.Helper()
	store := session.NewFileStore(filepath.Join(t.TempDir(), "state.json"))
	return New(session.New(store, presence.DefaultPolicy(), zap.NewNop()))
}

func TestRegisterEnvelope(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	res, err := svc.Register(ctx, "alice")
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if res.Status != "OK" || res.PlayerID != "alice" {
		t.Errorf("result = %+v", res)
	}
}

func TestFullFlowThroughService(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	for _, id := range []string{"alice", "bob"} {
		if _, err := svc.Register(ctx, id); err != nil {
			t.Fatalf("Register(%s): %v", id, err)
		}
	}

	created, err := svc.CreateGame(ctx, "alice")
	if err != nil {
		t.Fatalf("CreateGame: %v", err)
	}

	joined, err := svc.JoinGame(ctx, "bob", created.GameID)
	if err != nil {
		t.Fatalf("JoinGame: %v", err)
	}
	if joined.GameState.GameStatus != session.StatusPlaying {
		t.Errorf("status after join = %q", joined.GameState.GameStatus)
	}
	if joined.GameState.CurrentTurn != "alice" {
		t.Errorf("current turn = %q, want alice", joined.GameState.CurrentTurn)
	}

	moved, err := svc.MakeMove(ctx, "alice", 0, 0)
	if err != nil {
		t.Fatalf("MakeMove: %v", err)
	}
	if moved.Message != "Move made" || moved.GameState.CurrentTurn != "bob" {
		t.Errorf("move result = %+v", moved)
	}

	games, err := svc.AvailableGames(ctx)
	if err != nil {
		t.Fatalf("AvailableGames: %v", err)
	}
	if len(games.AvailableGames) != 1 || games.AvailableGames[0].GameID != created.GameID {
		t.Errorf("listing = %+v", games.AvailableGames)
	}

	leave, err := svc.Leave(ctx, "bob")
	if err != nil {
		t.Fatalf("Leave: %v", err)
	}
	if leave.Status != "OK" {
		t.Errorf("leave envelope = %+v", leave)
	}

	history, err := svc.History(ctx, "alice")
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(history.History) != 1 || history.History[0].Reason != session.ReasonForfeit {
		t.Errorf("history = %+v", history.History)
	}
}

func TestServiceErrorsCarryKinds(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	_, err := svc.CreateGame(ctx, "ghost")
	if kind, ok := session.KindOf(err); !ok || kind != session.KindNotRegistered {
		t.Errorf("CreateGame error = %v", err)
	}

	_, err = svc.GameState(ctx, "ghost")
	if kind, ok := session.KindOf(err); !ok || kind != session.KindNotRegistered {
		t.Errorf("GameState error = %v", err)
	}
}
