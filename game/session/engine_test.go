package session

import (
	"testing"
	"time"

	"go.uber.org/zap"

	"ticarena/game/engine"
	"ticarena/game/presence"
)

// memStore keeps the snapshot in memory and counts saves.
type memStore struct {
	state *State
	saves int
}

func (m *memStore) Load() (*State, error) {
	if m.state == nil {
		return NewState(), nil
	}
	return m.state, nil
}

func (m *memStore) Save(state *State) error {
	m.state = state
	m.saves++
	return nil
}

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	return New(&memStore{}, presence.DefaultPolicy(), zap.NewNop())
}

func mustRegister(t *testing.T, e *Engine, ids ...string) {
	t.Helper()
	for _, id := range ids {
		if err := e.Register(id); err != nil {
			t.Fatalf("Register(%q): %v", id, err)
		}
	}
}

func startGame(t *testing.T, e *Engine, creator, joiner string) string {
	t.Helper()
	mustRegister(t, e, creator, joiner)
	gameID, err := e.CreateGame(creator)
	if err != nil {
		t.Fatalf("CreateGame(%q): %v", creator, err)
	}
	if _, err := e.JoinGame(joiner, gameID); err != nil {
		t.Fatalf("JoinGame(%q, %q): %v", joiner, gameID, err)
	}
	return gameID
}

func wantKind(t *testing.T, err error, want Kind) {
	t.Helper()
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	kind, ok := KindOf(err)
	if !ok {
		t.Fatalf("error %v carries no kind", err)
	}
	if kind != want {
		t.Errorf("error kind = %v, want %v (message: %s)", kind, want, err)
	}
}

func TestRegisterIsIdempotent(t *testing.T) {
	e := newTestEngine(t)
	mustRegister(t, e, "alice")
	mustRegister(t, e, "alice")

	if n := len(e.state.Players); n != 1 {
		t.Errorf("player count after double register = %d, want 1", n)
	}
}

func TestRegisterRejectsEmptyID(t *testing.T) {
	e := newTestEngine(t)
	wantKind(t, e.Register(""), KindInvalidInput)
}

func TestCreateGame(t *testing.T) {
	e := newTestEngine(t)
	mustRegister(t, e, "alice")

	gameID, err := e.CreateGame("alice")
	if err != nil {
		t.Fatalf("CreateGame: %v", err)
	}
	if len(gameID) != 4 {
		t.Errorf("game id %q, want 4-char token", gameID)
	}

	g := e.state.Games[gameID]
	if g == nil {
		t.Fatal("game not stored")
	}
	if g.Status != StatusWaiting {
		t.Errorf("status = %q, want %q", g.Status, StatusWaiting)
	}
	if g.Symbols["alice"] != engine.X {
		t.Errorf("creator symbol = %q, want %q", g.Symbols["alice"], engine.X)
	}
}

func TestCreateGameErrors(t *testing.T) {
	e := newTestEngine(t)

	_, err := e.CreateGame("ghost")
	wantKind(t, err, KindNotRegistered)

	mustRegister(t, e, "alice")
	if _, err := e.CreateGame("alice"); err != nil {
		t.Fatalf("CreateGame: %v", err)
	}
	_, err = e.CreateGame("alice")
	wantKind(t, err, KindAlreadyInGame)
}

func TestJoinGameStartsPlay(t *testing.T) {
	e := newTestEngine(t)
	gameID := startGame(t, e, "alice", "bob")

	g := e.state.Games[gameID]
	if g.Status != StatusPlaying {
		t.Errorf("status = %q, want %q", g.Status, StatusPlaying)
	}
	if len(g.Players) != 2 || g.Players[0] != "alice" || g.Players[1] != "bob" {
		t.Errorf("players = %v, want [alice bob]", g.Players)
	}
	if g.Symbols["alice"] != engine.X || g.Symbols["bob"] != engine.O {
		t.Errorf("symbols = %v", g.Symbols)
	}

	state, err := e.State("alice")
	if err != nil {
		t.Fatalf("State: %v", err)
	}
	if state.CurrentTurn != "alice" {
		t.Errorf("current turn = %q, want alice", state.CurrentTurn)
	}
}

func TestJoinGameErrors(t *testing.T) {
	e := newTestEngine(t)
	mustRegister(t, e, "alice", "bob", "carol")

	_, err := e.JoinGame("bob", "zzzz")
	wantKind(t, err, KindNotAvailable)

	gameID, _ := e.CreateGame("alice")
	if _, err := e.JoinGame("bob", gameID); err != nil {
		t.Fatalf("JoinGame: %v", err)
	}

	// Playing games are no longer joinable.
	_, err = e.JoinGame("carol", gameID)
	wantKind(t, err, KindNotAvailable)
}

func TestSpectateGame(t *testing.T) {
	e := newTestEngine(t)
	gameID := startGame(t, e, "alice", "bob")
	mustRegister(t, e, "carol")

	state, err := e.SpectateGame("carol", gameID)
	if err != nil {
		t.Fatalf("SpectateGame: %v", err)
	}
	if state.YourSymbol != "" {
		t.Errorf("spectator symbol = %q, want none", state.YourSymbol)
	}
	if !containsPlayer(e.state.Games[gameID].Spectators, "carol") {
		t.Error("carol not in spectator set")
	}
}

func TestSpectateRequiresStartedGame(t *testing.T) {
	e := newTestEngine(t)
	mustRegister(t, e, "alice", "carol")
	gameID, _ := e.CreateGame("alice")

	_, err := e.SpectateGame("carol", "zzzz")
	wantKind(t, err, KindNotFound)

	_, err = e.SpectateGame("carol", gameID)
	wantKind(t, err, KindNotAvailable)
}

func TestMakeMoveValidation(t *testing.T) {
	e := newTestEngine(t)
	startGame(t, e, "alice", "bob")

	_, err := e.MakeMove("bob", 0, 0)
	wantKind(t, err, KindNotYourTurn)

	_, err = e.MakeMove("alice", 3, 0)
	wantKind(t, err, KindIllegalCell)

	if _, err := e.MakeMove("alice", 0, 0); err != nil {
		t.Fatalf("MakeMove: %v", err)
	}

	// Occupied cell.
	_, err = e.MakeMove("bob", 0, 0)
	wantKind(t, err, KindIllegalCell)

	// Out of turn again: alice just moved.
	_, err = e.MakeMove("alice", 1, 1)
	wantKind(t, err, KindNotYourTurn)
}

// The §8-style end-to-end scenario: bob completes the main diagonal.
func TestWinScenario(t *testing.T) {
	e := newTestEngine(t)
	gameID := startGame(t, e, "alice", "bob")

	moves := []struct {
		player   string
		row, col int
	}{
		{"alice", 0, 0},
		{"bob", 1, 1},
		{"alice", 0, 1},
		{"bob", 2, 0},
		{"alice", 1, 0},
		{"bob", 0, 2}, // completes the anti-diagonal
	}

	var last *GameState
	for _, m := range moves {
		state, err := e.MakeMove(m.player, m.row, m.col)
		if err != nil {
			t.Fatalf("MakeMove(%s, %d, %d): %v", m.player, m.row, m.col, err)
		}
		last = state
	}

	if last.GameStatus != StatusFinished {
		t.Errorf("status = %q, want finished", last.GameStatus)
	}
	if last.Winner != "bob" {
		t.Errorf("winner = %q, want bob", last.Winner)
	}
	if last.YourSymbol != engine.O {
		t.Errorf("mover's symbol in final view = %q, want O", last.YourSymbol)
	}

	for _, pid := range []string{"alice", "bob"} {
		entries, err := e.History(pid)
		if err != nil {
			t.Fatalf("History(%s): %v", pid, err)
		}
		if len(entries) != 1 {
			t.Fatalf("history length for %s = %d, want 1", pid, len(entries))
		}
		entry := entries[0]
		if entry.Reason != ReasonWin || entry.Winner != "bob" || entry.GameID != gameID {
			t.Errorf("history entry = %+v", entry)
		}
		// Membership is cleared for both once the game ends.
		if p := e.state.Players[pid]; p.GameID != "" || p.Symbol != "" {
			t.Errorf("%s still bound to game: %+v", pid, p)
		}
	}
}

func TestDrawScenario(t *testing.T) {
	e := newTestEngine(t)
	startGame(t, e, "alice", "bob")

	// X O X / X O O / O X X: full board, no line.
	moves := []struct {
		player   string
		row, col int
	}{
		{"alice", 0, 0}, {"bob", 0, 1},
		{"alice", 0, 2}, {"bob", 1, 1},
		{"alice", 1, 0}, {"bob", 1, 2},
		{"alice", 2, 1}, {"bob", 2, 0},
		{"alice", 2, 2},
	}

	var last *GameState
	for _, m := range moves {
		state, err := e.MakeMove(m.player, m.row, m.col)
		if err != nil {
			t.Fatalf("MakeMove(%s, %d, %d): %v", m.player, m.row, m.col, err)
		}
		last = state
	}

	if last.GameStatus != StatusFinished || last.Winner != WinnerDraw {
		t.Errorf("final state = (%q, %q), want (finished, draw)", last.GameStatus, last.Winner)
	}
	entries, _ := e.History("alice")
	if len(entries) != 1 || entries[0].Reason != ReasonDraw {
		t.Errorf("history = %+v, want one draw entry", entries)
	}
}

func TestLeaveWaitingGameDeletesIt(t *testing.T) {
	e := newTestEngine(t)
	mustRegister(t, e, "alice")
	gameID, _ := e.CreateGame("alice")

	if err := e.Leave("alice"); err != nil {
		t.Fatalf("Leave: %v", err)
	}
	if _, exists := e.state.Games[gameID]; exists {
		t.Error("waiting game not deleted")
	}
	if len(e.AvailableGames()) != 0 {
		t.Error("deleted game still listed")
	}
	if entries, _ := e.History("alice"); len(entries) != 0 {
		t.Errorf("abandoned waiting game produced history: %+v", entries)
	}
}

func TestLeavePlayingGameForfeits(t *testing.T) {
	e := newTestEngine(t)
	gameID := startGame(t, e, "alice", "bob")

	if err := e.Leave("alice"); err != nil {
		t.Fatalf("Leave: %v", err)
	}

	g := e.state.Games[gameID]
	if g.Status != StatusFinished || g.Winner != "bob" {
		t.Errorf("game after forfeit = (%q, %q), want (finished, bob)", g.Status, g.Winner)
	}
	entries, _ := e.History("bob")
	if len(entries) != 1 || entries[0].Reason != ReasonForfeit {
		t.Errorf("history = %+v, want one forfeit entry", entries)
	}
}

func TestLeaveWithNoGameIsNoOp(t *testing.T) {
	e := newTestEngine(t)
	mustRegister(t, e, "alice")
	if err := e.Leave("alice"); err != nil {
		t.Errorf("Leave with no game = %v, want nil", err)
	}
}

func TestSpectatorLeaveKeepsGameRunning(t *testing.T) {
	e := newTestEngine(t)
	gameID := startGame(t, e, "alice", "bob")
	mustRegister(t, e, "carol")
	if _, err := e.SpectateGame("carol", gameID); err != nil {
		t.Fatalf("SpectateGame: %v", err)
	}

	if err := e.Leave("carol"); err != nil {
		t.Fatalf("Leave: %v", err)
	}
	g := e.state.Games[gameID]
	if g.Status != StatusPlaying {
		t.Errorf("game status after spectator leave = %q, want playing", g.Status)
	}
	if containsPlayer(g.Spectators, "carol") {
		t.Error("carol still in spectator set")
	}
}

func TestSpectatorReceivesHistory(t *testing.T) {
	e := newTestEngine(t)
	gameID := startGame(t, e, "alice", "bob")
	mustRegister(t, e, "carol")
	if _, err := e.SpectateGame("carol", gameID); err != nil {
		t.Fatalf("SpectateGame: %v", err)
	}

	if err := e.Leave("alice"); err != nil {
		t.Fatalf("Leave: %v", err)
	}
	entries, _ := e.History("carol")
	if len(entries) != 1 || entries[0].Reason != ReasonForfeit {
		t.Errorf("spectator history = %+v, want one forfeit entry", entries)
	}
	if p := e.state.Players["carol"]; p.GameID != "" {
		t.Error("spectator still bound to finished game")
	}
}

func TestAvailableGamesListing(t *testing.T) {
	e := newTestEngine(t)
	mustRegister(t, e, "alice", "bob", "carol")

	waitingID, _ := e.CreateGame("alice")
	playingID := startGame(t, e, "dave", "erin")

	games := e.AvailableGames()
	if len(games) != 2 {
		t.Fatalf("listing length = %d, want 2", len(games))
	}
	byID := map[string]GameSummary{}
	for _, g := range games {
		byID[g.GameID] = g
	}
	if byID[waitingID].Status != StatusWaiting || byID[waitingID].CreatedBy != "alice" {
		t.Errorf("waiting summary = %+v", byID[waitingID])
	}
	if byID[playingID].Status != StatusPlaying {
		t.Errorf("playing summary = %+v", byID[playingID])
	}

	// Finish the playing game; it must drop out of the listing.
	if err := e.Leave("dave"); err != nil {
		t.Fatalf("Leave: %v", err)
	}
	games = e.AvailableGames()
	if len(games) != 1 || games[0].GameID != waitingID {
		t.Errorf("listing after finish = %+v, want only %s", games, waitingID)
	}
}

func TestReapMarksSilentPlayerOffline(t *testing.T) {
	e := newTestEngine(t)
	gameID := startGame(t, e, "alice", "bob")

	e.state.Players["bob"].LastSeen = time.Now().Add(-15 * time.Second)
	e.Reap()

	if got := e.state.Players["bob"].ConnectionStatus; got != presence.Offline {
		t.Errorf("bob status = %q, want offline", got)
	}
	if got := e.state.Games[gameID].Status; got != StatusDisconnected {
		t.Errorf("game status = %q, want disconnected", got)
	}

	// The opponent sees the flip through their own state view.
	state, err := e.State("alice")
	if err != nil {
		t.Fatalf("State: %v", err)
	}
	if state.PlayerStatuses["bob"] != presence.Offline {
		t.Errorf("player_statuses = %v", state.PlayerStatuses)
	}
}

func TestTouchBringsPlayerBackOnline(t *testing.T) {
	e := newTestEngine(t)
	gameID := startGame(t, e, "alice", "bob")

	e.state.Players["bob"].LastSeen = time.Now().Add(-15 * time.Second)
	e.Reap()

	if !e.Touch("bob") {
		t.Fatal("Touch reported bob unknown")
	}
	if got := e.state.Players["bob"].ConnectionStatus; got != presence.Online {
		t.Errorf("bob status after touch = %q, want online", got)
	}
	if got := e.state.Games[gameID].Status; got != StatusPlaying {
		t.Errorf("game status after reconnect = %q, want playing", got)
	}
}

func TestTouchUnknownPlayer(t *testing.T) {
	e := newTestEngine(t)
	if e.Touch("ghost") {
		t.Error("Touch reported unknown player as known")
	}
}

func TestReapForcedLeave(t *testing.T) {
	store := &memStore{}
	policy := presence.Policy{OfflineAfter: 10 * time.Second, ForfeitAfter: 30 * time.Second}
	e := New(store, policy, zap.NewNop())
	gameID := startGame(t, e, "alice", "bob")

	e.state.Players["bob"].LastSeen = time.Now().Add(-45 * time.Second)
	e.Reap()

	g := e.state.Games[gameID]
	if g.Status != StatusFinished || g.Winner != "alice" {
		t.Errorf("game after timeout = (%q, %q), want (finished, alice)", g.Status, g.Winner)
	}
	entries, _ := e.History("alice")
	if len(entries) != 1 || entries[0].Reason != ReasonDisconnect {
		t.Errorf("history = %+v, want one disconnect entry", entries)
	}
}

func TestReapIgnoresIdlePlayersOutsideGames(t *testing.T) {
	e := newTestEngine(t)
	mustRegister(t, e, "alice")
	e.state.Players["alice"].LastSeen = time.Now().Add(-time.Hour)

	e.Reap()

	if got := e.state.Players["alice"].ConnectionStatus; got != presence.Online {
		t.Errorf("idle lobby player flipped to %q", got)
	}
}

func TestMutationsPersist(t *testing.T) {
	store := &memStore{}
	e := New(store, presence.DefaultPolicy(), zap.NewNop())

	mustRegister(t, e, "alice")
	if store.saves == 0 {
		t.Error("Register did not persist")
	}
	before := store.saves
	if _, err := e.CreateGame("alice"); err != nil {
		t.Fatalf("CreateGame: %v", err)
	}
	if store.saves <= before {
		t.Error("CreateGame did not persist")
	}
}
