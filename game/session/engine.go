package session

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"ticarena/game/engine"
	"ticarena/game/presence"
)

// Engine is the session engine: a monitor owning all players, games, and
// history. Every exported method takes the one lock for its full duration,
// including the synchronous persistence write.
type Engine struct {
	mu     sync.Mutex
	state  *State
	store  Store
	policy presence.Policy
	log    *zap.Logger
}

// New builds an engine over the given store. A load failure is non-fatal:
// it is logged and the engine starts with empty state.
func New(store Store, policy presence.Policy, log *zap.Logger) *Engine {
	state, err := store.Load()
	if err != nil {
		log.Warn("could not load saved state, starting fresh", zap.Error(err))
		state = NewState()
	}
	state.normalize()

	return &Engine{
		state:  state,
		store:  store,
		policy: policy,
		log:    log,
	}
}

// Register creates the player if absent, otherwise refreshes their last-seen
// time and flips them online. Idempotent.
func (e *Engine) Register(playerID string) error {
	if playerID == "" {
		return newError(KindInvalidInput, "Player ID required")
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if p, ok := e.state.Players[playerID]; ok {
		p.LastSeen = time.Now()
		p.ConnectionStatus = presence.Online
	} else {
		e.state.Players[playerID] = &Player{
			LastSeen:         time.Now(),
			ConnectionStatus: presence.Online,
		}
		e.log.Info("player registered", zap.String("player", playerID))
	}
	e.persist()
	return nil
}

// CreateGame allocates a new waiting game with the caller as sole player
// holding the first mark. Returns the new game id.
func (e *Engine) CreateGame(playerID string) (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	p, ok := e.state.Players[playerID]
	if !ok {
		return "", newError(KindNotRegistered, "Player not registered")
	}
	if p.GameID != "" {
		return "", newError(KindAlreadyInGame, "Player already in a game")
	}

	gameID := e.newGameID()
	board := engine.NewBoard()
	e.state.Games[gameID] = &Game{
		Board:      board,
		Players:    []string{playerID},
		Spectators: []string{},
		Status:     StatusWaiting,
		Symbols:    map[string]engine.Mark{playerID: engine.X},
	}
	p.GameID = gameID
	p.Symbol = engine.X

	e.persist()
	e.log.Info("game created", zap.String("game", gameID), zap.String("creator", playerID))
	return gameID, nil
}

// JoinGame adds the caller as second player and moves the game to playing.
func (e *Engine) JoinGame(playerID, gameID string) (*GameState, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	p, ok := e.state.Players[playerID]
	if !ok {
		return nil, newError(KindNotRegistered, "Player not registered")
	}
	if p.GameID != "" {
		return nil, newError(KindAlreadyInGame, "Player already in a game")
	}
	g, ok := e.state.Games[gameID]
	if !ok || g.Status != StatusWaiting {
		return nil, newError(KindNotAvailable, "Game not available for joining")
	}
	if len(g.Players) >= 2 {
		return nil, newError(KindFull, "Game is already full")
	}

	g.Players = append(g.Players, playerID)
	g.Status = StatusPlaying
	g.Symbols[playerID] = engine.O
	p.GameID = gameID
	p.Symbol = engine.O

	e.persist()
	e.log.Info("game joined", zap.String("game", gameID), zap.String("player", playerID))
	return e.gameView(playerID, g), nil
}

// SpectateGame adds the caller to a game's spectator set with no mark. The
// game must already be playing or finished.
func (e *Engine) SpectateGame(playerID, gameID string) (*GameState, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	p, ok := e.state.Players[playerID]
	if !ok {
		return nil, newError(KindNotRegistered, "Player not registered")
	}
	if p.GameID != "" {
		return nil, newError(KindAlreadyInGame, "Player already in a game")
	}
	g, ok := e.state.Games[gameID]
	if !ok {
		return nil, newError(KindNotFound, "Game does not exist")
	}
	if g.Status != StatusPlaying && g.Status != StatusFinished {
		return nil, newError(KindNotAvailable, "Game not available for spectating")
	}

	g.Spectators = append(g.Spectators, playerID)
	p.GameID = gameID
	p.Symbol = ""

	e.persist()
	return e.gameView(playerID, g), nil
}

// MakeMove writes the caller's mark at (row, col), then checks the eight
// lines for a win and the board for a draw. Either outcome finishes the
// game and records history; otherwise the turn advances.
func (e *Engine) MakeMove(playerID string, row, col int) (*GameState, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	p, ok := e.state.Players[playerID]
	if !ok {
		return nil, newError(KindNotRegistered, "Invalid player ID")
	}
	g, ok := e.state.Games[p.GameID]
	if p.GameID == "" || !ok {
		return nil, newError(KindNotInGame, "Player not in a game")
	}
	if g.Status != StatusPlaying {
		return nil, newError(KindNotInProgress, "Game not in progress")
	}
	if g.Players[g.TurnIndex] != playerID {
		return nil, newError(KindNotYourTurn, "Not your turn")
	}
	mark := g.Symbols[playerID]
	if err := g.Board.Apply(row, col, mark); err != nil {
		return nil, newError(KindIllegalCell, "Invalid move")
	}

	if winner, won := g.Board.Winner(); won {
		winnerID := ""
		for pid, sym := range g.Symbols {
			if sym == winner {
				winnerID = pid
				break
			}
		}
		e.endGame(p.GameID, g, winnerID, ReasonWin)
	} else if g.Board.Full() {
		e.endGame(p.GameID, g, WinnerDraw, ReasonDraw)
	} else {
		g.TurnIndex = 1 - g.TurnIndex
	}

	e.persist()
	return e.gameView(playerID, g), nil
}

// AvailableGames lists games that can still be joined or spectated.
// Finished games are only reachable through history.
func (e *Engine) AvailableGames() []GameSummary {
	e.mu.Lock()
	defer e.mu.Unlock()

	summaries := make([]GameSummary, 0)
	for id, g := range e.state.Games {
		if g.Status != StatusWaiting && g.Status != StatusPlaying {
			continue
		}
		summaries = append(summaries, GameSummary{
			GameID:    id,
			CreatedBy: g.Players[0],
			Status:    g.Status,
		})
	}
	sort.Slice(summaries, func(i, j int) bool { return summaries[i].GameID < summaries[j].GameID })
	return summaries
}

// State returns the caller's view of their current game.
func (e *Engine) State(playerID string) (*GameState, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	p, ok := e.state.Players[playerID]
	if !ok {
		return nil, newError(KindNotRegistered, "Invalid player ID")
	}
	g, ok := e.state.Games[p.GameID]
	if p.GameID == "" || !ok {
		return nil, newError(KindNotInGame, "Player not in a game")
	}
	return e.gameView(playerID, g), nil
}

// History returns the caller's append-only history list. The server never
// trims it; clients slice to a recent window.
func (e *Engine) History(playerID string) ([]HistoryEntry, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, ok := e.state.Players[playerID]; !ok {
		return nil, newError(KindNotRegistered, "Player not registered")
	}
	entries := e.state.History[playerID]
	out := make([]HistoryEntry, len(entries))
	copy(out, entries)
	return out, nil
}

// Leave removes the caller from their game. A spectator just drops out of
// the spectator set. An active participant forfeits: the opponent wins, or
// a still-waiting game is deleted outright. Safe to call with no game.
func (e *Engine) Leave(playerID string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.leave(playerID, ReasonForfeit)
}

// Touch refreshes the player's last-seen time and, if they were offline,
// flips them back online. This is how reconnection is detected: any
// authenticated request lands here before dispatch. Reports whether the
// player is known.
func (e *Engine) Touch(playerID string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	p, ok := e.state.Players[playerID]
	if !ok {
		return false
	}
	p.LastSeen = time.Now()
	if p.ConnectionStatus == presence.Offline {
		p.ConnectionStatus = presence.Online
		e.log.Info("player reconnected", zap.String("player", playerID))
		e.restoreGame(p.GameID)
		e.persist()
	}
	return true
}

// Reap applies the presence policy to every player currently in a game.
// Called on a fixed interval by the connection server; shares the engine
// lock so it never runs concurrently with a request.
func (e *Engine) Reap() {
	e.mu.Lock()
	defer e.mu.Unlock()

	now := time.Now()
	changed := false
	var forced []string

	for id, p := range e.state.Players {
		if p.GameID == "" {
			continue
		}
		switch e.policy.Evaluate(p.LastSeen, now) {
		case presence.MarkOffline:
			if p.ConnectionStatus == presence.Online {
				e.log.Info("player marked offline", zap.String("player", id))
				p.ConnectionStatus = presence.Offline
				e.suspendGame(id, p.GameID)
				changed = true
			}
		case presence.ForceLeave:
			forced = append(forced, id)
		}
	}

	for _, id := range forced {
		e.log.Info("player timed out, forcing leave", zap.String("player", id))
		if err := e.leave(id, ReasonDisconnect); err != nil {
			e.log.Warn("forced leave failed", zap.String("player", id), zap.Error(err))
		}
		changed = false // leave already persisted
	}

	if changed {
		e.persist()
	}
}

// GameIDOf reports which game the player currently belongs to.
func (e *Engine) GameIDOf(playerID string) (string, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	p, ok := e.state.Players[playerID]
	if !ok || p.GameID == "" {
		return "", false
	}
	return p.GameID, true
}

// Players returns a point-in-time copy of every player record, keyed by id.
func (e *Engine) Players() map[string]Player {
	e.mu.Lock()
	defer e.mu.Unlock()

	out := make(map[string]Player, len(e.state.Players))
	for id, p := range e.state.Players {
		out[id] = *p
	}
	return out
}

// Games returns a point-in-time copy of every game, keyed by id.
func (e *Engine) Games() map[string]Game {
	e.mu.Lock()
	defer e.mu.Unlock()

	out := make(map[string]Game, len(e.state.Games))
	for id, g := range e.state.Games {
		cp := *g
		cp.Players = append([]string(nil), g.Players...)
		cp.Spectators = append([]string(nil), g.Spectators...)
		cp.Symbols = copySymbols(g.Symbols)
		out[id] = cp
	}
	return out
}

// internal helpers; callers hold e.mu

// leave implements Leave with the history reason chosen by the caller:
// ReasonForfeit for an explicit departure, ReasonDisconnect for the reaper.
func (e *Engine) leave(playerID, reason string) error {
	p, ok := e.state.Players[playerID]
	if !ok {
		return newError(KindNotRegistered, "Invalid player ID")
	}

	if g, ok := e.state.Games[p.GameID]; ok {
		gameID := p.GameID
		switch {
		case containsPlayer(g.Players, playerID) && g.Status != StatusFinished:
			if len(g.Players) > 1 {
				winner := ""
				for _, other := range g.Players {
					if other != playerID {
						winner = other
						break
					}
				}
				e.endGame(gameID, g, winner, reason)
			} else {
				// A waiting game abandoned by its sole creator never
				// started; no history for anyone.
				delete(e.state.Games, gameID)
				e.log.Info("waiting game deleted", zap.String("game", gameID))
			}
		case containsPlayer(g.Spectators, playerID):
			g.Spectators = removePlayer(g.Spectators, playerID)
		}
	}

	p.GameID = ""
	p.Symbol = ""
	e.persist()
	return nil
}

// endGame finishes the game and appends one history entry to every
// participant and spectator, clearing their game membership.
func (e *Engine) endGame(gameID string, g *Game, winner, reason string) {
	if g.Status == StatusFinished {
		return
	}
	g.Status = StatusFinished
	g.Winner = winner

	entry := HistoryEntry{
		GameID:  gameID,
		Players: append([]string(nil), g.Players...),
		Winner:  winner,
		Date:    time.Now(),
		Symbols: copySymbols(g.Symbols),
		Reason:  reason,
	}

	involved := append(append([]string(nil), g.Players...), g.Spectators...)
	for _, pid := range involved {
		e.state.History[pid] = append(e.state.History[pid], entry)
		if p, ok := e.state.Players[pid]; ok {
			p.GameID = ""
			p.Symbol = ""
		}
	}

	e.log.Info("game finished",
		zap.String("game", gameID),
		zap.String("winner", winner),
		zap.String("reason", reason))
}

// suspendGame marks a playing game disconnected when one of its
// participants goes offline. Spectator absence does not affect the game.
func (e *Engine) suspendGame(playerID, gameID string) {
	g, ok := e.state.Games[gameID]
	if !ok || g.Status != StatusPlaying || !containsPlayer(g.Players, playerID) {
		return
	}
	g.Status = StatusDisconnected
}

// restoreGame resumes a disconnected game once every participant is online
// again.
func (e *Engine) restoreGame(gameID string) {
	g, ok := e.state.Games[gameID]
	if !ok || g.Status != StatusDisconnected {
		return
	}
	for _, pid := range g.Players {
		if p, ok := e.state.Players[pid]; !ok || p.ConnectionStatus != presence.Online {
			return
		}
	}
	g.Status = StatusPlaying
}

// gameView builds the caller's snapshot of g. The symbol comes from the
// game's own symbol map so the view stays correct even on the move that
// just finished the game and cleared the player records.
func (e *Engine) gameView(playerID string, g *Game) *GameState {
	currentTurn := ""
	if g.Status == StatusPlaying && len(g.Players) == 2 {
		currentTurn = g.Players[g.TurnIndex]
	}

	statuses := make(map[string]presence.Status, len(g.Players))
	for _, pid := range g.Players {
		if p, ok := e.state.Players[pid]; ok {
			statuses[pid] = p.ConnectionStatus
		} else {
			statuses[pid] = presence.Offline
		}
	}

	return &GameState{
		Board:          g.Board,
		GameStatus:     g.Status,
		CurrentTurn:    currentTurn,
		Winner:         g.Winner,
		YourSymbol:     g.Symbols[playerID],
		Players:        append([]string(nil), g.Players...),
		Symbols:        copySymbols(g.Symbols),
		PlayerStatuses: statuses,
	}
}

// newGameID allocates a short random token, re-rolling on the rare
// collision.
func (e *Engine) newGameID() string {
	for {
		id := uuid.NewString()[:4]
		if _, taken := e.state.Games[id]; !taken {
			return id
		}
	}
}

// persist writes the whole state through the store. A save failure is
// logged but not fatal: the mutation already succeeded in memory.
func (e *Engine) persist() {
	if err := e.store.Save(e.state); err != nil {
		e.log.Error("failed to persist state", zap.Error(err))
	}
}

func copySymbols(symbols map[string]engine.Mark) map[string]engine.Mark {
	out := make(map[string]engine.Mark, len(symbols))
	for k, v := range symbols {
		out[k] = v
	}
	return out
}

func containsPlayer(list []string, playerID string) bool {
	for _, id := range list {
		if id == playerID {
			return true
		}
	}
	return false
}

func removePlayer(list []string, playerID string) []string {
	out := list[:0]
	for _, id := range list {
		if id != playerID {
			out = append(out, id)
		}
	}
	return out
}
