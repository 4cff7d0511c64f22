// Command validate checks persisted game state snapshots for internal
// consistency. Point it at one or more state JSON files (default
// game_state.json). It checks:
//   - JSON structure and the 3x3 board alphabet (., X, O)
//   - Game status values and turn index range
//   - Symbol assignment: at most two players, distinct X/O marks
//   - Cross-references between player records and game membership
//   - History entries: winner is a listed player, "draw", or empty
package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Snapshot mirrors the persisted state schema.
type Snapshot struct {
	Games   map[string]*GameRecord   `json:"games"`
	Players map[string]*PlayerRecord `json:"players"`
	History map[string][]HistoryItem `json:"game_history"`
}

type GameRecord struct {
	Board      [][]string        `json:"board"`
	Players    []string          `json:"players"`
	Spectators []string          `json:"spectators"`
	TurnIndex  int               `json:"current_turn_idx"`
	Status     string            `json:"status"`
	Winner     string            `json:"winner"`
	Symbols    map[string]string `json:"symbols"`
}

type PlayerRecord struct {
	GameID           string `json:"game_id"`
	Symbol           string `json:"symbol"`
	ConnectionStatus string `json:"connection_status"`
}

type HistoryItem struct {
	GameID  string   `json:"game_id"`
	Players []string `json:"players"`
	Winner  string   `json:"winner"`
	Reason  string   `json:"reason"`
}

// ValidationResult captures the outcome of validating a single file.
// If Valid is true, Errors contains informational messages; otherwise it
// accumulates the validation errors that were found.
type ValidationResult struct {
	File   string
	Valid  bool
	Errors []string
}

func (r *ValidationResult) fail(format string, args ...interface{}) {
	r.Valid = false
	r.Errors = append(r.Errors, fmt.Sprintf(format, args...))
}

var validStatuses = map[string]bool{
	"waiting":      true,
	"playing":      true,
	"disconnected": true,
	"finished":     true,
}

var validCells = map[string]bool{".": true, "X": true, "O": true}

// validateSnapshot loads and validates a single state file.
func validateSnapshot(filePath string) ValidationResult {
	result := ValidationResult{
		File:   filepath.Base(filePath),
		Valid:  true,
		Errors: []string{},
	}

	data, err := os.ReadFile(filePath)
	if err != nil {
		result.fail("Failed to read file: %v", err)
		return result
	}

	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		result.fail("Invalid JSON: %v", err)
		return result
	}

	for gameID, g := range snap.Games {
		validateGame(&result, gameID, g, snap.Players)
	}
	for playerID, p := range snap.Players {
		validatePlayer(&result, playerID, p, snap.Games)
	}
	for playerID, entries := range snap.History {
		for i, h := range entries {
			validateHistory(&result, playerID, i, h)
		}
	}

	if result.Valid {
		result.Errors = append(result.Errors, fmt.Sprintf("Games: %d", len(snap.Games)))
		result.Errors = append(result.Errors, fmt.Sprintf("Players: %d", len(snap.Players)))
		histories := 0
		for _, entries := range snap.History {
			histories += len(entries)
		}
		result.Errors = append(result.Errors, fmt.Sprintf("History entries: %d", histories))
	}
	return result
}

func validateGame(result *ValidationResult, gameID string, g *GameRecord, players map[string]*PlayerRecord) {
	if len(g.Board) != 3 {
		result.fail("Game %s: board has %d rows, want 3", gameID, len(g.Board))
	}
	for r, row := range g.Board {
		if len(row) != 3 {
			result.fail("Game %s: board row %d has %d cells, want 3", gameID, r, len(row))
		}
		for c, cell := range row {
			if !validCells[cell] {
				result.fail("Game %s: invalid cell %q at [%d,%d]", gameID, cell, r, c)
			}
		}
	}

	if !validStatuses[g.Status] {
		result.fail("Game %s: unknown status %q", gameID, g.Status)
	}
	if len(g.Players) > 2 {
		result.fail("Game %s: %d players, want at most 2", gameID, len(g.Players))
	}
	if len(g.Players) > 0 && (g.TurnIndex < 0 || g.TurnIndex >= len(g.Players)) {
		result.fail("Game %s: turn index %d out of range for %d players", gameID, g.TurnIndex, len(g.Players))
	}
	if g.Status == "playing" && len(g.Players) != 2 {
		result.fail("Game %s: playing with %d players", gameID, len(g.Players))
	}

	seen := map[string]string{}
	for p, sym := range g.Symbols {
		if sym != "X" && sym != "O" {
			result.fail("Game %s: player %s has symbol %q, want X or O", gameID, p, sym)
		}
		if prev, dup := seen[sym]; dup {
			result.fail("Game %s: symbol %s assigned to both %s and %s", gameID, sym, prev, p)
		}
		seen[sym] = p
	}
	for _, p := range g.Players {
		if _, ok := players[p]; !ok {
			result.fail("Game %s: player %s is not registered", gameID, p)
		}
		if _, ok := g.Symbols[p]; !ok {
			result.fail("Game %s: player %s has no symbol", gameID, p)
		}
	}
	for _, sp := range g.Spectators {
		if _, ok := players[sp]; !ok {
			result.fail("Game %s: spectator %s is not registered", gameID, sp)
		}
	}
}

func validatePlayer(result *ValidationResult, playerID string, p *PlayerRecord, games map[string]*GameRecord) {
	if p.ConnectionStatus != "online" && p.ConnectionStatus != "offline" {
		result.fail("Player %s: unknown connection status %q", playerID, p.ConnectionStatus)
	}
	if p.GameID == "" {
		return
	}
	g, ok := games[p.GameID]
	if !ok {
		result.fail("Player %s: references missing game %s", playerID, p.GameID)
		return
	}
	if !contains(g.Players, playerID) && !contains(g.Spectators, playerID) {
		result.fail("Player %s: game %s does not list them", playerID, p.GameID)
	}
}

func validateHistory(result *ValidationResult, playerID string, i int, h HistoryItem) {
	if h.GameID == "" {
		result.fail("History %s[%d]: empty game id", playerID, i)
	}
	switch h.Winner {
	case "", "draw":
	default:
		if !contains(h.Players, h.Winner) {
			result.fail("History %s[%d]: winner %s not among players %v", playerID, i, h.Winner, h.Players)
		}
	}
	switch h.Reason {
	case "win", "draw", "forfeit", "disconnect":
	default:
		result.fail("History %s[%d]: unknown reason %q", playerID, i, h.Reason)
	}
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func main() {
	files := os.Args[1:]
	if len(files) == 0 {
		files = []string{"game_state.json"}
	}

	allValid := true
	for _, file := range files {
		result := validateSnapshot(file)

		fmt.Printf("\n%s %s\n", strings.Repeat("=", 20), result.File)

		if result.Valid {
			fmt.Println("VALID")
			for _, info := range result.Errors {
				fmt.Println("  " + info)
			}
		} else {
			fmt.Println("INVALID")
			allValid = false
			for _, err := range result.Errors {
				fmt.Println("  " + err)
			}
		}
	}

	fmt.Printf("\n%s\n", strings.Repeat("=", 40))
	if allValid {
		fmt.Println("All snapshots are valid")
	} else {
		fmt.Println("Some snapshots have errors")
		os.Exit(1)
	}
}
