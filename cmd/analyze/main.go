// Command analyze prints quick, human-readable statistics about a game
// state snapshot. It summarizes live games by status, outcome rates from
// recorded history, per-player win/loss records, and whether going first
// (X) correlates with winning.
package main

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
)

// Snapshot is a light struct for reading state files used by analysis.
type Snapshot struct {
	Games   map[string]GameRecord    `json:"games"`
	Players map[string]PlayerRecord  `json:"players"`
	History map[string][]HistoryItem `json:"game_history"`
}

type GameRecord struct {
	Players    []string `json:"players"`
	Spectators []string `json:"spectators"`
	Status     string   `json:"status"`
}

type PlayerRecord struct {
	GameID           string `json:"game_id"`
	ConnectionStatus string `json:"connection_status"`
}

type HistoryItem struct {
	GameID  string            `json:"game_id"`
	Players []string          `json:"players"`
	Winner  string            `json:"winner"`
	Symbols map[string]string `json:"symbols"`
	Reason  string            `json:"reason"`
}

// record is one player's aggregated win/loss tally.
type record struct {
	Player string
	Wins   int
	Losses int
	Draws  int
}

func main() {
	path := "game_state.json"
	if len(os.Args) > 1 {
		path = os.Args[1]
	}

	fmt.Printf("=== Analyzing %s ===\n\n", path)

	data, err := os.ReadFile(path)
	if err != nil {
		fmt.Printf("Error reading file: %v\n", err)
		os.Exit(1)
	}

	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		fmt.Printf("Error parsing JSON: %v\n", err)
		os.Exit(1)
	}

	analyzeLiveGames(&snap)
	finished := dedupeHistory(&snap)
	analyzeOutcomes(finished)
	analyzeSymbolAdvantage(finished)
	analyzeRecords(finished)
}

func analyzeLiveGames(snap *Snapshot) {
	byStatus := map[string]int{}
	spectators := 0
	for _, g := range snap.Games {
		byStatus[g.Status]++
		spectators += len(g.Spectators)
	}

	online := 0
	for _, p := range snap.Players {
		if p.ConnectionStatus == "online" {
			online++
		}
	}

	fmt.Printf("Live games: %d\n", len(snap.Games))
	for _, status := range []string{"waiting", "playing", "disconnected", "finished"} {
		if n := byStatus[status]; n > 0 {
			fmt.Printf("  %-13s %d\n", status+":", n)
		}
	}
	fmt.Printf("Spectators attached: %d\n", spectators)
	fmt.Printf("Players: %d (%d online)\n\n", len(snap.Players), online)
}

// dedupeHistory flattens per-player history into one entry per game.
// Each finished game appears in the history of every participant and
// spectator, so the same game id shows up several times.
func dedupeHistory(snap *Snapshot) []HistoryItem {
	seen := map[string]bool{}
	var out []HistoryItem
	for _, entries := range snap.History {
		for _, h := range entries {
			if seen[h.GameID] {
				continue
			}
			seen[h.GameID] = true
			out = append(out, h)
		}
	}
	return out
}

func analyzeOutcomes(finished []HistoryItem) {
	if len(finished) == 0 {
		fmt.Println("No finished games recorded.")
		return
	}

	byReason := map[string]int{}
	for _, h := range finished {
		byReason[h.Reason]++
	}

	fmt.Printf("Finished games: %d\n", len(finished))
	for _, reason := range []string{"win", "draw", "forfeit", "disconnect"} {
		if n := byReason[reason]; n > 0 {
			fmt.Printf("  %-11s %d (%.0f%%)\n", reason+":", n, 100*float64(n)/float64(len(finished)))
		}
	}
	fmt.Println()
}

func analyzeSymbolAdvantage(finished []HistoryItem) {
	xWins, oWins := 0, 0
	for _, h := range finished {
		if h.Reason != "win" {
			continue
		}
		switch h.Symbols[h.Winner] {
		case "X":
			xWins++
		case "O":
			oWins++
		}
	}
	if xWins+oWins == 0 {
		return
	}
	fmt.Printf("Played-out wins: X %d, O %d\n", xWins, oWins)
	if xWins > oWins {
		fmt.Printf("Moving first won %.0f%% of decided games\n\n", 100*float64(xWins)/float64(xWins+oWins))
	} else {
		fmt.Println()
	}
}

func analyzeRecords(finished []HistoryItem) {
	byPlayer := map[string]*record{}
	tally := func(id string) *record {
		r, ok := byPlayer[id]
		if !ok {
			r = &record{Player: id}
			byPlayer[id] = r
		}
		return r
	}

	for _, h := range finished {
		for _, p := range h.Players {
			switch h.Winner {
			case "draw":
				tally(p).Draws++
			case p:
				tally(p).Wins++
			default:
				tally(p).Losses++
			}
		}
	}
	if len(byPlayer) == 0 {
		return
	}

	records := make([]*record, 0, len(byPlayer))
	for _, r := range byPlayer {
		records = append(records, r)
	}
	sort.Slice(records, func(i, j int) bool {
		if records[i].Wins != records[j].Wins {
			return records[i].Wins > records[j].Wins
		}
		return records[i].Player < records[j].Player
	})

	fmt.Println("Player records (W-L-D):")
	for _, r := range records {
		fmt.Printf("  %-16s %d-%d-%d\n", r.Player, r.Wins, r.Losses, r.Draws)
	}
}
