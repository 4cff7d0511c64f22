// Command bot plays full games against itself through the wire protocol.
// It registers two players, creates and joins a game, and picks random
// empty cells until the game ends. Useful for soaking a server or a
// balancer with realistic traffic.
package main

import (
	"flag"
	"fmt"
	"log"
	"math/rand"
	"os"
	"time"

	"ticarena/client"
	"ticarena/game/engine"
	"ticarena/game/session"
)

var (
	addr  = flag.String("addr", "127.0.0.1:44444", "Server or balancer address")
	games = flag.Int("games", 1, "Number of games to play")
	delay = flag.Duration("delay", 100*time.Millisecond, "Pause between moves")
)

func main() {
	flag.Parse()

	suffix := fmt.Sprintf("%04d", rand.Intn(10000))
	alice := client.New(*addr, "bot-x-"+suffix)
	bob := client.New(*addr, "bot-o-"+suffix)

	for _, c := range []*client.Client{alice, bob} {
		if _, err := c.Register(); err != nil {
			log.Fatalf("register %s: %v", c.PlayerID(), err)
		}
	}

	wins := map[string]int{}
	for i := 0; i < *games; i++ {
		winner, err := playGame(alice, bob)
		if err != nil {
			log.Fatalf("game %d: %v", i+1, err)
		}
		wins[winner]++
		log.Printf("game %d finished: %s", i+1, winner)
	}

	fmt.Printf("\nPlayed %d games against %s\n", *games, *addr)
	for outcome, n := range wins {
		fmt.Printf("  %-12s %d\n", outcome, n)
	}
	os.Exit(0)
}

// playGame runs one full game and returns the winner id or "draw".
func playGame(alice, bob *client.Client) (string, error) {
	created, err := alice.CreateGame()
	if err != nil {
		return "", fmt.Errorf("create: %w", err)
	}
	state, err := bob.JoinGame(created.GameID)
	if err != nil {
		return "", fmt.Errorf("join %s: %w", created.GameID, err)
	}

	players := map[string]*client.Client{
		alice.PlayerID(): alice,
		bob.PlayerID():   bob,
	}

	for state.GameState.GameStatus == session.StatusPlaying {
		mover, ok := players[state.GameState.CurrentTurn]
		if !ok {
			return "", fmt.Errorf("unknown player on turn: %q", state.GameState.CurrentTurn)
		}
		row, col, ok := randomEmptyCell(state.GameState)
		if !ok {
			return "", fmt.Errorf("no empty cell but game still playing")
		}
		state, err = mover.MakeMove(row, col)
		if err != nil {
			return "", fmt.Errorf("move %s (%d,%d): %w", mover.PlayerID(), row, col, err)
		}
		time.Sleep(*delay)
	}

	winner := state.GameState.Winner
	if winner == "" {
		winner = session.WinnerDraw
	}
	return winner, nil
}

func randomEmptyCell(state *session.GameState) (int, int, bool) {
	var open [][2]int
	for r, row := range state.Board {
		for c, cell := range row {
			if cell == engine.Empty {
				open = append(open, [2]int{r, c})
			}
		}
	}
	if len(open) == 0 {
		return 0, 0, false
	}
	pick := open[rand.Intn(len(open))]
	return pick[0], pick[1], true
}
