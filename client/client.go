// Package client is a small typed client for the game wire protocol.
// Every call opens a fresh connection, sends one request, and reads the
// reply, so it works unchanged through the balancer.
package client

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"net"
	"strconv"
	"time"

	"ticarena/game/service"
	"ticarena/wire"
)

const defaultTimeout = 10 * time.Second

// Client talks to a game server (or balancer) on behalf of one player.
type Client struct {
	addr     string
	playerID string
	timeout  time.Duration
}

// New builds a client for the given server address and player id.
func New(addr, playerID string) *Client {
	return &Client{addr: addr, playerID: playerID, timeout: defaultTimeout}
}

// WithTimeout overrides the per-request deadline.
func (c *Client) WithTimeout(d time.Duration) *Client {
	c.timeout = d
	return c
}

// PlayerID returns the id this client acts as.
func (c *Client) PlayerID() string { return c.playerID }

// RemoteError is a structured failure reported by the server.
type RemoteError struct {
	StatusCode int
	Message    string
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("server error (HTTP %d): %s", e.StatusCode, e.Message)
}

// Register announces the player to the server. Registering twice with
// the same id is accepted.
func (c *Client) Register() (*service.RegisterResult, error) {
	var out service.RegisterResult
	if err := c.call("POST", "/player/"+c.playerID, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// CreateGame opens a new game owned by this player.
func (c *Client) CreateGame() (*service.CreateResult, error) {
	var out service.CreateResult
	if err := c.call("POST", "/game/create/"+c.playerID, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// JoinGame enters a waiting game as the second player.
func (c *Client) JoinGame(gameID string) (*service.StateResult, error) {
	var out service.StateResult
	body := map[string]string{"game_id": gameID}
	if err := c.call("POST", "/game/join/"+c.playerID, body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// SpectateGame attaches to a running or finished game as a watcher.
func (c *Client) SpectateGame(gameID string) (*service.StateResult, error) {
	var out service.StateResult
	body := map[string]string{"game_id": gameID}
	if err := c.call("POST", "/game/spectate/"+c.playerID, body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// MakeMove claims the cell at row, col for this player.
func (c *Client) MakeMove(row, col int) (*service.StateResult, error) {
	var out service.StateResult
	body := map[string]int{"row": row, "col": col}
	if err := c.call("POST", "/move/"+c.playerID, body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GameState fetches the current snapshot of the player's game.
func (c *Client) GameState() (*service.StateResult, error) {
	var out service.StateResult
	if err := c.call("GET", "/game/state/"+c.playerID, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// AvailableGames lists games that can be joined or spectated.
func (c *Client) AvailableGames() (*service.GamesResult, error) {
	var out service.GamesResult
	if err := c.call("GET", "/games", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// History fetches the player's finished games.
func (c *Client) History() (*service.HistoryResult, error) {
	var out service.HistoryResult
	if err := c.call("GET", "/history/"+c.playerID, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Leave abandons the player's current game.
func (c *Client) Leave() (*service.Envelope, error) {
	var out service.Envelope
	if err := c.call("POST", "/game/leave/"+c.playerID, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// call runs one request/response exchange. Logical failures come back
// as *RemoteError; transport failures as plain errors.
func (c *Client) call(method, path string, body interface{}, out interface{}) error {
	conn, err := net.DialTimeout("tcp", c.addr, c.timeout)
	if err != nil {
		return fmt.Errorf("dial %s: %w", c.addr, err)
	}
	defer conn.Close()
	conn.SetDeadline(time.Now().Add(c.timeout))

	req, err := encodeRequest(method, path, body)
	if err != nil {
		return err
	}
	if _, err := conn.Write(req); err != nil {
		return fmt.Errorf("write request: %w", err)
	}

	resp, err := wire.ReadResponse(bufio.NewReader(conn))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	var env service.Envelope
	if len(resp.Body) > 0 {
		if err := json.Unmarshal(resp.Body, &env); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	if resp.StatusCode != 200 || env.Status == "ERROR" {
		return &RemoteError{StatusCode: resp.StatusCode, Message: env.Message}
	}
	return json.Unmarshal(resp.Body, out)
}

func encodeRequest(method, path string, body interface{}) ([]byte, error) {
	var payload []byte
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encode body: %w", err)
		}
		payload = b
	}

	var buf bytes.Buffer
	buf.WriteString(method + " " + path + " HTTP/1.0\r\n")
	buf.WriteString("Connection: close\r\n")
	if payload != nil {
		buf.WriteString("Content-Type: application/json\r\n")
		buf.WriteString("Content-Length: " + strconv.Itoa(len(payload)) + "\r\n")
	}
	buf.WriteString("\r\n")
	buf.Write(payload)
	return buf.Bytes(), nil
}
