// Package mcp exposes the game over the Model Context Protocol. It is a
// thin stdio surface that proxies every tool call to a game server (or
// the balancer) through the wire client, so an agent can play or watch
// games without speaking the protocol itself.
package mcp

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"ticarena/client"
	"ticarena/game/session"
)

// Server wraps an MCP server whose tools call the game wire protocol.
type Server struct {
	addr      string
	mcpServer *server.MCPServer
}

// NewServer builds the MCP surface pointed at the given game server
// address.
func NewServer(addr string) *Server {
	s := &Server{addr: addr}
	s.initMCPServer()
	return s
}

func (s *Server) initMCPServer() {
	s.mcpServer = server.NewMCPServer(
		"Tic Tac Toe Arena",
		"1.0.0",
		server.WithToolCapabilities(true),
		server.WithInstructions(`Tic Tac Toe Arena - MCP Interface

Two-player tic tac toe over a shared game server. Every tool takes a
player_id; register one first, then create or join a game.

AVAILABLE TOOLS:
- register_player: Claim a player id (idempotent)
- create_game: Open a game and wait for an opponent
- join_game: Join a waiting game as the second player
- spectate_game: Watch a running game
- make_move: Claim a cell (row and col are 0-based)
- game_state: Current board and turn for your game
- list_games: Games open for joining or spectating
- game_history: Your finished games
- leave_game: Abandon your current game (forfeits if playing)

The board is 3x3. The creator plays X and moves first; the joiner plays O.`),
	)
	s.registerTools()
}

func (s *Server) registerTools() {
	playerProp := map[string]interface{}{
		"type":        "string",
		"description": "Player id to act as",
	}
	gameProp := map[string]interface{}{
		"type":        "string",
		"description": "Game id",
	}

	s.mcpServer.AddTool(mcp.Tool{
		Name:        "register_player",
		Description: "Register a player id with the server. Safe to repeat.",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{"player_id": playerProp},
			Required:   []string{"player_id"},
		},
	}, s.handleRegister)

	s.mcpServer.AddTool(mcp.Tool{
		Name:        "create_game",
		Description: "Create a new game. You play X and wait for an opponent.",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{"player_id": playerProp},
			Required:   []string{"player_id"},
		},
	}, s.handleCreateGame)

	s.mcpServer.AddTool(mcp.Tool{
		Name:        "join_game",
		Description: "Join a waiting game as the second player. You play O.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"player_id": playerProp,
				"game_id":   gameProp,
			},
			Required: []string{"player_id", "game_id"},
		},
	}, s.handleJoinGame)

	s.mcpServer.AddTool(mcp.Tool{
		Name:        "spectate_game",
		Description: "Watch a running or finished game without playing.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"player_id": playerProp,
				"game_id":   gameProp,
			},
			Required: []string{"player_id", "game_id"},
		},
	}, s.handleSpectateGame)

	s.mcpServer.AddTool(mcp.Tool{
		Name:        "make_move",
		Description: "Claim the cell at row, col. Both are 0-based.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"player_id": playerProp,
				"row": map[string]interface{}{
					"type":        "integer",
					"description": "Row index, 0 to 2",
				},
				"col": map[string]interface{}{
					"type":        "integer",
					"description": "Column index, 0 to 2",
				},
			},
			Required: []string{"player_id", "row", "col"},
		},
	}, s.handleMakeMove)

	s.mcpServer.AddTool(mcp.Tool{
		Name:        "game_state",
		Description: "Get the current state of your game.",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{"player_id": playerProp},
			Required:   []string{"player_id"},
		},
	}, s.handleGameState)

	s.mcpServer.AddTool(mcp.Tool{
		Name:        "list_games",
		Description: "List games open for joining or spectating.",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{"player_id": playerProp},
			Required:   []string{"player_id"},
		},
	}, s.handleListGames)

	s.mcpServer.AddTool(mcp.Tool{
		Name:        "game_history",
		Description: "List your finished games, most recent last.",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{"player_id": playerProp},
			Required:   []string{"player_id"},
		},
	}, s.handleGameHistory)

	s.mcpServer.AddTool(mcp.Tool{
		Name:        "leave_game",
		Description: "Leave your current game. Leaving a live game forfeits it.",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{"player_id": playerProp},
			Required:   []string{"player_id"},
		},
	}, s.handleLeaveGame)
}

// GetMCPServer returns the underlying MCP server for serving.
func (s *Server) GetMCPServer() *server.MCPServer {
	return s.mcpServer
}

// ServeStdio blocks serving the MCP protocol on stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcpServer)
}

func (s *Server) clientFor(request mcp.CallToolRequest) (*client.Client, string, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, "", fmt.Errorf("arguments must be an object")
	}
	playerID, _ := args["player_id"].(string)
	if playerID == "" {
		return nil, "", fmt.Errorf("player_id is required")
	}
	return client.New(s.addr, playerID), playerID, nil
}

func stringArg(request mcp.CallToolRequest, key string) string {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return ""
	}
	v, _ := args[key].(string)
	return v
}

func intArg(request mcp.CallToolRequest, key string) (int, bool) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return 0, false
	}
	v, ok := args[key].(float64)
	return int(v), ok
}

// Tool handlers

func (s *Server) handleRegister(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	c, playerID, err := s.clientFor(request)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if _, err := c.Register(); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("Registered as %s", playerID)), nil
}

func (s *Server) handleCreateGame(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	c, _, err := s.clientFor(request)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	res, err := c.CreateGame()
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("Created game %s. You play X; waiting for an opponent.", res.GameID)), nil
}

func (s *Server) handleJoinGame(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	c, _, err := s.clientFor(request)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	res, err := c.JoinGame(stringArg(request, "game_id"))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText("Joined game.\n\n" + formatGameState(res.GameState)), nil
}

func (s *Server) handleSpectateGame(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	c, _, err := s.clientFor(request)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	res, err := c.SpectateGame(stringArg(request, "game_id"))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText("Spectating game.\n\n" + formatGameState(res.GameState)), nil
}

func (s *Server) handleMakeMove(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	c, _, err := s.clientFor(request)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	row, okRow := intArg(request, "row")
	col, okCol := intArg(request, "col")
	if !okRow || !okCol {
		return mcp.NewToolResultError("row and col are required integers"), nil
	}
	res, err := c.MakeMove(row, col)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(formatGameState(res.GameState)), nil
}

func (s *Server) handleGameState(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	c, _, err := s.clientFor(request)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	res, err := c.GameState()
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(formatGameState(res.GameState)), nil
}

func (s *Server) handleListGames(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	c, _, err := s.clientFor(request)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	res, err := c.AvailableGames()
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if len(res.AvailableGames) == 0 {
		return mcp.NewToolResultText("No games available. Create one with create_game."), nil
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Available games (%d):\n", len(res.AvailableGames))
	for _, g := range res.AvailableGames {
		action := "join"
		if g.Status == session.StatusPlaying {
			action = "spectate"
		}
		fmt.Fprintf(&b, "- %s (by %s, %s, %s)\n", g.GameID, g.CreatedBy, g.Status, action)
	}
	return mcp.NewToolResultText(b.String()), nil
}

func (s *Server) handleGameHistory(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	c, playerID, err := s.clientFor(request)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	res, err := c.History()
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if len(res.History) == 0 {
		return mcp.NewToolResultText("No finished games yet."), nil
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Game history for %s (%d):\n", playerID, len(res.History))
	for _, h := range res.History {
		outcome := "draw"
		switch h.Winner {
		case playerID:
			outcome = "won"
		case session.WinnerDraw, "":
		default:
			outcome = "lost vs " + h.Winner
		}
		fmt.Fprintf(&b, "- %s  game %s  vs %s  %s (%s)\n",
			h.Date.Format("2006-01-02 15:04"), h.GameID,
			strings.Join(others(h.Players, playerID), ", "), outcome, h.Reason)
	}
	return mcp.NewToolResultText(b.String()), nil
}

func (s *Server) handleLeaveGame(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	c, _, err := s.clientFor(request)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	res, err := c.Leave()
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	msg := res.Message
	if msg == "" {
		msg = "Left the game."
	}
	return mcp.NewToolResultText(msg), nil
}

func others(players []string, self string) []string {
	out := make([]string, 0, len(players))
	for _, p := range players {
		if p != self {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		out = append(out, "nobody")
	}
	return out
}

// formatGameState renders a snapshot as readable text for the agent.
func formatGameState(state *session.GameState) string {
	if state == nil {
		return "No game state."
	}
	var b strings.Builder
	b.WriteString("Board:\n")
	for _, row := range state.Board {
		for c, cell := range row {
			if c > 0 {
				b.WriteByte(' ')
			}
			b.WriteString(string(cell))
		}
		b.WriteByte('\n')
	}
	fmt.Fprintf(&b, "\nStatus: %s\n", state.GameStatus)
	if state.YourSymbol != "" {
		fmt.Fprintf(&b, "You are: %s\n", state.YourSymbol)
	}
	switch state.GameStatus {
	case session.StatusPlaying, session.StatusDisconnected:
		fmt.Fprintf(&b, "Turn: %s\n", state.CurrentTurn)
	case session.StatusFinished:
		if state.Winner == session.WinnerDraw {
			b.WriteString("Result: draw\n")
		} else if state.Winner != "" {
			fmt.Fprintf(&b, "Winner: %s\n", state.Winner)
		}
	}
	if len(state.Players) > 0 {
		fmt.Fprintf(&b, "Players: %s\n", strings.Join(state.Players, ", "))
	}
	for p, st := range state.PlayerStatuses {
		if st == "offline" {
			fmt.Fprintf(&b, "Note: %s is offline\n", p)
		}
	}
	return b.String()
}
