package server

import (
	"context"
	"encoding/json"
	"strings"

	"go.uber.org/zap"

	"ticarena/game/service"
	"ticarena/game/session"
	"ticarena/transport/websocket"
	"ticarena/wire"
)

// Router maps an inbound request to one service call and shapes the reply.
// Rule violations ride an OK status line with an ERROR envelope, matching
// what clients of the protocol expect; non-200 codes are reserved for
// framing-level failures.
type Router struct {
	service service.GameService
	engine  *session.Engine
	hub     *websocket.Hub // optional
	log     *zap.Logger
}

// NewRouter builds a router. hub may be nil when no observer surface is
// configured.
func NewRouter(svc service.GameService, engine *session.Engine, hub *websocket.Hub, log *zap.Logger) *Router {
	return &Router{service: svc, engine: engine, hub: hub, log: log}
}

type joinRequest struct {
	GameID string `json:"game_id"`
}

type moveRequest struct {
	Row int `json:"row"`
	Col int `json:"col"`
}

// Dispatch executes one request. The session engine's lock makes the call
// atomic; this function only routes and serializes.
func (rt *Router) Dispatch(ctx context.Context, req *wire.Request) *wire.Response {
	// Any request carrying a known player id in its path counts as a sign
	// of life: refresh last-seen and detect reconnection before dispatch.
	playerID := req.PlayerID()
	if playerID != "" {
		rt.engine.Touch(playerID)
	}

	rt.log.Debug("request", zap.String("method", req.Method), zap.String("path", req.Path))

	switch {
	case req.Method == "POST" && strings.HasPrefix(req.Path, "/player/"):
		res, err := rt.service.Register(ctx, playerID)
		return rt.reply(res, err)

	case req.Method == "GET" && req.Path == "/games":
		res, err := rt.service.AvailableGames(ctx)
		return rt.reply(res, err)

	case req.Method == "GET" && strings.HasPrefix(req.Path, "/history/"):
		res, err := rt.service.History(ctx, playerID)
		return rt.reply(res, err)

	case req.Method == "POST" && strings.HasPrefix(req.Path, "/game/create/"):
		res, err := rt.service.CreateGame(ctx, playerID)
		if err == nil && rt.hub != nil {
			rt.broadcastFor(ctx, playerID, res.GameID)
		}
		return rt.reply(res, err)

	case req.Method == "POST" && strings.HasPrefix(req.Path, "/game/join/"):
		var body joinRequest
		if resp := decodeBody(req.Body, &body); resp != nil {
			return resp
		}
		res, err := rt.service.JoinGame(ctx, playerID, body.GameID)
		if err == nil && rt.hub != nil {
			rt.hub.Broadcast(body.GameID, res.GameState)
		}
		return rt.reply(res, err)

	case req.Method == "POST" && strings.HasPrefix(req.Path, "/game/spectate/"):
		var body joinRequest
		if resp := decodeBody(req.Body, &body); resp != nil {
			return resp
		}
		res, err := rt.service.SpectateGame(ctx, playerID, body.GameID)
		return rt.reply(res, err)

	case req.Method == "POST" && strings.HasPrefix(req.Path, "/move/"):
		var body moveRequest
		if resp := decodeBody(req.Body, &body); resp != nil {
			return resp
		}
		gameID, _ := rt.engine.GameIDOf(playerID)
		res, err := rt.service.MakeMove(ctx, playerID, body.Row, body.Col)
		if err == nil && rt.hub != nil && gameID != "" {
			rt.hub.Broadcast(gameID, res.GameState)
		}
		return rt.reply(res, err)

	case req.Method == "GET" && strings.HasPrefix(req.Path, "/game/state/"):
		res, err := rt.service.GameState(ctx, playerID)
		return rt.reply(res, err)

	case req.Method == "POST" && strings.HasPrefix(req.Path, "/game/leave/"):
		gameID, _ := rt.engine.GameIDOf(playerID)
		res, err := rt.service.Leave(ctx, playerID)
		if err == nil && rt.hub != nil && gameID != "" {
			rt.broadcastGame(ctx, gameID)
		}
		return rt.reply(res, err)
	}

	return wire.NewJSONResponse(404, service.ErrorReply("Endpoint not found"))
}

// reply serializes a service result, mapping rule violations to ERROR
// envelopes on a 200 status line.
func (rt *Router) reply(result interface{}, err error) *wire.Response {
	if err != nil {
		if _, ok := session.KindOf(err); ok {
			return wire.NewJSONResponse(200, service.ErrorReply(err.Error()))
		}
		rt.log.Error("unexpected dispatch error", zap.Error(err))
		return wire.NewJSONResponse(500, service.ErrorReply("Internal server error"))
	}
	return wire.NewJSONResponse(200, result)
}

func decodeBody(body []byte, dst interface{}) *wire.Response {
	if len(body) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, dst); err != nil {
		return wire.NewJSONResponse(400, service.ErrorReply("Invalid JSON body"))
	}
	return nil
}

// broadcastFor pushes the player's current view of gameID to watchers.
func (rt *Router) broadcastFor(ctx context.Context, playerID, gameID string) {
	res, err := rt.service.GameState(ctx, playerID)
	if err != nil {
		return
	}
	rt.hub.Broadcast(gameID, res.GameState)
}

// broadcastGame pushes a neutral view of gameID (used after a leave, when
// the caller no longer belongs to the game).
func (rt *Router) broadcastGame(ctx context.Context, gameID string) {
	// A forfeit may have finished or deleted the game; the remaining
	// participants' next poll carries the outcome either way. Notify
	// watchers with an empty-state event so they re-fetch.
	rt.hub.Broadcast(gameID, nil)
}
