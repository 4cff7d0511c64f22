// Package api provides the HTTP admin surface for a game server.
//
// It is a read-only side door next to the wire protocol:
//   - GET /api/health - Liveness and basic counters
//   - GET /api/games - Every game with board and membership
//   - GET /api/games/{id} - One game
//   - GET /api/players - Every registered player record
//   - GET /ws?game={id} - WebSocket upgrade for live game updates
//
// Game clients never use this surface; it exists for operators and for
// browser observers subscribing to board pushes.
package api
