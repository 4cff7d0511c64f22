// Package session owns the server-side game state: players, games, and
// per-player history. A single Engine guards everything with one mutex and
// persists the whole state through a Store after every mutation, so each
// request is atomic with respect to every other request and to the reaper.
package session
