// Package service is the RPC-facing facade over the session engine. It
// defines the GameService interface every transport (wire server, admin
// API, MCP) programs against, and the typed reply envelopes that replace
// the loose dictionaries of the protocol's first implementation.
package service
