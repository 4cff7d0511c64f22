// Package presence classifies players as online or offline from request
// recency. It is pure policy: the session engine feeds it timestamps and
// acts on the verdicts.
package presence

import "time"

// Status is a player's connection classification.
type Status string

const (
	Online  Status = "online"
	Offline Status = "offline"
)

// Verdict is the action the reaper should take for one player.
type Verdict int

const (
	// KeepOnline: the player is within the offline threshold.
	KeepOnline Verdict = iota
	// MarkOffline: silent past the offline threshold; flip presence only.
	MarkOffline
	// ForceLeave: silent past the forfeit threshold; end their game with
	// reason "disconnect".
	ForceLeave
)

// Policy holds the two independent silence thresholds. ForfeitAfter of zero
// disables forced leaves, matching the variant that never ends games on
// timeout.
type Policy struct {
	OfflineAfter time.Duration
	ForfeitAfter time.Duration
}

// DefaultPolicy mirrors the original deployment: offline after 10s of
// silence, forced leave disabled.
func DefaultPolicy() Policy {
	return Policy{OfflineAfter: 10 * time.Second}
}

// Evaluate returns the verdict for a player last seen at lastSeen, as of now.
func (p Policy) Evaluate(lastSeen, now time.Time) Verdict {
	silence := now.Sub(lastSeen)
	if p.ForfeitAfter > 0 && silence > p.ForfeitAfter {
		return ForceLeave
	}
	if silence > p.OfflineAfter {
		return MarkOffline
	}
	return KeepOnline
}
