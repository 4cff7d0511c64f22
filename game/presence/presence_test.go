package presence

import (
	"testing"
	"time"
)

func TestEvaluateDefaultPolicy(t *testing.T) {
	p := DefaultPolicy()
	now := time.Now()

	tests := []struct {
		name    string
		silence time.Duration
		want    Verdict
	}{
		{"just seen", 0, KeepOnline},
		{"within threshold", 9 * time.Second, KeepOnline},
		{"at threshold", 10 * time.Second, KeepOnline},
		{"past threshold", 11 * time.Second, MarkOffline},
		{"long silence never forfeits", 10 * time.Minute, MarkOffline},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := p.Evaluate(now.Add(-tt.silence), now)
			if got != tt.want {
				t.Errorf("Evaluate(silence=%v) = %v, want %v", tt.silence, got, tt.want)
			}
		})
	}
}

func TestEvaluateWithForfeitEnabled(t *testing.T) {
	p := Policy{OfflineAfter: 10 * time.Second, ForfeitAfter: 30 * time.Second}
	now := time.Now()

	tests := []struct {
		name    string
		silence time.Duration
		want    Verdict
	}{
		{"online", 5 * time.Second, KeepOnline},
		{"offline only", 15 * time.Second, MarkOffline},
		{"forfeit", 31 * time.Second, ForceLeave},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := p.Evaluate(now.Add(-tt.silence), now)
			if got != tt.want {
				t.Errorf("Evaluate(silence=%v) = %v, want %v", tt.silence, got, tt.want)
			}
		})
	}
}
