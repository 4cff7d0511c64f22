// Package lb is the load balancer: a health-probed pool of backend
// addresses and a reverse proxy that relays client connections to live
// backends.
package lb

import (
	"context"
	"hash/fnv"
	"net"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Pool tracks a fixed roster of backend addresses and which of them are
// currently reachable. The live set is refreshed by periodic probes and,
// out of band, whenever the proxy observes a connection refusal. The
// pool's lock covers only the live-set swap and cursor advance; it is
// never held across network I/O.
type Pool struct {
	backends     []string
	probeTimeout time.Duration
	log          *zap.Logger

	mu     sync.Mutex
	live   []string
	cursor int

	kick chan struct{}
}

// NewPool creates a pool over a static roster. The live set starts empty;
// call Probe (or Run) before selecting.
func NewPool(backends []string, probeTimeout time.Duration, log *zap.Logger) *Pool {
	return &Pool{
		backends:     backends,
		probeTimeout: probeTimeout,
		log:          log,
		kick:         make(chan struct{}, 1),
	}
}

// Next returns the next live backend in round-robin order. The second
// return is false when no backend is live.
func (p *Pool) Next() (string, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if len(p.live) == 0 {
		return "", false
	}
	p.cursor = (p.cursor + 1) % len(p.live)
	return p.live[p.cursor], true
}

// Pick returns a live backend chosen by hashing key, so the same key keeps
// landing on the same backend while the live set is stable. Used to pin a
// player's session to the instance that holds its state.
func (p *Pool) Pick(key string) (string, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if len(p.live) == 0 {
		return "", false
	}
	h := fnv.New32a()
	h.Write([]byte(key))
	return p.live[int(h.Sum32())%len(p.live)], true
}

// Live returns a copy of the current live set.
func (p *Pool) Live() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.live...)
}

// Probe sweeps the full roster once: each address gets a short connect
// attempt, and the reachable ones become the new live set atomically.
func (p *Pool) Probe() {
	var live []string
	for _, addr := range p.backends {
		conn, err := net.DialTimeout("tcp", addr, p.probeTimeout)
		if err != nil {
			p.log.Warn("backend unreachable", zap.String("backend", addr), zap.Error(err))
			continue
		}
		conn.Close()
		live = append(live, addr)
	}

	p.mu.Lock()
	changed := !sameSet(p.live, live)
	p.live = live
	if p.cursor >= len(live) {
		p.cursor = 0
	}
	p.mu.Unlock()

	if changed {
		p.log.Info("health status updated",
			zap.Int("live", len(live)),
			zap.Int("total", len(p.backends)),
			zap.Strings("backends", live))
	}
}

// RequestProbe schedules an immediate out-of-band probe. Never blocks; a
// probe already pending is enough.
func (p *Pool) RequestProbe() {
	select {
	case p.kick <- struct{}{}:
	default:
	}
}

// Run probes immediately, then on every interval tick and on every
// RequestProbe, until ctx is canceled.
func (p *Pool) Run(ctx context.Context, interval time.Duration) {
	p.Probe()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.Probe()
		case <-p.kick:
			p.Probe()
		}
	}
}

func sameSet(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	seen := make(map[string]bool, len(a))
	for _, s := range a {
		seen[s] = true
	}
	for _, s := range b {
		if !seen[s] {
			return false
		}
	}
	return true
}
