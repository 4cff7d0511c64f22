package lb

import (
	"bufio"
	"context"
	"errors"
	"io"
	"net"
	"sync"
	"time"

	"go.uber.org/zap"

	"ticarena/game/service"
	"ticarena/wire"
)

// Mode selects the relay discipline.
type Mode string

const (
	// ModeRoundTrip relays exactly one request/response cycle and closes
	// both sockets. This matches the protocol, which never reuses a
	// connection, and keeps resource use per connection bounded.
	ModeRoundTrip Mode = "roundtrip"

	// ModeDuplex relays raw bytes in both directions until either side
	// closes. More general; both copy directions are owned by the pool
	// worker handling the connection, so bursts stay within the pool's
	// concurrency ceiling.
	ModeDuplex Mode = "duplex"
)

// Config holds the proxy's runtime knobs.
type Config struct {
	Addr          string
	Mode          Mode
	PinByPlayer   bool
	Workers       int
	DialTimeout   time.Duration
	ClientTimeout time.Duration
}

// Proxy accepts client connections and relays each to a live backend
// chosen through the pool. Backend failures surface to the client as
// gateway errors, never as game errors; a refused connection additionally
// triggers an immediate health re-probe.
type Proxy struct {
	cfg  Config
	pool *Pool
	log  *zap.Logger
}

// NewProxy builds a proxy over an already-running pool.
func NewProxy(cfg Config, pool *Pool, log *zap.Logger) *Proxy {
	return &Proxy{cfg: cfg, pool: pool, log: log}
}

// ListenAndServe blocks until ctx is canceled or the listener fails.
func (p *Proxy) ListenAndServe(ctx context.Context) error {
	ln, err := net.Listen("tcp", p.cfg.Addr)
	if err != nil {
		return err
	}
	p.log.Info("load balancer listening",
		zap.String("addr", ln.Addr().String()),
		zap.String("mode", string(p.cfg.Mode)),
		zap.Int("workers", p.cfg.Workers))

	go func() {
		<-ctx.Done()
		ln.Close()
	}()

	conns := make(chan net.Conn)
	var wg sync.WaitGroup
	for i := 0; i < p.cfg.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for conn := range conns {
				p.handle(conn)
			}
		}()
	}

	for {
		conn, err := ln.Accept()
		if err != nil {
			close(conns)
			wg.Wait()
			if ctx.Err() != nil {
				p.log.Info("load balancer shut down")
				return nil
			}
			return err
		}
		select {
		case conns <- conn:
		case <-ctx.Done():
			conn.Close()
		}
	}
}

func (p *Proxy) handle(client net.Conn) {
	defer client.Close()

	switch p.cfg.Mode {
	case ModeDuplex:
		p.relayDuplex(client)
	default:
		p.relayRoundTrip(client)
	}
}

// relayRoundTrip reads one full request, forwards it verbatim, streams the
// one response back, and lets the deferred closes tear everything down.
func (p *Proxy) relayRoundTrip(client net.Conn) {
	client.SetReadDeadline(time.Now().Add(p.cfg.ClientTimeout))

	req, err := wire.ReadRequest(bufio.NewReader(client))
	if err != nil {
		if errors.Is(err, io.EOF) {
			return
		}
		p.sendError(client, 400, "Malformed request")
		return
	}

	backend, ok := p.selectBackend(req)
	if !ok {
		p.log.Error("no live backend available")
		p.sendError(client, 503, "Service Unavailable")
		return
	}

	conn, err := net.DialTimeout("tcp", backend, p.cfg.DialTimeout)
	if err != nil {
		// React faster than the fixed probe interval to a backend that
		// just crashed.
		p.log.Error("backend refused connection, triggering health check",
			zap.String("backend", backend), zap.Error(err))
		p.pool.RequestProbe()
		p.sendError(client, 502, "Bad Gateway")
		return
	}
	defer conn.Close()

	conn.SetDeadline(time.Now().Add(p.cfg.ClientTimeout))
	if _, err := conn.Write(req.Raw); err != nil {
		p.pool.RequestProbe()
		p.sendError(client, 502, "Bad Gateway")
		return
	}

	client.SetWriteDeadline(time.Now().Add(p.cfg.ClientTimeout))
	n, err := io.Copy(client, conn)
	if err != nil && n == 0 {
		p.sendError(client, 502, "Bad Gateway")
		return
	}
	p.log.Debug("round trip relayed",
		zap.String("backend", backend),
		zap.String("path", req.Path),
		zap.Int64("response_bytes", n))
}

// relayDuplex forwards raw bytes both ways until either side closes. The
// second direction runs on one extra goroutine joined before the worker
// returns, so concurrency stays bounded by the pool size.
func (p *Proxy) relayDuplex(client net.Conn) {
	backend, ok := p.pool.Next()
	if !ok {
		p.log.Error("no live backend available")
		p.sendError(client, 503, "Service Unavailable")
		return
	}

	conn, err := net.DialTimeout("tcp", backend, p.cfg.DialTimeout)
	if err != nil {
		p.log.Error("backend refused connection, triggering health check",
			zap.String("backend", backend), zap.Error(err))
		p.pool.RequestProbe()
		p.sendError(client, 502, "Bad Gateway")
		return
	}
	defer conn.Close()

	done := make(chan struct{})
	go func() {
		defer close(done)
		io.Copy(conn, client)
		// Client finished sending; closing both ends unblocks the other
		// direction so no socket is left half-open.
		conn.Close()
		client.Close()
	}()

	io.Copy(client, conn)
	conn.Close()
	client.Close()
	<-done
}

// selectBackend picks round-robin, or by hashing the caller's player id
// when pinning is enabled so a session sticks to the instance holding its
// state.
func (p *Proxy) selectBackend(req *wire.Request) (string, bool) {
	if p.cfg.PinByPlayer {
		if playerID := req.PlayerID(); playerID != "" {
			return p.pool.Pick(playerID)
		}
	}
	return p.pool.Next()
}

func (p *Proxy) sendError(client net.Conn, code int, message string) {
	client.SetWriteDeadline(time.Now().Add(p.cfg.ClientTimeout))
	resp := wire.NewJSONResponse(code, service.ErrorReply(message))
	if _, err := client.Write(resp.Bytes()); err != nil {
		p.log.Debug("write synthetic error failed", zap.Error(err))
	}
}
