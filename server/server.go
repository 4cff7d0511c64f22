// Package server runs one backend instance: a TCP listener feeding a
// bounded worker pool, a per-connection read deadline, and the background
// reaper tick. One request per connection, then close, matching the
// protocol's no-keep-alive contract.
package server

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
	"ticarena/game/session"
	"ticarena/wire"
)

// Config holds the connection server's runtime knobs.
type Config struct {
	Addr         string
	Workers      int
	ReadTimeout  time.Duration
	ReapInterval time.Duration
}

// Server accepts connections and runs each through the router on a pool
// worker. A slow or silent client occupies one worker until its read
// deadline fires; there is no other cancellation primitive.
type Server struct {
	cfg    Config
	router *Router
	engine *session.Engine
	log    *zap.Logger
}

// New builds a server around an already-constructed router and engine.
func New(cfg Config, router *Router, engine *session.Engine, log *zap.Logger) *Server {
	return &Server{cfg: cfg, router: router, engine: engine, log: log}
}

// ListenAndServe blocks until ctx is canceled or the listener fails.
func (s *Server) ListenAndServe(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return err
	}
	s.log.Info("server listening",
		zap.String("addr", ln.Addr().String()),
		zap.Int("workers", s.cfg.Workers))

	go s.reapLoop(ctx)
	go func() {
		<-ctx.Done()
		ln.Close()
	}()

	conns := make(chan net.Conn)
	var wg sync.WaitGroup
	for i := 0; i < s.cfg.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for conn := range conns {
				s.handle(ctx, conn)
			}
		}()
	}

	for {
		conn, err := ln.Accept()
		if err != nil {
			close(conns)
			wg.Wait()
			if ctx.Err() != nil {
				s.log.Info("server shut down")
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

// handle processes one connection: read one request, dispatch, reply,
// close. The connection is closed on every path.
func (s *Server) handle(ctx context.Context, conn net.Conn) {
	defer conn.Close()

	defer func() {
		if r := recover(); r != nil {
			s.log.Error("panic handling request", zap.Any("panic", r))
			s.write(conn, wire.NewJSONResponse(500, service.ErrorReply("Internal server error")))
		}
	}()

	conn.SetReadDeadline(time.Now().Add(s.cfg.ReadTimeout))

	req, err := wire.ReadRequest(bufio.NewReader(conn))
	if err != nil {
		var netErr net.Error
		switch {
		case errors.As(err, &netErr) && netErr.Timeout():
			s.log.Warn("client request timed out", zap.String("remote", conn.RemoteAddr().String()))
			s.write(conn, wire.NewJSONResponse(408, service.ErrorReply("Request timeout")))
		case errors.Is(err, io.EOF):
			// Connect-and-close, as the balancer's health probe does.
		default:
			s.write(conn, wire.NewJSONResponse(400, service.ErrorReply("Malformed request")))
		}
		return
	}

	resp := s.router.Dispatch(ctx, req)
	s.write(conn, resp)
}

func (s *Server) write(conn net.Conn, resp *wire.Response) {
	conn.SetWriteDeadline(time.Now().Add(s.cfg.ReadTimeout))
	if _, err := conn.Write(resp.Bytes()); err != nil {
		s.log.Debug("write reply failed", zap.Error(err))
	}
}

// reapLoop ticks the presence reaper. It shares the engine lock with
// request handling, so a tick never overlaps a request.
func (s *Server) reapLoop(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.ReapInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.engine.Reap()
		}
	}
}
