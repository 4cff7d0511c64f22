// Command ticarena runs the tic tac toe arena.
//
// It has three modes:
//   - serve: one game server speaking the wire protocol, with an optional
//     HTTP admin and observer surface
//   - lb: the TCP load balancer fronting a set of game servers
//   - mcp: an MCP stdio surface proxying tool calls to a server
//
// Configuration comes from the environment (see the config package); a
// .env file in the working directory is honored.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/urfave/cli/v3"
	"go.uber.org/zap"

	"ticarena/api"
	"ticarena/config"
	"ticarena/game/presence"
	"ticarena/game/service"
	"ticarena/game/session"
	"ticarena/lb"
	"ticarena/logging"
	"ticarena/server"
	"ticarena/transport/mcp"
	"ticarena/transport/websocket"
)

const (
	Version = "1.0.0"
	AppName = "Tic Tac Toe Arena"
)

func main() {
	// A missing .env is fine; anything else is worth a note.
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		fmt.Fprintf(os.Stderr, "warning: loading .env: %v\n", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newApp().Run(ctx, os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newApp() *cli.Command {
	return &cli.Command{
		Name:    "ticarena",
		Usage:   AppName,
		Version: Version,
		Commands: []*cli.Command{
			{
				Name:  "serve",
				Usage: "Run a game server",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "addr", Usage: "Listen address (overrides LISTEN_ADDR)"},
					&cli.StringFlag{Name: "state-file", Usage: "State file path (overrides STATE_FILE)"},
				},
				Action: runServe,
			},
			{
				Name:  "lb",
				Usage: "Run the load balancer",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "addr", Usage: "Listen address (overrides LB_LISTEN_ADDR)"},
				},
				Action: runBalancer,
			},
			{
				Name:  "mcp",
				Usage: "Run the MCP stdio surface",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "server",
						Usage: "Game server or balancer address",
						Value: "127.0.0.1:44444",
					},
				},
				Action: runMCP,
			},
		},
		// Bare invocation behaves like serve, matching the original
		// deployment scripts.
		Action: runServe,
	}
}

func runServe(ctx context.Context, cmd *cli.Command) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if v := cmd.String("addr"); v != "" {
		cfg.Server.Addr = v
	}
	if v := cmd.String("state-file"); v != "" {
		cfg.Server.StateFile = v
	}
	log, err := logging.New(cfg.Debug)
	if err != nil {
		return err
	}
	defer log.Sync()

	policy := presence.Policy{
		OfflineAfter: cfg.Server.OfflineAfter,
		ForfeitAfter: cfg.Server.ForfeitAfter,
	}
	store := session.NewFileStore(cfg.Server.StateFile)
	eng := session.New(store, policy, log)
	svc := service.New(eng)

	var hub *websocket.Hub
	if cfg.Server.AdminAddr != "" {
		hub = websocket.NewHub(log)
		go hub.Run()

		admin := api.NewServer(eng, hub, log)
		go func() {
			log.Info("admin surface listening", zap.String("addr", cfg.Server.AdminAddr))
			if err := http.ListenAndServe(cfg.Server.AdminAddr, admin); err != nil {
				log.Error("admin surface failed", zap.Error(err))
			}
		}()
	}

	router := server.NewRouter(svc, eng, hub, log)
	srv := server.New(server.Config{
		Addr:         cfg.Server.Addr,
		Workers:      cfg.Server.Workers,
		ReadTimeout:  cfg.Server.ReadTimeout,
		ReapInterval: cfg.Server.ReapInterval,
	}, router, eng, log)

	log.Info("game server starting",
		zap.String("addr", cfg.Server.Addr),
		zap.Int("workers", cfg.Server.Workers),
		zap.String("state_file", cfg.Server.StateFile))
	return srv.ListenAndServe(ctx)
}

func runBalancer(ctx context.Context, cmd *cli.Command) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if v := cmd.String("addr"); v != "" {
		cfg.Proxy.Addr = v
	}
	log, err := logging.New(cfg.Debug)
	if err != nil {
		return err
	}
	defer log.Sync()

	mode := lb.ModeRoundTrip
	if cfg.Proxy.Mode == "duplex" {
		mode = lb.ModeDuplex
	}

	pool := lb.NewPool(cfg.Proxy.Backends, cfg.Proxy.ProbeTimeout, log)
	go pool.Run(ctx, cfg.Proxy.ProbeInterval)

	proxy := lb.NewProxy(lb.Config{
		Addr:          cfg.Proxy.Addr,
		Mode:          mode,
		PinByPlayer:   cfg.Proxy.PinByPlayer,
		Workers:       cfg.Proxy.Workers,
		DialTimeout:   cfg.Proxy.DialTimeout,
		ClientTimeout: cfg.Proxy.ClientTimeout,
	}, pool, log)

	log.Info("balancer starting",
		zap.String("addr", cfg.Proxy.Addr),
		zap.Strings("backends", cfg.Proxy.Backends),
		zap.String("mode", cfg.Proxy.Mode))
	return proxy.ListenAndServe(ctx)
}

func runMCP(ctx context.Context, cmd *cli.Command) error {
	addr := cmd.String("server")
	return mcp.NewServer(addr).ServeStdio()
}
