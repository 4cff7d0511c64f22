// Package config loads process configuration from the environment.
//
// Every knob has a default matching the deployment the system was designed
// for: three backends on loopback ports 55556-55558 fronted by a balancer on
// 44444. A .env file, when present, is loaded by main before parsing.
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Server configures one backend instance.
type Server struct {
	Addr         string        `env:"LISTEN_ADDR" envDefault:"127.0.0.1:55556"`
	Workers      int           `env:"WORKERS" envDefault:"10"`
	ReadTimeout  time.Duration `env:"READ_TIMEOUT" envDefault:"30s"`
	StateFile    string        `env:"STATE_FILE" envDefault:"game_state.json"`
	ReapInterval time.Duration `env:"REAP_INTERVAL" envDefault:"5s"`

	// OfflineAfter flips a silent in-game player to offline. ForfeitAfter,
	// when non-zero, additionally force-leaves them with reason "disconnect".
	OfflineAfter time.Duration `env:"OFFLINE_AFTER" envDefault:"10s"`
	ForfeitAfter time.Duration `env:"FORFEIT_AFTER" envDefault:"0"`

	// AdminAddr enables the HTTP observer surface when set, e.g. ":8080".
	AdminAddr string `env:"ADMIN_ADDR"`
}

// Proxy configures the load balancer.
type Proxy struct {
	Addr     string   `env:"LB_LISTEN_ADDR" envDefault:"0.0.0.0:44444"`
	Backends []string `env:"LB_BACKENDS" envSeparator:"," envDefault:"127.0.0.1:55556,127.0.0.1:55557,127.0.0.1:55558"`

	// Mode selects the relay discipline: "roundtrip" (one request/response
	// cycle per connection) or "duplex" (raw byte relay in both directions).
	Mode string `env:"LB_MODE" envDefault:"roundtrip"`

	// PinByPlayer routes by hashing the player id in the request path over
	// the live set instead of round-robin, so a session sticks to one
	// backend. Only effective in roundtrip mode.
	PinByPlayer bool `env:"LB_PIN_BY_PLAYER" envDefault:"false"`

	Workers       int           `env:"LB_WORKERS" envDefault:"20"`
	ProbeInterval time.Duration `env:"LB_PROBE_INTERVAL" envDefault:"15s"`
	ProbeTimeout  time.Duration `env:"LB_PROBE_TIMEOUT" envDefault:"2s"`
	DialTimeout   time.Duration `env:"LB_DIAL_TIMEOUT" envDefault:"5s"`
	ClientTimeout time.Duration `env:"LB_CLIENT_TIMEOUT" envDefault:"30s"`
}

// Config is the full process configuration.
type Config struct {
	Debug  bool `env:"DEBUG" envDefault:"false"`
	Server Server
	Proxy  Proxy
}

// Load parses the configuration from the environment.
func Load() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.Server.Workers <= 0 {
		return fmt.Errorf("WORKERS must be positive, got %d", c.Server.Workers)
	}
	if c.Proxy.Workers <= 0 {
		return fmt.Errorf("LB_WORKERS must be positive, got %d", c.Proxy.Workers)
	}
	if len(c.Proxy.Backends) == 0 {
		return fmt.Errorf("LB_BACKENDS must list at least one backend")
	}
	switch c.Proxy.Mode {
	case "roundtrip", "duplex":
	default:
		return fmt.Errorf("LB_MODE must be \"roundtrip\" or \"duplex\", got %q", c.Proxy.Mode)
	}
	return nil
}
