// Package server parses session server flags and launches the service.
package server

import (
	"context"
	"flag"
	"strings"

	entrypoint "github.com/louisbranch/spar/internal/platform/cmd"
	sessionapp "github.com/louisbranch/spar/internal/services/session/app"
)

// Config holds session server command configuration.
type Config struct {
	Port   int    `env:"SESSION_PORT"    envDefault:"8090"`
	DBPath string `env:"SESSION_DB_PATH" envDefault:"data/sessions.db"`
	// Packs is a comma-separated list of pack files loaded after the
	// shipped packs.
	Packs string `env:"PACK_PATHS"`
}

// ParseConfig parses environment and flags into Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := entrypoint.ParseConfigFromArgs(&cfg, fs, args, func(fs *flag.FlagSet, cfg *Config) {
		fs.IntVar(&cfg.Port, "port", cfg.Port, "The session gRPC server port")
		fs.StringVar(&cfg.DBPath, "db", cfg.DBPath, "SQLite database path for sessions")
		fs.StringVar(&cfg.Packs, "packs", cfg.Packs, "Comma-separated pack files to load after the shipped packs")
	}); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// PackPaths splits the configured pack list.
func (c Config) PackPaths() []string {
	var out []string
	for _, p := range strings.Split(c.Packs, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Run starts the session gRPC API service.
func Run(ctx context.Context, cfg Config) error {
	return entrypoint.RunWithTelemetry(ctx, entrypoint.ServiceServer, func(ctx context.Context) error {
		return sessionapp.Run(ctx, cfg.Port, sessionapp.Options{
			DBPath:    cfg.DBPath,
			PackPaths: cfg.PackPaths(),
		})
	})
}
