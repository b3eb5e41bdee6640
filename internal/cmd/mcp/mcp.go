// Package mcp parses MCP command flags and selects stdio or HTTP transport.
package mcp

import (
	"context"
	"flag"
	"log"
	"strings"

	entrypoint "github.com/louisbranch/spar/internal/platform/cmd"
	"github.com/louisbranch/spar/internal/services/mcp/service"
	"github.com/louisbranch/spar/internal/spar/content/packs"
)

// Config holds MCP command configuration.
type Config struct {
	// SessionAddr is the session server address. Empty runs only the
	// stateless tools.
	SessionAddr string `env:"SESSION_ADDR"`
	HTTPAddr    string `env:"MCP_HTTP_ADDR" envDefault:"localhost:8081"`
	Transport   string `env:"MCP_TRANSPORT" envDefault:"stdio"`
	// Packs is a comma-separated list of pack files loaded after the
	// shipped packs.
	Packs string `env:"PACK_PATHS"`
}

// ParseConfig parses environment and flags into a Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := entrypoint.ParseConfigFromArgs(&cfg, fs, args, func(fs *flag.FlagSet, cfg *Config) {
		fs.StringVar(&cfg.SessionAddr, "session-addr", cfg.SessionAddr, "session server address (enables the session tools)")
		fs.StringVar(&cfg.HTTPAddr, "http-addr", cfg.HTTPAddr, "HTTP server address (for HTTP transport)")
		fs.StringVar(&cfg.Transport, "transport", cfg.Transport, "Transport type: stdio or http")
		fs.StringVar(&cfg.Packs, "packs", cfg.Packs, "Comma-separated pack files to load after the shipped packs")
	}); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Run starts the MCP server.
func Run(ctx context.Context, cfg Config) error {
	return entrypoint.RunWithTelemetry(ctx, entrypoint.ServiceMCP, func(ctx context.Context) error {
		catalog, err := packs.StoreWith(strings.Split(cfg.Packs, ",")...)
		if err != nil {
			return err
		}
		for id, from := range catalog.Duplicates() {
			log.Printf("event id %s defined in %s; the last one wins", id, strings.Join(from, ", "))
		}
		return service.Run(ctx, service.Config{
			SessionAddr: cfg.SessionAddr,
			Transport:   service.TransportKind(strings.ToLower(strings.TrimSpace(cfg.Transport))),
			HTTPAddr:    cfg.HTTPAddr,
			Catalog:     catalog,
		})
	})
}
