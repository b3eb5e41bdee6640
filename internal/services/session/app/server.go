// Package server wires the session runtime and gRPC lifecycle.
package server

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"os"
	"path/filepath"
	"strings"

	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	grpc_health_v1 "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/louisbranch/spar/internal/platform/config"
	"github.com/louisbranch/spar/internal/services/session"
	"github.com/louisbranch/spar/internal/services/session/api/grpc/sessions"
	sessionsqlite "github.com/louisbranch/spar/internal/services/session/storage/sqlite"
	"github.com/louisbranch/spar/internal/spar/content"
	"github.com/louisbranch/spar/internal/spar/content/packs"
)

type serverEnv struct {
	DBPath    string   `env:"SESSION_DB_PATH"`
	PackPaths []string `env:"PACK_PATHS" envSeparator:","`
}

func loadServerEnv() serverEnv {
	var cfg serverEnv
	_ = config.ParseEnv(&cfg)
	if strings.TrimSpace(cfg.DBPath) == "" {
		cfg.DBPath = filepath.Join("data", "sessions.db")
	}
	return cfg
}

// Options override environment configuration. Zero values fall back to
// the environment.
type Options struct {
	DBPath string
	// PackPaths are pack files loaded after the shipped packs.
	PackPaths []string
}

// Server hosts the session gRPC API and its storage.
type Server struct {
	listener   net.Listener
	grpcServer *grpc.Server
	health     *health.Server
	store      *sessionsqlite.Store
}

// NewWithAddr creates a session server for addr.
func NewWithAddr(addr string, opts Options) (*Server, error) {
	env := loadServerEnv()
	if opts.DBPath == "" {
		opts.DBPath = env.DBPath
	}
	if len(opts.PackPaths) == 0 {
		opts.PackPaths = env.PackPaths
	}

	catalog, err := loadCatalog(opts.PackPaths)
	if err != nil {
		return nil, err
	}

	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("listen on %s: %w", addr, err)
	}
	store, err := openSessionStore(opts.DBPath)
	if err != nil {
		_ = listener.Close()
		return nil, err
	}

	grpcServer := grpc.NewServer(grpc.StatsHandler(otelgrpc.NewServerHandler()))
	healthServer := health.NewServer()
	sessions.RegisterSessionServiceServer(grpcServer, sessions.NewService(session.NewService(store, catalog)))
	grpc_health_v1.RegisterHealthServer(grpcServer, healthServer)
	healthServer.SetServingStatus("", grpc_health_v1.HealthCheckResponse_SERVING)
	healthServer.SetServingStatus(sessions.ServiceName, grpc_health_v1.HealthCheckResponse_SERVING)

	return &Server{
		listener:   listener,
		grpcServer: grpcServer,
		health:     healthServer,
		store:      store,
	}, nil
}

// Addr returns the listener address.
func (s *Server) Addr() string {
	if s == nil || s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Run creates and serves a session server on port until ctx is cancelled.
func Run(ctx context.Context, port int, opts Options) error {
	server, err := NewWithAddr(fmt.Sprintf(":%d", port), opts)
	if err != nil {
		return err
	}
	return server.Serve(ctx)
}

// Serve runs the gRPC server until ctx is cancelled.
func (s *Server) Serve(ctx context.Context) error {
	if s == nil {
		return errors.New("server is nil")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	defer s.Close()

	log.Printf("session server listening at %v", s.listener.Addr())
	serveErr := make(chan error, 1)
	go func() {
		serveErr <- s.grpcServer.Serve(s.listener)
	}()

	var err error
	select {
	case <-ctx.Done():
		s.health.Shutdown()
		s.grpcServer.GracefulStop()
		err = <-serveErr
	case err = <-serveErr:
	}
	if err == nil || errors.Is(err, grpc.ErrServerStopped) {
		return nil
	}
	return fmt.Errorf("serve gRPC: %w", err)
}

// Close releases server resources.
func (s *Server) Close() {
	if s == nil {
		return
	}
	if s.health != nil {
		s.health.Shutdown()
	}
	if s.grpcServer != nil {
		s.grpcServer.Stop()
	}
	if s.listener != nil {
		_ = s.listener.Close()
	}
	if s.store != nil {
		if err := s.store.Close(); err != nil {
			log.Printf("close session store: %v", err)
		}
	}
}

func loadCatalog(paths []string) (*content.Store, error) {
	catalog, err := packs.StoreWith(paths...)
	if err != nil {
		return nil, err
	}
	for _, meta := range catalog.Packs() {
		log.Printf("loaded pack %s (%s)", meta.Name, meta.GeneratorType)
	}
	for id, from := range catalog.Duplicates() {
		log.Printf("event id %s defined in %s; the last one wins", id, strings.Join(from, ", "))
	}
	return catalog, nil
}

func openSessionStore(path string) (*sessionsqlite.Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create storage dir: %w", err)
		}
	}
	store, err := sessionsqlite.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open session sqlite store: %w", err)
	}
	return store, nil
}
