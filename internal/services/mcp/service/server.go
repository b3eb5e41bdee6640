package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"google.golang.org/grpc"
	grpc_health_v1 "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/louisbranch/spar/internal/platform/branding"
	platformgrpc "github.com/louisbranch/spar/internal/platform/grpc"
	"github.com/louisbranch/spar/internal/platform/timeouts"
	"github.com/louisbranch/spar/internal/services/mcp/domain"
	"github.com/louisbranch/spar/internal/services/session/api/grpc/sessions"
	"github.com/louisbranch/spar/internal/spar/content"
)

// serverVersion identifies the MCP server version.
const serverVersion = "0.1.0"

// serverName identifies this MCP server to clients.
var serverName = branding.AppName + " MCP"

// TransportKind identifies the MCP transport implementation.
type TransportKind string

const (
	// TransportStdio uses standard input/output.
	TransportStdio TransportKind = "stdio"
	// TransportHTTP serves the streamable HTTP transport.
	TransportHTTP TransportKind = "http"
)

// Config configures the MCP server.
type Config struct {
	// SessionAddr is the session server address. Empty disables the
	// session tools.
	SessionAddr string
	Transport   TransportKind
	// HTTPAddr defaults to localhost:8081 for the HTTP transport.
	HTTPAddr string
	// Catalog is the content the stateless tools generate from.
	Catalog *content.Store
}

// Server hosts the MCP server.
type Server struct {
	mcpServer *mcp.Server
	conn      *grpc.ClientConn
	ctx       domain.Context
	ctxMu     sync.RWMutex
}

// New creates an MCP server over catalog. When conn is non-nil the session
// tools are registered against it.
func New(catalog *content.Store, conn *grpc.ClientConn) (*Server, error) {
	if catalog == nil {
		return nil, fmt.Errorf("content store is required")
	}
	mcpServer := mcp.NewServer(&mcp.Implementation{Name: serverName, Version: serverVersion}, nil)
	server := &Server{mcpServer: mcpServer, conn: conn}

	registrar := mcpServerRegistrationAdapter{server: mcpServer}
	modules := []mcpRegistrationModule{
		{name: "content-tools", register: func(r mcpRegistrationTarget) error {
			return registerContentTools(r, catalog)
		}},
		{name: "state-tools", register: registerStateTools},
		{name: "content-resources", register: func(r mcpRegistrationTarget) error {
			r.AddResource(domain.PacksResource(), domain.PacksResourceHandler(catalog))
			return nil
		}},
	}
	if conn != nil {
		client := sessions.NewClient(conn)
		modules = append(modules, mcpRegistrationModule{name: "session-tools", register: func(r mcpRegistrationTarget) error {
			return registerSessionTools(r, client, server.setContext, server.getContext)
		}})
	}
	for _, module := range modules {
		if err := module.register(registrar); err != nil {
			return nil, fmt.Errorf("register MCP module %q: %w", module.name, err)
		}
	}
	return server, nil
}

// Run builds the server for cfg and serves it until ctx ends.
func Run(ctx context.Context, cfg Config) error {
	if cfg.Transport == "" {
		cfg.Transport = TransportStdio
	}
	switch cfg.Transport {
	case TransportStdio, TransportHTTP:
	default:
		return fmt.Errorf("transport %q is not supported", cfg.Transport)
	}

	var conn *grpc.ClientConn
	if addr := strings.TrimSpace(cfg.SessionAddr); addr != "" {
		dialed, err := dialSessions(ctx, addr)
		if err != nil {
			return err
		}
		conn = dialed
	}
	server, err := New(cfg.Catalog, conn)
	if err != nil {
		if conn != nil {
			_ = conn.Close()
		}
		return err
	}

	if cfg.Transport == TransportHTTP {
		return server.serveHTTP(ctx, cfg.HTTPAddr)
	}
	return server.serveWithTransport(ctx, &mcp.StdioTransport{})
}

// serveHTTP serves the streamable HTTP transport until ctx ends.
func (s *Server) serveHTTP(ctx context.Context, addr string) error {
	defer s.Close()
	if addr == "" {
		addr = "localhost:8081"
	}
	if ctx == nil {
		ctx = context.Background()
	}
	healthCtx, healthCancel := context.WithCancel(ctx)
	defer healthCancel()
	go s.monitorHealth(healthCtx, timeouts.HealthPoll)

	handler := mcp.NewStreamableHTTPHandler(func(*http.Request) *mcp.Server { return s.mcpServer }, nil)
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: timeouts.ReadHeader,
	}
	serveErr := make(chan error, 1)
	go func() {
		log.Printf("MCP HTTP listening at %s", addr)
		serveErr <- httpServer.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), timeouts.Shutdown)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown MCP HTTP: %w", err)
		}
		return nil
	case err := <-serveErr:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serve MCP HTTP: %w", err)
	}
}

// monitorHealth logs when the session server stops reporting SERVING. It
// never stops the MCP server; individual calls report their own errors.
func (s *Server) monitorHealth(ctx context.Context, interval time.Duration) {
	if s == nil || s.conn == nil {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	client := grpc_health_v1.NewHealthClient(s.conn)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			callCtx, cancel := context.WithTimeout(ctx, timeouts.GRPCDial)
			resp, err := client.Check(callCtx, &grpc_health_v1.HealthCheckRequest{Service: sessions.ServiceName})
			cancel()
			if err != nil {
				log.Printf("session health check failed: %v", err)
			} else if resp.GetStatus() != grpc_health_v1.HealthCheckResponse_SERVING {
				log.Printf("session health status: %s", resp.GetStatus())
			}
		}
	}
}

// Serve runs the server on stdio until it stops or ctx ends.
func (s *Server) Serve(ctx context.Context) error {
	return s.serveWithTransport(ctx, &mcp.StdioTransport{})
}

// Close releases the session connection, if any.
func (s *Server) Close() error {
	if s == nil || s.conn == nil {
		return nil
	}
	if err := s.conn.Close(); err != nil {
		return err
	}
	s.conn = nil
	return nil
}

func (s *Server) setContext(ctx domain.Context) {
	s.ctxMu.Lock()
	defer s.ctxMu.Unlock()
	s.ctx = ctx
}

func (s *Server) getContext() domain.Context {
	s.ctxMu.RLock()
	defer s.ctxMu.RUnlock()
	return s.ctx
}

// serveWithTransport runs the server on transport and closes the session
// connection on the way out.
func (s *Server) serveWithTransport(ctx context.Context, transport mcp.Transport) error {
	if s == nil || s.mcpServer == nil {
		return fmt.Errorf("MCP server is not configured")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	err := s.mcpServer.Run(ctx, transport)
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		err = nil
	}
	if closeErr := s.Close(); closeErr != nil {
		if err == nil {
			return fmt.Errorf("close session connection: %w", closeErr)
		}
		return fmt.Errorf("serve MCP: %v; close session connection: %w", err, closeErr)
	}
	if err != nil {
		return fmt.Errorf("serve MCP: %w", err)
	}
	return nil
}

func dialSessions(ctx context.Context, addr string) (*grpc.ClientConn, error) {
	conn, err := platformgrpc.Dial(ctx, addr, platformgrpc.DialOptions{
		Timeout: timeouts.GRPCDial,
		Service: sessions.ServiceName,
		Logf: func(format string, args ...any) {
			log.Printf("session %s", fmt.Sprintf(format, args...))
		},
	})
	if err != nil {
		var dialErr *platformgrpc.DialError
		if errors.As(err, &dialErr) && dialErr.Stage == platformgrpc.DialStageConnect {
			return nil, fmt.Errorf("connect to session server at %s: %w", addr, dialErr.Err)
		}
		return nil, err
	}
	return conn, nil
}
