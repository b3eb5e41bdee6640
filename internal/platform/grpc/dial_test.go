package grpc

import (
	"context"
	"errors"
	"net"
	"strings"
	"testing"
	"time"

	gogrpc "google.golang.org/grpc"
	"google.golang.org/grpc/health"
	grpc_health_v1 "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/test/bufconn"
)

const sessionService = "spar.v1.SessionService"

type healthFixture struct {
	listener *bufconn.Listener
	health   *health.Server
}

func startHealth(t *testing.T, status grpc_health_v1.HealthCheckResponse_ServingStatus) *healthFixture {
	t.Helper()
	listener := bufconn.Listen(1 << 16)
	server := gogrpc.NewServer()
	healthServer := health.NewServer()
	grpc_health_v1.RegisterHealthServer(server, healthServer)
	healthServer.SetServingStatus(sessionService, status)
	go func() { _ = server.Serve(listener) }()
	t.Cleanup(func() {
		server.Stop()
		_ = listener.Close()
	})
	return &healthFixture{listener: listener, health: healthServer}
}

func (f *healthFixture) options(timeout time.Duration) DialOptions {
	return DialOptions{
		Timeout: timeout,
		Service: sessionService,
		Extra: []gogrpc.DialOption{
			gogrpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
				return f.listener.DialContext(ctx)
			}),
		},
	}
}

func TestDialServing(t *testing.T) {
	f := startHealth(t, grpc_health_v1.HealthCheckResponse_SERVING)
	var logs []string
	opts := f.options(2 * time.Second)
	opts.Logf = func(format string, _ ...any) { logs = append(logs, format) }

	conn, err := Dial(context.Background(), "passthrough:///bufnet", opts)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	if len(logs) == 0 || !strings.Contains(logs[len(logs)-1], "serving") {
		t.Fatalf("logs = %v", logs)
	}
}

func TestDialWaitsForServing(t *testing.T) {
	f := startHealth(t, grpc_health_v1.HealthCheckResponse_NOT_SERVING)
	go func() {
		time.Sleep(150 * time.Millisecond)
		f.health.SetServingStatus(sessionService, grpc_health_v1.HealthCheckResponse_SERVING)
	}()

	conn, err := Dial(context.Background(), "passthrough:///bufnet", f.options(3*time.Second))
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	_ = conn.Close()
}

func TestDialHealthTimeout(t *testing.T) {
	f := startHealth(t, grpc_health_v1.HealthCheckResponse_NOT_SERVING)

	start := time.Now()
	conn, err := Dial(context.Background(), "passthrough:///bufnet", f.options(200*time.Millisecond))
	if err == nil {
		_ = conn.Close()
		t.Fatal("expected error")
	}
	var dialErr *DialError
	if !errors.As(err, &dialErr) || dialErr.Stage != DialStageHealth {
		t.Fatalf("err = %v, want health stage", err)
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("err = %v, want deadline exceeded", err)
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Fatalf("dial took %v", elapsed)
	}
}

func TestDialConnectError(t *testing.T) {
	_, err := Dial(context.Background(), "localhost:0", DialOptions{
		Extra: []gogrpc.DialOption{gogrpc.WithDefaultServiceConfig("not json")},
	})
	var dialErr *DialError
	if !errors.As(err, &dialErr) || dialErr.Stage != DialStageConnect {
		t.Fatalf("err = %v, want connect stage", err)
	}
}

func TestWaitForHealthRequiresConn(t *testing.T) {
	if err := WaitForHealth(context.Background(), nil, "", nil); err == nil {
		t.Fatal("expected error for nil conn")
	}
}

func TestDialErrorFormatting(t *testing.T) {
	err := &DialError{Addr: "localhost:8090", Stage: DialStageConnect, Err: errors.New("boom")}
	if got := err.Error(); got != "dial localhost:8090: connect: boom" {
		t.Fatalf("error = %q", got)
	}
	var nilErr *DialError
	if nilErr.Error() == "" || nilErr.Unwrap() != nil {
		t.Fatal("nil DialError should format and unwrap to nil")
	}
}
