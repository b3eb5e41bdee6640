package grpc

import (
	"context"
	"fmt"
	"time"

	gogrpc "google.golang.org/grpc"
	grpc_health_v1 "google.golang.org/grpc/health/grpc_health_v1"
)

const (
	healthInitialBackoff = 100 * time.Millisecond
	healthMaxBackoff     = time.Second
	healthCallTimeout    = time.Second
)

// WaitForHealth polls the health service on conn until service reports
// SERVING or ctx ends. Backoff doubles from 100ms up to one second.
func WaitForHealth(ctx context.Context, conn gogrpc.ClientConnInterface, service string, logf func(string, ...any)) error {
	if conn == nil {
		return fmt.Errorf("gRPC connection is not configured")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if logf == nil {
		logf = func(string, ...any) {}
	}

	client := grpc_health_v1.NewHealthClient(conn)
	backoff := healthInitialBackoff
	for attempt := 1; ; attempt++ {
		callCtx, cancel := context.WithTimeout(ctx, healthCallTimeout)
		resp, err := client.Check(callCtx, &grpc_health_v1.HealthCheckRequest{Service: service})
		cancel()
		switch {
		case err == nil && resp.GetStatus() == grpc_health_v1.HealthCheckResponse_SERVING:
			logf("health %q serving after %d attempt(s)", service, attempt)
			return nil
		case err != nil:
			logf("health %q attempt %d: %v", service, attempt, err)
		default:
			logf("health %q attempt %d: %s", service, attempt, resp.GetStatus())
		}

		timer := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			return fmt.Errorf("wait for health %q: %w", service, ctx.Err())
		case <-timer.C:
		}
		backoff = min(backoff*2, healthMaxBackoff)
	}
}
