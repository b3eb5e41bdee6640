// Package grpc holds client-side helpers shared by SPAR gRPC clients.
package grpc

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	gogrpc "google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

// DefaultDialTimeout bounds a dial plus its health wait.
const DefaultDialTimeout = 5 * time.Second

// DialStage describes where a dial attempt failed.
type DialStage string

const (
	DialStageConnect DialStage = "connect"
	DialStageHealth  DialStage = "health"
)

// DialError wraps a dial failure with the stage it happened in.
type DialError struct {
	Addr  string
	Stage DialStage
	Err   error
}

func (e *DialError) Error() string {
	if e == nil {
		return "gRPC dial error"
	}
	return fmt.Sprintf("dial %s: %s: %v", e.Addr, e.Stage, e.Err)
}

func (e *DialError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// DialOptions configures Dial.
type DialOptions struct {
	// Timeout bounds connecting and waiting for health. Zero means
	// DefaultDialTimeout; negative means only ctx bounds the wait.
	Timeout time.Duration
	// Service is the health service name to wait for. Empty checks the
	// server as a whole.
	Service string
	Logf    func(string, ...any)
	// Extra options appended after the defaults.
	Extra []gogrpc.DialOption
}

// ClientDialOptions returns the options every SPAR client uses: plaintext
// transport and OTel stats so trace context follows each call.
func ClientDialOptions() []gogrpc.DialOption {
	return []gogrpc.DialOption{
		gogrpc.WithTransportCredentials(insecure.NewCredentials()),
		gogrpc.WithStatsHandler(otelgrpc.NewClientHandler()),
	}
}

// Dial creates a client for addr and waits until its health check serves.
// The connection is closed when the server never becomes healthy.
func Dial(ctx context.Context, addr string, opts DialOptions) (*gogrpc.ClientConn, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	timeout := opts.Timeout
	if timeout == 0 {
		timeout = DefaultDialTimeout
	}
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	dialOpts := append(ClientDialOptions(), opts.Extra...)
	conn, err := gogrpc.NewClient(addr, dialOpts...)
	if err != nil {
		return nil, &DialError{Addr: addr, Stage: DialStageConnect, Err: err}
	}
	if err := WaitForHealth(ctx, conn, opts.Service, opts.Logf); err != nil {
		_ = conn.Close()
		return nil, &DialError{Addr: addr, Stage: DialStageHealth, Err: err}
	}
	return conn, nil
}
