// Package timeouts defines the timeouts shared by SPAR services.
package timeouts

import "time"

// GRPCDial caps connecting to a gRPC peer and waiting for its health check.
const GRPCDial = 5 * time.Second

// ReadHeader limits how long an HTTP server waits for request headers.
const ReadHeader = 5 * time.Second

// Shutdown limits how long a server waits for in-flight requests during
// graceful shutdown.
const Shutdown = 5 * time.Second

// HealthPoll is the interval between background health checks of a peer.
const HealthPoll = 30 * time.Second
