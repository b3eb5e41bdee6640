package domain

import "time"

// grpcCallTimeout caps a single session service call from a tool handler.
const grpcCallTimeout = 5 * time.Second

// grpcGenerateTimeout caps Generate calls, which may run a full batch.
const grpcGenerateTimeout = 15 * time.Second
