// Package errors provides structured domain errors for the complication engine.
package errors

import "google.golang.org/grpc/codes"

// Code is a machine-readable error code.
type Code string

const (
	// CodeUnknown represents an unknown error.
	CodeUnknown Code = "UNKNOWN"

	// Content errors
	CodeContentExhausted Code = "CONTENT_EXHAUSTED"
	CodeMalformedContent Code = "MALFORMED_CONTENT"
	CodeUnknownEventID   Code = "UNKNOWN_EVENT_ID"

	// Random source errors
	CodeInvalidRandomInput Code = "INVALID_RANDOM_INPUT"

	// Scene/selection errors
	CodeInvalidScene     Code = "INVALID_SCENE"
	CodeInvalidSelection Code = "INVALID_SELECTION"

	// Session errors
	CodeSessionNotFound Code = "SESSION_NOT_FOUND"
	CodeSessionIDEmpty  Code = "SESSION_ID_EMPTY"
)

// GRPCCode maps domain codes to gRPC status codes.
func (c Code) GRPCCode() codes.Code {
	switch c {
	// InvalidArgument - validation failures, bad input
	case CodeMalformedContent,
		CodeInvalidRandomInput,
		CodeInvalidScene,
		CodeInvalidSelection,
		CodeSessionIDEmpty:
		return codes.InvalidArgument

	// FailedPrecondition - state doesn't allow operation
	case CodeContentExhausted:
		return codes.FailedPrecondition

	// NotFound
	case CodeUnknownEventID,
		CodeSessionNotFound:
		return codes.NotFound

	default:
		return codes.Internal
	}
}
