// Package errors provides structured error handling for the entropy engine.
package errors

// Domain is the error domain for entropy engine errors.
const Domain = "github.com/quillhash/entropy-engine"

// Error is the domain error type with structured metadata.
type Error struct {
	Code     Code              // Machine-readable error code
	Message  string            // Internal message (for logs/telemetry)
	Metadata map[string]string // Offending values attached for diagnostics
	Cause    error             // Wrapped underlying error
}

// Error implements the error interface.
func (e *Error) Error() string {
	return e.Message
}

// Unwrap returns the underlying cause for error chain traversal.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target matches this error by code.
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Code == t.Code
	}
	return false
}

// ErrorCode implements the JSON-RPC error interface so the wire code
// reflects the domain code instead of a generic server error.
func (e *Error) ErrorCode() int {
	return e.Code.RPCCode()
}

// ErrorData implements the JSON-RPC data error interface. The metadata map
// carries the offending values so callers can correct their input.
func (e *Error) ErrorData() interface{} {
	if len(e.Metadata) == 0 {
		return nil
	}
	return e.Metadata
}

// New creates a simple domain error with a code and message.
func New(code Code, message string) *Error {
	return &Error{
		Code:    code,
		Message: message,
	}
}

// WithMetadata creates a domain error carrying diagnostic metadata.
func WithMetadata(code Code, message string, metadata map[string]string) *Error {
	return &Error{
		Code:     code,
		Message:  message,
		Metadata: metadata,
	}
}

// Wrap creates a domain error that wraps an underlying cause.
func Wrap(code Code, message string, cause error) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}
