package errors

// Code is a machine-readable error code.
type Code string

const (
	// CodeUnknown represents an unknown error.
	CodeUnknown Code = "UNKNOWN"

	// Draw validation errors
	CodeRangeInvalid       Code = "RANGE_INVALID"
	CodeCallerDataTooLarge Code = "CALLER_DATA_TOO_LARGE"
	CodeCountInvalid       Code = "COUNT_INVALID"

	// Storage errors
	CodeNotFound Code = "NOT_FOUND"

	// Context provider errors
	CodeContextUnavailable Code = "CONTEXT_UNAVAILABLE"
)

// JSON-RPC error codes for the engine namespace. Validation failures get
// their own codes in the -381xx block so callers can branch on them without
// parsing messages; everything else collapses to standard server errors.
const (
	rpcCodeInvalidRange     = -38101
	rpcCodeCallerDataLimit  = -38102
	rpcCodeInvalidCount     = -38103
	rpcCodeNotFound         = -38110
	rpcCodeContextUnavail   = -38111
	rpcCodeInternal         = -32603
)

// RPCCode maps domain codes to JSON-RPC error codes.
func (c Code) RPCCode() int {
	switch c {
	case CodeRangeInvalid:
		return rpcCodeInvalidRange
	case CodeCallerDataTooLarge:
		return rpcCodeCallerDataLimit
	case CodeCountInvalid:
		return rpcCodeInvalidCount
	case CodeNotFound:
		return rpcCodeNotFound
	case CodeContextUnavailable:
		return rpcCodeContextUnavail
	default:
		return rpcCodeInternal
	}
}
