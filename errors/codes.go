package errors

// ErrorCode represents a machine-readable error code.
type ErrorCode string

// Input errors
const (
	// ErrCodeInvalidInput indicates the input is invalid.
	ErrCodeInvalidInput ErrorCode = "INVALID_INPUT"
	// ErrCodeMissingField indicates a required field is missing.
	ErrCodeMissingField ErrorCode = "MISSING_FIELD"
	// ErrCodeInvalidFormat indicates a field has an invalid format.
	ErrCodeInvalidFormat ErrorCode = "INVALID_FORMAT"
)

// Configuration errors
const (
	// ErrCodeInvalidConfig indicates a configuration file or struct could not be used.
	ErrCodeInvalidConfig ErrorCode = "INVALID_CONFIG"
	// ErrCodeUnsupportedEngine indicates an unknown transport engine name.
	ErrCodeUnsupportedEngine ErrorCode = "UNSUPPORTED_ENGINE"
)

// ErrCodeInternal indicates an unexpected internal failure.
const ErrCodeInternal ErrorCode = "INTERNAL_ERROR"
