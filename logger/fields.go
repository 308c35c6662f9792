package logger

import (
	"time"
)

// Standard field keys used by the HTTP client layer.
const (
	FieldComponent = "component"
	FieldEngine    = "engine"
	FieldCallID    = "call_id"
	FieldMethod    = "method"
	FieldURL       = "url"
	FieldProxy     = "proxy"
	FieldStatus    = "status"
	FieldErrorKind = "error_kind"
	FieldError     = "error"
	FieldDuration  = "duration_ms"
	FieldOperation = "operation"
)

// Fields builds a map[string]interface{} from alternating key-value pairs.
//
//	log.Debug("sent", logger.Fields("method", "GET", "status", 200))
func Fields(kvs ...interface{}) map[string]interface{} {
	m := make(map[string]interface{}, len(kvs)/2)
	for i := 0; i < len(kvs)-1; i += 2 {
		if key, ok := kvs[i].(string); ok {
			m[key] = kvs[i+1]
		}
	}
	return m
}

// ErrorFields creates fields for an operation that failed.
func ErrorFields(op string, err error) map[string]interface{} {
	return map[string]interface{}{
		FieldOperation: op,
		FieldError:     err.Error(),
	}
}

// DurationFields creates fields for a timed operation.
func DurationFields(op string, d time.Duration) map[string]interface{} {
	return map[string]interface{}{
		FieldOperation: op,
		FieldDuration:  d.Milliseconds(),
	}
}

// Merge copies src into dst, allocating dst when nil.
func Merge(dst map[string]interface{}, src map[string]interface{}) map[string]interface{} {
	if dst == nil {
		dst = make(map[string]interface{}, len(src))
	}
	for k, v := range src {
		dst[k] = v
	}
	return dst
}
