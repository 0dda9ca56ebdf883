package helpers

import (
	"fmt"
)

// -----------------------------------------------------------------------------
// Custom Error Types
// -----------------------------------------------------------------------------

type ObserverError struct {
	Message string
	Cause   error
}

func (e *ObserverError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *ObserverError) Unwrap() error {
	return e.Cause
}

// Distinct error kinds. Each one maps to a recovery policy:
//   - ProtocolError: malformed or unexpected frame, logged and skipped
//   - ConnectionError: transport failure or idle timeout, triggers a reconnect
//   - WriteError: persistence failure, retried and then dropped
//   - ConfigurationError: invalid operator input, fatal at startup
type ProtocolError struct{ ObserverError }
type ConnectionError struct{ ObserverError }
type WriteError struct{ ObserverError }
type ConfigurationError struct{ ObserverError }

// -----------------------------------------------------------------------------

func NewProtocolError(message string, cause error) *ProtocolError {
	return &ProtocolError{ObserverError{Message: message, Cause: cause}}
}

func NewConnectionError(message string, cause error) *ConnectionError {
	return &ConnectionError{ObserverError{Message: message, Cause: cause}}
}

func NewWriteError(message string, cause error) *WriteError {
	return &WriteError{ObserverError{Message: message, Cause: cause}}
}

func NewConfigurationError(format string, args ...interface{}) *ConfigurationError {
	return &ConfigurationError{ObserverError{Message: fmt.Sprintf(format, args...)}}
}
