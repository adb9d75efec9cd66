package wiki

import (
	"errors"
	"fmt"
	"strings"
)

// TransportError reports a network failure or a non-success HTTP status.
// StatusCode is 0 when no response was received.
type TransportError struct {
	StatusCode int
	Err        error
}

func (e *TransportError) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("transport error: %v", e.Err)
	}
	return fmt.Sprintf("transport error: HTTP %d: %v", e.StatusCode, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// ErrorCode returns a short label for metrics
func (e *TransportError) ErrorCode() string {
	if e.StatusCode == 0 {
		return "transport"
	}
	return fmt.Sprintf("http_%d", e.StatusCode)
}

// DecodeError reports a response body that is not valid JSON, or that lacks a
// field the operation needs.
type DecodeError struct {
	Err error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode error: %v", e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// ErrorCode returns a short label for metrics
func (e *DecodeError) ErrorCode() string { return "decode" }

// ProtocolError reports a well-formed but unsuccessful API result. Code is the
// wiki's own result or error code, kept verbatim.
type ProtocolError struct {
	Op   string
	Code string
	Info string
}

func (e *ProtocolError) Error() string {
	var sb strings.Builder
	if e.Op != "" {
		sb.WriteString(e.Op)
		sb.WriteString(" failed")
	} else {
		sb.WriteString("API error")
	}
	fmt.Fprintf(&sb, " [%s]", e.Code)
	if e.Info != "" {
		sb.WriteString(": ")
		sb.WriteString(e.Info)
	}
	return sb.String()
}

// ErrorCode returns the wiki result code
func (e *ProtocolError) ErrorCode() string { return e.Code }

// ValidationError rejects caller input before any request is made
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed for %s: %s", e.Field, e.Message)
}

// ErrorCode returns a short label for metrics
func (e *ValidationError) ErrorCode() string { return "validation" }

// IsTransport reports whether err is or wraps a *TransportError
func IsTransport(err error) bool {
	var e *TransportError
	return errors.As(err, &e)
}

// IsDecode reports whether err is or wraps a *DecodeError
func IsDecode(err error) bool {
	var e *DecodeError
	return errors.As(err, &e)
}

// IsProtocol reports whether err is or wraps a *ProtocolError
func IsProtocol(err error) bool {
	var e *ProtocolError
	return errors.As(err, &e)
}

// IsValidation reports whether err is or wraps a *ValidationError
func IsValidation(err error) bool {
	var e *ValidationError
	return errors.As(err, &e)
}

// StatusCode returns the HTTP status carried by a *TransportError, or 0.
func StatusCode(err error) int {
	var e *TransportError
	if errors.As(err, &e) {
		return e.StatusCode
	}
	return 0
}

// ProtocolCode returns the wiki code carried by a *ProtocolError, or "".
func ProtocolCode(err error) string {
	var e *ProtocolError
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}
