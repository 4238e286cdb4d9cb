// event.go defines the canonical logged error event and how caught errors
// are turned into one.

package errhero

import (
	"errors"
	"time"
)

// Severity indicates the severity level of an error event.
type Severity string

const (
	// SeverityWarning indicates a promoted non-fatal condition.
	SeverityWarning Severity = "warning"

	// SeverityError indicates an error or panic caught by the engine.
	SeverityError Severity = "error"

	// SeverityCrash indicates a fatal condition or an unrecovered goroutine panic.
	SeverityCrash Severity = "crash"
)

// SystemState captures system metrics at the time of an error.
type SystemState struct {
	// MemoryBytes is the current memory allocation in bytes.
	MemoryBytes int64

	// GoroutineCount is the number of active goroutines.
	GoroutineCount int

	// UptimeMs is the process uptime in milliseconds.
	UptimeMs int64

	// HostName is the hostname of the machine where the error occurred.
	HostName string
}

// ErrorEvent is the canonical logged representation of a caught condition.
// The collector fills identity fields before passing it to sinks.
type ErrorEvent struct {
	// Identity fields

	// EventID is a unique identifier for this error event (UUID).
	EventID string

	// Timestamp is when the error occurred.
	Timestamp time.Time

	// Fingerprint groups identical conditions for deduplication.
	Fingerprint string

	// Error details

	Severity Severity

	// ErrorType is the type tag of the caught value, e.g. "*errhero.ConditionError".
	ErrorType string

	// ConditionType is the condition class name for promoted and fatal
	// conditions; empty for plain errors and panics.
	ConditionType string

	Message string
	File    string
	Line    int

	// StackTrace is the optional scrubbed stack trace.
	StackTrace string

	// Request context

	// RequestID correlates the event with the request that raised it.
	RequestID string

	Method string
	URL    string

	// RequestData is a JSON snapshot of query, form-free headers and remote
	// address, attached by the logging collaborator.
	RequestData string

	// ContextID is the optional cxdb context ID the event is appended to.
	// Uses pointer to distinguish "not set" from "zero value".
	ContextID *uint64

	// SystemState captures system metrics at error time.
	SystemState *SystemState

	// Metadata contains scrubbed key-value pairs for additional context.
	Metadata map[string]string
}

// NewEvent builds an ErrorEvent describing err. ConditionError and
// PanicError contribute their origin and stack; other errors only their type
// and message.
func NewEvent(err error) ErrorEvent {
	event := ErrorEvent{
		Severity:  SeverityError,
		ErrorType: TypeTag(err),
		Message:   err.Error(),
	}

	var cond *ConditionError
	var pe *PanicError
	switch {
	case errors.As(err, &cond):
		event.ErrorType = TypeTag(cond)
		event.ConditionType = cond.Type.String()
		event.Message = cond.Message
		event.File = cond.File
		event.Line = cond.Line
		event.StackTrace = cond.Stack
		switch cond.Type {
		case TypeFatal:
			event.Severity = SeverityCrash
		case TypeError, TypeUserError:
			event.Severity = SeverityError
		default:
			event.Severity = SeverityWarning
		}
	case errors.As(err, &pe):
		event.ErrorType = TypeTag(pe.Value)
		event.Message = formatRecovered(pe.Value)
		event.File = pe.File
		event.Line = pe.Line
		event.StackTrace = pe.Stack
	}

	return event
}
