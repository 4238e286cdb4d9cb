// condition.go defines condition types and the error values that carry them.

package errhero

import (
	"fmt"
	"runtime"
	"strconv"
	"strings"
)

// ConditionType classifies a reported condition. Values are bit flags so a
// set of types can be expressed as a reporting mask.
type ConditionType int

const (
	// TypeFatal is an unrecoverable condition that ends the handler goroutine.
	TypeFatal ConditionType = 1 << iota
	// TypeError is a recoverable error reported by library code.
	TypeError
	// TypeWarning is a non-fatal warning reported by library code.
	TypeWarning
	// TypeNotice signals something that may indicate a bug.
	TypeNotice
	// TypeStrict suggests code changes for forward compatibility.
	TypeStrict
	// TypeDeprecated flags use of deprecated behavior in library code.
	TypeDeprecated
	// TypeUserError is a recoverable error reported by application code.
	TypeUserError
	// TypeUserWarning is a warning reported by application code.
	TypeUserWarning
	// TypeUserNotice is a notice reported by application code.
	TypeUserNotice
	// TypeUserDeprecated flags deprecated behavior in application code.
	TypeUserDeprecated
)

// TypeAll is the union of every condition type.
const TypeAll = TypeFatal | TypeError | TypeWarning | TypeNotice | TypeStrict |
	TypeDeprecated | TypeUserError | TypeUserWarning | TypeUserNotice | TypeUserDeprecated

var conditionTypeNames = []struct {
	t    ConditionType
	name string
}{
	{TypeFatal, "fatal"},
	{TypeError, "error"},
	{TypeWarning, "warning"},
	{TypeNotice, "notice"},
	{TypeStrict, "strict"},
	{TypeDeprecated, "deprecated"},
	{TypeUserError, "user_error"},
	{TypeUserWarning, "user_warning"},
	{TypeUserNotice, "user_notice"},
	{TypeUserDeprecated, "user_deprecated"},
}

// String returns the snake_case name of a single type, "all" for TypeAll,
// and a "|" separated list for other masks.
func (t ConditionType) String() string {
	if t == TypeAll {
		return "all"
	}
	var names []string
	for _, n := range conditionTypeNames {
		if t&n.t != 0 {
			names = append(names, n.name)
		}
	}
	if len(names) == 0 {
		return strconv.Itoa(int(t))
	}
	return strings.Join(names, "|")
}

// ParseConditionType parses a type name ("user_deprecated"), "all", a
// "|" separated list of names, or a decimal integer mask.
func ParseConditionType(s string) (ConditionType, error) {
	s = strings.TrimSpace(strings.ToLower(s))
	if s == "" {
		return 0, fmt.Errorf("empty condition type")
	}
	if n, err := strconv.Atoi(s); err == nil {
		if n <= 0 || ConditionType(n)&^TypeAll != 0 {
			return 0, fmt.Errorf("condition type %d out of range", n)
		}
		return ConditionType(n), nil
	}
	if s == "all" {
		return TypeAll, nil
	}

	var mask ConditionType
	for _, part := range strings.Split(s, "|") {
		part = strings.TrimSpace(part)
		found := false
		for _, n := range conditionTypeNames {
			if n.name == part {
				mask |= n.t
				found = true
				break
			}
		}
		if !found {
			return 0, fmt.Errorf("unknown condition type %q", part)
		}
	}
	return mask, nil
}

// UncaughtPrefix marks a condition the default handler already owns.
// The reconciler never re-dispatches such a condition.
const UncaughtPrefix = "Uncaught"

// CapturedCondition is a condition recorded for a request, either promoted by
// the classifier or recorded when the handler goroutine ends abnormally.
type CapturedCondition struct {
	Type    ConditionType
	Message string
	File    string
	Line    int
}

// IsUncaught reports whether the condition carries the Uncaught marker.
func (c CapturedCondition) IsUncaught() bool {
	return strings.HasPrefix(c.Message, UncaughtPrefix)
}

// Err converts the captured condition into an error value.
func (c CapturedCondition) Err() *ConditionError {
	return &ConditionError{
		Type:    c.Type,
		Message: c.Message,
		File:    c.File,
		Line:    c.Line,
	}
}

// ConditionError is a condition promoted to an error that interrupts normal
// control flow.
type ConditionError struct {
	Type    ConditionType
	Message string
	File    string
	Line    int

	// Stack is the optional stack trace at the point of promotion.
	Stack string
}

// NewConditionError builds a ConditionError with an explicit origin.
func NewConditionError(message string, t ConditionType, file string, line int) *ConditionError {
	return &ConditionError{Type: t, Message: message, File: file, Line: line}
}

func (e *ConditionError) Error() string {
	return e.Message
}

// Condition returns the captured form of the error.
func (e *ConditionError) Condition() CapturedCondition {
	return CapturedCondition{Type: e.Type, Message: e.Message, File: e.File, Line: e.Line}
}

// PanicError wraps a recovered panic value that is not a ConditionError.
type PanicError struct {
	Value any
	Stack string
	File  string
	Line  int
}

func (e *PanicError) Error() string {
	return "panic: " + formatRecovered(e.Value)
}

// Unwrap exposes the panic value when it is itself an error.
func (e *PanicError) Unwrap() error {
	if err, ok := e.Value.(error); ok {
		return err
	}
	return nil
}

// TypeTag returns the tag used to match excluded exception types: the Go
// type of the raised value as printed by %T, e.g. "*errors.errorString".
func TypeTag(v any) string {
	return fmt.Sprintf("%T", v)
}

// panicOrigin returns the file and line that raised the panic currently
// being recovered. It must be called from the deferred recovering function.
func panicOrigin() (string, int) {
	pcs := make([]uintptr, 64)
	n := runtime.Callers(2, pcs)
	frames := runtime.CallersFrames(pcs[:n])
	panicking := false
	for {
		frame, more := frames.Next()
		if frame.Function == "runtime.gopanic" {
			panicking = true
		} else if panicking && !strings.HasPrefix(frame.Function, "runtime.") {
			return frame.File, frame.Line
		}
		if !more {
			return "", 0
		}
	}
}

// formatRecovered formats a recovered panic value as a string.
func formatRecovered(recovered any) string {
	if recovered == nil {
		return "<nil>"
	}
	if err, ok := recovered.(error); ok {
		return err.Error()
	}
	return fmt.Sprintf("%v", recovered)
}
