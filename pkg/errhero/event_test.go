package errhero

import (
	"errors"
	"fmt"
	"testing"
)

func TestNewEvent_PlainError(t *testing.T) {
	event := NewEvent(errors.New("connection refused"))

	if event.Severity != SeverityError {
		t.Errorf("Severity = %q, want %q", event.Severity, SeverityError)
	}
	if event.ErrorType != "*errors.errorString" {
		t.Errorf("ErrorType = %q, want %q", event.ErrorType, "*errors.errorString")
	}
	if event.Message != "connection refused" {
		t.Errorf("Message = %q, want %q", event.Message, "connection refused")
	}
	if event.ConditionType != "" {
		t.Errorf("ConditionType = %q, want empty", event.ConditionType)
	}
}

func TestNewEvent_ConditionSeverity(t *testing.T) {
	tests := []struct {
		name string
		typ  ConditionType
		want Severity
	}{
		{"fatal", TypeFatal, SeverityCrash},
		{"error", TypeError, SeverityError},
		{"user error", TypeUserError, SeverityError},
		{"warning", TypeWarning, SeverityWarning},
		{"deprecated", TypeUserDeprecated, SeverityWarning},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			event := NewEvent(NewConditionError("m", tt.typ, "/srv/a.go", 3))
			if event.Severity != tt.want {
				t.Errorf("Severity = %q, want %q", event.Severity, tt.want)
			}
			if event.ConditionType != tt.typ.String() {
				t.Errorf("ConditionType = %q, want %q", event.ConditionType, tt.typ.String())
			}
			if event.File != "/srv/a.go" || event.Line != 3 {
				t.Errorf("origin = %s:%d, want /srv/a.go:3", event.File, event.Line)
			}
		})
	}
}

func TestNewEvent_WrappedCondition(t *testing.T) {
	cond := NewConditionError("undefined index: id", TypeNotice, "/srv/h.go", 9)
	event := NewEvent(fmt.Errorf("handler: %w", cond))

	if event.ErrorType != "*errhero.ConditionError" {
		t.Errorf("ErrorType = %q, want %q", event.ErrorType, "*errhero.ConditionError")
	}
	if event.Message != "undefined index: id" {
		t.Errorf("Message = %q, want the condition message", event.Message)
	}
}

func TestNewEvent_PanicError(t *testing.T) {
	event := NewEvent(&PanicError{Value: 42, Stack: "goroutine 1", File: "/srv/p.go", Line: 7})

	if event.ErrorType != "int" {
		t.Errorf("ErrorType = %q, want %q", event.ErrorType, "int")
	}
	if event.Message != "42" {
		t.Errorf("Message = %q, want %q", event.Message, "42")
	}
	if event.StackTrace != "goroutine 1" || event.File != "/srv/p.go" || event.Line != 7 {
		t.Errorf("event = %+v, want stack and origin from PanicError", event)
	}
}

func TestErrorEvent_OptionalFieldsNil(t *testing.T) {
	event := NewEvent(errors.New("minimal"))

	if event.ContextID != nil {
		t.Error("ContextID should be nil when not set")
	}
	if event.SystemState != nil {
		t.Error("SystemState should be nil when not set")
	}
}
