package errhero

import (
	"errors"
	"fmt"
	"testing"
)

func TestConditionType_String(t *testing.T) {
	tests := []struct {
		t    ConditionType
		want string
	}{
		{TypeFatal, "fatal"},
		{TypeUserDeprecated, "user_deprecated"},
		{TypeAll, "all"},
		{TypeWarning | TypeNotice, "warning|notice"},
		{0, "0"},
	}

	for _, tt := range tests {
		if got := tt.t.String(); got != tt.want {
			t.Errorf("ConditionType(%d).String() = %q, want %q", int(tt.t), got, tt.want)
		}
	}
}

func TestParseConditionType(t *testing.T) {
	tests := []struct {
		in      string
		want    ConditionType
		wantErr bool
	}{
		{in: "warning", want: TypeWarning},
		{in: " User_Notice ", want: TypeUserNotice},
		{in: "all", want: TypeAll},
		{in: "error|user_error", want: TypeError | TypeUserError},
		{in: "6", want: TypeError | TypeWarning},
		{in: "", wantErr: true},
		{in: "loud", wantErr: true},
		{in: "0", wantErr: true},
		{in: "65536", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseConditionType(tt.in)
			if tt.wantErr {
				if err == nil {
					t.Errorf("ParseConditionType(%q) = %v, want error", tt.in, got)
				}
				return
			}
			if err != nil || got != tt.want {
				t.Errorf("ParseConditionType(%q) = (%v, %v), want %v", tt.in, got, err, tt.want)
			}
		})
	}
}

func TestParseConditionType_RoundTrip(t *testing.T) {
	for _, n := range conditionTypeNames {
		got, err := ParseConditionType(n.t.String())
		if err != nil || got != n.t {
			t.Errorf("round trip of %s = (%v, %v)", n.name, got, err)
		}
	}
}

func TestCapturedCondition_IsUncaught(t *testing.T) {
	if (CapturedCondition{Message: "Uncaught *errors.errorString: boom"}).IsUncaught() != true {
		t.Error("message with the Uncaught prefix should be uncaught")
	}
	if (CapturedCondition{Message: "connection lost"}).IsUncaught() {
		t.Error("ordinary message should not be uncaught")
	}
}

func TestConditionError_RoundTrip(t *testing.T) {
	cond := CapturedCondition{Type: TypeFatal, Message: "out of memory", File: "/srv/a.go", Line: 12}

	err := cond.Err()
	if err.Error() != "out of memory" {
		t.Errorf("Error() = %q, want %q", err.Error(), "out of memory")
	}
	if err.Condition() != cond {
		t.Errorf("Condition() = %+v, want %+v", err.Condition(), cond)
	}
}

func TestPanicError(t *testing.T) {
	cause := errors.New("nil map")

	pe := &PanicError{Value: cause}
	if pe.Error() != "panic: nil map" {
		t.Errorf("Error() = %q, want %q", pe.Error(), "panic: nil map")
	}
	if !errors.Is(pe, cause) {
		t.Error("PanicError should unwrap to an error panic value")
	}

	if (&PanicError{Value: "text"}).Unwrap() != nil {
		t.Error("non-error panic values should not unwrap")
	}
}

func TestTypeTag(t *testing.T) {
	tests := []struct {
		v    any
		want string
	}{
		{errors.New("x"), "*errors.errorString"},
		{fmt.Errorf("w: %w", errors.New("x")), "*fmt.wrapError"},
		{NewConditionError("m", TypeWarning, "", 0), "*errhero.ConditionError"},
		{"s", "string"},
	}

	for _, tt := range tests {
		if got := TypeTag(tt.v); got != tt.want {
			t.Errorf("TypeTag(%v) = %q, want %q", tt.v, got, tt.want)
		}
	}
}
