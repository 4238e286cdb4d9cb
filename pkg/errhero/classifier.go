// classifier.go implements the condition classifier and the Report/Fatal
// entrypoints application code uses to raise conditions.

package errhero

import (
	"context"
	"fmt"
	"runtime"
	"runtime/debug"
)

// Decision is the classifier's verdict for a reported condition.
type Decision int

const (
	// Ignore drops the condition; processing continues unaffected.
	Ignore Decision = iota
	// Promote raises the condition as a *ConditionError panic.
	Promote
)

func (d Decision) String() string {
	if d == Promote {
		return "promote"
	}
	return "ignore"
}

// Exclusion suppresses promotion of a condition type, optionally only for an
// exact message.
type Exclusion struct {
	Type ConditionType

	// Message is compared verbatim when HasMessage is true.
	Message    string
	HasMessage bool
}

// ExcludeType excludes every condition of type t.
func ExcludeType(t ConditionType) Exclusion {
	return Exclusion{Type: t}
}

// ExcludeMessage excludes conditions of type t whose message equals msg.
func ExcludeMessage(t ConditionType, msg string) Exclusion {
	return Exclusion{Type: t, Message: msg, HasMessage: true}
}

func (e Exclusion) matches(t ConditionType, msg string) bool {
	if e.Type != t {
		return false
	}
	return !e.HasMessage || e.Message == msg
}

// Classifier decides whether a reported condition is ignored or promoted.
// It holds no mutable state and is safe for concurrent use.
type Classifier struct {
	exclusions []Exclusion
}

// NewClassifier creates a classifier for the given exclusion list.
func NewClassifier(exclusions []Exclusion) *Classifier {
	cp := make([]Exclusion, len(exclusions))
	copy(cp, exclusions)
	return &Classifier{exclusions: cp}
}

// Classify returns Ignore when t is not enabled under mask or when an
// exclusion matches, and Promote otherwise. file and line identify the
// origin and do not affect the decision.
func (c *Classifier) Classify(mask ConditionType, t ConditionType, message, file string, line int) Decision {
	if mask&t == 0 {
		return Ignore
	}
	for _, e := range c.exclusions {
		if e.matches(t, message) {
			return Ignore
		}
	}
	return Promote
}

// Report raises a non-fatal condition for the request carried by ctx.
// When the classifier promotes it, Report panics with a *ConditionError that
// the middleware catches. Without an installed request scope Report does
// nothing.
//
// Called from a goroutine other than the one running the handler, a
// promoted condition is recorded in the request scope instead: a panic
// there would have no catch point. The reconciler turns it into the error
// response when the request ends.
func Report(ctx context.Context, t ConditionType, message string) {
	rc, ok := requestContextFrom(ctx)
	if !ok {
		return
	}
	_, file, line, _ := runtime.Caller(1)
	rc.intercept(t, message, file, line)
}

// Reportf is Report with fmt.Sprintf formatting.
func Reportf(ctx context.Context, t ConditionType, format string, args ...any) {
	rc, ok := requestContextFrom(ctx)
	if !ok {
		return
	}
	_, file, line, _ := runtime.Caller(1)
	rc.intercept(t, fmt.Sprintf(format, args...), file, line)
}

// Fatal records a fatal condition for the request and ends the calling
// goroutine with runtime.Goexit. Deferred calls still run but no recover
// observes it; the reconciler turns it into a response after the handler
// goroutine is gone. Outside a request scope Fatal panics instead.
func Fatal(ctx context.Context, message string) {
	_, file, line, _ := runtime.Caller(1)
	cond := CapturedCondition{Type: TypeFatal, Message: message, File: file, Line: line}

	rc, ok := requestContextFrom(ctx)
	if !ok {
		panic(cond.Err())
	}
	rc.record(cond)
	runtime.Goexit()
}

// intercept is the runtime condition interceptor bound to one request.
func (rc *RequestContext) intercept(t ConditionType, message, file string, line int) {
	if rc.classifier.Classify(rc.mask, t, message, file, line) == Ignore {
		rc.metrics.condition(outcomeIgnored)
		return
	}
	rc.metrics.condition(outcomePromoted)
	if !rc.ownedByCaller() {
		rc.recordIfEmpty(CapturedCondition{Type: t, Message: message, File: file, Line: line})
		return
	}
	err := NewConditionError(message, t, file, line)
	err.Stack = string(debug.Stack())
	panic(err)
}
