// recover.go provides Recover for goroutines that handlers start themselves.
// The middleware only sees panics on the handler goroutine; a panic anywhere
// else would take the process down.

package errhero

import (
	"context"
	"runtime/debug"
)

// Recover captures a panic, records it to the collector as a crash, and
// returns the recovered value. It does not re-panic.
//
// Use in defer:
//
//	go func() {
//	    defer errhero.Recover(ctx, collector)
//	    // background work that might panic
//	}()
func Recover(ctx context.Context, collector Collector) any {
	r := recover()
	if r == nil {
		return nil
	}

	file, line := panicOrigin()
	event := NewEvent(&PanicError{Value: r, Stack: string(debug.Stack()), File: file, Line: line})
	event.Severity = SeverityCrash

	if requestID, ok := RequestIDFromContext(ctx); ok {
		event.RequestID = requestID
	}
	if contextID, ok := ContextIDFromContext(ctx); ok {
		event.ContextID = &contextID
	}

	// Ignore errors: the caller must not be affected.
	_ = collector.Record(ctx, event)

	return r
}
