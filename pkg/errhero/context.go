// context.go provides the per-request state and the helpers that propagate
// it, request IDs, and cxdb context IDs through context.Context.

package errhero

import (
	"context"
	"fmt"
	"net/http"
	"sync"
)

// Context key types (unexported to avoid collisions)
type requestContextKey struct{}
type requestIDKey struct{}
type contextIDKey struct{}

// contextIDSet is used to distinguish "zero value" from "not set"
type contextIDSet struct {
	id uint64
}

// Mode tags the integration that owns a HandlingContext.
type Mode int

const (
	// ModeRequest handles a live *http.Request.
	ModeRequest Mode = iota
	// ModeEvent handles a lifecycle *Event.
	ModeEvent
)

// HandlingContext is either a live request or a lifecycle event, never both.
type HandlingContext struct {
	mode    Mode
	request *http.Request
	event   *Event
}

// RequestMode wraps a live request.
func RequestMode(r *http.Request) HandlingContext {
	return HandlingContext{mode: ModeRequest, request: r}
}

// EventMode wraps a lifecycle event.
func EventMode(ev *Event) HandlingContext {
	return HandlingContext{mode: ModeEvent, event: ev}
}

// Mode returns the integration tag.
func (h HandlingContext) Mode() Mode { return h.mode }

// Request returns the HTTP request: the live one in request mode, the one
// attached to the event (possibly nil) in event mode.
func (h HandlingContext) Request() *http.Request {
	if h.mode == ModeEvent {
		if h.event == nil {
			return nil
		}
		return h.event.Request
	}
	return h.request
}

// Event returns the event in event mode and nil otherwise.
func (h HandlingContext) Event() *Event { return h.event }

// Response is a fully materialized response.
type Response struct {
	Status int
	Header http.Header
	Body   string
}

// RequestContext is owned by exactly one in-flight request. It carries the
// condition interceptor configuration, the last-recorded condition slot, and
// the ResultBuffer written by the reconciler.
type RequestContext struct {
	handling   HandlingContext
	mask       ConditionType
	classifier *Classifier
	metrics    *Metrics

	mu         sync.Mutex
	owner      uint64 // goroutine running the handler, 0 until bound
	last       *CapturedCondition
	pending    *Response
	consumed   bool
	terminated bool
	reraised   bool
}

func newRequestContext(hc HandlingContext, mask ConditionType, classifier *Classifier, metrics *Metrics) *RequestContext {
	return &RequestContext{
		handling:   hc,
		mask:       mask,
		classifier: classifier,
		metrics:    metrics,
	}
}

// Handling returns the handling context.
func (rc *RequestContext) Handling() HandlingContext { return rc.handling }

// ReportingMask returns the mask the classifier uses for this request.
func (rc *RequestContext) ReportingMask() ConditionType { return rc.mask }

// LastCondition returns the last recorded condition, if any.
func (rc *RequestContext) LastCondition() (CapturedCondition, bool) {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	if rc.last == nil {
		return CapturedCondition{}, false
	}
	return *rc.last, true
}

func (rc *RequestContext) record(c CapturedCondition) {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	rc.last = &c
}

// recordIfEmpty records c only when nothing was recorded before.
func (rc *RequestContext) recordIfEmpty(c CapturedCondition) {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	if rc.last == nil {
		rc.last = &c
	}
}

// markUncaught records that v leaves the engine raw, so the reconciler
// treats the request as already handled.
func (rc *RequestContext) markUncaught(v any) {
	msg := fmt.Sprintf("%s %s: %s", UncaughtPrefix, TypeTag(v), formatRecovered(v))
	rc.record(CapturedCondition{Type: TypeFatal, Message: msg})
}

// setResult fills the ResultBuffer. Only the first write is kept.
func (rc *RequestContext) setResult(resp Response) {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	if rc.pending != nil {
		return
	}
	rc.pending = &resp
}

// takeResult returns the ResultBuffer contents. It yields a value at most
// once; later calls report false.
func (rc *RequestContext) takeResult() (Response, bool) {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	if rc.pending == nil || rc.consumed || rc.pending.Body == "" {
		return Response{}, false
	}
	rc.consumed = true
	return *rc.pending, true
}

func (rc *RequestContext) terminate() {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	rc.terminated = true
}

func (rc *RequestContext) isTerminated() bool {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	return rc.terminated
}

// passThrough marks the request as handed back raw to the caller: the
// buffered output is dropped and the real writer stays untouched.
func (rc *RequestContext) passThrough() {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	rc.reraised = true
}

func (rc *RequestContext) isPassedThrough() bool {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	return rc.reraised
}

// bindOwner marks the calling goroutine as the one running the handler.
func (rc *RequestContext) bindOwner() {
	id := goroutineID()
	rc.mu.Lock()
	defer rc.mu.Unlock()
	rc.owner = id
}

// ownedByCaller reports whether a panic raised by the calling goroutine
// reaches the engine. An unbound scope is treated as owned.
func (rc *RequestContext) ownedByCaller() bool {
	rc.mu.Lock()
	owner := rc.owner
	rc.mu.Unlock()
	return owner == 0 || owner == goroutineID()
}

func withRequestContext(ctx context.Context, rc *RequestContext) context.Context {
	return context.WithValue(ctx, requestContextKey{}, rc)
}

func requestContextFrom(ctx context.Context) (*RequestContext, bool) {
	if ctx == nil {
		return nil, false
	}
	rc, ok := ctx.Value(requestContextKey{}).(*RequestContext)
	return rc, ok && rc != nil
}

// RequestContextFrom returns the request scope installed by the middleware.
func RequestContextFrom(ctx context.Context) (*RequestContext, bool) {
	return requestContextFrom(ctx)
}

// WithRequestID returns a context with the request ID attached.
// The request ID correlates logged events with access logs.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, requestID)
}

// RequestIDFromContext extracts the request ID from context.
// Returns empty string and false if not set or if the request ID is empty.
func RequestIDFromContext(ctx context.Context) (string, bool) {
	v := ctx.Value(requestIDKey{})
	id, ok := v.(string)
	return id, ok && id != ""
}

// WithContextID returns a context with the cxdb context ID attached.
// Events recorded under this context are appended to that cxdb context.
func WithContextID(ctx context.Context, contextID uint64) context.Context {
	return context.WithValue(ctx, contextIDKey{}, contextIDSet{id: contextID})
}

// ContextIDFromContext extracts the cxdb context ID from context.
// Returns 0 and false if not set.
func ContextIDFromContext(ctx context.Context) (uint64, bool) {
	v := ctx.Value(contextIDKey{})
	if v == nil {
		return 0, false
	}
	set, ok := v.(contextIDSet)
	if !ok {
		return 0, false
	}
	return set.id, true
}
