// middleware.go provides the net/http integration of the dispatch engine.

package errhero

import (
	"context"
	"net/http"
)

// HandlerFunc is an http handler that may return an error instead of
// panicking. Returned errors are caught the same way panics are.
type HandlerFunc func(w http.ResponseWriter, r *http.Request) error

// Middleware intercepts conditions, panics and fatal exits from downstream
// HTTP handlers and turns them into logged, user-appropriate responses.
//
// A Middleware is immutable after New and safe for concurrent use; all
// per-request state lives in the RequestContext installed into each
// request's context.
type Middleware struct {
	e *engine
}

// New creates a Middleware. logging may be nil to skip logging; renderer may
// be nil to always use the no-template response.
func New(cfg Config, logging Logger, renderer Renderer, opts ...Option) *Middleware {
	return &Middleware{e: newEngine(cfg, logging, renderer, opts)}
}

// Handler wraps next. When the middleware is disabled next is returned
// unchanged.
func (m *Middleware) Handler(next http.Handler) http.Handler {
	if !m.e.cfg.Enabled {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// A re-raised error has no caller to return to; net/http treats
		// ErrAbortHandler as a silent abort.
		if err := m.serve(w, r, func(w http.ResponseWriter, r *http.Request) error {
			next.ServeHTTP(w, r)
			return nil
		}); err != nil {
			panic(err)
		}
	})
}

// Wrap is Handler for error-returning handlers. Re-raised conditions whose
// origin was a returned error are returned, not panicked.
func (m *Middleware) Wrap(next HandlerFunc) HandlerFunc {
	if !m.e.cfg.Enabled {
		return next
	}
	return func(w http.ResponseWriter, r *http.Request) error {
		return m.serve(w, r, next)
	}
}

func (m *Middleware) serve(w http.ResponseWriter, r *http.Request, next HandlerFunc) (err error) {
	ctx, rc := m.e.begin(r.Context(), RequestMode(r))
	r = r.WithContext(ctx)
	rc.handling = RequestMode(r)

	buf := newOutputBuffer()
	defer m.shutdown(ctx, w, rc, buf)

	res := execute(func() error {
		rc.bindOwner()
		return next(buf, r)
	})
	switch {
	case res.outcome == exited:
		m.e.recordExit(rc)
		return nil
	case res.outcome == returned && res.err == nil:
		return nil
	}

	resp, reraise := m.e.dispatch(ctx, rc, res)
	if reraise {
		// Partial output is dropped; whoever catches the re-raise owns w.
		rc.passThrough()
		if res.outcome == panicked {
			panic(res.recovered)
		}
		return res.err
	}

	rc.terminate()
	m.e.write(w, resp)
	return nil
}

// shutdown is the request's end hook: the reconciler runs first, then the
// final buffer flush. A terminal response already sent, or a re-raise,
// skips both.
func (m *Middleware) shutdown(ctx context.Context, w http.ResponseWriter, rc *RequestContext, buf *outputBuffer) {
	if rc.isTerminated() || rc.isPassedThrough() {
		return
	}
	m.e.onExit(ctx, rc)
	if resp, ok := m.e.replacement(rc); ok {
		m.e.write(w, resp)
		return
	}
	if !buf.touched() {
		return
	}
	if err := buf.writeTo(w, buf.String()); err != nil {
		m.e.logger.Debug("errhero: failed to flush buffered output")
	}
}
