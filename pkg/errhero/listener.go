// listener.go provides the event-mode integration: lifecycle events, the
// Listener that runs event work under interception, and error-event output.

package errhero

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"os"
	"sync"
)

// ParamException is the event parameter holding the condition being handled.
const ParamException = "exception"

// Event is a lifecycle event dispatched by an application kernel: a request
// dispatch, a queued job, a console command. Request is nil for work that
// has no HTTP request.
type Event struct {
	Name    string
	Request *http.Request

	mu     sync.Mutex
	params map[string]any
	out    io.Writer
}

// NewLifecycleEvent creates an event whose output goes to out. A nil out
// writes to os.Stdout.
func NewLifecycleEvent(name string, r *http.Request, out io.Writer) *Event {
	if out == nil {
		out = os.Stdout
	}
	return &Event{Name: name, Request: r, params: make(map[string]any), out: out}
}

// Param returns the named parameter or nil.
func (ev *Event) Param(name string) any {
	ev.mu.Lock()
	defer ev.mu.Unlock()
	return ev.params[name]
}

// SetParam sets the named parameter.
func (ev *Event) SetParam(name string, v any) {
	ev.mu.Lock()
	defer ev.mu.Unlock()
	if ev.params == nil {
		ev.params = make(map[string]any)
	}
	ev.params[name] = v
}

// Output returns the writer event work must write to.
func (ev *Event) Output() io.Writer {
	ev.mu.Lock()
	defer ev.mu.Unlock()
	if ev.out == nil {
		return io.Discard
	}
	return ev.out
}

// redirect points the event's output at w until the returned func is called.
func (ev *Event) redirect(w io.Writer) (restore func()) {
	ev.mu.Lock()
	prev := ev.out
	ev.out = w
	ev.mu.Unlock()
	return func() {
		ev.mu.Lock()
		ev.out = prev
		ev.mu.Unlock()
	}
}

// lockedBuffer is a bytes.Buffer safe for concurrent writes, since event
// work may fan out to goroutines.
type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

// Listener is the event-mode integration: it runs lifecycle work under the
// same interception as Middleware and answers error events.
type Listener struct {
	e *engine
}

// NewListener creates a Listener. See New for the arguments.
func NewListener(cfg Config, logging Logger, renderer Renderer, opts ...Option) *Listener {
	return &Listener{e: newEngine(cfg, logging, renderer, opts)}
}

// Run executes fn for ev. Output fn writes to ev.Output() is buffered and
// reaches the event's writer only when fn completes, or is replaced by the
// error output when a condition is caught. Output of re-raised work is
// dropped.
//
// Run returns nil when the condition was handled, fn's own error when it is
// re-raised, and an error matching ErrTerminated when fn ended through a
// fatal condition. Re-raised panics continue unwinding.
func (l *Listener) Run(ctx context.Context, ev *Event, fn func(ctx context.Context, ev *Event) error) error {
	if !l.e.cfg.Enabled {
		return fn(ctx, ev)
	}

	ctx, rc := l.e.begin(ctx, EventMode(ev))
	out := ev.Output()
	buf := &lockedBuffer{}
	restore := ev.redirect(buf)
	defer func() {
		restore()
		l.shutdown(ctx, out, rc, buf)
	}()

	res := execute(func() error {
		rc.bindOwner()
		return fn(ctx, ev)
	})
	switch {
	case res.outcome == exited:
		l.e.recordExit(rc)
		cond, _ := rc.LastCondition()
		return &terminatedError{cause: cond.Err()}
	case res.outcome == returned && res.err == nil:
		return nil
	}

	resp, reraise := l.e.dispatch(ctx, rc, res)
	if reraise {
		rc.passThrough()
		if res.outcome == panicked {
			panic(res.recovered)
		}
		return res.err
	}

	ev.SetParam(ParamException, res.caught())
	rc.terminate()
	if _, err := io.WriteString(out, resp.Body); err != nil {
		l.e.logger.Debug("errhero: failed to write event error output")
	}
	return nil
}

// HandleEvent answers an error event: it logs the condition held in the
// ParamException parameter and writes the error output to ev.Output().
// Events without an error parameter are ignored.
func (l *Listener) HandleEvent(ctx context.Context, ev *Event) {
	if !l.e.cfg.Enabled {
		return
	}
	l.e.handleEvent(ctx, ev)
}

func (e *engine) handleEvent(ctx context.Context, ev *Event) {
	err, ok := ev.Param(ParamException).(error)
	if !ok || err == nil {
		return
	}
	if !e.cfg.isExcludedException(err) {
		e.logException(ctx, err)
	}

	var body string
	if e.cfg.Display.DisplayErrors {
		body = err.Error() + "\n"
	} else {
		body = e.errorResponse(EventMode(ev)).Body
	}
	if _, werr := io.WriteString(ev.Output(), body); werr != nil {
		e.logger.Debug("errhero: failed to write event error output")
	}
}

func (l *Listener) shutdown(ctx context.Context, out io.Writer, rc *RequestContext, buf *lockedBuffer) {
	if rc.isTerminated() || rc.isPassedThrough() {
		return
	}
	l.e.onExit(ctx, rc)
	body := l.e.onBufferFlush(rc, buf.String())
	if body == "" {
		return
	}
	if _, err := io.WriteString(out, body); err != nil {
		l.e.logger.Debug("errhero: failed to flush event output")
	}
}
