// engine.go holds the dispatch logic shared by the HTTP middleware and the
// event listener.

package errhero

import (
	"context"
	"errors"
	"net/http"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Option configures a Middleware or Listener.
type Option func(*engine)

// WithLogger sets the diagnostic logger used when a collaborator or the
// response writer fails. Defaults to a no-op logger.
func WithLogger(logger *zap.Logger) Option {
	return func(e *engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithMetrics attaches Prometheus counters.
func WithMetrics(m *Metrics) Option {
	return func(e *engine) {
		e.metrics = m
	}
}

type engine struct {
	cfg        Config
	logging    Logger
	renderer   Renderer
	classifier *Classifier
	metrics    *Metrics
	logger     *zap.Logger
}

func newEngine(cfg Config, logging Logger, renderer Renderer, opts []Option) *engine {
	if logging == nil {
		logging = nopLogger{}
	}
	e := &engine{
		cfg:        cfg,
		logging:    logging,
		renderer:   renderer,
		classifier: NewClassifier(cfg.Display.ExcludedConditions),
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// begin allocates the request scope and installs it, the request ID and the
// logging collaborator's request context into ctx.
func (e *engine) begin(ctx context.Context, hc HandlingContext) (context.Context, *RequestContext) {
	rc := newRequestContext(hc, e.cfg.reportingMask(), e.classifier, e.metrics)
	ctx = withRequestContext(ctx, rc)
	if _, ok := RequestIDFromContext(ctx); !ok {
		ctx = WithRequestID(ctx, uuid.NewString())
	}
	ctx = e.logging.SetRequestContext(ctx, hc.Request())
	return ctx, rc
}

// dispatch is dispatch-on-catch. It logs the caught condition unless its
// type is excluded and reports whether the original must be re-raised. When
// it is not re-raised, the returned response replaces the output.
func (e *engine) dispatch(ctx context.Context, rc *RequestContext, res execResult) (Response, bool) {
	raised := res.raised()

	if err, ok := raised.(error); ok && errors.Is(err, http.ErrAbortHandler) {
		rc.markUncaught(raised)
		e.metrics.condition(outcomeUncaught)
		return Response{}, true
	}

	// Excluded types skip logging and always escape, whatever the display mode.
	if e.cfg.isExcludedException(raised) {
		rc.markUncaught(raised)
		e.metrics.condition(outcomeExcluded)
		return Response{}, true
	}

	e.metrics.condition(outcomeCaught)
	e.logException(ctx, res.caught())

	if e.cfg.Display.DisplayErrors {
		rc.markUncaught(raised)
		e.metrics.condition(outcomeUncaught)
		return Response{}, true
	}

	return e.errorResponse(rc.Handling()), false
}

// logException calls the logging collaborator, isolating its failures.
func (e *engine) logException(ctx context.Context, err error) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Warn("errhero: logging collaborator panicked",
				zap.Any("recovered", r),
				zap.NamedError("condition", err))
		}
	}()
	e.logging.HandleException(ctx, err)
}

// recordExit stores the runtime's own record of an abnormal goroutine exit
// when the handler did not record a fatal condition itself.
func (e *engine) recordExit(rc *RequestContext) {
	rc.recordIfEmpty(CapturedCondition{
		Type:    TypeFatal,
		Message: "handler goroutine exited before returning",
	})
}

func (e *engine) write(w http.ResponseWriter, resp Response) {
	if err := writeResponse(w, resp); err != nil {
		e.logger.Warn("errhero: failed to write error response", zap.Error(err))
	}
}
