// reconciler.go implements the end-of-request reconciliation for fatal
// conditions and the output-buffer interceptor.

package errhero

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
)

// onExit is the shutdown hook. It does nothing when no condition was
// recorded or when the engine already re-raised one. Otherwise the handling
// mode decides, once, how the fatal condition becomes a response, and the
// result is placed in the ResultBuffer for onBufferFlush.
func (e *engine) onExit(ctx context.Context, rc *RequestContext) {
	cond, ok := rc.LastCondition()
	if !ok || cond.IsUncaught() {
		return
	}
	e.metrics.condition(outcomeFatal)
	ce := cond.Err()

	switch rc.Handling().Mode() {
	case ModeEvent:
		ev := rc.Handling().Event()
		ev.SetParam(ParamException, ce)
		var captured bytes.Buffer
		restore := ev.redirect(&captured)
		e.handleEvent(ctx, ev)
		restore()
		rc.setResult(Response{
			Status: http.StatusInternalServerError,
			Header: http.Header{"Content-Type": {contentTypeText}},
			Body:   captured.String(),
		})
	default:
		if !e.cfg.isExcludedException(ce) {
			e.logException(ctx, ce)
		}
		if e.cfg.Display.DisplayErrors {
			// Fatal conditions are never re-raised, so developer mode gets
			// the raw condition instead of the friendly page.
			rc.setResult(e.count(textResponse(conditionDump(cond))))
			return
		}
		rc.setResult(e.errorResponse(rc.Handling()))
	}
}

// onBufferFlush is the final output filter: it returns the body to send in
// place of buffer. The ResultBuffer replaces the buffer when a fatal
// condition was reconciled; anything else passes through unchanged.
func (e *engine) onBufferFlush(rc *RequestContext, buffer string) string {
	if resp, ok := e.replacement(rc); ok {
		return resp.Body
	}
	return buffer
}

// replacement returns the ResultBuffer contents when they should replace
// the buffered output. The ResultBuffer is consumed at most once.
func (e *engine) replacement(rc *RequestContext) (Response, bool) {
	cond, ok := rc.LastCondition()
	if !ok || cond.IsUncaught() {
		return Response{}, false
	}
	return rc.takeResult()
}

func conditionDump(c CapturedCondition) string {
	if c.File == "" {
		return fmt.Sprintf("%s: %s\n", c.Type, c.Message)
	}
	return fmt.Sprintf("%s: %s in %s:%d\n", c.Type, c.Message, c.File, c.Line)
}
