// response.go provides the error response shown in place of a failed
// request: ajax, no-template, rendered page, plain fallback or console text.

package errhero

import (
	"net/http"

	"github.com/tidwall/gjson"
	"go.uber.org/zap"
)

const (
	contentTypeText    = "text/plain; charset=utf-8"
	contentTypeHTML    = "text/html; charset=utf-8"
	contentTypeProblem = "application/problem+json"

	defaultConsoleMessage = "An error occurred. Please check the error log for details."
)

// errorResponse builds the user-facing response for a caught condition.
// Rules, in order: console work without a request gets the console message;
// an XHR request with a configured ajax message gets it; otherwise the
// template is rendered, falling back to the no-template message and then to
// a bare 500.
func (e *engine) errorResponse(hc HandlingContext) Response {
	d := e.cfg.Display
	r := hc.Request()

	if hc.Mode() == ModeEvent && r == nil {
		msg := d.ConsoleMessage
		if msg == "" {
			msg = defaultConsoleMessage
		}
		return e.count(textResponse(msg))
	}

	if isXHR(r) && d.AjaxMessage != "" {
		return e.count(messageResponse(d.AjaxMessage))
	}

	if e.renderer != nil {
		body, err := e.render()
		if err == nil {
			return e.count(Response{
				Status: http.StatusInternalServerError,
				Header: http.Header{"Content-Type": {contentTypeHTML}},
				Body:   body,
			})
		}
		e.logger.Warn("errhero: error template failed to render",
			zap.String("layout", d.Template.Layout),
			zap.String("view", d.Template.View),
			zap.Error(err))
	}

	if d.NoTemplateMessage != "" {
		return e.count(messageResponse(d.NoTemplateMessage))
	}
	return e.count(textResponse(http.StatusText(http.StatusInternalServerError)))
}

func (e *engine) render() (body string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &PanicError{Value: r}
		}
	}()
	e.renderer.SetLayout(e.cfg.Display.Template.Layout)
	return e.renderer.Render(e.cfg.Display.Template.View)
}

func (e *engine) count(resp Response) Response {
	e.metrics.response(resp.Header.Get("Content-Type"))
	return resp
}

// messageResponse serves a configured message: as problem JSON when it is
// valid JSON, as HTML otherwise.
func messageResponse(msg string) Response {
	ct := contentTypeHTML
	if gjson.Valid(msg) {
		ct = contentTypeProblem
	}
	return Response{
		Status: http.StatusInternalServerError,
		Header: http.Header{"Content-Type": {ct}},
		Body:   msg,
	}
}

func textResponse(msg string) Response {
	return Response{
		Status: http.StatusInternalServerError,
		Header: http.Header{"Content-Type": {contentTypeText}},
		Body:   msg,
	}
}

// isXHR reports whether r carries the X-Requested-With header, whatever
// its value.
func isXHR(r *http.Request) bool {
	if r == nil {
		return false
	}
	return len(r.Header.Values("X-Requested-With")) > 0
}
