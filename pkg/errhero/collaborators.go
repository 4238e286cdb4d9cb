// collaborators.go defines the contracts of the logging and rendering
// collaborators injected at construction.

package errhero

import (
	"context"
	"net/http"
)

// Logger is the logging collaborator.
type Logger interface {
	// SetRequestContext attaches r to ctx so that conditions logged later
	// carry its details. It returns the derived context; implementations must
	// not keep per-request state on the Logger itself. r may be nil for
	// event-mode work without a request.
	SetRequestContext(ctx context.Context, r *http.Request) context.Context

	// HandleException logs, deduplicates and notifies as configured.
	// Failures stay inside the collaborator.
	HandleException(ctx context.Context, err error)
}

// Renderer is the template rendering collaborator. A nil Renderer is legal
// and selects the no-template response.
type Renderer interface {
	// SetLayout selects the layout that wraps subsequently rendered views.
	SetLayout(name string)

	// Render renders the named view inside the active layout.
	Render(view string) (string, error)
}

type nopLogger struct{}

func (nopLogger) SetRequestContext(ctx context.Context, _ *http.Request) context.Context {
	return ctx
}

func (nopLogger) HandleException(context.Context, error) {}
