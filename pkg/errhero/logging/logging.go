// Package logging provides the default logging collaborator. It snapshots
// the request into the context and records caught conditions to a
// collector, which scrubs, deduplicates and fans them out to sinks.
package logging

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/strongdm/errhero/pkg/errhero"
)

// DefaultHeaders are the request headers copied into the snapshot.
var DefaultHeaders = []string{
	"Accept",
	"Accept-Language",
	"Content-Type",
	"Referer",
	"User-Agent",
	"X-Requested-With",
}

// Option configures a Logging.
type Option func(*Logging)

// WithLogger sets the diagnostics logger for collector failures.
func WithLogger(logger *zap.Logger) Option {
	return func(l *Logging) {
		if logger != nil {
			l.logger = logger
		}
	}
}

// WithHeaders replaces DefaultHeaders.
func WithHeaders(names ...string) Option {
	return func(l *Logging) {
		l.headers = names
	}
}

// WithStartTime sets the process start used for uptime in system state.
func WithStartTime(t time.Time) Option {
	return func(l *Logging) {
		l.startTime = t
	}
}

// Logging implements errhero.Logger on top of a Collector.
type Logging struct {
	collector errhero.Collector
	logger    *zap.Logger
	headers   []string
	startTime time.Time
}

var _ errhero.Logger = (*Logging)(nil)

// New creates the logging collaborator.
func New(collector errhero.Collector, opts ...Option) *Logging {
	l := &Logging{
		collector: collector,
		logger:    zap.NewNop(),
		headers:   DefaultHeaders,
		startTime: time.Now(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

type snapshotKey struct{}

// snapshot is the part of a request attached to logged events.
type snapshot struct {
	method string
	url    string
	data   string
}

type requestData struct {
	Query      map[string][]string `json:"query,omitempty"`
	Headers    map[string]string   `json:"headers,omitempty"`
	RemoteAddr string              `json:"remote_addr,omitempty"`
}

// SetRequestContext stores a snapshot of r in the returned context.
func (l *Logging) SetRequestContext(ctx context.Context, r *http.Request) context.Context {
	if r == nil {
		return ctx
	}
	return context.WithValue(ctx, snapshotKey{}, l.snapshot(r))
}

func (l *Logging) snapshot(r *http.Request) snapshot {
	data := requestData{RemoteAddr: r.RemoteAddr}
	if q := r.URL.Query(); len(q) > 0 {
		data.Query = q
	}
	for _, name := range l.headers {
		if v := r.Header.Get(name); v != "" {
			if data.Headers == nil {
				data.Headers = make(map[string]string)
			}
			data.Headers[name] = v
		}
	}

	s := snapshot{method: r.Method, url: requestURL(r)}
	if b, err := json.Marshal(data); err == nil {
		s.data = string(b)
	}
	return s
}

func requestURL(r *http.Request) string {
	if r.URL.IsAbs() {
		return r.URL.String()
	}
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	return scheme + "://" + r.Host + r.URL.RequestURI()
}

// HandleException records err. Duplicates inside the dedup window are
// expected and dropped silently.
func (l *Logging) HandleException(ctx context.Context, err error) {
	event := errhero.NewEvent(err)
	if s, ok := ctx.Value(snapshotKey{}).(snapshot); ok {
		event.Method = s.method
		event.URL = s.url
		event.RequestData = s.data
	}
	if id, ok := errhero.RequestIDFromContext(ctx); ok {
		event.RequestID = id
	}
	if id, ok := errhero.ContextIDFromContext(ctx); ok {
		event.ContextID = &id
	}
	event.SystemState = errhero.CaptureSystemState(l.startTime)

	switch recErr := l.collector.Record(ctx, event); {
	case recErr == nil:
	case errors.Is(recErr, errhero.ErrDuplicate):
		l.logger.Debug("condition already logged inside dedup window",
			zap.String("error_type", event.ErrorType),
			zap.String("message", event.Message))
	default:
		l.logger.Warn("failed to record condition",
			zap.String("error_type", event.ErrorType),
			zap.String("request_id", event.RequestID),
			zap.Error(recErr))
	}
}

// Flush flushes the collector's sinks.
func (l *Logging) Flush(ctx context.Context) error {
	return l.collector.Flush(ctx)
}

// Close closes the collector.
func (l *Logging) Close() error {
	return l.collector.Close()
}
