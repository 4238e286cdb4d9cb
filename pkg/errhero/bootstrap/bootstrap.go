// Package bootstrap builds a Middleware or Listener from services registered
// in a container, creating the default database-backed logger when none is
// registered.
package bootstrap

import (
	"context"
	"database/sql"
	"fmt"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/strongdm/errhero/pkg/errhero"
	"github.com/strongdm/errhero/pkg/errhero/config"
	"github.com/strongdm/errhero/pkg/errhero/logging"
	"github.com/strongdm/errhero/pkg/errhero/sinks/async"
	"github.com/strongdm/errhero/pkg/errhero/sinks/mail"
	"github.com/strongdm/errhero/pkg/errhero/sinks/multi"
	"github.com/strongdm/errhero/pkg/errhero/sinks/sqldb"
)

// Service names.
const (
	ServiceConfig   = "config"
	ServiceLogger   = "errhero.logger"
	ServiceDB       = "db.connection"
	ServiceRenderer = "errhero.renderer"
)

// Option configures the build.
type Option func(*options)

type options struct {
	logger    *zap.Logger
	metrics   *errhero.Metrics
	sinks     []errhero.Sink
	mailOpts  []mail.Option
	async     bool
	asyncOpts []async.Option
}

// WithLogger sets the diagnostics logger of everything built.
func WithLogger(logger *zap.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithMetrics attaches Prometheus counters to the middleware or listener.
func WithMetrics(m *errhero.Metrics) Option {
	return func(o *options) {
		o.metrics = m
	}
}

// WithSinks adds sinks next to the database writer of a built logger.
func WithSinks(sinks ...errhero.Sink) Option {
	return func(o *options) {
		o.sinks = append(o.sinks, sinks...)
	}
}

// WithMailOptions configures the mail sink created when email
// notification is enabled.
func WithMailOptions(opts ...mail.Option) Option {
	return func(o *options) {
		o.mailOpts = append(o.mailOpts, opts...)
	}
}

// WithAsync writes logged conditions from a background queue. Dedup lookups
// stay synchronous, so a burst of identical conditions may be written more
// than once.
func WithAsync(opts ...async.Option) Option {
	return func(o *options) {
		o.async = true
		o.asyncOpts = opts
	}
}

// NewMiddleware builds the HTTP middleware.
func NewMiddleware(ctx context.Context, c Container, opts ...Option) (*errhero.Middleware, error) {
	b, err := build(ctx, c, opts)
	if err != nil {
		return nil, err
	}
	return errhero.New(b.cfg, b.logging, b.renderer, b.engineOpts()...), nil
}

// NewListener builds the event-mode listener.
func NewListener(ctx context.Context, c Container, opts ...Option) (*errhero.Listener, error) {
	b, err := build(ctx, c, opts)
	if err != nil {
		return nil, err
	}
	return errhero.NewListener(b.cfg, b.logging, b.renderer, b.engineOpts()...), nil
}

type built struct {
	cfg      errhero.Config
	logging  errhero.Logger
	renderer errhero.Renderer
	opts     *options
}

func (b *built) engineOpts() []errhero.Option {
	return []errhero.Option{
		errhero.WithLogger(b.opts.logger),
		errhero.WithMetrics(b.opts.metrics),
	}
}

func build(ctx context.Context, c Container, opts []Option) (*built, error) {
	o := &options{logger: zap.NewNop()}
	for _, opt := range opts {
		opt(o)
	}

	svc, err := c.Get(ServiceConfig)
	if err != nil {
		return nil, err
	}
	file, ok := svc.(*config.File)
	if !ok {
		return nil, fmt.Errorf("service %q must be a *config.File, got %T", ServiceConfig, svc)
	}
	cfg, err := file.Settings()
	if err != nil {
		return nil, err
	}

	b := &built{cfg: cfg, opts: o}
	if b.logging, err = resolveLogger(ctx, c, file, cfg, o); err != nil {
		return nil, err
	}

	if c.Has(ServiceRenderer) {
		svc, err := c.Get(ServiceRenderer)
		if err != nil {
			return nil, err
		}
		r, ok := svc.(errhero.Renderer)
		if !ok {
			return nil, fmt.Errorf("service %q must be an errhero.Renderer, got %T", ServiceRenderer, svc)
		}
		b.renderer = r
	}
	return b, nil
}

func resolveLogger(ctx context.Context, c Container, file *config.File, cfg errhero.Config, o *options) (errhero.Logger, error) {
	if c.Has(ServiceLogger) {
		svc, err := c.Get(ServiceLogger)
		if err != nil {
			return nil, err
		}
		l, ok := svc.(errhero.Logger)
		if !ok {
			return nil, fmt.Errorf("service %q must be an errhero.Logger, got %T", ServiceLogger, svc)
		}
		return l, nil
	}

	reg, ok := c.(Registrar)
	if !ok {
		return nil, fmt.Errorf(`container "%T" is unsupported`, c)
	}

	db, err := resolveDB(c, reg, file)
	if err != nil {
		return nil, err
	}
	writer, err := sqldb.New(ctx, db)
	if err != nil {
		return nil, err
	}

	sinks := []errhero.Sink{writer}
	if cfg.Email.Enabled {
		mailOpts := append([]mail.Option{mail.WithAuth(cfg.Email.SMTPUsername, cfg.Email.SMTPPassword)}, o.mailOpts...)
		m, err := mail.NewMailSink(cfg.Email.SMTPAddress, cfg.Email.From, cfg.Email.To, mailOpts...)
		if err != nil {
			return nil, &errhero.ConfigurationError{Key: "email-notification-settings", Reason: err.Error()}
		}
		sinks = append(sinks, m)
	}
	sinks = append(sinks, o.sinks...)

	var sink errhero.Sink = multi.NewMultiSink(sinks...)
	if o.async {
		sink = async.NewAsyncSink(sink, o.asyncOpts...)
	}

	collector := errhero.NewCollector(
		errhero.WithSink(sink),
		errhero.WithDefaultScrubbing(),
		errhero.WithDeduper(writer, cfg.Logging.DedupWindow),
	)
	l := logging.New(collector, logging.WithLogger(o.logger))
	reg.Set(ServiceLogger, l)
	return l, nil
}

// resolveDB reuses a registered connection, or opens the configured writer
// adapter and registers it.
func resolveDB(c Container, reg Registrar, file *config.File) (*sql.DB, error) {
	if c.Has(ServiceDB) {
		svc, err := c.Get(ServiceDB)
		if err != nil {
			return nil, err
		}
		db, ok := svc.(*sql.DB)
		if !ok {
			return nil, fmt.Errorf("service %q must be a *sql.DB, got %T", ServiceDB, svc)
		}
		return db, nil
	}

	adapter, ok := file.WriterAdapter()
	if !ok {
		return nil, fmt.Errorf("db config is required for build %q service by %T container", ServiceLogger, c)
	}
	db, err := sql.Open(adapter.Driver, adapter.DSN)
	if err != nil {
		return nil, fmt.Errorf("open %s database: %w", adapter.Driver, err)
	}
	if adapter.Driver == "sqlite" {
		// SQLite has a single writer.
		db.SetMaxOpenConns(1)
	}
	reg.Set(ServiceDB, db)
	return db, nil
}
