package bootstrap

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/smtp"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/strongdm/errhero/pkg/errhero"
	"github.com/strongdm/errhero/pkg/errhero/config"
	"github.com/strongdm/errhero/pkg/errhero/sinks/mail"
)

const baseConfig = `
enable: true
display-settings:
  display-errors: false
  template: {layout: layout/layout, view: errhero/error-default}
  no-template: {message: "<p>sorry</p>"}
logging-settings:
  same-error-log-time-range: 86400
email-notification-settings:
  enable: false
`

func parseConfig(t *testing.T, doc string) *config.File {
	t.Helper()
	f, err := config.Parse([]byte(doc))
	require.NoError(t, err)
	return f
}

func memoryDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func countRows(t *testing.T, db *sql.DB) int {
	t.Helper()
	var n int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM log`).Scan(&n))
	return n
}

// readOnlyContainer resolves services but cannot register new ones.
type readOnlyContainer struct {
	services map[string]any
}

func (c readOnlyContainer) Has(name string) bool {
	_, ok := c.services[name]
	return ok
}

func (c readOnlyContainer) Get(name string) (any, error) {
	if s, ok := c.services[name]; ok {
		return s, nil
	}
	return nil, errors.New("not found")
}

type stubLogger struct {
	mu   sync.Mutex
	errs []error
}

func (l *stubLogger) SetRequestContext(ctx context.Context, _ *http.Request) context.Context {
	return ctx
}

func (l *stubLogger) HandleException(_ context.Context, err error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.errs = append(l.errs, err)
}

func panicking(msg string) http.Handler {
	return http.HandlerFunc(func(http.ResponseWriter, *http.Request) { panic(msg) })
}

func serve(h http.Handler) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	return rec
}

func TestMapContainer(t *testing.T) {
	c := NewMapContainer()
	assert.False(t, c.Has("x"))
	_, err := c.Get("x")
	assert.ErrorContains(t, err, `service "x" not found`)

	c.Set("x", 1)
	assert.True(t, c.Has("x"))
	v, err := c.Get("x")
	require.NoError(t, err)
	assert.Equal(t, 1, v)
}

type closeRecorder struct {
	name  string
	order *[]string
}

func (c closeRecorder) Close() error {
	*c.order = append(*c.order, c.name)
	return nil
}

func TestMapContainer_CloseInReverseOrder(t *testing.T) {
	var order []string
	c := NewMapContainer()
	c.Set("db", closeRecorder{"db", &order})
	c.Set("plain", 42)
	c.Set("logger", closeRecorder{"logger", &order})

	require.NoError(t, c.Close())
	assert.Equal(t, []string{"logger", "db"}, order)
}

func TestNewMiddleware_MissingConfig(t *testing.T) {
	_, err := NewMiddleware(context.Background(), NewMapContainer())
	assert.ErrorContains(t, err, `service "config" not found`)
}

func TestNewMiddleware_WrongConfigType(t *testing.T) {
	c := NewMapContainer()
	c.Set(ServiceConfig, map[string]any{})
	_, err := NewMiddleware(context.Background(), c)
	assert.ErrorContains(t, err, "must be a *config.File")
}

func TestNewMiddleware_InvalidConfig(t *testing.T) {
	c := NewMapContainer()
	c.Set(ServiceConfig, parseConfig(t, `enable: true`))

	_, err := NewMiddleware(context.Background(), c)
	var ce *errhero.ConfigurationError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, "display-settings", ce.Key)
}

func TestNewMiddleware_UnsupportedContainer(t *testing.T) {
	c := readOnlyContainer{services: map[string]any{ServiceConfig: parseConfig(t, baseConfig)}}

	_, err := NewMiddleware(context.Background(), c)
	require.Error(t, err)
	assert.Equal(t, `container "bootstrap.readOnlyContainer" is unsupported`, err.Error())
}

func TestNewMiddleware_DBConfigRequired(t *testing.T) {
	c := NewMapContainer()
	c.Set(ServiceConfig, parseConfig(t, baseConfig))

	_, err := NewMiddleware(context.Background(), c)
	require.Error(t, err)
	assert.Equal(t, `db config is required for build "errhero.logger" service by *bootstrap.MapContainer container`, err.Error())
}

func TestNewMiddleware_RegisteredLoggerIsUsed(t *testing.T) {
	logger := &stubLogger{}
	c := readOnlyContainer{services: map[string]any{
		ServiceConfig: parseConfig(t, baseConfig),
		ServiceLogger: logger,
	}}

	m, err := NewMiddleware(context.Background(), c)
	require.NoError(t, err)

	rec := serve(m.Handler(panicking("boom")))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "<p>sorry</p>", rec.Body.String())
	require.Len(t, logger.errs, 1)
}

func TestNewMiddleware_WrongServiceTypes(t *testing.T) {
	cfg := parseConfig(t, baseConfig)

	c := NewMapContainer()
	c.Set(ServiceConfig, cfg)
	c.Set(ServiceLogger, "not a logger")
	_, err := NewMiddleware(context.Background(), c)
	assert.ErrorContains(t, err, "must be an errhero.Logger")

	c = NewMapContainer()
	c.Set(ServiceConfig, cfg)
	c.Set(ServiceDB, "not a db")
	_, err = NewMiddleware(context.Background(), c)
	assert.ErrorContains(t, err, "must be a *sql.DB")

	c = NewMapContainer()
	c.Set(ServiceConfig, cfg)
	c.Set(ServiceLogger, &stubLogger{})
	c.Set(ServiceRenderer, 3)
	_, err = NewMiddleware(context.Background(), c)
	assert.ErrorContains(t, err, "must be an errhero.Renderer")
}

func TestNewMiddleware_RegisteredDBIsReconciled(t *testing.T) {
	db := memoryDB(t)
	c := NewMapContainer()
	c.Set(ServiceConfig, parseConfig(t, baseConfig))
	c.Set(ServiceDB, db)

	m, err := NewMiddleware(context.Background(), c)
	require.NoError(t, err)
	assert.True(t, c.Has(ServiceLogger), "built logger is registered")

	h := m.Handler(panicking("payment gateway timeout"))
	serve(h)
	serve(h)
	serve(m.Handler(panicking("inventory offline")))

	assert.Equal(t, 2, countRows(t, db), "identical conditions are logged once per window")
}

func TestNewMiddleware_OpensWriterAdapter(t *testing.T) {
	dir := t.TempDir()
	doc := baseConfig + `
db:
  driver: sqlite
  dsn: "` + filepath.Join(dir, "main.db") + `"
  adapters:
    logs: {driver: sqlite, dsn: "` + filepath.Join(dir, "logs.db") + `"}
log:
  writer-adapter: logs
`
	c := NewMapContainer()
	c.Set(ServiceConfig, parseConfig(t, doc))
	t.Cleanup(func() { _ = c.Close() })

	m, err := NewMiddleware(context.Background(), c)
	require.NoError(t, err)
	serve(m.Handler(panicking("boom")))

	svc, err := c.Get(ServiceDB)
	require.NoError(t, err)
	db := svc.(*sql.DB)
	assert.Equal(t, 1, countRows(t, db))

	logs, err := sql.Open("sqlite", filepath.Join(dir, "logs.db"))
	require.NoError(t, err)
	defer logs.Close()
	assert.Equal(t, 1, countRows(t, logs), "rows land in the named adapter")
}

func TestNewMiddleware_EmailNotification(t *testing.T) {
	doc := strings.Replace(baseConfig, "  enable: false\n", `  enable: true
  email-from: "Alerts <alerts@example.com>"
  email-to-send: [dev@example.com]
  smtp-address: "localhost:25"
`, 1)

	var mu sync.Mutex
	var sent []string
	send := func(addr string, a smtp.Auth, from string, to []string, msg []byte) error {
		mu.Lock()
		defer mu.Unlock()
		sent = append(sent, string(msg))
		return nil
	}

	c := NewMapContainer()
	c.Set(ServiceConfig, parseConfig(t, doc))
	c.Set(ServiceDB, memoryDB(t))

	m, err := NewMiddleware(context.Background(), c, WithMailOptions(mail.WithSendFunc(send)))
	require.NoError(t, err)

	h := m.Handler(panicking("disk full"))
	serve(h)
	serve(h)

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, sent, 1, "duplicates are not mailed")
	assert.Contains(t, sent[0], "disk full")
}

func TestNewMiddleware_ExtraSinksAndAsync(t *testing.T) {
	db := memoryDB(t)
	c := NewMapContainer()
	c.Set(ServiceConfig, parseConfig(t, baseConfig))
	c.Set(ServiceDB, db)

	extra := &countingSink{}
	m, err := NewMiddleware(context.Background(), c, WithSinks(extra), WithAsync())
	require.NoError(t, err)

	serve(m.Handler(panicking("boom")))

	svc, err := c.Get(ServiceLogger)
	require.NoError(t, err)
	require.NoError(t, svc.(interface{ Close() error }).Close())

	assert.Equal(t, 1, countRows(t, db))
	assert.Equal(t, 1, extra.count())
}

type countingSink struct {
	mu sync.Mutex
	n  int
}

func (s *countingSink) Write(context.Context, errhero.ErrorEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.n++
	return nil
}

func (s *countingSink) Flush(context.Context) error { return nil }
func (s *countingSink) Close() error                { return nil }

func (s *countingSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.n
}

func TestNewListener(t *testing.T) {
	logger := &stubLogger{}
	c := NewMapContainer()
	c.Set(ServiceConfig, parseConfig(t, baseConfig))
	c.Set(ServiceLogger, logger)

	l, err := NewListener(context.Background(), c)
	require.NoError(t, err)

	var out strings.Builder
	ev := errhero.NewLifecycleEvent("import", nil, &out)
	err = l.Run(context.Background(), ev, func(context.Context, *errhero.Event) error {
		return errors.New("import failed")
	})
	require.NoError(t, err, "a handled condition is not returned")
	assert.Equal(t, "An error occurred. Please check the error log for details.", out.String())
	assert.Len(t, logger.errs, 1)
}
