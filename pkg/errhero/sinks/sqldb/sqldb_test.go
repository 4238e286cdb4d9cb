package sqldb

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"github.com/strongdm/errhero/pkg/errhero"
)

func newTestSink(t *testing.T) *Sink {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	// Each connection to :memory: is a separate database.
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })

	s, err := New(context.Background(), db)
	require.NoError(t, err)
	return s
}

func TestSink_WriteStoresRow(t *testing.T) {
	s := newTestSink(t)
	ctx := context.Background()

	err := s.Write(ctx, errhero.ErrorEvent{
		EventID:       "evt-1",
		Timestamp:     time.Date(2025, 4, 2, 8, 30, 0, 0, time.UTC),
		Fingerprint:   "fp-1",
		Severity:      errhero.SeverityWarning,
		ErrorType:     "*errhero.ConditionError",
		ConditionType: "warning",
		Message:       "division by zero",
		File:          "/srv/calc.go",
		Line:          9,
		URL:           "https://shop.example.com/calc",
		RequestData:   `{"query":{}}`,
	})
	require.NoError(t, err)

	var (
		date, kind, event, message, fingerprint string
		file, trace                             sql.NullString
		line                                    int
	)
	err = s.DB().QueryRowContext(ctx,
		`SELECT date, type, event, message, fingerprint, file, line, trace FROM log`,
	).Scan(&date, &kind, &event, &message, &fingerprint, &file, &line, &trace)
	require.NoError(t, err)

	assert.Equal(t, "2025-04-02 08:30:00.000000", date)
	assert.Equal(t, "warning", kind)
	assert.Equal(t, "evt-1", event)
	assert.Equal(t, "division by zero", message)
	assert.Equal(t, "fp-1", fingerprint)
	assert.Equal(t, "/srv/calc.go", file.String)
	assert.Equal(t, 9, line)
	assert.False(t, trace.Valid, "empty trace should be stored as NULL")
}

func TestSink_TypeFallsBackToSeverity(t *testing.T) {
	s := newTestSink(t)
	ctx := context.Background()

	require.NoError(t, s.Write(ctx, errhero.ErrorEvent{Severity: errhero.SeverityCrash, Timestamp: time.Now()}))

	var kind string
	require.NoError(t, s.DB().QueryRowContext(ctx, `SELECT type FROM log`).Scan(&kind))
	assert.Equal(t, "crash", kind)
}

func TestSink_Seen(t *testing.T) {
	s := newTestSink(t)
	ctx := context.Background()
	at := time.Date(2025, 4, 2, 12, 0, 0, 0, time.UTC)

	require.NoError(t, s.Write(ctx, errhero.ErrorEvent{Fingerprint: "fp", Timestamp: at}))

	seen, err := s.Seen(ctx, "fp", at.Add(-time.Hour))
	require.NoError(t, err)
	assert.True(t, seen, "row inside the window")

	seen, err = s.Seen(ctx, "fp", at.Add(time.Second))
	require.NoError(t, err)
	assert.False(t, seen, "row older than the window")

	seen, err = s.Seen(ctx, "other", at.Add(-time.Hour))
	require.NoError(t, err)
	assert.False(t, seen, "different fingerprint")
}

func TestSink_CollectorDedupWindow(t *testing.T) {
	s := newTestSink(t)
	ctx := context.Background()
	now := time.Date(2025, 4, 2, 12, 0, 0, 0, time.UTC)

	collector := errhero.NewCollector(
		errhero.WithSink(s),
		errhero.WithDeduper(s, 24*time.Hour),
		errhero.WithClock(func() time.Time { return now }),
	)

	event := errhero.NewEvent(errors.New("payment gateway timeout"))
	require.NoError(t, collector.Record(ctx, event))
	assert.ErrorIs(t, collector.Record(ctx, event), errhero.ErrDuplicate)

	now = now.Add(25 * time.Hour)
	require.NoError(t, collector.Record(ctx, event))

	var n int
	require.NoError(t, s.DB().QueryRowContext(ctx, `SELECT COUNT(*) FROM log`).Scan(&n))
	assert.Equal(t, 2, n)
}

func TestOpen_OwnsDatabase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "errhero.db")
	s, err := Open(context.Background(), "sqlite", path)
	require.NoError(t, err)

	require.NoError(t, s.Write(context.Background(), errhero.ErrorEvent{Timestamp: time.Now()}))
	require.NoError(t, s.Flush(context.Background()))
	require.NoError(t, s.Close())

	assert.Error(t, s.DB().Ping(), "database should be closed with the sink")
}

func TestNew_DoesNotCloseCallerDatabase(t *testing.T) {
	s := newTestSink(t)
	require.NoError(t, s.Close())
	assert.NoError(t, s.DB().Ping())
}
