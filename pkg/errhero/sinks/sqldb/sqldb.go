// Package sqldb provides a sink that persists logged conditions to a SQL
// "log" table and answers dedup lookups against it.
package sqldb

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/strongdm/errhero/pkg/errhero"
)

// dateLayout is fixed width so dates compare correctly as text.
const dateLayout = "2006-01-02 15:04:05.000000"

const schema = `
CREATE TABLE IF NOT EXISTS log (
	id           INTEGER PRIMARY KEY AUTOINCREMENT,
	date         TEXT NOT NULL,
	type         TEXT NOT NULL,
	event        TEXT NOT NULL,
	severity     TEXT NOT NULL,
	error_type   TEXT NOT NULL,
	message      TEXT NOT NULL,
	url          TEXT,
	method       TEXT,
	file         TEXT,
	line         INTEGER,
	trace        TEXT,
	request_id   TEXT,
	request_data TEXT,
	fingerprint  TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS log_fingerprint_date ON log (fingerprint, date);
`

// Sink writes events to the log table. It also implements errhero.Deduper.
type Sink struct {
	db    *sql.DB
	owned bool
}

var (
	_ errhero.Sink    = (*Sink)(nil)
	_ errhero.Deduper = (*Sink)(nil)
)

// New creates the log table on db if needed. The caller keeps ownership of db.
func New(ctx context.Context, db *sql.DB) (*Sink, error) {
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return nil, fmt.Errorf("create log table: %w", err)
	}
	return &Sink{db: db}, nil
}

// Open opens a database with the given driver and DSN and creates the log
// table. The database is closed with the sink.
func Open(ctx context.Context, driver, dsn string) (*Sink, error) {
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s database: %w", driver, err)
	}
	s, err := New(ctx, db)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	s.owned = true
	return s, nil
}

// DB returns the underlying database handle.
func (s *Sink) DB() *sql.DB {
	return s.db
}

func (s *Sink) Write(ctx context.Context, event errhero.ErrorEvent) error {
	kind := event.ConditionType
	if kind == "" {
		kind = string(event.Severity)
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO log (date, type, event, severity, error_type, message, url, method,
			file, line, trace, request_id, request_data, fingerprint)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		event.Timestamp.UTC().Format(dateLayout), kind, event.EventID, string(event.Severity),
		event.ErrorType, event.Message, nullable(event.URL), nullable(event.Method),
		nullable(event.File), event.Line, nullable(event.StackTrace), nullable(event.RequestID),
		nullable(event.RequestData), event.Fingerprint,
	)
	if err != nil {
		return fmt.Errorf("insert log row: %w", err)
	}
	return nil
}

// Seen reports whether a row with fingerprint was written at or after since.
func (s *Sink) Seen(ctx context.Context, fingerprint string, since time.Time) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM log WHERE fingerprint = ? AND date >= ?`,
		fingerprint, since.UTC().Format(dateLayout),
	).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("query log: %w", err)
	}
	return n > 0, nil
}

// Flush is a no-op; rows are written synchronously.
func (s *Sink) Flush(ctx context.Context) error {
	return nil
}

// Close closes the database if the sink opened it.
func (s *Sink) Close() error {
	if s.owned {
		return s.db.Close()
	}
	return nil
}

func nullable(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
