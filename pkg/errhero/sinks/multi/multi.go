// Package multi provides a sink that fans out to multiple sinks.
// All sinks receive all events; errors are aggregated.
package multi

import (
	"context"
	"errors"
	"time"

	"github.com/strongdm/errhero/pkg/errhero"
)

// Sink fans out to its children. It also answers dedup lookups through the
// first child that implements errhero.Deduper, so wrapping a database sink
// does not lose deduplication.
type Sink struct {
	sinks   []errhero.Sink
	deduper errhero.Deduper
}

// NewMultiSink creates a sink that writes to every non-nil sink in order.
func NewMultiSink(sinks ...errhero.Sink) *Sink {
	s := &Sink{}
	for _, child := range sinks {
		if child == nil {
			continue
		}
		s.sinks = append(s.sinks, child)
		if d, ok := child.(errhero.Deduper); ok && s.deduper == nil {
			s.deduper = d
		}
	}
	return s
}

// Write sends the event to all sinks, collecting any errors.
// All sinks are called even if some return errors.
func (s *Sink) Write(ctx context.Context, event errhero.ErrorEvent) error {
	var errs []error
	for _, sink := range s.sinks {
		if err := sink.Write(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Seen delegates to the first child deduper. Without one nothing is ever
// reported as seen.
func (s *Sink) Seen(ctx context.Context, fingerprint string, since time.Time) (bool, error) {
	if s.deduper == nil {
		return false, nil
	}
	return s.deduper.Seen(ctx, fingerprint, since)
}

// CanDedup reports whether some child answers dedup lookups.
func (s *Sink) CanDedup() bool {
	return s.deduper != nil
}

// Flush calls Flush on all sinks, collecting any errors.
func (s *Sink) Flush(ctx context.Context) error {
	var errs []error
	for _, sink := range s.sinks {
		if err := sink.Flush(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Close calls Close on all sinks, collecting any errors.
func (s *Sink) Close() error {
	var errs []error
	for _, sink := range s.sinks {
		if err := sink.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
