// collector.go provides the Collector interface that persists logged
// conditions and its default implementation.

package errhero

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Collector records error events to a configured sink.
type Collector interface {
	// Record captures an error event. Blocks until persisted (synchronous).
	// Applies scrubbing, fingerprinting and deduplication before delegating
	// to the sink. Returns ErrDuplicate when the event was skipped.
	Record(ctx context.Context, event ErrorEvent) error

	// Flush ensures any buffered events are persisted.
	Flush(ctx context.Context) error

	// Close releases resources held by the collector.
	Close() error
}

// Deduper answers whether an event with the same fingerprint was already
// persisted at or after since.
type Deduper interface {
	Seen(ctx context.Context, fingerprint string, since time.Time) (bool, error)
}

// CollectorOption configures a Collector.
type CollectorOption func(*collectorConfig)

type collectorConfig struct {
	sink     Sink
	scrubber *Scrubber
	deduper  Deduper
	window   time.Duration
	now      func() time.Time
}

// WithSink sets the sink for the collector.
func WithSink(sink Sink) CollectorOption {
	return func(c *collectorConfig) {
		c.sink = sink
	}
}

// WithScrubber configures the collector with a custom scrubber configuration.
func WithScrubber(cfg ScrubberConfig) CollectorOption {
	return func(c *collectorConfig) {
		c.scrubber = NewScrubber(cfg)
	}
}

// WithDefaultScrubbing enables scrubbing with production-safe defaults.
func WithDefaultScrubbing() CollectorOption {
	return func(c *collectorConfig) {
		c.scrubber = NewScrubber(DefaultScrubberConfig())
	}
}

// WithDeduper skips events whose fingerprint was seen within window.
// A zero window disables deduplication.
func WithDeduper(d Deduper, window time.Duration) CollectorOption {
	return func(c *collectorConfig) {
		c.deduper = d
		c.window = window
	}
}

// WithClock overrides the time source used for timestamps.
func WithClock(now func() time.Time) CollectorOption {
	return func(c *collectorConfig) {
		if now != nil {
			c.now = now
		}
	}
}

type defaultCollector struct {
	sink     Sink
	scrubber *Scrubber
	deduper  Deduper
	window   time.Duration
	now      func() time.Time
}

// NewCollector creates a new Collector with the given options.
func NewCollector(opts ...CollectorOption) Collector {
	cfg := &collectorConfig{now: time.Now}
	for _, opt := range opts {
		opt(cfg)
	}

	if cfg.sink == nil {
		cfg.sink = &discardSink{}
	}

	return &defaultCollector{
		sink:     cfg.sink,
		scrubber: cfg.scrubber,
		deduper:  cfg.deduper,
		window:   cfg.window,
		now:      cfg.now,
	}
}

func (c *defaultCollector) Record(ctx context.Context, event ErrorEvent) error {
	if event.EventID == "" {
		event.EventID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = c.now()
	}

	if c.scrubber != nil {
		event.Message = c.scrubber.ScrubMessage(event.Message)
		event.StackTrace = c.scrubber.ScrubStackTrace(event.StackTrace)
		event.URL = c.scrubber.ScrubURL(event.URL)
		event.RequestData = c.scrubber.ScrubJSON(event.RequestData)
		event.Metadata = c.scrubber.ScrubMetadata(event.Metadata)
	}

	event.Fingerprint = Fingerprint(event)

	var lookupErr error
	if c.deduper != nil && c.window > 0 {
		seen, err := c.deduper.Seen(ctx, event.Fingerprint, event.Timestamp.Add(-c.window))
		switch {
		case err != nil:
			// Persist anyway: a duplicate row beats a lost event.
			lookupErr = fmt.Errorf("dedup lookup: %w", err)
		case seen:
			return ErrDuplicate
		}
	}

	return errors.Join(lookupErr, c.sink.Write(ctx, event))
}

func (c *defaultCollector) Flush(ctx context.Context) error {
	return c.sink.Flush(ctx)
}

func (c *defaultCollector) Close() error {
	return c.sink.Close()
}

// discardSink is used when no sink is configured.
type discardSink struct{}

func (discardSink) Write(context.Context, ErrorEvent) error { return nil }
func (discardSink) Flush(context.Context) error             { return nil }
func (discardSink) Close() error                            { return nil }
