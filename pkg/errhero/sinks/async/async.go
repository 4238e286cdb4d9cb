// Package async provides a sink wrapper with a bounded queue so that logging
// a condition never blocks the request that raised it on slow storage.
// When the queue is full the oldest event is dropped.
package async

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/strongdm/errhero/pkg/errhero"
)

// ErrClosed is returned by Write after Close.
var ErrClosed = errors.New("async sink is closed")

// Option configures the async sink.
type Option func(*config)

type config struct {
	queueSize    int
	pollInterval time.Duration
	onDropped    func(count int)
	onError      func(error)
}

// WithQueueSize sets the maximum number of queued events (default: 1000).
func WithQueueSize(size int) Option {
	return func(c *config) {
		if size > 0 {
			c.queueSize = size
		}
	}
}

// WithPollInterval sets how often Flush checks for a drained queue (default: 10ms).
func WithPollInterval(d time.Duration) Option {
	return func(c *config) {
		if d > 0 {
			c.pollInterval = d
		}
	}
}

// WithOnDropped sets a callback invoked when events are dropped due to queue overflow.
func WithOnDropped(fn func(count int)) Option {
	return func(c *config) {
		c.onDropped = fn
	}
}

// WithOnError sets a callback for errors returned by the inner sink, which
// would otherwise be lost in the background.
func WithOnError(fn func(error)) Option {
	return func(c *config) {
		c.onError = fn
	}
}

type sink struct {
	inner        errhero.Sink
	queue        chan errhero.ErrorEvent
	done         chan struct{}
	pending      atomic.Int64
	pollInterval time.Duration
	closeOnce    sync.Once
	closeMu      sync.RWMutex
	closed       bool
	wg           sync.WaitGroup
	onDropped    func(count int)
	onError      func(error)
}

// NewAsyncSink wraps inner with a bounded queue. Write returns immediately;
// a single background goroutine writes to inner in order.
func NewAsyncSink(inner errhero.Sink, opts ...Option) errhero.Sink {
	cfg := &config{
		queueSize:    1000,
		pollInterval: 10 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(cfg)
	}

	s := &sink{
		inner:        inner,
		queue:        make(chan errhero.ErrorEvent, cfg.queueSize),
		done:         make(chan struct{}),
		pollInterval: cfg.pollInterval,
		onDropped:    cfg.onDropped,
		onError:      cfg.onError,
	}

	s.wg.Add(1)
	go s.processLoop()

	return s
}

func (s *sink) processLoop() {
	defer s.wg.Done()
	for {
		select {
		case event := <-s.queue:
			s.write(event)
		case <-s.done:
			for {
				select {
				case event := <-s.queue:
					s.write(event)
				default:
					return
				}
			}
		}
	}
}

func (s *sink) write(event errhero.ErrorEvent) {
	defer s.pending.Add(-1)
	if err := s.inner.Write(context.Background(), event); err != nil && s.onError != nil {
		s.onError(err)
	}
}

// Write enqueues an event. If the queue is full, the oldest event is dropped.
func (s *sink) Write(ctx context.Context, event errhero.ErrorEvent) error {
	s.closeMu.RLock()
	defer s.closeMu.RUnlock()
	if s.closed {
		return ErrClosed
	}

	s.pending.Add(1)
	select {
	case s.queue <- event:
		return nil
	default:
		s.dropOldestAndEnqueue(event)
		return nil
	}
}

func (s *sink) dropOldestAndEnqueue(event errhero.ErrorEvent) {
	select {
	case <-s.queue:
		s.dropped()
	default:
		// drained by the processor in the meantime
	}

	select {
	case s.queue <- event:
	default:
		s.dropped()
	}
}

func (s *sink) dropped() {
	s.pending.Add(-1)
	if s.onDropped != nil {
		s.onDropped(1)
	}
}

// Flush blocks until every accepted event has been written, then flushes
// the inner sink.
func (s *sink) Flush(ctx context.Context) error {
	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()

	for s.pending.Load() > 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
	return s.inner.Flush(ctx)
}

// Close drains the queue, stops the processor and closes the inner sink.
func (s *sink) Close() error {
	s.closeOnce.Do(func() {
		s.closeMu.Lock()
		s.closed = true
		s.closeMu.Unlock()

		close(s.done)
		s.wg.Wait()
	})

	return s.inner.Close()
}
