package multi

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/strongdm/errhero/pkg/errhero"
)

// mockSink is a test sink that tracks calls and can return errors.
type mockSink struct {
	mu       sync.Mutex
	events   []errhero.ErrorEvent
	writeErr error
	flushErr error
	closeErr error
	closed   bool
}

func (s *mockSink) Write(ctx context.Context, event errhero.ErrorEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.writeErr != nil {
		return s.writeErr
	}
	s.events = append(s.events, event)
	return nil
}

func (s *mockSink) Flush(ctx context.Context) error {
	return s.flushErr
}

func (s *mockSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return s.closeErr
}

func (s *mockSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.events)
}

func (s *mockSink) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// dedupSink is a mockSink that also answers dedup lookups.
type dedupSink struct {
	mockSink
	seen bool
}

func (s *dedupSink) Seen(context.Context, string, time.Time) (bool, error) {
	return s.seen, nil
}

func TestMultiSink_Write_CallsAllSinks(t *testing.T) {
	sink1, sink2, sink3 := &mockSink{}, &mockSink{}, &mockSink{}
	multi := NewMultiSink(sink1, sink2, sink3)

	if err := multi.Write(context.Background(), errhero.ErrorEvent{EventID: "evt-123"}); err != nil {
		t.Fatalf("Write returned error: %v", err)
	}
	for i, s := range []*mockSink{sink1, sink2, sink3} {
		if s.count() != 1 {
			t.Errorf("sink%d received %d events, want 1", i+1, s.count())
		}
	}
}

func TestMultiSink_Write_ContinuesAfterError(t *testing.T) {
	errA := errors.New("sink A down")
	failing := &mockSink{writeErr: errA}
	healthy := &mockSink{}
	multi := NewMultiSink(failing, healthy)

	err := multi.Write(context.Background(), errhero.ErrorEvent{})
	if !errors.Is(err, errA) {
		t.Errorf("Write error = %v, want %v", err, errA)
	}
	if healthy.count() != 1 {
		t.Error("healthy sink should still receive the event")
	}
}

func TestMultiSink_SkipsNilSinks(t *testing.T) {
	healthy := &mockSink{}
	multi := NewMultiSink(nil, healthy, nil)

	if err := multi.Write(context.Background(), errhero.ErrorEvent{}); err != nil {
		t.Fatalf("Write returned error: %v", err)
	}
	if healthy.count() != 1 {
		t.Error("non-nil sink should receive the event")
	}
}

func TestMultiSink_Seen_DelegatesToFirstDeduper(t *testing.T) {
	first := &dedupSink{seen: true}
	second := &dedupSink{seen: false}
	multi := NewMultiSink(&mockSink{}, first, second)

	if !multi.CanDedup() {
		t.Fatal("CanDedup = false, want true")
	}
	seen, err := multi.Seen(context.Background(), "fp", time.Now())
	if err != nil || !seen {
		t.Errorf("Seen = (%v, %v), want (true, nil)", seen, err)
	}
}

func TestMultiSink_Seen_WithoutDeduper(t *testing.T) {
	multi := NewMultiSink(&mockSink{})

	if multi.CanDedup() {
		t.Error("CanDedup = true, want false")
	}
	if seen, err := multi.Seen(context.Background(), "fp", time.Now()); seen || err != nil {
		t.Errorf("Seen = (%v, %v), want (false, nil)", seen, err)
	}
}

func TestMultiSink_FlushAndCloseAggregate(t *testing.T) {
	flushErr := errors.New("flush failed")
	closeErr := errors.New("close failed")
	a := &mockSink{flushErr: flushErr}
	b := &mockSink{closeErr: closeErr}
	multi := NewMultiSink(a, b)

	if err := multi.Flush(context.Background()); !errors.Is(err, flushErr) {
		t.Errorf("Flush error = %v, want %v", err, flushErr)
	}
	if err := multi.Close(); !errors.Is(err, closeErr) {
		t.Errorf("Close error = %v, want %v", err, closeErr)
	}
	if !a.isClosed() || !b.isClosed() {
		t.Error("all sinks should be closed even when one fails")
	}
}

func TestMultiSink_Empty(t *testing.T) {
	multi := NewMultiSink()

	if err := multi.Write(context.Background(), errhero.ErrorEvent{}); err != nil {
		t.Errorf("Write on empty multi sink returned error: %v", err)
	}
	if err := multi.Close(); err != nil {
		t.Errorf("Close on empty multi sink returned error: %v", err)
	}
}
