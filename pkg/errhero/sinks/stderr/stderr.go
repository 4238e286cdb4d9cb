// Package stderr provides a sink that prints logged conditions in a
// human-readable block. Useful for development and for the CLI.
package stderr

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/strongdm/errhero/pkg/errhero"
)

// Option configures the stderr sink.
type Option func(*sink)

// WithVerbose enables stack traces and the request snapshot.
func WithVerbose() Option {
	return func(s *sink) {
		s.verbose = true
	}
}

// WithWriter sends output to w instead of os.Stderr.
func WithWriter(w io.Writer) Option {
	return func(s *sink) {
		if w != nil {
			s.out = w
		}
	}
}

type sink struct {
	mu      sync.Mutex
	out     io.Writer
	verbose bool
}

// NewStderrSink creates a sink that writes to stderr.
func NewStderrSink(opts ...Option) errhero.Sink {
	s := &sink{out: os.Stderr}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Write prints one block per event:
//
//	[ERRHERO] <timestamp> <SEVERITY> <error_type> (<condition>) at <file>:<line>
//	        Request: GET /cart (id req-1)
//	        Message: ...
func (s *sink) Write(ctx context.Context, event errhero.ErrorEvent) error {
	var b strings.Builder

	head := fmt.Sprintf("[ERRHERO] %s %s %s",
		event.Timestamp.Format("2006-01-02T15:04:05Z07:00"),
		strings.ToUpper(string(event.Severity)),
		event.ErrorType)
	b.WriteString(head)
	if event.ConditionType != "" {
		fmt.Fprintf(&b, " (%s)", event.ConditionType)
	}
	if event.File != "" {
		fmt.Fprintf(&b, " at %s:%d", event.File, event.Line)
	}
	b.WriteByte('\n')

	if event.Method != "" || event.URL != "" {
		fmt.Fprintf(&b, "        Request: %s %s", event.Method, event.URL)
		if event.RequestID != "" {
			fmt.Fprintf(&b, " (id %s)", event.RequestID)
		}
		b.WriteByte('\n')
	}
	if event.Message != "" {
		fmt.Fprintf(&b, "        Message: %s\n", event.Message)
	}
	if event.Fingerprint != "" {
		fmt.Fprintf(&b, "        Fingerprint: %s\n", event.Fingerprint)
	}

	if s.verbose {
		if event.RequestData != "" {
			fmt.Fprintf(&b, "        Request data: %s\n", event.RequestData)
		}
		if event.StackTrace != "" {
			b.WriteString("        Stack trace:\n")
			for _, line := range strings.Split(strings.TrimRight(event.StackTrace, "\n"), "\n") {
				fmt.Fprintf(&b, "          %s\n", line)
			}
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := io.WriteString(s.out, b.String())
	return err
}

func (s *sink) Flush(ctx context.Context) error {
	return nil
}

func (s *sink) Close() error {
	return nil
}
