// sink.go defines the Sink interface for logged condition destinations.

package errhero

import "context"

// Sink is a destination for logged conditions: a terminal, a database table,
// a remote store. Implementations must be safe for concurrent use because
// every in-flight request may log through the same sink.
type Sink interface {
	// Write persists one event after scrubbing and fingerprinting.
	Write(ctx context.Context, event ErrorEvent) error

	// Flush persists anything buffered. Synchronous sinks return nil.
	Flush(ctx context.Context) error

	// Close releases resources; later writes should fail.
	Close() error
}
