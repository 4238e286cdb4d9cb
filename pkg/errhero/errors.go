// errors.go defines the error values shared by the core and its collaborators.

package errhero

import (
	"errors"
	"fmt"
)

var (
	// ErrTerminated is wrapped by Listener.Run when the unit of work ended
	// through a fatal condition and the reconciled output replaced its own.
	ErrTerminated = errors.New("errhero: unit of work terminated by fatal condition")

	// ErrDuplicate is returned by Collector.Record when the event was already
	// persisted inside the dedup window.
	ErrDuplicate = errors.New("errhero: duplicate event inside dedup window")
)

// ConfigurationError reports missing or invalid configuration. It is raised
// at construction time and is never recovered.
type ConfigurationError struct {
	// Key is the dotted configuration path, e.g. "display-settings.template.view".
	Key string

	// Reason describes what is wrong with the key.
	Reason string
}

func (e *ConfigurationError) Error() string {
	if e.Key == "" {
		return "errhero: invalid configuration: " + e.Reason
	}
	return fmt.Sprintf("errhero: invalid configuration %q: %s", e.Key, e.Reason)
}

// terminatedError carries the cause of a terminal error output.
type terminatedError struct {
	cause error
}

func (e *terminatedError) Error() string {
	return ErrTerminated.Error() + ": " + e.cause.Error()
}

func (e *terminatedError) Unwrap() []error {
	return []error{ErrTerminated, e.cause}
}
