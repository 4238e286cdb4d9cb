// config.go defines the immutable per-middleware configuration.

package errhero

import "time"

// Config controls the interception layer. It is supplied by the application
// at construction and never mutated by the engine.
type Config struct {
	// Enabled turns the whole apparatus on. When false, handlers run untouched.
	Enabled bool

	Display DisplaySettings
	Logging LoggingSettings
	Email   EmailSettings
}

// DisplaySettings decide what the client sees when a condition is caught.
type DisplaySettings struct {
	// ExcludedConditions lists condition types, or (type, message) pairs, that
	// are never promoted.
	ExcludedConditions []Exclusion

	// DisplayErrors re-raises caught conditions instead of replacing the
	// response (developer mode).
	DisplayErrors bool

	// ExcludedExceptions lists type tags (see TypeTag) that are never logged
	// and always re-raised.
	ExcludedExceptions []string

	Template Template

	// AjaxMessage is the body sent to XHR requests. Empty means not configured.
	AjaxMessage string

	// NoTemplateMessage is the body sent when no renderer is available.
	NoTemplateMessage string

	// ConsoleMessage is the text written by event-mode work without a request.
	ConsoleMessage string

	// ReportingLevel is the reporting mask used in display mode (0 = TypeAll).
	// Suppressed mode always reports every type.
	ReportingLevel ConditionType
}

// Template names the layout and view rendered for error pages.
type Template struct {
	Layout string
	View   string
}

// LoggingSettings are forwarded to the logging collaborator.
type LoggingSettings struct {
	// DedupWindow is the time range within which identical conditions are
	// not persisted again.
	DedupWindow time.Duration
}

// EmailSettings are forwarded to the logging collaborator.
type EmailSettings struct {
	Enabled      bool
	From         string
	To           []string
	SMTPAddress  string
	SMTPUsername string
	SMTPPassword string
}

// reportingMask returns the mask installed for a request.
func (c *Config) reportingMask() ConditionType {
	if !c.Display.DisplayErrors || c.Display.ReportingLevel == 0 {
		return TypeAll
	}
	return c.Display.ReportingLevel
}

// isExcludedException reports whether v's type tag is exclusion-listed.
func (c *Config) isExcludedException(v any) bool {
	tag := TypeTag(v)
	for _, excluded := range c.Display.ExcludedExceptions {
		if excluded == tag {
			return true
		}
	}
	return false
}
