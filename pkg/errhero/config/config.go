// Package config loads the errhero YAML configuration tree and converts it
// into an errhero.Config.
package config

import (
	_ "embed"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/strongdm/errhero/pkg/errhero"
)

// Sample is a complete configuration file with every supported key.
//
//go:embed errhero.yaml.dist
var Sample []byte

// File mirrors the configuration tree. Required keys are pointers so that a
// missing key can be told apart from its zero value.
type File struct {
	Enable          *bool            `yaml:"enable"`
	DisplaySettings *DisplaySettings `yaml:"display-settings"`
	LoggingSettings *LoggingSettings `yaml:"logging-settings"`
	EmailSettings   *EmailSettings   `yaml:"email-notification-settings"`
	DB              *DB              `yaml:"db,omitempty"`
	Log             Log              `yaml:"log,omitempty"`
}

// DisplaySettings is the display-settings section.
type DisplaySettings struct {
	ExcludeConditions []Exclusion `yaml:"exclude-conditions"`
	ExcludeExceptions []string    `yaml:"exclude-exceptions"`
	DisplayErrors     *bool       `yaml:"display-errors"`
	ReportingLevel    *Level      `yaml:"reporting-level,omitempty"`
	Template          *Template   `yaml:"template"`
	Ajax              Message     `yaml:"ajax,omitempty"`
	NoTemplate        Message     `yaml:"no-template,omitempty"`
	Console           Message     `yaml:"console,omitempty"`
}

// Template names the layout and view of the error page.
type Template struct {
	Layout string `yaml:"layout"`
	View   string `yaml:"view"`
}

// Message holds a configured response body.
type Message struct {
	Message string `yaml:"message"`
}

// LoggingSettings is the logging-settings section.
type LoggingSettings struct {
	// SameErrorLogTimeRange is the dedup window in seconds.
	SameErrorLogTimeRange *int `yaml:"same-error-log-time-range"`
}

// EmailSettings is the email-notification-settings section.
type EmailSettings struct {
	Enable       *bool    `yaml:"enable"`
	EmailFrom    string   `yaml:"email-from"`
	EmailToSend  []string `yaml:"email-to-send"`
	SMTPAddress  string   `yaml:"smtp-address"`
	SMTPUsername string   `yaml:"smtp-username,omitempty"`
	SMTPPassword string   `yaml:"smtp-password,omitempty"`
}

// DB configures the database the log writer persists to.
type DB struct {
	Driver   string             `yaml:"driver"`
	DSN      string             `yaml:"dsn"`
	Adapters map[string]Adapter `yaml:"adapters,omitempty"`
}

// Adapter is a named database connection.
type Adapter struct {
	Driver string `yaml:"driver"`
	DSN    string `yaml:"dsn"`
}

// Log selects the database adapter of the log writer.
type Log struct {
	// WriterAdapter names the db.adapters entry the log writer uses.
	WriterAdapter string `yaml:"writer-adapter,omitempty"`
}

// Parse decodes a configuration document. It does not validate.
func Parse(data []byte) (*File, error) {
	f := &File{}
	if err := yaml.Unmarshal(data, f); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return f, nil
}

// Load reads and parses the configuration file at path.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	return Parse(data)
}

// Validate checks that every required key is present. The returned error is
// a *errhero.ConfigurationError naming the first offending key.
func (f *File) Validate() error {
	missing := func(key string) error {
		return &errhero.ConfigurationError{Key: key, Reason: "is required"}
	}

	if f.Enable == nil {
		return missing("enable")
	}

	d := f.DisplaySettings
	switch {
	case d == nil:
		return missing("display-settings")
	case d.DisplayErrors == nil:
		return missing("display-settings.display-errors")
	case d.Template == nil:
		return missing("display-settings.template")
	case d.Template.Layout == "":
		return missing("display-settings.template.layout")
	case d.Template.View == "":
		return missing("display-settings.template.view")
	}

	switch {
	case f.LoggingSettings == nil:
		return missing("logging-settings")
	case f.LoggingSettings.SameErrorLogTimeRange == nil:
		return missing("logging-settings.same-error-log-time-range")
	case *f.LoggingSettings.SameErrorLogTimeRange < 0:
		return &errhero.ConfigurationError{
			Key:    "logging-settings.same-error-log-time-range",
			Reason: "must not be negative",
		}
	}

	e := f.EmailSettings
	switch {
	case e == nil:
		return missing("email-notification-settings")
	case e.Enable == nil:
		return missing("email-notification-settings.enable")
	}
	if *e.Enable {
		switch {
		case e.EmailFrom == "":
			return missing("email-notification-settings.email-from")
		case len(e.EmailToSend) == 0:
			return missing("email-notification-settings.email-to-send")
		case e.SMTPAddress == "":
			return missing("email-notification-settings.smtp-address")
		}
	}

	if f.DB != nil {
		if _, ok := f.WriterAdapter(); !ok {
			return &errhero.ConfigurationError{Key: "db", Reason: "driver and dsn are required"}
		}
	}
	return nil
}

// WriterAdapter resolves the database connection for the log writer. A
// log.writer-adapter naming an entry of db.adapters wins; otherwise the
// top-level db section is used. It reports false when no complete
// connection is configured.
func (f *File) WriterAdapter() (Adapter, bool) {
	if f.DB == nil {
		return Adapter{}, false
	}
	a := Adapter{Driver: f.DB.Driver, DSN: f.DB.DSN}
	if named, ok := f.DB.Adapters[f.Log.WriterAdapter]; ok && f.Log.WriterAdapter != "" {
		a = named
	}
	return a, a.Driver != "" && a.DSN != ""
}

// Settings validates f and converts it into an errhero.Config.
func (f *File) Settings() (errhero.Config, error) {
	if err := f.Validate(); err != nil {
		return errhero.Config{}, err
	}

	d := f.DisplaySettings
	cfg := errhero.Config{
		Enabled: *f.Enable,
		Display: errhero.DisplaySettings{
			DisplayErrors:      *d.DisplayErrors,
			ExcludedExceptions: append([]string(nil), d.ExcludeExceptions...),
			Template: errhero.Template{
				Layout: d.Template.Layout,
				View:   d.Template.View,
			},
			AjaxMessage:       d.Ajax.Message,
			NoTemplateMessage: d.NoTemplate.Message,
			ConsoleMessage:    d.Console.Message,
		},
		Logging: errhero.LoggingSettings{
			DedupWindow: time.Duration(*f.LoggingSettings.SameErrorLogTimeRange) * time.Second,
		},
	}
	for _, x := range d.ExcludeConditions {
		cfg.Display.ExcludedConditions = append(cfg.Display.ExcludedConditions, x.Exclusion)
	}
	if d.ReportingLevel != nil {
		cfg.Display.ReportingLevel = d.ReportingLevel.ConditionType
	}

	e := f.EmailSettings
	cfg.Email = errhero.EmailSettings{
		Enabled:      *e.Enable,
		From:         e.EmailFrom,
		To:           append([]string(nil), e.EmailToSend...),
		SMTPAddress:  e.SMTPAddress,
		SMTPUsername: e.SMTPUsername,
		SMTPPassword: e.SMTPPassword,
	}
	return cfg, nil
}
