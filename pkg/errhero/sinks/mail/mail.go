// Package mail provides a sink that emails a plain-text report for every
// logged condition. Put it behind the collector's dedup so a recurring
// condition is mailed once per window.
package mail

import (
	"bytes"
	"context"
	"fmt"
	"mime"
	"net"
	netmail "net/mail"
	"net/smtp"
	"sort"
	"strings"
	"time"

	"github.com/strongdm/errhero/pkg/errhero"
)

// SendFunc has the signature of smtp.SendMail.
type SendFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

// Option configures the mail sink.
type Option func(*sink)

// WithAuth sets PLAIN credentials for the SMTP server.
func WithAuth(username, password string) Option {
	return func(s *sink) {
		if username != "" {
			s.username, s.password = username, password
		}
	}
}

// WithSendFunc replaces smtp.SendMail.
func WithSendFunc(fn SendFunc) Option {
	return func(s *sink) {
		s.send = fn
	}
}

// WithSubjectPrefix sets the subject prefix (default "[errhero]").
func WithSubjectPrefix(prefix string) Option {
	return func(s *sink) {
		s.subjectPrefix = prefix
	}
}

type sink struct {
	addr          string
	from          *netmail.Address
	to            []*netmail.Address
	username      string
	password      string
	subjectPrefix string
	send          SendFunc
}

// NewMailSink creates a sink sending to every address in to through the
// SMTP server at addr. Addresses may carry display names.
func NewMailSink(addr, from string, to []string, opts ...Option) (errhero.Sink, error) {
	sender, err := netmail.ParseAddress(from)
	if err != nil {
		return nil, fmt.Errorf("parse sender %q: %w", from, err)
	}
	if len(to) == 0 {
		return nil, fmt.Errorf("no recipients")
	}
	s := &sink{
		addr:          addr,
		from:          sender,
		subjectPrefix: "[errhero]",
		send:          smtp.SendMail,
	}
	for _, raw := range to {
		rcpt, err := netmail.ParseAddress(raw)
		if err != nil {
			return nil, fmt.Errorf("parse recipient %q: %w", raw, err)
		}
		s.to = append(s.to, rcpt)
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

func (s *sink) Write(ctx context.Context, event errhero.ErrorEvent) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	var auth smtp.Auth
	if s.username != "" {
		host, _, err := net.SplitHostPort(s.addr)
		if err != nil {
			host = s.addr
		}
		auth = smtp.PlainAuth("", s.username, s.password, host)
	}

	rcpts := make([]string, len(s.to))
	for i, a := range s.to {
		rcpts[i] = a.Address
	}
	if err := s.send(s.addr, auth, s.from.Address, rcpts, s.compose(event)); err != nil {
		return fmt.Errorf("send mail: %w", err)
	}
	return nil
}

func (s *sink) compose(event errhero.ErrorEvent) []byte {
	kind := event.ConditionType
	if kind == "" {
		kind = event.ErrorType
	}
	subject := strings.TrimSpace(fmt.Sprintf("%s %s: %s", s.subjectPrefix, kind, firstLine(event.Message)))
	if len(subject) > 150 {
		subject = subject[:147] + "..."
	}

	to := make([]string, len(s.to))
	for i, a := range s.to {
		to[i] = a.String()
	}

	var b bytes.Buffer
	fmt.Fprintf(&b, "From: %s\r\n", s.from.String())
	fmt.Fprintf(&b, "To: %s\r\n", strings.Join(to, ", "))
	fmt.Fprintf(&b, "Subject: %s\r\n", mimeHeader(subject))
	fmt.Fprintf(&b, "Date: %s\r\n", event.Timestamp.Format(time.RFC1123Z))
	if event.EventID != "" {
		fmt.Fprintf(&b, "X-Errhero-Event: %s\r\n", event.EventID)
	}
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=utf-8\r\n")
	b.WriteString("\r\n")

	line := func(label, value string) {
		if value != "" {
			fmt.Fprintf(&b, "%-13s %s\r\n", label+":", value)
		}
	}
	line("Date", event.Timestamp.UTC().Format(time.RFC3339))
	line("Severity", string(event.Severity))
	line("Type", kind)
	line("Message", event.Message)
	if event.File != "" {
		line("File", fmt.Sprintf("%s:%d", event.File, event.Line))
	}
	if event.URL != "" {
		line("Request", strings.TrimSpace(event.Method+" "+event.URL))
	}
	line("Request ID", event.RequestID)
	line("Fingerprint", event.Fingerprint)
	if event.RequestData != "" {
		b.WriteString("\r\nRequest data:\r\n")
		b.WriteString(crlf(event.RequestData))
		b.WriteString("\r\n")
	}
	if len(event.Metadata) > 0 {
		keys := make([]string, 0, len(event.Metadata))
		for k := range event.Metadata {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		b.WriteString("\r\nMetadata:\r\n")
		for _, k := range keys {
			fmt.Fprintf(&b, "  %s: %s\r\n", k, event.Metadata[k])
		}
	}
	if event.StackTrace != "" {
		b.WriteString("\r\nStack trace:\r\n")
		b.WriteString(crlf(event.StackTrace))
		b.WriteString("\r\n")
	}
	return b.Bytes()
}

func firstLine(s string) string {
	if i := strings.IndexAny(s, "\r\n"); i >= 0 {
		return s[:i]
	}
	return s
}

func crlf(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	return strings.ReplaceAll(s, "\n", "\r\n")
}

// mimeHeader Q-encodes non-ASCII header values.
func mimeHeader(s string) string {
	for _, r := range s {
		if r > 127 {
			return mime.QEncoding.Encode("utf-8", s)
		}
	}
	return s
}

// Flush is a no-op; every Write sends immediately.
func (s *sink) Flush(ctx context.Context) error {
	return nil
}

func (s *sink) Close() error {
	return nil
}
