// fingerprint.go generates the stable hash used to group and deduplicate
// identical conditions.

package errhero

import (
	"crypto/sha256"
	"encoding/hex"
	"net/url"
	"regexp"
	"strconv"
	"strings"
)

// Fingerprint identifies "the same condition at the same place". Two events
// share a fingerprint when they agree on:
//   - error type and condition type
//   - origin file and line
//   - request method and URL path (query string ignored)
//   - message, with memory addresses normalized
//
// Timestamps, event IDs, request IDs and stack traces are ignored.
func Fingerprint(event ErrorEvent) string {
	parts := []string{
		event.ErrorType,
		event.ConditionType,
		event.File,
		strconv.Itoa(event.Line),
		event.Method,
		urlPath(event.URL),
		normalizeMessage(event.Message),
	}

	hash := sha256.Sum256([]byte(strings.Join(parts, "|")))

	// First 16 bytes, 32 hex chars
	return hex.EncodeToString(hash[:16])
}

var (
	memAddrPattern   = regexp.MustCompile(`0x[0-9a-fA-F]+`)
	goroutinePattern = regexp.MustCompile(`goroutine \d+`)
)

func normalizeMessage(msg string) string {
	msg = memAddrPattern.ReplaceAllString(msg, "0x?")
	msg = goroutinePattern.ReplaceAllString(msg, "goroutine ?")
	return strings.TrimSpace(msg)
}

func urlPath(raw string) string {
	if raw == "" {
		return ""
	}
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	return u.Path
}
