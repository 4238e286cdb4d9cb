// buffer.go implements the output buffer handed to downstream handlers.
// Nothing reaches the client until the final flush decides what to send.

package errhero

import (
	"bytes"
	"io"
	"net/http"
	"strconv"
	"sync"
)

// outputBuffer is an http.ResponseWriter that holds status, headers and body
// in memory. It deliberately does not implement http.Flusher: streamed
// output could not be replaced after a condition.
type outputBuffer struct {
	mu          sync.Mutex
	header      http.Header
	status      int
	wroteHeader bool
	body        bytes.Buffer
}

func newOutputBuffer() *outputBuffer {
	return &outputBuffer{header: make(http.Header), status: http.StatusOK}
}

func (b *outputBuffer) Header() http.Header {
	return b.header
}

// WriteHeader fixes the final status. Informational 1xx statuses are
// dropped: they cannot be sent ahead of a response that is still buffered.
func (b *outputBuffer) WriteHeader(status int) {
	if status >= 100 && status < 200 {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.wroteHeader {
		return
	}
	b.status = status
	b.wroteHeader = true
}

func (b *outputBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.wroteHeader = true
	return b.body.Write(p)
}

// String returns the buffered body.
func (b *outputBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.body.String()
}

// touched reports whether the handler wrote a status or any body.
func (b *outputBuffer) touched() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.wroteHeader || b.body.Len() > 0
}

// writeTo sends the buffered response, with body as its final content.
func (b *outputBuffer) writeTo(w http.ResponseWriter, body string) error {
	b.mu.Lock()
	status := b.status
	header := b.header.Clone()
	b.mu.Unlock()

	dst := w.Header()
	for k, v := range header {
		dst[k] = v
	}
	if dst.Get("Content-Type") == "" && body != "" {
		dst.Set("Content-Type", http.DetectContentType([]byte(body)))
	}
	dst.Set("Content-Length", strconv.Itoa(len(body)))
	w.WriteHeader(status)
	_, err := io.WriteString(w, body)
	return err
}

// writeResponse sends a materialized response, replacing whatever content
// headers the downstream handler had set.
func writeResponse(w http.ResponseWriter, resp Response) error {
	dst := w.Header()
	dst.Del("Content-Encoding")
	for k, v := range resp.Header {
		dst[k] = v
	}
	dst.Set("Content-Length", strconv.Itoa(len(resp.Body)))
	w.WriteHeader(resp.Status)
	_, err := io.WriteString(w, resp.Body)
	return err
}
