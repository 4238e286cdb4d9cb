package errhero

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCaptureSystemState(t *testing.T) {
	state := CaptureSystemState(time.Now().Add(-time.Second))
	require.NotNil(t, state)

	assert.Positive(t, state.MemoryBytes)
	assert.GreaterOrEqual(t, state.GoroutineCount, 1)
	assert.GreaterOrEqual(t, state.UptimeMs, int64(1000))

	if want, err := os.Hostname(); err == nil {
		assert.Equal(t, want, state.HostName)
	}
}

func TestCaptureSystemState_UptimeFromStart(t *testing.T) {
	start := time.Now()
	first := CaptureSystemState(start)
	time.Sleep(10 * time.Millisecond)
	second := CaptureSystemState(start)

	assert.Greater(t, second.UptimeMs, first.UptimeMs)
	assert.Zero(t, CaptureSystemState(time.Now().Add(time.Hour)).UptimeMs, "future start is clamped")
}
