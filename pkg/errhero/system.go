// system.go samples the process state attached to a logged condition.

package errhero

import (
	"os"
	"runtime"
	"sync"
	"time"
)

// hostName is resolved once; a lookup failure leaves it empty.
var hostName = sync.OnceValue(func() string {
	name, err := os.Hostname()
	if err != nil {
		return ""
	}
	return name
})

// CaptureSystemState samples the process at the moment a condition is
// logged. Uptime is measured from since and is never negative.
func CaptureSystemState(since time.Time) *SystemState {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)

	return &SystemState{
		MemoryBytes:    int64(ms.HeapAlloc),
		GoroutineCount: runtime.NumGoroutine(),
		UptimeMs:       max(time.Since(since).Milliseconds(), 0),
		HostName:       hostName(),
	}
}
