// execute.go runs downstream work on its own goroutine so the engine can
// tell a normal return, a panic, and an abnormal goroutine exit apart.

package errhero

import (
	"bytes"
	"runtime"
	"runtime/debug"
	"strconv"
)

type outcome int

const (
	// returned: the function came back normally.
	returned outcome = iota
	// panicked: a panic unwound the goroutine and was recovered.
	panicked
	// exited: the goroutine ended without returning and without a panic,
	// i.e. runtime.Goexit. This is the only way a fatal condition reaches us.
	exited
)

type execResult struct {
	outcome   outcome
	err       error
	recovered any
	stack     string
	file      string
	line      int
}

// execute calls fn on a fresh goroutine and waits for it to finish.
// fn's returned error is reported in execResult.err.
func execute(fn func() error) execResult {
	done := make(chan execResult, 1)
	go func() {
		res := execResult{outcome: exited}
		defer func() {
			if res.outcome != returned {
				if r := recover(); r != nil {
					file, line := panicOrigin()
					res = execResult{
						outcome:   panicked,
						recovered: r,
						stack:     string(debug.Stack()),
						file:      file,
						line:      line,
					}
				}
			}
			done <- res
		}()
		err := fn()
		res = execResult{outcome: returned, err: err}
	}()
	return <-done
}

// caught converts a panic result into the error handed to the logging
// collaborator. Promoted conditions keep their own type.
func (r execResult) caught() error {
	if r.outcome != panicked {
		return r.err
	}
	if ce, ok := r.recovered.(*ConditionError); ok {
		return ce
	}
	return &PanicError{Value: r.recovered, Stack: r.stack, File: r.file, Line: r.line}
}

// raised returns the original raised value: the panic value or the error.
func (r execResult) raised() any {
	if r.outcome == panicked {
		return r.recovered
	}
	return r.err
}

// goroutineID parses the current goroutine's ID from its stack header,
// "goroutine 18 [running]:". It returns 0 if the header cannot be read.
func goroutineID() uint64 {
	var buf [64]byte
	n := runtime.Stack(buf[:], false)
	b := bytes.TrimPrefix(buf[:n], []byte("goroutine "))
	if i := bytes.IndexByte(b, ' '); i > 0 {
		b = b[:i]
	}
	id, err := strconv.ParseUint(string(b), 10, 64)
	if err != nil {
		return 0
	}
	return id
}
