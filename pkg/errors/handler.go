package errors

import (
	"fmt"
	"runtime"
	"strings"
	"sync"
	"time"
)

var (
	handlerMu sync.RWMutex
	handler   ErrorHandler = NewLogHandler(false)
)

// SetHandler installs the process-wide error handler and returns the one it
// replaced. nil installs a LogHandler writing to stderr.
//
//	defer errors.SetHandler(errors.SetHandler(h))
func SetHandler(h ErrorHandler) ErrorHandler {
	if h == nil {
		h = NewLogHandler(false)
	}
	handlerMu.Lock()
	defer handlerMu.Unlock()
	prev := handler
	handler = h
	return prev
}

// Handler returns the installed error handler.
func Handler() ErrorHandler {
	handlerMu.RLock()
	defer handlerMu.RUnlock()
	return handler
}

// Report stamps err and hands it to the installed handler.
func Report(err *FormError) {
	if err == nil {
		return
	}
	if err.Timestamp.IsZero() {
		err.Timestamp = time.Now()
	}
	Handler().HandleError(err)
}

// ReportPanic stamps err and hands it to the installed handler.
func ReportPanic(err *PanicError) {
	if err == nil {
		return
	}
	if err.Timestamp.IsZero() {
		err.Timestamp = time.Now()
	}
	Handler().HandlePanic(err)
}

// Recover reports a panic in progress. It must be deferred directly:
//
//	defer errors.Recover("form.notify")
func Recover(op string) {
	if r := recover(); r != nil {
		ReportPanic(newPanic(op, r))
	}
}

// RecoverWithCallback is Recover followed by a call to callback with the
// reported panic, typically to turn it into a returned error.
func RecoverWithCallback(op string, callback func(p *PanicError)) {
	r := recover()
	if r == nil {
		return
	}
	p := newPanic(op, r)
	ReportPanic(p)
	if callback != nil {
		callback(p)
	}
}

func newPanic(op string, r any) *PanicError {
	return &PanicError{
		Op:         op,
		Value:      r,
		StackTrace: stack(4),
		Timestamp:  time.Now(),
	}
}

// CaptureStack returns the caller's stack, one "function\n\tfile:line"
// entry per frame.
func CaptureStack() string {
	return stack(3)
}

func stack(skip int) string {
	var pcs [32]uintptr
	n := runtime.Callers(skip, pcs[:])
	if n == 0 {
		return ""
	}
	var sb strings.Builder
	frames := runtime.CallersFrames(pcs[:n])
	for {
		f, more := frames.Next()
		fmt.Fprintf(&sb, "%s\n\t%s:%d\n", f.Function, f.File, f.Line)
		if !more {
			return sb.String()
		}
	}
}
