package errors

import (
	"os"

	"github.com/rs/zerolog"
)

// LogHandler is an ErrorHandler that writes structured log events.
type LogHandler struct {
	// Verbose adds stack traces to the events.
	Verbose bool
	// Logger receives the events.
	Logger zerolog.Logger
}

// NewLogHandler returns a LogHandler writing JSON lines to stderr.
func NewLogHandler(verbose bool) *LogHandler {
	return &LogHandler{
		Verbose: verbose,
		Logger:  zerolog.New(os.Stderr).With().Timestamp().Logger(),
	}
}

// HandleError logs a FormError.
func (h *LogHandler) HandleError(err *FormError) {
	if err == nil {
		return
	}
	ev := h.Logger.Error().
		Str("op", err.Op).
		Str("kind", err.Kind.String()).
		Err(err.Err)
	if err.Field != "" {
		ev = ev.Str("field", err.Field)
	}
	if h.Verbose && err.StackTrace != "" {
		ev = ev.Str("stack", err.StackTrace)
	}
	ev.Msg("form error")
}

// HandlePanic logs a PanicError.
func (h *LogHandler) HandlePanic(err *PanicError) {
	if err == nil {
		return
	}
	ev := h.Logger.Error().Str("kind", KindPanic.String()).Interface("value", err.Value)
	if err.Op != "" {
		ev = ev.Str("op", err.Op)
	}
	if h.Verbose && err.StackTrace != "" {
		ev = ev.Str("stack", err.StackTrace)
	}
	ev.Msg("form panic")
}
