// Package errors provides structured error reporting for form controls.
//
// Validation failures are not errors: they live in the form state as
// field errors. This package covers what goes wrong around validation,
// such as a resolver that cannot run or a submit callback that panics.
package errors

import (
	"fmt"
	"time"
)

// ErrorKind identifies the category of an error.
type ErrorKind int

const (
	// KindUnknown indicates an error of unknown type.
	KindUnknown ErrorKind = iota
	// KindResolver indicates a schema resolver failure.
	KindResolver
	// KindSubmit indicates a failure returned by a submit callback.
	KindSubmit
	// KindValidator indicates a custom validator misbehaved.
	KindValidator
	// KindConfig indicates an invalid form definition or option.
	KindConfig
	// KindPanic indicates a recovered panic.
	KindPanic
)

func (k ErrorKind) String() string {
	switch k {
	case KindResolver:
		return "resolver"
	case KindSubmit:
		return "submit"
	case KindValidator:
		return "validator"
	case KindConfig:
		return "config"
	case KindPanic:
		return "panic"
	default:
		return "unknown"
	}
}

// FormError represents a structured error raised while operating a form.
type FormError struct {
	// Op is the operation that failed (e.g., "form.HandleSubmit").
	Op string
	// Kind categorizes the error.
	Kind ErrorKind
	// Field is the field path involved, if any.
	Field string
	// Err is the underlying error.
	Err error
	// StackTrace contains the call stack at the time of the error.
	StackTrace string
	// Timestamp is when the error occurred.
	Timestamp time.Time
}

func (e *FormError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s [%s] field=%s: %v", e.Op, e.Kind, e.Field, e.Err)
	}
	return fmt.Sprintf("%s [%s]: %v", e.Op, e.Kind, e.Err)
}

func (e *FormError) Unwrap() error {
	return e.Err
}

// PanicError represents a recovered panic.
type PanicError struct {
	// Op is the operation that panicked (e.g., "form.notify").
	Op string
	// Value is the value passed to panic().
	Value any
	// StackTrace contains the call stack at the time of the panic.
	StackTrace string
	// Timestamp is when the panic occurred.
	Timestamp time.Time
}

func (e *PanicError) Error() string {
	if e.Op != "" {
		return fmt.Sprintf("panic in %s: %v", e.Op, e.Value)
	}
	return fmt.Sprintf("panic: %v", e.Value)
}

// ErrorHandler receives errors reported by form controls.
type ErrorHandler interface {
	// HandleError is called when an error occurs.
	HandleError(err *FormError)
	// HandlePanic is called when a panic is recovered.
	HandlePanic(err *PanicError)
}
