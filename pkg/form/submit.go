package form

import (
	"context"

	"github.com/go-drift/formctl/pkg/errors"
	"github.com/go-drift/formctl/pkg/values"
)

// SubmitFunc receives the validated values of a valid form.
type SubmitFunc func(ctx context.Context, vals map[string]any) error

// InvalidFunc receives the errors of an invalid form.
type InvalidFunc func(ctx context.Context, errs Errors) error

// HandleSubmit returns a submit handler. The handler validates the form,
// calls onValid with the values (disabled fields removed) or onInvalid with
// the errors, then records the submission. An error or panic from a
// callback is returned after the bookkeeping, so the submit state is always
// settled.
func (c *Control) HandleSubmit(onValid SubmitFunc, onInvalid InvalidFunc) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		return c.submit(ctx, onValid, onInvalid)
	}
}

func (c *Control) submit(ctx context.Context, onValid SubmitFunc, onInvalid InvalidFunc) error {
	defer c.flush()
	c.removeUnmountedQuiet(ctx)

	c.mu.Lock()
	fieldValues := values.CloneMap(c.formValues)
	c.state.IsSubmitting = true
	c.publishLocked("", "", FieldIsSubmitting)
	c.mu.Unlock()
	c.flush()

	var cbErr error
	resolverFailed := false
	if c.opts.Resolver != nil {
		res, err := c.runSchema(ctx, nil)
		if err != nil {
			cbErr = err
			resolverFailed = true
		} else {
			c.mu.Lock()
			c.state.Errors = res.Errors.clone()
			if res.Values != nil {
				fieldValues = values.CloneMap(res.Values)
			}
			c.mu.Unlock()
		}
	} else {
		c.executeBuiltInValidation(ctx, nil, false)
	}

	c.mu.Lock()
	for _, n := range c.names.disabled.list() {
		values.Unset(fieldValues, n)
	}
	c.state.Errors.unset(RootError)
	ok := cbErr == nil && len(c.state.Errors) == 0
	errs := c.state.Errors.clone()
	if ok {
		c.publishLocked("", "", FieldErrors)
	}
	c.mu.Unlock()
	c.flush()

	switch {
	case cbErr != nil:
	case ok:
		if onValid != nil {
			cbErr = callSubmit(func() error { return onValid(ctx, fieldValues) })
		}
	default:
		if onInvalid != nil {
			cbErr = callSubmit(func() error { return onInvalid(ctx, errs) })
		}
		c.mu.Lock()
		if !c.opts.SkipFocusError {
			c.focusErrorLocked(c.names.mount.list())
		}
		c.mu.Unlock()
	}

	c.mu.Lock()
	c.state.IsSubmitted = true
	c.state.IsSubmitting = false
	c.state.IsSubmitSuccessful = len(c.state.Errors) == 0 && cbErr == nil
	c.state.SubmitCount++
	c.publishLocked("", "", FieldIsSubmitted|FieldIsSubmitting|FieldIsSubmitSuccessful|FieldSubmitCount|FieldErrors)
	count := c.state.SubmitCount
	c.mu.Unlock()

	if _, isPanic := cbErr.(*errors.PanicError); cbErr != nil && !isPanic && !resolverFailed {
		errors.Report(&errors.FormError{Op: "form.HandleSubmit", Kind: errors.KindSubmit, Err: cbErr})
	}

	outcome := "invalid"
	switch {
	case cbErr != nil:
		outcome = "error"
	case ok:
		outcome = "valid"
	}
	if c.metrics != nil {
		c.metrics.Submits.WithLabelValues(outcome).Inc()
	}
	c.log.Debug().Str("outcome", outcome).Int("count", count).Msg("submit")
	return cbErr
}

func callSubmit(fn func() error) (err error) {
	defer errors.RecoverWithCallback("form.HandleSubmit", func(p *errors.PanicError) {
		err = p
	})
	return fn()
}
