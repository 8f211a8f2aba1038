package form

import (
	"context"

	"github.com/go-drift/formctl/pkg/values"
)

// ResetOptions selects state kept by Reset.
type ResetOptions struct {
	KeepValues             bool
	KeepDirty              bool
	KeepDirtyValues        bool
	KeepErrors             bool
	KeepTouched            bool
	KeepDefaultValues      bool
	KeepIsSubmitted        bool
	KeepSubmitCount        bool
	KeepIsSubmitSuccessful bool
	KeepIsValid            bool
}

// Reset restores the form. A nil vals resets to the current defaults; a
// non-nil vals becomes the new defaults unless KeepDefaultValues is set. An
// empty non-nil map resets to the defaults and clears dirty state. The
// registry survives a reset: mounted fields keep their refs and rules.
func (c *Control) Reset(ctx context.Context, vals map[string]any, opts ResetOptions) error {
	defer c.flush()
	c.mu.Lock()

	updated := c.defaultValues
	if vals != nil {
		updated = values.CloneMap(vals)
	}
	isEmptyReset := vals != nil && len(vals) == 0
	resetVals := values.CloneMap(updated)
	if isEmptyReset {
		resetVals = values.CloneMap(c.defaultValues)
	}
	if !opts.KeepDefaultValues {
		c.defaultValues = updated
	}

	if !opts.KeepValues {
		if opts.KeepDirtyValues {
			check := append(c.names.mount.list(), values.DirtyPaths(c.defaultValues, c.formValues)...)
			for _, name := range check {
				if c.state.DirtyFields.Has(name) {
					values.Set(resetVals, name, values.Clone(values.Get(c.formValues, name, nil)))
				}
			}
		}
		switch {
		case c.opts.ShouldUnregister && opts.KeepDefaultValues:
			c.formValues = values.CloneMap(c.defaultValues)
		case c.opts.ShouldUnregister:
			c.formValues = map[string]any{}
		default:
			c.formValues = resetVals
		}
		for name := range c.generations {
			c.generations[name]++
		}
		c.valuesGen++
		for _, name := range c.names.mount.list() {
			if f := c.fields[name]; f != nil {
				c.syncRefsLocked(f, values.Get(c.formValues, name, nil))
			}
		}
		c.publishLocked("", "", FieldValues)
	}

	c.names.unmount.clear()
	c.stopDelayLocked()

	switch {
	case isEmptyReset:
		c.state.IsDirty = false
	case opts.KeepDirty:
	default:
		c.state.IsDirty = opts.KeepDefaultValues && !values.Equal(c.formValues, c.defaultValues)
	}

	switch {
	case isEmptyReset:
		c.state.DirtyFields = FieldSet{}
	case opts.KeepDirtyValues:
		if opts.KeepDefaultValues {
			c.state.DirtyFields = fieldSetOf(values.DirtyPaths(c.defaultValues, c.formValues))
		}
	case opts.KeepDefaultValues && vals != nil:
		c.state.DirtyFields = fieldSetOf(values.DirtyPaths(c.defaultValues, vals))
	case opts.KeepDirty:
	default:
		c.state.DirtyFields = FieldSet{}
	}

	if !opts.KeepTouched {
		c.state.TouchedFields = FieldSet{}
	}
	if !opts.KeepErrors {
		c.state.Errors = Errors{}
	}
	if !opts.KeepSubmitCount {
		c.state.SubmitCount = 0
	}
	if !opts.KeepIsSubmitted {
		c.state.IsSubmitted = false
	}
	if !opts.KeepIsSubmitSuccessful {
		c.state.IsSubmitSuccessful = false
	}
	c.state.IsSubmitting = false
	c.publishLocked("", "", FieldSubmitCount|FieldIsDirty|FieldIsSubmitted|FieldDirtyFields|
		FieldTouchedFields|FieldErrors|FieldIsSubmitSuccessful|FieldIsSubmitting)

	needValid := c.interest&FieldIsValid != 0 && !opts.KeepIsValid && !opts.KeepDirtyValues
	c.mu.Unlock()

	c.log.Debug().Bool("empty", isEmptyReset).Msg("reset")
	if needValid {
		return c.setValid(ctx, false)
	}
	return nil
}

// ResetFieldOptions selects state kept by ResetField.
type ResetFieldOptions struct {
	KeepDirty   bool
	KeepTouched bool
	KeepError   bool
	// DefaultValue, when set, becomes the field's new default.
	DefaultValue any
}

// ResetField restores one registered field to its default value.
func (c *Control) ResetField(ctx context.Context, name string, opts ResetFieldOptions) error {
	name = values.Normalize(name)
	defer c.flush()
	c.mu.Lock()
	if c.fields[name] == nil {
		c.mu.Unlock()
		return nil
	}

	if opts.DefaultValue == nil {
		c.setValueLocked(name, values.Clone(values.Get(c.defaultValues, name, nil)), SetValueOptions{})
	} else {
		c.setValueLocked(name, opts.DefaultValue, SetValueOptions{})
		values.Set(c.defaultValues, name, values.Clone(opts.DefaultValue))
	}
	if !opts.KeepTouched {
		c.state.TouchedFields.unset(name)
	}
	if !opts.KeepDirty {
		c.state.DirtyFields.unset(name)
		c.state.IsDirty = c.getDirtyLocked()
	}
	needValid := false
	if !opts.KeepError {
		c.state.Errors.unset(name)
		needValid = c.interest&FieldIsValid != 0
	}
	c.publishLocked("", "", AllState&^FieldValues)
	c.mu.Unlock()

	if needValid {
		return c.setValid(ctx, false)
	}
	return nil
}
