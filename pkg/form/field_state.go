package form

import (
	"context"

	"github.com/go-drift/formctl/pkg/values"
)

// GetFieldState returns the per-field view of the form state.
func (c *Control) GetFieldState(name string) FieldState {
	name = values.Normalize(name)
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.fieldStateLocked(name)
}

func (c *Control) fieldStateLocked(name string) FieldState {
	e := c.state.Errors[name]
	if e == nil {
		e = c.state.Errors[name+"."+RootError]
	}
	return FieldState{
		Invalid:      c.state.Errors.Has(name),
		IsDirty:      c.state.DirtyFields.Has(name),
		IsTouched:    c.state.TouchedFields.Has(name),
		IsValidating: c.state.ValidatingFields.Has(name),
		Error:        e.clone(),
	}
}

// SetError stores an error for name, replacing any previous one, and marks
// the form invalid. Errors set on unregistered paths, such as "root.server",
// are kept until cleared or the next validation of that path.
func (c *Control) SetError(name string, fe FieldError, shouldFocus bool) {
	name = values.Normalize(name)
	defer c.flush()
	c.mu.Lock()
	defer c.mu.Unlock()

	field := c.fields[name]
	if fe.Ref == nil && field != nil {
		fe.Ref = field.focusRef()
	}
	c.state.Errors.unset(name)
	c.state.Errors[name] = fe.clone()
	c.state.IsValid = false
	c.publishLocked(name, "", FieldErrors|FieldIsValid)

	if shouldFocus && field != nil {
		if f, ok := field.focusRef().(Focuser); ok {
			c.deferLocked(f.Focus)
		}
	}
}

// ClearErrors removes the errors of the named fields and everything beneath
// them, or every error when no names are given.
func (c *Control) ClearErrors(names ...string) {
	defer c.flush()
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(names) == 0 {
		c.state.Errors = Errors{}
	} else {
		for _, n := range normalizeNames(names) {
			c.state.Errors.unset(n)
		}
	}
	c.publishLocked("", "", FieldErrors)
}

// SetFocus focuses the field's input, selecting its content if asked.
func (c *Control) SetFocus(name string, shouldSelect bool) {
	name = values.Normalize(name)
	defer c.flush()
	c.mu.Lock()
	defer c.mu.Unlock()
	field := c.fields[name]
	if field == nil {
		return
	}
	ref := field.focusRef()
	if f, ok := ref.(Focuser); ok {
		c.deferLocked(f.Focus)
	}
	if s, ok := ref.(Selecter); ok && shouldSelect {
		c.deferLocked(s.Select)
	}
}

// SetDisabled disables or enables the whole form. Disabled forms skip
// dirty tracking and validation; refs implementing Disabler are updated.
func (c *Control) SetDisabled(ctx context.Context, disabled bool) error {
	defer c.flush()
	c.mu.Lock()
	if c.opts.Disabled == disabled {
		c.mu.Unlock()
		return nil
	}
	c.opts.Disabled = disabled
	c.state.Disabled = disabled
	for _, name := range c.order {
		f := c.fields[name]
		own := f.rules.disabled()
		for _, r := range f.allRefs() {
			if d, ok := r.(Disabler); ok {
				c.deferLocked(func() { d.SetDisabled(disabled || own) })
			}
		}
		if disabled {
			c.names.disabled.add(name)
		} else if !own {
			c.names.disabled.remove(name)
		}
	}
	c.state.IsDirty = c.getDirtyLocked()
	c.publishLocked("", "", FieldDisabled|FieldIsDirty)
	c.mu.Unlock()

	if disabled {
		return nil
	}
	return c.setValid(ctx, false)
}
