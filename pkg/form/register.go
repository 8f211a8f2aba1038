package form

import (
	"context"

	"github.com/go-drift/formctl/pkg/values"
)

// Binding connects one input to a registered field.
type Binding struct {
	Name string
	// Disabled is the effective disabled flag at registration, if any.
	Disabled *bool

	c     *Control
	rules Rules
}

// OnChange reports a new input value.
func (b *Binding) OnChange(ctx context.Context, value any) error {
	return b.c.handleEvent(ctx, Event{Name: b.Name, Type: EventChange, Value: value})
}

// OnBlur reports that the input lost focus.
func (b *Binding) OnBlur(ctx context.Context) error {
	return b.c.handleEvent(ctx, Event{Name: b.Name, Type: EventBlur})
}

// Ref attaches ref to the field, or detaches the field's input when ref is
// nil.
func (b *Binding) Ref(ref Ref) {
	b.c.attachRef(context.Background(), b.Name, b.rules, ref)
}

// Register adds name to the registry, or merges rules into an existing
// entry, and returns the binding for its input. On first registration the
// field's value is seeded from Rules.Value, then the current form value,
// then the default value.
func (c *Control) Register(name string, rules Rules) *Binding {
	name = values.Normalize(name)
	defer c.flush()

	c.mu.Lock()
	needValid := c.registerLocked(name, rules)
	var disabled *bool
	if rules.Disabled != nil {
		disabled = rules.Disabled
	} else if c.opts.Disabled {
		t := true
		disabled = &t
	}
	c.mu.Unlock()

	if needValid {
		_ = c.setValid(context.Background(), false)
	}
	return &Binding{Name: name, Disabled: disabled, c: c, rules: rules}
}

// registerLocked returns true when isValid should be recomputed.
func (c *Control) registerLocked(name string, rules Rules) bool {
	field, existed := c.fields[name]
	if !existed {
		field = &fieldEntry{name: name}
		c.fields[name] = field
		c.order = append(c.order, name)
		c.log.Debug().Str("field", name).Msg("field registered")
	}
	field.rules = field.rules.merge(rules)
	field.mount = true
	c.names.mount.add(name)
	if field.rules.FieldArray {
		c.names.array.add(name)
	}

	disabled := rules.Disabled
	if disabled == nil && c.opts.Disabled {
		t := true
		disabled = &t
	}
	c.setDisabledFieldLocked(name, disabled)

	if existed {
		return false
	}
	return c.updateValidAndValueLocked(name, true, rules.Value, nil)
}

// setDisabledFieldLocked tracks a field's disabled flag. A disabled field
// keeps its value in formValues but is excluded from validation and from
// submitted values.
func (c *Control) setDisabledFieldLocked(name string, disabled *bool) {
	if disabled == nil {
		return
	}
	if *disabled {
		c.names.disabled.add(name)
		return
	}
	if c.names.disabled.has(name) {
		c.names.disabled.remove(name)
		prev := c.state.IsDirty
		c.state.IsDirty = c.getDirtyLocked()
		changed := FieldDirtyFields
		if prev != c.state.IsDirty {
			changed |= FieldIsDirty
		}
		c.publishLocked(name, "", changed)
	}
}

// updateValidAndValueLocked seeds a field's value when it has none and
// returns true when isValid should be recomputed.
func (c *Control) updateValidAndValueLocked(name string, skipSetValueAs bool, value any, ref Ref) bool {
	field := c.fields[name]
	if field == nil {
		return false
	}
	dv := value
	if dv == nil {
		dv = values.Get(c.formValues, name, values.Get(c.defaultValues, name, nil))
	}
	switch {
	case dv == nil:
		if g, ok := ref.(ValueGetter); ok && !skipSetValueAs {
			if v := g.Value(); v != nil {
				c.storeLocked(name, getFieldValueAs(v, field.rules))
			}
		}
	case skipSetValueAs:
		c.storeLocked(name, values.Clone(dv))
	default:
		c.setFieldValueLocked(name, values.Clone(dv), SetValueOptions{})
	}
	return c.mounted
}

// attachRef binds ref to the field, registering it if needed.
func (c *Control) attachRef(ctx context.Context, name string, rules Rules, ref Ref) {
	defer c.flush()
	c.mu.Lock()

	if ref == nil {
		if field := c.fields[name]; field != nil {
			field.mount = false
		}
		if c.opts.ShouldUnregister || rules.ShouldUnregister {
			c.names.unmount.add(name)
		}
		c.mu.Unlock()
		return
	}

	needValid := c.registerLocked(name, rules)
	field := c.fields[name]
	if isGroupRef(ref) {
		for _, r := range field.refs {
			if r == ref {
				c.mu.Unlock()
				if needValid {
					_ = c.setValid(ctx, false)
				}
				return
			}
		}
		kept := field.refs[:0]
		for _, r := range field.refs {
			if isLive(r) {
				kept = append(kept, r)
			}
		}
		field.refs = append(kept, ref)
		field.ref = nil
	} else {
		if field.ref == ref {
			c.mu.Unlock()
			if needValid {
				_ = c.setValid(ctx, false)
			}
			return
		}
		field.ref = ref
		field.refs = nil
	}
	field.inputType = ref.InputType()
	if c.updateValidAndValueLocked(name, false, nil, ref) {
		needValid = true
	}
	if c.opts.Disabled {
		if d, ok := ref.(Disabler); ok {
			c.deferLocked(func() { d.SetDisabled(true) })
		}
	}
	c.mu.Unlock()

	if needValid {
		_ = c.setValid(ctx, false)
	}
}

// UnregisterOptions selects state kept when fields are unregistered.
type UnregisterOptions struct {
	KeepValue        bool
	KeepError        bool
	KeepDirty        bool
	KeepTouched      bool
	KeepIsValidating bool
	KeepDefaultValue bool
	KeepIsValid      bool
}

// Unregister removes the named fields, or every mounted field when no
// names are given.
func (c *Control) Unregister(ctx context.Context, opts UnregisterOptions, names ...string) error {
	defer c.flush()
	c.mu.Lock()
	list := c.names.mount.list()
	if len(names) > 0 {
		list = normalizeNames(names)
	}
	c.unregisterLocked(list, opts)
	c.mu.Unlock()

	if opts.KeepIsValid {
		return nil
	}
	return c.setValid(ctx, false)
}

func (c *Control) unregisterLocked(names []string, opts UnregisterOptions) {
	for _, name := range names {
		c.names.mount.remove(name)
		c.names.array.remove(name)

		if !opts.KeepValue {
			c.removeFromOrderLocked(name)
			values.Unset(c.formValues, name)
			c.bumpLocked(name)
		}
		if !opts.KeepError {
			c.state.Errors.unset(name)
		}
		if !opts.KeepDirty {
			c.state.DirtyFields.unset(name)
		}
		if !opts.KeepTouched {
			c.state.TouchedFields.unset(name)
		}
		if !opts.KeepIsValidating {
			c.state.ValidatingFields.unset(name)
		}
		if !c.opts.ShouldUnregister && !opts.KeepDefaultValue {
			values.Unset(c.defaultValues, name)
		}
		c.log.Debug().Str("field", name).Msg("field unregistered")
	}
	c.publishLocked("", "", FieldValues)
	c.state.IsDirty = c.getDirtyLocked()
	c.publishLocked("", "", AllState&^FieldValues)
}

// RemoveUnmounted unregisters fields queued for removal whose inputs are no
// longer attached.
func (c *Control) RemoveUnmounted(ctx context.Context) error {
	defer c.flush()
	c.mu.Lock()
	var gone []string
	for _, name := range c.names.unmount.list() {
		field := c.fields[name]
		if field != nil && !field.live() {
			gone = append(gone, name)
		}
	}
	c.names.unmount.clear()
	if len(gone) > 0 {
		c.unregisterLocked(gone, UnregisterOptions{})
	}
	c.mu.Unlock()

	if len(gone) == 0 {
		return nil
	}
	return c.setValid(ctx, false)
}
