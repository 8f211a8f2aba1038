package form

import (
	"context"
	"sync"

	"github.com/go-drift/formctl/pkg/values"
)

// ControllerOptions configures a Controller.
type ControllerOptions struct {
	Name         string
	Rules        Rules
	DefaultValue any
	Disabled     *bool
	// ShouldUnregister removes the field when the controller closes.
	ShouldUnregister bool
	// OnUpdate is called after the field's value or state changed.
	OnUpdate func(*Controller)
}

// Field is the input-facing view of a controlled field.
type Field struct {
	Name     string
	Value    any
	Disabled bool
}

// Controller binds a custom input that keeps no value of its own. It
// tracks the field's value and state through subscriptions and hands back
// change and blur callbacks.
type Controller struct {
	c       *Control
	name    string
	opts    ControllerOptions
	binding *Binding
	unsub   func()

	mu    sync.Mutex
	value any
}

// Controller registers opts.Name and returns its controller. The initial
// value is the current form value, then the default value, then
// opts.DefaultValue.
func (c *Control) Controller(opts ControllerOptions) *Controller {
	name := values.Normalize(opts.Name)

	c.mu.Lock()
	value := values.Get(c.formValues, name, values.Get(c.defaultValues, name, opts.DefaultValue))
	c.mu.Unlock()

	rules := opts.Rules
	rules.Value = value
	if opts.Disabled != nil {
		rules.Disabled = opts.Disabled
	}
	rules.ShouldUnregister = rules.ShouldUnregister || opts.ShouldUnregister

	ctl := &Controller{c: c, name: name, opts: opts, value: values.Clone(value)}
	ctl.binding = c.Register(name, rules)
	ctl.unsub = c.subscribe(SubscribeOptions{
		Names:    []string{name},
		Exact:    true,
		Interest: FieldValues | FieldErrors | FieldDirtyFields | FieldTouchedFields | FieldValidatingFields,
		Callback: ctl.update,
	}, false)
	return ctl
}

func (ctl *Controller) update(ev StateEvent) {
	if ev.Values != nil {
		ctl.mu.Lock()
		ctl.value = values.Clone(values.Get(ev.Values, ctl.name, nil))
		ctl.mu.Unlock()
	}
	if ctl.opts.OnUpdate != nil {
		ctl.opts.OnUpdate(ctl)
	}
}

// Name returns the controlled field's path.
func (ctl *Controller) Name() string { return ctl.name }

// Value returns the last value observed for the field.
func (ctl *Controller) Value() any {
	ctl.mu.Lock()
	defer ctl.mu.Unlock()
	return values.Clone(ctl.value)
}

// Field returns the input-facing view of the field.
func (ctl *Controller) Field() Field {
	disabled := ctl.binding.Disabled != nil && *ctl.binding.Disabled
	ctl.c.mu.Lock()
	disabled = disabled || ctl.c.opts.Disabled || ctl.c.names.disabled.has(ctl.name)
	ctl.c.mu.Unlock()
	return Field{Name: ctl.name, Value: ctl.Value(), Disabled: disabled}
}

// FieldState returns the field's current state.
func (ctl *Controller) FieldState() FieldState {
	return ctl.c.GetFieldState(ctl.name)
}

// OnChange reports a new value from the input.
func (ctl *Controller) OnChange(ctx context.Context, value any) error {
	return ctl.binding.OnChange(ctx, value)
}

// OnBlur reports that the input lost focus.
func (ctl *Controller) OnBlur(ctx context.Context) error {
	return ctl.binding.OnBlur(ctx)
}

// Ref sets the focus target used for error focusing.
func (ctl *Controller) Ref(ref Ref) {
	c := ctl.c
	c.mu.Lock()
	defer c.mu.Unlock()
	if f := c.fields[ctl.name]; f != nil && ref != nil {
		f.ref = ref
		f.refs = nil
		f.inputType = ref.InputType()
	}
}

// Close stops tracking the field. The field is unregistered when the
// controller or the form asked for it; otherwise it stays registered but
// unmounted, keeping its value.
func (ctl *Controller) Close(ctx context.Context) error {
	ctl.unsub()
	c := ctl.c
	c.mu.Lock()
	unregister := c.opts.ShouldUnregister || ctl.opts.ShouldUnregister
	if !unregister {
		if f := c.fields[ctl.name]; f != nil {
			f.mount = false
		}
	}
	c.mu.Unlock()
	if unregister {
		return c.Unregister(ctx, UnregisterOptions{}, ctl.name)
	}
	return nil
}
