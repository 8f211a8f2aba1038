package form

import (
	"context"
	"reflect"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/go-drift/formctl/pkg/values"
)

// SetValueOptions controls the side effects of SetValue.
type SetValueOptions struct {
	ShouldValidate bool
	ShouldDirty    bool
	ShouldTouch    bool
}

// SetValue writes value at name. Writing an object to the parent of
// registered fields updates each of them. Dirty, touched and validation
// side effects are opt-in through opts.
func (c *Control) SetValue(ctx context.Context, name string, value any, opts SetValueOptions) error {
	name = values.Normalize(name)
	defer c.flush()

	c.mu.Lock()
	c.setValueLocked(name, value, opts)
	c.mu.Unlock()

	if opts.ShouldValidate {
		_, err := c.Trigger(ctx, TriggerOptions{}, name)
		return err
	}
	return nil
}

func (c *Control) setValueLocked(name string, value any, opts SetValueOptions) {
	field := c.fields[name]
	isArray := c.names.array.has(name)
	cloned := values.Clone(value)

	c.storeLocked(name, cloned)

	switch {
	case isArray:
		if opts.ShouldDirty {
			c.state.DirtyFields = fieldSetOf(values.DirtyPaths(c.defaultValues, c.formValues))
			c.state.IsDirty = c.getDirtyLocked()
			c.publishLocked(name, "", FieldDirtyFields|FieldIsDirty)
		}
	case field == nil && cloned != nil && c.hasChildrenLocked(name):
		c.setValuesLocked(name, cloned, opts)
	default:
		c.setFieldValueLocked(name, cloned, opts)
	}

	if c.isWatchedLocked(name, false) {
		c.publishLocked(name, "", AllState&^FieldValues)
	}
	changed := FieldValues
	prev := c.state.IsDirty
	c.state.IsDirty = c.getDirtyLocked()
	if prev != c.state.IsDirty {
		changed |= FieldIsDirty
	}
	signal := ""
	if c.mounted {
		signal = name
	}
	c.publishLocked(signal, "", changed)
}

// setValuesLocked writes each child of an object or list value to the
// fields registered beneath name.
func (c *Control) setValuesLocked(name string, value any, opts SetValueOptions) {
	for _, key := range values.Keys(value) {
		child, _ := values.Child(value, key)
		fieldName := name + "." + key
		_, registered := c.fields[fieldName]
		_, isMap := child.(map[string]any)
		if c.names.array.has(name) || isMap || (!registered && c.hasChildrenLocked(fieldName)) {
			c.setValuesLocked(fieldName, child, opts)
			continue
		}
		c.setFieldValueLocked(fieldName, child, opts)
	}
}

// setFieldValueLocked stores a registered field's value and pushes it to
// the field's refs.
func (c *Control) setFieldValueLocked(name string, value any, opts SetValueOptions) {
	field := c.fields[name]
	if field != nil {
		if !field.rules.disabled() {
			c.storeLocked(name, getFieldValueAs(value, field.rules))
		}
		c.syncRefsLocked(field, value)
		if field.inputType == "" && (field.ref != nil || len(field.refs) > 0) {
			c.publishLocked(name, "", FieldValues)
		}
	}
	if opts.ShouldDirty || opts.ShouldTouch {
		c.updateTouchAndDirtyLocked(name, value, opts.ShouldTouch, opts.ShouldDirty, true)
	}
}

// syncRefsLocked queues the writes that reflect value on the field's refs.
func (c *Control) syncRefsLocked(field *fieldEntry, value any) {
	if len(field.refs) > 0 {
		for _, r := range field.refs {
			ch, ok := r.(Checker)
			if !ok {
				continue
			}
			var checked bool
			if r.InputType() == "checkbox" {
				checked = checkboxChecked(value, ch.OptionValue(), len(field.refs) > 1)
			} else {
				checked = values.Equal(value, ch.OptionValue())
			}
			c.deferLocked(func() { ch.SetChecked(checked) })
		}
		return
	}
	if s, ok := field.ref.(ValueSetter); ok {
		c.deferLocked(func() { s.SetValue(value) })
	}
}

func checkboxChecked(value, option any, multiple bool) bool {
	if list, ok := value.([]any); ok {
		for _, v := range list {
			if values.Equal(v, option) {
				return true
			}
		}
		return false
	}
	if multiple {
		return values.Equal(value, option)
	}
	if b, ok := value.(bool); ok {
		return b
	}
	return value != nil && values.Equal(value, option)
}

// updateTouchAndDirtyLocked recomputes the form and field dirty flags and
// marks the field touched on blur. It returns the changed fields when a
// subscriber cares about them.
func (c *Control) updateTouchAndDirtyLocked(name string, fieldValue any, isBlur, shouldDirty, shouldRender bool) StateField {
	if c.opts.Disabled {
		return 0
	}
	var changed StateField
	shouldUpdate := false

	if !isBlur || shouldDirty {
		prev := c.state.IsDirty
		c.state.IsDirty = c.getDirtyLocked()
		if prev != c.state.IsDirty {
			changed |= FieldIsDirty
			shouldUpdate = shouldUpdate || c.interest&FieldIsDirty != 0
		}

		pristine := c.isDisabledLocked(name) ||
			values.Equal(values.Get(c.defaultValues, name, nil), fieldValue)
		wasDirty := c.state.DirtyFields.Has(name)
		if pristine {
			c.state.DirtyFields.unset(name)
		} else {
			c.state.DirtyFields[name] = true
		}
		changed |= FieldDirtyFields
		shouldUpdate = shouldUpdate || (c.interest&FieldDirtyFields != 0 && wasDirty == pristine)
	}

	if isBlur && !c.state.TouchedFields.Has(name) {
		c.state.TouchedFields[name] = true
		changed |= FieldTouchedFields
		shouldUpdate = shouldUpdate || c.interest&FieldTouchedFields != 0
	}

	if !shouldUpdate {
		return 0
	}
	if shouldRender {
		c.publishLocked(name, "", changed)
	}
	return changed
}

// GetValues returns a copy of the whole value tree. Before the form is
// mounted it returns the default values.
func (c *Control) GetValues() map[string]any {
	c.mu.Lock()
	defer c.mu.Unlock()
	return values.CloneMap(c.liveValuesLocked())
}

// GetValue returns a copy of the value at name, or nil.
func (c *Control) GetValue(name string) any {
	c.mu.Lock()
	defer c.mu.Unlock()
	return values.Clone(values.Get(c.liveValuesLocked(), values.Normalize(name), nil))
}

// GetValuesOf returns copies of the values at each name, in order.
func (c *Control) GetValuesOf(names ...string) []any {
	c.mu.Lock()
	defer c.mu.Unlock()
	src := c.liveValuesLocked()
	out := make([]any, len(names))
	for i, n := range names {
		out[i] = values.Clone(values.Get(src, values.Normalize(n), nil))
	}
	return out
}

// DefaultValues returns a copy of the default values.
func (c *Control) DefaultValues() map[string]any {
	c.mu.Lock()
	defer c.mu.Unlock()
	return values.CloneMap(c.defaultValues)
}

// Watch returns the value at name and marks it watched: every later write
// to it notifies all subscribers.
func (c *Control) Watch(name string) any {
	name = values.Normalize(name)
	c.mu.Lock()
	defer c.mu.Unlock()
	c.names.watch.add(name)
	return values.Clone(values.Get(c.liveValuesLocked(), name, nil))
}

// WatchAll returns the whole value tree and marks every field watched.
func (c *Control) WatchAll() map[string]any {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.names.watchAll = true
	return values.CloneMap(c.liveValuesLocked())
}

// WatchFunc calls fn with the value tree after every value change and
// returns a function that stops watching.
func (c *Control) WatchFunc(fn func(vals map[string]any, ev StateEvent)) func() {
	return c.subscribe(SubscribeOptions{
		Interest: FieldValues,
		Callback: func(ev StateEvent) {
			if ev.Changed&FieldValues == 0 || ev.Values == nil {
				return
			}
			fn(ev.Values, ev)
		},
	}, false)
}

var watchChildPattern = regexp.MustCompile(`^\.\w+`)

func (c *Control) isWatchedLocked(name string, isBlur bool) bool {
	if isBlur {
		return false
	}
	if c.names.watchAll || c.names.watch.has(name) {
		return true
	}
	for _, w := range c.names.watch.items {
		if strings.HasPrefix(name, w) && watchChildPattern.MatchString(name[len(w):]) {
			return true
		}
	}
	return false
}

// getFieldValueAs applies the field's value conversions.
func getFieldValueAs(value any, r Rules) any {
	if value == nil {
		return nil
	}
	switch {
	case r.ValueAsNumber:
		if value == "" {
			return nil
		}
		if f, ok := values.ToFloat(value); ok {
			return f
		}
		if s, ok := value.(string); ok {
			if f, err := strconv.ParseFloat(strings.TrimSpace(s), 64); err == nil {
				return f
			}
		}
		return value
	case r.ValueAsDate:
		if s, ok := value.(string); ok {
			if t, ok := parseDate(s); ok {
				return t
			}
		}
		return value
	case r.SetValueAs != nil:
		return r.SetValueAs(value)
	}
	return value
}

var dateLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

func parseDate(s string) (time.Time, bool) {
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func normalizeNames(names []string) []string {
	out := make([]string, len(names))
	for i, n := range names {
		out[i] = values.Normalize(n)
	}
	return out
}

// listLen reports the length of a slice value of any element type.
func listLen(v any) (int, bool) {
	if l, ok := v.([]any); ok {
		return len(l), true
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Slice || rv.Kind() == reflect.Array {
		return rv.Len(), true
	}
	return 0, false
}
