package form

import "sync"

// Ref is the handle an input hands to the engine. Implementations should be
// pointer types: refs are compared with ==.
//
// The optional interfaces below are detected by type assertion. The engine
// calls them after releasing its lock.
type Ref interface {
	// InputType names the kind of input ("text", "number", "checkbox",
	// "radio", "time", "week", ...). An empty type marks a custom input.
	InputType() string
}

// Focuser is implemented by refs that can take focus.
type Focuser interface {
	Focus()
}

// Selecter is implemented by refs whose content can be selected.
type Selecter interface {
	Select()
}

// Attacher reports whether the input is still attached to its view. Refs
// that do not implement it are never considered live, so unmounted fields
// holding them are swept.
type Attacher interface {
	Attached() bool
}

// ValueSetter receives values written by the engine.
type ValueSetter interface {
	SetValue(v any)
}

// ValueGetter lets a newly attached ref seed a field with no value.
type ValueGetter interface {
	Value() any
}

// Checker is implemented by checkbox and radio options.
type Checker interface {
	SetChecked(checked bool)
	OptionValue() any
}

// Disabler receives the form level disabled flag.
type Disabler interface {
	SetDisabled(disabled bool)
}

func isGroupRef(r Ref) bool {
	if r == nil {
		return false
	}
	t := r.InputType()
	return t == "radio" || t == "checkbox"
}

func isLive(r Ref) bool {
	a, ok := r.(Attacher)
	return ok && a.Attached()
}

// InputRef is a ready-made Ref for callers without a view layer, such as
// tests and scripted sessions.
type InputRef struct {
	Type   string
	Option any

	mu       sync.Mutex
	value    any
	checked  bool
	disabled bool
	detached bool
	focused  int
	selected int
}

// NewInputRef returns an attached ref of the given input type.
func NewInputRef(inputType string) *InputRef {
	return &InputRef{Type: inputType}
}

// NewOptionRef returns an attached radio or checkbox option.
func NewOptionRef(inputType string, option any) *InputRef {
	return &InputRef{Type: inputType, Option: option}
}

func (r *InputRef) InputType() string { return r.Type }

func (r *InputRef) Focus() {
	r.mu.Lock()
	r.focused++
	r.mu.Unlock()
}

func (r *InputRef) Select() {
	r.mu.Lock()
	r.selected++
	r.mu.Unlock()
}

// FocusCount returns how many times the engine focused this ref.
func (r *InputRef) FocusCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.focused
}

func (r *InputRef) Attached() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return !r.detached
}

// Detach marks the ref as removed from its view.
func (r *InputRef) Detach() {
	r.mu.Lock()
	r.detached = true
	r.mu.Unlock()
}

func (r *InputRef) SetValue(v any) {
	r.mu.Lock()
	r.value = v
	r.mu.Unlock()
}

func (r *InputRef) Value() any {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.value
}

func (r *InputRef) SetChecked(checked bool) {
	r.mu.Lock()
	r.checked = checked
	r.mu.Unlock()
}

// Checked reports the last checked state written by the engine.
func (r *InputRef) Checked() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.checked
}

func (r *InputRef) OptionValue() any { return r.Option }

func (r *InputRef) SetDisabled(disabled bool) {
	r.mu.Lock()
	r.disabled = disabled
	r.mu.Unlock()
}

// Disabled reports the last disabled state written by the engine.
func (r *InputRef) Disabled() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.disabled
}
