package formtest

import (
	"context"
	"sync"
	"testing"

	"github.com/go-drift/formctl/pkg/form"
)

// FormTester drives a form control the way a view layer would: it mounts
// the form, attaches an InputRef per registered field and reports input
// events. A root subscriber records every notification.
type FormTester struct {
	ctl      *form.Control
	clock    *form.ManualClock
	recorder *Recorder
	unsub    func()
	ctx      context.Context

	mu       sync.Mutex
	bindings map[string]*form.Binding
	refs     map[string]*form.InputRef
}

// NewFormTester creates a mounted control on a fake clock. Call Cleanup
// when done, or use NewFormTesterWithT instead.
func NewFormTester(opts form.Options) *FormTester {
	clk := form.NewManualClock()
	if opts.Clock == nil {
		opts.Clock = clk
	}
	t := &FormTester{
		ctl:      form.New(opts),
		clock:    clk,
		recorder: &Recorder{},
		ctx:      context.Background(),
		bindings: make(map[string]*form.Binding),
		refs:     make(map[string]*form.InputRef),
	}
	t.unsub = t.ctl.Subscribe(form.SubscribeOptions{Root: true, Callback: t.recorder.Record})
	_ = t.ctl.Mount(t.ctx)
	return t
}

// NewFormTesterWithT creates a tester that cleans up via t.Cleanup().
// This is the recommended constructor for tests.
func NewFormTesterWithT(t testing.TB, opts form.Options) *FormTester {
	tester := NewFormTester(opts)
	t.Cleanup(tester.Cleanup)
	return tester
}

// Cleanup unsubscribes the recorder and closes the control.
func (t *FormTester) Cleanup() {
	t.unsub()
	t.ctl.Close()
}

// Control returns the control under test.
func (t *FormTester) Control() *form.Control { return t.ctl }

// Clock returns the fake clock driving delayed errors.
func (t *FormTester) Clock() *form.ManualClock { return t.clock }

// Recorder returns the root subscriber's recorded notifications.
func (t *FormTester) Recorder() *Recorder { return t.recorder }

// Context returns the context used for input events.
func (t *FormTester) Context() context.Context { return t.ctx }

// Register registers a text input.
func (t *FormTester) Register(name string, rules form.Rules) *form.Binding {
	return t.RegisterInput(name, "text", rules)
}

// RegisterInput registers name and attaches a fresh InputRef of the given
// type.
func (t *FormTester) RegisterInput(name, inputType string, rules form.Rules) *form.Binding {
	b := t.ctl.Register(name, rules)
	ref := form.NewInputRef(inputType)
	b.Ref(ref)

	t.mu.Lock()
	t.bindings[b.Name] = b
	t.refs[b.Name] = ref
	t.mu.Unlock()
	return b
}

// Ref returns the InputRef attached to name.
func (t *FormTester) Ref(name string) *form.InputRef {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.refs[name]
}

func (t *FormTester) binding(name string) *form.Binding {
	t.mu.Lock()
	defer t.mu.Unlock()
	if b, ok := t.bindings[name]; ok {
		return b
	}
	b := t.ctl.Register(name, form.Rules{})
	t.bindings[name] = b
	return b
}

// Change reports a change event for name.
func (t *FormTester) Change(name string, value any) error {
	return t.binding(name).OnChange(t.ctx, value)
}

// Blur reports a blur event for name.
func (t *FormTester) Blur(name string) error {
	return t.binding(name).OnBlur(t.ctx)
}

// Submit runs a submit and returns the values passed to the valid callback,
// or nil when the form was invalid.
func (t *FormTester) Submit() (map[string]any, error) {
	var submitted map[string]any
	err := t.ctl.HandleSubmit(func(_ context.Context, vals map[string]any) error {
		submitted = vals
		return nil
	}, nil)(t.ctx)
	return submitted, err
}

// Error returns the error message stored for name, or "".
func (t *FormTester) Error(name string) string {
	if e := t.ctl.FormState().Errors.Get(name); e != nil {
		return e.Message
	}
	return ""
}
