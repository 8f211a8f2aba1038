package form

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/go-drift/formctl/pkg/errors"
	"github.com/go-drift/formctl/pkg/metrics"
	"github.com/go-drift/formctl/pkg/values"
)

// Options configures a Control. The zero value is a usable onSubmit form.
type Options struct {
	Mode           Mode
	ReValidateMode Mode
	CriteriaMode   Criteria

	DefaultValues map[string]any
	// Errors seeds the form's errors.
	Errors Errors

	Resolver Resolver
	// Context is passed to the resolver unchanged.
	Context any

	// DelayError postpones showing a new field error until no further
	// error has been produced for this long. Clearing is never delayed.
	DelayError time.Duration

	ShouldUnregister bool
	SkipFocusError   bool
	Disabled         bool

	Logger  *zerolog.Logger
	Metrics *metrics.Collector
	Clock   Clock
}

// Control is a form control engine. Create one with New.
type Control struct {
	id      string
	log     zerolog.Logger
	metrics *metrics.Collector
	clock   Clock
	subject Subject[StateEvent]

	mu            sync.Mutex
	opts          Options
	modes         validationModes
	reValidate    validationModes
	fields        map[string]*fieldEntry
	order         []string
	names         registryNames
	formValues    map[string]any
	defaultValues map[string]any
	state         FormState
	mounted       bool
	interest      StateField
	generations   map[string]uint64
	valuesGen     uint64
	delayed       *delayedError
	delayTimer    Timer

	pending  []func()
	flushing bool
}

type registryNames struct {
	mount    nameSet
	unmount  nameSet
	disabled nameSet
	array    nameSet
	watch    nameSet
	watchAll bool
}

type fieldEntry struct {
	name      string
	rules     Rules
	ref       Ref
	refs      []Ref
	inputType string
	mount     bool
}

// focusRef returns the first option of a group or the single ref.
func (f *fieldEntry) focusRef() Ref {
	if len(f.refs) > 0 {
		return f.refs[0]
	}
	return f.ref
}

func (f *fieldEntry) allRefs() []Ref {
	if len(f.refs) > 0 {
		return append([]Ref(nil), f.refs...)
	}
	if f.ref != nil {
		return []Ref{f.ref}
	}
	return nil
}

func (f *fieldEntry) live() bool {
	for _, r := range f.allRefs() {
		if isLive(r) {
			return true
		}
	}
	return false
}

func (f *fieldEntry) snapshot() fieldEntry {
	out := *f
	out.refs = append([]Ref(nil), f.refs...)
	return out
}

// New creates a control.
func New(opts Options) *Control {
	if opts.Mode == "" {
		opts.Mode = OnSubmit
	}
	if opts.ReValidateMode == "" {
		opts.ReValidateMode = OnChange
	}
	if opts.CriteriaMode == "" {
		opts.CriteriaMode = CriteriaFirstError
	}
	c := &Control{
		id:          uuid.NewString(),
		log:         zerolog.Nop(),
		metrics:     opts.Metrics,
		clock:       opts.Clock,
		opts:        opts,
		modes:       modesOf(opts.Mode),
		reValidate:  modesOf(opts.ReValidateMode),
		fields:      make(map[string]*fieldEntry),
		generations: make(map[string]uint64),
		state:       newFormState(),
	}
	if opts.Logger != nil {
		c.log = opts.Logger.With().Str("form", c.id).Logger()
	}
	if c.clock == nil {
		c.clock = systemClock{}
	}
	c.defaultValues = values.CloneMap(opts.DefaultValues)
	if opts.ShouldUnregister {
		c.formValues = map[string]any{}
	} else {
		c.formValues = values.CloneMap(c.defaultValues)
	}
	if opts.Errors != nil {
		c.state.Errors = opts.Errors.clone()
	}
	c.state.Disabled = opts.Disabled
	c.log.Debug().Str("mode", string(opts.Mode)).Msg("form created")
	return c
}

// ID returns the control's unique identifier.
func (c *Control) ID() string { return c.id }

// FormState returns a snapshot of the aggregate state.
func (c *Control) FormState() FormState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.clone()
}

// Mounted reports whether the form has been mounted or subscribed to.
func (c *Control) Mounted() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.mounted
}

// Mount marks the form as bound to its view. Reads switch from default
// values to live values, unmounted fields are swept, and isValid is
// computed if any subscriber tracks it.
func (c *Control) Mount(ctx context.Context) error {
	defer c.flush()
	c.mu.Lock()
	first := !c.mounted
	c.mounted = true
	if !c.state.IsReady {
		c.state.IsReady = true
		c.publishLocked("", "", FieldIsReady)
	}
	c.mu.Unlock()

	if err := c.RemoveUnmounted(ctx); err != nil {
		return err
	}
	if first {
		return c.setValid(ctx, false)
	}
	return nil
}

// SubscribeOptions configures a form state subscription.
type SubscribeOptions struct {
	// Names filters changes by field. Empty means every field.
	Names []string
	// Exact disables prefix matching between names and changed fields.
	Exact bool
	// Interest is the set of state fields the subscriber reads.
	Interest StateField
	// Root marks a whole-form subscriber; with no interest set it sees
	// every change.
	Root     bool
	Callback func(StateEvent)
}

// Subscribe registers a state subscriber and returns its unsubscribe
// function. Subscribing mounts the form.
func (c *Control) Subscribe(opts SubscribeOptions) func() {
	return c.subscribe(opts, true)
}

func (c *Control) subscribe(opts SubscribeOptions, mount bool) func() {
	names := make([]string, len(opts.Names))
	for i, n := range opts.Names {
		names[i] = values.Normalize(n)
	}

	c.mu.Lock()
	if mount {
		c.mounted = true
	}
	c.interest |= opts.Interest
	c.mu.Unlock()

	sub := c.subject.Subscribe(func(ev StateEvent) {
		if !shouldSubscribeByName(names, ev.Name, opts.Exact) ||
			!shouldRenderFormState(ev.Changed, opts.Interest, opts.Root) {
			return
		}
		if c.metrics != nil {
			c.metrics.Notifications.Inc()
		}
		defer errors.Recover("form.notify")
		opts.Callback(ev)
	})
	if c.metrics != nil {
		c.metrics.Subscribers.Inc()
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			sub.Unsubscribe()
			if c.metrics != nil {
				c.metrics.Subscribers.Dec()
			}
		})
	}
}

// Close drops every subscriber and stops a pending delayed error.
func (c *Control) Close() {
	c.mu.Lock()
	c.stopDelayLocked()
	c.mu.Unlock()
	c.subject.UnsubscribeAll()
}

// publishLocked queues a notification carrying a snapshot of the current
// state. c.mu must be held.
func (c *Control) publishLocked(name string, typ EventType, changed StateField) {
	if c.subject.Len() == 0 {
		return
	}
	ev := StateEvent{
		Name:          name,
		Type:          typ,
		Changed:       changed,
		State:         c.state.clone(),
		DefaultValues: values.CloneMap(c.defaultValues),
	}
	if changed&FieldValues != 0 || changed == 0 {
		ev.Values = values.CloneMap(c.formValues)
	}
	c.pending = append(c.pending, func() { c.subject.Next(ev) })
}

// deferLocked queues a call into user code to run after the lock is
// released. c.mu must be held.
func (c *Control) deferLocked(fn func()) {
	c.pending = append(c.pending, fn)
}

// flush runs queued notifications and effects in order. It must be called
// without c.mu held. Work queued while flushing is picked up by the same
// loop, so nested calls from callbacks return immediately.
func (c *Control) flush() {
	c.mu.Lock()
	if c.flushing {
		c.mu.Unlock()
		return
	}
	c.flushing = true
	for len(c.pending) > 0 {
		fn := c.pending[0]
		c.pending = c.pending[1:]
		c.mu.Unlock()
		func() {
			defer errors.Recover("form.flush")
			fn()
		}()
		c.mu.Lock()
	}
	c.pending = nil
	c.flushing = false
	c.mu.Unlock()
}

// storeLocked writes v at name; nil removes the entry since nil means
// absent.
func (c *Control) storeLocked(name string, v any) {
	if v == nil {
		values.Unset(c.formValues, name)
	} else {
		values.Set(c.formValues, name, v)
	}
	c.bumpLocked(name)
}

// bumpLocked records a write to name so in-flight validations of it are
// discarded.
func (c *Control) bumpLocked(name string) {
	c.generations[name]++
	c.valuesGen++
}

func (c *Control) isDisabledLocked(name string) bool {
	return c.names.disabled.has(name)
}

func (c *Control) liveValuesLocked() map[string]any {
	if c.mounted {
		return c.formValues
	}
	return c.defaultValues
}

// getDirtyLocked compares the whole value tree with the defaults.
func (c *Control) getDirtyLocked() bool {
	return !c.opts.Disabled && !values.Equal(c.liveValuesLocked(), c.defaultValues)
}

// hasChildrenLocked reports whether registered fields live beneath name.
func (c *Control) hasChildrenLocked(name string) bool {
	prefix := name + "."
	for _, n := range c.order {
		if len(n) > len(prefix) && n[:len(prefix)] == prefix {
			return true
		}
	}
	return false
}

func (c *Control) removeFromOrderLocked(name string) {
	out := c.order[:0]
	for _, n := range c.order {
		if !values.HasPrefix(n, name) {
			out = append(out, n)
		} else {
			delete(c.fields, n)
		}
	}
	c.order = out
}

func (c *Control) observeValidation(strategy string, ok bool, start time.Time) {
	if c.metrics == nil {
		return
	}
	c.metrics.Validations.WithLabelValues(strategy, metrics.Outcome(ok)).Inc()
	c.metrics.ValidationDuration.WithLabelValues(strategy).Observe(time.Since(start).Seconds())
}

func (c *Control) staleResult(name string) {
	if c.metrics != nil {
		c.metrics.StaleResults.Inc()
	}
	c.log.Debug().Str("field", name).Msg("discarded stale validation result")
}

// nameSet is an insertion ordered set of field names.
type nameSet struct {
	items []string
	index map[string]struct{}
}

func (s *nameSet) add(name string) {
	if s.index == nil {
		s.index = make(map[string]struct{})
	}
	if _, ok := s.index[name]; ok {
		return
	}
	s.index[name] = struct{}{}
	s.items = append(s.items, name)
}

func (s *nameSet) has(name string) bool {
	_, ok := s.index[name]
	return ok
}

func (s *nameSet) remove(name string) {
	if _, ok := s.index[name]; !ok {
		return
	}
	delete(s.index, name)
	for i, n := range s.items {
		if n == name {
			s.items = append(s.items[:i:i], s.items[i+1:]...)
			return
		}
	}
}

func (s *nameSet) list() []string {
	return append([]string(nil), s.items...)
}

func (s *nameSet) clear() {
	s.items = nil
	s.index = nil
}
