// Package session replays a scripted form definition against a control.
package session

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/go-drift/formctl/cmd/formctl/internal/config"
	"github.com/go-drift/formctl/pkg/form"
	"github.com/go-drift/formctl/pkg/metrics"
	"github.com/go-drift/formctl/pkg/resolver"
)

// Handle is an input ref with a stable identifier for reports.
type Handle struct {
	*form.InputRef
	ID    string
	Field string
}

// Result is the outcome of a replay.
type Result struct {
	ID          string
	Name        string
	Steps       []StepResult
	Submissions []Submission
	State       form.FormState
	Values      map[string]any
	Defaults    map[string]any
	// Handles maps each field to its ref handles, in option order.
	Handles       map[string][]*Handle
	Notifications int
	Metrics       map[string]float64
}

// StepResult records what one step did.
type StepResult struct {
	Index  int
	Action string
	Name   string
	// Valid is set by trigger and submit steps.
	Valid  *bool
	Err    string
	Dirty  bool
	Errors int
}

// Submission records one submit callback.
type Submission struct {
	Valid  bool
	Values map[string]any
	Errors form.Errors
}

// Options configures a replay.
type Options struct {
	Logger zerolog.Logger
}

type runner struct {
	def      *config.Definition
	ctl      *form.Control
	clock    *form.ManualClock
	bindings map[string]*form.Binding
	res      *Result
}

// Run builds a control from def, registers its fields, mounts it and
// replays the session. A failing step is recorded and the replay goes on;
// the returned error covers setup failures only.
func Run(ctx context.Context, def *config.Definition, opts Options) (*Result, error) {
	fo, err := FormOptions(def, opts.Logger)
	if err != nil {
		return nil, err
	}

	reg := prometheus.NewRegistry()
	// Replays run on virtual time so advance steps fire delayed errors
	// deterministically.
	clock := form.NewManualClock()
	logger := opts.Logger
	fo.Logger = &logger
	fo.Metrics = metrics.New(reg)
	fo.Clock = clock

	ctl := form.New(fo)
	defer ctl.Close()

	var notifications atomic.Int64
	unsub := ctl.Subscribe(form.SubscribeOptions{Root: true, Callback: func(form.StateEvent) {
		notifications.Add(1)
	}})
	defer unsub()

	r := &runner{
		def:      def,
		ctl:      ctl,
		clock:    clock,
		bindings: make(map[string]*form.Binding),
		res: &Result{
			ID:      ctl.ID(),
			Name:    def.Name,
			Handles: make(map[string][]*Handle),
		},
	}
	for _, f := range def.Fields {
		if err := r.register(f); err != nil {
			return nil, err
		}
	}
	if err := ctl.Mount(ctx); err != nil {
		return nil, err
	}

	for i, step := range def.Session {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		sr := StepResult{Index: i + 1, Action: step.Action, Name: step.Name}
		valid, err := r.step(ctx, step)
		if err != nil {
			sr.Err = err.Error()
			opts.Logger.Debug().Err(err).Int("step", sr.Index).Str("action", step.Action).Msg("step failed")
		}
		sr.Valid = valid
		st := ctl.FormState()
		sr.Dirty = st.IsDirty
		sr.Errors = len(st.Errors)
		r.res.Steps = append(r.res.Steps, sr)
	}

	r.res.State = ctl.FormState()
	r.res.Values = ctl.GetValues()
	r.res.Defaults = ctl.DefaultValues()
	r.res.Notifications = int(notifications.Load())
	r.res.Metrics, err = gather(reg)
	if err != nil {
		return nil, err
	}
	return r.res, nil
}

// FormOptions converts the definition's form settings. A schema becomes a
// resolver logging through logger.
func FormOptions(def *config.Definition, logger zerolog.Logger) (form.Options, error) {
	mode, err := form.ParseMode(def.Mode)
	if err != nil {
		return form.Options{}, err
	}
	var revalidate form.Mode
	if def.RevalidateMode != "" {
		if revalidate, err = form.ParseMode(def.RevalidateMode); err != nil {
			return form.Options{}, err
		}
	}
	criteria, err := form.ParseCriteria(def.Criteria)
	if err != nil {
		return form.Options{}, err
	}
	delay, err := def.Delay()
	if err != nil {
		return form.Options{}, err
	}

	opts := form.Options{
		Mode:             mode,
		ReValidateMode:   revalidate,
		CriteriaMode:     criteria,
		DefaultValues:    def.Defaults,
		DelayError:       delay,
		ShouldUnregister: def.Unregister,
		SkipFocusError:   def.SkipFocusError,
		Disabled:         def.Disabled,
	}
	if def.Context != nil {
		opts.Context = def.Context
	}
	if def.Schema != nil {
		r, err := resolver.New(def.Schema, resolver.WithLogger(logger))
		if err != nil {
			return form.Options{}, fmt.Errorf("schema: %w", err)
		}
		opts.Resolver = r
	}
	return opts, nil
}

// FieldRules converts a field definition into engine rules.
func FieldRules(f config.FieldDef) (form.Rules, error) {
	rules := form.Rules{
		Value:            f.Value,
		Deps:             f.Deps,
		Disabled:         f.Disabled,
		ValueAsNumber:    f.ValueAsNumber,
		ValueAsDate:      f.ValueAsDate,
		FieldArray:       f.FieldArray,
		ShouldUnregister: f.Unregister,
	}
	if f.Required {
		rules.Required = form.Required(f.Message("required"))
	}
	if f.Min != nil {
		rules.Min = form.Min(f.Min, f.Message("min"))
	}
	if f.Max != nil {
		rules.Max = form.Max(f.Max, f.Message("max"))
	}
	if f.MinLength != nil {
		rules.MinLength = form.MinLength(*f.MinLength, f.Message("min_length"))
	}
	if f.MaxLength != nil {
		rules.MaxLength = form.MaxLength(*f.MaxLength, f.Message("max_length"))
	}
	if f.Pattern != "" {
		re, err := regexp.Compile(f.Pattern)
		if err != nil {
			return form.Rules{}, fmt.Errorf("field %q: pattern: %w", f.Name, err)
		}
		rules.Pattern = form.PatternRule{Value: re, Message: f.Message("pattern")}
	}
	if f.Validate != "" {
		e, err := resolver.Compile(f.Validate)
		if err != nil {
			return form.Rules{}, fmt.Errorf("field %q: %w", f.Name, err)
		}
		rules.Validate = e.Validator(f.Message("validate"))
	}
	return rules, nil
}

func (r *runner) register(f config.FieldDef) error {
	rules, err := FieldRules(f)
	if err != nil {
		return err
	}
	input := f.Input
	if input == "" {
		input = "text"
	}

	b := r.ctl.Register(f.Name, rules)
	r.bindings[b.Name] = b
	if len(f.Options) == 0 {
		r.attach(b, form.NewInputRef(input))
		return nil
	}
	for _, opt := range f.Options {
		r.attach(b, form.NewOptionRef(input, opt))
	}
	return nil
}

func (r *runner) attach(b *form.Binding, ref *form.InputRef) {
	h := &Handle{InputRef: ref, ID: uuid.NewString(), Field: b.Name}
	r.res.Handles[b.Name] = append(r.res.Handles[b.Name], h)
	b.Ref(h)
}

func (r *runner) binding(name string) (*form.Binding, error) {
	b, ok := r.bindings[name]
	if !ok {
		return nil, fmt.Errorf("unknown field %q", name)
	}
	return b, nil
}

// HandleID returns the identifier of a ref created by the runner, or "".
func HandleID(ref form.Ref) string {
	if h, ok := ref.(*Handle); ok {
		return h.ID
	}
	return ""
}

func gather(reg *prometheus.Registry) (map[string]float64, error) {
	families, err := reg.Gather()
	if err != nil {
		return nil, fmt.Errorf("gather metrics: %w", err)
	}
	out := make(map[string]float64)
	for _, f := range families {
		for _, m := range f.GetMetric() {
			name := f.GetName()
			labels := m.GetLabel()
			if len(labels) > 0 {
				parts := make([]string, len(labels))
				for i, l := range labels {
					parts[i] = l.GetName() + "=" + l.GetValue()
				}
				sort.Strings(parts)
				name += fmt.Sprint(parts)
			}
			switch {
			case m.GetCounter() != nil:
				out[name] = m.GetCounter().GetValue()
			case m.GetGauge() != nil:
				out[name] = m.GetGauge().GetValue()
			case m.GetHistogram() != nil:
				out[name+"_count"] = float64(m.GetHistogram().GetSampleCount())
			}
		}
	}
	return out, nil
}
