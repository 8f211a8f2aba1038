package form

import (
	"context"
	"strings"
	"time"

	"github.com/go-drift/formctl/pkg/errors"
	"github.com/go-drift/formctl/pkg/metrics"
	"github.com/go-drift/formctl/pkg/values"
)

// TriggerOptions controls Trigger.
type TriggerOptions struct {
	// ShouldFocus focuses the first invalid field.
	ShouldFocus bool
}

// Trigger validates the named fields, or the whole form when no names are
// given, and reports whether they are valid. The error is non-nil only when
// the resolver fails.
func (c *Control) Trigger(ctx context.Context, opts TriggerOptions, names ...string) (bool, error) {
	names = normalizeNames(names)
	defer c.flush()

	var result, isValid, haveIsValid bool
	switch {
	case c.opts.Resolver != nil:
		errs, err := c.executeSchemaAndUpdateState(ctx, names)
		if err != nil {
			return false, err
		}
		isValid, haveIsValid = len(errs) == 0, true
		result = isValid
		if len(names) > 0 {
			result = true
			for _, n := range names {
				if errs.Has(n) {
					result = false
				}
			}
		}
	case len(names) > 0:
		result = true
		for _, n := range names {
			if !c.executeBuiltInValidation(ctx, []string{n}, false) {
				result = false
			}
		}
		c.mu.Lock()
		wasValid := c.state.IsValid
		c.mu.Unlock()
		if result || wasValid {
			if err := c.setValid(ctx, false); err != nil {
				return result, err
			}
		}
	default:
		c.removeUnmountedQuiet(ctx)
		result = c.executeBuiltInValidation(ctx, nil, false)
		isValid, haveIsValid = result, true
	}

	c.mu.Lock()
	signal := ""
	if len(names) == 1 && !(c.interest&FieldIsValid != 0 && (!haveIsValid || isValid != c.state.IsValid)) {
		signal = names[0]
	}
	changed := FieldErrors
	if haveIsValid {
		c.state.IsValid = isValid
		changed |= FieldIsValid
	}
	c.publishLocked(signal, "", changed)
	if opts.ShouldFocus && !result {
		focus := names
		if len(focus) == 0 {
			focus = c.names.mount.list()
		}
		c.focusErrorLocked(focus)
	}
	c.mu.Unlock()

	c.log.Debug().Strs("fields", names).Bool("valid", result).Msg("trigger")
	return result, nil
}

func (c *Control) removeUnmountedQuiet(ctx context.Context) {
	if err := c.RemoveUnmounted(ctx); err != nil {
		c.log.Warn().Err(err).Msg("remove unmounted fields")
	}
}

type fieldSnapshot struct {
	entry    fieldEntry
	value    any
	gen      uint64
	disabled bool
	isArray  bool
}

// snapshotFieldsLocked captures the fields at or beneath any of names, or
// every field when names is empty, in registration order.
func (c *Control) snapshotFieldsLocked(names []string) []fieldSnapshot {
	var out []fieldSnapshot
	for _, n := range c.order {
		if len(names) > 0 && !matchesAny(n, names) {
			continue
		}
		f := c.fields[n]
		out = append(out, fieldSnapshot{
			entry:    f.snapshot(),
			value:    values.Clone(values.Get(c.formValues, n, nil)),
			gen:      c.generations[n],
			disabled: c.isDisabledLocked(n),
			isArray:  c.names.array.has(n),
		})
	}
	return out
}

func matchesAny(name string, names []string) bool {
	for _, n := range names {
		if values.HasPrefix(name, n) {
			return true
		}
	}
	return false
}

// executeBuiltInValidation validates the selected fields without holding
// the lock. With onlyCheckValid it stops at the first failure and leaves
// the errors untouched.
func (c *Control) executeBuiltInValidation(ctx context.Context, names []string, onlyCheckValid bool) bool {
	c.mu.Lock()
	snaps := c.snapshotFieldsLocked(names)
	formValues := values.CloneMap(c.formValues)
	criteriaAll := c.opts.CriteriaMode == CriteriaAll
	c.mu.Unlock()

	valid := true
	for _, s := range snaps {
		name := s.entry.name
		custom := s.entry.rules.hasCustomValidation()
		if custom {
			c.updateIsValidating([]string{name}, true)
		}
		start := time.Now()
		fe := validateField(ctx, s.entry, s.disabled, formValues, criteriaAll, s.isArray)
		c.observeValidation(metrics.StrategyBuiltIn, fe == nil, start)
		if custom {
			c.updateIsValidating([]string{name}, false)
		}

		if fe != nil {
			valid = false
			if onlyCheckValid {
				break
			}
		}
		if !onlyCheckValid {
			c.applyFieldResult(s, fe)
		}
	}
	return valid
}

// applyFieldResult stores a field's validation result unless the field was
// written since the snapshot.
func (c *Control) applyFieldResult(s fieldSnapshot, fe *FieldError) {
	name := s.entry.name
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.generations[name] != s.gen || !values.Equal(s.value, values.Get(c.formValues, name, nil)) {
		c.staleResult(name)
		return
	}
	if fe == nil {
		c.state.Errors.unset(name)
		return
	}
	if s.isArray {
		c.state.Errors[name+"."+RootError] = fe
	} else {
		c.state.Errors[name] = fe
	}
}

// setValid recomputes isValid when a subscriber tracks it or force is set.
// Values may change while validation runs; it retries a bounded number of
// times so the stored flag reflects current values.
func (c *Control) setValid(ctx context.Context, force bool) error {
	defer c.flush()
	for attempt := 0; ; attempt++ {
		c.mu.Lock()
		run := !c.opts.Disabled && (force || c.interest&FieldIsValid != 0)
		gen := c.valuesGen
		c.mu.Unlock()
		if !run {
			return nil
		}

		var isValid bool
		if c.opts.Resolver != nil {
			res, err := c.runSchema(ctx, nil)
			if err != nil {
				return err
			}
			isValid = len(res.Errors) == 0
		} else {
			isValid = c.executeBuiltInValidation(ctx, nil, true)
		}

		c.mu.Lock()
		if c.valuesGen != gen && attempt < 3 {
			c.mu.Unlock()
			continue
		}
		if isValid != c.state.IsValid {
			c.state.IsValid = isValid
			c.publishLocked("", "", FieldIsValid)
		}
		c.mu.Unlock()
		return nil
	}
}

func (c *Control) updateIsValidating(names []string, on bool) {
	c.mu.Lock()
	c.updateIsValidatingLocked(names, on)
	c.mu.Unlock()
	c.flush()
}

func (c *Control) updateIsValidatingLocked(names []string, on bool) {
	if c.opts.Disabled || c.interest&(FieldIsValidating|FieldValidatingFields) == 0 {
		return
	}
	if len(names) == 0 {
		names = c.names.mount.list()
	}
	for _, n := range names {
		if on {
			c.state.ValidatingFields[n] = true
		} else {
			c.state.ValidatingFields.unset(n)
		}
	}
	c.state.IsValidating = len(c.state.ValidatingFields) > 0
	c.publishLocked("", "", FieldValidatingFields|FieldIsValidating)
}

// runSchema validates the whole value tree with the resolver.
func (c *Control) runSchema(ctx context.Context, names []string) (ResolverResult, error) {
	c.updateIsValidating(names, true)

	c.mu.Lock()
	vals := values.CloneMap(c.formValues)
	ropts := ResolverOptions{
		Criteria: c.opts.CriteriaMode,
		Names:    append([]string(nil), names...),
		Fields:   make(map[string]FieldInfo, len(c.fields)),
	}
	if len(ropts.Names) == 0 {
		ropts.Names = c.names.mount.list()
	}
	for _, n := range ropts.Names {
		for _, fn := range c.order {
			if values.HasPrefix(fn, n) {
				f := c.fields[fn]
				ropts.Fields[fn] = FieldInfo{Name: fn, Ref: f.focusRef(), Rules: f.rules}
			}
		}
	}
	resolver, formCtx := c.opts.Resolver, c.opts.Context
	c.mu.Unlock()

	start := time.Now()
	res, err := resolve(ctx, resolver, vals, formCtx, ropts)
	c.updateIsValidating(names, false)
	if err != nil {
		fe := &errors.FormError{Op: "form.resolve", Kind: errors.KindResolver, Err: err}
		errors.Report(fe)
		return ResolverResult{}, fe
	}
	c.observeValidation(metrics.StrategyResolver, len(res.Errors) == 0, start)
	if res.Errors == nil {
		res.Errors = Errors{}
	}
	return res, nil
}

func resolve(ctx context.Context, r Resolver, vals map[string]any, formCtx any, opts ResolverOptions) (res ResolverResult, err error) {
	defer errors.RecoverWithCallback("form.resolve", func(p *errors.PanicError) {
		err = p
	})
	return r.Resolve(ctx, vals, formCtx, opts)
}

// executeSchemaAndUpdateState runs the resolver and stores the errors of
// the named fields, or replaces all errors when names is empty.
func (c *Control) executeSchemaAndUpdateState(ctx context.Context, names []string) (Errors, error) {
	res, err := c.runSchema(ctx, names)
	if err != nil {
		return nil, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(names) == 0 {
		c.state.Errors = res.Errors.clone()
		return res.Errors, nil
	}
	for _, n := range names {
		c.state.Errors.unset(n)
		for k, e := range res.Errors.within(n) {
			c.state.Errors[k] = e.clone()
		}
	}
	return res.Errors, nil
}

// schemaErrorLookupLocked finds the error that applies to name in a
// resolver result: the error at name itself, or the nearest ancestor error
// (including a container root error). The lookup stops at a registered
// ancestor field.
func (c *Control) schemaErrorLookupLocked(errs Errors, name string) (string, *FieldError) {
	if e := errs[name]; e != nil || values.IsKey(name) {
		return name, e
	}
	segs := values.Parse(name)
	for len(segs) > 0 {
		fieldName := strings.Join(segs, ".")
		if fieldName != name && c.isObjectFieldLocked(fieldName) {
			return name, nil
		}
		if e := errs[fieldName]; e != nil && e.Type != "" {
			return fieldName, e
		}
		if e := errs[fieldName+"."+RootError]; e != nil {
			return fieldName + "." + RootError, e
		}
		segs = segs[:len(segs)-1]
	}
	return name, nil
}

// isObjectFieldLocked reports whether name is a registered field or the
// parent of registered fields keyed by name rather than index.
func (c *Control) isObjectFieldLocked(name string) bool {
	if _, ok := c.fields[name]; ok {
		return true
	}
	prefix := name + "."
	for _, n := range c.order {
		if strings.HasPrefix(n, prefix) {
			next, _, _ := strings.Cut(n[len(prefix):], ".")
			return !values.IsIndex(next)
		}
	}
	return false
}

// focusErrorLocked focuses the first errored field among names, in
// registration order.
func (c *Control) focusErrorLocked(names []string) {
	for _, key := range names {
		for _, n := range c.order {
			if !values.HasPrefix(n, key) || !c.state.Errors.Has(n) {
				continue
			}
			if f, ok := c.fields[n].focusRef().(Focuser); ok {
				c.deferLocked(f.Focus)
				return
			}
		}
	}
}
