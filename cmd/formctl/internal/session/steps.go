package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	jsonpatch "github.com/evanphx/json-patch"

	"github.com/go-drift/formctl/cmd/formctl/internal/config"
	"github.com/go-drift/formctl/pkg/form"
	"github.com/go-drift/formctl/pkg/values"
)

// step runs one action. The bool is reported for trigger and submit.
func (r *runner) step(ctx context.Context, s config.Step) (*bool, error) {
	ctl := r.ctl
	switch s.Action {
	case config.ActionChange:
		b, err := r.binding(s.Name)
		if err != nil {
			return nil, err
		}
		if hs := r.res.Handles[b.Name]; len(hs) == 1 {
			hs[0].SetValue(s.Value)
		}
		return nil, b.OnChange(ctx, s.Value)

	case config.ActionBlur:
		b, err := r.binding(s.Name)
		if err != nil {
			return nil, err
		}
		return nil, b.OnBlur(ctx)

	case config.ActionSet:
		return nil, ctl.SetValue(ctx, s.Name, s.Value, form.SetValueOptions{
			ShouldValidate: s.Validate,
			ShouldDirty:    s.Dirty,
			ShouldTouch:    s.Touch,
		})

	case config.ActionPatch:
		return nil, r.patch(ctx, s)

	case config.ActionTrigger:
		ok, err := ctl.Trigger(ctx, form.TriggerOptions{ShouldFocus: s.Focus}, s.Names...)
		return &ok, err

	case config.ActionSubmit:
		return r.submit(ctx, s)

	case config.ActionReset:
		opts, err := resetOptions(s.Keep)
		if err != nil {
			return nil, err
		}
		return nil, ctl.Reset(ctx, s.Values, opts)

	case config.ActionResetField:
		opts := form.ResetFieldOptions{DefaultValue: s.Value}
		for _, k := range s.Keep {
			switch k {
			case "dirty":
				opts.KeepDirty = true
			case "touched":
				opts.KeepTouched = true
			case "error":
				opts.KeepError = true
			default:
				return nil, fmt.Errorf("reset_field: unknown keep flag %q", k)
			}
		}
		return nil, ctl.ResetField(ctx, s.Name, opts)

	case config.ActionUnregister:
		opts, err := unregisterOptions(s.Keep)
		if err != nil {
			return nil, err
		}
		return nil, ctl.Unregister(ctx, opts, s.Names...)

	case config.ActionUnmount:
		b, err := r.binding(s.Name)
		if err != nil {
			return nil, err
		}
		for _, h := range r.res.Handles[b.Name] {
			h.Detach()
		}
		b.Ref(nil)
		return nil, nil

	case config.ActionSetError:
		typ := s.Type
		if typ == "" {
			typ = "manual"
		}
		ctl.SetError(s.Name, form.FieldError{Type: typ, Message: s.Message}, s.Focus)
		return nil, nil

	case config.ActionClearErrors:
		ctl.ClearErrors(s.Names...)
		return nil, nil

	case config.ActionFocus:
		ctl.SetFocus(s.Name, s.Focus)
		return nil, nil

	case config.ActionDisable, config.ActionEnable:
		return nil, ctl.SetDisabled(ctx, s.Action == config.ActionDisable)

	case config.ActionAdvance:
		d, err := time.ParseDuration(s.Duration)
		if err != nil {
			return nil, err
		}
		r.clock.Advance(d)
		return nil, nil
	}
	return nil, fmt.Errorf("unknown action %q", s.Action)
}

func (r *runner) submit(ctx context.Context, s config.Step) (*bool, error) {
	var valid bool
	onValid := func(_ context.Context, vals map[string]any) error {
		valid = true
		r.res.Submissions = append(r.res.Submissions, Submission{Valid: true, Values: vals})
		if s.Fail != "" {
			return errors.New(s.Fail)
		}
		return nil
	}
	onInvalid := func(_ context.Context, errs form.Errors) error {
		r.res.Submissions = append(r.res.Submissions, Submission{Errors: errs})
		return nil
	}
	err := r.ctl.HandleSubmit(onValid, onInvalid)(ctx)
	return &valid, err
}

// patch applies an RFC 6902 patch to the current values and writes back
// only the paths its operations address, so untouched leaves keep their
// Go types.
func (r *runner) patch(ctx context.Context, s config.Step) error {
	before := r.ctl.GetValues()
	doc, err := json.Marshal(before)
	if err != nil {
		return fmt.Errorf("patch: encode values: %w", err)
	}
	ops, err := json.Marshal(s.Patch)
	if err != nil {
		return fmt.Errorf("patch: encode operations: %w", err)
	}
	p, err := jsonpatch.DecodePatch(ops)
	if err != nil {
		return fmt.Errorf("patch: %w", err)
	}
	out, err := p.Apply(doc)
	if err != nil {
		return fmt.Errorf("patch: %w", err)
	}
	var after map[string]any
	if err := json.Unmarshal(out, &after); err != nil {
		return fmt.Errorf("patch: decode values: %w", err)
	}

	names, err := patchedPaths(p, before, after)
	if err != nil {
		return err
	}
	opts := form.SetValueOptions{ShouldDirty: true, ShouldValidate: s.Validate, ShouldTouch: s.Touch}
	for _, name := range names {
		v, _ := values.Lookup(after, name)
		if err := r.ctl.SetValue(ctx, name, v, opts); err != nil {
			return err
		}
	}
	return nil
}

// patchedPaths returns the dotted paths written or removed by p, without
// paths nested under another returned path. Inserting into or removing
// from a list shifts its elements, so those operations address the list.
func patchedPaths(p jsonpatch.Patch, before, after map[string]any) ([]string, error) {
	touched := make(map[string]bool)
	mark := func(ptr string, shifts bool) {
		segs := pointerSegments(ptr)
		if shifts && len(segs) > 0 {
			if last := segs[len(segs)-1]; last == "-" || values.IsIndex(last) {
				segs = segs[:len(segs)-1]
			}
		}
		if len(segs) == 0 {
			for k := range before {
				touched[k] = true
			}
			for k := range after {
				touched[k] = true
			}
			return
		}
		touched[strings.Join(segs, ".")] = true
	}

	for _, op := range p {
		kind := op.Kind()
		if kind == "test" {
			continue
		}
		path, err := op.Path()
		if err != nil {
			return nil, fmt.Errorf("patch: %s: %w", kind, err)
		}
		mark(path, kind != "replace")
		if kind == "move" {
			from, err := op.From()
			if err != nil {
				return nil, fmt.Errorf("patch: move: %w", err)
			}
			mark(from, true)
		}
	}

	all := make([]string, 0, len(touched))
	for n := range touched {
		all = append(all, n)
	}
	sort.Strings(all)
	var out []string
next:
	for _, n := range all {
		for _, kept := range out {
			if values.HasPrefix(n, kept) {
				continue next
			}
		}
		out = append(out, n)
	}
	return out, nil
}

// pointerSegments splits a JSON pointer into unescaped reference tokens.
func pointerSegments(ptr string) []string {
	if ptr == "" {
		return nil
	}
	parts := strings.Split(strings.TrimPrefix(ptr, "/"), "/")
	for i, part := range parts {
		parts[i] = strings.NewReplacer("~1", "/", "~0", "~").Replace(part)
	}
	return parts
}

func resetOptions(keep []string) (form.ResetOptions, error) {
	var opts form.ResetOptions
	for _, k := range keep {
		switch k {
		case "values":
			opts.KeepValues = true
		case "dirty":
			opts.KeepDirty = true
		case "dirty_values":
			opts.KeepDirtyValues = true
		case "errors":
			opts.KeepErrors = true
		case "touched":
			opts.KeepTouched = true
		case "default_values":
			opts.KeepDefaultValues = true
		case "is_submitted":
			opts.KeepIsSubmitted = true
		case "submit_count":
			opts.KeepSubmitCount = true
		case "is_submit_successful":
			opts.KeepIsSubmitSuccessful = true
		case "is_valid":
			opts.KeepIsValid = true
		default:
			return opts, fmt.Errorf("reset: unknown keep flag %q", k)
		}
	}
	return opts, nil
}

func unregisterOptions(keep []string) (form.UnregisterOptions, error) {
	var opts form.UnregisterOptions
	for _, k := range keep {
		switch k {
		case "value":
			opts.KeepValue = true
		case "error":
			opts.KeepError = true
		case "dirty":
			opts.KeepDirty = true
		case "touched":
			opts.KeepTouched = true
		case "is_validating":
			opts.KeepIsValidating = true
		case "default_value":
			opts.KeepDefaultValue = true
		case "is_valid":
			opts.KeepIsValid = true
		default:
			return opts, fmt.Errorf("unregister: unknown keep flag %q", k)
		}
	}
	return opts, nil
}
