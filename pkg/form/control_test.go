package form_test

import (
	"context"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ferrors "github.com/go-drift/formctl/pkg/errors"
	"github.com/go-drift/formctl/pkg/form"
	"github.com/go-drift/formctl/pkg/formtest"
	"github.com/go-drift/formctl/pkg/metrics"
	"github.com/go-drift/formctl/pkg/values"
)

func ptr[T any](v T) *T { return &v }

func TestEmailRequiredOnChange(t *testing.T) {
	ctx := context.Background()
	ctl := form.New(form.Options{Mode: form.OnChange})
	var seen []bool
	unsub := ctl.Subscribe(form.SubscribeOptions{
		Interest: form.FieldIsValid,
		Callback: func(ev form.StateEvent) { seen = append(seen, ev.State.IsValid) },
	})
	defer unsub()

	email := ctl.Register("email", form.Rules{Required: form.Required("Email required")})
	require.NoError(t, ctl.Mount(ctx))

	require.NoError(t, email.OnChange(ctx, ""))
	st := ctl.FormState()
	require.NotNil(t, st.Errors.Get("email"))
	assert.Equal(t, form.RuleRequired, st.Errors.Get("email").Type)
	assert.Equal(t, "Email required", st.Errors.Get("email").Message)
	assert.False(t, st.IsValid)

	require.NoError(t, email.OnChange(ctx, "a@b.com"))
	st = ctl.FormState()
	assert.Nil(t, st.Errors.Get("email"))
	assert.True(t, st.IsValid)
	require.NotEmpty(t, seen)
	assert.True(t, seen[len(seen)-1], "subscriber observed isValid=true")
}

func TestAgeMinWithSetValue(t *testing.T) {
	ctx := context.Background()
	ctl := form.New(form.Options{})
	ctl.Register("age", form.Rules{Min: form.Min(18, "too young")})
	require.NoError(t, ctl.Mount(ctx))

	require.NoError(t, ctl.SetValue(ctx, "age", 10, form.SetValueOptions{ShouldValidate: true}))
	fe := ctl.FormState().Errors.Get("age")
	require.NotNil(t, fe)
	assert.Equal(t, form.RuleMin, fe.Type)
	assert.Equal(t, "too young", fe.Message)

	require.NoError(t, ctl.SetValue(ctx, "age", 25, form.SetValueOptions{ShouldValidate: true}))
	assert.Nil(t, ctl.FormState().Errors.Get("age"))
}

func TestSetValueThenGetValue(t *testing.T) {
	ctx := context.Background()
	ctl := form.New(form.Options{DefaultValues: map[string]any{"keep": "me"}})
	require.NoError(t, ctl.Mount(ctx))

	cases := map[string]any{
		"name":          "Ada",
		"address.city":  "Paris",
		"items[0].name": "first",
		"tags":          []any{"a", "b"},
		"count":         3,
	}
	for path, v := range cases {
		require.NoError(t, ctl.SetValue(ctx, path, v, form.SetValueOptions{}))
		assert.True(t, values.Equal(v, ctl.GetValue(path)), "path %s", path)
	}
	assert.Equal(t, "me", ctl.GetValue("keep"), "other paths untouched")
	assert.Equal(t, "first", ctl.GetValue("items.0.name"))
}

func TestTypedContainersAreCopiedOnWrite(t *testing.T) {
	ctx := context.Background()
	defaults := map[string]any{"labels": map[string]string{"k": "v"}}
	ctl := form.New(form.Options{DefaultValues: defaults})
	roles := ctl.Register("roles", form.Rules{})
	require.NoError(t, ctl.Mount(ctx))

	tags := []string{"a"}
	require.NoError(t, ctl.SetValue(ctx, "tags", tags, form.SetValueOptions{}))
	tags[0] = "mutated"
	assert.Equal(t, []string{"a"}, ctl.GetValue("tags"))

	picked := []string{"admin"}
	require.NoError(t, roles.OnChange(ctx, picked))
	picked[0] = "root"
	assert.Equal(t, []string{"admin"}, ctl.GetValue("roles"))

	defaults["labels"].(map[string]string)["k"] = "mutated"
	assert.Equal(t, map[string]string{"k": "v"}, ctl.GetValue("labels"))

	got := ctl.GetValue("tags").([]string)
	got[0] = "changed by reader"
	assert.Equal(t, []string{"a"}, ctl.GetValue("tags"))
}

func TestGetValuesBeforeMountReadsDefaults(t *testing.T) {
	ctl := form.New(form.Options{DefaultValues: map[string]any{"name": "default"}})
	require.NoError(t, ctl.SetValue(context.Background(), "name", "live", form.SetValueOptions{}))
	assert.Equal(t, "default", ctl.GetValue("name"))

	require.NoError(t, ctl.Mount(context.Background()))
	assert.Equal(t, "live", ctl.GetValue("name"))
}

func TestDirtyInvariant(t *testing.T) {
	ctx := context.Background()
	ctl := form.New(form.Options{DefaultValues: map[string]any{
		"name": "a",
		"tags": []any{"x"},
	}})
	name := ctl.Register("name", form.Rules{})
	require.NoError(t, ctl.Mount(ctx))

	check := func(step string) {
		t.Helper()
		want := !values.Equal(ctl.GetValues(), ctl.DefaultValues())
		assert.Equal(t, want, ctl.FormState().IsDirty, step)
	}

	check("initial")
	require.NoError(t, name.OnChange(ctx, "b"))
	check("changed")
	assert.True(t, ctl.FormState().DirtyFields.Has("name"))

	require.NoError(t, name.OnChange(ctx, "a"))
	check("restored")
	assert.False(t, ctl.FormState().DirtyFields.Has("name"))

	require.NoError(t, ctl.SetValue(ctx, "tags", []any{"x", "y"}, form.SetValueOptions{ShouldDirty: true}))
	check("list grown")
	assert.True(t, ctl.FormState().IsDirty)

	require.NoError(t, ctl.SetValue(ctx, "tags", []any{"x"}, form.SetValueOptions{ShouldDirty: true}))
	check("list restored")
}

func TestResetIsIdempotent(t *testing.T) {
	ctx := context.Background()
	defaults := map[string]any{"name": "a", "address": map[string]any{"city": "Oslo"}}
	tester := formtest.NewFormTesterWithT(t, form.Options{Mode: form.OnChange, DefaultValues: defaults})
	ctl := tester.Control()
	tester.Register("name", form.Rules{Required: form.Required("required")})
	tester.Register("address.city", form.Rules{})

	require.NoError(t, tester.Change("name", ""))
	require.NoError(t, tester.Blur("address.city"))
	_, err := tester.Submit()
	require.NoError(t, err)

	for i := 0; i < 2; i++ {
		require.NoError(t, ctl.Reset(ctx, nil, form.ResetOptions{}))
		st := ctl.FormState()
		assert.True(t, values.Equal(defaults, ctl.GetValues()), "reset %d values", i)
		assert.False(t, st.IsDirty)
		assert.Empty(t, st.Errors)
		assert.Empty(t, st.TouchedFields)
		assert.Empty(t, st.DirtyFields)
		assert.Zero(t, st.SubmitCount)
		assert.False(t, st.IsSubmitted)
	}
	assert.Equal(t, "a", tester.Ref("name").Value(), "refs follow the reset values")
}

func TestResetWithValuesReplacesDefaults(t *testing.T) {
	ctx := context.Background()
	ctl := form.New(form.Options{DefaultValues: map[string]any{"name": "a"}})
	require.NoError(t, ctl.Mount(ctx))

	require.NoError(t, ctl.Reset(ctx, map[string]any{"name": "b"}, form.ResetOptions{}))
	assert.Equal(t, "b", ctl.GetValue("name"))
	assert.Equal(t, "b", ctl.DefaultValues()["name"])
	assert.False(t, ctl.FormState().IsDirty)

	require.NoError(t, ctl.Reset(ctx, map[string]any{"name": "c"}, form.ResetOptions{KeepDefaultValues: true}))
	assert.Equal(t, "c", ctl.GetValue("name"))
	assert.Equal(t, "b", ctl.DefaultValues()["name"])
	assert.True(t, ctl.FormState().IsDirty)
	assert.True(t, ctl.FormState().DirtyFields.Has("name"))
}

func TestResetKeepDirtyValues(t *testing.T) {
	ctx := context.Background()
	tester := formtest.NewFormTesterWithT(t, form.Options{DefaultValues: map[string]any{"a": "1", "b": "2"}})
	ctl := tester.Control()
	tester.Register("a", form.Rules{})
	tester.Register("b", form.Rules{})
	require.NoError(t, tester.Change("a", "edited"))

	require.NoError(t, ctl.Reset(ctx, map[string]any{"a": "new", "b": "new"}, form.ResetOptions{KeepDirtyValues: true}))
	assert.Equal(t, "edited", ctl.GetValue("a"))
	assert.Equal(t, "new", ctl.GetValue("b"))
}

// resetSnapshot is the part of the form state the reset flags govern.
type resetSnapshot struct {
	Name        any
	IsDirty     bool
	Dirty       bool
	Touched     bool
	Errored     bool
	IsSubmitted bool
	SubmitCount int
	Successful  bool
}

func TestResetKeepFlags(t *testing.T) {
	cleared := resetSnapshot{Name: "a"}
	tests := []struct {
		name string
		opts form.ResetOptions
		want func(s *resetSnapshot)
	}{
		{"no flags", form.ResetOptions{}, func(*resetSnapshot) {}},
		{"keep values", form.ResetOptions{KeepValues: true}, func(s *resetSnapshot) { s.Name = "b" }},
		{"keep dirty", form.ResetOptions{KeepDirty: true}, func(s *resetSnapshot) { s.IsDirty, s.Dirty = true, true }},
		{"keep errors", form.ResetOptions{KeepErrors: true}, func(s *resetSnapshot) { s.Errored = true }},
		{"keep touched", form.ResetOptions{KeepTouched: true}, func(s *resetSnapshot) { s.Touched = true }},
		{"keep is submitted", form.ResetOptions{KeepIsSubmitted: true}, func(s *resetSnapshot) { s.IsSubmitted = true }},
		{"keep submit count", form.ResetOptions{KeepSubmitCount: true}, func(s *resetSnapshot) { s.SubmitCount = 1 }},
		{"keep is submit successful", form.ResetOptions{KeepIsSubmitSuccessful: true}, func(s *resetSnapshot) { s.Successful = true }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			ctl := form.New(form.Options{DefaultValues: map[string]any{"name": "a"}})
			name := ctl.Register("name", form.Rules{Required: form.Required("required")})
			require.NoError(t, ctl.Mount(ctx))

			require.NoError(t, name.OnChange(ctx, "b"))
			require.NoError(t, name.OnBlur(ctx))
			require.NoError(t, ctl.HandleSubmit(nil, nil)(ctx))
			ctl.SetError("name", form.FieldError{Type: "server", Message: "taken"}, false)

			before := snapshotForReset(ctl)
			require.Equal(t, resetSnapshot{
				Name: "b", IsDirty: true, Dirty: true, Touched: true, Errored: true,
				IsSubmitted: true, SubmitCount: 1, Successful: true,
			}, before, "state before reset")

			require.NoError(t, ctl.Reset(ctx, nil, tt.opts))

			want := cleared
			tt.want(&want)
			assert.Equal(t, want, snapshotForReset(ctl))
			assert.False(t, ctl.FormState().IsSubmitting)
		})
	}
}

func snapshotForReset(ctl *form.Control) resetSnapshot {
	st := ctl.FormState()
	return resetSnapshot{
		Name:        ctl.GetValue("name"),
		IsDirty:     st.IsDirty,
		Dirty:       st.DirtyFields.Has("name"),
		Touched:     st.TouchedFields.Has("name"),
		Errored:     st.Errors.Has("name"),
		IsSubmitted: st.IsSubmitted,
		SubmitCount: st.SubmitCount,
		Successful:  st.IsSubmitSuccessful,
	}
}

func TestResetKeepDefaultValuesWithoutValuesIsClean(t *testing.T) {
	ctx := context.Background()
	ctl := form.New(form.Options{DefaultValues: map[string]any{"name": "a"}})
	name := ctl.Register("name", form.Rules{})
	require.NoError(t, ctl.Mount(ctx))
	require.NoError(t, name.OnChange(ctx, "b"))

	require.NoError(t, ctl.Reset(ctx, nil, form.ResetOptions{KeepDefaultValues: true}))
	assert.Equal(t, "a", ctl.GetValue("name"))
	assert.False(t, ctl.FormState().IsDirty)
	assert.Equal(t, !values.Equal(ctl.GetValues(), ctl.DefaultValues()), ctl.FormState().IsDirty)

	require.NoError(t, ctl.Reset(ctx, map[string]any{"name": "c"}, form.ResetOptions{KeepDefaultValues: true}))
	assert.Equal(t, "c", ctl.GetValue("name"))
	assert.True(t, ctl.FormState().IsDirty)
	assert.True(t, ctl.FormState().DirtyFields.Has("name"))
}

func TestValidatingFieldsFlaggedWhileValidatorRuns(t *testing.T) {
	ctx := context.Background()
	entered := make(chan struct{})
	release := make(chan struct{})

	ctl := form.New(form.Options{Mode: form.OnChange})
	unsub := ctl.Subscribe(form.SubscribeOptions{Interest: form.FieldValidatingFields, Callback: func(form.StateEvent) {}})
	defer unsub()
	field := ctl.Register("a", form.Rules{
		Validate: func(context.Context, any, map[string]any) error {
			close(entered)
			<-release
			return nil
		},
	})
	require.NoError(t, ctl.Mount(ctx))

	done := make(chan error, 1)
	go func() { done <- field.OnChange(ctx, "x") }()
	<-entered

	assert.True(t, ctl.GetFieldState("a").IsValidating, "flagged while the validator runs")
	assert.True(t, ctl.FormState().IsValidating)

	close(release)
	require.NoError(t, <-done)
	assert.False(t, ctl.GetFieldState("a").IsValidating)
	assert.False(t, ctl.FormState().IsValidating)
}

func TestEmptyResetClearsDirtyState(t *testing.T) {
	ctx := context.Background()
	tester := formtest.NewFormTesterWithT(t, form.Options{DefaultValues: map[string]any{"a": "1"}})
	ctl := tester.Control()
	tester.Register("a", form.Rules{})
	require.NoError(t, tester.Change("a", "2"))

	require.NoError(t, ctl.Reset(ctx, map[string]any{}, form.ResetOptions{}))
	assert.Equal(t, "1", ctl.GetValue("a"))
	assert.False(t, ctl.FormState().IsDirty)
	assert.Empty(t, ctl.FormState().DirtyFields)
}

func TestOnBlurModeValidatesOnlyOnBlur(t *testing.T) {
	tester := formtest.NewFormTesterWithT(t, form.Options{Mode: form.OnBlur})
	tester.Register("name", form.Rules{Required: form.Required("Name required")})

	require.NoError(t, tester.Change("name", ""))
	assert.Empty(t, tester.Error("name"), "change does not validate in onBlur mode")

	require.NoError(t, tester.Blur("name"))
	assert.Equal(t, "Name required", tester.Error("name"))
	assert.True(t, tester.Control().GetFieldState("name").IsTouched)
}

func TestOnSubmitModeRevalidatesOnChangeAfterSubmit(t *testing.T) {
	tester := formtest.NewFormTesterWithT(t, form.Options{})
	tester.Register("name", form.Rules{Required: form.Required("Name required")})

	require.NoError(t, tester.Change("name", ""))
	assert.Empty(t, tester.Error("name"))

	_, err := tester.Submit()
	require.NoError(t, err)
	assert.Equal(t, "Name required", tester.Error("name"))

	require.NoError(t, tester.Change("name", "Ada"))
	assert.Empty(t, tester.Error("name"))
}

func TestStaleValidationResultIsDiscarded(t *testing.T) {
	ctx := context.Background()
	reg := prometheus.NewRegistry()
	entered := make(chan struct{})
	release := make(chan struct{})

	ctl := form.New(form.Options{Mode: form.OnChange, Metrics: metrics.New(reg)})
	field := ctl.Register("a", form.Rules{
		Validate: func(_ context.Context, v any, _ map[string]any) error {
			switch v {
			case "x":
				close(entered)
				<-release
				return nil
			case "y":
				return errors.New("y is not allowed")
			}
			return nil
		},
	})
	require.NoError(t, ctl.Mount(ctx))

	done := make(chan error, 1)
	go func() { done <- field.OnChange(ctx, "x") }()
	<-entered

	require.NoError(t, field.OnChange(ctx, "y"))
	close(release)
	require.NoError(t, <-done)

	fe := ctl.FormState().Errors.Get("a")
	require.NotNil(t, fe, "result for the older value must not clear the newer error")
	assert.Equal(t, "y is not allowed", fe.Message)

	families, err := reg.Gather()
	require.NoError(t, err)
	var stale float64
	for _, f := range families {
		if f.GetName() == "form_stale_validation_results_total" {
			stale = f.GetMetric()[0].GetCounter().GetValue()
		}
	}
	assert.Equal(t, 1.0, stale)
}

func TestSubscriberIsolation(t *testing.T) {
	ctx := context.Background()
	ctl := form.New(form.Options{Mode: form.OnChange})
	a := ctl.Register("a", form.Rules{Required: form.Required("a required")})
	ctl.Register("b", form.Rules{Required: form.Required("b required")})

	var gotA, gotB int
	unsubA := ctl.Subscribe(form.SubscribeOptions{
		Names:    []string{"a"},
		Interest: form.FieldErrors,
		Callback: func(form.StateEvent) { gotA++ },
	})
	defer unsubA()
	unsubB := ctl.Subscribe(form.SubscribeOptions{
		Names:    []string{"b"},
		Interest: form.FieldErrors,
		Callback: func(form.StateEvent) { gotB++ },
	})
	defer unsubB()
	require.NoError(t, ctl.Mount(ctx))
	gotA, gotB = 0, 0

	require.NoError(t, a.OnChange(ctx, ""))
	assert.Positive(t, gotA)
	assert.Zero(t, gotB, "subscriber for b must not hear about a")
}

func TestSubscriberInterestFiltersNotifications(t *testing.T) {
	tester := formtest.NewFormTesterWithT(t, form.Options{Mode: form.OnChange})
	ctl := tester.Control()
	tester.Register("name", form.Rules{})

	var touched int
	unsub := ctl.Subscribe(form.SubscribeOptions{
		Interest: form.FieldTouchedFields,
		Callback: func(form.StateEvent) { touched++ },
	})
	defer unsub()

	require.NoError(t, tester.Blur("name"))
	assert.Equal(t, 1, touched)
	require.NoError(t, tester.Blur("name"))
	assert.Equal(t, 1, touched, "already touched")
}

func TestPanickingSubscriberDoesNotBreakOthers(t *testing.T) {
	defer ferrors.SetHandler(ferrors.SetHandler(&ferrors.LogHandler{Logger: zerolog.Nop()}))

	ctx := context.Background()
	ctl := form.New(form.Options{})
	defer ctl.WatchFunc(func(map[string]any, form.StateEvent) { panic("bad subscriber") })()
	var got any
	defer ctl.WatchFunc(func(vals map[string]any, _ form.StateEvent) { got = vals["name"] })()
	require.NoError(t, ctl.Mount(ctx))

	require.NoError(t, ctl.SetValue(ctx, "name", "Ada", form.SetValueOptions{}))
	assert.Equal(t, "Ada", got)
}

func TestIsValidComputedOnlyWhenTracked(t *testing.T) {
	ctx := context.Background()
	ctl := form.New(form.Options{Mode: form.OnChange})
	name := ctl.Register("name", form.Rules{Required: form.Required("required")})
	require.NoError(t, ctl.Mount(ctx))

	require.NoError(t, name.OnChange(ctx, "Ada"))
	assert.False(t, ctl.FormState().IsValid, "nobody tracks isValid yet")

	unsub := ctl.Subscribe(form.SubscribeOptions{Interest: form.FieldIsValid, Callback: func(form.StateEvent) {}})
	defer unsub()
	require.NoError(t, name.OnChange(ctx, "Grace"))
	assert.True(t, ctl.FormState().IsValid)
}

func TestHandleSubmitValid(t *testing.T) {
	ctx := context.Background()
	ctl := form.New(form.Options{DefaultValues: map[string]any{"name": "Ada", "secret": "s"}})
	ctl.Register("name", form.Rules{Required: form.Required("required")})
	ctl.Register("secret", form.Rules{Disabled: ptr(true)})
	require.NoError(t, ctl.Mount(ctx))

	var submitted map[string]any
	err := ctl.HandleSubmit(func(_ context.Context, vals map[string]any) error {
		submitted = vals
		return nil
	}, nil)(ctx)
	require.NoError(t, err)

	assert.Equal(t, map[string]any{"name": "Ada"}, submitted, "disabled fields are not submitted")
	st := ctl.FormState()
	assert.True(t, st.IsSubmitted)
	assert.True(t, st.IsSubmitSuccessful)
	assert.False(t, st.IsSubmitting)
	assert.Equal(t, 1, st.SubmitCount)
}

func TestHandleSubmitInvalid(t *testing.T) {
	tester := formtest.NewFormTesterWithT(t, form.Options{})
	ctl := tester.Control()
	tester.Register("name", form.Rules{Required: form.Required("required")})

	var invalid form.Errors
	err := ctl.HandleSubmit(func(context.Context, map[string]any) error {
		t.Fatal("onValid must not run")
		return nil
	}, func(_ context.Context, errs form.Errors) error {
		invalid = errs
		return nil
	})(tester.Context())
	require.NoError(t, err)

	require.Contains(t, invalid, "name")
	st := ctl.FormState()
	assert.False(t, st.IsSubmitSuccessful)
	assert.Equal(t, 1, st.SubmitCount)
	assert.Equal(t, 1, tester.Ref("name").FocusCount())
}

func TestHandleSubmitSkipFocusError(t *testing.T) {
	tester := formtest.NewFormTesterWithT(t, form.Options{SkipFocusError: true})
	tester.Register("name", form.Rules{Required: form.Required("required")})

	_, err := tester.Submit()
	require.NoError(t, err)
	assert.Zero(t, tester.Ref("name").FocusCount())
}

func TestHandleSubmitCallbackErrorSettlesState(t *testing.T) {
	ctx := context.Background()
	ctl := form.New(form.Options{})
	require.NoError(t, ctl.Mount(ctx))

	h := &submitErrors{}
	defer ferrors.SetHandler(ferrors.SetHandler(h))

	rejected := errors.New("rejected")
	err := ctl.HandleSubmit(func(context.Context, map[string]any) error { return rejected }, nil)(ctx)
	assert.Same(t, rejected, err, "the callback's error is returned unchanged")

	require.Len(t, h.errs, 1)
	assert.Equal(t, ferrors.KindSubmit, h.errs[0].Kind)
	assert.Equal(t, "form.HandleSubmit", h.errs[0].Op)
	assert.ErrorIs(t, h.errs[0], rejected)

	st := ctl.FormState()
	assert.False(t, st.IsSubmitting)
	assert.True(t, st.IsSubmitted)
	assert.False(t, st.IsSubmitSuccessful)
	assert.Equal(t, 1, st.SubmitCount)
}

func TestHandleSubmitReportsInvalidCallbackError(t *testing.T) {
	h := &submitErrors{}
	defer ferrors.SetHandler(ferrors.SetHandler(h))

	ctx := context.Background()
	ctl := form.New(form.Options{SkipFocusError: true})
	ctl.Register("name", form.Rules{Required: form.Required("required")})
	require.NoError(t, ctl.Mount(ctx))

	failed := errors.New("cannot show errors")
	err := ctl.HandleSubmit(nil, func(context.Context, form.Errors) error { return failed })(ctx)
	assert.Same(t, failed, err)
	require.Len(t, h.errs, 1)
	assert.Equal(t, ferrors.KindSubmit, h.errs[0].Kind)
}

type submitErrors struct {
	errs   []*ferrors.FormError
	panics []*ferrors.PanicError
}

func (h *submitErrors) HandleError(err *ferrors.FormError)  { h.errs = append(h.errs, err) }
func (h *submitErrors) HandlePanic(err *ferrors.PanicError) { h.panics = append(h.panics, err) }

func TestHandleSubmitRecoversPanic(t *testing.T) {
	h := &submitErrors{}
	defer ferrors.SetHandler(ferrors.SetHandler(h))

	ctx := context.Background()
	ctl := form.New(form.Options{})
	err := ctl.HandleSubmit(func(context.Context, map[string]any) error { panic("boom") }, nil)(ctx)

	var pe *ferrors.PanicError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, "boom", pe.Value)
	assert.False(t, ctl.FormState().IsSubmitting)
	assert.Len(t, h.panics, 1)
	assert.Empty(t, h.errs, "a panic is reported once")
}

func TestHandleSubmitDropsRootErrors(t *testing.T) {
	ctx := context.Background()
	ctl := form.New(form.Options{})
	require.NoError(t, ctl.Mount(ctx))
	ctl.SetError("root.server", form.FieldError{Type: "server", Message: "try again"}, false)
	assert.True(t, ctl.GetFieldState("root").Invalid)

	called := false
	err := ctl.HandleSubmit(func(context.Context, map[string]any) error {
		called = true
		return nil
	}, nil)(ctx)
	require.NoError(t, err)
	assert.True(t, called)
	assert.Empty(t, ctl.FormState().Errors)
}

func emailResolver() form.Resolver {
	return form.ResolverFunc(func(_ context.Context, vals map[string]any, _ any, opts form.ResolverOptions) (form.ResolverResult, error) {
		if s, _ := vals["email"].(string); s == "" {
			issues := []form.Issue{{Path: "email", Message: "Email required", Type: "required"}}
			return form.ResolverResult{Values: map[string]any{}, Errors: form.ErrorsFromIssues(issues, opts)}, nil
		}
		return form.ResolverResult{Values: vals}, nil
	})
}

func TestResolverDrivesValidation(t *testing.T) {
	tester := formtest.NewFormTesterWithT(t, form.Options{Resolver: emailResolver()})
	tester.Register("email", form.Rules{})

	vals, err := tester.Submit()
	require.NoError(t, err)
	assert.Nil(t, vals)
	assert.Equal(t, "Email required", tester.Error("email"))
	assert.Same(t, tester.Ref("email"), tester.Control().FormState().Errors.Get("email").Ref)

	require.NoError(t, tester.Change("email", "a@b.c"))
	assert.Empty(t, tester.Error("email"), "re-validated on change after submit")

	vals, err = tester.Submit()
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"email": "a@b.c"}, vals)
}

func TestResolverFailureIsReturned(t *testing.T) {
	defer ferrors.SetHandler(ferrors.SetHandler(&ferrors.LogHandler{Logger: zerolog.Nop()}))

	down := errors.New("schema service down")
	ctl := form.New(form.Options{Resolver: form.ResolverFunc(
		func(context.Context, map[string]any, any, form.ResolverOptions) (form.ResolverResult, error) {
			return form.ResolverResult{}, down
		})})
	ctl.Register("email", form.Rules{})

	_, err := ctl.Trigger(context.Background(), form.TriggerOptions{})
	assert.ErrorIs(t, err, down)
}

func TestErrorsFromIssues(t *testing.T) {
	issues := []form.Issue{
		{Path: "items", Message: "need two", Type: "min"},
		{Path: "items[0].name", Message: "name required", Type: "required"},
		{Path: "email", Message: "Email required", Type: "required"},
		{Path: "email", Message: "invalid email", Type: "email"},
	}

	errs := form.ErrorsFromIssues(issues, form.ResolverOptions{})
	require.Contains(t, errs, "items.root")
	assert.Equal(t, "need two", errs["items.root"].Message)
	assert.Equal(t, "name required", errs["items.0.name"].Message)
	assert.Equal(t, "Email required", errs["email"].Message, "first issue per path wins")
	assert.Nil(t, errs["email"].Types)

	all := form.ErrorsFromIssues(issues, form.ResolverOptions{Criteria: form.CriteriaAll})
	assert.Equal(t, map[string][]string{
		"required": {"Email required"},
		"email":    {"invalid email"},
	}, all["email"].Types)
}

func TestFieldArrayRootError(t *testing.T) {
	ctx := context.Background()
	ctl := form.New(form.Options{})
	ctl.Register("items", form.Rules{FieldArray: true, MinLength: form.MinLength(2, "need two")})
	require.NoError(t, ctl.Mount(ctx))
	require.NoError(t, ctl.SetValue(ctx, "items", []any{"one"}, form.SetValueOptions{}))

	ok, err := ctl.Trigger(ctx, form.TriggerOptions{})
	require.NoError(t, err)
	assert.False(t, ok)
	fe := ctl.FormState().Errors.Get("items.root")
	require.NotNil(t, fe)
	assert.Equal(t, form.RuleMinLength, fe.Type)
	assert.Equal(t, fe.Message, ctl.GetFieldState("items").Error.Message)
}

func TestTriggerShouldFocus(t *testing.T) {
	tester := formtest.NewFormTesterWithT(t, form.Options{})
	tester.Register("a", form.Rules{})
	tester.Register("b", form.Rules{Required: form.Required("b required")})

	ok, err := tester.Control().Trigger(tester.Context(), form.TriggerOptions{ShouldFocus: true})
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Zero(t, tester.Ref("a").FocusCount())
	assert.Equal(t, 1, tester.Ref("b").FocusCount())
}

func TestDepsRevalidateDependentFields(t *testing.T) {
	tester := formtest.NewFormTesterWithT(t, form.Options{Mode: form.OnChange})
	tester.Register("password", form.Rules{Deps: []string{"confirm"}, Required: form.Required("required")})
	tester.Register("confirm", form.Rules{
		Validate: func(_ context.Context, v any, vals map[string]any) error {
			if v != vals["password"] {
				return errors.New("passwords differ")
			}
			return nil
		},
	})

	require.NoError(t, tester.Change("confirm", "secret"))
	assert.Equal(t, "passwords differ", tester.Error("confirm"))

	require.NoError(t, tester.Change("password", "secret"))
	assert.Empty(t, tester.Error("confirm"))
}

func TestUnregister(t *testing.T) {
	ctx := context.Background()
	ctl := form.New(form.Options{})
	ctl.Register("a", form.Rules{})
	ctl.Register("b", form.Rules{})
	require.NoError(t, ctl.Mount(ctx))
	require.NoError(t, ctl.SetValue(ctx, "a", "1", form.SetValueOptions{}))
	require.NoError(t, ctl.SetValue(ctx, "b", "2", form.SetValueOptions{}))
	ctl.SetError("a", form.FieldError{Type: "x", Message: "bad"}, false)

	require.NoError(t, ctl.Unregister(ctx, form.UnregisterOptions{}, "a"))
	assert.Nil(t, ctl.GetValue("a"))
	assert.Nil(t, ctl.FormState().Errors.Get("a"))

	require.NoError(t, ctl.Unregister(ctx, form.UnregisterOptions{KeepValue: true}, "b"))
	assert.Equal(t, "2", ctl.GetValue("b"))
}

func TestRemoveUnmountedSweepsDetachedFields(t *testing.T) {
	ctx := context.Background()
	tester := formtest.NewFormTesterWithT(t, form.Options{ShouldUnregister: true})
	ctl := tester.Control()
	b := tester.Register("name", form.Rules{})
	require.NoError(t, tester.Change("name", "Ada"))

	tester.Ref("name").Detach()
	b.Ref(nil)
	require.NoError(t, ctl.RemoveUnmounted(ctx))

	assert.Nil(t, ctl.GetValue("name"))
	assert.False(t, ctl.FormState().IsDirty)
}

func TestResetField(t *testing.T) {
	ctx := context.Background()
	tester := formtest.NewFormTesterWithT(t, form.Options{DefaultValues: map[string]any{"name": "a"}})
	ctl := tester.Control()
	tester.Register("name", form.Rules{})
	require.NoError(t, tester.Change("name", "b"))
	require.NoError(t, tester.Blur("name"))

	require.NoError(t, ctl.ResetField(ctx, "name", form.ResetFieldOptions{}))
	fs := ctl.GetFieldState("name")
	assert.Equal(t, "a", ctl.GetValue("name"))
	assert.False(t, fs.IsDirty)
	assert.False(t, fs.IsTouched)
	assert.False(t, ctl.FormState().IsDirty)

	require.NoError(t, ctl.ResetField(ctx, "name", form.ResetFieldOptions{DefaultValue: "c"}))
	assert.Equal(t, "c", ctl.GetValue("name"))
	assert.Equal(t, "c", ctl.DefaultValues()["name"])
}

func TestChangeRevalidatesFieldWithOutstandingError(t *testing.T) {
	ctx := context.Background()
	ctl := form.New(form.Options{Mode: form.OnChange})
	nick := ctl.Register("nick", form.Rules{})
	require.NoError(t, ctl.Mount(ctx))

	ctl.SetError("nick", form.FieldError{Type: "server", Message: "taken"}, false)
	require.NotNil(t, ctl.FormState().Errors.Get("nick"))

	require.NoError(t, nick.OnChange(ctx, "other"))
	assert.Nil(t, ctl.FormState().Errors.Get("nick"), "a change re-validates a field carrying an error")
	assert.Equal(t, "other", ctl.GetValue("nick"))
}

func TestChangeWithoutRulesOrErrorsSkipsValidation(t *testing.T) {
	ctx := context.Background()
	ctl := form.New(form.Options{Mode: form.OnChange})
	nick := ctl.Register("nick", form.Rules{})
	require.NoError(t, ctl.Mount(ctx))

	ctl.SetError("other", form.FieldError{Type: "server", Message: "kept"}, false)
	require.NoError(t, nick.OnChange(ctx, "x"))
	assert.NotNil(t, ctl.FormState().Errors.Get("other"))
}

func TestSetErrorAndClearErrors(t *testing.T) {
	tester := formtest.NewFormTesterWithT(t, form.Options{})
	ctl := tester.Control()
	tester.Register("a", form.Rules{})
	tester.Register("b", form.Rules{})

	ctl.SetError("a", form.FieldError{Type: "server", Message: "taken"}, true)
	ctl.SetError("b", form.FieldError{Type: "server", Message: "bad"}, false)
	assert.True(t, ctl.GetFieldState("a").Invalid)
	assert.Equal(t, 1, tester.Ref("a").FocusCount())
	assert.False(t, ctl.FormState().IsValid)

	ctl.ClearErrors("a")
	assert.False(t, ctl.GetFieldState("a").Invalid)
	assert.True(t, ctl.GetFieldState("b").Invalid)

	ctl.ClearErrors()
	assert.Empty(t, ctl.FormState().Errors)
}

func TestWatch(t *testing.T) {
	ctx := context.Background()
	ctl := form.New(form.Options{DefaultValues: map[string]any{"name": "a"}})
	assert.Equal(t, "a", ctl.Watch("name"))

	var last map[string]any
	stop := ctl.WatchFunc(func(vals map[string]any, _ form.StateEvent) { last = vals })
	require.NoError(t, ctl.Mount(ctx))
	require.NoError(t, ctl.SetValue(ctx, "name", "b", form.SetValueOptions{}))
	assert.Equal(t, "b", last["name"])

	stop()
	require.NoError(t, ctl.SetValue(ctx, "name", "c", form.SetValueOptions{}))
	assert.Equal(t, "b", last["name"])
}

func TestRadioGroupRefsFollowValue(t *testing.T) {
	ctx := context.Background()
	ctl := form.New(form.Options{})
	b := ctl.Register("color", form.Rules{})
	red := form.NewOptionRef("radio", "red")
	blue := form.NewOptionRef("radio", "blue")
	b.Ref(red)
	b.Ref(blue)
	require.NoError(t, ctl.Mount(ctx))

	require.NoError(t, ctl.SetValue(ctx, "color", "blue", form.SetValueOptions{}))
	assert.False(t, red.Checked())
	assert.True(t, blue.Checked())
}

func TestSetDisabled(t *testing.T) {
	ctx := context.Background()
	tester := formtest.NewFormTesterWithT(t, form.Options{DefaultValues: map[string]any{"name": "Ada"}})
	ctl := tester.Control()
	tester.Register("name", form.Rules{Required: form.Required("required")})

	require.NoError(t, ctl.SetDisabled(ctx, true))
	assert.True(t, ctl.FormState().Disabled)
	assert.True(t, tester.Ref("name").Disabled())

	vals, err := tester.Submit()
	require.NoError(t, err)
	assert.Empty(t, vals, "disabled fields are not submitted")

	require.NoError(t, ctl.SetDisabled(ctx, false))
	assert.False(t, tester.Ref("name").Disabled())
}

func TestController(t *testing.T) {
	ctx := context.Background()
	ctl := form.New(form.Options{Mode: form.OnBlur})
	updates := 0
	c := ctl.Controller(form.ControllerOptions{
		Name:             "rating",
		DefaultValue:     3,
		Rules:            form.Rules{Max: form.Max(5, "max five")},
		ShouldUnregister: true,
		OnUpdate:         func(*form.Controller) { updates++ },
	})
	require.NoError(t, ctl.Mount(ctx))
	assert.Equal(t, 3, c.Value())
	assert.Equal(t, 3, ctl.GetValue("rating"))

	require.NoError(t, c.OnChange(ctx, 7))
	assert.Equal(t, 7, c.Value())
	assert.Positive(t, updates)

	require.NoError(t, c.OnBlur(ctx))
	fs := c.FieldState()
	assert.True(t, fs.IsTouched)
	require.NotNil(t, fs.Error)
	assert.Equal(t, form.RuleMax, fs.Error.Type)
	assert.Equal(t, form.Field{Name: "rating", Value: 7}, c.Field())

	require.NoError(t, c.Close(ctx))
	assert.Nil(t, ctl.GetValue("rating"))
}
