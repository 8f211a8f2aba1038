package resolver

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/go-drift/formctl/pkg/form"
)

const signupSchema = `
version: v1.2.0
fields:
  email:
    type: string
    required: true
    pattern: '^[^@]+@[^@]+$'
    messages:
      required: Email required
      pattern: not an email
  age:
    type: number
    min: 18
    max: 120
    messages:
      min: too young
  role:
    one_of: [admin, user]
  tags:
    type: list
    max_length: 2
rules:
  - path: confirm
    expr: confirm == password
    message: passwords differ
    type: match
`

func mustResolver(t *testing.T, src string) *Resolver {
	t.Helper()
	s, err := Parse([]byte(src))
	require.NoError(t, err)
	r, err := New(s)
	require.NoError(t, err)
	return r
}

func TestCheckVersion(t *testing.T) {
	tests := []struct {
		version string
		wantErr bool
	}{
		{"", false},
		{"v1.0.0", false},
		{"1.4.2", false},
		{"v1", false},
		{"v2.0.0", true},
		{"latest", true},
	}
	for _, tt := range tests {
		t.Run(tt.version, func(t *testing.T) {
			err := CheckVersion(tt.version)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestParseRejectsInvalidSchemas(t *testing.T) {
	tests := map[string]string{
		"unknown type": "fields:\n  a:\n    type: colour\n",
		"min over max": "fields:\n  a:\n    min: 5\n    max: 1\n",
		"empty rule":   "rules:\n  - path: a\n",
		"bad version":  "version: v3.0.0\n",
		"bad yaml":     "fields: [",
	}
	for name, src := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := Parse([]byte(src))
			assert.Error(t, err)
		})
	}
}

func TestNewRejectsBadPatternAndExpr(t *testing.T) {
	s, err := Parse([]byte("fields:\n  a:\n    pattern: '('\n"))
	require.NoError(t, err)
	_, err = New(s)
	assert.Error(t, err)

	s, err = Parse([]byte("rules:\n  - path: a\n    expr: 'a =='\n"))
	require.NoError(t, err)
	_, err = New(s)
	assert.Error(t, err)
}

func TestResolveReportsFieldIssues(t *testing.T) {
	r := mustResolver(t, signupSchema)
	res, err := r.Resolve(context.Background(), map[string]any{
		"email":    "",
		"age":      "16",
		"role":     "root",
		"tags":     []any{"a", "b", "c"},
		"password": "x",
		"confirm":  "x",
	}, nil, form.ResolverOptions{})
	require.NoError(t, err)

	assert.Empty(t, res.Values)
	require.Len(t, res.Errors, 4)
	assert.Equal(t, "Email required", res.Errors["email"].Message)
	assert.Equal(t, form.RuleRequired, res.Errors["email"].Type)
	assert.Equal(t, "too young", res.Errors["age"].Message)
	assert.Equal(t, IssueOneOf, res.Errors["role"].Type)
	assert.Equal(t, "must be one of: admin, user", res.Errors["role"].Message)
	assert.Equal(t, form.RuleMaxLength, res.Errors["tags"].Type)
}

func TestResolveCoercesValidValues(t *testing.T) {
	r := mustResolver(t, signupSchema)
	res, err := r.Resolve(context.Background(), map[string]any{
		"email": "a@b.c",
		"age":   " 30 ",
		"role":  "admin",
	}, nil, form.ResolverOptions{})
	require.NoError(t, err)

	assert.Empty(t, res.Errors)
	assert.Equal(t, 30.0, res.Values["age"])
	assert.Equal(t, "a@b.c", res.Values["email"])
}

func TestResolveTypeMismatch(t *testing.T) {
	r := mustResolver(t, signupSchema)
	res, err := r.Resolve(context.Background(), map[string]any{
		"email": "a@b.c",
		"age":   "old",
	}, nil, form.ResolverOptions{})
	require.NoError(t, err)
	require.Contains(t, res.Errors, "age")
	assert.Equal(t, IssueType, res.Errors["age"].Type)
	assert.Equal(t, "must be a number", res.Errors["age"].Message)
}

func TestResolveCriteriaAllCollectsTypes(t *testing.T) {
	r := mustResolver(t, `
fields:
  pin:
    type: string
    min_length: 4
    pattern: '^[0-9]+$'
`)
	res, err := r.Resolve(context.Background(), map[string]any{"pin": "a"}, nil,
		form.ResolverOptions{Criteria: form.CriteriaAll})
	require.NoError(t, err)

	fe := res.Errors["pin"]
	require.NotNil(t, fe)
	assert.Equal(t, form.RuleMinLength, fe.Type, "first issue is the headline")
	assert.Equal(t, map[string][]string{
		form.RuleMinLength: {"must be at least 4 characters"},
		form.RulePattern:   {"does not match pattern"},
	}, fe.Types)
}

func TestResolveRules(t *testing.T) {
	r := mustResolver(t, signupSchema)
	res, err := r.Resolve(context.Background(), map[string]any{
		"email":    "a@b.c",
		"password": "secret",
		"confirm":  "secrets",
	}, nil, form.ResolverOptions{})
	require.NoError(t, err)
	require.Contains(t, res.Errors, "confirm")
	assert.Equal(t, "passwords differ", res.Errors["confirm"].Message)
	assert.Equal(t, "match", res.Errors["confirm"].Type)
}

func TestResolveRuleSeesFormContext(t *testing.T) {
	r := mustResolver(t, `
rules:
  - path: amount
    expr: amount <= context.limit
    message: over limit
`)
	ctx := context.Background()
	res, err := r.Resolve(ctx, map[string]any{"amount": 50}, map[string]any{"limit": 100}, form.ResolverOptions{})
	require.NoError(t, err)
	assert.Empty(t, res.Errors)

	res, err = r.Resolve(ctx, map[string]any{"amount": 500}, map[string]any{"limit": 100}, form.ResolverOptions{})
	require.NoError(t, err)
	assert.Equal(t, "over limit", res.Errors["amount"].Message)
}

func TestResolveHonoursCancellation(t *testing.T) {
	r := mustResolver(t, signupSchema)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := r.Resolve(ctx, map[string]any{}, nil, form.ResolverOptions{})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestExpressionValidator(t *testing.T) {
	e, err := Compile(`value != "admin" && len(value) > 2`)
	require.NoError(t, err)

	validate := e.Validator("reserved name")
	ctx := context.Background()
	assert.NoError(t, validate(ctx, "grace", nil))
	assert.EqualError(t, validate(ctx, "admin", nil), "reserved name")
	assert.EqualError(t, validate(ctx, "al", map[string]any{"other": 1}), "reserved name")

	again, err := Compile(`value != "admin" && len(value) > 2`)
	require.NoError(t, err)
	assert.Same(t, e.program, again.program, "programs are cached by source")
}

func TestResolverDrivesForm(t *testing.T) {
	ctx := context.Background()
	r := mustResolver(t, signupSchema)
	ctl := form.New(form.Options{Resolver: r})
	ctl.Register("email", form.Rules{})
	ctl.Register("age", form.Rules{})
	require.NoError(t, ctl.Mount(ctx))
	require.NoError(t, ctl.SetValue(ctx, "age", "40", form.SetValueOptions{}))

	var submitted map[string]any
	submit := ctl.HandleSubmit(func(_ context.Context, vals map[string]any) error {
		submitted = vals
		return nil
	}, nil)

	require.NoError(t, submit(ctx))
	assert.Nil(t, submitted)
	assert.Equal(t, "Email required", ctl.FormState().Errors.Get("email").Message)

	require.NoError(t, ctl.SetValue(ctx, "email", "a@b.c", form.SetValueOptions{ShouldValidate: true}))
	assert.Nil(t, ctl.FormState().Errors.Get("email"))

	require.NoError(t, submit(ctx))
	assert.Equal(t, map[string]any{"email": "a@b.c", "age": 40.0}, submitted)
}
