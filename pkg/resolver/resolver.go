package resolver

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog"

	"github.com/go-drift/formctl/pkg/form"
	"github.com/go-drift/formctl/pkg/values"
)

// Issue types reported for schema constraints that have no built-in rule
// counterpart.
const (
	IssueType  = "type"
	IssueOneOf = "oneOf"
)

// Resolver validates the value tree against a Schema.
type Resolver struct {
	schema   *Schema
	fields   map[string]*Field
	paths    []string
	patterns map[string]*regexp.Regexp
	rules    []*Expression
	log      zerolog.Logger
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithLogger sets the resolver's logger.
func WithLogger(l zerolog.Logger) Option {
	return func(r *Resolver) { r.log = l }
}

// New compiles s into a resolver. Patterns and rule expressions are
// compiled up front so a bad schema fails here rather than mid-validation.
func New(s *Schema, opts ...Option) (*Resolver, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}
	r := &Resolver{
		schema:   s,
		fields:   normalizeFields(s.Fields),
		patterns: make(map[string]*regexp.Regexp),
		log:      zerolog.Nop(),
	}
	for _, o := range opts {
		o(r)
	}
	for name := range r.fields {
		r.paths = append(r.paths, name)
	}
	sort.Strings(r.paths)

	for _, name := range r.paths {
		f := r.fields[name]
		if f == nil || f.Pattern == "" {
			continue
		}
		re, err := regexp.Compile(f.Pattern)
		if err != nil {
			return nil, fmt.Errorf("field %q: pattern: %w", name, err)
		}
		r.patterns[name] = re
	}
	for i, rule := range s.Rules {
		e, err := Compile(rule.Expr)
		if err != nil {
			return nil, fmt.Errorf("rule %d: %w", i, err)
		}
		r.rules = append(r.rules, e)
	}
	return r, nil
}

// Schema returns the schema the resolver was built from.
func (r *Resolver) Schema() *Schema { return r.schema }

// Resolve validates vals. On success the returned values carry type
// coercions (numeric strings to numbers, "true"/"false" to booleans, date
// strings to times); on failure they are empty and the issues are converted
// with form.ErrorsFromIssues. A rule whose expression fails to run makes the
// whole resolution fail.
func (r *Resolver) Resolve(ctx context.Context, vals map[string]any, formContext any, opts form.ResolverOptions) (form.ResolverResult, error) {
	if err := ctx.Err(); err != nil {
		return form.ResolverResult{}, err
	}

	out := values.CloneMap(vals)
	var issues []form.Issue
	for _, path := range r.paths {
		f := r.fields[path]
		if f == nil {
			continue
		}
		v := values.Get(out, path, nil)
		coerced, fieldIssues := r.checkField(path, f, v)
		issues = append(issues, fieldIssues...)
		if len(fieldIssues) == 0 && coerced != nil {
			values.Set(out, path, coerced)
		}
	}

	if len(r.rules) > 0 {
		env := values.CloneMap(out)
		if _, taken := env["context"]; !taken {
			env["context"] = formContext
		}
		for i, e := range r.rules {
			if err := ctx.Err(); err != nil {
				return form.ResolverResult{}, err
			}
			ok, err := e.Eval(env)
			if err != nil {
				return form.ResolverResult{}, err
			}
			if ok {
				continue
			}
			rule := r.schema.Rules[i]
			issues = append(issues, form.Issue{
				Path:    rule.Path,
				Message: orDefault(rule.Message, "is invalid"),
				Type:    orDefault(rule.Type, form.RuleValidate),
			})
		}
	}

	if len(issues) > 0 {
		r.log.Debug().Int("issues", len(issues)).Strs("names", opts.Names).Msg("schema validation failed")
		return form.ResolverResult{
			Values: map[string]any{},
			Errors: form.ErrorsFromIssues(issues, opts),
		}, nil
	}
	return form.ResolverResult{Values: out}, nil
}

// checkField returns the coerced value and every constraint the value
// violates, in a fixed order: required, type, range, length, pattern,
// one_of.
func (r *Resolver) checkField(path string, f *Field, v any) (any, []form.Issue) {
	var issues []form.Issue
	add := func(typ, constraint, fallback string) {
		issues = append(issues, form.Issue{Path: path, Message: f.message(constraint, fallback), Type: typ})
	}

	if values.IsEmpty(v) {
		if f.Required {
			add(form.RuleRequired, "required", "is required")
		}
		return nil, issues
	}

	v, ok := coerce(f.Type, v)
	if !ok {
		add(IssueType, "type", "must be a "+f.Type)
		return nil, issues
	}

	if n, isNum := values.ToFloat(v); isNum {
		if f.Min != nil && n < *f.Min {
			add(form.RuleMin, "min", fmt.Sprintf("must be at least %v", *f.Min))
		}
		if f.Max != nil && n > *f.Max {
			add(form.RuleMax, "max", fmt.Sprintf("must be at most %v", *f.Max))
		}
	}

	if n, hasLen := length(v); hasLen {
		if f.MinLength != nil && n < *f.MinLength {
			add(form.RuleMinLength, "min_length", fmt.Sprintf("must be at least %d characters", *f.MinLength))
		}
		if f.MaxLength != nil && n > *f.MaxLength {
			add(form.RuleMaxLength, "max_length", fmt.Sprintf("must be at most %d characters", *f.MaxLength))
		}
	}

	if re := r.patterns[path]; re != nil {
		if s, isStr := v.(string); isStr && !re.MatchString(s) {
			add(form.RulePattern, "pattern", "does not match pattern")
		}
	}

	if len(f.OneOf) > 0 && !oneOf(v, f.OneOf) {
		opts := make([]string, len(f.OneOf))
		for i, o := range f.OneOf {
			opts[i] = fmt.Sprint(o)
		}
		add(IssueOneOf, "one_of", "must be one of: "+strings.Join(opts, ", "))
	}
	return v, issues
}

var dateLayouts = []string{time.RFC3339Nano, "2006-01-02T15:04", "2006-01-02"}

// coerce converts v to the field type, reporting false when it cannot.
func coerce(typ string, v any) (any, bool) {
	switch typ {
	case "":
		return v, true
	case TypeString:
		_, ok := v.(string)
		return v, ok
	case TypeNumber:
		if n, ok := values.ToFloat(v); ok {
			return n, true
		}
		if s, ok := v.(string); ok {
			n, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
			return n, err == nil
		}
	case TypeBoolean:
		switch b := v.(type) {
		case bool:
			return b, true
		case string:
			parsed, err := strconv.ParseBool(b)
			return parsed, err == nil
		}
	case TypeDate:
		switch t := v.(type) {
		case time.Time:
			return t, true
		case string:
			for _, layout := range dateLayouts {
				if parsed, err := time.Parse(layout, t); err == nil {
					return parsed, true
				}
			}
		}
	case TypeList:
		_, ok := v.([]any)
		return v, ok
	case TypeObject:
		_, ok := v.(map[string]any)
		return v, ok
	}
	return v, false
}

func length(v any) (int, bool) {
	switch n := v.(type) {
	case string:
		return utf8.RuneCountInString(n), true
	case []any:
		return len(n), true
	}
	return 0, false
}

func oneOf(v any, options []any) bool {
	for _, o := range options {
		if values.Equal(v, o) {
			return true
		}
	}
	return false
}

func orDefault(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}
