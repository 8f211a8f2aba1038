package form

import (
	"context"
	"strings"

	"github.com/go-drift/formctl/pkg/values"
)

// FieldInfo describes a registered field to a resolver.
type FieldInfo struct {
	Name  string
	Ref   Ref
	Rules Rules
}

// ResolverOptions is passed to Resolver.Resolve.
type ResolverOptions struct {
	Criteria Criteria
	// Names are the fields being validated; all mounted fields for a
	// whole-form run.
	Names  []string
	Fields map[string]FieldInfo
}

// ResolverResult is a resolver's verdict. Values is the validated (and
// possibly transformed) value tree submitted on success.
type ResolverResult struct {
	Values map[string]any
	Errors Errors
}

// Resolver validates the whole value tree against a schema. A returned
// error means the resolver itself failed, not that values are invalid.
type Resolver interface {
	Resolve(ctx context.Context, vals map[string]any, formContext any, opts ResolverOptions) (ResolverResult, error)
}

// ResolverFunc adapts a function to the Resolver interface.
type ResolverFunc func(ctx context.Context, vals map[string]any, formContext any, opts ResolverOptions) (ResolverResult, error)

func (f ResolverFunc) Resolve(ctx context.Context, vals map[string]any, formContext any, opts ResolverOptions) (ResolverResult, error) {
	return f(ctx, vals, formContext, opts)
}

// Issue is one schema violation.
type Issue struct {
	Path    string
	Message string
	Type    string
}

// ErrorsFromIssues converts schema issues into form errors. The first issue
// per path supplies the type and message; with CriteriaAll every issue is
// also collected into Types. An issue on a path that is the parent of a
// validated field is stored as that path's root error.
func ErrorsFromIssues(issues []Issue, opts ResolverOptions) Errors {
	flat := make(Errors)
	var order []string
	for _, is := range issues {
		p := values.Normalize(is.Path)
		e, ok := flat[p]
		if !ok {
			e = &FieldError{Type: is.Type, Message: is.Message}
			flat[p] = e
			order = append(order, p)
		}
		if opts.Criteria == CriteriaAll {
			if e.Types == nil {
				e.Types = make(map[string][]string)
			}
			e.Types[is.Type] = append(e.Types[is.Type], is.Message)
		}
	}

	names := opts.Names
	if len(names) == 0 {
		names = order
	}
	out := make(Errors, len(flat))
	for _, p := range order {
		e := flat[p]
		if fi, ok := opts.Fields[p]; ok {
			e.Ref = fi.Ref
		}
		if isParentOfAny(p, names) {
			out[p+"."+RootError] = e
		} else {
			out[p] = e
		}
	}
	return out
}

func isParentOfAny(path string, names []string) bool {
	prefix := path + "."
	for _, n := range names {
		if strings.HasPrefix(n, prefix) {
			return true
		}
	}
	return false
}
