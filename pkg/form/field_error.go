package form

import (
	"sort"
	"strings"

	"github.com/go-drift/formctl/pkg/values"
)

// Built-in rule types reported in FieldError.Type.
const (
	RuleRequired  = "required"
	RuleMin       = "min"
	RuleMax       = "max"
	RuleMinLength = "minLength"
	RuleMaxLength = "maxLength"
	RulePattern   = "pattern"
	RuleValidate  = "validate"
)

// RootError is the path segment holding an error about a container as a
// whole, such as a field array that is too short.
const RootError = "root"

// FieldError describes why a field is invalid.
type FieldError struct {
	Type    string
	Message string
	// Ref is the focus target of the failing field, when known.
	Ref Ref
	// Types holds every failure by rule type when the criteria mode is
	// CriteriaAll.
	Types map[string][]string
}

func (e *FieldError) clone() *FieldError {
	if e == nil {
		return nil
	}
	out := *e
	if e.Types != nil {
		out.Types = make(map[string][]string, len(e.Types))
		for k, v := range e.Types {
			out.Types[k] = append([]string(nil), v...)
		}
	}
	return &out
}

// equal compares errors ignoring the ref.
func (e *FieldError) equal(o *FieldError) bool {
	if e == nil || o == nil {
		return e == o
	}
	if e.Type != o.Type || e.Message != o.Message || len(e.Types) != len(o.Types) {
		return false
	}
	for k, v := range e.Types {
		w, ok := o.Types[k]
		if !ok || len(v) != len(w) {
			return false
		}
		for i := range v {
			if v[i] != w[i] {
				return false
			}
		}
	}
	return true
}

// Errors maps dotted field paths to their errors. A container level error
// is stored under "<path>.root".
type Errors map[string]*FieldError

// Get returns the error stored exactly at name, or nil.
func (e Errors) Get(name string) *FieldError {
	return e[values.Normalize(name)]
}

// Has reports whether name or any path beneath it has an error.
func (e Errors) Has(name string) bool {
	name = values.Normalize(name)
	for k := range e {
		if values.HasPrefix(k, name) {
			return true
		}
	}
	return false
}

// Names returns the errored paths in sorted order.
func (e Errors) Names() []string {
	out := make([]string, 0, len(e))
	for k := range e {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func (e Errors) clone() Errors {
	out := make(Errors, len(e))
	for k, v := range e {
		out[k] = v.clone()
	}
	return out
}

// unset removes name and everything beneath it.
func (e Errors) unset(name string) {
	for k := range e {
		if values.HasPrefix(k, name) {
			delete(e, k)
		}
	}
}

// within returns the errors at or beneath name.
func (e Errors) within(name string) Errors {
	out := make(Errors)
	for k, v := range e {
		if values.HasPrefix(k, name) {
			out[k] = v
		}
	}
	return out
}

// FieldSet is a set of dotted paths, used for dirty, touched and
// validating fields.
type FieldSet map[string]bool

func fieldSetOf(paths []string) FieldSet {
	out := make(FieldSet, len(paths))
	for _, p := range paths {
		out[p] = true
	}
	return out
}

// Has reports whether name or any path beneath it is in the set.
func (s FieldSet) Has(name string) bool {
	name = values.Normalize(name)
	if s[name] {
		return true
	}
	prefix := name + "."
	for k := range s {
		if strings.HasPrefix(k, prefix) {
			return true
		}
	}
	return false
}

// Names returns the members in sorted order.
func (s FieldSet) Names() []string {
	out := make([]string, 0, len(s))
	for k := range s {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func (s FieldSet) unset(name string) {
	for k := range s {
		if values.HasPrefix(k, name) {
			delete(s, k)
		}
	}
}

func (s FieldSet) clone() FieldSet {
	out := make(FieldSet, len(s))
	for k := range s {
		out[k] = true
	}
	return out
}
