// Package resolver validates form values against a declarative YAML schema.
//
// A schema lists per-field constraints (type, required, min/max,
// min_length/max_length, pattern, one_of) and cross-field rules written as
// expr-lang expressions over the value tree:
//
//	version: v1.0.0
//	fields:
//	  email:
//	    type: string
//	    required: true
//	    pattern: '^[^@]+@[^@]+$'
//	    messages:
//	      pattern: not an email
//	  age:
//	    type: number
//	    min: 18
//	rules:
//	  - path: confirm
//	    expr: confirm == password
//	    message: passwords differ
//
// A [Resolver] built from a schema implements form.Resolver.
package resolver

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"golang.org/x/mod/semver"
	"gopkg.in/yaml.v3"

	"github.com/go-drift/formctl/pkg/values"
)

// SupportedMajor is the schema major version this package understands.
const SupportedMajor = "v1"

// Field types.
const (
	TypeString  = "string"
	TypeNumber  = "number"
	TypeBoolean = "boolean"
	TypeDate    = "date"
	TypeList    = "list"
	TypeObject  = "object"
)

// Schema is a parsed schema document.
type Schema struct {
	Version string            `yaml:"version,omitempty"`
	Fields  map[string]*Field `yaml:"fields"`
	Rules   []Rule            `yaml:"rules,omitempty"`
}

// Field holds the constraints of one value path.
type Field struct {
	Type      string   `yaml:"type,omitempty"`
	Required  bool     `yaml:"required,omitempty"`
	Min       *float64 `yaml:"min,omitempty"`
	Max       *float64 `yaml:"max,omitempty"`
	MinLength *int     `yaml:"min_length,omitempty"`
	MaxLength *int     `yaml:"max_length,omitempty"`
	Pattern   string   `yaml:"pattern,omitempty"`
	OneOf     []any    `yaml:"one_of,omitempty"`
	// Messages overrides the default message per constraint name
	// (required, type, min, max, min_length, max_length, pattern, one_of).
	Messages map[string]string `yaml:"messages,omitempty"`
}

// Rule is a cross-field check. Expr must evaluate to a boolean; false
// reports Message at Path.
type Rule struct {
	Path    string `yaml:"path"`
	Expr    string `yaml:"expr"`
	Message string `yaml:"message,omitempty"`
	Type    string `yaml:"type,omitempty"`
}

// ParseFile parses a schema from a YAML file.
func ParseFile(path string) (*Schema, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read schema %s: %w", path, err)
	}
	return Parse(data)
}

// Parse parses a schema from YAML bytes.
func Parse(data []byte) (*Schema, error) {
	var s Schema
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("parse schema: %w", err)
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

// Validate checks the schema's version and field definitions.
func (s *Schema) Validate() error {
	if err := CheckVersion(s.Version); err != nil {
		return err
	}

	var errs []string
	for _, name := range s.Paths() {
		f := s.Fields[name]
		if f == nil {
			continue
		}
		switch f.Type {
		case "", TypeString, TypeNumber, TypeBoolean, TypeDate, TypeList, TypeObject:
		default:
			errs = append(errs, fmt.Sprintf("field %q: unknown type %q", name, f.Type))
		}
		if f.Min != nil && f.Max != nil && *f.Min > *f.Max {
			errs = append(errs, fmt.Sprintf("field %q: min greater than max", name))
		}
		if f.MinLength != nil && f.MaxLength != nil && *f.MinLength > *f.MaxLength {
			errs = append(errs, fmt.Sprintf("field %q: min_length greater than max_length", name))
		}
	}
	for i, r := range s.Rules {
		if strings.TrimSpace(r.Expr) == "" {
			errs = append(errs, fmt.Sprintf("rule %d: expr is required", i))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid schema:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

// Paths returns the normalised field paths in sorted order.
func (s *Schema) Paths() []string {
	out := make([]string, 0, len(s.Fields))
	for name := range s.Fields {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// CheckVersion accepts an empty version or a semantic version with a
// supported major.
func CheckVersion(v string) error {
	if v == "" {
		return nil
	}
	if !strings.HasPrefix(v, "v") {
		v = "v" + v
	}
	if !semver.IsValid(v) {
		return fmt.Errorf("invalid schema version %q", v)
	}
	if major := semver.Major(v); major != SupportedMajor {
		return fmt.Errorf("unsupported schema version %s (want %s.x)", v, SupportedMajor)
	}
	return nil
}

func (f *Field) message(constraint, fallback string) string {
	if m, ok := f.Messages[constraint]; ok && m != "" {
		return m
	}
	return fallback
}

func normalizeFields(in map[string]*Field) map[string]*Field {
	out := make(map[string]*Field, len(in))
	for name, f := range in {
		out[values.Normalize(name)] = f
	}
	return out
}
