package form

import (
	"context"
	"regexp"
)

// Rule is a rule parameter paired with the message reported when the rule
// fails. A nil Value disables the rule.
type Rule struct {
	Value   any
	Message string
}

func (r Rule) enabled() bool {
	if b, ok := r.Value.(bool); ok {
		return b
	}
	return r.Value != nil
}

// Required returns a required rule reporting message.
func Required(message string) Rule {
	return Rule{Value: true, Message: message}
}

// Min returns a lower bound rule. The bound is a number, or a date or time
// string compared against date-like values.
func Min(bound any, message string) Rule {
	return Rule{Value: bound, Message: message}
}

// Max returns an upper bound rule.
func Max(bound any, message string) Rule {
	return Rule{Value: bound, Message: message}
}

// MinLength returns a minimum length rule for strings and field arrays.
func MinLength(n int, message string) Rule {
	return Rule{Value: n, Message: message}
}

// MaxLength returns a maximum length rule for strings and field arrays.
func MaxLength(n int, message string) Rule {
	return Rule{Value: n, Message: message}
}

// PatternRule requires string values to match a regular expression.
type PatternRule struct {
	Value   *regexp.Regexp
	Message string
}

// Pattern compiles expr into a PatternRule. It panics if expr is invalid.
func Pattern(expr, message string) PatternRule {
	return PatternRule{Value: regexp.MustCompile(expr), Message: message}
}

// ValidateFunc validates a single field value. A nil return means valid;
// otherwise the error text becomes the field error message. values is a
// snapshot of the whole form.
type ValidateFunc func(ctx context.Context, value any, values map[string]any) error

// NamedValidator is a custom validator whose failures are reported under
// Name as the error type.
type NamedValidator struct {
	Name string
	Func ValidateFunc
}

// Rules configures a registered field.
type Rules struct {
	Required  Rule
	Min       Rule
	Max       Rule
	MinLength Rule
	MaxLength Rule
	Pattern   PatternRule

	// Validate runs after the built-in rules and reports type "validate".
	Validate ValidateFunc
	// Validators run in order after Validate.
	Validators []NamedValidator

	// Deps lists fields re-validated after this field validates on change.
	Deps []string

	// Value is the initial value written when the field first registers.
	Value any
	// Disabled overrides the form level disabled flag when set.
	Disabled *bool

	ValueAsNumber bool
	ValueAsDate   bool
	SetValueAs    func(any) any

	ShouldUnregister bool
	// FieldArray marks the field as a list of items: required means
	// non-empty and the length rules apply to the list.
	FieldArray bool

	OnChange func(Event)
	OnBlur   func(Event)
}

// merge overlays the set fields of next onto r.
func (r Rules) merge(next Rules) Rules {
	if next.Required.Value != nil {
		r.Required = next.Required
	}
	if next.Min.Value != nil {
		r.Min = next.Min
	}
	if next.Max.Value != nil {
		r.Max = next.Max
	}
	if next.MinLength.Value != nil {
		r.MinLength = next.MinLength
	}
	if next.MaxLength.Value != nil {
		r.MaxLength = next.MaxLength
	}
	if next.Pattern.Value != nil {
		r.Pattern = next.Pattern
	}
	if next.Validate != nil {
		r.Validate = next.Validate
	}
	if next.Validators != nil {
		r.Validators = next.Validators
	}
	if next.Deps != nil {
		r.Deps = next.Deps
	}
	if next.Value != nil {
		r.Value = next.Value
	}
	if next.Disabled != nil {
		r.Disabled = next.Disabled
	}
	if next.SetValueAs != nil {
		r.SetValueAs = next.SetValueAs
	}
	if next.OnChange != nil {
		r.OnChange = next.OnChange
	}
	if next.OnBlur != nil {
		r.OnBlur = next.OnBlur
	}
	r.ValueAsNumber = r.ValueAsNumber || next.ValueAsNumber
	r.ValueAsDate = r.ValueAsDate || next.ValueAsDate
	r.ShouldUnregister = r.ShouldUnregister || next.ShouldUnregister
	r.FieldArray = r.FieldArray || next.FieldArray
	return r
}

func (r Rules) hasValidation() bool {
	return r.Required.enabled() ||
		r.Min.Value != nil ||
		r.Max.Value != nil ||
		r.MinLength.Value != nil ||
		r.MaxLength.Value != nil ||
		r.Pattern.Value != nil ||
		r.hasCustomValidation()
}

func (r Rules) hasCustomValidation() bool {
	return r.Validate != nil || len(r.Validators) > 0
}

func (r Rules) disabled() bool {
	return r.Disabled != nil && *r.Disabled
}
