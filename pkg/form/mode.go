package form

import "fmt"

// Mode controls when field validation runs in response to input events.
type Mode string

const (
	// OnSubmit validates only when the form is submitted.
	OnSubmit Mode = "onSubmit"
	// OnBlur validates a field when it loses focus.
	OnBlur Mode = "onBlur"
	// OnChange validates a field on every change.
	OnChange Mode = "onChange"
	// OnTouched validates on the first blur, then on every change.
	OnTouched Mode = "onTouched"
	// All validates on both change and blur.
	All Mode = "all"
)

// ParseMode converts a mode name. The empty string yields OnSubmit.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case "":
		return OnSubmit, nil
	case OnSubmit, OnBlur, OnChange, OnTouched, All:
		return Mode(s), nil
	}
	return "", fmt.Errorf("unknown validation mode %q", s)
}

// Criteria controls how many rule failures are collected per field.
type Criteria string

const (
	// CriteriaFirstError stops at the first failing rule.
	CriteriaFirstError Criteria = "firstError"
	// CriteriaAll evaluates every rule and merges the failures into
	// FieldError.Types.
	CriteriaAll Criteria = "all"
)

// ParseCriteria converts a criteria name. The empty string yields
// CriteriaFirstError.
func ParseCriteria(s string) (Criteria, error) {
	switch Criteria(s) {
	case "", CriteriaFirstError:
		return CriteriaFirstError, nil
	case CriteriaAll:
		return CriteriaAll, nil
	}
	return "", fmt.Errorf("unknown criteria mode %q", s)
}

type validationModes struct {
	onSubmit  bool
	onBlur    bool
	onChange  bool
	all       bool
	onTouched bool
}

func modesOf(m Mode) validationModes {
	return validationModes{
		onSubmit:  m == "" || m == OnSubmit,
		onBlur:    m == OnBlur,
		onChange:  m == OnChange,
		all:       m == All,
		onTouched: m == OnTouched,
	}
}

// skipValidation decides whether an input event should not run field
// validation. Before the first submit the configured mode applies; after
// it, the re-validate mode does.
func skipValidation(isBlur, isTouched, isSubmitted bool, reValidate, mode validationModes) bool {
	switch {
	case mode.all:
		return false
	case !isSubmitted && mode.onTouched:
		return !(isTouched || isBlur)
	case isSubmitted && reValidate.onBlur, !isSubmitted && mode.onBlur:
		return !isBlur
	case isSubmitted && reValidate.onChange, !isSubmitted && mode.onChange:
		return isBlur
	}
	return true
}
