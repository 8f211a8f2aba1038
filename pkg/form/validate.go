package form

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/go-drift/formctl/pkg/errors"
	"github.com/go-drift/formctl/pkg/values"
)

// validateField runs the built-in rules of one field against formValues.
// Rules run in order: required, min/max, minLength/maxLength, pattern,
// then custom validators. With criteriaAll every rule runs and the
// failures are merged into Types; otherwise the first failure is returned.
func validateField(ctx context.Context, f fieldEntry, disabled bool, formValues map[string]any, criteriaAll, isFieldArray bool) *FieldError {
	r := f.rules
	if !f.mount || disabled {
		return nil
	}
	input := values.Get(formValues, f.name, nil)
	ref := f.focusRef()
	isGroup := len(f.refs) > 0
	isCheckbox := isGroup && f.inputType == "checkbox"
	isRadio := isGroup && f.inputType == "radio"

	var fe *FieldError
	record := func(typ, message string) {
		var types map[string][]string
		if criteriaAll {
			types = make(map[string][]string)
			if fe != nil {
				for k, v := range fe.Types {
					types[k] = v
				}
			}
			types[typ] = []string{message}
		}
		fe = &FieldError{Type: typ, Message: message, Ref: ref, Types: types}
	}

	n, isList := listLen(input)
	s, isString := input.(string)
	isEmpty := (r.ValueAsNumber && input == nil) || (isString && s == "") || (isList && n == 0)

	if r.Required.enabled() {
		var missing bool
		switch {
		case isFieldArray:
			missing = !isList || n == 0
		case isCheckbox:
			missing = !truthy(input)
		case isRadio:
			missing = input == nil || input == ""
		default:
			b, isBool := input.(bool)
			missing = isEmpty || input == nil || (isBool && !b)
		}
		if missing {
			record(RuleRequired, r.Required.Message)
			if !criteriaAll {
				return fe
			}
		}
	}

	if !isEmpty && input != nil && (r.Min.Value != nil || r.Max.Value != nil) {
		exceedMin, exceedMax := compareBounds(input, r.Min.Value, r.Max.Value, f.inputType)
		if exceedMax || exceedMin {
			if exceedMax {
				record(RuleMax, r.Max.Message)
			} else {
				record(RuleMin, r.Min.Message)
			}
			if !criteriaAll {
				return fe
			}
		}
	}

	if (r.MaxLength.Value != nil || r.MinLength.Value != nil) && !isEmpty && (isString || (isFieldArray && isList)) {
		length := n
		if isString {
			length = utf8.RuneCountInString(s)
		}
		exceedMax := false
		if max, ok := values.ToFloat(r.MaxLength.Value); ok {
			exceedMax = float64(length) > max
		}
		exceedMin := false
		if min, ok := values.ToFloat(r.MinLength.Value); ok {
			exceedMin = float64(length) < min
		}
		if exceedMax || exceedMin {
			if exceedMax {
				record(RuleMaxLength, r.MaxLength.Message)
			} else {
				record(RuleMinLength, r.MinLength.Message)
			}
			if !criteriaAll {
				return fe
			}
		}
	}

	if r.Pattern.Value != nil && !isEmpty && isString && !r.Pattern.Value.MatchString(s) {
		record(RulePattern, r.Pattern.Message)
		if !criteriaAll {
			return fe
		}
	}

	if r.Validate != nil {
		if msg, failed := runValidator(ctx, f.name, r.Validate, input, formValues); failed {
			record(RuleValidate, msg)
			if !criteriaAll {
				return fe
			}
		}
	}

	for _, v := range r.Validators {
		msg, failed := runValidator(ctx, f.name, v.Func, input, formValues)
		if !failed {
			continue
		}
		record(v.Name, msg)
		if !criteriaAll {
			return fe
		}
	}

	return fe
}

// runValidator calls a custom validator, turning a panic into a failure.
func runValidator(ctx context.Context, name string, fn ValidateFunc, input any, formValues map[string]any) (msg string, failed bool) {
	defer func() {
		if p := recover(); p != nil {
			msg, failed = fmt.Sprint(p), true
			errors.Report(&errors.FormError{
				Op:         "form.validate",
				Kind:       errors.KindValidator,
				Field:      name,
				Err:        fmt.Errorf("validator panicked: %v", p),
				StackTrace: errors.CaptureStack(),
			})
		}
	}()
	if fn == nil {
		return "", false
	}
	if err := fn(ctx, input, formValues); err != nil {
		return err.Error(), true
	}
	return "", false
}

// compareBounds checks input against min and max. Numbers and numeric
// strings compare numerically. Other values compare as dates, except
// "time" inputs (clock time) and "week" inputs (string order).
func compareBounds(input, min, max any, inputType string) (exceedMin, exceedMax bool) {
	if num, ok := numeric(input); ok {
		if m, ok := numeric(max); ok {
			exceedMax = num > m
		}
		if m, ok := numeric(min); ok {
			exceedMin = num < m
		}
		return exceedMin, exceedMax
	}

	str, _ := input.(string)
	cmp := func(bound any) (int, bool) {
		switch inputType {
		case "time":
			a, ok1 := clockTime(str)
			b, ok2 := boundString(bound)
			if !ok1 || !ok2 {
				return 0, false
			}
			bt, ok := clockTime(b)
			if !ok {
				return 0, false
			}
			return compareDurations(a, bt), true
		case "week":
			b, ok := boundString(bound)
			if !ok || str == "" {
				return 0, false
			}
			return strings.Compare(str, b), true
		}
		a, ok1 := dateOf(input)
		b, ok2 := dateOf(bound)
		if !ok1 || !ok2 {
			return 0, false
		}
		return a.Compare(b), true
	}
	if max != nil {
		if d, ok := cmp(max); ok {
			exceedMax = d > 0
		}
	}
	if min != nil {
		if d, ok := cmp(min); ok {
			exceedMin = d < 0
		}
	}
	return exceedMin, exceedMax
}

func numeric(v any) (float64, bool) {
	switch n := v.(type) {
	case nil, time.Time:
		return 0, false
	case bool:
		if n {
			return 1, true
		}
		return 0, true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil {
			return 0, false
		}
		return f, true
	}
	f, ok := values.ToFloat(v)
	if ok && math.IsNaN(f) {
		return 0, false
	}
	return f, ok
}

func boundString(v any) (string, bool) {
	s, ok := v.(string)
	return s, ok && s != ""
}

func dateOf(v any) (time.Time, bool) {
	switch t := v.(type) {
	case time.Time:
		return t, !t.IsZero()
	case string:
		return parseDate(t)
	}
	return time.Time{}, false
}

func clockTime(s string) (time.Duration, bool) {
	for _, layout := range []string{"15:04:05", "15:04"} {
		if t, err := time.Parse(layout, s); err == nil {
			return time.Duration(t.Hour())*time.Hour +
				time.Duration(t.Minute())*time.Minute +
				time.Duration(t.Second())*time.Second, true
		}
	}
	return 0, false
}

func compareDurations(a, b time.Duration) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

func truthy(v any) bool {
	switch x := v.(type) {
	case nil:
		return false
	case bool:
		return x
	case string:
		return x != ""
	}
	if n, ok := listLen(v); ok {
		return n > 0
	}
	if f, ok := values.ToFloat(v); ok {
		return f != 0 && !math.IsNaN(f)
	}
	return true
}
