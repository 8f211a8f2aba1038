package form

import (
	"math/bits"
	"strings"
)

// StateField identifies a slice of FormState. Subscribers declare the
// fields they read as an interest set and are only notified when a change
// touches one of them.
type StateField uint32

const (
	FieldIsDirty StateField = 1 << iota
	FieldDirtyFields
	FieldTouchedFields
	FieldValidatingFields
	FieldIsValidating
	FieldIsValid
	FieldErrors
	FieldIsSubmitting
	FieldIsSubmitted
	FieldIsSubmitSuccessful
	FieldSubmitCount
	FieldDisabled
	FieldIsReady
	FieldValues
)

// AllState is the interest set of a subscriber that reads everything.
const AllState = FieldValues<<1 - 1

// trackedStateCount is the number of proxy-tracked fields. A change touching
// at least this many fields is broadcast to every subscriber.
const trackedStateCount = 7

var stateFieldNames = []string{
	"isDirty", "dirtyFields", "touchedFields", "validatingFields",
	"isValidating", "isValid", "errors", "isSubmitting", "isSubmitted",
	"isSubmitSuccessful", "submitCount", "disabled", "isReady", "values",
}

func (f StateField) String() string {
	if f == 0 {
		return "none"
	}
	var parts []string
	for i, name := range stateFieldNames {
		if f&(1<<i) != 0 {
			parts = append(parts, name)
		}
	}
	return strings.Join(parts, "|")
}

// ParseStateField converts a field name such as "isValid" or "errors".
func ParseStateField(name string) (StateField, bool) {
	for i, n := range stateFieldNames {
		if n == name {
			return 1 << i, true
		}
	}
	return 0, false
}

// FormState is the aggregate status of a form.
type FormState struct {
	IsDirty            bool
	IsValid            bool
	IsValidating       bool
	IsSubmitting       bool
	IsSubmitted        bool
	IsSubmitSuccessful bool
	IsReady            bool
	Disabled           bool
	SubmitCount        int

	DirtyFields      FieldSet
	TouchedFields    FieldSet
	ValidatingFields FieldSet
	Errors           Errors
}

func newFormState() FormState {
	return FormState{
		DirtyFields:      FieldSet{},
		TouchedFields:    FieldSet{},
		ValidatingFields: FieldSet{},
		Errors:           Errors{},
	}
}

func (s FormState) clone() FormState {
	out := s
	out.DirtyFields = s.DirtyFields.clone()
	out.TouchedFields = s.TouchedFields.clone()
	out.ValidatingFields = s.ValidatingFields.clone()
	out.Errors = s.Errors.clone()
	return out
}

// FieldState is the per-field view of FormState.
type FieldState struct {
	Invalid      bool
	IsDirty      bool
	IsTouched    bool
	IsValidating bool
	Error        *FieldError
}

// EventType tells which input event caused a notification.
type EventType string

const (
	EventChange EventType = "change"
	EventBlur   EventType = "blur"
)

// Event is an input event reported by a bound field.
type Event struct {
	Name  string
	Type  EventType
	Value any
}

// StateEvent is delivered to subscribers. Name is empty for form wide
// changes. State, Values and DefaultValues are snapshots owned by the
// receiver; Values is only set when the change touched values.
type StateEvent struct {
	Name          string
	Type          EventType
	Changed       StateField
	State         FormState
	Values        map[string]any
	DefaultValues map[string]any
}

// shouldSubscribeByName matches a change on signal against a subscriber's
// name filter. An empty filter or an unnamed change always matches.
func shouldSubscribeByName(names []string, signal string, exact bool) bool {
	if len(names) == 0 || signal == "" {
		return true
	}
	for _, n := range names {
		if n == signal {
			return true
		}
		if !exact && (strings.HasPrefix(n, signal) || strings.HasPrefix(signal, n)) {
			return true
		}
	}
	return false
}

// shouldRenderFormState decides whether a subscriber with the given
// interest set is notified of a change. A name-only change, or one touching
// most of the tracked state, reaches everyone. A root subscriber without an
// interest set is notified of every change.
func shouldRenderFormState(changed, interest StateField, root bool) bool {
	if changed == 0 {
		return true
	}
	if bits.OnesCount32(uint32(changed)) >= trackedStateCount {
		return true
	}
	if root && interest == 0 {
		return true
	}
	return changed&interest != 0
}
