package form

import (
	"context"
	"math"
	"time"

	"github.com/go-drift/formctl/pkg/metrics"
	"github.com/go-drift/formctl/pkg/values"
)

type delayedError struct {
	name string
	err  *FieldError
}

// handleEvent processes a change or blur reported by a bound input.
func (c *Control) handleEvent(ctx context.Context, ev Event) error {
	name := values.Normalize(ev.Name)
	isBlur := ev.Type == EventBlur
	defer c.flush()

	c.mu.Lock()
	field := c.fields[name]
	if field == nil {
		c.mu.Unlock()
		return nil
	}
	c.mounted = true

	var fieldValue any
	if isBlur {
		fieldValue = values.Get(c.formValues, name, nil)
	} else {
		fieldValue = values.Clone(getFieldValueAs(ev.Value, field.rules))
	}
	ev.Name = name
	ev.Value = fieldValue

	rules := field.rules
	hasValidation := field.mount && rules.hasValidation()
	shouldSkip := (!hasValidation && c.opts.Resolver == nil && !c.state.Errors.Has(name) && len(rules.Deps) == 0) ||
		skipValidation(isBlur, c.state.TouchedFields.Has(name), c.state.IsSubmitted, c.reValidate, c.modes)
	watched := c.isWatchedLocked(name, isBlur)

	if !isBlur {
		c.storeLocked(name, fieldValue)
	}
	gen := c.generations[name]

	if isBlur {
		if rules.OnBlur != nil {
			cb := rules.OnBlur
			c.deferLocked(func() { cb(ev) })
		}
		c.applyDelayedLocked()
	} else if rules.OnChange != nil {
		cb := rules.OnChange
		c.deferLocked(func() { cb(ev) })
	}

	fieldState := c.updateTouchAndDirtyLocked(name, fieldValue, isBlur, false, false)
	shouldRender := fieldState != 0 || watched

	if !isBlur {
		c.publishLocked(name, ev.Type, FieldValues)
	}

	if shouldSkip {
		needValid := false
		if c.interest&FieldIsValid != 0 {
			if c.opts.Mode == OnBlur {
				needValid = isBlur
			} else {
				needValid = !isBlur
			}
		}
		if shouldRender {
			changed := fieldState
			if watched {
				changed = 0
			}
			c.publishLocked(name, ev.Type, changed)
		}
		c.mu.Unlock()
		if needValid {
			return c.setValid(ctx, false)
		}
		return nil
	}

	if !isBlur && watched {
		c.publishLocked(name, ev.Type, 0)
	}

	errName := name
	var fieldErr *FieldError
	var isValid, haveIsValid bool

	if c.opts.Resolver != nil {
		c.mu.Unlock()
		res, err := c.runSchema(ctx, []string{name})
		if err != nil {
			return err
		}
		c.mu.Lock()
		if !c.isCurrentLocked(name, gen, fieldValue) {
			c.staleResult(name)
			c.mu.Unlock()
			return nil
		}
		prevName, _ := c.schemaErrorLookupLocked(c.state.Errors, name)
		errName, fieldErr = c.schemaErrorLookupLocked(res.Errors, prevName)
		isValid, haveIsValid = len(res.Errors) == 0, true
	} else {
		snap := field.snapshot()
		disabled := c.isDisabledLocked(name)
		isArray := c.names.array.has(name)
		criteriaAll := c.opts.CriteriaMode == CriteriaAll
		formValues := values.CloneMap(c.formValues)
		c.updateIsValidatingLocked([]string{name}, true)
		c.mu.Unlock()
		c.flush()

		start := time.Now()
		fieldErr = validateField(ctx, snap, disabled, formValues, criteriaAll, isArray)
		c.observeValidation(metrics.StrategyBuiltIn, fieldErr == nil, start)

		c.mu.Lock()
		c.updateIsValidatingLocked([]string{name}, false)
		if !c.isCurrentLocked(name, gen, fieldValue) {
			c.staleResult(name)
			c.mu.Unlock()
			return nil
		}
		if isArray && fieldErr != nil {
			errName = name + "." + RootError
		}
		if fieldErr != nil {
			isValid, haveIsValid = false, true
		} else if c.interest&FieldIsValid != 0 {
			c.mu.Unlock()
			isValid = c.executeBuiltInValidation(ctx, nil, true)
			haveIsValid = true
			c.mu.Lock()
		}
	}

	deps := append([]string(nil), rules.Deps...)
	c.shouldRenderByErrorLocked(errName, haveIsValid, isValid, fieldErr, fieldState, isBlur)
	c.mu.Unlock()

	if len(deps) > 0 {
		if _, err := c.Trigger(ctx, TriggerOptions{}, deps...); err != nil {
			return err
		}
	}
	return nil
}

// isCurrentLocked reports whether a validation result for name, started
// at generation gen on value validated, may still be applied.
func (c *Control) isCurrentLocked(name string, gen uint64, validated any) bool {
	if c.generations[name] != gen {
		return false
	}
	if f, ok := validated.(float64); ok && math.IsNaN(f) {
		return true
	}
	if t, ok := validated.(time.Time); ok && t.IsZero() {
		return true
	}
	return values.Equal(validated, values.Get(c.formValues, name, nil))
}

// shouldRenderByErrorLocked applies a field's validation result to the
// errors and isValid, honouring DelayError, and notifies subscribers when
// something changed.
func (c *Control) shouldRenderByErrorLocked(name string, haveIsValid, isValid bool, fe *FieldError, fieldState StateField, isBlur bool) {
	prev := c.state.Errors[name]
	validChanged := haveIsValid && c.interest&FieldIsValid != 0 && c.state.IsValid != isValid

	if c.opts.DelayError > 0 && fe != nil {
		c.scheduleDelayedLocked(name, fe)
		if isBlur {
			c.applyDelayedLocked()
		}
	} else {
		c.stopDelayLocked()
		if fe != nil {
			c.state.Errors[name] = fe
		} else {
			c.state.Errors.unset(name)
		}
	}

	errChanged := !prev.equal(c.state.Errors[name])
	if !errChanged && !validChanged && fieldState == 0 {
		return
	}
	changed := fieldState | FieldErrors
	if validChanged {
		c.state.IsValid = isValid
		changed |= FieldIsValid
	}
	c.publishLocked(name, "", changed)
}

func (c *Control) scheduleDelayedLocked(name string, fe *FieldError) {
	c.stopDelayLocked()
	d := &delayedError{name: name, err: fe}
	c.delayed = d
	c.delayTimer = c.clock.AfterFunc(c.opts.DelayError, func() {
		defer c.flush()
		c.mu.Lock()
		defer c.mu.Unlock()
		if c.delayed != d {
			return
		}
		c.applyDelayedLocked()
	})
}

// applyDelayedLocked shows a pending delayed error immediately.
func (c *Control) applyDelayedLocked() {
	d := c.delayed
	if d == nil {
		return
	}
	c.stopDelayLocked()
	c.state.Errors[d.name] = d.err
	c.publishLocked(d.name, "", FieldErrors)
}

func (c *Control) stopDelayLocked() {
	if c.delayTimer != nil {
		c.delayTimer.Stop()
		c.delayTimer = nil
	}
	c.delayed = nil
}
