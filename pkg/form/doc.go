// Package form implements a headless form control engine.
//
// A [Control] owns the registry of fields, the live and default value
// trees, the aggregate [FormState] and a subscription bus. Inputs bind to
// it through a [Binding] (from [Control.Register]) or a [Controller], and
// report changes and blurs; the control decides whether to validate based
// on its [Mode], updates dirty/touched/error state and notifies only the
// subscribers whose name filter and interest set match the change.
//
// Validation is either rule based ([Rules]: required, min/max,
// minLength/maxLength, pattern, custom validators) or delegated to a
// [Resolver] that validates the whole value tree against a schema.
//
// Example:
//
//	ctl := form.New(form.Options{Mode: form.OnChange})
//	email := ctl.Register("email", form.Rules{
//	    Required: form.Required("Email required"),
//	})
//	ctl.Mount(ctx)
//
//	email.OnChange(ctx, "")
//	ctl.FormState().Errors["email"].Message // "Email required"
//
// Values are nested map[string]any trees addressed by dotted paths
// ("address.city", "items.0.name"); see package values.
//
// A Control is safe for concurrent use. Validators and resolvers run
// without holding the control's lock; a result is applied only if the
// field has not been written since the run started. Subscriber callbacks,
// focus requests and ref updates run after the lock is released, in the
// order they were produced, so callbacks may call back into the control.
package form
