// Package formtest provides helpers for testing code built on form
// controls.
//
// # Quick Start
//
// Create a tester, register fields and drive input events:
//
//	func TestSignup(t *testing.T) {
//	    tester := formtest.NewFormTesterWithT(t, form.Options{Mode: form.OnChange})
//	    tester.Register("email", form.Rules{Required: form.Required("Email required")})
//
//	    tester.Change("email", "")
//	    if got := tester.Error("email"); got != "Email required" {
//	        t.Errorf("email error = %q", got)
//	    }
//	}
//
// # Delayed Errors
//
// The tester's control runs on a form.ManualClock. Advance it to fire timers:
//
//	tester.Clock().Advance(500 * time.Millisecond)
//
// # Recording Notifications
//
// Every tester records the notifications of a root subscriber; use
// Recorder to assert what subscribers saw.
package formtest
