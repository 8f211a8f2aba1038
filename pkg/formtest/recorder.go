package formtest

import (
	"sync"

	"github.com/go-drift/formctl/pkg/form"
)

// Recorder collects the notifications delivered to one subscriber.
type Recorder struct {
	mu     sync.Mutex
	events []form.StateEvent
}

// Record is a subscriber callback that stores ev.
func (r *Recorder) Record(ev form.StateEvent) {
	r.mu.Lock()
	r.events = append(r.events, ev)
	r.mu.Unlock()
}

// Events returns the recorded notifications in delivery order.
func (r *Recorder) Events() []form.StateEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]form.StateEvent(nil), r.events...)
}

// Len returns the number of recorded notifications.
func (r *Recorder) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.events)
}

// Last returns the most recent notification.
func (r *Recorder) Last() (form.StateEvent, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.events) == 0 {
		return form.StateEvent{}, false
	}
	return r.events[len(r.events)-1], true
}

// Touched returns how many notifications changed any of the given fields.
func (r *Recorder) Touched(fields form.StateField) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, ev := range r.events {
		if ev.Changed&fields != 0 {
			n++
		}
	}
	return n
}

// Reset drops the recorded notifications.
func (r *Recorder) Reset() {
	r.mu.Lock()
	r.events = nil
	r.mu.Unlock()
}
