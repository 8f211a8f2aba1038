package form

import "sync"

// Subscription is returned by Subject.Subscribe.
type Subscription interface {
	Unsubscribe()
}

// Subject is an ordered list of observers. Next delivers to the observers
// registered when it was called, in registration order.
type Subject[T any] struct {
	mu        sync.Mutex
	observers []*observer[T]
}

type observer[T any] struct {
	next func(T)
	s    *Subject[T]
	once sync.Once
}

func (o *observer[T]) Unsubscribe() {
	o.once.Do(func() { o.s.remove(o) })
}

// Subscribe adds fn and returns a handle that removes it.
func (s *Subject[T]) Subscribe(fn func(T)) Subscription {
	o := &observer[T]{next: fn, s: s}
	s.mu.Lock()
	s.observers = append(s.observers, o)
	s.mu.Unlock()
	return o
}

// Next delivers v to every current observer.
func (s *Subject[T]) Next(v T) {
	s.mu.Lock()
	obs := make([]*observer[T], len(s.observers))
	copy(obs, s.observers)
	s.mu.Unlock()

	for _, o := range obs {
		o.next(v)
	}
}

// Len returns the number of observers.
func (s *Subject[T]) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.observers)
}

// UnsubscribeAll removes every observer.
func (s *Subject[T]) UnsubscribeAll() {
	s.mu.Lock()
	s.observers = nil
	s.mu.Unlock()
}

func (s *Subject[T]) remove(o *observer[T]) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, cur := range s.observers {
		if cur == o {
			s.observers = append(s.observers[:i:i], s.observers[i+1:]...)
			return
		}
	}
}
