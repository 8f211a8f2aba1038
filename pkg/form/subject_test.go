package form

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSubjectDeliversInOrder(t *testing.T) {
	var s Subject[int]
	var got []string
	s.Subscribe(func(v int) { got = append(got, "a") })
	s.Subscribe(func(v int) { got = append(got, "b") })

	s.Next(1)
	assert.Equal(t, []string{"a", "b"}, got)
}

func TestSubjectUnsubscribe(t *testing.T) {
	var s Subject[string]
	calls := 0
	sub := s.Subscribe(func(string) { calls++ })

	s.Next("x")
	sub.Unsubscribe()
	sub.Unsubscribe()
	s.Next("y")

	assert.Equal(t, 1, calls)
	assert.Equal(t, 0, s.Len())
}

func TestSubjectUnsubscribeDuringNext(t *testing.T) {
	var s Subject[int]
	var second Subscription
	calls := 0
	s.Subscribe(func(int) { second.Unsubscribe() })
	second = s.Subscribe(func(int) { calls++ })

	// The snapshot taken by Next still includes the second observer.
	s.Next(1)
	s.Next(2)
	assert.Equal(t, 1, calls)
}

func TestSubjectUnsubscribeAll(t *testing.T) {
	var s Subject[int]
	s.Subscribe(func(int) {})
	s.Subscribe(func(int) {})
	s.UnsubscribeAll()
	assert.Equal(t, 0, s.Len())
}
