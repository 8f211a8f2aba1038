package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRegistersWithRegistry(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := New(reg)

	c.Validations.WithLabelValues(StrategyBuiltIn, Outcome(true)).Inc()
	c.ValidationDuration.WithLabelValues(StrategyBuiltIn).Observe(0.002)
	c.Submits.WithLabelValues(Outcome(false)).Inc()
	c.StaleResults.Inc()
	c.Subscribers.Set(3)
	c.Notifications.Inc()

	families, err := reg.Gather()
	require.NoError(t, err)

	names := make(map[string]bool)
	for _, f := range families {
		names[f.GetName()] = true
	}
	for _, want := range []string{
		"form_validations_total",
		"form_validation_duration_seconds",
		"form_submits_total",
		"form_stale_validation_results_total",
		"form_subscribers",
		"form_notifications_total",
	} {
		assert.True(t, names[want], "missing metric family %s", want)
	}
}

func TestSeparateRegistriesDoNotCollide(t *testing.T) {
	assert.NotPanics(t, func() {
		New(prometheus.NewRegistry())
		New(prometheus.NewRegistry())
	})
}

func TestOutcome(t *testing.T) {
	assert.Equal(t, "valid", Outcome(true))
	assert.Equal(t, "invalid", Outcome(false))
}
