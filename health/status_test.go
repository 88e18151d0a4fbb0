package health

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStatusPredicates(t *testing.T) {
	assert.True(t, NewHealthy("session", "connected").IsHealthy())
	assert.True(t, NewDegraded("session", "reconnecting").IsDegraded())
	assert.True(t, NewUnhealthy("session", "permanently failed").IsUnhealthy())
}

func TestAggregate_UnhealthyDominates(t *testing.T) {
	agg := Aggregate("session", []Status{
		NewHealthy("transport", "open"),
		NewUnhealthy("reconnector", "budget exhausted"),
		NewDegraded("registry", "flush pending"),
	})

	assert.True(t, agg.IsUnhealthy())
	assert.Contains(t, agg.Message, "reconnector")
	assert.Len(t, agg.SubStatuses, 3)
}

func TestAggregate_DegradedBeatsHealthy(t *testing.T) {
	agg := Aggregate("session", []Status{
		NewHealthy("transport", "open"),
		NewDegraded("reconnector", "attempt 2 of 3"),
	})

	assert.True(t, agg.IsDegraded())
}

func TestAggregate_AllHealthy(t *testing.T) {
	agg := Aggregate("session", []Status{NewHealthy("transport", "open")})
	assert.True(t, agg.IsHealthy())
}

func TestWithMetrics(t *testing.T) {
	s := NewHealthy("session", "connected").WithMetrics(&Metrics{PendingRequests: 2})
	assert.Equal(t, 2, s.Metrics.PendingRequests)
}
