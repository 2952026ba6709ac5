package auth

import (
	"context"
	"errors"

	"github.com/prometheus/client_golang/prometheus"
)

const metricsNamespace = "tenant_auth"

type metricsSink struct {
	events *prometheus.CounterVec
}

// NewMetricsSink returns a sink counting activity events by type. It
// reuses a counter already registered under the same name.
func NewMetricsSink(reg prometheus.Registerer) (ActivitySink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	events := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "activity_events_total",
			Help:      "Total number of identity activity events.",
		},
		[]string{"event_type"},
	)

	if err := reg.Register(events); err != nil {
		var are prometheus.AlreadyRegisteredError
		if !errors.As(err, &are) {
			return nil, internalError(err, "failed to register activity metrics")
		}
		existing, ok := are.ExistingCollector.(*prometheus.CounterVec)
		if !ok {
			return nil, internalError(err, "activity metrics registered with another type")
		}
		events = existing
	}

	return metricsSink{events: events}, nil
}

func (s metricsSink) Record(_ context.Context, event ActivityEvent) error {
	s.events.WithLabelValues(string(event.EventType)).Inc()
	return nil
}
