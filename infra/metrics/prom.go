package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"

	coremetrics "github.com/tavi-ops/dispatchd/core/metrics"
)

// PromSink records dispatch pipeline events in Prometheus metrics.
type PromSink struct {
	outcomes    *prometheus.CounterVec
	quotes      *prometheus.CounterVec
	escalations *prometheus.CounterVec
	vendors     prometheus.Gauge
}

// NewPromSink registers dispatch metrics on the default Prometheus registerer.
func NewPromSink() (coremetrics.MetricsSink, error) {
	return NewPromSinkWithRegistry(prometheus.DefaultRegisterer)
}

// NewPromSinkWithRegistry registers metrics on the provided registerer.
// A nil registerer defaults to the global Prometheus registerer.
func NewPromSinkWithRegistry(reg prometheus.Registerer) (coremetrics.MetricsSink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	outcomes := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "dispatch_outcomes_total",
		Help: "Total number of vendor confirmation attempts",
	}, []string{"stage", "accepted"})
	quotes := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "quotes_received_total",
		Help: "Total number of vendor quotes received",
	}, []string{"channel"})
	escalations := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "conversation_escalations_total",
		Help: "Total number of conversations escalated to a human operator",
	}, []string{"channel"})
	vendors := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "discovery_vendors_total",
		Help: "Number of vendors found in the last discovery cycle",
	})

	if err := reg.Register(outcomes); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			outcomes = are.ExistingCollector.(*prometheus.CounterVec)
		} else {
			return nil, err
		}
	}
	if err := reg.Register(quotes); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			quotes = are.ExistingCollector.(*prometheus.CounterVec)
		} else {
			return nil, err
		}
	}
	if err := reg.Register(escalations); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			escalations = are.ExistingCollector.(*prometheus.CounterVec)
		} else {
			return nil, err
		}
	}
	if err := reg.Register(vendors); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			vendors = are.ExistingCollector.(prometheus.Gauge)
		} else {
			return nil, err
		}
	}

	return &PromSink{outcomes: outcomes, quotes: quotes, escalations: escalations, vendors: vendors}, nil
}

// RecordDispatchOutcome increments the counter for each confirmation attempt.
func (s *PromSink) RecordDispatchOutcome(outcomes []coremetrics.DispatchOutcome) error {
	for _, o := range outcomes {
		s.outcomes.WithLabelValues(o.Stage, strconv.FormatBool(o.Accepted)).Inc()
	}
	return nil
}

// RecordQuote counts a received quote by channel.
func (s *PromSink) RecordQuote(ev coremetrics.QuoteEvent) error {
	s.quotes.WithLabelValues(ev.Channel).Inc()
	return nil
}

// RecordEscalation counts an operator escalation by channel.
func (s *PromSink) RecordEscalation(ev coremetrics.EscalationEvent) error {
	s.escalations.WithLabelValues(ev.Channel).Inc()
	return nil
}

// RecordDiscovery sets the gauge to the number of discovered vendors.
func (s *PromSink) RecordDiscovery(ev coremetrics.DiscoveryEvent) error {
	if s.vendors != nil {
		s.vendors.Set(float64(ev.Vendors))
	}
	return nil
}
