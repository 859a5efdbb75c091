package metrics

// MultiSink fans events out to multiple sinks.
type MultiSink struct {
	Sinks []MetricsSink
}

// NewMultiSink creates a MultiSink with the provided sinks.
func NewMultiSink(sinks ...MetricsSink) *MultiSink {
	return &MultiSink{Sinks: sinks}
}

// RecordDispatchOutcome forwards outcomes to all sinks, returning the first
// error encountered.
func (m *MultiSink) RecordDispatchOutcome(outcomes []DispatchOutcome) error {
	for _, s := range m.Sinks {
		if err := s.RecordDispatchOutcome(outcomes); err != nil {
			return err
		}
	}
	return nil
}

// RecordDiscovery forwards discovery events to sinks that support them.
func (m *MultiSink) RecordDiscovery(ev DiscoveryEvent) error {
	for _, s := range m.Sinks {
		if rec, ok := s.(DiscoveryRecorder); ok {
			if err := rec.RecordDiscovery(ev); err != nil {
				return err
			}
		}
	}
	return nil
}

// RecordQuote forwards quote events to sinks that support them.
func (m *MultiSink) RecordQuote(ev QuoteEvent) error {
	for _, s := range m.Sinks {
		if rec, ok := s.(QuoteRecorder); ok {
			if err := rec.RecordQuote(ev); err != nil {
				return err
			}
		}
	}
	return nil
}

// RecordEscalation forwards escalation events to sinks that support them.
func (m *MultiSink) RecordEscalation(ev EscalationEvent) error {
	for _, s := range m.Sinks {
		if rec, ok := s.(EscalationRecorder); ok {
			if err := rec.RecordEscalation(ev); err != nil {
				return err
			}
		}
	}
	return nil
}
