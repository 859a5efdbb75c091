package metrics

import "github.com/tavi-ops/dispatchd/core/factory"

var sinkRegistry = factory.NewRegistry[MetricsSink]()

// RegisterMetricsSink adds a metrics sink builder identified by name.
func RegisterMetricsSink(name string, b factory.Builder[MetricsSink]) error {
	return sinkRegistry.Register(name, b)
}

// NewMetricsSink creates a MetricsSink from the provided configuration. An
// empty list yields a NopSink; multiple entries are fanned out.
func NewMetricsSink(cfgs []factory.PluginConfig) (MetricsSink, error) {
	if len(cfgs) == 0 {
		return NopSink{}, nil
	}
	if len(cfgs) == 1 {
		return sinkRegistry.Build(cfgs[0])
	}
	sinks := make([]MetricsSink, len(cfgs))
	for i, c := range cfgs {
		s, err := sinkRegistry.Build(c)
		if err != nil {
			return nil, err
		}
		sinks[i] = s
	}
	return NewMultiSink(sinks...), nil
}

// Config defines settings for metrics sinks.
type Config struct {
	Sinks []factory.PluginConfig `json:"sinks"`
}
