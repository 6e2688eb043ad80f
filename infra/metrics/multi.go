package metrics

import (
	"errors"

	coremetrics "github.com/homebatt/homebatt/core/metrics"
)

// MultiSink fans events out to several sinks. Optional capabilities are
// forwarded only to sinks that implement them.
type MultiSink struct {
	sinks []coremetrics.MetricsSink
}

// NewMultiSink builds a sink that forwards to all given sinks.
func NewMultiSink(sinks ...coremetrics.MetricsSink) *MultiSink {
	return &MultiSink{sinks: sinks}
}

// RecordStrategy forwards the event to every sink and joins their errors.
func (m *MultiSink) RecordStrategy(ev coremetrics.StrategyEvent) error {
	var errs []error
	for _, s := range m.sinks {
		if err := s.RecordStrategy(ev); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// RecordCostBasis forwards to sinks implementing CostBasisRecorder.
func (m *MultiSink) RecordCostBasis(ev coremetrics.CostBasisEvent) error {
	var errs []error
	for _, s := range m.sinks {
		if r, ok := s.(coremetrics.CostBasisRecorder); ok {
			if err := r.RecordCostBasis(ev); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}

// RecordModeCommand forwards to sinks implementing ModeCommandRecorder.
func (m *MultiSink) RecordModeCommand(ev coremetrics.ModeCommandEvent) error {
	var errs []error
	for _, s := range m.sinks {
		if r, ok := s.(coremetrics.ModeCommandRecorder); ok {
			if err := r.RecordModeCommand(ev); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}
