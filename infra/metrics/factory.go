package metrics

import (
	"net/http"

	"github.com/homebatt/homebatt/core/logger"
	coremetrics "github.com/homebatt/homebatt/core/metrics"
)

// NewSink assembles the configured sinks. When Prometheus is enabled the
// returned server exposes /metrics and must be closed by the caller; it
// is nil otherwise.
func NewSink(cfg coremetrics.Config, log logger.Logger) (coremetrics.MetricsSink, *http.Server, error) {
	var sinks []coremetrics.MetricsSink
	var srv *http.Server

	if cfg.PrometheusEnabled {
		prom, err := NewPromSink(cfg)
		if err != nil {
			return nil, nil, err
		}
		sinks = append(sinks, prom)
		srv = StartPromServer(cfg.PrometheusPort, log)
	}
	if cfg.InfluxEnabled {
		sinks = append(sinks, NewInfluxSinkWithFallback(cfg.InfluxURL, cfg.InfluxToken, cfg.InfluxOrg, cfg.InfluxBucket))
	}

	switch len(sinks) {
	case 0:
		return coremetrics.NopSink{}, nil, nil
	case 1:
		return sinks[0], srv, nil
	default:
		return NewMultiSink(sinks...), srv, nil
	}
}
