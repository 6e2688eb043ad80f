package metrics

import (
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/homebatt/homebatt/core/logger"
)

// StartPromServer exposes /metrics on the given port using a dedicated
// mux so it never collides with the status API. It returns the server so
// the caller can shut it down.
func StartPromServer(port int, log logger.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		if log != nil {
			log.Infof("prometheus metrics listening on :%d", port)
		}
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			if log != nil {
				log.Errorf("metrics server stopped: %v", err)
			}
		}
	}()

	return srv
}
