// Package status exposes the scheduling state over HTTP for dashboards.
package status

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/homebatt/homebatt/core/costbasis"
	"github.com/homebatt/homebatt/core/model"
)

// Provider supplies the live state the handler reports.
type Provider interface {
	CurrentStrategy() *model.Strategy
	CostBasis() *costbasis.Summary
	BatteryState() model.BatteryState
	PriceHorizon() []model.PriceInterval
}

// Response is the JSON document served on GET /api/status.
type Response struct {
	Time         time.Time            `json:"time"`
	Mode         string               `json:"mode"`
	Battery      model.BatteryState   `json:"battery"`
	Strategy     *model.Strategy      `json:"strategy,omitempty"`
	CostBasis    *costbasis.Summary   `json:"costBasis,omitempty"`
	PriceSlots   int                  `json:"priceSlots"`
	NextInterval *model.PriceInterval `json:"nextInterval,omitempty"`
}

// NewHandler returns an HTTP handler exposing the current strategy, cost
// basis, and battery state via GET.
func NewHandler(p Provider) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		now := time.Now()
		strategy := p.CurrentStrategy()
		mode := model.ModeIdle
		if strategy != nil {
			mode = strategy.ModeAt(now)
		}
		horizon := p.PriceHorizon()
		resp := Response{
			Time:       now,
			Mode:       mode.String(),
			Battery:    p.BatteryState(),
			Strategy:   strategy,
			CostBasis:  p.CostBasis(),
			PriceSlots: len(horizon),
		}
		if len(horizon) > 0 {
			next := horizon[0]
			resp.NextInterval = &next
		}
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(resp); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
	})
}

// NewServer wires the handler into a mux under /api/status and returns a
// server listening on addr. Start it with ListenAndServe.
func NewServer(addr string, p Provider) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/api/status", NewHandler(p))
	return &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
}
