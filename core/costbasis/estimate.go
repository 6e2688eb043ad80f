package costbasis

import (
	"github.com/homebatt/homebatt/core/model"
)

const (
	// FallbackPrice is used for untracked energy when no planned charges
	// and no recent price data are available.
	FallbackPrice = 0.30
	// Untracked energy is assumed to be mostly grid-sourced.
	unknownGridShare  = 0.70
	unknownSolarShare = 0.30
)

// UnknownEnergyPrice picks the price applied to stored energy the ledger
// does not account for. Planned charge slots are the best guess (that is
// what the battery is about to buy), otherwise the nearest day of price
// data, otherwise a fixed fallback.
func UnknownEnergyPrice(planned []model.PlannedInterval, series []model.PriceInterval) float64 {
	if len(planned) > 0 {
		var sum float64
		for _, p := range planned {
			sum += p.Total
		}
		return sum / float64(len(planned))
	}
	if len(series) > 0 {
		n := len(series)
		if n > model.IntervalsPerDay {
			n = model.IntervalsPerDay
		}
		var sum float64
		for _, p := range series[:n] {
			sum += p.Total
		}
		return sum / float64(n)
	}
	return FallbackPrice
}

// Estimate reconciles the tracked cost basis with the energy implied by the
// live state of charge. When the ledger under-accounts, the shortfall is
// priced at unknownPrice with a fixed grid/solar split and blended into the
// tracked summary. The result is flagged as estimated whenever untracked
// energy contributed.
func Estimate(storedKWh float64, tracked *Summary, unknownPrice float64) *Summary {
	if storedKWh < EmptyEpsilon {
		return nil
	}
	var trackedKWh float64
	if tracked != nil {
		trackedKWh = tracked.TotalKWh
	}
	unknown := storedKWh - trackedKWh
	if unknown < EmptyEpsilon {
		return tracked
	}
	est := &Summary{
		SolarKWh:    unknown * unknownSolarShare,
		GridKWh:     unknown * unknownGridShare,
		TotalKWh:    unknown,
		TotalCost:   unknown * unknownGridShare * unknownPrice,
		IsEstimated: true,
	}
	if tracked != nil {
		est.SolarKWh += tracked.SolarKWh
		est.GridKWh += tracked.GridKWh
		est.TotalKWh += tracked.TotalKWh
		est.TotalCost += tracked.TotalCost
	}
	est.AvgPrice = est.TotalCost / est.TotalKWh
	est.SolarPercent = est.SolarKWh / est.TotalKWh * 100
	est.GridPercent = est.GridKWh / est.TotalKWh * 100
	return est
}
