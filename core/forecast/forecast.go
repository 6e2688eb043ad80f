// Package forecast turns rolling historical power samples into expected
// per-slot energies. Its output is the only demand/supply signal the
// schedulers consume.
package forecast

import (
	"github.com/homebatt/homebatt/core/history"
	"github.com/homebatt/homebatt/core/model"
)

// DefaultLoadW is assumed for slots without any historical samples.
const DefaultLoadW = 3000

// Energy is the forecast for one price slot. ImportDemandKWh and
// SolarSurplusKWh are mutually exclusive: at least one is always zero.
type Energy struct {
	LoadKWh         float64
	SolarKWh        float64
	ImportDemandKWh float64
	SolarSurplusKWh float64
}

// Series holds per-slot forecasts addressed by position in the price
// series. Interval Index values are not dense, so an index lookup table is
// built once per scheduling call.
type Series struct {
	byPos   []Energy
	posByID map[int]int
}

// Len returns the number of forecasted slots.
func (s *Series) Len() int { return len(s.byPos) }

// At returns the forecast at the given series position.
func (s *Series) At(pos int) Energy { return s.byPos[pos] }

// ByIndex resolves a slot by its PriceInterval.Index.
func (s *Series) ByIndex(idx int) (Energy, bool) {
	pos, ok := s.posByID[idx]
	if !ok {
		return Energy{}, false
	}
	return s.byPos[pos], true
}

// TotalImportDemandKWh sums the import demand over all slots.
func (s *Series) TotalImportDemandKWh() float64 {
	var sum float64
	for _, e := range s.byPos {
		sum += e.ImportDemandKWh
	}
	return sum
}

// New forecasts every interval in the series from the history store.
func New(intervals []model.PriceInterval, hist history.Store) *Series {
	s := &Series{
		byPos:   make([]Energy, len(intervals)),
		posByID: make(map[int]int, len(intervals)),
	}
	for pos, iv := range intervals {
		s.byPos[pos] = forecastSlot(iv.IntervalOfDay, hist)
		s.posByID[iv.Index] = pos
	}
	return s
}

func forecastSlot(slot int, hist history.Store) Energy {
	loadW := float64(DefaultLoadW)
	solarW := 0.0
	if avg, ok := hist.Average(slot); ok {
		solarW = avg.SolarW
		if solarW < 0 {
			solarW = 0
		}
		// Instantaneous power balance: what the house consumed is what
		// came from the grid plus solar, minus what went into the battery.
		loadW = avg.GridW + avg.SolarW - avg.BatteryW
		if loadW < 0 {
			loadW = 0
		}
	}

	e := Energy{
		LoadKWh:  loadW / 1000 * model.IntervalHours,
		SolarKWh: solarW / 1000 * model.IntervalHours,
	}
	if e.LoadKWh > e.SolarKWh {
		e.ImportDemandKWh = e.LoadKWh - e.SolarKWh
	} else {
		e.SolarSurplusKWh = e.SolarKWh - e.LoadKWh
	}
	return e
}
