// Package costbasis tracks the blended purchase price of the energy
// currently held in the battery. Charges add to solar/grid pools at their
// marginal cost, discharges deplete both pools proportionally. The result
// is a weighted-average model, not FIFO: every discharge draws from the
// entire historical mix.
package costbasis

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Epsilons are part of the observable contract: pools below PoolEpsilon are
// treated as empty during depletion, a ledger whose net energy is below
// EmptyEpsilon yields no cost basis at all.
const (
	PoolEpsilon  = 0.001
	EmptyEpsilon = 0.01
)

// EntryType discriminates ledger rows.
type EntryType string

const (
	EntryCharge    EntryType = "charge"
	EntryDischarge EntryType = "discharge"
)

// Entry is one append-only ledger row. TotalKWh is positive for charges and
// negative for discharges; its magnitude is the measured energy delta of
// that tick.
type Entry struct {
	ID   string    `json:"id"`
	Type EntryType `json:"type"`
	Time time.Time `json:"time"`

	SolarKWh float64 `json:"solarKWh,omitempty"`
	GridKWh  float64 `json:"gridKWh,omitempty"`
	TotalKWh float64 `json:"totalKWh"`

	// GridPrice is the spot price at entry time. For discharges,
	// AvgBatteryPrice snapshots the cost basis at discharge time.
	GridPrice       float64 `json:"gridPrice"`
	AvgBatteryPrice float64 `json:"avgBatteryPrice,omitempty"`
	SoC             float64 `json:"soc"`
}

// Summary is the derived cost basis of the energy currently stored.
type Summary struct {
	AvgPrice     float64 `json:"avgPrice"`
	TotalKWh     float64 `json:"totalKWh"`
	SolarKWh     float64 `json:"solarKWh"`
	GridKWh      float64 `json:"gridKWh"`
	SolarPercent float64 `json:"solarPercent"`
	GridPercent  float64 `json:"gridPercent"`
	TotalCost    float64 `json:"totalCost"`
	IsEstimated  bool    `json:"isEstimated,omitempty"`
}

// Ledger owns the charge log. It is the only mutable state of the engine;
// the accounting invariants (proportional depletion, clear-on-empty) live
// here rather than in callers.
type Ledger struct {
	mu         sync.RWMutex
	maxEntries int
	entries    []Entry
}

// NewLedger returns a ledger trimmed to maxEntries rows.
func NewLedger(maxEntries int) *Ledger {
	if maxEntries <= 0 {
		maxEntries = 500
	}
	return &Ledger{maxEntries: maxEntries}
}

// RecordCharge appends a charge row.
func (l *Ledger) RecordCharge(solarKWh, gridKWh, gridPrice, soc float64, at time.Time) Entry {
	if solarKWh < 0 {
		solarKWh = 0
	}
	if gridKWh < 0 {
		gridKWh = 0
	}
	e := Entry{
		ID:        uuid.NewString(),
		Type:      EntryCharge,
		Time:      at,
		SolarKWh:  solarKWh,
		GridKWh:   gridKWh,
		TotalKWh:  solarKWh + gridKWh,
		GridPrice: gridPrice,
		SoC:       soc,
	}
	l.append(e)
	return e
}

// RecordDischarge appends a discharge row. kWh is the magnitude of the
// energy drawn this tick; the stored TotalKWh is always negative.
func (l *Ledger) RecordDischarge(kWh, gridPrice, soc float64, at time.Time) Entry {
	if kWh < 0 {
		kWh = -kWh
	}
	avg := 0.0
	if cb := l.CostBasis(); cb != nil {
		avg = cb.AvgPrice
	}
	e := Entry{
		ID:              uuid.NewString(),
		Type:            EntryDischarge,
		Time:            at,
		TotalKWh:        -kWh,
		GridPrice:       gridPrice,
		AvgBatteryPrice: avg,
		SoC:             soc,
	}
	l.append(e)
	return e
}

func (l *Ledger) append(e Entry) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, e)
	if len(l.entries) > l.maxEntries {
		l.entries = l.entries[len(l.entries)-l.maxEntries:]
	}
}

// Clear drops all rows. Called when the battery is considered empty: the
// prior cost basis is no longer meaningful.
func (l *Ledger) Clear() {
	l.mu.Lock()
	l.entries = nil
	l.mu.Unlock()
}

// Len returns the number of rows currently held.
func (l *Ledger) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.entries)
}

// Entries returns a copy of the log, oldest first.
func (l *Ledger) Entries() []Entry {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]Entry, len(l.entries))
	copy(out, l.entries)
	return out
}

// CostBasis derives the blended cost of the tracked energy. It returns nil
// when the log is empty or effectively depleted; callers should then
// estimate instead.
func (l *Ledger) CostBasis() *Summary {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return Calculate(l.entries)
}

// Calculate walks the entries in order and returns the remaining pool
// composition, or nil when nothing meaningful remains. Malformed rows
// contribute zeros rather than errors.
func Calculate(entries []Entry) *Summary {
	if len(entries) == 0 {
		return nil
	}
	var solar, grid, cost float64
	for _, e := range entries {
		switch e.Type {
		case EntryCharge:
			if e.SolarKWh > 0 {
				solar += e.SolarKWh
			}
			if e.GridKWh > 0 {
				grid += e.GridKWh
				cost += e.GridKWh * e.GridPrice
			}
		case EntryDischarge:
			d := e.TotalKWh
			if d < 0 {
				d = -d
			}
			pool := solar + grid
			if pool <= PoolEpsilon {
				continue
			}
			if d > pool {
				d = pool
			}
			solar -= d * (solar / pool)
			grid -= d * (grid / pool)
			cost -= d * (cost / pool)
			if solar < 0 {
				solar = 0
			}
			if grid < 0 {
				grid = 0
			}
			if cost < 0 {
				cost = 0
			}
		}
	}
	total := solar + grid
	if total < EmptyEpsilon {
		return nil
	}
	return &Summary{
		AvgPrice:     cost / total,
		TotalKWh:     total,
		SolarKWh:     solar,
		GridKWh:      grid,
		SolarPercent: solar / total * 100,
		GridPercent:  grid / total * 100,
		TotalCost:    cost,
	}
}
