// Package battery defines the ports between the scheduling service and
// the physical battery system.
package battery

import (
	"errors"
	"time"

	"github.com/homebatt/homebatt/core/model"
)

// ErrAckTimeout is returned when the battery does not confirm a command
// within the configured window.
var ErrAckTimeout = errors.New("ack timeout")

// Commander sends mode commands to the battery.
type Commander interface {
	// SetMode commands the given mode for the current slot. EnergyKWh is
	// the planned energy for the slot, 0 for idle. It returns a command
	// identifier for acknowledgment tracking.
	SetMode(mode model.BatteryMode, energyKWh float64) (string, error)
	// WaitForAck blocks until the command is confirmed or the timeout
	// elapses.
	WaitForAck(commandID string, timeout time.Duration) (bool, error)
}

// StateHandler consumes telemetry snapshots as they arrive.
type StateHandler func(model.BatteryState)
