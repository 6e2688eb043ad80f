package mqtt

import (
	"fmt"
	"sync"
	"time"

	"github.com/homebatt/homebatt/core/model"
)

// MockCommander is a simple in-memory commander used in tests.
type MockCommander struct {
	mu       sync.Mutex
	Commands []MockCommand
	Fail     bool
	AckOK    bool
}

// MockCommand is one recorded SetMode call.
type MockCommand struct {
	ID        string
	Mode      model.BatteryMode
	EnergyKWh float64
}

// NewMockCommander creates a commander that acknowledges every command.
func NewMockCommander() *MockCommander {
	return &MockCommander{AckOK: true}
}

// SetMode records the command or fails when configured to.
func (m *MockCommander) SetMode(mode model.BatteryMode, energyKWh float64) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Fail {
		return "", fmt.Errorf("publish failed")
	}
	id := fmt.Sprintf("cmd-%d", len(m.Commands))
	m.Commands = append(m.Commands, MockCommand{ID: id, Mode: mode, EnergyKWh: energyKWh})
	return id, nil
}

// WaitForAck returns the configured acknowledgment result immediately.
func (m *MockCommander) WaitForAck(commandID string, _ time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.Commands {
		if c.ID == commandID {
			return m.AckOK, nil
		}
	}
	return false, fmt.Errorf("unknown command")
}

// Last returns the most recent command, nil when none was sent.
func (m *MockCommander) Last() *MockCommand {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.Commands) == 0 {
		return nil
	}
	c := m.Commands[len(m.Commands)-1]
	return &c
}
