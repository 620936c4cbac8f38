package supply

import (
	"fmt"
	"sync"
)

// Mock is an in-memory supply whose outputs slew toward their setpoints.
//
// each measurement moves a channel's output Slew of the way to its setpoint;
// Slew == 0 freezes the outputs, simulating a stuck supply.  Disabled
// channels read zero
type Mock struct {
	sync.Mutex

	Channels int
	Slew     float64
	Setpoint map[int]float64
	Output   map[int]float64
	Enabled  map[int]bool
	Reads    int
	Closed   bool
}

// NewMock returns a three channel mock that reaches its setpoint on the first read
func NewMock() *Mock {
	return &Mock{
		Channels: 3,
		Slew:     1,
		Setpoint: make(map[int]float64),
		Output:   make(map[int]float64),
		Enabled:  make(map[int]bool)}
}

func (m *Mock) check(ch int) error {
	if ch < 1 || ch > m.Channels {
		return fmt.Errorf("supply: no channel %d", ch)
	}
	return nil
}

// SetChannelVoltage satisfies Supply
func (m *Mock) SetChannelVoltage(ch int, volts float64) error {
	m.Lock()
	defer m.Unlock()
	if err := m.check(ch); err != nil {
		return err
	}
	m.Setpoint[ch] = volts
	return nil
}

// GetChannelVoltage satisfies Supply
func (m *Mock) GetChannelVoltage(ch int) (float64, error) {
	m.Lock()
	defer m.Unlock()
	if err := m.check(ch); err != nil {
		return 0, err
	}
	m.Reads++
	if !m.Enabled[ch] {
		return 0, nil
	}
	out := m.Output[ch]
	out += (m.Setpoint[ch] - out) * m.Slew
	m.Output[ch] = out
	return out, nil
}

// SetChannelOutput satisfies Supply
func (m *Mock) SetChannelOutput(ch int, on bool) error {
	m.Lock()
	defer m.Unlock()
	if err := m.check(ch); err != nil {
		return err
	}
	m.Enabled[ch] = on
	return nil
}

// Close satisfies Supply
func (m *Mock) Close() error {
	m.Lock()
	defer m.Unlock()
	m.Closed = true
	return nil
}
