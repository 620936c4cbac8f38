package mcu

import (
	"sync"
)

// Transmission is one procedure observed by a Mock
type Transmission struct {
	Cmd   string
	Codes []byte
}

// Mock is a Link that records what it is asked to do.
// SenseData is returned from Sense and SenseUC; Err, when set, is returned
// from every procedure instead of recording it
type Mock struct {
	sync.Mutex

	Log       []Transmission
	SenseData []byte
	Ack       AckMode
	CS        map[CS]State
	Flushes   int
	Closed    bool
	Err       error
}

// NewMock returns a Mock that senses an all-zero array
func NewMock() *Mock {
	return &Mock{SenseData: make([]byte, 64), CS: make(map[CS]State)}
}

// Transmissions returns a copy of the procedures seen so far, in order
func (m *Mock) Transmissions() []Transmission {
	m.Lock()
	defer m.Unlock()
	out := make([]Transmission, len(m.Log))
	copy(out, m.Log)
	return out
}

func (m *Mock) record(cmd string, codes []byte, maxCode byte) error {
	if err := CheckCodes(codes, maxCode); err != nil {
		return err
	}
	m.Lock()
	defer m.Unlock()
	if m.Err != nil {
		return m.Err
	}
	cp := make([]byte, len(codes))
	copy(cp, codes)
	m.Log = append(m.Log, Transmission{Cmd: cmd, Codes: cp})
	return nil
}

// Set satisfies Link
func (m *Mock) Set(codes []byte) error {
	return m.record("set", codes, 0b11)
}

// Reset satisfies Link
func (m *Mock) Reset(codes []byte) error {
	return m.record("reset", codes, 0b11)
}

// Fill satisfies Link
func (m *Mock) Fill(codes []byte) error {
	return m.record("fill", codes, 1)
}

func (m *Mock) sense(cmd string) ([]byte, error) {
	m.Lock()
	defer m.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	m.Log = append(m.Log, Transmission{Cmd: cmd})
	out := make([]byte, len(m.SenseData))
	copy(out, m.SenseData)
	return out, nil
}

// Sense satisfies Link
func (m *Mock) Sense() ([]byte, error) {
	return m.sense("sense")
}

// SenseUC satisfies Link
func (m *Mock) SenseUC() ([]byte, error) {
	return m.sense("sense_uc")
}

// FlushInput satisfies Link
func (m *Mock) FlushInput() error {
	m.Lock()
	defer m.Unlock()
	m.Flushes++
	return m.Err
}

// AckMode satisfies Link
func (m *Mock) AckMode(a AckMode) error {
	m.Lock()
	defer m.Unlock()
	if m.Err != nil {
		return m.Err
	}
	m.Ack = a
	return nil
}

// SetCS satisfies Link
func (m *Mock) SetCS(pin CS, s State) error {
	m.Lock()
	defer m.Unlock()
	if m.Err != nil {
		return m.Err
	}
	m.CS[pin] = s
	return nil
}

// Close satisfies Link
func (m *Mock) Close() error {
	m.Lock()
	defer m.Unlock()
	m.Closed = true
	return nil
}
