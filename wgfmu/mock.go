package wgfmu

import "sync"

// Mock is an in-memory Session.  Uploaded waveforms are kept for inspection
// and measured channels report their own waveform sampled ideally
type Mock struct {
	sync.Mutex
	stage

	// Uploads counts successful calls to Upload
	Uploads int

	// Triggers records the wait argument of every Trigger call
	Triggers []bool

	// Closed is set by Close
	Closed bool

	// UploadErr, if not nil, is returned by Upload
	UploadErr error

	uploaded [NumChannels]Channel
}

// NewMock returns an empty Mock
func NewMock() *Mock {
	return &Mock{}
}

// Upload satisfies Session
func (m *Mock) Upload() error {
	m.Lock()
	defer m.Unlock()
	if m.UploadErr != nil {
		return m.UploadErr
	}
	if err := m.check(); err != nil {
		return err
	}
	m.uploaded = m.chans
	m.Uploads++
	return nil
}

// Uploaded returns the channel configuration of the last Upload
func (m *Mock) Uploaded() []Channel {
	m.Lock()
	defer m.Unlock()
	return append([]Channel(nil), m.uploaded[:]...)
}

// Trigger satisfies Session
func (m *Mock) Trigger(wait bool) error {
	m.Lock()
	defer m.Unlock()
	m.Triggers = append(m.Triggers, wait)
	return nil
}

// Results satisfies Session
func (m *Mock) Results() ([]Recording, error) {
	m.Lock()
	defer m.Unlock()
	var out []Recording
	for _, c := range m.uploaded {
		if c.Measure == nil || c.Wave == nil {
			continue
		}
		v, err := c.Wave.Sample(c.Measure.SampleInterval)
		if err != nil {
			return out, err
		}
		out = append(out, Recording{Name: c.Name, DT: c.Measure.SampleInterval, Volts: v})
	}
	return out, nil
}

// Close satisfies Session
func (m *Mock) Close() error {
	m.Lock()
	defer m.Unlock()
	m.Closed = true
	return nil
}
