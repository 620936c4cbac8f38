/*Package wgfmu describes a four channel waveform generator / fast measurement
unit session as used to drive the crossbar control lines.

The session is staged: waveforms and measurement settings are assigned to
channels, pushed to the instrument with Upload, and played with Trigger.
Nothing reaches the hardware before Upload.

Channels are numbered from 1 and wired to the chip as

	1  bit_in  bit line
	2  cwl     word line
	3  csl     select line
	4  clk     controller clock
*/
package wgfmu

import (
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"

	"github.com/crossbar-lab/xbar/waveform"
)

const (
	// BitIn is the bit line channel
	BitIn = 1

	// WordLine is the word line channel
	WordLine = 2

	// SelectLine is the select line channel
	SelectLine = 3

	// Clock is the controller clock channel
	Clock = 4

	// NumChannels is the number of channels in a session
	NumChannels = 4
)

var (
	// ErrNoChannel is returned for channel numbers outside 1..4
	ErrNoChannel = errors.New("wgfmu: no such channel")

	// ErrNoWaveform is returned by Upload when a channel has nothing assigned
	ErrNoWaveform = errors.New("wgfmu: channel has no waveform")

	// ChannelNames maps channel numbers to the net they drive on the chip
	ChannelNames = map[int]string{
		BitIn:      "bit_in",
		WordLine:   "cwl",
		SelectLine: "csl",
		Clock:      "clk",
	}
)

// MeasureParams configures capture of a channel's own output
type MeasureParams struct {
	// AverageTime is the integration time of each sample, in seconds
	AverageTime float64 `json:"averageTime" yaml:"AverageTime" koanf:"AverageTime"`

	// SampleInterval is the time between samples, in seconds
	SampleInterval float64 `json:"sampleInterval" yaml:"SampleInterval" koanf:"SampleInterval"`

	// IgnoreEdges skips samples taken during transitions
	IgnoreEdges bool `json:"ignoreEdges" yaml:"IgnoreEdges" koanf:"IgnoreEdges"`

	// IgnoreSettling skips samples taken while the output settles
	IgnoreSettling bool `json:"ignoreSettling" yaml:"IgnoreSettling" koanf:"IgnoreSettling"`
}

// Channel is the staged configuration of one output
type Channel struct {
	// ID is the channel number, 1..4
	ID int

	// Name labels the channel in measurement results
	Name string

	// Wave is the program played on the channel
	Wave *waveform.Waveform

	// Measure, if not nil, arms capture of the channel
	Measure *MeasureParams
}

// Session is a multi channel waveform instrument
type Session interface {
	// Assign stages a named waveform on a channel
	Assign(ch int, name string, w *waveform.Waveform) error

	// ArmMeasurement stages capture of a channel's output
	ArmMeasurement(ch int, p MeasureParams) error

	// Clear drops every staged waveform and measurement
	Clear() error

	// Upload pushes the staged configuration to the instrument
	Upload() error

	// Trigger plays the uploaded waveforms.  If wait is false it returns as
	// soon as the instrument has started
	Trigger(wait bool) error

	// Results returns the captures of the last triggered run
	Results() ([]Recording, error)

	// Close releases the instrument
	Close() error
}

// Recording is the captured output of one channel
type Recording struct {
	// Name is the channel name
	Name string `json:"name"`

	// DT is the temporal sample spacing in seconds
	DT float64 `json:"dt"`

	// Volts holds the samples
	Volts []float64 `json:"volts"`
}

// EncodeCSV writes the recording as time,voltage rows with a header
func (r Recording) EncodeCSV(w io.Writer) error {
	bw := bufio.NewWriter(w)
	cw := csv.NewWriter(bw)
	if err := cw.Write([]string{"time", r.Name}); err != nil {
		return err
	}
	row := make([]string, 2)
	for i, v := range r.Volts {
		row[0] = strconv.FormatFloat(float64(i)*r.DT, 'G', -1, 64)
		row[1] = strconv.FormatFloat(v, 'G', -1, 64)
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return err
	}
	return bw.Flush()
}

// stage is the staging area embedded in Session implementations
type stage struct {
	chans [NumChannels]Channel
}

func (s *stage) channel(ch int) (*Channel, error) {
	if ch < 1 || ch > NumChannels {
		return nil, fmt.Errorf("%w: %d", ErrNoChannel, ch)
	}
	c := &s.chans[ch-1]
	c.ID = ch
	return c, nil
}

// Assign satisfies Session
func (s *stage) Assign(ch int, name string, w *waveform.Waveform) error {
	c, err := s.channel(ch)
	if err != nil {
		return err
	}
	c.Name = name
	c.Wave = w
	return nil
}

// ArmMeasurement satisfies Session
func (s *stage) ArmMeasurement(ch int, p MeasureParams) error {
	c, err := s.channel(ch)
	if err != nil {
		return err
	}
	if p.SampleInterval <= 0 || p.AverageTime < 0 {
		return fmt.Errorf("wgfmu: invalid measurement timing %+v", p)
	}
	c.Measure = &p
	return nil
}

// Clear satisfies Session
func (s *stage) Clear() error {
	s.chans = [NumChannels]Channel{}
	return nil
}

// Staged returns a copy of the staged channel configuration
func (s *stage) Staged() []Channel {
	return append([]Channel(nil), s.chans[:]...)
}

func (s *stage) check() error {
	for i, c := range s.chans {
		if c.Wave == nil {
			return fmt.Errorf("%w: %d", ErrNoWaveform, i+1)
		}
	}
	return nil
}
