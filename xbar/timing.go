package xbar

import (
	"fmt"
	"math"

	"github.com/crossbar-lab/xbar/codec"
	"github.com/crossbar-lab/xbar/waveform"
	"github.com/crossbar-lab/xbar/wgfmu"
)

const (
	// EdgeTime is the rise and fall time of every control pulse, in seconds
	EdgeTime = 1e-7

	// bitMargin is how much longer the bit line pulse is than the control window
	bitMargin = 1.2

	// clockFraction is the clock plateau as a fraction of the control window
	clockFraction = 5
)

// Family is the kind of electrical operation a waveform set realizes
type Family int

const (
	// FamilySense reads the array
	FamilySense Family = iota

	// FamilySet programs cells toward low resistance
	FamilySet

	// FamilyReset programs cells toward high resistance
	FamilyReset

	// FamilyForm performs the irreversible initial formation
	FamilyForm
)

func (f Family) String() string {
	switch f {
	case FamilySense:
		return "sense"
	case FamilySet:
		return "set"
	case FamilyReset:
		return "reset"
	case FamilyForm:
		return "form"
	default:
		return fmt.Sprintf("family(%d)", int(f))
	}
}

// Timing holds the control window of one cell access, in seconds
type Timing struct {
	// Precharge is the part of the window during which the select line is high
	Precharge float64 `json:"precharge" yaml:"Precharge" koanf:"Precharge"`

	// Discharge follows Precharge, with the select line low
	Discharge float64 `json:"discharge" yaml:"Discharge" koanf:"Discharge"`

	// Interval is the idle time before each operation
	Interval float64 `json:"interval" yaml:"Interval" koanf:"Interval"`
}

func (t Timing) validate() error {
	for name, v := range map[string]float64{
		"precharge": t.Precharge,
		"discharge": t.Discharge,
		"interval":  t.Interval,
	} {
		if v < 0 || math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: %s %g", waveform.ErrInvalidParameters, name, v)
		}
	}
	if t.Precharge+t.Discharge <= 0 {
		return fmt.Errorf("%w: empty control window", waveform.ErrInvalidParameters)
	}
	return nil
}

// Levels are the plateau voltages of the four channels
type Levels struct {
	BitIn      float64 `json:"bitIn" yaml:"BitIn" koanf:"BitIn"`
	WordLine   float64 `json:"wordLine" yaml:"WordLine" koanf:"WordLine"`
	SelectLine float64 `json:"selectLine" yaml:"SelectLine" koanf:"SelectLine"`
	Clock      float64 `json:"clock" yaml:"Clock" koanf:"Clock"`
}

// LogicLevels drives every channel at 1 V
func LogicLevels() Levels {
	return Levels{BitIn: 1, WordLine: 1, SelectLine: 1, Clock: 1}
}

// TimingConfig fully determines a channel waveform set.  Family labels the
// operation the set is played for; it does not shape the waveforms, which
// depend on Timing, Levels and the measurement settings only
type TimingConfig struct {
	Family  Family
	Timing  Timing
	Levels  Levels
	Measure bool

	// MeasureParams is only meaningful when Measure is true
	MeasureParams wgfmu.MeasureParams
}

// key is the part of the configuration that shapes the waveforms
func (c TimingConfig) key() TimingConfig {
	c.Family = FamilySense
	return c
}

// ChannelSet holds the waveforms of channels 1 through 4, in order
type ChannelSet [wgfmu.NumChannels]*waveform.Waveform

// Build synthesizes the four channel waveform set for one pass over the array.
//
// One cell access is a bit line pulse slightly longer than the control window,
// word and select line pulses centered on it, and a clock pulse starting when
// the word line finishes.  The control lines then repeat once with the bit line
// at ground, the result is played once per cell, and every channel is delayed
// by the inter-operation interval
func Build(cfg TimingConfig) (ChannelSet, error) {
	var set ChannelSet
	t := cfg.Timing
	if err := t.validate(); err != nil {
		return set, err
	}
	lv := cfg.Levels
	window := t.Precharge + t.Discharge

	bit, err := waveform.New(waveform.Pulse{
		Voltage:  lv.BitIn,
		Interval: EdgeTime,
		Edges:    EdgeTime,
		Length:   bitMargin * window})
	if err != nil {
		return set, err
	}
	wl, err := bit.CenteredOn(lv.WordLine, window, 0)
	if err != nil {
		return set, err
	}
	sl, err := wl.Copy(
		waveform.Voltage(lv.SelectLine),
		waveform.Length(t.Precharge),
		waveform.WaitEnd(t.Discharge))
	if err != nil {
		return set, err
	}
	clk, err := waveform.New(waveform.Pulse{
		Voltage:   lv.Clock,
		Edges:     EdgeTime,
		Length:    wl.Length() / clockFraction,
		WaitBegin: wl.TotalDuration()})
	if err != nil {
		return set, err
	}

	gap := math.Max(0, t.Interval-wl.WaitBegin())
	end := clk.TotalDuration() + gap
	for _, w := range []*waveform.Waveform{wl, sl, clk} {
		if err := w.ExtendTo(end); err != nil {
			return set, err
		}
		if err := w.Repeat(1); err != nil {
			return set, err
		}
	}
	if err := bit.ExtendTo(clk.TotalDuration()); err != nil {
		return set, err
	}

	set = ChannelSet{bit, wl, sl, clk}
	for _, w := range set {
		if err := w.Repeat(codec.Cells - 1); err != nil {
			return set, err
		}
		if err := w.PrependLead(t.Interval); err != nil {
			return set, err
		}
	}
	return set, nil
}
