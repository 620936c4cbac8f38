/*Package waveform describes single-channel voltage programs as sequences of
trapezoidal pulses.

A Waveform is built from a Pulse and then derived from, rather than laid out
with absolute timestamps.  Timing between channels is expressed relative to
other waveforms:

	bit, _ := waveform.New(waveform.Pulse{Voltage: 1, Interval: 1e-7, Edges: 1e-7, Length: 3e-6})
	wl, _ := bit.CenteredOn(1, 2e-6, 0)          // centered inside bit's plateau
	sl, _ := wl.Copy(waveform.Length(1e-6))      // same start as wl, shorter
	sl.ExtendTo(wl.TotalDuration())              // idle until wl is done

All times are in seconds.  Waveforms idle at 0 V outside their pulses.
*/
package waveform

import (
	"errors"
	"fmt"
	"math"
)

// Tolerance is the slack allowed when comparing durations, in seconds
const Tolerance = 1e-12

var (
	// ErrInvalidDuration is returned when a waveform cannot be extended to a
	// duration shorter than it already is
	ErrInvalidDuration = errors.New("waveform: target duration shorter than waveform")

	// ErrInvalidParameters is returned for negative or non-finite timing, or
	// derivations that make no sense for the source waveform
	ErrInvalidParameters = errors.New("waveform: invalid parameters")
)

// Pulse is the declarative description of a single trapezoidal pulse
type Pulse struct {
	// Voltage is the plateau voltage
	Voltage float64

	// Length is the duration of the plateau, excluding the edges
	Length float64

	// Edges is the rise time, and separately the fall time
	Edges float64

	// Interval is used for WaitBegin and WaitEnd when they are left at zero
	Interval float64

	// WaitBegin is the idle time before the rising edge
	WaitBegin float64

	// WaitEnd is the idle time after the falling edge
	WaitEnd float64
}

// Segment is one pulse with its surrounding idle time
type Segment struct {
	Voltage   float64
	WaitBegin float64
	Edges     float64
	Length    float64
	WaitEnd   float64
}

// Duration is WaitBegin + 2*Edges + Length + WaitEnd
func (s Segment) Duration() float64 {
	return s.WaitBegin + 2*s.Edges + s.Length + s.WaitEnd
}

func (s Segment) validate() error {
	for name, v := range map[string]float64{
		"length":     s.Length,
		"edges":      s.Edges,
		"wait begin": s.WaitBegin,
		"wait end":   s.WaitEnd,
	} {
		if v < 0 || math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: %s %g", ErrInvalidParameters, name, v)
		}
	}
	if math.IsNaN(s.Voltage) || math.IsInf(s.Voltage, 0) {
		return fmt.Errorf("%w: voltage %g", ErrInvalidParameters, s.Voltage)
	}
	return nil
}

// Vector is a linear ramp from the previous voltage to Voltage over DT seconds
type Vector struct {
	DT      float64 `json:"dt"`
	Voltage float64 `json:"voltage"`
}

// Vectors expands the segment into ramp vectors.  Idle time of zero length is
// dropped, edges are always present so the instrument sees the transitions
func (s Segment) Vectors() []Vector {
	out := make([]Vector, 0, 5)
	if s.WaitBegin > 0 {
		out = append(out, Vector{s.WaitBegin, 0})
	}
	out = append(out,
		Vector{s.Edges, s.Voltage},
		Vector{s.Length, s.Voltage},
		Vector{s.Edges, 0})
	if s.WaitEnd > 0 {
		out = append(out, Vector{s.WaitEnd, 0})
	}
	return out
}

// Waveform is an ordered pattern of segments replayed Repeats()+1 times,
// optionally framed by idle time that is not replayed
type Waveform struct {
	segments []Segment
	repeats  int

	// lead and trail are played once, before and after all replays
	lead  float64
	trail float64
}

// New creates a single pulse waveform
func New(p Pulse) (*Waveform, error) {
	s := Segment{
		Voltage:   p.Voltage,
		WaitBegin: p.WaitBegin,
		Edges:     p.Edges,
		Length:    p.Length,
		WaitEnd:   p.WaitEnd,
	}
	if p.Interval < 0 || math.IsNaN(p.Interval) {
		return nil, fmt.Errorf("%w: interval %g", ErrInvalidParameters, p.Interval)
	}
	if s.WaitBegin == 0 {
		s.WaitBegin = p.Interval
	}
	if s.WaitEnd == 0 {
		s.WaitEnd = p.Interval
	}
	if err := s.validate(); err != nil {
		return nil, err
	}
	return &Waveform{segments: []Segment{s}}, nil
}

// Clone returns a deep copy of w
func (w *Waveform) Clone() *Waveform {
	c := *w
	c.segments = append([]Segment(nil), w.segments...)
	return &c
}

// Segments returns a copy of the replayed pattern
func (w *Waveform) Segments() []Segment {
	return append([]Segment(nil), w.segments...)
}

// Repeats is the number of additional times the pattern is played
func (w *Waveform) Repeats() int {
	return w.repeats
}

// Lead is the idle time played once before the first replay
func (w *Waveform) Lead() float64 {
	return w.lead
}

// Trail is the idle time played once after the last replay
func (w *Waveform) Trail() float64 {
	return w.trail
}

// Voltage is the plateau voltage of the first pulse
func (w *Waveform) Voltage() float64 {
	return w.segments[0].Voltage
}

// Length is the plateau duration of the first pulse
func (w *Waveform) Length() float64 {
	return w.segments[0].Length
}

// Edges is the rise/fall time of the first pulse
func (w *Waveform) Edges() float64 {
	return w.segments[0].Edges
}

// WaitBegin is the time from the start of the waveform to the first rising edge
func (w *Waveform) WaitBegin() float64 {
	return w.lead + w.segments[0].WaitBegin
}

// PatternDuration is the duration of one replay of the pattern
func (w *Waveform) PatternDuration() float64 {
	var d float64
	for _, s := range w.segments {
		d += s.Duration()
	}
	return d
}

// TotalDuration is lead + pattern*(repeats+1) + trail
func (w *Waveform) TotalDuration() float64 {
	return w.lead + w.PatternDuration()*float64(w.repeats+1) + w.trail
}

// ActiveWindow returns the start of the first rising edge and the end of the
// first falling edge, measured from the start of the waveform
func (w *Waveform) ActiveWindow() (start, end float64) {
	s := w.segments[0]
	start = w.lead + s.WaitBegin
	return start, start + 2*s.Edges + s.Length
}

// CenteredOn creates a new single pulse whose active window shares its
// midpoint with the first pulse of w.  The new pulse inherits w's edges and
// idles for waitEnd after its falling edge
func (w *Waveform) CenteredOn(voltage, length, waitEnd float64) (*Waveform, error) {
	if len(w.segments) != 1 {
		return nil, fmt.Errorf("%w: cannot center on a %d pulse pattern", ErrInvalidParameters, len(w.segments))
	}
	start, end := w.ActiveWindow()
	mid := (start + end) / 2
	edges := w.Edges()
	begin := mid - edges - length/2
	if begin < -Tolerance {
		return nil, fmt.Errorf("%w: pulse of length %g does not fit before the center at %g", ErrInvalidParameters, length, mid)
	}
	s := Segment{
		Voltage:   voltage,
		WaitBegin: math.Max(begin, 0),
		Edges:     edges,
		Length:    length,
		WaitEnd:   waitEnd,
	}
	if err := s.validate(); err != nil {
		return nil, err
	}
	return &Waveform{segments: []Segment{s}}, nil
}

// Option overrides a property of the first pulse in Copy
type Option func(*Segment)

// Voltage overrides the plateau voltage
func Voltage(v float64) Option {
	return func(s *Segment) { s.Voltage = v }
}

// Length overrides the plateau duration
func Length(l float64) Option {
	return func(s *Segment) { s.Length = l }
}

// WaitEnd overrides the idle time after the falling edge
func WaitEnd(d float64) Option {
	return func(s *Segment) { s.WaitEnd = d }
}

// Copy returns a copy of w with the first pulse modified by opts.
// The start of the rising edge is preserved
func (w *Waveform) Copy(opts ...Option) (*Waveform, error) {
	c := w.Clone()
	for _, o := range opts {
		o(&c.segments[0])
	}
	if err := c.segments[0].validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// ExtendTo appends idle time to the end of w so that its total duration is
// total.  It is an error to ask for less than the current duration
func (w *Waveform) ExtendTo(total float64) error {
	cur := w.TotalDuration()
	if total < cur-Tolerance || math.IsNaN(total) {
		return fmt.Errorf("%w: %g < %g", ErrInvalidDuration, total, cur)
	}
	if total > cur {
		w.trail += total - cur
	}
	return nil
}

// Repeat plays the whole of w, including any lead and trail, n+1 times
// back to back.  Repeats compose: Repeat(1) then Repeat(3) plays 8 times
func (w *Waveform) Repeat(n int) error {
	if n < 0 {
		return fmt.Errorf("%w: repeat count %d", ErrInvalidParameters, n)
	}
	if w.lead > 0 || w.trail > 0 {
		// the framing becomes part of the replayed pattern
		if w.repeats > 0 {
			w.segments = w.unroll()
			w.repeats = 0
		}
		w.segments[0].WaitBegin += w.lead
		w.segments[len(w.segments)-1].WaitEnd += w.trail
		w.lead, w.trail = 0, 0
	}
	w.repeats = (w.repeats+1)*(n+1) - 1
	return nil
}

func (w *Waveform) unroll() []Segment {
	out := make([]Segment, 0, len(w.segments)*(w.repeats+1))
	for i := 0; i <= w.repeats; i++ {
		out = append(out, w.segments...)
	}
	return out
}

// PrependLead delays the whole waveform by d without changing its shape
func (w *Waveform) PrependLead(d float64) error {
	if d < 0 || math.IsNaN(d) || math.IsInf(d, 0) {
		return fmt.Errorf("%w: lead %g", ErrInvalidParameters, d)
	}
	w.lead += d
	return nil
}

// Pattern expands one replay of the pattern into ramp vectors
func (w *Waveform) Pattern() []Vector {
	var out []Vector
	for _, s := range w.segments {
		out = append(out, s.Vectors()...)
	}
	return out
}

// Vectors expands the entire waveform, lead, every replay and trail, into
// ramp vectors
func (w *Waveform) Vectors() []Vector {
	pattern := w.Pattern()
	out := make([]Vector, 0, len(pattern)*(w.repeats+1)+2)
	if w.lead > 0 {
		out = append(out, Vector{w.lead, 0})
	}
	for i := 0; i <= w.repeats; i++ {
		out = append(out, pattern...)
	}
	if w.trail > 0 {
		out = append(out, Vector{w.trail, 0})
	}
	return out
}

// Sample evaluates the waveform every dt seconds from t=0 through the end
func (w *Waveform) Sample(dt float64) ([]float64, error) {
	if dt <= 0 || math.IsNaN(dt) {
		return nil, fmt.Errorf("%w: sample interval %g", ErrInvalidParameters, dt)
	}
	n := int(w.TotalDuration()/dt) + 1
	out := make([]float64, 0, n)
	var (
		t0, v0 float64 // start time and voltage of the current vector
		t      float64
	)
	for _, vec := range w.Vectors() {
		t1 := t0 + vec.DT
		for ; t < t1 && len(out) < n; t = float64(len(out)) * dt {
			out = append(out, v0+(vec.Voltage-v0)*(t-t0)/vec.DT)
		}
		t0, v0 = t1, vec.Voltage
	}
	for len(out) < n {
		out = append(out, v0)
	}
	return out, nil
}
