package waveform

import (
	"errors"
	"fmt"
	"math"
	"testing"
)

func near(a, b float64) bool {
	return math.Abs(a-b) <= 1e-12
}

func mustNew(t *testing.T, p Pulse) *Waveform {
	t.Helper()
	w, err := New(p)
	if err != nil {
		t.Fatal(err)
	}
	return w
}

func ExampleWaveform_TotalDuration() {
	w, _ := New(Pulse{Voltage: 1, Interval: 1, Edges: 1, Length: 2})
	fmt.Println(w.TotalDuration())
	w.Repeat(2)
	fmt.Println(w.TotalDuration())
	w.PrependLead(5)
	fmt.Println(w.TotalDuration())
	// Output:
	// 6
	// 18
	// 23
}

func TestIntervalFillsWaits(t *testing.T) {
	w := mustNew(t, Pulse{Voltage: 1, Interval: 1e-7, Edges: 1e-7, Length: 1e-6})
	s := w.Segments()[0]
	if s.WaitBegin != 1e-7 || s.WaitEnd != 1e-7 {
		t.Errorf("expected waits of 1e-7, got %g and %g", s.WaitBegin, s.WaitEnd)
	}
	w = mustNew(t, Pulse{Voltage: 1, Interval: 1e-7, Edges: 1e-7, Length: 1e-6, WaitBegin: 3e-7})
	if w.WaitBegin() != 3e-7 {
		t.Errorf("expected explicit wait begin to win, got %g", w.WaitBegin())
	}
}

func TestNewRejectsNegatives(t *testing.T) {
	bad := []Pulse{
		{Length: -1},
		{Length: 1, Edges: -1},
		{Length: 1, WaitBegin: -1},
		{Length: 1, WaitEnd: -1},
		{Length: 1, Interval: -1},
		{Length: math.NaN()},
		{Length: 1, Voltage: math.Inf(1)},
	}
	for i, p := range bad {
		if _, err := New(p); !errors.Is(err, ErrInvalidParameters) {
			t.Errorf("case %d: expected ErrInvalidParameters, got %v", i, err)
		}
	}
}

func TestCenteredOn(t *testing.T) {
	ref := mustNew(t, Pulse{Voltage: 1, Interval: 1e-7, Edges: 1e-7, Length: 3e-6})
	c, err := ref.CenteredOn(0.5, 1e-6, 0)
	if err != nil {
		t.Fatal(err)
	}
	rs, re := ref.ActiveWindow()
	cs, ce := c.ActiveWindow()
	if !near((rs+re)/2, (cs+ce)/2) {
		t.Errorf("expected midpoints to match, got %g and %g", (rs+re)/2, (cs+ce)/2)
	}
	if c.Voltage() != 0.5 || c.Length() != 1e-6 || c.Edges() != ref.Edges() {
		t.Errorf("unexpected centered pulse %+v", c.Segments()[0])
	}
	if _, err := ref.CenteredOn(1, 1, 0); !errors.Is(err, ErrInvalidParameters) {
		t.Errorf("expected a pulse longer than the reference to fail, got %v", err)
	}
}

func TestCopyPreservesStartAndSource(t *testing.T) {
	src := mustNew(t, Pulse{Voltage: 1, WaitBegin: 2e-7, Edges: 1e-7, Length: 1e-6})
	c, err := src.Copy(Length(4e-7), WaitEnd(6e-7), Voltage(2))
	if err != nil {
		t.Fatal(err)
	}
	if c.WaitBegin() != src.WaitBegin() {
		t.Errorf("expected start %g got %g", src.WaitBegin(), c.WaitBegin())
	}
	if !near(c.TotalDuration(), src.TotalDuration()) {
		t.Errorf("expected shortened pulse plus wait end to keep duration %g, got %g", src.TotalDuration(), c.TotalDuration())
	}
	if src.Length() != 1e-6 || src.Voltage() != 1 {
		t.Error("copy mutated its source")
	}
	if _, err := src.Copy(Length(-1)); !errors.Is(err, ErrInvalidParameters) {
		t.Errorf("expected ErrInvalidParameters, got %v", err)
	}
}

func TestExtendTo(t *testing.T) {
	w := mustNew(t, Pulse{Voltage: 1, Edges: 1, Length: 2})
	if err := w.ExtendTo(10); err != nil {
		t.Fatal(err)
	}
	if w.TotalDuration() != 10 {
		t.Errorf("expected 10 got %g", w.TotalDuration())
	}
	if err := w.ExtendTo(10); err != nil {
		t.Errorf("extending to the current duration should be a no-op, got %v", err)
	}
	if err := w.ExtendTo(9); !errors.Is(err, ErrInvalidDuration) {
		t.Errorf("expected ErrInvalidDuration, got %v", err)
	}
}

func TestRepeatFoldsFramingAndComposes(t *testing.T) {
	w := mustNew(t, Pulse{Voltage: 1, Edges: 1, Length: 2}) // 4
	w.ExtendTo(5)
	w.Repeat(1)
	if w.Repeats() != 1 || w.Trail() != 0 {
		t.Fatalf("expected trail folded into a 2x pattern, got repeats=%d trail=%g", w.Repeats(), w.Trail())
	}
	if w.TotalDuration() != 10 {
		t.Errorf("expected 10 got %g", w.TotalDuration())
	}
	w.Repeat(3)
	if w.Repeats() != 7 {
		t.Errorf("expected 8 plays, got %d", w.Repeats()+1)
	}
	if w.TotalDuration() != 40 {
		t.Errorf("expected 40 got %g", w.TotalDuration())
	}
	// a trail added after repeating is folded by unrolling
	w.ExtendTo(41)
	w.Repeat(1)
	if w.TotalDuration() != 82 {
		t.Errorf("expected 82 got %g", w.TotalDuration())
	}
	if len(w.Segments()) != 8 || w.Repeats() != 1 {
		t.Errorf("expected 8 unrolled segments played twice, got %d and %d", len(w.Segments()), w.Repeats()+1)
	}
	if err := w.Repeat(-1); !errors.Is(err, ErrInvalidParameters) {
		t.Errorf("expected ErrInvalidParameters, got %v", err)
	}
}

func TestPrependLeadIsNotReplayed(t *testing.T) {
	w := mustNew(t, Pulse{Voltage: 1, Edges: 1, Length: 2})
	w.Repeat(9)
	w.PrependLead(3)
	if w.TotalDuration() != 43 {
		t.Errorf("expected 43 got %g", w.TotalDuration())
	}
	if w.WaitBegin() != 3 {
		t.Errorf("expected first edge at 3, got %g", w.WaitBegin())
	}
	if err := w.PrependLead(-1); !errors.Is(err, ErrInvalidParameters) {
		t.Errorf("expected ErrInvalidParameters, got %v", err)
	}
}

func TestVectorsSumToDuration(t *testing.T) {
	w := mustNew(t, Pulse{Voltage: 1, Interval: 1e-7, Edges: 1e-7, Length: 1e-6})
	w.ExtendTo(3e-6)
	w.Repeat(4)
	w.PrependLead(2e-6)
	var sum float64
	for _, v := range w.Vectors() {
		sum += v.DT
	}
	if !near(sum, w.TotalDuration()) {
		t.Errorf("expected vectors to span %g, got %g", w.TotalDuration(), sum)
	}
	last := w.Vectors()[len(w.Vectors())-1]
	if last.Voltage != 0 {
		t.Errorf("expected waveform to end idle, got %g V", last.Voltage)
	}
}

func TestSample(t *testing.T) {
	w := mustNew(t, Pulse{Voltage: 2, WaitBegin: 1, Edges: 1, Length: 2, WaitEnd: 1})
	s, err := w.Sample(0.5)
	if err != nil {
		t.Fatal(err)
	}
	truth := []float64{0, 0, 0, 1, 2, 2, 2, 2, 2, 1, 0, 0, 0}
	if len(s) != len(truth) {
		t.Fatalf("expected %d samples got %d", len(truth), len(s))
	}
	for i := range truth {
		if !near(s[i], truth[i]) {
			t.Errorf("sample %d: expected %g got %g", i, truth[i], s[i])
		}
	}
	if _, err := w.Sample(0); !errors.Is(err, ErrInvalidParameters) {
		t.Errorf("expected ErrInvalidParameters, got %v", err)
	}
}
