package wgfmu

import (
	"bufio"
	"net"
	"strings"
	"sync"
	"testing"
)

const noError = `+0,"No error"`

// fakeMainframe answers the handshaken SCPI traffic of an Instrument.  Every
// fetch returns n copies of sample
type fakeMainframe struct {
	ln     net.Listener
	n      int
	sample string

	mu    sync.Mutex
	lines []string
}

func newFakeMainframe(t *testing.T, n int, sample string) *fakeMainframe {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	f := &fakeMainframe{ln: ln, n: n, sample: sample}
	go f.serve()
	t.Cleanup(func() { ln.Close() })
	return f
}

func (f *fakeMainframe) serve() {
	for {
		conn, err := f.ln.Accept()
		if err != nil {
			return
		}
		go f.handle(conn)
	}
}

func (f *fakeMainframe) handle(conn net.Conn) {
	defer conn.Close()
	r := bufio.NewReader(conn)
	w := bufio.NewWriter(conn)
	for {
		line, err := r.ReadString('\n')
		if err != nil {
			return
		}
		line = strings.TrimSuffix(line, "\n")
		f.mu.Lock()
		f.lines = append(f.lines, line)
		f.mu.Unlock()
		var reply string
		switch {
		case strings.Contains(line, "*IDN?"):
			reply = "FAKE,WGFMU,0,1.0;" + noError
		case strings.Contains(line, "FETCh?"):
			samples := make([]string, f.n)
			for i := range samples {
				samples[i] = f.sample
			}
			reply = strings.Join(samples, ",") + ";" + noError
		case strings.Contains(line, "*OPC?"):
			reply = "1;" + noError
		default:
			reply = noError
		}
		w.WriteString(reply + "\n")
		w.Flush()
	}
}

func (f *fakeMainframe) received() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.lines...)
}

func stagedInstrument(t *testing.T, f *fakeMainframe) *Instrument {
	t.Helper()
	inst, err := NewInstrument(f.ln.Addr().String())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { inst.Close() })
	for ch := 1; ch <= NumChannels; ch++ {
		if err := inst.Assign(ch, ChannelNames[ch], pulse(t)); err != nil {
			t.Fatal(err)
		}
	}
	if err := inst.ArmMeasurement(Clock, MeasureParams{AverageTime: 1e-8, SampleInterval: 1e-8}); err != nil {
		t.Fatal(err)
	}
	return inst
}

func TestInstrumentUploadAndTrigger(t *testing.T) {
	f := newFakeMainframe(t, 1, "0")
	inst := stagedInstrument(t, f)
	if err := inst.Upload(); err != nil {
		t.Fatal(err)
	}
	if err := inst.Trigger(false); err != nil {
		t.Fatal(err)
	}
	var patterns, inits, opc int
	for _, l := range f.received() {
		if !strings.HasPrefix(l, "*CLS;") || !strings.HasSuffix(l, ":SYSTem:ERRor?") {
			t.Errorf("expected every message to be handshaken, got %q", l)
		}
		switch {
		case strings.Contains(l, ":PATTern "):
			patterns++
		case strings.Contains(l, ":INITiate"):
			inits++
		case strings.Contains(l, "*OPC?"):
			opc++
		}
	}
	if patterns != NumChannels {
		t.Errorf("expected %d patterns uploaded got %d", NumChannels, patterns)
	}
	if inits != 1 || opc != 0 {
		t.Errorf("expected one non-waiting trigger, got %d inits and %d completion queries", inits, opc)
	}
}

func TestInstrumentFetchesLongCaptures(t *testing.T) {
	const n = 20000
	for _, sample := range []string{"0.000000E+00", "1.250000E+00"} {
		f := newFakeMainframe(t, n, sample)
		inst := stagedInstrument(t, f)
		if err := inst.Upload(); err != nil {
			t.Fatal(err)
		}
		recs, err := inst.Results()
		if err != nil {
			t.Fatalf("%s: %v", sample, err)
		}
		if len(recs) != 1 || recs[0].Name != "clk" {
			t.Fatalf("expected one clk recording got %d", len(recs))
		}
		if len(recs[0].Volts) != n {
			t.Fatalf("%s: expected %d samples got %d", sample, n, len(recs[0].Volts))
		}
		if last := recs[0].Volts[len(recs[0].Volts)-1]; strings.HasPrefix(sample, "1") && last != 1.25 {
			t.Errorf("expected last sample 1.25 got %v", last)
		}
		// the connection must be clean for the next exchange
		if err := inst.Trigger(true); err != nil {
			t.Errorf("%s: trigger after fetch: %v", sample, err)
		}
	}
}
