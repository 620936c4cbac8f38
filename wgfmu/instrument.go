package wgfmu

import (
	"fmt"
	"log"
	"strconv"
	"strings"

	"github.com/crossbar-lab/xbar/scpi"
	"github.com/crossbar-lab/xbar/waveform"
)

// Instrument is a WGFMU mainframe reached over LAN through its SCPI bridge.
//
// Each channel holds one pattern of ramp vectors that is played
// repeat+1 times, framed by a lead and a trail at 0 V
type Instrument struct {
	stage

	scpi *scpi.SCPI
}

// NewInstrument connects to the instrument at addr and checks that it answers
func NewInstrument(addr string) (*Instrument, error) {
	i := &Instrument{scpi: scpi.New(addr, true)}
	idn, err := i.scpi.ReadString("*IDN?")
	if err != nil {
		i.scpi.Close()
		return nil, fmt.Errorf("wgfmu: no answer from %s: %w", addr, err)
	}
	log.Printf("wgfmu: connected to %s at %s\n", idn, addr)
	return i, nil
}

func formatPattern(w *waveform.Waveform) string {
	vecs := w.Pattern()
	parts := make([]string, 0, 2*len(vecs))
	for _, v := range vecs {
		parts = append(parts,
			strconv.FormatFloat(v.DT, 'E', -1, 64),
			strconv.FormatFloat(v.Voltage, 'E', -1, 64))
	}
	return strings.Join(parts, ",")
}

func channelCommands(c Channel) []string {
	pre := fmt.Sprintf(":WGFM%d", c.ID)
	cmds := []string{
		pre + ":CLEar",
		fmt.Sprintf("%s:LABel \"%s\"", pre, c.Name),
		fmt.Sprintf("%s:PATTern %s", pre, formatPattern(c.Wave)),
		fmt.Sprintf("%s:REPeat %d", pre, c.Wave.Repeats()),
		fmt.Sprintf("%s:LEAD %E", pre, c.Wave.Lead()),
		fmt.Sprintf("%s:TRAil %E", pre, c.Wave.Trail()),
	}
	if c.Measure == nil {
		return append(cmds, pre+":MEASure OFF")
	}
	m := c.Measure
	return append(cmds,
		fmt.Sprintf("%s:MEASure:AVERage %E", pre, m.AverageTime),
		fmt.Sprintf("%s:MEASure:SAMPle %E", pre, m.SampleInterval),
		fmt.Sprintf("%s:MEASure:EDGes %s", pre, onOff(!m.IgnoreEdges)),
		fmt.Sprintf("%s:MEASure:SETTling %s", pre, onOff(!m.IgnoreSettling)),
		pre+":MEASure ON")
}

func onOff(b bool) string {
	if b {
		return "ON"
	}
	return "OFF"
}

// Upload satisfies Session
func (i *Instrument) Upload() error {
	if err := i.check(); err != nil {
		return err
	}
	for _, c := range i.chans {
		for _, cmd := range channelCommands(c) {
			if err := i.scpi.Write(cmd); err != nil {
				return fmt.Errorf("wgfmu: channel %d: %w", c.ID, err)
			}
		}
	}
	return nil
}

// Trigger satisfies Session
func (i *Instrument) Trigger(wait bool) error {
	if err := i.scpi.Write(":INITiate"); err != nil {
		return err
	}
	if !wait {
		return nil
	}
	_, err := i.scpi.ReadInt("*OPC?")
	return err
}

// Results satisfies Session
func (i *Instrument) Results() ([]Recording, error) {
	var out []Recording
	for _, c := range i.chans {
		if c.Measure == nil {
			continue
		}
		resp, err := i.scpi.ReadString(fmt.Sprintf(":WGFM%d:FETCh?", c.ID))
		if err != nil {
			return out, err
		}
		rec := Recording{Name: c.Name, DT: c.Measure.SampleInterval}
		rec.Volts = make([]float64, 0, strings.Count(resp, ",")+1)
		for _, s := range strings.Split(resp, ",") {
			s = strings.TrimSpace(s)
			if s == "" {
				continue
			}
			f, err := strconv.ParseFloat(s, 64)
			if err != nil {
				return out, fmt.Errorf("wgfmu: channel %d fetch: %w", c.ID, err)
			}
			rec.Volts = append(rec.Volts, f)
		}
		out = append(out, rec)
	}
	return out, nil
}

// Close satisfies Session
func (i *Instrument) Close() error {
	return i.scpi.Close()
}
