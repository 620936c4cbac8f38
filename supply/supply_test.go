package supply

import (
	"bufio"
	"errors"
	"io"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/crossbar-lab/xbar/comm"
	"github.com/crossbar-lab/xbar/scpi"
)

func fastParams() SettleParams {
	return SettleParams{
		Tolerance:    1e-3,
		PollInterval: time.Millisecond,
		SettleDelay:  time.Millisecond,
		Timeout:      2 * time.Second}
}

func TestSetVoltagesSettles(t *testing.T) {
	m := NewMock()
	m.Slew = 0.5
	targets := []Target{{Channel: 1, Volts: 1.8}, {Channel: 2, Volts: -0.4}}
	if err := SetVoltages(m, targets, fastParams()); err != nil {
		t.Fatal(err)
	}
	for _, tgt := range targets {
		if !m.Enabled[tgt.Channel] {
			t.Errorf("expected channel %d enabled", tgt.Channel)
		}
		if got := m.Output[tgt.Channel]; got < tgt.Volts-1e-3 || got > tgt.Volts+1e-3 {
			t.Errorf("channel %d expected %f got %f", tgt.Channel, tgt.Volts, got)
		}
	}
	if m.Reads < 3 {
		t.Errorf("expected several polls for a slewing supply, got %d reads", m.Reads)
	}
}

func TestSettleTimeout(t *testing.T) {
	m := NewMock()
	m.Slew = 0
	p := fastParams()
	p.Timeout = 30 * time.Millisecond
	err := SetVoltages(m, []Target{{Channel: 1, Volts: 1}}, p)
	if !errors.Is(err, ErrSettleTimeout) {
		t.Errorf("expected ErrSettleTimeout got %v", err)
	}
}

func TestSettleReadErrorNotRetried(t *testing.T) {
	m := NewMock()
	err := Settle(m, []Target{{Channel: 9, Volts: 1}}, fastParams())
	if err == nil || errors.Is(err, ErrSettleTimeout) {
		t.Errorf("expected the read error itself got %v", err)
	}
	if m.Reads != 0 {
		t.Errorf("expected no successful reads got %d", m.Reads)
	}
}

func TestSettleNoTargets(t *testing.T) {
	if err := Settle(NewMock(), nil, fastParams()); err != nil {
		t.Error(err)
	}
}

func fakeSupply(lines *[]string) *Tek2230 {
	maker := func() (io.ReadWriteCloser, error) {
		client, srv := net.Pipe()
		go func() {
			r := bufio.NewReader(srv)
			for {
				line, err := r.ReadString('\n')
				if err != nil {
					return
				}
				line = strings.TrimSuffix(line, "\n")
				*lines = append(*lines, line)
				if strings.Contains(line, "MEASure:VOLTage?") {
					srv.Write([]byte("1.250\n"))
				}
			}
		}()
		return client, nil
	}
	return &Tek2230{scpi: &scpi.SCPI{Pool: comm.NewPool(1, time.Minute, maker)}}
}

func TestTek2230Commands(t *testing.T) {
	var lines []string
	s := fakeSupply(&lines)
	defer s.Close()
	if err := s.SetChannelVoltage(2, 1.5); err != nil {
		t.Fatal(err)
	}
	if err := s.SetChannelOutput(2, true); err != nil {
		t.Fatal(err)
	}
	v, err := s.GetChannelVoltage(2)
	if err != nil {
		t.Fatal(err)
	}
	if v != 1.25 {
		t.Errorf("expected 1.25 got %f", v)
	}
	expected := []string{
		"INSTrument:NSELect 2; :SOURce:VOLTage 1.500000E+00",
		"INSTrument:NSELect 2; :SOURce:CHANnel:OUTPut:STATe ON",
		"INSTrument:NSELect 2; :MEASure:VOLTage?",
	}
	if len(lines) != len(expected) {
		t.Fatalf("expected %d lines got %v", len(expected), lines)
	}
	for i := range expected {
		if lines[i] != expected[i] {
			t.Errorf("expected %q got %q", expected[i], lines[i])
		}
	}
}
