package scpi

import (
	"bufio"
	"errors"
	"io"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/crossbar-lab/xbar/comm"
)

// fakeInstrument answers every line with reply(line)
func fakeInstrument(reply func(string) string) *comm.Pool {
	maker := func() (io.ReadWriteCloser, error) {
		client, srv := net.Pipe()
		go func() {
			r := bufio.NewReader(srv)
			for {
				line, err := r.ReadString('\n')
				if err != nil {
					return
				}
				if resp := reply(strings.TrimSuffix(line, "\n")); resp != "" {
					srv.Write([]byte(resp + "\n"))
				}
			}
		}()
		return client, nil
	}
	return comm.NewPool(1, time.Minute, maker)
}

func TestReadFloat(t *testing.T) {
	s := SCPI{Pool: fakeInstrument(func(string) string { return "+1.250000E+00" })}
	f, err := s.ReadFloat("MEAS:VOLT?")
	if err != nil {
		t.Fatal(err)
	}
	if f != 1.25 {
		t.Errorf("expected 1.25 got %f", f)
	}
}

func TestHandshakingFramesAndChecks(t *testing.T) {
	var seen string
	s := SCPI{Handshaking: true, Pool: fakeInstrument(func(l string) string {
		seen = l
		if strings.Contains(l, "BAD") {
			return `-113,"Undefined header"`
		}
		return `+0,"No error"`
	})}
	if err := s.Write("VOLT 1.0"); err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(seen, "*CLS;") || !strings.HasSuffix(seen, ":SYSTem:ERRor?") {
		t.Errorf("expected command wrapped in an error query, got %q", seen)
	}
	if err := s.Write("BAD"); err == nil {
		t.Error("expected the error queue entry to be returned")
	}
}

func TestLongReplyReadWhole(t *testing.T) {
	data := strings.Repeat("0.000000E+00,", 4000) + "0.000000E+00"
	s := SCPI{Handshaking: true, Pool: fakeInstrument(func(l string) string {
		if strings.Contains(l, "FETC?") {
			return data + `;+0,"No error"`
		}
		return `+0,"No error"`
	})}
	resp, err := s.ReadString("FETC?")
	if err != nil {
		t.Fatal(err)
	}
	if resp != data {
		t.Errorf("expected %d bytes of data got %d", len(data), len(resp))
	}
	if err := s.Write("VOLT 1.0"); err != nil {
		t.Errorf("expected the next exchange to see only its own reply, got %v", err)
	}
}

func TestQueryWithoutErrorAnswer(t *testing.T) {
	s := SCPI{Handshaking: true, Pool: fakeInstrument(func(string) string { return "0.5" })}
	if _, err := s.ReadString("MEAS?"); !errors.Is(err, ErrNoErrorReply) {
		t.Errorf("expected ErrNoErrorReply got %v", err)
	}
}
