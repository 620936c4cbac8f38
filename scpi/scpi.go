// Package scpi talks to LAN instruments with SCPI command sets.
//
// Commands are newline terminated.  With handshaking, every message is
// prefixed by *CLS and suffixed by an error query, so that a refused command
// surfaces as an error on the call that sent it
package scpi

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/crossbar-lab/xbar/comm"
)

const timeout = 5 * time.Second

// ErrNoErrorReply is returned when a handshaken query reply does not end
// with the answer to the error query
var ErrNoErrorReply = errors.New("scpi: reply carries no error query answer")

// SCPI sends commands to one instrument through a connection pool
type SCPI struct {
	Pool *comm.Pool

	// Handshaking appends an error query to every message
	Handshaking bool
}

// New returns an SCPI interface to the instrument at addr, holding at most
// one connection
func New(addr string, handshaking bool) *SCPI {
	maker := func() (io.ReadWriteCloser, error) {
		return comm.TCPSetup(addr, timeout)
	}
	return &SCPI{Pool: comm.NewPool(1, time.Minute, maker), Handshaking: handshaking}
}

func (s *SCPI) frame(cmds []string) string {
	if s.Handshaking {
		cmds = append([]string{"*CLS;"}, cmds...)
		cmds = append(cmds, ";:SYSTem:ERRor?")
	}
	return strings.Join(cmds, " ")
}

// exchange writes one framed message and, if reply is true, reads the whole
// terminated reply back, however long.  The connection is discarded from the
// pool on any error
func (s *SCPI) exchange(cmds []string, reply bool) (resp []byte, err error) {
	conn, err := s.Pool.Get()
	if err != nil {
		return nil, err
	}
	defer func() { s.Pool.ReturnWithError(conn, err) }()
	nc, _ := conn.(net.Conn)
	term := comm.NewTerminator(comm.NewTimeout(conn, nc, timeout), '\n', '\n')
	if _, err = io.WriteString(term, s.frame(cmds)); err != nil {
		return nil, err
	}
	if !reply {
		return nil, nil
	}
	resp, err = term.ReadMessage()
	if err != nil {
		return nil, err
	}
	return bytes.TrimRight(resp, "\r"), nil
}

// Write sends a set command.  With handshaking, the error query reply is
// checked
func (s *SCPI) Write(cmds ...string) error {
	resp, err := s.exchange(cmds, s.Handshaking)
	if err != nil || !s.Handshaking {
		return err
	}
	return checkError(string(resp))
}

// WriteRead sends a query and returns the reply, stripped of the error query
// answer when handshaking
func (s *SCPI) WriteRead(cmds ...string) ([]byte, error) {
	resp, err := s.exchange(cmds, true)
	if err != nil || !s.Handshaking {
		return resp, err
	}
	i := bytes.LastIndexByte(resp, ';')
	if i < 0 {
		return nil, fmt.Errorf("%w: %.40q", ErrNoErrorReply, resp)
	}
	if err := checkError(string(resp[i+1:])); err != nil {
		return nil, err
	}
	return resp[:i], nil
}

func checkError(s string) error {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "+0") || strings.HasPrefix(s, "0") {
		return nil
	}
	return fmt.Errorf("scpi: %s", s)
}

// ReadString sends a query and returns the reply without its line ending
func (s *SCPI) ReadString(cmds ...string) (string, error) {
	resp, err := s.WriteRead(cmds...)
	if err != nil {
		return "", err
	}
	return strings.TrimRight(string(resp), "\r\n"), nil
}

// ReadFloat sends a query and parses the reply as a float
func (s *SCPI) ReadFloat(cmds ...string) (float64, error) {
	resp, err := s.ReadString(cmds...)
	if err != nil {
		return 0, err
	}
	return strconv.ParseFloat(strings.TrimSpace(resp), 64)
}

// ReadInt sends a query and parses the reply as an integer
func (s *SCPI) ReadInt(cmds ...string) (int, error) {
	resp, err := s.ReadString(cmds...)
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(strings.TrimSpace(resp))
}

// Close frees the idle connections to the device
func (s *SCPI) Close() error {
	return s.Pool.Close()
}
