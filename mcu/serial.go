package mcu

import (
	"fmt"
	"strings"
	"time"

	"github.com/tarm/serial"

	"github.com/crossbar-lab/xbar/comm"
)

// DefaultBaud is the controller's UART rate
const DefaultBaud = 115200

// makeSerConf makes a new serial.Config with correct parity, baud, etc, set.
func makeSerConf(addr string, baud int) *serial.Config {
	return &serial.Config{
		Name:        addr,
		Baud:        baud,
		Size:        8,
		Parity:      serial.ParityNone,
		StopBits:    serial.Stop1,
		ReadTimeout: 5 * time.Second}
}

// Serial is a Link over a serial port, or a TCP serial server when addr is host:port
type Serial struct {
	comm.RemoteDevice

	ack AckMode
}

// NewSerial opens the controller at addr
func NewSerial(addr string, baud int) (*Serial, error) {
	if baud == 0 {
		baud = DefaultBaud
	}
	isSerial := !strings.Contains(addr, ":") || strings.HasPrefix(addr, "COM")
	s := &Serial{RemoteDevice: comm.NewRemoteDevice(addr, isSerial, makeSerConf(addr, baud))}
	if err := s.Open(); err != nil {
		return nil, fmt.Errorf("mcu: open %s: %w", addr, err)
	}
	return s, nil
}

// transact sends a command and, if reply is true, reads the response payload
func (s *Serial) transact(cmd byte, payload []byte, reply bool) ([]byte, error) {
	s.Lock()
	defer s.Unlock()
	return s.exchange(cmd, payload, reply)
}

// exchange is transact with the lock held
func (s *Serial) exchange(cmd byte, payload []byte, reply bool) ([]byte, error) {
	if err := s.Write(frame(cmd, payload)); err != nil {
		return nil, err
	}
	if !reply {
		return nil, nil
	}
	head, err := s.ReadFull(3)
	if err != nil {
		return nil, err
	}
	rest, err := s.ReadFull(int(head[2]) + 2)
	if err != nil {
		return nil, err
	}
	status, data, err := unframe(append(head, rest...))
	if err != nil {
		return nil, err
	}
	switch status {
	case statusAck:
		return data, nil
	case statusNack:
		code := byte(0)
		if len(data) > 0 {
			code = data[0]
		}
		return nil, StatusError{Cmd: cmd, Code: code}
	default:
		return nil, fmt.Errorf("%w: status 0x%02x", ErrBadFrame, status)
	}
}

// procedure waits for the acknowledgement only in AckAll mode
func (s *Serial) procedure(cmd byte, payload []byte) error {
	s.Lock()
	defer s.Unlock()
	_, err := s.exchange(cmd, payload, s.ack == AckAll)
	return err
}

func (s *Serial) codes(cmd byte, codes []byte, maxCode byte) error {
	if err := CheckCodes(codes, maxCode); err != nil {
		return err
	}
	return s.procedure(cmd, codes)
}

// Set satisfies Link
func (s *Serial) Set(codes []byte) error {
	return s.codes(cmdSet, codes, 0b11)
}

// Reset satisfies Link
func (s *Serial) Reset(codes []byte) error {
	return s.codes(cmdReset, codes, 0b11)
}

// Fill satisfies Link
func (s *Serial) Fill(codes []byte) error {
	return s.codes(cmdFill, codes, 1)
}

func (s *Serial) sense(cmd byte) ([]byte, error) {
	data, err := s.transact(cmd, nil, true)
	if err != nil {
		return nil, err
	}
	if err := CheckCodes(data, 0xff); err != nil {
		return nil, err
	}
	return data, nil
}

// Sense satisfies Link
func (s *Serial) Sense() ([]byte, error) {
	return s.sense(cmdSense)
}

// SenseUC satisfies Link
func (s *Serial) SenseUC() ([]byte, error) {
	return s.sense(cmdSenseUC)
}

// FlushInput satisfies Link
func (s *Serial) FlushInput() error {
	s.Lock()
	defer s.Unlock()
	return s.Flush()
}

// AckMode satisfies Link.  The change is acknowledged under the new mode
func (s *Serial) AckMode(m AckMode) error {
	s.Lock()
	defer s.Unlock()
	s.ack = m
	_, err := s.exchange(cmdAckMode, []byte{byte(m)}, m == AckAll)
	return err
}

// SetCS satisfies Link
func (s *Serial) SetCS(pin CS, st State) error {
	return s.procedure(cmdSetCS, []byte{byte(pin), byte(st)})
}
