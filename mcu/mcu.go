/*Package mcu talks to the microcontroller that sequences the crossbar control
logic.

The controller accepts 64 rail codes per procedure, one per cell in row-major
order, and clocks them into the array as the clk channel of the waveform
instrument ticks.  Procedures are framed as

	STX | cmd | len | payload... | crc16 (XMODEM, big endian)

and, when acknowledgement is enabled, every procedure is answered with a frame
whose cmd byte is a status (ACK or NACK).  Sense procedures are always
answered, with the 64 codes read from the array.
*/
package mcu

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/snksoft/crc"

	"github.com/crossbar-lab/xbar/codec"
)

// AckMode selects which procedures the controller acknowledges
type AckMode byte

const (
	// AckNone disables acknowledgement
	AckNone AckMode = 0

	// AckAll acknowledges every procedure command
	AckAll AckMode = 1
)

// CS is a chip select / mode pin driven by the controller
type CS byte

const (
	// CaracEn enables characterization mode on chips without a waveform instrument
	CaracEn CS = 0x01
)

// State is the level of a CS pin
type State byte

const (
	// Clear drives the pin low
	Clear State = 0

	// Asserted drives the pin high
	Asserted State = 1
)

const (
	stx        = 0x02
	statusAck  = 0x06
	statusNack = 0x15

	cmdSet     = 0x10
	cmdReset   = 0x11
	cmdSense   = 0x12
	cmdSenseUC = 0x13
	cmdFill    = 0x14
	cmdAckMode = 0x20
	cmdSetCS   = 0x21
)

var (
	// ErrCodeCount is returned when a procedure is not given exactly 64 codes
	ErrCodeCount = errors.New("mcu: expected 64 codes")

	// ErrBadFrame is returned for responses that do not parse or fail their CRC
	ErrBadFrame = errors.New("mcu: malformed response frame")

	// ErrNack is matched by every StatusError
	ErrNack = errors.New("mcu: procedure not acknowledged")

	crcTable = crc.NewTable(crc.XMODEM)

	cmdNames = map[byte]string{
		cmdSet:     "set",
		cmdReset:   "reset",
		cmdSense:   "sense",
		cmdSenseUC: "sense_uc",
		cmdFill:    "fill",
		cmdAckMode: "ack_mode",
		cmdSetCS:   "set_cs",
	}
)

// StatusError is a NACK from the controller
type StatusError struct {
	Cmd  byte
	Code byte
}

// Error satisfies stdlib error interface
func (e StatusError) Error() string {
	return fmt.Sprintf("mcu: %s refused with code %d", cmdNames[e.Cmd], e.Code)
}

// Unwrap lets errors.Is(err, ErrNack) match
func (e StatusError) Unwrap() error {
	return ErrNack
}

// Link is the command interface of the controller
type Link interface {
	// Set runs a SET pass with 64 rail codes
	Set(codes []byte) error

	// Reset runs a RESET pass with 64 rail codes
	Reset(codes []byte) error

	// Sense reads the array while the waveform instrument drives it
	Sense() ([]byte, error)

	// SenseUC reads the array using only the controller
	SenseUC() ([]byte, error)

	// Fill writes 64 binary values on chips without rail codes
	Fill(codes []byte) error

	// FlushInput discards anything waiting in the receive buffer
	FlushInput() error

	// AckMode selects which procedures are acknowledged
	AckMode(m AckMode) error

	// SetCS drives a chip select pin
	SetCS(pin CS, s State) error

	// Close releases the link
	Close() error
}

// CheckCodes returns ErrCodeCount unless codes holds exactly 64 values of at most maxCode
func CheckCodes(codes []byte, maxCode byte) error {
	if len(codes) != codec.Cells {
		return fmt.Errorf("%w, got %d", ErrCodeCount, len(codes))
	}
	for i, c := range codes {
		if c > maxCode {
			return fmt.Errorf("mcu: code %d at cell %d exceeds %d", c, i, maxCode)
		}
	}
	return nil
}

func checksum(buf []byte) []byte {
	c := crcTable.InitCrc()
	c = crcTable.UpdateCrc(c, buf)
	out := make([]byte, 2)
	binary.BigEndian.PutUint16(out, crcTable.CRC16(c))
	return out
}

// frame wraps a command and its payload for transmission
func frame(cmd byte, payload []byte) []byte {
	body := append([]byte{cmd, byte(len(payload))}, payload...)
	out := append([]byte{stx}, body...)
	return append(out, checksum(body)...)
}

// unframe checks a complete response frame and returns its status and payload
func unframe(buf []byte) (byte, []byte, error) {
	if len(buf) < 5 || buf[0] != stx {
		return 0, nil, ErrBadFrame
	}
	n := int(buf[2])
	if len(buf) != n+5 {
		return 0, nil, fmt.Errorf("%w: length %d for %d byte payload", ErrBadFrame, len(buf), n)
	}
	body := buf[1 : 3+n]
	cs := checksum(body)
	if cs[0] != buf[3+n] || cs[1] != buf[4+n] {
		return 0, nil, fmt.Errorf("%w: crc mismatch", ErrBadFrame)
	}
	return buf[1], buf[3 : 3+n], nil
}
