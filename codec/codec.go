/*Package codec translates logical memristor cell values into the two-bit rail
codes understood by the crossbar controller.

Each cell of the array is a pair of complementary memristors, R and Rb.  A rail
code is written 0bXY where X addresses R and Y addresses Rb; 0b00 leaves the
cell alone.  What "address" means (SET, RESET or FORM) depends on the operation
the codes are sent with, so the same logical value encodes differently per
Context:

	value   SET/FORM   RESET
	 +1      0b01      0b10
	 -1      0b10      0b01
	  0      0b00      0b11

RESET codes are always the SET code with both bits flipped.
*/
package codec

import (
	"errors"
	"fmt"

	"github.com/crossbar-lab/xbar/util"
)

const (
	// Rows is the number of word lines in the array
	Rows = 8

	// Cols is the number of bit lines in the array
	Cols = 8

	// Cells is the number of cells, and the number of codes in one transmission
	Cells = Rows * Cols

	// bitR and bitRb are the positions of X and Y in 0bXY
	bitR  = 1
	bitRb = 0
)

var (
	// ErrInvalidValue is returned when a logical value is outside the codec domain
	ErrInvalidValue = errors.New("codec: value outside {-1, 0, 1}")

	// ErrInvalidCode is returned when decoding a code that has no logical meaning
	ErrInvalidCode = errors.New("codec: code has no logical value")

	// ErrShape is returned when an array is not 8x8 or a buffer does not hold 64 codes
	ErrShape = errors.New("codec: expected 8x8 array")
)

// Value is the logical state of a cell
type Value int8

const (
	// Reset drives the pair to LRS-HRS
	Reset Value = -1

	// Unset is HRS-HRS, the pair is left untouched
	Unset Value = 0

	// Set drives the pair to HRS-LRS
	Set Value = 1
)

// Valid returns true if v is one of Reset, Unset, or Set
func (v Value) Valid() bool {
	return v >= Reset && v <= Set
}

// Code is a two-bit rail code, 0bXY
type Code uint8

const (
	// NoOp leaves both memristors of the cell untouched
	NoOp Code = 0b00

	// ActRb acts on the complementary memristor only
	ActRb Code = 0b01

	// ActR acts on the true memristor only
	ActR Code = 0b10

	// ActBoth acts on both memristors.  It is never produced by a SET table and
	// is contradictory when read back
	ActBoth Code = 0b11
)

// R returns true if the code acts on R
func (c Code) R() bool {
	return util.GetBit(byte(c), bitR)
}

// Rb returns true if the code acts on Rb
func (c Code) Rb() bool {
	return util.GetBit(byte(c), bitRb)
}

// String formats the code as 0bXY
func (c Code) String() string {
	return fmt.Sprintf("0b%02b", uint8(c)&0b11)
}

// Context is the electrical operation a code will be transmitted with
type Context int

const (
	// SetContext codes are sent with a SET pass
	SetContext Context = iota

	// ResetContext codes are sent with a RESET pass
	ResetContext

	// FormContext codes are sent with a FORM pass, which shares SET's control signals
	FormContext
)

func (c Context) String() string {
	switch c {
	case SetContext:
		return "set"
	case ResetContext:
		return "reset"
	case FormContext:
		return "form"
	default:
		return fmt.Sprintf("context(%d)", int(c))
	}
}

var setTable = map[Value]Code{
	Set:   ActRb,
	Reset: ActR,
	Unset: NoOp,
}

// Complement flips both bits of a code
func Complement(c Code) Code {
	return c ^ ActBoth
}

// Encode maps a logical value to the rail code for the given context
func Encode(v Value, ctx Context) (Code, error) {
	c, ok := setTable[v]
	if !ok {
		return 0, fmt.Errorf("%w: %d", ErrInvalidValue, v)
	}
	switch ctx {
	case SetContext, FormContext:
		return c, nil
	case ResetContext:
		return Complement(c), nil
	default:
		return 0, fmt.Errorf("codec: unknown context %d", int(ctx))
	}
}

// EncodeBinary maps a logical value to the single bit used by chips without
// an explicit "leave unchanged" state; Set is 1, everything else 0
func EncodeBinary(v Value) (byte, error) {
	if !v.Valid() {
		return 0, fmt.Errorf("%w: %d", ErrInvalidValue, v)
	}
	if v == Set {
		return 1, nil
	}
	return 0, nil
}

// Decode maps a SET-context code back to its logical value.
// ActBoth is rejected with ErrInvalidCode
func Decode(c Code) (Value, error) {
	switch c {
	case NoOp:
		return Unset, nil
	case ActRb:
		return Set, nil
	case ActR:
		return Reset, nil
	}
	return Unset, fmt.Errorf("%w: %s", ErrInvalidCode, c)
}
