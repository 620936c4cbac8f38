package xbar

import (
	"errors"
	"fmt"
	"strings"

	"github.com/crossbar-lab/xbar/codec"
	"github.com/crossbar-lab/xbar/wgfmu"
)

// ErrContradictoryRead is matched by ContradictoryReadError
var ErrContradictoryRead = errors.New("xbar: contradictory read")

// SenseMode selects how the array is read
type SenseMode int

const (
	// DualInstrument plays the sense waveforms while the controller reads
	DualInstrument SenseMode = iota

	// MicrocontrollerOnly reads with the controller alone
	MicrocontrollerOnly
)

// Cell is a row, column position in the array
type Cell struct {
	Row int `json:"row"`
	Col int `json:"col"`
}

// ContradictoryReadError lists the cells that read back as 0b11, both
// memristors of the pair in the same state
type ContradictoryReadError struct {
	Cells []Cell
}

func (e *ContradictoryReadError) Error() string {
	parts := make([]string, len(e.Cells))
	for i, c := range e.Cells {
		parts[i] = fmt.Sprintf("(%d,%d)", c.Row, c.Col)
	}
	return fmt.Sprintf("%v at %s", ErrContradictoryRead, strings.Join(parts, " "))
}

// Is matches ErrContradictoryRead
func (e *ContradictoryReadError) Is(target error) bool { return target == ErrContradictoryRead }

// Sense reads the array as 8x8 rail codes.
//
// in DualInstrument mode the sense waveform set is uploaded if it changed,
// with capture armed on every channel when measure is true, and started
// without waiting before the controller is asked for the readback.
//
// if any cell reads 0b11 the codes are returned together with a
// *ContradictoryReadError
func (d *Driver) Sense(mode SenseMode, measure bool) ([][]codec.Code, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.live(); err != nil {
		return nil, err
	}
	var (
		buf []byte
		err error
	)
	switch mode {
	case DualInstrument:
		if d.session == nil {
			return nil, &DeviceError{Device: "waveform instrument", Err: errors.New("not configured")}
		}
		if d.timing == nil {
			return nil, ErrNotConfigured
		}
		if err := d.play(d.config(FamilySense, measure)); err != nil {
			return nil, err
		}
		buf, err = d.link.Sense()
	case MicrocontrollerOnly:
		buf, err = d.link.SenseUC()
	default:
		return nil, fmt.Errorf("xbar: unknown sense mode %d", int(mode))
	}
	if err != nil {
		return nil, err
	}
	codes, err := codec.Reshape(buf)
	if err != nil {
		return nil, err
	}
	var bad []Cell
	for r, row := range codes {
		for c, code := range row {
			switch {
			case code > codec.ActBoth:
				return codes, fmt.Errorf("xbar: cell (%d,%d) read %d, not a rail code", r, c, code)
			case code.R() && code.Rb():
				bad = append(bad, Cell{Row: r, Col: c})
			}
		}
	}
	if len(bad) > 0 {
		return codes, &ContradictoryReadError{Cells: bad}
	}
	return codes, nil
}

// SenseValues senses and decodes each cell to its logical value
func (d *Driver) SenseValues(mode SenseMode, measure bool) ([][]codec.Value, error) {
	codes, err := d.Sense(mode, measure)
	if err != nil {
		return nil, err
	}
	out := make([][]codec.Value, len(codes))
	for r, row := range codes {
		out[r] = make([]codec.Value, len(row))
		for c, code := range row {
			if out[r][c], err = codec.Decode(code); err != nil {
				return nil, err
			}
		}
	}
	return out, nil
}

// Measurements returns the captures of the last measured sense
func (d *Driver) Measurements() ([]wgfmu.Recording, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.session == nil {
		return nil, &DeviceError{Device: "waveform instrument", Err: errors.New("not configured")}
	}
	return d.session.Results()
}
