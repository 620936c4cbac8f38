package xbar

import (
	"errors"
	"fmt"

	"github.com/crossbar-lab/xbar/codec"
	"github.com/crossbar-lab/xbar/mcu"
	"github.com/crossbar-lab/xbar/supply"
)

// Sequence runs one SET, RESET or FORM pass over the array.
//
// codes are flattened row-major and validated before anything is sent.  If
// bias is given, the supply is driven and settled first.  When the driver has
// a waveform instrument and timing, the family's waveform set is (re)uploaded
// if needed and started before the codes are handed to the controller
func (d *Driver) Sequence(f Family, codes [][]codec.Code, bias []supply.Target) error {
	flat, err := codec.Flatten(codes)
	if err != nil {
		return err
	}
	if err := mcu.CheckCodes(flat, byte(codec.ActBoth)); err != nil {
		return err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.sequence(f, flat, bias)
}

func (d *Driver) sequence(f Family, flat []byte, bias []supply.Target) error {
	if err := d.live(); err != nil {
		return err
	}
	var send func([]byte) error
	switch f {
	case FamilySet, FamilyForm:
		// FORM shares SET's control signals
		send = d.link.Set
	case FamilyReset:
		send = d.link.Reset
	default:
		return fmt.Errorf("xbar: %s is not a programming operation", f)
	}
	if len(bias) > 0 {
		if err := d.bias(bias); err != nil {
			return err
		}
	}
	if d.session != nil && d.timing != nil {
		if err := d.play(d.config(f, false)); err != nil {
			return err
		}
	}
	return send(flat)
}

func (d *Driver) bias(targets []supply.Target) error {
	if d.supply == nil {
		return &DeviceError{Device: "bias supply", Err: errors.New("not configured")}
	}
	return supply.SetVoltages(d.supply, targets, d.opts.Settle)
}

// Bias drives the supply rails to targets and waits for them to settle
func (d *Driver) Bias(targets []supply.Target) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.live(); err != nil {
		return err
	}
	return d.bias(targets)
}

// Set runs a SET pass.  Each code is 0bXY, X sets R and Y sets Rb
func (d *Driver) Set(codes [][]codec.Code) error {
	return d.Sequence(FamilySet, codes, nil)
}

// Reset runs a RESET pass.  Each code is 0bXY, X resets R and Y resets Rb
func (d *Driver) Reset(codes [][]codec.Code) error {
	return d.Sequence(FamilyReset, codes, nil)
}

// Form runs a FORM pass.  Each code is 0bXY, X forms R and Y forms Rb
func (d *Driver) Form(codes [][]codec.Code) error {
	return d.Sequence(FamilyForm, codes, nil)
}

// Fill programs every cell to a logical value.
//
// with otp, only the cells to set are formed and the others are left
// unformed.  Otherwise a SET pass is followed by a RESET pass with the
// complementary codes.  Both code arrays are computed before anything is sent
func (d *Driver) Fill(vals [][]codec.Value, otp bool, bias []supply.Target) error {
	setCodes, err := codec.EncodeMatrix(vals, codec.SetContext)
	if err != nil {
		return err
	}
	resetCodes, err := codec.EncodeMatrix(vals, codec.ResetContext)
	if err != nil {
		return err
	}
	setFlat, err := codec.Flatten(setCodes)
	if err != nil {
		return err
	}
	resetFlat, err := codec.Flatten(resetCodes)
	if err != nil {
		return err
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if otp {
		return d.sequence(FamilyForm, setFlat, bias)
	}
	if err := d.sequence(FamilySet, setFlat, bias); err != nil {
		return err
	}
	return d.sequence(FamilyReset, resetFlat, nil)
}

// FillBinary programs a chip that has one bit per cell and no "leave
// unchanged" state.  Set cells are written 1, all others 0
func (d *Driver) FillBinary(vals [][]codec.Value) error {
	if err := codec.CheckValues(vals); err != nil {
		return err
	}
	flat := make([]byte, 0, codec.Cells)
	for r, row := range vals {
		for c, v := range row {
			b, err := codec.EncodeBinary(v)
			if err != nil {
				return fmt.Errorf("cell (%d,%d): %w", r, c, err)
			}
			flat = append(flat, b)
		}
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.live(); err != nil {
		return err
	}
	return d.link.Fill(flat)
}
