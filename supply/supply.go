// Package supply drives the bench supply that holds the crossbar's analog bias
// rails, and waits for those rails to settle before pulses are issued.
package supply

import (
	"errors"
	"fmt"
	"log"
	"math"
	"time"

	"github.com/cenkalti/backoff"
)

// ErrSettleTimeout is returned when a channel never comes within tolerance of its target
var ErrSettleTimeout = errors.New("supply: bias did not settle")

// Supply is a multi-channel voltage source
type Supply interface {
	// SetChannelVoltage programs the setpoint of a channel
	SetChannelVoltage(ch int, volts float64) error

	// GetChannelVoltage measures the output voltage of a channel
	GetChannelVoltage(ch int) (float64, error)

	// SetChannelOutput enables or disables a channel's output
	SetChannelOutput(ch int, on bool) error

	Close() error
}

// Target is the voltage a channel should be driven to
type Target struct {
	Channel int     `json:"channel" yaml:"Channel" koanf:"Channel"`
	Volts   float64 `json:"volts" yaml:"Volts" koanf:"Volts"`
}

// SettleParams controls the settling poll.
//
// a zero Timeout polls forever
type SettleParams struct {
	Tolerance    float64
	PollInterval time.Duration
	SettleDelay  time.Duration
	Timeout      time.Duration
}

// DefaultSettleParams returns the polling policy used when none is configured
func DefaultSettleParams() SettleParams {
	return SettleParams{
		Tolerance:    0.01,
		PollInterval: 100 * time.Millisecond,
		SettleDelay:  500 * time.Millisecond,
		Timeout:      30 * time.Second}
}

// OffTargetError names the first channel found outside tolerance
type OffTargetError struct {
	Channel  int
	Target   float64
	Measured float64
}

func (e OffTargetError) Error() string {
	return fmt.Sprintf("supply: channel %d at %.4f V, target %.4f V", e.Channel, e.Measured, e.Target)
}

// SetVoltages programs and enables every target channel, then waits for them to settle
func SetVoltages(s Supply, targets []Target, p SettleParams) error {
	for _, t := range targets {
		if err := s.SetChannelVoltage(t.Channel, t.Volts); err != nil {
			return err
		}
		if err := s.SetChannelOutput(t.Channel, true); err != nil {
			return err
		}
	}
	return Settle(s, targets, p)
}

// Settle polls the supply every p.PollInterval until every target channel
// reads back within p.Tolerance of its target, then holds for p.SettleDelay.
// A read failure ends the poll immediately
func Settle(s Supply, targets []Target, p SettleParams) error {
	if len(targets) == 0 {
		return nil
	}
	if p.PollInterval <= 0 {
		p.PollInterval = DefaultSettleParams().PollInterval
	}
	var readErr error
	op := func() error {
		var off error
		for _, t := range targets {
			v, err := s.GetChannelVoltage(t.Channel)
			if err != nil {
				// not retried; captured in the closure and reported below
				readErr = err
				return nil
			}
			if off == nil && math.Abs(v-t.Volts) > p.Tolerance {
				off = OffTargetError{Channel: t.Channel, Target: t.Volts, Measured: v}
			}
		}
		return off
	}
	start := time.Now()
	err := backoff.Retry(op, &backoff.ExponentialBackOff{
		InitialInterval:     p.PollInterval,
		RandomizationFactor: 0,
		Multiplier:          1,
		MaxInterval:         p.PollInterval,
		MaxElapsedTime:      p.Timeout,
		Clock:               backoff.SystemClock})
	if readErr != nil {
		return readErr
	}
	if err != nil {
		return fmt.Errorf("%w after %s: %v", ErrSettleTimeout, p.Timeout, err)
	}
	log.Printf("bias settled on %d channels in %s\n", len(targets), time.Since(start).Round(time.Millisecond))
	time.Sleep(p.SettleDelay)
	return nil
}
