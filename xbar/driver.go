/*Package xbar drives an 8x8 memristor crossbar test chip.

A Driver coordinates three collaborators:
	1.  the microcontroller, which clocks 64 rail codes into the array per pass
		and reads the array back
	2.  the four channel waveform instrument, which generates the bit line,
		word line, select line and clock pulses the controller is paced by
	3.  optionally, a bench supply holding the analog bias rails

Waveform sets are synthesized from a TimingConfig and uploaded only when the
configuration differs from the one already on the instrument.

After any failure mid-operation, call ResetState before retrying.
*/
package xbar

import (
	"errors"
	"fmt"
	"log"
	"sync"

	"github.com/crossbar-lab/xbar/mcu"
	"github.com/crossbar-lab/xbar/supply"
	"github.com/crossbar-lab/xbar/wgfmu"
)

var (
	// ErrDeviceUnavailable is matched by errors from collaborators that could
	// not be opened, or are needed but were not configured
	ErrDeviceUnavailable = errors.New("xbar: device unavailable")

	// ErrNotConfigured is returned when waveforms are needed before SetTiming
	ErrNotConfigured = errors.New("xbar: precharge, discharge and interval not set")
)

// DeviceError is a collaborator construction failure
type DeviceError struct {
	Device string
	Err    error
}

func (e *DeviceError) Error() string {
	return fmt.Sprintf("xbar: %s unavailable: %v", e.Device, e.Err)
}

// Unwrap returns the underlying error
func (e *DeviceError) Unwrap() error { return e.Err }

// Is matches ErrDeviceUnavailable
func (e *DeviceError) Is(target error) bool { return target == ErrDeviceUnavailable }

// Openers acquire the collaborators of a Driver.  Session and Supply may be
// nil for chips sensed by the microcontroller alone or run without bias control
type Openers struct {
	Link    func() (mcu.Link, error)
	Session func() (wgfmu.Session, error)
	Supply  func() (supply.Supply, error)
}

// Options are the policy knobs of a Driver
type Options struct {
	// Levels overrides the channel voltages per operation family.
	// Families not present use LogicLevels
	Levels map[Family]Levels

	// Measure configures capture during measured senses
	Measure wgfmu.MeasureParams

	// Settle is the bias settling policy
	Settle supply.SettleParams

	// Carac enables characterization mode on every ResetState
	Carac bool
}

// DefaultMeasure samples every 10 ns, the instrument's finest resolution
func DefaultMeasure() wgfmu.MeasureParams {
	return wgfmu.MeasureParams{AverageTime: 1e-8, SampleInterval: 1e-8}
}

// Driver owns one physical setup for its whole lifetime
type Driver struct {
	mu sync.Mutex

	link    mcu.Link
	session wgfmu.Session
	supply  supply.Supply

	cache   Cache
	timing  *Timing
	opts    Options
	caracOn bool
}

// New acquires the collaborators in order, microcontroller first, and resets
// the driver state.  If any step fails, everything already acquired is
// released before the error is returned
func New(o Openers, opts Options) (*Driver, error) {
	if o.Link == nil {
		return nil, &DeviceError{Device: "microcontroller", Err: errors.New("no opener")}
	}
	if opts.Levels == nil {
		opts.Levels = make(map[Family]Levels)
	}
	if opts.Measure.SampleInterval == 0 {
		opts.Measure = DefaultMeasure()
	}
	if opts.Settle.PollInterval == 0 {
		opts.Settle = supply.DefaultSettleParams()
	}
	d := &Driver{opts: opts}
	ok := false
	defer func() {
		if !ok {
			if err := d.Close(); err != nil {
				log.Printf("releasing after failed construction: %v\n", err)
			}
		}
	}()

	link, err := o.Link()
	if err != nil {
		return nil, &DeviceError{Device: "microcontroller", Err: err}
	}
	d.link = link
	if o.Session != nil {
		sess, err := o.Session()
		if err != nil {
			return nil, &DeviceError{Device: "waveform instrument", Err: err}
		}
		d.session = sess
		d.cache.Session = sess
	}
	if o.Supply != nil {
		sup, err := o.Supply()
		if err != nil {
			return nil, &DeviceError{Device: "bias supply", Err: err}
		}
		d.supply = sup
	}
	if err := d.ResetState(); err != nil {
		return nil, err
	}
	ok = true
	log.Printf("crossbar driver ready, instrument=%t supply=%t\n", d.session != nil, d.supply != nil)
	return d, nil
}

// live returns an error if the driver has been closed.  d.mu must be held
func (d *Driver) live() error {
	if d.link == nil {
		return &DeviceError{Device: "microcontroller", Err: errors.New("driver closed")}
	}
	return nil
}

// Close releases the collaborators in the reverse order of acquisition.
// The first error is returned, but every collaborator is closed
func (d *Driver) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	var first error
	if d.supply != nil {
		first = d.supply.Close()
		d.supply = nil
	}
	if d.session != nil {
		if err := d.session.Close(); err != nil && first == nil {
			first = err
		}
		d.session = nil
	}
	if d.link != nil {
		if err := d.link.Close(); err != nil && first == nil {
			first = err
		}
		d.link = nil
	}
	return first
}

// ResetState flushes the controller input, re-enables acknowledgement of
// every procedure, forgets the timing and invalidates the waveform cache
func (d *Driver) ResetState() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.live(); err != nil {
		return err
	}
	d.cache.Invalidate()
	d.timing = nil
	if err := d.link.FlushInput(); err != nil {
		return err
	}
	if err := d.link.AckMode(mcu.AckAll); err != nil {
		return err
	}
	if d.opts.Carac {
		return d.setCarac(true)
	}
	return nil
}

// SetTiming sets the control window used by every waveform set
func (d *Driver) SetTiming(t Timing) error {
	if err := t.validate(); err != nil {
		return err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.timing = &t
	return nil
}

// Timing returns the configured control window, or ErrNotConfigured
func (d *Driver) Timing() (Timing, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.timing == nil {
		return Timing{}, ErrNotConfigured
	}
	return *d.timing, nil
}

// SetLevels overrides the channel voltages of an operation family
func (d *Driver) SetLevels(f Family, l Levels) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.opts.Levels[f] = l
}

func (d *Driver) levels(f Family) Levels {
	if l, ok := d.opts.Levels[f]; ok {
		return l
	}
	return LogicLevels()
}

func (d *Driver) setCarac(on bool) error {
	st := mcu.Clear
	if on {
		st = mcu.Asserted
	}
	if err := d.link.SetCS(mcu.CaracEn, st); err != nil {
		return err
	}
	d.caracOn = on
	return nil
}

// EnableCarac drives the characterization mode pin of chips without a
// waveform instrument
func (d *Driver) EnableCarac(on bool) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.live(); err != nil {
		return err
	}
	return d.setCarac(on)
}

// Carac reports whether characterization mode was last enabled
func (d *Driver) Carac() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.caracOn
}

// config is the cache key for a family under the current settings.
// d.mu must be held and d.timing set
func (d *Driver) config(f Family, measure bool) TimingConfig {
	cfg := TimingConfig{Family: f, Timing: *d.timing, Levels: d.levels(f), Measure: measure}
	if measure {
		cfg.MeasureParams = d.opts.Measure
	}
	return cfg
}

// play uploads the waveform set for cfg if it changed and starts it without
// waiting, so the controller can be driven while the pulses run
func (d *Driver) play(cfg TimingConfig) error {
	if _, err := d.cache.ApplyIfChanged(cfg, Build); err != nil {
		return err
	}
	return d.session.Trigger(false)
}

// Cache exposes the waveform cache for inspection
func (d *Driver) Cache() *Cache {
	return &d.cache
}
