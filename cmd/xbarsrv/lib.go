package main

import (
	"fmt"
	"go/types"
	"log"
	"net/http"
	"strings"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"

	"github.com/crossbar-lab/xbar/generichttp"
	"github.com/crossbar-lab/xbar/mcu"
	"github.com/crossbar-lab/xbar/server/middleware/locker"
	"github.com/crossbar-lab/xbar/supply"
	"github.com/crossbar-lab/xbar/util"
	"github.com/crossbar-lab/xbar/wgfmu"
	"github.com/crossbar-lab/xbar/xbar"
)

// MCUSetup holds the connection parameters of the microcontroller
type MCUSetup struct {
	// Addr is a serial device, e.g. /dev/ttyACM0 or COM3, or host:port of a
	// serial-to-ethernet bridge
	Addr string `yaml:"Addr" koanf:"Addr"`

	// Baud is the serial baud rate
	Baud int `yaml:"Baud" koanf:"Baud"`
}

// InstrumentSetup holds the address of the waveform generator.  An empty
// Addr runs without one, in microcontroller-only mode
type InstrumentSetup struct {
	Addr string `yaml:"Addr" koanf:"Addr"`
}

// SupplySetup configures the bias supply.  Times are in seconds
type SupplySetup struct {
	Enabled      bool            `yaml:"Enabled" koanf:"Enabled"`
	Addr         string          `yaml:"Addr" koanf:"Addr"`
	Tolerance    float64         `yaml:"Tolerance" koanf:"Tolerance"`
	PollInterval float64         `yaml:"PollInterval" koanf:"PollInterval"`
	SettleDelay  float64         `yaml:"SettleDelay" koanf:"SettleDelay"`
	Timeout      float64         `yaml:"Timeout" koanf:"Timeout"`
	Channels     []supply.Target `yaml:"Channels" koanf:"Channels"`
}

// Config is a struct that holds the initialization parameters of the server.
// It is populated by koanf from the defaults and the yaml file
type Config struct {
	// Addr is the address to listen at
	Addr string `yaml:"Addr" koanf:"Addr"`

	// Endpoint is the URL the crossbar routes are served under, e.g. "xbar"
	Endpoint string `yaml:"Endpoint" koanf:"Endpoint"`

	// Mock replaces every device with an in-memory stand-in
	Mock bool `yaml:"Mock" koanf:"Mock"`

	// Carac enables characterization mode after every state reset
	Carac bool `yaml:"Carac" koanf:"Carac"`

	MCU        MCUSetup            `yaml:"MCU" koanf:"MCU"`
	Instrument InstrumentSetup     `yaml:"Instrument" koanf:"Instrument"`
	Supply     SupplySetup         `yaml:"Supply" koanf:"Supply"`
	Timing     xbar.Timing         `yaml:"Timing" koanf:"Timing"`
	Measure    wgfmu.MeasureParams `yaml:"Measure" koanf:"Measure"`

	// Levels overrides the channel voltages of "sense", "set", "reset" or "form"
	Levels map[string]xbar.Levels `yaml:"Levels" koanf:"Levels"`
}

// DefaultConfig is the configuration used when no file is present
func DefaultConfig() Config {
	settle := supply.DefaultSettleParams()
	return Config{
		Addr:     ":8000",
		Endpoint: "xbar",
		MCU:      MCUSetup{Addr: "/dev/ttyACM0", Baud: mcu.DefaultBaud},
		Supply: SupplySetup{
			Tolerance:    settle.Tolerance,
			PollInterval: settle.PollInterval.Seconds(),
			SettleDelay:  settle.SettleDelay.Seconds(),
			Timeout:      settle.Timeout.Seconds()},
		Measure: xbar.DefaultMeasure()}
}

func parseFamily(s string) (xbar.Family, error) {
	for _, f := range []xbar.Family{xbar.FamilySense, xbar.FamilySet, xbar.FamilyReset, xbar.FamilyForm} {
		if strings.EqualFold(s, f.String()) {
			return f, nil
		}
	}
	return 0, fmt.Errorf("unknown operation family %q", s)
}

func openers(c Config) xbar.Openers {
	if c.Mock {
		o := xbar.Openers{
			Link:    func() (mcu.Link, error) { return mcu.NewMock(), nil },
			Session: func() (wgfmu.Session, error) { return wgfmu.NewMock(), nil },
		}
		if c.Supply.Enabled {
			o.Supply = func() (supply.Supply, error) { return supply.NewMock(), nil }
		}
		return o
	}
	o := xbar.Openers{
		Link: func() (mcu.Link, error) { return mcu.NewSerial(c.MCU.Addr, c.MCU.Baud) },
	}
	if c.Instrument.Addr != "" {
		o.Session = func() (wgfmu.Session, error) { return wgfmu.NewInstrument(c.Instrument.Addr) }
	}
	if c.Supply.Enabled {
		o.Supply = func() (supply.Supply, error) { return supply.NewTek2230(c.Supply.Addr) }
	}
	return o
}

func options(c Config) (xbar.Options, error) {
	opts := xbar.Options{
		Measure: c.Measure,
		Carac:   c.Carac,
		Settle: supply.SettleParams{
			Tolerance:    c.Supply.Tolerance,
			PollInterval: util.SecsToDuration(c.Supply.PollInterval),
			SettleDelay:  util.SecsToDuration(c.Supply.SettleDelay),
			Timeout:      util.SecsToDuration(c.Supply.Timeout)},
	}
	if len(c.Levels) > 0 {
		opts.Levels = make(map[xbar.Family]xbar.Levels, len(c.Levels))
		for name, l := range c.Levels {
			f, err := parseFamily(name)
			if err != nil {
				return opts, err
			}
			opts.Levels[f] = l
		}
	}
	return opts, nil
}

// BuildMux opens the driver described by c and returns a router serving it
// under c.Endpoint, behind a lock.  The caller owns the driver and must Close it
func BuildMux(c Config) (chi.Router, *xbar.Driver, error) {
	opts, err := options(c)
	if err != nil {
		return nil, nil, err
	}
	d, err := xbar.New(openers(c), opts)
	if err != nil {
		return nil, nil, err
	}
	if c.Timing != (xbar.Timing{}) {
		if err = d.SetTiming(c.Timing); err != nil {
			d.Close()
			return nil, nil, err
		}
	}
	if c.Supply.Enabled && len(c.Supply.Channels) > 0 {
		if err = d.Bias(c.Supply.Channels); err != nil {
			d.Close()
			return nil, nil, err
		}
	}

	root := chi.NewRouter()
	root.Use(middleware.Logger)
	w := xbar.NewHTTPWrapper(d)
	lock := locker.New()
	locker.Inject(w, lock)
	r := chi.NewRouter()
	r.Use(lock.Check)
	w.RT().Bind(r)
	hndlS := generichttp.SubMuxSanitize(c.Endpoint)
	root.Mount(hndlS, r)
	log.Printf("crossbar routes mounted at %s\n", hndlS)

	root.Get("/endpoints", func(w http.ResponseWriter, r *http.Request) {
		hp := generichttp.HumanPayload{T: types.String, Strings: []string{hndlS}}
		hp.EncodeAndRespond(w, r)
	})
	return root, d, nil
}
