package supply

import (
	"fmt"

	"github.com/crossbar-lab/xbar/scpi"
)

// Tek2230 is a Tektronix/Keithley 2230G-class triple output supply on the LAN
type Tek2230 struct {
	scpi *scpi.SCPI
}

// NewTek2230 connects to the supply at addr and checks that it answers
func NewTek2230(addr string) (*Tek2230, error) {
	t := &Tek2230{scpi: scpi.New(addr, true)}
	if _, err := t.scpi.ReadString("*IDN?"); err != nil {
		t.scpi.Close()
		return nil, fmt.Errorf("supply: %s: %w", addr, err)
	}
	return t, nil
}

func selectCh(ch int) string {
	return fmt.Sprintf("INSTrument:NSELect %d;", ch)
}

// SetChannelVoltage satisfies Supply
func (t *Tek2230) SetChannelVoltage(ch int, volts float64) error {
	return t.scpi.Write(selectCh(ch), fmt.Sprintf(":SOURce:VOLTage %E", volts))
}

// GetChannelVoltage satisfies Supply
func (t *Tek2230) GetChannelVoltage(ch int) (float64, error) {
	return t.scpi.ReadFloat(selectCh(ch), ":MEASure:VOLTage?")
}

// SetChannelOutput satisfies Supply
func (t *Tek2230) SetChannelOutput(ch int, on bool) error {
	state := "OFF"
	if on {
		state = "ON"
	}
	return t.scpi.Write(selectCh(ch), ":SOURce:CHANnel:OUTPut:STATe "+state)
}

// Close satisfies Supply
func (t *Tek2230) Close() error {
	return t.scpi.Close()
}
