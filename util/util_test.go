package util_test

import (
	"fmt"
	"testing"
	"time"

	"github.com/crossbar-lab/xbar/util"
)

func ExampleGetBit() {
	fmt.Println(util.GetBit(0b10, 1), util.GetBit(0b10, 0))
	// Output: true false
}

func TestGetBit(t *testing.T) {
	var b byte = 0b10
	if util.GetBit(b, 0) {
		t.Errorf("expected bit 0 of %02b to be clear", b)
	}
	if !util.GetBit(b, 1) {
		t.Errorf("expected bit 1 of %02b to be set", b)
	}
}

func TestSecsToDuration(t *testing.T) {
	var dur time.Duration = 123456789
	secs := dur.Seconds()
	out := util.SecsToDuration(secs)
	if out != dur {
		t.Errorf("expected SecsToDuration to round trip, output %v != expected %v", out, dur)
	}
}

func TestSecsToDurationNegative(t *testing.T) {
	if out := util.SecsToDuration(-0.25); out != -250*time.Millisecond {
		t.Errorf("expected -250ms, got %v", out)
	}
}
