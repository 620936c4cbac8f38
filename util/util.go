// Package util contains misc internal utilities.
package util

import "time"

// GetBit returns the value of a given bit in a byte
func GetBit(b byte, bitIndex uint) bool {
	return (b>>bitIndex)&1 == 1
}

// SecsToDuration converts a floating point number of seconds to a time.Duration,
// rounding to the nearest nanosecond
func SecsToDuration(secs float64) time.Duration {
	ns := secs * 1e9
	if ns < 0 {
		return time.Duration(ns - 0.5)
	}
	return time.Duration(ns + 0.5)
}
