package xbar

import (
	"log"

	"github.com/crossbar-lab/xbar/wgfmu"
)

// BuildFunc synthesizes the waveform set for a configuration
type BuildFunc func(TimingConfig) (ChannelSet, error)

// Cache remembers the configuration last uploaded to a session and skips
// rebuilding and uploading when asked for the same one again
type Cache struct {
	// Session receives the built waveforms
	Session wgfmu.Session

	last   TimingConfig
	valid  bool
	waves  ChannelSet
	builds int
}

// ApplyIfChanged builds, stages and uploads the waveform set for cfg unless
// the waveforms on the instrument already match it.  Configurations that
// differ only by Family share one upload.  It returns true when an upload
// happened.  On any failure the cache is left invalid, so the next call
// rebuilds
func (c *Cache) ApplyIfChanged(cfg TimingConfig, build BuildFunc) (bool, error) {
	if c.valid && c.last.key() == cfg.key() {
		c.last.Family = cfg.Family
		return false, nil
	}
	c.valid = false
	set, err := build(cfg)
	if err != nil {
		return false, err
	}
	c.builds++
	if err := c.Session.Clear(); err != nil {
		return false, err
	}
	for i, w := range set {
		ch := i + 1
		if err := c.Session.Assign(ch, channelName(ch), w); err != nil {
			return false, err
		}
		if cfg.Measure {
			if err := c.Session.ArmMeasurement(ch, cfg.MeasureParams); err != nil {
				return false, err
			}
		}
	}
	if err := c.Session.Upload(); err != nil {
		return false, err
	}
	log.Printf("uploaded %s waveforms, %.3g s per pass\n", cfg.Family, set[0].TotalDuration())
	c.last, c.waves, c.valid = cfg, set, true
	return true, nil
}

// Invalidate forces the next ApplyIfChanged to rebuild
func (c *Cache) Invalidate() {
	c.valid = false
}

// Current returns the applied configuration and its waveforms.
// ok is false if nothing valid is on the instrument
func (c *Cache) Current() (cfg TimingConfig, set ChannelSet, ok bool) {
	return c.last, c.waves, c.valid
}

// Builds counts the waveform sets built over the life of the cache
func (c *Cache) Builds() int {
	return c.builds
}

func channelName(ch int) string {
	return wgfmu.ChannelNames[ch]
}
