package xbar

import (
	"errors"
	"testing"

	"github.com/crossbar-lab/xbar/wgfmu"
)

func countingBuild(n *int) BuildFunc {
	return func(cfg TimingConfig) (ChannelSet, error) {
		*n++
		return Build(cfg)
	}
}

func baseConfig() TimingConfig {
	return TimingConfig{Family: FamilySense, Timing: benchTiming(), Levels: LogicLevels()}
}

func TestCacheSkipsIdenticalConfig(t *testing.T) {
	m := wgfmu.NewMock()
	c := Cache{Session: m}
	var n int
	for i := 0; i < 3; i++ {
		if _, err := c.ApplyIfChanged(baseConfig(), countingBuild(&n)); err != nil {
			t.Fatal(err)
		}
	}
	if n != 1 {
		t.Errorf("expected 1 build got %d", n)
	}
	if m.Uploads != 1 {
		t.Errorf("expected 1 upload got %d", m.Uploads)
	}
}

func TestCacheRebuildsOnAnyFieldChange(t *testing.T) {
	mods := map[string]func(*TimingConfig){
		"precharge":  func(c *TimingConfig) { c.Timing.Precharge *= 2 },
		"discharge":  func(c *TimingConfig) { c.Timing.Discharge *= 2 },
		"interval":   func(c *TimingConfig) { c.Timing.Interval *= 2 },
		"bit level":  func(c *TimingConfig) { c.Levels.BitIn = 0.5 },
		"clk level":  func(c *TimingConfig) { c.Levels.Clock = 0.5 },
		"measure":    func(c *TimingConfig) { c.Measure = true; c.MeasureParams = DefaultMeasure() },
		"avg time":   func(c *TimingConfig) { c.MeasureParams.AverageTime = 1e-7 },
		"sample int": func(c *TimingConfig) { c.MeasureParams.SampleInterval = 1e-7 },
	}
	for name, mod := range mods {
		c := Cache{Session: wgfmu.NewMock()}
		var n int
		cfg := baseConfig()
		if _, err := c.ApplyIfChanged(cfg, countingBuild(&n)); err != nil {
			t.Fatal(err)
		}
		mod(&cfg)
		rebuilt, err := c.ApplyIfChanged(cfg, countingBuild(&n))
		if err != nil {
			t.Fatalf("%s: %v", name, err)
		}
		if !rebuilt || n != 2 {
			t.Errorf("%s: expected a second build, rebuilt=%t builds=%d", name, rebuilt, n)
		}
	}
}

func TestCacheSharesWaveformsAcrossFamilies(t *testing.T) {
	m := wgfmu.NewMock()
	c := Cache{Session: m}
	var n int
	cfg := baseConfig()
	for _, f := range []Family{FamilySet, FamilyReset, FamilyForm, FamilySet} {
		cfg.Family = f
		if _, err := c.ApplyIfChanged(cfg, countingBuild(&n)); err != nil {
			t.Fatal(err)
		}
		if got, _, _ := c.Current(); got.Family != f {
			t.Errorf("expected the current set labeled %s got %s", f, got.Family)
		}
	}
	if n != 1 || m.Uploads != 1 {
		t.Errorf("expected one build and upload for identical waveforms got %d and %d", n, m.Uploads)
	}
}

func TestCacheStagesNamedChannels(t *testing.T) {
	m := wgfmu.NewMock()
	c := Cache{Session: m}
	cfg := baseConfig()
	cfg.Measure = true
	cfg.MeasureParams = DefaultMeasure()
	if _, err := c.ApplyIfChanged(cfg, Build); err != nil {
		t.Fatal(err)
	}
	up := m.Uploaded()
	for i, ch := range up {
		if ch.Name != wgfmu.ChannelNames[i+1] {
			t.Errorf("channel %d expected name %s got %s", i+1, wgfmu.ChannelNames[i+1], ch.Name)
		}
		if ch.Measure == nil || *ch.Measure != DefaultMeasure() {
			t.Errorf("channel %d expected measurement armed with %+v got %+v", i+1, DefaultMeasure(), ch.Measure)
		}
	}
	_, set, ok := c.Current()
	if !ok || set[0] != up[0].Wave {
		t.Error("expected Current to return the uploaded waveforms")
	}
}

func TestCacheFailureLeavesInvalid(t *testing.T) {
	m := wgfmu.NewMock()
	c := Cache{Session: m}
	m.UploadErr = errors.New("instrument busy")
	var n int
	if _, err := c.ApplyIfChanged(baseConfig(), countingBuild(&n)); err == nil {
		t.Fatal("expected upload error")
	}
	if _, _, ok := c.Current(); ok {
		t.Error("expected no valid configuration after a failed upload")
	}
	m.UploadErr = nil
	rebuilt, err := c.ApplyIfChanged(baseConfig(), countingBuild(&n))
	if err != nil {
		t.Fatal(err)
	}
	if !rebuilt || n != 2 {
		t.Errorf("expected a rebuild after failure, rebuilt=%t builds=%d", rebuilt, n)
	}
}

func TestCacheBuildErrorDoesNotUpload(t *testing.T) {
	m := wgfmu.NewMock()
	c := Cache{Session: m}
	cfg := baseConfig()
	cfg.Timing.Precharge = -1
	if _, err := c.ApplyIfChanged(cfg, Build); err == nil {
		t.Fatal("expected build error")
	}
	if m.Uploads != 0 {
		t.Errorf("expected no uploads got %d", m.Uploads)
	}
}

func TestCacheInvalidate(t *testing.T) {
	c := Cache{Session: wgfmu.NewMock()}
	var n int
	c.ApplyIfChanged(baseConfig(), countingBuild(&n))
	c.Invalidate()
	c.ApplyIfChanged(baseConfig(), countingBuild(&n))
	if n != 2 || c.Builds() != 2 {
		t.Errorf("expected 2 builds after invalidation got %d (%d)", n, c.Builds())
	}
}
