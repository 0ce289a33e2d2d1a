package core_test

import (
	"testing"
	"time"

	"github.com/gobuffalo/envy"
	"github.com/stretchr/testify/assert"

	"github.com/devblok/korxr/core"
)

func TestFramePeriodFromFps(t *testing.T) {
	assert.Equal(t, time.Second/60, core.TimeConfiguration{FramesPerSecond: 60}.FramePeriod())
	assert.Equal(t, 8*time.Millisecond, core.TimeConfiguration{FramesPerSecond: 125}.FramePeriod())

	// uncapped defers pacing to the runtime
	assert.Zero(t, core.TimeConfiguration{}.FramePeriod())
	assert.Zero(t, core.TimeConfiguration{FramesPerSecond: -5}.FramePeriod())
}

func TestFromEnvironmentOverrides(t *testing.T) {
	envy.Temp(func() {
		envy.Set("KORXR_FPS", "30")
		envy.Set("KORXR_STAGE_DWELL_SEC", "2")

		cfg := core.FromEnvironment(core.DefaultConfiguration())
		assert.Equal(t, 30, cfg.Time.FramesPerSecond)
		assert.Equal(t, time.Second/30, cfg.Time.FramePeriod())
		assert.Equal(t, 2*time.Second, cfg.Animation.StageDwell)
	})
}

func TestFromEnvironmentRejectsZeroDwell(t *testing.T) {
	envy.Temp(func() {
		envy.Set("KORXR_STAGE_DWELL_SEC", "0")

		cfg := core.FromEnvironment(core.DefaultConfiguration())
		assert.Equal(t, core.DefaultStageDwell, cfg.Animation.StageDwell)
	})
}
