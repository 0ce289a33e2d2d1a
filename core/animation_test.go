package core_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/devblok/korxr/core"
)

var revealCfg = core.AnimationConfiguration{
	StageDwell: 1200 * time.Millisecond,
	EaseIn:     500 * time.Millisecond,
}

// planAt asks the driver for a plan offset from the driver's epoch,
// which is close enough to time.Now() right after construction.
func planAt(d core.Driver, offset time.Duration, overlays int) []core.LayerPlan {
	return d.Plan(time.Now().Add(offset), overlays)
}

func TestStagedRevealStartsHidden(t *testing.T) {
	d := core.NewStagedReveal(revealCfg)
	for _, p := range planAt(d, 0, 3) {
		assert.False(t, p.Revealed)
	}
}

func TestStagedRevealStages(t *testing.T) {
	d := core.NewStagedReveal(revealCfg)

	tests := []struct {
		name     string
		offset   time.Duration
		revealed int
	}{
		{"before first stage", 1100 * time.Millisecond, 0},
		{"first stage", 1300 * time.Millisecond, 1},
		{"second stage", 2500 * time.Millisecond, 2},
		{"third stage", 3700 * time.Millisecond, 3},
		{"held at last stage", 10 * time.Second, 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			plans := planAt(d, tt.offset, 3)
			count := 0
			for _, p := range plans {
				if p.Revealed {
					count++
				}
			}
			assert.Equal(t, tt.revealed, count)
		})
	}
}

func TestStagedRevealZeroDwellFallsBack(t *testing.T) {
	d := core.NewStagedReveal(core.AnimationConfiguration{})

	for _, p := range planAt(d, 0, 3) {
		assert.False(t, p.Revealed)
	}

	// the default dwell governs: one stage in, one overlay out
	plans := planAt(d, core.DefaultStageDwell+100*time.Millisecond, 3)
	assert.True(t, plans[0].Revealed)
	assert.False(t, plans[1].Revealed)
}

func TestStagedRevealRamp(t *testing.T) {
	d := core.NewStagedReveal(revealCfg)

	// halfway through the ease-in window of stage one
	plans := planAt(d, 1450*time.Millisecond, 3)
	require.True(t, plans[0].Revealed)
	assert.InDelta(t, 0.5, plans[0].Scale, 0.1)

	// past the window the overlay holds at full scale
	plans = planAt(d, 1800*time.Millisecond, 3)
	assert.InDelta(t, 1.0, plans[0].Scale, 1e-3)
}

func TestStagedRevealRampMonotonic(t *testing.T) {
	d := core.NewStagedReveal(revealCfg)

	var last float32 = -1
	for off := time.Duration(0); off < 5*time.Second; off += 50 * time.Millisecond {
		plans := planAt(d, off, 3)
		var scale float32
		if plans[1].Revealed {
			scale = plans[1].Scale
		}
		assert.GreaterOrEqual(t, scale, last, "offset %v", off)
		last = scale
	}
	assert.InDelta(t, 1.0, last, 1e-3)
}

func TestStagedRevealFullSceneAfterAllStages(t *testing.T) {
	offset := 3*revealCfg.StageDwell + revealCfg.EaseIn + 100*time.Millisecond
	d := core.NewStagedReveal(revealCfg)
	for _, p := range planAt(d, offset, 3) {
		assert.True(t, p.Revealed)
		assert.InDelta(t, 1.0, p.Scale, 1e-3)
	}
}

func TestStagedRevealReset(t *testing.T) {
	d := core.NewStagedReveal(revealCfg)
	plans := planAt(d, 10*time.Second, 3)
	require.True(t, plans[2].Revealed)

	d.Reset()
	for _, p := range planAt(d, 0, 3) {
		assert.False(t, p.Revealed)
	}
}

func TestContinuousKeepsEverythingVisible(t *testing.T) {
	d := core.NewContinuous()
	for _, off := range []time.Duration{0, time.Second, 7 * time.Second} {
		for _, p := range planAt(d, off, 3) {
			assert.True(t, p.Revealed)
			assert.InDelta(t, 1.0, p.Scale, 0.16)
			require.NotNil(t, p.Position)
			require.NotNil(t, p.Color)
		}
	}
}

func TestContinuousFollowsPointer(t *testing.T) {
	d := core.NewContinuous()
	base := planAt(d, time.Second, 1)

	d.SetPointer(5, -5)
	moved := planAt(d, time.Second, 1)

	assert.InDelta(t, base[0].Position.X()+5, moved[0].Position.X(), 0.05)
	assert.InDelta(t, base[0].Position.Y()-5, moved[0].Position.Y(), 0.05)
}

func TestStaticRevealsAll(t *testing.T) {
	var d core.Static
	for _, p := range planAt(d, 0, 4) {
		assert.True(t, p.Revealed)
		assert.EqualValues(t, 1, p.Scale)
	}
}
