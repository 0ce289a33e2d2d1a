package core_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/devblok/korxr/core"
	"github.com/devblok/korxr/gfx"
	"github.com/devblok/korxr/gfx/soft"
	"github.com/devblok/korxr/xr"
	"github.com/devblok/korxr/xr/loopback"
)

type rig struct {
	rt      *loopback.Runtime
	ctx     *soft.Context
	session *core.Session
	control *core.Control
	handle  core.Handle
}

func newRig(t *testing.T, driver core.Driver, mod func(*core.Configuration)) *rig {
	t.Helper()

	ctx, err := soft.NewContext(&gfx.Surface{Width: 128, Height: 128, Native: 1})
	require.NoError(t, err)

	rt, err := loopback.New(loopback.Config{
		Graphics:    ctx,
		FramePeriod: time.Millisecond,
	})
	require.NoError(t, err)

	cfg := core.DefaultConfiguration()
	cfg.Time.FramesPerSecond = 0
	if mod != nil {
		mod(&cfg)
	}

	session, err := core.NewSession(rt, ctx, cfg, driver, core.Hooks{})
	require.NoError(t, err)
	t.Cleanup(session.Destroy)

	control := core.NewControl(cfg.Policy)
	return &rig{
		rt:      rt,
		ctx:     ctx,
		session: session,
		control: control,
		handle:  control.Register(session),
	}
}

func (r *rig) start(t *testing.T) {
	t.Helper()
	r.session.PollEvents()
	require.True(t, r.session.Running())
}

func (r *rig) activateAll(t *testing.T, n int) {
	t.Helper()
	for id := 0; id < n; id++ {
		require.True(t, r.control.CreateOverlay(r.handle, id))
	}
}

func TestSessionInitialization(t *testing.T) {
	r := newRig(t, core.Static{}, nil)

	assert.Equal(t, "initialized", r.session.Status())
	assert.Contains(t, r.session.RuntimeInfo(), "loopback")
	assert.NotEmpty(t, r.session.SystemName())
	assert.Contains(t, r.session.Extensions(), xr.ExtOverlay)
}

func TestSessionNilGraphicsContext(t *testing.T) {
	rt, err := loopback.New(loopback.Config{
		Graphics: mustContext(t),
	})
	require.NoError(t, err)

	_, err = core.NewSession(rt, nil, core.DefaultConfiguration(), core.Static{}, core.Hooks{})
	assert.Error(t, err)
}

func mustContext(t *testing.T) *soft.Context {
	t.Helper()
	ctx, err := soft.NewContext(&gfx.Surface{Width: 16, Height: 16, Native: 1})
	require.NoError(t, err)
	return ctx
}

func TestSessionStartupReachesFocused(t *testing.T) {
	r := newRig(t, core.Static{}, nil)
	r.start(t)

	assert.Equal(t, xr.StateFocused, r.session.State())
	assert.Equal(t, "running", r.session.Status())

	// one swapchain per slot, one framebuffer per swapchain image
	assert.Equal(t, 4*3, r.ctx.FramebufferCount())
}

func TestFrameLoopCountsMatch(t *testing.T) {
	r := newRig(t, core.Static{}, nil)
	r.start(t)

	for i := 0; i < 5; i++ {
		require.NoError(t, r.session.Tick())
	}

	assert.EqualValues(t, 5, r.session.FrameCount())
	assert.EqualValues(t, 5, r.rt.Session().FrameCount())
}

func TestFrameLoopEndsFramesWhenRenderOff(t *testing.T) {
	r := newRig(t, core.Static{}, nil)
	r.start(t)
	r.activateAll(t, 3)

	r.rt.SetShouldRender(false)
	for i := 0; i < 3; i++ {
		require.NoError(t, r.session.Tick())
	}

	// frames still paired, nothing rendered
	assert.EqualValues(t, 3, r.rt.Session().FrameCount())
	assert.Empty(t, r.rt.Session().LastSubmitted())

	r.rt.SetShouldRender(true)
	require.NoError(t, r.session.Tick())
	assert.NotEmpty(t, r.rt.Session().LastSubmitted())
}

func TestLayerListBackgroundFirst(t *testing.T) {
	r := newRig(t, core.Static{}, nil)
	r.start(t)
	r.activateAll(t, 3)

	require.NoError(t, r.session.Tick())

	layers := r.rt.Session().LastSubmitted()
	require.Len(t, layers, 4)

	background, ok := layers[0].(xr.QuadLayer)
	require.True(t, ok)
	assert.EqualValues(t, 1024, background.SubImage.ImageRect.Extent.Width)

	cfg := core.DefaultConfiguration()
	for i, spec := range cfg.Overlays {
		quad, ok := layers[i+1].(xr.QuadLayer)
		require.True(t, ok)
		assert.InDelta(t, spec.Position.X(), quad.Pose.Position.X, 1e-6)
		assert.InDelta(t, spec.Position.Y(), quad.Pose.Position.Y, 1e-6)
		assert.InDelta(t, spec.Size.Width, quad.Size.Width, 1e-6)
	}
}

func TestInactiveOverlaysStayOut(t *testing.T) {
	r := newRig(t, core.Static{}, nil)
	r.start(t)
	require.True(t, r.control.CreateOverlay(r.handle, 1))

	require.NoError(t, r.session.Tick())

	layers := r.rt.Session().LastSubmitted()
	require.Len(t, layers, 2)
	quad := layers[1].(xr.QuadLayer)
	assert.InDelta(t, 0.0, quad.Pose.Position.X, 1e-6)
	assert.InDelta(t, -0.25, quad.Pose.Position.Y, 1e-6)
}

func TestStagedRevealScenario(t *testing.T) {
	anim := core.AnimationConfiguration{
		StageDwell: 40 * time.Millisecond,
		EaseIn:     20 * time.Millisecond,
	}
	driver := core.NewStagedReveal(anim)
	r := newRig(t, driver, func(cfg *core.Configuration) {
		cfg.Animation = anim
	})
	r.start(t)
	r.activateAll(t, 3)

	require.NoError(t, r.session.Tick())
	assert.Len(t, r.rt.Session().LastSubmitted(), 1, "only the background before the first stage")

	time.Sleep(3*anim.StageDwell + anim.EaseIn + 30*time.Millisecond)
	require.NoError(t, r.session.Tick())

	layers := r.rt.Session().LastSubmitted()
	require.Len(t, layers, 4)

	cfg := core.DefaultConfiguration()
	for i, spec := range cfg.Overlays {
		quad := layers[i+1].(xr.QuadLayer)
		assert.InDelta(t, spec.Size.Width, quad.Size.Width, 1e-3, "overlay %d at target scale", i)
	}

	// a tap rewinds the reveal to the backdrop-only stage
	r.session.InputDown(0, 0)
	require.NoError(t, r.session.Tick())
	assert.Len(t, r.rt.Session().LastSubmitted(), 1)
}

func TestPauseSuppressesRendering(t *testing.T) {
	r := newRig(t, core.Static{}, nil)
	r.start(t)
	r.activateAll(t, 3)

	r.session.Pause()
	require.NoError(t, r.session.Tick())
	assert.Empty(t, r.rt.Session().LastSubmitted())

	r.session.Resume()
	require.NoError(t, r.session.Tick())
	assert.Len(t, r.rt.Session().LastSubmitted(), 4)
}

func TestSessionWindDown(t *testing.T) {
	r := newRig(t, core.Static{}, nil)
	r.start(t)

	require.NoError(t, r.session.Tick())

	require.NoError(t, r.session.RequestExit())
	r.session.PollEvents()

	assert.False(t, r.session.Running())
	assert.True(t, r.session.Stopped())
	assert.Equal(t, xr.StateExiting, r.session.State())
}

func TestSessionStopHookFires(t *testing.T) {
	var stops int
	r := newRigWithHooks(t, core.Hooks{OnStop: func() { stops++ }})
	r.start(t)

	require.NoError(t, r.session.RequestExit())
	r.session.PollEvents()

	assert.Equal(t, 1, stops)
	assert.True(t, r.session.Stopped())
}

func newRigWithHooks(t *testing.T, hooks core.Hooks) *rig {
	t.Helper()

	ctx, err := soft.NewContext(&gfx.Surface{Width: 128, Height: 128, Native: 1})
	require.NoError(t, err)

	rt, err := loopback.New(loopback.Config{Graphics: ctx, FramePeriod: time.Millisecond})
	require.NoError(t, err)

	cfg := core.DefaultConfiguration()
	session, err := core.NewSession(rt, ctx, cfg, core.Static{}, hooks)
	require.NoError(t, err)
	t.Cleanup(session.Destroy)

	control := core.NewControl(cfg.Policy)
	return &rig{rt: rt, ctx: ctx, session: session, control: control, handle: control.Register(session)}
}

func TestInstanceLossIsFatal(t *testing.T) {
	r := newRig(t, core.Static{}, nil)
	r.start(t)

	r.rt.LoseInstance()
	r.session.PollEvents()

	assert.False(t, r.session.Running())
	assert.True(t, r.session.Stopped())
	assert.Equal(t, "instance lost", r.session.Status())
}

func TestSwapchainFailureAbortsStartup(t *testing.T) {
	ctx := mustContext(t)
	rt, err := loopback.New(loopback.Config{Graphics: ctx, FramePeriod: time.Millisecond})
	require.NoError(t, err)

	var stops int
	cfg := core.DefaultConfiguration()
	session, err := core.NewSession(rt, ctx, cfg, core.Static{}, core.Hooks{OnStop: func() { stops++ }})
	require.NoError(t, err)
	t.Cleanup(session.Destroy)

	// the first slot to fail is the background
	rt.FailNextSwapchains(1)
	session.PollEvents()

	assert.False(t, session.Running())
	assert.True(t, session.Stopped())
	assert.Equal(t, "swapchain init failed", session.Status())
	assert.Equal(t, 1, stops)

	// reverse teardown freed the slots that did build
	assert.Equal(t, 0, ctx.FramebufferCount())

	// ticking a dead session neither frames nor panics
	require.NoError(t, session.Tick())
	assert.Zero(t, session.FrameCount())
}

func TestDestroyReleasesEverything(t *testing.T) {
	r := newRig(t, core.Static{}, nil)
	r.start(t)
	require.NoError(t, r.session.Tick())

	r.session.Destroy()
	assert.Equal(t, 0, r.ctx.FramebufferCount())
	assert.Equal(t, "destroyed", r.session.Status())

	// idempotent
	r.session.Destroy()
	assert.Equal(t, "destroyed", r.session.Status())
}
