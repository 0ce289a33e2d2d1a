package loopback_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/devblok/korxr/gfx"
	"github.com/devblok/korxr/gfx/soft"
	"github.com/devblok/korxr/xr"
	"github.com/devblok/korxr/xr/loopback"
)

func newRuntime(t *testing.T) *loopback.Runtime {
	t.Helper()
	ctx, err := soft.NewContext(&gfx.Surface{Width: 32, Height: 32, Native: 1})
	require.NoError(t, err)

	rt, err := loopback.New(loopback.Config{
		Graphics:    ctx,
		FramePeriod: time.Millisecond,
	})
	require.NoError(t, err)
	return rt
}

func newInstance(t *testing.T) (*loopback.Runtime, xr.Instance) {
	t.Helper()
	rt := newRuntime(t)
	inst, err := rt.CreateInstance(xr.InstanceCreateInfo{
		ApplicationName: "loopback-test",
		Extensions:      []string{xr.ExtOverlay},
	})
	require.NoError(t, err)
	t.Cleanup(func() { inst.Destroy() })
	return rt, inst
}

func newRunningSession(t *testing.T) (*loopback.Runtime, xr.Instance, xr.Session) {
	t.Helper()
	rt, inst := newInstance(t)

	system, err := inst.System(xr.FormFactorHeadMounted)
	require.NoError(t, err)

	session, err := inst.CreateSession(xr.SessionCreateInfo{
		System:   system,
		Graphics: xr.GraphicsBinding{Context: 1},
	})
	require.NoError(t, err)

	require.NoError(t, session.Begin(xr.ViewConfigurationStereo))
	return rt, inst, session
}

func TestCreateInstanceRejectsUnknownExtension(t *testing.T) {
	rt := newRuntime(t)
	_, err := rt.CreateInstance(xr.InstanceCreateInfo{
		Extensions: []string{"no-such-extension"},
	})
	assert.ErrorIs(t, err, xr.ErrExtensionUnsupported)
}

func TestSingleInstancePolicy(t *testing.T) {
	rt, _ := newInstance(t)
	_, err := rt.CreateInstance(xr.InstanceCreateInfo{})
	assert.Error(t, err)
}

func TestSessionEventSequence(t *testing.T) {
	_, inst := newInstance(t)

	system, err := inst.System(xr.FormFactorHeadMounted)
	require.NoError(t, err)
	_, err = inst.CreateSession(xr.SessionCreateInfo{
		System:   system,
		Graphics: xr.GraphicsBinding{Context: 1},
	})
	require.NoError(t, err)

	var states []xr.SessionState
	for {
		ev, ok := inst.PollEvent()
		if !ok {
			break
		}
		if sc, ok := ev.(xr.SessionStateChangedEvent); ok {
			states = append(states, sc.State)
		}
	}
	assert.Equal(t, []xr.SessionState{xr.StateIdle, xr.StateReady}, states)
}

func TestBeginOutsideReadyFails(t *testing.T) {
	_, _, session := newRunningSession(t)
	assert.ErrorIs(t, session.Begin(xr.ViewConfigurationStereo), xr.ErrSessionNotReady)
}

func TestEndOutsideStoppingFails(t *testing.T) {
	_, _, session := newRunningSession(t)
	assert.ErrorIs(t, session.End(), xr.ErrSessionNotStopping)
}

func TestExitHandshake(t *testing.T) {
	rt, _, session := newRunningSession(t)

	require.NoError(t, session.RequestExit())
	assert.Equal(t, xr.StateStopping, rt.Session().State())

	require.NoError(t, session.End())
	assert.Equal(t, xr.StateExiting, rt.Session().State())
}

func TestFrameCallOrdering(t *testing.T) {
	_, _, session := newRunningSession(t)

	assert.ErrorIs(t, session.BeginFrame(), xr.ErrFrameOutOfOrder)
	assert.ErrorIs(t, session.EndFrame(xr.FrameEndInfo{}), xr.ErrFrameOutOfOrder)

	_, err := session.WaitFrame()
	require.NoError(t, err)
	assert.ErrorIs(t, session.EndFrame(xr.FrameEndInfo{}), xr.ErrFrameOutOfOrder)

	require.NoError(t, session.BeginFrame())
	_, err = session.WaitFrame()
	assert.ErrorIs(t, err, xr.ErrFrameOutOfOrder)
	require.NoError(t, session.EndFrame(xr.FrameEndInfo{}))

	// the cycle restarts cleanly
	_, err = session.WaitFrame()
	require.NoError(t, err)
	require.NoError(t, session.BeginFrame())
	require.NoError(t, session.EndFrame(xr.FrameEndInfo{}))
}

func TestShouldRenderFollowsStateAndOverride(t *testing.T) {
	rt, _, session := newRunningSession(t)

	state, err := session.WaitFrame()
	require.NoError(t, err)
	assert.True(t, state.ShouldRender)
	require.NoError(t, session.BeginFrame())
	require.NoError(t, session.EndFrame(xr.FrameEndInfo{}))

	rt.SetShouldRender(false)
	state, err = session.WaitFrame()
	require.NoError(t, err)
	assert.False(t, state.ShouldRender)
	require.NoError(t, session.BeginFrame())
	require.NoError(t, session.EndFrame(xr.FrameEndInfo{}))
}

func TestSwapchainAcquireReleaseRing(t *testing.T) {
	_, _, session := newRunningSession(t)

	sc, err := session.CreateSwapchain(xr.SwapchainCreateInfo{Width: 64, Height: 32})
	require.NoError(t, err)
	require.Len(t, sc.Images(), 3)
	assert.Equal(t, xr.Extent2Di{Width: 64, Height: 32}, sc.Extent())

	first, err := sc.Acquire()
	require.NoError(t, err)

	_, err = sc.Acquire()
	assert.ErrorIs(t, err, xr.ErrSwapchainImageInFlight)

	require.NoError(t, sc.Wait(time.Second))
	require.NoError(t, sc.Release())

	second, err := sc.Acquire()
	require.NoError(t, err)
	assert.Equal(t, (first+1)%3, second)
	require.NoError(t, sc.Release())
}

func TestDestroyedSwapchainHandleRejected(t *testing.T) {
	_, _, session := newRunningSession(t)

	sc, err := session.CreateSwapchain(xr.SwapchainCreateInfo{Width: 16, Height: 16})
	require.NoError(t, err)
	require.NoError(t, sc.Destroy())
	require.NoError(t, sc.Destroy(), "destroy is idempotent")

	_, err = sc.Acquire()
	assert.ErrorIs(t, err, xr.ErrHandleInvalid)

	_, err = session.WaitFrame()
	require.NoError(t, err)
	require.NoError(t, session.BeginFrame())
	err = session.EndFrame(xr.FrameEndInfo{
		Layers: []xr.CompositionLayer{
			xr.QuadLayer{SubImage: xr.SwapchainSubImage{Swapchain: sc}},
		},
	})
	assert.ErrorIs(t, err, xr.ErrHandleInvalid)
}

func TestInjectedSwapchainFailure(t *testing.T) {
	rt, _, session := newRunningSession(t)

	rt.FailNextSwapchains(1)
	_, err := session.CreateSwapchain(xr.SwapchainCreateInfo{Width: 16, Height: 16})
	assert.Error(t, err)

	_, err = session.CreateSwapchain(xr.SwapchainCreateInfo{Width: 16, Height: 16})
	assert.NoError(t, err)
}

func TestInstanceLoss(t *testing.T) {
	rt, inst := newInstance(t)

	rt.LoseInstance()

	ev, ok := inst.PollEvent()
	require.True(t, ok)
	assert.IsType(t, xr.InstanceLossPendingEvent{}, ev)

	_, err := inst.System(xr.FormFactorHeadMounted)
	assert.ErrorIs(t, err, xr.ErrInstanceLost)
	_, err = inst.CreateSession(xr.SessionCreateInfo{System: 1, Graphics: xr.GraphicsBinding{Context: 1}})
	assert.ErrorIs(t, err, xr.ErrInstanceLost)
}

func TestFrameCountAndSubmission(t *testing.T) {
	rt, _, session := newRunningSession(t)

	sc, err := session.CreateSwapchain(xr.SwapchainCreateInfo{Width: 16, Height: 16})
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		_, err := session.WaitFrame()
		require.NoError(t, err)
		require.NoError(t, session.BeginFrame())

		_, err = sc.Acquire()
		require.NoError(t, err)
		require.NoError(t, sc.Wait(time.Second))
		require.NoError(t, sc.Release())

		require.NoError(t, session.EndFrame(xr.FrameEndInfo{
			Layers: []xr.CompositionLayer{
				xr.QuadLayer{
					Size:     xr.Extent2Df{Width: 1, Height: 1},
					SubImage: xr.SwapchainSubImage{Swapchain: sc},
				},
			},
		}))
	}

	assert.EqualValues(t, 3, rt.Session().FrameCount())
	assert.Len(t, rt.Session().LastSubmitted(), 1)
	assert.NotNil(t, rt.Session().Presentation())
}
