package core

import (
	"errors"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/devblok/korxr/gfx"
	"github.com/devblok/korxr/model"
	"github.com/devblok/korxr/xr"
)

// frameWaitTimeout bounds the wait on an acquired swapchain image.
const frameWaitTimeout = 100 * time.Millisecond

type pendingFrame struct {
	state  xr.FrameState
	layers []xr.CompositionLayer
}

// Tick runs one complete frame cycle: poll events, wait, begin,
// render when the runtime wants a frame, end. A begun frame is always
// ended, with an empty layer list when rendering is skipped.
func (s *Session) Tick() error {
	s.PollEvents()
	if !s.running.Load() {
		return nil
	}
	if err := s.BeginTick(); err != nil {
		return err
	}
	return s.EndTick()
}

// BeginTick waits for frame permission, opens the frame and renders
// the layer list. EndTick must follow before the next BeginTick.
func (s *Session) BeginTick() error {
	if s.pending != nil {
		return errors.New("core.BeginTick(): frame already begun")
	}

	state, err := s.session.WaitFrame()
	if err != nil {
		return errors.New("core.BeginTick(): " + err.Error())
	}
	if err := s.session.BeginFrame(); err != nil {
		return errors.New("core.BeginTick(): " + err.Error())
	}

	var layers []xr.CompositionLayer
	if state.ShouldRender && s.resumed.Load() {
		layers = s.renderLayers()
	}
	s.pending = &pendingFrame{state: state, layers: layers}
	return nil
}

// EndTick submits the frame opened by the last BeginTick.
func (s *Session) EndTick() error {
	if s.pending == nil {
		return errors.New("core.EndTick(): no begun frame")
	}
	p := s.pending
	s.pending = nil

	err := s.session.EndFrame(xr.FrameEndInfo{
		DisplayTime: p.state.PredictedDisplayTime,
		BlendMode:   s.blend,
		Layers:      p.layers,
	})
	if err != nil {
		return errors.New("core.EndTick(): " + err.Error())
	}
	s.frames.Add(1)
	return nil
}

// renderLayers draws every visible layer into its swapchain and
// assembles the composition list back to front: background first,
// then revealed overlays in ascending id order.
func (s *Session) renderLayers() []xr.CompositionLayer {
	plans := s.driver.Plan(time.Now(), len(s.overlays))

	layers := make([]xr.CompositionLayer, 0, 1+len(s.overlays))
	if q := s.renderLayer(s.background, s.backgroundProg, LayerPlan{Revealed: true, Scale: 1}); q != nil {
		layers = append(layers, *q)
	}
	for i, ov := range s.overlays {
		if !ov.Active() || !plans[i].Revealed || plans[i].Scale <= 0 {
			continue
		}
		if q := s.renderLayer(ov, s.overlayProg, plans[i]); q != nil {
			layers = append(layers, *q)
		}
	}
	return layers
}

func (s *Session) renderLayer(l *Layer, prog gfx.Program, plan LayerPlan) *xr.QuadLayer {
	if l.swapchain == nil {
		return nil
	}

	idx, err := l.swapchain.Acquire()
	if err != nil {
		log.WithError(err).Warn("swapchain acquire failed, layer skipped")
		return nil
	}
	if err := l.swapchain.Wait(frameWaitTimeout); err != nil {
		log.WithError(err).Warn("swapchain wait failed, layer skipped")
		l.swapchain.Release()
		return nil
	}

	params := l.Params()
	pos := params.Position
	if plan.Position != nil {
		pos = *plan.Position
	}
	color := params.Color
	if plan.Color != nil {
		color = *plan.Color
	}
	scale := params.Scale * plan.Scale

	extent := l.swapchain.Extent()
	if err := s.gfx.Bind(l.framebuffers[idx]); err != nil {
		log.WithError(err).Warn("framebuffer bind failed, layer skipped")
		l.swapchain.Release()
		return nil
	}
	s.gfx.Viewport(int(extent.Width), int(extent.Height))
	if prog == s.backgroundProg {
		s.gfx.Clear(mgl32.Vec4{color.X(), color.Y(), color.Z(), 1})
	} else {
		s.gfx.Clear(mgl32.Vec4{})
	}

	// view and projection stay identity: a quad layer carries its own
	// pose, applied by the runtime compositor at submit time
	uniform := model.Uniform{
		Model:      ModelMatrix(pos.X(), pos.Y(), pos.Z(), scale),
		View:       mgl32.Ident4(),
		Projection: mgl32.Ident4(),
	}
	if err := s.gfx.Draw(prog, s.quad, uniform.MVP(), color, params.Alpha); err != nil {
		log.WithError(err).Warn("layer draw failed")
	}
	s.gfx.Bind(gfx.NoFramebuffer)

	if err := l.swapchain.Release(); err != nil {
		log.WithError(err).Warn("swapchain release failed")
	}

	return &xr.QuadLayer{
		Space: s.space,
		Pose: xr.Posef{
			Orientation: xr.IdentityOrientation(),
			Position:    xr.Vector3f{X: pos.X(), Y: pos.Y(), Z: pos.Z()},
		},
		Size: xr.Extent2Df{
			Width:  l.spec.Size.Width * scale,
			Height: l.spec.Size.Height * scale,
		},
		SubImage: xr.SwapchainSubImage{
			Swapchain: l.swapchain,
			ImageRect: xr.Rect2Di{Extent: extent},
		},
	}
}

// Loop runs Tick until stop closes, the session winds down or the
// instance is lost. Meant for a dedicated, OS-locked goroutine; the
// runtime's WaitFrame paces it while running, an idle delay while not.
func (s *Session) Loop(stop <-chan struct{}) {
	idle := time.Duration(s.cfg.Time.EventPollDelay) * time.Millisecond
	if idle <= 0 {
		idle = 10 * time.Millisecond
	}

	for {
		select {
		case <-stop:
			return
		default:
		}
		if s.Stopped() {
			return
		}
		if err := s.Tick(); err != nil {
			log.WithError(err).Error("frame tick failed")
			if errors.Is(err, xr.ErrInstanceLost) {
				return
			}
		}
		if !s.running.Load() {
			time.Sleep(idle)
		}
	}
}
