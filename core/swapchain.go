package core

import (
	"errors"

	log "github.com/sirupsen/logrus"

	"github.com/devblok/korxr/gfx"
	"github.com/devblok/korxr/xr"
)

// swapchainPool owns one swapchain per layer slot plus a framebuffer
// for every image in each swapchain. Creation happens once, when the
// session first reaches the running state; repeat calls are no-ops.
type swapchainPool struct {
	created bool
}

// create allocates swapchains and framebuffers for every slot in
// order, background first. Every failed slot is reported in the
// returned error; a non-nil error aborts session startup and the
// teardown path frees whatever was built.
func (p *swapchainPool) create(session xr.Session, ctx gfx.Context, layers []*Layer) error {
	if p.created {
		return nil
	}

	var failed []error
	for i, l := range layers {
		if l.swapchain != nil {
			continue
		}

		sc, err := session.CreateSwapchain(xr.SwapchainCreateInfo{
			Width:       l.spec.Width,
			Height:      l.spec.Height,
			SampleCount: 1,
			ArraySize:   1,
		})
		if err != nil {
			log.WithError(err).WithField("slot", i).Error("swapchain creation failed")
			failed = append(failed, err)
			continue
		}

		fbs, err := framebuffersFor(ctx, sc)
		if err != nil {
			log.WithError(err).WithField("slot", i).Error("framebuffer creation failed")
			sc.Destroy()
			failed = append(failed, err)
			continue
		}

		l.swapchain = sc
		l.framebuffers = fbs
	}

	p.created = true
	if len(failed) > 0 {
		return errors.Join(failed...)
	}
	return nil
}

// framebuffersFor wraps each image of a swapchain in a framebuffer.
// On a partial failure, the framebuffers built so far are freed.
func framebuffersFor(ctx gfx.Context, sc xr.Swapchain) ([]gfx.Framebuffer, error) {
	images := sc.Images()
	fbs := make([]gfx.Framebuffer, 0, len(images))
	for _, img := range images {
		fb, err := ctx.NewFramebuffer(img)
		if err != nil {
			for _, done := range fbs {
				ctx.DeleteFramebuffer(done)
			}
			return nil, err
		}
		fbs = append(fbs, fb)
	}
	return fbs, nil
}

// destroy tears the pool down in slot order, framebuffers before
// their swapchain. Safe to call on a partially built pool.
func (p *swapchainPool) destroy(ctx gfx.Context, layers []*Layer) {
	for i, l := range layers {
		for _, fb := range l.framebuffers {
			ctx.DeleteFramebuffer(fb)
		}
		l.framebuffers = nil

		if l.swapchain == nil {
			continue
		}
		if err := l.swapchain.Destroy(); err != nil {
			log.WithError(err).WithField("slot", i).Warn("swapchain destroy failed")
		}
		l.swapchain = nil
	}
	p.created = false
}
