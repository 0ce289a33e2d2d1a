package loopback

import (
	"image"

	"github.com/devblok/korxr/xr"
)

// presentTarget is the pixmap composited frames land on. The world
// region x,y in [-1,1] maps onto the full target; z is ignored beyond
// the back-to-front order the layer list already encodes.
type presentTarget struct {
	img *image.RGBA
}

// compositeLocked blends the frame's quad layers into the presentation
// target in list order. Callers hold s.mu.
func (s *Session) compositeLocked(info xr.FrameEndInfo) {
	cfg := s.instance.runtime.cfg
	if s.presentation == nil {
		s.presentation = &presentTarget{
			img: image.NewRGBA(image.Rect(0, 0, cfg.PresentWidth, cfg.PresentHeight)),
		}
	}
	dst := s.presentation.img
	db := dst.Bounds()

	// A frame with no layers presents nothing but still clears.
	for i := range dst.Pix {
		dst.Pix[i] = 0
	}

	for _, layer := range info.Layers {
		quad, ok := layer.(xr.QuadLayer)
		if !ok {
			continue
		}
		rec, err := s.swapchains.lookup(quad.SubImage.Swapchain.(*Swapchain))
		if err != nil || rec.lastReleased < 0 {
			continue
		}
		src, err := cfg.Graphics.Pixels(rec.textures[rec.lastReleased])
		if err != nil {
			continue
		}

		// World quad center and half-size to target pixels.
		cx := (quad.Pose.Position.X/2 + 0.5) * float32(db.Dx())
		cy := (0.5 - quad.Pose.Position.Y/2) * float32(db.Dy())
		hw := quad.Size.Width / 4 * float32(db.Dx())
		hh := quad.Size.Height / 4 * float32(db.Dy())

		x0, x1 := int(cx-hw), int(cx+hw)
		y0, y1 := int(cy-hh), int(cy+hh)
		x0, x1 = clampInt(x0, db.Min.X, db.Max.X), clampInt(x1, db.Min.X, db.Max.X)
		y0, y1 = clampInt(y0, db.Min.Y, db.Max.Y), clampInt(y1, db.Min.Y, db.Max.Y)
		if x0 >= x1 || y0 >= y1 {
			continue
		}

		sb := src.Bounds()
		for y := y0; y < y1; y++ {
			sy := sb.Min.Y + (y-y0)*sb.Dy()/(y1-y0)
			for x := x0; x < x1; x++ {
				sx := sb.Min.X + (x-x0)*sb.Dx()/(x1-x0)
				sp := src.RGBAAt(sx, sy)
				if sp.A == 0 {
					continue
				}
				if sp.A == 255 {
					dst.SetRGBA(x, y, sp)
					continue
				}
				dp := dst.RGBAAt(x, y)
				a := uint32(sp.A)
				na := 255 - a
				dp.R = uint8((uint32(sp.R)*a + uint32(dp.R)*na) / 255)
				dp.G = uint8((uint32(sp.G)*a + uint32(dp.G)*na) / 255)
				dp.B = uint8((uint32(sp.B)*a + uint32(dp.B)*na) / 255)
				dp.A = uint8(minU32(255, a+uint32(dp.A)*na/255))
				dst.SetRGBA(x, y, dp)
			}
		}
	}
}

// Presentation returns the composited output pixmap. Test surface;
// callers must treat the result as read-only.
func (s *Session) Presentation() *image.RGBA {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.presentation == nil {
		return nil
	}
	return s.presentation.img
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func minU32(a, b uint32) uint32 {
	if a < b {
		return a
	}
	return b
}
