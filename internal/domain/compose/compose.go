package compose

import (
	"image"
	"image/color"

	"github.com/forPelevin/clipforge/internal/domain/captions"
	"github.com/forPelevin/clipforge/internal/domain/overlay"
	"github.com/forPelevin/clipforge/internal/domain/timeline"
	"github.com/forPelevin/clipforge/internal/ports"
	"github.com/forPelevin/clipforge/internal/types"
)

// Shorts output geometry.
const (
	DefaultWidth  = 1080
	DefaultHeight = 1920
)

// CoverFit scales a src-sized frame to fully cover dst, centering it and
// letting the overflow on one axis fall outside the target.
func CoverFit(srcW, srcH, dstW, dstH int) ports.Rect {
	if srcW <= 0 || srcH <= 0 || dstW <= 0 || dstH <= 0 {
		return ports.Rect{}
	}
	srcAspect := float64(srcW) / float64(srcH)
	dstAspect := float64(dstW) / float64(dstH)
	if srcAspect > dstAspect {
		h := float64(dstH)
		w := h * srcAspect
		return ports.Rect{X: (float64(dstW) - w) / 2, Y: 0, W: w, H: h}
	}
	w := float64(dstW)
	h := w / srcAspect
	return ports.Rect{X: 0, Y: (float64(dstH) - h) / 2, W: w, H: h}
}

// Compositor draws one output frame: background, cover-fit source, caption.
type Compositor struct {
	Background color.Color
}

// Frame describes what Compose drew.
type Frame struct {
	Relative float64
	Caption  string
	Dest     ports.Rect
}

// Compose renders frame at clock reading now. The caption is resolved from
// the same reading used for the picture. A nil frame still gets the
// background and caption.
func (c Compositor) Compose(s ports.Surface, frame image.Image, clip types.Clip, style overlay.Style, now float64) Frame {
	w, h := s.Size()
	bg := c.Background
	if bg == nil {
		bg = color.Black
	}
	s.FillRect(ports.Rect{W: float64(w), H: float64(h)}, bg)

	var out Frame
	if frame != nil {
		b := frame.Bounds()
		out.Dest = CoverFit(b.Dx(), b.Dy(), w, h)
		s.DrawImage(frame, out.Dest)
	}

	out.Relative = timeline.Relative(clip, now)
	out.Caption = captions.Text(clip, out.Relative)
	overlay.Render(s, style, out.Caption)
	return out
}
