// Package raster implements ports.Surface on an in-memory RGBA image using
// golang.org/x/image for scaling, affine transforms and font rasterization.
package raster

import (
	"image"
	"image/color"
	"image/png"
	"io"
	"math"

	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/math/f64"
	"golang.org/x/image/math/fixed"

	"github.com/forPelevin/clipforge/internal/ports"
)

type state struct {
	m      f64.Aff3
	font   ports.Font
	shadow ports.Shadow
}

// Canvas is a software drawing surface. It is not safe for concurrent use.
type Canvas struct {
	img   *image.RGBA
	st    state
	stack []state
	faces faces
}

var _ ports.Surface = (*Canvas)(nil)

func New(width, height int) *Canvas {
	return &Canvas{
		img:   image.NewRGBA(image.Rect(0, 0, width, height)),
		st:    state{m: identity()},
		faces: faces{},
	}
}

// Image exposes the backing pixels. Its Pix slice is tightly packed RGBA.
func (c *Canvas) Image() *image.RGBA { return c.img }

func (c *Canvas) Size() (int, int) {
	b := c.img.Bounds()
	return b.Dx(), b.Dy()
}

func (c *Canvas) WritePNG(w io.Writer) error {
	return png.Encode(w, c.img)
}

// Close drops the cached font faces.
func (c *Canvas) Close() error {
	c.faces.close()
	return nil
}

func (c *Canvas) Save() { c.stack = append(c.stack, c.st) }

func (c *Canvas) Restore() {
	if len(c.stack) == 0 {
		return
	}
	c.st = c.stack[len(c.stack)-1]
	c.stack = c.stack[:len(c.stack)-1]
}

func (c *Canvas) Translate(x, y float64) { c.st.m = mul(c.st.m, translate(x, y)) }

func (c *Canvas) Rotate(radians float64) { c.st.m = mul(c.st.m, rotate(radians)) }

func (c *Canvas) SetFont(f ports.Font) { c.st.font = f }

func (c *Canvas) SetShadow(sh ports.Shadow) { c.st.shadow = sh }

func (c *Canvas) FillRect(r ports.Rect, col color.Color) {
	if r.W <= 0 || r.H <= 0 {
		return
	}
	if !c.st.shadow.Enabled() && axisAligned(c.st.m) {
		x0, y0 := apply(c.st.m, r.X, r.Y)
		x1, y1 := apply(c.st.m, r.X+r.W, r.Y+r.H)
		rect := image.Rect(round(x0), round(y0), round(x1), round(y1)).Canon()
		draw.Draw(c.img, rect, image.NewUniform(col), image.Point{}, draw.Over)
		return
	}
	pad := c.pad(0)
	w, h := int(math.Ceil(r.W)), int(math.Ceil(r.H))
	layer := image.NewNRGBA(image.Rect(0, 0, w+2*pad, h+2*pad))
	draw.Draw(layer, image.Rect(pad, pad, pad+w, pad+h), image.NewUniform(col), image.Point{}, draw.Src)
	c.paint(layer, mul(c.st.m, translate(r.X-float64(pad), r.Y-float64(pad))))
}

func (c *Canvas) DrawImage(src image.Image, dst ports.Rect) {
	if src == nil || dst.W <= 0 || dst.H <= 0 {
		return
	}
	sb := src.Bounds()
	if sb.Empty() {
		return
	}
	if axisAligned(c.st.m) && c.st.m[0] > 0 && c.st.m[4] > 0 {
		x0, y0 := apply(c.st.m, dst.X, dst.Y)
		x1, y1 := apply(c.st.m, dst.X+dst.W, dst.Y+dst.H)
		draw.ApproxBiLinear.Scale(c.img, image.Rect(round(x0), round(y0), round(x1), round(y1)), src, sb, draw.Over, nil)
		return
	}
	m := mul(c.st.m, translate(dst.X, dst.Y))
	m = mul(m, scale(dst.W/float64(sb.Dx()), dst.H/float64(sb.Dy())))
	m = mul(m, translate(-float64(sb.Min.X), -float64(sb.Min.Y)))
	draw.ApproxBiLinear.Transform(c.img, m, src, sb, draw.Over, nil)
}

// MeasureText reports the advance width and splits the font's line height
// evenly around the middle baseline.
func (c *Canvas) MeasureText(text string) ports.TextMetrics {
	face, err := c.faces.face(c.st.font)
	if err != nil {
		size := c.st.font.Size
		return ports.TextMetrics{Width: float64(len([]rune(text))) * size * 0.5, Ascent: size / 2, Descent: size / 2}
	}
	met := face.Metrics()
	half := fromFixed(met.Ascent+met.Descent) / 2
	return ports.TextMetrics{
		Width:   fromFixed(font.MeasureString(face, text)),
		Ascent:  half,
		Descent: half,
	}
}

func (c *Canvas) FillText(text string, x, y float64, col color.Color) {
	c.text(text, x, y, col, 0)
}

func (c *Canvas) StrokeText(text string, x, y float64, col color.Color, lineWidth float64) {
	if lineWidth <= 0 {
		return
	}
	c.text(text, x, y, col, lineWidth)
}

// text rasterizes one line centered on x with its middle on y. A positive
// lineWidth strokes the outline by stamping the glyphs around a ring.
func (c *Canvas) text(s string, x, y float64, col color.Color, lineWidth float64) {
	if s == "" {
		return
	}
	face, err := c.faces.face(c.st.font)
	if err != nil {
		return
	}
	met := face.Metrics()
	asc, desc := met.Ascent.Ceil(), met.Descent.Ceil()
	adv := font.MeasureString(face, s).Ceil()
	pad := c.pad(lineWidth)

	layer := image.NewNRGBA(image.Rect(0, 0, adv+2*pad, asc+desc+2*pad))
	d := font.Drawer{Dst: layer, Src: image.NewUniform(col), Face: face}
	for _, o := range strokeOffsets(lineWidth) {
		d.Dot = fixed.Point26_6{
			X: fixed.I(pad) + toFixed(o[0]),
			Y: fixed.I(pad+asc) + toFixed(o[1]),
		}
		d.DrawString(s)
	}
	left := x - fromFixed(font.MeasureString(face, s))/2
	top := y - float64(asc+desc)/2
	c.paint(layer, mul(c.st.m, translate(left-float64(pad), top-float64(pad))))
}

// paint composites layer through m, preceded by the current shadow.
func (c *Canvas) paint(layer *image.NRGBA, m f64.Aff3) {
	if sh := c.st.shadow; sh.Enabled() {
		shadow := shadowLayer(layer, sh.Color, sh.Blur)
		sm := mul(translate(sh.OffsetX, sh.OffsetY), m)
		draw.ApproxBiLinear.Transform(c.img, sm, shadow, shadow.Bounds(), draw.Over, nil)
	}
	draw.ApproxBiLinear.Transform(c.img, m, layer, layer.Bounds(), draw.Over, nil)
}

// pad is the transparent margin a layer needs for strokes and shadow blur.
func (c *Canvas) pad(lineWidth float64) int {
	p := int(math.Ceil(lineWidth)) + 2
	if c.st.shadow.Enabled() {
		p += shadowReach(c.st.shadow.Blur)
	}
	return p
}

func strokeOffsets(lineWidth float64) [][2]float64 {
	if lineWidth <= 0 {
		return [][2]float64{{0, 0}}
	}
	r := lineWidth / 2
	steps := 16
	out := make([][2]float64, 0, 2*steps)
	for _, radius := range []float64{r, r / 2} {
		for i := 0; i < steps; i++ {
			a := 2 * math.Pi * float64(i) / float64(steps)
			out = append(out, [2]float64{radius * math.Cos(a), radius * math.Sin(a)})
		}
	}
	return out
}

func identity() f64.Aff3 { return f64.Aff3{1, 0, 0, 0, 1, 0} }

func translate(x, y float64) f64.Aff3 { return f64.Aff3{1, 0, x, 0, 1, y} }

func scale(sx, sy float64) f64.Aff3 { return f64.Aff3{sx, 0, 0, 0, sy, 0} }

func rotate(radians float64) f64.Aff3 {
	sin, cos := math.Sincos(radians)
	return f64.Aff3{cos, -sin, 0, sin, cos, 0}
}

// mul returns the transform applying b first, then a.
func mul(a, b f64.Aff3) f64.Aff3 {
	return f64.Aff3{
		a[0]*b[0] + a[1]*b[3],
		a[0]*b[1] + a[1]*b[4],
		a[0]*b[2] + a[1]*b[5] + a[2],
		a[3]*b[0] + a[4]*b[3],
		a[3]*b[1] + a[4]*b[4],
		a[3]*b[2] + a[4]*b[5] + a[5],
	}
}

func apply(m f64.Aff3, x, y float64) (float64, float64) {
	return m[0]*x + m[1]*y + m[2], m[3]*x + m[4]*y + m[5]
}

func axisAligned(m f64.Aff3) bool { return m[1] == 0 && m[3] == 0 }

func round(v float64) int { return int(math.Round(v)) }

func toFixed(v float64) fixed.Int26_6 { return fixed.Int26_6(math.Round(v * 64)) }

func fromFixed(v fixed.Int26_6) float64 { return float64(v) / 64 }
