package raster

import (
	"bytes"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"math"
	"testing"

	"github.com/forPelevin/clipforge/internal/domain/overlay"
	"github.com/forPelevin/clipforge/internal/ports"
)

var (
	red   = color.NRGBA{R: 0xff, A: 0xff}
	blue  = color.NRGBA{B: 0xff, A: 0xff}
	green = color.NRGBA{G: 0xff, A: 0xff}
	white = color.NRGBA{R: 0xff, G: 0xff, B: 0xff, A: 0xff}
)

func TestFillRect(t *testing.T) {
	c := New(10, 10)
	c.FillRect(ports.Rect{X: 2, Y: 2, W: 4, H: 4}, red)
	if got := c.Image().RGBAAt(3, 3); got != (color.RGBA{R: 0xff, A: 0xff}) {
		t.Fatalf("inside pixel = %v", got)
	}
	if got := c.Image().RGBAAt(0, 0); got.A != 0 {
		t.Fatalf("outside pixel = %v", got)
	}
}

func TestSaveRestoreTransform(t *testing.T) {
	c := New(10, 10)
	c.Save()
	c.Translate(5, 5)
	c.FillRect(ports.Rect{W: 2, H: 2}, blue)
	c.Restore()
	c.FillRect(ports.Rect{W: 1, H: 1}, green)

	if got := c.Image().RGBAAt(5, 5); got.B != 0xff {
		t.Fatalf("translated fill missing: %v", got)
	}
	if got := c.Image().RGBAAt(0, 0); got.G != 0xff {
		t.Fatalf("restored fill missing: %v", got)
	}
	c.Restore()
	if w, h := c.Size(); w != 10 || h != 10 {
		t.Fatalf("size = %dx%d", w, h)
	}
}

func TestRotate(t *testing.T) {
	c := New(100, 100)
	c.Translate(50, 50)
	c.Rotate(math.Pi / 2)
	c.FillRect(ports.Rect{X: 0, Y: -3, W: 20, H: 6}, red)
	if got := c.Image().RGBAAt(50, 60); got.A < 0x80 {
		t.Fatalf("rotated rect should cover (50,60), got %v", got)
	}
	if got := c.Image().RGBAAt(60, 50); got.A != 0 {
		t.Fatalf("unrotated position should stay empty, got %v", got)
	}
}

func TestDrawImage_Scales(t *testing.T) {
	src := image.NewNRGBA(image.Rect(0, 0, 2, 2))
	for i := range src.Pix {
		src.Pix[i] = 0xff
	}
	c := New(20, 20)
	c.DrawImage(src, ports.Rect{X: 0, Y: 0, W: 10, H: 10})
	if got := c.Image().RGBAAt(5, 5); got != (color.RGBA{R: 0xff, G: 0xff, B: 0xff, A: 0xff}) {
		t.Fatalf("scaled pixel = %v", got)
	}
	if got := c.Image().RGBAAt(15, 15); got.A != 0 {
		t.Fatalf("pixel outside destination = %v", got)
	}
	c.DrawImage(nil, ports.Rect{W: 10, H: 10})
}

func TestMeasureText(t *testing.T) {
	c := New(10, 10)
	c.SetFont(ports.Font{Family: ports.FontSans, Weight: 700, Size: 40})
	one := c.MeasureText("W")
	two := c.MeasureText("WW")
	if one.Width <= 0 || two.Width <= one.Width {
		t.Fatalf("widths = %v, %v", one.Width, two.Width)
	}
	if one.Ascent <= 0 || one.Descent <= 0 || one.Height() > 80 {
		t.Fatalf("metrics = %+v", one)
	}
	c.SetFont(ports.Font{Family: ports.FontSans, Weight: 700, Size: 80})
	if big := c.MeasureText("W"); big.Width <= one.Width {
		t.Fatalf("larger font should measure wider: %v <= %v", big.Width, one.Width)
	}
}

func TestFillText_CenteredOnAnchor(t *testing.T) {
	c := New(200, 100)
	c.FillRect(ports.Rect{W: 200, H: 100}, color.Black)
	c.SetFont(ports.Font{Family: ports.FontSans, Weight: 700, Size: 40})
	c.FillText("Hi", 100, 50, white)

	left, right := 0, 0
	for y := 0; y < 100; y++ {
		for x := 0; x < 200; x++ {
			if c.Image().RGBAAt(x, y).R <= 0x80 {
				continue
			}
			if y < 20 || y > 80 || x < 40 || x > 160 {
				t.Fatalf("text pixel at (%d,%d) far from the anchor", x, y)
			}
			if x < 100 {
				left++
			} else {
				right++
			}
		}
	}
	if left == 0 || right == 0 {
		t.Fatalf("text not centered: %d pixels left of anchor, %d right", left, right)
	}
}

func TestStrokeText_WiderThanFill(t *testing.T) {
	count := func(stroke bool) int {
		c := New(200, 100)
		c.SetFont(ports.Font{Family: ports.FontMono, Weight: 700, Size: 40})
		if stroke {
			c.StrokeText("Hi", 100, 50, white, 8)
		} else {
			c.FillText("Hi", 100, 50, white)
		}
		n := 0
		for _, a := range alphas(c) {
			if a > 0x80 {
				n++
			}
		}
		return n
	}
	if fill, stroke := count(false), count(true); stroke <= fill {
		t.Fatalf("stroke covered %d pixels, fill %d", stroke, fill)
	}
}

func TestShadow_SpreadsBeyondShape(t *testing.T) {
	c := New(100, 100)
	c.SetShadow(ports.Shadow{Color: color.Black, Blur: 10})
	c.FillRect(ports.Rect{X: 40, Y: 40, W: 20, H: 20}, white)
	if got := c.Image().RGBAAt(36, 50); got.A == 0 {
		t.Fatalf("blurred shadow should reach outside the rect")
	}
	if got := c.Image().RGBAAt(5, 5); got.A != 0 {
		t.Fatalf("shadow leaked to (5,5): %v", got)
	}
	if got := c.Image().RGBAAt(50, 50); got.R < 0xf0 {
		t.Fatalf("shape should be drawn over its shadow, got %v", got)
	}
}

func TestRenderEveryStyle(t *testing.T) {
	for _, st := range overlay.Styles() {
		t.Run(string(st.ID), func(t *testing.T) {
			c := New(540, 960)
			overlay.Render(c, st, "Hello there")
			if len(c.stack) != 0 {
				t.Fatalf("unbalanced save/restore")
			}
			drawn := 0
			for _, a := range alphas(c) {
				if a > 0 {
					drawn++
				}
			}
			if drawn == 0 {
				t.Fatalf("style %s drew nothing", st.ID)
			}
		})
	}
}

func TestWritePNG(t *testing.T) {
	c := New(4, 3)
	c.FillRect(ports.Rect{W: 4, H: 3}, red)
	var buf bytes.Buffer
	if err := c.WritePNG(&buf); err != nil {
		t.Fatalf("write: %v", err)
	}
	img, err := png.Decode(&buf)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if b := img.Bounds(); b.Dx() != 4 || b.Dy() != 3 {
		t.Fatalf("bounds = %v", b)
	}
}

func alphas(c *Canvas) []uint8 {
	pix := c.Image().Pix
	out := make([]uint8, 0, len(pix)/4)
	for i := 3; i < len(pix); i += 4 {
		out = append(out, pix[i])
	}
	return out
}

func TestShadowLayer_TintsAndBlurs(t *testing.T) {
	layer := image.NewNRGBA(image.Rect(0, 0, 40, 40))
	draw.Draw(layer, image.Rect(15, 15, 25, 25), image.NewUniform(color.White), image.Point{}, draw.Src)
	tint := color.NRGBA{R: 0xff, A: 0x80}

	sharp := shadowLayer(layer, tint, 0)
	if got := sharp.NRGBAAt(20, 20); got != tint {
		t.Fatalf("tinted pixel = %v, want %v", got, tint)
	}
	if got := sharp.NRGBAAt(13, 20); got.A != 0 {
		t.Fatalf("unblurred shadow spread to %v", got)
	}

	soft := shadowLayer(layer, tint, 6)
	if soft.Bounds() != layer.Bounds() {
		t.Fatalf("bounds = %v, want %v", soft.Bounds(), layer.Bounds())
	}
	if got := soft.NRGBAAt(13, 20); got.A == 0 || got.R != 0xff {
		t.Fatalf("blurred shadow should spread red past the shape, got %v", got)
	}
	if got := soft.NRGBAAt(20, 20); got.A > tint.A {
		t.Fatalf("blur raised alpha to %d", got.A)
	}
}
