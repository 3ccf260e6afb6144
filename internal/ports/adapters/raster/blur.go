package raster

import (
	"image"
	"image/color"
	"math"

	"github.com/disintegration/imaging"
)

// shadowLayer returns layer's alpha tinted with c and blurred the way a
// canvas shadowBlur of blur pixels is: a gaussian with sigma blur/2.
func shadowLayer(layer *image.NRGBA, c color.Color, blur float64) *image.NRGBA {
	nc := color.NRGBAModel.Convert(c).(color.NRGBA)
	b := layer.Bounds()
	tinted := image.NewNRGBA(b)
	for y := 0; y < b.Dy(); y++ {
		for x := 0; x < b.Dx(); x++ {
			a := layer.Pix[y*layer.Stride+x*4+3]
			if a == 0 {
				continue
			}
			i := y*tinted.Stride + x*4
			tinted.Pix[i] = nc.R
			tinted.Pix[i+1] = nc.G
			tinted.Pix[i+2] = nc.B
			tinted.Pix[i+3] = uint8(uint32(a) * uint32(nc.A) / 255)
		}
	}
	if blur <= 0 {
		return tinted
	}
	return imaging.Blur(tinted, blur/2)
}

// shadowReach is how far a blurred shadow spreads past its shape.
func shadowReach(blur float64) int {
	return int(math.Ceil(1.5 * blur))
}
