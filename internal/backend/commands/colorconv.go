package commands

import (
	"image"
	"image/color"
	"math"

	"golang.org/x/image/draw"
)

// Hue values live on a 0..179 cyclic scale (half degrees) so they fit in one byte.
const hueRange = 180

// ShiftHue adds delta to an 8-bit hue and wraps it into [0, 180).
func ShiftHue(h, delta int) int {
	return ((h+delta)%hueRange + hueRange) % hueRange
}

// rgbToHSV converts an 8-bit RGB triple to 8-bit HSV with H in [0,180).
func rgbToHSV(r, g, b uint8) (h, s, v uint8) {
	rf, gf, bf := float64(r), float64(g), float64(b)
	max := math.Max(rf, math.Max(gf, bf))
	min := math.Min(rf, math.Min(gf, bf))
	delta := max - min

	v = r8(max)
	if max == 0 {
		return 0, 0, v
	}
	s = r8(255 * delta / max)
	if delta == 0 {
		return 0, s, v
	}

	var deg float64
	switch max {
	case rf:
		deg = 60 * (gf - bf) / delta
	case gf:
		deg = 120 + 60*(bf-rf)/delta
	default:
		deg = 240 + 60*(rf-gf)/delta
	}
	if deg < 0 {
		deg += 360
	}
	hh := int(math.Round(deg / 2))
	if hh >= hueRange {
		hh -= hueRange
	}
	return uint8(hh), s, v
}

// hsvToRGB is the inverse of rgbToHSV.
func hsvToRGB(h, s, v uint8) (r, g, b uint8) {
	if s == 0 {
		return v, v, v
	}
	hf := float64(h) * 2 / 60
	sf := float64(s) / 255
	vf := float64(v) / 255

	sector := math.Floor(hf)
	f := hf - sector
	p := vf * (1 - sf)
	q := vf * (1 - sf*f)
	t := vf * (1 - sf*(1-f))

	var rf, gf, bf float64
	switch int(sector) % 6 {
	case 0:
		rf, gf, bf = vf, t, p
	case 1:
		rf, gf, bf = q, vf, p
	case 2:
		rf, gf, bf = p, vf, t
	case 3:
		rf, gf, bf = p, q, vf
	case 4:
		rf, gf, bf = t, p, vf
	default:
		rf, gf, bf = vf, p, q
	}
	return r8(rf * 255), r8(gf * 255), r8(bf * 255)
}

// rgbToLab converts sRGB to CIE L*a*b* (D65) using the 8-bit encoding
// L*255/100, a+128, b+128.
func rgbToLab(r, g, b uint8) (l, a, bb uint8) {
	lin := func(c uint8) float64 {
		f := float64(c) / 255
		if f <= 0.04045 {
			return f / 12.92
		}
		return math.Pow((f+0.055)/1.055, 2.4)
	}
	rl, gl, bl := lin(r), lin(g), lin(b)

	x := (0.412453*rl + 0.357580*gl + 0.180423*bl) / 0.950456
	y := 0.212671*rl + 0.715160*gl + 0.072169*bl
	z := (0.019334*rl + 0.119193*gl + 0.950227*bl) / 1.088754

	fn := func(t float64) float64 {
		if t > 0.008856 {
			return math.Cbrt(t)
		}
		return 7.787*t + 16.0/116.0
	}
	fx, fy, fz := fn(x), fn(y), fn(z)

	var L float64
	if y > 0.008856 {
		L = 116*fy - 16
	} else {
		L = 903.3 * y
	}
	A := 500 * (fx - fy)
	B := 200 * (fy - fz)

	return r8(L * 255 / 100), r8(A + 128), r8(B + 128)
}

// rgbToYUV converts RGB to 8-bit YUV (BT.601, chroma offset 128).
func rgbToYUV(r, g, b uint8) (y, u, v uint8) {
	rf, gf, bf := float64(r), float64(g), float64(b)
	yf := 0.299*rf + 0.587*gf + 0.114*bf
	return r8(yf), r8(0.492*(bf-yf) + 128), r8(0.877*(rf-yf) + 128)
}

// r8 rounds and saturates a float to the 0..255 byte range.
func r8(f float64) uint8 {
	if f <= 0 {
		return 0
	}
	if f >= 255 {
		return 255
	}
	return uint8(math.Round(f))
}

// toNRGBA copies img into a fresh NRGBA image whose origin is (0,0).
func toNRGBA(img image.Image) *image.NRGBA {
	b := img.Bounds()
	dst := image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), img, b.Min, draw.Src)
	return dst
}

// mapPixels applies fn to every pixel of img in parallel rows and returns the result.
func mapPixels(img image.Image, fn func(c color.NRGBA) color.NRGBA) *image.NRGBA {
	dst := toNRGBA(img)
	w, h := dst.Bounds().Dx(), dst.Bounds().Dy()
	parallelFor(h, func(y int) {
		row := dst.Pix[y*dst.Stride : y*dst.Stride+w*4]
		for x := 0; x < w; x++ {
			i := x * 4
			c := fn(color.NRGBA{R: row[i], G: row[i+1], B: row[i+2], A: row[i+3]})
			row[i], row[i+1], row[i+2], row[i+3] = c.R, c.G, c.B, c.A
		}
	})
	return dst
}
