package blobstore

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"log/slog"

	_ "image/gif"

	"github.com/gabriel-vasile/mimetype"
	"github.com/srwiley/oksvg"
	"github.com/srwiley/rasterx"
	"golang.org/x/image/draw"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

var (
	// ErrUnsupportedImage is returned when bytes cannot be decoded as any known image format
	ErrUnsupportedImage = errors.New("unsupported or corrupt image data")
	// ErrImageTooLarge is returned when a source exceeds MaxDimension on either side
	ErrImageTooLarge = errors.New("image too large")
)

const (
	FormatJPEG = "jpeg"
	FormatPNG  = "png"
	FormatSVG  = "svg"

	jpegQuality = 95

	// DefaultMaxDimension matches the largest output the transformations accept
	DefaultMaxDimension = 10000
)

// Codec decodes stored images and encodes transformation results
type Codec struct {
	// SVGFallbackWidth and SVGFallbackHeight size SVGs that carry no usable viewBox
	SVGFallbackWidth  int
	SVGFallbackHeight int
	// MaxDimension bounds both sides of a decoded image, zero disables the check
	MaxDimension int
}

func NewCodec(svgFallbackWidth, svgFallbackHeight int) Codec {
	return Codec{
		SVGFallbackWidth:  svgFallbackWidth,
		SVGFallbackHeight: svgFallbackHeight,
		MaxDimension:      DefaultMaxDimension,
	}
}

// Decode returns the image and the registered format name
func (c Codec) Decode(data []byte) (image.Image, string, error) {
	if len(data) == 0 {
		return nil, "", ErrUnsupportedImage
	}
	if mimetype.Detect(data).Is("image/svg+xml") {
		img, err := c.renderSVG(data)
		if err != nil {
			return nil, "", err
		}
		return img, FormatSVG, nil
	}

	// the header is enough to refuse sources that would not fit in memory
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", ErrUnsupportedImage, err)
	}
	if err := c.checkSize(cfg.Width, cfg.Height); err != nil {
		return nil, "", err
	}

	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", ErrUnsupportedImage, err)
	}
	return img, format, nil
}

// DecodeConfig reads only the header when possible
func (c Codec) DecodeConfig(data []byte) (image.Config, string, error) {
	if mimetype.Detect(data).Is("image/svg+xml") {
		icon, err := oksvg.ReadIconStream(bytes.NewReader(data))
		if err != nil {
			return image.Config{}, "", fmt.Errorf("%w: failed to parse SVG: %v", ErrUnsupportedImage, err)
		}
		w, h, _, err := c.svgSize(icon)
		if err != nil {
			return image.Config{}, "", err
		}
		return image.Config{ColorModel: color.RGBAModel, Width: w, Height: h}, FormatSVG, nil
	}
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return image.Config{}, "", fmt.Errorf("%w: %v", ErrUnsupportedImage, err)
	}
	return cfg, format, nil
}

// OutputFormat picks the encoding for a result derived from a source of srcFormat.
// JPEG stays JPEG; everything else becomes PNG.
func OutputFormat(srcFormat string) (format, ext string) {
	if srcFormat == FormatJPEG {
		return FormatJPEG, "jpg"
	}
	return FormatPNG, "png"
}

func Encode(img image.Image, format string) ([]byte, error) {
	var buf bytes.Buffer
	b := img.Bounds()
	buf.Grow(b.Dx() * b.Dy())

	var err error
	switch format {
	case FormatJPEG:
		err = jpeg.Encode(&buf, img, &jpeg.Options{Quality: jpegQuality})
	case FormatPNG:
		err = png.Encode(&buf, img)
	default:
		return nil, fmt.Errorf("unsupported output format %q", format)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s image: %w", format, err)
	}
	return buf.Bytes(), nil
}

// MIMEType maps an encoder format to its content type
func MIMEType(format string) string {
	switch format {
	case FormatJPEG:
		return "image/jpeg"
	case FormatSVG:
		return "image/svg+xml"
	default:
		return "image/" + format
	}
}

func (c Codec) checkSize(w, h int) error {
	if w <= 0 || h <= 0 {
		return fmt.Errorf("%w: invalid dimensions %dx%d", ErrUnsupportedImage, w, h)
	}
	if c.MaxDimension > 0 && (w > c.MaxDimension || h > c.MaxDimension) {
		return fmt.Errorf("%w: %dx%d exceeds %d pixels per side", ErrImageTooLarge, w, h, c.MaxDimension)
	}
	return nil
}

// svgSize picks the raster size from the viewBox, or the fallback when there is none.
func (c Codec) svgSize(icon *oksvg.SvgIcon) (w, h int, fromViewBox bool, err error) {
	vw, vh := icon.ViewBox.W, icon.ViewBox.H
	if vw >= 1 && vh >= 1 {
		// compare as floats first so huge or non-finite values never reach an int conversion
		if c.MaxDimension > 0 && !(vw < float64(c.MaxDimension)+0.5 && vh < float64(c.MaxDimension)+0.5) {
			return 0, 0, false, fmt.Errorf("%w: SVG viewBox %gx%g exceeds %d pixels per side", ErrImageTooLarge, vw, vh, c.MaxDimension)
		}
		w, h, fromViewBox = int(vw+0.5), int(vh+0.5), true
	} else {
		w, h = c.SVGFallbackWidth, c.SVGFallbackHeight
	}
	if err := c.checkSize(w, h); err != nil {
		return 0, 0, false, err
	}
	return w, h, fromViewBox, nil
}

// renderSVG rasterizes an SVG at its viewBox size onto a white canvas.
func (c Codec) renderSVG(data []byte) (image.Image, error) {
	icon, err := oksvg.ReadIconStream(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: failed to parse SVG: %v", ErrUnsupportedImage, err)
	}

	w, h, fromViewBox, err := c.svgSize(icon)
	if err != nil {
		return nil, err
	}
	if !fromViewBox {
		// no viewBox: draw in user units on the fallback canvas
		icon.ViewBox.X, icon.ViewBox.Y = 0, 0
		icon.ViewBox.W, icon.ViewBox.H = float64(w), float64(h)
	}
	slog.Debug("rendering SVG", "width", w, "height", h)

	icon.SetTarget(0, 0, float64(w), float64(h))
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(dst, dst.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)

	scanner := rasterx.NewScannerGV(w, h, dst, dst.Bounds())
	dasher := rasterx.NewDasher(w, h, scanner)
	icon.Draw(dasher, 1.0)
	return dst, nil
}
