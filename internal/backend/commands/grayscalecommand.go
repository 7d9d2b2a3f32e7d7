package commands

import (
	"fmt"
	"image"
	"log/slog"

	"github.com/jo-hoe/neuragallery/internal/backend/commandstructure"
)

// GrayscaleCommand converts an image to a single luma channel
type GrayscaleCommand struct {
	name string
}

// NewGrayscaleCommand creates a new grayscale command; it takes no parameters
func NewGrayscaleCommand(params map[string]any) (commandstructure.Command, error) {
	return &GrayscaleCommand{name: "grayscale"}, nil
}

func (c *GrayscaleCommand) Name() string {
	return c.name
}

func (c *GrayscaleCommand) FilenameSuffix() string {
	return "_grayscale"
}

func (c *GrayscaleCommand) Parameters() map[string]any {
	return map[string]any{}
}

// Execute returns an *image.Gray using BT.601 luma weights
func (c *GrayscaleCommand) Execute(img image.Image) (image.Image, error) {
	src := toNRGBA(img)
	w, h := src.Bounds().Dx(), src.Bounds().Dy()
	slog.Debug("GrayscaleCommand: converting image", "width", w, "height", h)

	return toGray(src), nil
}

// toGray converts an origin-anchored NRGBA image to 8-bit luma.
func toGray(src *image.NRGBA) *image.Gray {
	w, h := src.Bounds().Dx(), src.Bounds().Dy()
	dst := image.NewGray(image.Rect(0, 0, w, h))
	parallelFor(h, func(y int) {
		in := src.Pix[y*src.Stride:]
		out := dst.Pix[y*dst.Stride:]
		for x := 0; x < w; x++ {
			i := x * 4
			out[x] = luma(in[i], in[i+1], in[i+2])
		}
	})
	return dst
}

func luma(r, g, b uint8) uint8 {
	return r8(0.299*float64(r) + 0.587*float64(g) + 0.114*float64(b))
}

func init() {
	if err := commandstructure.DefaultRegistry.Register("grayscale", NewGrayscaleCommand); err != nil {
		panic(fmt.Sprintf("failed to register GrayscaleCommand: %v", err))
	}
}
