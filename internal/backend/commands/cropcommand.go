package commands

import (
	"fmt"
	"image"
	"log/slog"

	"github.com/jo-hoe/neuragallery/internal/backend/commandstructure"
	"golang.org/x/image/draw"
)

// CropParams represents typed parameters for the crop command
type CropParams struct {
	X      int
	Y      int
	Width  int
	Height int
}

// NewCropParamsFromMap creates CropParams from a generic map
func NewCropParamsFromMap(params map[string]any) (*CropParams, error) {
	if err := commandstructure.ValidateRequiredParams(params, []string{"x", "y", "width", "height"}); err != nil {
		return nil, err
	}

	var vals [4]int
	for i, key := range []string{"x", "y", "width", "height"} {
		v, err := commandstructure.GetIntParam(params, key, 0)
		if err != nil {
			return nil, err
		}
		vals[i] = v
	}
	p := &CropParams{X: vals[0], Y: vals[1], Width: vals[2], Height: vals[3]}

	if p.X < 0 || p.Y < 0 {
		return nil, commandstructure.NewParamError("x and y must not be negative")
	}
	if p.Width <= 0 || p.Height <= 0 {
		return nil, commandstructure.NewParamError("Width and height must be positive")
	}
	return p, nil
}

// CropCommand cuts a rectangular region out of the image
type CropCommand struct {
	name   string
	params *CropParams
}

// NewCropCommand creates a new crop command from request parameters
func NewCropCommand(params map[string]any) (commandstructure.Command, error) {
	typedParams, err := NewCropParamsFromMap(params)
	if err != nil {
		return nil, err
	}

	return &CropCommand{
		name:   "crop",
		params: typedParams,
	}, nil
}

// Name returns the command name
func (c *CropCommand) Name() string {
	return c.name
}

func (c *CropCommand) FilenameSuffix() string {
	return fmt.Sprintf("_cropped_%d_%d_%dx%d", c.params.X, c.params.Y, c.params.Width, c.params.Height)
}

func (c *CropCommand) Parameters() map[string]any {
	return map[string]any{
		"x":      c.params.X,
		"y":      c.params.Y,
		"width":  c.params.Width,
		"height": c.params.Height,
	}
}

// Execute copies the configured region; a region that does not fit fails with ErrOutOfBounds
func (c *CropCommand) Execute(img image.Image) (image.Image, error) {
	bounds := img.Bounds()
	originalWidth := bounds.Dx()
	originalHeight := bounds.Dy()

	slog.Debug("CropCommand: cropping image",
		"original_width", originalWidth,
		"original_height", originalHeight,
		"crop_x", c.params.X,
		"crop_y", c.params.Y,
		"crop_width", c.params.Width,
		"crop_height", c.params.Height)

	// compare against the remaining space so huge values cannot overflow
	if c.params.X >= originalWidth || c.params.Width > originalWidth-c.params.X ||
		c.params.Y >= originalHeight || c.params.Height > originalHeight-c.params.Y {
		return nil, fmt.Errorf("%w: crop %dx%d at (%d,%d) exceeds %dx%d image",
			commandstructure.ErrOutOfBounds,
			c.params.Width, c.params.Height, c.params.X, c.params.Y,
			originalWidth, originalHeight)
	}

	croppedImg := image.NewNRGBA(image.Rect(0, 0, c.params.Width, c.params.Height))
	sp := bounds.Min.Add(image.Pt(c.params.X, c.params.Y))
	draw.Draw(croppedImg, croppedImg.Bounds(), img, sp, draw.Src)
	return croppedImg, nil
}

func init() {
	if err := commandstructure.DefaultRegistry.Register("crop", NewCropCommand); err != nil {
		panic(fmt.Sprintf("failed to register CropCommand: %v", err))
	}
}
