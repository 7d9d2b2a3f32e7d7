package commands

import (
	"fmt"
	"image"
	"log/slog"
	"math"

	"github.com/jo-hoe/neuragallery/internal/backend/commandstructure"
)

// ScaleParams represents typed parameters for the scale command
type ScaleParams struct {
	ScaleX        float64
	ScaleY        float64
	Interpolation Interpolation
}

// NewScaleParamsFromMap creates ScaleParams from a generic map
func NewScaleParamsFromMap(params map[string]any) (*ScaleParams, error) {
	if err := commandstructure.ValidateRequiredParams(params, []string{"scale_x", "scale_y"}); err != nil {
		return nil, err
	}
	sx, err := commandstructure.GetFloatParam(params, "scale_x", 1.0)
	if err != nil {
		return nil, err
	}
	sy, err := commandstructure.GetFloatParam(params, "scale_y", 1.0)
	if err != nil {
		return nil, err
	}
	if sx <= 0 || sy <= 0 {
		return nil, commandstructure.NewParamError("Scale factors must be positive")
	}
	in, err := interpolationParam(params)
	if err != nil {
		return nil, err
	}
	return &ScaleParams{ScaleX: sx, ScaleY: sy, Interpolation: in}, nil
}

// ScaleCommand resizes the image by independent horizontal and vertical factors
type ScaleCommand struct {
	name   string
	params *ScaleParams
}

// NewScaleCommand creates a new scale command from request parameters
func NewScaleCommand(params map[string]any) (commandstructure.Command, error) {
	typedParams, err := NewScaleParamsFromMap(params)
	if err != nil {
		return nil, err
	}
	return &ScaleCommand{name: "scale", params: typedParams}, nil
}

func (c *ScaleCommand) Name() string {
	return c.name
}

func (c *ScaleCommand) FilenameSuffix() string {
	return fmt.Sprintf("_scaled_%sx%s_%s", formatFloat(c.params.ScaleX), formatFloat(c.params.ScaleY), c.params.Interpolation)
}

func (c *ScaleCommand) Parameters() map[string]any {
	return map[string]any{
		"scale_x":       c.params.ScaleX,
		"scale_y":       c.params.ScaleY,
		"interpolation": string(c.params.Interpolation),
	}
}

// Execute computes the target size from the source size; the size checks run here
// because they depend on the image.
func (c *ScaleCommand) Execute(img image.Image) (image.Image, error) {
	originalWidth := img.Bounds().Dx()
	originalHeight := img.Bounds().Dy()
	w, h := computeScaledDimensions(originalWidth, originalHeight, c.params.ScaleX, c.params.ScaleY)

	slog.Debug("ScaleCommand: scaling image",
		"original_width", originalWidth,
		"original_height", originalHeight,
		"scaled_width", w,
		"scaled_height", h,
		"interpolation", c.params.Interpolation)

	if w <= 0 || h <= 0 {
		return nil, commandstructure.NewParamError("Scaled image would be empty (%dx%d)", w, h)
	}
	if w > MaxOutputDimension || h > MaxOutputDimension {
		return nil, commandstructure.NewParamError("Scaled image would exceed %d pixels per side (%dx%d)", MaxOutputDimension, w, h)
	}
	return resample(img, w, h, c.params.Interpolation), nil
}

func computeScaledDimensions(originalWidth, originalHeight int, sx, sy float64) (int, int) {
	return int(math.Round(float64(originalWidth) * sx)), int(math.Round(float64(originalHeight) * sy))
}

func init() {
	if err := commandstructure.DefaultRegistry.Register("scale", NewScaleCommand); err != nil {
		panic(fmt.Sprintf("failed to register ScaleCommand: %v", err))
	}
}
