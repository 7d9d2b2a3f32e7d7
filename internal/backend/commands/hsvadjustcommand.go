package commands

import (
	"fmt"
	"image"
	"log/slog"

	"github.com/jo-hoe/neuragallery/internal/backend/commandstructure"
)

// HSVAdjustParams represents typed parameters for the hsv-adjust command.
// Its hue range is wider than the quick-adjust one on purpose.
type HSVAdjustParams struct {
	HueShift        int
	SaturationScale float64
	ValueScale      float64
}

// NewHSVAdjustParamsFromMap creates HSVAdjustParams from a generic map
func NewHSVAdjustParamsFromMap(params map[string]any) (*HSVAdjustParams, error) {
	hueShift, err := commandstructure.GetIntParam(params, "hue_shift", 0)
	if err != nil {
		return nil, err
	}
	satScale, err := commandstructure.GetFloatParam(params, "saturation_scale", 1.0)
	if err != nil {
		return nil, err
	}
	valScale, err := commandstructure.GetFloatParam(params, "value_scale", 1.0)
	if err != nil {
		return nil, err
	}

	if err := commandstructure.CheckIntRange("Hue shift", hueShift, -180, 180); err != nil {
		return nil, err
	}
	if err := commandstructure.CheckFloatRange("Saturation scale", satScale, 0.0, 2.0); err != nil {
		return nil, err
	}
	if err := commandstructure.CheckFloatRange("Value scale", valScale, 0.0, 2.0); err != nil {
		return nil, err
	}

	return &HSVAdjustParams{
		HueShift:        hueShift,
		SaturationScale: satScale,
		ValueScale:      valScale,
	}, nil
}

// HSVAdjustCommand shifts hue and scales saturation/value
type HSVAdjustCommand struct {
	name   string
	params *HSVAdjustParams
}

// NewHSVAdjustCommand creates a new hsv-adjust command from request parameters
func NewHSVAdjustCommand(params map[string]any) (commandstructure.Command, error) {
	typedParams, err := NewHSVAdjustParamsFromMap(params)
	if err != nil {
		return nil, err
	}
	return &HSVAdjustCommand{name: "hsv_adjust", params: typedParams}, nil
}

func (c *HSVAdjustCommand) Name() string {
	return c.name
}

func (c *HSVAdjustCommand) FilenameSuffix() string {
	return fmt.Sprintf("_hsv_h%d_s%.1f_v%.1f", c.params.HueShift, c.params.SaturationScale, c.params.ValueScale)
}

func (c *HSVAdjustCommand) Parameters() map[string]any {
	return map[string]any{
		"hue_shift":        c.params.HueShift,
		"saturation_scale": c.params.SaturationScale,
		"value_scale":      c.params.ValueScale,
	}
}

func (c *HSVAdjustCommand) Execute(img image.Image) (image.Image, error) {
	slog.Debug("HSVAdjustCommand: adjusting image",
		"hue_shift", c.params.HueShift,
		"saturation_scale", c.params.SaturationScale,
		"value_scale", c.params.ValueScale)
	return adjustHSV(img, c.params.HueShift, c.params.SaturationScale, c.params.ValueScale), nil
}

func init() {
	if err := commandstructure.DefaultRegistry.Register("hsv-adjust", NewHSVAdjustCommand); err != nil {
		panic(fmt.Sprintf("failed to register HSVAdjustCommand: %v", err))
	}
}
