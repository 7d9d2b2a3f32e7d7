package commands

import (
	"fmt"
	"image"
	"image/color"
	"log/slog"
	"math"

	"github.com/jo-hoe/neuragallery/internal/backend/commandstructure"
)

// QuickAdjustParams represents typed parameters for the quick-adjust command
type QuickAdjustParams struct {
	Brightness float64
	Contrast   float64
	Saturation float64
	HueShift   int
}

// NewQuickAdjustParamsFromMap reads QuickAdjustParams from a generic map; ranges are checked by NewQuickAdjustCommandWithParams
func NewQuickAdjustParamsFromMap(params map[string]any) (*QuickAdjustParams, error) {
	brightness, err := commandstructure.GetFloatParam(params, "brightness", 1.0)
	if err != nil {
		return nil, err
	}
	contrast, err := commandstructure.GetFloatParam(params, "contrast", 1.0)
	if err != nil {
		return nil, err
	}
	saturation, err := commandstructure.GetFloatParam(params, "saturation", 1.0)
	if err != nil {
		return nil, err
	}
	hueShift, err := commandstructure.GetIntParam(params, "hue_shift", 0)
	if err != nil {
		return nil, err
	}

	return &QuickAdjustParams{
		Brightness: brightness,
		Contrast:   contrast,
		Saturation: saturation,
		HueShift:   hueShift,
	}, nil
}

func (p *QuickAdjustParams) validate() error {
	if err := commandstructure.CheckFloatRange("Brightness", p.Brightness, 0.3, 2.0); err != nil {
		return err
	}
	if err := commandstructure.CheckFloatRange("Contrast", p.Contrast, 0.3, 2.0); err != nil {
		return err
	}
	if err := commandstructure.CheckFloatRange("Saturation", p.Saturation, 0.0, 2.0); err != nil {
		return err
	}
	return commandstructure.CheckIntRange("Hue shift", p.HueShift, -30, 30)
}

// QuickAdjustCommand applies brightness, contrast, saturation and a small hue shift in one pass
type QuickAdjustCommand struct {
	name   string
	params *QuickAdjustParams
}

// NewQuickAdjustCommand creates a new quick-adjust command from request parameters
func NewQuickAdjustCommand(params map[string]any) (commandstructure.Command, error) {
	typedParams, err := NewQuickAdjustParamsFromMap(params)
	if err != nil {
		return nil, err
	}
	command, err := NewQuickAdjustCommandWithParams(*typedParams)
	if err != nil {
		return nil, err
	}
	return command, nil
}

// NewQuickAdjustCommandWithParams creates a new quick-adjust command from concrete typed parameters
func NewQuickAdjustCommandWithParams(p QuickAdjustParams) (*QuickAdjustCommand, error) {
	if err := p.validate(); err != nil {
		return nil, err
	}
	return &QuickAdjustCommand{name: "quick_adjust", params: &p}, nil
}

// Name returns the command name
func (c *QuickAdjustCommand) Name() string {
	return c.name
}

func (c *QuickAdjustCommand) FilenameSuffix() string {
	return fmt.Sprintf("_adjusted_b%.1f_c%.1f_s%.1f_h%d",
		c.params.Brightness, c.params.Contrast, c.params.Saturation, c.params.HueShift)
}

func (c *QuickAdjustCommand) Parameters() map[string]any {
	return map[string]any{
		"brightness": c.params.Brightness,
		"contrast":   c.params.Contrast,
		"saturation": c.params.Saturation,
		"hue_shift":  c.params.HueShift,
	}
}

// Execute scales V by brightness and S by saturation in HSV space, shifts the hue,
// and finally multiplies every channel by contrast.
func (c *QuickAdjustCommand) Execute(img image.Image) (image.Image, error) {
	slog.Debug("QuickAdjustCommand: adjusting image",
		"brightness", c.params.Brightness,
		"contrast", c.params.Contrast,
		"saturation", c.params.Saturation,
		"hue_shift", c.params.HueShift)

	out := adjustHSV(img, c.params.HueShift, c.params.Saturation, c.params.Brightness)
	if c.params.Contrast != 1.0 {
		alpha := c.params.Contrast
		out = mapPixels(out, func(px color.NRGBA) color.NRGBA {
			return color.NRGBA{
				R: r8(math.Abs(float64(px.R) * alpha)),
				G: r8(math.Abs(float64(px.G) * alpha)),
				B: r8(math.Abs(float64(px.B) * alpha)),
				A: px.A,
			}
		})
	}
	return out, nil
}

// adjustHSV shifts hue and scales saturation and value; scaled channels are
// clipped to 255 and truncated like an 8-bit cast.
func adjustHSV(img image.Image, hueShift int, satScale, valScale float64) *image.NRGBA {
	return mapPixels(img, func(px color.NRGBA) color.NRGBA {
		h, s, v := rgbToHSV(px.R, px.G, px.B)
		v = scaleChannel(v, valScale)
		s = scaleChannel(s, satScale)
		if hueShift != 0 {
			h = uint8(ShiftHue(int(h), hueShift))
		}
		r, g, b := hsvToRGB(h, s, v)
		return color.NRGBA{R: r, G: g, B: b, A: px.A}
	})
}

func scaleChannel(c uint8, factor float64) uint8 {
	f := float64(c) * factor
	if f >= 255 {
		return 255
	}
	if f <= 0 {
		return 0
	}
	return uint8(f)
}

func init() {
	if err := commandstructure.DefaultRegistry.Register("quick-adjust", NewQuickAdjustCommand); err != nil {
		panic(fmt.Sprintf("failed to register QuickAdjustCommand: %v", err))
	}
}
