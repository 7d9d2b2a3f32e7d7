package commands

import (
	"fmt"
	"image"
	"image/color"
	"log/slog"
	"strings"

	"github.com/jo-hoe/neuragallery/internal/backend/commandstructure"
)

// ColorSpace is a conversion target of the colorspace command
type ColorSpace string

const (
	ColorSpaceHSV  ColorSpace = "HSV"
	ColorSpaceLAB  ColorSpace = "LAB"
	ColorSpaceYUV  ColorSpace = "YUV"
	ColorSpaceGray ColorSpace = "GRAY"
)

// ColorSpaceParams represents typed parameters for the colorspace command
type ColorSpaceParams struct {
	Target ColorSpace
}

// NewColorSpaceParamsFromMap creates ColorSpaceParams from a generic map
func NewColorSpaceParamsFromMap(params map[string]any) (*ColorSpaceParams, error) {
	if err := commandstructure.ValidateRequiredParams(params, []string{"target"}); err != nil {
		return nil, err
	}
	target := ColorSpace(strings.ToUpper(commandstructure.GetStringParam(params, "target", "")))
	switch target {
	case ColorSpaceHSV, ColorSpaceLAB, ColorSpaceYUV, ColorSpaceGray:
	default:
		return nil, commandstructure.NewParamError("Target must be one of HSV, LAB, YUV, GRAY")
	}
	return &ColorSpaceParams{Target: target}, nil
}

// ColorSpaceCommand writes the converted channel triple of every pixel into the R, G and B bytes
type ColorSpaceCommand struct {
	name   string
	params *ColorSpaceParams
}

// NewColorSpaceCommand creates a new colorspace command from request parameters
func NewColorSpaceCommand(params map[string]any) (commandstructure.Command, error) {
	typedParams, err := NewColorSpaceParamsFromMap(params)
	if err != nil {
		return nil, err
	}
	return &ColorSpaceCommand{name: "colorspace", params: typedParams}, nil
}

func (c *ColorSpaceCommand) Name() string {
	return c.name
}

func (c *ColorSpaceCommand) FilenameSuffix() string {
	return "_colorspace_" + strings.ToLower(string(c.params.Target))
}

func (c *ColorSpaceCommand) Parameters() map[string]any {
	return map[string]any{"target": string(c.params.Target)}
}

func (c *ColorSpaceCommand) Execute(img image.Image) (image.Image, error) {
	slog.Debug("ColorSpaceCommand: converting image", "target", c.params.Target)

	var conv func(r, g, b uint8) (uint8, uint8, uint8)
	switch c.params.Target {
	case ColorSpaceGray:
		return toGray(toNRGBA(img)), nil
	case ColorSpaceHSV:
		conv = rgbToHSV
	case ColorSpaceLAB:
		conv = rgbToLab
	case ColorSpaceYUV:
		conv = rgbToYUV
	default:
		return nil, fmt.Errorf("unsupported color space %q", c.params.Target)
	}

	return mapPixels(img, func(px color.NRGBA) color.NRGBA {
		a, b, d := conv(px.R, px.G, px.B)
		return color.NRGBA{R: a, G: b, B: d, A: px.A}
	}), nil
}

func init() {
	if err := commandstructure.DefaultRegistry.Register("colorspace", NewColorSpaceCommand); err != nil {
		panic(fmt.Sprintf("failed to register ColorSpaceCommand: %v", err))
	}
}
