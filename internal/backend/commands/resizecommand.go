package commands

import (
	"fmt"
	"image"
	"log/slog"
	"math"
	"strings"

	"github.com/jo-hoe/neuragallery/internal/backend/commandstructure"
	"golang.org/x/image/draw"
)

// MaxOutputDimension caps either side of a resized or scaled result
const MaxOutputDimension = 10000

// Interpolation names a resampling filter
type Interpolation string

const (
	InterpolationNearest Interpolation = "nearest"
	InterpolationLinear  Interpolation = "linear"
	InterpolationCubic   Interpolation = "cubic"
	InterpolationLanczos Interpolation = "lanczos"
)

// lanczos3 is a three-lobed Lanczos windowed sinc.
var lanczos3 = &draw.Kernel{
	Support: 3,
	At: func(t float64) float64 {
		if t < 0 {
			t = -t
		}
		if t < 1e-9 {
			return 1
		}
		if t >= 3 {
			return 0
		}
		pt := math.Pi * t
		return 3 * math.Sin(pt) * math.Sin(pt/3) / (pt * pt)
	},
}

func interpolationParam(params map[string]any) (Interpolation, error) {
	in := Interpolation(strings.ToLower(commandstructure.GetStringParam(params, "interpolation", string(InterpolationLinear))))
	if in == "" {
		in = InterpolationLinear
	}
	switch in {
	case InterpolationNearest, InterpolationLinear, InterpolationCubic, InterpolationLanczos:
		return in, nil
	}
	return "", commandstructure.NewParamError("Interpolation must be one of nearest, linear, cubic, lanczos")
}

func (i Interpolation) scaler() draw.Scaler {
	switch i {
	case InterpolationNearest:
		return draw.NearestNeighbor
	case InterpolationCubic:
		return draw.CatmullRom
	case InterpolationLanczos:
		return lanczos3
	default:
		return draw.BiLinear
	}
}

// resample scales img to exactly w x h
func resample(img image.Image, w, h int, in Interpolation) *image.NRGBA {
	dst := image.NewNRGBA(image.Rect(0, 0, w, h))
	in.scaler().Scale(dst, dst.Bounds(), img, img.Bounds(), draw.Src, nil)
	return dst
}

// ResizeParams represents typed parameters for the resize command
type ResizeParams struct {
	Width         int
	Height        int
	Interpolation Interpolation
}

// NewResizeParamsFromMap creates ResizeParams from a generic map
func NewResizeParamsFromMap(params map[string]any) (*ResizeParams, error) {
	widthKey := commandstructure.FirstPresent(params, "width", "new_width")
	heightKey := commandstructure.FirstPresent(params, "height", "new_height")
	if widthKey == "" || heightKey == "" {
		return nil, commandstructure.NewParamError("missing required parameters: width and height")
	}
	width, err := commandstructure.GetIntParam(params, widthKey, 0)
	if err != nil {
		return nil, err
	}
	height, err := commandstructure.GetIntParam(params, heightKey, 0)
	if err != nil {
		return nil, err
	}
	if width <= 0 || height <= 0 {
		return nil, commandstructure.NewParamError("Width and height must be positive")
	}
	if width > MaxOutputDimension || height > MaxOutputDimension {
		return nil, commandstructure.NewParamError("Width and height must not exceed %d", MaxOutputDimension)
	}
	in, err := interpolationParam(params)
	if err != nil {
		return nil, err
	}
	return &ResizeParams{Width: width, Height: height, Interpolation: in}, nil
}

// ResizeCommand resamples the image to an exact size, ignoring aspect ratio
type ResizeCommand struct {
	name   string
	params *ResizeParams
}

// NewResizeCommand creates a new resize command from request parameters
func NewResizeCommand(params map[string]any) (commandstructure.Command, error) {
	typedParams, err := NewResizeParamsFromMap(params)
	if err != nil {
		return nil, err
	}
	return &ResizeCommand{name: "resize", params: typedParams}, nil
}

func (c *ResizeCommand) Name() string {
	return c.name
}

func (c *ResizeCommand) FilenameSuffix() string {
	return fmt.Sprintf("_resized_%dx%d_%s", c.params.Width, c.params.Height, c.params.Interpolation)
}

func (c *ResizeCommand) Parameters() map[string]any {
	return map[string]any{
		"width":         c.params.Width,
		"height":        c.params.Height,
		"interpolation": string(c.params.Interpolation),
	}
}

func (c *ResizeCommand) Execute(img image.Image) (image.Image, error) {
	slog.Debug("ResizeCommand: resizing image",
		"original_width", img.Bounds().Dx(),
		"original_height", img.Bounds().Dy(),
		"target_width", c.params.Width,
		"target_height", c.params.Height,
		"interpolation", c.params.Interpolation)
	return resample(img, c.params.Width, c.params.Height, c.params.Interpolation), nil
}

func init() {
	if err := commandstructure.DefaultRegistry.Register("resize", NewResizeCommand); err != nil {
		panic(fmt.Sprintf("failed to register ResizeCommand: %v", err))
	}
}
