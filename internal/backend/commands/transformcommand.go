package commands

import (
	"fmt"
	"image"
	"log/slog"
	"math"
	"strings"

	"github.com/jo-hoe/neuragallery/internal/backend/commandstructure"
	"golang.org/x/image/draw"
	"golang.org/x/image/math/f64"
)

// Transform is one geometric operation of the transform command.
// Every variant keeps the canvas size; uncovered pixels are black.
type Transform interface {
	Kind() string
	suffix() string
	matrix(w, h int) f64.Aff3
	interpolator() draw.Interpolator
	parameters() map[string]any
}

// Translate shifts the image by (TX, TY) pixels
type Translate struct {
	TX, TY int
}

// Rotate turns the image counter-clockwise by Angle degrees around its centre
type Rotate struct {
	Angle float64
	Scale float64
}

// FlipDirection is the mirror axis of a Flip
type FlipDirection string

const (
	FlipHorizontal FlipDirection = "horizontal"
	FlipVertical   FlipDirection = "vertical"
	FlipBoth       FlipDirection = "both"
)

// Flip mirrors the image
type Flip struct {
	Direction FlipDirection
}

// TransformParams represents typed parameters for the transform command
type TransformParams struct {
	Transform Transform
}

// NewTransformParamsFromMap creates TransformParams from a generic map.
// The web client sends translate_x/translate_y and rotation_angle; both spellings are accepted.
func NewTransformParamsFromMap(params map[string]any) (*TransformParams, error) {
	if err := commandstructure.ValidateRequiredParams(params, []string{"operation"}); err != nil {
		return nil, err
	}

	switch op := strings.ToLower(commandstructure.GetStringParam(params, "operation", "")); op {
	case "translate":
		txKey := commandstructure.FirstPresent(params, "tx", "translate_x")
		tyKey := commandstructure.FirstPresent(params, "ty", "translate_y")
		if txKey == "" && tyKey == "" {
			return nil, commandstructure.NewParamError("Translate requires tx and/or ty")
		}
		tx, err := commandstructure.GetIntParam(params, txKey, 0)
		if err != nil {
			return nil, err
		}
		ty, err := commandstructure.GetIntParam(params, tyKey, 0)
		if err != nil {
			return nil, err
		}
		return &TransformParams{Transform: Translate{TX: tx, TY: ty}}, nil

	case "rotate":
		angleKey := commandstructure.FirstPresent(params, "angle", "rotation_angle")
		if angleKey == "" {
			return nil, commandstructure.NewParamError("missing required parameter: angle")
		}
		angle, err := commandstructure.GetFloatParam(params, angleKey, 0)
		if err != nil {
			return nil, err
		}
		scale, err := commandstructure.GetFloatParam(params, "scale", 1.0)
		if err != nil {
			return nil, err
		}
		if scale <= 0 {
			return nil, commandstructure.NewParamError("Scale must be positive")
		}
		return &TransformParams{Transform: Rotate{Angle: angle, Scale: scale}}, nil

	case "flip":
		dir := FlipDirection(strings.ToLower(commandstructure.GetStringParam(params, "direction", "")))
		switch dir {
		case FlipHorizontal, FlipVertical, FlipBoth:
		default:
			return nil, commandstructure.NewParamError("Direction must be one of horizontal, vertical, both")
		}
		return &TransformParams{Transform: Flip{Direction: dir}}, nil

	default:
		return nil, commandstructure.NewParamError("Operation must be one of translate, rotate, flip")
	}
}

// TransformCommand applies a translate, rotate or flip
type TransformCommand struct {
	name   string
	params *TransformParams
}

// NewTransformCommand creates a new transform command from request parameters
func NewTransformCommand(params map[string]any) (commandstructure.Command, error) {
	typedParams, err := NewTransformParamsFromMap(params)
	if err != nil {
		return nil, err
	}
	return NewTransformCommandWithParams(typedParams.Transform), nil
}

// NewTransformCommandWithParams creates a transform command for a concrete variant
func NewTransformCommandWithParams(t Transform) *TransformCommand {
	return &TransformCommand{name: "transform", params: &TransformParams{Transform: t}}
}

func (c *TransformCommand) Name() string {
	return c.name
}

func (c *TransformCommand) FilenameSuffix() string {
	return c.params.Transform.suffix()
}

func (c *TransformCommand) Parameters() map[string]any {
	p := c.params.Transform.parameters()
	p["operation"] = c.params.Transform.Kind()
	return p
}

func (c *TransformCommand) Execute(img image.Image) (image.Image, error) {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	slog.Debug("TransformCommand: applying transform",
		"operation", c.params.Transform.Kind(),
		"width", w,
		"height", h)

	src := toNRGBA(img)
	dst := image.NewNRGBA(image.Rect(0, 0, w, h))
	for i := 3; i < len(dst.Pix); i += 4 {
		dst.Pix[i] = 0xff
	}
	c.params.Transform.interpolator().Transform(dst, c.params.Transform.matrix(w, h), src, src.Bounds(), draw.Src, nil)
	return dst, nil
}

func (Translate) Kind() string { return "translate" }
func (Rotate) Kind() string    { return "rotate" }
func (Flip) Kind() string      { return "flip" }

func (t Translate) suffix() string { return fmt.Sprintf("_translate_%d_%d", t.TX, t.TY) }
func (t Rotate) suffix() string {
	return fmt.Sprintf("_rotate_%s_s%s", formatFloat(t.Angle), formatFloat(t.Scale))
}
func (t Flip) suffix() string { return "_flip_" + string(t.Direction) }

func (t Translate) parameters() map[string]any {
	return map[string]any{"tx": t.TX, "ty": t.TY}
}

func (t Rotate) parameters() map[string]any {
	return map[string]any{"angle": t.Angle, "scale": t.Scale}
}

func (t Flip) parameters() map[string]any {
	return map[string]any{"direction": string(t.Direction)}
}

func (Translate) interpolator() draw.Interpolator { return draw.NearestNeighbor }
func (Rotate) interpolator() draw.Interpolator    { return draw.BiLinear }
func (Flip) interpolator() draw.Interpolator      { return draw.NearestNeighbor }

// The matrices map source coordinates to destination coordinates.

func (t Translate) matrix(_, _ int) f64.Aff3 {
	return f64.Aff3{
		1, 0, float64(t.TX),
		0, 1, float64(t.TY),
	}
}

// matrix follows the usual 2x3 rotation matrix about the centre; with y pointing
// down a positive angle turns the picture counter-clockwise on screen.
func (t Rotate) matrix(w, h int) f64.Aff3 {
	cx, cy := float64(w)/2, float64(h)/2
	rad := t.Angle * math.Pi / 180
	alpha := t.Scale * math.Cos(rad)
	beta := t.Scale * math.Sin(rad)
	return f64.Aff3{
		alpha, beta, (1-alpha)*cx - beta*cy,
		-beta, alpha, beta*cx + (1-alpha)*cy,
	}
}

func (t Flip) matrix(w, h int) f64.Aff3 {
	m := f64.Aff3{1, 0, 0, 0, 1, 0}
	if t.Direction == FlipHorizontal || t.Direction == FlipBoth {
		m[0], m[2] = -1, float64(w)
	}
	if t.Direction == FlipVertical || t.Direction == FlipBoth {
		m[4], m[5] = -1, float64(h)
	}
	return m
}

// formatFloat renders whole numbers without a fraction and everything else with one decimal.
func formatFloat(v float64) string {
	if v == math.Trunc(v) {
		return fmt.Sprintf("%d", int64(v))
	}
	return fmt.Sprintf("%.1f", v)
}

func init() {
	if err := commandstructure.DefaultRegistry.Register("transform", NewTransformCommand); err != nil {
		panic(fmt.Sprintf("failed to register TransformCommand: %v", err))
	}
}
