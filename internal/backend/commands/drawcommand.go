package commands

import (
	"fmt"
	"image"
	"image/color"
	"log/slog"
	"math"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/jo-hoe/neuragallery/internal/backend/commandstructure"
	"github.com/srwiley/rasterx"
	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// FillThickness requests a filled shape instead of an outline
const FillThickness = -1

// MaxTextLength caps the runes accepted by the text shape
const MaxTextLength = 500

// Shape is one drawable primitive of the draw command
type Shape interface {
	Kind() string
	suffix() string
	render(dst *image.RGBA, clr color.NRGBA, thickness int)
}

// Line is a straight segment from Start to End
type Line struct {
	Start, End image.Point
}

// Rectangle is an axis aligned box with opposite corners Start and End
type Rectangle struct {
	Start, End image.Point
}

// Circle is centred on Center
type Circle struct {
	Center image.Point
	Radius int
}

// Text is drawn with its baseline starting at Origin
type Text struct {
	Origin   image.Point
	Content  string
	FontSize float64
}

// DrawParams represents typed parameters for the draw command
type DrawParams struct {
	Shape     Shape
	Color     color.NRGBA
	Thickness int
}

// NewDrawParamsFromMap creates DrawParams from a generic map
func NewDrawParamsFromMap(params map[string]any) (*DrawParams, error) {
	if err := commandstructure.ValidateRequiredParams(params, []string{"shape_type", "start_x", "start_y"}); err != nil {
		return nil, err
	}

	clr, err := colorFromParams(params)
	if err != nil {
		return nil, err
	}
	thickness, err := commandstructure.GetIntParam(params, "thickness", 2)
	if err != nil {
		return nil, err
	}
	if thickness != FillThickness {
		if err := commandstructure.CheckIntRange("Thickness", thickness, 1, 50); err != nil {
			return nil, err
		}
	}

	start, err := pointParam(params, "start_x", "start_y")
	if err != nil {
		return nil, err
	}

	var shape Shape
	shapeType := strings.ToLower(commandstructure.GetStringParam(params, "shape_type", ""))
	switch shapeType {
	case "line", "rectangle":
		if err := commandstructure.ValidateRequiredParams(params, []string{"end_x", "end_y"}); err != nil {
			return nil, err
		}
		end, err := pointParam(params, "end_x", "end_y")
		if err != nil {
			return nil, err
		}
		if shapeType == "line" {
			if thickness == FillThickness {
				return nil, commandstructure.NewParamError("Thickness must be between 1 and 50 for lines")
			}
			shape = Line{Start: start, End: end}
		} else {
			shape = Rectangle{Start: start, End: end}
		}
	case "circle":
		if err := commandstructure.ValidateRequiredParams(params, []string{"radius"}); err != nil {
			return nil, err
		}
		radius, err := commandstructure.GetIntParam(params, "radius", 0)
		if err != nil {
			return nil, err
		}
		if radius <= 0 {
			return nil, commandstructure.NewParamError("Radius must be positive")
		}
		shape = Circle{Center: start, Radius: radius}
	case "text":
		content := commandstructure.GetStringParam(params, "text", "")
		if strings.TrimSpace(content) == "" {
			return nil, commandstructure.NewParamError("Text must not be empty")
		}
		if utf8.RuneCountInString(content) > MaxTextLength {
			return nil, commandstructure.NewParamError("Text must be at most %d characters", MaxTextLength)
		}
		fontSize, err := commandstructure.GetFloatParam(params, "font_size", 1.0)
		if err != nil {
			return nil, err
		}
		if err := commandstructure.CheckFloatRange("Font size", fontSize, 0.1, 10.0); err != nil {
			return nil, err
		}
		shape = Text{Origin: start, Content: content, FontSize: fontSize}
	default:
		return nil, commandstructure.NewParamError("Shape type must be one of line, rectangle, circle, text")
	}

	return &DrawParams{Shape: shape, Color: clr, Thickness: thickness}, nil
}

func colorFromParams(params map[string]any) (color.NRGBA, error) {
	var channels [3]uint8
	for i, key := range []string{"color_r", "color_g", "color_b"} {
		v, err := commandstructure.GetIntParam(params, key, 0)
		if err != nil {
			return color.NRGBA{}, err
		}
		if err := commandstructure.CheckIntRange(key, v, 0, 255); err != nil {
			return color.NRGBA{}, err
		}
		channels[i] = uint8(v)
	}
	return color.NRGBA{R: channels[0], G: channels[1], B: channels[2], A: 255}, nil
}

func pointParam(params map[string]any, xKey, yKey string) (image.Point, error) {
	x, err := commandstructure.GetIntParam(params, xKey, 0)
	if err != nil {
		return image.Point{}, err
	}
	y, err := commandstructure.GetIntParam(params, yKey, 0)
	if err != nil {
		return image.Point{}, err
	}
	return image.Pt(x, y), nil
}

// DrawCommand draws a single shape onto a copy of the image
type DrawCommand struct {
	name   string
	params *DrawParams
}

// NewDrawCommand creates a new draw command from request parameters
func NewDrawCommand(params map[string]any) (commandstructure.Command, error) {
	typedParams, err := NewDrawParamsFromMap(params)
	if err != nil {
		return nil, err
	}
	return NewDrawCommandWithParams(typedParams.Shape, typedParams.Color, typedParams.Thickness), nil
}

// NewDrawCommandWithParams creates a draw command for an already constructed shape
func NewDrawCommandWithParams(shape Shape, clr color.NRGBA, thickness int) *DrawCommand {
	return &DrawCommand{name: "draw", params: &DrawParams{Shape: shape, Color: clr, Thickness: thickness}}
}

func (c *DrawCommand) Name() string {
	return c.name
}

func (c *DrawCommand) FilenameSuffix() string {
	clr := c.params.Color
	return fmt.Sprintf("_draw_%s%s_c%d_%d_%d_t%d",
		c.params.Shape.Kind(), c.params.Shape.suffix(), clr.R, clr.G, clr.B, c.params.Thickness)
}

func (c *DrawCommand) Parameters() map[string]any {
	p := map[string]any{
		"shape_type": c.params.Shape.Kind(),
		"color_r":    int(c.params.Color.R),
		"color_g":    int(c.params.Color.G),
		"color_b":    int(c.params.Color.B),
		"thickness":  c.params.Thickness,
	}
	switch s := c.params.Shape.(type) {
	case Line:
		p["start_x"], p["start_y"], p["end_x"], p["end_y"] = s.Start.X, s.Start.Y, s.End.X, s.End.Y
	case Rectangle:
		p["start_x"], p["start_y"], p["end_x"], p["end_y"] = s.Start.X, s.Start.Y, s.End.X, s.End.Y
	case Circle:
		p["start_x"], p["start_y"], p["radius"] = s.Center.X, s.Center.Y, s.Radius
	case Text:
		p["start_x"], p["start_y"], p["text"], p["font_size"] = s.Origin.X, s.Origin.Y, s.Content, s.FontSize
	}
	return p
}

func (c *DrawCommand) Execute(img image.Image) (image.Image, error) {
	b := img.Bounds()
	canvas := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(canvas, canvas.Bounds(), img, b.Min, draw.Src)

	slog.Debug("DrawCommand: drawing shape",
		"shape", c.params.Shape.Kind(),
		"thickness", c.params.Thickness,
		"width", b.Dx(),
		"height", b.Dy())

	c.params.Shape.render(canvas, c.params.Color, c.params.Thickness)
	return canvas, nil
}

func (Line) Kind() string      { return "line" }
func (Rectangle) Kind() string { return "rectangle" }
func (Circle) Kind() string    { return "circle" }
func (Text) Kind() string      { return "text" }

func (s Line) suffix() string {
	return fmt.Sprintf("_%d_%d_%d_%d", s.Start.X, s.Start.Y, s.End.X, s.End.Y)
}

func (s Rectangle) suffix() string {
	return fmt.Sprintf("_%d_%d_%d_%d", s.Start.X, s.Start.Y, s.End.X, s.End.Y)
}

func (s Circle) suffix() string {
	return fmt.Sprintf("_%d_%d_r%d", s.Center.X, s.Center.Y, s.Radius)
}

// Text content is folded into a short name-based UUID so the suffix stays filesystem safe.
func (s Text) suffix() string {
	digest := uuid.NewSHA1(uuid.NameSpaceOID, []byte(s.Content)).String()[:8]
	return fmt.Sprintf("_%d_%d_fs%.1f_%s", s.Origin.X, s.Origin.Y, s.FontSize, digest)
}

func newStroker(dst *image.RGBA, clr color.NRGBA, thickness int) *rasterx.Stroker {
	w, h := dst.Bounds().Dx(), dst.Bounds().Dy()
	scanner := rasterx.NewScannerGV(w, h, dst, dst.Bounds())
	stroker := rasterx.NewStroker(w, h, scanner)
	stroker.SetColor(clr)
	stroker.SetStroke(fixed.Int26_6(thickness*64), fixed.Int26_6(4*64),
		rasterx.RoundCap, rasterx.RoundCap, rasterx.RoundGap, rasterx.Round)
	return stroker
}

func newFiller(dst *image.RGBA, clr color.NRGBA) *rasterx.Filler {
	w, h := dst.Bounds().Dx(), dst.Bounds().Dy()
	scanner := rasterx.NewScannerGV(w, h, dst, dst.Bounds())
	filler := rasterx.NewFiller(w, h, scanner)
	filler.SetColor(clr)
	return filler
}

func (s Line) render(dst *image.RGBA, clr color.NRGBA, thickness int) {
	stroker := newStroker(dst, clr, thickness)
	stroker.Start(rasterx.ToFixedP(float64(s.Start.X), float64(s.Start.Y)))
	stroker.Line(rasterx.ToFixedP(float64(s.End.X), float64(s.End.Y)))
	stroker.Stop(false)
	stroker.Draw()
}

func (s Rectangle) render(dst *image.RGBA, clr color.NRGBA, thickness int) {
	minX := float64(min(s.Start.X, s.End.X))
	minY := float64(min(s.Start.Y, s.End.Y))
	maxX := float64(max(s.Start.X, s.End.X))
	maxY := float64(max(s.Start.Y, s.End.Y))
	if thickness == FillThickness {
		filler := newFiller(dst, clr)
		rasterx.AddRect(minX, minY, maxX+1, maxY+1, 0, filler)
		filler.Draw()
		return
	}
	stroker := newStroker(dst, clr, thickness)
	rasterx.AddRect(minX, minY, maxX, maxY, 0, stroker)
	stroker.Draw()
}

func (s Circle) render(dst *image.RGBA, clr color.NRGBA, thickness int) {
	cx, cy, r := float64(s.Center.X), float64(s.Center.Y), float64(s.Radius)
	if thickness == FillThickness {
		filler := newFiller(dst, clr)
		rasterx.AddCircle(cx, cy, r, filler)
		filler.Draw()
		return
	}
	stroker := newStroker(dst, clr, thickness)
	rasterx.AddCircle(cx, cy, r, stroker)
	stroker.Draw()
}

// render rasterizes the string with the 7x13 bitmap face and scales the glyph
// mask by FontSize. Thickness does not apply to text.
func (s Text) render(dst *image.RGBA, clr color.NRGBA, _ int) {
	face := basicfont.Face7x13
	ascent := face.Metrics().Ascent.Ceil()
	height := face.Metrics().Height.Ceil()
	width := font.MeasureString(face, s.Content).Ceil()
	if width <= 0 {
		return
	}

	mask := image.NewAlpha(image.Rect(0, 0, width, height))
	drawer := &font.Drawer{
		Dst:  mask,
		Src:  image.Opaque,
		Face: face,
		Dot:  fixed.P(0, ascent),
	}
	drawer.DrawString(s.Content)

	sw := max(1, int(math.Round(float64(width)*s.FontSize)))
	sh := max(1, int(math.Round(float64(height)*s.FontSize)))
	scaled := image.NewAlpha(image.Rect(0, 0, sw, sh))
	draw.NearestNeighbor.Scale(scaled, scaled.Bounds(), mask, mask.Bounds(), draw.Src, nil)

	top := s.Origin.Y - int(math.Round(float64(ascent)*s.FontSize))
	target := image.Rect(s.Origin.X, top, s.Origin.X+sw, top+sh)
	draw.DrawMask(dst, target, image.NewUniform(clr), image.Point{}, scaled, image.Point{}, draw.Over)
}

func init() {
	if err := commandstructure.DefaultRegistry.Register("draw", NewDrawCommand); err != nil {
		panic(fmt.Sprintf("failed to register DrawCommand: %v", err))
	}
}
