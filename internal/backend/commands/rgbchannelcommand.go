package commands

import (
	"fmt"
	"image"
	"image/color"
	"log/slog"
	"strings"

	"github.com/jo-hoe/neuragallery/internal/backend/commandstructure"
	"golang.org/x/image/draw"
)

// Channel selects which colour channel the rgb-channel command keeps
type Channel string

const (
	ChannelRed   Channel = "red"
	ChannelGreen Channel = "green"
	ChannelBlue  Channel = "blue"
	ChannelAll   Channel = "all"
)

// RGBChannelParams represents typed parameters for the rgb-channel command
type RGBChannelParams struct {
	Channel Channel
}

// NewRGBChannelParamsFromMap creates RGBChannelParams from a generic map
func NewRGBChannelParamsFromMap(params map[string]any) (*RGBChannelParams, error) {
	if err := commandstructure.ValidateRequiredParams(params, []string{"channel"}); err != nil {
		return nil, err
	}
	ch := Channel(strings.ToLower(commandstructure.GetStringParam(params, "channel", "")))
	switch ch {
	case ChannelRed, ChannelGreen, ChannelBlue, ChannelAll:
	default:
		return nil, commandstructure.NewParamError("Channel must be one of red, green, blue, all")
	}
	return &RGBChannelParams{Channel: ch}, nil
}

// RGBChannelCommand isolates one colour channel, or lays out all three side by side
type RGBChannelCommand struct {
	name   string
	params *RGBChannelParams
}

// NewRGBChannelCommand creates a new rgb-channel command from request parameters
func NewRGBChannelCommand(params map[string]any) (commandstructure.Command, error) {
	typedParams, err := NewRGBChannelParamsFromMap(params)
	if err != nil {
		return nil, err
	}
	return &RGBChannelCommand{name: "rgb_channel", params: typedParams}, nil
}

func (c *RGBChannelCommand) Name() string {
	return c.name
}

func (c *RGBChannelCommand) FilenameSuffix() string {
	return "_channel_" + string(c.params.Channel)
}

func (c *RGBChannelCommand) Parameters() map[string]any {
	return map[string]any{"channel": string(c.params.Channel)}
}

func (c *RGBChannelCommand) Execute(img image.Image) (image.Image, error) {
	slog.Debug("RGBChannelCommand: extracting channel", "channel", c.params.Channel)

	if c.params.Channel != ChannelAll {
		return isolateChannel(img, c.params.Channel), nil
	}

	w, h := img.Bounds().Dx(), img.Bounds().Dy()
	strip := image.NewNRGBA(image.Rect(0, 0, 3*w, h))
	for i, ch := range []Channel{ChannelRed, ChannelGreen, ChannelBlue} {
		panel := isolateChannel(img, ch)
		r := image.Rect(i*w, 0, (i+1)*w, h)
		draw.Draw(strip, r, panel, image.Point{}, draw.Src)
	}
	return strip, nil
}

func isolateChannel(img image.Image, ch Channel) *image.NRGBA {
	return mapPixels(img, func(px color.NRGBA) color.NRGBA {
		out := color.NRGBA{A: px.A}
		switch ch {
		case ChannelRed:
			out.R = px.R
		case ChannelGreen:
			out.G = px.G
		case ChannelBlue:
			out.B = px.B
		}
		return out
	})
}

func init() {
	if err := commandstructure.DefaultRegistry.Register("rgb-channel", NewRGBChannelCommand); err != nil {
		panic(fmt.Sprintf("failed to register RGBChannelCommand: %v", err))
	}
}
