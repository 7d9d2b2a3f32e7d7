package commands

import (
	"image"
	"image/color"
)

// Dimensions describes the pixel geometry of a decoded image
type Dimensions struct {
	Width       int `json:"width"`
	Height      int `json:"height"`
	Channels    int `json:"channels"`
	TotalPixels int `json:"total_pixels"`
}

// MeasureDimensions reports the size of img. Single channel images count as 1 channel,
// everything else as 3 colour channels.
func MeasureDimensions(img image.Image) Dimensions {
	b := img.Bounds()
	channels := 3
	switch img.(type) {
	case *image.Gray, *image.Gray16:
		channels = 1
	}
	return Dimensions{
		Width:       b.Dx(),
		Height:      b.Dy(),
		Channels:    channels,
		TotalPixels: b.Dx() * b.Dy(),
	}
}

// DimensionsFromConfig is MeasureDimensions for a decoded header
func DimensionsFromConfig(cfg image.Config) Dimensions {
	channels := 3
	if cfg.ColorModel == color.GrayModel || cfg.ColorModel == color.Gray16Model {
		channels = 1
	}
	return Dimensions{
		Width:       cfg.Width,
		Height:      cfg.Height,
		Channels:    channels,
		TotalPixels: cfg.Width * cfg.Height,
	}
}
