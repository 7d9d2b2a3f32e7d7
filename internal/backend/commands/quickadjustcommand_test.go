package commands

import (
	"image"
	"image/color"
	"testing"

	"github.com/jo-hoe/neuragallery/internal/backend/commandstructure"
)

func TestNewQuickAdjustCommand_Defaults(t *testing.T) {
	command, err := NewQuickAdjustCommand(map[string]any{})
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	qa, ok := command.(*QuickAdjustCommand)
	if !ok {
		t.Fatal("Expected command to be *QuickAdjustCommand")
	}
	p := qa.params
	if p.Brightness != 1.0 || p.Contrast != 1.0 || p.Saturation != 1.0 || p.HueShift != 0 {
		t.Errorf("unexpected defaults %+v", p)
	}
	if got, want := command.FilenameSuffix(), "_adjusted_b1.0_c1.0_s1.0_h0"; got != want {
		t.Errorf("Expected suffix %q, got %q", want, got)
	}
}

func TestNewQuickAdjustCommand_StringParams(t *testing.T) {
	command, err := NewQuickAdjustCommand(map[string]any{
		"brightness": "1.2",
		"contrast":   "0.8",
		"saturation": "0",
		"hue_shift":  "-5",
	})
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if got, want := command.FilenameSuffix(), "_adjusted_b1.2_c0.8_s0.0_h-5"; got != want {
		t.Errorf("Expected suffix %q, got %q", want, got)
	}
}

func TestNewQuickAdjustCommand_Validation(t *testing.T) {
	tests := []struct {
		name    string
		params  map[string]any
		message string
	}{
		{"brightness too high", map[string]any{"brightness": 2.5}, "Brightness must be between 0.3 and 2.0"},
		{"brightness too low", map[string]any{"brightness": 0.2}, "Brightness must be between 0.3 and 2.0"},
		{"contrast too low", map[string]any{"contrast": 0.1}, "Contrast must be between 0.3 and 2.0"},
		{"saturation too high", map[string]any{"saturation": 2.1}, "Saturation must be between 0.0 and 2.0"},
		{"hue too large", map[string]any{"hue_shift": 31}, "Hue shift must be between -30 and 30"},
		{"hue not integer", map[string]any{"hue_shift": "abc"}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewQuickAdjustCommand(tt.params)
			if err == nil {
				t.Fatal("Expected validation error")
			}
			if !commandstructure.IsValidationError(err) {
				t.Errorf("Expected ParamError, got %T", err)
			}
			if tt.message != "" && err.Error() != tt.message {
				t.Errorf("Expected message %q, got %q", tt.message, err.Error())
			}
		})
	}
}

func TestQuickAdjustCommand_Execute(t *testing.T) {
	tests := []struct {
		name   string
		params QuickAdjustParams
		in     color.NRGBA
		want   color.NRGBA
	}{
		{"identity", QuickAdjustParams{1, 1, 1, 0}, color.NRGBA{255, 0, 0, 255}, color.NRGBA{255, 0, 0, 255}},
		{"darker", QuickAdjustParams{0.5, 1, 1, 0}, color.NRGBA{200, 200, 200, 255}, color.NRGBA{100, 100, 100, 255}},
		{"brighter clips", QuickAdjustParams{2, 1, 1, 0}, color.NRGBA{200, 200, 200, 255}, color.NRGBA{255, 255, 255, 255}},
		{"contrast", QuickAdjustParams{1, 2, 1, 0}, color.NRGBA{100, 100, 100, 255}, color.NRGBA{200, 200, 200, 255}},
		{"desaturate", QuickAdjustParams{1, 1, 0, 0}, color.NRGBA{255, 0, 0, 255}, color.NRGBA{255, 255, 255, 255}},
		{"hue shift red to yellow", QuickAdjustParams{1, 1, 1, 30}, color.NRGBA{255, 0, 0, 255}, color.NRGBA{255, 255, 0, 255}},
		{"alpha preserved", QuickAdjustParams{1, 1, 1, 0}, color.NRGBA{0, 0, 255, 40}, color.NRGBA{0, 0, 255, 40}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			command, err := NewQuickAdjustCommandWithParams(tt.params)
			if err != nil {
				t.Fatalf("Expected no error, got %v", err)
			}
			out, err := command.Execute(solid(3, 2, tt.in))
			if err != nil {
				t.Fatalf("Execute failed: %v", err)
			}
			got := color.NRGBAModel.Convert(out.At(1, 1)).(color.NRGBA)
			if got != tt.want {
				t.Errorf("Expected %v, got %v", tt.want, got)
			}
			if out.Bounds() != image.Rect(0, 0, 3, 2) {
				t.Errorf("Expected size to be kept, got %v", out.Bounds())
			}
		})
	}
}

func TestHSVAdjustCommand(t *testing.T) {
	command, err := NewHSVAdjustCommand(map[string]any{"hue_shift": 60})
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if got, want := command.FilenameSuffix(), "_hsv_h60_s1.0_v1.0"; got != want {
		t.Errorf("Expected suffix %q, got %q", want, got)
	}

	out, err := command.Execute(solid(2, 2, color.NRGBA{255, 0, 0, 255}))
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if got := out.(*image.NRGBA).NRGBAAt(0, 0); got != (color.NRGBA{0, 255, 0, 255}) {
		t.Errorf("Expected red shifted to green, got %v", got)
	}

	for _, params := range []map[string]any{
		{"hue_shift": 181},
		{"saturation_scale": -0.1},
		{"value_scale": 2.01},
	} {
		if _, err := NewHSVAdjustCommand(params); !commandstructure.IsValidationError(err) {
			t.Errorf("Expected validation error for %v, got %v", params, err)
		}
	}
}
