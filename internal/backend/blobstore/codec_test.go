package blobstore

import (
	"bytes"
	"encoding/binary"
	"errors"
	"hash/crc32"
	"image"
	"image/color"
	"image/gif"
	"image/jpeg"
	"image/png"
	"testing"
)

func testImage() *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, 8, 6))
	for y := 0; y < 6; y++ {
		for x := 0; x < 8; x++ {
			img.SetNRGBA(x, y, color.NRGBA{uint8(x * 30), uint8(y * 40), 128, 255})
		}
	}
	return img
}

func pngBytes(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, testImage()); err != nil {
		t.Fatalf("png encode: %v", err)
	}
	return buf.Bytes()
}

func TestCodec_DecodeRasterFormats(t *testing.T) {
	var jpg, gf bytes.Buffer
	if err := jpeg.Encode(&jpg, testImage(), nil); err != nil {
		t.Fatalf("jpeg encode: %v", err)
	}
	if err := gif.Encode(&gf, testImage(), nil); err != nil {
		t.Fatalf("gif encode: %v", err)
	}

	c := NewCodec(640, 480)
	tests := []struct {
		name       string
		data       []byte
		wantFormat string
	}{
		{"png", pngBytes(t), "png"},
		{"jpeg", jpg.Bytes(), "jpeg"},
		{"gif", gf.Bytes(), "gif"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			img, format, err := c.Decode(tt.data)
			if err != nil {
				t.Fatalf("Decode error: %v", err)
			}
			if format != tt.wantFormat {
				t.Errorf("expected format %q, got %q", tt.wantFormat, format)
			}
			if img.Bounds().Dx() != 8 || img.Bounds().Dy() != 6 {
				t.Errorf("unexpected bounds %v", img.Bounds())
			}
			cfg, _, err := c.DecodeConfig(tt.data)
			if err != nil || cfg.Width != 8 || cfg.Height != 6 {
				t.Errorf("DecodeConfig returned %+v, %v", cfg, err)
			}
		})
	}
}

func TestCodec_DecodeRejectsGarbage(t *testing.T) {
	c := NewCodec(10, 10)
	for _, data := range [][]byte{nil, []byte("definitely not an image")} {
		if _, _, err := c.Decode(data); !errors.Is(err, ErrUnsupportedImage) {
			t.Errorf("expected ErrUnsupportedImage, got %v", err)
		}
	}
}

func TestCodec_DecodeSVG(t *testing.T) {
	svg := []byte(`<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 40 20" width="40" height="20">
<rect x="0" y="0" width="20" height="20" fill="#ff0000"/></svg>`)

	c := NewCodec(640, 480)
	img, format, err := c.Decode(svg)
	if err != nil {
		t.Fatalf("Decode error: %v", err)
	}
	if format != FormatSVG {
		t.Errorf("expected svg format, got %q", format)
	}
	if img.Bounds().Dx() != 40 || img.Bounds().Dy() != 20 {
		t.Fatalf("expected 40x20, got %v", img.Bounds())
	}
	r, g, _, _ := img.At(5, 10).RGBA()
	if r>>8 < 200 || g>>8 > 50 {
		t.Errorf("expected red fill at (5,10), got r=%d g=%d", r>>8, g>>8)
	}
	r, g, b, _ := img.At(35, 10).RGBA()
	if r>>8 != 255 || g>>8 != 255 || b>>8 != 255 {
		t.Errorf("expected white background at (35,10)")
	}
}

func TestCodec_SVGFallbackSize(t *testing.T) {
	svg := []byte(`<svg xmlns="http://www.w3.org/2000/svg"><circle cx="5" cy="5" r="4"/></svg>`)
	c := NewCodec(64, 32)
	img, _, err := c.Decode(svg)
	if err != nil {
		t.Fatalf("Decode error: %v", err)
	}
	if img.Bounds().Dx() != 64 || img.Bounds().Dy() != 32 {
		t.Errorf("expected fallback 64x32, got %v", img.Bounds())
	}
}

// pngHeader builds a PNG that carries only a valid IHDR chunk for w x h pixels
func pngHeader(w, h uint32) []byte {
	ihdr := make([]byte, 13)
	binary.BigEndian.PutUint32(ihdr[0:], w)
	binary.BigEndian.PutUint32(ihdr[4:], h)
	ihdr[8], ihdr[9] = 8, 6 // 8 bit RGBA

	var buf bytes.Buffer
	buf.WriteString("\x89PNG\r\n\x1a\n")
	_ = binary.Write(&buf, binary.BigEndian, uint32(len(ihdr)))
	chunk := append([]byte("IHDR"), ihdr...)
	buf.Write(chunk)
	_ = binary.Write(&buf, binary.BigEndian, crc32.ChecksumIEEE(chunk))
	return buf.Bytes()
}

func TestCodec_DecodeRejectsOversizedSources(t *testing.T) {
	c := NewCodec(64, 64)
	tests := []struct {
		name string
		data []byte
	}{
		{"png wider than limit", pngHeader(40000, 10)},
		{"png taller than limit", pngHeader(10, 40000)},
		{"huge svg viewBox", []byte(`<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 3000000000 10"><rect width="1" height="1"/></svg>`)},
		{"svg just over limit", []byte(`<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 10001 10"><rect width="1" height="1"/></svg>`)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			img, _, err := c.Decode(tt.data)
			if !errors.Is(err, ErrImageTooLarge) {
				t.Fatalf("expected ErrImageTooLarge, got %v", err)
			}
			if img != nil {
				t.Error("expected no image")
			}
		})
	}

	c.MaxDimension = 4
	if _, _, err := c.Decode(pngBytes(t)); !errors.Is(err, ErrImageTooLarge) {
		t.Errorf("expected 8x6 png to exceed a limit of 4, got %v", err)
	}
	if _, _, err := c.DecodeConfig(pngBytes(t)); err != nil {
		t.Errorf("DecodeConfig should still report the size, got %v", err)
	}
}

func TestCodec_SVGAtLimit(t *testing.T) {
	svg := []byte(`<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 10000 2"><rect width="1" height="1"/></svg>`)
	img, _, err := NewCodec(64, 64).Decode(svg)
	if err != nil {
		t.Fatalf("Decode error: %v", err)
	}
	if img.Bounds().Dx() != DefaultMaxDimension {
		t.Errorf("expected width %d, got %v", DefaultMaxDimension, img.Bounds())
	}
}

func TestEncode(t *testing.T) {
	for _, format := range []string{FormatPNG, FormatJPEG} {
		data, err := Encode(testImage(), format)
		if err != nil {
			t.Fatalf("Encode(%s) error: %v", format, err)
		}
		_, got, err := image.Decode(bytes.NewReader(data))
		if err != nil || got != format {
			t.Errorf("round trip of %s produced %q, %v", format, got, err)
		}
	}
	if _, err := Encode(testImage(), "bmp"); err == nil {
		t.Error("expected error for unsupported output format")
	}
}

func TestOutputFormat(t *testing.T) {
	tests := []struct {
		src, format, ext string
	}{
		{"jpeg", "jpeg", "jpg"},
		{"png", "png", "png"},
		{"gif", "png", "png"},
		{"svg", "png", "png"},
		{"webp", "png", "png"},
	}
	for _, tt := range tests {
		format, ext := OutputFormat(tt.src)
		if format != tt.format || ext != tt.ext {
			t.Errorf("OutputFormat(%q) = (%q,%q), want (%q,%q)", tt.src, format, ext, tt.format, tt.ext)
		}
	}
	if MIMEType(FormatJPEG) != "image/jpeg" || MIMEType(FormatPNG) != "image/png" {
		t.Error("unexpected MIME mapping")
	}
}
