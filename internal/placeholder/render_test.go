package placeholder

import (
	"bytes"
	"image/png"
	"testing"
)

func TestOptionsNormalize(t *testing.T) {
	tests := []struct {
		name       string
		in         Options
		wantWidth  int
		wantHeight int
	}{
		{name: "defaults", in: Options{}, wantWidth: DefaultWidth, wantHeight: DefaultHeight},
		{name: "kept", in: Options{Width: 320, Height: 200}, wantWidth: 320, wantHeight: 200},
		{name: "clamped", in: Options{Width: 9000, Height: -5}, wantWidth: MaxDimension, wantHeight: DefaultHeight},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := tc.in.Normalize()
			if got.Width != tc.wantWidth || got.Height != tc.wantHeight {
				t.Errorf("got %dx%d, want %dx%d", got.Width, got.Height, tc.wantWidth, tc.wantHeight)
			}
		})
	}
}

func TestEncodePNG(t *testing.T) {
	data, err := EncodePNG(Options{Width: 300, Height: 200, Text: "example.com\nWebsite\nPreview"})
	if err != nil {
		t.Fatalf("EncodePNG: %v", err)
	}

	img, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if b := img.Bounds(); b.Dx() != 300 || b.Dy() != 200 {
		t.Errorf("size = %dx%d, want 300x200", b.Dx(), b.Dy())
	}

	// corners keep the background colour
	r, g, b, _ := img.At(0, 0).RGBA()
	wr, wg, wb, _ := Background.RGBA()
	if r != wr || g != wg || b != wb {
		t.Errorf("corner pixel is not the background colour")
	}
}

func TestRenderDrawsText(t *testing.T) {
	img := Render(Options{Width: 200, Height: 100, Text: "example.com"})

	found := false
	for y := 0; y < 100 && !found; y++ {
		for x := 0; x < 200; x++ {
			if img.RGBAAt(x, y) == Foreground {
				found = true
				break
			}
		}
	}
	if !found {
		t.Error("expected some pixels in the text colour")
	}
}

func TestRenderWithoutText(t *testing.T) {
	img := Render(Options{Width: 10, Height: 10, Text: " \n "})
	for y := 0; y < 10; y++ {
		for x := 0; x < 10; x++ {
			if img.RGBAAt(x, y) != Background {
				t.Fatalf("pixel (%d,%d) is not background", x, y)
			}
		}
	}
}
