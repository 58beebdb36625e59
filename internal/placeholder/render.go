// Package placeholder renders the local "website preview" fallback image.
package placeholder

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"strings"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

const (
	MaxDimension = 2000

	DefaultWidth  = 1200
	DefaultHeight = 800
)

var (
	// slate-100 background, slate-500 text
	Background = color.RGBA{R: 0xf1, G: 0xf5, B: 0xf9, A: 0xff}
	Foreground = color.RGBA{R: 0x64, G: 0x74, B: 0x8b, A: 0xff}
)

// Options describe one placeholder image.
type Options struct {
	Width  int
	Height int
	Text   string // lines separated by '\n'
}

// Normalize applies defaults and clamps dimensions to 1..MaxDimension.
func (o Options) Normalize() Options {
	o.Width = clamp(o.Width, DefaultWidth)
	o.Height = clamp(o.Height, DefaultHeight)
	return o
}

func clamp(v, def int) int {
	switch {
	case v <= 0:
		return def
	case v > MaxDimension:
		return MaxDimension
	default:
		return v
	}
}

// Render draws the placeholder and returns it as an RGBA image.
func Render(opts Options) *image.RGBA {
	opts = opts.Normalize()

	img := image.NewRGBA(image.Rect(0, 0, opts.Width, opts.Height))
	draw.Draw(img, img.Bounds(), &image.Uniform{C: Background}, image.Point{}, draw.Src)

	lines := splitLines(opts.Text)
	if len(lines) == 0 {
		return img
	}

	face := basicfont.Face7x13
	drawer := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(Foreground),
		Face: face,
	}

	lineHeight := face.Metrics().Height.Ceil() + 4
	blockHeight := lineHeight * len(lines)
	top := (opts.Height-blockHeight)/2 + face.Metrics().Ascent.Ceil()

	for i, line := range lines {
		width := drawer.MeasureString(line).Ceil()
		x := (opts.Width - width) / 2
		if x < 0 {
			x = 0
		}
		drawer.Dot = fixed.P(x, top+i*lineHeight)
		drawer.DrawString(line)
	}

	return img
}

// EncodePNG renders the placeholder as PNG bytes.
func EncodePNG(opts Options) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, Render(opts)); err != nil {
		return nil, fmt.Errorf("failed to encode placeholder: %w", err)
	}
	return buf.Bytes(), nil
}

func splitLines(text string) []string {
	var lines []string
	for _, line := range strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n") {
		if line = strings.TrimSpace(line); line != "" {
			lines = append(lines, line)
		}
	}
	return lines
}
