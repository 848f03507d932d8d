// Package favicon draws the unread badge onto the application icon and
// publishes it as a PNG file.
package favicon

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	_ "image/jpeg" // base icons may be JPEG
	"image/png"
	"os"
	"path/filepath"

	"github.com/lucasb-eyer/go-colorful"
	"github.com/nfnt/resize"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"github.com/colonyops/cinq/internal/notifier/badge"
)

// Geometry of the badge on the 32x32 icon.
const (
	Size    = 32
	centerX = 24
	centerY = 8
	radius  = 8
)

// DefaultColor is the badge fill.
const DefaultColor = "#ef4444"

// Renderer draws a filled circle with the count on top of the base icon.
type Renderer struct {
	base  image.Image
	fill  color.Color
	label color.Color
}

// NewRenderer loads the base icon from iconPath, or draws a plain disc when
// iconPath is empty. fillHex is the badge color.
func NewRenderer(iconPath, fillHex string) (*Renderer, error) {
	if fillHex == "" {
		fillHex = DefaultColor
	}
	fill, err := colorful.Hex(fillHex)
	if err != nil {
		return nil, fmt.Errorf("badge color %q: %w", fillHex, err)
	}

	var base image.Image
	if iconPath == "" {
		base = defaultIcon()
	} else {
		base, err = loadIcon(iconPath)
		if err != nil {
			return nil, err
		}
	}

	return &Renderer{base: base, fill: fill, label: color.White}, nil
}

func loadIcon(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open icon: %w", err)
	}
	defer func() { _ = f.Close() }()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decode icon %s: %w", path, err)
	}
	return resize.Resize(Size, Size, img, resize.Lanczos3), nil
}

func defaultIcon() image.Image {
	img := image.NewRGBA(image.Rect(0, 0, Size, Size))
	accent, _ := colorful.Hex("#6366f1")
	fillCircle(img, Size/2, Size/2, Size/2-1, accent)
	return img
}

// Base returns the unbadged icon.
func (r *Renderer) Base() image.Image {
	return r.base
}

// Render draws the icon with count on it.
func (r *Renderer) Render(count int) (image.Image, error) {
	img := image.NewRGBA(image.Rect(0, 0, Size, Size))
	draw.Draw(img, img.Bounds(), r.base, r.base.Bounds().Min, draw.Src)

	fillCircle(img, centerX, centerY, radius, r.fill)

	text := badge.IconLabel(count)
	face := basicfont.Face7x13
	d := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(r.label),
		Face: face,
	}
	width := d.MeasureString(text)
	metrics := face.Metrics()
	d.Dot = fixed.Point26_6{
		X: fixed.I(centerX) - width/2,
		Y: fixed.I(centerY) + (metrics.Ascent-metrics.Descent)/2,
	}
	d.DrawString(text)

	return img, nil
}

func fillCircle(img draw.Image, cx, cy, r int, c color.Color) {
	for y := cy - r; y <= cy+r; y++ {
		for x := cx - r; x <= cx+r; x++ {
			dx, dy := x-cx, y-cy
			if dx*dx+dy*dy <= r*r && image.Pt(x, y).In(img.Bounds()) {
				img.Set(x, y, c)
			}
		}
	}
}

// FileSink writes the favicon to a PNG file.
type FileSink struct {
	path string
	base image.Image
}

// NewFileSink writes to path and restores base when the count drops to zero.
func NewFileSink(path string, base image.Image) *FileSink {
	return &FileSink{path: path, base: base}
}

// Path is the output file.
func (s *FileSink) Path() string {
	return s.path
}

func (s *FileSink) Apply(img image.Image) error {
	return writePNG(s.path, img)
}

func (s *FileSink) Restore() error {
	return writePNG(s.path, s.base)
}

// writePNG replaces path atomically so readers never see a partial file.
func writePNG(path string, img image.Image) error {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return fmt.Errorf("encode png: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create icon dir: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".favicon-*.png")
	if err != nil {
		return fmt.Errorf("create temp icon: %w", err)
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	if _, err := tmp.Write(buf.Bytes()); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write icon: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close icon: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("replace icon: %w", err)
	}
	return nil
}
