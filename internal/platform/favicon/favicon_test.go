package favicon

import (
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sameColor(t *testing.T, want color.Color, got color.Color) {
	t.Helper()
	wr, wg, wb, _ := want.RGBA()
	gr, gg, gb, _ := got.RGBA()
	assert.Equal(t, [3]uint32{wr >> 8, wg >> 8, wb >> 8}, [3]uint32{gr >> 8, gg >> 8, gb >> 8})
}

func TestRender_DrawsBadge(t *testing.T) {
	r, err := NewRenderer("", DefaultColor)
	require.NoError(t, err)

	img, err := r.Render(3)
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, Size, Size), img.Bounds())

	// Edge of the circle is the fill color, away from the numeral.
	sameColor(t, color.RGBA{0xef, 0x44, 0x44, 0xff}, img.At(centerX-radius+1, centerY))

	// The numeral puts some white pixels inside the circle.
	white := 0
	for y := centerY - radius; y <= centerY+radius; y++ {
		for x := centerX - radius; x <= centerX+radius; x++ {
			r, g, b, _ := img.At(x, y).RGBA()
			if r>>8 == 0xff && g>>8 == 0xff && b>>8 == 0xff {
				white++
			}
		}
	}
	assert.Positive(t, white)
}

func TestRender_OverNineDiffersFromNine(t *testing.T) {
	r, err := NewRenderer("", "")
	require.NoError(t, err)

	nine, _ := r.Render(9)
	many, _ := r.Render(42)
	same, _ := r.Render(10)

	assert.NotEqual(t, nine, many)
	assert.Equal(t, many, same, "every count above nine renders 9+")
}

func TestNewRenderer_BadColor(t *testing.T) {
	_, err := NewRenderer("", "red")
	require.Error(t, err)
}

func TestNewRenderer_LoadsAndResizesIcon(t *testing.T) {
	path := filepath.Join(t.TempDir(), "icon.png")
	src := image.NewRGBA(image.Rect(0, 0, 128, 128))
	f, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, png.Encode(f, src))
	require.NoError(t, f.Close())

	r, err := NewRenderer(path, "")
	require.NoError(t, err)
	assert.Equal(t, Size, r.Base().Bounds().Dx())

	_, err = NewRenderer(filepath.Join(t.TempDir(), "missing.png"), "")
	require.Error(t, err)
}

func TestFileSink(t *testing.T) {
	r, err := NewRenderer("", "")
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "nested", "favicon.png")
	sink := NewFileSink(path, r.Base())

	img, _ := r.Render(1)
	require.NoError(t, sink.Apply(img))

	f, err := os.Open(path)
	require.NoError(t, err)
	decoded, err := png.Decode(f)
	require.NoError(t, err)
	require.NoError(t, f.Close())
	assert.Equal(t, Size, decoded.Bounds().Dx())

	require.NoError(t, sink.Restore())
	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp files are cleaned up")
}
