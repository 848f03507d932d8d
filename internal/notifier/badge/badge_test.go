package badge

import (
	"errors"
	"image"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/colonyops/cinq/internal/core/notify"
)

type fakeApp struct {
	set     []int
	cleared int
	err     error
}

func (f *fakeApp) SetBadge(n int) error {
	f.set = append(f.set, n)
	return f.err
}

func (f *fakeApp) ClearBadge() error {
	f.cleared++
	return f.err
}

type fakeRenderer struct{ counts []int }

func (f *fakeRenderer) Render(n int) (image.Image, error) {
	f.counts = append(f.counts, n)
	return image.NewRGBA(image.Rect(0, 0, 32, 32)), nil
}

type fakeFavicon struct {
	applied  int
	restored int
	err      error
}

func (f *fakeFavicon) Apply(image.Image) error {
	f.applied++
	return f.err
}

func (f *fakeFavicon) Restore() error {
	f.restored++
	return f.err
}

type fakeTitle struct{ titles []string }

func (f *fakeTitle) SetTitle(s string) error {
	f.titles = append(f.titles, s)
	return nil
}

type staticSettings struct{ s notify.Settings }

func (s staticSettings) Get() notify.Settings { return s.s }

func TestTitle(t *testing.T) {
	assert.Equal(t, "Cinq", Title("Cinq", 0))
	assert.Equal(t, "(3) Cinq", Title("Cinq", 3))
	assert.Equal(t, "Cinq", Title("Cinq", -1))
}

func TestLabels(t *testing.T) {
	tests := []struct {
		count int
		icon  string
		label string
	}{
		{1, "1", "1"},
		{9, "9", "9"},
		{10, "9+", "10"},
		{99, "9+", "99"},
		{100, "9+", "99+"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.icon, IconLabel(tt.count))
		assert.Equal(t, tt.label, Label(tt.count))
	}
}

func TestUpdate_AllSurfaces(t *testing.T) {
	app, r, fav, title := &fakeApp{}, &fakeRenderer{}, &fakeFavicon{}, &fakeTitle{}
	s := New(Deps{App: app, Renderer: r, Favicon: fav, Title: title, Settings: staticSettings{notify.DefaultSettings()}})

	require.NoError(t, s.Update(3))
	assert.Equal(t, []int{3}, app.set)
	assert.Equal(t, []int{3}, r.counts)
	assert.Equal(t, 1, fav.applied)
	assert.Equal(t, []string{"(3) Cinq"}, title.titles)
	assert.Equal(t, 3, s.Last())

	require.NoError(t, s.Update(0))
	assert.Equal(t, 1, app.cleared)
	assert.Equal(t, 1, fav.restored)
	assert.Equal(t, "Cinq", title.titles[1])
	assert.Len(t, r.counts, 1, "zero restores without rendering")
}

func TestUpdate_SurfaceFailureIsolated(t *testing.T) {
	app := &fakeApp{err: errors.New("no dbus")}
	fav := &fakeFavicon{err: errors.New("read-only")}
	title := &fakeTitle{}
	s := New(Deps{App: app, Renderer: &fakeRenderer{}, Favicon: fav, Title: title})

	err := s.Update(2)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "app badge")
	assert.Contains(t, err.Error(), "favicon apply")
	assert.Equal(t, []string{"(2) Cinq"}, title.titles)
}

func TestUpdate_DisabledClears(t *testing.T) {
	app, fav, title := &fakeApp{}, &fakeFavicon{}, &fakeTitle{}
	settings := notify.DefaultSettings()
	settings.Badge = false
	s := New(Deps{App: app, Favicon: fav, Title: title, Settings: staticSettings{settings}})

	require.NoError(t, s.Update(7))
	assert.Empty(t, app.set)
	assert.Equal(t, 1, app.cleared)
	assert.Equal(t, 1, fav.restored)
	assert.Equal(t, []string{"Cinq"}, title.titles)
	assert.Equal(t, 0, s.Last())
}

func TestUpdate_NoopRendererSkipsFavicon(t *testing.T) {
	fav := &fakeFavicon{}
	s := New(Deps{Favicon: fav})

	require.NoError(t, s.Update(4))
	assert.Zero(t, fav.applied)
}

func TestUpdate_NilSurfaces(t *testing.T) {
	s := New(Deps{})
	assert.Equal(t, -1, s.Last())
	require.NoError(t, s.Update(1))
	assert.Equal(t, 1, s.Last())
}
