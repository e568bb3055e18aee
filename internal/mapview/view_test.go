package mapview

import (
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newView() *View {
	return New(orb.Point{-48.4902, -1.4558}, 10, BaseDark)
}

func TestAttachDetach(t *testing.T) {
	v := newView()

	assert.True(t, v.Attach("co"))
	assert.False(t, v.Attach("co"))
	assert.True(t, v.Attach("aerosol"))
	assert.True(t, v.Has("co"))
	assert.Equal(t, []string{"aerosol", "co"}, v.Attached())

	assert.True(t, v.Detach("co"))
	assert.False(t, v.Detach("co"))
	assert.False(t, v.Has("co"))
}

func TestSetBase(t *testing.T) {
	v := newView()
	assert.Equal(t, BaseDark, v.Base())

	require.NoError(t, v.SetBase(BaseLight))
	assert.Equal(t, BaseLight, v.Base())

	err := v.SetBase("ligth")
	require.ErrorIs(t, err, ErrUnknownBase)
	assert.Equal(t, BaseLight, v.Base())
}

func TestNewFallsBackToDark(t *testing.T) {
	v := New(orb.Point{}, 3, "satellite")
	assert.Equal(t, BaseDark, v.Base())
}

func TestFitBounds_RespectsMaxZoom(t *testing.T) {
	v := newView()

	// A single point fits at any zoom, so the ceiling wins.
	p := orb.Point{-48.5, -1.45}
	z := v.FitBounds(orb.Bound{Min: p, Max: p}, 20, 12)
	assert.InDelta(t, 12, z, 0.001)

	center, zoom := v.Center()
	assert.Equal(t, p, center)
	assert.InDelta(t, 12, zoom, 0.001)
}

func TestFitBounds_LargeAreaZoomsOut(t *testing.T) {
	v := newView()

	brazil := orb.Bound{Min: orb.Point{-74, -34}, Max: orb.Point{-34, 5.3}}
	z := v.FitBounds(brazil, 20, 12)
	assert.Less(t, z, 6.0)
	assert.Greater(t, z, 1.0)

	para := orb.Bound{Min: orb.Point{-58.9, -9.9}, Max: orb.Point{-46.0, 2.6}}
	assert.GreaterOrEqual(t, BoundsZoom(para, DefaultViewport, 20, 12), z)
}

func TestBoundsZoom_ZeroViewport(t *testing.T) {
	b := orb.Bound{Min: orb.Point{0, 0}, Max: orb.Point{1, 1}}
	assert.Zero(t, BoundsZoom(b, Viewport{Width: 10, Height: 10}, 20, 12))
}

func TestState(t *testing.T) {
	v := newView()
	v.Attach("rotas")
	s := v.State()
	assert.Equal(t, BaseDark, s.Base)
	assert.Equal(t, []string{"rotas"}, s.Attached)
	assert.InDelta(t, 10, s.Zoom, 0.001)
}
