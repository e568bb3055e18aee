package layer

import (
	"math/rand/v2"
	"testing"

	"github.com/joeblew999/geodash/internal/effect"
	"github.com/joeblew999/geodash/internal/mapview"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRegistry(t *testing.T) (*Registry, *mapview.View, *effect.Recorder) {
	t.Helper()
	view := mapview.New(orb.Point{-48.4902, -1.4558}, 10, mapview.BaseDark)
	rec := &effect.Recorder{}
	r := NewRegistry(view, rec)
	RegisterMonitoring(r, map[string]string{CO: "CO"})
	rec.Reset()
	return r, view, rec
}

func TestRegisterMonitoring_HeatmapIsLazy(t *testing.T) {
	r, _, _ := newRegistry(t)

	assert.False(t, r.Has(Heatmap))
	assert.True(t, r.Known(Heatmap))
	assert.Len(t, r.Names(), len(Monitoring)-1)
	assert.Len(t, r.Registered(), len(Monitoring))
	assert.Empty(t, r.Visible())
}

func TestToggle(t *testing.T) {
	r, view, rec := newRegistry(t)

	visible, err := r.Toggle(CO)
	require.NoError(t, err)
	assert.True(t, visible)
	assert.True(t, view.Has(CO))
	assert.True(t, r.IsVisible(CO))

	visible, err = r.Toggle(CO)
	require.NoError(t, err)
	assert.False(t, visible)
	assert.False(t, view.Has(CO))

	effects := rec.OfKind(effect.KindButtonActive)
	require.Len(t, effects, 2)
	assert.Equal(t, effect.ButtonActive(CO, true), effects[0])
	assert.Equal(t, effect.ButtonActive(CO, false), effects[1])
}

func TestToggle_LazyHeatmap(t *testing.T) {
	r, view, _ := newRegistry(t)

	visible, err := r.Toggle(Heatmap)
	require.NoError(t, err)
	assert.True(t, visible)
	assert.True(t, view.Has(Heatmap))

	l, ok := r.Get(Heatmap)
	require.True(t, ok)
	require.Equal(t, 5, l.Len())
	el := l.Elements()[0]
	assert.InDelta(t, 800, el.Style.Radius, 0.001)
	assert.True(t, el.Style.Meters)
	assert.Equal(t, "#FF0000", el.Style.Color)
}

func TestToggle_UnknownLayer(t *testing.T) {
	r, view, rec := newRegistry(t)

	assert.NotPanics(t, func() {
		visible, err := r.Toggle("satellite")
		assert.ErrorIs(t, err, ErrUnknownLayer)
		assert.False(t, visible)
	})
	assert.Empty(t, view.Attached())
	assert.Empty(t, rec.Effects())
}

func TestShowHide_Idempotent(t *testing.T) {
	r, view, rec := newRegistry(t)

	require.NoError(t, r.Show(Alerts))
	require.NoError(t, r.Show(Alerts))
	assert.Equal(t, []string{Alerts}, view.Attached())
	assert.Len(t, rec.OfKind(effect.KindButtonActive), 1)

	require.NoError(t, r.Hide(Alerts))
	require.NoError(t, r.Hide(Alerts))
	require.NoError(t, r.Hide("never-built"))
	assert.Empty(t, view.Attached())
	assert.Len(t, rec.OfKind(effect.KindButtonActive), 2)

	assert.ErrorIs(t, r.Show("nope"), ErrUnknownLayer)
}

func TestReplace_KeepsVisibility(t *testing.T) {
	r, _, _ := newRegistry(t)
	r.Replace(Points, PointsLayer(geojson.NewFeatureCollection(), "Pontos"))
	require.NoError(t, r.Show(Points))

	fc := geojson.NewFeatureCollection()
	fc.Append(geojson.NewFeature(orb.Point{-48.5, -1.4}))
	r.Replace(Points, PointsLayer(fc, "Pontos"))

	assert.True(t, r.IsVisible(Points))
	l, _ := r.Get(Points)
	assert.Equal(t, 1, l.Len())
}

func TestBaseLayerStyles(t *testing.T) {
	fc := geojson.NewFeatureCollection()
	fc.Append(geojson.NewFeature(orb.Point{-48.5, -1.4}))

	p := PointsLayer(fc, "").Elements()[0].Style
	assert.Equal(t, "#ff0000", p.Color)
	assert.InDelta(t, 8, p.Radius, 0.001)

	a := AreasLayer(fc, "").Elements()[0].Style
	assert.Equal(t, "#0000ff", a.Color)
	assert.InDelta(t, 0.3, a.FillOpacity, 0.001)

	rt := RoutesLayer(fc, "").Elements()[0].Style
	assert.Equal(t, "#00ff00", rt.Color)
	assert.InDelta(t, 4, rt.Weight, 0.001)
}

func TestLayerBound(t *testing.T) {
	l := New("x", "", KindPoints, nil, nil)
	_, ok := l.Bound()
	assert.False(t, ok)
	assert.Empty(t, l.FeatureCollection().Features)

	r, _, _ := newRegistry(t)
	smoke, _ := r.Get(Smoke)
	b, ok := smoke.Bound()
	require.True(t, ok)
	assert.InDelta(t, -48.49, b.Min.X(), 0.001)
	assert.InDelta(t, -1.462, b.Min.Y(), 0.001)
	assert.Len(t, smoke.FeatureCollection().Features, 2)
}

func TestPeriodHours(t *testing.T) {
	cases := map[string]float64{"24h": 24, "7days": 168, "15days": 360, "30days": 720, "all": -1, "": -1}
	for period, want := range cases {
		assert.InDelta(t, want, PeriodHours(period), 0.001, period)
	}
}

func TestApplyFilters(t *testing.T) {
	r, _, _ := newRegistry(t)
	rng := rand.New(rand.NewPCG(1, 2))

	res := r.ApplyFilters("24h", "para", rng)
	assert.Equal(t, len(Monitoring)-1, res.Layers)
	assert.Positive(t, res.Dimmed)
	assert.Equal(t, 23, res.Shown+res.Dimmed)

	// Show-all restores each element to its creation fill opacity.
	res = r.ApplyFilters("all", "", rng)
	assert.Zero(t, res.Dimmed)
	for _, name := range r.Names() {
		l, _ := r.Get(name)
		for _, e := range l.Elements() {
			assert.InDelta(t, 1, e.Style.Opacity, 0.001)
			want := e.Base.FillOpacity
			if want == 0 {
				want = 0.7
			}
			assert.InDelta(t, want, e.Style.FillOpacity, 0.001, name)
		}
	}
}

func TestApplyFilters_DimmedStyle(t *testing.T) {
	r, _, _ := newRegistry(t)
	rng := rand.New(rand.NewPCG(7, 7))

	for range 5 {
		r.ApplyFilters("24h", "", rng)
	}
	l, _ := r.Get(FireEvents)
	for _, e := range l.Elements() {
		if e.Style.Opacity < 1 {
			assert.InDelta(t, 0.2, e.Style.Opacity, 0.001)
			assert.InDelta(t, 0.1, e.Style.FillOpacity, 0.001)
		}
	}
}
