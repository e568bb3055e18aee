package dashboard

import (
	"context"
	"encoding/json"
	"math/rand/v2"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/joeblew999/geodash/internal/analytics"
	"github.com/joeblew999/geodash/internal/area"
	"github.com/joeblew999/geodash/internal/config"
	"github.com/joeblew999/geodash/internal/effect"
	"github.com/joeblew999/geodash/internal/geodata"
	"github.com/joeblew999/geodash/internal/layer"
	"github.com/joeblew999/geodash/internal/schedule"
	"github.com/joeblew999/geodash/internal/state"
	"github.com/joeblew999/geodash/internal/stats"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	pointsJSON = `{"type":"FeatureCollection","features":[
 {"type":"Feature","geometry":{"type":"Point","coordinates":[-48.49,-1.45]},"properties":{"name":"A"}},
 {"type":"Feature","geometry":{"type":"Point","coordinates":[-48.50,-1.46]},"properties":{"name":"B"}}
]}`
	areasJSON = `{"type":"FeatureCollection","features":[
 {"type":"Feature","geometry":{"type":"Polygon","coordinates":[[[-48.6,-1.5],[-48.4,-1.5],[-48.4,-1.3],[-48.6,-1.3],[-48.6,-1.5]]]},"properties":{}}
]}`
	routesJSON = `{"type":"FeatureCollection","features":[
 {"type":"Feature","geometry":{"type":"LineString","coordinates":[[-48.5,-1.4],[-48.3,-1.2]]},"properties":{}}
]}`
	paraJSON = `{"type":"FeatureCollection","features":[
 {"type":"Feature","geometry":{"type":"Polygon","coordinates":[[[-58.9,-9.8],[-46.0,-9.8],[-46.0,2.6],[-58.9,2.6],[-58.9,-9.8]]]},"properties":{"name":"Pará"}}
]}`
)

var start = time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)

type fixture struct {
	d       *Dashboard
	clock   *schedule.Manual
	rec     *effect.Recorder
	hits    *atomic.Int32
	loader  *geodata.Loader
	cfg     *config.Config
	metrics *analytics.Sink
}

func newServer(t *testing.T, hits *atomic.Int32) *httptest.Server {
	t.Helper()
	serve := func(body string) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			hits.Add(1)
			w.Header().Set("Content-Type", "application/geo+json")
			w.Write([]byte(body))
		}
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/data/pontos_interesse.geojson", serve(pointsJSON))
	mux.HandleFunc("/data/areas_especiais.geojson", serve(areasJSON))
	mux.HandleFunc("/data/rotas.geojson", serve(routesJSON))
	mux.HandleFunc("/data/areas/para.geojson", serve(paraJSON))
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func newFixture(t *testing.T, store state.Store, tweak ...func(*config.Config)) *fixture {
	t.Helper()
	hits := &atomic.Int32{}
	srv := newServer(t, hits)

	cfg := config.Default()
	cfg.Data.BaseURL = srv.URL + "/"
	cfg.Data.Timeout = time.Second
	for _, fn := range tweak {
		fn(cfg)
	}

	loader, err := geodata.New(geodata.Options{BaseURL: cfg.Data.BaseURL, Timeout: cfg.Data.Timeout})
	require.NoError(t, err)

	clock := schedule.NewManual(start)
	rec := &effect.Recorder{}
	sink := analytics.NewSink(cfg.Analytics.History, clock.Now)
	d := New(cfg, Deps{
		Loader:    loader,
		Clock:     clock,
		Store:     store,
		Effects:   rec,
		Analytics: sink,
		Rand:      rand.New(rand.NewPCG(1, 2)),
	})
	return &fixture{d: d, clock: clock, rec: rec, hits: hits, loader: loader, cfg: cfg, metrics: sink}
}

func (f *fixture) init(t *testing.T) {
	t.Helper()
	require.NoError(t, f.d.Init(context.Background()))
}

func notifications(rec *effect.Recorder, level string) []string {
	var out []string
	for _, e := range rec.OfKind(effect.KindNotify) {
		if e.Level == level {
			out = append(out, e.Message)
		}
	}
	return out
}

func TestInit(t *testing.T) {
	f := newFixture(t, nil)
	f.init(t)

	assert.True(t, f.d.Ready())
	assert.Equal(t, ModeReady, f.d.Mode())

	// Base layers plus every monitoring layer except the lazy heatmap.
	names := f.d.Layers().Names()
	for _, n := range []string{layer.Points, layer.Areas, layer.Routes, layer.FireEvents, layer.Alerts} {
		assert.Contains(t, names, n)
	}
	assert.NotContains(t, names, layer.Heatmap)
	assert.Empty(t, f.d.Layers().Visible())

	s := f.d.Stats()
	assert.Equal(t, 4, s.TotalPoints)
	assert.Equal(t, stats.SourceData, s.Source)

	assert.True(t, f.d.Refresher().Enabled())
	assert.Equal(t, 1, f.metrics.Count(analytics.SystemStart))
	assert.Equal(t, 1, f.metrics.Count(analytics.DashboardReady))
	assert.Contains(t, notifications(f.rec, effect.LevelSuccess), "Dashboard carregado e pronto para uso!")
	assert.Positive(t, f.metrics.Count(analytics.NotificationShown))
	assert.Equal(t, start, f.d.LastRefresh())

	assert.ErrorIs(t, f.d.Init(context.Background()), ErrInitialized)
}

type panickingLoader struct{ *geodata.Loader }

func (panickingLoader) LoadBase(context.Context, geodata.Paths) geodata.BaseData {
	panic("map container missing")
}

func TestInit_FailureFallsBack(t *testing.T) {
	f := newFixture(t, nil)
	d := New(f.cfg, Deps{Loader: panickingLoader{f.loader}, Clock: f.clock, Effects: f.rec, Analytics: f.metrics})

	err := d.Init(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "map container missing")
	assert.Equal(t, ModeFailed, d.Mode())

	initErr, ok := f.rec.Last(effect.KindInitError)
	require.True(t, ok)
	assert.Contains(t, initErr.Message, "map container missing")
	assert.Equal(t, 1, f.metrics.Count(analytics.InitError))
	assert.ErrorIs(t, d.Refresh(context.Background()), ErrNotReady)

	f.clock.Advance(4 * time.Second)
	assert.Equal(t, ModeFailed, d.Mode())

	f.clock.Advance(time.Second)
	assert.Equal(t, ModeFallback, d.Mode())
	assert.Equal(t, stats.SourceSimulated, d.Stats().Source)
	assert.Contains(t, notifications(f.rec, effect.LevelWarning), "Dashboard iniciado em modo de segurança")
}

func TestInit_CancelledContext(t *testing.T) {
	f := newFixture(t, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	require.Error(t, f.d.Init(ctx))
	assert.Equal(t, ModeFailed, f.d.Mode())
	assert.Zero(t, f.hits.Load())
}

func TestRefresh_KeepsVisibility(t *testing.T) {
	f := newFixture(t, nil)
	f.init(t)
	require.NoError(t, f.d.ShowLayer(layer.Points))
	before, _ := f.d.Layers().Get(layer.Points)
	hits := f.hits.Load()

	f.clock.Advance(10 * time.Second)
	require.NoError(t, f.d.Refresh(context.Background()))

	after, _ := f.d.Layers().Get(layer.Points)
	assert.NotSame(t, before, after)
	assert.True(t, f.d.Layers().IsVisible(layer.Points))
	assert.Equal(t, hits+3, f.hits.Load())
	assert.Equal(t, start.Add(10*time.Second), f.d.LastRefresh())
	assert.Equal(t, 1, f.metrics.Count(analytics.DataRefresh))
	assert.Contains(t, notifications(f.rec, effect.LevelSuccess), "Dados atualizados com sucesso!")
}

func TestAutoRefresh(t *testing.T) {
	f := newFixture(t, nil)
	f.init(t)
	hits := f.hits.Load()

	f.clock.Advance(60 * time.Second)
	assert.Equal(t, hits+3, f.hits.Load())
	assert.Equal(t, 1, f.metrics.Count(analytics.DataRefresh))

	require.True(t, f.d.SetAutoRefresh(false))
	assert.False(t, f.d.Refresher().Active())
	f.clock.Advance(5 * time.Minute)
	assert.Equal(t, 1, f.metrics.Count(analytics.DataRefresh))
	assert.Contains(t, notifications(f.rec, effect.LevelInfo), "Auto-refresh desativado")

	assert.True(t, f.d.ToggleAutoRefresh())
	assert.Contains(t, notifications(f.rec, effect.LevelSuccess), "Auto-refresh ativado (60s)")
	assert.True(t, f.d.Refresher().Active())
}

func TestAutoRefresh_DisabledByConfig(t *testing.T) {
	f := newFixture(t, nil, func(c *config.Config) { c.Refresh.Enabled = false })
	f.init(t)
	assert.False(t, f.d.Refresher().Enabled())
	assert.False(t, f.d.Refresher().Active())
}

func TestSetPageHidden(t *testing.T) {
	f := newFixture(t, nil)
	f.init(t)

	require.True(t, f.d.StartCycle())
	f.clock.Advance(30 * time.Second)
	shown := f.d.Cycler().Current()
	index := f.d.Cycler().Index()

	f.d.SetPageHidden(true)
	assert.False(t, f.d.Refresher().Active())
	assert.True(t, f.d.Refresher().Enabled())
	f.clock.Advance(10 * time.Minute)
	assert.Equal(t, shown, f.d.Cycler().Current())
	assert.Equal(t, index, f.d.Cycler().Index())
	assert.Zero(t, f.metrics.Count(analytics.DataRefresh))

	f.d.SetPageHidden(false)
	assert.True(t, f.d.Refresher().Active())
	assert.True(t, f.d.Cycler().Running())
	f.clock.Advance(30 * time.Second)
	assert.NotEqual(t, shown, f.d.Cycler().Current())
}

func TestCycle_ExactlyOneVisible(t *testing.T) {
	f := newFixture(t, nil, func(c *config.Config) {
		c.Cycle.Layers = []string{layer.FireEvents, layer.Heatmap, layer.Alerts}
	})
	f.init(t)
	require.NoError(t, f.d.ShowLayer(layer.Alerts))

	require.True(t, f.d.StartCycle())
	assert.Equal(t, []string{layer.FireEvents}, f.d.Layers().Visible())

	f.clock.Advance(2 * f.cfg.Cycle.Period)
	assert.Equal(t, []string{layer.Alerts}, f.d.Layers().Visible())

	f.clock.Advance(f.cfg.Cycle.Period)
	assert.Equal(t, []string{layer.FireEvents}, f.d.Layers().Visible())

	require.True(t, f.d.StopCycle())
	assert.Equal(t, []string{layer.FireEvents}, f.d.Layers().Visible())
	assert.Equal(t, 2, f.metrics.Count(analytics.AutoRun))
}

func TestToggleLayer(t *testing.T) {
	f := newFixture(t, nil)
	f.init(t)

	visible, err := f.d.ToggleLayer(layer.Heatmap)
	require.NoError(t, err)
	assert.True(t, visible)
	assert.True(t, f.d.Layers().Has(layer.Heatmap))

	active, ok := f.rec.Last(effect.KindButtonActive)
	require.True(t, ok)
	assert.Equal(t, layer.Heatmap, active.Target)
	assert.True(t, active.Active)

	visible, err = f.d.ToggleLayer(layer.Heatmap)
	require.NoError(t, err)
	assert.False(t, visible)

	_, err = f.d.ToggleLayer("nope")
	assert.ErrorIs(t, err, layer.ErrUnknownLayer)
	assert.Equal(t, 2, f.metrics.Count(analytics.LayerToggle))

	// Already hidden: no toggle recorded.
	require.NoError(t, f.d.HideLayer(layer.Heatmap))
	assert.Equal(t, 2, f.metrics.Count(analytics.LayerToggle))
}

func TestSwitchBaseLayer(t *testing.T) {
	f := newFixture(t, nil)
	f.init(t)

	require.NoError(t, f.d.SwitchBaseLayer("light"))
	assert.Equal(t, "light", f.d.View().Base())
	e, ok := f.rec.Last(effect.KindBaseLayer)
	require.True(t, ok)
	assert.Equal(t, "light", e.Target)

	require.Error(t, f.d.SwitchBaseLayer("ligth"))
	assert.Equal(t, "light", f.d.View().Base())
	assert.Equal(t, 1, f.metrics.Count(analytics.BaseLayerSwitch))
}

func TestSelectArea(t *testing.T) {
	f := newFixture(t, nil)
	f.init(t)

	require.NoError(t, f.d.SelectArea(context.Background(), "para"))
	st := f.d.Status()
	assert.Equal(t, "para", st.Area)
	assert.Equal(t, "para", st.SelectedArea)
	assert.Equal(t, "cached-display", st.AreaState)
	assert.Equal(t, 3450, st.Stats.TotalPoints)
	assert.Equal(t, stats.SourceArea, st.Stats.Source)
	assert.Contains(t, f.d.View().Attached(), area.LayerPrefix+"para")

	require.NoError(t, f.d.SelectArea(context.Background(), ""))
	st = f.d.Status()
	assert.Empty(t, st.Area)
	assert.Empty(t, st.SelectedArea)
	assert.Equal(t, stats.SourceData, st.Stats.Source)
	assert.InDelta(t, -1.4558, st.Center[0], 1e-9)
	assert.InDelta(t, 10, st.Zoom, 1e-9)

	sel, ok := f.rec.Last(effect.KindAreaSelector)
	require.True(t, ok)
	assert.Empty(t, sel.Target)
	assert.Equal(t, 2, f.metrics.Count(analytics.AreaChange))
}

func TestSelectArea_Failures(t *testing.T) {
	f := newFixture(t, nil)
	f.init(t)

	err := f.d.SelectArea(context.Background(), "atlantida")
	assert.ErrorIs(t, err, area.ErrUnknownArea)
	assert.Empty(t, f.d.Status().SelectedArea)

	// Listed in the table but not served.
	err = f.d.SelectArea(context.Background(), "amapa")
	require.Error(t, err)
	assert.Equal(t, "idle", f.d.Status().AreaState)
	show, ok := f.rec.Last(effect.KindShowError)
	require.True(t, ok)
	assert.Contains(t, show.Message, "Erro 404 ao carregar Amapá")
}

func TestApplyFilters(t *testing.T) {
	f := newFixture(t, nil)
	f.init(t)

	res := f.d.ApplyFilters("24h", "")
	assert.Equal(t, 8, res.Layers)
	assert.Equal(t, 23, res.Shown+res.Dimmed)
	assert.Positive(t, res.Dimmed)
	assert.Equal(t, "24h", f.d.Status().Period)

	res = f.d.ApplyFilters("all", "")
	assert.Zero(t, res.Dimmed)
	assert.Equal(t, 2, f.metrics.Count(analytics.FilterApply))
}

func TestHandleKey(t *testing.T) {
	f := newFixture(t, nil)
	f.init(t)
	ctx := context.Background()

	action, err := f.d.HandleKey(ctx, "l", false)
	require.NoError(t, err)
	assert.Equal(t, KeyBaseLight, action)
	assert.Equal(t, "light", f.d.View().Base())

	action, _ = f.d.HandleKey(ctx, "D", false)
	assert.Equal(t, KeyBaseDark, action)
	assert.Equal(t, "dark", f.d.View().Base())

	action, _ = f.d.HandleKey(ctx, "r", false)
	assert.Equal(t, KeyToggleCycle, action)
	assert.True(t, f.d.Cycler().Running())

	action, _ = f.d.HandleKey(ctx, " ", false)
	assert.Equal(t, KeyStopCycle, action)
	assert.False(t, f.d.Cycler().Running())

	action, _ = f.d.HandleKey(ctx, " ", false)
	assert.Empty(t, action)

	f.d.StartCycle()
	action, _ = f.d.HandleKey(ctx, "Escape", false)
	assert.Equal(t, KeyStopCycle, action)
	assert.False(t, f.d.Cycler().Running())

	require.NoError(t, f.d.SelectArea(ctx, "para"))
	action, _ = f.d.HandleKey(ctx, "Escape", false)
	assert.Equal(t, KeyClearArea, action)
	_, ok := f.d.Areas().Current()
	assert.False(t, ok)

	action, err = f.d.HandleKey(ctx, "r", true)
	require.NoError(t, err)
	assert.Equal(t, KeyRefresh, action)
	assert.False(t, f.d.Cycler().Running())
	assert.Equal(t, 1, f.metrics.Count(analytics.DataRefresh))

	action, _ = f.d.HandleKey(ctx, "l", true)
	assert.Empty(t, action)
	action, _ = f.d.HandleKey(ctx, "x", false)
	assert.Empty(t, action)
}

func TestExport(t *testing.T) {
	f := newFixture(t, nil)
	f.init(t)

	data, name, err := f.d.Export()
	require.NoError(t, err)
	assert.Equal(t, "dashboard-dados-2026-03-14.geojson", name)

	var doc map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(data, &doc))
	for _, key := range []string{"timestamp", "base_layer", "pontos", "areas_especiais", "dados_municipais", "rotas", "area_monitorada"} {
		assert.Contains(t, doc, key)
	}
	assert.JSONEq(t, "null", string(doc["dados_municipais"]))
	assert.JSONEq(t, "null", string(doc["area_monitorada"]))
	assert.JSONEq(t, `"dark"`, string(doc["base_layer"]))

	var points struct {
		Type     string            `json:"type"`
		Features []json.RawMessage `json:"features"`
	}
	require.NoError(t, json.Unmarshal(doc["pontos"], &points))
	assert.Equal(t, "FeatureCollection", points.Type)
	assert.Len(t, points.Features, 2)

	require.NoError(t, f.d.SelectArea(context.Background(), "para"))
	data, _, err = f.d.Export()
	require.NoError(t, err)
	var withArea DataExport
	require.NoError(t, json.Unmarshal(data, &withArea))
	require.NotNil(t, withArea.MonitoredArea)
	assert.Len(t, withArea.MonitoredArea.Features, 1)
	assert.Equal(t, 2, f.metrics.Count(analytics.DataExport))
}

func TestStatePersistence(t *testing.T) {
	store := state.NewFileStore(t.TempDir())

	first := newFixture(t, store)
	first.init(t)
	require.NoError(t, first.d.ShowLayer(layer.Points))
	first.d.ApplyFilters("7days", "")
	require.NoError(t, first.d.SelectArea(context.Background(), "para"))
	saved := first.d.Status()
	require.NoError(t, first.d.Shutdown(context.Background()))
	assert.Equal(t, 1, first.metrics.Count(analytics.SystemExit))
	assert.Zero(t, first.clock.Pending())

	snap, ok, err := store.Load(context.Background())
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "para", snap.SelectedArea)
	assert.Equal(t, "7days", snap.SelectedPeriod)
	assert.Equal(t, []string{layer.Points}, snap.ActiveLayers)
	assert.True(t, snap.AutoRefreshEnabled)

	second := newFixture(t, store)
	second.init(t)
	st := second.d.Status()
	assert.Equal(t, "para", st.SelectedArea)
	assert.Equal(t, "7days", st.Period)
	assert.InDelta(t, saved.Center[0], st.Center[0], 1e-9)
	assert.InDelta(t, saved.Center[1], st.Center[1], 1e-9)
	assert.InDelta(t, saved.Zoom, st.Zoom, 1e-9)
	// Selections come back, layers and the area drawing do not.
	assert.Empty(t, st.Visible)
	assert.Empty(t, st.Area)

	sel, ok := second.rec.Last(effect.KindAreaSelector)
	require.True(t, ok)
	assert.Equal(t, "para", sel.Target)
}

func TestPeriodicSave(t *testing.T) {
	store := state.NewFileStore(t.TempDir())
	f := newFixture(t, store, func(c *config.Config) { c.Refresh.Enabled = false })
	f.init(t)

	_, ok, err := store.Load(context.Background())
	require.NoError(t, err)
	assert.False(t, ok)

	f.clock.Advance(5 * time.Minute)
	snap, ok, err := store.Load(context.Background())
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, snap.Timestamp.Equal(start.Add(5*time.Minute)))
	assert.Positive(t, f.metrics.Count(analytics.PerformanceMetric))
}

func TestStatsDrift(t *testing.T) {
	f := newFixture(t, nil, func(c *config.Config) { c.Refresh.Enabled = false })
	f.init(t)
	before := len(f.rec.OfKind(effect.KindStats))

	f.clock.Advance(90 * time.Second)
	assert.Equal(t, before+3, len(f.rec.OfKind(effect.KindStats)))
	assert.GreaterOrEqual(t, f.d.Stats().OnlineUsers, 50)
}

func TestCaptureError(t *testing.T) {
	f := newFixture(t, nil)

	f.d.CaptureError("handler", assert.AnError)
	assert.Empty(t, notifications(f.rec, effect.LevelError))

	f.d.Recovered("handler", "FATAL: state corrupted")
	assert.Equal(t, []string{"Erro crítico detectado no sistema"}, notifications(f.rec, effect.LevelError))
	assert.Equal(t, 2, f.metrics.Count(analytics.RuntimeError))

	f.d.CaptureError("handler", nil)
	assert.Equal(t, 2, f.metrics.Count(analytics.RuntimeError))
}

func TestGuardRecoversTimerPanic(t *testing.T) {
	f := newFixture(t, nil)
	f.clock.After(time.Second, f.d.guard("boom", func() { panic("critical failure") }))

	assert.NotPanics(t, func() { f.clock.Advance(time.Second) })
	assert.Equal(t, 1, f.metrics.Count(analytics.RuntimeError))
	assert.Len(t, notifications(f.rec, effect.LevelError), 1)
}

func TestIsCritical(t *testing.T) {
	for msg, want := range map[string]bool{
		"Critical failure":   true,
		"fatal error":        true,
		"something FATAL":    true,
		"temporary glitch":   false,
		"":                   false,
		"criticism accepted": false,
	} {
		assert.Equal(t, want, IsCritical(msg), msg)
	}
}
