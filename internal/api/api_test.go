package api

import (
	"context"
	"encoding/json"
	"math/rand/v2"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/humatest"
	"github.com/joeblew999/geodash/internal/catalog"
	"github.com/joeblew999/geodash/internal/config"
	"github.com/joeblew999/geodash/internal/dashboard"
	"github.com/joeblew999/geodash/internal/effect"
	"github.com/joeblew999/geodash/internal/geodata"
	"github.com/joeblew999/geodash/internal/humastar"
	"github.com/joeblew999/geodash/internal/schedule"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var files = map[string]string{
	"data/pontos_interesse.geojson": `{"type":"FeatureCollection","features":[
 {"type":"Feature","geometry":{"type":"Point","coordinates":[-48.49,-1.45]},"properties":{"name":"A"}}]}`,
	"data/areas_especiais.geojson": `{"type":"FeatureCollection","features":[]}`,
	"data/rotas.geojson": `{"type":"FeatureCollection","features":[
 {"type":"Feature","geometry":{"type":"LineString","coordinates":[[-48.5,-1.4],[-48.3,-1.2]]},"properties":{}}]}`,
	"data/areas/para.geojson": `{"type":"FeatureCollection","features":[
 {"type":"Feature","geometry":{"type":"Polygon","coordinates":[[[-58.9,-9.8],[-46.0,-9.8],[-46.0,2.6],[-58.9,2.6],[-58.9,-9.8]]]},"properties":{}}]}`,
}

type fixture struct {
	api   humatest.TestAPI
	dash  *dashboard.Dashboard
	clock *schedule.Manual
	rec   *effect.Recorder
}

func newFixture(t *testing.T, initialize bool) *fixture {
	t.Helper()
	dir := t.TempDir()
	for name, body := range files {
		p := filepath.Join(dir, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, []byte(body), 0o644))
	}

	cfg := config.Default()
	loader, err := geodata.New(geodata.Options{Root: dir, Timeout: time.Second})
	require.NoError(t, err)

	clock := schedule.NewManual(time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC))
	rec := &effect.Recorder{}
	dash := dashboard.New(cfg, dashboard.Deps{
		Loader:  loader,
		Clock:   clock,
		Effects: rec,
		Rand:    rand.New(rand.NewPCG(1, 2)),
	})
	if initialize {
		require.NoError(t, dash.Init(context.Background()))
	}
	t.Cleanup(func() { _ = dash.Shutdown(context.Background()) })

	links := humastar.NewLinker("/health")
	hcfg := huma.DefaultConfig("geodash test", Version)
	hcfg.Transformers = append(hcfg.Transformers, links.Transformer())
	_, api := humatest.New(t, hcfg)
	huma.AutoRegister(api, NewAPIHandler(dash, catalog.New(dir)))
	links.Build(api)

	return &fixture{api: api, dash: dash, clock: clock, rec: rec}
}

func decode[T any](t *testing.T, body string) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal([]byte(body), &v))
	return v
}

func TestHealth(t *testing.T) {
	f := newFixture(t, false)
	resp := f.api.Get("/health")
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, "starting", decode[HealthBody](t, resp.Body.String()).Status)
	assert.Contains(t, resp.Result().Header.Values("Link"), `</api/v1/layers>; rel="layers"`)

	require.NoError(t, f.dash.Init(context.Background()))
	resp = f.api.Get("/health")
	body := decode[HealthBody](t, resp.Body.String())
	assert.Equal(t, "ok", body.Status)
	assert.Equal(t, dashboard.ModeReady, body.Mode)
}

func TestRefresh_NotReady(t *testing.T) {
	f := newFixture(t, false)
	resp := f.api.Post("/api/v1/refresh")
	assert.Equal(t, http.StatusServiceUnavailable, resp.Code)
}

func TestLayers(t *testing.T) {
	f := newFixture(t, true)

	resp := f.api.Get("/api/v1/layers")
	require.Equal(t, http.StatusOK, resp.Code)
	layers := decode[[]LayerBody](t, resp.Body.String())
	byName := map[string]LayerBody{}
	for _, l := range layers {
		byName[l.Name] = l
	}
	assert.Equal(t, 1, byName["pontos"].Features)
	assert.True(t, byName["eventos-fogo"].Built)
	assert.False(t, byName["heatmap"].Built)

	resp = f.api.Post("/api/v1/layers/heatmap/toggle")
	require.Equal(t, http.StatusOK, resp.Code)
	body := decode[LayerBody](t, resp.Body.String())
	assert.True(t, body.Visible)
	assert.True(t, body.Built)
	assert.Contains(t, resp.Result().Header.Values("Link"), `</api/v1/layers/heatmap/hide>; rel="hide"; method="POST"; title="Ocultar camada"`)

	resp = f.api.Post("/api/v1/layers/heatmap/hide")
	require.Equal(t, http.StatusOK, resp.Code)
	assert.False(t, decode[LayerBody](t, resp.Body.String()).Visible)

	resp = f.api.Get("/api/v1/layers/rotas")
	require.Equal(t, http.StatusOK, resp.Code)
	detail := decode[LayerDetailBody](t, resp.Body.String())
	require.Len(t, detail.Elements, 1)
	assert.Equal(t, "#00ff00", detail.Elements[0].Style.Color)

	assert.Equal(t, http.StatusNotFound, f.api.Post("/api/v1/layers/nope/toggle").Code)
	assert.Equal(t, http.StatusNotFound, f.api.Get("/api/v1/layers/nope").Code)
	assert.Equal(t, http.StatusNotFound, f.api.Post("/api/v1/layers/nope/hide").Code)
}

func TestBaseLayer(t *testing.T) {
	f := newFixture(t, true)

	resp := f.api.Put("/api/v1/base-layer", map[string]any{"name": "light", "loading": false})
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, "light", decode[BaseLayerBody](t, resp.Body.String()).Active)

	resp = f.api.Put("/api/v1/base-layer", map[string]any{"name": "satellite"})
	assert.Equal(t, http.StatusUnprocessableEntity, resp.Code)
	assert.Equal(t, "light", f.dash.View().Base())
}

func TestAreas(t *testing.T) {
	f := newFixture(t, true)

	resp := f.api.Get("/api/v1/areas")
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Len(t, decode[[]AreaBody](t, resp.Body.String()), 10)

	resp = f.api.Post("/api/v1/areas/para/select")
	require.Equal(t, http.StatusOK, resp.Code)
	body := decode[AreaBody](t, resp.Body.String())
	assert.True(t, body.Current)
	assert.True(t, body.Cached)
	assert.Equal(t, "Pará", body.Name)

	resp = f.api.Get("/api/v1/area-selection")
	sel := decode[SelectionBody](t, resp.Body.String())
	assert.Equal(t, "para", sel.Area)
	assert.Equal(t, "cached-display", sel.State)

	resp = f.api.Post("/api/v1/areas/amapa/select")
	assert.Equal(t, http.StatusBadGateway, resp.Code)

	assert.Equal(t, http.StatusNotFound, f.api.Post("/api/v1/areas/atlantis/select").Code)
	assert.Equal(t, http.StatusNotFound, f.api.Get("/api/v1/areas/atlantis").Code)

	resp = f.api.Put("/api/v1/area-selection", map[string]any{"area": "para", "period": "24h"})
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, "para", decode[SelectionBody](t, resp.Body.String()).Area)

	resp = f.api.Delete("/api/v1/area-selection")
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Empty(t, decode[SelectionBody](t, resp.Body.String()).Area)
}

func TestControls(t *testing.T) {
	f := newFixture(t, true)

	resp := f.api.Post("/api/v1/filters", map[string]any{"period": "24h"})
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, "24h", decode[map[string]any](t, resp.Body.String())["period"])

	resp = f.api.Post("/api/v1/cycle/start")
	require.Equal(t, http.StatusOK, resp.Code)
	cycle := decode[CycleBody](t, resp.Body.String())
	assert.True(t, cycle.Running)
	assert.Equal(t, "eventos-fogo", cycle.Current)
	assert.Len(t, cycle.Layers, 9)

	resp = f.api.Post("/api/v1/keys", map[string]any{"key": " "})
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, dashboard.KeyStopCycle, decode[KeyBody](t, resp.Body.String()).Action)
	assert.False(t, f.dash.Cycler().Running())

	resp = f.api.Post("/api/v1/keys", map[string]any{"key": "q"})
	assert.Empty(t, decode[KeyBody](t, resp.Body.String()).Action)

	resp = f.api.Put("/api/v1/auto-refresh", map[string]any{"enabled": false})
	require.Equal(t, http.StatusOK, resp.Code)
	assert.False(t, decode[AutoRefreshBody](t, resp.Body.String()).Enabled)

	resp = f.api.Put("/api/v1/visibility", map[string]any{"hidden": true})
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, "schedulers paused", decode[MessageBody](t, resp.Body.String()).Message)

	resp = f.api.Post("/api/v1/refresh")
	require.Equal(t, http.StatusOK, resp.Code)
	assert.True(t, f.clock.Now().Equal(decode[AutoRefreshBody](t, resp.Body.String()).LastRefresh))
}

func TestReportError(t *testing.T) {
	f := newFixture(t, true)
	f.rec.Reset()

	resp := f.api.Post("/api/v1/errors", map[string]any{"message": "Fatal: map exploded", "line": 3})
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, 1, f.dash.Analytics().Count("runtime_error"))
	last, ok := f.rec.Last(effect.KindNotify)
	require.True(t, ok)
	assert.Equal(t, "Erro crítico detectado no sistema", last.Message)

	assert.Equal(t, http.StatusUnprocessableEntity, f.api.Post("/api/v1/errors", map[string]any{"message": ""}).Code)
}

func TestExport(t *testing.T) {
	f := newFixture(t, true)

	resp := f.api.Get("/api/v1/export")
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, `attachment; filename="dashboard-dados-2026-03-14.geojson"`, resp.Header().Get("Content-Disposition"))
	out := decode[map[string]any](t, resp.Body.String())
	assert.Nil(t, out["dados_municipais"])
	assert.NotNil(t, out["pontos"])

	resp = f.api.Get("/api/v1/analytics/export")
	require.Equal(t, http.StatusOK, resp.Code)
	assert.True(t, strings.HasPrefix(resp.Header().Get("Content-Disposition"), `attachment; filename="dashboard-analytics-`))
}

func TestAnalyticsEvents(t *testing.T) {
	f := newFixture(t, true)
	for range 3 {
		f.api.Post("/api/v1/layers/alertas/toggle")
	}

	resp := f.api.Get("/api/v1/analytics/events?event=layer_toggle&limit=2")
	require.Equal(t, http.StatusOK, resp.Code)
	page := decode[humastar.PageBody[map[string]any]](t, resp.Body.String())
	assert.Equal(t, 3, page.Total)
	assert.Len(t, page.Data, 2)
	assert.Contains(t, resp.Result().Header.Values("Link"), `</api/v1/analytics/events?offset=2&limit=2>; rel="next"`)

	resp = f.api.Get("/api/v1/analytics")
	require.Equal(t, http.StatusOK, resp.Code)
	report := decode[map[string]any](t, resp.Body.String())
	assert.Equal(t, f.dash.Analytics().Session(), report["session"])
}

func TestStateAndSources(t *testing.T) {
	f := newFixture(t, true)
	f.dash.ApplyFilters("7days", "")

	resp := f.api.Get("/api/v1/state")
	require.Equal(t, http.StatusOK, resp.Code)
	snap := decode[map[string]any](t, resp.Body.String())
	assert.Equal(t, "7days", snap["selectedPeriod"])
	assert.Equal(t, "dark", snap["activeBaseLayer"])

	assert.Equal(t, http.StatusOK, f.api.Post("/api/v1/state/save").Code)

	resp = f.api.Get("/api/v1/sources")
	require.Equal(t, http.StatusOK, resp.Code)
	src := decode[SourcesBody](t, resp.Body.String())
	assert.Len(t, src.Files, 4)
	assert.Empty(t, src.Missing)

	resp = f.api.Get("/api/v1/stats")
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, 2, decode[StatsBody](t, resp.Body.String()).TotalPoints)
}
