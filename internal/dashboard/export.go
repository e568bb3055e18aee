package dashboard

import (
	"context"
	"encoding/json"
	"time"

	"github.com/joeblew999/geodash/internal/analytics"
	"github.com/joeblew999/geodash/internal/effect"
	"github.com/joeblew999/geodash/internal/layer"
	"github.com/joeblew999/geodash/internal/state"
	"github.com/paulmach/orb/geojson"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// municipalLayer is exported when present. No built-in source creates it.
const municipalLayer = "dados-municipais"

// DataExport is the downloadable bundle of the current layer data. Missing
// layers are null.
type DataExport struct {
	Timestamp     time.Time                  `json:"timestamp"`
	BaseLayer     string                     `json:"base_layer"`
	Points        *geojson.FeatureCollection `json:"pontos"`
	Areas         *geojson.FeatureCollection `json:"areas_especiais"`
	Municipal     *geojson.FeatureCollection `json:"dados_municipais"`
	Routes        *geojson.FeatureCollection `json:"rotas"`
	MonitoredArea *geojson.FeatureCollection `json:"area_monitorada"`
}

// ExportFilename names the data export for day t.
func ExportFilename(t time.Time) string {
	return "dashboard-dados-" + t.UTC().Format(time.DateOnly) + ".geojson"
}

// Collect gathers the export bundle.
func (d *Dashboard) Collect() DataExport {
	out := DataExport{
		Timestamp: d.clock.Now().UTC(),
		BaseLayer: d.view.Base(),
		Points:    d.collection(layer.Points),
		Areas:     d.collection(layer.Areas),
		Municipal: d.collection(municipalLayer),
		Routes:    d.collection(layer.Routes),
	}
	if l, ok := d.areas.CurrentLayer(); ok {
		out.MonitoredArea = l.FeatureCollection()
	}
	return out
}

func (d *Dashboard) collection(name string) *geojson.FeatureCollection {
	if l, ok := d.registry.Get(name); ok {
		return l.FeatureCollection()
	}
	return nil
}

// Export renders the bundle as indented JSON with its download filename.
func (d *Dashboard) Export() ([]byte, string, error) {
	out := d.Collect()
	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		d.log.Error("export failed", zap.Error(err))
		d.effects.Emit(effect.ShowError("Erro ao exportar dados: " + err.Error()))
		d.effects.Emit(effect.Error("Erro ao exportar dados"))
		return nil, "", eris.Wrap(err, "dashboard: export")
	}

	name := ExportFilename(out.Timestamp)
	d.analytics.Track(analytics.DataExport, map[string]any{"file": name, "bytes": len(data)})
	d.effects.Emit(effect.Success("Dados exportados com sucesso!"))
	return data, name, nil
}

// Snapshot captures the state that is persisted between runs.
func (d *Dashboard) Snapshot() state.Snapshot {
	center, zoom := d.view.Center()
	d.mu.Lock()
	area, period := d.selectedArea, d.period
	d.mu.Unlock()

	return state.Snapshot{
		Timestamp:          d.clock.Now().UTC(),
		MapCenter:          []float64{center.Lat(), center.Lon()},
		MapZoom:            zoom,
		ActiveBaseLayer:    d.view.Base(),
		SelectedArea:       area,
		SelectedPeriod:     period,
		ActiveLayers:       d.registry.Visible(),
		AutoRefreshEnabled: d.refresher.Enabled(),
		AutoRunEnabled:     d.cycler.Running(),
	}
}

// SaveState writes the snapshot to the store. Failures are logged and
// returned but never surface to the page.
func (d *Dashboard) SaveState(ctx context.Context) error {
	if err := d.store.Save(ctx, d.Snapshot()); err != nil {
		d.log.Warn("saving state failed", zap.Error(err))
		return eris.Wrap(err, "dashboard: save state")
	}
	d.log.Debug("state saved")
	return nil
}
