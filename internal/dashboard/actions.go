package dashboard

import (
	"context"
	"fmt"

	"github.com/joeblew999/geodash/internal/analytics"
	"github.com/joeblew999/geodash/internal/area"
	"github.com/joeblew999/geodash/internal/effect"
	"github.com/joeblew999/geodash/internal/layer"
	"github.com/joeblew999/geodash/internal/metrics"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// ToggleLayer flips a layer and returns its new visibility.
func (d *Dashboard) ToggleLayer(name string) (bool, error) {
	visible, err := d.registry.Toggle(name)
	if err != nil {
		return false, err
	}
	d.layerToggled(name, visible)
	return visible, nil
}

// ShowLayer makes a layer visible.
func (d *Dashboard) ShowLayer(name string) error {
	was := d.registry.IsVisible(name)
	if err := d.registry.Show(name); err != nil {
		return err
	}
	if !was {
		d.layerToggled(name, true)
	}
	return nil
}

// HideLayer hides a layer. Unknown or hidden layers are left alone.
func (d *Dashboard) HideLayer(name string) error {
	if !d.registry.IsVisible(name) {
		return nil
	}
	if err := d.registry.Hide(name); err != nil {
		return err
	}
	d.layerToggled(name, false)
	return nil
}

func (d *Dashboard) layerToggled(name string, visible bool) {
	metrics.LayerToggleTotal.WithLabelValues(name).Inc()
	d.analytics.Track(analytics.LayerToggle, map[string]any{"layer": name, "visible": visible})
}

// SwitchBaseLayer activates the light or dark base map.
func (d *Dashboard) SwitchBaseLayer(name string) error {
	from := d.view.Base()
	if err := d.view.SetBase(name); err != nil {
		d.log.Warn("unknown base layer", zap.String("base", name))
		return err
	}
	d.effects.Emit(effect.BaseLayer(name))
	d.analytics.Track(analytics.BaseLayerSwitch, map[string]any{"from": from, "to": name})
	d.log.Info("base layer switched", zap.String("from", from), zap.String("to", name))
	return nil
}

// SelectArea reacts to the area selector. An empty key clears the area.
func (d *Dashboard) SelectArea(ctx context.Context, key string) error {
	d.analytics.Track(analytics.AreaChange, map[string]any{"area": key})
	if key == "" {
		d.ClearArea()
		return nil
	}
	err := d.areas.Select(ctx, key)
	if err != nil && !eris.Is(err, area.ErrSuperseded) {
		d.mu.Lock()
		d.selectedArea = ""
		d.mu.Unlock()
	}
	return err
}

// ClearArea removes the monitored area and resets the selector.
func (d *Dashboard) ClearArea() {
	d.areas.Clear()
	d.effects.Emit(effect.AreaSelector(""))
}

// ApplyFilters restyles the monitoring layers for a period.
func (d *Dashboard) ApplyFilters(period, areaKey string) layer.FilterResult {
	d.rngMu.Lock()
	res := d.registry.ApplyFilters(period, areaKey, d.rng)
	d.rngMu.Unlock()

	d.mu.Lock()
	d.period = period
	d.mu.Unlock()

	d.analytics.Track(analytics.FilterApply, map[string]any{
		"period": period,
		"area":   areaKey,
		"shown":  res.Shown,
		"dimmed": res.Dimmed,
	})
	return res
}

// StartCycle starts auto-run. It returns false when already running.
func (d *Dashboard) StartCycle() bool {
	if !d.cycler.Start() {
		return false
	}
	d.analytics.Track(analytics.AutoRun, map[string]any{"running": true})
	return true
}

// StopCycle stops auto-run. It returns false when not running.
func (d *Dashboard) StopCycle() bool {
	if !d.cycler.Stop() {
		return false
	}
	d.analytics.Track(analytics.AutoRun, map[string]any{"running": false})
	return true
}

// ToggleCycle flips auto-run and returns the new running state.
func (d *Dashboard) ToggleCycle() bool {
	if d.cycler.Running() {
		d.StopCycle()
		return false
	}
	return d.StartCycle()
}

// SetAutoRefresh switches auto-refresh. It reports whether anything changed.
func (d *Dashboard) SetAutoRefresh(on bool) bool {
	if on {
		if !d.refresher.Enable() {
			return false
		}
		d.effects.Emit(effect.Success(fmt.Sprintf("Auto-refresh ativado (%ds)", int(d.cfg.Refresh.Period.Seconds()))))
		return true
	}
	if !d.refresher.Disable() {
		return false
	}
	d.effects.Emit(effect.Info("Auto-refresh desativado"))
	return true
}

// ToggleAutoRefresh flips auto-refresh and returns the new state.
func (d *Dashboard) ToggleAutoRefresh() bool {
	on := !d.refresher.Enabled()
	d.SetAutoRefresh(on)
	return on
}
