package dashboard

import (
	"context"
	"runtime"
	"time"

	"github.com/joeblew999/geodash/internal/analytics"
	"github.com/joeblew999/geodash/internal/area"
	"github.com/joeblew999/geodash/internal/effect"
	"github.com/joeblew999/geodash/internal/geodata"
	"github.com/joeblew999/geodash/internal/layer"
	"github.com/joeblew999/geodash/internal/metrics"
	"github.com/joeblew999/geodash/internal/schedule"
	"github.com/joeblew999/geodash/internal/stats"
	"github.com/paulmach/orb"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

const dataStatsKey = "data"

func (d *Dashboard) paths() geodata.Paths {
	return geodata.Paths{Points: d.cfg.Data.Points, Areas: d.cfg.Data.Areas, Routes: d.cfg.Data.Routes}
}

// Init runs the startup sequence. On failure it emits a blocking InitError
// effect and schedules a reduced fallback start after init.fallback_delay.
func (d *Dashboard) Init(ctx context.Context) (err error) {
	d.mu.Lock()
	if d.mode != ModeStarting {
		d.mu.Unlock()
		return ErrInitialized
	}
	d.mu.Unlock()

	d.analytics.Track(analytics.SystemStart, map[string]any{
		"goVersion": runtime.Version(),
		"platform":  runtime.GOOS + "/" + runtime.GOARCH,
		"cpus":      runtime.NumCPU(),
	})

	defer func() {
		if r := recover(); r != nil {
			err = eris.Errorf("dashboard: init panic: %v", r)
		}
		if err != nil {
			d.initFailed(err)
		}
	}()

	if d.loader == nil {
		return eris.New("dashboard: no data loader")
	}
	if err := ctx.Err(); err != nil {
		return eris.Wrap(err, "dashboard: init")
	}
	if err := d.view.SetBase(d.cfg.BaseLayer); err != nil {
		return eris.Wrap(err, "dashboard: init base layer")
	}

	done := d.analytics.Measure("init")
	data := d.loader.LoadBase(ctx, d.paths())
	d.buildBase(data)
	layer.RegisterMonitoring(d.registry, d.cfg.LayerLabels)

	s := d.dataStats().Sanitize()
	d.cache.Set(dataStatsKey, s)
	d.setStats(s)

	if d.cfg.Refresh.Enabled {
		d.refresher.Enable()
	}
	d.restore(ctx)
	d.startTasks()

	at := d.clock.Now()
	d.mu.Lock()
	d.mode = ModeReady
	d.lastRefresh = at
	d.mu.Unlock()
	d.effects.Emit(effect.Refreshed(at))

	elapsed := done()
	d.analytics.Track(analytics.DashboardReady, map[string]any{
		"loadTime": elapsed.Milliseconds(),
		"points":   len(data.Points.Features),
		"areas":    len(data.Areas.Features),
		"routes":   len(data.Routes.Features),
	})
	d.effects.Emit(effect.Success("Dashboard carregado e pronto para uso!"))
	d.log.Info("dashboard ready",
		zap.Int("layers", len(d.registry.Names())),
		zap.Duration("elapsed", elapsed),
	)
	return nil
}

func (d *Dashboard) initFailed(err error) {
	d.mu.Lock()
	d.mode = ModeFailed
	d.initErr = err
	d.mu.Unlock()

	d.log.Error("dashboard init failed", zap.Error(err))
	d.effects.Emit(effect.InitError(err.Error()))
	d.analytics.Track(analytics.InitError, map[string]any{"error": err.Error()})

	task := d.clock.After(d.cfg.Init.FallbackDelay, d.guard("init-fallback", d.fallback))
	d.mu.Lock()
	d.tasks = append(d.tasks, task)
	d.mu.Unlock()
}

// fallback brings up the bare base map with simulated statistics.
func (d *Dashboard) fallback() {
	d.mu.Lock()
	if d.mode != ModeFailed {
		d.mu.Unlock()
		return
	}
	d.mode = ModeFallback
	d.mu.Unlock()

	d.view.SetView(home(d.cfg), d.cfg.View.Zoom)
	d.setStats(d.producer.Simulated())
	d.effects.Emit(effect.Warning("Dashboard iniciado em modo de segurança"))
	d.log.Warn("dashboard started in fallback mode")
}

// buildBase (re)creates the three base data layers. Visibility is kept
// because it lives on the map view, keyed by name.
func (d *Dashboard) buildBase(data geodata.BaseData) {
	labels := d.cfg.LayerLabels
	d.registry.Replace(layer.Points, layer.PointsLayer(data.Points, labels[layer.Points]))
	d.registry.Replace(layer.Areas, layer.AreasLayer(data.Areas, labels[layer.Areas]))
	d.registry.Replace(layer.Routes, layer.RoutesLayer(data.Routes, labels[layer.Routes]))
}

// Refresh reloads the base data and recomputes statistics.
func (d *Dashboard) Refresh(ctx context.Context) error {
	switch d.Mode() {
	case ModeStarting, ModeFailed:
		return ErrNotReady
	}

	done := d.analytics.Measure("refresh")
	d.effects.Emit(effect.Loading(true))
	defer d.effects.Emit(effect.Loading(false))

	if err := ctx.Err(); err != nil {
		metrics.RefreshTotal.WithLabelValues("fail").Inc()
		d.log.Warn("refresh aborted", zap.Error(err))
		d.effects.Emit(effect.ShowError("Erro ao atualizar dados: " + err.Error()))
		d.effects.Emit(effect.Error("Erro ao atualizar dados"))
		return eris.Wrap(err, "dashboard: refresh")
	}

	data := d.loader.LoadBase(ctx, d.paths())
	d.buildBase(data)

	s := d.dataStats().Sanitize()
	d.cache.Set(dataStatsKey, s)
	if _, ok := d.areas.Current(); !ok {
		d.setStats(s)
	}

	at := d.clock.Now()
	d.mu.Lock()
	d.lastRefresh = at
	d.mu.Unlock()

	metrics.RefreshTotal.WithLabelValues("ok").Inc()
	d.analytics.Track(analytics.DataRefresh, map[string]any{
		"points":   len(data.Points.Features),
		"areas":    len(data.Areas.Features),
		"routes":   len(data.Routes.Features),
		"duration": done().Milliseconds(),
	})
	d.effects.Emit(effect.Refreshed(at))
	d.effects.Emit(effect.Success("Dados atualizados com sucesso!"))
	d.log.Info("data refreshed")
	return nil
}

// SetPageHidden pauses both schedulers while the page is hidden and
// resumes them afterwards. Their logical state survives.
func (d *Dashboard) SetPageHidden(hidden bool) {
	if hidden {
		d.cycler.Pause()
		d.refresher.Pause()
		d.log.Info("page hidden, pausing schedulers")
		return
	}
	d.cycler.Resume()
	d.refresher.Resume()
	d.log.Info("page visible, resuming schedulers")
}

// startTasks schedules the housekeeping timers.
func (d *Dashboard) startTasks() {
	tasks := []schedule.Task{
		d.clock.Every(d.cfg.State.SavePeriod, d.guard("state-save", func() {
			if err := d.SaveState(d.bg); err != nil {
				d.analytics.Track(analytics.BackgroundError, map[string]any{"task": "state-save", "error": err.Error()})
			}
		})),
		d.clock.Every(d.cfg.Stats.CleanupPeriod, d.guard("stats-cleanup", func() {
			if n := d.cache.Cleanup(); n > 0 {
				d.log.Debug("stats cache cleaned", zap.Int("removed", n))
			}
		})),
		d.clock.Every(driftPeriod, d.guard("stats-drift", d.drift)),
		d.clock.Every(memoryPeriod, d.guard("memory-check", d.memoryCheck)),
	}
	d.mu.Lock()
	d.tasks = append(d.tasks, tasks...)
	d.mu.Unlock()
}

// drift nudges the live figures between refreshes.
func (d *Dashboard) drift() {
	d.mu.Lock()
	s := d.current
	d.mu.Unlock()
	d.setStats(d.producer.Drift(s))
}

func (d *Dashboard) memoryCheck() {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	d.analytics.Track(analytics.PerformanceMetric, map[string]any{
		"operation": "memory",
		"heapMB":    m.HeapAlloc >> 20,
		"sysMB":     m.Sys >> 20,
		"goroutine": runtime.NumGoroutine(),
	})
}

// Shutdown saves the state, cancels every timer and records the exit.
func (d *Dashboard) Shutdown(ctx context.Context) error {
	err := d.SaveState(ctx)

	d.cycler.Pause()
	d.refresher.Pause()
	d.mu.Lock()
	tasks := d.tasks
	d.tasks = nil
	d.mu.Unlock()
	for _, t := range tasks {
		t.Cancel()
	}
	d.cancel()

	d.analytics.Track(analytics.SystemExit, map[string]any{
		"sessionDuration": int64(d.analytics.SessionDuration() / time.Second),
	})
	d.log.Info("dashboard stopped")
	if err != nil {
		return eris.Wrap(err, "dashboard: shutdown")
	}
	return nil
}

// restore applies the persisted selections and view. Layer visibility is
// never restored.
func (d *Dashboard) restore(ctx context.Context) {
	snap, ok, err := d.store.Load(ctx)
	if err != nil {
		d.log.Warn("restoring state failed", zap.Error(err))
		return
	}
	if !ok {
		return
	}

	d.mu.Lock()
	if snap.SelectedArea != "" {
		d.selectedArea = snap.SelectedArea
	}
	if snap.SelectedPeriod != "" {
		d.period = snap.SelectedPeriod
	}
	d.mu.Unlock()

	if snap.SelectedArea != "" {
		d.effects.Emit(effect.AreaSelector(snap.SelectedArea))
	}
	if len(snap.MapCenter) == 2 && snap.MapZoom > 0 {
		d.view.SetView(orb.Point{snap.MapCenter[1], snap.MapCenter[0]}, snap.MapZoom)
		d.effects.Emit(effect.View(d.view.State()))
	}
	d.log.Info("state restored",
		zap.String("area", snap.SelectedArea),
		zap.String("period", snap.SelectedPeriod),
		zap.Time("saved", snap.Timestamp),
	)
}

func (d *Dashboard) areaSelected(cfg area.Config, cached bool) {
	d.mu.Lock()
	d.selectedArea = cfg.Key
	d.mu.Unlock()
	d.setStats(d.statsFor("area:"+cfg.Key, func() stats.Stats { return d.producer.ForArea(cfg.Key) }))
	d.log.Debug("area selected", zap.String("area", cfg.Key), zap.Bool("cached", cached))
}

func (d *Dashboard) areaCleared() {
	d.mu.Lock()
	d.selectedArea = ""
	d.mu.Unlock()
	d.setStats(d.statsFor(dataStatsKey, d.dataStats))
}

// guard wraps a timer callback so a panic is captured instead of killing
// the process.
func (d *Dashboard) guard(name string, fn func()) func() {
	return func() {
		defer func() {
			if r := recover(); r != nil {
				d.CaptureError(name, eris.Errorf("panic: %v", r))
			}
		}()
		fn()
	}
}
