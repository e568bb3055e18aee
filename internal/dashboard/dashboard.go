// Package dashboard composes the map view, layer registry, area controller,
// schedulers, statistics and analytics into the running dashboard.
//
// Every user or timer action enters through a Dashboard method. Components
// report what the page should do by emitting effects; the dashboard never
// renders anything itself.
package dashboard

import (
	"context"
	"math/rand/v2"
	"sort"
	"sync"
	"time"

	"github.com/joeblew999/geodash/internal/analytics"
	"github.com/joeblew999/geodash/internal/area"
	"github.com/joeblew999/geodash/internal/config"
	"github.com/joeblew999/geodash/internal/effect"
	"github.com/joeblew999/geodash/internal/geodata"
	"github.com/joeblew999/geodash/internal/layer"
	"github.com/joeblew999/geodash/internal/mapview"
	"github.com/joeblew999/geodash/internal/schedule"
	"github.com/joeblew999/geodash/internal/state"
	"github.com/joeblew999/geodash/internal/stats"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

var (
	// ErrNotReady is returned by operations that need a completed Init.
	ErrNotReady = eris.New("dashboard: not ready")
	// ErrInitialized is returned when Init runs twice.
	ErrInitialized = eris.New("dashboard: already initialized")
)

// Mode is the startup state of the dashboard.
type Mode string

const (
	ModeStarting Mode = "starting"
	ModeReady    Mode = "ready"
	ModeFailed   Mode = "failed"
	ModeFallback Mode = "fallback"
)

// Intervals of the housekeeping tasks that are not configurable.
const (
	driftPeriod  = 30 * time.Second
	memoryPeriod = 5 * time.Minute
)

// Loader is what the dashboard needs from the GeoData loader.
type Loader interface {
	LoadBase(ctx context.Context, p geodata.Paths) geodata.BaseData
	Fetch(ctx context.Context, path string) (*geojson.FeatureCollection, error)
}

// Deps are the collaborators a Dashboard is built from. Zero values get
// working defaults except Loader, which is required.
type Deps struct {
	Loader    Loader
	Clock     schedule.Clock
	Store     state.Store
	Effects   effect.Sink
	Analytics *analytics.Sink
	Rand      *rand.Rand
}

// Dashboard is the application context.
type Dashboard struct {
	cfg       *config.Config
	clock     schedule.Clock
	loader    Loader
	store     state.Store
	effects   effect.Sink
	analytics *analytics.Sink
	log       *zap.Logger

	view      *mapview.View
	registry  *layer.Registry
	areas     *area.Controller
	cycler    *schedule.Cycler
	refresher *schedule.Refresher
	producer  *stats.Producer
	cache     *stats.Cache

	rngMu sync.Mutex
	rng   *rand.Rand

	bg     context.Context
	cancel context.CancelFunc

	mu           sync.Mutex
	mode         Mode
	initErr      error
	current      stats.Stats
	selectedArea string
	period       string
	lastRefresh  time.Time
	tasks        []schedule.Task
}

// New wires a dashboard from cfg. Nothing is loaded until Init.
func New(cfg *config.Config, deps Deps) *Dashboard {
	if deps.Clock == nil {
		deps.Clock = schedule.Real{}
	}
	if deps.Store == nil {
		deps.Store = state.Nop{}
	}
	if deps.Effects == nil {
		deps.Effects = effect.Discard
	}
	if deps.Analytics == nil {
		deps.Analytics = analytics.NewSink(cfg.Analytics.History, deps.Clock.Now)
	}
	if deps.Rand == nil {
		deps.Rand = rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), 0))
	}

	d := &Dashboard{
		cfg:       cfg,
		clock:     deps.Clock,
		loader:    deps.Loader,
		store:     deps.Store,
		analytics: deps.Analytics,
		log:       zap.L().With(zap.String("component", "dashboard")),
		rng:       deps.Rand,
		producer:  stats.NewProducer(rand.New(rand.NewPCG(deps.Rand.Uint64(), deps.Rand.Uint64()))),
		cache:     stats.NewCache(cfg.Stats.CacheTTL, deps.Clock.Now),
		mode:      ModeStarting,
		period:    "all",
	}
	d.bg, d.cancel = context.WithCancel(context.Background())
	d.effects = &trackingSink{next: deps.Effects, analytics: deps.Analytics}

	d.view = mapview.New(home(cfg), cfg.View.Zoom, cfg.BaseLayer)
	d.registry = layer.NewRegistry(d.view, d.effects)
	d.areas = area.NewController(areaConfigs(cfg), deps.Loader, d.view, d.effects, area.Options{
		Padding:    cfg.View.FitPadding,
		MaxZoom:    cfg.View.FitMaxZoom,
		HomeCenter: home(cfg),
		HomeZoom:   cfg.View.Zoom,
		Now:        deps.Clock.Now,
		OnSelect:   d.areaSelected,
		OnClear:    d.areaCleared,
	})
	d.cycler = schedule.NewCycler(d.clock, d.registry, d.effects, schedule.CycleOptions{
		Period:         cfg.Cycle.Period,
		Names:          cfg.Cycle.Layers,
		Labels:         cfg.LayerLabels,
		HideOnStop:     cfg.Cycle.HideOnStop,
		FirstTickQuirk: cfg.Cycle.PreserveFirstTickQuirk,
	})
	d.refresher = schedule.NewRefresher(d.clock, cfg.Refresh.Period, d.guard("auto-refresh", func() {
		_ = d.Refresh(d.bg)
	}), d.effects)
	return d
}

// home converts the configured [lat, lng] center to a point.
func home(cfg *config.Config) orb.Point {
	return orb.Point{cfg.View.Center[1], cfg.View.Center[0]}
}

func areaConfigs(cfg *config.Config) []area.Config {
	out := make([]area.Config, 0, len(cfg.Areas))
	for key, a := range cfg.Areas {
		out = append(out, area.Config{Key: key, File: a.File, Name: a.Name, Color: a.Color})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}

// Config returns the configuration the dashboard was built with.
func (d *Dashboard) Config() *config.Config { return d.cfg }

// View returns the map view model.
func (d *Dashboard) View() *mapview.View { return d.view }

// Layers returns the layer registry.
func (d *Dashboard) Layers() *layer.Registry { return d.registry }

// Areas returns the area controller.
func (d *Dashboard) Areas() *area.Controller { return d.areas }

// Cycler returns the auto-run scheduler.
func (d *Dashboard) Cycler() *schedule.Cycler { return d.cycler }

// Refresher returns the auto-refresh scheduler.
func (d *Dashboard) Refresher() *schedule.Refresher { return d.refresher }

// Analytics returns the analytics sink.
func (d *Dashboard) Analytics() *analytics.Sink { return d.analytics }

// StatsCache returns the statistics cache.
func (d *Dashboard) StatsCache() *stats.Cache { return d.cache }

// Mode reports the startup state.
func (d *Dashboard) Mode() Mode {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.mode
}

// Ready reports whether Init completed.
func (d *Dashboard) Ready() bool {
	return d.Mode() == ModeReady
}

// Stats returns the figures currently on the stat cards.
func (d *Dashboard) Stats() stats.Stats {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.current
}

// LastRefresh returns when data was last (re)loaded.
func (d *Dashboard) LastRefresh() time.Time {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.lastRefresh
}

// Status is a read-only summary of the whole dashboard.
type Status struct {
	Mode         Mode        `json:"mode" doc:"Startup state" enum:"starting,ready,failed,fallback"`
	InitError    string      `json:"initError,omitempty" doc:"Startup failure message"`
	BaseLayer    string      `json:"baseLayer" doc:"Active base layer" enum:"light,dark"`
	Center       []float64   `json:"center" doc:"Map center as [lat, lng]"`
	Zoom         float64     `json:"zoom" doc:"Map zoom level"`
	Visible      []string    `json:"visible" doc:"Visible layer names"`
	SelectedArea string      `json:"selectedArea" doc:"Area selector value"`
	Area         string      `json:"area" doc:"Area currently drawn on the map"`
	AreaState    string      `json:"areaState" doc:"Area controller state" enum:"idle,loading,cached-display"`
	Period       string      `json:"period" doc:"Period filter value"`
	AutoRefresh  bool        `json:"autoRefresh" doc:"Auto-refresh enabled"`
	AutoRun      bool        `json:"autoRun" doc:"Auto-run cycling"`
	CycleLayer   string      `json:"cycleLayer,omitempty" doc:"Layer shown by auto-run"`
	LastRefresh  time.Time   `json:"lastRefresh" doc:"Last data load"`
	Stats        stats.Stats `json:"stats" doc:"Stat card figures"`
	Session      string      `json:"session" doc:"Analytics session id"`
}

// Status summarises the dashboard.
func (d *Dashboard) Status() Status {
	center, zoom := d.view.Center()
	current, _ := d.areas.Current()

	d.mu.Lock()
	s := Status{
		Mode:         d.mode,
		SelectedArea: d.selectedArea,
		Period:       d.period,
		LastRefresh:  d.lastRefresh,
		Stats:        d.current,
	}
	if d.initErr != nil {
		s.InitError = d.initErr.Error()
	}
	d.mu.Unlock()

	s.BaseLayer = d.view.Base()
	s.Center = []float64{center.Lat(), center.Lon()}
	s.Zoom = zoom
	s.Visible = d.registry.Visible()
	s.Area = current
	s.AreaState = d.areas.State().String()
	s.AutoRefresh = d.refresher.Enabled()
	s.AutoRun = d.cycler.Running()
	if s.AutoRun {
		s.CycleLayer = d.cycler.Current()
	}
	s.Session = d.analytics.Session()
	return s
}

func (d *Dashboard) setStats(s stats.Stats) {
	s = s.Sanitize()
	d.mu.Lock()
	d.current = s
	d.mu.Unlock()
	d.effects.Emit(effect.Stats(s))
}

// statsFor serves key from the stats cache, computing it on a miss.
func (d *Dashboard) statsFor(key string, compute func() stats.Stats) stats.Stats {
	if s, ok := d.cache.Get(key); ok {
		return s
	}
	s := compute().Sanitize()
	d.cache.Set(key, s)
	return s
}

func (d *Dashboard) dataStats() stats.Stats {
	return d.producer.FromData(d.layerLen(layer.Points), d.layerLen(layer.Areas), d.layerLen(layer.Routes))
}

func (d *Dashboard) layerLen(name string) int {
	if l, ok := d.registry.Get(name); ok {
		return l.Len()
	}
	return 0
}
