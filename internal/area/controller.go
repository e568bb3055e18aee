package area

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/joeblew999/geodash/internal/effect"
	"github.com/joeblew999/geodash/internal/geodata"
	"github.com/joeblew999/geodash/internal/layer"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

var (
	// ErrUnknownArea is returned for keys missing from the area table.
	ErrUnknownArea = eris.New("area: unknown area")
	// ErrSuperseded is returned when a newer selection replaced a pending load.
	ErrSuperseded = eris.New("area: selection superseded")
)

// State of the controller.
type State int

const (
	Idle State = iota
	Loading
	CachedDisplay
)

func (s State) String() string {
	switch s {
	case Loading:
		return "loading"
	case CachedDisplay:
		return "cached-display"
	default:
		return "idle"
	}
}

// LayerPrefix namespaces area layers on the map.
const LayerPrefix = "area:"

// Fetcher loads a FeatureCollection strictly.
type Fetcher interface {
	Fetch(ctx context.Context, path string) (*geojson.FeatureCollection, error)
}

// View is the part of the map the controller drives.
type View interface {
	Attach(name string) bool
	Detach(name string) bool
	FitBounds(b orb.Bound, padding, maxZoom float64) float64
	SetView(center orb.Point, zoom float64)
}

// Options configures a Controller.
type Options struct {
	Padding     float64
	MaxZoom     float64
	HomeCenter  orb.Point
	HomeZoom    float64
	Now         func() time.Time
	OnSelect    func(cfg Config, cached bool)
	OnClear     func()
	OnLoadError func(key string, err error)
}

// Controller owns the current monitored area.
type Controller struct {
	mu      sync.Mutex
	configs map[string]Config
	cache   *Cache
	fetcher Fetcher
	view    View
	effects effect.Sink
	opts    Options
	log     *zap.Logger

	state   State
	current string
	pending string
	gen     uint64
}

// NewController creates an idle controller over the given area table.
func NewController(configs []Config, fetcher Fetcher, view View, effects effect.Sink, opts Options) *Controller {
	if effects == nil {
		effects = effect.Discard
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	m := make(map[string]Config, len(configs))
	for _, c := range configs {
		m[c.Key] = c
	}
	return &Controller{
		configs: m,
		cache:   NewCache(),
		fetcher: fetcher,
		view:    view,
		effects: effects,
		opts:    opts,
		log:     zap.L().With(zap.String("component", "area")),
	}
}

// Configs returns the area table sorted by key.
func (c *Controller) Configs() []Config {
	out := make([]Config, 0, len(c.configs))
	for _, cfg := range c.configs {
		out = append(out, cfg)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}

// Config looks up one area.
func (c *Controller) Config(key string) (Config, bool) {
	cfg, ok := c.configs[key]
	return cfg, ok
}

// Cache exposes the area cache.
func (c *Controller) Cache() *Cache { return c.cache }

// State returns the controller state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Pending returns the key being fetched, if any.
func (c *Controller) Pending() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pending
}

// Current returns the key of the displayed area, if any.
func (c *Controller) Current() (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current, c.current != ""
}

// CurrentLayer returns the displayed area layer, if any.
func (c *Controller) CurrentLayer() (*layer.Layer, bool) {
	c.mu.Lock()
	key := c.current
	c.mu.Unlock()
	if key == "" {
		return nil, false
	}
	c.cache.mu.RLock()
	defer c.cache.mu.RUnlock()
	e, ok := c.cache.entries[key]
	if !ok {
		return nil, false
	}
	return e.Layer, true
}

// Select displays area key, fetching it on first use. Only the most recent
// selection is ever attached.
func (c *Controller) Select(ctx context.Context, key string) error {
	cfg, ok := c.configs[key]
	if !ok {
		c.log.Warn("unknown area selected", zap.String("area", key))
		c.effects.Emit(effect.ShowError(fmt.Sprintf("Erro ao carregar %s: Configuração não encontrada para área: %s", key, key)))
		c.effects.Emit(effect.AreaSelector(""))
		return eris.Wrapf(ErrUnknownArea, "area: select %q", key)
	}

	c.mu.Lock()
	c.detachLocked()
	c.gen++
	gen := c.gen

	if e, hit := c.cache.Get(key); hit {
		c.showLocked(cfg, e.Layer)
		c.mu.Unlock()
		c.log.Debug("area shown from cache", zap.String("area", key))
		c.selected(cfg, true)
		return nil
	}

	c.state = Loading
	c.pending = key
	c.mu.Unlock()

	c.effects.Emit(effect.Loading(true))
	c.log.Info("loading area", zap.String("area", key), zap.String("file", cfg.File))
	fc, err := c.fetcher.Fetch(ctx, cfg.File)
	c.effects.Emit(effect.Loading(false))

	c.mu.Lock()
	stale := gen != c.gen
	if err != nil {
		if !stale {
			c.state = Idle
			c.pending = ""
		}
		c.mu.Unlock()
		if stale {
			return eris.Wrapf(ErrSuperseded, "area: load %q", key)
		}
		c.log.Warn("area load failed", zap.String("area", key), zap.Error(err))
		c.effects.Emit(effect.ShowError(fmt.Sprintf("Erro ao carregar %s: %s", key, loadMessage(cfg, err))))
		c.effects.Emit(effect.AreaSelector(""))
		if c.opts.OnLoadError != nil {
			c.opts.OnLoadError(key, err)
		}
		return eris.Wrapf(err, "area: load %q", key)
	}

	e := c.cache.Put(key, BuildLayer(cfg, fc), c.opts.Now())
	if stale {
		c.mu.Unlock()
		c.log.Debug("discarding superseded area response", zap.String("area", key))
		return eris.Wrapf(ErrSuperseded, "area: load %q", key)
	}
	c.pending = ""
	c.showLocked(cfg, e.Layer)
	c.mu.Unlock()

	c.log.Info("area loaded", zap.String("area", key), zap.Int("features", len(fc.Features)))
	c.selected(cfg, false)
	return nil
}

// Clear removes the current area and returns to the home view.
func (c *Controller) Clear() {
	c.mu.Lock()
	c.detachLocked()
	c.gen++
	c.state = Idle
	c.pending = ""
	c.view.SetView(c.opts.HomeCenter, c.opts.HomeZoom)
	c.mu.Unlock()

	c.effects.Emit(effect.AreaInfo("", false))
	if c.opts.OnClear != nil {
		c.opts.OnClear()
	}
}

func (c *Controller) detachLocked() {
	if c.current != "" {
		c.view.Detach(LayerPrefix + c.current)
		c.current = ""
	}
}

func (c *Controller) showLocked(cfg Config, l *layer.Layer) {
	c.view.Attach(LayerPrefix + cfg.Key)
	if b, ok := l.Bound(); ok {
		c.view.FitBounds(b, c.opts.Padding, c.opts.MaxZoom)
	}
	c.current = cfg.Key
	c.state = CachedDisplay
}

func (c *Controller) selected(cfg Config, cached bool) {
	c.effects.Emit(effect.AreaInfo(cfg.Name, true))
	if c.opts.OnSelect != nil {
		c.opts.OnSelect(cfg, cached)
	}
}

// BuildLayer styles an area boundary with the area color.
func BuildLayer(cfg Config, fc *geojson.FeatureCollection) *layer.Layer {
	return layer.New(LayerPrefix+cfg.Key, cfg.Name, layer.KindArea, fc, func(*geojson.Feature) layer.Style {
		return layer.Style{Color: cfg.Color, Weight: 3, FillColor: cfg.Color, FillOpacity: 0.1, DashArray: "10, 5"}
	})
}

func loadMessage(cfg Config, err error) string {
	var se *geodata.StatusError
	if errors.As(err, &se) {
		return fmt.Sprintf("Erro %d ao carregar %s", se.Code, cfg.Name)
	}
	return err.Error()
}
