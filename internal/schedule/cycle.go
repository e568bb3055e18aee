package schedule

import (
	"fmt"
	"sync"
	"time"

	"github.com/joeblew999/geodash/internal/effect"
	"github.com/joeblew999/geodash/internal/metrics"
	"go.uber.org/zap"
)

// labelDuration is how long the "Exibindo" toast stays up.
const labelDuration = 2 * time.Second

// Layers is what the cycler needs from the layer registry.
type Layers interface {
	Show(name string) error
	Hide(name string) error
	IsVisible(name string) bool
}

// CycleOptions configures a Cycler.
type CycleOptions struct {
	Period time.Duration
	Names  []string
	Labels map[string]string
	// HideOnStop hides the last activated layer when the cycle stops.
	HideOnStop bool
	// FirstTickQuirk always deactivates the last layer of the list when the
	// index is zero, even before anything was activated.
	FirstTickQuirk bool
}

// Cycler shows one layer of a fixed list at a time, advancing every period.
type Cycler struct {
	mu      sync.Mutex
	clock   Clock
	layers  Layers
	effects effect.Sink
	opts    CycleOptions
	log     *zap.Logger

	task    Task
	gen     uint64
	running bool
	paused  bool
	index   int
	prev    string
	onTick  func(name string)
}

// NewCycler creates a stopped cycler.
func NewCycler(clock Clock, layers Layers, effects effect.Sink, opts CycleOptions) *Cycler {
	if effects == nil {
		effects = effect.Discard
	}
	return &Cycler{
		clock:   clock,
		layers:  layers,
		effects: effects,
		opts:    opts,
		log:     zap.L().With(zap.String("component", "cycle")),
	}
}

// OnTick registers a hook called after every activation.
func (c *Cycler) OnTick(fn func(name string)) {
	c.mu.Lock()
	c.onTick = fn
	c.mu.Unlock()
}

// Running reports whether the cycle is on.
func (c *Cycler) Running() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.running
}

// Paused reports whether a running cycle is suspended.
func (c *Cycler) Paused() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.paused
}

// Index is the position of the next layer to activate.
func (c *Cycler) Index() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.index
}

// Current is the layer the cycle last activated.
func (c *Cycler) Current() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.prev
}

// Start hides every cycle layer, activates the first one immediately and
// schedules the rest. It returns false when already running.
func (c *Cycler) Start() bool {
	c.mu.Lock()
	if c.running || len(c.opts.Names) == 0 {
		c.mu.Unlock()
		return false
	}
	for _, name := range c.opts.Names {
		if c.layers.IsVisible(name) {
			_ = c.layers.Hide(name)
		}
	}
	c.running = true
	c.paused = false
	c.index = 0
	c.prev = ""
	hook := c.advanceLocked()
	c.scheduleLocked()
	c.mu.Unlock()

	if hook != nil {
		hook()
	}
	c.effects.Emit(effect.Scheduler("cycle", true))
	c.effects.Emit(effect.Success(fmt.Sprintf("Auto-run iniciado - alternando camadas a cada %s", c.opts.Period)))
	c.log.Info("auto-run started", zap.Duration("period", c.opts.Period), zap.Int("layers", len(c.opts.Names)))
	return true
}

// Stop cancels the cycle and resets the index. It returns false when not
// running.
func (c *Cycler) Stop() bool {
	c.mu.Lock()
	if !c.running {
		c.mu.Unlock()
		return false
	}
	c.cancelLocked()
	c.running = false
	c.paused = false
	c.index = 0
	if c.opts.HideOnStop && c.prev != "" {
		_ = c.layers.Hide(c.prev)
	}
	c.prev = ""
	c.mu.Unlock()

	c.effects.Emit(effect.Scheduler("cycle", false))
	c.effects.Emit(effect.Info("Auto-run parado"))
	c.log.Info("auto-run stopped")
	return true
}

// Toggle starts or stops the cycle and returns the new running state.
func (c *Cycler) Toggle() bool {
	if c.Running() {
		c.Stop()
		return false
	}
	return c.Start()
}

// Pause suspends ticking without losing the position.
func (c *Cycler) Pause() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.running || c.paused {
		return
	}
	c.cancelLocked()
	c.paused = true
	c.log.Debug("auto-run paused")
}

// Resume restarts ticking after Pause.
func (c *Cycler) Resume() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.running || !c.paused {
		return
	}
	c.paused = false
	c.scheduleLocked()
	c.log.Debug("auto-run resumed")
}

func (c *Cycler) scheduleLocked() {
	c.gen++
	gen := c.gen
	c.task = c.clock.Every(c.opts.Period, func() { c.tick(gen) })
}

func (c *Cycler) cancelLocked() {
	if c.task != nil {
		c.task.Cancel()
		c.task = nil
	}
	c.gen++
}

func (c *Cycler) tick(gen uint64) {
	c.mu.Lock()
	if gen != c.gen || !c.running || c.paused {
		c.mu.Unlock()
		return
	}
	hook := c.advanceLocked()
	c.mu.Unlock()

	if hook != nil {
		hook()
	}
}

// advanceLocked deactivates the previous layer, activates names[index] and
// moves the index on. It returns the tick hook to run after unlocking.
func (c *Cycler) advanceLocked() func() {
	names := c.opts.Names
	n := len(names)

	if c.opts.FirstTickQuirk {
		if c.index > 0 {
			_ = c.layers.Hide(names[c.index-1])
		} else {
			_ = c.layers.Hide(names[n-1])
		}
	} else if c.prev != "" {
		_ = c.layers.Hide(c.prev)
	}
	c.prev = ""

	name := names[c.index]
	c.index = (c.index + 1) % n
	metrics.CycleTicksTotal.Inc()

	if err := c.layers.Show(name); err != nil {
		c.log.Warn("auto-run layer unavailable", zap.String("layer", name), zap.Error(err))
		return nil
	}
	c.prev = name

	label := name
	if l, ok := c.opts.Labels[name]; ok {
		label = l
	}
	c.effects.Emit(effect.Notify(effect.LevelInfo, "Exibindo: "+label, labelDuration))

	if hook := c.onTick; hook != nil {
		return func() { hook(name) }
	}
	return nil
}
