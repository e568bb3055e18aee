package layer

import (
	"sort"
	"sync"

	"github.com/joeblew999/geodash/internal/effect"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// ErrUnknownLayer is returned for names with neither a layer nor a factory.
var ErrUnknownLayer = eris.New("layer: unknown layer")

// Factory builds a layer on first use.
type Factory func() *Layer

// Map is the part of the map view the registry drives.
type Map interface {
	Attach(name string) bool
	Detach(name string) bool
	Has(name string) bool
}

// Registry maps layer names to layers. A layer is visible iff it is
// attached to the map.
type Registry struct {
	mu        sync.Mutex
	layers    map[string]*Layer
	factories map[string]Factory
	view      Map
	effects   effect.Sink
	log       *zap.Logger
}

// NewRegistry creates an empty registry driving view.
func NewRegistry(view Map, effects effect.Sink) *Registry {
	if effects == nil {
		effects = effect.Discard
	}
	return &Registry{
		layers:    make(map[string]*Layer),
		factories: make(map[string]Factory),
		view:      view,
		effects:   effects,
		log:       zap.L().With(zap.String("component", "layer")),
	}
}

// Register records a factory for lazy creation. It does not build the layer.
func (r *Registry) Register(name string, f Factory) {
	r.mu.Lock()
	r.factories[name] = f
	r.mu.Unlock()
}

// Ensure returns the layer for name, building it with f (or the registered
// factory when f is nil) if it does not exist yet. The layer stays hidden.
func (r *Registry) Ensure(name string, f Factory) (*Layer, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.ensureLocked(name, f)
}

func (r *Registry) ensureLocked(name string, f Factory) (*Layer, error) {
	if l, ok := r.layers[name]; ok {
		return l, nil
	}
	if f == nil {
		f = r.factories[name]
	}
	if f == nil {
		return nil, eris.Wrapf(ErrUnknownLayer, "layer: ensure %q", name)
	}
	l := f()
	if l == nil {
		return nil, eris.Wrapf(ErrUnknownLayer, "layer: factory for %q built nothing", name)
	}
	r.layers[name] = l
	r.log.Debug("layer created", zap.String("layer", name), zap.Int("elements", l.Len()))
	return l, nil
}

// Get returns an existing layer.
func (r *Registry) Get(name string) (*Layer, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.layers[name]
	return l, ok
}

// Has reports whether a layer exists (built, not merely registered).
func (r *Registry) Has(name string) bool {
	_, ok := r.Get(name)
	return ok
}

// Known reports whether name exists or can be built.
func (r *Registry) Known(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, built := r.layers[name]
	_, lazy := r.factories[name]
	return built || lazy
}

// Replace swaps the layer stored under name. Visibility is kept.
func (r *Registry) Replace(name string, l *Layer) {
	r.mu.Lock()
	r.layers[name] = l
	r.mu.Unlock()
}

// IsVisible reports whether name exists and is attached.
func (r *Registry) IsVisible(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.layers[name]
	return ok && r.view.Has(name)
}

// Show attaches name, building it lazily if needed.
func (r *Registry) Show(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, err := r.ensureLocked(name, nil); err != nil {
		return err
	}
	if r.view.Attach(name) {
		r.effects.Emit(effect.ButtonActive(name, true))
		r.log.Debug("layer shown", zap.String("layer", name))
	}
	return nil
}

// Hide detaches name. Hiding an unknown or hidden layer is a no-op.
func (r *Registry) Hide(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.layers[name]; !ok {
		return nil
	}
	if r.view.Detach(name) {
		r.effects.Emit(effect.ButtonActive(name, false))
		r.log.Debug("layer hidden", zap.String("layer", name))
	}
	return nil
}

// Toggle flips visibility and returns the new state. Unknown names leave
// the map untouched and return ErrUnknownLayer.
func (r *Registry) Toggle(name string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, err := r.ensureLocked(name, nil); err != nil {
		r.log.Warn("toggle of unknown layer ignored", zap.String("layer", name))
		return false, err
	}
	if r.view.Has(name) {
		r.view.Detach(name)
		r.effects.Emit(effect.ButtonActive(name, false))
		return false, nil
	}
	r.view.Attach(name)
	r.effects.Emit(effect.ButtonActive(name, true))
	return true, nil
}

// Names returns every built layer name, sorted.
func (r *Registry) Names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	names := make([]string, 0, len(r.layers))
	for n := range r.layers {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Registered returns every name that exists or can be built, sorted.
func (r *Registry) Registered() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	seen := make(map[string]struct{}, len(r.layers)+len(r.factories))
	for n := range r.layers {
		seen[n] = struct{}{}
	}
	for n := range r.factories {
		seen[n] = struct{}{}
	}
	names := make([]string, 0, len(seen))
	for n := range seen {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Visible returns the names of visible layers, sorted.
func (r *Registry) Visible() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var names []string
	for n := range r.layers {
		if r.view.Has(n) {
			names = append(names, n)
		}
	}
	sort.Strings(names)
	return names
}
