// Package mapview models what the browser map currently shows: which layers
// are attached, which base layer is active and where the view is centered.
package mapview

import (
	"sort"
	"sync"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/maptile"
	"github.com/rotisserie/eris"
)

// ErrUnknownBase is returned when switching to a base layer that does not exist.
var ErrUnknownBase = eris.New("mapview: unknown base layer")

// Base layer names.
const (
	BaseLight = "light"
	BaseDark  = "dark"
)

// BaseLayer is a tile source the page can show underneath the data layers.
type BaseLayer struct {
	Name        string `json:"name"`
	URL         string `json:"url"`
	Attribution string `json:"attribution"`
	MaxZoom     int    `json:"maxZoom"`
}

// BaseLayers are the two tile sources of the dashboard.
var BaseLayers = map[string]BaseLayer{
	BaseLight: {
		Name:        BaseLight,
		URL:         "https://{s}.tile.openstreetmap.org/{z}/{x}/{y}.png",
		Attribution: "© OpenStreetMap contributors",
		MaxZoom:     19,
	},
	BaseDark: {
		Name:        BaseDark,
		URL:         "https://{s}.basemaps.cartocdn.com/dark_all/{z}/{x}/{y}{r}.png",
		Attribution: "© OpenStreetMap contributors © CARTO",
		MaxZoom:     19,
	},
}

// Viewport is the pixel size used for fit-bounds calculations.
type Viewport struct {
	Width, Height float64
}

// DefaultViewport is a typical desktop map panel.
var DefaultViewport = Viewport{Width: 1024, Height: 768}

// State is a snapshot of the view.
type State struct {
	Center   orb.Point `json:"center"`
	Zoom     float64   `json:"zoom"`
	Base     string    `json:"base"`
	Attached []string  `json:"attached"`
}

// View is safe for concurrent use.
type View struct {
	mu       sync.RWMutex
	attached map[string]struct{}
	base     string
	center   orb.Point
	zoom     float64
	viewport Viewport
}

// New creates a view. center is lon/lat.
func New(center orb.Point, zoom float64, base string) *View {
	if _, ok := BaseLayers[base]; !ok {
		base = BaseDark
	}
	return &View{
		attached: make(map[string]struct{}),
		base:     base,
		center:   center,
		zoom:     zoom,
		viewport: DefaultViewport,
	}
}

// Attach adds a layer to the map. It reports whether anything changed.
func (v *View) Attach(name string) bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	if _, ok := v.attached[name]; ok {
		return false
	}
	v.attached[name] = struct{}{}
	return true
}

// Detach removes a layer from the map. It reports whether anything changed.
func (v *View) Detach(name string) bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	if _, ok := v.attached[name]; !ok {
		return false
	}
	delete(v.attached, name)
	return true
}

// Has reports whether name is attached.
func (v *View) Has(name string) bool {
	v.mu.RLock()
	defer v.mu.RUnlock()
	_, ok := v.attached[name]
	return ok
}

// Attached returns the attached layer names, sorted.
func (v *View) Attached() []string {
	v.mu.RLock()
	defer v.mu.RUnlock()
	names := make([]string, 0, len(v.attached))
	for n := range v.attached {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Base returns the active base layer name.
func (v *View) Base() string {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.base
}

// SetBase switches the base layer. Exactly one base layer is active.
func (v *View) SetBase(name string) error {
	if _, ok := BaseLayers[name]; !ok {
		return eris.Wrapf(ErrUnknownBase, "mapview: set base %q", name)
	}
	v.mu.Lock()
	v.base = name
	v.mu.Unlock()
	return nil
}

// SetView moves the map.
func (v *View) SetView(center orb.Point, zoom float64) {
	v.mu.Lock()
	v.center = center
	v.zoom = zoom
	v.mu.Unlock()
}

// Center returns the current center (lon/lat) and zoom.
func (v *View) Center() (orb.Point, float64) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.center, v.zoom
}

// State returns a copy of the whole view.
func (v *View) State() State {
	center, zoom := v.Center()
	return State{Center: center, Zoom: zoom, Base: v.Base(), Attached: v.Attached()}
}

// FitBounds centers the view on b at the largest whole zoom level, not above
// maxZoom, at which b fits the viewport inset by padding pixels. It returns
// the chosen zoom.
func (v *View) FitBounds(b orb.Bound, padding, maxZoom float64) float64 {
	v.mu.RLock()
	vp := v.viewport
	v.mu.RUnlock()

	zoom := BoundsZoom(b, vp, padding, maxZoom)
	v.SetView(b.Center(), zoom)
	return zoom
}

// BoundsZoom computes the fit-bounds zoom for b in vp.
func BoundsZoom(b orb.Bound, vp Viewport, padding, maxZoom float64) float64 {
	w := vp.Width - 2*padding
	h := vp.Height - 2*padding
	if w <= 0 || h <= 0 {
		return 0
	}
	for z := int(maxZoom); z > 0; z-- {
		nw := maptile.Fraction(orb.Point{b.Min.X(), b.Max.Y()}, maptile.Zoom(z))
		se := maptile.Fraction(orb.Point{b.Max.X(), b.Min.Y()}, maptile.Zoom(z))
		dx := (se.X() - nw.X()) * 256
		dy := (se.Y() - nw.Y()) * 256
		if dx <= w && dy <= h {
			return float64(z)
		}
	}
	return 0
}
