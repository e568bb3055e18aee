// Package layer holds the dashboard's named overlay layers and controls
// which of them are attached to the map.
package layer

import (
	"sync"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// Kind groups layers by origin.
type Kind string

const (
	KindPoints     Kind = "points"
	KindPolygons   Kind = "polygons"
	KindLines      Kind = "lines"
	KindMonitoring Kind = "monitoring"
	KindArea       Kind = "area"
)

// Style is the drawing style of one element. Radius is in pixels unless
// Meters is set.
type Style struct {
	Color       string  `json:"color,omitempty"`
	FillColor   string  `json:"fillColor,omitempty"`
	Weight      float64 `json:"weight,omitempty"`
	Opacity     float64 `json:"opacity,omitempty"`
	FillOpacity float64 `json:"fillOpacity,omitempty"`
	Radius      float64 `json:"radius,omitempty"`
	Meters      bool    `json:"meters,omitempty"`
	DashArray   string  `json:"dashArray,omitempty"`
}

// Element is one drawable feature. Base is the style it was created with.
type Element struct {
	Feature *geojson.Feature `json:"feature"`
	Base    Style            `json:"-"`
	Style   Style            `json:"style"`
}

// StyleFunc picks the creation style of a feature.
type StyleFunc func(*geojson.Feature) Style

// Layer is a named group of styled features.
type Layer struct {
	Name  string
	Label string
	Kind  Kind

	mu       sync.RWMutex
	elements []*Element
}

// New builds a layer from a FeatureCollection. A nil collection gives an
// empty layer.
func New(name, label string, kind Kind, fc *geojson.FeatureCollection, style StyleFunc) *Layer {
	l := &Layer{Name: name, Label: label, Kind: kind}
	if fc == nil {
		return l
	}
	l.elements = make([]*Element, 0, len(fc.Features))
	for _, f := range fc.Features {
		s := style(f)
		l.elements = append(l.elements, &Element{Feature: f, Base: s, Style: s})
	}
	return l
}

// Len returns the number of elements.
func (l *Layer) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.elements)
}

// Elements returns a copy of the elements.
func (l *Layer) Elements() []Element {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]Element, len(l.elements))
	for i, e := range l.elements {
		out[i] = *e
	}
	return out
}

// Restyle calls fn for every element while holding the layer lock.
func (l *Layer) Restyle(fn func(e *Element)) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, e := range l.elements {
		fn(e)
	}
}

// FeatureCollection returns the layer's features as GeoJSON.
func (l *Layer) FeatureCollection() *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	l.mu.RLock()
	defer l.mu.RUnlock()
	for _, e := range l.elements {
		fc.Append(e.Feature)
	}
	return fc
}

// Bound is the union of all element bounds.
func (l *Layer) Bound() (orb.Bound, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	var b orb.Bound
	found := false
	for _, e := range l.elements {
		if e.Feature == nil || e.Feature.Geometry == nil {
			continue
		}
		fb := e.Feature.Geometry.Bound()
		if !found {
			b, found = fb, true
			continue
		}
		b = b.Union(fb)
	}
	return b, found
}
