package layer

import (
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// Base data layer names.
const (
	Points = "pontos"
	Areas  = "areas-especiais"
	Routes = "rotas"
)

// Monitoring layer names.
const (
	FireEvents  = "eventos-fogo"
	NewEvents   = "novos-eventos"
	SevereEvent = "eventos-severos"
	Influence   = "maior-area"
	Aerosol     = "aerosol"
	CO          = "co"
	Smoke       = "pluma-fumaca"
	Alerts      = "alertas"
	Heatmap     = "heatmap"
)

// Monitoring lists the monitoring layers in filter order.
var Monitoring = []string{
	FireEvents, NewEvents, SevereEvent, Influence, Aerosol, CO, Smoke, Alerts, Heatmap,
}

// PointsLayer styles points of interest as red circle markers.
func PointsLayer(fc *geojson.FeatureCollection, label string) *Layer {
	return New(Points, label, KindPoints, fc, func(*geojson.Feature) Style {
		return Style{Color: "#ff0000", FillColor: "#ff0000", FillOpacity: 0.7, Radius: 8, Weight: 2}
	})
}

// AreasLayer styles special areas as translucent blue polygons.
func AreasLayer(fc *geojson.FeatureCollection, label string) *Layer {
	return New(Areas, label, KindPolygons, fc, func(*geojson.Feature) Style {
		return Style{Color: "#0000ff", Weight: 2, FillColor: "#0000ff", FillOpacity: 0.3}
	})
}

// RoutesLayer styles routes as thick green lines.
func RoutesLayer(fc *geojson.FeatureCollection, label string) *Layer {
	return New(Routes, label, KindLines, fc, func(*geojson.Feature) Style {
		return Style{Color: "#00ff00", Weight: 4, Opacity: 0.8}
	})
}

// RegisterMonitoring registers factories for every monitoring layer and
// builds all of them except the heatmap, which is created on first show.
func RegisterMonitoring(r *Registry, labels map[string]string) {
	label := func(name string) string {
		if l, ok := labels[name]; ok {
			return l
		}
		return name
	}
	builders := map[string]func(string) *Layer{
		FireEvents:  fireEvents,
		NewEvents:   newEvents,
		SevereEvent: severeEvents,
		Influence:   influenceAreas,
		Aerosol:     aerosol,
		CO:          carbonMonoxide,
		Smoke:       smokePlumes,
		Alerts:      alerts,
		Heatmap:     heatmap,
	}
	for _, name := range Monitoring {
		build, lbl := builders[name], label(name)
		r.Register(name, func() *Layer { return build(lbl) })
	}
	for _, name := range Monitoring {
		if name == Heatmap {
			continue
		}
		_, _ = r.Ensure(name, nil)
	}
}

// point builds a Point feature from a lat/lng pair.
func point(lat, lng float64, props geojson.Properties) *geojson.Feature {
	f := geojson.NewFeature(orb.Point{lng, lat})
	f.Properties = props
	return f
}

// polygon builds a Polygon feature from lat/lng pairs, closing the ring.
func polygon(latlngs [][2]float64, props geojson.Properties) *geojson.Feature {
	ring := make(orb.Ring, 0, len(latlngs)+1)
	for _, ll := range latlngs {
		ring = append(ring, orb.Point{ll[1], ll[0]})
	}
	ring = append(ring, ring[0])
	f := geojson.NewFeature(orb.Polygon{ring})
	f.Properties = props
	return f
}

func collection(features ...*geojson.Feature) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	for _, f := range features {
		fc.Append(f)
	}
	return fc
}

func colorBy(props geojson.Properties, key string, colors map[string]string, fallback string) string {
	if c, ok := colors[props.MustString(key, "")]; ok {
		return c
	}
	return fallback
}

func fireEvents(label string) *Layer {
	fc := collection(
		point(-1.4558, -48.4902, geojson.Properties{"intensity": "alta", "size": 120, "time": "2h"}),
		point(-1.4200, -48.5100, geojson.Properties{"intensity": "média", "size": 85, "time": "4h"}),
		point(-1.4800, -48.4500, geojson.Properties{"intensity": "baixa", "size": 45, "time": "6h"}),
		point(-1.4400, -48.4700, geojson.Properties{"intensity": "alta", "size": 200, "time": "1h"}),
		point(-1.4650, -48.4950, geojson.Properties{"intensity": "média", "size": 90, "time": "3h"}),
	)
	colors := map[string]string{"alta": "#ff0000", "média": "#ff8800"}
	return New(FireEvents, label, KindMonitoring, fc, func(f *geojson.Feature) Style {
		c := colorBy(f.Properties, "intensity", colors, "#ffaa00")
		return Style{Color: c, FillColor: c, FillOpacity: 0.7, Radius: 10, Weight: 2}
	})
}

func newEvents(label string) *Layer {
	fc := collection(
		point(-1.4350, -48.4600, geojson.Properties{"type": "Fogo", "time": "30min"}),
		point(-1.4750, -48.5050, geojson.Properties{"type": "Fumaça", "time": "1h"}),
		point(-1.4150, -48.4850, geojson.Properties{"type": "Aerosol", "time": "2h"}),
	)
	return New(NewEvents, label, KindMonitoring, fc, func(*geojson.Feature) Style {
		return Style{Color: "#00ff00", FillColor: "#00ff00", FillOpacity: 0.8, Radius: 8, Weight: 3}
	})
}

func severeEvents(label string) *Layer {
	fc := collection(
		point(-1.4450, -48.4800, geojson.Properties{"severity": "Crítico", "area": 500}),
		point(-1.4300, -48.4900, geojson.Properties{"severity": "Alto", "area": 350}),
	)
	return New(SevereEvent, label, KindMonitoring, fc, func(*geojson.Feature) Style {
		return Style{Color: "#8B0000", FillColor: "#8B0000", FillOpacity: 0.9, Radius: 15, Weight: 3}
	})
}

func influenceAreas(label string) *Layer {
	fc := collection(
		point(-1.4558, -48.4902, geojson.Properties{"name": "Zona de Impacto Principal", "radius": 2000.0}),
		point(-1.4400, -48.4700, geojson.Properties{"name": "Zona de Impacto Secundário", "radius": 1500.0}),
	)
	return New(Influence, label, KindMonitoring, fc, func(f *geojson.Feature) Style {
		return Style{
			Color: "#ff6600", FillColor: "#ff6600", FillOpacity: 0.2, Weight: 2, DashArray: "10, 10",
			Radius: f.Properties.MustFloat64("radius", 0), Meters: true,
		}
	})
}

func aerosol(label string) *Layer {
	fc := collection(
		point(-1.4300, -48.4800, geojson.Properties{"concentration": "Alta"}),
		point(-1.4600, -48.4600, geojson.Properties{"concentration": "Média"}),
		point(-1.4500, -48.5000, geojson.Properties{"concentration": "Baixa"}),
	)
	colors := map[string]string{"Alta": "#800080", "Média": "#9932CC"}
	return New(Aerosol, label, KindMonitoring, fc, func(f *geojson.Feature) Style {
		c := colorBy(f.Properties, "concentration", colors, "#DA70D6")
		return Style{Color: c, FillColor: c, FillOpacity: 0.6, Radius: 12, Weight: 2}
	})
}

func carbonMonoxide(label string) *Layer {
	fc := collection(
		point(-1.4400, -48.4750, geojson.Properties{"level": 25, "status": "Atenção"}),
		point(-1.4550, -48.4850, geojson.Properties{"level": 18, "status": "Normal"}),
		point(-1.4350, -48.4950, geojson.Properties{"level": 32, "status": "Alerta"}),
	)
	colors := map[string]string{"Alerta": "#8B0000", "Atenção": "#FF4500"}
	return New(CO, label, KindMonitoring, fc, func(f *geojson.Feature) Style {
		c := colorBy(f.Properties, "status", colors, "#228B22")
		return Style{Color: c, FillColor: c, FillOpacity: 0.7, Radius: 9, Weight: 2}
	})
}

func smokePlumes(label string) *Layer {
	fc := collection(
		polygon([][2]float64{{-1.4500, -48.4800}, {-1.4520, -48.4750}, {-1.4480, -48.4720}, {-1.4460, -48.4770}},
			geojson.Properties{"density": "Densa"}),
		polygon([][2]float64{{-1.4600, -48.4900}, {-1.4620, -48.4850}, {-1.4580, -48.4820}, {-1.4560, -48.4870}},
			geojson.Properties{"density": "Moderada"}),
	)
	colors := map[string]string{"Densa": "#2F4F4F"}
	return New(Smoke, label, KindMonitoring, fc, func(f *geojson.Feature) Style {
		c := colorBy(f.Properties, "density", colors, "#708090")
		return Style{Color: c, FillColor: c, FillOpacity: 0.4, Weight: 2}
	})
}

func alerts(label string) *Layer {
	fc := collection(
		point(-1.4450, -48.4800, geojson.Properties{"type": "Incêndio", "priority": "Alta"}),
		point(-1.4300, -48.4650, geojson.Properties{"type": "Fumaça Tóxica", "priority": "Média"}),
		// Critical alerts blink on the page.
		point(-1.4600, -48.4950, geojson.Properties{"type": "Evacuação", "priority": "Crítica", "pulse": true}),
	)
	colors := map[string]string{"Crítica": "#FF0000", "Alta": "#FF4500"}
	return New(Alerts, label, KindMonitoring, fc, func(f *geojson.Feature) Style {
		c := colorBy(f.Properties, "priority", colors, "#FFA500")
		return Style{Color: c, FillColor: c, FillOpacity: 0.8, Radius: 11, Weight: 3}
	})
}

func heatmap(label string) *Layer {
	samples := [][3]float64{
		{-1.4558, -48.4902, 0.8},
		{-1.4400, -48.4700, 0.6},
		{-1.4300, -48.4800, 0.9},
		{-1.4650, -48.4950, 0.7},
		{-1.4500, -48.4600, 0.5},
	}
	fc := geojson.NewFeatureCollection()
	for _, s := range samples {
		fc.Append(point(s[0], s[1], geojson.Properties{"intensity": s[2]}))
	}
	return New(Heatmap, label, KindMonitoring, fc, func(f *geojson.Feature) Style {
		in := f.Properties.MustFloat64("intensity", 0)
		c := "#FFAA00"
		switch {
		case in > 0.7:
			c = "#FF0000"
		case in > 0.5:
			c = "#FF8800"
		}
		return Style{Color: c, FillColor: c, FillOpacity: 0.4, Radius: in * 1000, Meters: true, Weight: 1}
	})
}
