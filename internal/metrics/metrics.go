// Package metrics holds the dashboard's prometheus collectors.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	FetchTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "geodash_fetch_total",
		Help: "GeoJSON fetches by result (ok, fail)",
	}, []string{"result"})
	FetchDurationMs = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "geodash_fetch_duration_ms",
		Help:    "GeoJSON fetch duration in milliseconds",
		Buckets: []float64{1, 5, 10, 20, 50, 100, 200, 500, 1000, 5000},
	})
	AreaCacheTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "geodash_area_cache_total",
		Help: "Area cache lookups by result (hit, miss)",
	}, []string{"result"})
	LayerToggleTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "geodash_layer_toggle_total",
		Help: "Layer visibility toggles",
	}, []string{"layer"})
	CycleTicksTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "geodash_cycle_ticks_total",
		Help: "Auto-run cycle activations",
	})
	RefreshTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "geodash_refresh_total",
		Help: "Full data reloads by result (ok, fail)",
	}, []string{"result"})
	RuntimeErrorsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "geodash_runtime_errors_total",
		Help: "Recovered runtime errors",
	})
)

func init() {
	prometheus.MustRegister(FetchTotal)
	prometheus.MustRegister(FetchDurationMs)
	prometheus.MustRegister(AreaCacheTotal)
	prometheus.MustRegister(LayerToggleTotal)
	prometheus.MustRegister(CycleTicksTotal)
	prometheus.MustRegister(RefreshTotal)
	prometheus.MustRegister(RuntimeErrorsTotal)
}

// Handler exposes the default registry.
func Handler() http.Handler { return promhttp.Handler() }
