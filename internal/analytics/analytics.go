// Package analytics records user and system events for the usage report.
package analytics

import (
	"encoding/json"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Event names.
const (
	SystemStart       = "system_start"
	SystemExit        = "system_exit"
	DashboardReady    = "dashboard_ready"
	InitError         = "critical_initialization_error"
	LayerToggle       = "layer_toggle"
	AreaChange        = "area_change"
	FilterApply       = "filter_apply"
	DataRefresh       = "data_refresh"
	AutoRun           = "auto_run"
	BaseLayerSwitch   = "base_layer_switch"
	NotificationShown = "notification_shown"
	RuntimeError      = "runtime_error"
	BackgroundError   = "background_error"
	PerformanceMetric = "performance_metric"
	DataExport        = "data_export"
)

// userActions are the events counted as deliberate user actions.
var userActions = map[string]bool{LayerToggle: true, AreaChange: true, FilterApply: true}

// DefaultHistory is the per-event history bound.
const DefaultHistory = 100

// Metric is one tracked occurrence.
type Metric struct {
	Event     string         `json:"event"`
	Data      map[string]any `json:"data"`
	Timestamp time.Time      `json:"timestamp"`
	Session   string         `json:"session"`
}

// Sink keeps a bounded history per event name.
type Sink struct {
	mu      sync.Mutex
	metrics map[string][]Metric
	limit   int
	session string
	now     func() time.Time
	actions int
	log     *zap.Logger
}

// NewSink creates a sink keeping the last limit occurrences of each event.
func NewSink(limit int, now func() time.Time) *Sink {
	if limit <= 0 {
		limit = DefaultHistory
	}
	if now == nil {
		now = time.Now
	}
	return &Sink{
		metrics: make(map[string][]Metric),
		limit:   limit,
		session: uuid.NewString(),
		now:     now,
		log:     zap.L().With(zap.String("component", "analytics")),
	}
}

// Session identifies this dashboard run.
func (s *Sink) Session() string { return s.session }

// Track records an event.
func (s *Sink) Track(event string, data map[string]any) {
	if data == nil {
		data = map[string]any{}
	}
	m := Metric{Event: event, Data: data, Timestamp: s.now(), Session: s.session}

	s.mu.Lock()
	h := append(s.metrics[event], m)
	if len(h) > s.limit {
		h = append([]Metric(nil), h[len(h)-s.limit:]...)
	}
	s.metrics[event] = h
	if userActions[event] {
		s.actions++
	}
	s.mu.Unlock()

	s.log.Debug("metric tracked", zap.String("event", event))
}

// Events returns the history of one event.
func (s *Sink) Events(event string) []Metric {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Metric(nil), s.metrics[event]...)
}

// Count returns how many occurrences of event are retained.
func (s *Sink) Count(event string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.metrics[event])
}

// All returns a copy of every history.
func (s *Sink) All() map[string][]Metric {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string][]Metric, len(s.metrics))
	for k, v := range s.metrics {
		out[k] = append([]Metric(nil), v...)
	}
	return out
}

// Flatten merges histories into one timeline ordered by timestamp, then by
// event name.
func Flatten(all map[string][]Metric) []Metric {
	var out []Metric
	for _, ms := range all {
		out = append(out, ms...)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].Timestamp.Equal(out[j].Timestamp) {
			return out[i].Timestamp.Before(out[j].Timestamp)
		}
		return out[i].Event < out[j].Event
	})
	return out
}

// UserActions counts layer toggles, area changes and filter applications
// since start. It is not bounded by the history limit.
func (s *Sink) UserActions() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.actions
}

// SessionDuration is the time since the first system_start event.
func (s *Sink) SessionDuration() time.Duration {
	s.mu.Lock()
	starts := s.metrics[SystemStart]
	s.mu.Unlock()
	if len(starts) == 0 {
		return 0
	}
	return s.now().Sub(starts[0].Timestamp)
}

// FeatureUse is an event name with its retained count.
type FeatureUse struct {
	Feature string `json:"feature"`
	Count   int    `json:"count"`
}

// MostUsed returns the event with the most retained occurrences. Ties go
// to the alphabetically first name.
func (s *Sink) MostUsed() FeatureUse {
	s.mu.Lock()
	defer s.mu.Unlock()
	names := make([]string, 0, len(s.metrics))
	for k := range s.metrics {
		names = append(names, k)
	}
	sort.Strings(names)
	best := FeatureUse{Feature: "N/A"}
	for _, k := range names {
		if n := len(s.metrics[k]); n > best.Count {
			best = FeatureUse{Feature: k, Count: n}
		}
	}
	return best
}

// EventSummary describes one event in the report.
type EventSummary struct {
	Count           int       `json:"count"`
	FirstOccurrence time.Time `json:"firstOccurrence"`
	LastOccurrence  time.Time `json:"lastOccurrence"`
}

// Summary is the headline section of the report.
type Summary struct {
	SessionDuration  int64      `json:"sessionDuration"`
	MostUsedFeature  FeatureUse `json:"mostUsedFeature"`
	LayerToggleCount int        `json:"layerToggleCount"`
	RefreshCount     int        `json:"refreshCount"`
	ErrorCount       int        `json:"errorCount"`
	UserActions      int        `json:"userActions"`
}

// Report is the exportable usage report.
type Report struct {
	Timestamp   time.Time               `json:"timestamp"`
	Session     string                  `json:"session"`
	TotalEvents int                     `json:"totalEvents"`
	Events      map[string]EventSummary `json:"events"`
	Summary     Summary                 `json:"summary"`
}

// Report builds the usage report.
func (s *Sink) Report() Report {
	all := s.All()
	r := Report{
		Timestamp: s.now(),
		Session:   s.session,
		Events:    make(map[string]EventSummary, len(all)),
	}
	for event, ms := range all {
		r.TotalEvents += len(ms)
		if len(ms) == 0 {
			continue
		}
		r.Events[event] = EventSummary{
			Count:           len(ms),
			FirstOccurrence: ms[0].Timestamp,
			LastOccurrence:  ms[len(ms)-1].Timestamp,
		}
	}
	r.Summary = Summary{
		SessionDuration:  int64(s.SessionDuration().Round(time.Second) / time.Second),
		MostUsedFeature:  s.MostUsed(),
		LayerToggleCount: len(all[LayerToggle]),
		RefreshCount:     len(all[DataRefresh]),
		ErrorCount:       len(all[RuntimeError]),
		UserActions:      s.UserActions(),
	}
	return r
}

// Export renders the report as indented JSON with its download filename.
func (s *Sink) Export() ([]byte, string, error) {
	r := s.Report()
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return nil, "", err
	}
	return data, ExportFilename(r.Timestamp), nil
}

// ExportFilename names the analytics report file for day t.
func ExportFilename(t time.Time) string {
	return "dashboard-analytics-" + t.UTC().Format(time.DateOnly) + ".json"
}

// Measure starts timing operation. The returned func records a
// performance_metric event and returns the elapsed time.
func (s *Sink) Measure(operation string) func() time.Duration {
	start := s.now()
	return func() time.Duration {
		d := s.now().Sub(start)
		s.Track(PerformanceMetric, map[string]any{
			"operation": operation,
			"duration":  d.Milliseconds(),
		})
		return d
	}
}
