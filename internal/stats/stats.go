// Package stats produces the numbers shown on the dashboard's stat cards.
package stats

import (
	"math/rand/v2"
	"sync"
)

// Source tells where a set of stats came from.
const (
	SourceData      = "data"
	SourceArea      = "area"
	SourceSimulated = "simulated"
)

// Stats are the four stat cards.
type Stats struct {
	TotalPoints  int    `json:"totalPoints"`
	ActiveAlerts int    `json:"activeAlerts"`
	OnlineUsers  int    `json:"onlineUsers"`
	DataUpdate   int    `json:"dataUpdate"`
	Area         string `json:"area,omitempty"`
	Source       string `json:"source"`
}

// Sanitize clamps every counter to a sane range.
func (s Stats) Sanitize() Stats {
	s.TotalPoints = max(0, s.TotalPoints)
	s.ActiveAlerts = max(0, s.ActiveAlerts)
	s.OnlineUsers = max(0, s.OnlineUsers)
	s.DataUpdate = min(100, max(0, s.DataUpdate))
	return s
}

type areaFigures struct{ points, alerts, users int }

var areaTable = map[string]areaFigures{
	"brasil":         {15420, 234, 1200},
	"amazonia_legal": {8750, 156, 650},
	"bioma_amazonia": {6890, 123, 540},
	"bioma_pantanal": {1230, 34, 180},
	"bioma_cerrado":  {4560, 78, 320},
	"crbe":           {890, 23, 95},
	"para":           {3450, 67, 285},
	"tocantins":      {1890, 45, 160},
	"amapa":          {670, 12, 85},
	"maranhao":       {2340, 56, 195},
}

var areaFallback = areaFigures{1000, 25, 150}

// Producer draws the simulated parts of the stats from its own source.
type Producer struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewProducer wraps rng, which must not be shared without locking.
func NewProducer(rng *rand.Rand) *Producer {
	return &Producer{rng: rng}
}

func (p *Producer) intN(n int) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.rng.IntN(n)
}

func (p *Producer) float() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.rng.Float64()
}

// FromData derives stats from the base dataset feature counts.
func (p *Producer) FromData(points, areas, routes int) Stats {
	return Stats{
		TotalPoints:  points + areas + routes,
		ActiveAlerts: points/10 + p.intN(10),
		OnlineUsers:  p.intN(200) + 100,
		DataUpdate:   100,
		Source:       SourceData,
	}
}

// ForArea returns the fixed figures of a monitored area.
func (p *Producer) ForArea(key string) Stats {
	f, ok := areaTable[key]
	if !ok {
		f = areaFallback
	}
	return Stats{
		TotalPoints:  f.points,
		ActiveAlerts: f.alerts,
		OnlineUsers:  f.users,
		DataUpdate:   100,
		Area:         key,
		Source:       SourceArea,
	}
}

// Simulated is the fallback when no data is available.
func (p *Producer) Simulated() Stats {
	return Stats{
		TotalPoints:  p.intN(2000) + 1000,
		ActiveAlerts: p.intN(50) + 10,
		OnlineUsers:  p.intN(200) + 100,
		DataUpdate:   p.intN(10) + 90,
		Source:       SourceSimulated,
	}
}

// Drift simulates live movement: users move by up to ten (never below 50)
// and one time in ten the data update figure is redrawn in [95, 100).
func (p *Producer) Drift(s Stats) Stats {
	s.OnlineUsers = max(50, s.OnlineUsers+p.intN(21)-10)
	if p.float() < 0.1 {
		s.DataUpdate = p.intN(5) + 95
	}
	return s
}
