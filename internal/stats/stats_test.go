package stats

import (
	"math/rand/v2"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newProducer() *Producer {
	return NewProducer(rand.New(rand.NewPCG(42, 42)))
}

func TestFromData(t *testing.T) {
	p := newProducer()
	for range 50 {
		s := p.FromData(100, 20, 5)
		assert.Equal(t, 125, s.TotalPoints)
		assert.GreaterOrEqual(t, s.ActiveAlerts, 10)
		assert.Less(t, s.ActiveAlerts, 20)
		assert.GreaterOrEqual(t, s.OnlineUsers, 100)
		assert.Less(t, s.OnlineUsers, 300)
		assert.Equal(t, 100, s.DataUpdate)
		assert.Equal(t, SourceData, s.Source)
	}
}

func TestForArea(t *testing.T) {
	p := newProducer()

	s := p.ForArea("para")
	assert.Equal(t, 3450, s.TotalPoints)
	assert.Equal(t, 67, s.ActiveAlerts)
	assert.Equal(t, 285, s.OnlineUsers)
	assert.Equal(t, "para", s.Area)

	s = p.ForArea("atlantis")
	assert.Equal(t, 1000, s.TotalPoints)
	assert.Equal(t, 25, s.ActiveAlerts)
	assert.Equal(t, 150, s.OnlineUsers)
}

func TestSimulatedRanges(t *testing.T) {
	p := newProducer()
	for range 200 {
		s := p.Simulated()
		assert.True(t, s.TotalPoints >= 1000 && s.TotalPoints < 3000)
		assert.True(t, s.ActiveAlerts >= 10 && s.ActiveAlerts < 60)
		assert.True(t, s.OnlineUsers >= 100 && s.OnlineUsers < 300)
		assert.True(t, s.DataUpdate >= 90 && s.DataUpdate < 100)
	}
}

func TestDrift(t *testing.T) {
	p := newProducer()
	s := Stats{OnlineUsers: 55, DataUpdate: 100}
	for range 200 {
		next := p.Drift(s)
		assert.GreaterOrEqual(t, next.OnlineUsers, 50)
		assert.LessOrEqual(t, next.OnlineUsers-s.OnlineUsers, 10)
		if next.DataUpdate != 100 {
			assert.True(t, next.DataUpdate >= 95 && next.DataUpdate < 100)
		}
		s = next
	}
}

func TestSanitize(t *testing.T) {
	s := Stats{TotalPoints: -3, ActiveAlerts: -1, OnlineUsers: -9, DataUpdate: 140}.Sanitize()
	assert.Zero(t, s.TotalPoints)
	assert.Zero(t, s.ActiveAlerts)
	assert.Zero(t, s.OnlineUsers)
	assert.Equal(t, 100, s.DataUpdate)
}

func TestCache_TTLAndCleanup(t *testing.T) {
	now := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	c := NewCache(5*time.Minute, func() time.Time { return now })

	c.Set("general", Stats{TotalPoints: 1})
	got, ok := c.Get("general")
	require.True(t, ok)
	assert.Equal(t, 1, got.TotalPoints)

	now = now.Add(3 * time.Minute)
	c.Set("para", Stats{TotalPoints: 2})

	now = now.Add(3 * time.Minute)
	assert.Equal(t, 1, c.Cleanup())
	assert.Equal(t, 1, c.Len())

	_, ok = c.Get("general")
	assert.False(t, ok)

	now = now.Add(10 * time.Minute)
	_, ok = c.Get("para")
	assert.False(t, ok)
	assert.Zero(t, c.Len())

	st := c.Stats()
	assert.Equal(t, int64(1), st.Hits)
	assert.Equal(t, int64(2), st.Misses)
}
