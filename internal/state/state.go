// Package state persists the dashboard's user selections between runs.
package state

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rotisserie/eris"
)

// Key is the storage key of the dashboard snapshot.
const Key = "dashboard_state"

// Snapshot is the persisted dashboard state. MapCenter is [lat, lng].
type Snapshot struct {
	Timestamp          time.Time `json:"timestamp"`
	MapCenter          []float64 `json:"mapCenter"`
	MapZoom            float64   `json:"mapZoom"`
	ActiveBaseLayer    string    `json:"activeBaseLayer"`
	SelectedArea       string    `json:"selectedArea"`
	SelectedPeriod     string    `json:"selectedPeriod"`
	ActiveLayers       []string  `json:"activeLayers"`
	AutoRefreshEnabled bool      `json:"autoRefreshEnabled"`
	AutoRunEnabled     bool      `json:"autoRunEnabled"`
}

// Store loads and saves the snapshot.
type Store interface {
	// Load returns false when nothing has been saved yet.
	Load(ctx context.Context) (Snapshot, bool, error)
	Save(ctx context.Context, s Snapshot) error
	Close() error
}

func encode(s Snapshot) ([]byte, error) {
	data, err := json.Marshal(s)
	if err != nil {
		return nil, eris.Wrap(err, "state: encode")
	}
	return data, nil
}

func decode(data []byte) (Snapshot, error) {
	var s Snapshot
	if err := json.Unmarshal(data, &s); err != nil {
		return Snapshot{}, eris.Wrap(err, "state: decode")
	}
	return s, nil
}

// Nop is a Store that remembers nothing.
type Nop struct{}

func (Nop) Load(context.Context) (Snapshot, bool, error) { return Snapshot{}, false, nil }
func (Nop) Save(context.Context, Snapshot) error         { return nil }
func (Nop) Close() error                                 { return nil }
