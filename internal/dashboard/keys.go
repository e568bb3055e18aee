package dashboard

import (
	"context"
	"strings"

	"github.com/joeblew999/geodash/internal/mapview"
)

// Actions reported by HandleKey.
const (
	KeyRefresh     = "refresh"
	KeyStopCycle   = "stop-cycle"
	KeyClearArea   = "clear-area"
	KeyBaseLight   = "base-light"
	KeyBaseDark    = "base-dark"
	KeyToggleCycle = "toggle-cycle"
)

// HandleKey runs the keyboard shortcut for key and returns the action taken,
// or "" when the key is not bound.
//
//	ctrl+r  refresh data
//	Escape  stop auto-run, or clear the area when auto-run is off
//	l / d   light / dark base map
//	r       toggle auto-run
//	space   stop auto-run while it runs
func (d *Dashboard) HandleKey(ctx context.Context, key string, ctrl bool) (string, error) {
	switch {
	case ctrl && strings.EqualFold(key, "r"):
		return KeyRefresh, d.Refresh(ctx)

	case key == "Escape":
		if d.cycler.Running() {
			d.StopCycle()
			return KeyStopCycle, nil
		}
		d.ClearArea()
		return KeyClearArea, nil

	case ctrl:
		return "", nil

	case strings.EqualFold(key, "l"):
		return KeyBaseLight, d.SwitchBaseLayer(mapview.BaseLight)

	case strings.EqualFold(key, "d"):
		return KeyBaseDark, d.SwitchBaseLayer(mapview.BaseDark)

	case strings.EqualFold(key, "r"):
		d.ToggleCycle()
		return KeyToggleCycle, nil

	case key == " " || key == "Space" || key == "Spacebar":
		if d.StopCycle() {
			return KeyStopCycle, nil
		}
	}
	return "", nil
}
