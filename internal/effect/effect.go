// Package effect describes the UI side effects the dashboard produces.
//
// Components never touch a page directly. They emit Effects into a Sink and
// whatever is listening (the live SSE stream, a test recorder) renders them.
package effect

import "time"

// Kind identifies an effect.
type Kind string

const (
	KindButtonActive Kind = "button-active"
	KindNotify       Kind = "notify"
	KindShowError    Kind = "show-error"
	KindLoading      Kind = "loading"
	KindAreaInfo     Kind = "area-info"
	KindAreaSelector Kind = "area-selector"
	KindStats        Kind = "stats"
	KindInitError    Kind = "init-error"
	KindBaseLayer    Kind = "base-layer"
	KindView         Kind = "view"
	KindScheduler    Kind = "scheduler"
	KindRefreshed    Kind = "refreshed"
)

// Notification levels.
const (
	LevelSuccess = "success"
	LevelError   = "error"
	LevelWarning = "warning"
	LevelInfo    = "info"
)

// Default notification lifetimes per level.
var durations = map[string]time.Duration{
	LevelSuccess: 3 * time.Second,
	LevelError:   5 * time.Second,
	LevelWarning: 4 * time.Second,
	LevelInfo:    4 * time.Second,
}

// Effect is a single instruction for the presentation layer.
type Effect struct {
	Kind     Kind          `json:"kind"`
	Target   string        `json:"target,omitempty"`
	Active   bool          `json:"active,omitempty"`
	Level    string        `json:"level,omitempty"`
	Message  string        `json:"message,omitempty"`
	Duration time.Duration `json:"duration,omitempty"`
	Data     any           `json:"data,omitempty"`
}

// Sink receives effects.
type Sink interface {
	Emit(Effect)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(Effect)

func (f SinkFunc) Emit(e Effect) { f(e) }

// Discard drops every effect.
var Discard Sink = SinkFunc(func(Effect) {})

// ButtonActive marks a layer control active or inactive.
func ButtonActive(layer string, active bool) Effect {
	return Effect{Kind: KindButtonActive, Target: layer, Active: active}
}

// Notify is a transient toast. A zero duration uses the level default.
func Notify(level, message string, d time.Duration) Effect {
	if d == 0 {
		d = durations[level]
	}
	if d == 0 {
		d = durations[LevelInfo]
	}
	return Effect{Kind: KindNotify, Level: level, Message: message, Duration: d}
}

func Success(message string) Effect { return Notify(LevelSuccess, message, 0) }
func Error(message string) Effect   { return Notify(LevelError, message, 0) }
func Warning(message string) Effect { return Notify(LevelWarning, message, 0) }
func Info(message string) Effect    { return Notify(LevelInfo, message, 0) }

// ShowError is a dismissible error banner.
func ShowError(message string) Effect {
	return Effect{Kind: KindShowError, Level: LevelError, Message: message}
}

// Loading toggles the loading indicator.
func Loading(on bool) Effect {
	return Effect{Kind: KindLoading, Active: on}
}

// AreaInfo shows or hides the monitored area panel.
func AreaInfo(name string, shown bool) Effect {
	return Effect{Kind: KindAreaInfo, Target: name, Active: shown}
}

// AreaSelector sets the area dropdown value. Empty resets it.
func AreaSelector(key string) Effect {
	return Effect{Kind: KindAreaSelector, Target: key}
}

// Stats pushes new statistics to the stats panel.
func Stats(v any) Effect {
	return Effect{Kind: KindStats, Data: v}
}

// InitError shows the initialization failure panel.
func InitError(message string) Effect {
	return Effect{Kind: KindInitError, Level: LevelError, Message: message}
}

// BaseLayer reports the active base layer.
func BaseLayer(name string) Effect {
	return Effect{Kind: KindBaseLayer, Target: name, Active: true}
}

// View reports a map viewport change.
func View(v any) Effect {
	return Effect{Kind: KindView, Data: v}
}

// Scheduler reports a scheduler switching on or off.
func Scheduler(name string, running bool) Effect {
	return Effect{Kind: KindScheduler, Target: name, Active: running}
}

// Refreshed reports the time of the last completed data refresh.
func Refreshed(at time.Time) Effect {
	return Effect{Kind: KindRefreshed, Data: at}
}
