// Package live streams dashboard effects to the page as Datastar SSE events.
package live

import (
	"time"

	"github.com/google/uuid"
	"github.com/joeblew999/geodash/internal/effect"
	"github.com/joeblew999/geodash/internal/mapview"
	"github.com/joeblew999/geodash/internal/templates"
	"go.uber.org/zap"
)

// Page element selectors.
const (
	NotificationsSelector = "#notifications"
	ErrorBannerSelector   = "#error-banner"
	AreaInfoSelector      = "#area-info"
	StatsSelector         = "#stats"
	InitErrorSelector     = "#init-error"
	LayerControlsSelector = "#layer-controls"
)

// OpKind is how an Op reaches the page.
type OpKind int

const (
	OpSignals OpKind = iota
	OpPatch
	OpReplace
	OpAppend
	OpEvent
)

// Op is one SSE instruction.
type Op struct {
	Kind     OpKind
	Selector string
	HTML     string
	Signals  map[string]any
	Event    string
	Detail   any
}

func signals(kv ...any) Op {
	m := make(map[string]any, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		m[kv[i].(string)] = kv[i+1]
	}
	return Op{Kind: OpSignals, Signals: m}
}

func event(name string, detail any) Op {
	return Op{Kind: OpEvent, Event: name, Detail: detail}
}

// Translator turns effects into SSE ops.
type Translator struct {
	Renderer *templates.Renderer
	Labels   map[string]string
	log      *zap.Logger
}

func NewTranslator(r *templates.Renderer, labels map[string]string) *Translator {
	return &Translator{
		Renderer: r,
		Labels:   labels,
		log:      zap.L().With(zap.String("component", "live")),
	}
}

// LayerButton is the data of the layer-button fragment.
type LayerButton struct {
	Name   string
	Label  string
	Active bool
}

// Button builds the control for layer name.
func (t *Translator) Button(name string, active bool) LayerButton {
	label := t.Labels[name]
	if label == "" {
		label = name
	}
	return LayerButton{Name: name, Label: label, Active: active}
}

func (t *Translator) render(name string, data any) (string, bool) {
	html, err := t.Renderer.Render(name, data)
	if err != nil {
		t.log.Warn("fragment render failed", zap.String("template", name), zap.Error(err))
		return "", false
	}
	return html, true
}

func (t *Translator) fragment(kind OpKind, selector, tmpl string, data any) []Op {
	html, ok := t.render(tmpl, data)
	if !ok {
		return nil
	}
	return []Op{{Kind: kind, Selector: selector, HTML: html}}
}

// Translate maps one effect onto the ops that render it.
func (t *Translator) Translate(e effect.Effect) []Op {
	switch e.Kind {
	case effect.KindButtonActive:
		ops := t.fragment(OpReplace, "#btn-"+e.Target, "layer-button", t.Button(e.Target, e.Active))
		return append(ops, event("button-active", map[string]any{"layer": e.Target, "active": e.Active}))

	case effect.KindNotify:
		return t.fragment(OpAppend, NotificationsSelector, "notification", map[string]any{
			"ID":         uuid.NewString(),
			"Level":      e.Level,
			"Message":    e.Message,
			"DurationMs": e.Duration.Milliseconds(),
		})

	case effect.KindShowError:
		return t.fragment(OpPatch, ErrorBannerSelector, "error-banner", e)

	case effect.KindLoading:
		return []Op{signals("loading", e.Active)}

	case effect.KindAreaInfo:
		ops := t.fragment(OpPatch, AreaInfoSelector, "area-info", map[string]any{"Name": e.Target, "Shown": e.Active})
		return append(ops, signals("areaName", e.Target))

	case effect.KindAreaSelector:
		return []Op{signals("area", e.Target)}

	case effect.KindStats:
		return t.fragment(OpPatch, StatsSelector, "stats", e.Data)

	case effect.KindInitError:
		return t.fragment(OpPatch, InitErrorSelector, "init-error", e)

	case effect.KindBaseLayer:
		return []Op{
			signals("baseLayer", e.Target),
			event("base-layer", mapview.BaseLayers[e.Target]),
		}

	case effect.KindView:
		return []Op{event("map-view", e.Data)}

	case effect.KindScheduler:
		switch e.Target {
		case "cycle":
			return []Op{signals("autoRun", e.Active)}
		case "refresh":
			return []Op{signals("autoRefresh", e.Active)}
		}

	case effect.KindRefreshed:
		if at, ok := e.Data.(time.Time); ok {
			return []Op{signals("lastRefresh", at.UTC().Format(time.RFC3339))}
		}
	}
	return nil
}
