package live

import (
	"context"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/google/uuid"
	"github.com/joeblew999/geodash/internal/dashboard"
	"github.com/joeblew999/geodash/internal/effect"
	"github.com/joeblew999/geodash/internal/humastar"
	"github.com/joeblew999/geodash/internal/templates"
	"go.uber.org/zap"
)

// EventHandler streams dashboard effects to the Datastar UI via SSE.
type EventHandler struct {
	humastar.Handler
	dash *dashboard.Dashboard
	bus  *effect.Bus
	tr   *Translator
	log  *zap.Logger
}

// NewEventHandler creates a new event handler.
func NewEventHandler(dash *dashboard.Dashboard, bus *effect.Bus, renderer *templates.Renderer) *EventHandler {
	return &EventHandler{
		Handler: humastar.Handler{Renderer: renderer},
		dash:    dash,
		bus:     bus,
		tr:      NewTranslator(renderer, dash.Config().LayerLabels),
		log:     zap.L().With(zap.String("component", "live")),
	}
}

func (h *EventHandler) RegisterRoutes(api huma.API) {
	huma.Get(api, "/api/v1/events", h.Events,
		huma.OperationTags(humastar.StreamTag),
	)
}

// Initial returns the ops that bring a freshly loaded page up to date.
func (h *EventHandler) Initial() []Op {
	st := h.dash.Status()
	names := h.dash.Layers().Names()
	buttons := make([]any, 0, len(names))
	for _, n := range names {
		buttons = append(buttons, h.tr.Button(n, h.dash.Layers().IsVisible(n)))
	}

	lastRefresh := ""
	if !st.LastRefresh.IsZero() {
		lastRefresh = st.LastRefresh.UTC().Format(time.RFC3339)
	}
	ops := []Op{
		signals(
			"loading", false,
			"area", st.SelectedArea,
			"period", st.Period,
			"baseLayer", st.BaseLayer,
			"autoRun", st.AutoRun,
			"autoRefresh", st.AutoRefresh,
			"lastRefresh", lastRefresh,
		),
		{Kind: OpPatch, Selector: LayerControlsSelector, HTML: h.RenderList("layer-button", buttons, "Sem camadas", "Nenhuma camada carregada")},
		event("map-view", h.dash.View().State()),
	}
	ops = append(ops, h.tr.Translate(effect.Stats(st.Stats))...)
	if st.InitError != "" {
		ops = append(ops, h.tr.Translate(effect.InitError(st.InitError))...)
	}
	return ops
}

// Follow returns the ops for e plus the view update an area change implies.
func (h *EventHandler) Follow(e effect.Effect) []Op {
	ops := h.tr.Translate(e)
	if e.Kind == effect.KindAreaInfo {
		ops = append(ops, event("map-view", h.dash.View().State()))
	}
	return ops
}

func (h *EventHandler) Events(ctx context.Context, input *humastar.EmptyInput) (*huma.StreamResponse, error) {
	return h.Stream(func(sse humastar.SSE) {
		id := uuid.NewString()
		log := h.log.With(zap.String("stream", id))
		ch := h.bus.Subscribe()
		defer h.bus.Unsubscribe(ch)
		log.Debug("stream opened", zap.Int("subscribers", h.bus.Subscribers()))

		if err := apply(sse, h.Initial()); err != nil {
			log.Debug("stream closed", zap.Error(err))
			return
		}
		for {
			select {
			case <-ctx.Done():
				log.Debug("stream closed", zap.Error(ctx.Err()))
				return
			case e, ok := <-ch:
				if !ok {
					return
				}
				if err := apply(sse, h.Follow(e)); err != nil {
					log.Debug("stream closed", zap.Error(err))
					return
				}
			}
		}
	}), nil
}

func apply(sse humastar.SSE, ops []Op) error {
	for _, op := range ops {
		var err error
		switch op.Kind {
		case OpSignals:
			err = sse.Signals(op.Signals)
		case OpPatch:
			err = sse.Patch(op.HTML, op.Selector)
		case OpReplace:
			err = sse.Replace(op.HTML, op.Selector)
		case OpAppend:
			err = sse.Append(op.HTML, op.Selector)
		case OpEvent:
			err = sse.Event(op.Event, op.Detail)
		}
		if err != nil {
			return err
		}
	}
	return nil
}
