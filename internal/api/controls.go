package api

import (
	"context"
	"strings"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/joeblew999/geodash/internal/layer"
	"github.com/rotisserie/eris"
)

type FilterInput struct {
	Body struct {
		Period string   `json:"period" doc:"Period filter: 24h, 7days, 15days, 30days; anything else shows all" default:"all" required:"false"`
		Area   string   `json:"area,omitempty" doc:"Area filter"`
		_      struct{} `json:"-" additionalProperties:"true"`
	}
}

// CycleBody is the auto-run state.
type CycleBody struct {
	Running bool     `json:"running" doc:"Whether auto-run is cycling"`
	Paused  bool     `json:"paused" doc:"Paused while the page is hidden"`
	Index   int      `json:"index" doc:"Position of the next layer"`
	Current string   `json:"current,omitempty" doc:"Layer currently shown by auto-run"`
	Period  string   `json:"period" doc:"Time each layer stays on screen" example:"30s"`
	Layers  []string `json:"layers" doc:"Cycle order"`
}

// AutoRefreshBody is the auto-refresh state.
type AutoRefreshBody struct {
	Enabled     bool      `json:"enabled" doc:"Whether periodic reload is on"`
	Active      bool      `json:"active" doc:"Whether a reload is scheduled right now"`
	Period      string    `json:"period" doc:"Reload interval" example:"1m0s"`
	LastRefresh time.Time `json:"lastRefresh" doc:"Last completed data load"`
}

type AutoRefreshInput struct {
	Body struct {
		Enabled bool     `json:"enabled" doc:"Switch periodic reload on or off"`
		_       struct{} `json:"-" additionalProperties:"true"`
	}
}

type KeyInput struct {
	Body struct {
		Key  string   `json:"key" doc:"KeyboardEvent.key value" example:"Escape"`
		Ctrl bool     `json:"ctrl,omitempty" doc:"Ctrl or Meta held"`
		_    struct{} `json:"-" additionalProperties:"true"`
	}
}

type KeyBody struct {
	Key    string `json:"key" doc:"Key that was pressed"`
	Action string `json:"action" doc:"Action taken, empty when the key is not bound"`
}

type VisibilityInput struct {
	Body struct {
		Hidden bool     `json:"hidden" doc:"document.hidden of the page"`
		_      struct{} `json:"-" additionalProperties:"true"`
	}
}

type ClientErrorInput struct {
	Body struct {
		Message string `json:"message" minLength:"1" doc:"Error message"`
		Source  string `json:"source,omitempty" doc:"Script URL"`
		Line    int    `json:"line,omitempty" doc:"Line number"`
	}
}

// RegisterControls registers filter, scheduler and input routes.
func (h *APIHandler) RegisterControls(api huma.API) {
	huma.Post(api, "/api/v1/filters", h.ApplyFilters, huma.OperationTags("controls"))
	huma.Get(api, "/api/v1/cycle", h.GetCycle, huma.OperationTags("controls"))
	huma.Post(api, "/api/v1/cycle/start", h.StartCycle, huma.OperationTags("controls"))
	huma.Post(api, "/api/v1/cycle/stop", h.StopCycle, huma.OperationTags("controls"))
	huma.Post(api, "/api/v1/cycle/toggle", h.ToggleCycle, huma.OperationTags("controls"))
	huma.Get(api, "/api/v1/auto-refresh", h.GetAutoRefresh, huma.OperationTags("controls"))
	huma.Put(api, "/api/v1/auto-refresh", h.PutAutoRefresh, huma.OperationTags("controls"))
	huma.Post(api, "/api/v1/refresh", h.Refresh, huma.OperationTags("controls"))
	huma.Post(api, "/api/v1/keys", h.PressKey, huma.OperationTags("controls"))
	huma.Put(api, "/api/v1/visibility", h.PutVisibility, huma.OperationTags("controls"))
	huma.Post(api, "/api/v1/errors", h.ReportError, huma.OperationTags("controls"))
}

func (h *APIHandler) ApplyFilters(ctx context.Context, input *FilterInput) (*struct{ Body layer.FilterResult }, error) {
	period := input.Body.Period
	if period == "" {
		period = "all"
	}
	return &struct{ Body layer.FilterResult }{Body: h.dash.ApplyFilters(period, input.Body.Area)}, nil
}

func (h *APIHandler) cycleBody() CycleBody {
	c := h.dash.Cycler()
	b := CycleBody{
		Running: c.Running(),
		Paused:  c.Paused(),
		Index:   c.Index(),
		Period:  h.dash.Config().Cycle.Period.String(),
		Layers:  h.dash.Config().Cycle.Layers,
	}
	if b.Running {
		b.Current = c.Current()
	}
	return b
}

func (h *APIHandler) GetCycle(ctx context.Context, input *struct{}) (*struct{ Body CycleBody }, error) {
	return &struct{ Body CycleBody }{Body: h.cycleBody()}, nil
}

func (h *APIHandler) StartCycle(ctx context.Context, input *struct{}) (*struct{ Body CycleBody }, error) {
	h.dash.StartCycle()
	return &struct{ Body CycleBody }{Body: h.cycleBody()}, nil
}

func (h *APIHandler) StopCycle(ctx context.Context, input *struct{}) (*struct{ Body CycleBody }, error) {
	h.dash.StopCycle()
	return &struct{ Body CycleBody }{Body: h.cycleBody()}, nil
}

func (h *APIHandler) ToggleCycle(ctx context.Context, input *struct{}) (*struct{ Body CycleBody }, error) {
	h.dash.ToggleCycle()
	return &struct{ Body CycleBody }{Body: h.cycleBody()}, nil
}

func (h *APIHandler) autoRefreshBody() AutoRefreshBody {
	r := h.dash.Refresher()
	return AutoRefreshBody{
		Enabled:     r.Enabled(),
		Active:      r.Active(),
		Period:      h.dash.Config().Refresh.Period.String(),
		LastRefresh: h.dash.LastRefresh(),
	}
}

func (h *APIHandler) GetAutoRefresh(ctx context.Context, input *struct{}) (*struct{ Body AutoRefreshBody }, error) {
	return &struct{ Body AutoRefreshBody }{Body: h.autoRefreshBody()}, nil
}

func (h *APIHandler) PutAutoRefresh(ctx context.Context, input *AutoRefreshInput) (*struct{ Body AutoRefreshBody }, error) {
	h.dash.SetAutoRefresh(input.Body.Enabled)
	return &struct{ Body AutoRefreshBody }{Body: h.autoRefreshBody()}, nil
}

func (h *APIHandler) Refresh(ctx context.Context, input *struct{}) (*struct{ Body AutoRefreshBody }, error) {
	if err := h.dash.Refresh(ctx); err != nil {
		return nil, humaError(err)
	}
	return &struct{ Body AutoRefreshBody }{Body: h.autoRefreshBody()}, nil
}

func (h *APIHandler) PressKey(ctx context.Context, input *KeyInput) (*struct{ Body KeyBody }, error) {
	action, err := h.dash.HandleKey(ctx, input.Body.Key, input.Body.Ctrl)
	if err != nil {
		return nil, humaError(err)
	}
	return &struct{ Body KeyBody }{Body: KeyBody{Key: input.Body.Key, Action: action}}, nil
}

func (h *APIHandler) PutVisibility(ctx context.Context, input *VisibilityInput) (*struct{ Body MessageBody }, error) {
	h.dash.SetPageHidden(input.Body.Hidden)
	msg := "schedulers resumed"
	if input.Body.Hidden {
		msg = "schedulers paused"
	}
	return &struct{ Body MessageBody }{Body: MessageBody{Message: msg}}, nil
}

// ReportError feeds window.onerror reports from the page into the error
// capture.
func (h *APIHandler) ReportError(ctx context.Context, input *ClientErrorInput) (*struct{ Body MessageBody }, error) {
	source := "page"
	if input.Body.Source != "" {
		source = strings.TrimSpace(input.Body.Source)
	}
	h.dash.CaptureError(source, eris.Errorf("%s (line %d)", input.Body.Message, input.Body.Line))
	return &struct{ Body MessageBody }{Body: MessageBody{Message: "recorded"}}, nil
}
