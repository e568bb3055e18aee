package api

import (
	"context"
	"net/http"
	"slices"

	"github.com/danielgtaylor/huma/v2"
	"github.com/joeblew999/geodash/internal/area"
	"github.com/joeblew999/geodash/internal/humastar"
	"github.com/rotisserie/eris"
)

var areaActions = []humastar.ActionDef{
	{Rel: "select", Pattern: "/api/v1/areas/%s/select", Method: http.MethodPost, Title: "Selecionar área"},
}

type AreaKeyInput struct {
	Key string `path:"key" doc:"Area key" example:"para"`
}

// AreaBody describes one selectable area.
type AreaBody struct {
	area.Config
	Cached  bool `json:"cached" doc:"Whether the boundary is already loaded"`
	Current bool `json:"current" doc:"Whether the area is on the map"`
}

// Actions offers selection for areas that are not on the map.
func (b AreaBody) Actions() []humastar.Action {
	if b.Current {
		return []humastar.Action{{Rel: "clear", Href: "/api/v1/area-selection", Method: http.MethodDelete, Title: "Limpar área"}}
	}
	return humastar.ActionsFor(b.Key, areaActions...)
}

type AreasOutput struct {
	Body []AreaBody
}

type AreaOutput struct {
	Body AreaBody
}

// SelectionBody is the area selector state.
type SelectionBody struct {
	Area  string              `json:"area" doc:"Selected area key, empty when none"`
	State string              `json:"state" doc:"Area controller state" enum:"idle,loading,cached-display"`
	Cache area.AreaCacheStats `json:"cache" doc:"Area cache statistics"`
}

// SelectionInput accepts the Datastar signals of the area selector.
type SelectionInput struct {
	Body struct {
		Area string   `json:"area" doc:"Area key, empty clears the selection"`
		_    struct{} `json:"-" additionalProperties:"true"`
	}
}

// RegisterAreas registers monitored area routes.
func (h *APIHandler) RegisterAreas(api huma.API) {
	huma.Get(api, "/api/v1/areas", h.GetAreas, huma.OperationTags("areas"))
	huma.Get(api, "/api/v1/areas/{key}", h.GetArea, huma.OperationTags("areas"))
	huma.Post(api, "/api/v1/areas/{key}/select", h.SelectArea, huma.OperationTags("areas"))
	huma.Get(api, "/api/v1/area-selection", h.GetSelection, huma.OperationTags("areas"))
	huma.Put(api, "/api/v1/area-selection", h.PutSelection, huma.OperationTags("areas"))
	huma.Delete(api, "/api/v1/area-selection", h.ClearSelection, huma.OperationTags("areas"))
}

func (h *APIHandler) areaBody(cfg area.Config) AreaBody {
	cached := h.dash.Areas().Cache().Stats().Keys
	current, _ := h.dash.Areas().Current()
	return AreaBody{Config: cfg, Cached: slices.Contains(cached, cfg.Key), Current: current == cfg.Key}
}

func (h *APIHandler) selection() SelectionBody {
	current, _ := h.dash.Areas().Current()
	return SelectionBody{
		Area:  current,
		State: h.dash.Areas().State().String(),
		Cache: h.dash.Areas().Cache().Stats(),
	}
}

func (h *APIHandler) GetAreas(ctx context.Context, input *struct{}) (*AreasOutput, error) {
	configs := h.dash.Areas().Configs()
	out := make([]AreaBody, 0, len(configs))
	for _, c := range configs {
		out = append(out, h.areaBody(c))
	}
	return &AreasOutput{Body: out}, nil
}

func (h *APIHandler) GetArea(ctx context.Context, input *AreaKeyInput) (*AreaOutput, error) {
	cfg, ok := h.dash.Areas().Config(input.Key)
	if !ok {
		return nil, huma.Error404NotFound("area not found")
	}
	return &AreaOutput{Body: h.areaBody(cfg)}, nil
}

func (h *APIHandler) SelectArea(ctx context.Context, input *AreaKeyInput) (*AreaOutput, error) {
	if err := h.selectArea(ctx, input.Key); err != nil {
		return nil, err
	}
	cfg, _ := h.dash.Areas().Config(input.Key)
	return &AreaOutput{Body: h.areaBody(cfg)}, nil
}

func (h *APIHandler) selectArea(ctx context.Context, key string) error {
	err := h.dash.SelectArea(ctx, key)
	if err == nil {
		return nil
	}
	if eris.Is(err, area.ErrUnknownArea) || eris.Is(err, area.ErrSuperseded) {
		return humaError(err)
	}
	return huma.Error502BadGateway("area boundary could not be loaded", err)
}

func (h *APIHandler) GetSelection(ctx context.Context, input *struct{}) (*struct{ Body SelectionBody }, error) {
	return &struct{ Body SelectionBody }{Body: h.selection()}, nil
}

func (h *APIHandler) PutSelection(ctx context.Context, input *SelectionInput) (*struct{ Body SelectionBody }, error) {
	if err := h.selectArea(ctx, input.Body.Area); err != nil {
		return nil, err
	}
	return &struct{ Body SelectionBody }{Body: h.selection()}, nil
}

func (h *APIHandler) ClearSelection(ctx context.Context, input *struct{}) (*struct{ Body SelectionBody }, error) {
	h.dash.ClearArea()
	return &struct{ Body SelectionBody }{Body: h.selection()}, nil
}
