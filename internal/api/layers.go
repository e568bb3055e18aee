package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/joeblew999/geodash/internal/humastar"
	"github.com/joeblew999/geodash/internal/layer"
	"github.com/joeblew999/geodash/internal/mapview"
)

var layerActions = []humastar.ActionDef{
	{Rel: "toggle", Pattern: "/api/v1/layers/%s/toggle", Method: http.MethodPost, Title: "Alternar camada"},
	{Rel: "show", Pattern: "/api/v1/layers/%s/show", Method: http.MethodPost, Title: "Mostrar camada"},
	{Rel: "hide", Pattern: "/api/v1/layers/%s/hide", Method: http.MethodPost, Title: "Ocultar camada"},
}

type LayerNameInput struct {
	Name string `path:"name" doc:"Layer name" example:"eventos-fogo"`
}

// LayerBody summarises one layer.
type LayerBody struct {
	Name     string     `json:"name" doc:"Layer name"`
	Label    string     `json:"label" doc:"Display label"`
	Kind     layer.Kind `json:"kind,omitempty" doc:"Geometry kind"`
	Built    bool       `json:"built" doc:"Whether the layer has been created"`
	Visible  bool       `json:"visible" doc:"Whether the layer is on the map"`
	Features int        `json:"features" doc:"Number of features"`
}

// Actions exposes state-dependent controls as Link headers.
func (b LayerBody) Actions() []humastar.Action {
	all := humastar.ActionsFor(b.Name, layerActions...)
	if b.Visible {
		return []humastar.Action{all[0], all[2]}
	}
	return []humastar.Action{all[0], all[1]}
}

// LayerDetailBody is a layer with its styled features.
type LayerDetailBody struct {
	LayerBody
	Elements []layer.Element `json:"elements" doc:"Features with their current style"`
}

type LayerOutput struct {
	Body LayerBody
}

type LayersOutput struct {
	Body []LayerBody
}

type BaseLayerBody struct {
	Active string              `json:"active" doc:"Active base layer" enum:"light,dark"`
	Layers []mapview.BaseLayer `json:"layers" doc:"Available base layers"`
}

type BaseLayerInput struct {
	Body struct {
		Name string   `json:"name" doc:"Base layer to activate" enum:"light,dark"`
		_    struct{} `json:"-" additionalProperties:"true"`
	}
}

// RegisterLayers registers layer routes.
func (h *APIHandler) RegisterLayers(api huma.API) {
	huma.Get(api, "/api/v1/layers", h.GetLayers, huma.OperationTags("layers"))
	huma.Get(api, "/api/v1/layers/{name}", h.GetLayer, huma.OperationTags("layers"))
	huma.Post(api, "/api/v1/layers/{name}/toggle", h.ToggleLayer, huma.OperationTags("layers"))
	huma.Post(api, "/api/v1/layers/{name}/show", h.ShowLayer, huma.OperationTags("layers"))
	huma.Post(api, "/api/v1/layers/{name}/hide", h.HideLayer, huma.OperationTags("layers"))
}

// RegisterBaseLayer registers base map routes.
func (h *APIHandler) RegisterBaseLayer(api huma.API) {
	huma.Get(api, "/api/v1/base-layer", h.GetBaseLayer, huma.OperationTags("map"))
	huma.Put(api, "/api/v1/base-layer", h.PutBaseLayer, huma.OperationTags("map"))
}

func (h *APIHandler) layerBody(name string) LayerBody {
	reg := h.dash.Layers()
	b := LayerBody{Name: name, Label: h.dash.Config().LayerLabels[name], Visible: reg.IsVisible(name)}
	if l, ok := reg.Get(name); ok {
		b.Built = true
		b.Kind = l.Kind
		b.Features = l.Len()
		if l.Label != "" {
			b.Label = l.Label
		}
	}
	if b.Label == "" {
		b.Label = name
	}
	return b
}

func (h *APIHandler) GetLayers(ctx context.Context, input *struct{}) (*LayersOutput, error) {
	names := h.dash.Layers().Names()
	out := make([]LayerBody, 0, len(names))
	for _, n := range names {
		out = append(out, h.layerBody(n))
	}
	return &LayersOutput{Body: out}, nil
}

func (h *APIHandler) GetLayer(ctx context.Context, input *LayerNameInput) (*struct{ Body LayerDetailBody }, error) {
	if !h.dash.Layers().Known(input.Name) {
		return nil, huma.Error404NotFound("layer not found")
	}
	body := LayerDetailBody{LayerBody: h.layerBody(input.Name), Elements: []layer.Element{}}
	if l, ok := h.dash.Layers().Get(input.Name); ok {
		body.Elements = l.Elements()
	}
	return &struct{ Body LayerDetailBody }{Body: body}, nil
}

func (h *APIHandler) ToggleLayer(ctx context.Context, input *LayerNameInput) (*LayerOutput, error) {
	if _, err := h.dash.ToggleLayer(input.Name); err != nil {
		return nil, humaError(err)
	}
	return &LayerOutput{Body: h.layerBody(input.Name)}, nil
}

func (h *APIHandler) ShowLayer(ctx context.Context, input *LayerNameInput) (*LayerOutput, error) {
	if err := h.dash.ShowLayer(input.Name); err != nil {
		return nil, humaError(err)
	}
	return &LayerOutput{Body: h.layerBody(input.Name)}, nil
}

func (h *APIHandler) HideLayer(ctx context.Context, input *LayerNameInput) (*LayerOutput, error) {
	if !h.dash.Layers().Known(input.Name) {
		return nil, huma.Error404NotFound("layer not found")
	}
	if err := h.dash.HideLayer(input.Name); err != nil {
		return nil, humaError(err)
	}
	return &LayerOutput{Body: h.layerBody(input.Name)}, nil
}

func (h *APIHandler) baseLayerBody() BaseLayerBody {
	return BaseLayerBody{
		Active: h.dash.View().Base(),
		Layers: []mapview.BaseLayer{mapview.BaseLayers[mapview.BaseLight], mapview.BaseLayers[mapview.BaseDark]},
	}
}

func (h *APIHandler) GetBaseLayer(ctx context.Context, input *struct{}) (*struct{ Body BaseLayerBody }, error) {
	return &struct{ Body BaseLayerBody }{Body: h.baseLayerBody()}, nil
}

func (h *APIHandler) PutBaseLayer(ctx context.Context, input *BaseLayerInput) (*struct{ Body BaseLayerBody }, error) {
	if err := h.dash.SwitchBaseLayer(input.Body.Name); err != nil {
		return nil, humaError(err)
	}
	return &struct{ Body BaseLayerBody }{Body: h.baseLayerBody()}, nil
}
