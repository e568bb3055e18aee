// Package api defines the Huma API routes and handlers.
package api

import (
	"context"
	"errors"

	"github.com/danielgtaylor/huma/v2"
	"github.com/joeblew999/geodash/internal/area"
	"github.com/joeblew999/geodash/internal/catalog"
	"github.com/joeblew999/geodash/internal/dashboard"
	"github.com/joeblew999/geodash/internal/geodata"
	"github.com/joeblew999/geodash/internal/layer"
	"github.com/joeblew999/geodash/internal/mapview"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// Version is reported by /health and /api/v1/info.
const Version = "1.0.0"

// APIHandler holds all REST API handlers. Methods named Register* are
// auto-discovered by huma.AutoRegister.
type APIHandler struct {
	dash    *dashboard.Dashboard
	catalog *catalog.Catalog
	log     *zap.Logger
}

func NewAPIHandler(dash *dashboard.Dashboard, cat *catalog.Catalog) *APIHandler {
	return &APIHandler{
		dash:    dash,
		catalog: cat,
		log:     zap.L().With(zap.String("component", "api")),
	}
}

// Types

type MessageBody struct {
	Message string `json:"message" doc:"Result message"`
}

type HealthBody struct {
	Status  string         `json:"status" doc:"Health status" example:"ok" enum:"ok,degraded,starting"`
	Version string         `json:"version" doc:"API version" example:"1.0.0"`
	Mode    dashboard.Mode `json:"mode" doc:"Dashboard startup state"`
}

type InfoBody struct {
	Name     string   `json:"name" doc:"Service name"`
	Version  string   `json:"version" doc:"Service version"`
	DataDir  string   `json:"data_dir" doc:"Data directory path"`
	Session  string   `json:"session" doc:"Analytics session id"`
	Features []string `json:"features" doc:"Available features"`
}

// RegisterHealth registers health check routes.
func (h *APIHandler) RegisterHealth(api huma.API) {
	huma.Get(api, "/health", h.GetHealth, huma.OperationTags("health"))
	huma.Get(api, "/api/v1/info", h.GetInfo, huma.OperationTags("health"))
	huma.Get(api, "/api/v1/status", h.GetStatus, huma.OperationTags("dashboard"))
}

// Handlers

func (h *APIHandler) GetHealth(ctx context.Context, input *struct{}) (*struct{ Body HealthBody }, error) {
	mode := h.dash.Mode()
	status := "ok"
	switch mode {
	case dashboard.ModeStarting:
		status = "starting"
	case dashboard.ModeFailed, dashboard.ModeFallback:
		status = "degraded"
	}
	return &struct{ Body HealthBody }{Body: HealthBody{Status: status, Version: Version, Mode: mode}}, nil
}

func (h *APIHandler) GetInfo(ctx context.Context, input *struct{}) (*struct{ Body InfoBody }, error) {
	return &struct{ Body InfoBody }{Body: InfoBody{
		Name:     "geodash",
		Version:  Version,
		DataDir:  h.catalog.DataDir(),
		Session:  h.dash.Analytics().Session(),
		Features: []string{"layers", "areas", "filters", "auto-run", "auto-refresh", "export", "analytics", "sse"},
	}}, nil
}

func (h *APIHandler) GetStatus(ctx context.Context, input *struct{}) (*struct{ Body dashboard.Status }, error) {
	return &struct{ Body dashboard.Status }{Body: h.dash.Status()}, nil
}

// humaError maps dashboard errors onto HTTP problems.
func humaError(err error) error {
	var se *geodata.StatusError
	switch {
	case err == nil:
		return nil
	case eris.Is(err, layer.ErrUnknownLayer):
		return huma.Error404NotFound("layer not found", err)
	case eris.Is(err, area.ErrUnknownArea):
		return huma.Error404NotFound("area not found", err)
	case eris.Is(err, mapview.ErrUnknownBase):
		return huma.Error400BadRequest("unknown base layer", err)
	case eris.Is(err, dashboard.ErrNotReady):
		return huma.Error503ServiceUnavailable("dashboard not ready", err)
	case eris.Is(err, area.ErrSuperseded):
		return huma.Error409Conflict("selection superseded by a newer request", err)
	case errors.As(err, &se):
		return huma.Error502BadGateway("upstream data fetch failed", err)
	case eris.Is(err, context.Canceled), eris.Is(err, context.DeadlineExceeded):
		return huma.Error503ServiceUnavailable("request cancelled", err)
	}
	return huma.Error500InternalServerError("internal error", err)
}
