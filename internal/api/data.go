package api

import (
	"context"
	"fmt"

	"github.com/danielgtaylor/huma/v2"
	"github.com/joeblew999/geodash/internal/analytics"
	"github.com/joeblew999/geodash/internal/catalog"
	"github.com/joeblew999/geodash/internal/humastar"
	"github.com/joeblew999/geodash/internal/state"
	"github.com/joeblew999/geodash/internal/stats"
)

// StatsBody holds the stat card figures and cache counters.
type StatsBody struct {
	stats.Stats
	Cache stats.CacheStats `json:"cache" doc:"Statistics cache counters"`
}

// DownloadOutput is a file attachment.
type DownloadOutput struct {
	ContentType        string `header:"Content-Type"`
	ContentDisposition string `header:"Content-Disposition"`
	Body               []byte
}

func attachment(contentType, name string, data []byte) *DownloadOutput {
	return &DownloadOutput{
		ContentType:        contentType,
		ContentDisposition: fmt.Sprintf(`attachment; filename="%s"`, name),
		Body:               data,
	}
}

type EventsInput struct {
	Event  string `query:"event" doc:"Only events with this name"`
	Offset int    `query:"offset" minimum:"0" default:"0" doc:"Items to skip"`
	Limit  int    `query:"limit" minimum:"0" maximum:"1000" default:"50" doc:"Page size"`
}

// SourcesBody lists the data files and the configured files that are absent.
type SourcesBody struct {
	Files   []catalog.File `json:"files" doc:"GeoJSON files under the data directory"`
	Missing []string       `json:"missing" doc:"Configured base datasets not found on disk"`
}

// RegisterData registers statistics, state, export and analytics routes.
func (h *APIHandler) RegisterData(api huma.API) {
	huma.Get(api, "/api/v1/stats", h.GetStats, huma.OperationTags("data"))
	huma.Get(api, "/api/v1/state", h.GetState, huma.OperationTags("data"))
	huma.Post(api, "/api/v1/state/save", h.SaveState, huma.OperationTags("data"))
	huma.Get(api, "/api/v1/export", h.Export, huma.OperationTags("data"))
	huma.Get(api, "/api/v1/analytics", h.GetAnalytics, huma.OperationTags("analytics"))
	huma.Get(api, "/api/v1/analytics/events", h.GetAnalyticsEvents, huma.OperationTags("analytics"))
	huma.Get(api, "/api/v1/analytics/export", h.ExportAnalytics, huma.OperationTags("analytics"))
}

// RegisterSources registers source listing routes.
func (h *APIHandler) RegisterSources(api huma.API) {
	huma.Get(api, "/api/v1/sources", h.GetSources, huma.OperationTags("sources"))
}

func (h *APIHandler) GetStats(ctx context.Context, input *struct{}) (*struct{ Body StatsBody }, error) {
	return &struct{ Body StatsBody }{Body: StatsBody{
		Stats: h.dash.Stats(),
		Cache: h.dash.StatsCache().Stats(),
	}}, nil
}

func (h *APIHandler) GetState(ctx context.Context, input *struct{}) (*struct{ Body state.Snapshot }, error) {
	return &struct{ Body state.Snapshot }{Body: h.dash.Snapshot()}, nil
}

func (h *APIHandler) SaveState(ctx context.Context, input *struct{}) (*struct{ Body state.Snapshot }, error) {
	if err := h.dash.SaveState(ctx); err != nil {
		return nil, huma.Error500InternalServerError("saving state failed", err)
	}
	return &struct{ Body state.Snapshot }{Body: h.dash.Snapshot()}, nil
}

func (h *APIHandler) Export(ctx context.Context, input *struct{}) (*DownloadOutput, error) {
	data, name, err := h.dash.Export()
	if err != nil {
		return nil, huma.Error500InternalServerError("export failed", err)
	}
	return attachment("application/geo+json", name, data), nil
}

func (h *APIHandler) GetAnalytics(ctx context.Context, input *struct{}) (*struct{ Body analytics.Report }, error) {
	return &struct{ Body analytics.Report }{Body: h.dash.Analytics().Report()}, nil
}

func (h *APIHandler) GetAnalyticsEvents(ctx context.Context, input *EventsInput) (*struct {
	Body humastar.PageBody[analytics.Metric]
}, error) {
	var events []analytics.Metric
	if input.Event != "" {
		events = h.dash.Analytics().Events(input.Event)
	} else {
		events = analytics.Flatten(h.dash.Analytics().All())
	}
	if events == nil {
		events = []analytics.Metric{}
	}
	return &struct {
		Body humastar.PageBody[analytics.Metric]
	}{Body: humastar.Paginate(events, input.Offset, input.Limit)}, nil
}

func (h *APIHandler) ExportAnalytics(ctx context.Context, input *struct{}) (*DownloadOutput, error) {
	data, name, err := h.dash.Analytics().Export()
	if err != nil {
		return nil, huma.Error500InternalServerError("analytics export failed", err)
	}
	return attachment("application/json", name, data), nil
}

func (h *APIHandler) GetSources(ctx context.Context, input *struct{}) (*struct{ Body SourcesBody }, error) {
	files, err := h.catalog.List()
	if err != nil {
		return nil, huma.Error500InternalServerError("listing data files failed", err)
	}
	d := h.dash.Config().Data
	missing := h.catalog.Missing([]string{d.Points, d.Areas, d.Routes})
	if missing == nil {
		missing = []string{}
	}
	return &struct{ Body SourcesBody }{Body: SourcesBody{Files: files, Missing: missing}}, nil
}
