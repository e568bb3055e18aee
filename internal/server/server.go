package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/joeblew999/geodash/internal/api"
	"github.com/joeblew999/geodash/internal/api/live"
	"github.com/joeblew999/geodash/internal/catalog"
	"github.com/joeblew999/geodash/internal/dashboard"
	"github.com/joeblew999/geodash/internal/effect"
	"github.com/joeblew999/geodash/internal/humastar"
	"github.com/joeblew999/geodash/internal/metrics"
	"github.com/joeblew999/geodash/internal/templates"
)

// Config holds the server configuration.
type Config struct {
	Host   string
	Port   string
	WebDir string // Path to web/ directory for the page, static files and data
}

// Server is the geodash HTTP server.
type Server struct {
	config   Config
	router   chi.Router
	humaAPI  huma.API
	dash     *dashboard.Dashboard
	bus      *effect.Bus
	renderer *templates.Renderer
	links    *humastar.Linker
	log      *zap.Logger
}

// New creates a new server around a dashboard whose effects are published
// on bus.
func New(cfg Config, dash *dashboard.Dashboard, bus *effect.Bus) *Server {
	log := zap.L().With(zap.String("component", "server"))
	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(requestLogger(log))
	router.Use(recoverer(dash))

	humaConfig := huma.DefaultConfig("geodash API", api.Version)
	humaConfig.Info.Description = "Server-driven geospatial monitoring dashboard: layers, monitored areas, filters, schedulers, analytics and a live Datastar effect stream."
	humaConfig.Servers = []*huma.Server{
		{URL: fmt.Sprintf("http://%s:%s", cfg.Host, cfg.Port), Description: "Local server"},
	}
	// Disable $schema property in responses (cleaner JSON)
	humaConfig.CreateHooks = []func(huma.Config) huma.Config{}
	links := humastar.NewLinker("/health")
	humaConfig.Transformers = append(humaConfig.Transformers, links.Transformer())

	humaAPI := humachi.New(router, humaConfig)

	s := &Server{
		config:   cfg,
		router:   router,
		humaAPI:  humaAPI,
		dash:     dash,
		bus:      bus,
		renderer: loadRenderer(cfg.WebDir, log),
		links:    links,
		log:      log,
	}
	s.routes()
	return s
}

// loadRenderer prefers fragments under web/templates/fragments so they can
// be edited without a rebuild.
func loadRenderer(webDir string, log *zap.Logger) *templates.Renderer {
	if webDir != "" {
		dir := filepath.Join(webDir, "templates", "fragments")
		if _, err := os.Stat(dir); err == nil {
			r, err := templates.New(os.DirFS(dir))
			if err == nil {
				log.Info("loaded fragment templates", zap.String("dir", dir))
				return r
			}
			log.Warn("fragment templates invalid, using built-in", zap.String("dir", dir), zap.Error(err))
		}
	}
	return templates.Default()
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// OpenAPI returns the generated API description.
func (s *Server) OpenAPI() *huma.OpenAPI {
	return s.humaAPI.OpenAPI()
}

func (s *Server) routes() {
	huma.AutoRegister(s.humaAPI, api.NewAPIHandler(s.dash, catalog.New(s.config.WebDir)))
	live.NewEventHandler(s.dash, s.bus, s.renderer).RegisterRoutes(s.humaAPI)
	s.links.Build(s.humaAPI)

	s.router.Handle("/metrics", metrics.Handler())

	if s.config.WebDir != "" {
		dataDir := filepath.Join(s.config.WebDir, "data")
		s.router.With(dataCORS()).Handle("/data/*", http.StripPrefix("/data/", http.FileServer(http.Dir(dataDir))))

		staticDir := filepath.Join(s.config.WebDir, "static")
		s.router.Handle("/static/*", http.StripPrefix("/static/", http.FileServer(http.Dir(staticDir))))
	}

	s.router.Get("/", s.handleRoot)
}

func dataCORS() func(http.Handler) http.Handler {
	return cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodHead, http.MethodOptions},
		AllowedHeaders: []string{"Range"},
		ExposedHeaders: []string{"Content-Length", "Content-Range", "Accept-Ranges"},
		MaxAge:         300,
	})
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	for _, link := range s.links.Root() {
		w.Header().Add("Link", link)
	}
	if s.config.WebDir != "" {
		page := filepath.Join(s.config.WebDir, "index.html")
		if _, err := os.Stat(page); err == nil {
			http.ServeFile(w, r, page)
			return
		}
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{
		"service": "geodash",
		"status":  string(s.dash.Mode()),
	})
}

// recoverer turns handler panics into a 500 and hands them to the dashboard's
// error capture.
func recoverer(dash *dashboard.Dashboard) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if v := recover(); v != nil {
					if v == http.ErrAbortHandler {
						panic(v)
					}
					dash.Recovered(r.Method+" "+r.URL.Path, v)
					w.WriteHeader(http.StatusInternalServerError)
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

func requestLogger(log *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)
			log.Debug("request",
				zap.String("id", middleware.GetReqID(r.Context())),
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Duration("took", time.Since(start)),
			)
		})
	}
}
