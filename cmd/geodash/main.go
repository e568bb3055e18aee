package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/danielgtaylor/huma/v2/humacli"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/joeblew999/geodash/internal/config"
	"github.com/joeblew999/geodash/internal/dashboard"
	"github.com/joeblew999/geodash/internal/effect"
	"github.com/joeblew999/geodash/internal/geodata"
	"github.com/joeblew999/geodash/internal/server"
	"github.com/joeblew999/geodash/internal/state"
)

// Options defines all CLI flags and env vars for the dashboard server.
// Flags: --host, --port, --data-dir, --web-dir, --config
// Env vars: SERVICE_HOST, SERVICE_PORT, SERVICE_DATA_DIR, SERVICE_WEB_DIR, SERVICE_CONFIG
type Options struct {
	Host    string `doc:"Host to bind to" default:"0.0.0.0"`
	Port    int    `doc:"Port to listen on" short:"p" default:"8086"`
	DataDir string `doc:"Directory for persisted state (overrides state.path)"`
	WebDir  string `doc:"Path to web/ directory" default:"web"`
	Config  string `doc:"Path to geodash.yaml" short:"c"`
}

// app is everything one process needs.
type app struct {
	cfg   *config.Config
	store state.Store
	bus   *effect.Bus
	dash  *dashboard.Dashboard
	srv   *server.Server
}

func setup(ctx context.Context, opts *Options) (*app, error) {
	cfg, err := config.Load(opts.Config)
	if err != nil {
		return nil, err
	}
	if err := config.InitLogger(cfg.Log); err != nil {
		return nil, err
	}
	if opts.DataDir != "" {
		cfg.State.Path = opts.DataDir
	}

	store, err := state.Open(ctx, state.Options{
		Backend:   cfg.State.Backend,
		Path:      cfg.State.Path,
		RedisAddr: cfg.State.RedisAddr,
	})
	if err != nil {
		zap.L().Warn("state backend unavailable, state will not persist", zap.Error(err))
		store = state.Nop{}
	}

	loader, err := geodata.New(geodata.Options{
		BaseURL:    cfg.Data.BaseURL,
		Root:       opts.WebDir,
		Timeout:    cfg.Data.Timeout,
		RatePerSec: cfg.Data.RatePerSec,
	})
	if err != nil {
		store.Close()
		return nil, err
	}

	bus := effect.NewBus()
	dash := dashboard.New(cfg, dashboard.Deps{
		Loader:  loader,
		Store:   store,
		Effects: bus,
	})
	srv := server.New(server.Config{
		Host:   opts.Host,
		Port:   fmt.Sprintf("%d", opts.Port),
		WebDir: opts.WebDir,
	}, dash, bus)

	return &app{cfg: cfg, store: store, bus: bus, dash: dash, srv: srv}, nil
}

func (a *app) close(ctx context.Context) {
	if err := a.dash.Shutdown(ctx); err != nil {
		zap.L().Warn("shutdown", zap.Error(err))
	}
	if err := a.store.Close(); err != nil {
		zap.L().Warn("closing state store", zap.Error(err))
	}
	zap.L().Sync()
}

func fatal(msg string, err error) {
	fmt.Fprintf(os.Stderr, "%s: %v\n", msg, err)
	os.Exit(1)
}

func main() {
	cli := humacli.New(func(hooks humacli.Hooks, opts *Options) {
		var (
			a       *app
			httpSrv *http.Server
		)

		hooks.OnStart(func() {
			ctx := context.Background()
			var err error
			a, err = setup(ctx, opts)
			if err != nil {
				fatal("Startup error", err)
			}

			addr := fmt.Sprintf("%s:%d", opts.Host, opts.Port)
			displayHost := opts.Host
			if displayHost == "0.0.0.0" {
				displayHost = "localhost"
			}
			baseURL := fmt.Sprintf("http://%s:%d", displayHost, opts.Port)

			fmt.Println()
			fmt.Printf("geodash server starting...\n")
			fmt.Printf("  Server:  %s\n", baseURL)
			fmt.Printf("  Web:     %s\n", opts.WebDir)
			fmt.Printf("  State:   %s (%s)\n", a.cfg.State.Backend, a.cfg.State.Path)
			fmt.Println()
			fmt.Printf("  Docs:    %s/docs\n", baseURL)
			fmt.Printf("  OpenAPI: %s/openapi.json\n", baseURL)
			fmt.Printf("  Metrics: %s/metrics\n", baseURL)
			fmt.Println()

			// Init failures leave the dashboard in its failed or fallback mode;
			// the page still loads and shows the error.
			if err := a.dash.Init(ctx); err != nil {
				zap.L().Error("dashboard init failed", zap.Error(err))
			}

			httpSrv = &http.Server{Addr: addr, Handler: a.srv}
			if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				fatal("Server error", err)
			}
		})

		hooks.OnStop(func() {
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if httpSrv != nil {
				httpSrv.Shutdown(ctx)
			}
			if a != nil {
				a.close(ctx)
			}
		})
	})

	cli.Root().Use = "geodash"
	cli.Root().Short = "Geospatial monitoring dashboard"
	cli.Root().Version = "1.0.0"

	// spec subcommand: export OpenAPI spec
	specCmd := &cobra.Command{
		Use:   "spec",
		Short: "Export OpenAPI spec (JSON by default, --yaml for YAML)",
		Run: humacli.WithOptions(func(cmd *cobra.Command, args []string, opts *Options) {
			a, err := setup(cmd.Context(), opts)
			if err != nil {
				fatal("Startup error", err)
			}
			defer a.store.Close()
			spec := a.srv.OpenAPI()

			useYAML, _ := cmd.Flags().GetBool("yaml")

			var output []byte
			if useYAML {
				output, err = yaml.Marshal(spec)
			} else {
				output, err = json.MarshalIndent(spec, "", "  ")
			}
			if err != nil {
				fatal("Error marshaling spec", err)
			}
			fmt.Println(string(output))
		}),
	}
	specCmd.Flags().BoolP("yaml", "y", false, "Output as YAML instead of JSON")
	cli.Root().AddCommand(specCmd)

	// export subcommand: load the data once and write the GeoJSON bundle
	exportCmd := &cobra.Command{
		Use:   "export",
		Short: "Load the dashboard data and write the export bundle",
		Run: humacli.WithOptions(func(cmd *cobra.Command, args []string, opts *Options) {
			data, name, err := runOnce(cmd.Context(), opts, func(d *dashboard.Dashboard) ([]byte, string, error) {
				return d.Export()
			})
			if err != nil {
				fatal("Export error", err)
			}
			out, _ := cmd.Flags().GetString("output")
			path := filepath.Join(out, name)
			if err := os.WriteFile(path, data, 0644); err != nil {
				fatal("Export error", err)
			}
			fmt.Printf("Data exported to %s\n", path)
		}),
	}
	exportCmd.Flags().StringP("output", "o", ".", "Output directory")
	cli.Root().AddCommand(exportCmd)

	// analytics subcommand: print the analytics report of a load
	analyticsCmd := &cobra.Command{
		Use:   "analytics",
		Short: "Load the dashboard data and print the analytics report",
		Run: humacli.WithOptions(func(cmd *cobra.Command, args []string, opts *Options) {
			data, _, err := runOnce(cmd.Context(), opts, func(d *dashboard.Dashboard) ([]byte, string, error) {
				out, err := json.MarshalIndent(d.Analytics().Report(), "", "  ")
				return out, "", err
			})
			if err != nil {
				fatal("Analytics error", err)
			}
			fmt.Println(string(data))
		}),
	}
	cli.Root().AddCommand(analyticsCmd)

	cli.Run()
}

// runOnce initialises a dashboard, runs fn against it and shuts it down.
func runOnce(ctx context.Context, opts *Options, fn func(*dashboard.Dashboard) ([]byte, string, error)) ([]byte, string, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	a, err := setup(ctx, opts)
	if err != nil {
		return nil, "", err
	}
	defer a.close(ctx)

	if err := a.dash.Init(ctx); err != nil {
		return nil, "", eris.Wrap(err, "geodash: init")
	}
	return fn(a.dash)
}
