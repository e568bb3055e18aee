package config

import (
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the dashboard configuration.
type Config struct {
	Log         LogConfig            `yaml:"log" mapstructure:"log"`
	Data        DataConfig           `yaml:"data" mapstructure:"data"`
	Cycle       CycleConfig          `yaml:"cycle" mapstructure:"cycle"`
	Refresh     RefreshConfig        `yaml:"refresh" mapstructure:"refresh"`
	State       StateConfig          `yaml:"state" mapstructure:"state"`
	Stats       StatsConfig          `yaml:"stats" mapstructure:"stats"`
	View        ViewConfig           `yaml:"view" mapstructure:"view"`
	Init        InitConfig           `yaml:"init" mapstructure:"init"`
	Analytics   AnalyticsConfig      `yaml:"analytics" mapstructure:"analytics"`
	BaseLayer   string               `yaml:"base_layer" mapstructure:"base_layer"`
	Areas       map[string]AreaEntry `yaml:"areas" mapstructure:"areas"`
	LayerLabels map[string]string    `yaml:"layer_labels" mapstructure:"layer_labels"`
}

// LogConfig configures the zap logger.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// DataConfig configures where GeoJSON is fetched from.
type DataConfig struct {
	BaseURL    string        `yaml:"base_url" mapstructure:"base_url"`
	Timeout    time.Duration `yaml:"timeout" mapstructure:"timeout"`
	RatePerSec float64       `yaml:"rate_per_sec" mapstructure:"rate_per_sec"`
	Points     string        `yaml:"points" mapstructure:"points"`
	Areas      string        `yaml:"areas" mapstructure:"areas"`
	Routes     string        `yaml:"routes" mapstructure:"routes"`
}

// CycleConfig configures the auto-run layer cycle.
type CycleConfig struct {
	Period                 time.Duration `yaml:"period" mapstructure:"period"`
	Layers                 []string      `yaml:"layers" mapstructure:"layers"`
	HideOnStop             bool          `yaml:"hide_on_stop" mapstructure:"hide_on_stop"`
	PreserveFirstTickQuirk bool          `yaml:"preserve_first_tick_quirk" mapstructure:"preserve_first_tick_quirk"`
}

// RefreshConfig configures periodic data reload.
type RefreshConfig struct {
	Period  time.Duration `yaml:"period" mapstructure:"period"`
	Enabled bool          `yaml:"enabled" mapstructure:"enabled"`
}

// StateConfig configures persisted dashboard state.
type StateConfig struct {
	Backend    string        `yaml:"backend" mapstructure:"backend"`
	Path       string        `yaml:"path" mapstructure:"path"`
	RedisAddr  string        `yaml:"redis_addr" mapstructure:"redis_addr"`
	SavePeriod time.Duration `yaml:"save_period" mapstructure:"save_period"`
}

// StatsConfig configures the statistics cache.
type StatsConfig struct {
	CacheTTL      time.Duration `yaml:"cache_ttl" mapstructure:"cache_ttl"`
	CleanupPeriod time.Duration `yaml:"cleanup_period" mapstructure:"cleanup_period"`
}

// ViewConfig holds the default map view. Center is [lat, lng].
type ViewConfig struct {
	Center     []float64 `yaml:"center" mapstructure:"center"`
	Zoom       float64   `yaml:"zoom" mapstructure:"zoom"`
	FitPadding float64   `yaml:"fit_padding" mapstructure:"fit_padding"`
	FitMaxZoom float64   `yaml:"fit_max_zoom" mapstructure:"fit_max_zoom"`
}

// InitConfig configures startup failure handling.
type InitConfig struct {
	FallbackDelay time.Duration `yaml:"fallback_delay" mapstructure:"fallback_delay"`
}

// AnalyticsConfig configures the analytics sink.
type AnalyticsConfig struct {
	History int `yaml:"history" mapstructure:"history"`
}

// AreaEntry describes one monitored area.
type AreaEntry struct {
	File  string `yaml:"file" mapstructure:"file"`
	Name  string `yaml:"name" mapstructure:"name"`
	Color string `yaml:"color" mapstructure:"color"`
}

// DefaultCycleLayers is the auto-run order.
var DefaultCycleLayers = []string{
	"eventos-fogo", "heatmap", "novos-eventos", "eventos-severos",
	"maior-area", "aerosol", "co", "pluma-fumaca", "alertas",
}

// DefaultLayerLabels are the display names shown while cycling.
var DefaultLayerLabels = map[string]string{
	"eventos-fogo":    "Eventos de Fogo",
	"heatmap":         "HeatMap",
	"novos-eventos":   "Novos Eventos",
	"eventos-severos": "Eventos mais Severos",
	"maior-area":      "Maior Área de Influência",
	"aerosol":         "Aerosol",
	"co":              "CO",
	"pluma-fumaca":    "Pluma de Fumaça",
	"alertas":         "Alertas",
	"pontos":          "Pontos de Interesse",
	"areas-especiais": "Áreas Especiais",
	"rotas":           "Rotas",
}

// DefaultAreas is the monitored area table.
var DefaultAreas = map[string]AreaEntry{
	"brasil":         {File: "./data/areas/brasil.geojson", Name: "Brasil", Color: "#2563eb"},
	"amazonia_legal": {File: "./data/areas/amazonia_legal.geojson", Name: "Amazônia Legal", Color: "#059669"},
	"bioma_amazonia": {File: "./data/areas/bioma_amazonia.geojson", Name: "Bioma Amazônia", Color: "#0d9488"},
	"bioma_pantanal": {File: "./data/areas/bioma_pantanal.geojson", Name: "Bioma Pantanal", Color: "#7c3aed"},
	"bioma_cerrado":  {File: "./data/areas/bioma_cerrado.geojson", Name: "Bioma Cerrado", Color: "#dc2626"},
	"crbe":           {File: "./data/areas/crbe.geojson", Name: "CRBE", Color: "#ea580c"},
	"para":           {File: "./data/areas/para.geojson", Name: "Pará", Color: "#7c2d12"},
	"tocantins":      {File: "./data/areas/tocantins.geojson", Name: "Tocantins", Color: "#92400e"},
	"amapa":          {File: "./data/areas/amapa.geojson", Name: "Amapá", Color: "#065f46"},
	"maranhao":       {File: "./data/areas/maranhao.geojson", Name: "Maranhão", Color: "#1e40af"},
}

// Default returns the built-in configuration.
func Default() *Config {
	areas := make(map[string]AreaEntry, len(DefaultAreas))
	for k, a := range DefaultAreas {
		areas[k] = a
	}
	labels := make(map[string]string, len(DefaultLayerLabels))
	for k, l := range DefaultLayerLabels {
		labels[k] = l
	}
	return &Config{
		Log: LogConfig{Level: "info", Format: "json"},
		Data: DataConfig{
			Timeout: 10 * time.Second,
			Points:  "./data/pontos_interesse.geojson",
			Areas:   "./data/areas_especiais.geojson",
			Routes:  "./data/rotas.geojson",
		},
		Cycle:       CycleConfig{Period: 30 * time.Second, Layers: append([]string(nil), DefaultCycleLayers...)},
		Refresh:     RefreshConfig{Period: 60 * time.Second, Enabled: true},
		State:       StateConfig{Backend: "file", Path: ".data", RedisAddr: "127.0.0.1:6379", SavePeriod: 5 * time.Minute},
		Stats:       StatsConfig{CacheTTL: 5 * time.Minute, CleanupPeriod: time.Minute},
		View:        ViewConfig{Center: []float64{-1.4558, -48.4902}, Zoom: 10, FitPadding: 20, FitMaxZoom: 12},
		Init:        InitConfig{FallbackDelay: 5 * time.Second},
		Analytics:   AnalyticsConfig{History: 100},
		BaseLayer:   "dark",
		Areas:       areas,
		LayerLabels: labels,
	}
}

// Load reads geodash.yaml (optional) from path or the working directory,
// applies GEODASH_* environment overrides and fills defaults.
func Load(path string) (*Config, error) {
	v := viper.New()

	// Config file
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("geodash")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	// Environment
	v.SetEnvPrefix("GEODASH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	d := Default()
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.format", d.Log.Format)
	v.SetDefault("data.base_url", d.Data.BaseURL)
	v.SetDefault("data.timeout", d.Data.Timeout)
	v.SetDefault("data.rate_per_sec", d.Data.RatePerSec)
	v.SetDefault("data.points", d.Data.Points)
	v.SetDefault("data.areas", d.Data.Areas)
	v.SetDefault("data.routes", d.Data.Routes)
	v.SetDefault("cycle.period", d.Cycle.Period)
	v.SetDefault("cycle.layers", d.Cycle.Layers)
	v.SetDefault("cycle.hide_on_stop", d.Cycle.HideOnStop)
	v.SetDefault("cycle.preserve_first_tick_quirk", d.Cycle.PreserveFirstTickQuirk)
	v.SetDefault("refresh.period", d.Refresh.Period)
	v.SetDefault("refresh.enabled", d.Refresh.Enabled)
	v.SetDefault("state.backend", d.State.Backend)
	v.SetDefault("state.path", d.State.Path)
	v.SetDefault("state.redis_addr", d.State.RedisAddr)
	v.SetDefault("state.save_period", d.State.SavePeriod)
	v.SetDefault("stats.cache_ttl", d.Stats.CacheTTL)
	v.SetDefault("stats.cleanup_period", d.Stats.CleanupPeriod)
	v.SetDefault("view.center", d.View.Center)
	v.SetDefault("view.zoom", d.View.Zoom)
	v.SetDefault("view.fit_padding", d.View.FitPadding)
	v.SetDefault("view.fit_max_zoom", d.View.FitMaxZoom)
	v.SetDefault("base_layer", d.BaseLayer)
	v.SetDefault("init.fallback_delay", d.Init.FallbackDelay)
	v.SetDefault("analytics.history", d.Analytics.History)

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	// Tables merge over the built-in ones so a file can add or override single entries.
	areas := make(map[string]AreaEntry, len(DefaultAreas))
	for k, a := range DefaultAreas {
		areas[k] = a
	}
	for k, a := range cfg.Areas {
		areas[k] = a
	}
	cfg.Areas = areas

	labels := make(map[string]string, len(DefaultLayerLabels))
	for k, l := range DefaultLayerLabels {
		labels[k] = l
	}
	for k, l := range cfg.LayerLabels {
		labels[k] = l
	}
	cfg.LayerLabels = labels

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks values that would make the dashboard misbehave.
func (c *Config) Validate() error {
	if len(c.View.Center) != 2 {
		return eris.Errorf("config: view.center needs [lat, lng], got %d values", len(c.View.Center))
	}
	if c.Cycle.Period <= 0 {
		return eris.New("config: cycle.period must be positive")
	}
	if c.Refresh.Period <= 0 {
		return eris.New("config: refresh.period must be positive")
	}
	if len(c.Cycle.Layers) == 0 {
		return eris.New("config: cycle.layers is empty")
	}
	switch c.BaseLayer {
	case "light", "dark":
	default:
		return eris.Errorf("config: base_layer %q must be light or dark", c.BaseLayer)
	}
	switch c.State.Backend {
	case "file", "duckdb", "redis", "none":
	default:
		return eris.Errorf("config: unknown state.backend %q", c.State.Backend)
	}
	return nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
