// Package config loads tripflow settings. Values are layered, lowest
// first: built-in defaults, an optional YAML or JSON file, then the
// environment. Every key can be overridden as TRIPFLOW_<SECTION>_<KEY>,
// for example TRIPFLOW_STORE_DRIVER. Provider keys are also read from
// their conventional names such as AMAP_API_KEY.
package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/spf13/viper"

	flowconfig "github.com/randalmurphal/tripflow/pkg/flowgraph/config"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "TRIPFLOW"

// ErrInvalidConfig is wrapped by Load when a setting is out of range.
var ErrInvalidConfig = errors.New("invalid configuration")

// Store drivers.
const (
	StoreMemory = "memory"
	StoreSQLite = "sqlite"
)

// LLM providers.
const (
	ProviderGemini   = "gemini"
	ProviderDeepSeek = "deepseek"
	ProviderQwen     = "qwen"
)

var defaults = map[string]any{
	"store.driver":             StoreSQLite,
	"store.path":               "tripflow.db",
	"llm.provider":             ProviderDeepSeek,
	"llm.model":                "",
	"commute.fallback_minutes": 60.0,
	"commute.workers":          4,
	"commute.throttle":         "340ms",
	"commute.max_attempts":     5,
	"geocode.cache_size":       512,
	"refine.max_iterations":    5,
	"server.addr":              ":8000",
	"log.level":                "info",
	"log.format":               "text",
	"session.ttl":              "168h",
	"metrics.enabled":          true,
	"tracing.enabled":          false,
}

// providerEnv maps key settings to the variable names the providers
// document.
var providerEnv = map[string]string{
	"keys.amap":      "AMAP_API_KEY",
	"keys.juhe":      "JUHE_TRAIN_API_KEY",
	"keys.serpapi":   "SERPAPI_FLIGHTS_API_KEY",
	"keys.deepseek":  "DEEPSEEK_API_KEY",
	"keys.dashscope": "DASHSCOPE_API_KEY",
	"keys.gemini":    "GEMINI_API_KEY",
}

// Settings is the typed view of the configuration.
type Settings struct {
	Store   StoreSettings
	LLM     LLMSettings
	Commute CommuteSettings
	Server  ServerSettings
	Log     LogSettings
	Keys    APIKeys

	// GeocodeCacheSize bounds the geocoding cache.
	GeocodeCacheSize int
	// MaxRefinements caps refinement rounds per session.
	MaxRefinements int
	// SessionTTL is how long an idle session is kept by prune.
	SessionTTL time.Duration
	Metrics    bool
	Tracing    bool
}

type StoreSettings struct {
	Driver string
	Path   string
}

type LLMSettings struct {
	Provider string
	Model    string
}

type CommuteSettings struct {
	FallbackMinutes float64
	Workers         int
	Throttle        time.Duration
	MaxAttempts     int
}

type ServerSettings struct {
	Addr string
}

type LogSettings struct {
	Level  string
	Format string
}

// APIKeys holds provider credentials. Empty keys select each provider's
// offline behaviour where one exists.
type APIKeys struct {
	Amap      string
	Juhe      string
	SerpAPI   string
	DeepSeek  string
	DashScope string
	Gemini    string
}

// LLMKey returns the key for the configured LLM provider.
func (s Settings) LLMKey() string {
	switch s.LLM.Provider {
	case ProviderGemini:
		return s.Keys.Gemini
	case ProviderQwen:
		return s.Keys.DashScope
	default:
		return s.Keys.DeepSeek
	}
}

// Load reads the settings: defaults, then the YAML or JSON file at path,
// then the environment. path may be empty to skip the file layer; a named
// file that cannot be read is an error.
func Load(path string) (Settings, flowconfig.Config, error) {
	v := viper.New()
	for k, val := range defaults {
		v.SetDefault(k, val)
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, name := range providerEnv {
		envKey := EnvPrefix + "_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		if err := v.BindEnv(key, envKey, name); err != nil {
			return Settings{}, flowconfig.Config{}, fmt.Errorf("bind %s: %w", key, err)
		}
	}

	if path != "" {
		file, err := flowconfig.FromFile(path)
		if err != nil {
			return Settings{}, flowconfig.Config{}, err
		}
		if err := v.MergeConfigMap(file.Raw()); err != nil {
			return Settings{}, flowconfig.Config{}, fmt.Errorf("merge config %s: %w", path, err)
		}
	}

	cfg := flowconfig.New(v.AllSettings())
	s, err := FromConfig(cfg)
	if err != nil {
		return Settings{}, flowconfig.Config{}, err
	}
	return s, cfg, nil
}

// FromConfig converts a merged configuration tree to Settings and
// validates it. Missing keys take their defaults.
func FromConfig(cfg flowconfig.Config) (Settings, error) {
	s := Settings{
		Store: StoreSettings{
			Driver: strings.ToLower(cfg.String("store.driver", StoreSQLite)),
			Path:   cfg.String("store.path", defaults["store.path"].(string)),
		},
		LLM: LLMSettings{
			Provider: strings.ToLower(cfg.String("llm.provider", ProviderDeepSeek)),
			Model:    cfg.String("llm.model", ""),
		},
		Commute: CommuteSettings{
			FallbackMinutes: cfg.Float("commute.fallback_minutes", 60),
			Workers:         cfg.Int("commute.workers", 4),
			Throttle:        cfg.Duration("commute.throttle", 340*time.Millisecond),
			MaxAttempts:     cfg.Int("commute.max_attempts", 5),
		},
		Server: ServerSettings{Addr: cfg.String("server.addr", ":8000")},
		Log: LogSettings{
			Level:  strings.ToLower(cfg.String("log.level", "info")),
			Format: strings.ToLower(cfg.String("log.format", "text")),
		},
		Keys: APIKeys{
			Amap:      cfg.String("keys.amap", ""),
			Juhe:      cfg.String("keys.juhe", ""),
			SerpAPI:   cfg.String("keys.serpapi", ""),
			DeepSeek:  cfg.String("keys.deepseek", ""),
			DashScope: cfg.String("keys.dashscope", ""),
			Gemini:    cfg.String("keys.gemini", ""),
		},
		GeocodeCacheSize: cfg.Int("geocode.cache_size", 512),
		MaxRefinements:   cfg.Int("refine.max_iterations", 5),
		SessionTTL:       cfg.Duration("session.ttl", 7*24*time.Hour),
		Metrics:          cfg.Bool("metrics.enabled", true),
		Tracing:          cfg.Bool("tracing.enabled", false),
	}
	return s, s.validate()
}

func (s Settings) validate() error {
	var problems []string
	if !slices.Contains([]string{StoreMemory, StoreSQLite}, s.Store.Driver) {
		problems = append(problems, fmt.Sprintf("store.driver %q is not memory or sqlite", s.Store.Driver))
	}
	if s.Store.Driver == StoreSQLite && s.Store.Path == "" {
		problems = append(problems, "store.path is required for sqlite")
	}
	if !slices.Contains([]string{ProviderGemini, ProviderDeepSeek, ProviderQwen}, s.LLM.Provider) {
		problems = append(problems, fmt.Sprintf("llm.provider %q is not gemini, deepseek or qwen", s.LLM.Provider))
	}
	if s.Commute.Workers < 1 {
		problems = append(problems, "commute.workers must be at least 1")
	}
	if s.Commute.MaxAttempts < 1 {
		problems = append(problems, "commute.max_attempts must be at least 1")
	}
	if s.Commute.Throttle < 0 {
		problems = append(problems, "commute.throttle must not be negative")
	}
	if s.MaxRefinements < 0 {
		problems = append(problems, "refine.max_iterations must not be negative")
	}
	if _, err := s.Log.level(); err != nil {
		problems = append(problems, err.Error())
	}
	if s.Log.Format != "text" && s.Log.Format != "json" {
		problems = append(problems, fmt.Sprintf("log.format %q is not text or json", s.Log.Format))
	}
	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(problems, "; "))
	}
	return nil
}

func (l LogSettings) level() (slog.Level, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(l.Level)); err != nil {
		return 0, fmt.Errorf("log.level %q is not debug, info, warn or error", l.Level)
	}
	return lvl, nil
}

// NewLogger builds a logger writing to w in the configured format.
func (l LogSettings) NewLogger(w io.Writer) *slog.Logger {
	lvl, err := l.level()
	if err != nil {
		lvl = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: lvl}
	if l.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}
