package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/randalmurphal/tripflow/pkg/flowgraph/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func tripSettings() config.Config {
	return config.New(map[string]any{
		"store": map[string]any{
			"driver": "sqlite",
			"path":   "/var/lib/tripflow/sessions.db",
		},
		"commute": map[string]any{
			"workers":          4,
			"throttle":         "340ms",
			"fallback_minutes": 60.0,
			"max_attempts":     "5",
		},
		"refine": map[string]any{
			"max_iterations": 5,
		},
		"metrics": map[string]any{
			"enabled": "true",
		},
		"llm.provider": "gemini",
	})
}

func TestNew(t *testing.T) {
	tests := []struct {
		name string
		data map[string]any
	}{
		{"nil map", nil},
		{"empty map", map[string]any{}},
		{"with values", map[string]any{"key": "value"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.New(tt.data)
			assert.NotNil(t, cfg.Raw())
		})
	}
}

func TestDottedLookup(t *testing.T) {
	cfg := tripSettings()

	assert.Equal(t, "sqlite", cfg.String("store.driver", "memory"))
	assert.Equal(t, 4, cfg.Int("commute.workers", 1))
	assert.Equal(t, 340*time.Millisecond, cfg.Duration("commute.throttle", time.Second))
	assert.Equal(t, 60.0, cfg.Float("commute.fallback_minutes", 0))
	assert.Equal(t, 5, cfg.Int("refine.max_iterations", 0))

	// A literal key containing a dot wins over path walking.
	assert.Equal(t, "gemini", cfg.String("llm.provider", ""))

	assert.Equal(t, "memory", cfg.String("store.missing", "memory"))
	assert.Equal(t, 9, cfg.Int("store.driver.nested", 9), "walking through a scalar yields the default")
	assert.Equal(t, -1, cfg.Int("commute.workers.x", -1))
}

func TestLookup_YAMLAnyKeyedMap(t *testing.T) {
	cfg := config.New(map[string]any{
		"log": map[any]any{"level": "debug"},
	})
	assert.Equal(t, "debug", cfg.String("log.level", "info"))
}

func TestString(t *testing.T) {
	tests := []struct {
		name string
		data map[string]any
		want string
	}{
		{"key exists", map[string]any{"name": "alice"}, "alice"},
		{"key missing", map[string]any{"other": "value"}, "default"},
		{"empty string", map[string]any{"name": ""}, ""},
		{"wrong type int", map[string]any{"name": 123}, "default"},
		{"wrong type slice", map[string]any{"name": []string{"a"}}, "default"},
		{"nil map", nil, "default"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, config.New(tt.data).String("name", "default"))
		})
	}
}

func TestDuration(t *testing.T) {
	tests := []struct {
		name  string
		value any
		want  time.Duration
	}{
		{"string", "30s", 30 * time.Second},
		{"complex string", "1h30m", 90 * time.Minute},
		{"milliseconds", "500ms", 500 * time.Millisecond},
		{"int seconds", 45, 45 * time.Second},
		{"int64 seconds", int64(2), 2 * time.Second},
		{"float seconds", 1.5, 1500 * time.Millisecond},
		{"duration", 20 * time.Minute, 20 * time.Minute},
		{"zero", 0, 0},
		{"invalid string", "soon", 10 * time.Second},
		{"wrong type", true, 10 * time.Second},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.New(map[string]any{"session": map[string]any{"ttl": tt.value}})
			assert.Equal(t, tt.want, cfg.Duration("session.ttl", 10*time.Second))
		})
	}
}

func TestBool(t *testing.T) {
	tests := []struct {
		name  string
		value any
		want  bool
	}{
		{"true", true, true},
		{"false", false, false},
		{"string true", "true", true},
		{"string zero", "0", false},
		{"padded string", " 1 ", true},
		{"garbage string", "maybe", true},
		{"wrong type", 1, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.New(map[string]any{"enabled": tt.value})
			assert.Equal(t, tt.want, cfg.Bool("enabled", true))
		})
	}
}

func TestInt(t *testing.T) {
	tests := []struct {
		name  string
		value any
		want  int
	}{
		{"int", 42, 42},
		{"int64", int64(9223372036854775807), 9223372036854775807},
		{"whole float", 3.0, 3},
		{"fractional float", 3.5, -1},
		{"string", "8", 8},
		{"bad string", "eight", -1},
		{"wrong type", true, -1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.New(map[string]any{"n": tt.value})
			assert.Equal(t, tt.want, cfg.Int("n", -1))
		})
	}
}

func TestFloat(t *testing.T) {
	tests := []struct {
		name  string
		value any
		want  float64
	}{
		{"float", 12.5, 12.5},
		{"int", 60, 60},
		{"int64", int64(7), 7},
		{"string", "35.0", 35},
		{"bad string", "far", -1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.New(map[string]any{"f": tt.value})
			assert.Equal(t, tt.want, cfg.Float("f", -1))
		})
	}
}

func TestFromYAML(t *testing.T) {
	data := []byte(`
store:
  driver: sqlite
  path: sessions.db
commute:
  workers: 3
  throttle: 340ms
llm:
  provider: deepseek
`)
	cfg, err := config.FromYAML(data)
	require.NoError(t, err)
	assert.Equal(t, "sqlite", cfg.String("store.driver", ""))
	assert.Equal(t, 3, cfg.Int("commute.workers", 0))
	assert.Equal(t, 340*time.Millisecond, cfg.Duration("commute.throttle", 0))
	assert.Equal(t, "deepseek", cfg.String("llm.provider", ""))

	empty, err := config.FromYAML(nil)
	require.NoError(t, err)
	assert.Empty(t, empty.Raw())

	_, err = config.FromYAML([]byte("store: [unclosed"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse yaml")
}

func TestFromJSON(t *testing.T) {
	cfg, err := config.FromJSON([]byte(`{"refine": {"max_iterations": 3}}`))
	require.NoError(t, err)
	assert.Equal(t, 3, cfg.Int("refine.max_iterations", 0))

	empty, err := config.FromJSON([]byte("  "))
	require.NoError(t, err)
	assert.Empty(t, empty.Raw())

	_, err = config.FromJSON([]byte(`{"refine":`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse json")
}

func TestFromFile(t *testing.T) {
	dir := t.TempDir()
	yamlPath := filepath.Join(dir, "tripflow.YAML")
	jsonPath := filepath.Join(dir, "tripflow.json")
	txtPath := filepath.Join(dir, "tripflow.txt")
	badPath := filepath.Join(dir, "bad.yml")

	require.NoError(t, os.WriteFile(yamlPath, []byte("server:\n  addr: \":8080\"\n"), 0o644))
	require.NoError(t, os.WriteFile(jsonPath, []byte(`{"server": {"addr": ":9090"}}`), 0o644))
	require.NoError(t, os.WriteFile(txtPath, []byte("addr=:1"), 0o644))
	require.NoError(t, os.WriteFile(badPath, []byte("server: [x"), 0o644))

	cfg, err := config.FromFile(yamlPath)
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.String("server.addr", ""))

	cfg, err = config.FromFile(jsonPath)
	require.NoError(t, err)
	assert.Equal(t, ":9090", cfg.String("server.addr", ""))

	_, err = config.FromFile(txtPath)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported config file extension")

	_, err = config.FromFile(filepath.Join(dir, "missing.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "read config file")

	_, err = config.FromFile(badPath)
	require.Error(t, err)
	assert.Contains(t, err.Error(), badPath)
}
