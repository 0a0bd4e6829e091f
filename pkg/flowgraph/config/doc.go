/*
Package config provides type-safe extraction from nested map[string]any
configuration trees.

# Overview

Config wraps a map and returns typed values with defaults, so callers never
juggle type assertions. Keys may be dotted paths that walk nested sections,
which matches the shape produced by YAML files and by viper's AllSettings.

	cfg := config.New(map[string]any{
	    "commute": map[string]any{
	        "workers":  4,
	        "throttle": "340ms",
	    },
	})

	workers := cfg.Int("commute.workers", 1)                 // 4
	throttle := cfg.Duration("commute.throttle", time.Second) // 340ms
	fallback := cfg.Float("commute.fallback_minutes", 60)     // 60

# Type Coercion

Environment overrides arrive as strings, so Int, Float and Bool also parse
string values. Duration accepts a time.ParseDuration string, a number of
seconds, or a time.Duration. A value that cannot be converted yields the
default, as does a float with a fractional part requested as Int.

# File Loading

	cfg, err := config.FromFile("tripflow.yaml")

FromFile picks YAML or JSON by extension. FromYAML and FromJSON parse bytes.

# Thread Safety

Config is safe for concurrent reads as long as the wrapped map is not
modified after New.
*/
package config
