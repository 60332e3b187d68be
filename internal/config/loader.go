package config

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Environment names.
const (
	EnvPrefix = "OUTINGS_"
	EnvConfig = "OUTINGS_CONFIG"
)

// nestedKeys are the struct-valued keys; env names address their fields
// with one more underscore, e.g. OUTINGS_BUDDY_WEIGHTS_AGE.
var nestedKeys = []string{"buddy_weights", "event_weights"}

// Load builds a Config by layering defaults, optional file, and env vars.
// Order of precedence (low -> high):
//  1. defaults (New)
//  2. file (YAML) if OUTINGS_CONFIG is set
//  3. env (prefix OUTINGS_)
func Load(_ context.Context) (*Config, error) {
	base := New()

	k := koanf.New(".")

	if path := os.Getenv(EnvConfig); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("%w: file %s: %w", ErrLoadConfig, path, err)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("%w: env: %w", ErrLoadConfig, err)
	}

	cfg := *base
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoadConfig, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// envKey maps OUTINGS_QUEUE_SIZE to queue_size and
// OUTINGS_EVENT_WEIGHTS_TIME to event_weights.time.
func envKey(s string) string {
	s = strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	if s == "config" {
		return ""
	}
	for _, n := range nestedKeys {
		if strings.HasPrefix(s, n+"_") {
			return n + "." + strings.TrimPrefix(s, n+"_")
		}
	}
	return s
}
