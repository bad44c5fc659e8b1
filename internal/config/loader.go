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

// EnvPrefix prefixes every environment variable the loader reads.
const EnvPrefix = "FINDNA_"

// PathEnv names the environment variable holding the YAML file path.
const PathEnv = EnvPrefix + "CONFIG"

// listKeys are the keys decoded into slices.
var listKeys = map[string]struct{}{ //nolint:gochecknoglobals // fixed key set
	"horizons": {},
}

// Load builds a Config by layering defaults, optional file, and env vars.
// Order of precedence (low -> high):
//  1. defaults (New())
//  2. file (YAML) if FINDNA_CONFIG is set
//  3. env (prefix FINDNA_)
//
// The result is validated.
func Load(ctx context.Context) (*Config, error) {
	return LoadFile(ctx, os.Getenv(PathEnv))
}

// LoadFile is Load with an explicit YAML path. An empty path skips the file.
func LoadFile(_ context.Context, path string) (*Config, error) {
	k := koanf.New(".")

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("%w: read %s: %w", ErrLoadConfig, path, err)
		}
	}

	// Map env keys like FINDNA_SOURCE_TIMEOUT -> source_timeout (flat keys).
	// List keys take comma separated values: FINDNA_HORIZONS=10,20.
	envProvider := env.ProviderWithValue(EnvPrefix, ".", func(key, value string) (string, interface{}) {
		key = strings.ToLower(strings.TrimPrefix(key, EnvPrefix))
		if _, ok := listKeys[key]; ok {
			return key, splitList(value)
		}
		return key, value
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("%w: read environment: %w", ErrLoadConfig, err)
	}

	cfg := New()
	// Slices are decoded element-wise over the default, so a shorter list
	// would keep the default's tail.
	if k.Exists("horizons") {
		cfg.Horizons = nil
	}
	if err := k.UnmarshalWithConf("", cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("%w: decode: %w", ErrLoadConfig, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func splitList(value string) []string {
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
