// Package config loads application configuration from, in order of
// precedence: command-line flags, LECTURELENS_* environment variables,
// and an optional YAML file.
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"

	"github.com/Keeno5280/LectureLens/internal/sm2"
)

// Config is the application configuration.
type Config struct {
	Listen string    `koanf:"listen" validate:"required,hostname_port"`
	DB     string    `koanf:"db" validate:"required"`
	Repos  string    `koanf:"repos" validate:"required"`
	Sched  Scheduler `koanf:"scheduler"`
}

// Scheduler overrides individual SM-2 parameters. Zero values fall
// back to the classic defaults.
type Scheduler struct {
	InitialEase        float64 `koanf:"initial_ease" validate:"omitempty,gte=1.3"`
	MinEase            float64 `koanf:"min_ease" validate:"omitempty,gte=1"`
	FirstIntervalDays  int     `koanf:"first_interval_days" validate:"omitempty,gte=1"`
	SecondIntervalDays int     `koanf:"second_interval_days" validate:"omitempty,gte=1"`
	MaxIntervalDays    int     `koanf:"max_interval_days" validate:"omitempty,gte=1"`
}

// Params merges the overrides over sm2.DefaultParams.
func (s Scheduler) Params() sm2.Params {
	p := sm2.DefaultParams()
	if s.InitialEase != 0 {
		p.InitialEase = s.InitialEase
	}
	if s.MinEase != 0 {
		p.MinEase = s.MinEase
	}
	if s.FirstIntervalDays != 0 {
		p.FirstIntervalDays = s.FirstIntervalDays
	}
	if s.SecondIntervalDays != 0 {
		p.SecondIntervalDays = s.SecondIntervalDays
	}
	if s.MaxIntervalDays != 0 {
		p.MaxIntervalDays = s.MaxIntervalDays
	}
	return p
}

const envPrefix = "LECTURELENS_"

// Load layers the YAML file at path (if it exists), the environment,
// and the given flag set, then validates the result. Flag defaults
// apply only where no other layer set the key.
func Load(path string, flags *pflag.FlagSet) (Config, error) {
	k := koanf.New(".")

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
				return Config{}, fmt.Errorf("load config file %s: %w", path, err)
			}
		} else if !os.IsNotExist(err) {
			return Config{}, fmt.Errorf("stat config file %s: %w", path, err)
		}
	}

	// LECTURELENS_SCHEDULER__MIN_EASE=1.5 -> scheduler.min_ease.
	// Double underscore nests; single underscores stay in the key.
	if err := k.Load(env.Provider(envPrefix, ".", func(s string) string {
		key := strings.ToLower(strings.TrimPrefix(s, envPrefix))
		return strings.ReplaceAll(key, "__", ".")
	}), nil); err != nil {
		return Config{}, fmt.Errorf("load environment: %w", err)
	}

	if err := k.Load(posflag.Provider(flags, ".", k), nil); err != nil {
		return Config{}, fmt.Errorf("load flags: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	validate := validator.New(validator.WithRequiredStructEnabled())
	if err := validate.Struct(cfg); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}
