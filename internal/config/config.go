// Package config loads the command line tool's settings.
package config

import (
	"errors"
	"fmt"
	"os"
	"runtime"
	"slices"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/charmbracelet/log"

	"github.com/alitto/tandem/internal/executor"
)

// ErrInvalid is wrapped by every validation error.
var ErrInvalid = errors.New("invalid configuration")

// Environment variables that override file values.
const (
	EnvWorkers     = "TANDEM_WORKERS"
	EnvRaceReserve = "TANDEM_RACE_RESERVE"
	EnvBackend     = "TANDEM_BACKEND"
	EnvWarmUpTasks = "TANDEM_WARM_UP_TASKS"
	EnvLogLevel    = "TANDEM_LOG_LEVEL"
	EnvMetricsAddr = "TANDEM_METRICS_ADDR"
	EnvInputDir    = "TANDEM_INPUT_DIR"
)

// Config holds the settings of a tandem run.
type Config struct {
	Workers     int    `toml:"workers"`
	RaceReserve int    `toml:"race_reserve"`
	Backend     string `toml:"backend"`
	WarmUpTasks int    `toml:"warm_up_tasks"`
	LogLevel    string `toml:"log_level"`
	MetricsAddr string `toml:"metrics_addr"`
	InputDir    string `toml:"input_dir"`
}

// Default returns the configuration used when nothing else is specified.
func Default() Config {
	return Config{
		Workers:     runtime.NumCPU(),
		RaceReserve: 1,
		Backend:     executor.Fixed,
		WarmUpTasks: 1000,
		LogLevel:    "info",
		InputDir:    "./inputfiles",
	}
}

// Load builds a configuration from, in increasing priority:
// 1. Defaults
// 2. The TOML file at path, if path is not empty
// 3. TANDEM_* environment variables
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		if err := loadFile(&cfg, path); err != nil {
			return Config{}, fmt.Errorf("loading config file %s: %w", path, err)
		}
	}

	if err := loadEnv(&cfg, os.LookupEnv); err != nil {
		return Config{}, fmt.Errorf("loading environment: %w", err)
	}

	return cfg, nil
}

func loadFile(cfg *Config, path string) error {
	meta, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return err
	}

	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, key := range undecoded {
			keys[i] = key.String()
		}
		return fmt.Errorf("%w: unknown keys %s", ErrInvalid, strings.Join(keys, ", "))
	}

	return nil
}

func loadEnv(cfg *Config, lookup func(string) (string, bool)) error {
	ints := []struct {
		name  string
		field *int
	}{
		{EnvWorkers, &cfg.Workers},
		{EnvRaceReserve, &cfg.RaceReserve},
		{EnvWarmUpTasks, &cfg.WarmUpTasks},
	}
	for _, env := range ints {
		v, ok := lookup(env.name)
		if !ok || v == "" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%w: %s=%q is not an integer", ErrInvalid, env.name, v)
		}
		*env.field = n
	}

	strs := []struct {
		name  string
		field *string
	}{
		{EnvBackend, &cfg.Backend},
		{EnvLogLevel, &cfg.LogLevel},
		{EnvMetricsAddr, &cfg.MetricsAddr},
		{EnvInputDir, &cfg.InputDir},
	}
	for _, env := range strs {
		if v, ok := lookup(env.name); ok && v != "" {
			*env.field = v
		}
	}

	return nil
}

// Validate reports the first inconsistent setting.
func (c Config) Validate() error {
	if c.Workers <= 0 {
		return fmt.Errorf("%w: workers must be greater than 0, got %d", ErrInvalid, c.Workers)
	}
	if c.RaceReserve < 0 {
		return fmt.Errorf("%w: race_reserve must not be negative, got %d", ErrInvalid, c.RaceReserve)
	}
	if c.WarmUpTasks < 0 {
		return fmt.Errorf("%w: warm_up_tasks must not be negative, got %d", ErrInvalid, c.WarmUpTasks)
	}
	if !slices.Contains(executor.Backends, c.Backend) {
		return fmt.Errorf("%w: backend must be one of %s, got %q", ErrInvalid, strings.Join(executor.Backends, ", "), c.Backend)
	}
	if _, err := log.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("%w: log_level: %v", ErrInvalid, err)
	}
	return nil
}

// Level returns the parsed log level, falling back to info.
func (c Config) Level() log.Level {
	level, err := log.ParseLevel(c.LogLevel)
	if err != nil {
		return log.InfoLevel
	}
	return level
}
