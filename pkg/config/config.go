package config

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/aretw0/beamline/pkg/devices"
	"github.com/aretw0/beamline/pkg/domain"
	"github.com/aretw0/beamline/pkg/plan"
	"gopkg.in/yaml.v3"
)

// Experiment is the content of an experiment file: the devices of the
// beamline, the named plans it offers and the surrounding services.
type Experiment struct {
	Name     string               `yaml:"name" json:"name"`
	Metadata map[string]any       `yaml:"metadata" json:"metadata"`
	Devices  []devices.Config     `yaml:"devices" json:"devices"`
	Plans    map[string]plan.Spec `yaml:"plans" json:"plans"`
	Store    Store                `yaml:"store" json:"store"`
	Lock     Lock                 `yaml:"lock" json:"lock"`
	Server   Server               `yaml:"server" json:"server"`
	LogLevel string               `yaml:"log_level" json:"log_level"`
}

// Store selects where documents are recorded.
type Store struct {
	// Backend is "memory" (default), "redis" or "none".
	Backend  string        `yaml:"backend" json:"backend"`
	Addr     string        `yaml:"addr" json:"addr"`
	Password string        `yaml:"password" json:"password"`
	DB       int           `yaml:"db" json:"db"`
	Prefix   string        `yaml:"prefix" json:"prefix"`
	TTL      time.Duration `yaml:"ttl" json:"ttl"`
	// Redact lists regular expressions of run metadata keys masked before recording.
	Redact   []string      `yaml:"redact" json:"redact"`
}

// Lock configures the cross-process run lock. It requires the redis backend.
type Lock struct {
	Enabled bool          `yaml:"enabled" json:"enabled"`
	Key     string        `yaml:"key" json:"key"`
	TTL     time.Duration `yaml:"ttl" json:"ttl"`
}

// Server configures the HTTP adapter.
type Server struct {
	Addr string `yaml:"addr" json:"addr"`
}

// Store backends.
const (
	BackendMemory = "memory"
	BackendRedis  = "redis"
	BackendNone   = "none"
)

// Load reads an experiment file, YAML or JSON by extension, and validates it.
func Load(path string) (*Experiment, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read experiment: %w", err)
	}

	var exp *Experiment
	if strings.ToLower(filepath.Ext(path)) == ".json" {
		exp, err = ParseJSON(data)
	} else {
		exp, err = Parse(data)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if exp.Name == "" {
		exp.Name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	return exp, nil
}

// Parse decodes a YAML experiment.
func Parse(data []byte) (*Experiment, error) {
	var exp Experiment
	if err := yaml.Unmarshal(data, &exp); err != nil {
		return nil, fmt.Errorf("failed to parse experiment: %w", err)
	}
	return finish(&exp)
}

// ParseJSON decodes a JSON experiment. Durations are given in nanoseconds.
func ParseJSON(data []byte) (*Experiment, error) {
	var exp Experiment
	if err := json.Unmarshal(data, &exp); err != nil {
		return nil, fmt.Errorf("failed to parse experiment: %w", err)
	}
	return finish(&exp)
}

func finish(exp *Experiment) (*Experiment, error) {
	exp.applyDefaults()
	if err := exp.Validate(); err != nil {
		return nil, err
	}
	return exp, nil
}

func (e *Experiment) applyDefaults() {
	if e.Store.Backend == "" {
		e.Store.Backend = BackendMemory
	}
	if e.Store.Backend == BackendRedis && e.Store.Addr == "" {
		e.Store.Addr = "localhost:6379"
	}
	if e.Lock.Key == "" {
		e.Lock.Key = e.Name
	}
	if e.Lock.TTL == 0 {
		e.Lock.TTL = time.Hour
	}
	if e.Server.Addr == "" {
		e.Server.Addr = ":8080"
	}
}

// Validate checks the structure of the experiment. Device parameters and
// plan arguments are checked when they are built.
func (e *Experiment) Validate() error {
	seen := make(map[string]bool, len(e.Devices))
	for i, d := range e.Devices {
		if d.Name == "" {
			return domain.Invalid(fmt.Sprintf("devices[%d].name", i), "required")
		}
		if seen[d.Name] {
			return domain.Invalid(fmt.Sprintf("devices[%d].name", i), "duplicate device %q", d.Name)
		}
		seen[d.Name] = true
	}
	for name, p := range e.Plans {
		if p.Kind == "" {
			return domain.Invalid("plans."+name+".kind", "required")
		}
	}
	switch e.Store.Backend {
	case BackendMemory, BackendRedis, BackendNone:
	default:
		return domain.Invalid("store.backend", "unknown backend %q", e.Store.Backend)
	}
	if e.Lock.Enabled && e.Store.Backend != BackendRedis {
		return domain.Invalid("lock.enabled", "the run lock needs the redis backend")
	}
	if _, err := ParseLevel(e.LogLevel); err != nil {
		return err
	}
	return nil
}

// Level returns the configured log level (info by default).
func (e *Experiment) Level() slog.Level {
	lvl, _ := ParseLevel(e.LogLevel)
	return lvl
}

// ParseLevel accepts debug, info, warn and error (case-insensitive, empty means info).
func ParseLevel(s string) (slog.Level, error) {
	if s == "" {
		return slog.LevelInfo, nil
	}
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(s)); err != nil {
		return 0, domain.Invalid("log_level", "%v", err)
	}
	return lvl, nil
}

// PlanNames returns the names of the declared plans.
func (e *Experiment) PlanNames() []string {
	names := make([]string, 0, len(e.Plans))
	for name := range e.Plans {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
