// Package config loads csflow settings from TOML, YAML or JSON files.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/toml"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/panbanda/csflow/pkg/models"
)

// ErrUnknownFormat is returned for config files with an unrecognized
// extension.
var ErrUnknownFormat = errors.New("unknown config format")

// Config holds all configuration options for csflow.
type Config struct {
	Analysis  AnalysisConfig  `koanf:"analysis" toml:"analysis"`
	Findings  FindingsConfig  `koanf:"findings" toml:"findings"`
	Exclude   ExcludeConfig   `koanf:"exclude" toml:"exclude"`
	Generated GeneratedConfig `koanf:"generated" toml:"generated"`
	Cache     CacheConfig     `koanf:"cache" toml:"cache"`
	Output    OutputConfig    `koanf:"output" toml:"output"`
}

// AnalysisConfig bounds the per-method analysis.
type AnalysisConfig struct {
	MaxSteps          int   `koanf:"max_steps" toml:"max_steps"`
	MaxStates         int   `koanf:"max_states" toml:"max_states"`
	MaxLoopVisits     int   `koanf:"max_loop_visits" toml:"max_loop_visits"`
	PruneDeadBindings bool  `koanf:"prune_dead_bindings" toml:"prune_dead_bindings"`
	MaxFileSize       int64 `koanf:"max_file_size" toml:"max_file_size"` // bytes, 0 = unlimited
	Workers           int   `koanf:"workers" toml:"workers"`             // 0 = 2x NumCPU
}

// FindingsConfig enables rules.
type FindingsConfig struct {
	NullDereference   bool `koanf:"null_dereference" toml:"null_dereference"`
	ConstantCondition bool `koanf:"constant_condition" toml:"constant_condition"`
	DeadStore         bool `koanf:"dead_store" toml:"dead_store"`
}

// ExcludeConfig defines file exclusion patterns.
type ExcludeConfig struct {
	Patterns  []string `koanf:"patterns" toml:"patterns"`
	Dirs      []string `koanf:"dirs" toml:"dirs"`
	Gitignore bool     `koanf:"gitignore" toml:"gitignore"`
}

// GeneratedConfig controls generated-code handling.
type GeneratedConfig struct {
	// Patterns are extra file name globs that mark a file as generated.
	Patterns         []string `koanf:"patterns" toml:"patterns"`
	AnalyzeGenerated bool     `koanf:"analyze_generated" toml:"analyze_generated"`
}

// CacheConfig controls caching behavior.
type CacheConfig struct {
	Enabled bool   `koanf:"enabled" toml:"enabled"`
	Dir     string `koanf:"dir" toml:"dir"`
	TTL     int    `koanf:"ttl" toml:"ttl"` // TTL in hours
}

// OutputConfig controls output formatting.
type OutputConfig struct {
	Format  string `koanf:"format" toml:"format"` // text, json, markdown, toon
	Color   bool   `koanf:"color" toml:"color"`
	Verbose bool   `koanf:"verbose" toml:"verbose"`
}

// DefaultConfig returns a config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Analysis: AnalysisConfig{
			MaxSteps:          4000,
			MaxStates:         1000,
			MaxLoopVisits:     2,
			PruneDeadBindings: true,
		},
		Findings: FindingsConfig{
			NullDereference:   true,
			ConstantCondition: true,
			DeadStore:         true,
		},
		Exclude: ExcludeConfig{
			Dirs: []string{
				"bin",
				"obj",
				"packages",
				".git",
				".vs",
				".csflow",
				"node_modules",
			},
			Gitignore: true,
		},
		Cache: CacheConfig{
			Enabled: true,
			Dir:     ".csflow/cache",
			TTL:     24,
		},
		Output: OutputConfig{
			Format: "text",
			Color:  true,
		},
	}
}

func parserFor(path string) (koanf.Parser, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		return toml.Parser(), nil
	case ".yaml", ".yml":
		return yaml.Parser(), nil
	case ".json":
		return json.Parser(), nil
	}
	return nil, fmt.Errorf("%w: %s", ErrUnknownFormat, path)
}

// Load loads configuration from a file over the defaults.
func Load(path string) (*Config, error) {
	parser, err := parserFor(path)
	if err != nil {
		return nil, err
	}

	k := koanf.New(".")
	if err := k.Load(file.Provider(path), parser); err != nil {
		return nil, fmt.Errorf("failed to load config %s: %w", path, err)
	}

	cfg := DefaultConfig()
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

// configNames are searched in order in each of searchDirs.
var configNames = []string{
	"csflow.toml",
	"csflow.yaml",
	"csflow.yml",
	"csflow.json",
	".csflow.toml",
	".csflow.yaml",
	".csflow.yml",
	".csflow.json",
}

var searchDirs = []string{".", ".csflow"}

// Find returns the first config file in the standard locations under root,
// or "" when there is none.
func Find(root string) string {
	for _, dir := range searchDirs {
		for _, name := range configNames {
			path := filepath.Join(root, dir, name)
			if _, err := os.Stat(path); err == nil {
				return path
			}
		}
	}
	return ""
}

// LoadOrDefault loads path when given, otherwise the first config found in
// the standard locations, otherwise the defaults.
func LoadOrDefault(path string) (*Config, error) {
	if path == "" {
		path = Find(".")
	}
	if path == "" {
		return DefaultConfig(), nil
	}
	return Load(path)
}

// Validate reports settings that cannot work.
func (c *Config) Validate() error {
	var errs []error
	if c.Analysis.MaxSteps <= 0 {
		errs = append(errs, errors.New("analysis.max_steps must be positive"))
	}
	if c.Analysis.MaxStates <= 0 {
		errs = append(errs, errors.New("analysis.max_states must be positive"))
	}
	if c.Analysis.MaxLoopVisits <= 0 {
		errs = append(errs, errors.New("analysis.max_loop_visits must be positive"))
	}
	if c.Analysis.MaxFileSize < 0 {
		errs = append(errs, errors.New("analysis.max_file_size must not be negative"))
	}
	switch c.Output.Format {
	case "text", "json", "markdown", "toon":
	default:
		errs = append(errs, fmt.Errorf("output.format %q is not one of text, json, markdown, toon", c.Output.Format))
	}
	for _, p := range append(append([]string{}, c.Exclude.Patterns...), c.Generated.Patterns...) {
		if !doublestar.ValidatePattern(p) {
			errs = append(errs, fmt.Errorf("bad pattern %q: %w", p, doublestar.ErrBadPattern))
		}
	}
	return errors.Join(errs...)
}

// Rules returns the enabled rule set.
func (c *Config) Rules() map[models.RuleID]bool {
	return map[models.RuleID]bool{
		models.RuleNullDereference:   c.Findings.NullDereference,
		models.RuleConstantCondition: c.Findings.ConstantCondition,
		models.RuleDeadStore:         c.Findings.DeadStore,
	}
}

// Fingerprint summarizes the settings that change analysis results. It is
// part of the result cache key.
func (c *Config) Fingerprint() string {
	return fmt.Sprintf("steps=%d states=%d loops=%d prune=%t rules=%t,%t,%t generated=%t",
		c.Analysis.MaxSteps, c.Analysis.MaxStates, c.Analysis.MaxLoopVisits, c.Analysis.PruneDeadBindings,
		c.Findings.NullDereference, c.Findings.ConstantCondition, c.Findings.DeadStore,
		c.Generated.AnalyzeGenerated)
}

// ShouldExclude checks if a path should be excluded from analysis.
func (c *Config) ShouldExclude(path string) bool {
	slashed := filepath.ToSlash(path)
	for _, dir := range c.Exclude.Dirs {
		if strings.Contains(slashed, "/"+dir+"/") || strings.HasPrefix(slashed, dir+"/") {
			return true
		}
	}
	for _, pattern := range c.Exclude.Patterns {
		if MatchPattern(pattern, path) {
			return true
		}
	}
	return false
}

// MatchPattern matches a glob against path. Patterns without a slash match
// the base name; others match the slash-separated path and may use "**".
func MatchPattern(pattern, path string) bool {
	slashed := filepath.ToSlash(path)
	if !strings.Contains(pattern, "/") {
		ok, _ := doublestar.Match(pattern, filepath.Base(slashed))
		return ok
	}
	ok, _ := doublestar.Match(pattern, slashed)
	return ok
}
