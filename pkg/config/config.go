// Package config handles loading and saving treegrid configuration.
//
// Configuration follows the XDG Base Directory specification:
//   - Config:  ~/.config/treegrid/config.yaml
//   - State:   ~/.local/state/treegrid/ (saved grid view state)
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/vanderheijden86/treegrid/pkg/engine"
	"github.com/vanderheijden86/treegrid/pkg/expansion"
	"github.com/vanderheijden86/treegrid/pkg/pipeline"
)

const appName = "treegrid"

// Source is a named row source: a JSON, JSONL or SQLite file.
type Source struct {
	Name  string `yaml:"name"`
	Path  string `yaml:"path"`
	Table string `yaml:"table,omitempty"` // SQLite only
}

// GridConfig is the structural configuration of the hierarchy.
type GridConfig struct {
	PrimaryKey         string `yaml:"primary_key,omitempty"`
	ForeignKey         string `yaml:"foreign_key,omitempty"`
	ChildDataKey       string `yaml:"child_data_key,omitempty"`
	DefaultExpandDepth int    `yaml:"default_expand_depth"` // -1 expands everything
	CascadeOnDelete    bool   `yaml:"cascade_on_delete,omitempty"`
	BatchEditing       bool   `yaml:"batch_editing,omitempty"`
	SelectionMode      string `yaml:"selection_mode,omitempty"` // none, single, multiple, multipleCascade
}

// applyDefaults selects foreign-key mode with the default keys when no mode
// is configured. A child data key alone selects nested mode.
func (g *GridConfig) applyDefaults() {
	if g.ForeignKey == "" && g.ChildDataKey == "" {
		g.ForeignKey = "parentId"
	}
	if g.ForeignKey != "" && g.PrimaryKey == "" {
		g.PrimaryKey = "id"
	}
}

// ViewConfig holds the default transform parameters.
type ViewConfig struct {
	Sort     string   `yaml:"sort,omitempty"`      // e.g. "name:asc,age:desc"
	Filters  []string `yaml:"filters,omitempty"`   // e.g. "age > 30"
	FilterOr bool     `yaml:"filter_or,omitempty"` // combine filters with OR instead of AND
	PageSize int      `yaml:"page_size,omitempty"` // 0 disables paging
}

// Config is the top-level configuration for treegrid.
type Config struct {
	Grid      GridConfig `yaml:"grid"`
	View      ViewConfig `yaml:"view,omitempty"`
	StateFile string     `yaml:"state_file,omitempty"`
	Sources   []Source   `yaml:"sources,omitempty"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Grid: GridConfig{
			PrimaryKey:         "id",
			ForeignKey:         "parentId",
			DefaultExpandDepth: 1,
		},
	}
}

// ConfigDir returns the XDG config directory for treegrid.
func ConfigDir() string {
	if dir := os.Getenv("XDG_CONFIG_HOME"); dir != "" {
		return filepath.Join(dir, appName)
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", appName)
}

// StateDir returns the XDG state directory for treegrid.
func StateDir() string {
	if dir := os.Getenv("XDG_STATE_HOME"); dir != "" {
		return filepath.Join(dir, appName)
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".local", "state", appName)
}

// ConfigPath returns the full path to config.yaml.
func ConfigPath() string {
	dir := ConfigDir()
	if dir == "" {
		return ""
	}
	return filepath.Join(dir, "config.yaml")
}

// DefaultStatePath returns where grid state is saved when no state file is
// configured.
func DefaultStatePath() string {
	dir := StateDir()
	if dir == "" {
		return ""
	}
	return filepath.Join(dir, "grid-state.json")
}

// Load reads the config file from the XDG config directory.
// Returns DefaultConfig if the file doesn't exist.
func Load() (Config, error) {
	path := ConfigPath()
	if path == "" {
		return DefaultConfig(), nil
	}
	return LoadFrom(path)
}

// LoadFrom reads config from a specific path.
// Returns DefaultConfig if the file doesn't exist.
func LoadFrom(path string) (Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("reading config: %w", err)
	}

	cfg.Grid = GridConfig{DefaultExpandDepth: cfg.Grid.DefaultExpandDepth}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parsing config: %w", err)
	}
	cfg.Grid.applyDefaults()

	cfg.StateFile = expandHome(cfg.StateFile)
	for i := range cfg.Sources {
		cfg.Sources[i].Path = expandHome(cfg.Sources[i].Path)
	}

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Save writes the config to the XDG config directory.
func Save(cfg Config) error {
	path := ConfigPath()
	if path == "" {
		return fmt.Errorf("cannot determine config directory")
	}
	return SaveTo(cfg, path)
}

// SaveTo writes the config to a specific path.
func SaveTo(cfg Config, path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}

	return nil
}

// Validate checks that the grid options are consistent and that the default
// sort and filters parse.
func (c Config) Validate() error {
	var errs []error
	if _, err := c.GridOptions(); err != nil {
		errs = append(errs, err)
	}
	if _, err := c.Params(); err != nil {
		errs = append(errs, err)
	}
	if c.View.PageSize < 0 {
		errs = append(errs, fmt.Errorf("page_size must not be negative"))
	}
	for i, s := range c.Sources {
		if s.Path == "" {
			errs = append(errs, fmt.Errorf("source %d (%s): missing path", i, s.Name))
		}
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// GridOptions converts the grid section into engine options.
func (c Config) GridOptions() (engine.Options, error) {
	mode, err := engine.ParseSelectionMode(c.Grid.SelectionMode)
	if err != nil {
		return engine.Options{}, err
	}
	depth := c.Grid.DefaultExpandDepth
	if depth < 0 {
		depth = expansion.Infinite
	}
	opts := engine.Options{
		PrimaryKey:         c.Grid.PrimaryKey,
		ForeignKey:         c.Grid.ForeignKey,
		ChildDataKey:       c.Grid.ChildDataKey,
		DefaultExpandDepth: depth,
		CascadeOnDelete:    c.Grid.CascadeOnDelete,
		BatchEditing:       c.Grid.BatchEditing,
		SelectionMode:      mode,
	}
	if _, err := engine.New(opts); err != nil {
		return opts, err
	}
	return opts, nil
}

// Params converts the view section into default Process parameters.
func (c Config) Params() (engine.Params, error) {
	var p engine.Params
	sorting, err := pipeline.ParseSort(c.View.Sort)
	if err != nil {
		return p, err
	}
	op := pipeline.And
	if c.View.FilterOr {
		op = pipeline.Or
	}
	filter, err := pipeline.ParseFilter(op, c.View.Filters...)
	if err != nil {
		return p, err
	}
	p.Sort = sorting
	p.Filter = filter
	if c.View.PageSize > 0 {
		p.Paging = pipeline.PageState{Enabled: true, Size: c.View.PageSize}
	}
	return p, nil
}

// ResolvedStateFile returns the configured state file or the default one.
func (c Config) ResolvedStateFile() string {
	if c.StateFile != "" {
		return c.StateFile
	}
	return DefaultStatePath()
}

// FindSource returns the source with the given name, or nil.
func (c Config) FindSource(name string) *Source {
	for i := range c.Sources {
		if strings.EqualFold(c.Sources[i].Name, name) {
			return &c.Sources[i]
		}
	}
	return nil
}

func expandHome(path string) string {
	if !strings.HasPrefix(path, "~") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, path[1:])
}
