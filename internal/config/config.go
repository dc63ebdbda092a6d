// Package config holds the simulation parameter sets, the (tier, kind)
// preset table, and run files that select a preset and override fields.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/gcfg.v1"
	"gopkg.in/yaml.v3"
)

const (
	DefaultTier    = "compact"
	DefaultKind    = "single-galaxy"
	DefaultWidth   = 1280
	DefaultHeight  = 720
	DefaultWorkers = 4
)

// File is a run file: which preset to start from and what to change in it.
type File struct {
	Tier      string             `yaml:"tier"`
	Kind      string             `yaml:"kind"`
	Seed      int64              `yaml:"seed"`
	Workers   int                `yaml:"workers"`
	Width     int                `yaml:"width"`
	Height    int                `yaml:"height"`
	Overrides map[string]float64 `yaml:"overrides,omitempty"`
}

// Edit is a single validated field assignment.
type Edit struct {
	Field Field
	Value float64
}

func DefaultFile() *File {
	return &File{
		Tier:    DefaultTier,
		Kind:    DefaultKind,
		Workers: DefaultWorkers,
		Width:   DefaultWidth,
		Height:  DefaultHeight,
	}
}

type gcfgFile struct {
	Simulation struct {
		Tier    string
		Kind    string
		Seed    int64
		Workers int
		Width   int
		Height  int
	}
	Override map[string]*struct {
		Value float64
	}
}

// Load reads a run file. YAML is the default; .gcfg and .ini files are read
// as git-config style sections.
func Load(path string) (*File, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".gcfg", ".ini":
		return loadGcfg(path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	f := DefaultFile()
	if err := yaml.Unmarshal(data, f); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	return f, nil
}

func loadGcfg(path string) (*File, error) {
	raw := gcfgFile{}
	raw.Simulation.Tier = DefaultTier
	raw.Simulation.Kind = DefaultKind
	raw.Simulation.Workers = DefaultWorkers
	raw.Simulation.Width = DefaultWidth
	raw.Simulation.Height = DefaultHeight

	if err := gcfg.ReadFileInto(&raw, path); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}

	f := &File{
		Tier:    raw.Simulation.Tier,
		Kind:    raw.Simulation.Kind,
		Seed:    raw.Simulation.Seed,
		Workers: raw.Simulation.Workers,
		Width:   raw.Simulation.Width,
		Height:  raw.Simulation.Height,
	}
	if len(raw.Override) > 0 {
		f.Overrides = make(map[string]float64, len(raw.Override))
		for name, o := range raw.Override {
			if o == nil {
				continue
			}
			f.Overrides[name] = o.Value
		}
	}
	return f, nil
}

func Save(path string, f *File) error {
	data, err := yaml.Marshal(f)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// Selectors parses the file's tier and kind.
func (f *File) Selectors() (Tier, Kind, error) {
	tier, err := ParseTier(f.Tier)
	if err != nil {
		return 0, 0, err
	}
	kind, err := ParseKind(f.Kind)
	if err != nil {
		return 0, 0, err
	}
	return tier, kind, nil
}

// Edits resolves the overrides into field edits, sorted by field name.
func (f *File) Edits() ([]Edit, error) {
	edits := make([]Edit, 0, len(f.Overrides))
	for name, value := range f.Overrides {
		field, err := ParseField(name)
		if err != nil {
			return nil, err
		}
		if field == KindField {
			return nil, fmt.Errorf("%w: set kind with the kind key, not an override", ErrOutOfRange)
		}
		if err := field.Check(value); err != nil {
			return nil, err
		}
		edits = append(edits, Edit{Field: field, Value: value})
	}
	sort.Slice(edits, func(i, j int) bool { return edits[i].Field < edits[j].Field })
	return edits, nil
}

// ParseEdit parses a "field=value" flag argument.
func ParseEdit(s string) (Edit, error) {
	name, raw, ok := strings.Cut(s, "=")
	if !ok {
		return Edit{}, fmt.Errorf("config: expected field=value, got %q", s)
	}
	field, err := ParseField(name)
	if err != nil {
		return Edit{}, err
	}
	var value float64
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "true", "on", "yes":
		value = 1
	case "false", "off", "no":
		value = 0
	default:
		if _, err := fmt.Sscanf(strings.TrimSpace(raw), "%g", &value); err != nil {
			return Edit{}, fmt.Errorf("config: bad value for %s: %q", field, raw)
		}
	}
	if err := field.Check(value); err != nil {
		return Edit{}, err
	}
	return Edit{Field: field, Value: value}, nil
}
