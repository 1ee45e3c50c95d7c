// Package config defines the pipeline's external options surface and a
// YAML loader for it, the way a real driver sources compiler flags from a
// project file rather than wiring every flag by hand.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Target names the back-end the lowered model is destined for. Load
// validates it; no pass in the pipeline branches on it.
type Target string

const (
	TargetMichelson Target = "michelson"
	TargetTest      Target = "test"
)

// Options is the Go port of spec.md's enumerated option set.
type Options struct {
	Caller           string `yaml:"caller"`
	PropertyFocused  string `yaml:"property_focused"`
	MetadataURI      string `yaml:"metadata_uri"`
	MetadataStorage  string `yaml:"metadata_storage"`
	WithMetadata     bool   `yaml:"with_metadata"`
	TestMode         bool   `yaml:"test_mode"`
	EventWellAddress string `yaml:"event_well_address"`
	Target           Target `yaml:"target"`
}

// Default returns the option set a bare `archetypec compile` run uses when
// no config file and no flags override it.
func Default() *Options {
	return &Options{Target: TargetMichelson}
}

// Load reads and validates an Options value from a YAML file at path.
func Load(path string) (*Options, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	opts := Default()
	if err := yaml.Unmarshal(data, opts); err != nil {
		return nil, fmt.Errorf("config: parsing %s: %w", path, err)
	}
	if opts.Target != TargetMichelson && opts.Target != TargetTest {
		return nil, fmt.Errorf("config: unknown target %q", opts.Target)
	}
	return opts, nil
}
