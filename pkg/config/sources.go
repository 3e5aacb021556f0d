package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// SourceOverride adjusts the built-in settings of one source adapter.
// Zero values keep the built-in default.
type SourceOverride struct {
	Enabled     *bool    `yaml:"enabled"`
	BaseURL     string   `yaml:"base_url"`
	PageSize    int      `yaml:"page_size"`
	MaxItems    int      `yaml:"max_items"`
	MaxLoadMore int      `yaml:"max_load_more"`
	Apps        []string `yaml:"apps"`
}

// IsEnabled reports whether the source should run. Sources are enabled
// unless explicitly disabled.
func (o SourceOverride) IsEnabled() bool {
	return o.Enabled == nil || *o.Enabled
}

type sourcesFile struct {
	Sources map[string]SourceOverride `yaml:"sources"`
}

// LoadSources reads per-source overrides from a YAML file of the form
//
//	sources:
//	  zapier:
//	    page_size: 50
//	  make:
//	    enabled: false
func LoadSources(path string) (map[string]SourceOverride, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read sources file: %w", err)
	}
	return ParseSources(data)
}

// ParseSources decodes the YAML sources document.
func ParseSources(data []byte) (map[string]SourceOverride, error) {
	var f sourcesFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("%w: parse sources: %v", ErrInvalidConfig, err)
	}
	for name, o := range f.Sources {
		if o.PageSize < 0 || o.MaxItems < 0 || o.MaxLoadMore < 0 {
			return nil, fmt.Errorf("%w: source %q has a negative limit", ErrInvalidConfig, name)
		}
	}
	if f.Sources == nil {
		f.Sources = map[string]SourceOverride{}
	}
	return f.Sources, nil
}
