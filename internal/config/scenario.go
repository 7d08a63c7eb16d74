package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// IndexRule maps an index display name fragment to a timeline key
type IndexRule struct {
	Contains string `yaml:"contains"`
	Key      string `yaml:"key"`
}

// ScenarioDefinition describes a scenario beyond its stored series
type ScenarioDefinition struct {
	Name                   string      `yaml:"name"`
	DomesticIndex          string      `yaml:"domestic_index"`
	ForeignIndex           string      `yaml:"foreign_index"`
	IndexRules             []IndexRule `yaml:"index_rules"`
	NewsFile               string      `yaml:"news_file"`
	DescriptionFile        string      `yaml:"description_file"`
	PlaceholderDescription string      `yaml:"placeholder_description"`
	InitialCapital         string      `yaml:"initial_capital"`
}

// LoadScenarioDefinition reads a YAML scenario definition. An empty path yields an
// empty definition. Relative side-file paths resolve against the definition's directory.
func LoadScenarioDefinition(path string) (*ScenarioDefinition, error) {
	def := &ScenarioDefinition{}
	if path == "" {
		return def, nil
	}

	data, err := os.ReadFile(path) // #nosec G304 - path comes from operator configuration
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario definition: %w", err)
	}
	if err := yaml.Unmarshal(data, def); err != nil {
		return nil, fmt.Errorf("failed to parse scenario definition %s: %w", path, err)
	}

	for i, rule := range def.IndexRules {
		if rule.Contains == "" || rule.Key == "" {
			return nil, fmt.Errorf("index rule %d needs both contains and key", i)
		}
	}

	dir := filepath.Dir(path)
	def.NewsFile = resolveRelative(dir, def.NewsFile)
	def.DescriptionFile = resolveRelative(dir, def.DescriptionFile)

	return def, nil
}

// ApplyTo fills scenario settings the environment left unset
func (d *ScenarioDefinition) ApplyTo(cfg *Config) {
	if d.Name != "" && (cfg.Scenario.Name == "" || cfg.Scenario.Name == "default") {
		cfg.Scenario.Name = d.Name
	}
	if cfg.Scenario.NewsPath == "" {
		cfg.Scenario.NewsPath = d.NewsFile
	}
	if cfg.Scenario.DescriptionPath == "" {
		cfg.Scenario.DescriptionPath = d.DescriptionFile
	}
	if d.InitialCapital != "" && os.Getenv("SIMULATION_INITIAL_CAPITAL") == "" {
		cfg.Simulation.InitialCapital = d.InitialCapital
	}
}

func resolveRelative(dir, path string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(dir, path)
}
