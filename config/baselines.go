package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"realestate-leads/scoring"
)

// BaselineFile is the on-disk layout of a locality baseline table:
//
//	default_per_sqm: 25000
//	localities:
//	  תל אביב: 35000
//	  haifa: 25000
type BaselineFile struct {
	DefaultPerSqm float64            `yaml:"default_per_sqm"`
	Localities    map[string]float64 `yaml:"localities"`
}

// LoadBaselines parses a YAML baseline file. A missing default_per_sqm
// falls back to fallback.
func LoadBaselines(path string, fallback float64) (*scoring.BaselineTable, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read baselines %q: %w", path, err)
	}

	var f BaselineFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("config: parse baselines %q: %w", path, err)
	}
	if f.DefaultPerSqm == 0 {
		f.DefaultPerSqm = fallback
	}

	table, err := scoring.NewBaselineTable(f.Localities, f.DefaultPerSqm)
	if err != nil {
		return nil, fmt.Errorf("config: baselines %q: %w", path, err)
	}
	return table, nil
}

// Baselines returns the table from BASELINES_PATH, or the built-in table
// when no path is configured.
func (c *Config) Baselines() (*scoring.BaselineTable, error) {
	if c.BaselinesPath != "" {
		return LoadBaselines(c.BaselinesPath, c.DefaultBaseline)
	}
	if c.DefaultBaseline == scoring.DefaultBaselinePerSqm {
		return scoring.DefaultBaselineTable(), nil
	}
	builtin := scoring.DefaultBaselineTable()
	perSqm := make(map[string]float64)
	for _, loc := range builtin.Localities() {
		perSqm[loc] = builtin.Lookup(loc)
	}
	return scoring.NewBaselineTable(perSqm, c.DefaultBaseline)
}

// Engine builds the scoring engine described by the configuration.
func (c *Config) Engine() (*scoring.Engine, error) {
	table, err := c.Baselines()
	if err != nil {
		return nil, err
	}
	return scoring.NewEngine(table, c.ScoringParams())
}
