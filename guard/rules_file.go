package guard

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// RulesFile is an operator-maintained YAML file of extra gate rules, merged
// on top of the built-in defaults at startup.
type RulesFile struct {
	DangerousPatterns []string `yaml:"dangerous_patterns"`
	AllowedRoots      []string `yaml:"allowed_roots"`
}

func LoadRulesFile(path string) (RulesFile, error) {
	var rf RulesFile
	path = strings.TrimSpace(path)
	if path == "" {
		return rf, fmt.Errorf("missing rules file path")
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return rf, err
	}
	if err := yaml.Unmarshal(b, &rf); err != nil {
		return rf, fmt.Errorf("parse rules file %s: %w", path, err)
	}
	return rf, nil
}

// Apply merges rf into cfg, seeding defaults first so a rules file always
// extends rather than replaces the built-in sets.
func (cfg *Config) Apply(rf RulesFile) {
	if len(cfg.DangerousPatterns) == 0 {
		cfg.DangerousPatterns = DefaultDangerousPatterns()
	}
	if len(cfg.AllowedRoots) == 0 {
		cfg.AllowedRoots = DefaultAllowedRoots()
	}
	cfg.DangerousPatterns = append(cfg.DangerousPatterns, rf.DangerousPatterns...)
	cfg.AllowedRoots = append(cfg.AllowedRoots, rf.AllowedRoots...)
}
