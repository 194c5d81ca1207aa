package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// ApplyYAML overlays the keys present in the file onto cfg. Keys absent from
// the file keep their environment-derived values.
func ApplyYAML(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config file: %w", err)
	}
	return nil
}
