// Package config provides YAML-based configuration loading with environment variable expansion.
package config

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Validator is an interface for configuration validation.
type Validator interface {
	Validate() error
}

// Load reads a YAML file, expands ${VAR} references and decodes it into
// target. Values already present in target are kept for keys the file omits.
func Load[T any](filename string, target *T) error {
	data, err := os.ReadFile(filename)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", filename, err)
	}

	expandedData := os.ExpandEnv(string(data))

	if err := yaml.Unmarshal([]byte(expandedData), target); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", filename, err)
	}
	return nil
}

// LoadOptional behaves like Load but treats a missing file as "no
// overrides" unless required is set.
func LoadOptional[T any](filename string, required bool, target *T) error {
	if _, err := os.Stat(filename); errors.Is(err, os.ErrNotExist) {
		if required {
			return fmt.Errorf("config file not found: %s", filename)
		}
		return nil
	}
	return Load(filename, target)
}

// Validate runs target's Validate method when it implements Validator.
func Validate(target any) error {
	if validator, ok := target.(Validator); ok {
		if err := validator.Validate(); err != nil {
			return fmt.Errorf("config validation failed: %w", err)
		}
	}
	return nil
}
