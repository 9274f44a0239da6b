// Package utils provides the small file helpers shared by the settings
// store and the CLI configuration loader.
package utils

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v2"
)

// FileExists checks if the given file exists.
func FileExists(filename string) bool {
	_, err := os.Stat(filename)
	return !os.IsNotExist(err)
}

// ReadYAML decodes the YAML file at path into target.
// It returns an error if the file cannot be opened or parsed.
func ReadYAML(target interface{}, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open file %s: %w", path, err)
	}
	defer f.Close()

	decoder := yaml.NewDecoder(f)
	if err := decoder.Decode(target); err != nil {
		return fmt.Errorf("failed to decode file %s: %w", path, err)
	}

	return nil
}

// WriteYAML encodes source as YAML and writes it to path, creating parent
// directories as needed. Settings files may hold an anonymous client
// identifier, so they are written user-only.
func WriteYAML(source interface{}, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create directory for %s: %w", path, err)
	}
	data, err := yaml.Marshal(source)
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", path, err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write file %s: %w", path, err)
	}
	return nil
}
