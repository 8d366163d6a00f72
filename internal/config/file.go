package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// LoadFile reads a YAML config file into cfg. Keys absent from the file keep
// their current values; unknown keys are an error.
func LoadFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := decodeYAML(data, cfg); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

func decodeYAML(data []byte, cfg *Config) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	if err := dec.Decode(cfg); err != nil {
		// An empty file is a valid, empty config.
		if errors.Is(err, io.EOF) {
			return nil
		}
		return err
	}
	return nil
}

// Marshal renders cfg as YAML, e.g. for -print-config.
func Marshal(cfg *Config) ([]byte, error) {
	return yaml.Marshal(cfg)
}
