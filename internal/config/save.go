package config

import (
	"bytes"
	"fmt"

	"gopkg.in/yaml.v3"
)

// Render returns cfg as an indented YAML document, as shown by `sleuth config`.
func Render(cfg Config) ([]byte, error) {
	var buf bytes.Buffer
	encoder := yaml.NewEncoder(&buf)
	encoder.SetIndent(2)
	if err := encoder.Encode(cfg); err != nil {
		return nil, fmt.Errorf("marshaling config: %w", err)
	}
	if err := encoder.Close(); err != nil {
		return nil, fmt.Errorf("flushing config: %w", err)
	}
	return buf.Bytes(), nil
}

// Parse decodes a YAML document on top of Defaults(). Keys missing from data
// keep their default values.
func Parse(data []byte) (Config, error) {
	cfg := Defaults()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parsing config: %w", err)
	}
	return cfg, nil
}
