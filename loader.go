package promport

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	toml "github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// ConfigFormat selects the parser used for a config payload.
type ConfigFormat string

// Supported config formats.
const (
	FormatYAML ConfigFormat = "yaml"
	FormatTOML ConfigFormat = "toml"
)

// detectFormat picks the parser from the file extension. Anything that is not
// .toml parses as YAML.
func detectFormat(path string) ConfigFormat {
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		return FormatTOML
	}
	return FormatYAML
}

// LoadConfig reads and parses a configuration file from the given path.
// Environment variables in the format ${VAR_NAME} are expanded before
// parsing. The format is chosen by extension: .toml parses as TOML, anything
// else as YAML.
func LoadConfig(path string) (cfg *Config, err error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file %s: %w", path, err)
	}

	defer func() {
		if cerr := file.Close(); cerr != nil && err == nil {
			cfg, err = nil, fmt.Errorf("failed to close config file: %w", cerr)
		}
	}()

	return LoadConfigFromReader(file, detectFormat(path))
}

// LoadConfigFromReader reads and parses configuration from an io.Reader.
// Environment variables in the format ${VAR_NAME} are expanded before
// parsing. Fields missing from the document keep their defaults, so an
// explicit zero interval pauses collection while an absent one does not.
// The result is normalized but not validated.
func LoadConfigFromReader(r io.Reader, format ConfigFormat) (*Config, error) {
	content, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	expanded := os.ExpandEnv(string(content))

	cfg := DefaultConfig()
	switch format {
	case FormatTOML:
		if err := toml.Unmarshal([]byte(expanded), cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config TOML: %w", err)
		}
	default:
		if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config YAML: %w", err)
		}
	}

	cfg.Normalize()
	return cfg, nil
}
