package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/oarkflow/bcl"
	"github.com/oarkflow/errors"
	"github.com/oarkflow/json"
	"gopkg.in/yaml.v3"
)

// Config describes one analysis run: where messages come from, which source
// rules apply and where the results are written.
type Config struct {
	Source       string              `json:"source" yaml:"source"`
	Inputs       []string            `json:"inputs" yaml:"inputs"`
	Extensions   []string            `json:"extensions,omitempty" yaml:"extensions,omitempty"`
	Split        bool                `json:"split" yaml:"split"`
	WorkerCount  int                 `json:"worker_count" yaml:"worker_count"`
	CacheSize    int                 `json:"cache_size" yaml:"cache_size"`
	Verbose      bool                `json:"verbose" yaml:"verbose"`
	Transformers []TransformerConfig `json:"transformers,omitempty" yaml:"transformers,omitempty"`
	Outputs      OutputConfig        `json:"outputs" yaml:"outputs"`
}

// TransformerConfig declares one record transformer applied after extraction.
type TransformerConfig struct {
	Type    string         `json:"type" yaml:"type"`
	Name    string         `json:"name,omitempty" yaml:"name,omitempty"`
	Options map[string]any `json:"options,omitempty" yaml:"options,omitempty"`
}

// OutputConfig holds the destination files. The format follows the file
// extension; empty paths are not written.
type OutputConfig struct {
	Table    string `json:"table,omitempty" yaml:"table,omitempty"`
	Details  string `json:"details,omitempty" yaml:"details,omitempty"`
	Patients string `json:"patients,omitempty" yaml:"patients,omitempty"`
	Append   bool   `json:"append" yaml:"append"`
}

// Paths returns the configured output files keyed by output name.
func (o OutputConfig) Paths() map[string]string {
	paths := make(map[string]string, 3)
	if o.Table != "" {
		paths["table"] = o.Table
	}
	if o.Details != "" {
		paths["details"] = o.Details
	}
	if o.Patients != "" {
		paths["patients"] = o.Patients
	}
	return paths
}

// DefaultCacheSize is the number of parsed messages kept when caching is not
// configured.
const DefaultCacheSize = 1024

// Load reads a config file, choosing the decoder from its extension.
func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
	if ext == "" {
		return Detect(string(raw))
	}
	return LoadFromString(string(raw), ext)
}

// LoadFromString decodes content in the named format.
func LoadFromString(content, format string) (*Config, error) {
	var decode func([]byte, any) error
	switch strings.ToLower(format) {
	case "yaml", "yml":
		decode = yaml.Unmarshal
	case "json":
		decode = func(data []byte, v any) error {
			return json.Unmarshal(data, v)
		}
	case "bcl":
		decode = func(data []byte, v any) error {
			_, err := bcl.Unmarshal(data, v)
			return err
		}
	default:
		return nil, fmt.Errorf("unsupported config format: %s", format)
	}
	var cfg Config
	if err := decode([]byte(content), &cfg); err != nil {
		return nil, fmt.Errorf("decode %s config: %w", format, err)
	}
	return finish(&cfg)
}

// Detect decodes input as JSON, YAML or BCL, whichever succeeds first.
func Detect(input string) (*Config, error) {
	trimmed := []byte(strings.TrimSpace(input))
	var cfg Config
	if json.Unmarshal(trimmed, &cfg) == nil {
		return finish(&cfg)
	}
	cfg = Config{}
	if yaml.Unmarshal(trimmed, &cfg) == nil {
		return finish(&cfg)
	}
	cfg = Config{}
	if _, err := bcl.Unmarshal(trimmed, &cfg); err == nil {
		return finish(&cfg)
	}
	return nil, fmt.Errorf("unable to detect config format, please provide valid JSON, YAML, or BCL")
}

func finish(cfg *Config) (*Config, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyDefaults fills unset tuning values.
func (c *Config) ApplyDefaults() {
	if c.WorkerCount == 0 {
		c.WorkerCount = runtime.NumCPU()
	}
	if c.CacheSize == 0 {
		c.CacheSize = DefaultCacheSize
	}
}

// Validate checks the invariants a run depends on.
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("Config: config is nil")
	}
	if strings.TrimSpace(c.Source) == "" {
		return errors.New("Config: source must be provided")
	}
	if c.WorkerCount < 0 {
		return errors.New("Config: worker_count must not be negative")
	}
	if c.CacheSize < 0 {
		return errors.New("Config: cache_size must not be negative")
	}
	for name, path := range c.Outputs.Paths() {
		if _, err := OutputFormat(path); err != nil {
			return fmt.Errorf("Config: output %s: %w", name, err)
		}
	}
	for i, t := range c.Transformers {
		if strings.TrimSpace(t.Type) == "" {
			return fmt.Errorf("Config: transformer at index %d is missing a type", i)
		}
	}
	return nil
}

// OutputFormat returns "csv" or "json" from the extension of path.
func OutputFormat(path string) (string, error) {
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".csv":
		return "csv", nil
	case ".json":
		return "json", nil
	default:
		return "", fmt.Errorf("unsupported output extension %q", ext)
	}
}
