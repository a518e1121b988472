package config

import (
	"errors"
	"fmt"
	"io"
	"os"

	yaml "gopkg.in/yaml.v2"

	"github.com/stepguard/stepguard/pkg/riskengine"
)

// DefaultConfigFile is read when neither --config nor STEPGUARD_CONFIG is set.
const DefaultConfigFile = "stepguard.yml"

// Config is the global stepguard configuration.
type Config struct {
	Logger  Logger  `yaml:"logger"`
	Engine  Engine  `yaml:"engine"`
	Output  Output  `yaml:"output"`
	Metrics Metrics `yaml:"metrics"`
}

// Logger holds the logging settings.
type Logger struct {
	Level           string `yaml:"level"`
	DisableTime     *bool  `yaml:"disable_time"`
	JSONFormat      *bool  `yaml:"json_format"`
	IncludeLocation *bool  `yaml:"include_location"`
}

// Engine holds the analysis settings.
type Engine struct {
	Concurrency     int                   `yaml:"concurrency"`
	ReasonSeparator string                `yaml:"reason_separator"`
	ExtraRules      []riskengine.RuleSpec `yaml:"extra_rules"`
}

// Output holds the report settings.
type Output struct {
	Format       string `yaml:"format"`
	FailOn       string `yaml:"fail_on"`
	MaskEvidence *bool  `yaml:"mask_evidence"`
}

// Metrics holds the metrics export settings.
type Metrics struct {
	Textfile string `yaml:"textfile"`
}

// ResolveConfigPath picks the configuration file: the flag value, then
// STEPGUARD_CONFIG, then DefaultConfigFile. explicit reports whether the
// file was requested rather than defaulted.
func ResolveConfigPath(flagValue string) (path string, explicit bool) {
	if flagValue != "" {
		return flagValue, true
	}
	if env := os.Getenv("STEPGUARD_CONFIG"); env != "" {
		return env, true
	}
	return DefaultConfigFile, false
}

// ValidateConfigPath checks that path names a readable file.
func ValidateConfigPath(path string) error {
	s, err := os.Stat(path)
	if err != nil {
		return err
	}
	if s.IsDir() {
		return fmt.Errorf("'%s' is a directory, not a file", path)
	}
	return nil
}

// LoadYAML decodes the YAML file at configPath into data.
func LoadYAML(configPath string, data interface{}) error {
	if err := ValidateConfigPath(configPath); err != nil {
		return err
	}

	file, err := os.Open(configPath)
	if err != nil {
		return err
	}
	defer file.Close()

	d := yaml.NewDecoder(file)
	d.SetStrict(true)
	if err := d.Decode(data); err != nil && !errors.Is(err, io.EOF) {
		return err
	}

	return nil
}

// LoadConfig reads the configuration file. A missing file is only an error
// when it was requested explicitly; otherwise the defaults apply.
func LoadConfig(configPath string, explicit bool) (*Config, error) {
	cfg := &Config{}

	if _, err := os.Stat(configPath); os.IsNotExist(err) && !explicit {
		return cfg, nil
	}
	if err := LoadYAML(configPath, cfg); err != nil {
		return nil, fmt.Errorf("failed to load config %q: %w", configPath, err)
	}

	return cfg, nil
}
