package config

import (
	"errors"
	"fmt"
	"os"
	"regexp"

	"github.com/expr-lang/expr"
	"github.com/invopop/jsonschema"
	"gopkg.in/yaml.v3"
)

const (
	DefaultConfigFile    = ".hellokube.yml"
	DefaultName          = "hellokube"
	DefaultPort          = 3000
	DefaultGreeting      = "Hello updated from Kubernetes 🚀"
	DefaultRetentionDays = 7
)

var validName = regexp.MustCompile(`^[a-z0-9]([a-z0-9-]{0,61}[a-z0-9])?$`)

type ServerConfig struct {
	Include   []string        `yaml:"include,omitempty"`
	Name      string          `yaml:"name,omitempty"`
	Port      int             `yaml:"port,omitempty"`
	Greeting  GreetingConfig  `yaml:"greeting,omitempty"`
	EnvFile   []string        `yaml:"env_file,omitempty"`
	Metrics   MetricsConfig   `yaml:"metrics,omitempty"`
	AccessLog AccessLogConfig `yaml:"access_log,omitempty"`
}

// GreetingConfig is the body served on GET /. Value wins over Expression.
type GreetingConfig struct {
	Value      string `yaml:"value,omitempty" jsonschema:"oneof_required=value"`
	Expression string `yaml:"expr,omitempty" jsonschema:"oneof_required=expr"`
}

type MetricsConfig struct {
	// Address of the admin listener serving /metrics, /livez and /readyz. Empty disables it.
	Address string `yaml:"address,omitempty"`
}

type AccessLogConfig struct {
	// Path of the sqlite database. Empty disables the access log.
	Database      string `yaml:"database,omitempty"`
	RetentionDays int    `yaml:"retention_days,omitempty"`
}

func (a AccessLogConfig) Enabled() bool {
	return a.Database != ""
}

// Default returns the configuration used when no config file exists.
func Default() *ServerConfig {
	cfg := &ServerConfig{}
	cfg.FillDefaults()

	return cfg
}

// CreateConfig loads the given file and fails when it does not exist.
func CreateConfig(file string) (*ServerConfig, error) {
	if _, err := os.Stat(file); os.IsNotExist(err) {
		return nil, fmt.Errorf("config file %s does not exist", file)
	}

	var cfg ServerConfig

	data, err := os.ReadFile(file)

	if err != nil {
		return nil, err
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	for _, include := range cfg.Include {
		includeData, err := os.ReadFile(include)

		if err != nil {
			return nil, fmt.Errorf("failed to read include file %s: %w", include, err)
		}

		if err := yaml.Unmarshal(includeData, &cfg); err != nil {
			return nil, err
		}
	}

	// the main file wins over its includes
	if len(cfg.Include) > 0 {
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, err
		}
	}

	cfg.FillDefaults()

	if err := validateConfig(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// CreateConfigOrDefault behaves like CreateConfig but falls back to Default when the file is missing.
func CreateConfigOrDefault(file string) (*ServerConfig, error) {
	if _, err := os.Stat(file); errors.Is(err, os.ErrNotExist) {
		return Default(), nil
	}

	return CreateConfig(file)
}

func validateConfig(cfg *ServerConfig) error {
	if cfg.Port < 1 || cfg.Port > 65535 {
		return fmt.Errorf("port %d is out of range (1-65535)", cfg.Port)
	}

	if !validName.MatchString(cfg.Name) {
		return fmt.Errorf("the name %q cannot contain special symbols as it is used as metrics label and log prefix", cfg.Name)
	}

	if cfg.AccessLog.RetentionDays < 0 {
		return fmt.Errorf("access_log.retention_days cannot be negative")
	}

	if cfg.Greeting.Value == "" && cfg.Greeting.Expression != "" {
		if _, err := expr.Compile(cfg.Greeting.Expression); err != nil {
			return fmt.Errorf("greeting.expr: %w", err)
		}
	}

	return nil
}

func (c *ServerConfig) FillDefaults() {
	if c.Name == "" {
		c.Name = DefaultName
	}

	if c.Port == 0 {
		c.Port = DefaultPort
	}

	if c.Greeting.Value == "" && c.Greeting.Expression == "" {
		c.Greeting.Value = DefaultGreeting
	}

	if c.AccessLog.RetentionDays == 0 {
		c.AccessLog.RetentionDays = DefaultRetentionDays
	}
}

// Schema reflects the JSON schema of the config file, keyed by the yaml field names.
func Schema() *jsonschema.Schema {
	r := new(jsonschema.Reflector)
	r.FieldNameTag = "yaml"
	r.RequiredFromJSONSchemaTags = true

	return r.Reflect(ServerConfig{})
}
