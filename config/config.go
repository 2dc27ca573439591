package config

// Package config loads the settings shared by the test session and the
// command line: the platform under test, where run state is written and
// how leftover test data is recognized.

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/perfgo/testkeeper/model"
	"github.com/spf13/viper"
)

const (
	fileName  = "testkeeper"
	fileType  = "yaml"
	envPrefix = "TESTKEEPER"

	keyBaseURL   = "base_url"
	keyAPIToken  = "api_token"
	keyTestName  = "test_name"
	keyStatePath = "state_path"
	keyGuidePath = "guide_path"
	keyPrefixes  = "prefixes"
	keyTimeout   = "timeout"
	keyEndpoints = "endpoints"

	DefaultBaseURL   = "http://localhost:8080"
	DefaultStatePath = ".testkeeper/state.json"
	DefaultGuidePath = ".testkeeper/VERIFICATION.md"
	DefaultPrefix    = "e2e_test_"
	DefaultTimeout   = 30 * time.Second
)

// Config holds the resolved settings.
type Config struct {
	// Base URL of the platform under test
	BaseURL string `mapstructure:"base_url"`
	// Bearer token sent with every API request
	APIToken string `mapstructure:"api_token"`
	// Name recorded in the state header
	TestName string `mapstructure:"test_name"`
	// Path of the JSON state snapshot
	StatePath string `mapstructure:"state_path"`
	// Path of the Markdown verification guide
	GuidePath string `mapstructure:"guide_path"`
	// Name prefixes that mark test data
	Prefixes []string `mapstructure:"prefixes"`
	// Timeout of a single API request
	Timeout time.Duration `mapstructure:"timeout"`
	// Delete endpoint overrides keyed by category
	Endpoints map[string]string `mapstructure:"endpoints"`
}

// Default returns the configuration used when nothing is configured.
func Default() *Config {
	return &Config{
		BaseURL:   DefaultBaseURL,
		StatePath: DefaultStatePath,
		GuidePath: DefaultGuidePath,
		Prefixes:  []string{DefaultPrefix},
		Timeout:   DefaultTimeout,
		Endpoints: map[string]string{},
	}
}

// Load reads the configuration. Values come from, in increasing order of
// precedence, the defaults, the YAML file and TESTKEEPER_* environment
// variables; API_TOKEN is accepted for the token as well. With an empty
// path testkeeper.yaml is looked up in the working directory and may be
// missing; an explicit path must exist.
func Load(path string) (*Config, error) {
	v := viper.New()

	def := Default()
	v.SetDefault(keyBaseURL, def.BaseURL)
	v.SetDefault(keyAPIToken, "")
	v.SetDefault(keyTestName, "")
	v.SetDefault(keyStatePath, def.StatePath)
	v.SetDefault(keyGuidePath, def.GuidePath)
	v.SetDefault(keyPrefixes, def.Prefixes)
	v.SetDefault(keyTimeout, def.Timeout)
	v.SetDefault(keyEndpoints, map[string]string{})

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if err := v.BindEnv(keyAPIToken, envPrefix+"_API_TOKEN", "API_TOKEN"); err != nil {
		return nil, fmt.Errorf("bind env: %w", err)
	}

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName(fileName)
		v.SetConfigType(fileType)
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if cfg.Endpoints == nil {
		cfg.Endpoints = map[string]string{}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the settings that cannot be defaulted.
func (c *Config) Validate() error {
	if c.BaseURL == "" {
		return errors.New("base_url must not be empty")
	}
	if c.StatePath == "" {
		return errors.New("state_path must not be empty")
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive, got %s", c.Timeout)
	}
	for category, endpoint := range c.Endpoints {
		if !strings.HasPrefix(endpoint, "/") {
			return fmt.Errorf("endpoint for %s must start with /, got %q", category, endpoint)
		}
	}
	return nil
}

// EndpointOverrides returns the configured delete endpoints keyed by
// category.
func (c *Config) EndpointOverrides() map[model.Category]string {
	out := make(map[model.Category]string, len(c.Endpoints))
	for category, endpoint := range c.Endpoints {
		out[model.Category(category)] = endpoint
	}
	return out
}
