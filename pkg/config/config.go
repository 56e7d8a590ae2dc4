package config

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Listen   string        `yaml:"listen"`
	Username string        `yaml:"username"`
	Password string        `yaml:"password"`
	Timeout  time.Duration `yaml:"timeout"`
	Debug    bool          `yaml:"debug"`
}

func Default() Config {
	return Config{
		Listen:  ":3000",
		Timeout: 5 * time.Minute,
	}
}

// Load resolves configuration from, lowest precedence first: defaults, the
// --config YAML file, environment (PORT, REGISTRY_USERNAME, REGISTRY_PASSWORD)
// and explicitly set flags. getenv is os.Getenv outside of tests.
func Load(args []string, getenv func(string) string) (*Config, bool, error) {
	fs := pflag.NewFlagSet("layerproxy", pflag.ContinueOnError)
	path := fs.String("config", "", "Path to a YAML config file")
	listen := fs.String("listen", "", "Address to listen on (default \":3000\", or :$PORT)")
	username := fs.String("username", "", "Username for registry token endpoints")
	password := fs.String("password", "", "Password for registry token endpoints")
	timeout := fs.Duration("timeout", 0, "Timeout for connecting to a registry and receiving response headers, and for token exchanges (default 5m)")
	debug := fs.Bool("debug", false, "Enable debug logging")
	showVersion := fs.Bool("version", false, "Print version and exit")
	if err := fs.Parse(args); err != nil {
		return nil, false, err
	}

	cfg := Default()
	if *path != "" {
		data, err := os.ReadFile(*path)
		if err != nil {
			return nil, false, fmt.Errorf("failed to read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, false, fmt.Errorf("failed to parse config %s: %w", *path, err)
		}
	}

	if port := getenv("PORT"); port != "" {
		cfg.Listen = ":" + port
	}
	if v := getenv("REGISTRY_USERNAME"); v != "" {
		cfg.Username = v
	}
	if v := getenv("REGISTRY_PASSWORD"); v != "" {
		cfg.Password = v
	}

	if fs.Changed("listen") {
		cfg.Listen = *listen
	}
	if fs.Changed("username") {
		cfg.Username = *username
	}
	if fs.Changed("password") {
		cfg.Password = *password
	}
	if fs.Changed("timeout") {
		cfg.Timeout = *timeout
	}
	if fs.Changed("debug") {
		cfg.Debug = *debug
	}

	if cfg.Password != "" && cfg.Username == "" {
		return nil, false, fmt.Errorf("password given without username")
	}
	return &cfg, *showVersion, nil
}
