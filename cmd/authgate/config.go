package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/antarasi/authgate"
	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"
)

// EnvSigningKey overrides auth.signing_key so the key can stay out of files
const EnvSigningKey = "AUTHGATE_SIGNING_KEY"

// Config is the process configuration, loaded from YAML and flags
type Config struct {
	Listen          string              `yaml:"listen"`
	DSN             string              `yaml:"dsn"`
	SocketPath      string              `yaml:"socket_path"`
	Metrics         string              `yaml:"metrics"`
	MetricsPath     string              `yaml:"metrics_path"`
	ViewsDir        string              `yaml:"views_dir"`
	Hashid          bool                `yaml:"hashid"`
	Debug           bool                `yaml:"debug"`
	ShutdownTimeout time.Duration       `yaml:"shutdown_timeout"`
	Auth            authgate.AuthConfig `yaml:"auth"`
}

func defaultConfig() Config {
	return Config{
		Listen:          ":3030",
		DSN:             "file:authgate.db?cache=shared",
		SocketPath:      "/socket",
		Metrics:         "none",
		MetricsPath:     "/metrics",
		ShutdownTimeout: 10 * time.Second,
	}
}

// loadConfig reads defaults, then the YAML file named by --config, then
// the environment, then explicit flags.
func loadConfig(args []string) (Config, error) {
	cfg := defaultConfig()

	flagSet := pflag.NewFlagSet("authgate", pflag.ContinueOnError)
	path := flagSet.StringP("config", "c", "", "path to a YAML config file")
	listen := flagSet.String("listen", cfg.Listen, "listen address")
	dsn := flagSet.String("dsn", cfg.DSN, "sqlite DSN")
	signingKey := flagSet.String("signing-key", "", "HMAC signing key, overrides "+EnvSigningKey)
	lifetime := flagSet.Duration("token-lifetime", 0, "access token lifetime, e.g. 24h")
	metrics := flagSet.String("metrics", cfg.Metrics, "metrics exporter: prometheus or none")
	debug := flagSet.Bool("debug", false, "verbose logging")

	if err := flagSet.Parse(args); err != nil {
		return cfg, err
	}

	if *path != "" {
		raw, err := os.ReadFile(*path)
		if err != nil {
			return cfg, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config %s: %w", *path, err)
		}
	}

	if key := strings.TrimSpace(os.Getenv(EnvSigningKey)); key != "" {
		cfg.Auth.SigningKey = key
	}

	if flagSet.Changed("listen") {
		cfg.Listen = *listen
	}
	if flagSet.Changed("dsn") {
		cfg.DSN = *dsn
	}
	if flagSet.Changed("signing-key") {
		cfg.Auth.SigningKey = strings.TrimSpace(*signingKey)
	}
	if flagSet.Changed("token-lifetime") {
		cfg.Auth.TokenLifetime = *lifetime
	}
	if flagSet.Changed("metrics") {
		cfg.Metrics = *metrics
	}
	if flagSet.Changed("debug") {
		cfg.Debug = *debug
	}

	if err := cfg.Auth.Validate(); err != nil {
		return cfg, fmt.Errorf("auth config: %w", err)
	}

	return cfg, nil
}
