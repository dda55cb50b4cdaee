// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Acesso Contributors

// Package config loads acesso configuration. Sources are layered in order:
// built-in defaults, the YAML file, command-line flags, and finally secrets
// from ACESSO_* environment variables.
package config

import (
	"os"
	"slices"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/samber/oops"
	"github.com/spf13/pflag"

	"github.com/codelab/acesso/internal/xdg"
)

// Store drivers.
const (
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

// Config is the complete service configuration.
type Config struct {
	GRPC     GRPCConfig     `koanf:"grpc" json:"grpc"`
	Metrics  MetricsConfig  `koanf:"metrics" json:"metrics"`
	Log      LogConfig      `koanf:"log" json:"log"`
	Store    StoreConfig    `koanf:"store" json:"store"`
	Session  SessionConfig  `koanf:"session" json:"session"`
	Recovery RecoveryConfig `koanf:"recovery" json:"recovery"`
	Kong     KongConfig     `koanf:"kong" json:"kong"`
	Mail     MailConfig     `koanf:"mail" json:"mail"`
}

// GRPCConfig configures the gRPC listener.
type GRPCConfig struct {
	Addr     string `koanf:"addr" json:"addr,omitempty" jsonschema:"description=gRPC listen address"`
	// CertsDir holds root-ca.crt and the server key pair. Empty serves
	// plaintext.
	CertsDir string `koanf:"certs_dir" json:"certs_dir,omitempty" jsonschema:"description=directory with TLS certificates (empty serves plaintext)"`
	CertName string `koanf:"cert_name" json:"cert_name,omitempty" jsonschema:"description=base name of the server certificate files"`
}

// MetricsConfig configures the metrics and health listener. An empty
// address disables it.
type MetricsConfig struct {
	Addr string `koanf:"addr" json:"addr,omitempty" jsonschema:"description=metrics and health listen address"`
}

// LogConfig configures logging.
type LogConfig struct {
	Format string `koanf:"format" json:"format,omitempty" jsonschema:"enum=json,enum=text"`
	Level  string `koanf:"level" json:"level,omitempty" jsonschema:"enum=debug,enum=info,enum=warn,enum=error"`
}

// StoreConfig selects and configures persistence.
type StoreConfig struct {
	Driver         string        `koanf:"driver" json:"driver,omitempty" jsonschema:"enum=postgres,enum=memory"`
	DatabaseURL    string        `koanf:"database_url" json:"database_url,omitempty"`
	ConnectTimeout time.Duration `koanf:"connect_timeout" json:"connect_timeout,omitempty" jsonschema:"type=string,description=Go duration such as 30s"`
	AutoMigrate    bool          `koanf:"auto_migrate" json:"auto_migrate,omitempty"`
}

// SessionConfig configures session tokens.
type SessionConfig struct {
	Secret string        `koanf:"secret" json:"secret,omitempty"`
	TTL    time.Duration `koanf:"ttl" json:"ttl,omitempty" jsonschema:"type=string"`
}

// RecoveryConfig configures password recovery.
type RecoveryConfig struct {
	TokenTTL      time.Duration `koanf:"token_ttl" json:"token_ttl,omitempty" jsonschema:"type=string"`
	PurgeInterval time.Duration `koanf:"purge_interval" json:"purge_interval,omitempty" jsonschema:"type=string"`
}

// KongConfig configures the gateway Admin API client.
type KongConfig struct {
	AdminURL string        `koanf:"admin_url" json:"admin_url,omitempty" jsonschema:"format=uri"`
	APIKey   string        `koanf:"api_key" json:"api_key,omitempty"`
	Timeout  time.Duration `koanf:"timeout" json:"timeout,omitempty" jsonschema:"type=string"`
}

// MailConfig configures the Redis mail hand-off.
type MailConfig struct {
	RedisAddr     string `koanf:"redis_addr" json:"redis_addr,omitempty"`
	RedisPassword string `koanf:"redis_password" json:"redis_password,omitempty"`
	RedisDB       int    `koanf:"redis_db" json:"redis_db,omitempty" jsonschema:"minimum=0"`
	Stream        string `koanf:"stream" json:"stream,omitempty"`
}

// secrets are read from the environment and override file and flags.
type secrets struct {
	DatabaseURL   string `env:"ACESSO_DATABASE_URL"`
	JWTSecret     string `env:"ACESSO_JWT_SECRET"`
	KongAPIKey    string `env:"ACESSO_KONG_API_KEY"`
	RedisPassword string `env:"ACESSO_REDIS_PASSWORD"`
}

func defaults() map[string]any {
	return map[string]any{
		"grpc.addr":               ":9090",
		"grpc.cert_name":          "acesso",
		"metrics.addr":            ":9100",
		"log.format":              "json",
		"log.level":               "info",
		"store.driver":            DriverPostgres,
		"store.connect_timeout":   "30s",
		"store.auto_migrate":      false,
		"session.ttl":             "12h",
		"recovery.token_ttl":      "60m",
		"recovery.purge_interval": "10m",
		"kong.admin_url":          "http://localhost:8001",
		"kong.timeout":            "5s",
		"mail.redis_addr":         "localhost:6379",
		"mail.redis_db":           0,
		"mail.stream":             "mail.password-reset",
	}
}

// FlagKeys maps command-line flag names to configuration keys. Flags not
// listed here are ignored by Load.
var FlagKeys = map[string]string{
	"grpc-addr":    "grpc.addr",
	"certs-dir":    "grpc.certs_dir",
	"metrics-addr": "metrics.addr",
	"log-format":   "log.format",
	"log-level":    "log.level",
	"store-driver": "store.driver",
	"auto-migrate": "store.auto_migrate",
}

// Load builds a Config. When path is empty the XDG default file is used if
// present. flags may be nil. The result is not validated; call Validate.
func Load(path string, flags *pflag.FlagSet) (*Config, error) {
	k := koanf.New(".")
	for key, v := range defaults() {
		if err := k.Set(key, v); err != nil {
			return nil, oops.Code("CONFIG_LOAD_FAILED").With("key", key).Wrap(err)
		}
	}

	if path == "" {
		path = xdg.DefaultConfigFile()
	}
	if path != "" {
		data, err := os.ReadFile(path) //nolint:gosec // path comes from the operator
		if err != nil {
			return nil, oops.Code("CONFIG_READ_FAILED").With("path", path).Wrap(err)
		}
		if err := ValidateYAML(data); err != nil {
			return nil, oops.Code("CONFIG_INVALID").With("path", path).Wrap(err)
		}
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, oops.Code("CONFIG_LOAD_FAILED").With("path", path).Wrap(err)
		}
	}

	if flags != nil {
		provider := posflag.ProviderWithFlag(flags, ".", k, func(f *pflag.Flag) (string, any) {
			key, ok := FlagKeys[f.Name]
			if !ok {
				return "", nil
			}
			return key, posflag.FlagVal(flags, f)
		})
		if err := k.Load(provider, nil); err != nil {
			return nil, oops.Code("CONFIG_LOAD_FAILED").With("source", "flags").Wrap(err)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, oops.Code("CONFIG_LOAD_FAILED").Wrap(err)
	}

	var s secrets
	if err := env.Parse(&s); err != nil {
		return nil, oops.Code("CONFIG_ENV_FAILED").Wrap(err)
	}
	s.apply(&cfg)

	return &cfg, nil
}

func (s secrets) apply(cfg *Config) {
	if s.DatabaseURL != "" {
		cfg.Store.DatabaseURL = s.DatabaseURL
	}
	if s.JWTSecret != "" {
		cfg.Session.Secret = s.JWTSecret
	}
	if s.KongAPIKey != "" {
		cfg.Kong.APIKey = s.KongAPIKey
	}
	if s.RedisPassword != "" {
		cfg.Mail.RedisPassword = s.RedisPassword
	}
}

// Validate reports the first missing or inconsistent setting.
func (c *Config) Validate() error {
	invalid := func(key, msg string) error {
		return oops.Code("CONFIG_INVALID").With("key", key).Errorf("%s: %s", key, msg)
	}

	switch {
	case c.GRPC.Addr == "":
		return invalid("grpc.addr", "is required")
	case c.GRPC.CertsDir != "" && c.GRPC.CertName == "":
		return invalid("grpc.cert_name", "is required when grpc.certs_dir is set")
	case !slices.Contains([]string{"json", "text"}, c.Log.Format):
		return invalid("log.format", "must be json or text")
	case !slices.Contains([]string{DriverPostgres, DriverMemory}, c.Store.Driver):
		return invalid("store.driver", "must be postgres or memory")
	case c.Store.Driver == DriverPostgres && c.Store.DatabaseURL == "":
		return invalid("store.database_url", "is required for the postgres driver (ACESSO_DATABASE_URL)")
	case c.Store.ConnectTimeout <= 0:
		return invalid("store.connect_timeout", "must be positive")
	case strings.TrimSpace(c.Session.Secret) == "":
		return invalid("session.secret", "is required (ACESSO_JWT_SECRET)")
	case c.Session.TTL <= 0:
		return invalid("session.ttl", "must be positive")
	case c.Recovery.TokenTTL <= 0:
		return invalid("recovery.token_ttl", "must be positive")
	case c.Recovery.PurgeInterval < 0:
		return invalid("recovery.purge_interval", "must not be negative")
	case c.Kong.AdminURL == "":
		return invalid("kong.admin_url", "is required")
	case c.Kong.Timeout <= 0:
		return invalid("kong.timeout", "must be positive")
	case c.Mail.RedisAddr == "":
		return invalid("mail.redis_addr", "is required")
	case c.Mail.Stream == "":
		return invalid("mail.stream", "is required")
	}
	return nil
}
