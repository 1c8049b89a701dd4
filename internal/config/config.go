// Package config loads runtime configuration for both binaries from the
// environment with viper. Every key can also be set through a CLI flag bound
// to the same viper instance.
package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

const (
	envPrefix           = "GRADEBOOK"
	defaultHTTPAddress  = "0.0.0.0:8080"
	defaultDatabasePath = "gradebook.db"
	defaultLogLevel     = "info"
	defaultTokenIssuer  = "gradebook-syncd"
	defaultAudience     = "gradebook"
)

// ServerConfig captures runtime configuration for the sync server.
type ServerConfig struct {
	HTTPAddress   string
	DatabasePath  string
	LogLevel      string
	SigningSecret string
	TokenIssuer   string
	TokenAudience string
}

// CLIConfig captures runtime configuration for the command line client.
type CLIConfig struct {
	DatabasePath string
	LogLevel     string
	SyncURL      string
	SyncAccount  string
}

// NewViper returns a viper instance with defaults and env bindings configured.
func NewViper() *viper.Viper {
	configViper := viper.New()
	ApplyDefaults(configViper)
	return configViper
}

// ApplyDefaults configures defaults and env bindings on the provided viper
// instance.
func ApplyDefaults(configViper *viper.Viper) {
	configViper.SetEnvPrefix(envPrefix)
	configViper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	configViper.AutomaticEnv()

	configViper.SetDefault("http.address", defaultHTTPAddress)
	configViper.SetDefault("database.path", defaultDatabasePath)
	configViper.SetDefault("log.level", defaultLogLevel)
	configViper.SetDefault("auth.issuer", defaultTokenIssuer)
	configViper.SetDefault("auth.audience", defaultAudience)
}

// LoadServer parses sync server configuration from viper.
func LoadServer(configViper *viper.Viper) (ServerConfig, error) {
	cfg := ServerConfig{
		HTTPAddress:   configViper.GetString("http.address"),
		DatabasePath:  configViper.GetString("database.path"),
		LogLevel:      configViper.GetString("log.level"),
		SigningSecret: configViper.GetString("auth.signing_secret"),
		TokenIssuer:   configViper.GetString("auth.issuer"),
		TokenAudience: configViper.GetString("auth.audience"),
	}

	if err := cfg.validate(); err != nil {
		return ServerConfig{}, err
	}

	return cfg, nil
}

// LoadCLI parses command line client configuration from viper.
func LoadCLI(configViper *viper.Viper) (CLIConfig, error) {
	cfg := CLIConfig{
		DatabasePath: configViper.GetString("database.path"),
		LogLevel:     configViper.GetString("log.level"),
		SyncURL:      configViper.GetString("sync.url"),
		SyncAccount:  configViper.GetString("sync.account"),
	}

	if strings.TrimSpace(cfg.DatabasePath) == "" {
		return CLIConfig{}, fmt.Errorf("database.path is required")
	}
	if strings.TrimSpace(cfg.SyncURL) != "" && strings.TrimSpace(cfg.SyncAccount) == "" {
		return CLIConfig{}, fmt.Errorf("sync.account is required when sync.url is set")
	}

	return cfg, nil
}

func (c ServerConfig) validate() error {
	if strings.TrimSpace(c.SigningSecret) == "" {
		return fmt.Errorf("auth.signing_secret is required")
	}
	if strings.TrimSpace(c.DatabasePath) == "" {
		return fmt.Errorf("database.path is required")
	}
	if strings.TrimSpace(c.HTTPAddress) == "" {
		return fmt.Errorf("http.address is required")
	}
	return nil
}
