package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	envPrefix              = "NOTESYNC"
	defaultHTTPAddress     = "127.0.0.1:8787"
	defaultDatabasePath    = "notesync.db"
	defaultLogLevel        = "info"
	defaultSyncIntervalSec = 30
	defaultSessionIssuer   = "featherdesk-accounts"
)

// AppConfig captures runtime configuration for the sync agent.
type AppConfig struct {
	HTTPAddress       string
	LocalDatabasePath string
	RemoteDSN         string
	SyncInterval      time.Duration
	SessionSigningKey string
	SessionIssuer     string
	LogLevel          string
}

// NewViper returns a viper instance with defaults and env bindings configured.
func NewViper() *viper.Viper {
	configViper := viper.New()
	ApplyDefaults(configViper)
	return configViper
}

// ApplyDefaults configures defaults and env bindings on the provided viper instance.
func ApplyDefaults(configViper *viper.Viper) {
	configViper.SetEnvPrefix(envPrefix)
	configViper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	configViper.AutomaticEnv()

	configViper.SetDefault("http.address", defaultHTTPAddress)
	configViper.SetDefault("database.path", defaultDatabasePath)
	configViper.SetDefault("sync.interval_s", defaultSyncIntervalSec)
	configViper.SetDefault("log.level", defaultLogLevel)
	configViper.SetDefault("auth.issuer", defaultSessionIssuer)
}

// Load parses runtime configuration from viper.
func Load(configViper *viper.Viper) (AppConfig, error) {
	cfg := AppConfig{
		HTTPAddress:       configViper.GetString("http.address"),
		LocalDatabasePath: configViper.GetString("database.path"),
		RemoteDSN:         configViper.GetString("remote.dsn"),
		SyncInterval:      time.Duration(configViper.GetInt("sync.interval_s")) * time.Second,
		SessionSigningKey: configViper.GetString("auth.signing_secret"),
		SessionIssuer:     configViper.GetString("auth.issuer"),
		LogLevel:          configViper.GetString("log.level"),
	}

	if err := cfg.validate(); err != nil {
		return AppConfig{}, err
	}

	return cfg, nil
}

func (c AppConfig) validate() error {
	if strings.TrimSpace(c.LocalDatabasePath) == "" {
		return fmt.Errorf("database.path is required")
	}
	if strings.TrimSpace(c.RemoteDSN) == "" {
		return fmt.Errorf("remote.dsn is required")
	}
	if strings.TrimSpace(c.SessionSigningKey) == "" {
		return fmt.Errorf("auth.signing_secret is required")
	}
	if strings.TrimSpace(c.SessionIssuer) == "" {
		return fmt.Errorf("auth.issuer is required")
	}
	if c.SyncInterval <= 0 {
		return fmt.Errorf("sync.interval_s must be positive")
	}
	return nil
}
