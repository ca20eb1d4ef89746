package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	envPrefix              = "CONFESSIONS"
	defaultHTTPAddress     = "0.0.0.0:8080"
	defaultDatabaseDriver  = DatabaseDriverSQLite
	defaultDatabaseDSN     = "confessions.db"
	defaultLogLevel        = "info"
	defaultTokenTTLMinutes = 30 * 24 * 60
	defaultCooldownSeconds = 30
	defaultAllowedOrigin   = "*"
	DatabaseDriverSQLite   = "sqlite"
	DatabaseDriverPostgres = "postgres"
	keyHTTPAddress         = "http.address"
	keyDatabaseDriver      = "database.driver"
	keyDatabaseDSN         = "database.dsn"
	keyLogLevel            = "log.level"
	keySigningSecret       = "auth.signing_secret"
	keyTokenTTLMinutes     = "auth.token_ttl_minutes"
	keyPostingCooldown     = "posting.cooldown_seconds"
	keyDedupeVotes         = "votes.dedupe"
	keyCORSAllowedOrigins  = "cors.allowed_origins"
)

// AppConfig captures runtime configuration for the API server.
type AppConfig struct {
	HTTPAddress     string
	DatabaseDriver  string
	DatabaseDSN     string
	LogLevel        string
	SigningSecret   string
	TokenTTL        time.Duration
	PostingCooldown time.Duration
	DedupeVotes     bool
	AllowedOrigins  []string
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

	configViper.SetDefault(keyHTTPAddress, defaultHTTPAddress)
	configViper.SetDefault(keyDatabaseDriver, defaultDatabaseDriver)
	configViper.SetDefault(keyDatabaseDSN, defaultDatabaseDSN)
	configViper.SetDefault(keyLogLevel, defaultLogLevel)
	configViper.SetDefault(keyTokenTTLMinutes, defaultTokenTTLMinutes)
	configViper.SetDefault(keyPostingCooldown, defaultCooldownSeconds)
	configViper.SetDefault(keyDedupeVotes, false)
	configViper.SetDefault(keyCORSAllowedOrigins, []string{defaultAllowedOrigin})
}

// Load parses runtime configuration from viper.
func Load(configViper *viper.Viper) (AppConfig, error) {
	cfg := AppConfig{
		HTTPAddress:     configViper.GetString(keyHTTPAddress),
		DatabaseDriver:  strings.ToLower(strings.TrimSpace(configViper.GetString(keyDatabaseDriver))),
		DatabaseDSN:     configViper.GetString(keyDatabaseDSN),
		LogLevel:        configViper.GetString(keyLogLevel),
		SigningSecret:   configViper.GetString(keySigningSecret),
		TokenTTL:        time.Duration(configViper.GetInt(keyTokenTTLMinutes)) * time.Minute,
		PostingCooldown: time.Duration(configViper.GetInt(keyPostingCooldown)) * time.Second,
		DedupeVotes:     configViper.GetBool(keyDedupeVotes),
		AllowedOrigins:  normalizeOrigins(configViper.GetStringSlice(keyCORSAllowedOrigins)),
	}

	if err := cfg.validate(); err != nil {
		return AppConfig{}, err
	}

	return cfg, nil
}

func (c AppConfig) validate() error {
	if strings.TrimSpace(c.SigningSecret) == "" {
		return fmt.Errorf("%s is required", keySigningSecret)
	}
	if strings.TrimSpace(c.HTTPAddress) == "" {
		return fmt.Errorf("%s is required", keyHTTPAddress)
	}
	if strings.TrimSpace(c.DatabaseDSN) == "" {
		return fmt.Errorf("%s is required", keyDatabaseDSN)
	}
	switch c.DatabaseDriver {
	case DatabaseDriverSQLite, DatabaseDriverPostgres:
	default:
		return fmt.Errorf("%s must be %q or %q, got %q", keyDatabaseDriver, DatabaseDriverSQLite, DatabaseDriverPostgres, c.DatabaseDriver)
	}
	if c.TokenTTL <= 0 {
		return fmt.Errorf("%s must be positive", keyTokenTTLMinutes)
	}
	if c.PostingCooldown < 0 {
		return fmt.Errorf("%s must not be negative", keyPostingCooldown)
	}
	if len(c.AllowedOrigins) == 0 {
		return fmt.Errorf("%s must list at least one origin", keyCORSAllowedOrigins)
	}
	return nil
}

// normalizeOrigins accepts both list values and comma separated env strings.
func normalizeOrigins(raw []string) []string {
	origins := make([]string, 0, len(raw))
	for _, entry := range raw {
		for _, origin := range strings.Split(entry, ",") {
			if trimmed := strings.TrimSpace(origin); trimmed != "" {
				origins = append(origins, trimmed)
			}
		}
	}
	return origins
}
