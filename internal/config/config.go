package config

import (
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all configuration for the application.
type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	DB      DBConfig      `mapstructure:"db"`
	OIDC    OIDCConfig    `mapstructure:"oidc"`
	Log     LogConfig     `mapstructure:"log"`
	Session SessionConfig `mapstructure:"session"`
	Cache   CacheConfig   `mapstructure:"cache"`
	Moodle  MoodleConfig  `mapstructure:"moodle"`
	Admin   AdminConfig   `mapstructure:"admin"`
}

// ServerConfig holds server-specific configuration.
type ServerConfig struct {
	Port string `mapstructure:"port"`
	// BaseURL is the public address used in the sitemap and webhook URLs.
	BaseURL string    `mapstructure:"base_url"`
	TLS     TLSConfig `mapstructure:"tls"`
}

// TLSConfig holds TLS-specific configuration.
type TLSConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	CertFile string `mapstructure:"certFile"`
	KeyFile  string `mapstructure:"keyFile"`
}

// DBConfig holds database-specific configuration.
type DBConfig struct {
	Driver string `mapstructure:"driver"` // "mysql" or "sqlite3"
	DSN    string `mapstructure:"dsn"`
}

// OIDCConfig holds OIDC client configuration.
type OIDCConfig struct {
	IssuerURL    string `mapstructure:"issuer_url"`
	ClientID     string `mapstructure:"client_id"`
	ClientSecret string `mapstructure:"client_secret"`
	RedirectURL  string `mapstructure:"redirect_url"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level  string `mapstructure:"level"`  // e.g., "debug", "info", "warn", "error"
	Format string `mapstructure:"format"` // e.g., "json", "console"
}

// SessionConfig holds admin session configuration.
type SessionConfig struct {
	Lifetime int `mapstructure:"lifetime"` // hours
	// Secure marks the session cookie Secure even when TLS terminates upstream.
	Secure bool `mapstructure:"secure"`
}

// CacheConfig holds the catalog page cache configuration.
type CacheConfig struct {
	FilePath string        `mapstructure:"file_path"`
	TTL      time.Duration `mapstructure:"ttl"`
}

// MoodleConfig holds the remote webservice client configuration.
// BaseURL, Username and Token only seed the settings table on first boot.
type MoodleConfig struct {
	BaseURL            string        `mapstructure:"base_url"`
	Username           string        `mapstructure:"username"`
	Token              string        `mapstructure:"token"`
	Timeout            time.Duration `mapstructure:"timeout"`
	InsecureSkipVerify bool          `mapstructure:"insecure_skip_verify"`
	RateLimit          float64       `mapstructure:"rate_limit"` // requests per second, 0 disables
}

// AdminConfig lists the OIDC subjects that are granted the admin role.
type AdminConfig struct {
	Subjects []string `mapstructure:"subjects"`
}

// LoadConfig reads configuration from .env, config file and environment variables.
func LoadConfig() (*Config, error) {
	// A missing .env is the normal case outside development.
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yml")
	v.AddConfigPath(".")
	v.AddConfigPath("./configs")
	v.AddConfigPath("/etc/go-moodle-catalog/")
	v.AddConfigPath("$HOME/.go-moodle-catalog")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	v.SetEnvPrefix("CATALOG")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	// AutomaticEnv does not split list values.
	if raw := v.GetString("admin.subjects"); raw != "" && len(cfg.Admin.Subjects) <= 1 {
		cfg.Admin.Subjects = strings.Fields(strings.ReplaceAll(raw, ",", " "))
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.base_url", "http://localhost:8080")
	v.SetDefault("db.driver", "sqlite3")
	v.SetDefault("db.dsn", "catalog.db")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
	v.SetDefault("session.secure", false)
	v.SetDefault("session.lifetime", 12)
	v.SetDefault("cache.file_path", "catalog-cache.db")
	v.SetDefault("cache.ttl", 10*time.Minute)
	v.SetDefault("moodle.base_url", "")
	v.SetDefault("moodle.username", "")
	v.SetDefault("moodle.token", "")
	v.SetDefault("moodle.timeout", 30*time.Second)
	v.SetDefault("moodle.insecure_skip_verify", false)
	v.SetDefault("moodle.rate_limit", 0)
	v.SetDefault("admin.subjects", []string{})
	v.SetDefault("oidc.issuer_url", "")
	v.SetDefault("oidc.client_id", "")
	v.SetDefault("oidc.client_secret", "")
	v.SetDefault("oidc.redirect_url", "")
}
