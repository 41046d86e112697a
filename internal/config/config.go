// Package config reads process-wide settings from flags, environment and
// an optional config file.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/Axinion/DynamicActive-Task/internal/embedding"
	"github.com/Axinion/DynamicActive-Task/internal/insights"
	"github.com/Axinion/DynamicActive-Task/internal/store"
)

// EnvPrefix prefixes every environment variable, e.g. K12LMS_DB.
const EnvPrefix = "K12LMS"

// Config is read once at startup.
type Config struct {
	DBDriver      store.Driver
	DB            string
	Addr          string
	CORSOrigins   []string
	Lang          string
	Embedding     embedding.ProviderConfig
	CacheCapacity int
	PassThreshold float64
	LogLevel      string
	LogFormat     string
}

// AddDatabaseFlags registers the database connection flags.
func AddDatabaseFlags(f *pflag.FlagSet) {
	f.String("db-driver", string(store.DriverSQLite), "Database driver (sqlite, postgres)")
	f.String("db", "k12lms.db", "SQLite path or Postgres DSN")
}

// AddServerFlags registers the HTTP server flags.
func AddServerFlags(f *pflag.FlagSet) {
	f.StringP("addr", "a", ":8080", "HTTP listen address")
	f.StringSlice("cors-origins", []string{"http://localhost:3000", "http://localhost:3001"}, "Allowed CORS origins")
}

// AddAnalyticsFlags registers the embedding and scoring flags.
func AddAnalyticsFlags(f *pflag.FlagSet) {
	f.StringP("lang", "l", "en", "Message language (en, ru)")
	f.String("embedding-provider", embedding.ProviderHashing, "Embedding backend (hashing, openai, ollama, gemini)")
	f.String("embedding-model", "", "Embedding model (empty = provider default)")
	f.String("embedding-url", "", "Base URL of an OpenAI-compatible or Ollama server")
	f.String("embedding-key", "", "API key for the embedding backend")
	f.Int("embedding-dimensions", embedding.DefaultDimension, "Vector size of the local embedding model")
	f.Int("cache-capacity", embedding.DefaultCacheCapacity, "Embedding cache entries")
	f.Float64("pass-threshold", insights.DefaultPassThreshold, "Short-answer score treated as passing")
}

// AddLoggingFlags registers the logging flags.
func AddLoggingFlags(f *pflag.FlagSet) {
	f.String("log-level", "info", "Log level (debug, info, warn, error)")
	f.String("log-format", "text", "Log format (text, json)")
}

// NewViper binds a flag set and the environment to a fresh viper instance
// and reads the k12lms config file if there is one.
func NewViper(f *pflag.FlagSet) *viper.Viper {
	v := viper.New()
	_ = v.BindPFlags(f)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetConfigName("k12lms")
	v.AddConfigPath(".")
	v.AddConfigPath("$HOME/.config/k12lms")
	v.AddConfigPath("/etc/k12lms")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			slog.Warn("error reading config file", "error", err)
		}
	} else {
		slog.Debug("loaded config file", "path", v.ConfigFileUsed())
	}
	return v
}

// Load reads a Config from v and validates it. Keys without a value fall
// back to the flag defaults.
func Load(v *viper.Viper) (*Config, error) {
	c := &Config{
		DBDriver:      store.Driver(strings.ToLower(getString(v, "db-driver", string(store.DriverSQLite)))),
		DB:            getString(v, "db", "k12lms.db"),
		Addr:          getString(v, "addr", ":8080"),
		CORSOrigins:   v.GetStringSlice("cors-origins"),
		Lang:          getString(v, "lang", "en"),
		CacheCapacity: embedding.DefaultCacheCapacity,
		PassThreshold: insights.DefaultPassThreshold,
		LogLevel:      getString(v, "log-level", "info"),
		LogFormat:     getString(v, "log-format", "text"),
		Embedding: embedding.ProviderConfig{
			Provider:   strings.ToLower(getString(v, "embedding-provider", embedding.ProviderHashing)),
			Model:      v.GetString("embedding-model"),
			BaseURL:    v.GetString("embedding-url"),
			APIKey:     v.GetString("embedding-key"),
			Dimensions: embedding.DefaultDimension,
		},
	}
	if v.IsSet("cache-capacity") {
		c.CacheCapacity = v.GetInt("cache-capacity")
	}
	if v.IsSet("pass-threshold") {
		c.PassThreshold = v.GetFloat64("pass-threshold")
	}
	if v.IsSet("embedding-dimensions") {
		c.Embedding.Dimensions = v.GetInt("embedding-dimensions")
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

func getString(v *viper.Viper, key, def string) string {
	if s := strings.TrimSpace(v.GetString(key)); s != "" {
		return s
	}
	return def
}

// Validate rejects settings the analytics core cannot run with.
func (c *Config) Validate() error {
	var errs []error
	if !store.ValidDriver(c.DBDriver) {
		errs = append(errs, fmt.Errorf("db-driver %q: must be sqlite or postgres", c.DBDriver))
	}
	if !embedding.ValidProvider(c.Embedding.Provider) {
		errs = append(errs, fmt.Errorf("embedding-provider %q: must be hashing, openai, ollama or gemini", c.Embedding.Provider))
	}
	if c.PassThreshold <= 0 || c.PassThreshold > 1 {
		errs = append(errs, fmt.Errorf("pass-threshold %v: must be in (0, 1]", c.PassThreshold))
	}
	if c.CacheCapacity < 1 {
		errs = append(errs, fmt.Errorf("cache-capacity %d: must be at least 1", c.CacheCapacity))
	}
	if c.Embedding.Dimensions < 1 {
		errs = append(errs, fmt.Errorf("embedding-dimensions %d: must be at least 1", c.Embedding.Dimensions))
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}
