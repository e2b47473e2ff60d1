// config.go

// Configuration loading and validation.
//
// Sources, lowest to highest precedence: built-in defaults, an optional .env
// file in the working directory, an optional CONFIG_FILE (yaml, json or toml),
// then process environment variables.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the bikeville server.
type Config struct {
	DatabaseURL string
	RedisURL    string
	Port        string
	LogLevel    slog.Level

	// Token signing. Secret must be at least 32 bytes.
	JWTSecret      string
	JWTIssuer      string
	JWTAudience    string
	TokenLifetime  time.Duration // defaults to 60m
	TokenClockSkew time.Duration // defaults to 0, expiry is exact

	// PasswordHashAlgorithm applies to new credentials only.
	PasswordHashAlgorithm string

	ErrorLogTimezone string
	CartTimezone     string

	// Bootstrap admin. Both empty disables it.
	AdminEmail    string
	AdminPassword string

	PhoneDefaultRegion string
	CORSAllowedOrigins []string
}

// minSecretLen is the shortest accepted JWT_SECRET, in bytes.
const minSecretLen = 32

// raw mirrors Config with string durations so bad values can fall back to defaults.
type raw struct {
	DatabaseURL           string `mapstructure:"DATABASE_URL"`
	RedisURL              string `mapstructure:"REDIS_URL"`
	Port                  string `mapstructure:"PORT"`
	LogLevel              string `mapstructure:"LOG_LEVEL"`
	JWTSecret             string `mapstructure:"JWT_SECRET"`
	JWTIssuer             string `mapstructure:"JWT_ISSUER"`
	JWTAudience           string `mapstructure:"JWT_AUDIENCE"`
	TokenLifetime         string `mapstructure:"TOKEN_LIFETIME"`
	TokenClockSkew        string `mapstructure:"TOKEN_CLOCK_SKEW"`
	PasswordHashAlgorithm string `mapstructure:"PASSWORD_HASH_ALGORITHM"`
	ErrorLogTimezone      string `mapstructure:"ERROR_LOG_TIMEZONE"`
	CartTimezone          string `mapstructure:"CART_TIMEZONE"`
	AdminEmail            string `mapstructure:"ADMIN_EMAIL"`
	AdminPassword         string `mapstructure:"ADMIN_PASSWORD"`
	PhoneDefaultRegion    string `mapstructure:"PHONE_DEFAULT_REGION"`
	CORSAllowedOrigins    string `mapstructure:"CORS_ALLOWED_ORIGINS"`
}

var defaults = map[string]any{
	"DATABASE_URL":            "",
	"REDIS_URL":               "",
	"PORT":                    "7865",
	"LOG_LEVEL":               "info",
	"JWT_SECRET":              "",
	"JWT_ISSUER":              "bikeville",
	"JWT_AUDIENCE":            "bikeville-web",
	"TOKEN_LIFETIME":          "60m",
	"TOKEN_CLOCK_SKEW":        "0s",
	"PASSWORD_HASH_ALGORITHM": "hmac-sha256",
	"ERROR_LOG_TIMEZONE":      "Europe/Rome",
	"CART_TIMEZONE":           "Europe/Rome",
	"ADMIN_EMAIL":             "",
	"ADMIN_PASSWORD":          "",
	"PHONE_DEFAULT_REGION":    "IT",
	"CORS_ALLOWED_ORIGINS":    "*",
}

// LoadConfig reads all sources and returns a validated Config.
// Returns an error if DATABASE_URL, REDIS_URL or JWT_SECRET is missing or invalid.
func LoadConfig() (*Config, error) {
	v := viper.New()
	for k, d := range defaults {
		v.SetDefault(k, d)
	}

	// .env is optional; a missing file is not an error.
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	if err := v.ReadInConfig(); err != nil && !missing(err) {
		return nil, fmt.Errorf("reading .env: %w", err)
	}

	// CONFIG_FILE must exist when named. Type comes from its extension.
	if path := os.Getenv("CONFIG_FILE"); path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("")
		if err := v.MergeInConfig(); err != nil {
			return nil, fmt.Errorf("reading CONFIG_FILE %s: %w", path, err)
		}
	}

	v.AutomaticEnv()

	var r raw
	if err := v.Unmarshal(&r); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}

	if r.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	if r.RedisURL == "" {
		return nil, fmt.Errorf("REDIS_URL is required")
	}
	if len(r.JWTSecret) < minSecretLen {
		return nil, fmt.Errorf("JWT_SECRET must be at least %d bytes", minSecretLen)
	}
	if (r.AdminEmail == "") != (r.AdminPassword == "") {
		return nil, fmt.Errorf("ADMIN_EMAIL and ADMIN_PASSWORD must be set together")
	}

	cfg := &Config{
		DatabaseURL:           r.DatabaseURL,
		RedisURL:              r.RedisURL,
		Port:                  r.Port,
		LogLevel:              parseLevel(r.LogLevel),
		JWTSecret:             r.JWTSecret,
		JWTIssuer:             r.JWTIssuer,
		JWTAudience:           r.JWTAudience,
		TokenLifetime:         duration("TOKEN_LIFETIME", r.TokenLifetime, 60*time.Minute, false),
		TokenClockSkew:        duration("TOKEN_CLOCK_SKEW", r.TokenClockSkew, 0, true),
		PasswordHashAlgorithm: strings.ToLower(r.PasswordHashAlgorithm),
		ErrorLogTimezone:      r.ErrorLogTimezone,
		CartTimezone:          r.CartTimezone,
		AdminEmail:            r.AdminEmail,
		AdminPassword:         r.AdminPassword,
		PhoneDefaultRegion:    strings.ToUpper(r.PhoneDefaultRegion),
		CORSAllowedOrigins:    splitList(r.CORSAllowedOrigins),
	}
	if cfg.Port == "" {
		cfg.Port = "7865"
	}
	return cfg, nil
}

func missing(err error) bool {
	var nf viper.ConfigFileNotFoundError
	return errors.Is(err, fs.ErrNotExist) || errors.As(err, &nf)
}

// parseLevel maps LOG_LEVEL to a slog level, default info.
func parseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// duration parses v, returning def if empty or unparseable.
// Zero is accepted only when allowZero is set.
func duration(key, v string, def time.Duration, allowZero bool) time.Duration {
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil || d < 0 || (d == 0 && !allowZero) {
		slog.Warn("invalid config value, using default", "key", key, "value", v, "default", def)
		return def
	}
	return d
}

// splitList splits a comma separated value, dropping blanks.
func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
