package config

import (
	"log"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	Session   SessionConfig
	Store     StoreConfig
	Log       LogConfig
	RateLimit RateLimitConfig
}

type ServerConfig struct {
	Host           string
	Port           string
	Env            string
	AllowedOrigins []string
}

func (s ServerConfig) IsDevelopment() bool { return s.Env == "development" }

// DatabaseConfig describes the single back-office connection.
// URL carries host, port, database and options; User and Password override
// any credentials embedded in it. Both are empty by default so the URL's own
// credentials survive.
type DatabaseConfig struct {
	URL            string
	User           string
	Password       string
	ConnectTimeout time.Duration
}

// RedisConfig is optional. An empty Addr disables the shared login limiter.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type SessionConfig struct {
	Secret string
	TTL    time.Duration
}

// UsesDefaultSecret reports whether tokens would be signed with the
// well-known fallback key.
func (s SessionConfig) UsesDefaultSecret() bool { return s.Secret == DefaultSessionSecret }

type StoreConfig struct {
	Name       string
	Timezone   string
	ReceiptDir string
}

// Location resolves the store timezone, falling back to the process local zone.
func (s StoreConfig) Location() *time.Location {
	if s.Timezone == "" || s.Timezone == "Local" {
		return time.Local
	}
	loc, err := time.LoadLocation(s.Timezone)
	if err != nil {
		log.Printf("Warning: unknown STORE_TIMEZONE %q, using local time: %v", s.Timezone, err)
		return time.Local
	}
	return loc
}

type LogConfig struct {
	File       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

type RateLimitConfig struct {
	LoginAttempts int
	LoginWindow   time.Duration
}

// Defaults used when neither the environment nor .env provide a value.
const (
	DefaultDatabaseURL      = "postgres://localhost:5432/pos_backoffice?sslmode=disable"
	DefaultDatabaseUser     = "postgres"
	DefaultDatabasePassword = "postgres"
	DefaultSessionSecret    = "change-me-in-production"
)

// InsecureSessionSecret is true outside development when no SESSION_SECRET
// was provided.
func (c *Config) InsecureSessionSecret() bool {
	return c.Session.UsesDefaultSecret() && !c.Server.IsDevelopment()
}

func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Printf("Warning: Could not read .env file: %v", err)
	}

	v := viper.New()
	v.AutomaticEnv()
	setDefaults(v)

	return fromViper(v)
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("SERVER_HOST", "")
	v.SetDefault("SERVER_PORT", "8080")
	v.SetDefault("SERVER_ENV", "development")
	v.SetDefault("CORS_ALLOWED_ORIGINS", "")
	v.SetDefault("DB_URL", DefaultDatabaseURL)
	v.SetDefault("DB_USER", "")
	v.SetDefault("DB_PASSWORD", "")
	v.SetDefault("DB_CONNECT_TIMEOUT", "5s")
	v.SetDefault("REDIS_ADDR", "")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("SESSION_SECRET", DefaultSessionSecret)
	v.SetDefault("SESSION_TTL", "12h")
	v.SetDefault("STORE_NAME", "POS Back Office")
	v.SetDefault("STORE_TIMEZONE", "Local")
	v.SetDefault("RECEIPT_DIR", "receipts")
	v.SetDefault("LOG_MAX_SIZE_MB", 50)
	v.SetDefault("LOG_MAX_BACKUPS", 5)
	v.SetDefault("LOG_MAX_AGE_DAYS", 30)
	v.SetDefault("LOGIN_RATE_ATTEMPTS", 5)
	v.SetDefault("LOGIN_RATE_WINDOW", "1m")
}

func fromViper(v *viper.Viper) *Config {
	return &Config{
		Server: ServerConfig{
			Host:           v.GetString("SERVER_HOST"),
			Port:           v.GetString("SERVER_PORT"),
			Env:            v.GetString("SERVER_ENV"),
			AllowedOrigins: splitList(v.GetString("CORS_ALLOWED_ORIGINS")),
		},
		Database: DatabaseConfig{
			URL:            v.GetString("DB_URL"),
			User:           v.GetString("DB_USER"),
			Password:       v.GetString("DB_PASSWORD"),
			ConnectTimeout: v.GetDuration("DB_CONNECT_TIMEOUT"),
		},
		Redis: RedisConfig{
			Addr:     v.GetString("REDIS_ADDR"),
			Password: v.GetString("REDIS_PASSWORD"),
			DB:       v.GetInt("REDIS_DB"),
		},
		Session: SessionConfig{
			Secret: v.GetString("SESSION_SECRET"),
			TTL:    v.GetDuration("SESSION_TTL"),
		},
		Store: StoreConfig{
			Name:       v.GetString("STORE_NAME"),
			Timezone:   v.GetString("STORE_TIMEZONE"),
			ReceiptDir: v.GetString("RECEIPT_DIR"),
		},
		Log: LogConfig{
			File:       v.GetString("LOG_FILE"),
			MaxSizeMB:  v.GetInt("LOG_MAX_SIZE_MB"),
			MaxBackups: v.GetInt("LOG_MAX_BACKUPS"),
			MaxAgeDays: v.GetInt("LOG_MAX_AGE_DAYS"),
		},
		RateLimit: RateLimitConfig{
			LoginAttempts: v.GetInt("LOGIN_RATE_ATTEMPTS"),
			LoginWindow:   v.GetDuration("LOGIN_RATE_WINDOW"),
		},
	}
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
