package config

import (
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
)

func TestDefaultsApplyWithoutEnvironment(t *testing.T) {
	v := viper.New()
	setDefaults(v)

	cfg := fromViper(v)

	assert.Equal(t, DefaultDatabaseURL, cfg.Database.URL)
	assert.Empty(t, cfg.Database.User)
	assert.Empty(t, cfg.Database.Password)
	assert.True(t, cfg.Session.UsesDefaultSecret())
	assert.Equal(t, 5*time.Second, cfg.Database.ConnectTimeout)
	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Empty(t, cfg.Redis.Addr)
	assert.Equal(t, 12*time.Hour, cfg.Session.TTL)
	assert.Equal(t, 5, cfg.RateLimit.LoginAttempts)
}

func TestEnvironmentOverridesDefaults(t *testing.T) {
	t.Setenv("DB_URL", "postgres://db.internal:5433/shop")
	t.Setenv("DB_USER", "cashdesk")
	t.Setenv("LOGIN_RATE_WINDOW", "30s")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://caja.example.mx, ,https://admin.example.mx")

	v := viper.New()
	v.AutomaticEnv()
	setDefaults(v)

	cfg := fromViper(v)

	assert.Equal(t, "postgres://db.internal:5433/shop", cfg.Database.URL)
	assert.Equal(t, "cashdesk", cfg.Database.User)
	assert.Equal(t, 30*time.Second, cfg.RateLimit.LoginWindow)
	assert.Equal(t, []string{"https://caja.example.mx", "https://admin.example.mx"}, cfg.Server.AllowedOrigins)
}

func TestCredentialsInURLAreNotOverridden(t *testing.T) {
	v := viper.New()
	setDefaults(v)
	v.Set("DB_URL", "postgres://app:secret@db:5432/pos")

	cfg := fromViper(v)

	assert.Equal(t, "postgres://app:secret@db:5432/pos", cfg.Database.URL)
	assert.Empty(t, cfg.Database.User, "a default user would replace the one in DB_URL")
	assert.Empty(t, cfg.Database.Password, "a default password would replace the one in DB_URL")
}

func TestSessionSecret(t *testing.T) {
	assert.True(t, SessionConfig{Secret: DefaultSessionSecret}.UsesDefaultSecret())
	assert.False(t, SessionConfig{Secret: "s3cr3t-from-vault"}.UsesDefaultSecret())

	t.Setenv("SESSION_SECRET", "s3cr3t-from-vault")
	v := viper.New()
	v.AutomaticEnv()
	setDefaults(v)
	assert.False(t, fromViper(v).Session.UsesDefaultSecret())
}

func TestInsecureSessionSecret(t *testing.T) {
	tests := []struct {
		name   string
		env    string
		secret string
		want   bool
	}{
		{"default key in production", "production", DefaultSessionSecret, true},
		{"default key in development", "development", DefaultSessionSecret, false},
		{"configured key in production", "production", "s3cr3t-from-vault", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{
				Server:  ServerConfig{Env: tt.env},
				Session: SessionConfig{Secret: tt.secret},
			}
			assert.Equal(t, tt.want, cfg.InsecureSessionSecret())
		})
	}
}

func TestStoreLocation(t *testing.T) {
	assert.Equal(t, time.Local, StoreConfig{}.Location())
	assert.Equal(t, time.Local, StoreConfig{Timezone: "Not/AZone"}.Location())

	loc := StoreConfig{Timezone: "America/Mexico_City"}.Location()
	assert.Equal(t, "America/Mexico_City", loc.String())
}
