package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ArowuTest/jraffle-backend/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/exp/slog"
)

func TestLoad_DefaultsAndEnvironment(t *testing.T) {
	t.Setenv("JWT_SECRET", "env-secret")
	t.Setenv("PURCHASES_REQUIREAPPROVAL", "true")
	t.Setenv("SERVER_ALLOWEDORIGINS", "https://jraffle.example,https://admin.jraffle.example")
	t.Setenv("DRAW_SPINDURATION", "3s")

	cfg, err := Load(Options{})
	require.NoError(t, err)

	assert.Equal(t, "env-secret", cfg.JWT.Secret)
	assert.True(t, cfg.Purchases.RequireApproval)
	assert.Equal(t, []string{"https://jraffle.example", "https://admin.jraffle.example"}, cfg.Server.AllowedOrigins)
	assert.Equal(t, 3*time.Second, cfg.Draw.SpinDuration)

	assert.Equal(t, EnvDevelopment, cfg.Environment)
	assert.Equal(t, "4000", cfg.Server.Port)
	assert.Equal(t, "mongodb://localhost:27017", cfg.MongoDB.URI)
	assert.Equal(t, "jraffle", cfg.MongoDB.Database)
	assert.Equal(t, 24*time.Hour, cfg.JWT.ExpiresIn)
	assert.Equal(t, "JRaffle Company <onboarding@resend.dev>", cfg.Email.From)
	assert.Equal(t, 100, cfg.Purchases.MaxTicketsPerPurchase)
	assert.Equal(t, 5, cfg.Purchases.WriteRetries)
	assert.Equal(t, models.MaxTotalTickets, cfg.Raffles.MaxTotalTickets)
	assert.Equal(t, 5*time.Second, cfg.WhatsApp.HandoffDelay)
}

func TestLoad_ConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
environment: production
mongodb:
  uri: mongodb://db.internal:27017
  database: raffles
jwt:
  secret: file-secret
admin:
  password: s3cret-admin
raffles:
  maxtotaltickets: 5000
imgbb:
  apikey: imgbb-key
email:
  testrecipient: qa@example.com
telegram:
  enabled: true
  token: bot-token
  adminchatid: 12345
`), 0o600))

	cfg, err := Load(Options{ConfigFile: path})
	require.NoError(t, err)
	assert.True(t, cfg.IsProduction())
	assert.Equal(t, "mongodb://db.internal:27017", cfg.MongoDB.URI)
	assert.Equal(t, "raffles", cfg.MongoDB.Database)
	assert.Equal(t, "file-secret", cfg.JWT.Secret)
	assert.Equal(t, 5000, cfg.Raffles.MaxTotalTickets)
	assert.Equal(t, int64(12345), cfg.Telegram.AdminChatID)
	assert.Equal(t, "qa@example.com", cfg.Email.TestRecipient)
	// production never diverts mail
	assert.Empty(t, cfg.TestRecipient())
}

func TestLoad_EnvFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.env")
	require.NoError(t, os.WriteFile(path, []byte("JWT_SECRET=dotenv-secret\n"), 0o600))
	t.Cleanup(func() { os.Unsetenv("JWT_SECRET") })

	cfg, err := Load(Options{EnvFile: path})
	require.NoError(t, err)
	assert.Equal(t, "dotenv-secret", cfg.JWT.Secret)
}

func TestLoad_MissingExplicitFiles(t *testing.T) {
	t.Setenv("JWT_SECRET", "env-secret")
	dir := t.TempDir()

	_, err := Load(Options{ConfigFile: filepath.Join(dir, "nope.yaml")})
	assert.Error(t, err)

	_, err = Load(Options{EnvFile: filepath.Join(dir, "nope.env")})
	assert.Error(t, err)
}

func TestLoad_RequiresSecret(t *testing.T) {
	t.Setenv("JWT_SECRET", "")
	_, err := Load(Options{})
	assert.ErrorContains(t, err, "JWT_SECRET")
}

func TestValidate(t *testing.T) {
	t.Parallel()

	valid := func() Config {
		return Config{
			Environment: EnvDevelopment,
			MongoDB:     MongoDBConfig{URI: "mongodb://localhost:27017"},
			JWT:         JWTConfig{Secret: "s"},
			Raffles:     RafflesConfig{MaxTotalTickets: 1000},
			Purchases:   PurchasesConfig{WriteRetries: 5},
		}
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"valid", func(*Config) {}, false},
		{"missing mongo uri", func(c *Config) { c.MongoDB.URI = "" }, true},
		{"missing secret", func(c *Config) { c.JWT.Secret = "" }, true},
		{"zero retries", func(c *Config) { c.Purchases.WriteRetries = 0 }, true},
		{"zero ticket ceiling", func(c *Config) { c.Raffles.MaxTotalTickets = 0 }, true},
		{"ticket ceiling above hard limit", func(c *Config) { c.Raffles.MaxTotalTickets = models.MaxTotalTickets + 1 }, true},
		{"production without imgbb key", func(c *Config) {
			c.Environment = EnvProduction
			c.Admin.Password = "pw"
		}, true},
		{"production without admin password", func(c *Config) {
			c.Environment = EnvProduction
			c.ImgBB.MockAPI = true
		}, true},
		{"production with mocked imgbb", func(c *Config) {
			c.Environment = EnvProduction
			c.ImgBB.MockAPI = true
			c.Admin.Password = "pw"
		}, false},
		{"telegram without token", func(c *Config) { c.Telegram.Enabled = true }, true},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := valid()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestEnvironmentHelpers(t *testing.T) {
	t.Parallel()

	cfg := &Config{Environment: "Production", Email: EmailConfig{TestRecipient: "qa@example.com"}}
	assert.True(t, cfg.IsProduction())
	assert.Empty(t, cfg.TestRecipient())

	cfg.Environment = EnvStaging
	assert.False(t, cfg.IsProduction())
	assert.Equal(t, "qa@example.com", cfg.TestRecipient())

	for level, want := range map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"WARN":    slog.LevelWarn,
		"error":   slog.LevelError,
		"info":    slog.LevelInfo,
		"verbose": slog.LevelInfo,
	} {
		cfg.LogLevel = level
		assert.Equal(t, want, cfg.SlogLevel(), level)
	}
}
