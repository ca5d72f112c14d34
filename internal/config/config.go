package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ArowuTest/jraffle-backend/internal/models"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all configuration for the application
type Config struct {
	Environment string
	LogLevel    string
	Server      ServerConfig
	MongoDB     MongoDBConfig
	JWT         JWTConfig
	Admin       AdminConfig
	ImgBB       ImgBBConfig
	Email       EmailConfig
	WhatsApp    WhatsAppConfig
	Telegram    TelegramConfig
	NATS        NATSConfig
	Raffles     RafflesConfig
	Purchases   PurchasesConfig
	Draw        DrawConfig
}

// ServerConfig holds server-specific configuration
type ServerConfig struct {
	Port           string
	AllowedOrigins []string
	Mode           string
}

// MongoDBConfig holds MongoDB-specific configuration
type MongoDBConfig struct {
	URI      string
	Database string
	Timeout  time.Duration
}

// JWTConfig holds JWT-specific configuration
type JWTConfig struct {
	Secret    string
	ExpiresIn time.Duration
}

// AdminConfig holds the bootstrap admin account
type AdminConfig struct {
	Username string
	Password string
}

// ImgBBConfig holds image host configuration
type ImgBBConfig struct {
	BaseURL string
	APIKey  string
	MockAPI bool
	Timeout time.Duration
}

// EmailConfig holds transactional email configuration
type EmailConfig struct {
	APIKey        string
	From          string
	TestRecipient string
	Timeout       time.Duration
	Mock          bool
}

// WhatsAppConfig holds the post-purchase messaging handoff settings
type WhatsAppConfig struct {
	Number       string
	HandoffDelay time.Duration
}

// TelegramConfig holds admin alert bot configuration
type TelegramConfig struct {
	Enabled     bool
	Token       string
	AdminChatID int64
}

// NATSConfig holds domain event publishing configuration. An empty URL disables publishing.
type NATSConfig struct {
	URL           string
	SubjectPrefix string
}

// RafflesConfig holds raffle catalogue limits
type RafflesConfig struct {
	MaxTotalTickets int
}

// PurchasesConfig holds checkout behaviour
type PurchasesConfig struct {
	RequireApproval       bool
	MaxTicketsPerPurchase int
	WriteRetries          int
}

// DrawConfig holds live drawing settings
type DrawConfig struct {
	SpinDuration time.Duration
}

// Options controls where configuration is read from
type Options struct {
	ConfigFile string
	EnvFile    string
}

// Load loads configuration from the env file, the config file and environment variables
func Load(opts Options) (*Config, error) {
	envFile := opts.EnvFile
	if envFile == "" {
		envFile = ".env"
	}
	if err := godotenv.Load(envFile); err != nil && opts.EnvFile != "" {
		return nil, fmt.Errorf("load env file %s: %w", envFile, err)
	}

	v := viper.New()
	if opts.ConfigFile != "" {
		v.SetConfigFile(opts.ConfigFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		// It's okay if config file is not found, we'll use environment variables
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) || opts.ConfigFile != "" {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks settings that have no usable default
func (c *Config) Validate() error {
	if c.MongoDB.URI == "" {
		return errors.New("MONGODB_URI is required")
	}
	if c.JWT.Secret == "" {
		return errors.New("JWT_SECRET is required")
	}
	if c.Purchases.WriteRetries < 1 {
		return fmt.Errorf("Purchases.WriteRetries must be at least 1, got %d", c.Purchases.WriteRetries)
	}
	if c.Raffles.MaxTotalTickets < 1 || c.Raffles.MaxTotalTickets > models.MaxTotalTickets {
		return fmt.Errorf("Raffles.MaxTotalTickets must be within 1-%d, got %d", models.MaxTotalTickets, c.Raffles.MaxTotalTickets)
	}
	if c.IsProduction() && c.Admin.Password == "" {
		return errors.New("ADMIN_PASSWORD is required in production")
	}
	if c.IsProduction() && !c.ImgBB.MockAPI && c.ImgBB.APIKey == "" {
		return errors.New("IMGBB_APIKEY is required in production")
	}
	if c.Telegram.Enabled && c.Telegram.Token == "" {
		return errors.New("TELEGRAM_TOKEN is required when Telegram alerts are enabled")
	}
	return nil
}

// setDefaults sets default values for configuration
func setDefaults(v *viper.Viper) {
	v.SetDefault("Environment", EnvDevelopment)
	v.SetDefault("LogLevel", "info")
	v.SetDefault("Server.Port", "4000")
	v.SetDefault("Server.AllowedOrigins", []string{"http://localhost:5173"})
	v.SetDefault("Server.Mode", "release")
	v.SetDefault("MongoDB.URI", "mongodb://localhost:27017")
	v.SetDefault("MongoDB.Database", "jraffle")
	v.SetDefault("MongoDB.Timeout", 10*time.Second)
	v.SetDefault("JWT.Secret", "")
	v.SetDefault("JWT.ExpiresIn", 24*time.Hour)
	v.SetDefault("Admin.Username", "admin")
	v.SetDefault("Admin.Password", "")
	v.SetDefault("ImgBB.BaseURL", "https://api.imgbb.com/1/upload")
	v.SetDefault("ImgBB.APIKey", "")
	v.SetDefault("ImgBB.MockAPI", false)
	v.SetDefault("ImgBB.Timeout", 30*time.Second)
	v.SetDefault("Email.APIKey", "")
	v.SetDefault("Email.From", "JRaffle Company <onboarding@resend.dev>")
	v.SetDefault("Email.TestRecipient", "")
	v.SetDefault("Email.Timeout", 10*time.Second)
	v.SetDefault("Email.Mock", false)
	v.SetDefault("WhatsApp.Number", "")
	v.SetDefault("WhatsApp.HandoffDelay", 5*time.Second)
	v.SetDefault("Telegram.Enabled", false)
	v.SetDefault("Telegram.Token", "")
	v.SetDefault("Telegram.AdminChatID", 0)
	v.SetDefault("NATS.URL", "")
	v.SetDefault("NATS.SubjectPrefix", "jraffle")
	v.SetDefault("Raffles.MaxTotalTickets", models.MaxTotalTickets)
	v.SetDefault("Purchases.RequireApproval", false)
	v.SetDefault("Purchases.MaxTicketsPerPurchase", 100)
	v.SetDefault("Purchases.WriteRetries", 5)
	v.SetDefault("Draw.SpinDuration", 5*time.Second)
}
