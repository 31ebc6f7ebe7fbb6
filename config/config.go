package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application. It is built once at
// startup and handed to every component that needs it.
type Config struct {
	Env string

	Server       ServerConfig
	Database     DatabaseConfig
	JWT          JWTConfig
	Site         SiteConfig
	Verification VerificationConfig
	Redis        RedisConfig
	Email        EmailConfig
	Payment      PaymentConfig
	Video        VideoConfig
	Cloudinary   CloudinaryConfig
	Kafka        KafkaConfig
	Log          LogConfig
}

// ServerConfig holds HTTP listener configuration
type ServerConfig struct {
	Port               string
	WSPort             string
	ReadTimeout        time.Duration
	WriteTimeout       time.Duration
	IdleTimeout        time.Duration
	ShutdownTimeout    time.Duration
	CORSAllowedOrigins []string
}

// DatabaseConfig holds database-related configuration
type DatabaseConfig struct {
	URL             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// JWTConfig holds session token configuration
type JWTConfig struct {
	Secret           string
	AccessTokenTTL   time.Duration
	RefreshTokenTTL  time.Duration
	RefreshThreshold time.Duration
	CookieName       string
	CookieSecure     bool
}

// SiteConfig holds public site settings
type SiteConfig struct {
	BaseURL     string
	Timezone    string
	AnalyticsID string
}

// VerificationConfig holds email verification settings
type VerificationConfig struct {
	TokenTTL       time.Duration
	ResendCooldown time.Duration
}

// RedisConfig holds redis connection settings. An empty Addr disables redis.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// EmailConfig holds SMTP settings
type EmailConfig struct {
	SMTPHost     string
	SMTPPort     int
	SMTPUsername string
	SMTPPassword string
	FromEmail    string
	FromName     string
}

// PaymentConfig holds the payment rail API settings
type PaymentConfig struct {
	APIURL  string
	APIKey  string
	Timeout time.Duration
}

// VideoConfig holds the video-room provider settings
type VideoConfig struct {
	APIURL  string
	APIKey  string
	Domain  string
	Timeout time.Duration
}

// CloudinaryConfig holds Cloudinary configuration
type CloudinaryConfig struct {
	CloudName    string
	APIKey       string
	APISecret    string
	UploadPreset string
}

// KafkaConfig holds the domain event bus settings. No brokers means events
// are only logged.
type KafkaConfig struct {
	Brokers []string
	Topic   string
}

// LogConfig holds logging settings
type LogConfig struct {
	Level string
}

// Load loads configuration from the environment, reading .env first when present.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: Error loading .env file. Using environment variables directly.")
	}

	cfg := &Config{
		Env: getEnv("APP_ENV", "development"),
		Server: ServerConfig{
			Port:               getEnv("SERVER_PORT", "8000"),
			WSPort:             getEnv("WS_PORT", "8001"),
			ReadTimeout:        getDurationEnv("SERVER_READ_TIMEOUT", 10*time.Second),
			WriteTimeout:       getDurationEnv("SERVER_WRITE_TIMEOUT", 15*time.Second),
			IdleTimeout:        getDurationEnv("SERVER_IDLE_TIMEOUT", 120*time.Second),
			ShutdownTimeout:    getDurationEnv("SERVER_SHUTDOWN_TIMEOUT", 10*time.Second),
			CORSAllowedOrigins: getStringSliceEnv("CORS_ALLOWED_ORIGINS", []string{"*"}),
		},
		Database: DatabaseConfig{
			URL:             getEnv("DATABASE_URL", ""),
			MaxOpenConns:    getIntEnv("DB_MAX_OPEN_CONNS", 10),
			MaxIdleConns:    getIntEnv("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: getDurationEnv("DB_CONN_MAX_LIFETIME", time.Hour),
		},
		JWT: JWTConfig{
			Secret:           getEnv("JWT_SECRET", ""),
			AccessTokenTTL:   getDurationEnv("JWT_ACCESS_TTL", 24*time.Hour),
			RefreshTokenTTL:  getDurationEnv("JWT_REFRESH_TTL", 7*24*time.Hour),
			RefreshThreshold: getDurationEnv("SESSION_REFRESH_THRESHOLD", 6*time.Hour),
			CookieName:       getEnv("SESSION_COOKIE_NAME", "session"),
			CookieSecure:     getBoolEnv("SESSION_COOKIE_SECURE", true),
		},
		Site: SiteConfig{
			BaseURL:     strings.TrimRight(getEnv("SITE_URL", "http://localhost:3000"), "/"),
			Timezone:    getEnv("APP_TIMEZONE", "America/Sao_Paulo"),
			AnalyticsID: getEnv("ANALYTICS_ID", ""),
		},
		Verification: VerificationConfig{
			TokenTTL:       getDurationEnv("VERIFICATION_TOKEN_TTL", 24*time.Hour),
			ResendCooldown: getDurationEnv("VERIFICATION_RESEND_COOLDOWN", time.Minute),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", ""),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getIntEnv("REDIS_DB", 0),
		},
		Email: EmailConfig{
			SMTPHost:     getEnv("SMTP_HOST", "smtp.gmail.com"),
			SMTPPort:     getIntEnv("SMTP_PORT", 587),
			SMTPUsername: getEnv("SMTP_USERNAME", ""),
			SMTPPassword: getEnv("SMTP_PASSWORD", ""),
			FromEmail:    getEnv("EMAIL_FROM", ""),
			FromName:     getEnv("EMAIL_FROM_NAME", "Psicanálise Online"),
		},
		Payment: PaymentConfig{
			APIURL:  strings.TrimRight(getEnv("PAYMENT_API_URL", ""), "/"),
			APIKey:  getEnv("PAYMENT_API_KEY", ""),
			Timeout: getDurationEnv("PAYMENT_API_TIMEOUT", 15*time.Second),
		},
		Video: VideoConfig{
			APIURL:  strings.TrimRight(getEnv("VIDEO_API_URL", "https://api.daily.co/v1"), "/"),
			APIKey:  getEnv("VIDEO_API_KEY", ""),
			Domain:  getEnv("VIDEO_DOMAIN", ""),
			Timeout: getDurationEnv("VIDEO_API_TIMEOUT", 10*time.Second),
		},
		Cloudinary: CloudinaryConfig{
			CloudName:    getEnv("CLOUDINARY_CLOUD_NAME", ""),
			APIKey:       getEnv("CLOUDINARY_API_KEY", ""),
			APISecret:    getEnv("CLOUDINARY_API_SECRET", ""),
			UploadPreset: getEnv("CLOUDINARY_UPLOAD_PRESET", ""),
		},
		Kafka: KafkaConfig{
			Brokers: getStringSliceEnv("KAFKA_BROKERS", nil),
			Topic:   getEnv("KAFKA_TOPIC", "psicanalise.events"),
		},
		Log: LogConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks the settings the process cannot start without.
func (c *Config) Validate() error {
	if c.Database.URL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	if c.JWT.Secret == "" {
		if c.IsProduction() {
			return fmt.Errorf("JWT_SECRET is required")
		}
		c.JWT.Secret = "dev_secret_key"
	}
	if _, err := time.LoadLocation(c.Site.Timezone); err != nil {
		return fmt.Errorf("invalid APP_TIMEZONE %q: %w", c.Site.Timezone, err)
	}
	if c.JWT.RefreshThreshold >= c.JWT.AccessTokenTTL {
		return fmt.Errorf("SESSION_REFRESH_THRESHOLD must be shorter than JWT_ACCESS_TTL")
	}
	return nil
}

// IsProduction reports whether APP_ENV is production.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// Location returns the time zone slots are generated in.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Site.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// IsEmailConfigured checks if SMTP credentials are present
func (c *Config) IsEmailConfigured() bool {
	return c.Email.SMTPUsername != "" && c.Email.SMTPPassword != "" && c.Email.FromEmail != ""
}

// IsCloudinaryConfigured checks if Cloudinary credentials are present
func (c *Config) IsCloudinaryConfigured() bool {
	return c.Cloudinary.CloudName != "" && c.Cloudinary.APIKey != "" && c.Cloudinary.APISecret != ""
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func getStringSliceEnv(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parts := []string{}
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			parts = append(parts, part)
		}
	}
	if len(parts) == 0 {
		return defaultValue
	}
	return parts
}
