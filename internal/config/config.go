package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all configuration for the maintenance manager server.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Media    MediaConfig
	Email    EmailConfig
}

type ServerConfig struct {
	Port int
	Env  string
	// BaseURL is the externally reachable URL of this server, used to build
	// the job-detail links embedded in notification emails.
	BaseURL           string
	RequestsPerMinute int
}

type DatabaseConfig struct {
	URL             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

type RedisConfig struct {
	URL string
}

type MediaConfig struct {
	Dir            string
	MaxUploadBytes int64
}

type EmailConfig struct {
	From     string
	SMTPHost string
	SMTPPort int
	Username string
	Password string
	// SkipSend routes outgoing mail to the log instead of SMTP. Used in
	// development and in tests.
	SkipSend bool
}

// Load reads configuration from environment variables and returns a validated
// Config. Returns an error with a descriptive message if any required value is
// missing or invalid.
func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Port:              envInt("MMM_PORT", 8080),
			Env:               envString("MMM_ENV", "development"),
			BaseURL:           envString("MMM_BASE_URL", "http://localhost:8080"),
			RequestsPerMinute: envInt("MMM_REQUESTS_PER_MINUTE", 60),
		},
		Database: DatabaseConfig{
			URL:             os.Getenv("DATABASE_URL"),
			MaxOpenConns:    envInt("DATABASE_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    envInt("DATABASE_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: envDuration("DATABASE_CONN_MAX_LIFETIME", 5*time.Minute),
		},
		Redis: RedisConfig{
			URL: os.Getenv("REDIS_URL"),
		},
		Media: MediaConfig{
			Dir:            envString("MEDIA_DIR", "media"),
			MaxUploadBytes: envInt64("MEDIA_MAX_UPLOAD_BYTES", 10<<20),
		},
		Email: EmailConfig{
			From:     envString("EMAIL_FROM", "noreply@mmm.ar-ciel.org"),
			SMTPHost: os.Getenv("SMTP_HOST"),
			SMTPPort: envInt("SMTP_PORT", 587),
			Username: os.Getenv("SMTP_USERNAME"),
			Password: os.Getenv("SMTP_PASSWORD"),
			SkipSend: envBool("SKIP_EMAIL_SEND", false),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if c.Database.URL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}

	if c.Redis.URL == "" {
		return fmt.Errorf("REDIS_URL is required")
	}

	if !strings.HasPrefix(c.Server.BaseURL, "http://") && !strings.HasPrefix(c.Server.BaseURL, "https://") {
		return fmt.Errorf("MMM_BASE_URL must start with http:// or https://, got %q", c.Server.BaseURL)
	}

	if c.Email.From == "" {
		return fmt.Errorf("EMAIL_FROM is required")
	}

	if !c.Email.SkipSend && c.Email.SMTPHost == "" {
		return fmt.Errorf("SMTP_HOST is required unless SKIP_EMAIL_SEND is true")
	}

	if c.Media.MaxUploadBytes <= 0 {
		return fmt.Errorf("MEDIA_MAX_UPLOAD_BYTES must be positive, got %d", c.Media.MaxUploadBytes)
	}

	return nil
}

func envString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func envInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

func envInt64(key string, defaultVal int64) int64 {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return defaultVal
	}
	return i
}

func envBool(key string, defaultVal bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return defaultVal
	}
	return b
}

func envDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}
