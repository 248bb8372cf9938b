// Package config loads the service configuration from the environment, an
// optional .env file and an optional YAML file.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
)

type Config struct {
	Env        string           `yaml:"env" env:"APP_ENV" env-default:"development"`
	HTTP       HTTPConfig       `yaml:"http"`
	Database   DatabaseConfig   `yaml:"database"`
	JWT        JWTConfig        `yaml:"jwt"`
	App        AppConfig        `yaml:"app"`
	Storage    StorageConfig    `yaml:"storage"`
	Email      EmailConfig      `yaml:"email"`
	PDF        PDFConfig        `yaml:"pdf"`
	Completion CompletionConfig `yaml:"completion"`
	Redis      RedisConfig      `yaml:"redis"`
	Jobs       JobsConfig       `yaml:"jobs"`
	Admin      AdminConfig      `yaml:"admin"`
	Log        LogConfig        `yaml:"log"`
}

type HTTPConfig struct {
	Host         string        `yaml:"host" env:"HTTP_HOST" env-default:"0.0.0.0"`
	Port         string        `yaml:"port" env:"HTTP_PORT" env-default:"8080"`
	ReadTimeout  time.Duration `yaml:"read_timeout" env:"HTTP_READ_TIMEOUT" env-default:"15s"`
	WriteTimeout time.Duration `yaml:"write_timeout" env:"HTTP_WRITE_TIMEOUT" env-default:"60s"`
	IdleTimeout  time.Duration `yaml:"idle_timeout" env:"HTTP_IDLE_TIMEOUT" env-default:"60s"`
	BodyLimitMB  int           `yaml:"body_limit_mb" env:"HTTP_BODY_LIMIT_MB" env-default:"10"`
	CORSOrigins  string        `yaml:"cors_origins" env:"HTTP_CORS_ORIGINS" env-default:"*"`
}

func (h HTTPConfig) Addr() string {
	return net.JoinHostPort(h.Host, h.Port)
}

type DatabaseConfig struct {
	URL             string        `yaml:"url" env:"DATABASE_URL" env-required:"true"`
	MaxOpenConns    int           `yaml:"max_open_conns" env:"DATABASE_MAX_OPEN_CONNS" env-default:"20"`
	MaxIdleConns    int           `yaml:"max_idle_conns" env:"DATABASE_MAX_IDLE_CONNS" env-default:"5"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime" env:"DATABASE_CONN_MAX_LIFETIME" env-default:"30m"`
}

type JWTConfig struct {
	Secret   string        `yaml:"secret" env:"JWT_SECRET" env-required:"true"`
	Issuer   string        `yaml:"issuer" env:"JWT_ISSUER" env-default:"certificate-management"`
	Audience string        `yaml:"audience" env:"JWT_AUDIENCE" env-default:"certificate-management-clients"`
	TTL      time.Duration `yaml:"ttl" env:"JWT_TTL" env-default:"60m"`
}

type AppConfig struct {
	// BaseURL prefixes the public certificate link sent to students.
	BaseURL string `yaml:"base_url" env:"APP_BASE_URL" env-default:"http://localhost:8080"`
	Name    string `yaml:"name" env:"APP_NAME" env-default:"Certificate Management"`
}

type StorageConfig struct {
	Driver        string        `yaml:"driver" env:"STORAGE_DRIVER" env-default:"memory"`
	CloudinaryURL string        `yaml:"cloudinary_url" env:"CLOUDINARY_URL"`
	S3            S3Config      `yaml:"s3"`
	Timeout       time.Duration `yaml:"timeout" env:"STORAGE_TIMEOUT" env-default:"20s"`
}

type S3Config struct {
	Endpoint  string `yaml:"endpoint" env:"S3_ENDPOINT"`
	Region    string `yaml:"region" env:"S3_REGION" env-default:"us-east-1"`
	Bucket    string `yaml:"bucket" env:"S3_BUCKET" env-default:"certificates"`
	AccessKey string `yaml:"access_key" env:"S3_ACCESS_KEY"`
	SecretKey string `yaml:"secret_key" env:"S3_SECRET_KEY"`
}

type EmailConfig struct {
	Driver       string        `yaml:"driver" env:"EMAIL_DRIVER" env-default:"log"`
	SMTPHost     string        `yaml:"smtp_host" env:"SMTP_HOST"`
	SMTPPort     int           `yaml:"smtp_port" env:"SMTP_PORT" env-default:"587"`
	SMTPUsername string        `yaml:"smtp_username" env:"SMTP_USERNAME"`
	SMTPPassword string        `yaml:"smtp_password" env:"SMTP_PASSWORD"`
	BrevoAPIKey  string        `yaml:"brevo_api_key" env:"BREVO_API_KEY"`
	SenderEmail  string        `yaml:"sender_email" env:"EMAIL_SENDER" env-default:"no-reply@localhost"`
	SenderName   string        `yaml:"sender_name" env:"EMAIL_SENDER_NAME" env-default:"Certificate Management"`
	Timeout      time.Duration `yaml:"timeout" env:"EMAIL_TIMEOUT" env-default:"15s"`
}

type PDFConfig struct {
	ChromePath string        `yaml:"chrome_path" env:"PDF_CHROME_PATH"`
	Timeout    time.Duration `yaml:"timeout" env:"PDF_TIMEOUT" env-default:"30s"`
}

type CompletionConfig struct {
	Workers int `yaml:"workers" env:"COMPLETION_WORKERS" env-default:"4"`
}

type RedisConfig struct {
	URL             string        `yaml:"url" env:"REDIS_URL"`
	VerificationTTL time.Duration `yaml:"verification_ttl" env:"REDIS_VERIFICATION_TTL" env-default:"10m"`
}

type JobsConfig struct {
	Enabled             bool   `yaml:"enabled" env:"JOBS_ENABLED" env-default:"true"`
	PendingCertificates string `yaml:"pending_certificates" env:"JOBS_PENDING_CERTIFICATES" env-default:"*/15 * * * *"`
}

type AdminConfig struct {
	Username string `yaml:"username" env:"ADMIN_USERNAME" env-default:"admin"`
	Email    string `yaml:"email" env:"ADMIN_EMAIL"`
	Password string `yaml:"password" env:"ADMIN_PASSWORD"`
}

type LogConfig struct {
	Level string `yaml:"level" env:"LOG_LEVEL" env-default:"info"`
}

func (l LogConfig) SlogLevel() slog.Level {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(l.Level)); err != nil {
		return slog.LevelInfo
	}
	return lvl
}

var (
	storageDrivers = map[string]bool{"memory": true, "cloudinary": true, "s3": true, "minio": true}
	emailDrivers   = map[string]bool{"log": true, "smtp": true, "brevo": true}
)

const minSecretLength = 32

// Load reads configuration. An explicit path or CONFIG_PATH points at a YAML
// file; environment variables always override file values. A missing .env
// file is not an error.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(".env"); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("config: load .env: %w", err)
	}

	if path == "" {
		path = os.Getenv("CONFIG_PATH")
	}

	var cfg Config
	if path != "" {
		if err := cleanenv.ReadConfig(path, &cfg); err != nil {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
	} else if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, fmt.Errorf("config: read env: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	if c.Database.URL == "" {
		return errors.New("config: DATABASE_URL is required")
	}
	if len(c.JWT.Secret) < minSecretLength {
		return fmt.Errorf("config: JWT_SECRET must be at least %d bytes", minSecretLength)
	}
	if c.JWT.TTL <= 0 {
		return errors.New("config: JWT_TTL must be positive")
	}
	if !storageDrivers[c.Storage.Driver] {
		return fmt.Errorf("config: unknown STORAGE_DRIVER %q", c.Storage.Driver)
	}
	if !emailDrivers[c.Email.Driver] {
		return fmt.Errorf("config: unknown EMAIL_DRIVER %q", c.Email.Driver)
	}
	if c.Completion.Workers < 1 {
		return errors.New("config: COMPLETION_WORKERS must be at least 1")
	}
	return nil
}
