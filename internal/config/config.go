package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config is read from config.yaml, then overridden by environment
// variables. Secrets are env-only (yaml:"-").
type Config struct {
	Server struct {
		Port         int           `yaml:"port" env:"PORT"`
		BaseURL      string        `yaml:"baseURL" env:"BASE_URL"`
		ReadTimeout  time.Duration `yaml:"readTimeout" env:"SERVER_READ_TIMEOUT"`
		WriteTimeout time.Duration `yaml:"writeTimeout" env:"SERVER_WRITE_TIMEOUT"`
		// AllowedOrigins for CORS; empty allows all.
		AllowedOrigins []string `yaml:"allowedOrigins" env:"ALLOWED_ORIGINS"`
		RateLimit      struct {
			Capacity        int `yaml:"capacity" env:"RATE_LIMIT_CAPACITY"`
			RefillPerSecond int `yaml:"refillPerSecond" env:"RATE_LIMIT_REFILL"`
		} `yaml:"rateLimit"`
	} `yaml:"server"`

	Log struct {
		Level       string `yaml:"level" env:"LOG_LEVEL"`
		Development bool   `yaml:"development" env:"LOG_DEVELOPMENT"`
	} `yaml:"log"`

	Database struct {
		// Driver is postgres, mysql or memory.
		Driver   string `yaml:"driver" env:"DB_DRIVER"`
		DSN      string `yaml:"-" env:"DATABASE_URL"`
		Host     string `yaml:"host" env:"DB_HOST"`
		Port     int    `yaml:"port" env:"DB_PORT"`
		User     string `yaml:"user" env:"DB_USER"`
		Password string `yaml:"-" env:"DB_PASSWORD"`
		Name     string `yaml:"name" env:"DB_NAME"`
		SSLMode  string `yaml:"sslMode" env:"DB_SSLMODE"`
	} `yaml:"database"`

	Audit struct {
		// CallbackURL defaults to BaseURL + /audit/webhook.
		CallbackURL         string        `yaml:"callbackURL" env:"AUDIT_CALLBACK_URL"`
		AllowedHosts        []string      `yaml:"allowedHosts" env:"AUDIT_ALLOWED_HOSTS"`
		CollaboratorTimeout time.Duration `yaml:"collaboratorTimeout" env:"AUDIT_COLLABORATOR_TIMEOUT"`
		CompletionLease     time.Duration `yaml:"completionLease" env:"AUDIT_COMPLETION_LEASE"`
		WebhookSecret       string        `yaml:"-" env:"WEBHOOK_SECRET"`
	} `yaml:"audit"`

	Scraper struct {
		BaseURL   string `yaml:"baseURL" env:"BRIGHTDATA_BASE_URL"`
		DatasetID string `yaml:"datasetID" env:"BRIGHTDATA_DATASET_ID"`
		Token     string `yaml:"-" env:"BRIGHTDATA_API_TOKEN"`
	} `yaml:"scraper"`

	AI struct {
		BaseURL string `yaml:"baseURL" env:"OPENAI_BASE_URL"`
		Model   string `yaml:"model" env:"OPENAI_MODEL"`
		APIKey  string `yaml:"-" env:"OPENAI_API_KEY"`
	} `yaml:"ai"`

	Payment struct {
		Required  bool   `yaml:"required" env:"PAYMENT_REQUIRED"`
		Currency  string `yaml:"currency" env:"PAYMENT_CURRENCY"`
		KeyID     string `yaml:"keyID" env:"RAZORPAY_KEY_ID"`
		KeySecret string `yaml:"-" env:"RAZORPAY_KEY_SECRET"`
	} `yaml:"payment"`

	Storage struct {
		// Driver is minio or dir.
		Driver string        `yaml:"driver" env:"STORAGE_DRIVER"`
		Expiry time.Duration `yaml:"expiry" env:"STORAGE_URL_EXPIRY"`
		Dir    string        `yaml:"dir" env:"STORAGE_DIR"`
	} `yaml:"storage"`

	Minio struct {
		Endpoint   string `yaml:"endpoint" env:"MINIO_ENDPOINT"`
		AccessKey  string `yaml:"-" env:"MINIO_ACCESS_KEY"`
		SecretKey  string `yaml:"-" env:"MINIO_SECRET_KEY"`
		BucketName string `yaml:"bucketName" env:"MINIO_BUCKET"`
		Region     string `yaml:"region" env:"MINIO_REGION"`
		UseSSL     bool   `yaml:"useSSL" env:"MINIO_USE_SSL"`
	} `yaml:"minio"`

	Report struct {
		// PDF turns on headless Chromium rendering.
		PDF bool `yaml:"pdf" env:"REPORT_PDF"`
	} `yaml:"report"`

	Redis struct {
		URL string `yaml:"url" env:"REDIS_URL"`
	} `yaml:"redis"`

	Telegram struct {
		Token  string `yaml:"-" env:"TELEGRAM_BOT_TOKEN"`
		ChatID int64  `yaml:"chatID" env:"TELEGRAM_CHAT_ID"`
	} `yaml:"telegram"`
}

// Load baca .env, file config.yaml (boleh tidak ada), lalu env override.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	case errors.Is(err, os.ErrNotExist):
		// env only
	default:
		return nil, err
	}

	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, fmt.Errorf("read environment: %w", err)
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Server.BaseURL == "" {
		c.Server.BaseURL = fmt.Sprintf("http://localhost:%d", c.Server.Port)
	}
	if c.Server.ReadTimeout == 0 {
		c.Server.ReadTimeout = 15 * time.Second
	}
	// report rendering plus upload can take a while
	if c.Server.WriteTimeout == 0 {
		c.Server.WriteTimeout = 90 * time.Second
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Database.Driver == "" {
		c.Database.Driver = "postgres"
	}
	if c.Database.SSLMode == "" {
		c.Database.SSLMode = "disable"
	}
	if c.Audit.CallbackURL == "" {
		c.Audit.CallbackURL = strings.TrimRight(c.Server.BaseURL, "/") + "/audit/webhook"
	}
	if c.Audit.CollaboratorTimeout == 0 {
		c.Audit.CollaboratorTimeout = 30 * time.Second
	}
	if c.Audit.CompletionLease == 0 {
		c.Audit.CompletionLease = 2 * time.Minute
	}
	if c.Payment.Currency == "" {
		c.Payment.Currency = "INR"
	}
	if c.Storage.Driver == "" {
		c.Storage.Driver = "dir"
	}
	if c.Storage.Dir == "" {
		c.Storage.Dir = "./data"
	}
	if c.Storage.Expiry == 0 {
		c.Storage.Expiry = 7 * 24 * time.Hour
	}
	if c.Minio.BucketName == "" {
		c.Minio.BucketName = "profixion-reports"
	}
	if c.Minio.Region == "" {
		c.Minio.Region = "us-east-1"
	}
}

// Validate checks required combinations.
func (c *Config) Validate() error {
	var errs []error
	switch c.Database.Driver {
	case "postgres", "mysql":
		if c.Database.DSN == "" && c.Database.Host == "" {
			errs = append(errs, fmt.Errorf("database: DATABASE_URL or database.host is required for %s", c.Database.Driver))
		}
	case "memory":
	default:
		errs = append(errs, fmt.Errorf("database: unknown driver %q", c.Database.Driver))
	}

	switch c.Storage.Driver {
	case "minio":
		if c.Minio.Endpoint == "" || c.Minio.AccessKey == "" || c.Minio.SecretKey == "" {
			errs = append(errs, errors.New("storage: minio needs endpoint, MINIO_ACCESS_KEY and MINIO_SECRET_KEY"))
		}
	case "dir":
	default:
		errs = append(errs, fmt.Errorf("storage: unknown driver %q", c.Storage.Driver))
	}

	if u, err := url.Parse(c.Audit.CallbackURL); err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		errs = append(errs, fmt.Errorf("audit: callbackURL %q is not an absolute http(s) URL", c.Audit.CallbackURL))
	}
	if c.Audit.CollaboratorTimeout < 0 || c.Audit.CompletionLease < 0 {
		errs = append(errs, errors.New("audit: timeouts must be positive"))
	}
	if c.Scraper.Token == "" {
		errs = append(errs, errors.New("scraper: BRIGHTDATA_API_TOKEN is required"))
	}
	if c.AI.APIKey == "" {
		errs = append(errs, errors.New("ai: OPENAI_API_KEY is required"))
	}
	if c.Payment.Required && !c.PaymentsEnabled() {
		errs = append(errs, errors.New("payment: required but RAZORPAY_KEY_ID/RAZORPAY_KEY_SECRET are missing"))
	}
	if (c.Telegram.Token == "") != (c.Telegram.ChatID == 0) {
		errs = append(errs, errors.New("telegram: TELEGRAM_BOT_TOKEN and TELEGRAM_CHAT_ID must be set together"))
	}
	return errors.Join(errs...)
}

// PaymentsEnabled reports whether Razorpay credentials are present.
func (c *Config) PaymentsEnabled() bool {
	return c.Payment.KeyID != "" && c.Payment.KeySecret != ""
}

// Helper untuk build DSN MySQL
func (c *Config) MySQLDSN() string {
	if c.Database.DSN != "" {
		return c.Database.DSN
	}
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?parseTime=true&charset=utf8mb4&loc=UTC",
		c.Database.User,
		c.Database.Password,
		c.Database.Host,
		c.portOr(3306),
		c.Database.Name,
	)
}

// Helper untuk build DSN Postgres
func (c *Config) PostgresDSN() string {
	if c.Database.DSN != "" {
		return c.Database.DSN
	}
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.Database.User, c.Database.Password),
		Host:     fmt.Sprintf("%s:%d", c.Database.Host, c.portOr(5432)),
		Path:     "/" + c.Database.Name,
		RawQuery: "sslmode=" + url.QueryEscape(c.Database.SSLMode),
	}
	return u.String()
}

func (c *Config) portOr(def int) int {
	if c.Database.Port == 0 {
		return def
	}
	return c.Database.Port
}
