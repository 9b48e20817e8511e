package config

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
)

// Config holds all application configuration.
type Config struct {
	Database DatabaseConfig `yaml:"database"`
	HTTP     HTTPConfig     `yaml:"http"`
	GRPC     GRPCConfig     `yaml:"grpc"`
	Session  SessionConfig  `yaml:"session"`
	Download DownloadConfig `yaml:"download"`
	Hash     HashConfig     `yaml:"hash"`
	Log      LogConfig      `yaml:"log"`
}

// DatabaseConfig contains database-related settings.
type DatabaseConfig struct {
	Path string `yaml:"path" env:"DB_PATH" env-default:"users.db" env-description:"SQLite database file path" validate:"required"`
}

type HTTPConfig struct {
	Address        string   `yaml:"address" env:"HTTP_ADDRESS" env-default:":5000" env-description:"HTTP listen address" validate:"required"`
	AllowedOrigins []string `yaml:"allowed_origins" env:"CORS_ALLOWED_ORIGINS" env-separator:"," env-description:"CORS origins; empty disables CORS"`
}

// GRPCConfig contains gRPC server settings. An empty address disables the listener.
type GRPCConfig struct {
	Address string `yaml:"address" env:"GRPC_ADDRESS" env-default:":50051" env-description:"gRPC listen address (empty disables)"`
}

// SessionConfig controls session tokens and their backing store.
type SessionConfig struct {
	Secret       string        `yaml:"secret" env:"SESSION_SECRET" env-description:"token signing secret; overrides the key file"`
	KeyFile      string        `yaml:"key_file" env:"SESSION_KEY_FILE" env-default:"session.key" env-description:"signing key file, generated on first start" validate:"required_without=Secret"`
	TTL          time.Duration `yaml:"ttl" env:"SESSION_TTL" env-default:"24h" env-description:"session lifetime" validate:"gt=0"`
	CookieName   string        `yaml:"cookie_name" env:"SESSION_COOKIE" env-default:"session" validate:"required"`
	CookieSecure bool          `yaml:"cookie_secure" env:"SESSION_COOKIE_SECURE" env-default:"false" env-description:"mark the session cookie Secure"`
	Store        string        `yaml:"store" env:"SESSION_STORE" env-default:"sqlite" env-description:"sqlite, memory or redis" validate:"oneof=sqlite memory redis"`
	DBPath       string        `yaml:"db_path" env:"SESSION_DB_PATH" env-default:"sessions.db" env-description:"session database file (sqlite store)" validate:"required_if=Store sqlite"`
	MaxEntries   int           `yaml:"max_entries" env:"SESSION_MAX_ENTRIES" env-default:"10000" env-description:"memory store capacity" validate:"gt=0"`
	RedisAddr    string        `yaml:"redis_addr" env:"REDIS_ADDR" validate:"required_if=Store redis"`
	RedisPass    string        `yaml:"redis_password" env:"REDIS_PASSWORD"`
	RedisDB      int           `yaml:"redis_db" env:"REDIS_DB" env-default:"0" validate:"gte=0"`
}

// DownloadConfig names the single file served by /download. The name is
// never taken from a request.
type DownloadConfig struct {
	Backend     string `yaml:"backend" env:"DOWNLOAD_BACKEND" env-default:"local" env-description:"local or s3" validate:"oneof=local s3"`
	Dir         string `yaml:"dir" env:"DOWNLOAD_DIR" env-default:"static/files" validate:"required_if=Backend local"`
	File        string `yaml:"file" env:"DOWNLOAD_FILE" env-default:"cheat_sheet.pdf" env-description:"file name (local) or object key (s3)" validate:"required"`
	S3Bucket    string `yaml:"s3_bucket" env:"S3_BUCKET" validate:"required_if=Backend s3"`
	S3Region    string `yaml:"s3_region" env:"S3_REGION" env-default:"us-east-1"`
	S3Endpoint  string `yaml:"s3_endpoint" env:"S3_ENDPOINT" env-description:"custom endpoint, e.g. MinIO"`
	S3AccessKey string `yaml:"s3_access_key_id" env:"S3_ACCESS_KEY_ID"`
	S3SecretKey string `yaml:"s3_secret_access_key" env:"S3_SECRET_ACCESS_KEY"`
}

// HashConfig sets the cost of newly created password hashes.
type HashConfig struct {
	Iterations int `yaml:"iterations" env:"HASH_ITERATIONS" env-default:"600000" validate:"gt=0"`
	SaltLength int `yaml:"salt_length" env:"HASH_SALT_LENGTH" env-default:"8" validate:"gte=8"`
}

type LogConfig struct {
	Level  string `yaml:"level" env:"LOG_LEVEL" env-default:"info" validate:"oneof=debug info warn error"`
	Format string `yaml:"format" env:"LOG_FORMAT" env-default:"text" validate:"oneof=text json"`
}

var validate = validator.New()

// Load reads configuration from the environment (after loading a .env file if
// present). When CONFIG_PATH names a YAML file it is read first and
// environment variables override it.
func Load() (*Config, error) {
	// .env is optional; a missing file is not an error.
	_ = godotenv.Load()

	var cfg Config
	var err error
	if path, ok := os.LookupEnv("CONFIG_PATH"); ok && path != "" {
		err = cleanenv.ReadConfig(path, &cfg)
	} else {
		err = cleanenv.ReadEnv(&cfg)
	}
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if err := validate.Struct(&cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}

// Usage writes the list of supported environment variables to w.
func Usage(w io.Writer) {
	var cfg Config
	header := "Environment variables:"
	cleanenv.FUsage(w, &cfg, &header)()
}

// String returns a string representation of the config (sensitive values are masked).
func (c *Config) String() string {
	return fmt.Sprintf("Config{DB: %s, HTTP: %s, gRPC: %s, Sessions: %s/%s, Download: %s:%s, Auth: *** (masked) ***}",
		c.Database.Path, c.HTTP.Address, c.GRPC.Address, c.Session.Store, c.Session.TTL,
		c.Download.Backend, c.Download.File)
}
