package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Storage backends understood by StorageConfig.Backend.
const (
	BackendAzure  = "azure"
	BackendMinIO  = "minio"
	BackendMemory = "memory"
)

// DefaultContainerName is used when PDF_CONTAINER_NAME is not set.
const DefaultContainerName = "pdf-uploads"

// ErrAccountNameRequired is returned by Load when the azure backend is selected
// without STORAGE_ACCOUNT_NAME.
var ErrAccountNameRequired = errors.New("STORAGE_ACCOUNT_NAME environment variable must be set")

// DatabaseConfig holds PostgreSQL settings for the upload ledger.
// The ledger is disabled when Host is empty.
type DatabaseConfig struct {
	Host               string
	Port               string
	User               string
	Password           string
	Name               string
	SSLMode            string
	MaxOpenConns       int
	MaxIdleConns       int
	ConnMaxLifetimeSec int
}

// Enabled reports whether a ledger database has been configured.
func (d DatabaseConfig) Enabled() bool {
	return d.Host != ""
}

// MinIOConfig holds settings for the S3-compatible backend.
type MinIOConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	UseSSL    bool
}

// StorageConfig selects and configures the blob store PDFs are written to.
type StorageConfig struct {
	Backend          string
	AccountName      string
	AccountURL       string
	ConnectionString string
	ContainerName    string
	MinIO            MinIOConfig
}

// CORSConfig mirrors the cross-origin policy applied to every route.
type CORSConfig struct {
	AllowOrigins     []string
	AllowMethods     []string
	AllowHeaders     []string
	AllowCredentials bool
}

// AppConfig is the centralized configuration struct for the application.
// It is built once at process start and passed by reference to the components that need it.
type AppConfig struct {
	Port          string
	Timezone      string
	LogLevel      string
	UploadTimeout time.Duration
	MaxBodyBytes  int
	Storage       StorageConfig
	CORS          CORSConfig
	Database      DatabaseConfig
}

// Location resolves Timezone, falling back to UTC when it is unknown.
func (c *AppConfig) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// Load reads configuration from environment variables.
// A .env file is auto-loaded by importing: _ "github.com/joho/godotenv/autoload"
// Real environment variables take precedence.
func Load() (*AppConfig, error) {
	cfg := &AppConfig{
		Port:          getEnv("PORT", "8000"),
		Timezone:      getEnv("APP_TIMEZONE", "UTC"),
		LogLevel:      getEnv("LOG_LEVEL", "info"),
		UploadTimeout: time.Duration(getEnvInt("UPLOAD_TIMEOUT_SEC", 120)) * time.Second,
		MaxBodyBytes:  getEnvInt("MAX_BODY_MB", 100) * 1024 * 1024,
		Storage: StorageConfig{
			Backend:          strings.ToLower(getEnv("STORAGE_BACKEND", BackendAzure)),
			AccountName:      getEnv("STORAGE_ACCOUNT_NAME", ""),
			AccountURL:       getEnv("STORAGE_ACCOUNT_URL", ""),
			ConnectionString: getEnv("STORAGE_CONNECTION_STRING", ""),
			ContainerName:    getEnv("PDF_CONTAINER_NAME", DefaultContainerName),
			MinIO: MinIOConfig{
				Endpoint:  getEnv("MINIO_ENDPOINT", ""),
				AccessKey: getEnv("MINIO_ACCESS_KEY", ""),
				SecretKey: getEnv("MINIO_SECRET_KEY", ""),
				UseSSL:    getEnvBool("MINIO_USE_SSL", false),
			},
		},
		CORS: CORSConfig{
			AllowOrigins:     getEnvList("CORS_ALLOW_ORIGINS", []string{"*"}),
			AllowMethods:     getEnvList("CORS_ALLOW_METHODS", []string{"*"}),
			AllowHeaders:     getEnvList("CORS_ALLOW_HEADERS", []string{"*"}),
			AllowCredentials: getEnvBool("CORS_ALLOW_CREDENTIALS", true),
		},
		Database: DatabaseConfig{
			Host:               getEnv("DB_HOST", ""),
			Port:               getEnv("DB_PORT", "5432"),
			User:               getEnv("DB_USER", ""),
			Password:           getEnv("DB_PASSWORD", ""),
			Name:               getEnv("DB_NAME", ""),
			SSLMode:            getEnv("DB_SSLMODE", "disable"),
			MaxOpenConns:       getEnvInt("DB_MAX_OPEN_CONNS", 10),
			MaxIdleConns:       getEnvInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetimeSec: getEnvInt("DB_CONN_MAX_LIFETIME_SEC", 300),
		},
	}

	if cfg.Storage.AccountURL == "" && cfg.Storage.AccountName != "" {
		cfg.Storage.AccountURL = AccountURL(cfg.Storage.AccountName)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *AppConfig) validate() error {
	switch c.Storage.Backend {
	case BackendAzure:
		if c.Storage.AccountName == "" {
			return ErrAccountNameRequired
		}
	case BackendMinIO, BackendMemory:
	default:
		return fmt.Errorf("unsupported STORAGE_BACKEND %q", c.Storage.Backend)
	}
	if c.Storage.ContainerName == "" {
		return errors.New("PDF_CONTAINER_NAME must not be empty")
	}
	if c.UploadTimeout < 0 {
		return errors.New("UPLOAD_TIMEOUT_SEC must not be negative")
	}
	return nil
}

// AccountURL derives the blob service endpoint of a storage account.
func AccountURL(account string) string {
	return "https://" + account + ".blob.core.windows.net"
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		b, err := strconv.ParseBool(v)
		if err == nil {
			return b
		}
	}
	return def
}

func getEnvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		i, err := strconv.Atoi(v)
		if err == nil {
			return i
		}
	}
	return def
}

// getEnvList splits a comma separated value, dropping blanks.
func getEnvList(key string, def []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return def
	}
	return out
}
