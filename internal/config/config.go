// Package config provides functionality for managing configuration options
// for the client using command-line flags, a JSON file and environment
// variables.
package config

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Storage backends.
const (
	StorageFile     = "file"
	StorageSQLite   = "sqlite"
	StoragePostgres = "postgres"
	StorageMemory   = "memory"
)

// Options holds the configuration values for the client.
type Options struct {
	// BaseURL is the backend origin, e.g. http://localhost:8080.
	BaseURL string `json:"base_url" env:"G3CHAT_BASE_URL"`

	// APIPrefix is the versioned path prefix of the chat and login endpoints.
	APIPrefix string `json:"api_prefix" env:"G3CHAT_API_PREFIX"`

	// CallbackAddr is where the OAuth redirect listener binds (host:port).
	CallbackAddr string `json:"callback_addr" env:"G3CHAT_CALLBACK_ADDR"`

	// Storage selects the key-value backend: file, sqlite, postgres or memory.
	Storage string `json:"storage" env:"G3CHAT_STORAGE"`

	// StoragePath is the JSON document (file) or database file (sqlite).
	StoragePath string `json:"storage_path" env:"G3CHAT_STORAGE_PATH"`

	// DatabaseDSN holds the PostgreSQL connection string.
	DatabaseDSN string `json:"database_dsn" env:"DATABASE_DSN"`

	// CAFile is an optional PEM bundle trusted for the backend's TLS.
	CAFile string `json:"ca_file" env:"G3CHAT_CA_FILE"`

	// LogLevel is the zap level name.
	LogLevel string `json:"log_level" env:"LOG_LEVEL"`

	// Timeout bounds each backend request.
	Timeout time.Duration `json:"timeout" env:"G3CHAT_TIMEOUT"`

	// Config is the path to the Config file.
	Config string `json:"-" env:"CONFIG"`
}

// Defaults returns the built-in option values.
func Defaults() Options {
	return Options{
		BaseURL:      "http://localhost:8080",
		APIPrefix:    "/v1",
		CallbackAddr: "localhost:3000",
		Storage:      StorageFile,
		StoragePath:  defaultStoragePath(),
		LogLevel:     "info",
		Timeout:      60 * time.Second,
		Config:       "g3chat.json",
	}
}

func defaultStoragePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "storage.json"
	}
	return filepath.Join(home, ".g3chat", "storage.json")
}

// RegisterFlags binds the options to fs.
func (o *Options) RegisterFlags(fs *flag.FlagSet) {
	fs.StringVar(&o.BaseURL, "url", o.BaseURL, "backend base URL")
	fs.StringVar(&o.APIPrefix, "prefix", o.APIPrefix, "backend API path prefix")
	fs.StringVar(&o.CallbackAddr, "callback", o.CallbackAddr, "OAuth redirect listener address")
	fs.StringVar(&o.Storage, "storage", o.Storage, "storage backend: file | sqlite | postgres | memory")
	fs.StringVar(&o.StoragePath, "storage-path", o.StoragePath, "storage file for file and sqlite backends")
	fs.StringVar(&o.DatabaseDSN, "d", o.DatabaseDSN, "postgres DSN for the postgres backend")
	fs.StringVar(&o.CAFile, "ca", o.CAFile, "extra CA bundle for the backend")
	fs.StringVar(&o.LogLevel, "log-level", o.LogLevel, "log level")
	fs.DurationVar(&o.Timeout, "timeout", o.Timeout, "backend request timeout")
	fs.StringVar(&o.Config, "config", o.Config, "path to config file")
	fs.StringVar(&o.Config, "c", o.Config, "path to config file (shorthand)")
}

// Load resolves options from flags (args), then the JSON config file, then
// the environment, a .env file in the working directory included. Later
// sources override earlier ones.
func Load(fs *flag.FlagSet, args []string) (*Options, error) {
	options := Defaults()
	options.RegisterFlags(fs)
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	// .env is optional; real environment variables take precedence over it.
	_ = godotenv.Load()

	if configPath := os.Getenv("CONFIG"); configPath != "" {
		options.Config = configPath
	}

	if options.Config != "" {
		if _, err := os.Stat(options.Config); err == nil {
			data, err := os.ReadFile(options.Config)
			if err != nil {
				return nil, fmt.Errorf("error while reading config file: %w", err)
			}
			if err := json.Unmarshal(data, &options); err != nil {
				return nil, fmt.Errorf("error while parsing config file: %w", err)
			}
		}
	}

	if err := env.Parse(&options); err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}

	if err := options.Validate(); err != nil {
		return nil, err
	}
	return &options, nil
}

// Parse loads options from the process command line.
func Parse() (*Options, error) {
	return Load(flag.CommandLine, os.Args[1:])
}

// Validate checks option combinations.
func (o *Options) Validate() error {
	if o.BaseURL == "" {
		return fmt.Errorf("base URL is required")
	}
	switch o.Storage {
	case StorageFile, StorageSQLite:
		if o.StoragePath == "" {
			return fmt.Errorf("storage %q requires a storage path", o.Storage)
		}
	case StoragePostgres:
		if o.DatabaseDSN == "" {
			return fmt.Errorf("storage %q requires a database DSN", o.Storage)
		}
	case StorageMemory:
	default:
		return fmt.Errorf("unknown storage %q", o.Storage)
	}
	return nil
}
