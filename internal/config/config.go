package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all runtime configuration for the server.
type Config struct {
	HTTP     HTTPConfig     `yaml:"http"`
	Database DatabaseConfig `yaml:"database"`
	Relay    RelayConfig    `yaml:"relay"`
	S3       S3Config       `yaml:"s3"`
}

type HTTPConfig struct {
	Addr string `yaml:"addr"`
	// AllowedOrigins feeds the CORS layer. Defaults to wide open; the
	// presenter and audience pages are served from arbitrary hosts.
	AllowedOrigins []string `yaml:"allowed_origins"`
}

type DatabaseConfig struct {
	Path string `yaml:"path"`
}

type RelayConfig struct {
	// URL of the NATS broker. When empty the server falls back to the
	// in-process relay, which only serves a single binary.
	URL string `yaml:"url"`
}

type S3Config struct {
	Region    string `yaml:"region"`
	Bucket    string `yaml:"bucket"`
	KeyPrefix string `yaml:"key_prefix"`
	// Endpoint overrides the AWS endpoint for MinIO-style deployments.
	Endpoint  string `yaml:"endpoint"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
}

// Load reads configuration from an optional .env file, an optional YAML
// file named by CONFIG_FILE, and the environment. Environment variables
// take precedence over file values.
func Load() (*Config, error) {
	// Missing .env is fine; env vars may come from the shell.
	_ = godotenv.Load()

	cfg := &Config{
		HTTP:     HTTPConfig{Addr: ":8080", AllowedOrigins: []string{"*"}},
		Database: DatabaseConfig{Path: "./data/sketchparty.db"},
		Relay:    RelayConfig{URL: ""},
		S3:       S3Config{KeyPrefix: "drawings"},
	}

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := loadYAML(path, cfg); err != nil {
			return nil, err
		}
	}

	cfg.HTTP.Addr = getEnv("HTTP_ADDR", cfg.HTTP.Addr)
	if origins := os.Getenv("ALLOWED_ORIGINS"); origins != "" {
		cfg.HTTP.AllowedOrigins = strings.Split(origins, ",")
	}
	cfg.Database.Path = getEnv("DB_PATH", cfg.Database.Path)
	cfg.Relay.URL = getEnv("NATS_URL", cfg.Relay.URL)
	cfg.S3.Region = getEnv("AWS_REGION", cfg.S3.Region)
	cfg.S3.Bucket = getEnv("S3_PUBLIC_BUCKET", cfg.S3.Bucket)
	cfg.S3.KeyPrefix = getEnv("S3_KEY_PREFIX", cfg.S3.KeyPrefix)
	cfg.S3.Endpoint = getEnv("S3_ENDPOINT", cfg.S3.Endpoint)
	cfg.S3.AccessKey = getEnv("AWS_ACCESS_KEY_ID", cfg.S3.AccessKey)
	cfg.S3.SecretKey = getEnv("AWS_SECRET_ACCESS_KEY", cfg.S3.SecretKey)

	return cfg, nil
}

func loadYAML(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to parse config: %w", err)
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
