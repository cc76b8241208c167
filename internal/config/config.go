package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Config holds the application configuration
type Config struct {
	Server      ServerConfig      `json:"server"`
	Detection   DetectionConfig   `json:"detection"`
	Encoder     EncoderConfig     `json:"encoder"`
	Credentials CredentialsConfig `json:"credentials"`
}

// ServerConfig holds configuration for the web server
type ServerConfig struct {
	Addr        string `json:"addr"`
	MaxUploadMB int64  `json:"max_upload_mb"`
}

// DetectionConfig holds configuration for the detection backend
type DetectionConfig struct {
	Backend        string `json:"backend"` // vision, ollama or llamacpp
	Model          string `json:"model"`   // local backends only
	URL            string `json:"url"`     // local backends only
	MaxResults     int    `json:"max_results"`
	Retries        int    `json:"retries"`
	TimeoutSeconds int    `json:"timeout_seconds"`
}

// EncoderConfig holds configuration for crop normalization and previews
type EncoderConfig struct {
	JPEGQuality   int    `json:"jpeg_quality"`
	PreviewFormat string `json:"preview_format"` // webp or jpeg
	PreviewMaxDim int    `json:"preview_max_dim"`
}

// CredentialsConfig names where the service-account secret comes from: an
// environment variable first, then a file path.
type CredentialsConfig struct {
	Env  string `json:"env"`
	File string `json:"file"`
}

// Default returns a configuration with default values
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:        ":8080",
			MaxUploadMB: 20,
		},
		Detection: DetectionConfig{
			Backend:        "vision",
			Model:          "openbmb/minicpm-v4.5",
			URL:            "",
			MaxResults:     50,
			Retries:        0,
			TimeoutSeconds: 60,
		},
		Encoder: EncoderConfig{
			JPEGQuality:   90,
			PreviewFormat: "webp",
			PreviewMaxDim: 512,
		},
		Credentials: CredentialsConfig{
			Env:  "CROPSCOPE_CREDENTIALS_JSON",
			File: "",
		},
	}
}

// LoadFromFile loads configuration from a JSON file
func LoadFromFile(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := Default()
	if err := json.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return config, nil
}

// SaveToFile saves configuration to a JSON file
func (c *Config) SaveToFile(filename string) error {
	dir := filepath.Dir(filename)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(filename, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Server.Addr == "" {
		return fmt.Errorf("server.addr cannot be empty")
	}

	if c.Server.MaxUploadMB < 1 {
		return fmt.Errorf("server.max_upload_mb must be positive")
	}

	switch c.Detection.Backend {
	case "vision", "ollama", "llamacpp":
	default:
		return fmt.Errorf("detection.backend must be vision, ollama or llamacpp")
	}

	if c.Detection.MaxResults < 1 {
		return fmt.Errorf("detection.max_results must be positive")
	}

	if c.Detection.Retries < 0 {
		return fmt.Errorf("detection.retries cannot be negative")
	}

	if c.Detection.TimeoutSeconds < 1 {
		return fmt.Errorf("detection.timeout_seconds must be positive")
	}

	if c.Encoder.JPEGQuality < 1 || c.Encoder.JPEGQuality > 100 {
		return fmt.Errorf("encoder.jpeg_quality must be between 1 and 100")
	}

	if c.Encoder.PreviewFormat != "webp" && c.Encoder.PreviewFormat != "jpeg" {
		return fmt.Errorf("encoder.preview_format must be webp or jpeg")
	}

	if c.Encoder.PreviewMaxDim < 16 {
		return fmt.Errorf("encoder.preview_max_dim must be at least 16")
	}

	return nil
}

// LoadCredentials resolves the service-account secret: the configured
// environment variable wins, then the configured file path. A missing secret
// returns nil without error; the caller decides whether detection is
// mandatory.
func (c *Config) LoadCredentials() ([]byte, error) {
	if c.Credentials.Env != "" {
		if val := os.Getenv(c.Credentials.Env); val != "" {
			return []byte(val), nil
		}
	}
	if c.Credentials.File != "" {
		data, err := os.ReadFile(c.Credentials.File)
		if err != nil {
			return nil, fmt.Errorf("failed to read credentials file: %w", err)
		}
		return data, nil
	}
	return nil, nil
}

// GetConfigPath returns the default configuration file path
func GetConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "./config.json"
	}
	return filepath.Join(home, ".config", "cropscope", "config.json")
}
