package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultIsValid(t *testing.T) {
	if err := Default().Validate(); err != nil {
		t.Errorf("Default config is invalid: %v", err)
	}
}

func TestValidateRejects(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty addr", func(c *Config) { c.Server.Addr = "" }},
		{"zero upload cap", func(c *Config) { c.Server.MaxUploadMB = 0 }},
		{"unknown backend", func(c *Config) { c.Detection.Backend = "clipboard" }},
		{"zero max results", func(c *Config) { c.Detection.MaxResults = 0 }},
		{"negative retries", func(c *Config) { c.Detection.Retries = -1 }},
		{"zero timeout", func(c *Config) { c.Detection.TimeoutSeconds = 0 }},
		{"quality too high", func(c *Config) { c.Encoder.JPEGQuality = 101 }},
		{"quality too low", func(c *Config) { c.Encoder.JPEGQuality = 0 }},
		{"bad preview format", func(c *Config) { c.Encoder.PreviewFormat = "gif" }},
		{"tiny preview", func(c *Config) { c.Encoder.PreviewMaxDim = 2 }},
	}

	for _, c := range cases {
		cfg := Default()
		c.mutate(cfg)
		if err := cfg.Validate(); err == nil {
			t.Errorf("%s: expected validation error", c.name)
		}
	}
}

func TestSaveAndLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")

	cfg := Default()
	cfg.Server.Addr = ":9999"
	cfg.Detection.Backend = "ollama"
	cfg.Detection.Model = "llava"

	if err := cfg.SaveToFile(path); err != nil {
		t.Fatalf("SaveToFile failed: %v", err)
	}

	loaded, err := LoadFromFile(path)
	if err != nil {
		t.Fatalf("LoadFromFile failed: %v", err)
	}
	if loaded.Server.Addr != ":9999" {
		t.Errorf("Expected addr :9999, got %s", loaded.Server.Addr)
	}
	if loaded.Detection.Backend != "ollama" || loaded.Detection.Model != "llava" {
		t.Errorf("Detection section not preserved: %+v", loaded.Detection)
	}
	// Untouched fields keep their defaults
	if loaded.Encoder.JPEGQuality != Default().Encoder.JPEGQuality {
		t.Errorf("Expected default quality, got %d", loaded.Encoder.JPEGQuality)
	}
}

func TestLoadFromFileMissing(t *testing.T) {
	if _, err := LoadFromFile(filepath.Join(t.TempDir(), "absent.json")); err == nil {
		t.Error("Expected error for missing config file")
	}
}

func TestLoadFromFileMalformed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte("{not json"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadFromFile(path); err == nil {
		t.Error("Expected error for malformed config file")
	}
}

func TestLoadCredentialsEnvWins(t *testing.T) {
	path := filepath.Join(t.TempDir(), "creds.json")
	if err := os.WriteFile(path, []byte(`{"from":"file"}`), 0600); err != nil {
		t.Fatal(err)
	}

	cfg := Default()
	cfg.Credentials.Env = "CROPSCOPE_TEST_CREDS"
	cfg.Credentials.File = path
	t.Setenv("CROPSCOPE_TEST_CREDS", `{"from":"env"}`)

	data, err := cfg.LoadCredentials()
	if err != nil {
		t.Fatalf("LoadCredentials failed: %v", err)
	}
	if string(data) != `{"from":"env"}` {
		t.Errorf("Expected env secret to win, got %s", data)
	}
}

func TestLoadCredentialsFileFallback(t *testing.T) {
	path := filepath.Join(t.TempDir(), "creds.json")
	if err := os.WriteFile(path, []byte(`{"from":"file"}`), 0600); err != nil {
		t.Fatal(err)
	}

	cfg := Default()
	cfg.Credentials.Env = "CROPSCOPE_TEST_CREDS_UNSET"
	cfg.Credentials.File = path

	data, err := cfg.LoadCredentials()
	if err != nil {
		t.Fatalf("LoadCredentials failed: %v", err)
	}
	if string(data) != `{"from":"file"}` {
		t.Errorf("Expected file secret, got %s", data)
	}
}

func TestLoadCredentialsAbsent(t *testing.T) {
	cfg := Default()
	cfg.Credentials.Env = "CROPSCOPE_TEST_CREDS_UNSET"
	cfg.Credentials.File = ""

	data, err := cfg.LoadCredentials()
	if err != nil {
		t.Fatalf("LoadCredentials failed: %v", err)
	}
	if data != nil {
		t.Errorf("Expected nil for absent secret, got %s", data)
	}
}
