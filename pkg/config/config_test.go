package config

import (
	"os"
	"testing"
	"time"
)

type testConfig struct {
	Name     string        `yaml:"name" env:"APP_NAME"`
	Port     int           `yaml:"port" env:"APP_PORT"`
	Debug    bool          `yaml:"debug" env:"APP_DEBUG"`
	Timeout  time.Duration `yaml:"timeout" env:"APP_TIMEOUT"`
	Database struct {
		Path string `yaml:"path" env:"DATABASE_PATH"`
	} `yaml:"database"`
}

func TestLoad(t *testing.T) {
	content := `
name: sentinews
port: 8080
debug: false
timeout: 45s
database:
  path: news_data.db
`
	f, err := os.CreateTemp("", "config-*.yaml")
	if err != nil {
		t.Fatal(err)
	}
	defer os.Remove(f.Name())
	f.WriteString(content)
	f.Close()

	var cfg testConfig
	if err := Load(f.Name(), &cfg); err != nil {
		t.Fatal(err)
	}

	if cfg.Name != "sentinews" {
		t.Fatalf("expected 'sentinews', got '%s'", cfg.Name)
	}
	if cfg.Port != 8080 {
		t.Fatalf("expected 8080, got %d", cfg.Port)
	}
	if cfg.Debug {
		t.Fatal("expected debug to be false")
	}
	if cfg.Timeout != 45*time.Second {
		t.Fatalf("expected 45s timeout, got %s", cfg.Timeout)
	}
	if cfg.Database.Path != "news_data.db" {
		t.Fatalf("expected news_data.db, got '%s'", cfg.Database.Path)
	}
}

func TestEnvOverride(t *testing.T) {
	t.Setenv("APP_NAME", "from-env")
	t.Setenv("APP_PORT", "9090")
	t.Setenv("APP_TIMEOUT", "2m")
	t.Setenv("DATABASE_PATH", "/tmp/override.db")

	cfg := testConfig{Name: "default", Port: 8080}
	if err := LoadOrDefault("/nonexistent/path.yaml", &cfg); err != nil {
		t.Fatal(err)
	}

	if cfg.Name != "from-env" {
		t.Fatalf("expected env override, got '%s'", cfg.Name)
	}
	if cfg.Port != 9090 {
		t.Fatalf("expected 9090, got %d", cfg.Port)
	}
	if cfg.Timeout != 2*time.Minute {
		t.Fatalf("expected 2m, got %s", cfg.Timeout)
	}
	if cfg.Database.Path != "/tmp/override.db" {
		t.Fatalf("expected nested env override, got '%s'", cfg.Database.Path)
	}
}

func TestLoadMissingFile(t *testing.T) {
	var cfg testConfig
	if err := Load("/nonexistent/path.yaml", &cfg); err == nil {
		t.Fatal("expected error for missing file")
	}
}
