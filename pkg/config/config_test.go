package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

type sample struct {
	Name    string        `yaml:"name" toml:"name"`
	Port    int           `yaml:"port" toml:"port"`
	Timeout time.Duration `yaml:"timeout" toml:"timeout"`
}

var errNoName = errors.New("name is required")

func (s *sample) Validate() error {
	if s.Name == "" {
		return errNoName
	}
	return nil
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadYAMLExpandsEnv(t *testing.T) {
	t.Setenv("SAMPLE_NAME", "bharathvani")
	path := writeFile(t, "c.yaml", "name: ${SAMPLE_NAME}\nport: 9090\ntimeout: 3s\n")

	var s sample
	if err := Load(path, &s); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if s.Name != "bharathvani" || s.Port != 9090 || s.Timeout != 3*time.Second {
		t.Errorf("got %+v", s)
	}
}

func TestLoadTOML(t *testing.T) {
	path := writeFile(t, "c.toml", "name = \"bv\"\nport = 7000\ntimeout = \"250ms\"\n")

	var s sample
	if err := Load(path, &s); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if s.Name != "bv" || s.Port != 7000 || s.Timeout != 250*time.Millisecond {
		t.Errorf("got %+v", s)
	}
}

func TestLoadRunsValidator(t *testing.T) {
	path := writeFile(t, "c.yaml", "port: 1\n")
	var s sample
	if err := Load(path, &s); !errors.Is(err, errNoName) {
		t.Fatalf("err = %v, want validation error", err)
	}
}

func TestLoadWithDefaultsFallsBack(t *testing.T) {
	def := writeFile(t, "default.yaml", "name: fallback\n")
	var s sample
	if err := LoadWithDefaults(filepath.Join(t.TempDir(), "missing.yaml"), def, &s); err != nil {
		t.Fatalf("LoadWithDefaults: %v", err)
	}
	if s.Name != "fallback" {
		t.Errorf("name = %q", s.Name)
	}
	if err := LoadWithDefaults("/nonexistent/c.yaml", "", &s); err == nil {
		t.Error("missing file without default should fail")
	}
}
