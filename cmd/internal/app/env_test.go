package app

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func TestLoadEnvFile_DoesNotOverrideEnvironment(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	content := "WARDEN_TEST_FROM_FILE=file\nWARDEN_TEST_PRESET=file\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write env file: %v", err)
	}

	t.Setenv("WARDEN_TEST_PRESET", "env")
	t.Setenv("WARDEN_TEST_FROM_FILE", "")
	_ = os.Unsetenv("WARDEN_TEST_FROM_FILE")

	loaded, err := LoadEnvFile(path)
	if err != nil || !loaded {
		t.Fatalf("LoadEnvFile: loaded=%v err=%v", loaded, err)
	}
	if got := os.Getenv("WARDEN_TEST_FROM_FILE"); got != "file" {
		t.Fatalf("WARDEN_TEST_FROM_FILE=%q want file", got)
	}
	if got := os.Getenv("WARDEN_TEST_PRESET"); got != "env" {
		t.Fatalf("WARDEN_TEST_PRESET=%q want env", got)
	}
}

func TestLoadEnvFile_MissingFileIsIgnored(t *testing.T) {
	loaded, err := LoadEnvFile(filepath.Join(t.TempDir(), "nope.env"))
	if err != nil || loaded {
		t.Fatalf("LoadEnvFile: loaded=%v err=%v", loaded, err)
	}
}

func TestEnvCSV(t *testing.T) {
	def := []string{"http://localhost:*"}

	t.Setenv("WARDEN_TEST_CSV", " https://a.example.com , ,https://b.example.com ")
	got := EnvCSV("WARDEN_TEST_CSV", def)
	want := []string{"https://a.example.com", "https://b.example.com"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("EnvCSV=%v want %v", got, want)
	}

	t.Setenv("WARDEN_TEST_CSV", " , ")
	if got := EnvCSV("WARDEN_TEST_CSV", def); !reflect.DeepEqual(got, def) {
		t.Fatalf("EnvCSV blank=%v want %v", got, def)
	}
}

func TestLoadConfig_Defaults(t *testing.T) {
	t.Setenv("WARDEN_HTTP_ADDR", "")
	t.Setenv("WARDEN_DB_SCHEMA", "")
	t.Setenv("WARDEN_HSTS", "true")

	cfg := LoadConfig()
	if cfg.HTTPAddr != "0.0.0.0:8080" || cfg.DBSchema != "warden" || !cfg.HSTS {
		t.Fatalf("unexpected config: %+v", cfg)
	}
	if !cfg.DBEnsureSchema || cfg.CORSMaxAgeSeconds != 600 {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
}
