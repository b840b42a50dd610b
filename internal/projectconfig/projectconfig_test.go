package projectconfig

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadMinimal(t *testing.T) {
	dir := t.TempDir()
	write(t, dir, `{"domain":"api"}`)

	cfg, err := Load(dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.FullDomain() != "api.localhost" {
		t.Fatalf("got %q, want api.localhost", cfg.FullDomain())
	}
}

func TestLoadWithOverrides(t *testing.T) {
	dir := t.TempDir()
	write(t, dir, `{"domain":"web","start":"npm run custom","portEnv":"MY_PORT"}`)

	cfg, err := Load(dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Start != "npm run custom" || cfg.PortEnv != "MY_PORT" {
		t.Fatalf("got %+v", cfg)
	}
}

func TestLoadMissingFile(t *testing.T) {
	dir := t.TempDir()
	if _, err := Load(dir); err == nil {
		t.Fatal("expected error for missing unport.json")
	}
}

func TestLoadMissingDomain(t *testing.T) {
	dir := t.TempDir()
	write(t, dir, `{"start":"npm run dev"}`)
	if _, err := Load(dir); err == nil {
		t.Fatal("expected error for missing domain field")
	}
}

func TestLoadInvalidJSON(t *testing.T) {
	dir := t.TempDir()
	write(t, dir, `{not json`)
	if _, err := Load(dir); err == nil {
		t.Fatal("expected error for invalid JSON")
	}
}

func write(t *testing.T, dir, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, "unport.json"), []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}
