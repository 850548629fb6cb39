package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	for _, k := range []string{"ENVIRONMENT", "TABLE_PREFIX", "GRANT_LOOKUP_TIMEOUT", "EMBEDDING_DIMENSIONS", "STORAGE_BACKEND", "DEBUG", "SUPABASE_URL"} {
		t.Setenv(k, "")
	}

	cfg := Load()
	if cfg.TablePrefix != "dev_" {
		t.Errorf("TablePrefix = %q, want dev_", cfg.TablePrefix)
	}
	if cfg.GrantLookupTimeout != 2*time.Second {
		t.Errorf("GrantLookupTimeout = %v", cfg.GrantLookupTimeout)
	}
	if cfg.EmbeddingDimensions != DefaultEmbeddingDimensions {
		t.Errorf("EmbeddingDimensions = %d", cfg.EmbeddingDimensions)
	}
	if cfg.StorageBackend != "postgres" {
		t.Errorf("StorageBackend = %q", cfg.StorageBackend)
	}
	if !cfg.Debug {
		t.Error("Debug should default to true outside prod")
	}
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("ENVIRONMENT", "prod")
	t.Setenv("TABLE_PREFIX", "")
	t.Setenv("DEBUG", "")
	t.Setenv("SUPABASE_URL", "https://abc.supabase.co/")
	t.Setenv("GRANT_LOOKUP_TIMEOUT", "750ms")
	t.Setenv("EMBEDDING_DIMENSIONS", "not-a-number")
	t.Setenv("CORS_ORIGINS", "http://a.test, http://b.test,")

	cfg := Load()
	if cfg.TablePrefix != "prod_" {
		t.Errorf("TablePrefix = %q, want prod_", cfg.TablePrefix)
	}
	if cfg.Debug {
		t.Error("Debug should default to false in prod")
	}
	if cfg.SupabaseJWKSURL != "https://abc.supabase.co/auth/v1/.well-known/jwks.json" {
		t.Errorf("SupabaseJWKSURL = %q", cfg.SupabaseJWKSURL)
	}
	if cfg.GrantLookupTimeout != 750*time.Millisecond {
		t.Errorf("GrantLookupTimeout = %v", cfg.GrantLookupTimeout)
	}
	if cfg.EmbeddingDimensions != DefaultEmbeddingDimensions {
		t.Errorf("malformed EMBEDDING_DIMENSIONS should fall back, got %d", cfg.EmbeddingDimensions)
	}
	origins := cfg.AllowedOrigins()
	if len(origins) != 2 || origins[1] != "http://b.test" {
		t.Errorf("AllowedOrigins() = %v", origins)
	}
}

func TestPruneLogs(t *testing.T) {
	dir := t.TempDir()
	names := []string{
		"tenantchat-2026-01-01T00-00-00.000.log",
		"tenantchat-2026-01-02T00-00-00.000.log",
		"tenantchat-2026-01-03T00-00-00.000.log",
		"unrelated.log",
	}
	for _, n := range names {
		if err := os.WriteFile(filepath.Join(dir, n), nil, 0644); err != nil {
			t.Fatal(err)
		}
	}

	if err := pruneLogs(dir, 2); err != nil {
		t.Fatalf("pruneLogs() error = %v", err)
	}

	if _, err := os.Stat(filepath.Join(dir, names[0])); !os.IsNotExist(err) {
		t.Error("oldest log should be removed")
	}
	for _, n := range names[1:] {
		if _, err := os.Stat(filepath.Join(dir, n)); err != nil {
			t.Errorf("%s should remain: %v", n, err)
		}
	}
}
