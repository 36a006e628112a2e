package app

import (
	"testing"
	"time"

	_ "github.com/depot-aim/depot-aim/internal/testing/guard"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("DEPOT_SESSION_SECRET", "test-session-secret")
	t.Setenv("DEPOT_CSRF_SECRET", "test-csrf-secret")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.AppAddr != ":8080" {
		t.Fatalf("expected default addr :8080, got %s", cfg.AppAddr)
	}
	if cfg.AppRequestTimeout != 30*time.Second {
		t.Fatalf("expected 30s request timeout, got %s", cfg.AppRequestTimeout)
	}
	if cfg.IsProduction() {
		t.Fatal("development config must not report production")
	}
}

func TestLoadConfigRequiresSecrets(t *testing.T) {
	t.Setenv("DEPOT_SESSION_SECRET", "")
	t.Setenv("DEPOT_CSRF_SECRET", "")

	if _, err := LoadConfig(); err == nil {
		t.Fatal("expected error when secrets are missing")
	}
}

func TestLoadConfigOverrides(t *testing.T) {
	t.Setenv("DEPOT_SESSION_SECRET", "s")
	t.Setenv("DEPOT_CSRF_SECRET", "c")
	t.Setenv("DEPOT_ENV", "production")
	t.Setenv("DEPOT_RIGHTS_CACHE_TTL", "90s")
	t.Setenv("DEPOT_AUDIT_RETENTION_DAYS", "30")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if !cfg.IsProduction() {
		t.Fatal("expected production mode")
	}
	if cfg.RightsCacheTTL != 90*time.Second {
		t.Fatalf("expected 90s rights cache ttl, got %s", cfg.RightsCacheTTL)
	}
	if cfg.AuditRetentionDays != 30 {
		t.Fatalf("expected 30 retention days, got %d", cfg.AuditRetentionDays)
	}
}
