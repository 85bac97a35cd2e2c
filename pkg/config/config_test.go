package config

import (
	"strings"
	"testing"
)

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("FARMLOT_APP_ENV", "dev")
	t.Setenv("FARMLOT_JWT_SECRET", "s3cret")
	t.Setenv("FARMLOT_DB_DSN", "host=localhost dbname=farmlot")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !cfg.App.IsDev() || cfg.App.IsProd() {
		t.Fatalf("expected dev env, got %q", cfg.App.Env)
	}
	if cfg.App.Port != "8080" {
		t.Fatalf("expected default port, got %q", cfg.App.Port)
	}
	if cfg.Reservations.MaxLines != 25 {
		t.Fatalf("expected default max lines, got %d", cfg.Reservations.MaxLines)
	}
	if cfg.AuthRateLimit.LoginEmailLimit != 5 {
		t.Fatalf("expected default login email limit, got %d", cfg.AuthRateLimit.LoginEmailLimit)
	}
}

func TestLoadBuildsDSNFromParts(t *testing.T) {
	t.Setenv("FARMLOT_APP_ENV", "dev")
	t.Setenv("FARMLOT_JWT_SECRET", "s3cret")
	t.Setenv("FARMLOT_DB_DSN", "")
	t.Setenv("FARMLOT_DB_HOST", "db.internal")
	t.Setenv("FARMLOT_DB_USER", "farmlot")
	t.Setenv("FARMLOT_DB_NAME", "farmlot")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !strings.Contains(cfg.DB.DSN, "host=db.internal") {
		t.Fatalf("expected assembled DSN, got %q", cfg.DB.DSN)
	}
}

func TestLoadRequiresDatabase(t *testing.T) {
	t.Setenv("FARMLOT_APP_ENV", "dev")
	t.Setenv("FARMLOT_JWT_SECRET", "s3cret")
	t.Setenv("FARMLOT_DB_DSN", "")
	t.Setenv("FARMLOT_DB_HOST", "")
	t.Setenv("FARMLOT_DB_USER", "")
	t.Setenv("FARMLOT_DB_NAME", "")

	if _, err := Load(); err == nil {
		t.Fatal("expected error when no database settings are present")
	}
}
