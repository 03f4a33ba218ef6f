package config

import "testing"

func setRequiredEnv(t *testing.T) {
	t.Helper()
	t.Setenv("DATABASE_DSN", "postgres://localhost:5432/gradarchive")
	t.Setenv("ACCESS_TOKEN_SECRET", "a-secret")
	t.Setenv("REFRESH_TOKEN_SECRET", "r-secret")
	t.Setenv("RESET_TOKEN_SECRET", "s-secret")
}

func TestLoadDefaults(t *testing.T) {
	setRequiredEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.HTTP.Addr != ":8080" {
		t.Fatalf("addr = %s", cfg.HTTP.Addr)
	}
	if cfg.Tokens.AccessTTL.Minutes() != 15 {
		t.Fatalf("access ttl = %v", cfg.Tokens.AccessTTL)
	}
	if cfg.Tokens.RefreshTTL.Hours() != 720 {
		t.Fatalf("refresh ttl = %v", cfg.Tokens.RefreshTTL)
	}
	if cfg.Database.MaxOpenConns != 10 {
		t.Fatalf("max open conns = %d", cfg.Database.MaxOpenConns)
	}
}

func TestLoadRequiresDSN(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("DATABASE_DSN", "")
	if _, err := Load(); err == nil {
		t.Fatal("expected error without DATABASE_DSN")
	}
}

func TestLoadRequiresSecrets(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("RESET_TOKEN_SECRET", "")
	if _, err := Load(); err == nil {
		t.Fatal("expected error without all three token secrets")
	}
}

func TestLoadOverrides(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("HTTP_ADDR", ":9090")
	t.Setenv("ACCESS_TOKEN_TTL", "5m")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.HTTP.Addr != ":9090" {
		t.Fatalf("addr = %s", cfg.HTTP.Addr)
	}
	if cfg.Tokens.AccessTTL.Minutes() != 5 {
		t.Fatalf("access ttl = %v", cfg.Tokens.AccessTTL)
	}
}
