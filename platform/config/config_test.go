package config

import (
	"testing"
	"time"
)

func TestLoadRequiresDatabaseURL(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	t.Setenv("JWT_ACCESS_SECRET", "secret")

	if _, err := Load(); err == nil {
		t.Fatalf("expected error when DATABASE_URL is empty")
	}
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/crm")
	t.Setenv("JWT_ACCESS_SECRET", "secret")
	t.Setenv("CORS_ORIGINS", "http://a.test, http://b.test ,")
	t.Setenv("ASYNQ_CONCURRENCY", "4")
	t.Setenv("BOARD_CACHE_TTL", "90s")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(cfg.CORSOrigins) != 2 || cfg.CORSOrigins[1] != "http://b.test" {
		t.Fatalf("unexpected cors origins: %v", cfg.CORSOrigins)
	}
	if cfg.GetAsynqConcurrency() != 4 {
		t.Fatalf("expected concurrency 4, got %d", cfg.GetAsynqConcurrency())
	}
	if cfg.BoardCacheTTL != 90*time.Second {
		t.Fatalf("expected 90s cache ttl, got %s", cfg.BoardCacheTTL)
	}
	if cfg.GetPreferencesKeyPrefix() == "" {
		t.Fatalf("expected a default preferences key prefix")
	}
}

func TestLoadRejectsWildcardWithCredentials(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/crm")
	t.Setenv("JWT_ACCESS_SECRET", "secret")
	t.Setenv("CORS_ORIGINS", "*")
	t.Setenv("CORS_ALLOW_CREDENTIALS", "true")

	if _, err := Load(); err == nil {
		t.Fatalf("expected error for wildcard origins with credentials")
	}
}

func TestLoadRateLimitAndScheduler(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/crm")
	t.Setenv("JWT_ACCESS_SECRET", "secret")
	t.Setenv("RATE_LIMIT_RPS", "2.5")
	t.Setenv("RATE_LIMIT_BURST", "5")
	t.Setenv("SCHEDULER_EMBEDDED", "false")
	t.Setenv("REDIS_URL", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.GetRateLimitRPS() != 2.5 || cfg.GetRateLimitBurst() != 5 {
		t.Fatalf("unexpected rate limit: %v/%d", cfg.GetRateLimitRPS(), cfg.GetRateLimitBurst())
	}
	if cfg.SchedulerEmbedded {
		t.Fatalf("expected embedded scheduler to be disabled")
	}
	if cfg.IsSchedulerEnabled() {
		t.Fatalf("scheduler requires a redis url")
	}
}
