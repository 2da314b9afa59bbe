package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func setRequired(t *testing.T) {
	t.Helper()
	t.Setenv("DATABASE_URL", "postgres://localhost/freshflow?sslmode=disable")
	t.Setenv("JWT_SECRET", "0123456789abcdef0123")
}

func TestLoad_DefaultsAndEnv(t *testing.T) {
	setRequired(t)
	t.Setenv("POOL_NEAR_EXPIRY_DAYS", "5")

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.App.Port != "3000" {
		t.Errorf("Expected default port 3000, got %s", cfg.App.Port)
	}
	if cfg.Auth.TokenTTL != 24*time.Hour {
		t.Errorf("Expected token ttl 24h, got %s", cfg.Auth.TokenTTL)
	}
	if cfg.Pool.NearExpiryDays != 5 {
		t.Errorf("Expected near expiry days 5, got %d", cfg.Pool.NearExpiryDays)
	}
	if cfg.Pool.OverstockQty != 0 {
		t.Errorf("Expected overstock sweep disabled, got %d", cfg.Pool.OverstockQty)
	}
}

func TestLoad_EnvFile(t *testing.T) {
	setRequired(t)
	envFile := filepath.Join(t.TempDir(), "test.env")
	if err := os.WriteFile(envFile, []byte("POOL_OVERSTOCK_QTY=80\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { os.Unsetenv("POOL_OVERSTOCK_QTY") })

	cfg, err := Load(envFile)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Pool.OverstockQty != 80 {
		t.Errorf("Expected overstock qty 80, got %d", cfg.Pool.OverstockQty)
	}
}

func TestValidate(t *testing.T) {
	base := func() *Config {
		return &Config{
			App:       AppConfig{Port: "3000"},
			Auth:      AuthConfig{JWTSecret: "0123456789abcdef"},
			Scheduler: SchedulerConfig{Timezone: "UTC"},
		}
	}

	testCases := []struct {
		name   string
		mutate func(c *Config)
		ok     bool
	}{
		{"missing database", func(c *Config) {}, false},
		{"dsn set", func(c *Config) { c.Database.DSN = "postgres://x" }, true},
		{"short secret", func(c *Config) { c.Database.DSN = "postgres://x"; c.Auth.JWTSecret = "short" }, false},
		{"negative horizon", func(c *Config) { c.Database.DSN = "postgres://x"; c.Pool.NearExpiryDays = -1 }, false},
		{"bad timezone", func(c *Config) { c.Database.DSN = "postgres://x"; c.Scheduler.Timezone = "Mars/Olympus" }, false},
		{"two report sinks", func(c *Config) {
			c.Database.DSN = "postgres://x"
			c.Report.Dir = "/tmp"
			c.Report.S3Bucket = "reports"
		}, false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			c := base()
			tc.mutate(c)
			err := c.Validate()
			if tc.ok && err != nil {
				t.Errorf("Expected valid config, got %v", err)
			}
			if !tc.ok && err == nil {
				t.Errorf("Expected validation error for %s", tc.name)
			}
		})
	}
}
