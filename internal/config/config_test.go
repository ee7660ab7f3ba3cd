package config

import (
	"strings"
	"testing"
)

func devConfig() *Config {
	return &Config{
		Port:              "8000",
		Env:               "development",
		DatabaseURL:       "postgres://localhost/vigil",
		FlagThreshold:     30,
		HysteresisDelta:   10,
		SeverityMediumMin: 31,
		SeverityHighMin:   71,
	}
}

func TestValidate_DevWithoutSecret(t *testing.T) {
	cfg := devConfig()
	if err := cfg.Validate(); err != nil {
		t.Errorf("development config should not require AUTH_SECRET: %v", err)
	}
}

func TestValidate_ProductionRequiresSecret(t *testing.T) {
	cfg := devConfig()
	cfg.Env = "production"
	err := cfg.Validate()
	if err == nil || !strings.Contains(err.Error(), "AUTH_SECRET") {
		t.Errorf("expected AUTH_SECRET error, got %v", err)
	}

	cfg.AuthSecret = "super-secret"
	if err := cfg.Validate(); err != nil {
		t.Errorf("unexpected error with secret set: %v", err)
	}
}

func TestValidate_Tunables(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"negative flag threshold", func(c *Config) { c.FlagThreshold = -1 }},
		{"flag threshold above 100", func(c *Config) { c.FlagThreshold = 101 }},
		{"negative hysteresis", func(c *Config) { c.HysteresisDelta = -5 }},
		{"inverted cut points", func(c *Config) { c.SeverityMediumMin = 80; c.SeverityHighMin = 40 }},
		{"high cut above 100", func(c *Config) { c.SeverityHighMin = 120 }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := devConfig()
			tc.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/vigil")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Port != "8000" {
		t.Errorf("expected default port 8000, got %s", cfg.Port)
	}
	if cfg.FlagThreshold != 30 || cfg.HysteresisDelta != 10 {
		t.Errorf("unexpected detection defaults: %d / %d", cfg.FlagThreshold, cfg.HysteresisDelta)
	}
	if cfg.SeverityMediumMin != 31 || cfg.SeverityHighMin != 71 {
		t.Errorf("unexpected severity cut points: %d / %d", cfg.SeverityMediumMin, cfg.SeverityHighMin)
	}
}

func TestLoad_MissingDatabaseURL(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	if _, err := Load(); err == nil {
		t.Error("expected error without DATABASE_URL")
	}
}
