package config

import "testing"

func TestLoadDefaults(t *testing.T) {
	tests := []struct {
		name  string
		check func(*Config) bool
	}{
		{"default host is 0.0.0.0", func(c *Config) bool { return c.Host == "0.0.0.0" }},
		{"default port is 8080", func(c *Config) bool { return c.Port == 8080 }},
		{"default log level is info", func(c *Config) bool { return c.LogLevel == "info" }},
		{"default log format is json", func(c *Config) bool { return c.LogFormat == "json" }},
		{"default metrics path", func(c *Config) bool { return c.MetricsPath == "/metrics" }},
		{"listen addr format", func(c *Config) bool { return c.ListenAddr() == "0.0.0.0:8080" }},
		{"default pg auth mode is password", func(c *Config) bool { return c.PGAuthMode == "password" }},
		{"default background refresh interval", func(c *Config) bool { return c.BackgroundRefreshIntervalSec == 2700 }},
		{"default min token ttl", func(c *Config) bool { return c.MinTokenTTLSec == 300 }},
		{"default readyz min token ttl", func(c *Config) bool { return c.ReadyzMinTokenTTLSec == 60 }},
		{"default database required", func(c *Config) bool { return c.DatabaseRequired == true }},
		{"default credential source is managed-identity", func(c *Config) bool { return c.CredentialSource() == "managed-identity" }},
	}

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if !tt.check(cfg) {
				t.Errorf("unexpected config value for %q", tt.name)
			}
		})
	}
}

func TestVectorSchemaListTrimsAndFiltersBlanks(t *testing.T) {
	cfg := &Config{VectorSchemas: []string{" public ", "", "stac", "  "}}
	got := cfg.VectorSchemaList()
	want := []string{"public", "stac"}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("index %d: got %q, want %q", i, got[i], want[i])
		}
	}
}

func TestVectorSchemaListEmpty(t *testing.T) {
	cfg := &Config{}
	got := cfg.VectorSchemaList()
	if len(got) != 0 {
		t.Errorf("expected empty list, got %v", got)
	}
}

func TestCredentialSourceDevMode(t *testing.T) {
	cfg := &Config{DevModeCredential: true}
	if got := cfg.CredentialSource(); got != "developer-cli" {
		t.Errorf("got %q, want developer-cli", got)
	}
}
