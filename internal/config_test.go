package internal

import (
	"strings"
	"testing"
	"time"
)

func TestDefaultConfigValid(t *testing.T) {
	cfg := NewDefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config should validate: %v", err)
	}
}

func TestAuthConfig_DisabledMode(t *testing.T) {
	cfg := AuthConfig{Mode: "disabled", Token: ""}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("disabled mode should pass: %v", err)
	}
	if cfg.AuthEnabled() {
		t.Error("disabled mode should not be enabled")
	}
}

func TestAuthConfig_EmptyModeDefaultsDisabled(t *testing.T) {
	cfg := AuthConfig{Mode: "", Token: ""}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("empty mode should default to disabled: %v", err)
	}
	if cfg.Mode != AuthModeDisabled {
		t.Errorf("mode = %q, want %q", cfg.Mode, AuthModeDisabled)
	}
}

func TestAuthConfig_TokenModeValid(t *testing.T) {
	cfg := AuthConfig{Mode: "token", Token: "mysecret"}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("token mode with token should pass: %v", err)
	}
	if !cfg.AuthEnabled() {
		t.Error("token mode should be enabled")
	}
}

func TestAuthConfig_TokenModeEmptyToken(t *testing.T) {
	cfg := AuthConfig{Mode: "token", Token: ""}
	err := cfg.Validate()
	if err == nil {
		t.Fatal("token mode with empty token should fail")
	}
	if !strings.Contains(err.Error(), "token is empty") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestAuthConfig_InvalidMode(t *testing.T) {
	cfg := AuthConfig{Mode: "magic", Token: "x"}
	if err := cfg.Validate(); err == nil {
		t.Fatal("invalid mode should fail validation")
	}
}

func TestCacheConfig_Durations(t *testing.T) {
	cfg := CacheConfig{TTLSeconds: 3600, FetchTimeoutSeconds: 30}
	if cfg.TTL() != time.Hour {
		t.Errorf("TTL = %v, want 1h", cfg.TTL())
	}
	if cfg.FetchTimeout() != 30*time.Second {
		t.Errorf("FetchTimeout = %v, want 30s", cfg.FetchTimeout())
	}
}

func TestCacheConfig_RequiresFields(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Cache.Dir = ""
	if err := cfg.Validate(); err == nil {
		t.Fatal("empty cache dir should fail validation")
	}
}

func TestRegistryConfig_RequiresLogPath(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Registry.LogPath = ""
	if err := cfg.Validate(); err == nil {
		t.Fatal("empty registry log path should fail validation")
	}
}

func TestDiscoveryConfig_EmptyOrgAllowed(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Discovery.Org = ""
	if err := cfg.Validate(); err != nil {
		t.Fatalf("empty org should be valid (discovery disabled): %v", err)
	}
}

func TestFullConfig_AuthValidationCalled(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Auth.Mode = "token"
	cfg.Auth.Token = ""
	if err := cfg.Validate(); err == nil {
		t.Fatal("full config validate should catch auth error")
	}
}
