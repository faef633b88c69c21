package core

import (
	"context"
	"testing"
	"time"
)

func TestConfigValidate(t *testing.T) {
	if err := DefaultConfig().Validate(); err != nil {
		t.Fatalf("expected defaults to validate: %v", err)
	}

	cfg := DefaultConfig()
	cfg.ServiceName = " "
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected service_name requirement")
	}

	cfg = DefaultConfig()
	cfg.SearchLimit = -1
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected negative search_limit rejection")
	}

	cfg = DefaultConfig()
	cfg.Token.Bytes = 8
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected weak token entropy rejection")
	}
}

func TestConfigAccessorsFallBackToDefaults(t *testing.T) {
	var cfg Config
	if cfg.tokenLifetime() != time.Hour {
		t.Fatalf("expected hour default lifetime, got %v", cfg.tokenLifetime())
	}
	if cfg.tokenBytes() != 64 {
		t.Fatalf("expected 64 default entropy bytes, got %d", cfg.tokenBytes())
	}
	if cfg.searchLimit() != 80 {
		t.Fatalf("expected default search limit of 80, got %d", cfg.searchLimit())
	}

	cfg.Token.Lifetime = 120
	if cfg.tokenLifetime() != 2*time.Minute {
		t.Fatalf("expected configured lifetime, got %v", cfg.tokenLifetime())
	}
}

func TestCfgxConfigProvider_MergesRawValuesOverDefaults(t *testing.T) {
	provider := NewCfgxConfigProvider(staticRawConfigLoader{Values: map[string]any{
		"service_name": "tenant-a",
		"search_limit": 25,
	}})

	cfg, err := provider.Load(context.Background(), DefaultConfig())
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.ServiceName != "tenant-a" {
		t.Fatalf("expected loaded service name, got %q", cfg.ServiceName)
	}
	if cfg.SearchLimit != 25 {
		t.Fatalf("expected loaded search limit, got %d", cfg.SearchLimit)
	}
	if cfg.DefaultEntity != "res.partner" {
		t.Fatalf("expected untouched default entity, got %q", cfg.DefaultEntity)
	}
}

func TestGoOptionsResolver_RuntimeWinsOverLoaded(t *testing.T) {
	defaults := DefaultConfig()

	loaded := DefaultConfig()
	loaded.SearchLimit = 25
	loaded.ServiceName = "tenant-a"

	runtime := Config{SearchLimit: 10}

	resolved, err := GoOptionsResolver{}.Resolve(defaults, loaded, runtime)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if resolved.SearchLimit != 10 {
		t.Fatalf("expected runtime layer to win, got %d", resolved.SearchLimit)
	}
	if resolved.ServiceName != "tenant-a" {
		t.Fatalf("expected loaded layer to beat defaults, got %q", resolved.ServiceName)
	}
	if resolved.Token.Lifetime != defaults.Token.Lifetime {
		t.Fatalf("expected default token lifetime to survive, got %d", resolved.Token.Lifetime)
	}
}
