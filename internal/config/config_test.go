package config

import (
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("HTTP_ADDRESS", "")
	t.Setenv("GROQ_MODEL_ID", "")
	t.Setenv("SETTLE_DELAY_MS", "")
	cfg := Load()
	if cfg.HTTPAddress != ":8080" {
		t.Fatalf("http address = %q", cfg.HTTPAddress)
	}
	if cfg.GroqModelID != "llama-3.3-70b-versatile" {
		t.Fatalf("model id = %q", cfg.GroqModelID)
	}
	if cfg.SettleDelay != time.Second {
		t.Fatalf("settle delay = %v", cfg.SettleDelay)
	}
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("HTTP_ADDRESS", ":9000")
	t.Setenv("GROQ_MODEL_ID", "llama-3.1-8b-instant")
	t.Setenv("SETTLE_DELAY_MS", "250")
	cfg := Load()
	if cfg.HTTPAddress != ":9000" {
		t.Fatalf("http address = %q", cfg.HTTPAddress)
	}
	if cfg.GroqModelID != "llama-3.1-8b-instant" {
		t.Fatalf("model id = %q", cfg.GroqModelID)
	}
	if cfg.SettleDelay != 250*time.Millisecond {
		t.Fatalf("settle delay = %v", cfg.SettleDelay)
	}
}

func TestLoad_IgnoresBadSettleDelay(t *testing.T) {
	t.Setenv("SETTLE_DELAY_MS", "soon")
	if cfg := Load(); cfg.SettleDelay != time.Second {
		t.Fatalf("settle delay = %v, want default", cfg.SettleDelay)
	}
}
