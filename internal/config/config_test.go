package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load()

	if cfg.Port != "8080" {
		t.Errorf("Port = %q, want 8080", cfg.Port)
	}
	if cfg.SlotScanDays != 5 {
		t.Errorf("SlotScanDays = %d, want 5", cfg.SlotScanDays)
	}
	if cfg.SlotMinUseful != 2 {
		t.Errorf("SlotMinUseful = %d, want 2", cfg.SlotMinUseful)
	}
	if cfg.NexHealthTimeout != 15*time.Second {
		t.Errorf("NexHealthTimeout = %v, want 15s", cfg.NexHealthTimeout)
	}
	if cfg.LunchWindowStart != "13:00" || cfg.LunchWindowEnd != "14:00" {
		t.Errorf("lunch window = %s-%s, want 13:00-14:00", cfg.LunchWindowStart, cfg.LunchWindowEnd)
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("SLOT_SCAN_DAYS", "10")
	t.Setenv("CALL_STATE_TTL", "30m")
	t.Setenv("REDIS_TLS", "true")

	cfg := Load()

	if cfg.SlotScanDays != 10 {
		t.Errorf("SlotScanDays = %d, want 10", cfg.SlotScanDays)
	}
	if cfg.CallStateTTL != 30*time.Minute {
		t.Errorf("CallStateTTL = %v, want 30m", cfg.CallStateTTL)
	}
	if !cfg.RedisTLS {
		t.Error("RedisTLS should be true")
	}
}
