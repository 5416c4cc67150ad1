package engine

import "testing"

func TestLoadConfigDefaults(t *testing.T) {
	cfg := LoadConfig(map[string]string{"Address": "clamd.internal"})

	if cfg.Address != "clamd.internal" {
		t.Fatalf("Address = %q, want clamd.internal", cfg.Address)
	}
	if cfg.Port != DefaultPort {
		t.Fatalf("Port = %q, want default %q", cfg.Port, DefaultPort)
	}
	if cfg.StartupTimeoutSeconds != minStartupTimeoutSeconds {
		t.Fatalf("StartupTimeoutSeconds = %d, want floor %d", cfg.StartupTimeoutSeconds, minStartupTimeoutSeconds)
	}
}

func TestLoadConfigIsCaseInsensitive(t *testing.T) {
	cfg := LoadConfig(map[string]string{
		"address":        "clamd.internal",
		"PORT":           "9310",
		"StartupTimeout": "42",
	})

	if cfg.Address != "clamd.internal" || cfg.Port != "9310" || cfg.StartupTimeoutSeconds != 42 {
		t.Fatalf("unexpected config: %+v", cfg)
	}
}

func TestLoadConfigClampsStartupTimeout(t *testing.T) {
	low := LoadConfig(map[string]string{"StartupTimeout": "1"})
	if low.StartupTimeoutSeconds != minStartupTimeoutSeconds {
		t.Fatalf("low StartupTimeoutSeconds = %d, want %d", low.StartupTimeoutSeconds, minStartupTimeoutSeconds)
	}

	high := LoadConfig(map[string]string{"StartupTimeout": "1000"})
	if high.StartupTimeoutSeconds != maxStartupTimeoutSeconds {
		t.Fatalf("high StartupTimeoutSeconds = %d, want %d", high.StartupTimeoutSeconds, maxStartupTimeoutSeconds)
	}
}

func TestLoadConfigIgnoresUnknownKeysAndBadInts(t *testing.T) {
	cfg := LoadConfig(map[string]string{
		"Address":        "clamd.internal",
		"StartupTimeout": "not-a-number",
		"Unknown":        "ignored",
	})

	if cfg.StartupTimeoutSeconds != minStartupTimeoutSeconds {
		t.Fatalf("StartupTimeoutSeconds = %d, want floor %d after bad input", cfg.StartupTimeoutSeconds, minStartupTimeoutSeconds)
	}
}
