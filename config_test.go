package httpdispatch

import (
	"os"
	"testing"
)

func TestDefaultConfigMatchesSpecDefaults(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.RedirectLimit != 3 || cfg.MaxConcurrency != 2 || cfg.ConnectTimeoutMs != 30000 ||
		cfg.ReadTimeoutMs != 30000 || cfg.DisableTLSVerification || cfg.UseNativeRedirects ||
		cfg.PromotionIntervalMs != 60000 {
		t.Fatalf("DefaultConfig() = %+v does not match spec defaults", cfg)
	}
}

func TestLoadConfigOverridesFromEnv(t *testing.T) {
	os.Setenv("HTTPDISPATCH_MAX_CONCURRENCY", "9")
	defer os.Unsetenv("HTTPDISPATCH_MAX_CONCURRENCY")

	cfg := LoadConfig()
	if cfg.MaxConcurrency != 9 {
		t.Fatalf("MaxConcurrency = %d, want 9", cfg.MaxConcurrency)
	}
}

func TestConfigValidateRejectsBadValues(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxConcurrency = 0
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for zero MaxConcurrency")
	}

	cfg = DefaultConfig()
	cfg.RedirectLimit = -1
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for negative RedirectLimit")
	}
}
