package main

import (
	"testing"

	"github.com/voicehive-hotels/orchestrator/pkg/config"
)

func TestResolveDSNPrecedence(t *testing.T) {
	cfg := config.New()
	cfg.Database.DSN = "postgres://from-config"

	if got := resolveDSN("postgres://from-flag", cfg); got != "postgres://from-flag" {
		t.Fatalf("resolveDSN() = %q, want flag value", got)
	}
	if got := resolveDSN("", cfg); got != "postgres://from-config" {
		t.Fatalf("resolveDSN() = %q, want config value", got)
	}
	if got := resolveDSN("", nil); got != "" {
		t.Fatalf("resolveDSN() = %q, want empty for nil config", got)
	}
}
