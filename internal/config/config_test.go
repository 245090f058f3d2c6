package config

import (
	"testing"

	"github.com/spf13/pflag"
)

func TestLoadAppliesDefaultsWithNoFileOrFlags(t *testing.T) {
	cfg, err := Load(nil)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Addr != ":8088" {
		t.Fatalf("got addr %q, want :8088", cfg.Server.Addr)
	}
	if cfg.RPC.Scope != ScopePerProcess {
		t.Fatalf("got rpc scope %q, want %q", cfg.RPC.Scope, ScopePerProcess)
	}
	if cfg.Sidecar.PortRangeStart != 41000 || cfg.Sidecar.PortRangeEnd != 41099 {
		t.Fatalf("got port range [%d,%d], want [41000,41099]", cfg.Sidecar.PortRangeStart, cfg.Sidecar.PortRangeEnd)
	}
}

func TestLoadFlagOverridesDefault(t *testing.T) {
	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.String("addr", "", "")
	flags.String("token", "", "")
	flags.String("config", "", "")
	if err := flags.Set("addr", ":9999"); err != nil {
		t.Fatalf("set addr: %v", err)
	}

	cfg, err := Load(flags)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Addr != ":9999" {
		t.Fatalf("got addr %q, want :9999 (flag override)", cfg.Server.Addr)
	}
}
