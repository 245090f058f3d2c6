// Package config resolves gateway-wide configuration from a config file,
// environment variables (AGENTGATEWAY_* prefix), and CLI flags, in that
// ascending order of precedence.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/teradata-labs/agentgateway"
)

// ScopePerProcess is the default RPC connection scope: one subprocess
// shared by every rpc-kind session.
const ScopePerProcess = "per-process"

// Config is the root configuration object for cmd/agentgatewayd.
type Config struct {
	// Server controls the HTTP surface (internal/httpapi).
	Server ServerConfig `mapstructure:"server"`
	// Agents maps each AgentKind to its binary path override.
	Agents map[string]string `mapstructure:"agents"`
	// Sidecar configures the sidecar driver (internal/driver/sidecar).
	Sidecar SidecarConfig `mapstructure:"sidecar"`
	// RPC configures the RPC driver (internal/driver/rpc).
	RPC RPCConfig `mapstructure:"rpc"`
	// Logging controls internal/obslog's zap construction.
	Logging LoggingConfig `mapstructure:"logging"`
}

// ServerConfig controls bind address and auth.
type ServerConfig struct {
	// Addr is the listen address, e.g. ":8088".
	Addr string `mapstructure:"addr"`
	// Token, if non-empty, gates every route except /v1/healthz.
	Token string `mapstructure:"token"`
}

// SidecarConfig controls the sidecar driver's singleton lifecycle.
type SidecarConfig struct {
	Binary         string `mapstructure:"binary"`
	PortRangeStart int    `mapstructure:"port_range_start"`
	PortRangeEnd   int    `mapstructure:"port_range_end"`
}

// RPCConfig controls the RPC driver's connection scope and launch args.
type RPCConfig struct {
	// Scope is "per-process" (default) or "per-session".
	Scope  string   `mapstructure:"scope"`
	Binary string   `mapstructure:"binary"`
	Args   []string `mapstructure:"args"`
}

// LoggingConfig controls internal/obslog.
type LoggingConfig struct {
	Level string `mapstructure:"level"`
	JSON  bool   `mapstructure:"json"`
}

// Defaults returns the built-in configuration: listen on :8088, no token,
// PATH-resolved agent binaries, the sidecar's fixed port range, and the
// per-process RPC scope.
func Defaults() Config {
	return Config{
		Server: ServerConfig{Addr: ":8088"},
		Agents: map[string]string{
			string(agentgateway.KindClaude):   "claude",
			string(agentgateway.KindCodex):    "codex",
			string(agentgateway.KindOpenCode): "opencode",
		},
		Sidecar: SidecarConfig{
			Binary:         "agent-sidecar",
			PortRangeStart: 41000,
			PortRangeEnd:   41099,
		},
		RPC: RPCConfig{
			Scope:  ScopePerProcess,
			Binary: "agent-rpc",
		},
		Logging: LoggingConfig{Level: "info"},
	}
}

// Load resolves configuration from defaults, a config file (if present via
// --config or the default search path), AGENTGATEWAY_*-prefixed environment
// variables, and CLI flags, in that increasing order of precedence. Flags
// only ever override addr/token.
func Load(flags *pflag.FlagSet) (Config, error) {
	v := viper.New()
	cfg := Defaults()

	v.SetConfigName("agentgateway")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("$HOME/.config/agentgateway")
	v.AddConfigPath("/etc/agentgateway")

	if flags != nil {
		if path, err := flags.GetString("config"); err == nil && path != "" {
			v.SetConfigFile(path)
		}
	}

	v.SetEnvPrefix("AGENTGATEWAY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v, cfg)

	if err := v.ReadInConfig(); err != nil {
		if _, notFound := err.(viper.ConfigFileNotFoundError); !notFound {
			return Config{}, fmt.Errorf("config: read: %w", err)
		}
	}

	if flags != nil {
		if f := flags.Lookup("addr"); f != nil {
			if err := v.BindPFlag("server.addr", f); err != nil {
				return Config{}, fmt.Errorf("config: bind flags: %w", err)
			}
		}
		if f := flags.Lookup("token"); f != nil {
			if err := v.BindPFlag("server.token", f); err != nil {
				return Config{}, fmt.Errorf("config: bind flags: %w", err)
			}
		}
	}

	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("config: unmarshal: %w", err)
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper, cfg Config) {
	v.SetDefault("server.addr", cfg.Server.Addr)
	v.SetDefault("server.token", cfg.Server.Token)
	v.SetDefault("sidecar.binary", cfg.Sidecar.Binary)
	v.SetDefault("sidecar.port_range_start", cfg.Sidecar.PortRangeStart)
	v.SetDefault("sidecar.port_range_end", cfg.Sidecar.PortRangeEnd)
	v.SetDefault("rpc.scope", cfg.RPC.Scope)
	v.SetDefault("rpc.binary", cfg.RPC.Binary)
	v.SetDefault("logging.level", cfg.Logging.Level)
	v.SetDefault("logging.json", cfg.Logging.JSON)
	for k, val := range cfg.Agents {
		v.SetDefault("agents."+k, val)
	}
}

// ShutdownGrace is how long cmd/agentgatewayd waits for in-flight requests
// during a graceful shutdown before forcing close.
const ShutdownGrace = 10 * time.Second
