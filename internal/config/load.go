package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/titanous/json5"
)

// Default returns a Config with sensible defaults.
func Default() *Config {
	return &Config{
		Gateway: GatewayConfig{
			Host:         "127.0.0.1",
			Port:         18791,
			RateLimitRPM: 30,
		},
		Cleanup: CleanupConfig{
			IntervalSeconds: 60,
		},
		Database: DatabaseConfig{
			Mode:       "standalone",
			SQLitePath: "~/.threadclaw/threadclaw.db",
		},
		Telemetry: TelemetryConfig{
			ServiceName: "threadclaw",
		},
	}
}

// Load reads config from a JSON5 file, then overlays env vars.
// A missing file yields the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg.applyEnvOverrides()
			return cfg, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}

	if err := json5.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	cfg.applyEnvOverrides()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnvOverrides overlays env vars onto the config.
// Env vars take precedence over file values.
func (c *Config) applyEnvOverrides() {
	envStr := func(key string, dst *string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}

	envStr("THREADCLAW_DISCORD_TOKEN", &c.Channels.Discord.Token)
	if c.Channels.Discord.Token != "" {
		c.Channels.Discord.Enabled = true
	}

	envStr("THREADCLAW_HOST", &c.Gateway.Host)
	if v := os.Getenv("THREADCLAW_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil && port > 0 {
			c.Gateway.Port = port
		}
	}

	envStr("THREADCLAW_POSTGRES_DSN", &c.Database.PostgresDSN)
	envStr("THREADCLAW_MODE", &c.Database.Mode)
	envStr("THREADCLAW_SQLITE_PATH", &c.Database.SQLitePath)

	envStr("THREADCLAW_ROUTING_URL", &c.Routing.URL)
	envStr("THREADCLAW_EXECUTOR_URL", &c.Executor.URL)

	envStr("THREADCLAW_TELEMETRY_ENDPOINT", &c.Telemetry.Endpoint)
	envStr("THREADCLAW_TELEMETRY_SERVICE_NAME", &c.Telemetry.ServiceName)
	if v := os.Getenv("THREADCLAW_TELEMETRY_ENABLED"); v != "" {
		c.Telemetry.Enabled = v == "true" || v == "1"
	}
}

// Validate rejects configs the gateway cannot safely run with.
func (c *Config) Validate() error {
	seen := make(map[string]bool)
	for _, a := range c.Agents {
		name := strings.ToLower(a.Name)
		if name == "" {
			return fmt.Errorf("agent with empty name")
		}
		if seen[name] {
			return fmt.Errorf("duplicate agent name %q", a.Name)
		}
		seen[name] = true
	}
	for _, r := range c.Rooms {
		if r.ID == "" {
			return fmt.Errorf("room with empty id")
		}
		for _, a := range r.Agents {
			if !seen[strings.ToLower(a)] {
				return fmt.Errorf("room %q references unknown agent %q", r.ID, a)
			}
		}
	}
	if c.Database.Mode != "" && c.Database.Mode != "standalone" && c.Database.Mode != "managed" {
		return fmt.Errorf("database.mode must be standalone or managed, got %q", c.Database.Mode)
	}
	return nil
}
