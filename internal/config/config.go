package config

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// Config is the root configuration for the ThreadClaw gateway.
type Config struct {
	Agents    []AgentConfig   `json:"agents"`
	Rooms     []RoomConfig    `json:"rooms"`
	Channels  ChannelsConfig  `json:"channels"`
	Gateway   GatewayConfig   `json:"gateway"`
	Cleanup   CleanupConfig   `json:"cleanup,omitempty"`
	Routing   RoutingConfig   `json:"routing,omitempty"`
	Executor  ExecutorConfig  `json:"executor,omitempty"`
	Database  DatabaseConfig  `json:"database,omitempty"`
	Telemetry TelemetryConfig `json:"telemetry,omitempty"`
	mu        sync.RWMutex
}

// AgentConfig declares one agent known to the platform.
type AgentConfig struct {
	Name        string `json:"name"`
	DisplayName string `json:"display_name,omitempty"`
	Description string `json:"description,omitempty"`
	// RateLimitRPM caps dispatches per minute for this agent. Zero uses
	// the gateway default.
	RateLimitRPM int `json:"rate_limit_rpm,omitempty"`
}

// RoomConfig declares a room and the agents natively belonging to it.
type RoomConfig struct {
	ID     string   `json:"id"`
	Name   string   `json:"name,omitempty"`
	Agents []string `json:"agents"` // native members, in configured order
}

// ChannelsConfig configures chat platform adapters.
type ChannelsConfig struct {
	Discord DiscordConfig `json:"discord,omitempty"`
}

// DiscordConfig configures the Discord adapter.
// Token is NEVER read from the config file (secret) — env THREADCLAW_DISCORD_TOKEN only.
type DiscordConfig struct {
	Enabled   bool     `json:"enabled,omitempty"`
	Token     string   `json:"-"`
	GuildID   string   `json:"guild_id,omitempty"`
	AllowFrom []string `json:"allow_from,omitempty"` // sender allowlist; empty = open
	// AgentUsers maps agent names to Discord user IDs so /uninvite can
	// revoke room access. Agents without a mapping are skipped.
	AgentUsers map[string]string `json:"agent_users,omitempty"`
}

// GatewayConfig configures the ops gateway server.
type GatewayConfig struct {
	Host         string `json:"host"`
	Port         int    `json:"port"`
	RateLimitRPM int    `json:"rate_limit_rpm,omitempty"` // default per-agent dispatch cap
}

// CleanupConfig tunes the invitation sweeper.
type CleanupConfig struct {
	IntervalSeconds int    `json:"interval_seconds,omitempty"` // default 60
	CronExpr        string `json:"cron,omitempty"`             // optional cron override
	StaleAfterHours int    `json:"stale_after_hours,omitempty"`
}

// Interval returns the sweep interval as a duration.
func (c CleanupConfig) Interval() time.Duration {
	if c.IntervalSeconds <= 0 {
		return 60 * time.Second
	}
	return time.Duration(c.IntervalSeconds) * time.Second
}

// RoutingConfig configures the external routing suggester.
type RoutingConfig struct {
	URL            string `json:"url,omitempty"` // empty disables rule-4 routing
	TimeoutSeconds int    `json:"timeout_seconds,omitempty"`
}

// ExecutorConfig configures the external agent runtime. When URL is
// empty the gateway falls back to the built-in echo executor.
type ExecutorConfig struct {
	URL            string `json:"url,omitempty"`
	TimeoutSeconds int    `json:"timeout_seconds,omitempty"`
}

// DatabaseConfig selects the storage backend.
// PostgresDSN is NEVER read from the config file — env THREADCLAW_POSTGRES_DSN only.
type DatabaseConfig struct {
	Mode        string `json:"mode,omitempty"` // "standalone" (default, sqlite) or "managed" (postgres)
	SQLitePath  string `json:"sqlite_path,omitempty"`
	PostgresDSN string `json:"-"`
}

// IsManagedMode reports whether the gateway runs against Postgres.
func (c *Config) IsManagedMode() bool {
	return c.Database.Mode == "managed" && c.Database.PostgresDSN != ""
}

// TelemetryConfig configures OTLP trace export.
type TelemetryConfig struct {
	Enabled     bool   `json:"enabled,omitempty"`
	Endpoint    string `json:"endpoint,omitempty"` // host:port of the OTLP HTTP collector
	ServiceName string `json:"service_name,omitempty"`
	Insecure    bool   `json:"insecure,omitempty"`
}

// AgentNames returns the configured agent names in order.
func (c *Config) AgentNames() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]string, 0, len(c.Agents))
	for _, a := range c.Agents {
		out = append(out, a.Name)
	}
	return out
}

// KnownAgent reports whether name is a configured agent (case-insensitive).
func (c *Config) KnownAgent(name string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, a := range c.Agents {
		if strings.EqualFold(a.Name, name) {
			return true
		}
	}
	return false
}

// RoomNatives returns the native agents of a room, in configured order.
func (c *Config) RoomNatives(roomID string) []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, r := range c.Rooms {
		if r.ID == roomID {
			return append([]string(nil), r.Agents...)
		}
	}
	return nil
}

// SetRoster replaces the agents and rooms sections. Used by the config
// watcher on hot reload.
func (c *Config) SetRoster(agents []AgentConfig, rooms []RoomConfig) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Agents = agents
	c.Rooms = rooms
}

// ExpandHome expands a leading ~ to the user's home directory.
func ExpandHome(path string) string {
	if path == "~" || strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, strings.TrimPrefix(path, "~"))
	}
	return path
}
