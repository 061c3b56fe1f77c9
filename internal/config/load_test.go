package config

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadMissingFileYieldsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.json"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Gateway.Port != 18791 {
		t.Errorf("Port = %d, want default 18791", cfg.Gateway.Port)
	}
	if cfg.Database.Mode != "standalone" {
		t.Errorf("Mode = %q, want standalone default", cfg.Database.Mode)
	}
	if cfg.Cleanup.Interval() != 60*time.Second {
		t.Errorf("cleanup interval = %v, want 60s default", cfg.Cleanup.Interval())
	}
}

func TestLoadJSON5(t *testing.T) {
	// JSON5: comments and trailing commas are fine.
	path := writeConfig(t, `{
		// the roster
		agents: [
			{name: "claw", rate_limit_rpm: 10},
			{name: "scout"},
		],
		rooms: [
			{id: "room1", agents: ["claw", "scout"]},
		],
		gateway: {host: "0.0.0.0", port: 9000},
		cleanup: {interval_seconds: 30},
	}`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got := cfg.AgentNames(); !reflect.DeepEqual(got, []string{"claw", "scout"}) {
		t.Errorf("AgentNames = %v", got)
	}
	if cfg.Agents[0].RateLimitRPM != 10 {
		t.Errorf("RateLimitRPM = %d, want 10", cfg.Agents[0].RateLimitRPM)
	}
	if cfg.Gateway.Port != 9000 {
		t.Errorf("Port = %d, want 9000", cfg.Gateway.Port)
	}
	if got := cfg.RoomNatives("room1"); !reflect.DeepEqual(got, []string{"claw", "scout"}) {
		t.Errorf("RoomNatives = %v", got)
	}
	if cfg.RoomNatives("unknown") != nil {
		t.Error("RoomNatives for unknown room should be nil")
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("THREADCLAW_PORT", "7777")
	t.Setenv("THREADCLAW_POSTGRES_DSN", "postgres://localhost/threadclaw")
	t.Setenv("THREADCLAW_MODE", "managed")
	t.Setenv("THREADCLAW_DISCORD_TOKEN", "tok-123")

	cfg, err := Load(filepath.Join(t.TempDir(), "nope.json"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Gateway.Port != 7777 {
		t.Errorf("Port = %d, want env override 7777", cfg.Gateway.Port)
	}
	if !cfg.IsManagedMode() {
		t.Error("managed mode should be active with mode+DSN set")
	}
	if !cfg.Channels.Discord.Enabled || cfg.Channels.Discord.Token != "tok-123" {
		t.Errorf("discord = %+v, want enabled with env token", cfg.Channels.Discord)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr bool
	}{
		{
			name:    "valid",
			content: `{agents: [{name: "claw"}], rooms: [{id: "r", agents: ["claw"]}]}`,
		},
		{
			name:    "duplicate agent",
			content: `{agents: [{name: "claw"}, {name: "Claw"}]}`,
			wantErr: true,
		},
		{
			name:    "empty agent name",
			content: `{agents: [{name: ""}]}`,
			wantErr: true,
		},
		{
			name:    "room references unknown agent",
			content: `{agents: [{name: "claw"}], rooms: [{id: "r", agents: ["ghost"]}]}`,
			wantErr: true,
		},
		{
			name:    "room with empty id",
			content: `{agents: [{name: "claw"}], rooms: [{id: "", agents: []}]}`,
			wantErr: true,
		},
		{
			name:    "bad database mode",
			content: `{database: {mode: "clustered"}}`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.content))
			if (err != nil) != tt.wantErr {
				t.Errorf("Load error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestKnownAgentCaseInsensitive(t *testing.T) {
	cfg := Default()
	cfg.Agents = []AgentConfig{{Name: "Claw"}}

	if !cfg.KnownAgent("claw") || !cfg.KnownAgent("CLAW") {
		t.Error("KnownAgent should match case-insensitively")
	}
	if cfg.KnownAgent("ghost") {
		t.Error("KnownAgent should reject unknown names")
	}
}

func TestExpandHome(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("no home directory")
	}
	if got := ExpandHome("~/x.db"); got != filepath.Join(home, "x.db") {
		t.Errorf("ExpandHome = %q", got)
	}
	if got := ExpandHome("/abs/x.db"); got != "/abs/x.db" {
		t.Errorf("ExpandHome mangled an absolute path: %q", got)
	}
}
