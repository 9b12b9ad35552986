package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func validConfig() Config {
	var c Config
	c.Server.Port = 8080
	c.WebSocket.OverflowPolicy = OverflowDisconnect
	c.WebSocket.SendBuffer = 16
	c.Storage.Driver = "local"
	c.Events.Driver = "none"
	c.Database.Driver = "sqlite"
	c.Persist.Workers = 1
	c.Persist.QueueSize = 8
	return c
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"valid", func(*Config) {}, ""},
		{"drop oldest", func(c *Config) { c.WebSocket.OverflowPolicy = OverflowDropOldest }, ""},
		{"bad overflow", func(c *Config) { c.WebSocket.OverflowPolicy = "block" }, "overflow_policy"},
		{"bad storage", func(c *Config) { c.Storage.Driver = "gcs" }, "storage.driver"},
		{"bad events", func(c *Config) { c.Events.Driver = "nats" }, "events.driver"},
		{"bad db", func(c *Config) { c.Database.Driver = "oracle" }, "database.driver"},
		{"zero buffer", func(c *Config) { c.WebSocket.SendBuffer = 0 }, "send_buffer"},
		{"zero workers", func(c *Config) { c.Persist.Workers = 0 }, "persist.workers"},
		{"zero queue", func(c *Config) { c.Persist.QueueSize = 0 }, "queue_size"},
		{"negative persist timeout", func(c *Config) { c.Persist.Timeout = -time.Second }, "persist.timeout"},
		{"bad port", func(c *Config) { c.Server.Port = 70000 }, "server.port"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := validConfig()
			tt.mutate(&c)
			err := c.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("err = %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestLoad_Defaults(t *testing.T) {
	chdirTemp(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("port = %d, want 8080", cfg.Server.Port)
	}
	if cfg.WebSocket.PongWait != 60*time.Second {
		t.Errorf("pong wait = %v, want 60s", cfg.WebSocket.PongWait)
	}
	if cfg.WebSocket.IdleTimeout != 5*time.Minute {
		t.Errorf("idle timeout = %v, want 5m", cfg.WebSocket.IdleTimeout)
	}
	if cfg.WebSocket.OverflowPolicy != OverflowDisconnect {
		t.Errorf("overflow = %q", cfg.WebSocket.OverflowPolicy)
	}
	if !cfg.Calls.VerifyParticipants {
		t.Error("verify_participants should default to true")
	}
	if cfg.Storage.Local.URLPrefix != "/uploads" {
		t.Errorf("url prefix = %q", cfg.Storage.Local.URLPrefix)
	}
	if cfg.Persist.Timeout != 10*time.Second {
		t.Errorf("persist timeout = %v, want 10s", cfg.Persist.Timeout)
	}
}

func TestLoad_EnvOverride(t *testing.T) {
	chdirTemp(t)
	t.Setenv("PORT", "9090")
	t.Setenv("MESSENGER_WEBSOCKET_OVERFLOW_POLICY", OverflowDropOldest)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Port != 9090 {
		t.Errorf("port = %d, want 9090", cfg.Server.Port)
	}
	if cfg.WebSocket.OverflowPolicy != OverflowDropOldest {
		t.Errorf("overflow = %q, want drop_oldest", cfg.WebSocket.OverflowPolicy)
	}
}

func TestLoad_File(t *testing.T) {
	chdirTemp(t)
	writeConfig(t, "server:\n  port: 7070\nmedia:\n  thumbnail_width: 128\npersist:\n  timeout: 250ms\n")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Port != 7070 {
		t.Errorf("port = %d, want 7070", cfg.Server.Port)
	}
	if !cfg.Media.Enabled || cfg.Media.Width != 128 || cfg.Media.Height != 320 {
		t.Errorf("media = %+v", cfg.Media)
	}
	if cfg.Persist.Timeout != 250*time.Millisecond {
		t.Errorf("persist timeout = %v, want 250ms", cfg.Persist.Timeout)
	}
}

func TestWatch_NoFile(t *testing.T) {
	chdirTemp(t)
	if err := Watch(func(*Config) {}); !errors.Is(err, ErrNoConfigFile) {
		t.Fatalf("err = %v, want ErrNoConfigFile", err)
	}
}

func TestWatch_Reload(t *testing.T) {
	chdirTemp(t)
	writeConfig(t, "log:\n  level: info\n")

	levels := make(chan string, 8)
	if err := Watch(func(c *Config) { levels <- c.Log.Level }); err != nil {
		t.Fatalf("Watch: %v", err)
	}
	writeConfig(t, "log:\n  level: debug\n")

	deadline := time.After(5 * time.Second)
	for {
		select {
		case lvl := <-levels:
			if lvl == "debug" {
				return
			}
		case <-deadline:
			t.Fatal("no reload observed")
		}
	}
}

func writeConfig(t *testing.T, body string) {
	t.Helper()
	if err := os.MkdirAll("config", 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join("config", "config.yaml"), []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
}

// chdirTemp moves into an empty directory so no config file is picked up.
func chdirTemp(t *testing.T) {
	t.Helper()
	wd, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(t.TempDir()); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { os.Chdir(wd) })
}
