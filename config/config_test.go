package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "client.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadAndMap(t *testing.T) {
	path := writeConfig(t, `
servers:
  - "nats://localhost:4222"
  - "nats://localhost:4223"
name: "orders-worker"
reconnect:
  preset: aggressive
  max_attempts: 20
timeouts:
  request: "2s"
  ping_interval: "30s"
  max_pings_out: 3
echo: false
inbox_prefix: "_REPLIES"
metrics:
  enabled: true
  listen: ":9090"
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}

	opts, err := cfg.Options()
	if err != nil {
		t.Fatalf("mapping options: %v", err)
	}

	if len(opts.Servers) != 2 {
		t.Fatalf("servers = %v", opts.Servers)
	}
	if opts.Name != "orders-worker" {
		t.Errorf("name = %q", opts.Name)
	}
	if opts.RequestTimeout != 2*time.Second {
		t.Errorf("request timeout = %v", opts.RequestTimeout)
	}
	if opts.PingInterval != 30*time.Second {
		t.Errorf("ping interval = %v", opts.PingInterval)
	}
	if opts.MaxPingsOut != 3 {
		t.Errorf("max pings out = %d", opts.MaxPingsOut)
	}
	if opts.Echo {
		t.Error("echo not disabled")
	}
	if opts.InboxPrefix != "_REPLIES" {
		t.Errorf("inbox prefix = %q", opts.InboxPrefix)
	}
	if !opts.MetricsEnabled {
		t.Error("metrics not enabled")
	}

	// Preset applied, then overridden field by field.
	if opts.Reconnect.MaxAttempts != 20 {
		t.Errorf("reconnect max attempts = %d", opts.Reconnect.MaxAttempts)
	}
	if opts.Reconnect.InitialDelay != 50*time.Millisecond {
		t.Errorf("reconnect initial delay = %v", opts.Reconnect.InitialDelay)
	}
}

func TestDefaultsWhenEmpty(t *testing.T) {
	path := writeConfig(t, "{}\n")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	opts, err := cfg.Options()
	if err != nil {
		t.Fatal(err)
	}
	if len(opts.Servers) != 1 || opts.Servers[0] != "nats://localhost:4222" {
		t.Errorf("servers = %v", opts.Servers)
	}
	if !opts.Echo {
		t.Error("echo default should be true")
	}
	if opts.RequestTimeout != 5*time.Second {
		t.Errorf("request timeout = %v", opts.RequestTimeout)
	}
}

func TestValidateRejectsConflictingAuth(t *testing.T) {
	path := writeConfig(t, `
auth:
  token: "secret"
  user: "alice"
`)
	if _, err := Load(path); err == nil {
		t.Fatal("expected validation error for conflicting auth")
	}
}

func TestValidateRejectsUnknownPreset(t *testing.T) {
	path := writeConfig(t, `
reconnect:
  preset: "warp-speed"
`)
	if _, err := Load(path); err == nil {
		t.Fatal("expected validation error for unknown preset")
	}
}

func TestValidateRejectsHalfTLSPair(t *testing.T) {
	path := writeConfig(t, `
tls:
  cert_file: "/etc/certs/client.pem"
`)
	if _, err := Load(path); err == nil {
		t.Fatal("expected validation error for cert without key")
	}
}

func TestInvalidDuration(t *testing.T) {
	path := writeConfig(t, `
timeouts:
  request: "soon"
`)
	if _, err := Load(path); err == nil {
		t.Fatal("expected parse error for invalid duration")
	}
}
