package netmsgconfig

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	if cfg.Server.Port != 48575 || cfg.Client.Port != 48575 {
		t.Fatalf("unexpected default ports: %+v", cfg)
	}
	if cfg.Server.Timeout != 10*time.Second {
		t.Fatalf("unexpected default timeout: %v", cfg.Server.Timeout)
	}
	if len(cfg.Codec.Protocols) != 2 || cfg.Codec.Protocols[0] != "msgpack" {
		t.Fatalf("unexpected default protocols: %v", cfg.Codec.Protocols)
	}
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "netmsg.yaml")
	contents := []byte("server:\n  host: 0.0.0.0\n  port: 9000\ncodec:\n  protocols: [json]\n")
	if err := os.WriteFile(path, contents, 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Host != "0.0.0.0" || cfg.Server.Port != 9000 {
		t.Fatalf("server override not applied: %+v", cfg.Server)
	}
	if cfg.Client.Port != 48575 {
		t.Fatalf("expected client section to keep its default, got %+v", cfg.Client)
	}
	if len(cfg.Codec.Protocols) != 1 || cfg.Codec.Protocols[0] != "json" {
		t.Fatalf("codec override not applied: %v", cfg.Codec.Protocols)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("expected an error for a missing config file")
	}
}
