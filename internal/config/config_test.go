package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"zerolag/internal/config"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := config.Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
	if cfg.Auth.ChallengeTTL != 10*time.Minute || cfg.Auth.SessionTTL != 24*time.Hour {
		t.Fatalf("unexpected durations %+v", cfg.Auth)
	}
	if cfg.Store.Backend != "sqlite" || cfg.Server.BasePath != "/api" || cfg.Files.MaxInlineBytes != 1_000_000 || cfg.Files.MaxUploadBytes != 10_000_000 {
		t.Fatalf("unexpected defaults %+v", cfg)
	}
}

func TestLoadMissingFileFallsBackToDefaults(t *testing.T) {
	cfg, err := config.Load(t.TempDir())
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.Addr != "127.0.0.1:4000" {
		t.Fatalf("unexpected addr %q", cfg.Server.Addr)
	}
}

func TestLoadOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	yml := `store:
  backend: bolt
auth:
  challenge_ttl: 0s
  admins: ["0x00000000000000000000000000000000000000AA"]
`
	if err := os.WriteFile(filepath.Join(dir, "zerolag.yml"), []byte(yml), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err := config.Load(dir)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Store.Backend != "bolt" || cfg.Auth.ChallengeTTL != 0 {
		t.Fatalf("overrides not applied: %+v", cfg)
	}
	if cfg.Auth.SessionTTL != 24*time.Hour {
		t.Fatalf("unset fields should keep defaults, got %v", cfg.Auth.SessionTTL)
	}
	if !cfg.IsAdmin("0x00000000000000000000000000000000000000aa") || cfg.IsAdmin("0x00000000000000000000000000000000000000bb") {
		t.Fatalf("admin matching should be case-insensitive")
	}
}

func TestValidateRejects(t *testing.T) {
	cases := map[string]string{
		"store backend":     "store: {backend: postgres}",
		"challenge backend": "challenges: {backend: memcached}",
		"redis addr":        "challenges: {backend: redis}",
		"negative ttl":      "auth: {challenge_ttl: -1s}",
		"bad admin":         "auth: {admins: [alice]}",
		"partial chain":     "chain: {rpc_url: http://localhost:8545}",
		"bad contract":      "chain: {rpc_url: http://localhost:8545, contract: nope}",
		"log level":         "log: {level: chatty}",
		"base path":         "server: {base_path: api}",
	}
	for name, yml := range cases {
		if _, err := config.FromYAML([]byte(yml)); err == nil {
			t.Fatalf("%s: expected validation error", name)
		}
	}
	if _, err := config.FromYAML([]byte("store: [")); err == nil || !strings.Contains(err.Error(), "invalid config yaml") {
		t.Fatalf("expected yaml error, got %v", err)
	}
}
