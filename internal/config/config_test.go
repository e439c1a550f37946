package config

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/danmuck/spacectl/internal/testutil/testlog"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "spacectl.toml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadWithoutFileUsesDefaults(t *testing.T) {
	testlog.Start(t)

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	def := Default()
	if cfg.Store != def.Store || cfg.RequeueDelay != 5*time.Second || cfg.Game.PageSize != 20 {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
}

func TestLoadOverlaysDefinedKeysOnly(t *testing.T) {
	testlog.Start(t)

	path := writeConfig(t, `
store = "memory"
requeue_delay = "250ms"

[game]
rate = 0.5

[admin]
cors_origins = ["http://localhost:3000"]

[bootstrap]
symbol = "NATINGAR3"
faction = "cosmic"
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Store != StoreMemory || cfg.RequeueDelay != 250*time.Millisecond {
		t.Fatalf("file keys not applied: %+v", cfg)
	}
	if cfg.Game.Rate != 0.5 || cfg.Game.Burst != Default().Game.Burst {
		t.Fatalf("unexpected game config: %+v", cfg.Game)
	}
	if cfg.StepDelay != 5*time.Second {
		t.Fatalf("undefined key must keep default, got %s", cfg.StepDelay)
	}
	if len(cfg.Admin.CorsOrigins) != 1 || cfg.Bootstrap.Symbol != "NATINGAR3" {
		t.Fatalf("unexpected admin/bootstrap: %+v %+v", cfg.Admin, cfg.Bootstrap)
	}
}

func TestEnvOverridesFile(t *testing.T) {
	testlog.Start(t)

	path := writeConfig(t, `store = "memory"`)
	t.Setenv("SPACECTL_STORE", "kube")
	t.Setenv("SPACECTL_GAME_PAGE_SIZE", "10")
	t.Setenv("SPACECTL_STEP_DELAY", "1s")
	t.Setenv("SPACECTL_ADMIN_CORS_ORIGINS", "http://a,http://b")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Store != StoreKube || cfg.Game.PageSize != 10 || cfg.StepDelay != time.Second {
		t.Fatalf("env not applied: %+v", cfg)
	}
	if len(cfg.Admin.CorsOrigins) != 2 {
		t.Fatalf("unexpected cors origins: %v", cfg.Admin.CorsOrigins)
	}
}

func TestLoadRejectsInvalidConfig(t *testing.T) {
	testlog.Start(t)

	cases := map[string]string{
		"unknown store":     `store = "etcd"`,
		"bad duration":      `requeue_delay = "soon"`,
		"unknown key":       `reqeue_delay = "5s"`,
		"zero workers":      `workers = 0`,
		"page size":         "[game]\npage_size = 50",
		"bootstrap symbol":  "[bootstrap]\nfaction = \"COSMIC\"",
		"bootstrap faction": "[bootstrap]\nsymbol = \"X\"\nfaction = \"PIRATES\"",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := Load(writeConfig(t, body)); !errors.Is(err, ErrInvalid) {
				t.Fatalf("expected ErrInvalid, got %v", err)
			}
		})
	}
}

func TestEncodeRoundTripsThroughLoad(t *testing.T) {
	testlog.Start(t)

	cfg := Default()
	cfg.Store = StoreMemory
	cfg.StepDelay = 2 * time.Second
	cfg.Admin.CorsOrigins = []string{"http://localhost:3000"}

	var buf bytes.Buffer
	if err := Encode(&buf, cfg); err != nil {
		t.Fatalf("encode: %v", err)
	}
	loaded, err := Load(writeConfig(t, buf.String()))
	if err != nil {
		t.Fatalf("load encoded config: %v\n%s", err, buf.String())
	}
	if loaded.Store != StoreMemory || loaded.StepDelay != 2*time.Second || loaded.Admin.CorsOrigins[0] != "http://localhost:3000" {
		t.Fatalf("round trip mismatch: %+v", loaded)
	}
}

func TestWriteTemplateRefusesOverwrite(t *testing.T) {
	testlog.Start(t)

	path := filepath.Join(t.TempDir(), "spacectl.toml")
	if err := WriteTemplate(path, false); err != nil {
		t.Fatalf("write template: %v", err)
	}
	if err := WriteTemplate(path, false); err == nil {
		t.Fatalf("expected refusal to overwrite")
	}
	if err := WriteTemplate(path, true); err != nil {
		t.Fatalf("overwrite template: %v", err)
	}
	if _, err := Load(path); err != nil {
		t.Fatalf("template must load: %v", err)
	}
}
