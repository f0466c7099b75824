package main

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/danmuck/iggywire/internal/config"
	"github.com/danmuck/iggywire/internal/testutil/testlog"
	"github.com/spf13/viper"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "iggywire.toml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadFileConfigDefaultsAndOverrides(t *testing.T) {
	testlog.Start(t)
	path := writeConfig(t, `
[decode]
max_frame_bytes = 4096
log_frames = false

[proxy]
name = "  edge-tap  "
upstream = "iggy.internal:8090"
cors_origins = ["http://a.local", " ", "http://b.local"]
status_token = " tok "

[output]
format = " JSON "
`)
	cfg, err := loadFileConfig(path)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	def := config.Default()
	if cfg.Decode.MaxFrameBytes != 4096 {
		t.Fatalf("unexpected max frame bytes: %d", cfg.Decode.MaxFrameBytes)
	}
	if cfg.Proxy.Name != "edge-tap" {
		t.Fatalf("unexpected name: %q", cfg.Proxy.Name)
	}
	if cfg.Proxy.Upstream != "iggy.internal:8090" {
		t.Fatalf("unexpected upstream: %q", cfg.Proxy.Upstream)
	}
	if cfg.Proxy.Listen != def.Proxy.Listen {
		t.Fatalf("listen should keep default, got %q", cfg.Proxy.Listen)
	}
	if len(cfg.Proxy.CorsOrigins) != 2 || cfg.Proxy.CorsOrigins[1] != "http://b.local" {
		t.Fatalf("unexpected cors origins: %+v", cfg.Proxy.CorsOrigins)
	}
	if cfg.Proxy.StatusToken != "tok" {
		t.Fatalf("unexpected status token: %q", cfg.Proxy.StatusToken)
	}
	if cfg.Output.Format != config.FormatJSON {
		t.Fatalf("unexpected format: %q", cfg.Output.Format)
	}
	if cfg.Output.Fields != def.Output.Fields {
		t.Fatalf("fields should keep default")
	}
	if err := config.Validate(cfg); err != nil {
		t.Fatalf("loaded config invalid: %v", err)
	}
}

func TestLoadFileConfigRejectsUnknownKey(t *testing.T) {
	testlog.Start(t)
	path := writeConfig(t, "[decode]\nmax_frame = 10\n")
	_, err := loadFileConfig(path)
	if err == nil || !strings.Contains(err.Error(), "decode.max_frame") {
		t.Fatalf("expected unknown key error, got %v", err)
	}
}

func TestWrapString(t *testing.T) {
	testlog.Start(t)
	got := wrapString(strings.Repeat("word ", 20))
	for _, line := range strings.Split(got, "\n") {
		if len(line) > wrap {
			t.Fatalf("line exceeds %d columns: %q", wrap, line)
		}
	}
}

func TestValidateFileAgreesWithRuntime(t *testing.T) {
	testlog.Start(t)
	viper.Reset()
	t.Cleanup(viper.Reset)

	cases := []struct {
		name  string
		body  string
		valid bool
	}{
		{name: "blank name", body: "[proxy]\nname = \"  \"\n", valid: false},
		{name: "padded upstream", body: "[proxy]\nupstream = \"  iggy:8090  \"\n", valid: true},
		{name: "upper format", body: "[output]\nformat = \"JSON\"\n", valid: true},
		{name: "bad format", body: "[output]\nformat = \"xml\"\n", valid: false},
	}
	for _, tc := range cases {
		path := writeConfig(t, tc.body)

		_, validateErr := validateFile(path)
		viper.Set("config", path)
		_, runtimeErr := resolveConfig()
		_, loadErr := config.Load(path)

		for label, err := range map[string]error{"validate": validateErr, "runtime": runtimeErr, "load": loadErr} {
			if tc.valid && err != nil {
				t.Fatalf("%s: %s rejected a valid file: %v", tc.name, label, err)
			}
			if !tc.valid && !errors.Is(err, config.ErrInvalidConfig) {
				t.Fatalf("%s: %s expected ErrInvalidConfig, got %v", tc.name, label, err)
			}
		}
	}
}
