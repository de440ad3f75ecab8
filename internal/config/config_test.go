package config

import (
	"errors"
	"path/filepath"
	"testing"
	"time"
)

// --- Config Tests ---

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.Port != 9090 {
		t.Errorf("expected Port=9090, got %d", cfg.Port)
	}
	if cfg.AuthEnabled() {
		t.Error("expected authentication disabled by default")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		port    int
		wantErr bool
	}{
		{"default", 9090, false},
		{"lowest", 1, false},
		{"highest", 65535, false},
		{"zero", 0, true},
		{"negative", -1, true},
		{"too large", 65536, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Config{Port: tt.port}.Validate()
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidPort) {
					t.Errorf("Validate() = %v, want ErrInvalidPort", err)
				}
				return
			}
			if err != nil {
				t.Errorf("Validate() unexpected error: %v", err)
			}
		})
	}
}

func TestValidate_APIKey(t *testing.T) {
	tests := []struct {
		name    string
		key     string
		wantErr bool
	}{
		{"empty", "", false},
		{"plain", "secret", false},
		{"markup", `a<b>&"c'`, false},
		{"tab and newline", "tab\tkey\n", false},
		{"non-ascii", "clé-🔑", false},
		{"nul", "a\x00b", true},
		{"control", "a\x01b", true},
		{"escape", "a\x1bb", true},
		{"invalid utf-8", "a\xffb", true},
		{"non-character", "a\uFFFEb", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Config{Port: DefaultPort, APIKey: tt.key}.Validate()
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidAPIKey) {
					t.Errorf("Validate() = %v, want ErrInvalidAPIKey", err)
				}
				return
			}
			if err != nil {
				t.Errorf("Validate() unexpected error: %v", err)
			}
		})
	}
}

// --- Env Tests ---

func TestParse_EnvDefaults(t *testing.T) {
	cfg, err := parse(map[string]string{})
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if cfg.Port != DefaultPort {
		t.Errorf("expected Port=%d, got %d", DefaultPort, cfg.Port)
	}
	if cfg.APIKey != "" {
		t.Errorf("expected empty APIKey, got %q", cfg.APIKey)
	}
}

func TestParse_EnvOverrides(t *testing.T) {
	cfg, err := parse(map[string]string{
		"XCBRIDGE_PORT":    "8080",
		"XCBRIDGE_API_KEY": "secret",
	})
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if cfg.Port != 8080 {
		t.Errorf("expected Port=8080, got %d", cfg.Port)
	}
	if cfg.APIKey != "secret" || !cfg.AuthEnabled() {
		t.Errorf("expected APIKey=secret, got %q", cfg.APIKey)
	}
}

func TestParse_InvalidPortEnv(t *testing.T) {
	if _, err := parse(map[string]string{"XCBRIDGE_PORT": "ninety"}); err == nil {
		t.Error("expected error for non-numeric port")
	}
}

func TestParseLogging(t *testing.T) {
	lc, err := parseLogging(map[string]string{
		"XCBRIDGECTL_LOG_LEVEL": "debug",
		"XCBRIDGECTL_LOG_FILE":  "/tmp/xcbridgectl.log",
	})
	if err != nil {
		t.Fatalf("parseLogging failed: %v", err)
	}
	if lc.Level != "debug" {
		t.Errorf("expected Level=debug, got %q", lc.Level)
	}
	if lc.FilePath != "/tmp/xcbridgectl.log" {
		t.Errorf("expected FilePath override, got %q", lc.FilePath)
	}
	if !lc.Console {
		t.Error("expected Console=true by default")
	}
}

// --- Target Tests ---

func TestNewTarget(t *testing.T) {
	home := filepath.Join("/Users", "dev")
	target := NewTarget(home)

	checks := map[string]struct{ got, want string }{
		"BinaryPath":     {target.BinaryPath, "/Users/dev/.local/bin/xcbridge"},
		"InstallDir":     {target.InstallDir, "/Users/dev/.local/bin"},
		"DescriptorPath": {target.DescriptorPath, "/Users/dev/Library/LaunchAgents/com.aptove.xcbridge.plist"},
		"StdoutLog":      {target.StdoutLog, "/Users/dev/Library/Logs/xcbridge/xcbridge.log"},
		"StderrLog":      {target.StderrLog, "/Users/dev/Library/Logs/xcbridge/xcbridge.error.log"},
		"WorkingDir":     {target.WorkingDir, "/Users/dev"},
		"Label":          {target.Label, "com.aptove.xcbridge"},
		"Identity":       {target.Identity, "xcbridge"},
	}
	for name, c := range checks {
		if c.got != c.want {
			t.Errorf("%s = %q, want %q", name, c.got, c.want)
		}
	}

	logs := target.LogFiles()
	if len(logs) != 2 || logs[0] != target.StdoutLog || logs[1] != target.StderrLog {
		t.Errorf("LogFiles() = %v", logs)
	}
}

func TestDefaultTiming(t *testing.T) {
	timing := DefaultTiming()
	if timing.StopBudget() != 5*time.Second {
		t.Errorf("StopBudget() = %v, want 5s", timing.StopBudget())
	}
	if timing.StartGrace <= 0 || timing.KillSettle <= 0 || timing.HealthInterval <= 0 {
		t.Errorf("waits must be positive: %+v", timing)
	}
}
