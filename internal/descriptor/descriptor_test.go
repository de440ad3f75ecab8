package descriptor

import (
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"xcbridgectl/internal/config"
)

func testTarget() config.Target {
	return config.NewTarget("/Users/dev")
}

func TestArguments(t *testing.T) {
	tests := []struct {
		name string
		cfg  config.Config
		want []string
	}{
		{"default port, no key", config.Config{Port: 9090}, []string{"--port", "9090"}},
		{"port and key", config.Config{Port: 8080, APIKey: "secret"}, []string{"--port", "8080", "--api-key", "secret"}},
		{"empty key omitted", config.Config{Port: 1, APIKey: ""}, []string{"--port", "1"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Arguments(tt.cfg)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Arguments() = %q, want %q", got, tt.want)
			}
			for i, a := range got {
				if a == "--api-key" && (i+1 >= len(got) || got[i+1] == "") {
					t.Errorf("--api-key without a value: %q", got)
				}
			}
		})
	}
}

func TestGenerate(t *testing.T) {
	target := testTarget()
	d := Generate(config.Config{Port: 9090, BinaryPath: "/elsewhere/xcbridge"}, target)

	if d.Program != target.BinaryPath {
		t.Errorf("Program = %q, want managed path %q", d.Program, target.BinaryPath)
	}
	if d.Label != "com.aptove.xcbridge" {
		t.Errorf("Label = %q", d.Label)
	}
	if d.Restart != RestartUnlessCleanExit {
		t.Errorf("Restart = %q", d.Restart)
	}
	if d.StdoutPath != target.StdoutLog || d.StderrPath != target.StderrLog {
		t.Errorf("log paths = %q, %q", d.StdoutPath, d.StderrPath)
	}
	if d.WorkingDir != target.WorkingDir {
		t.Errorf("WorkingDir = %q", d.WorkingDir)
	}
	if d.Environment["PATH"] == "" {
		t.Error("Environment must define PATH")
	}
}

func TestEncode_LaunchdKeys(t *testing.T) {
	data, err := Encode(Generate(config.Config{Port: 9090}, testTarget()))
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	xml := string(data)

	for _, want := range []string{
		"<key>Label</key>",
		"<key>ProgramArguments</key>",
		"<key>KeepAlive</key>",
		"<key>SuccessfulExit</key>",
		"<key>RunAtLoad</key>",
		"<key>StandardErrorPath</key>",
		"<key>EnvironmentVariables</key>",
		"<string>/Users/dev/.local/bin/xcbridge</string>",
	} {
		if !strings.Contains(xml, want) {
			t.Errorf("encoded descriptor missing %q:\n%s", want, xml)
		}
	}
	if strings.Contains(xml, "api-key") {
		t.Errorf("no api-key argument expected:\n%s", xml)
	}
}

func TestEncode_EscapesSpecialCharacters(t *testing.T) {
	cfg := config.Config{Port: 9090, APIKey: `k<e>y&"'</string><true/>`}
	target := config.NewTarget(`/Users/a&b <c>`)
	d := Generate(cfg, target)

	data, err := Encode(d)
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	xml := string(data)
	if strings.Contains(xml, "<e>") || strings.Contains(xml, "a&b <c>") {
		t.Errorf("raw special characters leaked into XML:\n%s", xml)
	}
	if !strings.Contains(xml, "&amp;") || !strings.Contains(xml, "&lt;") {
		t.Errorf("expected entity-encoded values:\n%s", xml)
	}

	back, err := Decode(data)
	if err != nil {
		t.Fatalf("Decode failed on escaped output: %v", err)
	}
	if !reflect.DeepEqual(back, d) {
		t.Errorf("decoded descriptor differs:\n got %+v\nwant %+v", back, d)
	}
}

func TestEncode_RequiresLabelAndProgram(t *testing.T) {
	if _, err := Encode(Descriptor{Program: "/bin/true"}); err == nil {
		t.Error("expected error without label")
	}
	if _, err := Encode(Descriptor{Label: "x"}); err == nil {
		t.Error("expected error without program")
	}
}

func TestDecode_Invalid(t *testing.T) {
	if _, err := Decode([]byte("definitely not a plist <")); err == nil {
		t.Error("expected error for garbage input")
	}
}

func TestWrite_OverwritesAndCreatesDir(t *testing.T) {
	path := filepath.Join(t.TempDir(), "LaunchAgents", "com.aptove.xcbridge.plist")
	target := testTarget()

	if err := Write(path, Generate(config.Config{Port: 9090}, target)); err != nil {
		t.Fatalf("first Write failed: %v", err)
	}
	if err := Write(path, Generate(config.Config{Port: 8080, APIKey: "secret"}, target)); err != nil {
		t.Fatalf("second Write failed: %v", err)
	}

	d, err := Read(path)
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	want := []string{"--port", "8080", "--api-key", "secret"}
	if !reflect.DeepEqual(d.Args, want) {
		t.Errorf("Args = %q, want %q", d.Args, want)
	}

	entries, err := os.ReadDir(filepath.Dir(path))
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Errorf("expected only the descriptor in the directory, got %d entries", len(entries))
	}

	fi, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if fi.Mode().Perm() != 0644 {
		t.Errorf("mode = %v, want 0644", fi.Mode().Perm())
	}
}
