package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
)

const schemaPath = "../../schemas/harness.cue"

func writeConfig(t *testing.T, yaml string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "harness.yaml")
	if err := os.WriteFile(path, []byte(yaml), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadConfig_Valid(t *testing.T) {
	path := writeConfig(t, `
interface: lo
num_clients: 3
duration_seconds: 10
server_command: "python3 server_final.py"
client_command: "python3 client_test.py"
scenarios: [baseline, loss_2]
`)

	cfg, err := Load(path, schemaPath)
	if err != nil {
		t.Fatalf("Load() returned error: %v", err)
	}
	if cfg.Interface != "lo" || cfg.NumClients != 3 || cfg.DurationSeconds != 10 {
		t.Errorf("unexpected config: %+v", cfg)
	}
	if cfg.Port != DefaultPort {
		t.Errorf("expected default port %d, got %d", DefaultPort, cfg.Port)
	}
	if diff := cmp.Diff([]string{"baseline", "loss_2"}, cfg.Scenarios); diff != "" {
		t.Errorf("scenarios mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadConfig_SchemaRejectsBadValues(t *testing.T) {
	cases := []struct {
		name string
		yaml string
	}{
		{"zero clients", "interface: lo\nnum_clients: 0\nserver_command: s\nclient_command: c\n"},
		{"negative duration", "interface: lo\nduration_seconds: -1\nserver_command: s\nclient_command: c\n"},
		{"missing interface", "server_command: s\nclient_command: c\n"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := Load(writeConfig(t, tc.yaml), schemaPath); err == nil {
				t.Fatal("expected validation error, got nil")
			}
		})
	}
}

func TestClientArgv(t *testing.T) {
	cfg := &RunConfig{ClientCommand: `python3 client_test.py --server "my host"`}
	argv, err := cfg.ClientArgv()
	if err != nil {
		t.Fatalf("ClientArgv: %v", err)
	}
	want := []string{"python3", "client_test.py", "--server", "my host"}
	if diff := cmp.Diff(want, argv); diff != "" {
		t.Errorf("argv mismatch (-want +got):\n%s", diff)
	}
}

func TestServerArgv_Empty(t *testing.T) {
	cfg := &RunConfig{}
	if _, err := cfg.ServerArgv(); err == nil {
		t.Fatal("expected error for empty server_command")
	}
}
