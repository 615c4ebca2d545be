// YAML config loader with CUE validation integration
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/google/shlex"
	"gopkg.in/yaml.v3"
)

// Defaults applied when the YAML omits a field.
const (
	DefaultPort     = 12000
	DefaultDuration = 60
	DefaultClients  = 2
)

// RunConfig is the root configuration for one harness invocation.
// It is immutable once loaded; the run controller and scenario runner
// only ever read it.
type RunConfig struct {
	// Interface is the network interface impairment rules are applied to.
	Interface string `yaml:"interface"`
	// NumClients is the number of concurrent client processes per scenario.
	NumClients int `yaml:"num_clients"`
	// DurationSeconds is the advisory run length handed to each client.
	DurationSeconds int `yaml:"duration_seconds"`
	// Port is the server's UDP port, also used as the capture filter.
	Port int `yaml:"port"`
	// OutputDir is the root under which results/, logs/, pcaps/ and
	// server_metrics/ are created.
	OutputDir string `yaml:"output_dir"`
	// ServerCommand and ClientCommand are shell-style command strings.
	ServerCommand string `yaml:"server_command"`
	ClientCommand string `yaml:"client_command"`
	// Scenarios selects rule names from the catalog. Empty means all
	// built-in scenarios.
	Scenarios []string `yaml:"scenarios"`
}

// Load loads YAML config and validates it against a CUE schema.
func Load(configPath, cueSchemaPath string) (*RunConfig, error) {
	if err := ValidateWithCue(configPath, cueSchemaPath); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, err
	}
	cfg := &RunConfig{
		NumClients:      DefaultClients,
		DurationSeconds: DefaultDuration,
		Port:            DefaultPort,
		OutputDir:       ".",
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the semantic constraints the CUE schema cannot express
// alone (non-empty commands, positive counts).
func (c *RunConfig) Validate() error {
	if c.Interface == "" {
		return fmt.Errorf("config: interface must be set")
	}
	if c.NumClients < 1 {
		return fmt.Errorf("config: num_clients must be >= 1, got %d", c.NumClients)
	}
	if c.DurationSeconds <= 0 {
		return fmt.Errorf("config: duration_seconds must be > 0, got %d", c.DurationSeconds)
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("config: port %d out of range", c.Port)
	}
	if c.ServerCommand == "" {
		return fmt.Errorf("config: server_command must be set")
	}
	if c.ClientCommand == "" {
		return fmt.Errorf("config: client_command must be set")
	}
	return nil
}

// Duration returns the per-client run length as a time.Duration.
func (c *RunConfig) Duration() time.Duration {
	return time.Duration(c.DurationSeconds) * time.Second
}

// ServerArgv tokenizes the configured server command.
func (c *RunConfig) ServerArgv() ([]string, error) {
	return splitCommand("server_command", c.ServerCommand)
}

// ClientArgv tokenizes the configured client command.
func (c *RunConfig) ClientArgv() ([]string, error) {
	return splitCommand("client_command", c.ClientCommand)
}

func splitCommand(field, command string) ([]string, error) {
	argv, err := shlex.Split(command)
	if err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", field, err)
	}
	if len(argv) == 0 {
		return nil, fmt.Errorf("config: %s is empty", field)
	}
	return argv, nil
}
