package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration is a yaml-parseable time.Duration ("500ms", "10s").
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var raw string
	if err := node.Decode(&raw); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", raw, err)
	}
	*d = Duration(parsed)
	return nil
}

// Config is the agent configuration, loaded from a yaml file with
// flag overrides applied afterwards.
type Config struct {
	// ServerURL is the challan server base URL.
	ServerURL string `yaml:"server_url"`
	// Token is the bearer credential for the ingestion endpoint.
	Token string `yaml:"token"`
	// DBPath is the local durable queue database path.
	DBPath string `yaml:"db_path"`
	// ProbeURL is probed for reachability. Defaults to ServerURL.
	ProbeURL string `yaml:"probe_url"`

	ProbeInterval  Duration `yaml:"probe_interval"`
	SettleDelay    Duration `yaml:"settle_delay"`
	RequestTimeout Duration `yaml:"request_timeout"`
}

// DefaultConfigPath is where LoadConfig looks when no --config flag is
// given. Missing there is not an error; defaults apply.
func DefaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".challan", "config.yaml")
}

func defaultConfig() Config {
	dbPath := "challan-queue.db"
	if home, err := os.UserHomeDir(); err == nil {
		dbPath = filepath.Join(home, ".challan", "queue.db")
	}
	return Config{
		DBPath:         dbPath,
		ProbeInterval:  Duration(10 * time.Second),
		SettleDelay:    Duration(500 * time.Millisecond),
		RequestTimeout: Duration(30 * time.Second),
	}
}

// LoadConfig reads the yaml config at path over the defaults.
//
// With an empty path the default location is tried and may be absent;
// an explicitly given path must exist.
func LoadConfig(path string) (Config, error) {
	cfg := defaultConfig()

	explicit := path != ""
	if !explicit {
		path = DefaultConfigPath()
	}
	if path == "" {
		return cfg, nil
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) && !explicit {
			return cfg, nil
		}
		return Config{}, fmt.Errorf("reading config %s: %w", path, err)
	}

	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return Config{}, fmt.Errorf("parsing config %s: %w", path, err)
	}

	if cfg.ProbeURL == "" {
		cfg.ProbeURL = cfg.ServerURL
	}
	return cfg, nil
}

// requireServer returns a command error when the server URL is not
// configured; commands that talk to the network call this first.
func requireServer(cfg Config) error {
	if cfg.ServerURL == "" {
		return NewExitError(ExitCommandError, "server_url is not configured (set it in the config file)")
	}
	return nil
}
