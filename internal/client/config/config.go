package config

import (
	"os"
	"path/filepath"
	"time"
)

// Config holds runtime settings for the command line client.
//
// Fields:
//   - ServerURL: base URL of the gateway, e.g. http://localhost:8080.
//   - SessionFile: where the access token and refresh cookie are kept.
//   - Timeout: per-request HTTP timeout.
type Config struct {
	ServerURL   string
	SessionFile string
	Timeout     time.Duration
}

// LoadDefaults populates c with sensible defaults.
func (c *Config) LoadDefaults() {
	c.ServerURL = "http://localhost:8080"
	c.SessionFile = defaultSessionFile()
	c.Timeout = 30 * time.Second
}

// LoadConfig builds a Config from defaults, the JSON file and flags, and
// returns the positional arguments left after the flags.
func LoadConfig() (*Config, []string, error) {
	return load(os.Args[1:])
}

func load(args []string) (*Config, []string, error) {
	cfg := &Config{}
	cfg.LoadDefaults()

	if err := parseJson(cfg, args); err != nil {
		return nil, nil, err
	}
	rest, err := parseFlags(cfg, args)
	if err != nil {
		return nil, nil, err
	}
	return cfg, rest, nil
}

func defaultSessionFile() string {
	dir, err := os.UserConfigDir()
	if err != nil || dir == "" {
		dir = os.TempDir()
	}
	return filepath.Join(dir, "progres-gateway", "session.json")
}
