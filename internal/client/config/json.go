package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/dmitrijs2005/progres-gateway/internal/flagx"
	"github.com/dmitrijs2005/progres-gateway/internal/timex"
)

// JsonConfig is a DTO used exclusively for JSON unmarshalling. Absent keys
// leave the current value alone.
type JsonConfig struct {
	ServerURL   *string         `json:"server_url"`
	SessionFile *string         `json:"session_file"`
	Timeout     *timex.Duration `json:"timeout"`
}

// parseJson overlays cfg with the JSON file named by -c/-config, if any.
func parseJson(cfg *Config, args []string) error {
	path := flagx.ConfigFile(args)
	if path == "" {
		return nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}

	var jc JsonConfig
	if err := json.Unmarshal(data, &jc); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}

	if jc.ServerURL != nil {
		cfg.ServerURL = *jc.ServerURL
	}
	if jc.SessionFile != nil {
		cfg.SessionFile = *jc.SessionFile
	}
	if jc.Timeout != nil {
		cfg.Timeout = jc.Timeout.Duration
	}
	return nil
}
