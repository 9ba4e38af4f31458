package config

import (
	"flag"
	"io"
	"time"
)

// parseFlags applies command-line flags to cfg and returns the positional
// arguments that follow them.
func parseFlags(cfg *Config, args []string) ([]string, error) {
	fs := flag.NewFlagSet("client", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	fs.StringVar(&cfg.ServerURL, "a", cfg.ServerURL, "gateway base URL")
	fs.StringVar(&cfg.SessionFile, "session", cfg.SessionFile, "session file path")
	timeout := fs.Int("timeout", int(cfg.Timeout.Seconds()), "request timeout (in seconds)")

	// handled by parseJson
	fs.String("c", "", "path to config file (short)")
	fs.String("config", "", "path to config file")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	fs.Visit(func(f *flag.Flag) {
		if f.Name == "timeout" {
			cfg.Timeout = time.Duration(*timeout) * time.Second
		}
	})

	return fs.Args(), nil
}
