package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const envPrefix = "PROGRES_"

// loadDotEnv loads KEY=VALUE pairs from path into the process environment
// without overriding variables that are already set. A missing file is fine;
// a file that exists but cannot be read or parsed is an error.
func loadDotEnv(path string) error {
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	return nil
}

// parseEnv overlays PROGRES_* variables onto config. Durations use Go
// syntax ("15m"), lists are comma separated.
func parseEnv(config *Config, lookup func(string) (string, bool)) error {
	var errs []error

	str := func(name string, dst *string) {
		if v, ok := lookup(envPrefix + name); ok && v != "" {
			*dst = v
		}
	}
	dur := func(name string, dst *time.Duration) {
		v, ok := lookup(envPrefix + name)
		if !ok || v == "" {
			return
		}
		d, err := time.ParseDuration(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s%s: %w", envPrefix, name, err))
			return
		}
		*dst = d
	}

	str("LISTEN_ADDR", &config.ListenAddr)
	str("SECRET_KEY", &config.SecretKey)
	dur("ACCESS_TOKEN_TTL", &config.AccessTokenValidityDuration)
	dur("REFRESH_TOKEN_TTL", &config.RefreshTokenValidityDuration)
	dur("SWEEP_INTERVAL", &config.RevocationSweepInterval)
	str("UPSTREAM_BASE_URL", &config.UpstreamBaseURL)
	dur("UPSTREAM_TIMEOUT", &config.UpstreamTimeout)
	str("LLM_BASE_URL", &config.LLMBaseURL)
	str("LLM_API_KEY", &config.LLMAPIKey)
	str("LLM_MODEL", &config.LLMModel)
	dur("LLM_TIMEOUT", &config.LLMTimeout)
	dur("CORS_MAX_AGE", &config.CORSMaxAge)

	if v, ok := lookup(envPrefix + "ALLOWED_ORIGINS"); ok && v != "" {
		config.AllowedOrigins = splitList(v)
	}
	boolean := func(name string, dst *bool) {
		v, ok := lookup(envPrefix + name)
		if !ok || v == "" {
			return
		}
		b, err := strconv.ParseBool(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s%s: %w", envPrefix, name, err))
			return
		}
		*dst = b
	}
	boolean("COOKIE_SECURE", &config.CookieSecure)
	boolean("TRUST_PROXY_HEADERS", &config.TrustProxyHeaders)
	if v, ok := lookup(envPrefix + "LOGIN_RATE_LIMIT"); ok && v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("%sLOGIN_RATE_LIMIT: %w", envPrefix, err))
		} else {
			config.LoginRateLimit = n
		}
	}
	if v, ok := lookup("ENV"); ok {
		config.Production = strings.EqualFold(v, "production")
	}

	return errors.Join(errs...)
}

func splitList(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
