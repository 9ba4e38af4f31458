// Package config handles configuration for the gateway server, including
// defaults, environment (with optional .env file), JSON overlay and
// command-line flags.
package config

import (
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"time"
)

// minSecretKeyBytes is the HS256 key size floor.
const minSecretKeyBytes = 32

// devSecretKey is the built-in key; Validate rejects it in production.
const devSecretKey = "cHJvZ3Jlcy1nYXRld2F5LWRldmVsb3BtZW50LXNpZ25pbmcta2V5IQ=="

// Config holds runtime settings for the gateway server.
//
// Fields:
//   - ListenAddr: bind address for the HTTP API.
//   - SecretKey: base64-encoded HMAC secret for signing JWTs (HS256).
//     Do not use the development default in prod.
//   - AccessTokenValidityDuration / RefreshTokenValidityDuration: token lifetimes.
//   - RevocationSweepInterval: how often expired revocation entries are evicted.
//   - UpstreamBaseURL / UpstreamTimeout: the record API and identity provider.
//   - LLMBaseURL / LLMAPIKey / LLMModel / LLMTimeout: chat completions API.
//   - AllowedOrigins / CORSMaxAge: browser origins allowed with credentials.
//   - CookieSecure: sets the Secure attribute on the refresh cookie.
//   - TrustProxyHeaders: take the client address from X-Forwarded-For /
//     X-Real-IP. Enable only behind a reverse proxy that overwrites them.
//   - LoginRateLimit: requests per minute per client IP on /api/auth.
//   - Production: JSON logs at info level instead of text at debug level.
type Config struct {
	ListenAddr                   string
	SecretKey                    string
	AccessTokenValidityDuration  time.Duration
	RefreshTokenValidityDuration time.Duration
	RevocationSweepInterval      time.Duration
	UpstreamBaseURL              string
	UpstreamTimeout              time.Duration
	LLMBaseURL                   string
	LLMAPIKey                    string
	LLMModel                     string
	LLMTimeout                   time.Duration
	AllowedOrigins               []string
	CORSMaxAge                   time.Duration
	CookieSecure                 bool
	TrustProxyHeaders            bool
	LoginRateLimit               int
	Production                   bool
}

// LoadDefaults populates Config with development defaults.
// NOTE: the secret key is insecure for production and must be overridden.
func (c *Config) LoadDefaults() {
	c.ListenAddr = ":8080"
	c.SecretKey = devSecretKey
	c.AccessTokenValidityDuration = 15 * time.Minute
	c.RefreshTokenValidityDuration = 30 * 24 * time.Hour
	c.RevocationSweepInterval = 5 * time.Minute
	c.UpstreamBaseURL = "https://progres.mesrs.dz/api"
	c.UpstreamTimeout = 15 * time.Second
	c.LLMBaseURL = "https://api.groq.com/openai/v1"
	c.LLMModel = "llama-3.3-70b-versatile"
	c.LLMTimeout = 30 * time.Second
	c.AllowedOrigins = []string{"http://localhost:3000"}
	c.CORSMaxAge = time.Hour
	c.CookieSecure = true
	c.LoginRateLimit = 20
}

// LoadConfig builds a Config by applying defaults, then overlaying values
// from the environment (a .env file in the working directory is loaded
// first when present), an optional JSON file and finally command-line flags.
func LoadConfig() (*Config, error) {
	return load(os.Args[1:], os.LookupEnv)
}

func load(args []string, lookup func(string) (string, bool)) (*Config, error) {
	cfg := &Config{}
	cfg.LoadDefaults()

	if err := loadDotEnv(".env"); err != nil {
		return nil, fmt.Errorf("dotenv: %w", err)
	}

	if err := parseEnv(cfg, lookup); err != nil {
		return nil, fmt.Errorf("env config: %w", err)
	}
	if err := parseJson(cfg, args); err != nil {
		return nil, fmt.Errorf("json config: %w", err)
	}
	if err := parseFlags(cfg, args); err != nil {
		return nil, fmt.Errorf("flags: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate reports settings the server cannot start with.
func (c *Config) Validate() error {
	var errs []error

	if _, err := c.SigningKey(); err != nil {
		errs = append(errs, err)
	} else if c.Production && c.SecretKey == devSecretKey {
		errs = append(errs, errors.New("the development secret key cannot be used in production"))
	}
	if c.AccessTokenValidityDuration <= 0 {
		errs = append(errs, errors.New("access token lifetime must be positive"))
	}
	if c.RefreshTokenValidityDuration <= 0 {
		errs = append(errs, errors.New("refresh token lifetime must be positive"))
	}
	if c.RevocationSweepInterval <= 0 {
		errs = append(errs, errors.New("revocation sweep interval must be positive"))
	}
	if c.UpstreamBaseURL == "" {
		errs = append(errs, errors.New("upstream base url is required"))
	}

	return errors.Join(errs...)
}

// SigningKey decodes SecretKey into raw HMAC key bytes.
func (c *Config) SigningKey() ([]byte, error) {
	if c.SecretKey == "" {
		return nil, errors.New("secret key is required")
	}
	key, err := base64.StdEncoding.DecodeString(c.SecretKey)
	if err != nil {
		return nil, fmt.Errorf("secret key must be base64: %w", err)
	}
	if len(key) < minSecretKeyBytes {
		return nil, fmt.Errorf("secret key must decode to at least %d bytes, got %d", minSecretKeyBytes, len(key))
	}
	return key, nil
}
