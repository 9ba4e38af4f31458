package config

import (
	"encoding/json"
	"os"
	"time"

	"github.com/dmitrijs2005/progres-gateway/internal/flagx"
	"github.com/dmitrijs2005/progres-gateway/internal/timex"
)

// JsonConfig is the on-disk shape of the optional JSON config file.
// Durations accept both strings such as "15m" and integer nanoseconds.
// Only fields present in the file override the current Config.
type JsonConfig struct {
	ListenAddr                   string          `json:"listen_addr"`
	SecretKey                    string          `json:"secret_key"`
	AccessTokenValidityDuration  *timex.Duration `json:"access_token_validity_duration"`
	RefreshTokenValidityDuration *timex.Duration `json:"refresh_token_validity_duration"`
	RevocationSweepInterval      *timex.Duration `json:"revocation_sweep_interval"`
	UpstreamBaseURL              string          `json:"upstream_base_url"`
	UpstreamTimeout              *timex.Duration `json:"upstream_timeout"`
	LLMBaseURL                   string          `json:"llm_base_url"`
	LLMAPIKey                    string          `json:"llm_api_key"`
	LLMModel                     string          `json:"llm_model"`
	LLMTimeout                   *timex.Duration `json:"llm_timeout"`
	AllowedOrigins               []string        `json:"allowed_origins"`
	CORSMaxAge                   *timex.Duration `json:"cors_max_age"`
	CookieSecure                 *bool           `json:"cookie_secure"`
	TrustProxyHeaders            *bool           `json:"trust_proxy_headers"`
	LoginRateLimit               *int            `json:"login_rate_limit"`
}

// parseJson loads the file named by -c/-config, if any, and overlays it on
// config. A missing flag is not an error; an unreadable or invalid file is.
func parseJson(config *Config, args []string) error {
	path := flagx.ConfigFile(args)
	if path == "" {
		return nil
	}

	file, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	c := &JsonConfig{}
	if err := json.Unmarshal(file, c); err != nil {
		return err
	}

	setString(&config.ListenAddr, c.ListenAddr)
	setString(&config.SecretKey, c.SecretKey)
	setDuration(&config.AccessTokenValidityDuration, c.AccessTokenValidityDuration)
	setDuration(&config.RefreshTokenValidityDuration, c.RefreshTokenValidityDuration)
	setDuration(&config.RevocationSweepInterval, c.RevocationSweepInterval)
	setString(&config.UpstreamBaseURL, c.UpstreamBaseURL)
	setDuration(&config.UpstreamTimeout, c.UpstreamTimeout)
	setString(&config.LLMBaseURL, c.LLMBaseURL)
	setString(&config.LLMAPIKey, c.LLMAPIKey)
	setString(&config.LLMModel, c.LLMModel)
	setDuration(&config.LLMTimeout, c.LLMTimeout)
	setDuration(&config.CORSMaxAge, c.CORSMaxAge)
	if len(c.AllowedOrigins) > 0 {
		config.AllowedOrigins = c.AllowedOrigins
	}
	if c.CookieSecure != nil {
		config.CookieSecure = *c.CookieSecure
	}
	if c.TrustProxyHeaders != nil {
		config.TrustProxyHeaders = *c.TrustProxyHeaders
	}
	if c.LoginRateLimit != nil {
		config.LoginRateLimit = *c.LoginRateLimit
	}
	return nil
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func setDuration(dst *time.Duration, v *timex.Duration) {
	if v != nil {
		*dst = v.Duration
	}
}
