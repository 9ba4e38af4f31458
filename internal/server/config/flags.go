package config

import (
	"flag"
	"io"
	"strings"
	"time"

	"github.com/dmitrijs2005/progres-gateway/internal/flagx"
)

// parseFlags populates selected Config fields from command-line flags.
//
// Supported flags:
//
//	-a string          HTTP bind address (e.g., ":8080")
//	-s string          base64 JWT HMAC secret key
//	-t int             access token validity, minutes
//	-r int             refresh token validity, minutes
//	-w int             revocation sweep interval, minutes
//	-u string          upstream record API base URL
//	-l string          LLM API base URL
//	-k string          LLM API key
//	-m string          LLM model
//	-o string          comma separated allowed CORS origins
//	-secure-cookie     Secure attribute on the refresh cookie
//	-rate int          auth requests per minute per client IP
//	-trust-proxy       resolve the client IP from X-Forwarded-For / X-Real-IP
//
// Args are filtered to the flags above first so -c/-config and flags meant
// for other components do not fail parsing.
func parseFlags(config *Config, args []string) error {
	args = flagx.FilterArgs(args, "a", "s", "t", "r", "w", "u", "l", "k", "m", "o", "secure-cookie", "rate", "trust-proxy")

	fs := flag.NewFlagSet("server", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	fs.StringVar(&config.ListenAddr, "a", config.ListenAddr, "address and port to run server")
	fs.StringVar(&config.SecretKey, "s", config.SecretKey, "base64 secret key")

	accessTokenValidity := fs.Int("t", int(config.AccessTokenValidityDuration.Minutes()), "access token validity (in minutes)")
	refreshTokenValidity := fs.Int("r", int(config.RefreshTokenValidityDuration.Minutes()), "refresh token validity (in minutes)")
	sweepInterval := fs.Int("w", int(config.RevocationSweepInterval.Minutes()), "revocation sweep interval (in minutes)")

	fs.StringVar(&config.UpstreamBaseURL, "u", config.UpstreamBaseURL, "upstream API base URL")
	fs.StringVar(&config.LLMBaseURL, "l", config.LLMBaseURL, "LLM API base URL")
	fs.StringVar(&config.LLMAPIKey, "k", config.LLMAPIKey, "LLM API key")
	fs.StringVar(&config.LLMModel, "m", config.LLMModel, "LLM model")
	origins := fs.String("o", strings.Join(config.AllowedOrigins, ","), "allowed CORS origins")
	fs.BoolVar(&config.CookieSecure, "secure-cookie", config.CookieSecure, "secure refresh cookie")
	fs.IntVar(&config.LoginRateLimit, "rate", config.LoginRateLimit, "auth requests per minute per IP")
	fs.BoolVar(&config.TrustProxyHeaders, "trust-proxy", config.TrustProxyHeaders, "trust X-Forwarded-For / X-Real-IP")

	if err := fs.Parse(args); err != nil {
		return err
	}

	// minute flags only override when given, so sub-minute values from
	// env or JSON survive
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "t":
			config.AccessTokenValidityDuration = time.Duration(*accessTokenValidity) * time.Minute
		case "r":
			config.RefreshTokenValidityDuration = time.Duration(*refreshTokenValidity) * time.Minute
		case "w":
			config.RevocationSweepInterval = time.Duration(*sweepInterval) * time.Minute
		case "o":
			config.AllowedOrigins = splitList(*origins)
		}
	})
	return nil
}
