package config

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFlags(t *testing.T) {
	tests := []struct {
		expected *Config
		name     string
		args     []string
		wantErr  bool
	}{
		{name: "all flags", args: []string{
			"-a", "127.0.0.1:9090", "-s", "secret", "-t", "1", "-r", "3", "-w", "2",
			"-u", "http://up", "-l", "http://llm", "-k", "key", "-m", "model",
			"-o", "https://a,https://b", "-secure-cookie=false", "-rate", "9",
			"-trust-proxy",
		},
			expected: &Config{
				ListenAddr:                   "127.0.0.1:9090",
				SecretKey:                    "secret",
				AccessTokenValidityDuration:  1 * time.Minute,
				RefreshTokenValidityDuration: 3 * time.Minute,
				RevocationSweepInterval:      2 * time.Minute,
				UpstreamBaseURL:              "http://up",
				LLMBaseURL:                   "http://llm",
				LLMAPIKey:                    "key",
				LLMModel:                     "model",
				AllowedOrigins:               []string{"https://a", "https://b"},
				CookieSecure:                 false,
				LoginRateLimit:               9,
				TrustProxyHeaders:            true,
			}},
		{name: "config flag is skipped", args: []string{"-c", "file.json", "-a", ":1"},
			expected: &Config{ListenAddr: ":1"}},
		{name: "bad int", args: []string{"-t", "soon"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := &Config{}

			err := parseFlags(config, tt.args)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Empty(t, cmp.Diff(tt.expected, config))
		})
	}
}

func TestParseFlags_UnsetMinuteFlagsKeepSubMinuteValues(t *testing.T) {
	config := &Config{AccessTokenValidityDuration: 90 * time.Second}

	require.NoError(t, parseFlags(config, []string{"-a", ":1"}))
	assert.Equal(t, 90*time.Second, config.AccessTokenValidityDuration)
}
