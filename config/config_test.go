package config_test

import (
	"testing"
	"time"

	"github.com/effective-security/toolrouter/config"
	"github.com/effective-security/xlog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	cfg, err := config.Load("testdata/toolrouter.yaml")
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1:9090", cfg.HTTP.GetListenAddr())
	timeout, err := cfg.HTTP.GetTimeout()
	require.NoError(t, err)
	assert.Equal(t, 30*time.Second, timeout)

	require.Len(t, cfg.LLM.Providers, 1)
	assert.Equal(t, "openai", cfg.LLM.Providers[0].Name)
	assert.Equal(t, "gpt-3.5-turbo", cfg.LLM.Providers[0].DefaultModel)

	require.Len(t, cfg.Providers, 3)
	assert.Equal(t, "sports", cfg.Providers[0].ID)
	assert.Equal(t, "http://localhost:8181", cfg.Providers[2].BaseURL)
	assert.Len(t, cfg.ProviderOptions(), 3)

	assert.Equal(t, "techbay-bot/1.0", cfg.Web.UserAgent)
	assert.EqualValues(t, 65536, cfg.Web.MaxContentLength)
	assert.Len(t, cfg.WebOptions(), 2)

	assert.Equal(t, xlog.DEBUG, cfg.Log.LogLevel())
}

func TestLoad_Errors(t *testing.T) {
	_, err := config.Load("testdata/non-existent.yaml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `failed to load config "testdata/non-existent.yaml"`)

	_, err = config.Load("testdata/invalid_timeout.yaml")
	assert.EqualError(t, err, `invalid configuration: http.timeout: "soon"`)

	_, err = config.Load("testdata/missing_id.yaml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "id is required")
}

func TestFromEnv(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("OPENAI_BASE_URL", "")
	t.Setenv("LANGBASE_SPORTS_PIPE_API_KEY", "sports-key")
	t.Setenv("LANGBASE_ELECTRONICS_PIPE_API_KEY", "electronics-key")
	t.Setenv("LANGBASE_TRAVEL_PIPE_API_KEY", "")
	t.Setenv("TOOLROUTER_LOG_LEVEL", "")

	cfg, err := config.Load("")
	require.NoError(t, err)

	assert.Equal(t, "sk-test", cfg.LLMToken())
	assert.Equal(t, config.DefaultListenAddr, cfg.HTTP.GetListenAddr())
	timeout, err := cfg.HTTP.GetTimeout()
	require.NoError(t, err)
	assert.Equal(t, config.DefaultTimeout, timeout)

	require.Len(t, cfg.Providers, 3)
	tokens := map[string]string{}
	for _, p := range cfg.Providers {
		tokens[p.ID] = p.Token
	}
	assert.Equal(t, map[string]string{
		"sports":      "sports-key",
		"electronics": "electronics-key",
		"travel":      "",
	}, tokens)

	assert.Empty(t, cfg.WebOptions())
	assert.Equal(t, xlog.INFO, cfg.Log.LogLevel())
}

func TestFromEnv_MissingLLMToken(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")

	cfg, err := config.FromEnv()
	require.NoError(t, err)
	assert.Empty(t, cfg.LLMToken())

	empty := &config.Config{}
	assert.Empty(t, empty.LLMToken())
}

func TestLogLevel(t *testing.T) {
	tcases := []struct {
		level string
		exp   xlog.LogLevel
	}{
		{"", xlog.INFO},
		{"debug", xlog.DEBUG},
		{"WARNING", xlog.WARNING},
		{"error", xlog.ERROR},
	}
	for _, tc := range tcases {
		t.Run(tc.level, func(t *testing.T) {
			c := config.LogConfig{Level: tc.level}
			assert.Equal(t, tc.exp, c.LogLevel())
		})
	}
}
