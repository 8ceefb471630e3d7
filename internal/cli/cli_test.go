package cli

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePositionalPath(t *testing.T) {
	cfg, exit, err := Parse([]string{"flow.hcl"}, &bytes.Buffer{})
	require.NoError(t, err)
	require.False(t, exit)
	assert.Equal(t, "flow.hcl", cfg.WorkflowPath)
	assert.Equal(t, 1, cfg.Workers)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.Equal(t, "info", cfg.LogLevel)
}

func TestParseAllFlags(t *testing.T) {
	cfg, exit, err := Parse([]string{
		"-workflow", "wf.hcl",
		"-out", "artifacts",
		"-set", "i1=hello",
		"-set", "i2=world",
		"-workers", "4",
		"-fail-fast",
		"-call-timeout", "30s",
		"-api-key", "sk-test",
		"-env-file", "creds.env",
		"-serve", "8080",
		"-healthcheck-port", "8081",
		"-log-format", "text",
		"-log-level", "debug",
	}, &bytes.Buffer{})
	require.NoError(t, err)
	require.False(t, exit)

	assert.Equal(t, "wf.hcl", cfg.WorkflowPath)
	assert.Equal(t, "artifacts", cfg.OutDir)
	assert.Equal(t, map[string]string{"i1": "hello", "i2": "world"}, cfg.Overrides)
	assert.Equal(t, 4, cfg.Workers)
	assert.True(t, cfg.FailFast)
	assert.Equal(t, 30*time.Second, cfg.CallTimeout)
	assert.Equal(t, "sk-test", cfg.APIKey)
	assert.Equal(t, "creds.env", cfg.EnvFile)
	assert.Equal(t, 8080, cfg.ServePort)
	assert.Equal(t, 8081, cfg.HealthcheckPort)
	assert.Equal(t, "text", cfg.LogFormat)
	assert.Equal(t, "debug", cfg.LogLevel)
}

func TestParseNoPathPrintsUsage(t *testing.T) {
	var out bytes.Buffer
	cfg, exit, err := Parse(nil, &out)
	require.NoError(t, err)
	assert.True(t, exit)
	assert.Nil(t, cfg)
	assert.Contains(t, out.String(), "Usage:")
}

func TestParseServeModeNeedsNoPath(t *testing.T) {
	cfg, exit, err := Parse([]string{"-serve", "8080"}, &bytes.Buffer{})
	require.NoError(t, err)
	require.False(t, exit)
	assert.Empty(t, cfg.WorkflowPath)
	assert.Equal(t, 8080, cfg.ServePort)
}

func TestParseRejectsBadValues(t *testing.T) {
	cases := []struct {
		name string
		args []string
	}{
		{"bad log format", []string{"-log-format", "xml", "wf.hcl"}},
		{"bad log level", []string{"-log-level", "loud", "wf.hcl"}},
		{"bad override", []string{"-set", "no-equals", "wf.hcl"}},
		{"negative call timeout", []string{"-call-timeout", "-5s", "wf.hcl"}},
		{"unknown flag", []string{"-bogus", "wf.hcl"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, _, err := Parse(tc.args, &bytes.Buffer{})
			var exitErr *ExitError
			require.ErrorAs(t, err, &exitErr)
			assert.Equal(t, 2, exitErr.Code)
		})
	}
}
