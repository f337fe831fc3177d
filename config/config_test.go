package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/becomeliminal/bridge-go-sdk/core"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "futureself.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadWithDefaults(t *testing.T) {
	path := writeConfig(t, `
api:
  base_url: https://api.example.com
  api_key: abc
memory:
  enabled: true
  owner: alice
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	require.Equal(t, "https://api.example.com", cfg.API.BaseURL)
	require.Equal(t, "http", cfg.API.Transport)
	require.Equal(t, 60*time.Second, cfg.API.Timeout)
	require.Equal(t, 3, cfg.Bridge.MaxRetries)
	require.True(t, cfg.Bridge.AutoRetry)
	require.Equal(t, 21, cfg.Memory.MaxInteractions)
	require.Equal(t, 3, cfg.Memory.MaxSummaries)
	require.Equal(t, "alice", cfg.Memory.Owner)
	require.Equal(t, "info", cfg.Logging.Level)
}

func TestLoadEnvOverrides(t *testing.T) {
	path := writeConfig(t, `
api:
  base_url: https://api.example.com
`)
	t.Setenv("FUTURESELF_BRIDGE_MAX_RETRIES", "5")
	t.Setenv("FUTURESELF_BRIDGE_SIGNATURE_ALGORITHM", "pq")

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, 5, cfg.Bridge.MaxRetries)
	require.Equal(t, "pq", cfg.Bridge.SignatureAlgorithm)
}

func TestValidateFailures(t *testing.T) {
	cases := map[string]string{
		"unknown transport": `
api:
  transport: smoke-signal
`,
		"websocket without url": `
api:
  transport: websocket
`,
		"negative retries": `
bridge:
  max_retries: -1
`,
		"unknown backend": `
memory:
  backend: tape
`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Load(writeConfig(t, body))
			require.Error(t, err)
			require.True(t, errors.Is(err, core.ErrInvalidConfig), "got %v", err)
		})
	}
}

func TestValidateSignatureAlgorithm(t *testing.T) {
	_, err := Load(writeConfig(t, `
bridge:
  signature_algorithm: rsa
`))
	require.Error(t, err)
	require.True(t, errors.Is(err, core.ErrUnsupportedAlgorithm))
}

func TestLoadMissingExplicitFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}
