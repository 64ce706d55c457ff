package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadConfig(t *testing.T) {
	t.Parallel()

	t.Run("full configuration", func(t *testing.T) {
		t.Parallel()
		path := writeConfig(t, `
server:
  address: ":9090"
backend:
  type: configmap
  configmap:
    name: autoscaling-policy
    namespace: kube-system
    key: policy.json
store:
  maxAttempts: 5
  initialBackoff: 25ms
telemetry:
  endpoint: otel-collector:4318
  insecure: true
`)
		cfg, err := LoadConfig(WithConfigPath(path))
		require.NoError(t, err)

		assert.Equal(t, ":9090", cfg.Server.Address)
		assert.Equal(t, BackendTypeConfigMap, cfg.Backend.Type)
		assert.Equal(t, "autoscaling-policy", cfg.Backend.ConfigMap.Name)
		assert.Equal(t, "kube-system", cfg.Backend.ConfigMap.Namespace)
		assert.Equal(t, "policy.json", cfg.Backend.ConfigMap.Key)
		assert.Equal(t, uint(5), cfg.Store.MaxAttempts)
		assert.Equal(t, 25*time.Millisecond, cfg.Store.InitialBackoffDuration())
		assert.Equal(t, "otel-collector:4318", cfg.Telemetry.Endpoint)
		assert.True(t, cfg.Telemetry.Insecure)
	})

	t.Run("defaults applied", func(t *testing.T) {
		t.Parallel()
		path := writeConfig(t, `
backend:
  type: memory
`)
		cfg, err := LoadConfig(WithConfigPath(path))
		require.NoError(t, err)

		assert.Equal(t, DefaultAddress, cfg.Server.Address)
		assert.Equal(t, uint(DefaultMaxAttempts), cfg.Store.MaxAttempts)
		assert.Equal(t, DefaultInitialBackoff, cfg.Store.InitialBackoffDuration())
	})

	t.Run("configmap namespace defaults", func(t *testing.T) {
		t.Parallel()
		path := writeConfig(t, `
backend:
  type: configmap
  configmap:
    name: autoscaling-policy
`)
		cfg, err := LoadConfig(WithConfigPath(path))
		require.NoError(t, err)
		assert.Equal(t, DefaultNamespace, cfg.Backend.ConfigMap.Namespace)
	})

	t.Run("invalid configurations", func(t *testing.T) {
		t.Parallel()
		tests := []struct {
			name     string
			content  string
			contains string
		}{
			{
				name:     "unknown backend",
				content:  "backend:\n  type: etcd\n",
				contains: "unknown backend type",
			},
			{
				name:     "configmap without name",
				content:  "backend:\n  type: configmap\n  configmap:\n    namespace: default\n",
				contains: "configmap name cannot be empty",
			},
			{
				name:     "configmap without section",
				content:  "backend:\n  type: configmap\n",
				contains: "configmap configuration is required",
			},
			{
				name:     "bad backoff",
				content:  "backend:\n  type: memory\nstore:\n  initialBackoff: soon\n",
				contains: "invalid store.initialBackoff",
			},
			{
				name:     "not yaml",
				content:  "{{nope",
				contains: "failed to parse YAML",
			},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				t.Parallel()
				path := writeConfig(t, tt.content)
				_, err := LoadConfig(WithConfigPath(path))
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.contains)
			})
		}
	})

	t.Run("missing file", func(t *testing.T) {
		t.Parallel()
		_, err := LoadConfig(WithConfigPath(filepath.Join(t.TempDir(), "missing.yaml")))
		require.Error(t, err)
	})

	t.Run("no source", func(t *testing.T) {
		t.Parallel()
		_, err := LoadConfig()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "no configuration source")
	})
}
