package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_expand(t *testing.T) {
	tests := []struct {
		src      string
		mapping  func(string) string
		expected string
	}{
		{
			src:      "foo: ${bar}",
			mapping:  strings.ToUpper,
			expected: "foo: BAR",
		},
		{
			src:      "$123",
			mapping:  strings.ToUpper,
			expected: "$123",
		},
		{
			src:      "port: ${PORT:5500}",
			mapping:  func(string) string { return "" },
			expected: "port: 5500",
		},
		{
			src:      "url: ${URL:ws://localhost/}",
			mapping:  func(string) string { return "" },
			expected: "url: ws://localhost/",
		},
	}
	for i, tt := range tests {
		if got := expand(tt.src, tt.mapping); got != tt.expected {
			t.Errorf("testcase %d failed, expected %v but got %v", i, tt.expected, got)
		}
	}
}

const sample = `
output:
  log-level: debug
  log-aging: 3
default-middlewares: &default
  filter: filter.json
  rate-limit:
    enabled: true
    frequency: 2
    bucket: 4
servers:
  - satori-adapter:
      name: upstream
      host: ${TEST_SATORI_HOST}
      port: 5500
      token: ${TEST_SATORI_TOKEN:none}
      middlewares:
        <<: *default
  - satori-server:
      port: 5501
`

func TestDecode(t *testing.T) {
	t.Setenv("TEST_SATORI_HOST", "10.0.0.2")
	conf, err := Decode([]byte(sample))
	require.NoError(t, err)
	assert.Equal(t, "debug", conf.Output.LogLevel)
	assert.Equal(t, 3, conf.Output.LogAging)
	assert.Nil(t, conf.Output.LogColorful)
	require.Len(t, conf.Servers, 2)

	node, ok := conf.Servers[0]["satori-adapter"]
	require.True(t, ok)
	var adapter SatoriAdapter
	require.NoError(t, node.Decode(&adapter))
	assert.Equal(t, "upstream", adapter.Name)
	assert.Equal(t, "10.0.0.2", adapter.Host)
	assert.Equal(t, 5500, adapter.Port)
	assert.Equal(t, "none", adapter.Token)
	assert.Equal(t, "filter.json", adapter.Filter)
	assert.True(t, adapter.RateLimit.Enabled)
	assert.Equal(t, 4, adapter.RateLimit.Bucket)

	var server SatoriServer
	node = conf.Servers[1]["satori-server"]
	require.NoError(t, node.Decode(&server))
	assert.Equal(t, 5501, server.Port)
}

func TestLoadWithEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yml")
	require.NoError(t, os.WriteFile(path, []byte(defaultConfig), 0o644))
	t.Setenv("SATORI_LOG_LEVEL", "warn")
	t.Setenv("SATORI_DEBUG", "yes")
	t.Setenv("SATORI_SERVER_PORT", "5600")
	t.Setenv("SATORI_SERVER_TOKEN", "secret")
	t.Setenv("SATORI_ADAPTER_HOST", "")

	conf, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "warn", conf.Output.LogLevel)
	assert.True(t, conf.Output.Debug)
	assert.Equal(t, 15, conf.Output.LogAging)
	require.Len(t, conf.Servers, 1)

	var server SatoriServer
	node := conf.Servers[0]["satori-server"]
	require.NoError(t, node.Decode(&server))
	assert.Equal(t, "0.0.0.0", server.Host)
	assert.Equal(t, 5600, server.Port)
	assert.Equal(t, "secret", server.Token)
}

func TestLoadAdapterEnvDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yml")
	require.NoError(t, os.WriteFile(path, []byte(defaultConfig), 0o644))
	t.Setenv("SATORI_ADAPTER_HOST", "example.com")
	t.Setenv("SATORI_ADAPTER_PORT", "")
	t.Setenv("SATORI_ADAPTER_VERSION", "")
	t.Setenv("SATORI_SERVER_PORT", "")

	conf, err := Load(path)
	require.NoError(t, err)
	require.Len(t, conf.Servers, 1)

	var adapter SatoriAdapter
	node := conf.Servers[0]["satori-adapter"]
	require.NoError(t, node.Decode(&adapter))
	assert.Equal(t, "example.com", adapter.Host)
	assert.Equal(t, 5500, adapter.Port)
	assert.Equal(t, "v1", adapter.Version)
	assert.False(t, adapter.Secure)

	t.Setenv("SATORI_ADAPTER_PORT", "6000")
	conf, err = Load(path)
	require.NoError(t, err)
	node = conf.Servers[0]["satori-adapter"]
	require.NoError(t, node.Decode(&adapter))
	assert.Equal(t, 6000, adapter.Port)
}

func TestLoadMissing(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yml"))
	assert.True(t, os.IsNotExist(err))
}

func TestGenerate(t *testing.T) {
	saved := serverconfs
	defer func() { serverconfs = saved }()
	serverconfs = nil
	AddServer(&Server{Brief: "a", Default: "  - a:\n      port: 1\n"})
	AddServer(&Server{Brief: "b", Default: "  - b:\n      port: 2\n"})

	generated := Generate("21x9\n")
	conf, err := Decode([]byte(generated))
	require.NoError(t, err)
	require.Len(t, conf.Servers, 2)
	assert.Contains(t, conf.Servers[0], "b")
	assert.Contains(t, conf.Servers[1], "a")
}
