package base

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Nyayurin/yutorix-satori/internal/mime"
	"github.com/Nyayurin/yutorix-satori/modules/config"
)

func TestParseArgs(t *testing.T) {
	ParseArgs([]string{"-c", "relay.yml", "-D"})
	assert.Equal(t, "relay.yml", LittleC)
	assert.True(t, LittleD)
	assert.False(t, LittleH)

	ParseArgs(nil)
	assert.Equal(t, "config.yml", LittleC)
	assert.False(t, LittleD)
}

func TestLoad(t *testing.T) {
	defer func() { mime.SkipScan = false }()
	ParseArgs(nil)
	conf, err := config.Decode([]byte(`
output:
  log-level: warn
  log-aging: 2
  log-colorful: false
message:
  skip-mime-scan: true
servers:
  - pprof:
      port: 7700
`))
	require.NoError(t, err)
	Load(conf)
	assert.Equal(t, "warn", LogLevel)
	assert.Equal(t, 48*time.Hour, LogAging)
	assert.False(t, LogColorful)
	assert.False(t, Debug)
	assert.True(t, SkipMimeScan)
	assert.True(t, mime.SkipScan)
	assert.Len(t, Servers, 1)
}
