package servers

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func parse(t *testing.T, src string) []map[string]yaml.Node {
	t.Helper()
	var list []map[string]yaml.Node
	require.NoError(t, yaml.Unmarshal([]byte(src), &list))
	return list
}

func TestRegisterDuplicate(t *testing.T) {
	Register("test-dup", func(context.Context, yaml.Node) error { return nil })
	assert.Panics(t, func() {
		Register("test-dup", func(context.Context, yaml.Node) error { return nil })
	})
	assert.Contains(t, Names(), "test-dup")
}

func TestRun(t *testing.T) {
	var ports atomic.Int64
	Register("test-run", func(ctx context.Context, node yaml.Node) error {
		var conf struct {
			Port int `yaml:"port"`
		}
		if err := node.Decode(&conf); err != nil {
			return err
		}
		ports.Add(int64(conf.Port))
		<-ctx.Done()
		return nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- Run(ctx, parse(t, `
- test-run:
    port: 1
- test-run:
    port: 2
- unknown:
    port: 3
`))
	}()
	assert.Eventually(t, func() bool { return ports.Load() == 3 }, time.Second, 10*time.Millisecond)
	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Run did not return")
	}
}

func TestRunError(t *testing.T) {
	boom := errors.New("boom")
	Register("test-fail", func(context.Context, yaml.Node) error { return boom })
	Register("test-wait", func(ctx context.Context, _ yaml.Node) error {
		<-ctx.Done()
		return nil
	})
	err := Run(context.Background(), parse(t, `
- test-wait: {}
- test-fail: {}
`))
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "run test-fail")
}
