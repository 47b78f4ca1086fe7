// Package servers provide servers register
package servers

import (
	"context"
	"sort"
	"sync"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"
)

// Runner 根据配置节点运行一个服务, ctx 取消后应尽快返回
type Runner func(ctx context.Context, node yaml.Node) error

var (
	mu  sync.RWMutex
	svr = make(map[string]Runner)
)

// Register 注册 Server
func Register(name string, proc Runner) {
	mu.Lock()
	defer mu.Unlock()
	_, ok := svr[name]
	if ok {
		panic(name + " server has existed")
	}
	svr[name] = proc
}

// Names 返回已注册的服务名
func Names() []string {
	mu.RLock()
	defer mu.RUnlock()
	names := make([]string, 0, len(svr))
	for name := range svr {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Run 运行 list 中的全部服务, 阻塞到 ctx 取消或任一服务返回错误
//
// 未注册的服务名会被忽略并输出警告
func Run(ctx context.Context, list []map[string]yaml.Node) error {
	group, ctx := errgroup.WithContext(ctx)
	mu.RLock()
	for _, l := range list {
		for name, conf := range l {
			fn, ok := svr[name]
			if !ok {
				log.Warnf("未知的服务类型: %v", name)
				continue
			}
			name, conf := name, conf
			group.Go(func() error {
				return errors.Wrapf(fn(ctx, conf), "run %v", name)
			})
		}
	}
	mu.RUnlock()
	return group.Wait()
}
