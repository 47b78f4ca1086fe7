package relay

import (
	"context"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
	"gopkg.in/yaml.v3"

	"github.com/Nyayurin/yutorix-satori/adapter"
	"github.com/Nyayurin/yutorix-satori/modules/config"
	"github.com/Nyayurin/yutorix-satori/modules/filter"
	"github.com/Nyayurin/yutorix-satori/modules/servers"
	"github.com/Nyayurin/yutorix-satori/server"
)

const adapterDefault = `  # 上游 Satori 服务器, 本程序作为客户端连接并接收事件
  - satori-adapter:
      # 名称, 用于日志与指标
      name: upstream
      # 上游服务器地址
      host: 127.0.0.1
      # 上游服务器端口
      port: 5500
      # 路由前缀
      path: ''
      # 协议版本
      version: v1
      # 鉴权令牌
      token: ''
      # 是否使用 wss/https
      secure: false
      # 心跳间隔 单位毫秒
      heartbeat-interval: 10000
      # 重连间隔 单位毫秒
      reconnect-interval: 5000
      middlewares:
        <<: *default # 引用默认中间件
`

const serverDefault = `  # Satori 服务器, 供下游客户端连接, 事件与 API 均转发自上游
  - satori-server:
      # 名称, 用于日志与指标
      name: downstream
      # 监听地址
      host: 127.0.0.1
      # 监听端口
      port: 5501
      # 路由前缀
      path: ''
      # 协议版本
      version: v1
      # 鉴权令牌, 为空时不鉴权
      token: ''
      # 是否压缩 API 响应
      gzip: false
      middlewares:
        <<: *default # 引用默认中间件
`

// defaultBridge 全部 satori-adapter 与 satori-server 共享的转发桥
var defaultBridge = NewBridge()

func init() {
	config.AddServer(&config.Server{
		Brief:   "Satori 上游适配器",
		Default: adapterDefault,
	})
	config.AddServer(&config.Server{
		Brief:   "Satori 下游服务器",
		Default: serverDefault,
	})
	servers.Register("satori-adapter", func(ctx context.Context, node yaml.Node) error {
		return runAdapter(ctx, defaultBridge, node)
	})
	servers.Register("satori-server", func(ctx context.Context, node yaml.Node) error {
		return runServer(ctx, defaultBridge, node)
	})
}

// newAdapter 根据配置创建上游适配器
func newAdapter(conf *config.SatoriAdapter) (*adapter.Adapter, error) {
	f, err := filter.Load(conf.Filter)
	if err != nil {
		return nil, err
	}
	opts := adapter.Options{
		Name: conf.Name,
		Properties: adapter.Properties{
			Host:    conf.Host,
			Port:    conf.Port,
			Path:    conf.Path,
			Version: conf.Version,
			Token:   conf.Token,
			Secure:  conf.Secure,
		},
		HeartbeatInterval: time.Duration(conf.HeartbeatInterval) * time.Millisecond,
		ReconnectInterval: time.Duration(conf.ReconnectInterval) * time.Millisecond,
		Filter:            f,
	}
	if conf.RateLimit.Enabled {
		opts.Limiter = rate.NewLimiter(rate.Limit(conf.RateLimit.Frequency), conf.RateLimit.Bucket)
	}
	return adapter.New(opts), nil
}

// newServer 根据配置创建下游服务器
func newServer(conf *config.SatoriServer, handler server.Handler) (*server.Server, error) {
	f, err := filter.Load(conf.Filter)
	if err != nil {
		return nil, err
	}
	return server.New(server.Options{
		Name: conf.Name,
		Properties: server.Properties{
			Host:    conf.Host,
			Port:    conf.Port,
			Path:    conf.Path,
			Version: conf.Version,
			Token:   conf.Token,
		},
		Filter: f,
		RateLimit: server.RateLimit{
			Enabled:   conf.RateLimit.Enabled,
			Frequency: conf.RateLimit.Frequency,
			Bucket:    conf.RateLimit.Bucket,
		},
		Gzip: conf.Gzip,
	}, handler), nil
}

// runAdapter 运行上游适配器直到 ctx 结束
func runAdapter(ctx context.Context, b *Bridge, node yaml.Node) error {
	var conf config.SatoriAdapter
	switch err := node.Decode(&conf); {
	case err != nil:
		log.Warn("读取 satori-adapter 配置失败 :", err)
		return nil
	case conf.Disabled:
		return nil
	}
	a, err := newAdapter(&conf)
	if err != nil {
		return errors.Wrap(err, "satori-adapter")
	}
	b.AddAdapter(a)
	defer b.RemoveAdapter(a)
	log.Infof("开始连接上游 Satori 服务器 %v: %v", a.Name(), conf.Host)
	return a.Start(ctx)
}

// runServer 运行下游服务器直到 ctx 结束
func runServer(ctx context.Context, b *Bridge, node yaml.Node) error {
	var conf config.SatoriServer
	switch err := node.Decode(&conf); {
	case err != nil:
		log.Warn("读取 satori-server 配置失败 :", err)
		return nil
	case conf.Disabled:
		return nil
	}
	s, err := newServer(&conf, b)
	if err != nil {
		return errors.Wrap(err, "satori-server")
	}
	b.AddServer(s)
	defer b.RemoveServer(s)
	log.Infof("Satori 服务器已启动: %v", conf.Port)
	if err := s.Start(ctx); err != nil {
		log.Infof("Satori 服务器 %v 启动失败, 请检查端口是否被占用.", s.Name())
		return errors.Wrap(err, "satori-server")
	}
	return nil
}
