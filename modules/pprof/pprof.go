// Package pprof provide pprof server of yutorix-satori
package pprof

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"net/http/pprof"
	"time"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"github.com/Nyayurin/yutorix-satori/internal/metrics"
	"github.com/Nyayurin/yutorix-satori/modules/config"
	"github.com/Nyayurin/yutorix-satori/modules/servers"
)

const pprofDefault = `  # pprof 性能分析服务器, 一般情况下不需要启用.
  # 注意: pprof服务不支持中间件、不支持鉴权. 请不要开放到公网
  - pprof:
      # pprof服务器监听地址
      host: 127.0.0.1
      # pprof服务器监听端口
      port: 7700
      # 是否同时提供 /metrics 指标
      metrics: true
`

func init() {
	config.AddServer(&config.Server{
		Brief:   "pprof 性能分析服务器",
		Default: pprofDefault,
	})
	servers.Register("pprof", runPprof)
}

// Handler 返回 pprof 路由, metrics 为真时同时挂载 Prometheus 指标
func Handler(withMetrics bool) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/debug/pprof/", pprof.Index)
	mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
	mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
	mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
	mux.HandleFunc("/debug/pprof/trace", pprof.Trace)
	if withMetrics {
		metrics.Register()
		mux.Handle("/metrics", promhttp.Handler())
	}
	return mux
}

// runPprof 启动 pprof 性能分析服务器
func runPprof(ctx context.Context, node yaml.Node) error {
	var conf config.PprofServer
	switch err := node.Decode(&conf); {
	case err != nil:
		log.Warn("读取pprof配置失败 :", err)
		return nil
	case conf.Disabled:
		return nil
	}

	addr := fmt.Sprintf("%s:%d", conf.Host, conf.Port)
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		log.Infof("pprof 服务启动失败, 请检查端口是否被占用.")
		return errors.Wrap(err, "pprof listen")
	}
	server := &http.Server{Handler: Handler(conf.Metrics), ReadHeaderTimeout: 10 * time.Second}
	context.AfterFunc(ctx, func() {
		shutdown, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdown)
	})
	log.Infof("pprof debug 服务器已启动: %v/debug/pprof", addr)
	log.Warnf("警告: pprof 服务不支持鉴权, 请不要运行在公网.")
	if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return errors.Wrap(err, "pprof serve")
	}
	return nil
}
