// Package adapter 实现 Satori 协议的客户端, 连接 Satori 服务器接收事件并调用 API
package adapter

import (
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"github.com/Nyayurin/yutorix-satori/modules/filter"
)

// 默认时间参数
const (
	DefaultReadyTimeout      = 10 * time.Second
	DefaultHeartbeatInterval = 10 * time.Second
	DefaultPongTimeout       = 60 * time.Second
	DefaultReconnectInterval = 5 * time.Second

	writeTimeout = 15 * time.Second
)

// Properties Satori 服务器连接属性
type Properties struct {
	Host    string `yaml:"host"`
	Port    int    `yaml:"port"`
	Path    string `yaml:"path"`
	Version string `yaml:"version"`
	Token   string `yaml:"token"`
	Secure  bool   `yaml:"secure"`
}

func (p *Properties) base(scheme string) string {
	if p.Secure {
		scheme += "s"
	}
	version := p.Version
	if version == "" {
		version = "v1"
	}
	path := strings.TrimSuffix(p.Path, "/")
	if path != "" && !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return fmt.Sprintf("%s://%s%s/%s", scheme, net.JoinHostPort(p.Host, strconv.Itoa(p.Port)), path, version)
}

// EventsURL 事件推送地址 ws://host:port{path}/{version}/events
func (p *Properties) EventsURL() string {
	return p.base("ws") + "/events"
}

// ActionURL API 地址 http://host:port{path}/{version}/{resource}.{method}
func (p *Properties) ActionURL(resource, method string) string {
	return p.base("http") + "/" + resource + "." + method
}

// Options 适配器选项
type Options struct {
	// Name 适配器名称, 仅用于日志与指标
	Name string
	Properties

	ReadyTimeout      time.Duration
	HeartbeatInterval time.Duration
	PongTimeout       time.Duration
	ReconnectInterval time.Duration

	Clock   clock.Clock
	Client  *http.Client
	Dialer  *websocket.Dialer
	Filter  filter.Filter // 为空时不过滤事件
	Limiter *rate.Limiter // 为空时不限制 API 调用频率
}

func (o *Options) normalize() {
	if o.Name == "" {
		o.Name = "satori"
	}
	if o.ReadyTimeout <= 0 {
		o.ReadyTimeout = DefaultReadyTimeout
	}
	if o.HeartbeatInterval <= 0 {
		o.HeartbeatInterval = DefaultHeartbeatInterval
	}
	if o.PongTimeout <= 0 {
		o.PongTimeout = DefaultPongTimeout
	}
	if o.ReconnectInterval <= 0 {
		o.ReconnectInterval = DefaultReconnectInterval
	}
	if o.Clock == nil {
		o.Clock = clock.New()
	}
	if o.Client == nil {
		o.Client = &http.Client{Timeout: time.Minute}
	}
	if o.Dialer == nil {
		o.Dialer = &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: 15 * time.Second,
		}
	}
}
