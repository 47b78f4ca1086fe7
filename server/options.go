package server

import (
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/Nyayurin/yutorix-satori/modules/filter"
)

// 默认时间参数
const (
	DefaultIdentifyTimeout = 10 * time.Second
	DefaultPingTimeout     = 60 * time.Second

	writeTimeout = 15 * time.Second
)

// CloseUnauthorized IDENTIFY 令牌错误时使用的关闭码
const CloseUnauthorized = 3000

// Properties 服务器监听属性
type Properties struct {
	Host    string `yaml:"host"`
	Port    int    `yaml:"port"`
	Path    string `yaml:"path"`
	Version string `yaml:"version"`
	Token   string `yaml:"token"`
}

// Addr 监听地址
func (p *Properties) Addr() string {
	return net.JoinHostPort(p.Host, strconv.Itoa(p.Port))
}

// Prefix 路由前缀 {path}/{version}
func (p *Properties) Prefix() string {
	version := p.Version
	if version == "" {
		version = "v1"
	}
	path := strings.TrimSuffix(p.Path, "/")
	if path != "" && !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return fmt.Sprintf("%s/%s", path, version)
}

// RateLimit API 限速配置
type RateLimit struct {
	Enabled   bool    `yaml:"enabled"`
	Frequency float64 `yaml:"frequency"`
	Bucket    int     `yaml:"bucket"`
}

// Options 服务器选项
type Options struct {
	// Name 服务器名称, 仅用于日志与指标
	Name string
	Properties

	IdentifyTimeout time.Duration
	PingTimeout     time.Duration

	Clock     clock.Clock
	Filter    filter.Filter // 为空时推送全部事件
	RateLimit RateLimit
	Gzip      bool // 压缩 API 响应
}

func (o *Options) normalize() {
	if o.Name == "" {
		o.Name = "satori"
	}
	if o.IdentifyTimeout <= 0 {
		o.IdentifyTimeout = DefaultIdentifyTimeout
	}
	if o.PingTimeout <= 0 {
		o.PingTimeout = DefaultPingTimeout
	}
	if o.Clock == nil {
		o.Clock = clock.New()
	}
}
