// Package config 包含操作配置文件的相关函数
package config

import (
	"bufio"
	_ "embed" // embed the default config file
	"fmt"
	"io/fs"
	"os"
	"regexp"
	"strings"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"github.com/Nyayurin/yutorix-satori/internal/param"
)

// defaultConfig 默认配置文件
//
//go:embed default_config.yml
var defaultConfig string

// Config 总配置文件
type Config struct {
	Output struct {
		LogLevel    string `yaml:"log-level"`
		LogAging    int    `yaml:"log-aging"`
		LogForceNew bool   `yaml:"log-force-new"`
		LogColorful *bool  `yaml:"log-colorful"`
		Debug       bool   `yaml:"debug"`
	} `yaml:"output"`

	Message struct {
		SkipMimeScan bool `yaml:"skip-mime-scan"`
	} `yaml:"message"`

	Servers []map[string]yaml.Node `yaml:"servers"`
}

// MiddleWares 通信中间件
type MiddleWares struct {
	Filter    string `yaml:"filter"`
	RateLimit struct {
		Enabled   bool    `yaml:"enabled"`
		Frequency float64 `yaml:"frequency"`
		Bucket    int     `yaml:"bucket"`
	} `yaml:"rate-limit"`
}

// SatoriAdapter Satori 客户端配置, 连接上游 Satori 服务器
type SatoriAdapter struct {
	Disabled          bool   `yaml:"disabled"`
	Name              string `yaml:"name"`
	Host              string `yaml:"host"`
	Port              int    `yaml:"port"`
	Path              string `yaml:"path"`
	Version           string `yaml:"version"`
	Token             string `yaml:"token"`
	Secure            bool   `yaml:"secure"`
	HeartbeatInterval int    `yaml:"heartbeat-interval"` // 单位毫秒
	ReconnectInterval int    `yaml:"reconnect-interval"` // 单位毫秒

	MiddleWares `yaml:"middlewares"`
}

// SatoriServer Satori 服务器配置, 供下游客户端连接
type SatoriServer struct {
	Disabled bool   `yaml:"disabled"`
	Name     string `yaml:"name"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Path     string `yaml:"path"`
	Version  string `yaml:"version"`
	Token    string `yaml:"token"`
	Gzip     bool   `yaml:"gzip"`

	MiddleWares `yaml:"middlewares"`
}

// PprofServer pprof性能分析服务器相关配置
type PprofServer struct {
	Disabled bool   `yaml:"disabled"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Metrics  bool   `yaml:"metrics"`
}

// Server 的简介和初始配置
type Server struct {
	Brief   string
	Default string
}

var serverconfs []*Server

// AddServer 添加该服务的简介和默认配置
func AddServer(s *Server) {
	serverconfs = append(serverconfs, s)
}

// Parse 从默认配置文件路径中获取
//
// 配置文件不存在且未通过环境变量配置服务时生成默认配置文件并退出
func Parse(path string) *Config {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Warnf("加载 .env 文件时出现错误: %v", err)
	}
	fromEnv := os.Getenv("SATORI_ADAPTER_HOST") != "" || os.Getenv("SATORI_SERVER_PORT") != ""
	config, err := Load(path)
	switch {
	case errors.Is(err, fs.ErrNotExist) && !fromEnv:
		generateConfig(path)
		os.Exit(0)
	case errors.Is(err, fs.ErrNotExist):
		config = &Config{}
		applyEnv(config)
	case err != nil:
		log.Fatal("配置文件不合法!", err)
	}
	return config
}

// Load 读取配置文件并应用环境变量
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	config, err := Decode(data)
	if err != nil {
		return nil, err
	}
	applyEnv(config)
	return config, nil
}

// Decode 展开环境变量后解析配置
func Decode(data []byte) (*Config, error) {
	config := &Config{}
	if err := yaml.Unmarshal([]byte(expand(string(data), os.Getenv)), config); err != nil {
		return nil, errors.Wrap(err, "decode config")
	}
	return config, nil
}

// applyEnv 从 SATORI_ 前缀的环境变量中覆盖配置
func applyEnv(config *Config) {
	param.SetExcludeDefault(&config.Output.LogLevel, os.Getenv("SATORI_LOG_LEVEL"), "")
	if v := os.Getenv("SATORI_DEBUG"); v != "" {
		config.Output.Debug = param.EnsureBool(v, config.Output.Debug)
	}
	if v := os.Getenv("SATORI_SKIP_MIME_SCAN"); v != "" {
		config.Message.SkipMimeScan = param.EnsureBool(v, config.Message.SkipMimeScan)
	}

	if os.Getenv("SATORI_ADAPTER_HOST") != "" {
		conf := &SatoriAdapter{Name: "env"}
		param.SetExcludeDefault(&conf.Host, os.Getenv("SATORI_ADAPTER_HOST"), "")
		param.SetExcludeDefault(&conf.Port, param.EnsureInt(os.Getenv("SATORI_ADAPTER_PORT"), 0), 0)
		param.SetExcludeDefault(&conf.Path, os.Getenv("SATORI_ADAPTER_PATH"), "")
		param.SetExcludeDefault(&conf.Version, os.Getenv("SATORI_ADAPTER_VERSION"), "")
		param.SetExcludeDefault(&conf.Token, os.Getenv("SATORI_ADAPTER_TOKEN"), "")
		conf.Secure = param.EnsureBool(os.Getenv("SATORI_ADAPTER_SECURE"), false)
		param.SetAtDefault(&conf.Port, 5500, 0)
		param.SetAtDefault(&conf.Version, "v1", "")
		config.Servers = append(config.Servers, encodeNode("satori-adapter", conf))
	}
	if os.Getenv("SATORI_SERVER_PORT") != "" {
		conf := &SatoriServer{Name: "env"}
		param.SetExcludeDefault(&conf.Host, os.Getenv("SATORI_SERVER_HOST"), "")
		param.SetExcludeDefault(&conf.Port, param.EnsureInt(os.Getenv("SATORI_SERVER_PORT"), 0), 0)
		param.SetExcludeDefault(&conf.Path, os.Getenv("SATORI_SERVER_PATH"), "")
		param.SetExcludeDefault(&conf.Version, os.Getenv("SATORI_SERVER_VERSION"), "")
		param.SetExcludeDefault(&conf.Token, os.Getenv("SATORI_SERVER_TOKEN"), "")
		param.SetAtDefault(&conf.Host, "0.0.0.0", "")
		param.SetAtDefault(&conf.Version, "v1", "")
		config.Servers = append(config.Servers, encodeNode("satori-server", conf))
	}
}

func encodeNode(name string, v interface{}) map[string]yaml.Node {
	node := yaml.Node{}
	_ = node.Encode(v)
	return map[string]yaml.Node{name: node}
}

// expand 使用正则进行环境变量展开
// os.ExpandEnv 字符 $ 无法逃逸
// https://github.com/golang/go/issues/43482
func expand(s string, mapping func(string) string) string {
	r := regexp.MustCompile(`\${([a-zA-Z_]+[a-zA-Z0-9_:/.]*)}`)
	return r.ReplaceAllStringFunc(s, func(s string) string {
		s = strings.Trim(s, "${}")
		before, after, ok := strings.Cut(s, ":")
		m := mapping(before)
		if ok && m == "" {
			return after
		}
		return m
	})
}

// Generate 拼接默认配置, selected 为所选服务的编号(从 1 开始)
func Generate(selected string) string {
	sb := strings.Builder{}
	sb.WriteString(defaultConfig)
	for _, r := range selected {
		r -= '1'
		if r >= 0 && int(r) < len(serverconfs) {
			sb.WriteString(serverconfs[r].Default)
		}
	}
	return sb.String()
}

// generateConfig 生成配置文件
func generateConfig(path string) {
	fmt.Println("未找到配置文件，正在为您生成配置文件中！")
	sb := strings.Builder{}
	sb.WriteString("请选择你需要的通信方式:\n")
	for i, s := range serverconfs {
		sb.WriteString(fmt.Sprintf("> %d: %s\n", i+1, s.Brief))
	}
	sb.WriteString("请输入你需要的编号(1-9)，可输入多个，同一编号也可输入多个(如: 112)\n")
	sb.WriteString("您的选择是:")
	fmt.Print(sb.String())
	input := bufio.NewReader(os.Stdin)
	readString, err := input.ReadString('\n')
	if err != nil {
		log.Fatal("输入不合法: ", err)
	}
	_ = os.WriteFile(path, []byte(Generate(readString)), 0o644)
	fmt.Printf("默认配置文件已生成，请修改 %s 后重新启动!\n", path)
	_, _ = input.ReadString('\n')
}
