// Package base provides base config for yutorix-satori
package base

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"

	"github.com/Nyayurin/yutorix-satori/internal/mime"
	"github.com/Nyayurin/yutorix-satori/modules/config"
)

// command flags
var (
	LittleC string // config file
	LittleD bool   // debug mode
	LittleH bool   // help
	LittleV bool   // version
)

// config file flags
var (
	Debug        bool // 是否开启 debug 模式
	SkipMimeScan bool // 是否跳过Mime扫描

	LogAging    = time.Hour * 24 * 15 // 日志时效
	LogForceNew bool                  // 是否在每次启动时强制创建全新的文件储存日志
	LogColorful bool                  // 是否启用日志颜色
	LogLevel    = "info"              // 日志等级

	Servers []map[string]yaml.Node // 连接服务列表
)

var flags *pflag.FlagSet

// Parse parse flags
func Parse() {
	ParseArgs(os.Args[1:])
}

// ParseArgs 解析给定的命令行参数
func ParseArgs(args []string) {
	flags = pflag.NewFlagSet("yutorix-satori", pflag.ExitOnError)
	flags.StringVarP(&LittleC, "config", "c", "config.yml", "configuration filename")
	flags.BoolVarP(&LittleD, "debug", "D", false, "debug mode")
	flags.BoolVarP(&LittleH, "help", "h", false, "this help")
	flags.BoolVarP(&LittleV, "version", "v", false, "show version")
	_ = flags.Parse(args)
}

// Init read config from yml file
func Init() {
	Load(config.Parse(LittleC))
}

// Load 应用已解析的配置
func Load(conf *config.Config) {
	{ // bool config
		Debug = conf.Output.Debug || LittleD
		SkipMimeScan = conf.Message.SkipMimeScan
		LogForceNew = conf.Output.LogForceNew
		LogColorful = conf.Output.LogColorful == nil || *conf.Output.LogColorful
	}
	{ // others
		if conf.Output.LogLevel != "" {
			LogLevel = conf.Output.LogLevel
		}
		if conf.Output.LogAging > 0 {
			LogAging = time.Hour * 24 * time.Duration(conf.Output.LogAging)
		} else {
			LogAging = time.Hour * 24 * 365
		}
		Servers = conf.Servers
	}
	mime.SkipScan = SkipMimeScan
}

// Help cli命令行-h的帮助提示
func Help() {
	fmt.Printf(`yutorix-satori service
version: %s
Usage:
yutorix-satori [options]
Options:
`, Version)
	flags.PrintDefaults()
	os.Exit(0)
}
