// Package relay 是 yutorix-satori 的主程序: 按配置启动上游适配器、下游服务器与调试服务
package relay

import (
	"fmt"
	"os"

	log "github.com/sirupsen/logrus"

	"github.com/Nyayurin/yutorix-satori/global"
	"github.com/Nyayurin/yutorix-satori/internal/base"
	"github.com/Nyayurin/yutorix-satori/modules/servers"
)

// Main 启动主程序
func Main() {
	base.Parse()
	switch {
	case base.LittleH:
		base.Help()
	case base.LittleV:
		fmt.Println(base.Version)
		os.Exit(0)
	}
	base.Init()
	InitLog()

	log.Info("当前版本:", base.Version)
	if base.Debug {
		log.SetLevel(log.DebugLevel)
		log.SetReportCaller(true)
		log.Warnf("已开启Debug模式.")
	}
	if len(base.Servers) == 0 {
		log.Warn("配置文件中没有任何服务, 程序将直接退出.")
		return
	}

	ctx := global.SetupMainSignalHandler()
	log.Info("资源初始化完成, 开始处理信息.")
	if err := servers.Run(ctx, base.Servers); err != nil {
		log.Errorf("服务异常退出: %v", err)
		os.Exit(1)
	}
	log.Info("已停止全部服务.")
}
