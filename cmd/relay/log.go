package relay

import (
	log "github.com/sirupsen/logrus"

	"github.com/Nyayurin/yutorix-satori/global"
	"github.com/Nyayurin/yutorix-satori/internal/base"
)

// InitLog 初始化日志格式与 hook
func InitLog() {
	w, err := global.NewRotateWriter("logs", base.LogAging, base.LogForceNew)
	if err != nil {
		log.Errorf("rotatelogs init err: %v", err)
		panic(err)
	}

	consoleFormatter := global.LogFormat{EnableColor: base.LogColorful}
	fileFormatter := global.LogFormat{EnableColor: false}
	log.AddHook(global.NewLocalHook(w, consoleFormatter, fileFormatter, global.GetLogLevel(base.LogLevel)...))
}
