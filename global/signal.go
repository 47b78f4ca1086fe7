package global

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
)

var (
	mainCtx    context.Context
	mainCancel context.CancelFunc
	mainOnce   sync.Once

	dumpMutex sync.Mutex
)

// 可通过信号或 named pipe 触发的维护任务
var validTasks = map[string]func(){
	"dumpstack": dumpStack,
}

// stopMain 在收到退出信号后取消主 context
func stopMain(sig os.Signal) {
	if mainCtx.Err() == nil {
		log.Infof("收到信号 %v, 开始关闭服务", sig)
	}
	mainCancel()
}

func dumpStack() {
	dumpMutex.Lock()
	defer dumpMutex.Unlock()

	log.Info("开始 dump 当前 goroutine stack 信息")

	buf := make([]byte, 1024)
	for {
		n := runtime.Stack(buf, true)
		if n < len(buf) {
			buf = buf[:n]
			break
		}
		buf = make([]byte, 2*len(buf))
	}

	fileName := fmt.Sprintf("%s.%d.stacks.%d.log", filepath.Base(os.Args[0]), os.Getpid(), time.Now().Unix())
	if err := os.WriteFile(fileName, buf, 0o644); err != nil {
		log.Errorf("保存 stackdump 到文件时出现错误: %v", err)
		log.Warnf("无法保存 stackdump. 将直接打印\n %s", buf)
		return
	}
	log.Infof("stackdump 已保存至 %s", fileName)
}
