//go:build !windows

package global

import (
	"context"
	"os"
	"os/signal"
	"syscall"
)

// SetupMainSignalHandler 返回一个在收到 SIGINT/SIGTERM 时取消的 context
//
// SIGUSR1 会将当前所有 goroutine 的栈保存到文件
func SetupMainSignalHandler() context.Context {
	mainOnce.Do(func() {
		mainCtx, mainCancel = context.WithCancel(context.Background())
		mc := make(chan os.Signal, 3)
		signal.Notify(mc, os.Interrupt, syscall.SIGTERM, syscall.SIGUSR1)
		go func() {
			for sig := range mc {
				switch sig {
				case os.Interrupt, syscall.SIGTERM:
					stopMain(sig)
				case syscall.SIGUSR1:
					validTasks["dumpstack"]()
				}
			}
		}()
	})
	return mainCtx
}
