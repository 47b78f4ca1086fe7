//go:build windows

package global

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/Microsoft/go-winio"
	log "github.com/sirupsen/logrus"
)

// SetupMainSignalHandler 返回一个在收到 SIGINT/SIGTERM 时取消的 context
//
// windows 下没有 SIGUSR1, 通过向 \\.\pipe\yutorix-satori-<pid> 写入 dumpstack 触发栈转储
func SetupMainSignalHandler() context.Context {
	mainOnce.Do(func() {
		mainCtx, mainCancel = context.WithCancel(context.Background())
		pipeName := fmt.Sprintf(`\\.\pipe\yutorix-satori-%d`, os.Getpid())
		pipe, err := winio.ListenPipe(pipeName, &winio.PipeConfig{})
		if err != nil {
			log.Errorf("创建 named pipe 失败. 将无法使用 dumpstack 功能: %v", err)
		} else {
			go servePipe(pipe)
			context.AfterFunc(mainCtx, func() { _ = pipe.Close() })
		}
		mc := make(chan os.Signal, 2)
		signal.Notify(mc, os.Interrupt, syscall.SIGTERM)
		go func() {
			for sig := range mc {
				stopMain(sig)
			}
		}()
	})
	return mainCtx
}

func servePipe(pipe net.Listener) {
	maxTaskLen := 0
	for t := range validTasks {
		if l := len(t); l > maxTaskLen {
			maxTaskLen = l
		}
	}
	for {
		c, err := pipe.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) || errors.Is(err, winio.ErrPipeListenerClosed) || strings.Contains(err.Error(), "closed") {
				return
			}
			log.Errorf("accept named pipe 失败: %v", err)
			continue
		}
		go func() {
			defer c.Close()
			_ = c.SetReadDeadline(time.Now().Add(5 * time.Second))
			buf := make([]byte, maxTaskLen)
			n, err := c.Read(buf)
			if err != nil {
				log.Errorf("读取 named pipe 失败: %v", err)
				return
			}
			cmd := string(buf[:n])
			if task, ok := validTasks[cmd]; ok {
				task()
				return
			}
			log.Warnf("named pipe 读取到未知指令: %q", cmd)
		}()
	}
}
