package adapter

import (
	"context"
	"fmt"
	"runtime/debug"

	log "github.com/sirupsen/logrus"

	"github.com/Nyayurin/yutorix-satori/pkg/msg"
	"github.com/Nyayurin/yutorix-satori/pkg/satori"
)

// Context 事件处理上下文
//
// 内嵌的 context.Context 不会随连接断开而取消
type Context struct {
	context.Context
	Adapter *Adapter
	Actions *Actions
	Event   *satori.Event
}

// EventHandler 事件处理函数, 返回的错误仅会被记录
type EventHandler func(*Context) error

func (a *Adapter) dispatch(c *Context) {
	defer func() {
		if err := recover(); err != nil {
			log.Errorf("处理事件时出现错误: %v\n%s", err, debug.Stack())
		}
	}()
	for _, h := range a.eventHandlers() {
		if err := h(c); err != nil {
			log.Warnf("处理事件 %v(%v) 时出错: %v", c.Event.Type, c.Event.ID, err)
		}
	}
}

func describe(e *satori.Event) string {
	if e.Type == satori.EventMessageCreated && e.Channel != nil && e.User != nil && e.Message != nil {
		return fmt.Sprintf("%s(%s) 接收事件(%s): %s(%s)-%s(%s): %s",
			e.Platform, e.SelfID, e.Type,
			e.Channel.Name, e.Channel.ID,
			nick(e), e.User.ID,
			msg.PlainText(e.Message.Content))
	}
	return fmt.Sprintf("%s(%s) 接收事件: %s", e.Platform, e.SelfID, e.Type)
}

func nick(e *satori.Event) string {
	if e.Member != nil && e.Member.Nick != "" {
		return e.Member.Nick
	}
	if e.User.Nick != "" {
		return e.User.Nick
	}
	return e.User.Name
}
