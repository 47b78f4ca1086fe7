package relay

import (
	"context"
	"net/http"
	"sync"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"go.uber.org/multierr"

	"github.com/Nyayurin/yutorix-satori/adapter"
	"github.com/Nyayurin/yutorix-satori/pkg/satori"
	"github.com/Nyayurin/yutorix-satori/server"
)

// ErrNoUpstream 没有可用于转发请求的上游
var ErrNoUpstream = errors.New("no upstream available")

// upstream 一个上游适配器及其当前的登录信息
type upstream struct {
	a *adapter.Adapter

	mu     sync.RWMutex
	logins []satori.Login
}

func (u *upstream) setLogins(logins []satori.Login) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.logins = append([]satori.Login(nil), logins...)
}

// update 根据 login-* 事件更新登录信息
func (u *upstream) update(e *satori.Event) bool {
	if e.Login == nil {
		return false
	}
	login := *e.Login
	if login.Platform == "" {
		login.Platform = e.Platform
	}
	selfID := login.SelfID()
	if selfID == "" {
		selfID = e.SelfID
	}
	u.mu.Lock()
	defer u.mu.Unlock()
	idx := -1
	for i := range u.logins {
		if u.logins[i].Platform == login.Platform && u.logins[i].SelfID() == selfID {
			idx = i
			break
		}
	}
	switch {
	case e.Type == satori.EventLoginRemoved && idx >= 0:
		u.logins = append(u.logins[:idx], u.logins[idx+1:]...)
	case e.Type == satori.EventLoginRemoved:
		return false
	case idx >= 0:
		u.logins[idx] = login
	default:
		u.logins = append(u.logins, login)
	}
	return true
}

func (u *upstream) serves(platform, selfID string) bool {
	u.mu.RLock()
	defer u.mu.RUnlock()
	for i := range u.logins {
		if u.logins[i].Platform == platform && u.logins[i].SelfID() == selfID {
			return true
		}
	}
	return false
}

func (u *upstream) snapshot() []satori.Login {
	u.mu.RLock()
	defer u.mu.RUnlock()
	return append([]satori.Login(nil), u.logins...)
}

// Bridge 连接上游适配器与下游服务器
//
// 上游事件推送给全部下游会话, 下游 API 请求转发到持有对应登录的上游
type Bridge struct {
	mu        sync.RWMutex
	upstreams []*upstream
	servers   []*server.Server
}

// NewBridge 创建空的转发桥
func NewBridge() *Bridge {
	return &Bridge{}
}

// AddAdapter 接入上游适配器, 须在 Start 前调用
func (b *Bridge) AddAdapter(a *adapter.Adapter) {
	u := &upstream{a: a}
	a.OnConnect(func(_ *adapter.Adapter, logins []satori.Login) {
		u.setLogins(logins)
		b.syncLogins()
	})
	a.OnClose(func(*adapter.Adapter) {
		u.setLogins(nil)
		b.syncLogins()
	})
	a.OnEvent(func(c *adapter.Context) error {
		switch c.Event.Type {
		case satori.EventLoginAdded, satori.EventLoginRemoved, satori.EventLoginUpdated:
			if u.update(c.Event) {
				b.syncLogins()
			}
		}
		return b.push(c, c.Event)
	})
	b.mu.Lock()
	b.upstreams = append(b.upstreams, u)
	b.mu.Unlock()
}

// RemoveAdapter 移除上游适配器
func (b *Bridge) RemoveAdapter(a *adapter.Adapter) {
	b.mu.Lock()
	for i, u := range b.upstreams {
		if u.a == a {
			b.upstreams = append(b.upstreams[:i], b.upstreams[i+1:]...)
			break
		}
	}
	b.mu.Unlock()
	b.syncLogins()
}

// AddServer 接入下游服务器
func (b *Bridge) AddServer(s *server.Server) {
	b.mu.Lock()
	b.servers = append(b.servers, s)
	b.mu.Unlock()
	s.SetLogins(b.logins())
}

// RemoveServer 移除下游服务器
func (b *Bridge) RemoveServer(s *server.Server) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, srv := range b.servers {
		if srv == s {
			b.servers = append(b.servers[:i], b.servers[i+1:]...)
			return
		}
	}
}

func (b *Bridge) logins() []satori.Login {
	b.mu.RLock()
	defer b.mu.RUnlock()
	var logins []satori.Login
	for _, u := range b.upstreams {
		logins = append(logins, u.snapshot()...)
	}
	return logins
}

func (b *Bridge) syncLogins() {
	logins := b.logins()
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, s := range b.servers {
		s.SetLogins(logins)
	}
}

// push 将上游事件推送到全部下游服务器, 事件序号由下游服务器重新分配
func (b *Bridge) push(ctx context.Context, e *satori.Event) error {
	cp := *e
	cp.ID = 0
	b.mu.RLock()
	targets := append([]*server.Server(nil), b.servers...)
	b.mu.RUnlock()
	var errs error
	for _, s := range targets {
		if err := s.PushEvent(ctx, &cp); err != nil {
			errs = multierr.Append(errs, errors.Wrapf(err, "push to %s", s.Name()))
		}
	}
	return errs
}

// route 选择处理该身份的上游, 只有一个上游时总是选择它
func (b *Bridge) route(platform, selfID string) (*adapter.Adapter, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if len(b.upstreams) == 1 {
		return b.upstreams[0].a, true
	}
	if platform == "" && len(b.upstreams) > 0 {
		return b.upstreams[0].a, true
	}
	for _, u := range b.upstreams {
		if u.serves(platform, selfID) {
			return u.a, true
		}
	}
	return nil, false
}

// ServeAction 将下游 API 请求转发到上游, 上游的错误状态码与响应体原样返回
func (b *Bridge) ServeAction(ctx context.Context, req *server.Request, resp *server.Response) error {
	a, ok := b.route(req.Platform, req.SelfID)
	if !ok {
		log.Warnf("API %v 找不到 %v(%v) 对应的上游", req.Action(), req.Platform, req.SelfID)
		return resp.Error(http.StatusServiceUnavailable, ErrNoUpstream.Error())
	}

	var (
		data []byte
		err  error
	)
	switch {
	case req.Resource == "upload" && req.Method == "create":
		parts := make([]adapter.FormData, 0, len(req.Files))
		for _, f := range req.Files {
			parts = append(parts, adapter.FormData{Name: f.Name, Filename: f.Filename, Type: f.Type, Content: f.Content})
		}
		var urls map[string]string
		urls, err = a.Service().Upload(ctx, req.Platform, req.SelfID, parts...)
		if err == nil {
			return resp.JSON(urls)
		}
	case req.Platform != "" && req.SelfID != "":
		data, err = a.Actions(req.Platform, req.SelfID).Invoke(ctx, req.Resource, req.Method, req.Fields()...)
	default:
		data, err = a.Service().Invoke(ctx, req.Resource, req.Method, req.Platform, req.SelfID, req.Fields()...)
	}

	var ae *adapter.ActionError
	switch {
	case errors.As(err, &ae):
		return resp.Raw(ae.Status, "text/plain; charset=utf-8", []byte(ae.Body))
	case err != nil:
		log.Warnf("转发 API %v 到上游 %v 失败: %v", req.Action(), a.Name(), err)
		return resp.Error(http.StatusBadGateway, err.Error())
	case len(data) == 0:
		return resp.OK()
	}
	return resp.Raw(http.StatusOK, "application/json; charset=utf-8", data)
}
