package adapter

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/tidwall/gjson"
	"golang.org/x/sync/errgroup"

	"github.com/Nyayurin/yutorix-satori/internal/metrics"
	"github.com/Nyayurin/yutorix-satori/pkg/satori"
)

// 连接级别的致命错误
var (
	ErrReadyTimeout = errors.New("无法建立事件推送服务: READY 等待超时")
	ErrPongTimeout  = errors.New("WebSocket 连接断开: PONG 等待超时")
)

type session struct {
	a    *Adapter
	conn *websocket.Conn
	mu   sync.Mutex // 写锁

	ready     chan struct{}
	readyOnce sync.Once
	pong      atomic.Bool
}

func newSession(a *Adapter, conn *websocket.Conn) *session {
	return &session{
		a:     a,
		conn:  conn,
		ready: make(chan struct{}),
	}
}

func (s *session) send(sig satori.Signal) error {
	data, err := satori.MarshalSignal(sig)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	_ = s.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return s.conn.WriteMessage(websocket.TextMessage, data)
}

// run 发送 IDENTIFY 并运行接收循环, 心跳与 PONG 检测, 任一出错时全部退出
func (s *session) run(ctx context.Context) error {
	defer s.conn.Close()
	identify := &satori.Identify{Token: s.a.opts.Token}
	if seq, ok := s.a.Sequence(); ok {
		identify.Sequence = &seq
	}
	if err := s.send(identify); err != nil {
		return errors.Wrap(err, "send identify")
	}
	s.a.state.Store(int32(StateIdentified))
	log.Infof("成功建立 WebSocket 连接, 尝试建立事件推送服务")

	g, gctx := errgroup.WithContext(ctx)
	go func() {
		<-gctx.Done()
		_ = s.conn.Close()
	}()
	g.Go(func() error { return s.receive(gctx) })
	g.Go(func() error { return s.keepalive(gctx, g) })
	return g.Wait()
}

func (s *session) receive(ctx context.Context) error {
	for {
		t, data, err := s.conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return errors.Wrap(err, "read")
		}
		if t != websocket.TextMessage {
			continue
		}
		log.Debugf("接收信令: %s", data)
		sig, err := satori.UnmarshalSignal(data)
		if err != nil {
			log.Warnf("信令解析错误: %v", err)
			continue
		}
		switch v := sig.(type) {
		case *satori.Ready:
			s.onReady(v)
		case satori.Pong:
			s.pong.Store(true)
			log.Debug("收到 PONG")
		case *satori.Event:
			s.onEvent(ctx, v, gjson.GetBytes(data, "body"))
		default:
			log.Warnf("不支持的信令: %v", sig.Op())
		}
	}
}

func (s *session) onReady(r *satori.Ready) {
	first := false
	s.readyOnce.Do(func() { first = true })
	if !first {
		log.Warnf("重复收到 READY, 已忽略")
		return
	}
	for i := range r.Logins {
		login := &r.Logins[i]
		if login.Platform == "" || login.SelfID() == "" {
			log.Warnf("登录信息缺少 platform 或 user, 已跳过: %+v", login)
			continue
		}
		s.a.bindings.LoadOrCreate(login.Platform, login.SelfID())
	}
	s.a.state.Store(int32(StateActive))
	close(s.ready)
	log.Infof("成功建立事件推送服务: %d 个登录账号", len(r.Logins))
	s.a.fireConnect(r.Logins)
}

func (s *session) onEvent(ctx context.Context, e *satori.Event, raw gjson.Result) {
	s.a.setSequence(e.ID)
	actions := s.a.bindings.LoadOrCreate(e.Platform, e.SelfID)
	metrics.RecordEvent("adapter", e.Platform, e.Type)
	if f := s.a.opts.Filter; f != nil && !f.Eval(raw) {
		log.Debugf("事件 %v(%v) 被过滤", e.Type, e.ID)
		return
	}
	log.Info(describe(e))
	go s.a.dispatch(&Context{
		Context: context.WithoutCancel(ctx),
		Adapter: s.a,
		Actions: actions,
		Event:   e,
	})
}

// keepalive 等待 READY, 之后启动心跳与 PONG 检测
func (s *session) keepalive(ctx context.Context, g *errgroup.Group) error {
	clk := s.a.opts.Clock
	timer := clk.Timer(s.a.opts.ReadyTimeout)
	select {
	case <-ctx.Done():
		timer.Stop()
		return nil
	case <-timer.C:
		return ErrReadyTimeout
	case <-s.ready:
		timer.Stop()
	}
	g.Go(func() error { return s.heartbeat(ctx) })
	g.Go(func() error { return s.watchdog(ctx) })
	return nil
}

func (s *session) heartbeat(ctx context.Context) error {
	ticker := s.a.opts.Clock.Ticker(s.a.opts.HeartbeatInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := s.send(satori.Ping{}); err != nil {
				return errors.Wrap(err, "send ping")
			}
			log.Debug("发送 PING")
		}
	}
}

func (s *session) watchdog(ctx context.Context) error {
	for {
		s.pong.Store(false)
		timer := s.a.opts.Clock.Timer(s.a.opts.PongTimeout)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil
		case <-timer.C:
		}
		if !s.pong.Load() {
			return ErrPongTimeout
		}
	}
}
