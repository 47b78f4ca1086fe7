package server

import (
	"context"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/tidwall/gjson"
	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"

	"github.com/Nyayurin/yutorix-satori/internal/metrics"
	"github.com/Nyayurin/yutorix-satori/pkg/satori"
)

// 连接错误
var (
	ErrIdentifyTimeout   = errors.New("IDENTIFY 等待超时")
	ErrPingTimeout       = errors.New("PING 等待超时")
	ErrUnexpectedSignal  = errors.New("unexpected signal")
	errDuplicateIdentify = errors.New("duplicate identify")
)

const websocketGoingAway = websocket.CloseGoingAway

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

type session struct {
	s    *Server
	id   uuid.UUID
	addr string
	conn *websocket.Conn

	mu         sync.Mutex // 写锁
	identified atomic.Bool
	pinged     atomic.Bool
	lastPing   atomic.Int64
}

func (s *Server) serveEvents(w http.ResponseWriter, r *http.Request) {
	c, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warnf("处理 WebSocket 请求时出现错误: %v", err)
		return
	}
	sess := &session{s: s, id: uuid.New(), addr: r.RemoteAddr, conn: c}
	log.Infof("WebSocket 连接建立(%v), 等待建立事件推送服务", sess.addr)
	s.accept(sess)
	defer s.remove(sess)
	err = sess.run(s.ctx)
	switch {
	case err == nil, s.ctx.Err() != nil:
		log.Infof("WebSocket 连接断开(%v)", sess.addr)
	default:
		log.Infof("WebSocket 连接断开(%v): %v", sess.addr, err)
	}
}

func (c *session) send(sig satori.Signal) error {
	data, err := satori.MarshalSignal(sig)
	if err != nil {
		return err
	}
	return c.write(data)
}

func (c *session) write(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

// close 发送关闭帧并关闭底层连接
func (c *session) close(code int, text string) error {
	_ = c.conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, text), time.Now().Add(time.Second))
	if err := c.conn.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
		return errors.Wrapf(err, "close %v", c.addr)
	}
	return nil
}

func (c *session) run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	identified := make(chan struct{})
	g.Go(func() error {
		<-gctx.Done()
		_ = c.conn.Close()
		return nil
	})
	g.Go(func() error {
		return c.receive(identified)
	})
	g.Go(func() error {
		timer := c.s.opts.Clock.Timer(c.s.opts.IdentifyTimeout)
		defer timer.Stop()
		select {
		case <-gctx.Done():
			return nil
		case <-timer.C:
			return ErrIdentifyTimeout
		case <-identified:
		}
		return c.watchdog(gctx)
	})
	return g.Wait()
}

func (c *session) receive(identified chan<- struct{}) error {
	for {
		t, data, err := c.conn.ReadMessage()
		if err != nil {
			return errors.Wrap(err, "read")
		}
		if t != websocket.TextMessage {
			continue
		}
		sig, err := satori.UnmarshalSignal(data)
		if err != nil {
			return err
		}
		switch sig := sig.(type) {
		case *satori.Identify:
			if c.identified.Load() {
				return &satori.ProtocolError{Op: satori.OpIdentify, Err: errDuplicateIdentify}
			}
			if err := c.identify(sig); err != nil {
				return err
			}
			close(identified)
		case satori.Ping:
			c.pinged.Store(true)
			c.lastPing.Store(c.s.opts.Clock.Now().UnixNano())
			log.Debugf("收到 PING(%v)", c.addr)
			if err := c.send(satori.Pong{}); err != nil {
				return errors.Wrap(err, "send pong")
			}
		default:
			return &satori.ProtocolError{Op: sig.Op(), Err: ErrUnexpectedSignal}
		}
	}
}

func (c *session) identify(sig *satori.Identify) error {
	if sig.Token != c.s.opts.Token {
		c.s.remove(c)
		log.Infof("WebSocket 连接断开(%v): token 错误", c.addr)
		_ = c.close(CloseUnauthorized, "Unauthorized")
		return &satori.ProtocolError{Op: satori.OpIdentify, Err: satori.ErrUnauthorized}
	}
	if sig.Sequence != nil {
		log.Debugf("客户端(%v) 请求从 %d 恢复事件, 不支持事件重放", c.addr, *sig.Sequence)
	}
	c.identified.Store(true)
	c.s.promote(c)
	logins := c.s.Logins()
	log.Infof("建立事件推送服务(%v): %d 个登录信息", c.addr, len(logins))
	if err := c.send(&satori.Ready{Logins: logins}); err != nil {
		return errors.Wrap(err, "send ready")
	}
	return nil
}

func (c *session) watchdog(ctx context.Context) error {
	for {
		c.pinged.Store(false)
		timer := c.s.opts.Clock.Timer(c.s.opts.PingTimeout)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil
		case <-timer.C:
		}
		if !c.pinged.Load() {
			return ErrPingTimeout
		}
	}
}

// PushEvent 推送事件到全部已鉴权的连接
//
// 事件只序列化一次, 单个连接写入失败时只关闭该连接, 返回值汇总了各连接的错误.
// 事件 ID 为 0 时由服务器分配.
func (s *Server) PushEvent(ctx context.Context, e *satori.Event) error {
	if e.ID == 0 {
		cp := *e
		cp.ID = s.eventID.Add(1)
		e = &cp
	} else {
		for {
			cur := s.eventID.Load()
			if e.ID <= cur || s.eventID.CompareAndSwap(cur, e.ID) {
				break
			}
		}
	}
	data, err := satori.MarshalSignal(e)
	if err != nil {
		return errors.Wrap(err, "marshal event")
	}
	if s.opts.Filter != nil && !s.opts.Filter.Eval(gjson.GetBytes(data, "body")) {
		log.Debugf("推送事件 %d 到 WS客户端 时被过滤.", e.ID)
		return nil
	}
	metrics.RecordEvent("server", e.Platform, e.Type)
	log.Debugf("推送事件: %s", data)

	var (
		mu   sync.Mutex
		errs error
		g    errgroup.Group
	)
	g.SetLimit(16)
	for _, sess := range s.live() {
		sess := sess
		g.Go(func() error {
			if ctx.Err() != nil {
				return nil
			}
			if err := sess.write(data); err != nil {
				log.Warnf("向WS客户端 %v 推送事件时出现错误: %v", sess.addr, err)
				_ = sess.close(websocket.CloseInternalServerErr, "write failed")
				mu.Lock()
				errs = multierr.Append(errs, errors.Wrapf(err, "push to %v", sess.addr))
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()
	return errs
}
