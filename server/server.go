package server

import (
	"context"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/klauspost/compress/gzhttp"
	jsoniter "github.com/json-iterator/go"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"go.uber.org/multierr"

	"github.com/Nyayurin/yutorix-satori/internal/binding"
	"github.com/Nyayurin/yutorix-satori/internal/metrics"
	"github.com/Nyayurin/yutorix-satori/pkg/satori"
)

var json = jsoniter.Config{
	EscapeHTML:             false,
	SortMapKeys:            true,
	ValidateJsonRawMessage: true,
}.Froze()

// ErrServerClosed 服务器已停止
var ErrServerClosed = errors.New("satori server closed")

// Server Satori 服务器
type Server struct {
	opts Options

	ctx    context.Context
	cancel context.CancelFunc

	mu       sync.RWMutex
	conns    map[uuid.UUID]*session // 全部连接
	sessions map[uuid.UUID]*session // 已鉴权的连接

	loginMu sync.RWMutex
	logins  []satori.Login

	identities  *binding.Registry[*Identity]
	handler     Handler
	middlewares []Middleware

	httpMu  sync.Mutex
	httpSrv *http.Server
	running atomic.Bool
	eventID atomic.Int64
}

// New 创建服务器, handler 处理全部 API 请求, 为空时所有请求返回 404
func New(opts Options, handler Handler) *Server {
	opts.normalize()
	s := &Server{
		opts:     opts,
		conns:    make(map[uuid.UUID]*session),
		sessions: make(map[uuid.UUID]*session),
		handler:  handler,
	}
	s.ctx, s.cancel = context.WithCancel(context.Background())
	s.identities = binding.NewRegistry(func(k binding.Key) *Identity {
		return &Identity{Platform: k.Platform, SelfID: k.SelfID, server: s}
	})
	if opts.RateLimit.Enabled {
		s.Use(rateLimit(opts.RateLimit.Frequency, opts.RateLimit.Bucket))
	}
	return s
}

// Name 服务器名称
func (s *Server) Name() string { return s.opts.Name }

// Use 添加 API 中间件, 按添加顺序执行
func (s *Server) Use(middlewares ...Middleware) {
	s.middlewares = append(s.middlewares, middlewares...)
}

// Handler 返回服务器的 HTTP 路由
func (s *Server) Handler() http.Handler {
	prefix := s.opts.Prefix()
	var actions http.Handler = http.HandlerFunc(s.serveAction)
	if s.opts.Gzip {
		actions = gzhttp.GzipHandler(actions)
	}
	mux := http.NewServeMux()
	mux.HandleFunc(prefix+"/events", s.serveEvents)
	mux.Handle(prefix+"/", actions)
	return mux
}

// Start 监听配置的地址并阻塞至 ctx 结束或 Stop 被调用
func (s *Server) Start(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.opts.Addr())
	if err != nil {
		return errors.Wrapf(err, "listen %s", s.opts.Addr())
	}
	return s.Serve(ctx, listener)
}

// Serve 在指定的 listener 上提供服务
func (s *Server) Serve(ctx context.Context, listener net.Listener) error {
	if s.ctx.Err() != nil {
		_ = listener.Close()
		return ErrServerClosed
	}
	if !s.running.CompareAndSwap(false, true) {
		_ = listener.Close()
		return errors.New("satori server already running")
	}
	srv := &http.Server{Handler: s.Handler(), ReadHeaderTimeout: 10 * time.Second}
	s.httpMu.Lock()
	s.httpSrv = srv
	s.httpMu.Unlock()

	stop := context.AfterFunc(ctx, func() {
		if err := s.Stop(); err != nil {
			log.Warnf("停止 Satori 服务器 %v 时出现错误: %v", s.opts.Name, err)
		}
	})
	defer stop()

	log.Infof("Satori 服务器已启动: %v%v", listener.Addr(), s.opts.Prefix())
	err := srv.Serve(listener)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Stop 关闭全部连接并停止 HTTP 服务, 停止后服务器不能再次启动
func (s *Server) Stop() error {
	var err error
	for _, sess := range s.connections() {
		err = multierr.Append(err, sess.close(websocketGoingAway, "server stopped"))
	}
	s.cancel()
	s.httpMu.Lock()
	srv := s.httpSrv
	s.httpSrv = nil
	s.httpMu.Unlock()
	if srv != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		err = multierr.Append(err, srv.Shutdown(ctx))
		log.Infof("Satori 服务器 %v 已停止", s.opts.Name)
	}
	return err
}

func (s *Server) connections() []*session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ret := make([]*session, 0, len(s.conns))
	for _, c := range s.conns {
		ret = append(ret, c)
	}
	return ret
}

func (s *Server) accept(sess *session) {
	s.mu.Lock()
	s.conns[sess.id] = sess
	s.mu.Unlock()
}

func (s *Server) promote(sess *session) {
	s.mu.Lock()
	s.sessions[sess.id] = sess
	n := len(s.sessions)
	s.mu.Unlock()
	metrics.SetSessions(s.opts.Name, n)
}

func (s *Server) remove(sess *session) {
	s.mu.Lock()
	delete(s.sessions, sess.id)
	delete(s.conns, sess.id)
	n := len(s.sessions)
	s.mu.Unlock()
	metrics.SetSessions(s.opts.Name, n)
}

func (s *Server) live() []*session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ret := make([]*session, 0, len(s.sessions))
	for _, c := range s.sessions {
		ret = append(ret, c)
	}
	return ret
}

// Sessions 已鉴权的连接数量
func (s *Server) Sessions() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// SetLogins 替换登录信息列表, 新连接的 READY 中携带该列表
func (s *Server) SetLogins(logins []satori.Login) {
	s.loginMu.Lock()
	s.logins = append([]satori.Login(nil), logins...)
	s.loginMu.Unlock()
}

// AddLogin 添加或更新一条登录信息, 以 platform 与 self_id 区分
func (s *Server) AddLogin(login satori.Login) {
	s.loginMu.Lock()
	defer s.loginMu.Unlock()
	for i := range s.logins {
		if sameLogin(&s.logins[i], &login) {
			s.logins[i] = login
			return
		}
	}
	s.logins = append(s.logins, login)
}

// RemoveLogin 移除一条登录信息
func (s *Server) RemoveLogin(platform, selfID string) bool {
	s.loginMu.Lock()
	defer s.loginMu.Unlock()
	for i := range s.logins {
		if s.logins[i].Platform == platform && s.logins[i].SelfID() == selfID {
			s.logins = append(s.logins[:i], s.logins[i+1:]...)
			return true
		}
	}
	return false
}

// Logins 当前登录信息列表的副本
func (s *Server) Logins() []satori.Login {
	s.loginMu.RLock()
	defer s.loginMu.RUnlock()
	return append([]satori.Login{}, s.logins...)
}

func (s *Server) lookupLogin(platform, selfID string) (satori.Login, bool) {
	s.loginMu.RLock()
	defer s.loginMu.RUnlock()
	for _, l := range s.logins {
		if l.Platform == platform && l.SelfID() == selfID {
			return l, true
		}
	}
	return satori.Login{}, false
}

func sameLogin(a, b *satori.Login) bool {
	return a.Platform == b.Platform && a.SelfID() == b.SelfID()
}
