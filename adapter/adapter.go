package adapter

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/Nyayurin/yutorix-satori/internal/binding"
	"github.com/Nyayurin/yutorix-satori/internal/metrics"
	"github.com/Nyayurin/yutorix-satori/pkg/satori"
)

// State 连接状态
type State int32

// 连接状态
const (
	StateClosed     State = iota // 未连接
	StateConnecting              // 正在建立连接
	StateIdentified              // 已发送 IDENTIFY, 等待 READY
	StateActive                  // 已收到 READY
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "CLOSED"
	case StateConnecting:
		return "CONNECTING"
	case StateIdentified:
		return "IDENTIFIED"
	case StateActive:
		return "ACTIVE"
	default:
		return "UNKNOWN"
	}
}

// Adapter Satori 客户端
//
// Start 会一直重连直到 Stop 被调用, 重连时携带最后处理的事件序号
type Adapter struct {
	opts     Options
	service  *ActionService
	bindings *binding.Registry[*Actions]

	mu        sync.Mutex
	handlers  []EventHandler
	onStart   func(*Adapter)
	onConnect func(*Adapter, []satori.Login)
	onClose   func(*Adapter)
	onError   func(*Adapter, error)
	cancel    context.CancelFunc

	running  atomic.Bool
	stopped  atomic.Bool
	state    atomic.Int32
	sequence atomic.Pointer[int64]
}

// New 创建适配器
func New(opts Options) *Adapter {
	opts.normalize()
	service := NewActionService(opts.Properties, opts.Client, opts.Limiter)
	return &Adapter{
		opts:    opts,
		service: service,
		bindings: binding.NewRegistry(func(k binding.Key) *Actions {
			return NewActions(k.Platform, k.SelfID, service)
		}),
	}
}

// Name 适配器名称
func (a *Adapter) Name() string { return a.opts.Name }

// OnEvent 添加事件处理函数
func (a *Adapter) OnEvent(handlers ...EventHandler) {
	a.mu.Lock()
	a.handlers = append(a.handlers, handlers...)
	a.mu.Unlock()
}

// OnStart 每次尝试连接前调用
func (a *Adapter) OnStart(fn func(*Adapter)) {
	a.mu.Lock()
	a.onStart = fn
	a.mu.Unlock()
}

// OnConnect 收到 READY 后调用
func (a *Adapter) OnConnect(fn func(*Adapter, []satori.Login)) {
	a.mu.Lock()
	a.onConnect = fn
	a.mu.Unlock()
}

// OnClose 连接关闭后调用
func (a *Adapter) OnClose(fn func(*Adapter)) {
	a.mu.Lock()
	a.onClose = fn
	a.mu.Unlock()
}

// OnError 连接因非主动断开的原因关闭时调用
func (a *Adapter) OnError(fn func(*Adapter, error)) {
	a.mu.Lock()
	a.onError = fn
	a.mu.Unlock()
}

func (a *Adapter) eventHandlers() []EventHandler {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]EventHandler(nil), a.handlers...)
}

func (a *Adapter) fireStart() {
	a.mu.Lock()
	fn := a.onStart
	a.mu.Unlock()
	if fn != nil {
		fn(a)
	}
}

func (a *Adapter) fireConnect(logins []satori.Login) {
	a.mu.Lock()
	fn := a.onConnect
	a.mu.Unlock()
	if fn != nil {
		fn(a, logins)
	}
}

func (a *Adapter) fireClose() {
	a.mu.Lock()
	fn := a.onClose
	a.mu.Unlock()
	if fn != nil {
		fn(a)
	}
}

func (a *Adapter) fireError(err error) {
	a.mu.Lock()
	fn := a.onError
	a.mu.Unlock()
	if fn != nil {
		fn(a, err)
	}
}

// State 当前连接状态
func (a *Adapter) State() State {
	return State(a.state.Load())
}

// Sequence 最后处理的事件序号
func (a *Adapter) Sequence() (int64, bool) {
	if p := a.sequence.Load(); p != nil {
		return *p, true
	}
	return 0, false
}

func (a *Adapter) setSequence(id int64) {
	a.sequence.Store(&id)
}

// Actions 获取账号对应的 API 集合, 不存在时创建
func (a *Adapter) Actions(platform, selfID string) *Actions {
	return a.bindings.LoadOrCreate(platform, selfID)
}

// LookupActions 获取账号对应的 API 集合
func (a *Adapter) LookupActions(platform, selfID string) (*Actions, bool) {
	return a.bindings.Load(platform, selfID)
}

// Admin 管理接口
func (a *Adapter) Admin() *AdminActions {
	return NewAdminActions(a.service)
}

// Service 底层 API 调用服务
func (a *Adapter) Service() *ActionService {
	return a.service
}

// Start 连接服务器并阻塞, 连接断开后等待一段时间重连, 直到 ctx 结束或 Stop 被调用
func (a *Adapter) Start(ctx context.Context) error {
	if !a.running.CompareAndSwap(false, true) {
		return errors.New("adapter is already running")
	}
	defer a.running.Store(false)

	ctx, cancel := context.WithCancel(ctx)
	a.mu.Lock()
	a.cancel = cancel
	stopped := a.stopped.Load()
	a.mu.Unlock()
	defer cancel()
	if stopped {
		return nil
	}

	for {
		a.fireStart()
		err := a.connect(ctx)
		metrics.RecordConnect(a.opts.Name, err)
		if ctx.Err() != nil {
			return nil
		}
		log.Infof("将在 %v 后尝试重新连接", a.opts.ReconnectInterval)
		timer := a.opts.Clock.Timer(a.opts.ReconnectInterval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil
		case <-timer.C:
		}
		log.Infof("尝试重新连接")
	}
}

// Stop 立即断开当前连接并停止重连
//
// Stop 之后适配器不能再次启动, 在 Start 之前调用时 Start 直接返回
func (a *Adapter) Stop() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.stopped.Store(true)
	if a.cancel != nil {
		a.cancel()
	}
}

// connect 进行一次连接, 直到连接断开
func (a *Adapter) connect(ctx context.Context) error {
	a.state.Store(int32(StateConnecting))
	defer a.state.Store(int32(StateClosed))

	url := a.opts.EventsURL()
	conn, _, err := a.opts.Dialer.DialContext(ctx, url, nil)
	if err != nil {
		log.Warnf("WebSocket 连接 %v 失败: %v", url, err)
		return errors.Wrap(err, "dial")
	}
	err = newSession(a, conn).run(ctx)
	if ctx.Err() != nil {
		log.Infof("WebSocket 连接断开: 主动断开连接")
	} else {
		log.Warnf("WebSocket 连接断开: %v", err)
		a.fireError(err)
	}
	a.fireClose()
	return err
}
