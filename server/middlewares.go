package server

import (
	"context"
	"net/http"

	"golang.org/x/time/rate"
)

// Handler 处理规范化后的 API 请求
//
// 处理器负责写入响应, 返回错误且未写入响应时服务器返回 500.
type Handler interface {
	ServeAction(ctx context.Context, req *Request, resp *Response) error
}

// HandlerFunc 以函数实现 Handler
type HandlerFunc func(ctx context.Context, req *Request, resp *Response) error

// ServeAction impl Handler
func (f HandlerFunc) ServeAction(ctx context.Context, req *Request, resp *Response) error {
	return f(ctx, req, resp)
}

// Middleware 中间件, 写入响应即拦截该请求
type Middleware func(ctx context.Context, req *Request, resp *Response)

// Router 按 API 名称分发请求, 未注册的 API 不写入响应
type Router struct {
	routes   map[string]HandlerFunc
	fallback Handler
}

// NewRouter 创建路由, fallback 处理未注册的 API, 可为空
func NewRouter(fallback Handler) *Router {
	return &Router{routes: make(map[string]HandlerFunc), fallback: fallback}
}

// Handle 注册 API, action 形如 message.create
func (r *Router) Handle(action string, fn HandlerFunc) {
	if _, ok := r.routes[action]; ok {
		panic(action + " action has existed")
	}
	r.routes[action] = fn
}

// ServeAction impl Handler
func (r *Router) ServeAction(ctx context.Context, req *Request, resp *Response) error {
	if fn, ok := r.routes[req.Action()]; ok {
		return fn(ctx, req, resp)
	}
	if r.fallback != nil {
		return r.fallback.ServeAction(ctx, req, resp)
	}
	return nil
}

func rateLimit(frequency float64, bucketSize int) Middleware {
	limiter := rate.NewLimiter(rate.Limit(frequency), bucketSize)
	return func(ctx context.Context, _ *Request, resp *Response) {
		if err := limiter.Wait(ctx); err != nil {
			_ = resp.Error(http.StatusTooManyRequests, err.Error())
		}
	}
}
