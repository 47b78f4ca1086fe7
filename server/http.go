package server

import (
	"context"
	"fmt"
	"net/http"
	"runtime/debug"
	"strings"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/Nyayurin/yutorix-satori/internal/metrics"
)

// checkAuth 校验 Authorization 请求头, 未配置令牌时不校验
func checkAuth(req *http.Request, token string) int {
	if token == "" { // quick path
		return http.StatusOK
	}
	auth := req.Header.Get("Authorization")
	if auth == "" {
		return http.StatusUnauthorized
	}
	if !strings.HasPrefix(auth, "Bearer ") {
		return http.StatusBadRequest
	}
	if strings.TrimPrefix(auth, "Bearer ") != token {
		return http.StatusForbidden
	}
	return http.StatusOK
}

func (s *Server) serveAction(w http.ResponseWriter, r *http.Request) {
	action := strings.TrimPrefix(r.URL.Path, s.opts.Prefix()+"/")
	if r.Method != http.MethodPost {
		log.Warnf("已拒绝客户端 %v 的请求: 方法错误", r.RemoteAddr)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	resource, method, ok := splitAction(action)
	if !ok {
		log.Warnf("已拒绝客户端 %v 的请求: 未知的 API %v", r.RemoteAddr, action)
		w.WriteHeader(http.StatusNotFound)
		return
	}
	if status := checkAuth(r, s.opts.Token); status != http.StatusOK {
		log.Warnf("已拒绝客户端 %v 的请求: Token鉴权失败(code:%d)", r.RemoteAddr, status)
		w.WriteHeader(status)
		return
	}

	start := time.Now()
	req, err := s.parseRequest(r, resource, method)
	if err != nil {
		log.Warnf("已拒绝客户端 %v 的请求: %v", r.RemoteAddr, err)
		var bad *BadRequestError
		if errors.As(err, &bad) {
			http.Error(w, err.Error(), http.StatusBadRequest)
		} else {
			w.WriteHeader(http.StatusInternalServerError)
		}
		return
	}
	log.Infof("Action(%v): %v(%v, %v)", r.RemoteAddr, action, req.Platform, req.SelfID)

	resp := &Response{w: w}
	s.call(r.Context(), req, resp)
	if !resp.Written() {
		_ = resp.Error(http.StatusNotFound, fmt.Sprintf("action %s not found", action))
	}
	metrics.RecordAction("server", action, resp.Status(), time.Since(start))
}

func (s *Server) call(ctx context.Context, req *Request, resp *Response) {
	defer func() {
		if err := recover(); err != nil {
			log.Errorf("处置API调用 %v 时发生无法恢复的异常：%v\n%s", req.Action(), err, debug.Stack())
			if !resp.Written() {
				_ = resp.Error(http.StatusInternalServerError, fmt.Sprint(err))
			}
		}
	}()
	for _, m := range s.middlewares {
		if m(ctx, req, resp); resp.Written() {
			return
		}
	}
	if s.handler == nil {
		return
	}
	if err := s.handler.ServeAction(ctx, req, resp); err != nil {
		log.Warnf("Action failed: %v: %v", req.Action(), err)
		if !resp.Written() {
			_ = resp.Error(http.StatusInternalServerError, err.Error())
		}
	}
}
