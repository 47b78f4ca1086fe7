package server

import (
	"net/http"

	"github.com/pkg/errors"
)

// Response API 响应, 只能写入一次
type Response struct {
	w      http.ResponseWriter
	status int
}

// Header 响应头, 须在写入前修改
func (r *Response) Header() http.Header {
	return r.w.Header()
}

// Written 是否已写入响应
func (r *Response) Written() bool {
	return r.status != 0
}

// Status 已写入的状态码, 未写入时为 0
func (r *Response) Status() int {
	return r.status
}

// Raw 写入原始响应
func (r *Response) Raw(status int, contentType string, body []byte) error {
	if r.Written() {
		return errors.New("response already written")
	}
	r.status = status
	if contentType != "" {
		r.w.Header().Set("Content-Type", contentType)
	}
	r.w.WriteHeader(status)
	if len(body) == 0 {
		return nil
	}
	_, err := r.w.Write(body)
	return err
}

// JSON 以 200 状态码写入 JSON 响应
func (r *Response) JSON(v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return errors.Wrap(err, "encode response")
	}
	return r.Raw(http.StatusOK, "application/json; charset=utf-8", data)
}

// OK 写入空的 200 响应
func (r *Response) OK() error {
	return r.Raw(http.StatusOK, "", nil)
}

// Error 写入错误响应, 响应体为纯文本
func (r *Response) Error(status int, text string) error {
	return r.Raw(status, "text/plain; charset=utf-8", []byte(text))
}
