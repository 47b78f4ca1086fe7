package adapter

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	jsoniter "github.com/json-iterator/go"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/Nyayurin/yutorix-satori/internal/metrics"
	"github.com/Nyayurin/yutorix-satori/internal/mime"
	"github.com/Nyayurin/yutorix-satori/pkg/satori"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// ActionError 服务器返回了非 2xx 状态码
type ActionError struct {
	Action string
	Status int
	Body   string
}

func (e *ActionError) Error() string {
	return fmt.Sprintf("satori action %s error: %d %s, %s", e.Action, e.Status, http.StatusText(e.Status), e.Body)
}

// DecodeError 响应无法解码为期望的类型
type DecodeError struct {
	Action string
	Body   string
	Err    error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("satori action %s: decode response: %v", e.Action, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// FormData 上传文件的一个表单项
type FormData struct {
	Name     string
	Filename string
	Type     string // 为空时自动检测
	Content  []byte
}

// ActionService 通过 HTTP 调用 Satori API
type ActionService struct {
	props   Properties
	client  *http.Client
	limiter *rate.Limiter
}

// NewActionService 创建 API 调用服务
func NewActionService(props Properties, client *http.Client, limiter *rate.Limiter) *ActionService {
	if client == nil {
		client = http.DefaultClient
	}
	return &ActionService{props: props, client: client, limiter: limiter}
}

func (s *ActionService) setHeaders(req *http.Request, platform, selfID string) {
	if s.props.Token != "" {
		req.Header.Set("Authorization", "Bearer "+s.props.Token)
	}
	if platform != "" {
		req.Header.Set("Satori-Platform", platform)
	}
	if selfID != "" {
		req.Header.Set("Satori-User-ID", selfID)
	}
}

// Invoke 调用 API 并返回原始响应体
//
// platform 与 selfID 为空时不发送对应的请求头, 值为 nil 的字段不会出现在请求体中
func (s *ActionService) Invoke(ctx context.Context, resource, method, platform, selfID string, fields ...satori.Field) ([]byte, error) {
	action := resource + "." + method
	body, err := satori.EncodeFields(fields...)
	if err != nil {
		return nil, errors.Wrapf(err, "satori action %s", action)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.props.ActionURL(resource, method), bytes.NewReader(body))
	if err != nil {
		return nil, errors.Wrapf(err, "satori action %s", action)
	}
	req.Header.Set("Content-Type", "application/json")
	s.setHeaders(req, platform, selfID)
	log.Debugf("Action Request: %v, body: %s", req.URL, body)
	return s.do(req, action)
}

// Upload 以 multipart 表单上传文件, 返回表单项名称到文件地址的映射
func (s *ActionService) Upload(ctx context.Context, platform, selfID string, parts ...FormData) (map[string]string, error) {
	const action = "upload.create"
	buf := &bytes.Buffer{}
	w := multipart.NewWriter(buf)
	for _, p := range parts {
		h := make(textproto.MIMEHeader)
		disposition := fmt.Sprintf(`form-data; name="%s"`, escapeQuotes(p.Name))
		if p.Filename != "" {
			disposition += fmt.Sprintf(`; filename="%s"`, escapeQuotes(p.Filename))
		}
		h.Set("Content-Disposition", disposition)
		h.Set("Content-Type", mime.Resolve(p.Type, p.Content))
		pw, err := w.CreatePart(h)
		if err != nil {
			return nil, errors.Wrap(err, "satori action upload.create")
		}
		if _, err = pw.Write(p.Content); err != nil {
			return nil, errors.Wrap(err, "satori action upload.create")
		}
	}
	if err := w.Close(); err != nil {
		return nil, errors.Wrap(err, "satori action upload.create")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.props.ActionURL("upload", "create"), buf)
	if err != nil {
		return nil, errors.Wrap(err, "satori action upload.create")
	}
	req.Header.Set("Content-Type", w.FormDataContentType())
	s.setHeaders(req, platform, selfID)
	log.Debugf("Action Request: %v, %d 个文件, 共 %s", req.URL, len(parts), humanize.Bytes(uint64(buf.Len())))
	data, err := s.do(req, action)
	if err != nil {
		return nil, err
	}
	return decode[map[string]string](action, data)
}

func (s *ActionService) do(req *http.Request, action string) ([]byte, error) {
	if s.limiter != nil {
		if err := s.limiter.Wait(req.Context()); err != nil {
			return nil, errors.Wrapf(err, "satori action %s", action)
		}
	}
	start := time.Now()
	resp, err := s.client.Do(req)
	if err != nil {
		metrics.RecordAction("adapter", action, 0, time.Since(start))
		return nil, errors.Wrapf(err, "satori action %s", action)
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	metrics.RecordAction("adapter", action, resp.StatusCode, time.Since(start))
	if err != nil {
		return nil, errors.Wrapf(err, "satori action %s: read body", action)
	}
	log.Debugf("Action Response: %v, body: %s", resp.Status, data)
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &ActionError{Action: action, Status: resp.StatusCode, Body: string(data)}
	}
	return data, nil
}

func decode[T any](action string, data []byte) (T, error) {
	var ret T
	if err := json.Unmarshal(data, &ret); err != nil {
		return ret, &DecodeError{Action: action, Body: string(data), Err: err}
	}
	return ret, nil
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

func escapeQuotes(s string) string {
	return quoteEscaper.Replace(s)
}
