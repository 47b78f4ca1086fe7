package server

import (
	"io"
	"mime/multipart"
	"net/http"
	"sort"
	"strings"

	jsoniter "github.com/json-iterator/go"
	"github.com/pkg/errors"
	"github.com/tidwall/gjson"

	"github.com/Nyayurin/yutorix-satori/internal/mime"
	"github.com/Nyayurin/yutorix-satori/pkg/msg"
	"github.com/Nyayurin/yutorix-satori/pkg/satori"
)

const maxMultipartMemory = 32 << 20

// Identity 请求头 Satori-Platform 与 Satori-User-ID 指向的机器人身份
type Identity struct {
	Platform string
	SelfID   string

	server *Server
}

// Login 查找该身份当前的登录信息
func (i *Identity) Login() (satori.Login, bool) {
	return i.server.lookupLogin(i.Platform, i.SelfID)
}

// FormFile 上传请求中的一个文件
type FormFile struct {
	Name     string
	Filename string
	Type     string
	Content  []byte
}

// Request 规范化后的 API 请求
//
// 协议中常用的字段被提取到对应的成员中, 其余字段原样保存在 Extra 中.
type Request struct {
	Resource   string
	Method     string
	Platform   string
	SelfID     string
	Identity   *Identity // 未携带身份请求头时为 nil
	Header     http.Header
	RemoteAddr string

	ChannelID string
	GuildID   string
	UserID    string
	MessageID string
	RoleID    string
	Next      string
	Comment   string
	Emoji     string
	Duration  *int64
	Limit     *int
	Approve   *bool
	Permanent *bool
	Data      *satori.Channel
	Role      *satori.GuildRole
	Content   []msg.Element
	Direction *satori.Direction
	Order     *satori.Order

	Extra map[string]gjson.Result
	Files []FormFile
}

// Action 请求的 API 名称 resource.method
func (r *Request) Action() string {
	return r.Resource + "." + r.Method
}

// BadRequestError 请求体无法规范化
type BadRequestError struct {
	Key string
	Err error
}

func (e *BadRequestError) Error() string {
	if e.Key == "" {
		return "bad request: " + e.Err.Error()
	}
	return "bad request: " + e.Key + ": " + e.Err.Error()
}

func (e *BadRequestError) Unwrap() error { return e.Err }

func badRequest(key string, err error) error {
	return &BadRequestError{Key: key, Err: err}
}

// splitAction 将 message.create 拆分为 message 与 create
func splitAction(action string) (resource, method string, ok bool) {
	i := strings.LastIndexByte(action, '.')
	if i <= 0 || i == len(action)-1 || strings.Contains(action, "/") {
		return "", "", false
	}
	return action[:i], action[i+1:], true
}

func (s *Server) parseRequest(r *http.Request, resource, method string) (*Request, error) {
	req := &Request{
		Resource:   resource,
		Method:     method,
		Platform:   r.Header.Get("Satori-Platform"),
		SelfID:     r.Header.Get("Satori-User-ID"),
		Header:     r.Header,
		RemoteAddr: r.RemoteAddr,
		Extra:      make(map[string]gjson.Result),
	}
	if req.Platform != "" || req.SelfID != "" {
		req.Identity = s.identities.LoadOrCreate(req.Platform, req.SelfID)
	}
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		return req, req.parseMultipart(r)
	}
	body, err := io.ReadAll(r.Body)
	if err != nil {
		return nil, errors.Wrap(err, "read body")
	}
	if len(strings.TrimSpace(string(body))) == 0 {
		return req, nil
	}
	if !gjson.ValidBytes(body) {
		return nil, badRequest("", errors.New("invalid json"))
	}
	root := gjson.ParseBytes(body)
	if !root.IsObject() {
		return nil, badRequest("", errors.New("body must be an object"))
	}
	var perr error
	root.ForEach(func(key, value gjson.Result) bool {
		perr = req.set(key.Str, value)
		return perr == nil
	})
	if perr != nil {
		return nil, perr
	}
	return req, nil
}

func (r *Request) parseMultipart(hr *http.Request) error {
	if err := hr.ParseMultipartForm(maxMultipartMemory); err != nil {
		return badRequest("", err)
	}
	form := hr.MultipartForm
	for key, values := range form.Value {
		if len(values) > 0 {
			r.Extra[key] = gjson.Result{Type: gjson.String, Str: values[0]}
		}
	}
	names := make([]string, 0, len(form.File))
	for name := range form.File {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		for _, fh := range form.File[name] {
			file, err := readFormFile(name, fh)
			if err != nil {
				return badRequest(name, err)
			}
			r.Files = append(r.Files, file)
		}
	}
	return nil
}

func readFormFile(name string, fh *multipart.FileHeader) (FormFile, error) {
	f, err := fh.Open()
	if err != nil {
		return FormFile{}, err
	}
	defer f.Close()
	content, err := io.ReadAll(f)
	if err != nil {
		return FormFile{}, err
	}
	return FormFile{
		Name:     name,
		Filename: fh.Filename,
		Type:     mime.Resolve(fh.Header.Get("Content-Type"), content),
		Content:  content,
	}, nil
}

func (r *Request) set(key string, value gjson.Result) error {
	str := func() (string, error) {
		if value.Type != gjson.String && value.Type != gjson.Number {
			return "", badRequest(key, errors.New("expected string"))
		}
		return value.String(), nil
	}
	var err error
	switch key {
	case "channel_id":
		r.ChannelID, err = str()
	case "guild_id":
		r.GuildID, err = str()
	case "user_id":
		r.UserID, err = str()
	case "message_id":
		r.MessageID, err = str()
	case "role_id":
		r.RoleID, err = str()
	case "next":
		r.Next, err = str()
	case "comment":
		r.Comment, err = str()
	case "emoji":
		r.Emoji, err = str()
	case "duration":
		if value.Type != gjson.Number {
			return badRequest(key, errors.New("expected number"))
		}
		d := value.Int()
		r.Duration = &d
	case "limit":
		if value.Type != gjson.Number {
			return badRequest(key, errors.New("expected number"))
		}
		l := int(value.Int())
		r.Limit = &l
	case "approve", "permanent":
		if value.Type != gjson.True && value.Type != gjson.False {
			return badRequest(key, errors.New("expected boolean"))
		}
		b := value.Bool()
		if key == "approve" {
			r.Approve = &b
		} else {
			r.Permanent = &b
		}
	case "data":
		r.Data = new(satori.Channel)
		if err := json.UnmarshalFromString(value.Raw, r.Data); err != nil {
			return badRequest(key, err)
		}
	case "role":
		r.Role = new(satori.GuildRole)
		if err := json.UnmarshalFromString(value.Raw, r.Role); err != nil {
			return badRequest(key, err)
		}
	case "content":
		if value.Type != gjson.String {
			return badRequest(key, errors.New("expected string"))
		}
		elements, perr := msg.Parse(value.Str)
		if perr != nil {
			return badRequest(key, perr)
		}
		if elements == nil {
			elements = []msg.Element{}
		}
		r.Content = elements
	case "direction":
		if d, ok := satori.ParseDirection(value.String()); ok {
			r.Direction = &d
		}
	case "order":
		if o, ok := satori.ParseOrder(value.String()); ok {
			r.Order = &o
		}
	default:
		r.Extra[key] = value
	}
	return err
}

// Fields 将请求还原为 API 字段, 用于转发到其他 Satori 服务器
func (r *Request) Fields() []satori.Field {
	var fields []satori.Field
	str := func(key, value string) {
		if value != "" {
			fields = append(fields, satori.F(key, value))
		}
	}
	str("channel_id", r.ChannelID)
	str("guild_id", r.GuildID)
	str("user_id", r.UserID)
	str("message_id", r.MessageID)
	str("role_id", r.RoleID)
	if r.Duration != nil {
		fields = append(fields, satori.F("duration", *r.Duration))
	}
	if r.Data != nil {
		fields = append(fields, satori.F("data", r.Data))
	}
	if r.Approve != nil {
		fields = append(fields, satori.F("approve", *r.Approve))
	}
	str("comment", r.Comment)
	if r.Permanent != nil {
		fields = append(fields, satori.F("permanent", *r.Permanent))
	}
	if r.Role != nil {
		fields = append(fields, satori.F("role", r.Role))
	}
	if r.Content != nil {
		fields = append(fields, satori.F("content", r.Content))
	}
	if r.Direction != nil {
		fields = append(fields, satori.F("direction", string(*r.Direction)))
	}
	if r.Limit != nil {
		fields = append(fields, satori.F("limit", *r.Limit))
	}
	if r.Order != nil {
		fields = append(fields, satori.F("order", string(*r.Order)))
	}
	str("next", r.Next)
	str("emoji", r.Emoji)

	keys := make([]string, 0, len(r.Extra))
	for k := range r.Extra {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		v := r.Extra[k]
		if v.Raw != "" {
			fields = append(fields, satori.F(k, jsoniter.RawMessage(v.Raw)))
		} else {
			fields = append(fields, satori.F(k, v.Str))
		}
	}
	return fields
}
