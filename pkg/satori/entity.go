package satori

import (
	"github.com/Nyayurin/yutorix-satori/pkg/msg"
)

// ChannelType 频道类型
type ChannelType int

// 频道类型
const (
	ChannelText     ChannelType = 0 // 文本频道
	ChannelDirect   ChannelType = 1 // 私聊频道
	ChannelCategory ChannelType = 2 // 分类频道
	ChannelVoice    ChannelType = 3 // 语音频道
)

// LoginStatus 登录状态
type LoginStatus int

// 登录状态
const (
	StatusOffline    LoginStatus = 0 // 离线
	StatusOnline     LoginStatus = 1 // 在线
	StatusConnect    LoginStatus = 2 // 连接中
	StatusDisconnect LoginStatus = 3 // 断开连接
	StatusReconnect  LoginStatus = 4 // 重新连接
)

func (s LoginStatus) String() string {
	switch s {
	case StatusOffline:
		return "OFFLINE"
	case StatusOnline:
		return "ONLINE"
	case StatusConnect:
		return "CONNECT"
	case StatusDisconnect:
		return "DISCONNECT"
	case StatusReconnect:
		return "RECONNECT"
	default:
		return "UNKNOWN"
	}
}

// User 用户
type User struct {
	ID     string `json:"id"`
	Name   string `json:"name,omitempty"`
	Nick   string `json:"nick,omitempty"`
	Avatar string `json:"avatar,omitempty"`
	IsBot  bool   `json:"is_bot,omitempty"`
}

// Channel 频道
type Channel struct {
	ID       string      `json:"id"`
	Type     ChannelType `json:"type"`
	Name     string      `json:"name,omitempty"`
	ParentID string      `json:"parent_id,omitempty"`
}

// Guild 群组
type Guild struct {
	ID     string `json:"id"`
	Name   string `json:"name,omitempty"`
	Avatar string `json:"avatar,omitempty"`
}

// GuildMember 群组成员
type GuildMember struct {
	User     *User  `json:"user,omitempty"`
	Nick     string `json:"nick,omitempty"`
	Avatar   string `json:"avatar,omitempty"`
	JoinedAt int64  `json:"joined_at,omitempty"`
}

// GuildRole 群组角色
type GuildRole struct {
	ID   string `json:"id"`
	Name string `json:"name,omitempty"`
}

// Login 登录信息
type Login struct {
	Adapter   string      `json:"adapter,omitempty"`
	Platform  string      `json:"platform,omitempty"`
	User      *User       `json:"user,omitempty"`
	Status    LoginStatus `json:"status"`
	Features  []string    `json:"features,omitempty"`
	ProxyURLs []string    `json:"proxy_urls,omitempty"`
}

// SelfID 登录用户 ID, 没有用户信息时返回空串
func (l *Login) SelfID() string {
	if l.User == nil {
		return ""
	}
	return l.User.ID
}

// Argv 交互指令
type Argv struct {
	Name      string                 `json:"name"`
	Arguments []interface{}          `json:"arguments"`
	Options   map[string]interface{} `json:"options"`
}

// Button 交互按钮
type Button struct {
	ID string `json:"id"`
}

// Message 消息
//
// Content 在传输时为标记文本, 编解码时自动与元素树互相转换
type Message struct {
	ID        string        `json:"id"`
	Content   []msg.Element `json:"-"`
	Channel   *Channel      `json:"channel,omitempty"`
	Guild     *Guild        `json:"guild,omitempty"`
	Member    *GuildMember  `json:"member,omitempty"`
	User      *User         `json:"user,omitempty"`
	CreatedAt int64         `json:"created_at,omitempty"`
	UpdatedAt int64         `json:"updated_at,omitempty"`
}

type messageAlias Message

// MarshalJSON see encoding/json.Marshaler
func (m Message) MarshalJSON() ([]byte, error) {
	content, err := msg.Serialize(m.Content)
	if err != nil {
		return nil, err
	}
	return json.Marshal(&struct {
		*messageAlias
		Content string `json:"content"`
	}{(*messageAlias)(&m), content})
}

// UnmarshalJSON see encoding/json.Unmarshaler
func (m *Message) UnmarshalJSON(data []byte) error {
	aux := struct {
		*messageAlias
		Content *string `json:"content"`
	}{messageAlias: (*messageAlias)(m)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	if aux.Content == nil {
		m.Content = nil
		return nil
	}
	elements, err := msg.Parse(*aux.Content)
	if err != nil {
		return err
	}
	m.Content = elements
	return nil
}
