package msg

import "strconv"

// At 提及用户
type At struct{ Node }

// NewAt 创建 at 元素
func NewAt(id string) *At {
	return &At{Node{Type: "at", Attrs: Attrs{{Key: "id", Value: id}}}}
}

// NewAtAll 创建 at 全体成员元素
func NewAtAll() *At {
	return &At{Node{Type: "at", Attrs: Attrs{{Key: "type", Value: "all"}}}}
}

// ID 目标用户 ID
func (a *At) ID() string { return a.Attrs.String("id") }

// Name 目标用户名称
func (a *At) Name() string { return a.Attrs.String("name") }

// Role 目标角色
func (a *At) Role() string { return a.Attrs.String("role") }

// All 是否提及全体成员
func (a *At) All() bool { return a.Attrs.String("type") == "all" }

// Sharp 提及频道
type Sharp struct{ Node }

// NewSharp 创建 sharp 元素
func NewSharp(id string) *Sharp {
	return &Sharp{Node{Type: "sharp", Attrs: Attrs{{Key: "id", Value: id}}}}
}

// ID 目标频道 ID
func (s *Sharp) ID() string { return s.Attrs.String("id") }

// Name 目标频道名称
func (s *Sharp) Name() string { return s.Attrs.String("name") }

// Href 链接, 标记文本中写作 <a>
type Href struct{ Node }

// NewHref 创建链接元素
func NewHref(href string, children ...Element) *Href {
	return &Href{Node{Type: "href", Attrs: Attrs{{Key: "href", Value: href}}, Elements: children}}
}

// URL 链接地址
func (h *Href) URL() string { return h.Attrs.String("href") }

// Resource 资源元素, 包括 image audio video file
type Resource struct{ Node }

// NewImage 创建图片元素
func NewImage(src string) *Resource { return newResource("image", src) }

// NewAudio 创建语音元素
func NewAudio(src string) *Resource { return newResource("audio", src) }

// NewVideo 创建视频元素
func NewVideo(src string) *Resource { return newResource("video", src) }

// NewFile 创建文件元素
func NewFile(src string) *Resource { return newResource("file", src) }

func newResource(tag, src string) *Resource {
	return &Resource{Node{Type: tag, Attrs: Attrs{{Key: "src", Value: src}}}}
}

// Src 资源地址
func (r *Resource) Src() string { return r.Attrs.String("src") }

// Title 资源文件名
func (r *Resource) Title() string { return r.Attrs.String("title") }

// Cache 是否使用已缓存的文件
func (r *Resource) Cache() bool {
	v, _ := r.Attrs.Get("cache")
	switch b := v.(type) {
	case bool:
		return b
	case string:
		ok, _ := strconv.ParseBool(b)
		return ok || b == ""
	}
	return false
}

// Quote 引用
type Quote struct{ Node }

// NewQuote 创建引用元素
func NewQuote(id string) *Quote {
	return &Quote{Node{Type: "quote", Attrs: Attrs{{Key: "id", Value: id}}}}
}

// ID 被引用的消息 ID
func (q *Quote) ID() string { return q.Attrs.String("id") }

// Author 作者
type Author struct{ Node }

// ID 作者用户 ID
func (a *Author) ID() string { return a.Attrs.String("id") }

// Name 作者昵称
func (a *Author) Name() string { return a.Attrs.String("name") }

// Avatar 作者头像
func (a *Author) Avatar() string { return a.Attrs.String("avatar") }

// Button 按钮
type Button struct{ Node }

// ID 按钮 ID
func (b *Button) ID() string { return b.Attrs.String("id") }

// Kind 按钮类型 action link input
func (b *Button) Kind() string { return b.Attrs.String("type") }

// Href 链接按钮的地址
func (b *Button) Href() string { return b.Attrs.String("href") }

// Message 消息, 用于转发与分条发送
type Message struct{ Node }

// Forward 是否为转发消息
func (m *Message) Forward() bool {
	v, ok := m.Attrs.Get("forward")
	if !ok {
		return false
	}
	switch b := v.(type) {
	case bool:
		return b
	case string:
		return b == "" || b == "true"
	}
	return false
}

func init() {
	Register("at", func(tag string, attrs Attrs, children []Element) Element {
		return &At{Node{Type: tag, Attrs: attrs, Elements: children}}
	})
	Register("sharp", func(tag string, attrs Attrs, children []Element) Element {
		return &Sharp{Node{Type: tag, Attrs: attrs, Elements: children}}
	})
	Register("href", func(tag string, attrs Attrs, children []Element) Element {
		return &Href{Node{Type: tag, Attrs: attrs, Elements: children}}
	})
	for _, tag := range [...]string{"image", "audio", "video", "file"} {
		Register(tag, func(tag string, attrs Attrs, children []Element) Element {
			return &Resource{Node{Type: tag, Attrs: attrs, Elements: children}}
		})
	}
	Register("quote", func(tag string, attrs Attrs, children []Element) Element {
		return &Quote{Node{Type: tag, Attrs: attrs, Elements: children}}
	})
	Register("author", func(tag string, attrs Attrs, children []Element) Element {
		return &Author{Node{Type: tag, Attrs: attrs, Elements: children}}
	})
	Register("button", func(tag string, attrs Attrs, children []Element) Element {
		return &Button{Node{Type: tag, Attrs: attrs, Elements: children}}
	})
	Register("message", func(tag string, attrs Attrs, children []Element) Element {
		return &Message{Node{Type: tag, Attrs: attrs, Elements: children}}
	})
}
