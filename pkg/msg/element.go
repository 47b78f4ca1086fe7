// Package msg 提供了 Satori 消息元素的中间表示以及与标记文本之间的互相转换
package msg

import (
	"strings"
)

// @@@ 标记转义处理 @@@

// Escape 将字符串中的部分字符转义
//
//   - & -> &amp;
//   - " -> &quot;
//   - < -> &lt;
//   - > -> &gt;
func Escape(s string) string {
	count := strings.Count(s, "&")
	count += strings.Count(s, `"`)
	count += strings.Count(s, "<")
	count += strings.Count(s, ">")
	if count == 0 {
		return s
	}

	var b strings.Builder
	b.Grow(len(s) + count*5)
	start := 0
	for i := 0; i < count; i++ {
		j := start + strings.IndexAny(s[start:], `&"<>`)
		b.WriteString(s[start:j])
		switch s[j] {
		case '&':
			b.WriteString("&amp;")
		case '"':
			b.WriteString("&quot;")
		case '<':
			b.WriteString("&lt;")
		case '>':
			b.WriteString("&gt;")
		}
		start = j + 1
	}
	b.WriteString(s[start:])
	return b.String()
}

// Unescape 将字符串中的部分字符反转义, 是 Escape 的逆操作
func Unescape(s string) string {
	if !strings.Contains(s, "&") {
		return s
	}
	ret := strings.ReplaceAll(s, "&quot;", `"`)
	ret = strings.ReplaceAll(ret, "&lt;", "<")
	ret = strings.ReplaceAll(ret, "&gt;", ">")
	ret = strings.ReplaceAll(ret, "&amp;", "&")
	return ret
}

// @@@ 消息中间表示 @@@

// Attr 元素属性
type Attr struct {
	Key   string
	Value any
}

// Attrs 有序的元素属性列表
type Attrs []Attr

// Get 获取指定属性
func (a Attrs) Get(key string) (any, bool) {
	for _, attr := range a {
		if attr.Key == key {
			return attr.Value, true
		}
	}
	return nil, false
}

// String 以字符串形式获取指定属性, 不存在或不是字符串时返回空串
func (a Attrs) String(key string) string {
	v, _ := a.Get(key)
	s, _ := v.(string)
	return s
}

// Set 设置属性, 已存在时原地覆盖
func (a *Attrs) Set(key string, value any) {
	for i := range *a {
		if (*a)[i].Key == key {
			(*a)[i].Value = value
			return
		}
	}
	*a = append(*a, Attr{Key: key, Value: value})
}

// Element 消息元素
type Element interface {
	Tag() string
	Attributes() Attrs
	Children() []Element
}

// Text 纯文本
type Text struct {
	Content string
}

// NewText 创建纯文本元素
func NewText(content string) *Text {
	return &Text{Content: content}
}

// Tag impl Element
func (t *Text) Tag() string { return "text" }

// Attributes impl Element
func (t *Text) Attributes() Attrs { return nil }

// Children impl Element
func (t *Text) Children() []Element { return nil }

// Node 通用元素, 未注册构造器的标签均解析为 Node
type Node struct {
	Type     string
	Attrs    Attrs
	Elements []Element
}

// NewNode 创建通用元素
func NewNode(tag string, attrs Attrs, children ...Element) *Node {
	return &Node{Type: tag, Attrs: attrs, Elements: children}
}

// Tag impl Element
func (n *Node) Tag() string { return n.Type }

// Attributes impl Element
func (n *Node) Attributes() Attrs { return n.Attrs }

// Children impl Element
func (n *Node) Children() []Element { return n.Elements }

// PlainText 提取元素树中的全部纯文本, 主要用于日志输出
func PlainText(elements []Element) string {
	sb := strings.Builder{}
	writePlain(&sb, elements)
	return sb.String()
}

func writePlain(sb *strings.Builder, elements []Element) {
	for _, e := range elements {
		switch v := e.(type) {
		case *Text:
			sb.WriteString(v.Content)
		case *At:
			sb.WriteByte('@')
			if name := v.Name(); name != "" {
				sb.WriteString(name)
			} else {
				sb.WriteString(v.ID())
			}
		case *Resource:
			sb.WriteByte('[')
			sb.WriteString(v.Type)
			sb.WriteByte(']')
		default:
			writePlain(sb, e.Children())
		}
	}
}
