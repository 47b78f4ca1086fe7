package msg

import "sync"

// Constructor 根据规范标签名、属性与子元素构造特化的元素类型
type Constructor func(tag string, attrs Attrs, children []Element) Element

var (
	constructors = make(map[string]Constructor)
	ctorMutex    sync.RWMutex
)

// Register 注册元素构造器, 重复注册会覆盖旧的构造器
//
// 应当在解析开始之前完成注册, 一般在 init 中调用
func Register(tag string, ctor Constructor) {
	ctorMutex.Lock()
	constructors[tag] = ctor
	ctorMutex.Unlock()
}

// Lookup 查找构造器
func Lookup(tag string) (Constructor, bool) {
	ctorMutex.RLock()
	defer ctorMutex.RUnlock()
	ctor, ok := constructors[tag]
	return ctor, ok
}

// 标记文本中的简写标签与规范标签名的对应关系
var (
	decodeAlias = map[string]string{
		"a":   "href",
		"img": "image",
		"b":   "bold",
		"i":   "idiomatic",
		"u":   "underline",
		"s":   "strikethrough",
		"del": "delete",
		"p":   "paragraph",
	}
	encodeAlias = func() map[string]string {
		m := make(map[string]string, len(decodeAlias))
		for k, v := range decodeAlias {
			m[v] = k
		}
		return m
	}()
)

func canonical(tag string) string {
	if name, ok := decodeAlias[tag]; ok {
		return name
	}
	return tag
}

func shorthand(tag string) string {
	if name, ok := encodeAlias[tag]; ok {
		return name
	}
	return tag
}

func build(tag string, attrs Attrs, children []Element) Element {
	tag = canonical(tag)
	if ctor, ok := Lookup(tag); ok {
		return ctor(tag, attrs, children)
	}
	return &Node{Type: tag, Attrs: attrs, Elements: children}
}
