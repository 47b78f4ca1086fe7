package msg

import (
	"io"
	"strings"

	"github.com/pkg/errors"
	"golang.org/x/net/html"
)

// voidElements HTML 中没有内容的标签, 开始标签即为完整元素
var voidElements = map[string]bool{
	"area": true, "base": true, "br": true, "col": true,
	"embed": true, "hr": true, "img": true, "input": true,
	"link": true, "meta": true, "param": true, "source": true,
	"track": true, "wbr": true,
}

type frame struct {
	tag      string
	attrs    Attrs
	children []Element
}

func (f *frame) element() Element {
	return build(f.tag, f.attrs, f.children)
}

// Parse 将标记文本解析为元素列表
//
// 顶层节点依次成为返回列表中的元素, 注释与 doctype 被忽略,
// 未闭合的标签在输入结束时自动闭合, 多余的结束标签被忽略.
func Parse(s string) ([]Element, error) {
	z := html.NewTokenizer(strings.NewReader(s))
	root := &frame{}
	stack := []*frame{root}
	top := func() *frame { return stack[len(stack)-1] }
	pop := func() {
		f := top()
		stack = stack[:len(stack)-1]
		parent := top()
		parent.children = append(parent.children, f.element())
	}

	for {
		switch z.Next() {
		case html.ErrorToken:
			if err := z.Err(); err != io.EOF {
				return nil, errors.Wrap(err, "parse markup")
			}
			for len(stack) > 1 {
				pop()
			}
			return root.children, nil
		case html.TextToken:
			f := top()
			f.children = append(f.children, &Text{Content: string(z.Text())})
		case html.StartTagToken:
			tag, attrs := readTag(z)
			if voidElements[tag] {
				f := top()
				f.children = append(f.children, build(tag, attrs, nil))
				continue
			}
			stack = append(stack, &frame{tag: tag, attrs: attrs})
		case html.SelfClosingTagToken:
			tag, attrs := readTag(z)
			f := top()
			f.children = append(f.children, build(tag, attrs, nil))
		case html.EndTagToken:
			name, _ := z.TagName()
			tag := canonical(string(name))
			i := len(stack) - 1
			for ; i > 0; i-- {
				if canonical(stack[i].tag) == tag {
					break
				}
			}
			if i == 0 {
				continue
			}
			for len(stack) > i {
				pop()
			}
		}
	}
}

func readTag(z *html.Tokenizer) (string, Attrs) {
	name, more := z.TagName()
	var attrs Attrs
	for more {
		var key, val []byte
		key, val, more = z.TagAttr()
		attrs = append(attrs, Attr{Key: string(key), Value: string(val)})
	}
	return string(name), attrs
}
