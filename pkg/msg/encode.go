package msg

import (
	"fmt"
	"strconv"
	"strings"
)

// UnsupportedAttrError 属性值类型无法编码为标记文本
type UnsupportedAttrError struct {
	Tag   string
	Key   string
	Value any
}

func (e *UnsupportedAttrError) Error() string {
	return fmt.Sprintf("msg: unsupported attribute %s.%s of type %T", e.Tag, e.Key, e.Value)
}

// Serialize 将元素列表编码为标记文本
func Serialize(elements []Element) (string, error) {
	sb := strings.Builder{}
	for _, e := range elements {
		if err := WriteTo(&sb, e); err != nil {
			return "", err
		}
	}
	return sb.String(), nil
}

// Encode 将单个元素编码为标记文本
func Encode(e Element) (string, error) {
	sb := strings.Builder{}
	if err := WriteTo(&sb, e); err != nil {
		return "", err
	}
	return sb.String(), nil
}

// WriteTo 将元素编码写入 sb
func WriteTo(sb *strings.Builder, e Element) error {
	if t, ok := e.(*Text); ok {
		sb.WriteString(Escape(t.Content))
		return nil
	}
	tag := shorthand(e.Tag())
	sb.WriteByte('<')
	sb.WriteString(tag)
	for _, attr := range e.Attributes() {
		if err := writeAttr(sb, e.Tag(), attr); err != nil {
			return err
		}
	}
	children := e.Children()
	if len(children) == 0 {
		sb.WriteString("/>")
		return nil
	}
	sb.WriteByte('>')
	for _, child := range children {
		if err := WriteTo(sb, child); err != nil {
			return err
		}
	}
	sb.WriteString("</")
	sb.WriteString(tag)
	sb.WriteByte('>')
	return nil
}

func writeAttr(sb *strings.Builder, tag string, attr Attr) error {
	var value string
	switch v := attr.Value.(type) {
	case nil:
		return nil
	case bool:
		if v {
			sb.WriteByte(' ')
			sb.WriteString(attr.Key)
		}
		return nil
	case string:
		value = Escape(v)
	case int:
		value = strconv.FormatInt(int64(v), 10)
	case int8:
		value = strconv.FormatInt(int64(v), 10)
	case int16:
		value = strconv.FormatInt(int64(v), 10)
	case int32:
		value = strconv.FormatInt(int64(v), 10)
	case int64:
		value = strconv.FormatInt(v, 10)
	case uint:
		value = strconv.FormatUint(uint64(v), 10)
	case uint8:
		value = strconv.FormatUint(uint64(v), 10)
	case uint16:
		value = strconv.FormatUint(uint64(v), 10)
	case uint32:
		value = strconv.FormatUint(uint64(v), 10)
	case uint64:
		value = strconv.FormatUint(v, 10)
	case float32:
		value = strconv.FormatFloat(float64(v), 'f', -1, 32)
	case float64:
		value = strconv.FormatFloat(v, 'f', -1, 64)
	default:
		return &UnsupportedAttrError{Tag: tag, Key: attr.Key, Value: attr.Value}
	}
	sb.WriteByte(' ')
	sb.WriteString(attr.Key)
	sb.WriteString(`="`)
	sb.WriteString(value)
	sb.WriteByte('"')
	return nil
}
