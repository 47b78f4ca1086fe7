package satori

import (
	"bytes"
	"reflect"

	"github.com/pkg/errors"

	"github.com/Nyayurin/yutorix-satori/pkg/msg"
)

// Field API 请求体中的一个字段, 按添加顺序编码
type Field struct {
	Key   string
	Value interface{}
}

// F 创建字段
func F(key string, value interface{}) Field {
	return Field{Key: key, Value: value}
}

// EncodeFields 将字段编码为 JSON 对象
//
// 值为 nil 的字段被忽略, 消息元素被编码为标记文本, 其余值按 JSON 编码.
// 同名字段以最后出现的为准.
func EncodeFields(fields ...Field) ([]byte, error) {
	last := make(map[string]int, len(fields))
	for i, f := range fields {
		last[f.Key] = i
	}
	buf := bytes.Buffer{}
	buf.WriteByte('{')
	first := true
	for i, f := range fields {
		if last[f.Key] != i || isNil(f.Value) {
			continue
		}
		value, err := encodeValue(f.Value)
		if err != nil {
			return nil, errors.Wrapf(err, "encode field %s", f.Key)
		}
		if !first {
			buf.WriteByte(',')
		}
		first = false
		key, _ := json.Marshal(f.Key)
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(value)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func encodeValue(v interface{}) ([]byte, error) {
	switch e := v.(type) {
	case []msg.Element:
		s, err := msg.Serialize(e)
		if err != nil {
			return nil, err
		}
		return json.Marshal(s)
	case msg.Element:
		s, err := msg.Encode(e)
		if err != nil {
			return nil, err
		}
		return json.Marshal(s)
	}
	return json.Marshal(v)
}

func isNil(v interface{}) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Ptr, reflect.Map, reflect.Slice, reflect.Interface, reflect.Func, reflect.Chan:
		return rv.IsNil()
	}
	return false
}
