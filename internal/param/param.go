// Package param provide some util for param parse
package param

import (
	"reflect"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"
)

// EnsureBool 判断给定的p是否可表示为合法Bool类型,否则返回defaultVal
//
// 支持的合法类型有
//
// type bool
//
// type gjson.True or gjson.False
//
// type string "true","yes","1" or "false","no","0" (case insensitive)
func EnsureBool(p interface{}, defaultVal bool) bool {
	var str string
	if b, ok := p.(bool); ok {
		return b
	}
	if j, ok := p.(gjson.Result); ok {
		if !j.Exists() {
			return defaultVal
		}
		switch j.Type { // nolint
		case gjson.True:
			return true
		case gjson.False:
			return false
		case gjson.String:
			str = j.Str
		default:
			return defaultVal
		}
	} else if s, ok := p.(string); ok {
		str = s
	}
	str = strings.ToLower(str)
	switch str {
	case "true", "yes", "1":
		return true
	case "false", "no", "0":
		return false
	default:
		return defaultVal
	}
}

// EnsureInt 将字符串转换为整数, 非法时返回 defaultVal
func EnsureInt(s string, defaultVal int) int {
	i, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return defaultVal
	}
	return i
}

// SetAtDefault 在变量 variable 为默认值 defaultValue 的时候修改为 value
func SetAtDefault(variable, value, defaultValue interface{}) {
	v := reflect.ValueOf(variable)
	v2 := reflect.ValueOf(value)
	if v.Kind() != reflect.Ptr || v.IsNil() {
		return
	}
	v = v.Elem()
	if v.Interface() != defaultValue {
		return
	}
	if v.Kind() != v2.Kind() {
		return
	}
	v.Set(v2)
}

// SetExcludeDefault 在目标值 value 不为默认值 defaultValue 时修改 variable 为 value
func SetExcludeDefault(variable, value, defaultValue interface{}) {
	v := reflect.ValueOf(variable)
	v2 := reflect.ValueOf(value)
	if v.Kind() != reflect.Ptr || v.IsNil() {
		return
	}
	v = v.Elem()
	if reflect.Indirect(v2).Interface() == defaultValue {
		return
	}
	if v.Kind() != v2.Kind() {
		return
	}
	v.Set(v2)
}
