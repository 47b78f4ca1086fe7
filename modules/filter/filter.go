// Package filter 实现了基于 JSON 规则的事件过滤器
//
// 规则是一个 JSON 对象, 键为事件中的字段路径 (gjson 语法), 以 . 开头的键为操作符:
//
//	{
//	    "type": "message-created",
//	    "platform": {".in": ["qq", "discord"]},
//	    ".not": {"user.is_bot": true},
//	    "message.content": {".regex": "^/"}
//	}
package filter

import (
	"regexp"
	"strings"

	"github.com/pkg/errors"
	"github.com/tidwall/gjson"
)

// Filter 事件过滤器
type Filter interface {
	Eval(payload gjson.Result) bool
}

// Func 以函数实现 Filter
type Func func(payload gjson.Result) bool

// Eval impl Filter
func (f Func) Eval(payload gjson.Result) bool { return f(payload) }

type operationNode struct {
	key    string
	filter Filter
}

type notOperator struct {
	operand Filter
}

func newNotOp(argument gjson.Result) (Filter, error) {
	if !argument.IsObject() {
		return nil, errors.New("the argument of 'not' operator must be an object")
	}
	operand, err := Generate("and", argument)
	if err != nil {
		return nil, err
	}
	return &notOperator{operand: operand}, nil
}

func (op *notOperator) Eval(payload gjson.Result) bool {
	return !op.operand.Eval(payload)
}

type andOperator struct {
	operands []operationNode
}

func newAndOp(argument gjson.Result) (Filter, error) {
	if !argument.IsObject() {
		return nil, errors.New("the argument of 'and' operator must be an object")
	}
	op := new(andOperator)
	var err error
	argument.ForEach(func(key, value gjson.Result) bool {
		var node operationNode
		switch {
		case strings.HasPrefix(key.Str, "."):
			// ".op": argument
			node.filter, err = Generate(key.Str[1:], value)
		case value.IsObject():
			// "field": {".op": argument}
			node.key = key.Str
			node.filter, err = Generate("and", value)
		default:
			// "field": value
			node.key = key.Str
			node.filter, err = Generate("eq", value)
		}
		if err != nil {
			err = errors.Wrapf(err, "key %q", key.Str)
			return false
		}
		op.operands = append(op.operands, node)
		return true
	})
	if err != nil {
		return nil, err
	}
	return op, nil
}

func (op *andOperator) Eval(payload gjson.Result) bool {
	for _, operand := range op.operands {
		target := payload
		if operand.key != "" {
			target = payload.Get(operand.key)
		}
		if !operand.filter.Eval(target) {
			return false
		}
	}
	return true
}

type orOperator struct {
	operands []Filter
}

func newOrOp(argument gjson.Result) (Filter, error) {
	if !argument.IsArray() {
		return nil, errors.New("the argument of 'or' operator must be an array")
	}
	op := new(orOperator)
	var err error
	argument.ForEach(func(_, value gjson.Result) bool {
		var operand Filter
		if operand, err = Generate("and", value); err != nil {
			return false
		}
		op.operands = append(op.operands, operand)
		return true
	})
	if err != nil {
		return nil, err
	}
	return op, nil
}

func (op *orOperator) Eval(payload gjson.Result) bool {
	for _, operand := range op.operands {
		if operand.Eval(payload) {
			return true
		}
	}
	return false
}

type eqOperator struct {
	operand string
}

func (op *eqOperator) Eval(payload gjson.Result) bool {
	return payload.String() == op.operand
}

type neqOperator struct {
	operand string
}

func (op *neqOperator) Eval(payload gjson.Result) bool {
	return payload.String() != op.operand
}

type inOperator struct {
	operandString string
	operandArray  []string
}

func newInOp(argument gjson.Result) (Filter, error) {
	if argument.IsObject() {
		return nil, errors.New("the argument of 'in' operator must be an array or a string")
	}
	op := new(inOperator)
	if argument.IsArray() {
		op.operandArray = []string{}
		argument.ForEach(func(_, value gjson.Result) bool {
			op.operandArray = append(op.operandArray, value.String())
			return true
		})
	} else {
		op.operandString = argument.String()
	}
	return op, nil
}

func (op *inOperator) Eval(payload gjson.Result) bool {
	s := payload.String()
	if op.operandArray != nil {
		for _, value := range op.operandArray {
			if value == s {
				return true
			}
		}
		return false
	}
	return strings.Contains(op.operandString, s)
}

type containsOperator struct {
	operand string
}

func (op *containsOperator) Eval(payload gjson.Result) bool {
	return strings.Contains(payload.String(), op.operand)
}

type regexOperator struct {
	regex *regexp.Regexp
}

func (op *regexOperator) Eval(payload gjson.Result) bool {
	return op.regex.MatchString(payload.String())
}

type existsOperator struct {
	want bool
}

func (op *existsOperator) Eval(payload gjson.Result) bool {
	return payload.Exists() == op.want
}

func scalar(name string, argument gjson.Result) (string, error) {
	if argument.IsArray() || argument.IsObject() {
		return "", errors.Errorf("the argument of '%s' operator must be a scalar", name)
	}
	return argument.String(), nil
}

// Generate 根据给定操作符名 opName 及操作符参数 argument 创建一个过滤器
func Generate(opName string, argument gjson.Result) (Filter, error) {
	switch opName {
	case "not":
		return newNotOp(argument)
	case "and":
		return newAndOp(argument)
	case "or":
		return newOrOp(argument)
	case "in":
		return newInOp(argument)
	case "eq", "neq", "contains", "regex":
		s, err := scalar(opName, argument)
		if err != nil {
			return nil, err
		}
		switch opName {
		case "eq":
			return &eqOperator{operand: s}, nil
		case "neq":
			return &neqOperator{operand: s}, nil
		case "contains":
			return &containsOperator{operand: s}, nil
		}
		re, err := regexp.Compile(s)
		if err != nil {
			return nil, errors.Wrap(err, "regex")
		}
		return &regexOperator{regex: re}, nil
	case "exists":
		if argument.Type != gjson.True && argument.Type != gjson.False {
			return nil, errors.New("the argument of 'exists' operator must be a boolean")
		}
		return &existsOperator{want: argument.Bool()}, nil
	default:
		return nil, errors.Errorf("the operator %s is not supported", opName)
	}
}
