// Package satori 定义了 Satori 协议的信令, 事件与资源实体
package satori

import (
	"bytes"
	"fmt"

	jsoniter "github.com/json-iterator/go"
	"github.com/pkg/errors"
	"github.com/tidwall/gjson"
)

// 消息内容为标记文本, 不对 <>& 做 HTML 转义
var json = jsoniter.Config{
	EscapeHTML:             false,
	SortMapKeys:            true,
	ValidateJsonRawMessage: true,
}.Froze()

// Op 信令类型
type Op int

// 信令类型
const (
	OpEvent    Op = 0 // 事件
	OpPing     Op = 1 // 心跳
	OpPong     Op = 2 // 心跳回复
	OpIdentify Op = 3 // 鉴权
	OpReady    Op = 4 // 鉴权回复
)

func (op Op) String() string {
	switch op {
	case OpEvent:
		return "EVENT"
	case OpPing:
		return "PING"
	case OpPong:
		return "PONG"
	case OpIdentify:
		return "IDENTIFY"
	case OpReady:
		return "READY"
	default:
		return fmt.Sprintf("OP(%d)", int(op))
	}
}

// Signal WebSocket 信令
//
// 信令类型只由具体的 Go 类型决定, 可能的实现有
// *Event, Ping, Pong, *Identify, *Ready
type Signal interface {
	Op() Op
}

// Ping 心跳
type Ping struct{}

// Pong 心跳回复
type Pong struct{}

// Identify 鉴权
type Identify struct {
	Token    string `json:"token,omitempty"`
	Sequence *int64 `json:"sequence,omitempty"`
}

// Ready 鉴权回复
type Ready struct {
	Logins []Login `json:"logins"`
}

// Op impl Signal
func (*Event) Op() Op { return OpEvent }

// Op impl Signal
func (Ping) Op() Op { return OpPing }

// Op impl Signal
func (Pong) Op() Op { return OpPong }

// Op impl Signal
func (Identify) Op() Op { return OpIdentify }

// Op impl Signal
func (Ready) Op() Op { return OpReady }

// 协议错误
var (
	ErrUnknownOp    = errors.New("unknown op")
	ErrMalformed    = errors.New("malformed signal")
	ErrUnauthorized = errors.New("unauthorized")
)

// ProtocolError 信令层面的协议错误
type ProtocolError struct {
	Op  Op
	Err error
}

func (e *ProtocolError) Error() string {
	if errors.Is(e.Err, ErrUnknownOp) {
		return fmt.Sprintf("satori: %v: %d", e.Err, int(e.Op))
	}
	return "satori: " + e.Err.Error()
}

func (e *ProtocolError) Unwrap() error { return e.Err }

func malformed(format string, args ...interface{}) error {
	return &ProtocolError{Err: errors.Wrapf(ErrMalformed, format, args...)}
}

type envelope struct {
	Op   Op     `json:"op"`
	Body Signal `json:"body,omitempty"`
}

// MarshalSignal 将信令编码为 {"op":N,"body":...}, 无 body 的信令不输出 body 字段
func MarshalSignal(s Signal) ([]byte, error) {
	if s == nil {
		return nil, errors.New("satori: nil signal")
	}
	env := envelope{Op: s.Op()}
	switch s.(type) {
	case Ping, *Ping, Pong, *Pong:
	default:
		env.Body = s
	}
	return json.Marshal(&env)
}

// UnmarshalSignal 根据 op 字段解码信令
func UnmarshalSignal(data []byte) (Signal, error) {
	data = bytes.TrimSpace(data)
	if !gjson.ValidBytes(data) {
		return nil, malformed("invalid json")
	}
	opField := gjson.GetBytes(data, "op")
	if opField.Type != gjson.Number {
		return nil, malformed("missing op")
	}
	op := Op(opField.Int())
	body := gjson.GetBytes(data, "body")
	switch op {
	case OpEvent:
		if !body.IsObject() {
			return nil, malformed("event without body")
		}
		e := new(Event)
		if err := json.UnmarshalFromString(body.Raw, e); err != nil {
			return nil, malformed("decode event: %v", err)
		}
		return e, nil
	case OpPing:
		return Ping{}, nil
	case OpPong:
		return Pong{}, nil
	case OpIdentify:
		i := new(Identify)
		if body.IsObject() {
			if err := json.UnmarshalFromString(body.Raw, i); err != nil {
				return nil, malformed("decode identify: %v", err)
			}
		}
		return i, nil
	case OpReady:
		if !body.IsObject() {
			return nil, malformed("ready without body")
		}
		r := new(Ready)
		if err := json.UnmarshalFromString(body.Raw, r); err != nil {
			return nil, malformed("decode ready: %v", err)
		}
		return r, nil
	default:
		return nil, &ProtocolError{Op: op, Err: ErrUnknownOp}
	}
}
