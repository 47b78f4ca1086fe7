package satori

// PagingList 分页列表, Next 为下一页的令牌, 原样透传
type PagingList[T any] struct {
	Data []T    `json:"data"`
	Next string `json:"next,omitempty"`
}

// BidiPagingList 双向分页列表
type BidiPagingList[T any] struct {
	Data []T    `json:"data"`
	Prev string `json:"prev,omitempty"`
	Next string `json:"next,omitempty"`
}

// Direction 双向分页的查询方向
type Direction string

// 查询方向
const (
	Before Direction = "before"
	After  Direction = "after"
	Around Direction = "around"
)

// ParseDirection 解析查询方向, 未知值返回 false
func ParseDirection(s string) (Direction, bool) {
	switch d := Direction(s); d {
	case Before, After, Around:
		return d, true
	}
	return "", false
}

// Order 排序方式
type Order string

// 排序方式
const (
	Asc  Order = "asc"
	Desc Order = "desc"
)

// ParseOrder 解析排序方式, 未知值返回 false
func ParseOrder(s string) (Order, bool) {
	switch o := Order(s); o {
	case Asc, Desc:
		return o, true
	}
	return "", false
}
