// Package server 实现 Satori 协议的服务端: 事件推送 WebSocket 与 API 路由
//
// 事件推送地址为 {path}/{version}/events, API 地址为 {path}/{version}/{resource}.{method}.
// 客户端连接后须在超时前发送 IDENTIFY, 令牌错误时以 3000 关闭连接.
// 服务端不保存历史事件, IDENTIFY 中的 sequence 只会被记录.
package server
