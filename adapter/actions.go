package adapter

import (
	"context"

	"github.com/Nyayurin/yutorix-satori/pkg/msg"
	"github.com/Nyayurin/yutorix-satori/pkg/satori"
)

// Actions 绑定到某个登录账号 (platform, selfId) 的 API 集合
//
// 所有方法都接受额外的字段, 这些字段会原样追加到请求体中
type Actions struct {
	Platform string
	SelfID   string
	service  *ActionService
}

// NewActions 创建绑定到指定账号的 API 集合
func NewActions(platform, selfID string, service *ActionService) *Actions {
	return &Actions{Platform: platform, SelfID: selfID, service: service}
}

// Invoke 调用任意 API
func (a *Actions) Invoke(ctx context.Context, resource, method string, fields ...satori.Field) ([]byte, error) {
	return a.service.Invoke(ctx, resource, method, a.Platform, a.SelfID, fields...)
}

func call[T any](ctx context.Context, a *Actions, resource, method string, fields []satori.Field) (T, error) {
	data, err := a.Invoke(ctx, resource, method, fields...)
	if err != nil {
		var zero T
		return zero, err
	}
	return decode[T](resource+"."+method, data)
}

func (a *Actions) exec(ctx context.Context, resource, method string, fields []satori.Field) error {
	_, err := a.Invoke(ctx, resource, method, fields...)
	return err
}

func with(extra []satori.Field, fields ...satori.Field) []satori.Field {
	return append(fields, extra...)
}

// optional 空字符串视为未设置
func optional(key, value string) satori.Field {
	if value == "" {
		return satori.Field{Key: key}
	}
	return satori.F(key, value)
}

// ChannelGet 获取频道
func (a *Actions) ChannelGet(ctx context.Context, channelID string, extra ...satori.Field) (*satori.Channel, error) {
	return call[*satori.Channel](ctx, a, "channel", "get", with(extra,
		satori.F("channel_id", channelID)))
}

// ChannelList 获取群组频道列表
func (a *Actions) ChannelList(ctx context.Context, guildID, next string, extra ...satori.Field) (*satori.PagingList[satori.Channel], error) {
	return call[*satori.PagingList[satori.Channel]](ctx, a, "channel", "list", with(extra,
		satori.F("guild_id", guildID), optional("next", next)))
}

// ChannelCreate 创建群组频道
func (a *Actions) ChannelCreate(ctx context.Context, guildID string, data *satori.Channel, extra ...satori.Field) (*satori.Channel, error) {
	return call[*satori.Channel](ctx, a, "channel", "create", with(extra,
		satori.F("guild_id", guildID), satori.F("data", data)))
}

// ChannelUpdate 修改群组频道
func (a *Actions) ChannelUpdate(ctx context.Context, channelID string, data *satori.Channel, extra ...satori.Field) error {
	return a.exec(ctx, "channel", "update", with(extra,
		satori.F("channel_id", channelID), satori.F("data", data)))
}

// ChannelDelete 删除频道
func (a *Actions) ChannelDelete(ctx context.Context, channelID string, extra ...satori.Field) error {
	return a.exec(ctx, "channel", "delete", with(extra,
		satori.F("channel_id", channelID)))
}

// ChannelMute 禁言频道, duration 单位为毫秒, 0 表示解除禁言
func (a *Actions) ChannelMute(ctx context.Context, channelID string, duration int64, extra ...satori.Field) error {
	return a.exec(ctx, "channel", "mute", with(extra,
		satori.F("channel_id", channelID), satori.F("duration", duration)))
}

// UserChannelCreate 创建私聊频道
func (a *Actions) UserChannelCreate(ctx context.Context, userID, guildID string, extra ...satori.Field) (*satori.Channel, error) {
	return call[*satori.Channel](ctx, a, "user.channel", "create", with(extra,
		satori.F("user_id", userID), optional("guild_id", guildID)))
}

// GuildGet 获取群组
func (a *Actions) GuildGet(ctx context.Context, guildID string, extra ...satori.Field) (*satori.Guild, error) {
	return call[*satori.Guild](ctx, a, "guild", "get", with(extra,
		satori.F("guild_id", guildID)))
}

// GuildList 获取群组列表
func (a *Actions) GuildList(ctx context.Context, next string, extra ...satori.Field) (*satori.PagingList[satori.Guild], error) {
	return call[*satori.PagingList[satori.Guild]](ctx, a, "guild", "list", with(extra,
		optional("next", next)))
}

// GuildApprove 处理群组邀请
func (a *Actions) GuildApprove(ctx context.Context, messageID string, approve bool, comment string, extra ...satori.Field) error {
	return a.exec(ctx, "guild", "approve", with(extra,
		satori.F("message_id", messageID), satori.F("approve", approve), optional("comment", comment)))
}

// GuildMemberGet 获取群组成员
func (a *Actions) GuildMemberGet(ctx context.Context, guildID, userID string, extra ...satori.Field) (*satori.GuildMember, error) {
	return call[*satori.GuildMember](ctx, a, "guild.member", "get", with(extra,
		satori.F("guild_id", guildID), satori.F("user_id", userID)))
}

// GuildMemberList 获取群组成员列表
func (a *Actions) GuildMemberList(ctx context.Context, guildID, next string, extra ...satori.Field) (*satori.PagingList[satori.GuildMember], error) {
	return call[*satori.PagingList[satori.GuildMember]](ctx, a, "guild.member", "list", with(extra,
		satori.F("guild_id", guildID), optional("next", next)))
}

// GuildMemberKick 踢出群组成员
func (a *Actions) GuildMemberKick(ctx context.Context, guildID, userID string, permanent bool, extra ...satori.Field) error {
	return a.exec(ctx, "guild.member", "kick", with(extra,
		satori.F("guild_id", guildID), satori.F("user_id", userID), satori.F("permanent", permanent)))
}

// GuildMemberMute 禁言群组成员, duration 单位为毫秒, 0 表示解除禁言
func (a *Actions) GuildMemberMute(ctx context.Context, guildID, userID string, duration int64, extra ...satori.Field) error {
	return a.exec(ctx, "guild.member", "mute", with(extra,
		satori.F("guild_id", guildID), satori.F("user_id", userID), satori.F("duration", duration)))
}

// GuildMemberApprove 通过群组成员申请
func (a *Actions) GuildMemberApprove(ctx context.Context, messageID string, approve bool, comment string, extra ...satori.Field) error {
	return a.exec(ctx, "guild.member", "approve", with(extra,
		satori.F("message_id", messageID), satori.F("approve", approve), optional("comment", comment)))
}

// GuildMemberRoleSet 设置群组成员角色
func (a *Actions) GuildMemberRoleSet(ctx context.Context, guildID, userID, roleID string, extra ...satori.Field) error {
	return a.exec(ctx, "guild.member.role", "set", with(extra,
		satori.F("guild_id", guildID), satori.F("user_id", userID), satori.F("role_id", roleID)))
}

// GuildMemberRoleUnset 取消群组成员角色
func (a *Actions) GuildMemberRoleUnset(ctx context.Context, guildID, userID, roleID string, extra ...satori.Field) error {
	return a.exec(ctx, "guild.member.role", "unset", with(extra,
		satori.F("guild_id", guildID), satori.F("user_id", userID), satori.F("role_id", roleID)))
}

// GuildRoleList 获取群组角色列表
func (a *Actions) GuildRoleList(ctx context.Context, guildID, next string, extra ...satori.Field) (*satori.PagingList[satori.GuildRole], error) {
	return call[*satori.PagingList[satori.GuildRole]](ctx, a, "guild.role", "list", with(extra,
		satori.F("guild_id", guildID), optional("next", next)))
}

// GuildRoleCreate 创建群组角色
func (a *Actions) GuildRoleCreate(ctx context.Context, guildID string, role *satori.GuildRole, extra ...satori.Field) (*satori.GuildRole, error) {
	return call[*satori.GuildRole](ctx, a, "guild.role", "create", with(extra,
		satori.F("guild_id", guildID), satori.F("role", role)))
}

// GuildRoleUpdate 修改群组角色
func (a *Actions) GuildRoleUpdate(ctx context.Context, guildID, roleID string, role *satori.GuildRole, extra ...satori.Field) error {
	return a.exec(ctx, "guild.role", "update", with(extra,
		satori.F("guild_id", guildID), satori.F("role_id", roleID), satori.F("role", role)))
}

// GuildRoleDelete 删除群组角色
func (a *Actions) GuildRoleDelete(ctx context.Context, guildID, roleID string, extra ...satori.Field) error {
	return a.exec(ctx, "guild.role", "delete", with(extra,
		satori.F("guild_id", guildID), satori.F("role_id", roleID)))
}

// LoginGet 获取登录信息
func (a *Actions) LoginGet(ctx context.Context, extra ...satori.Field) (*satori.Login, error) {
	return call[*satori.Login](ctx, a, "login", "get", extra)
}

// MessageCreate 发送消息, 一条消息可能被拆分为多条发送
func (a *Actions) MessageCreate(ctx context.Context, channelID string, content []msg.Element, extra ...satori.Field) ([]satori.Message, error) {
	return call[[]satori.Message](ctx, a, "message", "create", with(extra,
		satori.F("channel_id", channelID), satori.F("content", content)))
}

// MessageGet 获取消息
func (a *Actions) MessageGet(ctx context.Context, channelID, messageID string, extra ...satori.Field) (*satori.Message, error) {
	return call[*satori.Message](ctx, a, "message", "get", with(extra,
		satori.F("channel_id", channelID), satori.F("message_id", messageID)))
}

// MessageDelete 撤回消息
func (a *Actions) MessageDelete(ctx context.Context, channelID, messageID string, extra ...satori.Field) error {
	return a.exec(ctx, "message", "delete", with(extra,
		satori.F("channel_id", channelID), satori.F("message_id", messageID)))
}

// MessageUpdate 编辑消息
func (a *Actions) MessageUpdate(ctx context.Context, channelID, messageID string, content []msg.Element, extra ...satori.Field) error {
	return a.exec(ctx, "message", "update", with(extra,
		satori.F("channel_id", channelID), satori.F("message_id", messageID), satori.F("content", content)))
}

// MessageQuery 消息列表查询条件, 零值字段不发送
type MessageQuery struct {
	Next      string
	Direction satori.Direction
	Limit     int
	Order     satori.Order
}

func (q *MessageQuery) fields() []satori.Field {
	fields := []satori.Field{optional("next", q.Next), optional("direction", string(q.Direction))}
	if q.Limit > 0 {
		fields = append(fields, satori.F("limit", q.Limit))
	}
	return append(fields, optional("order", string(q.Order)))
}

// MessageList 获取消息列表
func (a *Actions) MessageList(ctx context.Context, channelID string, query MessageQuery, extra ...satori.Field) (*satori.BidiPagingList[satori.Message], error) {
	fields := append([]satori.Field{satori.F("channel_id", channelID)}, query.fields()...)
	return call[*satori.BidiPagingList[satori.Message]](ctx, a, "message", "list", append(fields, extra...))
}

// ReactionCreate 添加表态
func (a *Actions) ReactionCreate(ctx context.Context, channelID, messageID, emoji string, extra ...satori.Field) error {
	return a.exec(ctx, "reaction", "create", with(extra,
		satori.F("channel_id", channelID), satori.F("message_id", messageID), satori.F("emoji", emoji)))
}

// ReactionDelete 删除表态, userID 为空时删除自己的表态
func (a *Actions) ReactionDelete(ctx context.Context, channelID, messageID, emoji, userID string, extra ...satori.Field) error {
	return a.exec(ctx, "reaction", "delete", with(extra,
		satori.F("channel_id", channelID), satori.F("message_id", messageID), satori.F("emoji", emoji), optional("user_id", userID)))
}

// ReactionClear 清除表态, emoji 为空时清除全部表态
func (a *Actions) ReactionClear(ctx context.Context, channelID, messageID, emoji string, extra ...satori.Field) error {
	return a.exec(ctx, "reaction", "clear", with(extra,
		satori.F("channel_id", channelID), satori.F("message_id", messageID), optional("emoji", emoji)))
}

// ReactionList 获取表态列表
func (a *Actions) ReactionList(ctx context.Context, channelID, messageID, emoji, next string, extra ...satori.Field) (*satori.PagingList[satori.User], error) {
	return call[*satori.PagingList[satori.User]](ctx, a, "reaction", "list", with(extra,
		satori.F("channel_id", channelID), satori.F("message_id", messageID), satori.F("emoji", emoji), optional("next", next)))
}

// UserGet 获取用户信息
func (a *Actions) UserGet(ctx context.Context, userID string, extra ...satori.Field) (*satori.User, error) {
	return call[*satori.User](ctx, a, "user", "get", with(extra,
		satori.F("user_id", userID)))
}

// FriendList 获取好友列表
func (a *Actions) FriendList(ctx context.Context, next string, extra ...satori.Field) (*satori.PagingList[satori.User], error) {
	return call[*satori.PagingList[satori.User]](ctx, a, "friend", "list", with(extra,
		optional("next", next)))
}

// FriendApprove 处理好友申请
func (a *Actions) FriendApprove(ctx context.Context, messageID string, approve bool, comment string, extra ...satori.Field) error {
	return a.exec(ctx, "friend", "approve", with(extra,
		satori.F("message_id", messageID), satori.F("approve", approve), optional("comment", comment)))
}

// UploadCreate 上传文件
func (a *Actions) UploadCreate(ctx context.Context, parts ...FormData) (map[string]string, error) {
	return a.service.Upload(ctx, a.Platform, a.SelfID, parts...)
}

// AdminActions 管理接口, 不携带账号请求头
type AdminActions struct {
	service *ActionService
}

// NewAdminActions 创建管理接口集合
func NewAdminActions(service *ActionService) *AdminActions {
	return &AdminActions{service: service}
}

// LoginList 获取全部登录信息
func (a *AdminActions) LoginList(ctx context.Context, extra ...satori.Field) ([]satori.Login, error) {
	data, err := a.service.Invoke(ctx, "admin.login", "list", "", "", extra...)
	if err != nil {
		return nil, err
	}
	return decode[[]satori.Login]("admin.login.list", data)
}

// WebhookCreate 创建 WebHook
func (a *AdminActions) WebhookCreate(ctx context.Context, url, token string, extra ...satori.Field) error {
	_, err := a.service.Invoke(ctx, "admin.webhook", "create", "", "", with(extra,
		satori.F("url", url), optional("token", token))...)
	return err
}

// WebhookDelete 删除 WebHook
func (a *AdminActions) WebhookDelete(ctx context.Context, url string, extra ...satori.Field) error {
	_, err := a.service.Invoke(ctx, "admin.webhook", "delete", "", "", with(extra,
		satori.F("url", url))...)
	return err
}
