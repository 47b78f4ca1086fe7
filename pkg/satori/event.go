package satori

// 标准事件类型
const (
	EventMessageCreated     = "message-created"
	EventMessageUpdated     = "message-updated"
	EventMessageDeleted     = "message-deleted"
	EventGuildAdded         = "guild-added"
	EventGuildUpdated       = "guild-updated"
	EventGuildRemoved       = "guild-removed"
	EventGuildRequest       = "guild-request"
	EventGuildMemberAdded   = "guild-member-added"
	EventGuildMemberUpdated = "guild-member-updated"
	EventGuildMemberRemoved = "guild-member-removed"
	EventGuildMemberRequest = "guild-member-request"
	EventGuildRoleCreated   = "guild-role-created"
	EventGuildRoleUpdated   = "guild-role-updated"
	EventGuildRoleDeleted   = "guild-role-deleted"
	EventReactionAdded      = "reaction-added"
	EventReactionRemoved    = "reaction-removed"
	EventLoginAdded         = "login-added"
	EventLoginRemoved       = "login-removed"
	EventLoginUpdated       = "login-updated"
	EventFriendRequest      = "friend-request"
	EventInteractionButton  = "interaction/button"
	EventInteractionCommand = "interaction/command"
)

// Event 事件
type Event struct {
	ID        int64        `json:"id"`
	Type      string       `json:"type"`
	Platform  string       `json:"platform"`
	SelfID    string       `json:"self_id"`
	Timestamp int64        `json:"timestamp"`
	Argv      *Argv        `json:"argv,omitempty"`
	Button    *Button      `json:"button,omitempty"`
	Channel   *Channel     `json:"channel,omitempty"`
	Guild     *Guild       `json:"guild,omitempty"`
	Login     *Login       `json:"login,omitempty"`
	Member    *GuildMember `json:"member,omitempty"`
	Message   *Message     `json:"message,omitempty"`
	Operator  *User        `json:"operator,omitempty"`
	Role      *GuildRole   `json:"role,omitempty"`
	User      *User        `json:"user,omitempty"`
}
