package domain

import "time"

type Platform string

const (
	PlatformTwitch Platform = "twitch"
	PlatformKick   Platform = "kick"
	PlatformWeb    Platform = "web"
)

type Message struct {
	Platform  Platform
	ChannelID string
	UserID    string
	Username  string
	Text      string
	IsPrivate bool

	// Platform flags, set by the adapter.
	IsPlatformOwner bool
	IsPlatformAdmin bool
	IsPlatformMod   bool
	IsPlatformVip   bool

	ReceivedAt time.Time
}

// Community returns the isolation scope the message belongs to. Every channel
// of every platform is its own community.
func (m Message) Community() CommunityID {
	return NewCommunityID(m.Platform, m.ChannelID)
}

// Tier maps the platform flags to a privilege tier. Owner wins over admin,
// admin over moderator.
func (m Message) Tier() PrivilegeTier {
	switch {
	case m.IsPlatformOwner:
		return TierOwner
	case m.IsPlatformAdmin:
		return TierCommandAdmin
	case m.IsPlatformMod:
		return TierModerator
	default:
		return TierEveryone
	}
}

// Invoker builds the identity used by the authorization gate.
func (m Message) Invoker() Invoker {
	return Invoker{
		UserID:   m.UserID,
		Username: m.Username,
		Tier:     m.Tier(),
		IsOwner:  m.IsPlatformOwner,
	}
}
