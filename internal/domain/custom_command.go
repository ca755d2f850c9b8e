package domain

import (
	"context"
	"strings"
	"time"
)

type CommunityID string

func NewCommunityID(platform Platform, channelID string) CommunityID {
	channel := strings.ToLower(strings.TrimPrefix(strings.TrimSpace(channelID), "#"))
	return CommunityID(string(platform) + ":" + channel)
}

type Community struct {
	ID           CommunityID
	OwnerID      string
	MinimumRoles map[ActionCategory]PrivilegeTier
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// MinimumRole returns the configured threshold, defaulting to the lowest tier.
func (c *Community) MinimumRole(category ActionCategory) PrivilegeTier {
	if c == nil || c.MinimumRoles == nil {
		return TierEveryone
	}
	if tier, ok := c.MinimumRoles[category]; ok {
		return tier
	}
	return TierEveryone
}

func (c *Community) Clone() *Community {
	if c == nil {
		return nil
	}
	out := *c
	out.MinimumRoles = make(map[ActionCategory]PrivilegeTier, len(c.MinimumRoles))
	for k, v := range c.MinimumRoles {
		out.MinimumRoles[k] = v
	}
	return &out
}

type CustomCommand struct {
	CommunityID CommunityID
	Name        string
	Response    string
	CreatedBy   string
	UpdatedAt   time.Time
}

func (c *CustomCommand) Clone() *CustomCommand {
	if c == nil {
		return nil
	}
	out := *c
	return &out
}

type CustomCommandKey struct {
	CommunityID CommunityID
	Name        string
}

// ChangeSet is the set of pending entity changes committed atomically.
type ChangeSet struct {
	Communities     []*Community
	UpsertCommands  []*CustomCommand
	DeletedCommands []CustomCommandKey
}

func (c ChangeSet) Empty() bool {
	return len(c.Communities) == 0 && len(c.UpsertCommands) == 0 && len(c.DeletedCommands) == 0
}

// PersistenceGateway durably applies a ChangeSet. Once Commit returns nil
// the changes survive a restart.
type PersistenceGateway interface {
	Commit(ctx context.Context, changes ChangeSet) error
}

type CommunityRepository interface {
	// GetCommunity returns nil, nil when the community was never stored.
	GetCommunity(ctx context.Context, id CommunityID) (*Community, error)
}

type CustomCommandRepository interface {
	ListCustomCommands(ctx context.Context, community CommunityID) ([]*CustomCommand, error)
}
