package domain

import (
	"context"
	"fmt"
	"strings"
)

// PrivilegeTier is an ordered rank. Only comparisons matter.
type PrivilegeTier int

const (
	TierEveryone PrivilegeTier = iota
	TierModerator
	TierCommandAdmin
	TierOwner
)

var tierNames = map[PrivilegeTier]string{
	TierEveryone:     "everyone",
	TierModerator:    "moderator",
	TierCommandAdmin: "command-admin",
	TierOwner:        "owner",
}

func (t PrivilegeTier) String() string {
	if name, ok := tierNames[t]; ok {
		return name
	}
	return fmt.Sprintf("tier(%d)", int(t))
}

// Valid reports whether t is one of the known tiers.
func (t PrivilegeTier) Valid() bool {
	_, ok := tierNames[t]
	return ok
}

// ParseTier accepts the canonical names plus a few chat-friendly aliases.
func ParseTier(raw string) (PrivilegeTier, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "everyone", "all", "user", "users":
		return TierEveryone, nil
	case "moderator", "moderators", "mod", "mods":
		return TierModerator, nil
	case "command-admin", "commandadmin", "admin", "admins":
		return TierCommandAdmin, nil
	case "owner", "broadcaster", "streamer":
		return TierOwner, nil
	default:
		return TierEveryone, fmt.Errorf("%w: %q", ErrUnknownRole, raw)
	}
}

// ActionCategory groups operations that share a minimum tier.
type ActionCategory string

const (
	CategoryCommandManagement ActionCategory = "command-management"
)

// Invoker is the resolved identity of whoever issued an invocation.
type Invoker struct {
	UserID   string
	Username string
	Tier     PrivilegeTier
	IsOwner  bool
}

// RoleResolver maps a platform role reference (as typed in chat) to a tier.
type RoleResolver interface {
	ResolveRole(ctx context.Context, community CommunityID, role string) (PrivilegeTier, error)
}

// NameRoleResolver resolves roles by tier name. Platforms without role
// objects (Twitch, Kick) only ever have these names.
type NameRoleResolver struct{}

func (NameRoleResolver) ResolveRole(_ context.Context, _ CommunityID, role string) (PrivilegeTier, error) {
	return ParseTier(role)
}
