package commands

import (
	"fmt"

	"macroBot/internal/domain"
)

// PrivilegeError carries the tier that was required so replies can name it.
type PrivilegeError struct {
	Category domain.ActionCategory
	Required domain.PrivilegeTier
	Actual   domain.PrivilegeTier
}

func (e *PrivilegeError) Error() string {
	return fmt.Sprintf("%s requires %s, invoker is %s", e.Category, e.Required, e.Actual)
}

func (e *PrivilegeError) Unwrap() error {
	return domain.ErrInsufficientPrivilege
}

// Gate compares an invoker against a community's configured thresholds.
type Gate struct{}

func isOwner(community *domain.Community, invoker domain.Invoker) bool {
	if invoker.IsOwner {
		return true
	}
	return community != nil && community.OwnerID != "" && invoker.UserID == community.OwnerID
}

// Check allows the owner unconditionally, everyone else needs the
// category's minimum tier.
func (Gate) Check(community *domain.Community, category domain.ActionCategory, invoker domain.Invoker) error {
	if isOwner(community, invoker) {
		return nil
	}
	required := community.MinimumRole(category)
	if invoker.Tier < required {
		return &PrivilegeError{Category: category, Required: required, Actual: invoker.Tier}
	}
	return nil
}

// CheckOwner ignores configured tiers. Changing a threshold must never
// depend on the threshold itself.
func (Gate) CheckOwner(community *domain.Community, invoker domain.Invoker) error {
	if isOwner(community, invoker) {
		return nil
	}
	return &PrivilegeError{Category: "community-owner", Required: domain.TierOwner, Actual: invoker.Tier}
}
