package commands

import (
	"context"
	"fmt"
	"time"

	"macroBot/internal/domain"
)

const (
	CommandSourceBuiltin = "builtin"
	CommandSourceCustom  = "custom"
)

type CommandDTO struct {
	Name        string   `json:"name"`
	Response    string   `json:"response,omitempty"`
	Platforms   []string `json:"platforms,omitempty"`
	MinimumRole string   `json:"minimum_role"`
	CreatedBy   string   `json:"created_by,omitempty"`
	UpdatedAt   string   `json:"updated_at,omitempty"`
	Source      string   `json:"source"`
	Description string   `json:"description,omitempty"`
	Usage       string   `json:"usage,omitempty"`
}

type CommunityDTO struct {
	ID           string            `json:"id"`
	MinimumRoles map[string]string `json:"minimum_roles"`
	Commands     []CommandDTO      `json:"commands"`
}

// Service is the read-only view used by the HTTP API.
type Service struct {
	manager *CustomCommandManager
}

func NewService(manager *CustomCommandManager) *Service {
	return &Service{manager: manager}
}

func (s *Service) List(ctx context.Context, community domain.CommunityID) (CommunityDTO, error) {
	if s == nil || s.manager == nil {
		return CommunityDTO{}, fmt.Errorf("commands service unavailable")
	}

	state, err := s.manager.communities.Find(ctx, community)
	if err != nil {
		return CommunityDTO{}, err
	}
	record := state.Community()
	manageTier := record.MinimumRole(domain.CategoryCommandManagement)

	out := CommunityDTO{
		ID:           string(community),
		MinimumRoles: make(map[string]string, len(record.MinimumRoles)),
		Commands:     builtinCommandDTOs(manageTier),
	}
	for category, tier := range record.MinimumRoles {
		out.MinimumRoles[string(category)] = tier.String()
	}
	for _, cmd := range state.Registry.List() {
		out.Commands = append(out.Commands, commandDTOFromDomain(cmd))
	}
	return out, nil
}

func commandDTOFromDomain(cmd *domain.CustomCommand) CommandDTO {
	if cmd == nil {
		return CommandDTO{}
	}
	updated := ""
	if !cmd.UpdatedAt.IsZero() {
		updated = cmd.UpdatedAt.UTC().Format(time.RFC3339)
	}
	return CommandDTO{
		Name:        cmd.Name,
		Response:    cmd.Response,
		MinimumRole: domain.TierEveryone.String(),
		CreatedBy:   cmd.CreatedBy,
		UpdatedAt:   updated,
		Source:      CommandSourceCustom,
	}
}

// builtinCommandDTOs reports the configured management tier for the
// mutating builtin; owner-only entries stay owner-only.
func builtinCommandDTOs(manageTier domain.PrivilegeTier) []CommandDTO {
	catalog := BuiltinCommandCatalog()
	out := make([]CommandDTO, 0, len(catalog))
	for _, item := range catalog {
		platforms := make([]string, 0, len(item.Platforms))
		for _, p := range item.Platforms {
			if p == "" {
				continue
			}
			platforms = append(platforms, string(p))
		}
		tier := item.MinimumTier
		if item.Name == "command" {
			tier = manageTier
		}
		out = append(out, CommandDTO{
			Name:        item.Name,
			Platforms:   platforms,
			MinimumRole: tier.String(),
			Source:      CommandSourceBuiltin,
			Description: item.Description,
			Usage:       item.Usage,
		})
	}
	return out
}
