package commands

import "macroBot/internal/domain"

// CommandDescriptor describes a builtin command for the read API.
type CommandDescriptor struct {
	Name        string
	Aliases     []string
	Platforms   []domain.Platform
	Description string
	Usage       string
	MinimumTier domain.PrivilegeTier
}

func BuiltinCommandCatalog() []CommandDescriptor {
	return []CommandDescriptor{
		{
			Name:        "command",
			Description: "Creates a custom command. Deletes an existing one if the response is empty.",
			Usage:       "!command <name> [response]",
			MinimumTier: domain.TierEveryone,
		},
		{
			Name:        "command dump",
			Description: "Dumps the source text of a custom command.",
			Usage:       "!command dump <name>",
			MinimumTier: domain.TierEveryone,
		},
		{
			Name:        "command role",
			Description: "Sets the minimum role for creating custom commands.",
			Usage:       "!command role <role>",
			MinimumTier: domain.TierOwner,
		},
	}
}
