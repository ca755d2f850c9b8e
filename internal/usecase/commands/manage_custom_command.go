package commands

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"macroBot/internal/domain"
)

const (
	replyUsage       = "Usage: !command <name> [response] | !command dump <name> | !command role <role>"
	replyThrottled   = "Slow down, custom commands were changed too recently."
	replyFailure     = "Something went wrong, the command was not saved."
	replyOwnerOnly   = "Only the community owner can change the minimum role."
	replyRoleFailure = "Something went wrong, the minimum role was not saved."
)

// ManageCustomCommand is the `command` builtin: create, update, delete,
// dump and the minimum role setting.
type ManageCustomCommand struct {
	manager    *CustomCommandManager
	newID      func() string
	isReserved func(string) bool
}

func NewManageCustomCommand(manager *CustomCommandManager) *ManageCustomCommand {
	return &ManageCustomCommand{manager: manager, newID: uuid.NewString}
}

// SetReservedChecker blocks names that a builtin already answers to.
func (c *ManageCustomCommand) SetReservedChecker(fn func(string) bool) {
	c.isReserved = fn
}

func (c *ManageCustomCommand) Name() string {
	return "command"
}

func (c *ManageCustomCommand) Aliases() []string {
	return []string{}
}

func (c *ManageCustomCommand) SupportsPlatform(domain.Platform) bool {
	return true
}

func (c *ManageCustomCommand) Handle(ctx context.Context, cmdCtx *Context) error {
	if c.manager == nil {
		return nil
	}

	name, rest := cutNext(cmdCtx.Body)
	switch name {
	case "":
		return cmdCtx.Reply(ctx, replyUsage)
	case "dump":
		target, _ := cutNext(rest)
		if target == "" {
			return cmdCtx.Reply(ctx, replyUsage)
		}
		return c.dump(ctx, cmdCtx, target)
	case "role":
		role := strings.TrimSpace(rest)
		if role == "" {
			return cmdCtx.Reply(ctx, replyUsage)
		}
		return c.role(ctx, cmdCtx, role)
	default:
		return c.mutate(ctx, cmdCtx, name, rest)
	}
}

func (c *ManageCustomCommand) mutate(ctx context.Context, cmdCtx *Context, name, response string) error {
	if c.isReserved != nil && c.isReserved(name) {
		return cmdCtx.Reply(ctx, fmt.Sprintf("Command %s is reserved by a builtin command.", name))
	}

	msg := cmdCtx.Message
	inv := domain.Invocation{
		ID:          c.newID(),
		CommunityID: msg.Community(),
		Invoker:     msg.Invoker(),
		Name:        name,
		Request:     domain.NewRequest(response),
		At:          msg.ReceivedAt,
	}

	result, err := c.manager.Apply(ctx, inv)
	if err != nil {
		return cmdCtx.Reply(ctx, c.replyForError(inv, err))
	}
	return cmdCtx.Reply(ctx, FormatMutation(name, result))
}

func (c *ManageCustomCommand) dump(ctx context.Context, cmdCtx *Context, name string) error {
	cmd, ok, err := c.manager.Dump(ctx, cmdCtx.Message.Community(), name)
	if err != nil {
		log.Error().Err(err).Str("community", string(cmdCtx.Message.Community())).Msg("command dump failed")
		return cmdCtx.Reply(ctx, "Something went wrong, try again later.")
	}
	return cmdCtx.Reply(ctx, FormatDump(name, cmd, ok))
}

func (c *ManageCustomCommand) role(ctx context.Context, cmdCtx *Context, role string) error {
	msg := cmdCtx.Message
	_, err := c.manager.SetMinimumRole(ctx, msg.Community(), msg.Invoker(), domain.CategoryCommandManagement, role)
	switch {
	case err == nil:
		return cmdCtx.Reply(ctx, fmt.Sprintf("Set %s as the minimum role to create custom commands.", role))
	case errors.Is(err, domain.ErrInsufficientPrivilege):
		return cmdCtx.Reply(ctx, replyOwnerOnly)
	case errors.Is(err, domain.ErrUnknownRole):
		return cmdCtx.Reply(ctx, fmt.Sprintf("Unknown role %s.", role))
	default:
		log.Error().Err(err).Str("community", string(msg.Community())).Msg("command role failed")
		return cmdCtx.Reply(ctx, replyRoleFailure)
	}
}

func (c *ManageCustomCommand) replyForError(inv domain.Invocation, err error) string {
	var privErr *PrivilegeError
	switch {
	case errors.As(err, &privErr):
		return fmt.Sprintf("You need at least the %s role to manage custom commands.", privErr.Required)
	case errors.Is(err, domain.ErrRateLimitExceeded):
		return replyThrottled
	default:
		// persistence failures are logged by the manager; anything else is a fault here
		if !errors.Is(err, domain.ErrPersistenceFailure) && !errors.Is(err, domain.ErrPersistenceTimeout) {
			log.Error().Err(err).Str("invocation", inv.ID).Str("community", string(inv.CommunityID)).
				Str("command", inv.Name).Msg("custom command mutation failed")
		}
		return replyFailure
	}
}

// FormatMutation renders the reply for a successful Apply.
func FormatMutation(name string, result MutationResult) string {
	switch result.Action {
	case domain.ActionMissing:
		return fmt.Sprintf("Command %s does not exist and thus cannot be deleted.", name)
	case domain.ActionDeleted:
		return fmt.Sprintf("Custom command %s has been deleted.", name)
	default:
		return fmt.Sprintf("Command %s %s with response %s.", name, result.Action, result.Command.Response)
	}
}

func FormatDump(name string, cmd *domain.CustomCommand, ok bool) string {
	if !ok || cmd == nil {
		return fmt.Sprintf("No custom command named %s", name)
	}
	return fmt.Sprintf("%s: %s", cmd.Name, cmd.Response)
}

func cutNext(input string) (token string, rest string) {
	input = strings.TrimSpace(input)
	if input == "" {
		return "", ""
	}
	idx := strings.IndexFunc(input, unicode.IsSpace)
	if idx < 0 {
		return input, ""
	}
	return input[:idx], strings.TrimSpace(input[idx:])
}
