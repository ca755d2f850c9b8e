package commands

import (
	"context"
	"strings"
	"unicode"

	"macroBot/internal/domain"
)

type Router struct {
	prefix   string
	cmdIndex map[string]Command
	custom   *CustomCommandManager
}

func NewRouter(prefix string) *Router {
	if prefix == "" {
		prefix = "!"
	}
	return &Router{
		prefix:   prefix,
		cmdIndex: make(map[string]Command),
	}
}

func (r *Router) Register(cmd Command) {
	r.cmdIndex[strings.ToLower(cmd.Name())] = cmd
	for _, alias := range cmd.Aliases() {
		r.cmdIndex[strings.ToLower(alias)] = cmd
	}
}

// SetCustomManager enables custom commands as a fallback for names no
// builtin claims.
func (r *Router) SetCustomManager(m *CustomCommandManager) {
	r.custom = m
}

// IsReserved reports whether a builtin owns the name.
func (r *Router) IsReserved(name string) bool {
	_, ok := r.cmdIndex[strings.ToLower(name)]
	return ok
}

func (r *Router) Handle(ctx context.Context, msg domain.Message, out domain.OutgoingMessagePort) error {
	text := strings.TrimSpace(msg.Text)
	if text == "" {
		return nil
	}

	if !strings.HasPrefix(text, r.prefix) {
		return nil
	}

	withoutPrefix := strings.TrimPrefix(text, r.prefix)
	parts := strings.Fields(withoutPrefix)
	if len(parts) == 0 {
		return nil
	}

	trigger := parts[0]
	args := parts[1:]

	cmd, ok := r.cmdIndex[strings.ToLower(trigger)]
	if !ok {
		if r.custom == nil || msg.IsPrivate {
			return nil
		}
		_, err := r.custom.TryHandle(ctx, trigger, msg, out)
		return err
	}

	if !cmd.SupportsPlatform(msg.Platform) {
		return out.SendMessage(ctx, msg.Platform, msg.ChannelID, "This command is not available here.")
	}

	body := strings.TrimLeftFunc(withoutPrefix, unicode.IsSpace)
	body = strings.TrimLeftFunc(body[len(trigger):], unicode.IsSpace)

	ctxCmd := &Context{
		Message: msg,
		Out:     out,
		Raw:     withoutPrefix,
		Args:    args,
		Body:    body,
	}

	return cmd.Handle(ctx, ctxCmd)
}
