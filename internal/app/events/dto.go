package events

import (
	"time"

	"macroBot/internal/domain"
)

// ChatMessageDTO is the chat payload sent to bus subscribers and web clients.
type ChatMessageDTO struct {
	Platform        string `json:"platform"`
	ChannelID       string `json:"channel_id"`
	UserID          string `json:"user_id"`
	Username        string `json:"username"`
	Text            string `json:"text"`
	IsPrivate       bool   `json:"is_private"`
	IsPlatformOwner bool   `json:"is_platform_owner"`
	IsPlatformAdmin bool   `json:"is_platform_admin"`
	IsPlatformMod   bool   `json:"is_platform_mod"`
	IsPlatformVip   bool   `json:"is_platform_vip"`
	Timestamp       string `json:"timestamp"`
}

func NewChatMessageDTO(msg domain.Message) ChatMessageDTO {
	at := msg.ReceivedAt
	if at.IsZero() {
		at = time.Now()
	}
	return ChatMessageDTO{
		Platform:        string(msg.Platform),
		ChannelID:       msg.ChannelID,
		UserID:          msg.UserID,
		Username:        msg.Username,
		Text:            msg.Text,
		IsPrivate:       msg.IsPrivate,
		IsPlatformOwner: msg.IsPlatformOwner,
		IsPlatformAdmin: msg.IsPlatformAdmin,
		IsPlatformMod:   msg.IsPlatformMod,
		IsPlatformVip:   msg.IsPlatformVip,
		Timestamp:       at.UTC().Format(time.RFC3339Nano),
	}
}

// CommandMutationDTO describes one committed custom command change.
type CommandMutationDTO struct {
	InvocationID string `json:"invocation_id"`
	Community    string `json:"community"`
	Name         string `json:"name"`
	Action       string `json:"action"`
	Response     string `json:"response,omitempty"`
	Actor        string `json:"actor"`
	Timestamp    string `json:"timestamp"`
}

func NewCommandMutationDTO(event domain.CommandMutation) CommandMutationDTO {
	return CommandMutationDTO{
		InvocationID: event.InvocationID,
		Community:    string(event.CommunityID),
		Name:         event.Name,
		Action:       string(event.Action),
		Response:     event.Response,
		Actor:        event.Actor,
		Timestamp:    event.At.UTC().Format(time.RFC3339Nano),
	}
}
