package domain

import "context"

type OutgoingMessagePort interface {
	SendMessage(ctx context.Context, platform Platform, channelID, text string) error
}

// MutationPublisher receives committed changes for live subscribers.
type MutationPublisher interface {
	PublishMutation(ctx context.Context, event CommandMutation)
}
