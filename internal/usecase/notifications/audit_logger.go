package notifications

import (
	"context"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"macroBot/internal/domain"
)

// AuditLogger writes one structured line per committed custom command change.
type AuditLogger struct {
	logger zerolog.Logger
}

func NewAuditLogger() *AuditLogger {
	return &AuditLogger{
		logger: log.With().Str("component", "custom-commands-audit").Logger(),
	}
}

// NewAuditLoggerWith is NewAuditLogger with an explicit logger, mostly for tests.
func NewAuditLoggerWith(logger zerolog.Logger) *AuditLogger {
	return &AuditLogger{logger: logger}
}

func (l *AuditLogger) PublishMutation(_ context.Context, event domain.CommandMutation) {
	e := l.logger.Info()
	if event.Action == domain.ActionMissing {
		e = l.logger.Debug()
	}
	e.Str("invocation_id", event.InvocationID).
		Str("community", string(event.CommunityID)).
		Str("command", event.Name).
		Str("action", string(event.Action)).
		Str("actor", event.Actor).
		Time("at", event.At).
		Msg("custom command changed")
}

// Fanout hands every mutation to each publisher in order.
type Fanout []domain.MutationPublisher

func (f Fanout) PublishMutation(ctx context.Context, event domain.CommandMutation) {
	for _, p := range f {
		if p != nil {
			p.PublishMutation(ctx, event)
		}
	}
}

var (
	_ domain.MutationPublisher = (*AuditLogger)(nil)
	_ domain.MutationPublisher = Fanout(nil)
)
