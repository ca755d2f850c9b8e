// Package handle_message
package handle_message

import (
	"context"
	"fmt"
	"runtime/debug"

	"github.com/rs/zerolog/log"

	"macroBot/internal/domain"
	"macroBot/internal/usecase/commands"
)

const replyInternalFault = "Something went wrong, try again later."

type Interactor struct {
	router *commands.Router
	out    domain.OutgoingMessagePort
}

func NewInteractor(out domain.OutgoingMessagePort, router *commands.Router) *Interactor {
	return &Interactor{
		router: router,
		out:    out,
	}
}

// Handle routes one chat message. A panic inside a command is logged and
// answered generically, it never takes the adapter loop down.
func (uc *Interactor) Handle(ctx context.Context, msg domain.Message) (err error) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().
				Str("platform", string(msg.Platform)).
				Str("channel", msg.ChannelID).
				Str("user", msg.Username).
				Str("text", msg.Text).
				Bytes("stack", debug.Stack()).
				Msgf("command panic: %v", r)
			if sendErr := uc.out.SendMessage(ctx, msg.Platform, msg.ChannelID, replyInternalFault); sendErr != nil {
				log.Warn().Err(sendErr).Msg("could not deliver fault reply")
			}
			err = fmt.Errorf("handle message: panic: %v", r)
		}
	}()

	return uc.router.Handle(ctx, msg, uc.out)
}
