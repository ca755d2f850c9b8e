// Package kickadapter reads Kick chat over the pusher websocket and posts
// replies through the public API.
package kickadapter

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	kicksdk "github.com/glichtv/kick-sdk"
	kickchatwrapper "github.com/johanvandegriff/kick-chat-wrapper"
	"github.com/rs/zerolog/log"

	"macroBot/internal/domain"
)

var ErrNotStarted = errors.New("kick: client not started")

type Config struct {
	AccessToken string

	BroadcasterUserID int

	// ChatroomID differs from the user id, see "chatroom.id" in
	// https://kick.com/api/v2/channels/{slug}.
	ChatroomID int
}

type MessageHandler func(ctx context.Context, msg domain.Message) error

type Adapter struct {
	cfg Config
	now func() time.Time

	mu      sync.RWMutex
	handler MessageHandler
	sdk     *kicksdk.Client
	ws      *kickchatwrapper.Client
}

func NewAdapter(cfg Config) *Adapter {
	return &Adapter{cfg: cfg, now: time.Now}
}

func (a *Adapter) SetHandler(h MessageHandler) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.handler = h
}

// ChannelID is the community channel of this adapter.
func (a *Adapter) ChannelID() string {
	return strconv.Itoa(a.cfg.ChatroomID)
}

// Start joins the chatroom and blocks until ctx ends.
func (a *Adapter) Start(ctx context.Context) error {
	if a.cfg.AccessToken == "" {
		return errors.New("kick: access token missing")
	}
	if a.cfg.ChatroomID == 0 {
		return errors.New("kick: chatroom id missing")
	}
	if a.cfg.BroadcasterUserID == 0 {
		return errors.New("kick: broadcaster user id missing")
	}

	sdkClient := kicksdk.NewClient(
		kicksdk.WithAccessTokens(kicksdk.AccessTokens{
			UserAccessToken: a.cfg.AccessToken,
		}),
	)

	wsClient, err := kickchatwrapper.NewClient()
	if err != nil {
		return fmt.Errorf("kick: ws client: %w", err)
	}

	if err := wsClient.JoinChannelByID(a.cfg.ChatroomID); err != nil {
		wsClient.Close()
		return fmt.Errorf("kick: JoinChannelByID: %w", err)
	}

	msgChan := wsClient.ListenForMessages()

	a.mu.Lock()
	a.sdk = sdkClient
	a.ws = wsClient
	a.mu.Unlock()

	log.Info().
		Int("chatroom_id", a.cfg.ChatroomID).
		Int("broadcaster_user_id", a.cfg.BroadcasterUserID).
		Msg("kick: connected")

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			select {
			case m, ok := <-msgChan:
				if !ok {
					log.Warn().Msg("kick: message channel closed")
					return
				}
				a.dispatch(ctx, m)
			case <-ctx.Done():
				return
			}
		}
	}()

	<-ctx.Done()

	a.mu.Lock()
	if a.ws != nil {
		a.ws.Close()
		a.ws = nil
	}
	a.sdk = nil
	a.mu.Unlock()
	<-done

	return ctx.Err()
}

func (a *Adapter) dispatch(ctx context.Context, m kickchatwrapper.ChatMessage) {
	a.mu.RLock()
	handler := a.handler
	a.mu.RUnlock()
	if handler == nil {
		return
	}

	badges := make([]string, 0, len(m.Sender.Identity.Badges))
	for _, b := range m.Sender.Identity.Badges {
		badges = append(badges, b.Type)
	}

	msg := toDomainMessage(chatLine{
		ChatroomID: m.ChatroomID,
		SenderID:   m.Sender.ID,
		Username:   m.Sender.Username,
		Content:    m.Content,
		Badges:     badges,
	}, a.cfg.BroadcasterUserID, a.now())

	if err := handler(ctx, msg); err != nil {
		log.Error().Err(err).Str("channel", msg.ChannelID).Msg("kick: handler failed")
	}
}

func (a *Adapter) SendMessage(ctx context.Context, platform domain.Platform, _ string, text string) error {
	if platform != domain.PlatformKick {
		return fmt.Errorf("kick: unsupported platform %s", platform)
	}

	a.mu.RLock()
	client := a.sdk
	a.mu.RUnlock()

	if client == nil {
		return ErrNotStarted
	}
	if text == "" {
		return nil
	}

	resp, err := client.Chat().PostMessage(ctx, kicksdk.PostChatMessageInput{
		BroadcasterUserID: a.cfg.BroadcasterUserID,
		Content:           text,
		PosterType:        kicksdk.MessagePosterUser,
	})
	if err != nil {
		return fmt.Errorf("kick: post chat message: %w", err)
	}

	if !resp.Payload.IsSent {
		meta := resp.ResponseMetadata
		log.Warn().
			Int("status", meta.StatusCode).
			Str("kick_message", meta.KickMessage).
			Str("kick_error", meta.KickError).
			Str("description", meta.KickErrorDescription).
			Msg("kick: message rejected")
		return fmt.Errorf("kick: message rejected by the API (status %d)", meta.StatusCode)
	}

	log.Debug().Str("message_id", resp.Payload.MessageID).Msg("kick: message sent")
	return nil
}

type chatLine struct {
	ChatroomID int
	SenderID   int
	Username   string
	Content    string
	Badges     []string
}

func toDomainMessage(cl chatLine, broadcasterUserID int, at time.Time) domain.Message {
	isOwner := broadcasterUserID != 0 && cl.SenderID == broadcasterUserID

	var isMod, isVip bool
	for _, b := range cl.Badges {
		switch strings.ToLower(strings.TrimSpace(b)) {
		case "broadcaster":
			isOwner = true
		case "moderator":
			isMod = true
		case "vip":
			isVip = true
		}
	}

	return domain.Message{
		Platform:  domain.PlatformKick,
		ChannelID: strconv.Itoa(cl.ChatroomID),
		UserID:    strconv.Itoa(cl.SenderID),
		Username:  cl.Username,
		Text:      cl.Content,

		IsPlatformOwner: isOwner,
		IsPlatformMod:   isMod,
		IsPlatformVip:   isVip,

		ReceivedAt: at,
	}
}

var _ domain.OutgoingMessagePort = (*Adapter)(nil)
