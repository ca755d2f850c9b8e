// Package twitchadapter connects the bot to Twitch chat over IRC.
package twitchadapter

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/adeithe/go-twitch/irc"
	"github.com/rs/zerolog/log"

	"macroBot/internal/domain"
)

var ErrNotConnected = errors.New("twitch: connection not ready")

type Config struct {
	Username   string
	OAuthToken string
	Channels   []string
}

type MessageHandler func(ctx context.Context, msg domain.Message) error

type Adapter struct {
	cfg Config
	now func() time.Time

	mu      sync.RWMutex
	handler MessageHandler
	conn    *irc.Conn
}

func NewAdapter(cfg Config) *Adapter {
	channels := make([]string, 0, len(cfg.Channels))
	for _, ch := range cfg.Channels {
		if ch = ircChannel(ch); ch != "" {
			channels = append(channels, ch)
		}
	}
	cfg.Channels = channels
	return &Adapter{cfg: cfg, now: time.Now}
}

func (a *Adapter) SetHandler(h MessageHandler) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.handler = h
}

// Start connects, joins the configured channels and blocks until ctx ends.
func (a *Adapter) Start(ctx context.Context) error {
	if len(a.cfg.Channels) == 0 {
		return errors.New("twitch: no channels configured")
	}
	if a.cfg.Username == "" || a.cfg.OAuthToken == "" {
		return errors.New("twitch: username or oauth token missing")
	}

	conn := &irc.Conn{}
	if err := conn.SetLogin(a.cfg.Username, a.cfg.OAuthToken); err != nil {
		return fmt.Errorf("twitch: SetLogin: %w", err)
	}

	conn.OnMessage(func(cm irc.ChatMessage) {
		a.mu.RLock()
		handler := a.handler
		a.mu.RUnlock()
		if handler == nil {
			return
		}

		msg := toDomainMessage(chatLine{
			Channel:     cm.Channel,
			UserID:      cm.Sender.ID,
			DisplayName: cm.Sender.DisplayName,
			Text:        cm.Text,
			Broadcaster: cm.Sender.IsBroadcaster,
			Moderator:   cm.Sender.IsModerator,
			VIP:         cm.Sender.IsVIP,
		}, a.now())

		if err := handler(ctx, msg); err != nil {
			log.Error().Err(err).
				Str("channel", msg.ChannelID).
				Msg("twitch: handler failed")
		}
	})

	if err := conn.Connect(); err != nil {
		return fmt.Errorf("twitch: Connect: %w", err)
	}

	if err := conn.Join(a.cfg.Channels...); err != nil {
		conn.Close()
		return fmt.Errorf("twitch: Join: %w", err)
	}

	a.mu.Lock()
	a.conn = conn
	a.mu.Unlock()

	log.Info().
		Str("user", a.cfg.Username).
		Strs("channels", a.cfg.Channels).
		Msg("twitch: connected")

	<-ctx.Done()

	a.mu.Lock()
	if a.conn != nil {
		a.conn.Close()
		a.conn = nil
	}
	a.mu.Unlock()

	return ctx.Err()
}

func (a *Adapter) SendMessage(_ context.Context, platform domain.Platform, channelID, text string) error {
	if platform != domain.PlatformTwitch {
		return fmt.Errorf("twitch: unsupported platform %s", platform)
	}

	a.mu.RLock()
	conn := a.conn
	a.mu.RUnlock()

	if conn == nil || !conn.IsConnected() {
		return ErrNotConnected
	}

	channel := ircChannel(channelID)
	log.Debug().Str("channel", channel).Str("text", text).Msg("twitch: say")
	return conn.Say(channel, text)
}

// chatLine is the part of an IRC chat message the bot cares about.
type chatLine struct {
	Channel     string
	UserID      int64
	DisplayName string
	Text        string
	Broadcaster bool
	Moderator   bool
	VIP         bool
}

func toDomainMessage(cl chatLine, at time.Time) domain.Message {
	return domain.Message{
		Platform:  domain.PlatformTwitch,
		ChannelID: channelName(cl.Channel),
		UserID:    strconv.FormatInt(cl.UserID, 10),
		Username:  cl.DisplayName,
		Text:      cl.Text,

		IsPlatformOwner: cl.Broadcaster,
		IsPlatformMod:   cl.Moderator,
		IsPlatformVip:   cl.VIP,

		ReceivedAt: at,
	}
}

// channelName is the bare lowercase login, the form communities are keyed by.
func channelName(raw string) string {
	return strings.ToLower(strings.TrimPrefix(strings.TrimSpace(raw), "#"))
}

// ircChannel is the "#login" form IRC commands take.
func ircChannel(raw string) string {
	name := channelName(raw)
	if name == "" {
		return ""
	}
	return "#" + name
}

var _ domain.OutgoingMessagePort = (*Adapter)(nil)
