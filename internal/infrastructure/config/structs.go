package config

import (
	"strings"
	"time"

	"macroBot/internal/infrastructure/logger"
)

// Config is the whole bot configuration, read from the environment.
type Config struct {
	BotPrefix    string `env:"BOT_PREFIX"    envDefault:"!"                validate:"required,max=4"`
	DatabasePath string `env:"DATABASE_PATH" envDefault:"data/macrobot.db" validate:"required"`

	ChatWSAddr     string `env:"CHAT_WS_ADDR"     envDefault:":8080" validate:"required"`
	WSTrustClients bool   `env:"WS_TRUST_CLIENTS" envDefault:"false"`

	CommitTimeout time.Duration `env:"COMMIT_TIMEOUT" envDefault:"5s" validate:"gt=0"`

	RateLimit            RateLimit     `envPrefix:"RATE_LIMIT_"`
	LimiterPruneSchedule string        `env:"LIMITER_PRUNE_SCHEDULE" envDefault:"@every 10m" validate:"required"`
	LimiterIdle          time.Duration `env:"LIMITER_IDLE"           envDefault:"10m"        validate:"gte=0"`

	Log    logger.Log `envPrefix:"LOG_"`
	Twitch Twitch     `envPrefix:"TWITCH_"`
	Kick   Kick       `envPrefix:"KICK_"`
}

// RateLimit bounds custom command mutations to Count per Window. A zero
// Count disables throttling.
type RateLimit struct {
	Count      int           `env:"COUNT"       envDefault:"1"  validate:"gte=0"`
	Window     time.Duration `env:"WINDOW"      envDefault:"1s" validate:"gte=0"`
	PerInvoker bool          `env:"PER_INVOKER" envDefault:"false"`
}

type Twitch struct {
	Username string   `env:"BOT_USERNAME"`
	Token    string   `env:"BOT_ACCESS_TOKEN"`
	Channels []string `env:"BOT_CHANNELS" envSeparator:","`
}

// Enabled reports whether the Twitch adapter can log in.
func (t Twitch) Enabled() bool {
	return strings.TrimSpace(t.Username) != "" && strings.TrimSpace(t.Token) != ""
}

// OAuthToken returns the token in the "oauth:" form the IRC login expects.
func (t Twitch) OAuthToken() string {
	token := strings.TrimSpace(t.Token)
	if token == "" || strings.HasPrefix(token, "oauth:") {
		return token
	}
	return "oauth:" + token
}

// JoinChannels defaults to the bot's own channel.
func (t Twitch) JoinChannels() []string {
	var out []string
	for _, ch := range t.Channels {
		ch = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(ch), "#"))
		if ch != "" {
			out = append(out, strings.ToLower(ch))
		}
	}
	if len(out) == 0 && strings.TrimSpace(t.Username) != "" {
		out = []string{strings.ToLower(strings.TrimSpace(t.Username))}
	}
	return out
}

type Kick struct {
	AccessToken       string `env:"ACCESS_TOKEN"`
	BroadcasterUserID int    `env:"BROADCASTER_USER_ID" validate:"gte=0"`
	ChatroomID        int    `env:"CHATROOM_ID"         validate:"gte=0"`
}

// Enabled reports whether the Kick adapter has everything it needs.
func (k Kick) Enabled() bool {
	return strings.TrimSpace(k.AccessToken) != "" && k.BroadcasterUserID > 0 && k.ChatroomID > 0
}
