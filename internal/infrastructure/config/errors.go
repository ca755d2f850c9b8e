package config

import "errors"

var (
	// ErrInvalidConfig wraps every validation failure.
	ErrInvalidConfig = errors.New("invalid config")

	// ErrInvalidPruneSchedule is returned when LIMITER_PRUNE_SCHEDULE is not a cron spec.
	ErrInvalidPruneSchedule = errors.New("LIMITER_PRUNE_SCHEDULE is not a valid cron schedule")

	// ErrRateLimitWindow is returned when a count is set without a window.
	ErrRateLimitWindow = errors.New("RATE_LIMIT_WINDOW must be positive when RATE_LIMIT_COUNT is set")

	// ErrTwitchIncomplete is returned when only one of the Twitch login values is set.
	ErrTwitchIncomplete = errors.New("TWITCH_BOT_USERNAME and TWITCH_BOT_ACCESS_TOKEN must be set together")

	// ErrKickIncomplete is returned when the Kick token is set without its ids.
	ErrKickIncomplete = errors.New("KICK_ACCESS_TOKEN needs KICK_BROADCASTER_USER_ID and KICK_CHATROOM_ID")
)
