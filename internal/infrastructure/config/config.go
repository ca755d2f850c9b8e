// Package config reads the bot configuration from .env files and the environment.
package config

import (
	"os"
	"strings"

	"github.com/caarlos0/env/v11"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/robfig/cron/v3"
)

// Load reads the given .env files (or ./.env when none are given) and then
// parses the environment. Variables already set win over file values.
func Load(files ...string) (*Config, error) {
	if len(files) == 0 {
		if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
			return nil, errors.Wrap(err, "failed to read .env")
		}
	} else if err := godotenv.Load(files...); err != nil {
		return nil, errors.Wrapf(err, "failed to read %s", strings.Join(files, ", "))
	}

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, errors.Wrap(err, "failed to parse environment")
	}

	if err := validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// validate checks the struct tags first, then the rules that span fields.
func validate(c *Config) error {
	if err := validator.New().Struct(c); err != nil {
		return errors.Wrap(ErrInvalidConfig, err.Error())
	}

	if c.RateLimit.Count > 0 && c.RateLimit.Window <= 0 {
		return errors.Wrap(ErrRateLimitWindow, ErrInvalidConfig.Error())
	}

	if _, err := cron.ParseStandard(c.LimiterPruneSchedule); err != nil {
		return errors.Wrap(ErrInvalidPruneSchedule, err.Error())
	}

	hasUser := strings.TrimSpace(c.Twitch.Username) != ""
	hasToken := strings.TrimSpace(c.Twitch.Token) != ""
	if hasUser != hasToken {
		return errors.Wrap(ErrTwitchIncomplete, ErrInvalidConfig.Error())
	}

	if strings.TrimSpace(c.Kick.AccessToken) != "" && !c.Kick.Enabled() {
		return errors.Wrap(ErrKickIncomplete, ErrInvalidConfig.Error())
	}

	return nil
}
