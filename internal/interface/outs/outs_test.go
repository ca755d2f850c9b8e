package outs

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"macroBot/internal/domain"
)

type captureSender struct {
	channel string
	text    string
}

func (c *captureSender) SendMessage(_ context.Context, _ domain.Platform, channelID, text string) error {
	c.channel = channelID
	c.text = text
	return nil
}

func TestMultiSender_Routes(t *testing.T) {
	twitch := &captureSender{}
	kick := &captureSender{}

	m := NewMultiSender()
	m.Register(domain.PlatformTwitch, twitch)
	m.Register(domain.PlatformKick, kick)
	m.Register(domain.PlatformWeb, nil)

	require.NoError(t, m.SendMessage(context.Background(), domain.PlatformKick, "123", "pong"))
	assert.Equal(t, "123", kick.channel)
	assert.Equal(t, "pong", kick.text)
	assert.Empty(t, twitch.text)

	assert.Equal(t, []domain.Platform{domain.PlatformKick, domain.PlatformTwitch}, m.Platforms())
}

func TestMultiSender_MissingSender(t *testing.T) {
	m := NewMultiSender()
	m.Register(domain.PlatformTwitch, &captureSender{})
	m.Unregister(domain.PlatformTwitch)

	err := m.SendMessage(context.Background(), domain.PlatformTwitch, "#foo", "pong")
	require.ErrorIs(t, err, ErrNoSender)

	var nilSender *MultiSender
	require.ErrorIs(t, nilSender.SendMessage(context.Background(), domain.PlatformTwitch, "#foo", "pong"), ErrNoSender)
	assert.Nil(t, nilSender.Platforms())
}
