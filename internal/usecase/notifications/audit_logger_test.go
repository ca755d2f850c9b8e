package notifications

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"macroBot/internal/domain"
)

type countingPublisher struct{ n int }

func (c *countingPublisher) PublishMutation(context.Context, domain.CommandMutation) { c.n++ }

func TestAuditLogger_WritesMutation(t *testing.T) {
	var buf bytes.Buffer
	audit := NewAuditLoggerWith(zerolog.New(&buf))

	audit.PublishMutation(context.Background(), domain.CommandMutation{
		InvocationID: "inv-1",
		CommunityID:  "twitch:foo",
		Name:         "ping",
		Action:       domain.ActionUpdated,
		Response:     "pang",
		Actor:        "alice",
		At:           time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
	})

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "info", line["level"])
	assert.Equal(t, "twitch:foo", line["community"])
	assert.Equal(t, "ping", line["command"])
	assert.Equal(t, "updated", line["action"])
	assert.Equal(t, "alice", line["actor"])
	assert.NotContains(t, line, "response")
}

func TestAuditLogger_MissingIsDebug(t *testing.T) {
	var buf bytes.Buffer
	audit := NewAuditLoggerWith(zerolog.New(&buf).Level(zerolog.InfoLevel))

	audit.PublishMutation(context.Background(), domain.CommandMutation{Action: domain.ActionMissing})
	assert.Zero(t, buf.Len())
}

func TestFanout(t *testing.T) {
	a, b := &countingPublisher{}, &countingPublisher{}
	fan := Fanout{a, nil, b}

	fan.PublishMutation(context.Background(), domain.CommandMutation{})
	fan.PublishMutation(context.Background(), domain.CommandMutation{})

	assert.Equal(t, 2, a.n)
	assert.Equal(t, 2, b.n)
}
