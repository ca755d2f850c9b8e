package handle_message

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"macroBot/internal/domain"
	"macroBot/internal/usecase/commands"
)

type panicCommand struct{}

func (panicCommand) Name() string                          { return "boom" }
func (panicCommand) Aliases() []string                     { return nil }
func (panicCommand) SupportsPlatform(domain.Platform) bool { return true }
func (panicCommand) Handle(context.Context, *commands.Context) error {
	panic("kaboom")
}

type captureOut struct {
	texts []string
}

func (c *captureOut) SendMessage(_ context.Context, _ domain.Platform, _, text string) error {
	c.texts = append(c.texts, text)
	return nil
}

func TestInteractor_RecoversFromPanic(t *testing.T) {
	router := commands.NewRouter("!")
	router.Register(panicCommand{})
	out := &captureOut{}

	uc := NewInteractor(out, router)
	err := uc.Handle(context.Background(), domain.Message{Platform: domain.PlatformTwitch, ChannelID: "#foo", Text: "!boom"})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "kaboom")
	assert.Equal(t, []string{replyInternalFault}, out.texts)
}

func TestInteractor_RoutesCustomCommands(t *testing.T) {
	manager := commands.NewCustomCommandManager(commands.ManagerConfig{})
	router := commands.NewRouter("!")
	router.Register(commands.NewManageCustomCommand(manager))
	router.SetCustomManager(manager)
	out := &captureOut{}

	uc := NewInteractor(out, router)
	msg := domain.Message{Platform: domain.PlatformKick, ChannelID: "42", UserID: "7", Username: "bob"}

	msg.Text = "!command hi hello there"
	require.NoError(t, uc.Handle(context.Background(), msg))
	msg.Text = "!hi"
	require.NoError(t, uc.Handle(context.Background(), msg))

	assert.Equal(t, []string{"Command hi created with response hello there.", "hello there"}, out.texts)
}
