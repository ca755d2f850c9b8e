package commands

import (
	"context"
	"sync"
	"time"

	"macroBot/internal/domain"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type fakeGateway struct {
	mu      sync.Mutex
	err     error
	block   bool
	commits []domain.ChangeSet
}

func (g *fakeGateway) Commit(ctx context.Context, changes domain.ChangeSet) error {
	g.mu.Lock()
	block, failWith := g.block, g.err
	g.mu.Unlock()

	if block {
		<-ctx.Done()
		return ctx.Err()
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if failWith != nil {
		return failWith
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	g.commits = append(g.commits, changes)
	return nil
}

func (g *fakeGateway) fail(err error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.err = err
}

func (g *fakeGateway) hang() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.block = true
}

func (g *fakeGateway) Commits() []domain.ChangeSet {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]domain.ChangeSet(nil), g.commits...)
}

type sentMessage struct {
	Platform  domain.Platform
	ChannelID string
	Text      string
}

type recordingOut struct {
	mu   sync.Mutex
	sent []sentMessage
}

func (o *recordingOut) SendMessage(_ context.Context, platform domain.Platform, channelID, text string) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.sent = append(o.sent, sentMessage{Platform: platform, ChannelID: channelID, Text: text})
	return nil
}

func (o *recordingOut) Texts() []string {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]string, 0, len(o.sent))
	for _, m := range o.sent {
		out = append(out, m.Text)
	}
	return out
}

func (o *recordingOut) Last() string {
	o.mu.Lock()
	defer o.mu.Unlock()
	if len(o.sent) == 0 {
		return ""
	}
	return o.sent[len(o.sent)-1].Text
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []domain.CommandMutation
}

func (p *recordingPublisher) PublishMutation(_ context.Context, event domain.CommandMutation) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
}

func (p *recordingPublisher) Events() []domain.CommandMutation {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]domain.CommandMutation(nil), p.events...)
}

type recordingRecorder struct {
	mu     sync.Mutex
	counts map[string]int
}

func (r *recordingRecorder) RecordMutation(action domain.MutationAction, outcome string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.counts == nil {
		r.counts = make(map[string]int)
	}
	r.counts[string(action)+"/"+outcome]++
}

func (r *recordingRecorder) Count(action domain.MutationAction, outcome string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.counts[string(action)+"/"+outcome]
}

type memoryRepo struct {
	mu          sync.Mutex
	communities map[domain.CommunityID]*domain.Community
	commands    map[domain.CommunityID][]*domain.CustomCommand
	gets        int
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{
		communities: make(map[domain.CommunityID]*domain.Community),
		commands:    make(map[domain.CommunityID][]*domain.CustomCommand),
	}
}

func (r *memoryRepo) GetCommunity(_ context.Context, id domain.CommunityID) (*domain.Community, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.gets++
	return r.communities[id].Clone(), nil
}

func (r *memoryRepo) ListCustomCommands(_ context.Context, id domain.CommunityID) ([]*domain.CustomCommand, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.commands[id], nil
}

const (
	testCommunity  = domain.CommunityID("twitch:foo")
	otherCommunity = domain.CommunityID("twitch:bar")
)

var (
	viewer = domain.Invoker{UserID: "u-viewer", Username: "viewer", Tier: domain.TierEveryone}
	mod    = domain.Invoker{UserID: "u-mod", Username: "mod", Tier: domain.TierModerator}
	owner  = domain.Invoker{UserID: "u-owner", Username: "owner", Tier: domain.TierOwner, IsOwner: true}
)

func invocation(community domain.CommunityID, who domain.Invoker, name, response string) domain.Invocation {
	return domain.Invocation{
		ID:          "inv-" + name,
		CommunityID: community,
		Invoker:     who,
		Name:        name,
		Request:     domain.NewRequest(response),
	}
}
