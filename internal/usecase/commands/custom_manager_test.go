package commands

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"macroBot/internal/domain"
)

type managerFixture struct {
	manager   *CustomCommandManager
	gateway   *fakeGateway
	publisher *recordingPublisher
	recorder  *recordingRecorder
	clock     *fakeClock
}

func newManagerFixture(t *testing.T, limit RateLimitConfig) *managerFixture {
	t.Helper()

	clock := newFakeClock()
	f := &managerFixture{
		gateway:   &fakeGateway{},
		publisher: &recordingPublisher{},
		recorder:  &recordingRecorder{},
		clock:     clock,
	}
	f.manager = NewCustomCommandManager(ManagerConfig{
		Communities:   NewCommunities(nil, nil, clock.Now),
		Gateway:       f.gateway,
		Limiter:       NewRateLimiter(limit, clock.Now),
		Publisher:     f.publisher,
		Recorder:      f.recorder,
		CommitTimeout: 50 * time.Millisecond,
		Now:           clock.Now,
	})
	return f
}

func (f *managerFixture) response(t *testing.T, community domain.CommunityID, name string) (string, bool) {
	t.Helper()
	cmd, ok, err := f.manager.Dump(context.Background(), community, name)
	require.NoError(t, err)
	if !ok {
		return "", false
	}
	return cmd.Response, true
}

func TestManager_CreateUpdateDeleteLifecycle(t *testing.T) {
	f := newManagerFixture(t, RateLimitConfig{})
	ctx := context.Background()

	res, err := f.manager.Apply(ctx, invocation(testCommunity, viewer, "ping", "pong"))
	require.NoError(t, err)
	assert.Equal(t, domain.ActionCreated, res.Action)
	assert.Equal(t, "Command ping created with response pong.", FormatMutation("ping", res))

	res, err = f.manager.Apply(ctx, invocation(testCommunity, viewer, "ping", "pang"))
	require.NoError(t, err)
	assert.Equal(t, domain.ActionUpdated, res.Action)
	assert.Equal(t, "Command ping updated with response pang.", FormatMutation("ping", res))

	got, ok := f.response(t, testCommunity, "ping")
	require.True(t, ok)
	assert.Equal(t, "pang", got)

	res, err = f.manager.Apply(ctx, invocation(testCommunity, viewer, "ping", ""))
	require.NoError(t, err)
	assert.Equal(t, domain.ActionDeleted, res.Action)
	assert.Equal(t, "Custom command ping has been deleted.", FormatMutation("ping", res))

	res, err = f.manager.Apply(ctx, invocation(testCommunity, viewer, "ping", ""))
	require.NoError(t, err)
	assert.Equal(t, domain.ActionMissing, res.Action)
	assert.Equal(t, "Command ping does not exist and thus cannot be deleted.", FormatMutation("ping", res))

	_, ok = f.response(t, testCommunity, "ping")
	assert.False(t, ok)

	assert.Len(t, f.gateway.Commits(), 3)
	assert.Equal(t, 1, f.recorder.Count(domain.ActionMissing, OutcomeNoop))

	events := f.publisher.Events()
	require.Len(t, events, 3)
	assert.Equal(t, domain.ActionCreated, events[0].Action)
	assert.Equal(t, domain.ActionUpdated, events[1].Action)
	assert.Equal(t, domain.ActionDeleted, events[2].Action)
	assert.Equal(t, "viewer", events[0].Actor)
}

func TestManager_FirstCommitCarriesCommunity(t *testing.T) {
	f := newManagerFixture(t, RateLimitConfig{})
	ctx := context.Background()

	_, err := f.manager.Apply(ctx, invocation(testCommunity, viewer, "ping", "pong"))
	require.NoError(t, err)
	_, err = f.manager.Apply(ctx, invocation(testCommunity, viewer, "hello", "world"))
	require.NoError(t, err)

	commits := f.gateway.Commits()
	require.Len(t, commits, 2)
	require.Len(t, commits[0].Communities, 1)
	assert.Equal(t, testCommunity, commits[0].Communities[0].ID)
	require.Len(t, commits[0].UpsertCommands, 1)
	assert.Empty(t, commits[1].Communities)
	require.Len(t, commits[1].UpsertCommands, 1)
	assert.Equal(t, "hello", commits[1].UpsertCommands[0].Name)
}

func TestManager_OwnerIDRecordedOnFirstOwnerMutation(t *testing.T) {
	f := newManagerFixture(t, RateLimitConfig{})
	ctx := context.Background()

	_, err := f.manager.Apply(ctx, invocation(testCommunity, viewer, "ping", "pong"))
	require.NoError(t, err)
	_, err = f.manager.Apply(ctx, invocation(testCommunity, owner, "hello", "world"))
	require.NoError(t, err)

	commits := f.gateway.Commits()
	require.Len(t, commits, 2)
	require.Len(t, commits[1].Communities, 1)
	assert.Equal(t, "u-owner", commits[1].Communities[0].OwnerID)
}

func TestManager_CommunitiesAreIsolated(t *testing.T) {
	f := newManagerFixture(t, RateLimitConfig{})
	ctx := context.Background()

	_, err := f.manager.Apply(ctx, invocation(testCommunity, viewer, "ping", "pong"))
	require.NoError(t, err)
	res, err := f.manager.Apply(ctx, invocation(otherCommunity, viewer, "ping", "pang"))
	require.NoError(t, err)
	assert.Equal(t, domain.ActionCreated, res.Action)

	got, _ := f.response(t, testCommunity, "ping")
	assert.Equal(t, "pong", got)
	got, _ = f.response(t, otherCommunity, "ping")
	assert.Equal(t, "pang", got)
}

func TestManager_DeniedInvokerMutatesNothing(t *testing.T) {
	f := newManagerFixture(t, RateLimitConfig{Limit: 1, Window: time.Minute})
	ctx := context.Background()

	_, err := f.manager.SetMinimumRole(ctx, testCommunity, owner, domain.CategoryCommandManagement, "moderator")
	require.NoError(t, err)
	commitsBefore := len(f.gateway.Commits())

	_, err = f.manager.Apply(ctx, invocation(testCommunity, viewer, "ping", "pong"))
	require.ErrorIs(t, err, domain.ErrInsufficientPrivilege)

	var privErr *PrivilegeError
	require.True(t, errors.As(err, &privErr))
	assert.Equal(t, domain.TierModerator, privErr.Required)

	_, ok := f.response(t, testCommunity, "ping")
	assert.False(t, ok)
	assert.Len(t, f.gateway.Commits(), commitsBefore)
	assert.Empty(t, f.publisher.Events())
	assert.Equal(t, 1, f.recorder.Count(domain.ActionCreated, OutcomeDenied))

	// the denied attempt did not spend the window
	res, err := f.manager.Apply(ctx, invocation(testCommunity, mod, "ping", "pong"))
	require.NoError(t, err)
	assert.Equal(t, domain.ActionCreated, res.Action)
}

func TestManager_DeniedDeleteKeepsCommand(t *testing.T) {
	f := newManagerFixture(t, RateLimitConfig{})
	ctx := context.Background()

	_, err := f.manager.Apply(ctx, invocation(testCommunity, mod, "ping", "pong"))
	require.NoError(t, err)
	_, err = f.manager.SetMinimumRole(ctx, testCommunity, owner, domain.CategoryCommandManagement, "mod")
	require.NoError(t, err)

	_, err = f.manager.Apply(ctx, invocation(testCommunity, viewer, "ping", ""))
	require.ErrorIs(t, err, domain.ErrInsufficientPrivilege)

	got, ok := f.response(t, testCommunity, "ping")
	require.True(t, ok)
	assert.Equal(t, "pong", got)
}

func TestManager_OwnerBypassesThreshold(t *testing.T) {
	f := newManagerFixture(t, RateLimitConfig{})
	ctx := context.Background()

	_, err := f.manager.SetMinimumRole(ctx, testCommunity, owner, domain.CategoryCommandManagement, "owner")
	require.NoError(t, err)

	_, err = f.manager.Apply(ctx, invocation(testCommunity, mod, "ping", "pong"))
	require.ErrorIs(t, err, domain.ErrInsufficientPrivilege)

	res, err := f.manager.Apply(ctx, invocation(testCommunity, owner, "ping", "pong"))
	require.NoError(t, err)
	assert.Equal(t, domain.ActionCreated, res.Action)
}

func TestManager_RateLimit(t *testing.T) {
	f := newManagerFixture(t, RateLimitConfig{Limit: 1, Window: time.Minute})
	ctx := context.Background()

	// a missing delete is free
	res, err := f.manager.Apply(ctx, invocation(testCommunity, viewer, "nope", ""))
	require.NoError(t, err)
	assert.Equal(t, domain.ActionMissing, res.Action)

	_, err = f.manager.Apply(ctx, invocation(testCommunity, viewer, "ping", "pong"))
	require.NoError(t, err)

	_, err = f.manager.Apply(ctx, invocation(testCommunity, mod, "hello", "world"))
	require.ErrorIs(t, err, domain.ErrRateLimitExceeded)
	_, ok := f.response(t, testCommunity, "hello")
	assert.False(t, ok)
	assert.Equal(t, 1, f.recorder.Count(domain.ActionCreated, OutcomeThrottled))

	// another community has its own window
	_, err = f.manager.Apply(ctx, invocation(otherCommunity, viewer, "hello", "world"))
	require.NoError(t, err)

	f.clock.Advance(time.Minute)
	_, err = f.manager.Apply(ctx, invocation(testCommunity, mod, "hello", "world"))
	require.NoError(t, err)
}

func TestManager_CommitFailureRollsBack(t *testing.T) {
	f := newManagerFixture(t, RateLimitConfig{})
	ctx := context.Background()

	_, err := f.manager.Apply(ctx, invocation(testCommunity, viewer, "ping", "pong"))
	require.NoError(t, err)

	f.gateway.fail(errors.New("disk full"))

	_, err = f.manager.Apply(ctx, invocation(testCommunity, viewer, "fresh", "text"))
	require.ErrorIs(t, err, domain.ErrPersistenceFailure)
	_, ok := f.response(t, testCommunity, "fresh")
	assert.False(t, ok, "failed create leaves no entry")

	_, err = f.manager.Apply(ctx, invocation(testCommunity, viewer, "ping", "pang"))
	require.ErrorIs(t, err, domain.ErrPersistenceFailure)
	got, _ := f.response(t, testCommunity, "ping")
	assert.Equal(t, "pong", got, "failed update keeps the old response")

	_, err = f.manager.Apply(ctx, invocation(testCommunity, viewer, "ping", ""))
	require.ErrorIs(t, err, domain.ErrPersistenceFailure)
	_, ok = f.response(t, testCommunity, "ping")
	assert.True(t, ok, "failed delete keeps the entry")

	assert.Len(t, f.publisher.Events(), 1)
	assert.Equal(t, 1, f.recorder.Count(domain.ActionCreated, OutcomeFailed))
	assert.Equal(t, 1, f.recorder.Count(domain.ActionUpdated, OutcomeFailed))
	assert.Equal(t, 1, f.recorder.Count(domain.ActionDeleted, OutcomeFailed))
}

func TestManager_FailedFirstCommitRetriesCommunity(t *testing.T) {
	f := newManagerFixture(t, RateLimitConfig{})
	ctx := context.Background()

	f.gateway.fail(errors.New("locked"))
	_, err := f.manager.Apply(ctx, invocation(testCommunity, viewer, "ping", "pong"))
	require.Error(t, err)

	f.gateway.fail(nil)
	_, err = f.manager.Apply(ctx, invocation(testCommunity, viewer, "ping", "pong"))
	require.NoError(t, err)

	commits := f.gateway.Commits()
	require.Len(t, commits, 1)
	assert.Len(t, commits[0].Communities, 1)
}

func TestManager_CommitTimeout(t *testing.T) {
	f := newManagerFixture(t, RateLimitConfig{})
	f.gateway.hang()

	_, err := f.manager.Apply(context.Background(), invocation(testCommunity, viewer, "ping", "pong"))
	require.ErrorIs(t, err, domain.ErrPersistenceTimeout)

	_, ok := f.response(t, testCommunity, "ping")
	assert.False(t, ok)
}

func TestManager_CallerCancellationDoesNotAbortCommit(t *testing.T) {
	f := newManagerFixture(t, RateLimitConfig{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res, err := f.manager.Apply(ctx, invocation(testCommunity, viewer, "ping", "pong"))
	require.NoError(t, err)
	assert.Equal(t, domain.ActionCreated, res.Action)
	assert.Len(t, f.gateway.Commits(), 1)
}

func TestManager_ConcurrentCreateSameName(t *testing.T) {
	f := newManagerFixture(t, RateLimitConfig{})

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		actions []domain.MutationAction
	)
	for _, response := range []string{"pong", "pang"} {
		wg.Add(1)
		go func(response string) {
			defer wg.Done()
			res, err := f.manager.Apply(context.Background(), invocation(testCommunity, viewer, "ping", response))
			assert.NoError(t, err)
			mu.Lock()
			actions = append(actions, res.Action)
			mu.Unlock()
		}(response)
	}
	wg.Wait()

	assert.ElementsMatch(t, []domain.MutationAction{domain.ActionCreated, domain.ActionUpdated}, actions)

	state, ok := f.manager.communities.Peek(testCommunity)
	require.True(t, ok)
	assert.Equal(t, 1, state.Registry.Len())
}

func TestManager_RejectsEmptyName(t *testing.T) {
	f := newManagerFixture(t, RateLimitConfig{})
	_, err := f.manager.Apply(context.Background(), invocation(testCommunity, viewer, "", "pong"))
	require.Error(t, err)
	assert.Empty(t, f.gateway.Commits())
}

func TestManager_LoadsStoredCommunity(t *testing.T) {
	repo := newMemoryRepo()
	repo.communities[testCommunity] = &domain.Community{
		ID:           testCommunity,
		OwnerID:      "u-owner",
		MinimumRoles: map[domain.ActionCategory]domain.PrivilegeTier{domain.CategoryCommandManagement: domain.TierModerator},
	}
	repo.commands[testCommunity] = []*domain.CustomCommand{{CommunityID: testCommunity, Name: "ping", Response: "pong"}}

	gateway := &fakeGateway{}
	manager := NewCustomCommandManager(ManagerConfig{
		Communities: NewCommunities(repo, repo, nil),
		Gateway:     gateway,
	})
	ctx := context.Background()

	cmd, ok, err := manager.Dump(ctx, testCommunity, "ping")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "pong", cmd.Response)

	_, err = manager.Apply(ctx, invocation(testCommunity, viewer, "hello", "world"))
	require.ErrorIs(t, err, domain.ErrInsufficientPrivilege)

	// owner recognised by stored id even without the platform flag
	res, err := manager.Apply(ctx, invocation(testCommunity, domain.Invoker{UserID: "u-owner"}, "ping", ""))
	require.NoError(t, err)
	assert.Equal(t, domain.ActionDeleted, res.Action)

	commits := gateway.Commits()
	require.Len(t, commits, 1)
	assert.Empty(t, commits[0].Communities)
	assert.Equal(t, []domain.CustomCommandKey{{CommunityID: testCommunity, Name: "ping"}}, commits[0].DeletedCommands)
	assert.Equal(t, 1, repo.gets)
}

func TestManager_ReadsDoNotCacheUnknownCommunities(t *testing.T) {
	repo := newMemoryRepo()
	communities := NewCommunities(repo, repo, nil)
	manager := NewCustomCommandManager(ManagerConfig{
		Communities: communities,
		Gateway:     &fakeGateway{},
	})
	ctx := context.Background()

	for _, id := range []domain.CommunityID{"kick:a", "kick:b", "web:c"} {
		_, ok, err := manager.Dump(ctx, id, "ping")
		require.NoError(t, err)
		assert.False(t, ok)
	}
	list, err := manager.List(ctx, otherCommunity)
	require.NoError(t, err)
	assert.Empty(t, list)
	assert.Equal(t, 0, communities.Len())

	_, err = manager.Apply(ctx, invocation(testCommunity, viewer, "ping", "pong"))
	require.NoError(t, err)
	_, ok := communities.Peek(testCommunity)
	assert.True(t, ok)
	assert.Equal(t, 1, communities.Len())

	cmd, ok, err := manager.Dump(ctx, testCommunity, "ping")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "pong", cmd.Response)
}

func TestManager_ReadCachesStoredCommunity(t *testing.T) {
	repo := newMemoryRepo()
	repo.communities[otherCommunity] = &domain.Community{ID: otherCommunity}
	communities := NewCommunities(repo, repo, nil)
	manager := NewCustomCommandManager(ManagerConfig{Communities: communities, Gateway: &fakeGateway{}})

	_, _, err := manager.Dump(context.Background(), otherCommunity, "ping")
	require.NoError(t, err)
	_, ok := communities.Peek(otherCommunity)
	assert.True(t, ok)
}

func TestManager_SetMinimumRole(t *testing.T) {
	f := newManagerFixture(t, RateLimitConfig{})
	ctx := context.Background()

	_, err := f.manager.SetMinimumRole(ctx, testCommunity, mod, domain.CategoryCommandManagement, "everyone")
	require.ErrorIs(t, err, domain.ErrInsufficientPrivilege)

	_, err = f.manager.SetMinimumRole(ctx, testCommunity, owner, domain.CategoryCommandManagement, "wizard")
	require.ErrorIs(t, err, domain.ErrUnknownRole)
	assert.Empty(t, f.gateway.Commits())

	tier, err := f.manager.SetMinimumRole(ctx, testCommunity, owner, domain.CategoryCommandManagement, "admin")
	require.NoError(t, err)
	assert.Equal(t, domain.TierCommandAdmin, tier)

	commits := f.gateway.Commits()
	require.Len(t, commits, 1)
	require.Len(t, commits[0].Communities, 1)
	assert.Equal(t, domain.TierCommandAdmin, commits[0].Communities[0].MinimumRole(domain.CategoryCommandManagement))

	_, err = f.manager.Apply(ctx, invocation(testCommunity, mod, "ping", "pong"))
	require.ErrorIs(t, err, domain.ErrInsufficientPrivilege)

	// the owner id is now known, so the owner passes without the platform flag
	_, err = f.manager.SetMinimumRole(ctx, testCommunity, domain.Invoker{UserID: "u-owner"}, domain.CategoryCommandManagement, "everyone")
	require.NoError(t, err)
	_, err = f.manager.Apply(ctx, invocation(testCommunity, viewer, "ping", "pong"))
	require.NoError(t, err)
}

func TestManager_SetMinimumRoleCommitFailure(t *testing.T) {
	f := newManagerFixture(t, RateLimitConfig{})
	ctx := context.Background()

	f.gateway.fail(errors.New("read-only"))
	_, err := f.manager.SetMinimumRole(ctx, testCommunity, owner, domain.CategoryCommandManagement, "moderator")
	require.ErrorIs(t, err, domain.ErrPersistenceFailure)

	f.gateway.fail(nil)
	_, err = f.manager.Apply(ctx, invocation(testCommunity, viewer, "ping", "pong"))
	require.NoError(t, err, "threshold must not change when the commit failed")
}

func TestManager_TryHandle(t *testing.T) {
	f := newManagerFixture(t, RateLimitConfig{})
	ctx := context.Background()
	out := &recordingOut{}

	_, err := f.manager.Apply(ctx, invocation(testCommunity, viewer, "ping", "pong"))
	require.NoError(t, err)

	msg := domain.Message{Platform: domain.PlatformTwitch, ChannelID: "#Foo"}
	handled, err := f.manager.TryHandle(ctx, "ping", msg, out)
	require.NoError(t, err)
	assert.True(t, handled)
	assert.Equal(t, []string{"pong"}, out.Texts())

	handled, err = f.manager.TryHandle(ctx, "nope", msg, out)
	require.NoError(t, err)
	assert.False(t, handled)
	assert.Len(t, out.Texts(), 1)
}
