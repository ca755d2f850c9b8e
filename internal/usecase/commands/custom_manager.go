package commands

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"macroBot/internal/domain"
)

const defaultCommitTimeout = 5 * time.Second

// Outcome labels reported to the MutationRecorder.
const (
	OutcomeOK        = "ok"
	OutcomeNoop      = "noop"
	OutcomeDenied    = "denied"
	OutcomeThrottled = "throttled"
	OutcomeFailed    = "failed"
)

// MutationRecorder observes every attempted mutation (metrics).
type MutationRecorder interface {
	RecordMutation(action domain.MutationAction, outcome string)
}

type ManagerConfig struct {
	Communities   *Communities
	Gateway       domain.PersistenceGateway
	Limiter       *RateLimiter
	Roles         domain.RoleResolver
	Publisher     domain.MutationPublisher
	Recorder      MutationRecorder
	CommitTimeout time.Duration
	Now           func() time.Time
}

// CustomCommandManager drives every read and write of custom commands.
type CustomCommandManager struct {
	communities   *Communities
	gateway       domain.PersistenceGateway
	limiter       *RateLimiter
	roles         domain.RoleResolver
	publisher     domain.MutationPublisher
	recorder      MutationRecorder
	commitTimeout time.Duration
	now           func() time.Time
	gate          Gate
}

type MutationResult struct {
	Command *domain.CustomCommand
	Action  domain.MutationAction
}

func NewCustomCommandManager(cfg ManagerConfig) *CustomCommandManager {
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	communities := cfg.Communities
	if communities == nil {
		communities = NewCommunities(nil, nil, now)
	}
	roles := cfg.Roles
	if roles == nil {
		roles = domain.NameRoleResolver{}
	}
	timeout := cfg.CommitTimeout
	if timeout <= 0 {
		timeout = defaultCommitTimeout
	}
	return &CustomCommandManager{
		communities:   communities,
		gateway:       cfg.Gateway,
		limiter:       cfg.Limiter,
		roles:         roles,
		publisher:     cfg.Publisher,
		recorder:      cfg.Recorder,
		commitTimeout: timeout,
		now:           now,
	}
}

// Apply runs one create, update or delete request. Missing targets of a
// delete are a successful no-op with ActionMissing.
func (m *CustomCommandManager) Apply(ctx context.Context, inv domain.Invocation) (MutationResult, error) {
	if m == nil {
		return MutationResult{}, fmt.Errorf("custom manager: nil")
	}
	if inv.Name == "" {
		return MutationResult{}, fmt.Errorf("custom manager: empty command name")
	}

	state, err := m.communities.Get(ctx, inv.CommunityID)
	if err != nil {
		return MutationResult{}, fmt.Errorf("custom manager: %w", err)
	}

	state.mu.Lock()
	defer state.mu.Unlock()

	var result MutationResult
	switch inv.Request.Kind {
	case domain.RequestDelete:
		result, err = m.delete(ctx, state, inv)
	case domain.RequestUpsert:
		result, err = m.upsert(ctx, state, inv)
	default:
		err = fmt.Errorf("custom manager: unknown request kind %d", inv.Request.Kind)
	}
	if err != nil {
		return MutationResult{}, err
	}

	if result.Action != domain.ActionMissing && m.publisher != nil {
		m.publisher.PublishMutation(ctx, domain.CommandMutation{
			InvocationID: inv.ID,
			CommunityID:  inv.CommunityID,
			Name:         inv.Name,
			Action:       result.Action,
			Response:     result.Command.Response,
			Actor:        inv.Invoker.Username,
			At:           m.now().UTC(),
		})
	}
	return result, nil
}

func (m *CustomCommandManager) delete(ctx context.Context, state *CommunityState, inv domain.Invocation) (MutationResult, error) {
	current, exists := state.Registry.Lookup(inv.Name)
	if !exists {
		m.record(domain.ActionMissing, OutcomeNoop)
		return MutationResult{Action: domain.ActionMissing}, nil
	}

	if err := m.guard(state, inv, domain.ActionDeleted); err != nil {
		return MutationResult{}, err
	}

	if err := state.Registry.Remove(current); err != nil {
		m.record(domain.ActionDeleted, OutcomeFailed)
		return MutationResult{}, fmt.Errorf("custom manager: remove: %w", err)
	}

	changes, community := m.changeSet(state, inv)
	changes.DeletedCommands = append(changes.DeletedCommands, domain.CustomCommandKey{
		CommunityID: inv.CommunityID,
		Name:        inv.Name,
	})

	if err := m.commit(ctx, changes); err != nil {
		state.Registry.restore(inv.Name, current)
		m.record(domain.ActionDeleted, OutcomeFailed)
		log.Error().Err(err).Str("invocation", inv.ID).Str("community", string(inv.CommunityID)).
			Str("command", inv.Name).Msg("custom manager: delete rolled back")
		return MutationResult{}, err
	}
	m.committed(state, community)

	m.record(domain.ActionDeleted, OutcomeOK)
	log.Info().Str("invocation", inv.ID).Str("community", string(inv.CommunityID)).
		Str("command", inv.Name).Str("actor", inv.Invoker.Username).Msg("custom command deleted")
	return MutationResult{Command: current, Action: domain.ActionDeleted}, nil
}

func (m *CustomCommandManager) upsert(ctx context.Context, state *CommunityState, inv domain.Invocation) (MutationResult, error) {
	current, exists := state.Registry.Lookup(inv.Name)

	action := domain.ActionCreated
	if exists {
		action = domain.ActionUpdated
	}

	if err := m.guard(state, inv, action); err != nil {
		return MutationResult{}, err
	}

	var (
		cmd *domain.CustomCommand
		err error
	)
	if exists {
		cmd, err = state.Registry.Update(current, inv.Request.Response)
	} else {
		cmd, err = state.Registry.Insert(inv.Name, inv.Request.Response, inv.Invoker.UserID)
	}
	if err != nil {
		m.record(action, OutcomeFailed)
		return MutationResult{}, fmt.Errorf("custom manager: %s: %w", action, err)
	}

	changes, community := m.changeSet(state, inv)
	changes.UpsertCommands = append(changes.UpsertCommands, cmd)

	if err := m.commit(ctx, changes); err != nil {
		state.Registry.restore(inv.Name, current)
		m.record(action, OutcomeFailed)
		log.Error().Err(err).Str("invocation", inv.ID).Str("community", string(inv.CommunityID)).
			Str("command", inv.Name).Str("action", string(action)).Msg("custom manager: upsert rolled back")
		return MutationResult{}, err
	}
	m.committed(state, community)

	m.record(action, OutcomeOK)
	log.Info().Str("invocation", inv.ID).Str("community", string(inv.CommunityID)).
		Str("command", inv.Name).Str("action", string(action)).Str("actor", inv.Invoker.Username).
		Msg("custom command saved")
	return MutationResult{Command: cmd, Action: action}, nil
}

// guard runs the authorization gate and then the rate limiter. A denied
// invocation never reaches the limiter.
func (m *CustomCommandManager) guard(state *CommunityState, inv domain.Invocation, action domain.MutationAction) error {
	if err := m.gate.Check(state.Community(), domain.CategoryCommandManagement, inv.Invoker); err != nil {
		m.record(action, OutcomeDenied)
		return err
	}
	if err := m.limiter.TryAcquire(inv.CommunityID, inv.Invoker.UserID); err != nil {
		m.record(action, OutcomeThrottled)
		return err
	}
	return nil
}

// changeSet starts a ChangeSet, including the community record when it was
// never stored or when its owner becomes known.
func (m *CustomCommandManager) changeSet(state *CommunityState, inv domain.Invocation) (domain.ChangeSet, *domain.Community) {
	community := state.Community()
	dirty := !state.isPersisted()
	if inv.Invoker.IsOwner && inv.Invoker.UserID != "" && community.OwnerID != inv.Invoker.UserID {
		community.OwnerID = inv.Invoker.UserID
		dirty = true
	}
	if !dirty {
		return domain.ChangeSet{}, nil
	}
	community.UpdatedAt = m.now().UTC()
	return domain.ChangeSet{Communities: []*domain.Community{community}}, community
}

func (m *CustomCommandManager) committed(state *CommunityState, community *domain.Community) {
	if community != nil {
		state.setCommunity(community, true)
	}
}

// commit is detached from the caller's cancellation; only the commit
// timeout can stop it.
func (m *CustomCommandManager) commit(ctx context.Context, changes domain.ChangeSet) error {
	if m.gateway == nil || changes.Empty() {
		return nil
	}

	commitCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), m.commitTimeout)
	defer cancel()

	err := m.gateway.Commit(commitCtx, changes)
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(commitCtx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%w: %w", domain.ErrPersistenceTimeout, err)
	}
	return fmt.Errorf("%w: %w", domain.ErrPersistenceFailure, err)
}

func (m *CustomCommandManager) record(action domain.MutationAction, outcome string) {
	if m.recorder != nil {
		m.recorder.RecordMutation(action, outcome)
	}
}

// Dump is the read path: no gate, no limiter, no mutation.
func (m *CustomCommandManager) Dump(ctx context.Context, community domain.CommunityID, name string) (*domain.CustomCommand, bool, error) {
	if m == nil {
		return nil, false, fmt.Errorf("custom manager: nil")
	}
	state, err := m.communities.Find(ctx, community)
	if err != nil {
		return nil, false, fmt.Errorf("custom manager: %w", err)
	}
	cmd, ok := state.Registry.Lookup(name)
	return cmd, ok, nil
}

func (m *CustomCommandManager) List(ctx context.Context, community domain.CommunityID) ([]*domain.CustomCommand, error) {
	if m == nil {
		return nil, nil
	}
	state, err := m.communities.Find(ctx, community)
	if err != nil {
		return nil, fmt.Errorf("custom manager: %w", err)
	}
	return state.Registry.List(), nil
}

// SetMinimumRole changes the tier needed for a category. Only the
// community owner may call it. The new threshold is visible to the next
// check as soon as the commit succeeds.
func (m *CustomCommandManager) SetMinimumRole(ctx context.Context, community domain.CommunityID, invoker domain.Invoker, category domain.ActionCategory, role string) (domain.PrivilegeTier, error) {
	if m == nil {
		return domain.TierEveryone, fmt.Errorf("custom manager: nil")
	}
	state, err := m.communities.Get(ctx, community)
	if err != nil {
		return domain.TierEveryone, fmt.Errorf("custom manager: %w", err)
	}

	state.mu.Lock()
	defer state.mu.Unlock()

	current := state.Community()
	if err := m.gate.CheckOwner(current, invoker); err != nil {
		return domain.TierEveryone, err
	}

	tier, err := m.roles.ResolveRole(ctx, community, role)
	if err != nil {
		return domain.TierEveryone, err
	}

	updated := current.Clone()
	updated.MinimumRoles[category] = tier
	updated.UpdatedAt = m.now().UTC()
	if invoker.IsOwner && invoker.UserID != "" {
		updated.OwnerID = invoker.UserID
	}

	if err := m.commit(ctx, domain.ChangeSet{Communities: []*domain.Community{updated}}); err != nil {
		log.Error().Err(err).Str("community", string(community)).Str("role", role).
			Msg("custom manager: minimum role not saved")
		return domain.TierEveryone, err
	}
	state.setCommunity(updated, true)

	log.Info().Str("community", string(community)).Str("category", string(category)).
		Str("tier", tier.String()).Str("actor", invoker.Username).Msg("minimum role updated")
	return tier, nil
}

// TryHandle echoes a custom command. It reports false when no command with
// that name exists so the caller can keep looking.
func (m *CustomCommandManager) TryHandle(ctx context.Context, trigger string, msg domain.Message, out domain.OutgoingMessagePort) (bool, error) {
	if m == nil {
		return false, nil
	}
	cmd, ok, err := m.Dump(ctx, msg.Community(), trigger)
	if err != nil {
		return false, err
	}
	if !ok {
		return false, nil
	}
	return true, out.SendMessage(ctx, msg.Platform, msg.ChannelID, cmd.Response)
}
