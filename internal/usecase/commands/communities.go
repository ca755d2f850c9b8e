package commands

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"macroBot/internal/domain"
)

// CommunityState is the per-community container: the registry plus the
// community record. mu serializes whole mutation sequences so that
// lookup, checks, mutation and commit happen as one step.
type CommunityState struct {
	ID       domain.CommunityID
	Registry *Registry

	mu sync.Mutex

	cfgMu     sync.RWMutex
	community *domain.Community
	persisted bool
}

// Community returns a snapshot of the community record.
func (s *CommunityState) Community() *domain.Community {
	s.cfgMu.RLock()
	defer s.cfgMu.RUnlock()
	return s.community.Clone()
}

func (s *CommunityState) setCommunity(c *domain.Community, persisted bool) {
	s.cfgMu.Lock()
	defer s.cfgMu.Unlock()
	s.community = c.Clone()
	s.persisted = persisted
}

func (s *CommunityState) isPersisted() bool {
	s.cfgMu.RLock()
	defer s.cfgMu.RUnlock()
	return s.persisted
}

// Communities hands out one CommunityState per community, loading it from
// storage on first contact.
type Communities struct {
	commands    domain.CustomCommandRepository
	communities domain.CommunityRepository
	now         func() time.Time

	group singleflight.Group

	mu     sync.RWMutex
	states map[domain.CommunityID]*CommunityState
}

func NewCommunities(commands domain.CustomCommandRepository, communities domain.CommunityRepository, now func() time.Time) *Communities {
	if now == nil {
		now = time.Now
	}
	return &Communities{
		commands:    commands,
		communities: communities,
		now:         now,
		states:      make(map[domain.CommunityID]*CommunityState),
	}
}

func (c *Communities) Get(ctx context.Context, id domain.CommunityID) (*CommunityState, error) {
	if state, ok := c.Peek(id); ok {
		return state, nil
	}

	v, err, _ := c.group.Do(string(id), func() (any, error) {
		if state, ok := c.Peek(id); ok {
			return state, nil
		}
		state, err := c.load(ctx, id)
		if err != nil {
			return nil, err
		}
		return c.store(state), nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*CommunityState), nil
}

// Find is Get for the read paths. A community with no stored record is
// returned empty and not cached, so reads from unknown channels leave
// nothing behind.
func (c *Communities) Find(ctx context.Context, id domain.CommunityID) (*CommunityState, error) {
	if state, ok := c.Peek(id); ok {
		return state, nil
	}

	v, err, _ := c.group.Do("find|"+string(id), func() (any, error) {
		if state, ok := c.Peek(id); ok {
			return state, nil
		}
		state, err := c.load(ctx, id)
		if err != nil {
			return nil, err
		}
		if !state.isPersisted() {
			return state, nil
		}
		return c.store(state), nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*CommunityState), nil
}

// store caches state unless another load got there first, in which case
// the cached one wins.
func (c *Communities) store(state *CommunityState) *CommunityState {
	c.mu.Lock()
	defer c.mu.Unlock()
	if existing, ok := c.states[state.ID]; ok {
		return existing
	}
	c.states[state.ID] = state
	return state
}

// Len is the number of cached communities.
func (c *Communities) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.states)
}

// Peek returns the state only if it is already loaded.
func (c *Communities) Peek(id domain.CommunityID) (*CommunityState, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	state, ok := c.states[id]
	return state, ok
}

func (c *Communities) load(ctx context.Context, id domain.CommunityID) (*CommunityState, error) {
	state := &CommunityState{
		ID:       id,
		Registry: NewRegistry(id, c.now),
	}

	var community *domain.Community
	if c.communities != nil {
		stored, err := c.communities.GetCommunity(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("communities: get %s: %w", id, err)
		}
		community = stored
	}

	persisted := community != nil
	if community == nil {
		now := c.now().UTC()
		community = &domain.Community{
			ID:           id,
			MinimumRoles: make(map[domain.ActionCategory]domain.PrivilegeTier),
			CreatedAt:    now,
			UpdatedAt:    now,
		}
	}
	state.setCommunity(community, persisted)

	if c.commands != nil && persisted {
		list, err := c.commands.ListCustomCommands(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("communities: list commands %s: %w", id, err)
		}
		state.Registry.load(list)
	}

	return state, nil
}
