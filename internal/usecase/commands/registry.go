package commands

import (
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"macroBot/internal/domain"
)

// Registry holds the custom commands of a single community. Names are
// matched exactly (case-sensitive).
type Registry struct {
	community domain.CommunityID
	now       func() time.Time

	mu       sync.RWMutex
	commands map[string]*domain.CustomCommand
}

func NewRegistry(community domain.CommunityID, now func() time.Time) *Registry {
	if now == nil {
		now = time.Now
	}
	return &Registry{
		community: community,
		now:       now,
		commands:  make(map[string]*domain.CustomCommand),
	}
}

// load replaces the registry content with records read from storage.
func (r *Registry) load(list []*domain.CustomCommand) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.commands = make(map[string]*domain.CustomCommand, len(list))
	for _, cmd := range list {
		if cmd == nil || cmd.Name == "" || strings.TrimSpace(cmd.Response) == "" {
			continue
		}
		loaded := cmd.Clone()
		loaded.CommunityID = r.community
		r.commands[loaded.Name] = loaded
	}
}

func (r *Registry) Lookup(name string) (*domain.CustomCommand, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	cmd, ok := r.commands[name]
	if !ok {
		return nil, false
	}
	return cmd.Clone(), true
}

func (r *Registry) Insert(name, response, createdBy string) (*domain.CustomCommand, error) {
	if response == "" {
		return nil, domain.ErrEmptyResponse
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.commands[name]; ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrDuplicateName, name)
	}

	cmd := &domain.CustomCommand{
		CommunityID: r.community,
		Name:        name,
		Response:    response,
		CreatedBy:   createdBy,
		UpdatedAt:   r.now().UTC(),
	}
	r.commands[name] = cmd
	return cmd.Clone(), nil
}

func (r *Registry) Remove(cmd *domain.CustomCommand) error {
	if cmd == nil || cmd.CommunityID != r.community {
		return domain.ErrNotFound
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.commands[cmd.Name]; !ok {
		return fmt.Errorf("%w: %s", domain.ErrNotFound, cmd.Name)
	}
	delete(r.commands, cmd.Name)
	return nil
}

// Update replaces the response in place. Name and identity stay the same.
func (r *Registry) Update(cmd *domain.CustomCommand, response string) (*domain.CustomCommand, error) {
	if response == "" {
		return nil, domain.ErrEmptyResponse
	}
	if cmd == nil || cmd.CommunityID != r.community {
		return nil, domain.ErrNotFound
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	current, ok := r.commands[cmd.Name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrNotFound, cmd.Name)
	}
	updated := current.Clone()
	updated.Response = response
	updated.UpdatedAt = r.now().UTC()
	r.commands[cmd.Name] = updated
	return updated.Clone(), nil
}

// restore puts a previous version back. Used to roll back after a failed commit.
func (r *Registry) restore(name string, previous *domain.CustomCommand) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if previous == nil {
		delete(r.commands, name)
		return
	}
	r.commands[name] = previous.Clone()
}

func (r *Registry) List() []*domain.CustomCommand {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*domain.CustomCommand, 0, len(r.commands))
	for _, cmd := range r.commands {
		out = append(out, cmd.Clone())
	}
	slices.SortFunc(out, func(a, b *domain.CustomCommand) int {
		return strings.Compare(a.Name, b.Name)
	})
	return out
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.commands)
}
