package app

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"macroBot/internal/domain"
	"macroBot/internal/interface/outs"
)

// ChatAdapter is a platform connection that blocks in Start until its
// context ends and can post replies while it runs.
type ChatAdapter interface {
	outs.Sender
	Start(ctx context.Context) error
}

type entry struct {
	platform domain.Platform
	adapter  ChatAdapter
	required bool
}

// PlatformManager runs every configured adapter and keeps the MultiSender in
// sync with the ones that are up.
type PlatformManager struct {
	multiOut *outs.MultiSender

	mu      sync.RWMutex
	entries []entry
	running map[domain.Platform]bool
}

func NewPlatformManager(multiOut *outs.MultiSender) *PlatformManager {
	if multiOut == nil {
		multiOut = outs.NewMultiSender()
	}
	return &PlatformManager{
		multiOut: multiOut,
		running:  make(map[domain.Platform]bool),
	}
}

// Add registers an adapter. When a required adapter fails, Run stops all the
// others and returns the error. Optional adapters only log.
func (m *PlatformManager) Add(platform domain.Platform, adapter ChatAdapter, required bool) {
	if adapter == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, entry{platform: platform, adapter: adapter, required: required})
}

// Run starts the adapters and blocks until ctx ends or a required adapter fails.
func (m *PlatformManager) Run(ctx context.Context) error {
	m.mu.RLock()
	entries := append([]entry(nil), m.entries...)
	m.mu.RUnlock()

	if len(entries) == 0 {
		return errors.New("platform manager: no platforms configured")
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, e := range entries {
		g.Go(func() error {
			return m.run(gctx, e)
		})
	}
	return g.Wait()
}

func (m *PlatformManager) run(ctx context.Context, e entry) error {
	m.multiOut.Register(e.platform, e.adapter)
	m.setRunning(e.platform, true)
	defer func() {
		m.multiOut.Unregister(e.platform)
		m.setRunning(e.platform, false)
	}()

	log.Info().Str("platform", string(e.platform)).Msg("platform manager: starting")
	err := e.adapter.Start(ctx)
	if err == nil || errors.Is(err, context.Canceled) {
		return nil
	}

	log.Error().Err(err).Str("platform", string(e.platform)).Bool("required", e.required).Msg("platform manager: adapter stopped")
	if e.required {
		return fmt.Errorf("%s: %w", e.platform, err)
	}
	return nil
}

func (m *PlatformManager) setRunning(platform domain.Platform, up bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if up {
		m.running[platform] = true
		return
	}
	delete(m.running, platform)
}

// Running lists the platforms whose adapter is currently started.
func (m *PlatformManager) Running() []domain.Platform {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]domain.Platform, 0, len(m.running))
	for p := range m.running {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
