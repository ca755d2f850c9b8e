package outs

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"macroBot/internal/domain"
)

var ErrNoSender = errors.New("no sender registered")

// Sender is implemented by every outbound adapter (Twitch, Kick, web chat).
type Sender interface {
	// channelID is where the reply goes, e.g. "#foo" on Twitch.
	SendMessage(ctx context.Context, platform domain.Platform, channelID, text string) error
}

// MultiSender routes a reply to the sender of the platform the message came from.
type MultiSender struct {
	mu      sync.RWMutex
	senders map[domain.Platform]Sender
}

func NewMultiSender() *MultiSender {
	return &MultiSender{
		senders: make(map[domain.Platform]Sender),
	}
}

func (m *MultiSender) Register(platform domain.Platform, sender Sender) {
	if m == nil || sender == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.senders[platform] = sender
}

func (m *MultiSender) Unregister(platform domain.Platform) {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.senders, platform)
}

// Platforms lists the platforms that currently have a sender, sorted.
func (m *MultiSender) Platforms() []domain.Platform {
	if m == nil {
		return nil
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]domain.Platform, 0, len(m.senders))
	for p := range m.senders {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func (m *MultiSender) SendMessage(ctx context.Context, platform domain.Platform, channelID, text string) error {
	if m == nil {
		return fmt.Errorf("%w: multi sender not configured", ErrNoSender)
	}
	m.mu.RLock()
	sender, ok := m.senders[platform]
	m.mu.RUnlock()
	if !ok {
		return fmt.Errorf("%w: platform %s", ErrNoSender, platform)
	}

	return sender.SendMessage(ctx, platform, channelID, text)
}

var _ domain.OutgoingMessagePort = (*MultiSender)(nil)
