package store

import (
	"context"
	"errors"
	"sync"
	"time"
)

var ErrPanelNotFound = errors.New("panel not found")

// Panel records which message hosts a user's slot panel
type Panel struct {
	UserID    string
	GuildID   string
	ChannelID string
	MessageID string
	OpenedAt  time.Time
	UpdatedAt time.Time
}

// PanelStore persists panel placement so a restarted bot can reuse messages
type PanelStore interface {
	SavePanel(ctx context.Context, p Panel) error
	GetPanel(ctx context.Context, userID string) (Panel, error)
	DeletePanel(ctx context.Context, userID string) error
	Close()
}

// MemoryStore is the fallback when no database is configured
type MemoryStore struct {
	mu     sync.RWMutex
	panels map[string]Panel
	now    func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{panels: make(map[string]Panel), now: time.Now}
}

func (m *MemoryStore) SavePanel(ctx context.Context, p Panel) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now().UTC()
	if existing, ok := m.panels[p.UserID]; ok && p.OpenedAt.IsZero() {
		p.OpenedAt = existing.OpenedAt
	}
	if p.OpenedAt.IsZero() {
		p.OpenedAt = now
	}
	p.UpdatedAt = now
	m.panels[p.UserID] = p
	return nil
}

func (m *MemoryStore) GetPanel(ctx context.Context, userID string) (Panel, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.panels[userID]
	if !ok {
		return Panel{}, ErrPanelNotFound
	}
	return p, nil
}

func (m *MemoryStore) DeletePanel(ctx context.Context, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.panels, userID)
	return nil
}

func (m *MemoryStore) Close() {}
