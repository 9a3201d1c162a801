package session

import (
	"context"
	"sync"

	"autosms-dashboard/backend/pkg/logger"
)

// Manager hands out one selection store per signed-in profile. Stores are
// created lazily on first access and restored from the persister.
type Manager struct {
	mu        sync.Mutex
	stores    map[string]*Store
	persister Persister
	log       *logger.Logger
}

// NewManager creates a session manager backed by the given persister.
// A nil persister keeps all selection state in memory.
func NewManager(persister Persister, log *logger.Logger) *Manager {
	return &Manager{
		stores:    make(map[string]*Store),
		persister: persister,
		log:       log,
	}
}

// ForProfile returns the selection store for a profile, creating it on first use
func (m *Manager) ForProfile(ctx context.Context, profileID string) *Store {
	m.mu.Lock()
	defer m.mu.Unlock()

	if store, ok := m.stores[profileID]; ok {
		return store
	}

	store := NewStore(ctx, profileID, m.persister, m.log)
	m.stores[profileID] = store
	return store
}

// Drop clears a profile's selection and forgets the in-memory store
func (m *Manager) Drop(ctx context.Context, profileID string) {
	m.mu.Lock()
	store, ok := m.stores[profileID]
	delete(m.stores, profileID)
	m.mu.Unlock()

	if ok {
		store.Clear(ctx)
	}
}
