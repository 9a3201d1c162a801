package session

import (
	"context"
	"strings"
	"sync"

	"autosms-dashboard/backend/internal/models"
	"autosms-dashboard/backend/pkg/logger"
)

// idPrefix is the fixed wrapping applied to account ids before they are
// persisted. It disambiguates an id that went through the selection store
// from a raw foreign-system id at lookup time. The transform is reversible;
// repositories only ever see the unwrapped form.
const idPrefix = "id_"

// WrapAccountID applies the storage form of an account id. Idempotent.
func WrapAccountID(raw string) string {
	if raw == "" || strings.HasPrefix(raw, idPrefix) {
		return raw
	}
	return idPrefix + raw
}

// UnwrapAccountID recovers the raw id suitable for backend queries
func UnwrapAccountID(wrapped string) string {
	return strings.TrimPrefix(wrapped, idPrefix)
}

// Selection is the persisted selection state for one signed-in profile.
// The account is stored with its id in wrapped form; the conversation is
// stored whole, as last selected.
type Selection struct {
	Account      *models.Account      `json:"selected_account,omitempty"`
	Conversation *models.Conversation `json:"selected_chat,omitempty"`
}

// Persister stores Selection snapshots durably, one slot per profile
type Persister interface {
	Save(ctx context.Context, profileID string, sel Selection) error
	Load(ctx context.Context, profileID string) (*Selection, error)
	Delete(ctx context.Context, profileID string) error
}

// Store is the single holder of a profile's selection state. All components
// read and mutate selection through its methods, never by direct field
// assignment, which keeps the wrapped/raw id invariant intact. Persistence
// is best-effort: when the durable layer is unavailable the store keeps
// working in memory for the rest of the session.
type Store struct {
	mu          sync.RWMutex
	profileID   string
	state       Selection
	persister   Persister
	log         *logger.Logger
	subscribers []func(Selection)
}

// NewStore creates a selection store for a profile, restoring any persisted
// snapshot. A nil persister gives a purely in-memory store.
func NewStore(ctx context.Context, profileID string, persister Persister, log *logger.Logger) *Store {
	s := &Store{
		profileID: profileID,
		persister: persister,
		log:       log,
	}

	if persister != nil {
		saved, err := persister.Load(ctx, profileID)
		if err != nil {
			log.Warn("Failed to restore selection state",
				"profile_id", profileID,
				"error", err.Error(),
			)
		} else if saved != nil {
			s.state = *saved
		}
	}

	return s
}

// SetActiveAccount replaces the active account. Non-nil accounts are stored
// with a wrapped id; a conversation that does not belong to the new account
// is cleared rather than allowed to survive the switch.
func (s *Store) SetActiveAccount(ctx context.Context, account *models.Account) {
	s.mu.Lock()

	if account != nil {
		stored := *account
		stored.ID = WrapAccountID(account.ID)
		s.state.Account = &stored

		if s.state.Conversation != nil && s.state.Conversation.AccountID != UnwrapAccountID(stored.ID) {
			s.state.Conversation = nil
		}
	} else {
		s.state.Account = nil
	}

	snapshot := s.state
	s.mu.Unlock()

	s.persist(ctx, snapshot)
	s.notify(snapshot)
}

// SetActiveConversation replaces the active conversation without touching the
// active account. No cross-validation is performed here; callers select
// conversations from lists already scoped to the active account.
func (s *Store) SetActiveConversation(ctx context.Context, conversation *models.Conversation) {
	s.mu.Lock()
	if conversation != nil {
		stored := *conversation
		s.state.Conversation = &stored
	} else {
		s.state.Conversation = nil
	}
	snapshot := s.state
	s.mu.Unlock()

	s.persist(ctx, snapshot)
	s.notify(snapshot)
}

// ActiveAccount returns a copy of the active account, nil when none is set.
// The returned account carries the wrapped id; use ActiveAccountRawID for
// backend queries.
func (s *Store) ActiveAccount() *models.Account {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.state.Account == nil {
		return nil
	}
	account := *s.state.Account
	return &account
}

// ActiveConversation returns a copy of the active conversation, nil when none
func (s *Store) ActiveConversation() *models.Conversation {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.state.Conversation == nil {
		return nil
	}
	conversation := *s.state.Conversation
	return &conversation
}

// ActiveAccountRawID returns the unwrapped identifier suitable for querying
// the backend. Fails closed: ok is false when no account is active.
func (s *Store) ActiveAccountRawID() (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.state.Account == nil {
		return "", false
	}
	return UnwrapAccountID(s.state.Account.ID), true
}

// Clear resets both selections and persists the empty state. Called on
// sign-out or when the authenticated user becomes anonymous.
func (s *Store) Clear(ctx context.Context) {
	s.mu.Lock()
	s.state = Selection{}
	snapshot := s.state
	s.mu.Unlock()

	if s.persister != nil {
		if err := s.persister.Delete(ctx, s.profileID); err != nil {
			s.log.Warn("Failed to clear persisted selection state",
				"profile_id", s.profileID,
				"error", err.Error(),
			)
		}
	}
	s.notify(snapshot)
}

// Subscribe registers a callback invoked with a snapshot after every
// mutation. Callbacks run on the mutating goroutine and must not call back
// into the store's mutating methods.
func (s *Store) Subscribe(fn func(Selection)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subscribers = append(s.subscribers, fn)
}

// persist saves the snapshot, best-effort
func (s *Store) persist(ctx context.Context, snapshot Selection) {
	if s.persister == nil {
		return
	}
	if err := s.persister.Save(ctx, s.profileID, snapshot); err != nil {
		s.log.Warn("Failed to persist selection state",
			"profile_id", s.profileID,
			"error", err.Error(),
		)
	}
}

// notify fans the snapshot out to subscribers
func (s *Store) notify(snapshot Selection) {
	s.mu.RLock()
	subs := make([]func(Selection), len(s.subscribers))
	copy(subs, s.subscribers)
	s.mu.RUnlock()

	for _, fn := range subs {
		fn(snapshot)
	}
}
