package service

import (
	"context"
	"strings"
	"sync"
	"time"

	"autosms-dashboard/backend/internal/models"
	"autosms-dashboard/backend/internal/repository"
	"autosms-dashboard/backend/internal/session"
	"autosms-dashboard/backend/pkg/errors"
	"autosms-dashboard/backend/pkg/logger"
)

// FilterCategory narrows the conversation list to a named subset.
type FilterCategory string

const (
	FilterAll       FilterCategory = "all"
	FilterCustomers FilterCategory = "customers"
	FilterRecent    FilterCategory = "recent"
)

// ParseFilterCategory maps a query-string value to a category, defaulting to
// FilterAll for empty or unknown values.
func ParseFilterCategory(raw string) FilterCategory {
	switch FilterCategory(strings.ToLower(raw)) {
	case FilterCustomers:
		return FilterCustomers
	case FilterRecent:
		return FilterRecent
	default:
		return FilterAll
	}
}

// InboxService maintains one conversation-list view per profile. Each view
// caches the last successful load so filter reads never touch the database,
// and tags refreshes with a generation counter so late responses from a
// superseded fetch are discarded instead of overwriting newer data.
type InboxService struct {
	conversations repository.ConversationRepository
	sessions      *session.Manager
	recentWindow  time.Duration
	log           *logger.Logger

	mu    sync.Mutex
	views map[string]*inboxView
}

// NewInboxService creates the inbox service. recentWindow bounds the "recent"
// filter; conversations whose last interaction is at least now minus the
// window are included.
func NewInboxService(
	conversations repository.ConversationRepository,
	sessions *session.Manager,
	recentWindow time.Duration,
	log *logger.Logger,
) *InboxService {
	return &InboxService{
		conversations: conversations,
		sessions:      sessions,
		recentWindow:  recentWindow,
		log:           log,
		views:         make(map[string]*inboxView),
	}
}

// Load fetches the active account's conversation list. On failure the view
// keeps whatever it had; the caller gets a retryable error.
func (s *InboxService) Load(ctx context.Context, profileID string) ([]models.Conversation, error) {
	store := s.sessions.ForProfile(ctx, profileID)
	accountID, ok := store.ActiveAccountRawID()
	if !ok {
		return nil, errors.NewNoActiveSelectionError("No Instagram account selected")
	}

	view := s.viewFor(ctx, profileID, store)
	gen := view.beginLoad(accountID)

	list, err := s.conversations.ListActiveByAccount(ctx, accountID)
	if err != nil {
		s.log.Error("conversation list fetch failed", "profileId", profileID, "error", err)
		return nil, errors.NewTransientLoadError("Failed to load conversations")
	}

	view.completeLoad(gen, list)
	return view.snapshot(), nil
}

// Filter returns the cached list narrowed by search text and category. The
// search matches the participant's display name or username, case-insensitive.
func (s *InboxService) Filter(ctx context.Context, profileID, query string, category FilterCategory) []models.Conversation {
	store := s.sessions.ForProfile(ctx, profileID)
	view := s.viewFor(ctx, profileID, store)

	query = strings.ToLower(strings.TrimSpace(query))
	cutoff := time.Now().Add(-s.recentWindow)

	var out []models.Conversation
	for _, conv := range view.snapshot() {
		if query != "" && !matchesSearch(&conv, query) {
			continue
		}
		switch category {
		case FilterCustomers:
			if !conv.HasCustomer() {
				continue
			}
		case FilterRecent:
			if conv.LastInteraction.Before(cutoff) {
				continue
			}
		}
		out = append(out, conv)
	}
	return out
}

// ToggleAutomation flips the automated responder for one conversation. The
// view is updated before the write goes out; a failed write reverts it. A
// second toggle for the same conversation while one is pending is rejected.
func (s *InboxService) ToggleAutomation(ctx context.Context, profileID, conversationID string, active bool) (*models.Conversation, error) {
	store := s.sessions.ForProfile(ctx, profileID)
	view := s.viewFor(ctx, profileID, store)

	if !view.beginToggle(conversationID) {
		return nil, errors.NewConflictError(errors.CodeToggleInFlight, "Bot status update already in progress")
	}
	defer view.endToggle(conversationID)

	previous, found := view.setBotActive(conversationID, active)

	if err := s.conversations.SetBotActive(ctx, conversationID, active); err != nil {
		if found {
			view.setBotActive(conversationID, previous)
		}
		s.log.Error("bot status update failed", "conversationId", conversationID, "error", err)
		return nil, errors.NewBridgeFailureError("Failed to update bot status", nil)
	}

	updated := view.conversation(conversationID)
	if updated == nil {
		// Not in the cached list; report the new state anyway.
		return &models.Conversation{ID: conversationID, BotActive: active}, nil
	}

	if current := store.ActiveConversation(); current != nil && current.ID == conversationID {
		store.SetActiveConversation(ctx, updated)
	}
	return updated, nil
}

// SelectConversation makes a conversation from the cached list the active one.
func (s *InboxService) SelectConversation(ctx context.Context, profileID, conversationID string) (*models.Conversation, error) {
	store := s.sessions.ForProfile(ctx, profileID)
	view := s.viewFor(ctx, profileID, store)

	conv := view.conversation(conversationID)
	if conv == nil {
		loaded, err := s.conversations.GetByID(ctx, conversationID)
		if err != nil {
			return nil, errors.NewNotFoundError(errors.CodeNotFound, "Conversation not found")
		}
		conv = loaded
	}

	if accountID, ok := store.ActiveAccountRawID(); !ok || conv.AccountID != accountID {
		return nil, errors.NewNotFoundError(errors.CodeNotFound, "Conversation not found")
	}

	store.SetActiveConversation(ctx, conv)
	return conv, nil
}

func matchesSearch(conv *models.Conversation, query string) bool {
	return strings.Contains(strings.ToLower(conv.DisplayName()), query) ||
		strings.Contains(strings.ToLower(conv.Username()), query)
}

func (s *InboxService) viewFor(ctx context.Context, profileID string, store *session.Store) *inboxView {
	s.mu.Lock()
	defer s.mu.Unlock()

	view, ok := s.views[profileID]
	if !ok {
		view = &inboxView{}
		s.views[profileID] = view
		// Switching accounts invalidates the cached list immediately;
		// any in-flight fetch for the old account becomes stale.
		store.Subscribe(func(sel session.Selection) {
			account := ""
			if sel.Account != nil {
				account = session.UnwrapAccountID(sel.Account.ID)
			}
			view.resetIfAccountChanged(account)
		})
	}
	return view
}

// inboxView is the per-profile conversation list state.
type inboxView struct {
	mu              sync.Mutex
	accountID       string
	conversations   []models.Conversation
	generation      uint64
	togglesInFlight map[string]bool
}

func (v *inboxView) beginLoad(accountID string) uint64 {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.accountID != accountID {
		v.accountID = accountID
		v.conversations = nil
	}
	v.generation++
	return v.generation
}

func (v *inboxView) completeLoad(gen uint64, list []models.Conversation) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if gen != v.generation {
		return
	}
	v.conversations = list
}

func (v *inboxView) resetIfAccountChanged(accountID string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.accountID == accountID {
		return
	}
	v.accountID = accountID
	v.conversations = nil
	v.generation++
}

func (v *inboxView) snapshot() []models.Conversation {
	v.mu.Lock()
	defer v.mu.Unlock()
	out := make([]models.Conversation, len(v.conversations))
	copy(out, v.conversations)
	return out
}

func (v *inboxView) conversation(id string) *models.Conversation {
	v.mu.Lock()
	defer v.mu.Unlock()
	for i := range v.conversations {
		if v.conversations[i].ID == id {
			conv := v.conversations[i]
			return &conv
		}
	}
	return nil
}

func (v *inboxView) setBotActive(id string, active bool) (previous bool, found bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	for i := range v.conversations {
		if v.conversations[i].ID == id {
			previous = v.conversations[i].BotActive
			v.conversations[i].BotActive = active
			return previous, true
		}
	}
	return false, false
}

func (v *inboxView) beginToggle(id string) bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.togglesInFlight == nil {
		v.togglesInFlight = make(map[string]bool)
	}
	if v.togglesInFlight[id] {
		return false
	}
	v.togglesInFlight[id] = true
	return true
}

func (v *inboxView) endToggle(id string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	delete(v.togglesInFlight, id)
}
