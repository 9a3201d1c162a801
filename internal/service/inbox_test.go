package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"autosms-dashboard/backend/internal/models"
	"autosms-dashboard/backend/internal/session"
	apperrors "autosms-dashboard/backend/pkg/errors"
	"autosms-dashboard/backend/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *logger.Logger {
	cfg := logger.DefaultConfig()
	cfg.Level = "error"
	return logger.New(cfg)
}

type fakeConversationRepo struct {
	mu         sync.Mutex
	byAccount  map[string][]models.Conversation
	listErr    error
	setErr     error
	setCalls   []string
	touchCalls []string
	onList     func()
	setGate    chan struct{}
}

func (r *fakeConversationRepo) ListActiveByAccount(_ context.Context, accountRawID string) ([]models.Conversation, error) {
	if r.onList != nil {
		r.onList()
	}
	if r.listErr != nil {
		return nil, r.listErr
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.byAccount[accountRawID], nil
}

func (r *fakeConversationRepo) GetByID(_ context.Context, id string) (*models.Conversation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, list := range r.byAccount {
		for i := range list {
			if list[i].ID == id {
				conv := list[i]
				return &conv, nil
			}
		}
	}
	return nil, errors.New("not found")
}

func (r *fakeConversationRepo) SetBotActive(_ context.Context, id string, active bool) error {
	if r.setGate != nil {
		<-r.setGate
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.setCalls = append(r.setCalls, id)
	return r.setErr
}

func (r *fakeConversationRepo) TouchLastInteraction(_ context.Context, id string, _ time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.touchCalls = append(r.touchCalls, id)
	return nil
}

func conversationWith(id, accountID, name, username string, botActive bool, lastInteraction time.Time) models.Conversation {
	return models.Conversation{
		ID:              id,
		AccountID:       accountID,
		ParticipantSID:  "psid-" + id,
		Status:          models.ConversationStatusActive,
		BotActive:       botActive,
		LastInteraction: lastInteraction,
		Metadata: models.JSONMap{
			"participantProfile": map[string]interface{}{
				"name":     name,
				"username": username,
			},
		},
	}
}

func inboxFixture(t *testing.T, repo *fakeConversationRepo) (*InboxService, *session.Manager) {
	t.Helper()
	sessions := session.NewManager(nil, testLogger())
	svc := NewInboxService(repo, sessions, 7*24*time.Hour, testLogger())
	return svc, sessions
}

func selectAccount(t *testing.T, sessions *session.Manager, profileID, accountID string) {
	t.Helper()
	store := sessions.ForProfile(context.Background(), profileID)
	store.SetActiveAccount(context.Background(), &models.Account{ID: accountID, ProfileID: profileID, Status: models.AccountStatusActive})
}

func TestInboxLoadWithoutAccount(t *testing.T) {
	svc, _ := inboxFixture(t, &fakeConversationRepo{})

	_, err := svc.Load(context.Background(), "profile-1")
	require.Error(t, err)
	assert.Equal(t, apperrors.CodeNoActiveSelection, apperrors.FromError(err).Code)
}

func TestInboxLoadFailureKeepsPreviousList(t *testing.T) {
	now := time.Now()
	repo := &fakeConversationRepo{byAccount: map[string][]models.Conversation{
		"acc-1": {conversationWith("chat-1", "acc-1", "Sarah Johnson", "sarahj", true, now)},
	}}
	svc, sessions := inboxFixture(t, repo)
	selectAccount(t, sessions, "profile-1", "acc-1")

	first, err := svc.Load(context.Background(), "profile-1")
	require.NoError(t, err)
	require.Len(t, first, 1)

	repo.listErr = errors.New("db down")
	_, err = svc.Load(context.Background(), "profile-1")
	require.Error(t, err)
	assert.Equal(t, apperrors.CodeTransientLoadFailure, apperrors.FromError(err).Code)

	// The cached list survives the failed refresh
	cached := svc.Filter(context.Background(), "profile-1", "", FilterAll)
	assert.Len(t, cached, 1)
}

func TestInboxSearchIsCaseInsensitive(t *testing.T) {
	now := time.Now()
	repo := &fakeConversationRepo{byAccount: map[string][]models.Conversation{
		"acc-1": {
			conversationWith("chat-1", "acc-1", "Sarah Johnson", "sarahj", true, now),
			conversationWith("chat-2", "acc-1", "Mike Peters", "mikep", true, now),
		},
	}}
	svc, sessions := inboxFixture(t, repo)
	selectAccount(t, sessions, "profile-1", "acc-1")
	_, err := svc.Load(context.Background(), "profile-1")
	require.NoError(t, err)

	got := svc.Filter(context.Background(), "profile-1", "SARA", FilterAll)
	require.Len(t, got, 1)
	assert.Equal(t, "chat-1", got[0].ID)

	// Handle matches too
	got = svc.Filter(context.Background(), "profile-1", "mikep", FilterAll)
	require.Len(t, got, 1)
	assert.Equal(t, "chat-2", got[0].ID)
}

func TestInboxCustomersFilter(t *testing.T) {
	now := time.Now()
	withCustomer := conversationWith("chat-1", "acc-1", "Sarah Johnson", "sarahj", true, now)
	withCustomer.Metadata["customer"] = map[string]interface{}{"email": "sarah@example.com"}
	emptyCustomer := conversationWith("chat-2", "acc-1", "Mike Peters", "mikep", true, now)
	emptyCustomer.Metadata["customer"] = map[string]interface{}{}
	noCustomer := conversationWith("chat-3", "acc-1", "Ana Ruiz", "anar", true, now)

	repo := &fakeConversationRepo{byAccount: map[string][]models.Conversation{
		"acc-1": {withCustomer, emptyCustomer, noCustomer},
	}}
	svc, sessions := inboxFixture(t, repo)
	selectAccount(t, sessions, "profile-1", "acc-1")
	_, err := svc.Load(context.Background(), "profile-1")
	require.NoError(t, err)

	got := svc.Filter(context.Background(), "profile-1", "", FilterCustomers)
	require.Len(t, got, 1, "an empty customer object is not a customer")
	assert.Equal(t, "chat-1", got[0].ID)
}

func TestInboxRecentFilterBoundary(t *testing.T) {
	window := 7 * 24 * time.Hour
	now := time.Now()

	inside := conversationWith("chat-1", "acc-1", "Sarah Johnson", "sarahj", true, now.Add(-window+time.Minute))
	outside := conversationWith("chat-2", "acc-1", "Mike Peters", "mikep", true, now.Add(-window-time.Hour))

	repo := &fakeConversationRepo{byAccount: map[string][]models.Conversation{
		"acc-1": {inside, outside},
	}}
	sessions := session.NewManager(nil, testLogger())
	svc := NewInboxService(repo, sessions, window, testLogger())
	selectAccount(t, sessions, "profile-1", "acc-1")
	_, err := svc.Load(context.Background(), "profile-1")
	require.NoError(t, err)

	got := svc.Filter(context.Background(), "profile-1", "", FilterRecent)
	require.Len(t, got, 1)
	assert.Equal(t, "chat-1", got[0].ID)
}

func TestToggleAutomationOptimisticRevert(t *testing.T) {
	now := time.Now()
	repo := &fakeConversationRepo{
		byAccount: map[string][]models.Conversation{
			"acc-1": {conversationWith("chat-1", "acc-1", "Sarah Johnson", "sarahj", true, now)},
		},
		setErr: errors.New("write failed"),
	}
	svc, sessions := inboxFixture(t, repo)
	selectAccount(t, sessions, "profile-1", "acc-1")
	_, err := svc.Load(context.Background(), "profile-1")
	require.NoError(t, err)

	_, err = svc.ToggleAutomation(context.Background(), "profile-1", "chat-1", false)
	require.Error(t, err)
	assert.Equal(t, apperrors.CodeBridgeFailure, apperrors.FromError(err).Code)

	// The optimistic flip was rolled back
	got := svc.Filter(context.Background(), "profile-1", "", FilterAll)
	require.Len(t, got, 1)
	assert.True(t, got[0].BotActive)
}

func TestToggleAutomationSuccess(t *testing.T) {
	now := time.Now()
	repo := &fakeConversationRepo{byAccount: map[string][]models.Conversation{
		"acc-1": {conversationWith("chat-1", "acc-1", "Sarah Johnson", "sarahj", true, now)},
	}}
	svc, sessions := inboxFixture(t, repo)
	selectAccount(t, sessions, "profile-1", "acc-1")
	_, err := svc.Load(context.Background(), "profile-1")
	require.NoError(t, err)

	updated, err := svc.ToggleAutomation(context.Background(), "profile-1", "chat-1", false)
	require.NoError(t, err)
	assert.False(t, updated.BotActive)
	assert.Equal(t, []string{"chat-1"}, repo.setCalls)
}

func TestToggleAutomationInFlightGuard(t *testing.T) {
	now := time.Now()
	repo := &fakeConversationRepo{
		byAccount: map[string][]models.Conversation{
			"acc-1": {conversationWith("chat-1", "acc-1", "Sarah Johnson", "sarahj", true, now)},
		},
		setGate: make(chan struct{}),
	}
	svc, sessions := inboxFixture(t, repo)
	selectAccount(t, sessions, "profile-1", "acc-1")
	_, err := svc.Load(context.Background(), "profile-1")
	require.NoError(t, err)

	started := make(chan struct{})
	done := make(chan struct{})
	go func() {
		close(started)
		_, _ = svc.ToggleAutomation(context.Background(), "profile-1", "chat-1", false)
		close(done)
	}()

	<-started
	// Give the first toggle time to take the guard before the write unblocks
	time.Sleep(20 * time.Millisecond)

	_, err = svc.ToggleAutomation(context.Background(), "profile-1", "chat-1", true)
	require.Error(t, err)
	assert.Equal(t, apperrors.CodeToggleInFlight, apperrors.FromError(err).Code)

	close(repo.setGate)
	<-done
}

func TestInboxAccountSwitchDiscardsStaleFetch(t *testing.T) {
	now := time.Now()
	repo := &fakeConversationRepo{byAccount: map[string][]models.Conversation{
		"acc-1": {conversationWith("chat-1", "acc-1", "Sarah Johnson", "sarahj", true, now)},
		"acc-2": {conversationWith("chat-2", "acc-2", "Mike Peters", "mikep", true, now)},
	}}
	svc, sessions := inboxFixture(t, repo)
	selectAccount(t, sessions, "profile-1", "acc-1")

	// Switch accounts while the first fetch is in flight; its response is
	// stale by the time it lands and must not be installed.
	repo.onList = func() {
		repo.onList = nil
		selectAccount(t, sessions, "profile-1", "acc-2")
	}

	_, err := svc.Load(context.Background(), "profile-1")
	require.NoError(t, err)

	cached := svc.Filter(context.Background(), "profile-1", "", FilterAll)
	assert.Empty(t, cached, "the superseded fetch must not populate the new account's view")

	// A fresh load for the new account fills the view
	list, err := svc.Load(context.Background(), "profile-1")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "chat-2", list[0].ID)
}
