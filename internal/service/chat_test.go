package service

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"autosms-dashboard/backend/internal/bridge"
	"autosms-dashboard/backend/internal/models"
	"autosms-dashboard/backend/internal/session"
	"autosms-dashboard/backend/pkg/config"
	apperrors "autosms-dashboard/backend/pkg/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeMessageRepo struct {
	mu        sync.Mutex
	byChat    map[string][]models.Message
	listErr   error
	createErr error
	created   []models.Message
	onList    func()
}

func (r *fakeMessageRepo) ListByChat(_ context.Context, chatID string) ([]models.Message, error) {
	if r.onList != nil {
		r.onList()
	}
	if r.listErr != nil {
		return nil, r.listErr
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.byChat[chatID], nil
}

func (r *fakeMessageRepo) Create(_ context.Context, message *models.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.createErr != nil {
		return r.createErr
	}
	r.created = append(r.created, *message)
	return nil
}

func (r *fakeMessageRepo) createdCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.created)
}

func bridgeFor(t *testing.T, handler http.HandlerFunc) *bridge.Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	cfg := &config.Config{}
	cfg.Bridge.InstagramAPIURL = srv.URL
	cfg.Bridge.ConnectURL = srv.URL
	cfg.Bridge.Timeout = 5 * time.Second

	return bridge.NewClient(cfg, testLogger())
}

func chatFixture(t *testing.T, messages *fakeMessageRepo, conversations *fakeConversationRepo, handler http.HandlerFunc) (*ChatService, *session.Manager) {
	t.Helper()
	sessions := session.NewManager(nil, testLogger())
	svc := NewChatService(messages, conversations, bridgeFor(t, handler), sessions, testLogger())
	return svc, sessions
}

func selectConversation(t *testing.T, sessions *session.Manager, profileID string, conv *models.Conversation) {
	t.Helper()
	store := sessions.ForProfile(context.Background(), profileID)
	store.SetActiveAccount(context.Background(), &models.Account{ID: conv.AccountID, ProfileID: profileID, Status: models.AccountStatusActive})
	store.SetActiveConversation(context.Background(), conv)
}

func activeConversation() *models.Conversation {
	return &models.Conversation{
		ID:             "chat-1",
		AccountID:      "acc-1",
		ParticipantSID: "psid-1",
		Status:         models.ConversationStatusActive,
		BotActive:      true,
	}
}

func TestChatLoadWithoutConversation(t *testing.T) {
	svc, _ := chatFixture(t, &fakeMessageRepo{}, &fakeConversationRepo{}, func(w http.ResponseWriter, r *http.Request) {})

	_, err := svc.Load(context.Background(), "profile-1", false)
	require.Error(t, err)
	assert.Equal(t, apperrors.CodeNoActiveSelection, apperrors.FromError(err).Code)
}

func TestChatLoadStates(t *testing.T) {
	repo := &fakeMessageRepo{byChat: map[string][]models.Message{
		"chat-1": {{ID: "m1", ChatID: "chat-1", Direction: models.DirectionIncoming, Metadata: models.JSONMap{"text": "hi"}}},
	}}
	svc, sessions := chatFixture(t, repo, &fakeConversationRepo{}, func(w http.ResponseWriter, r *http.Request) {})
	selectConversation(t, sessions, "profile-1", activeConversation())

	list, err := svc.Load(context.Background(), "profile-1", false)
	require.NoError(t, err)
	assert.Equal(t, LoadStateReady, list.State)
	require.Len(t, list.Messages, 1)

	// A failed refresh keeps the previous messages visible
	repo.listErr = errors.New("db down")
	_, err = svc.Load(context.Background(), "profile-1", true)
	require.Error(t, err)
	assert.Equal(t, apperrors.CodeTransientLoadFailure, apperrors.FromError(err).Code)

	snap, err := svc.Snapshot(context.Background(), "profile-1")
	require.NoError(t, err)
	assert.Len(t, snap.Messages, 1)
	assert.Equal(t, LoadStateReady, snap.State)
}

func TestChatConversationSwitchDiscardsStaleFetch(t *testing.T) {
	first := activeConversation()
	second := &models.Conversation{ID: "chat-2", AccountID: "acc-1", ParticipantSID: "psid-2", Status: models.ConversationStatusActive}

	repo := &fakeMessageRepo{byChat: map[string][]models.Message{
		"chat-1": {{ID: "m1", ChatID: "chat-1"}},
		"chat-2": {{ID: "m2", ChatID: "chat-2"}},
	}}
	svc, sessions := chatFixture(t, repo, &fakeConversationRepo{}, func(w http.ResponseWriter, r *http.Request) {})
	selectConversation(t, sessions, "profile-1", first)

	// The user switches threads while the first fetch is in flight. Its
	// response belongs to a conversation that is no longer on screen.
	repo.onList = func() {
		repo.onList = nil
		sessions.ForProfile(context.Background(), "profile-1").SetActiveConversation(context.Background(), second)
		_, err := svc.Load(context.Background(), "profile-1", false)
		require.NoError(t, err)
	}

	_, err := svc.Load(context.Background(), "profile-1", false)
	require.NoError(t, err)

	snap, err := svc.Snapshot(context.Background(), "profile-1")
	require.NoError(t, err)
	require.Len(t, snap.Messages, 1)
	assert.Equal(t, "m2", snap.Messages[0].ID, "the stale response must not replace the new thread")
}

func TestSendEmptyDraftIsNoOp(t *testing.T) {
	var hits int
	svc, sessions := chatFixture(t, &fakeMessageRepo{byChat: map[string][]models.Message{}}, &fakeConversationRepo{}, func(w http.ResponseWriter, r *http.Request) {
		hits++
	})
	selectConversation(t, sessions, "profile-1", activeConversation())

	svc.SetDraft("profile-1", "   \n\t ")
	msg, err := svc.Send(context.Background(), "profile-1")
	require.NoError(t, err)
	assert.Nil(t, msg)
	assert.Zero(t, hits, "no network call for an empty draft")
	assert.Equal(t, "   \n\t ", svc.Draft("profile-1"), "the composer is left untouched")
}

func TestSendSuccessAppendsOneMessage(t *testing.T) {
	repo := &fakeMessageRepo{byChat: map[string][]models.Message{"chat-1": {}}}
	conversations := &fakeConversationRepo{byAccount: map[string][]models.Conversation{}}
	svc, sessions := chatFixture(t, repo, conversations, func(w http.ResponseWriter, r *http.Request) {
		var payload map[string]string
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		assert.Equal(t, "chat-1", payload["chatId"])
		assert.Equal(t, "psid-1", payload["recipientPsid"])
		assert.Equal(t, "hello there", payload["message"])
		json.NewEncoder(w).Encode(map[string]string{"message_id": "mid-1", "recipient_id": "psid-1"})
	})
	selectConversation(t, sessions, "profile-1", activeConversation())

	_, err := svc.Load(context.Background(), "profile-1", false)
	require.NoError(t, err)

	svc.SetDraft("profile-1", "hello there")
	msg, err := svc.Send(context.Background(), "profile-1")
	require.NoError(t, err)
	require.NotNil(t, msg)

	assert.Equal(t, "mid-1", msg.ExternalID)
	assert.Equal(t, models.DirectionHumanAgent, msg.Direction)
	assert.Equal(t, "hello there", msg.Text())
	assert.Equal(t, "", svc.Draft("profile-1"))

	snap, err := svc.Snapshot(context.Background(), "profile-1")
	require.NoError(t, err)
	assert.Len(t, snap.Messages, 1, "exactly one message is appended per send")

	assert.Equal(t, 1, repo.createdCount(), "the send is mirrored to storage")
}

func TestSendFallsBackToLocalID(t *testing.T) {
	repo := &fakeMessageRepo{byChat: map[string][]models.Message{"chat-1": {}}}
	svc, sessions := chatFixture(t, repo, &fakeConversationRepo{}, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK) // accepted, but no body to parse
	})
	selectConversation(t, sessions, "profile-1", activeConversation())

	svc.SetDraft("profile-1", "hello")
	msg, err := svc.Send(context.Background(), "profile-1")
	require.NoError(t, err)
	require.NotNil(t, msg)
	assert.True(t, strings.HasPrefix(msg.ExternalID, "local-"), "got %q", msg.ExternalID)
	assert.Equal(t, "psid-1", msg.RecipientID)
}

func TestSendFailureRestoresDraft(t *testing.T) {
	repo := &fakeMessageRepo{byChat: map[string][]models.Message{"chat-1": {}}}
	svc, sessions := chatFixture(t, repo, &fakeConversationRepo{}, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		json.NewEncoder(w).Encode(map[string]string{"error": "dispatch unavailable"})
	})
	selectConversation(t, sessions, "profile-1", activeConversation())

	_, err := svc.Load(context.Background(), "profile-1", false)
	require.NoError(t, err)

	const draft = "  hello with padding  "
	svc.SetDraft("profile-1", draft)

	_, err = svc.Send(context.Background(), "profile-1")
	require.Error(t, err)
	assert.Equal(t, apperrors.CodeBridgeFailure, apperrors.FromError(err).Code)

	assert.Equal(t, draft, svc.Draft("profile-1"), "the exact text comes back, padding included")

	snap, err := svc.Snapshot(context.Background(), "profile-1")
	require.NoError(t, err)
	assert.Empty(t, snap.Messages, "nothing is appended on a failed send")
	assert.Zero(t, repo.createdCount())
}

func TestSendMirrorFailureIsNotFatal(t *testing.T) {
	repo := &fakeMessageRepo{
		byChat:    map[string][]models.Message{"chat-1": {}},
		createErr: errors.New("insert failed"),
	}
	svc, sessions := chatFixture(t, repo, &fakeConversationRepo{}, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"message_id": "mid-1"})
	})
	selectConversation(t, sessions, "profile-1", activeConversation())

	svc.SetDraft("profile-1", "hello")
	msg, err := svc.Send(context.Background(), "profile-1")
	require.NoError(t, err, "the participant already received the message")
	require.NotNil(t, msg)
}
