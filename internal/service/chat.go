package service

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"autosms-dashboard/backend/internal/bridge"
	"autosms-dashboard/backend/internal/models"
	"autosms-dashboard/backend/internal/repository"
	"autosms-dashboard/backend/internal/session"
	"autosms-dashboard/backend/pkg/errors"
	"autosms-dashboard/backend/pkg/logger"

	"github.com/google/uuid"
)

// LoadState describes what the message list is doing. An initial load for a
// newly selected conversation starts from an empty list; a refresh keeps the
// existing messages on screen until the new ones arrive.
type LoadState string

const (
	LoadStateReady      LoadState = "ready"
	LoadStateLoading    LoadState = "loading"
	LoadStateRefreshing LoadState = "refreshing"
)

// touchTimeout bounds the fire-and-forget last_interaction update after a
// successful send.
const touchTimeout = 5 * time.Second

// MessageList is a message-list snapshot together with its load state.
type MessageList struct {
	Messages []models.Message `json:"messages"`
	State    LoadState        `json:"state"`
}

// ChatService maintains one message view per profile, following the session
// store's active conversation. Sends are optimistic: the outgoing message is
// appended as soon as the bridge accepts it, and the database mirror write is
// best-effort.
type ChatService struct {
	messages      repository.MessageRepository
	conversations repository.ConversationRepository
	bridge        *bridge.Client
	sessions      *session.Manager
	log           *logger.Logger

	mu    sync.Mutex
	views map[string]*chatView
}

func NewChatService(
	messages repository.MessageRepository,
	conversations repository.ConversationRepository,
	bridgeClient *bridge.Client,
	sessions *session.Manager,
	log *logger.Logger,
) *ChatService {
	return &ChatService{
		messages:      messages,
		conversations: conversations,
		bridge:        bridgeClient,
		sessions:      sessions,
		log:           log,
		views:         make(map[string]*chatView),
	}
}

// Load fetches the active conversation's messages, oldest first. A fetch
// whose conversation is no longer the active one by the time it returns is
// discarded. On failure the previous list is kept and a retryable error is
// returned.
func (s *ChatService) Load(ctx context.Context, profileID string, refresh bool) (*MessageList, error) {
	store := s.sessions.ForProfile(ctx, profileID)
	conv := store.ActiveConversation()
	if conv == nil {
		return nil, errors.NewNoActiveSelectionError("No conversation selected")
	}

	view := s.viewFor(profileID)
	gen := view.beginLoad(conv.ID, refresh)

	list, err := s.messages.ListByChat(ctx, conv.ID)
	if err != nil {
		view.failLoad(gen)
		s.log.Error("message fetch failed", "conversationId", conv.ID, "error", err)
		return nil, errors.NewTransientLoadError("Failed to load messages")
	}

	view.completeLoad(gen, conv.ID, list)
	return view.snapshot(), nil
}

// Snapshot returns the current view without fetching.
func (s *ChatService) Snapshot(ctx context.Context, profileID string) (*MessageList, error) {
	store := s.sessions.ForProfile(ctx, profileID)
	if store.ActiveConversation() == nil {
		return nil, errors.NewNoActiveSelectionError("No conversation selected")
	}
	return s.viewFor(profileID).snapshot(), nil
}

// SetDraft replaces the profile's composer text.
func (s *ChatService) SetDraft(profileID, text string) {
	s.viewFor(profileID).setDraft(text)
}

// Draft returns the profile's composer text.
func (s *ChatService) Draft(profileID string) string {
	return s.viewFor(profileID).draftText()
}

// Send delivers the current draft to the active conversation's participant as
// a human-agent message. A whitespace-only draft is a no-op and leaves the
// composer untouched. The draft is cleared before the bridge call; if the
// bridge rejects the send, the exact text is restored and the message list is
// left unchanged.
func (s *ChatService) Send(ctx context.Context, profileID string) (*models.Message, error) {
	store := s.sessions.ForProfile(ctx, profileID)
	conv := store.ActiveConversation()
	if conv == nil {
		return nil, errors.NewNoActiveSelectionError("No conversation selected")
	}

	view := s.viewFor(profileID)

	text := strings.TrimSpace(view.draftText())
	if text == "" {
		return nil, nil
	}

	if !view.beginSend() {
		return nil, errors.NewConflictError(errors.CodeSendInFlight, "A send is already in progress")
	}
	defer view.endSend()

	restore := view.takeDraft()

	result, err := s.bridge.SendHumanAgent(ctx, conv.ID, conv.ParticipantSID, text)
	if err != nil {
		view.setDraft(restore)
		if appErr := errors.FromError(err); appErr.Code == errors.CodeBridgeFailure {
			return nil, appErr.WithDetails(map[string]string{"restored_draft": restore})
		}
		return nil, errors.NewBridgeFailureError("Failed to send message", map[string]string{"restored_draft": restore})
	}

	msg := s.buildOutgoing(conv, profileID, text, result)
	view.append(conv.ID, *msg)

	// The bridge delivered it; a failed mirror write only loses history.
	if err := s.messages.Create(ctx, msg); err != nil {
		s.log.Error("message mirror write failed", "conversationId", conv.ID, "error", err)
	}

	s.touchLastInteraction(ctx, conv.ID)

	return msg, nil
}

func (s *ChatService) buildOutgoing(conv *models.Conversation, profileID, text string, result *bridge.SendResult) *models.Message {
	now := time.Now()

	externalID := ""
	recipient := conv.ParticipantSID
	if result != nil {
		externalID = result.MessageID
		if result.RecipientID != "" {
			recipient = result.RecipientID
		}
	}
	if externalID == "" {
		externalID = fmt.Sprintf("local-%d", now.UnixMilli())
	}

	return &models.Message{
		ID:          uuid.New().String(),
		ChatID:      conv.ID,
		ExternalID:  externalID,
		SenderID:    profileID,
		RecipientID: recipient,
		Direction:   models.DirectionHumanAgent,
		ContentType: models.ContentTypeText,
		Timestamp:   now.UnixMilli(),
		Metadata:    models.JSONMap{"text": text},
		CreatedAt:   now,
	}
}

// touchLastInteraction bumps the conversation's recency marker without
// holding up the send response. The parent context may be gone by the time
// the update runs.
func (s *ChatService) touchLastInteraction(ctx context.Context, conversationID string) {
	touchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), touchTimeout)
	go func() {
		defer cancel()
		if err := s.conversations.TouchLastInteraction(touchCtx, conversationID, time.Now()); err != nil {
			s.log.Warn("last_interaction update failed", "conversationId", conversationID, "error", err)
		}
	}()
}

func (s *ChatService) viewFor(profileID string) *chatView {
	s.mu.Lock()
	defer s.mu.Unlock()
	view, ok := s.views[profileID]
	if !ok {
		view = &chatView{state: LoadStateReady}
		s.views[profileID] = view
	}
	return view
}

// chatView is the per-profile message list state.
type chatView struct {
	mu           sync.Mutex
	chatID       string
	messages     []models.Message
	state        LoadState
	generation   uint64
	draft        string
	sendInFlight bool
}

func (v *chatView) beginLoad(chatID string, refresh bool) uint64 {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.chatID != chatID {
		// A different conversation always starts from scratch.
		v.chatID = chatID
		v.messages = nil
		refresh = false
	}
	if refresh {
		v.state = LoadStateRefreshing
	} else {
		v.state = LoadStateLoading
		v.messages = nil
	}
	v.generation++
	return v.generation
}

func (v *chatView) completeLoad(gen uint64, chatID string, list []models.Message) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if gen != v.generation || v.chatID != chatID {
		return
	}
	v.messages = list
	v.state = LoadStateReady
}

func (v *chatView) failLoad(gen uint64) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if gen != v.generation {
		return
	}
	v.state = LoadStateReady
}

func (v *chatView) snapshot() *MessageList {
	v.mu.Lock()
	defer v.mu.Unlock()
	out := make([]models.Message, len(v.messages))
	copy(out, v.messages)
	return &MessageList{Messages: out, State: v.state}
}

func (v *chatView) append(chatID string, msg models.Message) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.chatID != chatID {
		return
	}
	v.messages = append(v.messages, msg)
}

func (v *chatView) setDraft(text string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.draft = text
}

func (v *chatView) draftText() string {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.draft
}

func (v *chatView) takeDraft() string {
	v.mu.Lock()
	defer v.mu.Unlock()
	text := v.draft
	v.draft = ""
	return text
}

func (v *chatView) beginSend() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.sendInFlight {
		return false
	}
	v.sendInFlight = true
	return true
}

func (v *chatView) endSend() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.sendInFlight = false
}
