// Package store provides storage backends for coachflow.
//
// This file implements the in-memory store. All state lives in maps guarded by
// a single mutex; every mutating operation executes as a critical section so
// message append order equals arrival order per conversation.
package store

import (
	"log/slog"
	"sync"
	"time"

	"github.com/brandscaling/coachflow/internal/models"
	"github.com/google/uuid"
)

// InMemoryStore keeps all conversations and sessions in process memory.
// Process restart loses all state; persistent backends cover that gap.
type InMemoryStore struct {
	mu            sync.Mutex
	conversations map[string]*models.Conversation
	sessions      map[string]*models.UserSession
}

// NewInMemoryStore creates an empty in-memory store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		conversations: make(map[string]*models.Conversation),
		sessions:      make(map[string]*models.UserSession),
	}
}

// CreateConversation allocates a new conversation record.
func (s *InMemoryStore) CreateConversation(userID string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := uuid.NewString()
	now := time.Now()
	s.conversations[id] = &models.Conversation{
		ID:                id,
		UserID:            userID,
		Messages:          []models.Message{},
		NeedsUpload:       true,
		ChosenAgent:       models.AgentArchitect,
		CurrentAgent:      models.AgentArchitect,
		WorkflowStep:      models.StepInitial,
		CollaborationMode: false,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	slog.Debug("InMemoryStore.CreateConversation succeeded", "conversationID", id, "userID", userID)
	return id, nil
}

// GetConversation returns a copy of the conversation so callers never share
// the store's mutable record.
func (s *InMemoryStore) GetConversation(id string) (*models.Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	conv, ok := s.conversations[id]
	if !ok {
		return nil, ErrConversationNotFound
	}
	return copyConversation(conv), nil
}

// DeleteConversation removes a conversation.
func (s *InMemoryStore) DeleteConversation(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.conversations[id]; !ok {
		return ErrConversationNotFound
	}
	delete(s.conversations, id)
	slog.Debug("InMemoryStore.DeleteConversation succeeded", "conversationID", id)
	return nil
}

// ListUserConversations returns copies of all conversations for a user.
func (s *InMemoryStore) ListUserConversations(userID string) ([]models.Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []models.Conversation
	for _, conv := range s.conversations {
		if conv.UserID == userID {
			out = append(out, *copyConversation(conv))
		}
	}
	return out, nil
}

// CountConversations reports how many conversations are live.
func (s *InMemoryStore) CountConversations() (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.conversations), nil
}

// SetChosenAgent records the caller's explicit persona choice.
func (s *InMemoryStore) SetChosenAgent(id string, agent models.Agent) error {
	if !models.IsValidAgent(agent) {
		return models.ErrInvalidAgent
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	conv, ok := s.conversations[id]
	if !ok {
		return ErrConversationNotFound
	}
	conv.ChosenAgent = agent
	conv.CurrentAgent = agent
	conv.UpdatedAt = time.Now()
	return nil
}

// AttachProfile sets the profile and flips NeedsUpload to false.
func (s *InMemoryStore) AttachProfile(id string, profile models.Profile) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	conv, ok := s.conversations[id]
	if !ok {
		return ErrConversationNotFound
	}
	p := profile
	conv.Profile = &p
	conv.NeedsUpload = false
	conv.UpdatedAt = time.Now()
	slog.Debug("InMemoryStore.AttachProfile succeeded", "conversationID", id, "profileType", profile.Type)
	return nil
}

// AppendMessage appends to the message sequence under the store lock.
func (s *InMemoryStore) AppendMessage(id string, role models.MessageRole, content string, agent models.Agent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	conv, ok := s.conversations[id]
	if !ok {
		return ErrConversationNotFound
	}
	now := time.Now()
	conv.Messages = append(conv.Messages, models.Message{
		Role:      role,
		Content:   content,
		Timestamp: now,
		Agent:     agent,
	})
	conv.UpdatedAt = now
	return nil
}

// SetWorkflowStep records the conversation's position in the turn graph.
func (s *InMemoryStore) SetWorkflowStep(id string, step models.WorkflowStep) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	conv, ok := s.conversations[id]
	if !ok {
		return ErrConversationNotFound
	}
	conv.WorkflowStep = step
	conv.UpdatedAt = time.Now()
	return nil
}

// Summarize derives the conversation digest without storing it.
func (s *InMemoryStore) Summarize(id string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	conv, ok := s.conversations[id]
	if !ok {
		return "", ErrConversationNotFound
	}
	return models.SummarizeMessages(conv.Messages), nil
}

// UpdateSummary stores the derived digest on the conversation record.
func (s *InMemoryStore) UpdateSummary(id string, summary string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	conv, ok := s.conversations[id]
	if !ok {
		return ErrConversationNotFound
	}
	conv.Summary = summary
	conv.UpdatedAt = time.Now()
	return nil
}

// SweepConversations removes conversations whose UpdatedAt is older than the cutoff.
func (s *InMemoryStore) SweepConversations(maxAge time.Duration) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := time.Now().Add(-maxAge)
	removed := 0
	for id, conv := range s.conversations {
		if conv.UpdatedAt.Before(cutoff) {
			delete(s.conversations, id)
			removed++
		}
	}
	if removed > 0 {
		slog.Info("InMemoryStore.SweepConversations removed stale conversations", "count", removed, "maxAge", maxAge)
	}
	return removed, nil
}

// SaveSession upserts a user session.
func (s *InMemoryStore) SaveSession(session models.UserSession) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess := session
	s.sessions[models.SessionKey(session.UserID)] = &sess
	return nil
}

// GetSession returns a copy of the session for a user, or nil when absent.
func (s *InMemoryStore) GetSession(userID string) (*models.UserSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[models.SessionKey(userID)]
	if !ok {
		return nil, nil
	}
	out := *sess
	if sess.Profile != nil {
		p := *sess.Profile
		out.Profile = &p
	}
	return &out, nil
}

// Close is a no-op for the in-memory store.
func (s *InMemoryStore) Close() error {
	return nil
}

// copyConversation returns a deep copy so callers cannot mutate stored state.
func copyConversation(conv *models.Conversation) *models.Conversation {
	out := *conv
	out.Messages = make([]models.Message, len(conv.Messages))
	copy(out.Messages, conv.Messages)
	if conv.Profile != nil {
		p := *conv.Profile
		out.Profile = &p
	}
	return &out
}
