package conversation

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/or-gateway-go/internal/models"
	"github.com/sirupsen/logrus"
)

// MemoryStore keeps conversations in process memory. One mutex covers
// the map and the insertion-order index, so appends to the same id are
// serialized and List reflects creation order.
type MemoryStore struct {
	mu            sync.Mutex
	conversations map[string]*models.Conversation
	order         []string
	logger        *logrus.Logger
}

// NewMemoryStore creates an in-memory conversation store
func NewMemoryStore(logger *logrus.Logger) *MemoryStore {
	return &MemoryStore{
		conversations: make(map[string]*models.Conversation),
		logger:        logger,
	}
}

func (s *MemoryStore) Create(ctx context.Context, initial []models.Message) (*models.Conversation, error) {
	now := time.Now()
	conv := &models.Conversation{
		ID:            uuid.NewString(),
		History:       append([]models.Message(nil), initial...),
		CreatedAt:     now,
		LastUpdatedAt: now,
	}

	s.mu.Lock()
	s.conversations[conv.ID] = conv
	s.order = append(s.order, conv.ID)
	s.mu.Unlock()

	s.logger.WithFields(logrus.Fields{
		"conversation_id": conv.ID,
		"initial":         len(initial),
	}).Debug("Conversation created")

	return cloneConversation(conv), nil
}

func (s *MemoryStore) Get(ctx context.Context, id string) (*models.Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	conv, exists := s.conversations[id]
	if !exists {
		return nil, ErrNotFound
	}
	return cloneConversation(conv), nil
}

func (s *MemoryStore) Append(ctx context.Context, id string, msg models.Message) (*models.Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	conv, exists := s.conversations[id]
	if !exists {
		return nil, ErrNotFound
	}

	now := touch(conv.LastUpdatedAt)
	if msg.Timestamp.IsZero() {
		msg.Timestamp = now
	}
	conv.History = append(conv.History, msg)
	conv.LastUpdatedAt = now

	return cloneConversation(conv), nil
}

func (s *MemoryStore) List(ctx context.Context) ([]models.ConversationSummary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	summaries := make([]models.ConversationSummary, 0, len(s.order))
	for _, id := range s.order {
		if conv, exists := s.conversations[id]; exists {
			summaries = append(summaries, summarize(conv))
		}
	}
	return summaries, nil
}

func (s *MemoryStore) Delete(ctx context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.conversations[id]; !exists {
		return false, nil
	}

	delete(s.conversations, id)
	for i, existing := range s.order {
		if existing == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}

	s.logger.WithField("conversation_id", id).Debug("Conversation deleted")
	return true, nil
}
