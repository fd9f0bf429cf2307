package conversation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/or-gateway-go/internal/config"
	"github.com/or-gateway-go/internal/models"
	"github.com/sirupsen/logrus"
)

// ErrNotFound is returned when no conversation exists for an id
var ErrNotFound = errors.New("conversation not found")

// Store defines conversation persistence operations. Histories are
// append-only; callers receive copies and hold only the opaque id.
type Store interface {
	Create(ctx context.Context, initial []models.Message) (*models.Conversation, error)
	Get(ctx context.Context, id string) (*models.Conversation, error)
	Append(ctx context.Context, id string, msg models.Message) (*models.Conversation, error)
	List(ctx context.Context) ([]models.ConversationSummary, error)
	Delete(ctx context.Context, id string) (bool, error)
}

// Manager selects and wraps a storage backend
type Manager struct {
	store  Store
	logger *logrus.Logger
}

// NewManager creates a new conversation store manager
func NewManager(cfg *config.ConversationConfig, logger *logrus.Logger) (*Manager, error) {
	var store Store

	switch cfg.Backend {
	case "redis":
		redisStore, err := NewRedisStore(&cfg.Redis, logger)
		if err != nil {
			return nil, err
		}
		store = redisStore
	case "memory", "":
		store = NewMemoryStore(logger)
	default:
		return nil, fmt.Errorf("unsupported conversation backend: %s", cfg.Backend)
	}

	logger.WithField("backend", cfg.Backend).Info("Conversation store initialized")

	return &Manager{store: store, logger: logger}, nil
}

func (m *Manager) Create(ctx context.Context, initial []models.Message) (*models.Conversation, error) {
	return m.store.Create(ctx, initial)
}

func (m *Manager) Get(ctx context.Context, id string) (*models.Conversation, error) {
	return m.store.Get(ctx, id)
}

func (m *Manager) Append(ctx context.Context, id string, msg models.Message) (*models.Conversation, error) {
	return m.store.Append(ctx, id, msg)
}

func (m *Manager) List(ctx context.Context) ([]models.ConversationSummary, error) {
	return m.store.List(ctx)
}

func (m *Manager) Delete(ctx context.Context, id string) (bool, error) {
	return m.store.Delete(ctx, id)
}

// touch computes the next LastUpdatedAt for an append. Wall clock wins,
// but the result is always strictly later than the previous value even
// for rapid successive appends.
func touch(previous time.Time) time.Time {
	now := time.Now()
	if !now.After(previous) {
		return previous.Add(time.Nanosecond)
	}
	return now
}

func cloneConversation(conv *models.Conversation) *models.Conversation {
	clone := *conv
	clone.History = append([]models.Message(nil), conv.History...)
	if conv.Metadata != nil {
		clone.Metadata = make(map[string]string, len(conv.Metadata))
		for k, v := range conv.Metadata {
			clone.Metadata[k] = v
		}
	}
	return &clone
}

func summarize(conv *models.Conversation) models.ConversationSummary {
	return models.ConversationSummary{
		ID:            conv.ID,
		CreatedAt:     conv.CreatedAt,
		LastUpdatedAt: conv.LastUpdatedAt,
		MessageCount:  len(conv.History),
	}
}
