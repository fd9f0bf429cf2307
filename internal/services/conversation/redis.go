package conversation

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"github.com/or-gateway-go/internal/config"
	"github.com/or-gateway-go/internal/models"
	"github.com/sirupsen/logrus"
)

const indexKey = "conversations:index"

// RedisStore persists conversations in Redis for deployments that want
// history to survive restarts. A per-store mutex serializes the
// read-modify-write append path.
type RedisStore struct {
	client *redis.Client
	mu     sync.Mutex
	logger *logrus.Logger
}

// NewRedisStore creates a Redis-backed conversation store
func NewRedisStore(cfg *config.RedisConfig, logger *logrus.Logger) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &RedisStore{
		client: client,
		logger: logger,
	}, nil
}

func conversationKey(id string) string {
	return fmt.Sprintf("conversation:%s", id)
}

func (s *RedisStore) Create(ctx context.Context, initial []models.Message) (*models.Conversation, error) {
	now := time.Now()
	conv := &models.Conversation{
		ID:            uuid.NewString(),
		History:       append([]models.Message(nil), initial...),
		CreatedAt:     now,
		LastUpdatedAt: now,
	}

	if err := s.save(ctx, conv); err != nil {
		return nil, err
	}
	if err := s.client.RPush(ctx, indexKey, conv.ID).Err(); err != nil {
		return nil, err
	}

	s.logger.WithField("conversation_id", conv.ID).Debug("Conversation created")
	return conv, nil
}

func (s *RedisStore) Get(ctx context.Context, id string) (*models.Conversation, error) {
	data, err := s.client.Get(ctx, conversationKey(id)).Result()
	if err == redis.Nil {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	var conv models.Conversation
	if err := json.Unmarshal([]byte(data), &conv); err != nil {
		return nil, err
	}
	return &conv, nil
}

func (s *RedisStore) Append(ctx context.Context, id string, msg models.Message) (*models.Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	conv, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	now := touch(conv.LastUpdatedAt)
	if msg.Timestamp.IsZero() {
		msg.Timestamp = now
	}
	conv.History = append(conv.History, msg)
	conv.LastUpdatedAt = now

	if err := s.save(ctx, conv); err != nil {
		return nil, err
	}
	return conv, nil
}

func (s *RedisStore) List(ctx context.Context) ([]models.ConversationSummary, error) {
	ids, err := s.client.LRange(ctx, indexKey, 0, -1).Result()
	if err != nil {
		return nil, err
	}

	summaries := make([]models.ConversationSummary, 0, len(ids))
	for _, id := range ids {
		conv, err := s.Get(ctx, id)
		if err == ErrNotFound {
			continue
		}
		if err != nil {
			return nil, err
		}
		summaries = append(summaries, summarize(conv))
	}
	return summaries, nil
}

func (s *RedisStore) Delete(ctx context.Context, id string) (bool, error) {
	removed, err := s.client.Del(ctx, conversationKey(id)).Result()
	if err != nil {
		return false, err
	}
	if removed == 0 {
		return false, nil
	}

	if err := s.client.LRem(ctx, indexKey, 0, id).Err(); err != nil {
		return false, err
	}

	s.logger.WithField("conversation_id", id).Debug("Conversation deleted")
	return true, nil
}

func (s *RedisStore) save(ctx context.Context, conv *models.Conversation) error {
	data, err := json.Marshal(conv)
	if err != nil {
		return err
	}
	// No expiration: conversations are destroyed only by explicit deletion
	return s.client.Set(ctx, conversationKey(conv.ID), data, 0).Err()
}
