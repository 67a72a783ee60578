package chatstore

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"

	"github.com/go-go-golems/coachchat/pkg/chat"
)

const DefaultRedisKeyPrefix = "history:"

// RedisHistoryStore keeps each user's log in a Redis list of JSON messages,
// oldest on the left.
type RedisHistoryStore struct {
	client      redis.UniversalClient
	keyPrefix   string
	maxMessages int
	ownsClient  bool
}

var _ HistoryStore = &RedisHistoryStore{}

func NewRedisHistoryStore(client redis.UniversalClient, keyPrefix string, maxMessages int) (*RedisHistoryStore, error) {
	if client == nil {
		return nil, errors.New("redis history store: client is nil")
	}
	if keyPrefix == "" {
		keyPrefix = DefaultRedisKeyPrefix
	}
	return &RedisHistoryStore{
		client:      client,
		keyPrefix:   keyPrefix,
		maxMessages: normalizeMaxMessages(maxMessages),
	}, nil
}

func (s *RedisHistoryStore) Key(userID string) string {
	return s.keyPrefix + strings.TrimSpace(userID)
}

func (s *RedisHistoryStore) Close() error {
	if s == nil || s.client == nil || !s.ownsClient {
		return nil
	}
	return s.client.Close()
}

func (s *RedisHistoryStore) List(ctx context.Context, userID string) ([]chat.Message, error) {
	if s == nil || s.client == nil {
		return nil, errors.New("redis history store: nil store")
	}
	if strings.TrimSpace(userID) == "" {
		return nil, errors.New("redis history store: userID is empty")
	}
	raw, err := s.client.LRange(ctx, s.Key(userID), 0, -1).Result()
	if err != nil {
		return nil, errors.Wrap(err, "redis history store: lrange")
	}
	out := make([]chat.Message, 0, len(raw))
	for _, item := range raw {
		var m chat.Message
		if err := json.Unmarshal([]byte(item), &m); err != nil {
			return nil, errors.Wrap(err, "redis history store: decode message")
		}
		out = append(out, m)
	}
	return out, nil
}

func (s *RedisHistoryStore) Append(ctx context.Context, userID string, user, ai chat.Message) error {
	if s == nil || s.client == nil {
		return errors.New("redis history store: nil store")
	}
	if strings.TrimSpace(userID) == "" {
		return errors.New("redis history store: userID is empty")
	}
	userJSON, err := json.Marshal(user)
	if err != nil {
		return errors.Wrap(err, "redis history store: encode user message")
	}
	aiJSON, err := json.Marshal(ai)
	if err != nil {
		return errors.Wrap(err, "redis history store: encode ai message")
	}

	key := s.Key(userID)
	// MULTI/EXEC so readers never see the list between push and trim.
	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.RPush(ctx, key, string(userJSON), string(aiJSON))
		pipe.LTrim(ctx, key, int64(-s.maxMessages), -1)
		return nil
	})
	if err != nil {
		return errors.Wrap(err, "redis history store: append")
	}
	return nil
}
