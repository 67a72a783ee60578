package chatstore

import (
	"context"
	"strings"
	"sync"

	"github.com/pkg/errors"

	"github.com/go-go-golems/coachchat/pkg/chat"
)

// InMemoryHistoryStore keeps history for the lifetime of the process.
// It mirrors the trimming semantics of the SQLite and Redis stores.
type InMemoryHistoryStore struct {
	maxMessages int

	mu   sync.Mutex
	logs map[string]*inMemLog
}

type inMemLog struct {
	mu       sync.Mutex
	messages []chat.Message
}

var _ HistoryStore = &InMemoryHistoryStore{}

func NewInMemoryHistoryStore(maxMessages int) *InMemoryHistoryStore {
	return &InMemoryHistoryStore{
		maxMessages: normalizeMaxMessages(maxMessages),
		logs:        map[string]*inMemLog{},
	}
}

func (s *InMemoryHistoryStore) Close() error { return nil }

func (s *InMemoryHistoryStore) logFor(userID string, create bool) *inMemLog {
	s.mu.Lock()
	defer s.mu.Unlock()
	l := s.logs[userID]
	if l == nil && create {
		l = &inMemLog{}
		s.logs[userID] = l
	}
	return l
}

func (s *InMemoryHistoryStore) List(_ context.Context, userID string) ([]chat.Message, error) {
	if s == nil {
		return nil, errors.New("in-memory history store: nil store")
	}
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, errors.New("in-memory history store: userID is empty")
	}
	l := s.logFor(userID, false)
	if l == nil {
		return []chat.Message{}, nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]chat.Message, len(l.messages))
	copy(out, l.messages)
	return out, nil
}

func (s *InMemoryHistoryStore) Append(_ context.Context, userID string, user, ai chat.Message) error {
	if s == nil {
		return errors.New("in-memory history store: nil store")
	}
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return errors.New("in-memory history store: userID is empty")
	}
	l := s.logFor(userID, true)

	l.mu.Lock()
	defer l.mu.Unlock()
	next := make([]chat.Message, 0, len(l.messages)+2)
	next = append(next, l.messages...)
	next = append(next, user, ai)
	l.messages = trimToLast(next, s.maxMessages)
	return nil
}
