package chatstore

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

const (
	BackendMemory = "memory"
	BackendSQLite = "sqlite"
	BackendRedis  = "redis"
)

// Settings selects and configures a history backend.
type Settings struct {
	Backend     string
	MaxMessages int

	SQLitePath string
	SQLiteDSN  string

	RedisAddr      string
	RedisDB        int
	RedisKeyPrefix string
}

// OpenHistoryStore builds the backend described by settings.
func OpenHistoryStore(settings Settings) (HistoryStore, error) {
	backend := strings.ToLower(strings.TrimSpace(settings.Backend))
	switch backend {
	case "", BackendMemory:
		return NewInMemoryHistoryStore(settings.MaxMessages), nil

	case BackendSQLite:
		dsn := strings.TrimSpace(settings.SQLiteDSN)
		if dsn == "" {
			path := strings.TrimSpace(settings.SQLitePath)
			if dir := filepath.Dir(path); path != "" && dir != "" && dir != "." {
				if err := os.MkdirAll(dir, 0o755); err != nil {
					return nil, errors.Wrap(err, "create history db dir")
				}
			}
			var err error
			dsn, err = SQLiteHistoryDSNForFile(path)
			if err != nil {
				return nil, err
			}
		}
		return NewSQLiteHistoryStore(dsn, settings.MaxMessages)

	case BackendRedis:
		addr := strings.TrimSpace(settings.RedisAddr)
		if addr == "" {
			return nil, errors.New("redis history store: empty address")
		}
		client := redis.NewClient(&redis.Options{Addr: addr, DB: settings.RedisDB})
		s, err := NewRedisHistoryStore(client, settings.RedisKeyPrefix, settings.MaxMessages)
		if err != nil {
			_ = client.Close()
			return nil, err
		}
		s.ownsClient = true
		return s, nil

	default:
		return nil, errors.Errorf("unknown history backend %q", settings.Backend)
	}
}
