package chatstore

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"

	"github.com/go-go-golems/coachchat/pkg/chat"
)

type SQLiteHistoryStore struct {
	db          *sql.DB
	maxMessages int
}

var _ HistoryStore = &SQLiteHistoryStore{}

func NewSQLiteHistoryStore(dsn string, maxMessages int) (*SQLiteHistoryStore, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, errors.New("sqlite history store: empty dsn")
	}
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, err
	}
	s := &SQLiteHistoryStore{db: db, maxMessages: normalizeMaxMessages(maxMessages)}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// SQLiteHistoryDSNForFile builds a DSN for a file-backed store.
// Transactions take the write lock up front so concurrent appends queue on
// busy_timeout instead of failing on lock upgrade.
func SQLiteHistoryDSNForFile(path string) (string, error) {
	if strings.TrimSpace(path) == "" {
		return "", errors.New("sqlite history store: empty path")
	}
	return fmt.Sprintf("file:%s?_journal_mode=WAL&_busy_timeout=5000&_txlock=immediate", path), nil
}

func (s *SQLiteHistoryStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *SQLiteHistoryStore) migrate() error {
	if s == nil || s.db == nil {
		return errors.New("sqlite history store: db is nil")
	}
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS history_messages (
			seq INTEGER PRIMARY KEY AUTOINCREMENT,
			user_id TEXT NOT NULL,
			message_id TEXT NOT NULL,
			role TEXT NOT NULL,
			text TEXT NOT NULL,
			created_at_ms INTEGER NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS history_messages_by_user ON history_messages(user_id, seq);`,
	}
	for _, st := range stmts {
		if _, err := s.db.Exec(st); err != nil {
			return errors.Wrap(err, "sqlite history store: migrate")
		}
	}
	return nil
}

func (s *SQLiteHistoryStore) List(ctx context.Context, userID string) ([]chat.Message, error) {
	if s == nil || s.db == nil {
		return nil, errors.New("sqlite history store: db is nil")
	}
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, errors.New("sqlite history store: userID is empty")
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT message_id, role, text
		FROM history_messages
		WHERE user_id = ?
		ORDER BY seq ASC
	`, userID)
	if err != nil {
		return nil, errors.Wrap(err, "sqlite history store: query")
	}
	defer func() { _ = rows.Close() }()

	out := []chat.Message{}
	for rows.Next() {
		var m chat.Message
		var role string
		if err := rows.Scan(&m.ID, &role, &m.Text); err != nil {
			return nil, errors.Wrap(err, "sqlite history store: scan")
		}
		m.Role = chat.Role(role)
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "sqlite history store: rows")
	}
	return out, nil
}

func (s *SQLiteHistoryStore) Append(ctx context.Context, userID string, user, ai chat.Message) error {
	if s == nil || s.db == nil {
		return errors.New("sqlite history store: db is nil")
	}
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return errors.New("sqlite history store: userID is empty")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "sqlite history store: begin tx")
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	now := time.Now().UnixMilli()
	for _, m := range []chat.Message{user, ai} {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO history_messages(user_id, message_id, role, text, created_at_ms)
			VALUES(?, ?, ?, ?, ?)
		`, userID, m.ID, string(m.Role), m.Text, now); err != nil {
			return errors.Wrap(err, "sqlite history store: insert message")
		}
	}

	if _, err := tx.ExecContext(ctx, `
		DELETE FROM history_messages
		WHERE user_id = ? AND seq NOT IN (
			SELECT seq FROM history_messages
			WHERE user_id = ?
			ORDER BY seq DESC
			LIMIT ?
		)
	`, userID, userID, s.maxMessages); err != nil {
		return errors.Wrap(err, "sqlite history store: trim")
	}

	if err := tx.Commit(); err != nil {
		return errors.Wrap(err, "sqlite history store: commit")
	}
	committed = true
	return nil
}
