package history

import (
	"context"
	"database/sql"
	"strings"

	"github.com/entrhq/medisimple/pkg/types"
	_ "github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"
)

// SQLiteStore keeps turns in a single messages table ordered by an
// autoincrement id.
type SQLiteStore struct {
	db *sql.DB
}

var _ Store = &SQLiteStore{}

// NewSQLiteStore opens (creating if needed) the database at dsn.
func NewSQLiteStore(dsn string) (*SQLiteStore, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, errors.New("sqlite history store: empty dsn")
	}
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, errors.Wrap(err, "sqlite history store: open")
	}
	// sqlite serializes writers; a single connection also keeps :memory: databases shared
	db.SetMaxOpenConns(1)

	s := &SQLiteStore{db: db}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLiteStore) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS messages (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			session_id TEXT NOT NULL,
			role TEXT NOT NULL,
			content TEXT NOT NULL,
			timestamp DATETIME DEFAULT CURRENT_TIMESTAMP
		);`,
		`CREATE INDEX IF NOT EXISTS messages_by_session ON messages(session_id, id);`,
	}
	for _, st := range stmts {
		if _, err := s.db.Exec(st); err != nil {
			return errors.Wrap(err, "sqlite history store: migrate")
		}
	}
	return nil
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *SQLiteStore) Append(ctx context.Context, sessionID string, role types.MessageRole, content string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO messages (session_id, role, content) VALUES (?, ?, ?)`,
		sessionID, string(role), content,
	)
	return storageErr("append", err)
}

func (s *SQLiteStore) RecentWindow(ctx context.Context, sessionID string, limit int) ([]types.Turn, error) {
	if limit <= 0 {
		return []types.Turn{}, nil
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, role, content, timestamp FROM messages WHERE session_id = ? ORDER BY id DESC LIMIT ?`,
		sessionID, limit,
	)
	if err != nil {
		return nil, storageErr("recent window", err)
	}
	defer func() { _ = rows.Close() }()

	turns := []types.Turn{}
	for rows.Next() {
		var (
			t    types.Turn
			role string
			ts   sql.NullTime
		)
		if err := rows.Scan(&t.Sequence, &role, &t.Content, &ts); err != nil {
			return nil, storageErr("recent window", err)
		}
		t.SessionID = sessionID
		t.Role = types.MessageRole(role)
		if ts.Valid {
			t.CreatedAt = ts.Time
		}
		turns = append(turns, t)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("recent window", err)
	}

	reverse(turns)
	return turns, nil
}

func (s *SQLiteStore) Clear(ctx context.Context, sessionID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM messages WHERE session_id = ?`, sessionID)
	return storageErr("clear", err)
}

func reverse(turns []types.Turn) {
	for i, j := 0, len(turns)-1; i < j; i, j = i+1, j-1 {
		turns[i], turns[j] = turns[j], turns[i]
	}
}
