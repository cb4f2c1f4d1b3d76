package negotiation

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/glebarez/go-sqlite"

	"github.com/quailyquaily/accord/guard"
)

// SQLiteHistoryStore persists completed-action records across restarts.
// Sessions and permissions are process-local; only history outlives them.
type SQLiteHistoryStore struct {
	dsn string

	mu sync.Mutex
	db *sql.DB
}

func NewSQLiteHistoryStore(dsn string) (*SQLiteHistoryStore, error) {
	dsn = strings.TrimSpace(dsn)
	if dsn == "" {
		return nil, fmt.Errorf("missing sqlite dsn")
	}
	s := &SQLiteHistoryStore{dsn: dsn}
	if err := s.open(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *SQLiteHistoryStore) Append(ctx context.Context, entry HistoryEntry) error {
	if s == nil {
		return fmt.Errorf("nil history store")
	}
	if err := s.ensureOpen(); err != nil {
		return err
	}

	ts := entry.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}
	detailsJSON, err := json.Marshal(entry.Action.Details)
	if err != nil {
		return fmt.Errorf("encode action details: %w", err)
	}
	hash, _ := guard.ActionHash(entry.Action.Kind, entry.Action.Description, entry.Action.Details)

	_, err = s.db.ExecContext(ctx, `
INSERT INTO negotiation_history (
  session_id, action_kind, action_description, action_details_json,
  action_hash, completed_at_unix
) VALUES (?, ?, ?, ?, ?, ?)
`, strings.TrimSpace(entry.SessionID), string(entry.Action.Kind), entry.Action.Description,
		string(detailsJSON), hash, ts.UTC().Unix(),
	)
	return err
}

func (s *SQLiteHistoryStore) List(ctx context.Context) ([]HistoryEntry, error) {
	if s == nil {
		return nil, fmt.Errorf("nil history store")
	}
	if err := s.ensureOpen(); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
SELECT session_id, action_kind, action_description, action_details_json, completed_at_unix
FROM negotiation_history
ORDER BY id ASC
`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []HistoryEntry
	for rows.Next() {
		var (
			entry       HistoryEntry
			kind        string
			detailsJSON string
			unix        int64
		)
		if err := rows.Scan(&entry.SessionID, &kind, &entry.Action.Description, &detailsJSON, &unix); err != nil {
			return nil, err
		}
		entry.Action.Kind = guard.ActionKind(kind)
		entry.Timestamp = time.Unix(unix, 0).UTC()
		entry.Action.Timestamp = entry.Timestamp
		_ = json.Unmarshal([]byte(detailsJSON), &entry.Action.Details)
		out = append(out, entry)
	}
	return out, rows.Err()
}

func (s *SQLiteHistoryStore) Close() error {
	if s == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

func (s *SQLiteHistoryStore) open() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db != nil {
		return nil
	}
	db, err := sql.Open("sqlite", s.dsn)
	if err != nil {
		return err
	}
	s.db = db
	return s.migrate()
}

func (s *SQLiteHistoryStore) ensureOpen() error {
	if s.db != nil {
		return nil
	}
	return s.open()
}

func (s *SQLiteHistoryStore) migrate() error {
	if s.db == nil {
		return fmt.Errorf("sqlite db is not open")
	}
	_, err := s.db.Exec(`
CREATE TABLE IF NOT EXISTS negotiation_history (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  session_id TEXT NOT NULL,
  action_kind TEXT NOT NULL,
  action_description TEXT NOT NULL,
  action_details_json TEXT,
  action_hash TEXT,
  completed_at_unix INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_negotiation_history_session ON negotiation_history(session_id);
`)
	return err
}
