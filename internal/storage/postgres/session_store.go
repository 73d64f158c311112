package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/newthinker/papertrader/internal/simulation"
	"github.com/newthinker/papertrader/internal/storage"
	"github.com/newthinker/papertrader/internal/storage/session"
)

// SessionStore keeps each session as a JSONB document, with the columns
// List filters on pulled out beside it.
type SessionStore struct {
	pool *Pool
}

// NewSessionStore creates a new SessionStore.
func NewSessionStore(pool *Pool) *SessionStore {
	return &SessionStore{pool: pool}
}

var _ session.Store = (*SessionStore)(nil)

// Save upserts the session by id.
func (s *SessionStore) Save(ctx context.Context, sess *simulation.Session) error {
	if sess == nil || sess.ID == "" {
		return fmt.Errorf("save session: %w", storage.ErrInvalidInput)
	}
	doc, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("encode session %s: %w", sess.ID, err)
	}

	query := `
		INSERT INTO simulation_sessions (
			id, instrument_code, status, document, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE SET
			instrument_code = EXCLUDED.instrument_code,
			status = EXCLUDED.status,
			document = EXCLUDED.document,
			updated_at = EXCLUDED.updated_at
	`
	_, err = s.pool.Exec(ctx, query,
		sess.ID,
		sess.InstrumentCode,
		string(sess.Status),
		doc,
		sess.CreatedAt,
		sess.UpdatedAt,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("save session %s: %w", sess.ID, err)
	}
	return nil
}

// Get returns storage.ErrNotFound for an unknown id.
func (s *SessionStore) Get(ctx context.Context, id string) (*simulation.Session, error) {
	var doc []byte
	err := s.pool.QueryRow(ctx, `SELECT document FROM simulation_sessions WHERE id = $1`, id).Scan(&doc)
	if err != nil {
		if isNotFoundError(err) {
			return nil, fmt.Errorf("session %s: %w", id, storage.ErrNotFound)
		}
		return nil, fmt.Errorf("get session %s: %w", id, err)
	}
	return decodeSession(doc)
}

// List filters on status in SQL; the suffix-tolerant instrument match
// and the limit are applied after decoding.
func (s *SessionStore) List(ctx context.Context, f session.Filter) ([]*simulation.Session, error) {
	query := `
		SELECT document
		FROM simulation_sessions
		WHERE ($1::text = '' OR status = $1)
		ORDER BY updated_at DESC, id ASC
	`
	rows, err := s.pool.Query(ctx, query, string(f.Status))
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	var all []*simulation.Session
	for rows.Next() {
		var doc []byte
		if err := rows.Scan(&doc); err != nil {
			return nil, fmt.Errorf("scan session row: %w", err)
		}
		sess, err := decodeSession(doc)
		if err != nil {
			return nil, err
		}
		all = append(all, sess)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate session rows: %w", err)
	}
	return session.Select(all, f), nil
}

func (s *SessionStore) Delete(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM simulation_sessions WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete session %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("session %s: %w", id, storage.ErrNotFound)
	}
	return nil
}

func decodeSession(doc []byte) (*simulation.Session, error) {
	var sess simulation.Session
	if err := json.Unmarshal(doc, &sess); err != nil {
		return nil, fmt.Errorf("decode session: %w", err)
	}
	if sess.Trades == nil {
		sess.Trades = []simulation.Trade{}
	}
	return &sess, nil
}
