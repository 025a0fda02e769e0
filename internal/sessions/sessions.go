// Package sessions persists multi-turn conversations. The serving process
// uses the Postgres store; the in-memory store backs tests and local runs
// without a database.
package sessions

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/beedev/sparky/internal/config"
	"github.com/beedev/sparky/pkg/models"
)

// ErrNotFound is returned for unknown session IDs.
var ErrNotFound = errors.New("session not found")

// Store is the conversation persistence interface.
type Store interface {
	// GetOrCreate loads the session, creating it when the ID is empty or
	// unknown. The returned session always has a usable ID.
	GetOrCreate(ctx context.Context, id, userID string) (*models.Session, error)
	// AppendTurn records one completed pipeline run on the session.
	AppendTurn(ctx context.Context, id string, turn models.ChatTurn) error
	// Close releases the backing resources.
	Close()
}

// ── Postgres ─────────────────────────────────────────────────────

// PostgresStore keeps sessions in a single table with the turn history as
// a JSONB column; turns are append-heavy and only ever read whole.
type PostgresStore struct {
	pool *pgxpool.Pool
	log  zerolog.Logger
}

const schema = `
CREATE TABLE IF NOT EXISTS sessions (
	id         TEXT PRIMARY KEY,
	user_id    TEXT NOT NULL DEFAULT '',
	language   TEXT NOT NULL DEFAULT '',
	turns      JSONB NOT NULL DEFAULT '[]',
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`

// NewPostgres connects the pool and ensures the schema.
func NewPostgres(ctx context.Context, cfg config.RelationalConfig, log zerolog.Logger) (*PostgresStore, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.URL())
	if err != nil {
		return nil, fmt.Errorf("parse postgres config: %w", err)
	}
	poolCfg.MinConns = int32(cfg.MinConns)
	poolCfg.MaxConns = int32(cfg.MaxConns)

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if _, err := pool.Exec(ctx, schema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ensure sessions schema: %w", err)
	}

	log.Info().Str("host", cfg.Host).Str("database", cfg.Database).Msg("Session store connected")
	return &PostgresStore{pool: pool, log: log}, nil
}

func (s *PostgresStore) GetOrCreate(ctx context.Context, id, userID string) (*models.Session, error) {
	if id == "" {
		id = uuid.NewString()
	}

	var (
		session  models.Session
		turnsRaw []byte
	)
	err := s.pool.QueryRow(ctx,
		`SELECT id, user_id, language, turns, created_at, updated_at FROM sessions WHERE id = $1`,
		id).Scan(&session.ID, &session.UserID, &session.Language, &turnsRaw, &session.CreatedAt, &session.UpdatedAt)
	if err == nil {
		if jerr := json.Unmarshal(turnsRaw, &session.Turns); jerr != nil {
			s.log.Warn().Err(jerr).Str("session", id).Msg("corrupt turn history, resetting")
			session.Turns = nil
		}
		return &session, nil
	}

	now := time.Now().UTC()
	session = models.Session{ID: id, UserID: userID, CreatedAt: now, UpdatedAt: now}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO sessions (id, user_id) VALUES ($1, $2) ON CONFLICT (id) DO NOTHING`,
		id, userID)
	if err != nil {
		return nil, fmt.Errorf("create session %s: %w", id, err)
	}
	return &session, nil
}

func (s *PostgresStore) AppendTurn(ctx context.Context, id string, turn models.ChatTurn) error {
	raw, err := json.Marshal(turn)
	if err != nil {
		return fmt.Errorf("marshal turn: %w", err)
	}
	tag, err := s.pool.Exec(ctx,
		`UPDATE sessions SET turns = turns || $2::jsonb, updated_at = now() WHERE id = $1`,
		id, raw)
	if err != nil {
		return fmt.Errorf("append turn to %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return nil
}

func (s *PostgresStore) Close() {
	s.pool.Close()
}

// HealthCheck pings the pool.
func (s *PostgresStore) HealthCheck(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// ── In-memory ────────────────────────────────────────────────────

// MemoryStore is the database-free Store.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*models.Session
}

// NewMemory creates an empty in-memory store.
func NewMemory() *MemoryStore {
	return &MemoryStore{sessions: make(map[string]*models.Session)}
}

func (m *MemoryStore) GetOrCreate(_ context.Context, id, userID string) (*models.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if id != "" {
		if s, ok := m.sessions[id]; ok {
			cp := *s
			cp.Turns = append([]models.ChatTurn(nil), s.Turns...)
			return &cp, nil
		}
	}
	if id == "" {
		id = uuid.NewString()
	}
	now := time.Now().UTC()
	s := &models.Session{ID: id, UserID: userID, CreatedAt: now, UpdatedAt: now}
	m.sessions[id] = s
	cp := *s
	return &cp, nil
}

func (m *MemoryStore) AppendTurn(_ context.Context, id string, turn models.ChatTurn) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	s.Turns = append(s.Turns, turn)
	s.UpdatedAt = time.Now().UTC()
	return nil
}

func (m *MemoryStore) Close() {}

// IDs returns the stored session IDs, sorted. Test helper.
func (m *MemoryStore) IDs() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ids := make([]string, 0, len(m.sessions))
	for id := range m.sessions {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
