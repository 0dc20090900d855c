// Package catalog provides agent catalog backends: a SQLite store, a
// read-only YAML/JSON file store with hot reload, and a TTL read cache.
package catalog

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"
	_ "modernc.org/sqlite"

	"agenthub/internal/domain"
	"agenthub/internal/infra/tracer"
)

const agentColumns = `id, name, description, capabilities, intent_keywords, system_prompt,
	model, is_active, is_master, created_by, created_at, updated_at`

// timeLayout is fixed-width so that created_at sorts lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// SQLiteStore implements domain.AgentStore on a single SQLite table.
// Catalog order is creation order.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) a SQLite database at dbPath and runs
// the schema migration.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open agent db: %w", err)
	}
	// WAL mode for better concurrent reads.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set busy timeout: %w", err)
	}
	if err := migrate(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate agent db: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

func migrate(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS agents (
			id              TEXT PRIMARY KEY,
			name            TEXT NOT NULL,
			description     TEXT NOT NULL DEFAULT '',
			capabilities    TEXT NOT NULL DEFAULT '[]',
			intent_keywords TEXT NOT NULL DEFAULT '[]',
			system_prompt   TEXT NOT NULL DEFAULT '',
			model           TEXT NOT NULL DEFAULT '',
			is_active       INTEGER NOT NULL DEFAULT 1,
			is_master       INTEGER NOT NULL DEFAULT 0,
			created_by      TEXT NOT NULL DEFAULT '',
			created_at      TEXT NOT NULL,
			updated_at      TEXT NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_agents_active ON agents (is_active, is_master, created_at);
	`)
	return err
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// MasterAgent returns the earliest-created active master agent.
func (s *SQLiteStore) MasterAgent(ctx context.Context) (agent *domain.Agent, err error) {
	ctx, span := tracer.StartSpan(ctx, tracer.SpanCatalogQuery)
	defer func() { tracer.End(span, ignoreNotFound(err)) }()
	span.SetAttributes(tracer.StringAttr("query", "master"))

	row := s.db.QueryRowContext(ctx,
		"SELECT "+agentColumns+" FROM agents WHERE is_master = 1 AND is_active = 1 ORDER BY created_at, id LIMIT 1")
	return scanAgent(row)
}

// Specialists returns active, non-master agents in catalog order.
func (s *SQLiteStore) Specialists(ctx context.Context) (agents []domain.Agent, err error) {
	ctx, span := tracer.StartSpan(ctx, tracer.SpanCatalogQuery)
	defer func() { tracer.End(span, err) }()
	span.SetAttributes(tracer.StringAttr("query", "specialists"))

	return s.query(ctx, "SELECT "+agentColumns+" FROM agents WHERE is_master = 0 AND is_active = 1 ORDER BY created_at, id")
}

// List returns all agents, or only active ones, in catalog order.
func (s *SQLiteStore) List(ctx context.Context, activeOnly bool) (agents []domain.Agent, err error) {
	ctx, span := tracer.StartSpan(ctx, tracer.SpanCatalogQuery)
	defer func() { tracer.End(span, err) }()
	span.SetAttributes(tracer.StringAttr("query", "list"), tracer.BoolAttr("active_only", activeOnly))

	q := "SELECT " + agentColumns + " FROM agents"
	if activeOnly {
		q += " WHERE is_active = 1"
	}
	return s.query(ctx, q+" ORDER BY created_at, id")
}

func (s *SQLiteStore) Get(ctx context.Context, id string) (*domain.Agent, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+agentColumns+" FROM agents WHERE id = ?", id)
	a, err := scanAgent(row)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, domain.NewDomainError("SQLiteStore.Get", domain.ErrNotFound, "agent "+id)
	}
	return a, err
}

// Create inserts agent, assigning an ID and timestamps. Only one active master
// may exist at a time.
func (s *SQLiteStore) Create(ctx context.Context, agent *domain.Agent) error {
	if err := validateAgent(agent); err != nil {
		return domain.WrapOp("SQLiteStore.Create", err)
	}
	if agent.ID == "" {
		agent.ID = ulid.Make().String()
	}
	now := time.Now().UTC()
	agent.CreatedAt = now
	agent.UpdatedAt = now

	caps, keywords, err := encodeLists(agent)
	if err != nil {
		return err
	}

	return s.withTx(ctx, func(tx *sql.Tx) error {
		var exists int
		if err := tx.QueryRowContext(ctx, "SELECT COUNT(*) FROM agents WHERE id = ?", agent.ID).Scan(&exists); err != nil {
			return err
		}
		if exists > 0 {
			return domain.NewDomainError("SQLiteStore.Create", domain.ErrDuplicate, "agent "+agent.ID)
		}
		if err := checkSingleMaster(ctx, tx, agent); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx,
			"INSERT INTO agents ("+agentColumns+") VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)",
			agent.ID, agent.Name, agent.Description, caps, keywords, agent.SystemPrompt,
			agent.Model, agent.IsActive, agent.IsMaster, agent.CreatedBy,
			now.Format(timeLayout), now.Format(timeLayout),
		)
		return err
	})
}

// Update replaces every mutable field of an existing agent. CreatedBy and
// CreatedAt are preserved.
func (s *SQLiteStore) Update(ctx context.Context, agent *domain.Agent) error {
	if err := validateAgent(agent); err != nil {
		return domain.WrapOp("SQLiteStore.Update", err)
	}
	caps, keywords, err := encodeLists(agent)
	if err != nil {
		return err
	}
	now := time.Now().UTC()

	return s.withTx(ctx, func(tx *sql.Tx) error {
		if err := checkSingleMaster(ctx, tx, agent); err != nil {
			return err
		}
		res, err := tx.ExecContext(ctx, `
			UPDATE agents SET name = ?, description = ?, capabilities = ?, intent_keywords = ?,
				system_prompt = ?, model = ?, is_active = ?, is_master = ?, updated_at = ?
			WHERE id = ?`,
			agent.Name, agent.Description, caps, keywords, agent.SystemPrompt, agent.Model,
			agent.IsActive, agent.IsMaster, now.Format(timeLayout), agent.ID,
		)
		if err != nil {
			return err
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return domain.NewDomainError("SQLiteStore.Update", domain.ErrNotFound, "agent "+agent.ID)
		}
		agent.UpdatedAt = now
		return nil
	})
}

func (s *SQLiteStore) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM agents WHERE id = ?", id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.NewDomainError("SQLiteStore.Delete", domain.ErrNotFound, "agent "+id)
	}
	return nil
}

// Count returns the number of stored agents.
func (s *SQLiteStore) Count(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM agents").Scan(&n)
	return n, err
}

func (s *SQLiteStore) withTx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}

// checkSingleMaster rejects an active master when another active master exists.
func checkSingleMaster(ctx context.Context, tx *sql.Tx, agent *domain.Agent) error {
	if !agent.IsMaster || !agent.IsActive {
		return nil
	}
	var other string
	err := tx.QueryRowContext(ctx,
		"SELECT id FROM agents WHERE is_master = 1 AND is_active = 1 AND id <> ? LIMIT 1", agent.ID,
	).Scan(&other)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return nil
	case err != nil:
		return err
	default:
		return domain.NewDomainError("SQLiteStore", domain.ErrDuplicate, "active master agent already exists: "+other)
	}
}

func (s *SQLiteStore) query(ctx context.Context, q string, args ...any) ([]domain.Agent, error) {
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	agents := []domain.Agent{}
	for rows.Next() {
		a, err := scanRow(rows)
		if err != nil {
			return nil, err
		}
		agents = append(agents, *a)
	}
	return agents, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanAgent(row *sql.Row) (*domain.Agent, error) {
	a, err := scanRow(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	return a, err
}

func scanRow(sc scanner) (*domain.Agent, error) {
	var a domain.Agent
	var caps, keywords, createdStr, updatedStr string
	if err := sc.Scan(&a.ID, &a.Name, &a.Description, &caps, &keywords, &a.SystemPrompt,
		&a.Model, &a.IsActive, &a.IsMaster, &a.CreatedBy, &createdStr, &updatedStr); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(caps), &a.Capabilities); err != nil {
		return nil, fmt.Errorf("unmarshal capabilities for %s: %w", a.ID, err)
	}
	if err := json.Unmarshal([]byte(keywords), &a.IntentKeywords); err != nil {
		return nil, fmt.Errorf("unmarshal intent keywords for %s: %w", a.ID, err)
	}
	a.CreatedAt, _ = time.Parse(timeLayout, createdStr)
	a.UpdatedAt, _ = time.Parse(timeLayout, updatedStr)
	return &a, nil
}

func encodeLists(agent *domain.Agent) (string, string, error) {
	caps, err := json.Marshal(nonNil(agent.Capabilities))
	if err != nil {
		return "", "", fmt.Errorf("marshal capabilities: %w", err)
	}
	keywords, err := json.Marshal(nonNil(agent.IntentKeywords))
	if err != nil {
		return "", "", fmt.Errorf("marshal intent keywords: %w", err)
	}
	return string(caps), string(keywords), nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func ignoreNotFound(err error) error {
	if errors.Is(err, domain.ErrNotFound) {
		return nil
	}
	return err
}

var _ domain.AgentStore = (*SQLiteStore)(nil)
