package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/Morditux/gatesession"
	_ "github.com/lib/pq"
)

type PostgreSQLStore struct {
	db              *sql.DB
	createStmt      *sql.Stmt
	getStmt         *sql.Stmt
	updateStmt      *sql.Stmt
	cleanupStmt     *sql.Stmt
	maxSessionBytes int
}

// PostgreSQLConfig holds configuration for the PostgreSQL store.
type PostgreSQLConfig struct {
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
	MaxSessionBytes int
}

// NewPostgreSQLStore creates a new PostgreSQL store with default configuration.
func NewPostgreSQLStore(dsn string) (*PostgreSQLStore, error) {
	return NewPostgreSQLStoreWithConfig(PostgreSQLConfig{
		DSN:             dsn,
		MaxOpenConns:    25,
		MaxIdleConns:    5,
		ConnMaxLifetime: 5 * time.Minute,
		ConnMaxIdleTime: 1 * time.Minute,
	})
}

// NewPostgreSQLStoreWithConfig creates a new PostgreSQL store with custom configuration.
func NewPostgreSQLStoreWithConfig(cfg PostgreSQLConfig) (*PostgreSQLStore, error) {
	db, err := sql.Open("postgres", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open postgresql database: %w", err)
	}

	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}
	if cfg.ConnMaxIdleTime > 0 {
		db.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping postgresql database: %w", err)
	}

	query := `
	CREATE TABLE IF NOT EXISTS sessions (
		id TEXT PRIMARY KEY,
		user_id BIGINT,
		data BYTEA,
		last_used_at TIMESTAMP WITH TIME ZONE NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_sessions_last_used_at ON sessions(last_used_at);
	`
	if _, err := db.Exec(query); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create sessions table: %w", err)
	}

	store := &PostgreSQLStore{db: db, maxSessionBytes: cfg.MaxSessionBytes}

	store.createStmt, err = db.Prepare("INSERT INTO sessions (id, user_id, data, last_used_at) VALUES ($1, $2, $3, $4)")
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to prepare create statement: %w", err)
	}

	store.getStmt, err = db.Prepare("SELECT user_id, data, last_used_at FROM sessions WHERE id = $1")
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("failed to prepare get statement: %w", err)
	}

	store.updateStmt, err = db.Prepare("UPDATE sessions SET user_id = $1, data = $2, last_used_at = $3 WHERE id = $4")
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("failed to prepare update statement: %w", err)
	}

	store.cleanupStmt, err = db.Prepare("DELETE FROM sessions WHERE last_used_at < $1")
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("failed to prepare cleanup statement: %w", err)
	}

	return store, nil
}

func (s *PostgreSQLStore) Get(ctx context.Context, id string) (*gatesession.Record, error) {
	var (
		userID     sql.NullInt64
		data       []byte
		lastUsedAt time.Time
	)

	err := s.getStmt.QueryRowContext(ctx, id).Scan(&userID, &data, &lastUsedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query session: %w", err)
	}

	values, err := decodeData(data, s.maxSessionBytes)
	if err != nil {
		return nil, err
	}

	return &gatesession.Record{
		ID:         id,
		UserID:     fromNullInt64(userID),
		LastUsedAt: lastUsedAt.UTC(),
		Data:       values,
	}, nil
}

func (s *PostgreSQLStore) Create(ctx context.Context, rec *gatesession.Record) error {
	blob, err := encodeData(rec.Data, s.maxSessionBytes)
	if err != nil {
		return err
	}
	id, err := NewID()
	if err != nil {
		return err
	}

	if _, err := s.createStmt.ExecContext(ctx, id, toNullInt64(rec.UserID), blob, rec.LastUsedAt); err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}
	rec.ID = id
	return nil
}

func (s *PostgreSQLStore) Update(ctx context.Context, rec *gatesession.Record) error {
	blob, err := encodeData(rec.Data, s.maxSessionBytes)
	if err != nil {
		return err
	}

	res, err := s.updateStmt.ExecContext(ctx, toNullInt64(rec.UserID), blob, rec.LastUsedAt, rec.ID)
	if err != nil {
		return fmt.Errorf("failed to update session: %w", err)
	}
	return requireRow(res)
}

func (s *PostgreSQLStore) Cleanup(ctx context.Context, before time.Time) (int64, error) {
	res, err := s.cleanupStmt.ExecContext(ctx, before)
	if err != nil {
		return 0, fmt.Errorf("failed to cleanup abandoned sessions: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

func (s *PostgreSQLStore) Close() error {
	if s.createStmt != nil {
		s.createStmt.Close()
	}
	if s.getStmt != nil {
		s.getStmt.Close()
	}
	if s.updateStmt != nil {
		s.updateStmt.Close()
	}
	if s.cleanupStmt != nil {
		s.cleanupStmt.Close()
	}
	return s.db.Close()
}
