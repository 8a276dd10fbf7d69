package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/Morditux/gatesession"
	_ "modernc.org/sqlite"
)

type SQLiteStore struct {
	db              *sql.DB
	mu              sync.Mutex // Serializes writes to avoid SQLITE_BUSY
	createStmt      *sql.Stmt
	getStmt         *sql.Stmt
	updateStmt      *sql.Stmt
	cleanupStmt     *sql.Stmt
	maxSessionBytes int
}

// SQLiteConfig holds configuration for the SQLite store.
type SQLiteConfig struct {
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	MaxSessionBytes int
}

func NewSQLiteStore(dsn string) (*SQLiteStore, error) {
	return NewSQLiteStoreWithConfig(SQLiteConfig{
		DSN:          dsn,
		MaxOpenConns: 16, // Allow concurrent readers (writers are serialized by mutex)
		MaxIdleConns: 16,
	})
}

func NewSQLiteStoreWithConfig(cfg SQLiteConfig) (*SQLiteStore, error) {
	// PRAGMAs go into the DSN so they apply to every pooled connection.
	if !strings.Contains(cfg.DSN, "synchronous") {
		cfg.DSN = appendPragma(cfg.DSN, "synchronous=NORMAL")
	}
	if !strings.Contains(cfg.DSN, "busy_timeout") {
		cfg.DSN = appendPragma(cfg.DSN, "busy_timeout=5000")
	}

	db, err := sql.Open("sqlite", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
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

	// WAL mode is persistent for the database file; once is enough.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	query := `
	CREATE TABLE IF NOT EXISTS sessions (
		id TEXT PRIMARY KEY,
		user_id INTEGER,
		data BLOB,
		last_used_at DATETIME NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_sessions_last_used_at ON sessions(last_used_at);
	`
	if _, err := db.Exec(query); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create sessions table: %w", err)
	}

	store := &SQLiteStore{
		db:              db,
		maxSessionBytes: cfg.MaxSessionBytes,
	}

	store.createStmt, err = db.Prepare("INSERT INTO sessions (id, user_id, data, last_used_at) VALUES (?, ?, ?, ?)")
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to prepare create statement: %w", err)
	}

	store.getStmt, err = db.Prepare("SELECT user_id, data, last_used_at FROM sessions WHERE id = ?")
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("failed to prepare get statement: %w", err)
	}

	store.updateStmt, err = db.Prepare("UPDATE sessions SET user_id = ?, data = ?, last_used_at = ? WHERE id = ?")
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("failed to prepare update statement: %w", err)
	}

	store.cleanupStmt, err = db.Prepare("DELETE FROM sessions WHERE last_used_at < ?")
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("failed to prepare cleanup statement: %w", err)
	}

	return store, nil
}

func appendPragma(dsn, pragma string) string {
	separator := "?"
	if strings.Contains(dsn, "?") {
		separator = "&"
	}
	return fmt.Sprintf("%s%s_pragma=%s", dsn, separator, pragma)
}

func (s *SQLiteStore) Get(ctx context.Context, id string) (*gatesession.Record, error) {
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

func (s *SQLiteStore) Create(ctx context.Context, rec *gatesession.Record) error {
	blob, err := encodeData(rec.Data, s.maxSessionBytes)
	if err != nil {
		return err
	}
	id, err := NewID()
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.createStmt.ExecContext(ctx, id, toNullInt64(rec.UserID), blob, rec.LastUsedAt.UTC()); err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}
	rec.ID = id
	return nil
}

func (s *SQLiteStore) Update(ctx context.Context, rec *gatesession.Record) error {
	blob, err := encodeData(rec.Data, s.maxSessionBytes)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	res, err := s.updateStmt.ExecContext(ctx, toNullInt64(rec.UserID), blob, rec.LastUsedAt.UTC(), rec.ID)
	if err != nil {
		return fmt.Errorf("failed to update session: %w", err)
	}
	return requireRow(res)
}

func (s *SQLiteStore) Cleanup(ctx context.Context, before time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	res, err := s.cleanupStmt.ExecContext(ctx, before.UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to cleanup abandoned sessions: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

func (s *SQLiteStore) Close() error {
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

func toNullInt64(id *int64) sql.NullInt64 {
	if id == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *id, Valid: true}
}

func fromNullInt64(n sql.NullInt64) *int64 {
	if !n.Valid {
		return nil
	}
	v := n.Int64
	return &v
}

// requireRow maps an update that touched no row to ErrNotFound.
func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
