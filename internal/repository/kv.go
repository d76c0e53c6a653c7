// Package repository provides the database/sql implementation of the
// client's key-value store.
package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// queryTimeout bounds every statement; the KV surface is synchronous.
const queryTimeout = 5 * time.Second

// SQLKV implements storage.KV on a kv(key, value) table. The same
// statements run on SQLite and PostgreSQL.
type SQLKV struct {
	// DB is the database handle for executing queries.
	DB  *sql.DB
	log *zap.Logger
}

// NewSQLKV creates a SQLKV over db. Read failures are logged through log
// and reported as absent values.
func NewSQLKV(db *sql.DB, log *zap.Logger) *SQLKV {
	return &SQLKV{DB: db, log: log}
}

// Get returns the value stored under key.
func (s *SQLKV) Get(key string) (string, bool) {
	v, ok, err := s.Lookup(context.Background(), key)
	if err != nil {
		s.log.Warn("kv read failed", zap.String("key", key), zap.Error(err))
		return "", false
	}
	return v, ok
}

// Lookup is Get with the database error exposed.
func (s *SQLKV) Lookup(ctx context.Context, key string) (string, bool, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var v string
	err := s.DB.QueryRowContext(ctx, `SELECT value FROM kv WHERE key = $1`, key).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("lookup %s: %w", key, err)
	}
	return v, true, nil
}

// Set upserts value under key.
func (s *SQLKV) Set(key, value string) error {
	ctx, cancel := context.WithTimeout(context.Background(), queryTimeout)
	defer cancel()

	_, err := s.DB.ExecContext(ctx, `
		INSERT INTO kv (key, value) VALUES ($1, $2)
		ON CONFLICT (key) DO UPDATE SET value = excluded.value
	`, key, value)
	if err != nil {
		return fmt.Errorf("set %s: %w", key, err)
	}
	return nil
}

// Remove deletes key if present.
func (s *SQLKV) Remove(key string) error {
	ctx, cancel := context.WithTimeout(context.Background(), queryTimeout)
	defer cancel()

	if _, err := s.DB.ExecContext(ctx, `DELETE FROM kv WHERE key = $1`, key); err != nil {
		return fmt.Errorf("remove %s: %w", key, err)
	}
	return nil
}
