package db

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"gatekeeper/internal/store"
)

var _ store.Store = (*Store)(nil)

// Store implements store.Store on top of a DB or an open transaction.
type Store struct {
	db *DB
	q  sqlx.ExtContext
	tx *sqlx.Tx
}

func NewStore(db *DB) *Store {
	return &Store{db: db, q: db.DB}
}

func (s *Store) Users() store.UserStore       { return NewUserRepository(s.q) }
func (s *Store) Sessions() store.SessionStore { return NewSessionRepository(s.q) }
func (s *Store) Tokens() store.TokenStore     { return NewTokenRepository(s.q) }

// AuditLogs is outside the transactional set; audit rows are written
// asynchronously and must survive a rolled back operation.
func (s *Store) AuditLogs() *AuditLogRepository { return NewAuditLogRepository(s.db.DB) }

func (s *Store) WithinTx(ctx context.Context, fn func(tx store.Store) error) error {
	if s.tx != nil {
		return fn(s)
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(&Store{db: s.db, q: tx, tx: tx}); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}
