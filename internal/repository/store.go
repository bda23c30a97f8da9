package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/iliyamo/rental-marketplace/internal/service"
)

// querier is the subset of *sql.DB and *sql.Tx the repositories use, so
// the same code runs inside and outside a transaction.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Store is the MySQL implementation of service.Store. The zero-tx
// store runs every statement in autocommit mode; WithinTx hands the
// callback a store bound to one *sql.Tx.
type Store struct {
	db *sql.DB
	q  querier
}

// NewStore wraps db.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db, q: db}
}

// DB exposes the underlying connection pool.
func (s *Store) DB() *sql.DB { return s.db }

func (s *Store) Listings() service.ListingRepository { return &ListingRepo{q: s.q} }
func (s *Store) Bookings() service.BookingRepository { return &BookingRepo{q: s.q} }
func (s *Store) Reviews() service.ReviewRepository   { return &ReviewRepo{q: s.q} }
func (s *Store) Users() service.UserRepository       { return &UserRepo{DB: s.q} }

// WithinTx runs fn in a transaction. The transaction is committed when
// fn returns nil and rolled back on error or panic.
func (s *Store) WithinTx(ctx context.Context, fn func(service.Repositories) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	if err := fn(&Store{db: s.db, q: tx}); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	committed = true
	return nil
}
