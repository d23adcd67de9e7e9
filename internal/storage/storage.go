package storage

import (
	"context"
	"database/sql"
	"errors"

	"github.com/ipetrenko/tokensvc/internal/models"
)

var (
	ErrRecordNotFound    = errors.New("refresh record not found")
	ErrPrincipalNotFound = errors.New("principal not found")
	ErrEmailTaken        = errors.New("email already registered")
)

// DBTX is satisfied by both *sql.DB and *sql.Tx so repositories can run
// inside or outside a transaction.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

type Storage interface {
	RefreshRecordRepository
	IdentityRepository
}

// IdentityRepository is the identity-store capability the token core
// consumes: resolve a principal, verify a password. CreatePrincipal exists
// for the registration flow only.
type IdentityRepository interface {
	CreatePrincipal(ctx context.Context, email, username, passwordHash string) (*models.Principal, error)
	FindByEmail(ctx context.Context, email string) (*models.Principal, error)
	FindByID(ctx context.Context, id string) (*models.Principal, error)
	VerifyPassword(p *models.Principal, plaintext string) bool
}

// RefreshRecordRepository is the durable table of issued refresh tokens.
// CompareAndMarkUsed is the atomic primitive behind single-use rotation:
// it flips is_used only if it was still false and reports whether this
// caller won. Records are never deleted, revocation just flags them.
type RefreshRecordRepository interface {
	CreateRecord(ctx context.Context, record models.RefreshRecord) (int64, error)
	FindRecordByToken(ctx context.Context, token string) (*models.RefreshRecord, error)
	FindRecordsByOwner(ctx context.Context, ownerID string) ([]models.RefreshRecord, error)
	CompareAndMarkUsed(ctx context.Context, recordID int64) (bool, error)
	RevokeRecord(ctx context.Context, token string) error
}
