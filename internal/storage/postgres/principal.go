package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"
	"golang.org/x/crypto/bcrypt"

	"github.com/ipetrenko/tokensvc/internal/models"
	"github.com/ipetrenko/tokensvc/internal/storage"
)

const uniqueViolationCode = "23505"

type PrincipalRepository struct {
	db storage.DBTX
}

func NewPrincipalRepository(db storage.DBTX) *PrincipalRepository {
	return &PrincipalRepository{db: db}
}

func (r *PrincipalRepository) CreatePrincipal(ctx context.Context, email, username, passwordHash string) (*models.Principal, error) {
	var p models.Principal
	query := `INSERT INTO principals (email, username, password_hash) VALUES ($1, $2, $3) RETURNING id, email, username, password_hash, created_at`
	err := r.db.QueryRowContext(ctx, query, email, username, passwordHash).Scan(
		&p.ID,
		&p.Email,
		&p.Username,
		&p.PasswordHash,
		&p.CreatedAt,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolationCode {
			return nil, storage.ErrEmailTaken
		}
		return nil, fmt.Errorf("failed to create principal: %w", err)
	}
	return &p, nil
}

func (r *PrincipalRepository) FindByEmail(ctx context.Context, email string) (*models.Principal, error) {
	var p models.Principal
	query := `SELECT id, email, username, password_hash, created_at FROM principals WHERE email = $1`
	err := r.db.QueryRowContext(ctx, query, email).Scan(
		&p.ID,
		&p.Email,
		&p.Username,
		&p.PasswordHash,
		&p.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, storage.ErrPrincipalNotFound
		}
		return nil, fmt.Errorf("failed to get principal by email: %w", err)
	}
	return &p, nil
}

func (r *PrincipalRepository) FindByID(ctx context.Context, id string) (*models.Principal, error) {
	var p models.Principal
	query := `SELECT id, email, username, password_hash, created_at FROM principals WHERE id = $1`
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&p.ID,
		&p.Email,
		&p.Username,
		&p.PasswordHash,
		&p.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, storage.ErrPrincipalNotFound
		}
		return nil, fmt.Errorf("get principal by id: %w", err)
	}
	return &p, nil
}

func (r *PrincipalRepository) VerifyPassword(p *models.Principal, plaintext string) bool {
	return bcrypt.CompareHashAndPassword([]byte(p.PasswordHash), []byte(plaintext)) == nil
}
