package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/ipetrenko/tokensvc/internal/models"
	"github.com/ipetrenko/tokensvc/internal/storage"
)

type RecordRepository struct {
	db storage.DBTX
}

func NewRecordRepository(db storage.DBTX) *RecordRepository {
	return &RecordRepository{db: db}
}

func (r *RecordRepository) CreateRecord(ctx context.Context, record models.RefreshRecord) (int64, error) {
	query := `INSERT INTO refresh_tokens (owner_id, token, bound_jti, is_used, is_revoked, issued_at, expires_at) VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING id`
	var id int64
	err := r.db.QueryRowContext(
		ctx,
		query,
		record.OwnerID,
		record.Token,
		record.BoundJTI,
		record.IsUsed,
		record.IsRevoked,
		record.IssuedAt,
		record.ExpiresAt,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to insert refresh record: %w", err)
	}
	return id, nil
}

func (r *RecordRepository) FindRecordByToken(ctx context.Context, token string) (*models.RefreshRecord, error) {
	var record models.RefreshRecord
	query := `SELECT id, owner_id, token, bound_jti, is_used, is_revoked, issued_at, expires_at FROM refresh_tokens WHERE token = $1`
	err := r.db.QueryRowContext(ctx, query, token).Scan(
		&record.ID,
		&record.OwnerID,
		&record.Token,
		&record.BoundJTI,
		&record.IsUsed,
		&record.IsRevoked,
		&record.IssuedAt,
		&record.ExpiresAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, storage.ErrRecordNotFound
		}
		return nil, fmt.Errorf("failed to get refresh record: %w", err)
	}
	return &record, nil
}

func (r *RecordRepository) FindRecordsByOwner(ctx context.Context, ownerID string) ([]models.RefreshRecord, error) {
	query := `SELECT id, owner_id, token, bound_jti, is_used, is_revoked, issued_at, expires_at FROM refresh_tokens WHERE owner_id = $1 ORDER BY issued_at`
	rows, err := r.db.QueryContext(ctx, query, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list refresh records: %w", err)
	}
	defer rows.Close()

	var records []models.RefreshRecord
	for rows.Next() {
		var record models.RefreshRecord
		if err := rows.Scan(
			&record.ID,
			&record.OwnerID,
			&record.Token,
			&record.BoundJTI,
			&record.IsUsed,
			&record.IsRevoked,
			&record.IssuedAt,
			&record.ExpiresAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan refresh record: %w", err)
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate refresh records: %w", err)
	}
	return records, nil
}

// CompareAndMarkUsed flips is_used in a single guarded UPDATE. Two
// concurrent redemptions of the same record cannot both see RowsAffected==1,
// so exactly one caller wins the rotation.
func (r *RecordRepository) CompareAndMarkUsed(ctx context.Context, recordID int64) (bool, error) {
	query := `UPDATE refresh_tokens SET is_used = TRUE WHERE id = $1 AND is_used = FALSE`
	res, err := r.db.ExecContext(ctx, query, recordID)
	if err != nil {
		return false, fmt.Errorf("failed to mark record as used: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return affected == 1, nil
}

func (r *RecordRepository) RevokeRecord(ctx context.Context, token string) error {
	query := `UPDATE refresh_tokens SET is_revoked = TRUE WHERE token = $1`
	res, err := r.db.ExecContext(ctx, query, token)
	if err != nil {
		return fmt.Errorf("failed to revoke record: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return storage.ErrRecordNotFound
	}
	return nil
}
