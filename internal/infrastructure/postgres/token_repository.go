package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/oksasatya/account-lifecycle/internal/domain/entity"
	"github.com/oksasatya/account-lifecycle/internal/domain/repository"
)

type VerificationTokenRepository struct {
	db DBTX
}

func NewVerificationTokenRepository(db DBTX) *VerificationTokenRepository {
	return &VerificationTokenRepository{db: db}
}

// Create uses ON CONFLICT DO NOTHING on the token column so a collision
// leaves the surrounding transaction usable for a retry.
func (r *VerificationTokenRepository) Create(ctx context.Context, t *entity.VerificationToken) error {
	tag, err := r.db.Exec(ctx, `
		INSERT INTO verification_tokens (id, account_id, token, token_type, status, created_at, expires_at, used_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (token) DO NOTHING
	`, t.ID, t.AccountID, t.Token, string(t.Type), string(t.Status), t.CreatedAt, t.ExpiresAt, t.UsedAt)
	if err != nil {
		return fmt.Errorf("insert verification token: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrDuplicate
	}
	return nil
}

const tokenColumns = `id, account_id, token, token_type, status, created_at, expires_at, used_at`

func (r *VerificationTokenRepository) GetByToken(ctx context.Context, token string) (*entity.VerificationToken, error) {
	return scanToken(r.db.QueryRow(ctx, `
		SELECT `+tokenColumns+`
		FROM verification_tokens
		WHERE token = $1
		FOR UPDATE
	`, token))
}

func (r *VerificationTokenRepository) FindByToken(ctx context.Context, token string) (*entity.VerificationToken, error) {
	return scanToken(r.db.QueryRow(ctx, `
		SELECT `+tokenColumns+`
		FROM verification_tokens
		WHERE token = $1
	`, token))
}

func scanToken(row pgx.Row) (*entity.VerificationToken, error) {
	t := &entity.VerificationToken{}
	var typ, status string
	err := row.Scan(&t.ID, &t.AccountID, &t.Token, &typ, &status, &t.CreatedAt, &t.ExpiresAt, &t.UsedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("scan verification token: %w", err)
	}
	t.Type = entity.TokenType(typ)
	t.Status = entity.TokenStatus(status)
	return t, nil
}

func (r *VerificationTokenRepository) Update(ctx context.Context, t *entity.VerificationToken) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE verification_tokens
		SET status = $2, used_at = $3
		WHERE id = $1
	`, t.ID, string(t.Status), t.UsedAt)
	if err != nil {
		return fmt.Errorf("update verification token: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (r *VerificationTokenRepository) DeleteByAccount(ctx context.Context, accountID string, typ entity.TokenType, status entity.TokenStatus) (int64, error) {
	tag, err := r.db.Exec(ctx, `
		DELETE FROM verification_tokens
		WHERE account_id = $1 AND token_type = $2 AND status = $3
	`, accountID, string(typ), string(status))
	if err != nil {
		return 0, fmt.Errorf("delete verification tokens: %w", err)
	}
	return tag.RowsAffected(), nil
}
