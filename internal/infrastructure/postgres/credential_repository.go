package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/oksasatya/account-lifecycle/internal/domain/entity"
	"github.com/oksasatya/account-lifecycle/internal/domain/repository"
)

type CredentialRepository struct {
	db DBTX
}

func NewCredentialRepository(db DBTX) *CredentialRepository {
	return &CredentialRepository{db: db}
}

func (r *CredentialRepository) Create(ctx context.Context, c *entity.Credential) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO auth_credentials (account_id, password_hash, refresh_token, refresh_token_expiry, device_info, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, c.AccountID, c.PasswordHash, nullString(c.RefreshToken), c.RefreshTokenExpiry, c.DeviceInfo, c.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("insert credential: %w", repository.ErrDuplicate)
		}
		return fmt.Errorf("insert credential: %w", err)
	}
	return nil
}

func (r *CredentialRepository) GetByAccountID(ctx context.Context, accountID string) (*entity.Credential, error) {
	c := &entity.Credential{}
	var refresh *string
	err := r.db.QueryRow(ctx, `
		SELECT account_id, password_hash, refresh_token, refresh_token_expiry, device_info, updated_at
		FROM auth_credentials
		WHERE account_id = $1
		FOR UPDATE
	`, accountID).Scan(&c.AccountID, &c.PasswordHash, &refresh, &c.RefreshTokenExpiry, &c.DeviceInfo, &c.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("scan credential: %w", err)
	}
	c.RefreshToken = derefString(refresh)
	return c, nil
}

func (r *CredentialRepository) Update(ctx context.Context, c *entity.Credential) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE auth_credentials
		SET password_hash = $2, refresh_token = $3, refresh_token_expiry = $4, device_info = $5, updated_at = $6
		WHERE account_id = $1
	`, c.AccountID, c.PasswordHash, nullString(c.RefreshToken), c.RefreshTokenExpiry, c.DeviceInfo, c.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("update credential: %w", repository.ErrDuplicate)
		}
		return fmt.Errorf("update credential: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}
