package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/oksasatya/account-lifecycle/internal/domain/entity"
	"github.com/oksasatya/account-lifecycle/internal/domain/repository"
)

const accountColumns = `id, email, status, email_verified, created_at, verified_at,
	last_login_at, resend_count, last_resend_at, updated_at`

type AccountRepository struct {
	db DBTX
}

func NewAccountRepository(db DBTX) *AccountRepository {
	return &AccountRepository{db: db}
}

func (r *AccountRepository) Create(ctx context.Context, a *entity.Account) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO accounts (`+accountColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`, a.ID, a.Email, string(a.Status), a.EmailVerified, a.CreatedAt, a.VerifiedAt,
		a.LastLoginAt, a.ResendCount, a.LastResendAt, a.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("insert account: %w", repository.ErrDuplicate)
		}
		return fmt.Errorf("insert account: %w", err)
	}
	return nil
}

func (r *AccountRepository) GetByID(ctx context.Context, id string) (*entity.Account, error) {
	row := r.db.QueryRow(ctx, `
		SELECT `+accountColumns+`
		FROM accounts
		WHERE id = $1
		FOR UPDATE
	`, id)
	return scanAccount(row)
}

func (r *AccountRepository) FindByID(ctx context.Context, id string) (*entity.Account, error) {
	row := r.db.QueryRow(ctx, `
		SELECT `+accountColumns+`
		FROM accounts
		WHERE id = $1
	`, id)
	return scanAccount(row)
}

func (r *AccountRepository) GetByEmail(ctx context.Context, email string) (*entity.Account, error) {
	row := r.db.QueryRow(ctx, `
		SELECT `+accountColumns+`
		FROM accounts
		WHERE email = $1
		FOR UPDATE
	`, email)
	return scanAccount(row)
}

func (r *AccountRepository) Update(ctx context.Context, a *entity.Account) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE accounts
		SET email = $2, status = $3, email_verified = $4, verified_at = $5,
			last_login_at = $6, resend_count = $7, last_resend_at = $8, updated_at = $9
		WHERE id = $1
	`, a.ID, a.Email, string(a.Status), a.EmailVerified, a.VerifiedAt,
		a.LastLoginAt, a.ResendCount, a.LastResendAt, a.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("update account: %w", repository.ErrDuplicate)
		}
		return fmt.Errorf("update account: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// DeleteStale relies on ON DELETE CASCADE to remove credentials and tokens.
// Rows locked by a concurrent unit of work are skipped, not waited on.
func (r *AccountRepository) DeleteStale(ctx context.Context, status entity.AccountStatus, cutoff time.Time, limit int) (int64, error) {
	tag, err := r.db.Exec(ctx, `
		DELETE FROM accounts
		WHERE id IN (
			SELECT id FROM accounts
			WHERE status = $1 AND created_at < $2
			ORDER BY created_at
			LIMIT $3
			FOR UPDATE SKIP LOCKED
		)
	`, string(status), cutoff, limit)
	if err != nil {
		return 0, fmt.Errorf("delete stale accounts: %w", err)
	}
	return tag.RowsAffected(), nil
}

func scanAccount(row pgx.Row) (*entity.Account, error) {
	a := &entity.Account{}
	var status string
	if err := row.Scan(&a.ID, &a.Email, &status, &a.EmailVerified, &a.CreatedAt, &a.VerifiedAt,
		&a.LastLoginAt, &a.ResendCount, &a.LastResendAt, &a.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("scan account: %w", err)
	}
	a.Status = entity.AccountStatus(status)
	return a, nil
}
