package repository

import (
	"context"
	"errors"
	"time"

	"github.com/oksasatya/account-lifecycle/internal/domain/entity"
)

var (
	// ErrNotFound is returned when a lookup matches no row.
	ErrNotFound = errors.New("not found")
	// ErrDuplicate is returned when a unique constraint rejects a write.
	ErrDuplicate = errors.New("duplicate")
)

// AccountRepository defines storage operations for the account aggregate root.
// Lookups made inside a unit of work lock the matched row until it ends.
type AccountRepository interface {
	Create(ctx context.Context, a *entity.Account) error
	GetByID(ctx context.Context, id string) (*entity.Account, error)
	// FindByID reads the account without locking it.
	FindByID(ctx context.Context, id string) (*entity.Account, error)
	GetByEmail(ctx context.Context, email string) (*entity.Account, error)
	Update(ctx context.Context, a *entity.Account) error
	// DeleteStale removes up to limit accounts in status created before cutoff,
	// cascading to owned rows, and reports how many were removed.
	DeleteStale(ctx context.Context, status entity.AccountStatus, cutoff time.Time, limit int) (int64, error)
}

// CredentialRepository stores the 1:1 credential row of an account.
type CredentialRepository interface {
	Create(ctx context.Context, c *entity.Credential) error
	GetByAccountID(ctx context.Context, accountID string) (*entity.Credential, error)
	Update(ctx context.Context, c *entity.Credential) error
}

// VerificationTokenRepository stores tokens owned by accounts.
type VerificationTokenRepository interface {
	// Create returns ErrDuplicate when the token string already exists.
	Create(ctx context.Context, t *entity.VerificationToken) error
	GetByToken(ctx context.Context, token string) (*entity.VerificationToken, error)
	// FindByToken reads the token without locking it.
	FindByToken(ctx context.Context, token string) (*entity.VerificationToken, error)
	Update(ctx context.Context, t *entity.VerificationToken) error
	DeleteByAccount(ctx context.Context, accountID string, typ entity.TokenType, status entity.TokenStatus) (int64, error)
}

// Repositories is the set of repositories bound to one unit of work.
type Repositories interface {
	Accounts() AccountRepository
	Credentials() CredentialRepository
	Tokens() VerificationTokenRepository
}

// UnitOfWork runs fn atomically: either every write made through repos is
// committed, or none is.
type UnitOfWork interface {
	Do(ctx context.Context, fn func(ctx context.Context, repos Repositories) error) error
}
