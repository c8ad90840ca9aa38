package postgres

import (
	"context"
	"fmt"

	"github.com/oksasatya/account-lifecycle/internal/domain/repository"
)

// UnitOfWork runs each Do in its own database transaction. Lookups inside
// use SELECT ... FOR UPDATE, which serializes units of work that touch the
// same account.
type UnitOfWork struct {
	db TxBeginner
}

func NewUnitOfWork(db TxBeginner) *UnitOfWork {
	return &UnitOfWork{db: db}
}

func (u *UnitOfWork) Do(ctx context.Context, fn func(ctx context.Context, repos repository.Repositories) error) (err error) {
	tx, err := u.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback(context.WithoutCancel(ctx))
			panic(p)
		}
		if err != nil {
			_ = tx.Rollback(context.WithoutCancel(ctx))
			return
		}
		if cerr := tx.Commit(ctx); cerr != nil {
			err = fmt.Errorf("commit tx: %w", cerr)
		}
	}()

	return fn(ctx, NewRepositories(tx))
}

type repos struct {
	db DBTX
}

// NewRepositories binds every repository to db.
func NewRepositories(db DBTX) repository.Repositories {
	return repos{db: db}
}

func (r repos) Accounts() repository.AccountRepository {
	return NewAccountRepository(r.db)
}

func (r repos) Credentials() repository.CredentialRepository {
	return NewCredentialRepository(r.db)
}

func (r repos) Tokens() repository.VerificationTokenRepository {
	return NewVerificationTokenRepository(r.db)
}
