package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oksasatya/account-lifecycle/internal/domain/entity"
	"github.com/oksasatya/account-lifecycle/internal/domain/repository"
)

var t0 = time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

func seedAccount(t *testing.T, s *Store, id, email string, createdAt time.Time) {
	t.Helper()
	err := s.Do(context.Background(), func(ctx context.Context, r repository.Repositories) error {
		if err := r.Accounts().Create(ctx, entity.NewPendingAccount(id, email, createdAt)); err != nil {
			return err
		}
		if err := r.Credentials().Create(ctx, &entity.Credential{AccountID: id, PasswordHash: "h"}); err != nil {
			return err
		}
		return r.Tokens().Create(ctx, &entity.VerificationToken{
			ID: id + "-tok", AccountID: id, Token: "tok-" + id,
			Type: entity.TokenEmailVerification, Status: entity.TokenValid,
			CreatedAt: createdAt, ExpiresAt: createdAt.Add(time.Hour),
		})
	})
	require.NoError(t, err)
}

func TestStore_RollbackOnError(t *testing.T) {
	s := NewStore()
	boom := errors.New("boom")

	err := s.Do(context.Background(), func(ctx context.Context, r repository.Repositories) error {
		require.NoError(t, r.Accounts().Create(ctx, entity.NewPendingAccount("a1", "a@x.com", t0)))
		return boom
	})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 0, s.Len())
}

func TestStore_RollbackOnPanic(t *testing.T) {
	s := NewStore()
	assert.Panics(t, func() {
		_ = s.Do(context.Background(), func(ctx context.Context, r repository.Repositories) error {
			_ = r.Accounts().Create(ctx, entity.NewPendingAccount("a1", "a@x.com", t0))
			panic("boom")
		})
	})
	assert.Equal(t, 0, s.Len())
}

func TestStore_ReturnedRowsAreCopies(t *testing.T) {
	s := NewStore()
	seedAccount(t, s, "a1", "a@x.com", t0)

	_ = s.Do(context.Background(), func(ctx context.Context, r repository.Repositories) error {
		a, err := r.Accounts().GetByID(ctx, "a1")
		require.NoError(t, err)
		a.Status = entity.AccountActive
		return nil
	})

	_ = s.Do(context.Background(), func(ctx context.Context, r repository.Repositories) error {
		a, err := r.Accounts().GetByEmail(ctx, "a@x.com")
		require.NoError(t, err)
		assert.Equal(t, entity.AccountPending, a.Status)
		return nil
	})
}

func TestStore_UniqueConstraints(t *testing.T) {
	s := NewStore()
	seedAccount(t, s, "a1", "a@x.com", t0)

	err := s.Do(context.Background(), func(ctx context.Context, r repository.Repositories) error {
		return r.Accounts().Create(ctx, entity.NewPendingAccount("a2", "a@x.com", t0))
	})
	assert.ErrorIs(t, err, repository.ErrDuplicate)

	err = s.Do(context.Background(), func(ctx context.Context, r repository.Repositories) error {
		return r.Tokens().Create(ctx, &entity.VerificationToken{ID: "x", AccountID: "a1", Token: "tok-a1"})
	})
	assert.ErrorIs(t, err, repository.ErrDuplicate)
}

func TestStore_DeleteStaleCascadesAndLimits(t *testing.T) {
	s := NewStore()
	seedAccount(t, s, "old1", "old1@x.com", t0)
	seedAccount(t, s, "old2", "old2@x.com", t0.Add(time.Hour))
	seedAccount(t, s, "new", "new@x.com", t0.Add(48*time.Hour))
	cutoff := t0.Add(24 * time.Hour)

	var n int64
	err := s.Do(context.Background(), func(ctx context.Context, r repository.Repositories) (err error) {
		n, err = r.Accounts().DeleteStale(ctx, entity.AccountPending, cutoff, 1)
		return err
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	_ = s.Do(context.Background(), func(ctx context.Context, r repository.Repositories) error {
		_, err := r.Accounts().GetByID(ctx, "old1")
		assert.ErrorIs(t, err, repository.ErrNotFound)
		_, err = r.Credentials().GetByAccountID(ctx, "old1")
		assert.ErrorIs(t, err, repository.ErrNotFound)
		_, err = r.Tokens().GetByToken(ctx, "tok-old1")
		assert.ErrorIs(t, err, repository.ErrNotFound)

		_, err = r.Accounts().GetByID(ctx, "old2")
		assert.NoError(t, err)
		return nil
	})
	assert.Equal(t, 2, s.Len())
}

func TestStore_DeleteByAccountFiltersStatus(t *testing.T) {
	s := NewStore()
	seedAccount(t, s, "a1", "a@x.com", t0)

	err := s.Do(context.Background(), func(ctx context.Context, r repository.Repositories) error {
		used := &entity.VerificationToken{ID: "u", AccountID: "a1", Token: "used", Type: entity.TokenEmailVerification, Status: entity.TokenUsed}
		require.NoError(t, r.Tokens().Create(ctx, used))

		n, err := r.Tokens().DeleteByAccount(ctx, "a1", entity.TokenEmailVerification, entity.TokenValid)
		require.NoError(t, err)
		assert.Equal(t, int64(1), n)

		_, err = r.Tokens().GetByToken(ctx, "used")
		return err
	})
	assert.NoError(t, err)
}

func TestStore_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	called := false
	err := NewStore().Do(ctx, func(context.Context, repository.Repositories) error {
		called = true
		return nil
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, called)
}
