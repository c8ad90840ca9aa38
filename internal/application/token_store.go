package application

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/oksasatya/account-lifecycle/internal/domain/entity"
	"github.com/oksasatya/account-lifecycle/internal/domain/repository"
)

// issueAttempts bounds retries when a generated token collides with a stored one.
const issueAttempts = 3

var errTokenCollision = errors.New("could not generate a unique verification token")

// TokenGenerator produces unguessable opaque token strings.
type TokenGenerator interface {
	Generate() (string, error)
}

// TokenStore owns the issue/validate/invalidate/purge protocol for
// single-use verification tokens. It holds no state of its own; every call
// runs against the repository of the caller's unit of work.
type TokenStore struct {
	gen TokenGenerator
	ttl time.Duration
	now func() time.Time
}

func NewTokenStore(gen TokenGenerator, ttl time.Duration, now func() time.Time) *TokenStore {
	if ttl <= 0 {
		ttl = time.Hour
	}
	if now == nil {
		now = time.Now
	}
	return &TokenStore{gen: gen, ttl: ttl, now: now}
}

// Issue purges the account's VALID email-verification tokens and stores a
// fresh one, so at most one VALID token exists per account.
func (s *TokenStore) Issue(ctx context.Context, repo repository.VerificationTokenRepository, accountID string) (*entity.VerificationToken, error) {
	if _, err := s.Purge(ctx, repo, accountID, entity.TokenValid); err != nil {
		return nil, err
	}
	for attempt := 0; attempt < issueAttempts; attempt++ {
		raw, err := s.gen.Generate()
		if err != nil {
			return nil, fmt.Errorf("generate verification token: %w", err)
		}
		now := s.now()
		t := &entity.VerificationToken{
			ID:        uuid.NewString(),
			AccountID: accountID,
			Token:     raw,
			Type:      entity.TokenEmailVerification,
			Status:    entity.TokenValid,
			CreatedAt: now,
			ExpiresAt: now.Add(s.ttl),
		}
		err = repo.Create(ctx, t)
		if err == nil {
			return t, nil
		}
		if !errors.Is(err, repository.ErrDuplicate) {
			return nil, fmt.Errorf("store verification token: %w", err)
		}
	}
	return nil, errTokenCollision
}

// Validate returns the token if it exists, has the expected type, was not
// used and is not past its expiry. Expiry is computed here, never read
// from the stored status.
func (s *TokenStore) Validate(ctx context.Context, repo repository.VerificationTokenRepository, token string, typ entity.TokenType) (*entity.VerificationToken, error) {
	t, err := repo.GetByToken(ctx, token)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrTokenNotFound
		}
		return nil, fmt.Errorf("lookup verification token: %w", err)
	}
	if t.Type != typ {
		return nil, ErrTokenNotFound
	}
	if t.IsUsed() {
		return nil, ErrTokenAlreadyUsed
	}
	if t.Status == entity.TokenExpired || t.IsExpired(s.now()) {
		return nil, ErrTokenExpired
	}
	return t, nil
}

// Invalidate marks the token USED. Call it at most once per successful validation.
func (s *TokenStore) Invalidate(ctx context.Context, repo repository.VerificationTokenRepository, t *entity.VerificationToken) error {
	t.MarkUsed(s.now())
	if err := repo.Update(ctx, t); err != nil {
		return fmt.Errorf("invalidate verification token: %w", err)
	}
	return nil
}

// Purge deletes the account's email-verification tokens in the given status.
func (s *TokenStore) Purge(ctx context.Context, repo repository.VerificationTokenRepository, accountID string, status entity.TokenStatus) (int64, error) {
	n, err := repo.DeleteByAccount(ctx, accountID, entity.TokenEmailVerification, status)
	if err != nil {
		return 0, fmt.Errorf("purge verification tokens: %w", err)
	}
	return n, nil
}
