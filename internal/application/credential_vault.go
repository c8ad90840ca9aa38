package application

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/oksasatya/account-lifecycle/internal/domain/entity"
	"github.com/oksasatya/account-lifecycle/internal/domain/repository"
	"github.com/oksasatya/account-lifecycle/pkg/helpers"
)

// PasswordHasher is a one-way password verifier.
type PasswordHasher interface {
	Hash(plain string) (string, error)
	Verify(plain, hash string) bool
}

// CredentialVault stores password hashes and the per-account refresh token.
type CredentialVault struct {
	hasher PasswordHasher
	now    func() time.Time

	dummyOnce sync.Once
	dummyHash string
}

func NewCredentialVault(hasher PasswordHasher, now func() time.Time) *CredentialVault {
	if now == nil {
		now = time.Now
	}
	return &CredentialVault{hasher: hasher, now: now}
}

// Store hashes the password and creates the account's credential row.
func (v *CredentialVault) Store(ctx context.Context, repo repository.CredentialRepository, accountID, plain, deviceInfo string) error {
	hash, err := v.hasher.Hash(plain)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	c := &entity.Credential{
		AccountID:    accountID,
		PasswordHash: hash,
		DeviceInfo:   deviceInfo,
		UpdatedAt:    v.now(),
	}
	if err := repo.Create(ctx, c); err != nil {
		return fmt.Errorf("store credential: %w", err)
	}
	return nil
}

// Verify checks plain against the credential. A nil credential still costs
// one hash comparison, so a missing account and a wrong password take about
// the same time.
func (v *CredentialVault) Verify(c *entity.Credential, plain string) bool {
	if c == nil || c.PasswordHash == "" {
		v.hasher.Verify(plain, v.dummy())
		return false
	}
	return v.hasher.Verify(plain, c.PasswordHash)
}

// RotateRefreshToken replaces the tracked session. Only one refresh token is
// kept per account, so the previous session is revoked.
func (v *CredentialVault) RotateRefreshToken(ctx context.Context, repo repository.CredentialRepository, c *entity.Credential, token string, expiry time.Time, deviceInfo string) error {
	c.RotateSession(token, expiry, deviceInfo, v.now())
	if err := repo.Update(ctx, c); err != nil {
		return fmt.Errorf("rotate refresh token: %w", err)
	}
	return nil
}

func (v *CredentialVault) dummy() string {
	v.dummyOnce.Do(func() {
		seed, err := helpers.GenToken(16)
		if err != nil {
			seed = "dummy-password-seed"
		}
		if h, err := v.hasher.Hash(seed); err == nil {
			v.dummyHash = h
		}
	})
	return v.dummyHash
}
