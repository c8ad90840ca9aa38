package entity

import (
	"strings"
	"time"
)

// AccountStatus is the lifecycle state of an account.
type AccountStatus string

const (
	AccountPending   AccountStatus = "PENDING"
	AccountActive    AccountStatus = "ACTIVE"
	AccountSuspended AccountStatus = "SUSPENDED"
	AccountDeleted   AccountStatus = "DELETED"
)

// MaxEmailLength is the longest address accepted for an account.
const MaxEmailLength = 254

// MaxPasswordBytes is the bcrypt input limit, counted in bytes, not runes.
const MaxPasswordBytes = 72

// Account is the aggregate root for the identity domain.
// Credential and VerificationToken rows are owned by it and are removed with it.
//
// Status ACTIVE, EmailVerified and VerifiedAt always move together.
type Account struct {
	ID            string
	Email         string
	Status        AccountStatus
	EmailVerified bool
	CreatedAt     time.Time
	VerifiedAt    *time.Time
	LastLoginAt   *time.Time
	ResendCount   int
	LastResendAt  *time.Time
	UpdatedAt     time.Time
}

// NormalizeEmail lower-cases and trims an address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// NewPendingAccount builds an unverified account for a normalized email.
func NewPendingAccount(id, email string, now time.Time) *Account {
	return &Account{
		ID:        id,
		Email:     NormalizeEmail(email),
		Status:    AccountPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// MarkVerified moves the account to ACTIVE.
func (a *Account) MarkVerified(now time.Time) {
	a.Status = AccountActive
	a.EmailVerified = true
	a.VerifiedAt = &now
	a.UpdatedAt = now
}

// RecordLogin stamps a successful login.
func (a *Account) RecordLogin(now time.Time) {
	a.LastLoginAt = &now
	a.UpdatedAt = now
}

// Clone returns a deep copy.
func (a *Account) Clone() *Account {
	c := *a
	c.VerifiedAt = cloneTime(a.VerifiedAt)
	c.LastLoginAt = cloneTime(a.LastLoginAt)
	c.LastResendAt = cloneTime(a.LastResendAt)
	return &c
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
