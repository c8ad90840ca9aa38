package entity

import "time"

type TokenType string

const (
	TokenEmailVerification TokenType = "EMAIL_VERIFICATION"
	TokenPasswordReset     TokenType = "PASSWORD_RESET"
)

// TokenStatus is the stored state of a token. EXPIRED is never trusted on
// read; expiry is always recomputed from ExpiresAt.
type TokenStatus string

const (
	TokenValid   TokenStatus = "VALID"
	TokenUsed    TokenStatus = "USED"
	TokenExpired TokenStatus = "EXPIRED"
)

// VerificationToken is a single-use, time-bounded bearer credential.
type VerificationToken struct {
	ID        string
	AccountID string
	Token     string
	Type      TokenType
	Status    TokenStatus
	CreatedAt time.Time
	ExpiresAt time.Time
	UsedAt    *time.Time
}

// IsExpired reports whether now is past the expiry instant.
func (t *VerificationToken) IsExpired(now time.Time) bool {
	return now.After(t.ExpiresAt)
}

// IsUsed reports whether the token was already consumed.
func (t *VerificationToken) IsUsed() bool {
	return t.Status == TokenUsed
}

// MarkUsed records consumption of the token.
func (t *VerificationToken) MarkUsed(now time.Time) {
	t.Status = TokenUsed
	t.UsedAt = &now
}

// Clone returns a deep copy.
func (t *VerificationToken) Clone() *VerificationToken {
	c := *t
	c.UsedAt = cloneTime(t.UsedAt)
	return &c
}
