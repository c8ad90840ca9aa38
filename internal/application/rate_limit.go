package application

import (
	"time"

	"github.com/oksasatya/account-lifecycle/internal/domain/entity"
)

// ResendLimiter gates verification resends with a per-account counter that
// resets once the last resend falls outside Window. State lives on the
// account row, so it is only correct when Check and Record run inside the
// same unit of work that persists the account.
type ResendLimiter struct {
	MaxAttempts int
	Window      time.Duration
}

// Check resets a stale counter and rejects the attempt when the window is exhausted.
func (l ResendLimiter) Check(a *entity.Account, now time.Time) error {
	if a.LastResendAt == nil || a.LastResendAt.Before(now.Add(-l.Window)) {
		a.ResendCount = 0
		return nil
	}
	if a.ResendCount >= l.MaxAttempts {
		return newError(KindRateLimitExceeded,
			"Maximum resend attempts (%d) exceeded. Please try again after %d hours.",
			l.MaxAttempts, int(l.Window.Hours()))
	}
	return nil
}

// Record counts a successful resend.
func (l ResendLimiter) Record(a *entity.Account, now time.Time) {
	a.ResendCount++
	a.LastResendAt = &now
	a.UpdatedAt = now
}
