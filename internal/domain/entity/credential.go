package entity

import "time"

// Credential holds the password hash and the single active session's
// renewal state for an account. It is keyed by the owning account.
type Credential struct {
	AccountID          string
	PasswordHash       string
	RefreshToken       string // empty when no session is active
	RefreshTokenExpiry *time.Time
	DeviceInfo         string
	UpdatedAt          time.Time
}

// RotateSession replaces the tracked refresh token, revoking any previous one.
// An empty deviceInfo keeps the previously recorded device.
func (c *Credential) RotateSession(token string, expiry time.Time, deviceInfo string, now time.Time) {
	c.RefreshToken = token
	c.RefreshTokenExpiry = &expiry
	if deviceInfo != "" {
		c.DeviceInfo = deviceInfo
	}
	c.UpdatedAt = now
}

// Clone returns a deep copy.
func (c *Credential) Clone() *Credential {
	cp := *c
	cp.RefreshTokenExpiry = cloneTime(c.RefreshTokenExpiry)
	return &cp
}
