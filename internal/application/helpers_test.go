package application

import (
	"context"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/oksasatya/account-lifecycle/internal/domain/entity"
	"github.com/oksasatya/account-lifecycle/internal/domain/repository"
	"github.com/oksasatya/account-lifecycle/internal/infrastructure/memory"
	"github.com/oksasatya/account-lifecycle/pkg/helpers"
	"github.com/oksasatya/account-lifecycle/pkg/mailer"
	mailtpl "github.com/oksasatya/account-lifecycle/pkg/mailer/templates"
)

var t0 = time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

type fakeMail struct {
	mu     sync.Mutex
	jobs   []mailer.EmailJob
	reject bool
}

func (m *fakeMail) Dispatch(job mailer.EmailJob) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.reject {
		return false
	}
	m.jobs = append(m.jobs, job)
	return true
}

// lastToken extracts the token from the most recently queued verification link.
func (m *fakeMail) lastToken(t *testing.T) string {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	require.NotEmpty(t, m.jobs)
	link, ok := m.jobs[len(m.jobs)-1].Data["VerifyURL"].(string)
	require.True(t, ok)
	u, err := url.Parse(link)
	require.NoError(t, err)
	return u.Query().Get("token")
}

func (m *fakeMail) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.jobs)
}

type fixture struct {
	svc   *Service
	store *memory.Store
	clock *fakeClock
	mail  *fakeMail
	jwt   *helpers.JWTManager
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	clock := &fakeClock{t: t0}
	mail := &fakeMail{}
	store := memory.NewStore()
	jwt := helpers.NewJWTManager("access-secret", "refresh-secret", 15*time.Minute, 7*24*time.Hour).WithClock(clock.Now)

	svc := NewService(store, helpers.RandomTokenGenerator{}, helpers.NewBcryptHasher(bcrypt.MinCost), jwt, mail, helpers.NopLogger(), Settings{
		MaxResendAttempts:    5,
		ResendWindow:         24 * time.Hour,
		VerificationTokenTTL: time.Hour,
		VerifyURL:            "https://auth.example.com/api/v1/auth/verify",
		Branding:             mailtpl.Branding{AppName: "Acme"},
		Now:                  clock.Now,
	})
	return &fixture{svc: svc, store: store, clock: clock, mail: mail, jwt: jwt}
}

func mustAccountByEmail(t *testing.T, f *fixture, email string) *entity.Account {
	t.Helper()
	var acc *entity.Account
	err := f.store.Do(context.Background(), func(ctx context.Context, r repository.Repositories) (err error) {
		acc, err = r.Accounts().GetByEmail(ctx, email)
		return err
	})
	require.NoError(t, err)
	return acc
}
