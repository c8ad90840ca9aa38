// Package memory is a process-local implementation of the repository
// interfaces, used for development and tests.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/oksasatya/account-lifecycle/internal/domain/entity"
	"github.com/oksasatya/account-lifecycle/internal/domain/repository"
)

// Store keeps every row in maps guarded by one mutex. A unit of work holds
// the mutex for its whole duration, so units of work are fully serialized
// and a failed one is rolled back from a snapshot. Do is not reentrant.
type Store struct {
	mu   sync.Mutex
	data tables
}

type tables struct {
	accounts    map[string]*entity.Account
	emails      map[string]string // email -> account id
	credentials map[string]*entity.Credential
	tokens      map[string]*entity.VerificationToken // token string -> row
}

func NewStore() *Store {
	return &Store{data: newTables()}
}

func newTables() tables {
	return tables{
		accounts:    map[string]*entity.Account{},
		emails:      map[string]string{},
		credentials: map[string]*entity.Credential{},
		tokens:      map[string]*entity.VerificationToken{},
	}
}

func (t tables) clone() tables {
	c := newTables()
	for k, v := range t.accounts {
		c.accounts[k] = v.Clone()
	}
	for k, v := range t.emails {
		c.emails[k] = v
	}
	for k, v := range t.credentials {
		c.credentials[k] = v.Clone()
	}
	for k, v := range t.tokens {
		c.tokens[k] = v.Clone()
	}
	return c
}

// Do implements repository.UnitOfWork.
func (s *Store) Do(ctx context.Context, fn func(ctx context.Context, repos repository.Repositories) error) (err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	snapshot := s.data.clone()
	defer func() {
		if p := recover(); p != nil {
			s.data = snapshot
			panic(p)
		}
		if err != nil {
			s.data = snapshot
		}
	}()

	return fn(ctx, repos{t: &s.data})
}

// Len reports the number of stored accounts.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.data.accounts)
}

type repos struct{ t *tables }

func (r repos) Accounts() repository.AccountRepository {
	return accountRepo(r)
}

func (r repos) Credentials() repository.CredentialRepository {
	return credentialRepo(r)
}

func (r repos) Tokens() repository.VerificationTokenRepository {
	return tokenRepo(r)
}

type accountRepo struct{ t *tables }

func (r accountRepo) Create(_ context.Context, a *entity.Account) error {
	if _, ok := r.t.accounts[a.ID]; ok {
		return fmt.Errorf("insert account %s: %w", a.ID, repository.ErrDuplicate)
	}
	if _, ok := r.t.emails[a.Email]; ok {
		return fmt.Errorf("insert account %s: %w", a.Email, repository.ErrDuplicate)
	}
	r.t.accounts[a.ID] = a.Clone()
	r.t.emails[a.Email] = a.ID
	return nil
}

func (r accountRepo) GetByID(_ context.Context, id string) (*entity.Account, error) {
	a, ok := r.t.accounts[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return a.Clone(), nil
}

func (r accountRepo) FindByID(ctx context.Context, id string) (*entity.Account, error) {
	return r.GetByID(ctx, id)
}

func (r accountRepo) GetByEmail(ctx context.Context, email string) (*entity.Account, error) {
	id, ok := r.t.emails[email]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return r.GetByID(ctx, id)
}

func (r accountRepo) Update(_ context.Context, a *entity.Account) error {
	cur, ok := r.t.accounts[a.ID]
	if !ok {
		return repository.ErrNotFound
	}
	if cur.Email != a.Email {
		if _, taken := r.t.emails[a.Email]; taken {
			return fmt.Errorf("update account %s: %w", a.ID, repository.ErrDuplicate)
		}
		delete(r.t.emails, cur.Email)
		r.t.emails[a.Email] = a.ID
	}
	r.t.accounts[a.ID] = a.Clone()
	return nil
}

func (r accountRepo) DeleteStale(_ context.Context, status entity.AccountStatus, cutoff time.Time, limit int) (int64, error) {
	var stale []*entity.Account
	for _, a := range r.t.accounts {
		if a.Status == status && a.CreatedAt.Before(cutoff) {
			stale = append(stale, a)
		}
	}
	sort.Slice(stale, func(i, j int) bool { return stale[i].CreatedAt.Before(stale[j].CreatedAt) })
	if limit > 0 && len(stale) > limit {
		stale = stale[:limit]
	}
	for _, a := range stale {
		delete(r.t.accounts, a.ID)
		delete(r.t.emails, a.Email)
		delete(r.t.credentials, a.ID)
		for k, tok := range r.t.tokens {
			if tok.AccountID == a.ID {
				delete(r.t.tokens, k)
			}
		}
	}
	return int64(len(stale)), nil
}

type credentialRepo struct{ t *tables }

func (r credentialRepo) Create(_ context.Context, c *entity.Credential) error {
	if _, ok := r.t.accounts[c.AccountID]; !ok {
		return fmt.Errorf("insert credential: account %s: %w", c.AccountID, repository.ErrNotFound)
	}
	if _, ok := r.t.credentials[c.AccountID]; ok {
		return fmt.Errorf("insert credential %s: %w", c.AccountID, repository.ErrDuplicate)
	}
	if err := r.checkRefreshUnique(c); err != nil {
		return err
	}
	r.t.credentials[c.AccountID] = c.Clone()
	return nil
}

func (r credentialRepo) GetByAccountID(_ context.Context, accountID string) (*entity.Credential, error) {
	c, ok := r.t.credentials[accountID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return c.Clone(), nil
}

func (r credentialRepo) Update(_ context.Context, c *entity.Credential) error {
	if _, ok := r.t.credentials[c.AccountID]; !ok {
		return repository.ErrNotFound
	}
	if err := r.checkRefreshUnique(c); err != nil {
		return err
	}
	r.t.credentials[c.AccountID] = c.Clone()
	return nil
}

func (r credentialRepo) checkRefreshUnique(c *entity.Credential) error {
	if c.RefreshToken == "" {
		return nil
	}
	for id, other := range r.t.credentials {
		if id != c.AccountID && other.RefreshToken == c.RefreshToken {
			return fmt.Errorf("refresh token for %s: %w", c.AccountID, repository.ErrDuplicate)
		}
	}
	return nil
}

type tokenRepo struct{ t *tables }

func (r tokenRepo) Create(_ context.Context, t *entity.VerificationToken) error {
	if _, ok := r.t.accounts[t.AccountID]; !ok {
		return fmt.Errorf("insert verification token: account %s: %w", t.AccountID, repository.ErrNotFound)
	}
	if _, ok := r.t.tokens[t.Token]; ok {
		return repository.ErrDuplicate
	}
	r.t.tokens[t.Token] = t.Clone()
	return nil
}

func (r tokenRepo) GetByToken(_ context.Context, token string) (*entity.VerificationToken, error) {
	t, ok := r.t.tokens[token]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return t.Clone(), nil
}

func (r tokenRepo) FindByToken(ctx context.Context, token string) (*entity.VerificationToken, error) {
	return r.GetByToken(ctx, token)
}

func (r tokenRepo) Update(_ context.Context, t *entity.VerificationToken) error {
	if _, ok := r.t.tokens[t.Token]; !ok {
		return repository.ErrNotFound
	}
	r.t.tokens[t.Token] = t.Clone()
	return nil
}

func (r tokenRepo) DeleteByAccount(_ context.Context, accountID string, typ entity.TokenType, status entity.TokenStatus) (int64, error) {
	var n int64
	for k, t := range r.t.tokens {
		if t.AccountID == accountID && t.Type == typ && t.Status == status {
			delete(r.t.tokens, k)
			n++
		}
	}
	return n, nil
}
