package application

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/oksasatya/account-lifecycle/internal/domain/entity"
	"github.com/oksasatya/account-lifecycle/internal/domain/repository"
	"github.com/oksasatya/account-lifecycle/pkg/helpers"
	"github.com/oksasatya/account-lifecycle/pkg/mailer"
	mailtpl "github.com/oksasatya/account-lifecycle/pkg/mailer/templates"
)

// SessionIssuer mints and checks the signed access/refresh token pair.
type SessionIssuer interface {
	GenerateAccessToken(userID, email string) (string, time.Time, error)
	GenerateRefreshToken(userID string) (string, time.Time, error)
	ParseRefreshToken(token string) (*helpers.Claims, error)
	AccessTTLSeconds() int64
}

// EmailDispatcher queues an email for asynchronous delivery and reports
// whether it was accepted.
type EmailDispatcher interface {
	Dispatch(job mailer.EmailJob) bool
}

// Settings are the tunables of the account lifecycle.
type Settings struct {
	MaxResendAttempts    int
	ResendWindow         time.Duration
	VerificationTokenTTL time.Duration
	// VerifyURL is the public verification endpoint; the token is appended
	// as the "token" query parameter.
	VerifyURL string
	Branding  mailtpl.Branding
	// Now overrides the clock. Defaults to time.Now.
	Now func() time.Time
}

// Service implements registration, email verification and sessions.
type Service struct {
	uow      repository.UnitOfWork
	tokens   *TokenStore
	vault    *CredentialVault
	sessions SessionIssuer
	limiter  ResendLimiter
	mail     EmailDispatcher
	logger   *logrus.Logger
	settings Settings
	now      func() time.Time
}

func NewService(
	uow repository.UnitOfWork,
	gen TokenGenerator,
	hasher PasswordHasher,
	sessions SessionIssuer,
	mail EmailDispatcher,
	logger *logrus.Logger,
	settings Settings,
) *Service {
	now := settings.Now
	if now == nil {
		now = time.Now
	}
	if settings.MaxResendAttempts <= 0 {
		settings.MaxResendAttempts = 5
	}
	if settings.ResendWindow <= 0 {
		settings.ResendWindow = 24 * time.Hour
	}
	if logger == nil {
		logger = helpers.NopLogger()
	}
	return &Service{
		uow:      uow,
		tokens:   NewTokenStore(gen, settings.VerificationTokenTTL, now),
		vault:    NewCredentialVault(hasher, now),
		sessions: sessions,
		limiter:  ResendLimiter{MaxAttempts: settings.MaxResendAttempts, Window: settings.ResendWindow},
		mail:     mail,
		logger:   logger,
		settings: settings,
		now:      now,
	}
}

type RegisterResult struct {
	Email                 string
	VerificationEmailSent bool
}

type VerifyResult struct {
	Email string
}

type ResendResult struct {
	Email                 string
	VerificationEmailSent bool
}

// LoginResult is the issued session. ExpiresIn is the access token lifetime in seconds.
type LoginResult struct {
	AccessToken        string
	RefreshToken       string
	TokenType          string
	ExpiresIn          int64
	AccessTokenExpiry  time.Time
	RefreshTokenExpiry time.Time
}

// Register creates a PENDING account with its credential and a fresh
// verification token, then queues the verification email.
func (s *Service) Register(ctx context.Context, email, password, deviceInfo string) (*RegisterResult, error) {
	email = entity.NormalizeEmail(email)
	if email == "" || len(email) > entity.MaxEmailLength || password == "" {
		return nil, ErrInvalidInput
	}
	if len(password) > entity.MaxPasswordBytes {
		return nil, newError(KindInvalidInput, "Password must not exceed %d bytes", entity.MaxPasswordBytes)
	}

	var tok *entity.VerificationToken
	err := s.uow.Do(ctx, func(ctx context.Context, repos repository.Repositories) error {
		if _, err := repos.Accounts().GetByEmail(ctx, email); err == nil {
			return ErrEmailAlreadyExists
		} else if !errors.Is(err, repository.ErrNotFound) {
			return fmt.Errorf("lookup account: %w", err)
		}

		acc := entity.NewPendingAccount(uuid.NewString(), email, s.now())
		if err := repos.Accounts().Create(ctx, acc); err != nil {
			if errors.Is(err, repository.ErrDuplicate) {
				return ErrEmailAlreadyExists
			}
			return fmt.Errorf("create account: %w", err)
		}
		if err := s.vault.Store(ctx, repos.Credentials(), acc.ID, password, deviceInfo); err != nil {
			return err
		}

		var err error
		tok, err = s.tokens.Issue(ctx, repos.Tokens(), acc.ID)
		return err
	})
	if err != nil {
		return nil, s.fail("register", email, err)
	}

	sent := s.sendVerification(email, tok)
	s.logger.WithFields(logrus.Fields{
		"email":      email,
		"account_id": tok.AccountID,
		"email_sent": sent,
	}).Info("account registered")
	return &RegisterResult{Email: email, VerificationEmailSent: sent}, nil
}

// VerifyEmail consumes a verification token and activates its account.
func (s *Service) VerifyEmail(ctx context.Context, token string) (*VerifyResult, error) {
	if token == "" {
		return nil, ErrTokenNotFound
	}

	var email string
	err := s.uow.Do(ctx, func(ctx context.Context, repos repository.Repositories) error {
		// Rows are locked account first, then token, the same order resend
		// uses, so a verify racing a resend cannot deadlock.
		peek, err := repos.Tokens().FindByToken(ctx, token)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return ErrTokenNotFound
			}
			return fmt.Errorf("lookup verification token: %w", err)
		}
		acc, err := repos.Accounts().GetByID(ctx, peek.AccountID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return ErrTokenNotFound
			}
			return fmt.Errorf("lookup account: %w", err)
		}
		tok, err := s.tokens.Validate(ctx, repos.Tokens(), token, entity.TokenEmailVerification)
		if err != nil {
			return err
		}

		// Only PENDING accounts are promoted; a suspended or deleted account
		// stays where it is even though the token is consumed.
		if acc.Status == entity.AccountPending {
			acc.MarkVerified(s.now())
			if err := repos.Accounts().Update(ctx, acc); err != nil {
				return fmt.Errorf("activate account: %w", err)
			}
		}
		if err := s.tokens.Invalidate(ctx, repos.Tokens(), tok); err != nil {
			return err
		}
		email = acc.Email
		return nil
	})
	if err != nil {
		return nil, s.fail("verify email", "", err)
	}

	s.logger.WithField("email", email).Info("email verified")
	return &VerifyResult{Email: email}, nil
}

// ResendVerification issues a replacement token for an unverified account,
// subject to the per-account resend window.
func (s *Service) ResendVerification(ctx context.Context, email string) (*ResendResult, error) {
	email = entity.NormalizeEmail(email)
	if email == "" {
		return nil, ErrInvalidInput
	}

	var tok *entity.VerificationToken
	err := s.uow.Do(ctx, func(ctx context.Context, repos repository.Repositories) error {
		acc, err := repos.Accounts().GetByEmail(ctx, email)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return ErrAccountNotFound
			}
			return fmt.Errorf("lookup account: %w", err)
		}
		if acc.EmailVerified {
			return ErrAlreadyVerified
		}

		now := s.now()
		if err := s.limiter.Check(acc, now); err != nil {
			return err
		}
		tok, err = s.tokens.Issue(ctx, repos.Tokens(), acc.ID)
		if err != nil {
			return err
		}
		s.limiter.Record(acc, now)
		if err := repos.Accounts().Update(ctx, acc); err != nil {
			return fmt.Errorf("record resend: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, s.fail("resend verification", email, err)
	}

	sent := s.sendVerification(email, tok)
	s.logger.WithFields(logrus.Fields{"email": email, "email_sent": sent}).Info("verification email re-issued")
	return &ResendResult{Email: email, VerificationEmailSent: sent}, nil
}

// Login checks credentials of a verified account and opens a new session,
// replacing any previous one.
func (s *Service) Login(ctx context.Context, email, password, deviceInfo string) (*LoginResult, error) {
	email = entity.NormalizeEmail(email)

	var res *LoginResult
	err := s.uow.Do(ctx, func(ctx context.Context, repos repository.Repositories) error {
		acc, err := repos.Accounts().GetByEmail(ctx, email)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				s.vault.Verify(nil, password)
				return ErrInvalidCredentials
			}
			return fmt.Errorf("lookup account: %w", err)
		}
		if !acc.EmailVerified {
			return ErrVerificationRequired
		}

		cred, err := repos.Credentials().GetByAccountID(ctx, acc.ID)
		if err != nil && !errors.Is(err, repository.ErrNotFound) {
			return fmt.Errorf("lookup credential: %w", err)
		}
		if !s.vault.Verify(cred, password) {
			return ErrInvalidCredentials
		}

		res, err = s.openSession(ctx, repos, acc, cred, deviceInfo)
		if err != nil {
			return err
		}
		acc.RecordLogin(s.now())
		if err := repos.Accounts().Update(ctx, acc); err != nil {
			return fmt.Errorf("record login: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, s.fail("login", email, err)
	}

	s.logger.WithField("email", email).Info("login succeeded")
	return res, nil
}

// Refresh exchanges the account's current refresh token for a new pair.
// The presented token must match the stored one, so a rotated-out token
// cannot be replayed.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (*LoginResult, error) {
	claims, err := s.sessions.ParseRefreshToken(refreshToken)
	if err != nil {
		return nil, ErrInvalidRefreshToken
	}

	var res *LoginResult
	err = s.uow.Do(ctx, func(ctx context.Context, repos repository.Repositories) error {
		acc, err := repos.Accounts().GetByID(ctx, claims.UserID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return ErrInvalidRefreshToken
			}
			return fmt.Errorf("lookup account: %w", err)
		}
		if acc.Status != entity.AccountActive {
			return ErrInvalidRefreshToken
		}
		cred, err := repos.Credentials().GetByAccountID(ctx, acc.ID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return ErrInvalidRefreshToken
			}
			return fmt.Errorf("lookup credential: %w", err)
		}
		if cred.RefreshToken == "" ||
			subtle.ConstantTimeCompare([]byte(cred.RefreshToken), []byte(refreshToken)) != 1 ||
			cred.RefreshTokenExpiry == nil || s.now().After(*cred.RefreshTokenExpiry) {
			return ErrInvalidRefreshToken
		}

		res, err = s.openSession(ctx, repos, acc, cred, "")
		return err
	})
	if err != nil {
		return nil, s.fail("refresh", "", err)
	}
	return res, nil
}

// GetAccount loads an account by id.
func (s *Service) GetAccount(ctx context.Context, id string) (*entity.Account, error) {
	var acc *entity.Account
	err := s.uow.Do(ctx, func(ctx context.Context, repos repository.Repositories) error {
		a, err := repos.Accounts().FindByID(ctx, id)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return ErrAccountNotFound
			}
			return fmt.Errorf("lookup account: %w", err)
		}
		acc = a
		return nil
	})
	if err != nil {
		return nil, s.fail("get account", "", err)
	}
	return acc, nil
}

func (s *Service) openSession(ctx context.Context, repos repository.Repositories, acc *entity.Account, cred *entity.Credential, deviceInfo string) (*LoginResult, error) {
	access, accessExp, err := s.sessions.GenerateAccessToken(acc.ID, acc.Email)
	if err != nil {
		return nil, fmt.Errorf("sign access token: %w", err)
	}
	refresh, refreshExp, err := s.sessions.GenerateRefreshToken(acc.ID)
	if err != nil {
		return nil, fmt.Errorf("sign refresh token: %w", err)
	}
	if err := s.vault.RotateRefreshToken(ctx, repos.Credentials(), cred, refresh, refreshExp, deviceInfo); err != nil {
		return nil, err
	}
	return &LoginResult{
		AccessToken:        access,
		RefreshToken:       refresh,
		TokenType:          "Bearer",
		ExpiresIn:          s.sessions.AccessTTLSeconds(),
		AccessTokenExpiry:  accessExp,
		RefreshTokenExpiry: refreshExp,
	}, nil
}

func (s *Service) sendVerification(email string, tok *entity.VerificationToken) bool {
	if s.mail == nil || tok == nil {
		return false
	}
	link := s.settings.VerifyURL + "?token=" + url.QueryEscape(tok.Token)
	job := mailer.EmailJob{
		To:       email,
		Template: mailtpl.VerifyEmail,
		Data:     mailtpl.NewVerifyEmailData(s.settings.Branding, email, link, mailtpl.WithExpiresAt(tok.ExpiresAt)),
	}
	if !s.mail.Dispatch(job) {
		s.logger.WithField("email", email).Warn("verification email not queued")
		return false
	}
	return true
}

// fail passes client-facing errors through and logs everything else.
func (s *Service) fail(op, email string, err error) error {
	if _, ok := AsError(err); ok {
		return err
	}
	fields := logrus.Fields{"op": op, "error": err.Error()}
	if email != "" {
		fields["email"] = email
	}
	s.logger.WithFields(fields).Error("account operation failed")
	return fmt.Errorf("%s: %w", op, err)
}
