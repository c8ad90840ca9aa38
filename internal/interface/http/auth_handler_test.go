package handlers

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/oksasatya/account-lifecycle/internal/application"
	"github.com/oksasatya/account-lifecycle/internal/infrastructure/memory"
	"github.com/oksasatya/account-lifecycle/internal/interface/middleware"
	"github.com/oksasatya/account-lifecycle/pkg/helpers"
	"github.com/oksasatya/account-lifecycle/pkg/mailer"
	"github.com/oksasatya/account-lifecycle/pkg/validation"
)

func init() {
	gin.SetMode(gin.TestMode)
	validation.Init()
}

type outbox struct {
	mu   sync.Mutex
	jobs []mailer.EmailJob
}

func (o *outbox) Dispatch(job mailer.EmailJob) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.jobs = append(o.jobs, job)
	return true
}

func (o *outbox) lastToken(t *testing.T) string {
	t.Helper()
	o.mu.Lock()
	defer o.mu.Unlock()
	require.NotEmpty(t, o.jobs)
	link, _ := o.jobs[len(o.jobs)-1].Data["VerifyURL"].(string)
	u, err := url.Parse(link)
	require.NoError(t, err)
	return u.Query().Get("token")
}

type server struct {
	engine *gin.Engine
	mail   *outbox
}

func newServer(t *testing.T) *server {
	t.Helper()
	mail := &outbox{}
	jwt := helpers.NewJWTManager("access", "refresh", 15*time.Minute, 24*time.Hour)
	svc := application.NewService(
		memory.NewStore(),
		helpers.RandomTokenGenerator{},
		helpers.NewBcryptHasher(bcrypt.MinCost),
		jwt,
		mail,
		helpers.NopLogger(),
		application.Settings{
			VerificationTokenTTL: time.Hour,
			VerifyURL:            "http://localhost/api/v1/auth/verify",
		},
	)
	h := NewAuthHandler(svc, helpers.NopLogger())

	r := gin.New()
	g := r.Group("/api/v1/auth")
	g.POST("/register", h.Register)
	g.POST("/login", h.Login)
	g.GET("/verify", h.Verify)
	g.POST("/verify/resend", h.ResendVerification)
	g.POST("/refresh", h.Refresh)
	g.GET("/me", middleware.Auth(jwt), h.Me)
	return &server{engine: r, mail: mail}
}

func (s *server) do(t *testing.T, method, path string, body any, header ...string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	w := httptest.NewRecorder()
	s.engine.ServeHTTP(w, req)

	out := map[string]any{}
	if w.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	}
	return w, out
}

func (s *server) registerAndVerify(t *testing.T, email, password string) {
	t.Helper()
	w, _ := s.do(t, http.MethodPost, "/api/v1/auth/register", gin.H{"email": email, "password": password})
	require.Equal(t, http.StatusCreated, w.Code)
	w, _ = s.do(t, http.MethodGet, "/api/v1/auth/verify?token="+url.QueryEscape(s.mail.lastToken(t)), nil)
	require.Equal(t, http.StatusOK, w.Code)
}

func TestRegister(t *testing.T) {
	s := newServer(t)

	w, body := s.do(t, http.MethodPost, "/api/v1/auth/register", gin.H{"email": "Ada@Example.com", "password": "s3cretpass"})
	assert.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "Registration successful. Please check your email to verify your account.", body["message"])
	assert.Equal(t, "ada@example.com", body["email"])
	assert.Equal(t, true, body["verificationEmailSent"])

	w, body = s.do(t, http.MethodPost, "/api/v1/auth/register", gin.H{"email": "ada@example.com", "password": "s3cretpass"})
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, false, body["success"])
}

func TestRegister_InvalidPayload(t *testing.T) {
	s := newServer(t)

	cases := map[string]any{
		"bad email":      gin.H{"email": "nope", "password": "s3cretpass"},
		"short password": gin.H{"email": "ada@example.com", "password": "short"},
		"missing fields": gin.H{},
	}
	for name, payload := range cases {
		t.Run(name, func(t *testing.T) {
			w, body := s.do(t, http.MethodPost, "/api/v1/auth/register", payload)
			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Equal(t, "invalid payload", body["message"])
		})
	}
}

func TestVerify(t *testing.T) {
	s := newServer(t)
	w, _ := s.do(t, http.MethodPost, "/api/v1/auth/register", gin.H{"email": "ada@example.com", "password": "s3cretpass"})
	require.Equal(t, http.StatusCreated, w.Code)

	w, _ = s.do(t, http.MethodGet, "/api/v1/auth/verify", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, _ = s.do(t, http.MethodGet, "/api/v1/auth/verify?token=unknown", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	token := s.mail.lastToken(t)
	w, body := s.do(t, http.MethodGet, "/api/v1/auth/verify?token="+url.QueryEscape(token), nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Email verified successfully! You can now log in to your account.", body["message"])
	assert.Equal(t, "ada@example.com", body["email"])

	w, _ = s.do(t, http.MethodGet, "/api/v1/auth/verify?token="+url.QueryEscape(token), nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestResendVerification(t *testing.T) {
	s := newServer(t)

	w, _ := s.do(t, http.MethodPost, "/api/v1/auth/verify/resend", gin.H{"email": "ghost@example.com"})
	assert.Equal(t, http.StatusNotFound, w.Code)

	w, _ = s.do(t, http.MethodPost, "/api/v1/auth/register", gin.H{"email": "ada@example.com", "password": "s3cretpass"})
	require.Equal(t, http.StatusCreated, w.Code)

	w, body := s.do(t, http.MethodPost, "/api/v1/auth/verify/resend", gin.H{"email": "ada@example.com"})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Verification email resent. Please check your inbox.", body["message"])

	w, _ = s.do(t, http.MethodGet, "/api/v1/auth/verify?token="+url.QueryEscape(s.mail.lastToken(t)), nil)
	require.Equal(t, http.StatusOK, w.Code)

	w, _ = s.do(t, http.MethodPost, "/api/v1/auth/verify/resend", gin.H{"email": "ada@example.com"})
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestResendVerification_RateLimited(t *testing.T) {
	s := newServer(t)
	w, _ := s.do(t, http.MethodPost, "/api/v1/auth/register", gin.H{"email": "ada@example.com", "password": "s3cretpass"})
	require.Equal(t, http.StatusCreated, w.Code)

	for i := 0; i < 5; i++ {
		w, _ = s.do(t, http.MethodPost, "/api/v1/auth/verify/resend", gin.H{"email": "ada@example.com"})
		require.Equal(t, http.StatusOK, w.Code)
	}
	w, _ = s.do(t, http.MethodPost, "/api/v1/auth/verify/resend", gin.H{"email": "ada@example.com"})
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
}

func TestLogin(t *testing.T) {
	s := newServer(t)
	w, _ := s.do(t, http.MethodPost, "/api/v1/auth/register", gin.H{"email": "ada@example.com", "password": "s3cretpass"})
	require.Equal(t, http.StatusCreated, w.Code)

	w, _ = s.do(t, http.MethodPost, "/api/v1/auth/login", gin.H{"email": "ada@example.com", "password": "s3cretpass"})
	assert.Equal(t, http.StatusForbidden, w.Code)

	w, _ = s.do(t, http.MethodGet, "/api/v1/auth/verify?token="+url.QueryEscape(s.mail.lastToken(t)), nil)
	require.Equal(t, http.StatusOK, w.Code)

	w, _ = s.do(t, http.MethodPost, "/api/v1/auth/login", gin.H{"email": "ada@example.com", "password": "wrongpass"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w, _ = s.do(t, http.MethodPost, "/api/v1/auth/login", gin.H{"email": "nobody@example.com", "password": "s3cretpass"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w, body := s.do(t, http.MethodPost, "/api/v1/auth/login", gin.H{"email": "ada@example.com", "password": "s3cretpass"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Bearer", body["tokenType"])
	assert.EqualValues(t, 900, body["expiresIn"])
	assert.NotEmpty(t, body["accessToken"])
	assert.NotEmpty(t, body["refreshToken"])
}

func TestRefreshAndMe(t *testing.T) {
	s := newServer(t)
	s.registerAndVerify(t, "ada@example.com", "s3cretpass")

	_, login := s.do(t, http.MethodPost, "/api/v1/auth/login", gin.H{"email": "ada@example.com", "password": "s3cretpass"})
	access, _ := login["accessToken"].(string)
	refresh, _ := login["refreshToken"].(string)

	w, body := s.do(t, http.MethodGet, "/api/v1/auth/me", nil, "Authorization", "Bearer "+access)
	require.Equal(t, http.StatusOK, w.Code)
	data, _ := body["data"].(map[string]any)
	assert.Equal(t, "ada@example.com", data["email"])
	assert.Equal(t, "ACTIVE", data["status"])
	assert.Equal(t, true, data["emailVerified"])

	w, _ = s.do(t, http.MethodGet, "/api/v1/auth/me", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w, rotated := s.do(t, http.MethodPost, "/api/v1/auth/refresh", gin.H{"refreshToken": refresh})
	require.Equal(t, http.StatusOK, w.Code)
	assert.NotEqual(t, refresh, rotated["refreshToken"])

	// the previous refresh token was replaced
	w, _ = s.do(t, http.MethodPost, "/api/v1/auth/refresh", gin.H{"refreshToken": refresh})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w, _ = s.do(t, http.MethodPost, "/api/v1/auth/refresh", gin.H{"refreshToken": "garbage"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestStatusFor(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{application.ErrEmailAlreadyExists, http.StatusConflict},
		{application.ErrAlreadyVerified, http.StatusConflict},
		{application.ErrInvalidCredentials, http.StatusUnauthorized},
		{application.ErrInvalidRefreshToken, http.StatusUnauthorized},
		{application.ErrVerificationRequired, http.StatusForbidden},
		{application.ErrAccountNotFound, http.StatusNotFound},
		{application.ErrTokenNotFound, http.StatusBadRequest},
		{application.ErrTokenAlreadyUsed, http.StatusBadRequest},
		{application.ErrInvalidInput, http.StatusBadRequest},
		{application.ErrTokenExpired, http.StatusGone},
		{application.ErrRateLimitExceeded, http.StatusTooManyRequests},
		{errors.New("connection reset"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, StatusFor(tc.err), tc.err.Error())
	}
}

func TestRegister_MultiBytePasswordOverBcryptLimit(t *testing.T) {
	s := newServer(t)

	// 40 runes pass the binding rule but encode to 80 bytes
	w, body := s.do(t, http.MethodPost, "/api/v1/auth/register", gin.H{"email": "ada@example.com", "password": strings.Repeat("é", 40)})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Password must not exceed 72 bytes", body["message"])

	w, _ = s.do(t, http.MethodPost, "/api/v1/auth/register", gin.H{"email": "ada@example.com", "password": strings.Repeat("é", 36)})
	assert.Equal(t, http.StatusCreated, w.Code)
}

func TestTruncate(t *testing.T) {
	cases := []struct {
		name string
		in   string
		n    int
		want string
	}{
		{"short", "curl/8.0", 500, "curl/8.0"},
		{"ascii", strings.Repeat("a", 600), 500, strings.Repeat("a", 500)},
		{"three byte runes", strings.Repeat("€", 200), 500, strings.Repeat("€", 166)},
		{"two byte runes", "aé", 2, "a"},
		{"invalid bytes dropped", "ok\xffagent", 500, "okagent"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := truncate(tc.in, tc.n)
			assert.Equal(t, tc.want, got)
			assert.True(t, utf8.ValidString(got))
			assert.LessOrEqual(t, len(got), tc.n)
		})
	}
}

func TestLogin_DeviceInfoKeptValidUTF8(t *testing.T) {
	s := newServer(t)
	s.registerAndVerify(t, "ada@example.com", "s3cretpass")

	w, _ := s.do(t, http.MethodPost, "/api/v1/auth/login",
		gin.H{"email": "ada@example.com", "password": "s3cretpass", "deviceInfo": strings.Repeat("€", 200)})
	assert.Equal(t, http.StatusOK, w.Code)
}
