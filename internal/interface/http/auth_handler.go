package handlers

import (
	"net/http"
	"strings"
	"unicode/utf8"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/oksasatya/account-lifecycle/internal/application"
	"github.com/oksasatya/account-lifecycle/pkg/response"
	"github.com/oksasatya/account-lifecycle/pkg/validation"
)

type AuthHandler struct {
	Svc    *application.Service
	Logger *logrus.Logger
}

func NewAuthHandler(svc *application.Service, logger *logrus.Logger) *AuthHandler {
	return &AuthHandler{Svc: svc, Logger: logger}
}

type registerRequest struct {
	Email      string `json:"email" binding:"required,email,max=254"`
	Password   string `json:"password" binding:"required,pwd,max=72"`
	DeviceInfo string `json:"deviceInfo" binding:"max=500"`
}

type loginRequest struct {
	Email      string `json:"email" binding:"required,email,max=254"`
	Password   string `json:"password" binding:"required,max=72"`
	DeviceInfo string `json:"deviceInfo" binding:"max=500"`
}

type resendRequest struct {
	Email string `json:"email" binding:"required,email,max=254"`
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken" binding:"required"`
}

type registerResponse struct {
	Message               string `json:"message"`
	Email                 string `json:"email"`
	VerificationEmailSent bool   `json:"verificationEmailSent"`
}

type messageResponse struct {
	Message string `json:"message"`
	Email   string `json:"email"`
}

type tokenResponse struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
	TokenType    string `json:"tokenType"`
	ExpiresIn    int64  `json:"expiresIn"`
}

// Register POST /api/v1/auth/register
func (h *AuthHandler) Register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "invalid payload", validation.ToDetails(err))
		return
	}
	deviceInfo := req.DeviceInfo
	if deviceInfo == "" {
		deviceInfo = c.GetHeader("User-Agent")
	}
	h.Logger.WithField("email", req.Email).Info("registration request received")

	res, err := h.Svc.Register(c.Request.Context(), req.Email, req.Password, truncate(deviceInfo, 500))
	if err != nil {
		h.fail(c, err)
		return
	}
	response.JSON(c, http.StatusCreated, registerResponse{
		Message:               "Registration successful. Please check your email to verify your account.",
		Email:                 res.Email,
		VerificationEmailSent: res.VerificationEmailSent,
	})
}

// Verify GET /api/v1/auth/verify?token=...
func (h *AuthHandler) Verify(c *gin.Context) {
	token := strings.TrimSpace(c.Query("token"))
	if token == "" {
		response.Error(c, http.StatusBadRequest, "invalid payload", map[string]string{"token": "is required"})
		return
	}
	res, err := h.Svc.VerifyEmail(c.Request.Context(), token)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.JSON(c, http.StatusOK, messageResponse{
		Message: "Email verified successfully! You can now log in to your account.",
		Email:   res.Email,
	})
}

// ResendVerification POST /api/v1/auth/verify/resend
func (h *AuthHandler) ResendVerification(c *gin.Context) {
	var req resendRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "invalid payload", validation.ToDetails(err))
		return
	}
	res, err := h.Svc.ResendVerification(c.Request.Context(), req.Email)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.JSON(c, http.StatusOK, messageResponse{
		Message: "Verification email resent. Please check your inbox.",
		Email:   res.Email,
	})
}

// Login POST /api/v1/auth/login
func (h *AuthHandler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "invalid payload", validation.ToDetails(err))
		return
	}
	deviceInfo := req.DeviceInfo
	if deviceInfo == "" {
		deviceInfo = c.GetHeader("User-Agent")
	}
	res, err := h.Svc.Login(c.Request.Context(), req.Email, req.Password, truncate(deviceInfo, 500))
	if err != nil {
		h.fail(c, err)
		return
	}
	response.JSON(c, http.StatusOK, toTokenResponse(res))
}

// Refresh POST /api/v1/auth/refresh
func (h *AuthHandler) Refresh(c *gin.Context) {
	var req refreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "invalid payload", validation.ToDetails(err))
		return
	}
	res, err := h.Svc.Refresh(c.Request.Context(), req.RefreshToken)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.JSON(c, http.StatusOK, toTokenResponse(res))
}

func toTokenResponse(res *application.LoginResult) tokenResponse {
	return tokenResponse{
		AccessToken:  res.AccessToken,
		RefreshToken: res.RefreshToken,
		TokenType:    res.TokenType,
		ExpiresIn:    res.ExpiresIn,
	}
}

// truncate drops invalid UTF-8 from s and cuts it to at most n bytes
// without splitting a multi-byte sequence.
func truncate(s string, n int) string {
	s = strings.ToValidUTF8(s, "")
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
