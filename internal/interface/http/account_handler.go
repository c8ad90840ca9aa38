package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/oksasatya/account-lifecycle/internal/interface/middleware"
	"github.com/oksasatya/account-lifecycle/pkg/response"
)

type accountResponse struct {
	ID            string     `json:"id"`
	Email         string     `json:"email"`
	Status        string     `json:"status"`
	EmailVerified bool       `json:"emailVerified"`
	CreatedAt     time.Time  `json:"createdAt"`
	VerifiedAt    *time.Time `json:"verifiedAt,omitempty"`
	LastLoginAt   *time.Time `json:"lastLoginAt,omitempty"`
}

// Me GET /api/v1/auth/me (bearer access token)
func (h *AuthHandler) Me(c *gin.Context) {
	uid := c.GetString(middleware.CtxUserIDKey)
	if uid == "" {
		response.Error(c, http.StatusUnauthorized, "unauthorized", nil)
		return
	}
	acc, err := h.Svc.GetAccount(c.Request.Context(), uid)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, http.StatusOK, accountResponse{
		ID:            acc.ID,
		Email:         acc.Email,
		Status:        string(acc.Status),
		EmailVerified: acc.EmailVerified,
		CreatedAt:     acc.CreatedAt,
		VerifiedAt:    acc.VerifiedAt,
		LastLoginAt:   acc.LastLoginAt,
	}, "account", nil)
}
