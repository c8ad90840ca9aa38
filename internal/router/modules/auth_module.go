package modules

import (
	"github.com/gin-gonic/gin"

	handlers "github.com/oksasatya/account-lifecycle/internal/interface/http"
	"github.com/oksasatya/account-lifecycle/internal/interface/middleware"
)

// AuthModule wires the account lifecycle routes under /v1/auth.
// Public: register, login, verify, verify/resend, refresh (rate limited per IP and path)
// Protected: GET me (bearer access token)
type AuthModule struct {
	Handler *handlers.AuthHandler
	JWT     middleware.AccessTokenParser
	Redis   middleware.Counter
	Limit   middleware.RateLimitConfig
}

func NewAuthModule(h *handlers.AuthHandler, jwt middleware.AccessTokenParser, rdb middleware.Counter, limit middleware.RateLimitConfig) *AuthModule {
	return &AuthModule{Handler: h, JWT: jwt, Redis: rdb, Limit: limit}
}

func (m *AuthModule) Register(rg *gin.RouterGroup) {
	auth := rg.Group("/v1/auth")

	limiter := middleware.RateLimit(m.Redis, m.Limit)
	auth.POST("/register", limiter, m.Handler.Register)
	auth.POST("/login", limiter, m.Handler.Login)
	auth.GET("/verify", limiter, m.Handler.Verify)
	auth.POST("/verify/resend", limiter, m.Handler.ResendVerification)
	auth.POST("/refresh", limiter, m.Handler.Refresh)

	auth.GET("/me", middleware.Auth(m.JWT), m.Handler.Me)
}
