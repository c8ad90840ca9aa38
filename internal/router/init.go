package router

import (
	"github.com/oksasatya/account-lifecycle/internal/application"
	"github.com/oksasatya/account-lifecycle/internal/container"
	handlers "github.com/oksasatya/account-lifecycle/internal/interface/http"
	"github.com/oksasatya/account-lifecycle/internal/interface/middleware"
	"github.com/oksasatya/account-lifecycle/internal/router/modules"
	"github.com/oksasatya/account-lifecycle/pkg/helpers"
	mailtpl "github.com/oksasatya/account-lifecycle/pkg/mailer/templates"
)

type AuthModuleDeps struct {
	Service *application.Service
	Handler *handlers.AuthHandler
}

func buildAuthDeps() AuthModuleDeps {
	cfg := container.GetConfig()
	logger := container.GetLogger()

	service := application.NewService(
		container.GetUnitOfWork(),
		helpers.RandomTokenGenerator{},
		helpers.NewBcryptHasher(0),
		container.GetJWT(),
		container.GetMailDispatcher(),
		logger,
		application.Settings{
			MaxResendAttempts:    cfg.MaxResendAttempts,
			ResendWindow:         cfg.ResendWindow,
			VerificationTokenTTL: cfg.VerificationTokenTTL,
			VerifyURL:            cfg.VerifyURL(),
			Branding: mailtpl.Branding{
				AppName:     cfg.AppName,
				CompanyName: cfg.CompanyName,
				SupportURL:  cfg.SupportURL,
			},
		},
	)

	return AuthModuleDeps{
		Service: service,
		Handler: handlers.NewAuthHandler(service, logger),
	}
}

// InitModules initializes all application modules and registers them with the router registry
// This function should be called once during application startup to wire up all modules
func InitModules(r *Registry) {
	cfg := container.GetConfig()
	deps := buildAuthDeps()

	limit := middleware.RateLimitConfig{
		Max:    cfg.RateLimitMax,
		Window: cfg.RateLimitWindow,
		Key:    middleware.KeyByIPAndPath(),
		Logger: container.GetLogger(),
	}
	if cfg.RateLimitAllowPrivate {
		limit.Allow = middleware.AllowPrivateIP()
	}

	var counter middleware.Counter
	if rdb := container.GetRedis(); rdb != nil {
		counter = rdb
	}

	r.Add(modules.NewAuthModule(deps.Handler, container.GetJWT(), counter, limit))
	r.Add(modules.NewDebugModule(cfg.DebugMetricsEnabled))
}
