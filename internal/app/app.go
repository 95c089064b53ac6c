package app

import (
	"github.com/exlearn/billing-service/internal/billing"
	"github.com/exlearn/billing-service/internal/config"
	"github.com/exlearn/billing-service/internal/http/handlers"
	"github.com/exlearn/billing-service/internal/identity"
	"github.com/exlearn/billing-service/internal/ledger"
	"github.com/exlearn/billing-service/internal/middleware"
	"github.com/exlearn/billing-service/internal/purchase"
	"github.com/exlearn/billing-service/internal/repository"
	"github.com/exlearn/billing-service/internal/token"
	"github.com/exlearn/billing-service/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
)

// App is the container holding every HTTP-facing component.
type App struct {
	Config            *config.Config
	AuthHandler       *handlers.AuthHandler
	PurchaseHandler   *handlers.PurchaseHandler
	CreditsHandler    *handlers.CreditsHandler
	InternalHandler   *handlers.InternalHandler
	SessionMiddleware *middleware.SessionMiddleware
	LoggerMiddleware  gin.HandlerFunc
	MetricsRegistry   *prometheus.Registry
	Logger            *logger.Logger
}

// Deps are the wired services and stores the HTTP layer sits on.
type Deps struct {
	Users           repository.UserRepository
	Ledger          ledger.Client
	Codec           *token.Codec
	Identity        *identity.Resolver
	PurchaseService *purchase.Service
	BillingService  *billing.Service
	MetricsRegistry *prometheus.Registry
}

// NewApp builds the handlers and middleware from wired dependencies.
func NewApp(cfg *config.Config, deps Deps, log *logger.Logger) *App {
	authHandler := handlers.NewAuthHandler(
		deps.Identity, deps.Codec,
		cfg.JWT.CookieName, cfg.JWT.UserDataCookieName, cfg.Cookies.Domain,
		log,
	)
	purchaseHandler := handlers.NewPurchaseHandler(deps.PurchaseService, log)
	creditsHandler := handlers.NewCreditsHandler(deps.BillingService, log)
	internalHandler := handlers.NewInternalHandler(
		deps.Users, deps.Ledger,
		cfg.InternalAPI.Key, cfg.Billing.CreditsTTLSeconds,
		log,
	)
	sessionMiddleware := middleware.NewSessionMiddleware(deps.Users, deps.Codec, cfg.JWT.CookieName, log)

	return &App{
		Config:            cfg,
		AuthHandler:       authHandler,
		PurchaseHandler:   purchaseHandler,
		CreditsHandler:    creditsHandler,
		InternalHandler:   internalHandler,
		SessionMiddleware: sessionMiddleware,
		LoggerMiddleware:  middleware.RequestLogger(log),
		MetricsRegistry:   deps.MetricsRegistry,
		Logger:            log,
	}
}
