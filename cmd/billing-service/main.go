package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/exlearn/billing-service/internal/app"
	"github.com/exlearn/billing-service/internal/billing"
	"github.com/exlearn/billing-service/internal/catalog"
	"github.com/exlearn/billing-service/internal/config"
	"github.com/exlearn/billing-service/internal/email"
	"github.com/exlearn/billing-service/internal/http/routes"
	"github.com/exlearn/billing-service/internal/identity"
	"github.com/exlearn/billing-service/internal/kafka"
	"github.com/exlearn/billing-service/internal/ledger"
	"github.com/exlearn/billing-service/internal/metrics"
	"github.com/exlearn/billing-service/internal/notification"
	"github.com/exlearn/billing-service/internal/purchase"
	"github.com/exlearn/billing-service/internal/repository"
	"github.com/exlearn/billing-service/internal/repository/postgres"
	"github.com/exlearn/billing-service/internal/repository/rediscache"
	"github.com/exlearn/billing-service/internal/token"
	"github.com/exlearn/billing-service/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	log := initLogger()
	log.Infow("Billing service starting up...")

	cfg, err := config.LoadConfig(".env")
	if err != nil {
		log.Fatalw("Failed to load configuration", "error", err)
	}
	if cfg.Stripe.APIKey == "" {
		log.Warnw("Stripe API key is not set; credits plan enrollment will fail")
	}
	if cfg.InternalAPI.Key == "" {
		log.Warnw("Internal API key is not set; internal routes will reject all callers")
	}

	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	zapLog, err := zap.NewProduction()
	if err != nil {
		log.Fatalw("Failed to initialize zap logger", "error", err)
	}
	defer zapLog.Sync()

	codec, err := token.NewCodec(cfg)
	if err != nil {
		log.Fatalw("Failed to load session signing keys", "error", err)
	}

	// Stores: Postgres when a DSN is set, in-memory otherwise.
	var (
		users     repository.UserRepository
		orders    repository.OrderRepository
		courses   repository.CourseStore
		schedules repository.ScheduleStore
		diplomas  repository.DiplomaStore
	)
	if cfg.Database.DSN != "" {
		pool, err := postgres.NewConnection(ctx, cfg.Database.DSN, log)
		if err != nil {
			log.Fatalw("Failed to connect to database", "error", err)
		}
		defer pool.Close()
		log.Infow("Database connection established")

		users = postgres.NewPostgresUserRepository(pool, log)
		orders = postgres.NewPostgresOrderRepository(pool, log)
		pgCatalog := postgres.NewPostgresCatalog(pool, log)
		courses, schedules, diplomas = pgCatalog, pgCatalog, pgCatalog
	} else {
		log.Warnw("No database DSN configured, using in-memory stores")
		users = repository.NewInMemoryUserRepository(log)
		orders = repository.NewInMemoryOrderRepository(log)
		memCatalog := repository.NewInMemoryCatalog(log)
		courses, schedules, diplomas = memCatalog, memCatalog, memCatalog
	}

	// Redis read cache in front of the catalog, when available.
	if cfg.Redis.Addr != "" {
		redisClient, err := rediscache.NewClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, log)
		if err != nil {
			log.Warnw("Failed to initialize Redis cache, continuing without caching", "error", err)
		} else {
			log.Infow("Redis catalog cache initialized")
			defer func() {
				if err := redisClient.Close(); err != nil {
					log.Errorw("Error closing Redis connection", "error", err)
				}
			}()
			cached := rediscache.NewCachedCatalog(courses, schedules, diplomas, redisClient, log)
			courses, schedules, diplomas = cached, cached, cached
		}
	}

	ledgerClient := ledger.NewHTTPClient(cfg.Ledger.URL, cfg.Ledger.APIKey, log)

	var producer kafka.OrderProducer
	if len(cfg.Kafka.Brokers) > 0 {
		producer, err = kafka.NewOrderProducer(cfg.Kafka.Brokers, log)
		if err != nil {
			log.Errorw("Failed to initialize Kafka producer, continuing without event publishing", "error", err)
			producer = nil
		} else {
			defer func() {
				if err := producer.Close(); err != nil {
					log.Errorw("Error closing Kafka producer", "error", err)
				}
			}()
		}
	} else {
		log.Warnw("No Kafka brokers configured, order events disabled")
	}

	var mail email.Service
	if cfg.Email.SendGridKey != "" {
		mail = email.NewSendGridClient(cfg.Email.SendGridKey, cfg.Email.Sender, cfg.Email.SenderName, zapLog)
	} else {
		log.Warnw("No SendGrid key configured, emails will only be logged")
		mail = email.NewLogService(zapLog)
	}
	dispatcher := notification.NewEmailDispatcher(mail, producer, cfg.Email.SupportAddress, log)

	registry := prometheus.NewRegistry()
	purchaseMetrics := metrics.NewPurchaseMetrics(registry, log)

	priceResolver := catalog.NewPriceResolver(courses, schedules, diplomas, cfg.Billing.BookingDepositAmount, log)
	stripeClient := billing.NewStripeClient(cfg.Stripe.APIKey, log)

	purchaseService := purchase.NewService(
		priceResolver, users, orders, ledgerClient,
		dispatcher, producer, purchaseMetrics,
		cfg.Billing.DefaultCurrency, log,
	)
	billingService := billing.NewService(
		users, stripeClient, ledgerClient,
		cfg.Stripe.CreditsPlanID, cfg.Stripe.CreditsPlanLevel, cfg.Billing.CreditsTTLSeconds,
		log,
	)
	identityResolver := identity.NewResolver(users, codec, cfg.Billing.DemoAvatarURL, log)

	application := app.NewApp(cfg, app.Deps{
		Users:           users,
		Ledger:          ledgerClient,
		Codec:           codec,
		Identity:        identityResolver,
		PurchaseService: purchaseService,
		BillingService:  billingService,
		MetricsRegistry: registry,
	}, log)

	router := gin.New()
	routes.SetupRoutes(router, application, log)

	httpServer := &http.Server{
		Addr:         ":" + cfg.App.Port,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	go func() {
		log.Infow("Starting HTTP server", "port", cfg.App.Port)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalw("Failed to start HTTP server", "error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Infow("Shutdown signal received")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	log.Infow("Shutting down HTTP server")
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Errorw("HTTP server shutdown error", "error", err)
	} else {
		log.Infow("HTTP server gracefully stopped")
	}

	log.Infow("Cleanup finished. Goodbye!")
}

func initLogger() *logger.Logger {
	logLevel := logger.INFO
	if os.Getenv("LOG_LEVEL") == "debug" {
		logLevel = logger.DEBUG
	}
	return logger.New(logLevel)
}
