package routes

import (
	"github.com/exlearn/billing-service/internal/app"
	"github.com/exlearn/billing-service/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// SetupRoutes configures all API routes on the gin router.
func SetupRoutes(router *gin.Engine, app *app.App, log *logger.Logger) {
	router.Use(app.LoggerMiddleware)
	router.Use(gin.Recovery())

	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(app.MetricsRegistry, promhttp.HandlerOpts{})))

	api := router.Group("/v1")
	{
		api.GET("/health", func(c *gin.Context) {
			c.JSON(200, gin.H{"status": "ok"})
		})

		// Issues a session; mints a demo identity when none exists.
		api.POST("/anonymous", app.AuthHandler.CreateAnonymousSession)

		// Session-bound routes.
		auth := api.Group("")
		auth.Use(app.SessionMiddleware.RequireUser())
		{
			auth.POST("/purchase", app.PurchaseHandler.CreatePurchase)

			me := auth.Group("/me")
			{
				me.GET("/credits", app.CreditsHandler.GetCredits)
				me.POST("/credits/purchase", app.CreditsHandler.PurchaseCredits)
				me.POST("/credits/enroll", app.CreditsHandler.Enroll)
				me.POST("/credits/unenroll", app.CreditsHandler.Unenroll)
			}
		}

		// Service-to-service routes, shared-key guarded.
		internal := api.Group("/internal")
		internal.Use(app.InternalHandler.RequireAPIKey())
		{
			internal.GET("/users/:userId/subscription", app.InternalHandler.GetSubscriptionLevel)
			internal.POST("/users/:userId/credits", app.InternalHandler.GrantCredits)
		}
	}

	log.Infow("API routes successfully configured")
}
