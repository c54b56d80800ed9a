package routes

import (
	"github.com/gin-gonic/gin"

	"github.com/jaxspot/billing/internal/interfaces/http/handlers"
	"github.com/jaxspot/billing/internal/interfaces/http/middleware"
)

// BillingRouteConfig holds dependencies for billing routes.
type BillingRouteConfig struct {
	BillingHandler   *handlers.BillingHandler
	MemberMiddleware *middleware.MemberMiddleware
}

// SetupBillingRoutes configures billing routes.
func SetupBillingRoutes(engine *gin.Engine, cfg *BillingRouteConfig) {
	billing := engine.Group("/billing")
	{
		// Provider-initiated callbacks
		billing.POST("/facebook", cfg.BillingHandler.FacebookCallback)
		billing.GET("/subscription/callback", cfg.MemberMiddleware.Resolve(), cfg.BillingHandler.ProviderReturn)

		members := billing.Group("/subscription/:provider")
		members.Use(cfg.MemberMiddleware.RequireMember())
		{
			members.GET("/service", cfg.BillingHandler.StartPurchase)
			members.GET("/cancel", cfg.BillingHandler.CancelSubscription)
		}
	}
}
