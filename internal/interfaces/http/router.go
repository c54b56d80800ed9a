package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/jaxspot/billing/internal/interfaces/http/routes"
	"github.com/jaxspot/billing/internal/interfaces/http/middleware"
	"github.com/jaxspot/billing/internal/shared/version"
)

func newEngine(c *Container) *gin.Engine {
	engine := gin.New()
	engine.Use(middleware.CustomLogger(c.log.Named("http")))
	engine.Use(middleware.Recovery(c.log.Named("http")))

	engine.GET("/health", func(ctx *gin.Context) {
		ctx.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	engine.GET("/version", func(ctx *gin.Context) {
		ctx.JSON(http.StatusOK, version.Get())
	})
	engine.GET("/metrics", gin.WrapH(promhttp.Handler()))

	routes.SetupBillingRoutes(engine, &routes.BillingRouteConfig{
		BillingHandler:   c.billingHandler,
		MemberMiddleware: c.memberMiddleware,
	})

	return engine
}
