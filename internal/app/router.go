package app

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/newrelic/go-agent/v3/integrations/nrgin"
	"github.com/newrelic/go-agent/v3/newrelic"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"dispatch/internal/handler"
	"dispatch/internal/middleware"
)

// RouterDeps contains all dependencies needed for the router.
type RouterDeps struct {
	RiderHandler    *handler.RiderHandler
	OrderHandler    *handler.OrderHandler
	DeliveryHandler *handler.DeliveryHandler
	EarningsHandler *handler.EarningsHandler
	Identity        middleware.Identity
	OperatorKey     string
	RedisClient     *redis.Client
	NewRelicApp     *newrelic.Application
	Logger          zerolog.Logger
}

// NewRouter creates a new Gin router with all routes registered.
func NewRouter(deps RouterDeps) *gin.Engine {
	router := gin.New()

	identity := deps.Identity
	if identity == nil {
		identity = middleware.HeaderIdentity{}
	}

	// Global middleware.
	router.Use(gin.Recovery())
	router.Use(middleware.RequestID())
	router.Use(middleware.CORSMiddleware())

	// Add New Relic middleware if enabled.
	if deps.NewRelicApp != nil {
		router.Use(nrgin.Middleware(deps.NewRelicApp))
	}

	router.Use(middleware.Authenticate(identity))
	router.Use(middleware.RequestLogger(deps.Logger))
	if deps.NewRelicApp != nil {
		router.Use(middleware.NewRelicAttributes())
	}
	if deps.RedisClient != nil {
		router.Use(middleware.IdempotencyMiddleware(deps.RedisClient, deps.Logger))
	}

	// Health check.
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	self := middleware.RequireSelf("id")
	rider := middleware.RequireRider()
	operator := middleware.RequireOperator(deps.OperatorKey)
	riderOrOperator := middleware.RequireRiderOrOperator(deps.OperatorKey)

	// API v1 routes.
	v1 := router.Group("/v1")
	{
		// Rider routes.
		riders := v1.Group("/riders")
		{
			riders.POST("/register", deps.RiderHandler.Register)
			riders.GET("", deps.RiderHandler.GetAll)
			riders.GET("/nearby", deps.RiderHandler.Nearby)
			riders.GET("/:id", deps.RiderHandler.Get)
			riders.GET("/:id/delivery", self, deps.RiderHandler.ActiveDelivery)
			riders.PUT("/:id/availability", self, deps.RiderHandler.SetAvailability)
			riders.POST("/:id/location", self, deps.RiderHandler.UpdateLocation)
			riders.POST("/:id/deactivate", self, deps.RiderHandler.Deactivate)
			riders.GET("/:id/events", self, deps.RiderHandler.Events)

			// Earnings routes.
			riders.GET("/:id/earnings/summary", self, deps.EarningsHandler.Summary)
			riders.GET("/:id/earnings/buckets", self, deps.EarningsHandler.Buckets)
			riders.GET("/:id/earnings/pending", self, deps.EarningsHandler.Pending)
			riders.POST("/:id/payouts", self, deps.EarningsHandler.RequestPayout)
		}

		// Order routes.
		orders := v1.Group("/orders")
		{
			orders.POST("", deps.OrderHandler.Submit)
			orders.GET("/available", deps.OrderHandler.Available)
			orders.GET("/:id", deps.OrderHandler.Get)
			orders.POST("/:id/accept", rider, deps.OrderHandler.Accept)
		}

		// Delivery routes.
		deliveries := v1.Group("/deliveries")
		{
			deliveries.GET("/:id", deps.DeliveryHandler.Get)
			deliveries.POST("/:id/advance", rider, deps.DeliveryHandler.Advance)
			deliveries.POST("/:id/cancel", riderOrOperator, deps.DeliveryHandler.Cancel)
			deliveries.POST("/:id/rating", deps.DeliveryHandler.Rate)
		}

		// Payout routes.
		payouts := v1.Group("/payouts")
		{
			payouts.POST("/:reference/complete", operator, deps.EarningsHandler.CompletePayout)
		}
	}

	return router
}
