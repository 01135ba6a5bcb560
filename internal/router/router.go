package router

import (
	"net/http"

	"slippers/config"
	"slippers/internal/cache"
	"slippers/internal/domain"
	"slippers/internal/handler"
	"slippers/internal/middleware"
	"slippers/internal/repository"
	"slippers/internal/service"
	"slippers/internal/ws"
	"slippers/pkg/payment"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func Setup(cfg *config.Config, db *gorm.DB, provider payment.Provider, orderCache cache.OrderCache, log *zap.Logger) *gin.Engine {
	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestLogger(log))
	limiter := middleware.NewRateLimiter(cfg.RateLimit.Requests, cfg.RateLimit.Window, cfg.RateLimit.IdleTTL)

	store := repository.NewStore(db)
	hub := ws.NewHub()

	// Services
	paymentSvc := service.NewPaymentService(store, provider, orderCache, hub, log, cfg.Octo.Currency)
	orderSvc := service.NewOrderService(store, orderCache, hub, log, cfg.Order.MaxQtyPerItem, cfg.Order.PageLimit)
	cartSvc := service.NewCartService(store, log, cfg.Order.MaxQtyPerItem)

	if cfg.Octo.WebhookSecret == "" {
		log.Warn("[notify] octo.webhook_secret is not set; notify callbacks are accepted without verification")
	}

	// Handlers
	paymentHandler := handler.NewPaymentHandler(paymentSvc, log)
	webhookHandler := handler.NewWebhookHandler(paymentSvc, cfg.Octo.WebhookSecret, log)
	orderHandler := handler.NewOrderHandler(orderSvc, log)
	cartHandler := handler.NewCartHandler(cartSvc, log)

	authMw := middleware.AuthRequired(&cfg.JWT)

	r.GET("/healthz", func(c *gin.Context) {
		sqlDB, err := db.DB()
		if err == nil {
			err = sqlDB.PingContext(c.Request.Context())
		}
		if err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "db unavailable"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/ws/orders", ws.UpgradeOrderEventsWS(&cfg.JWT, hub, log))

	api := r.Group("/api/v1")
	{
		// gateway callbacks are never rate limited
		api.POST("/octo/notify", webhookHandler.Notify)

		limited := api.Group("")
		limited.Use(middleware.RateLimit(limiter), authMw, middleware.RequireRole(domain.RoleCustomer, domain.RoleAdmin))

		octo := limited.Group("/octo")
		{
			octo.POST("/create", paymentHandler.Create)
			octo.POST("/refund", middleware.AdminRequired(), paymentHandler.Refund)
			octo.GET("/status/:reference", paymentHandler.Status)
		}

		orders := limited.Group("/orders")
		{
			orders.POST("", orderHandler.Create)
			orders.POST("/from-cart", orderHandler.CreateFromCart)
			orders.GET("", orderHandler.List)
			orders.GET("/:id", orderHandler.Get)
			orders.POST("/:id/cancel", orderHandler.Cancel)
			orders.GET("/:id/payments", orderHandler.Payments)
		}

		cart := limited.Group("/cart")
		{
			cart.GET("", cartHandler.Get)
			cart.GET("/total", cartHandler.Total)
			cart.POST("/items", cartHandler.AddItem)
			cart.PUT("/items/:id", cartHandler.UpdateItem)
			cart.DELETE("/items/:id", cartHandler.RemoveItem)
			cart.DELETE("/clear", cartHandler.Clear)
		}

		admin := limited.Group("/admin")
		admin.Use(middleware.AdminRequired())
		{
			admin.GET("/payments/:id/history", paymentHandler.History)
		}
	}
	return r
}
