package main

import (
	"tenancy-service/internal/handler"
	"tenancy-service/internal/middleware"
	"tenancy-service/pkg/config"
	"tenancy-service/pkg/database"
	"tenancy-service/pkg/jwtutil"
	"tenancy-service/pkg/logger"
	"tenancy-service/prometheus"

	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

func main() {
	// Load configuration from .env file and environment variables
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	// Initialize logger with config
	logger.InitLogger(cfg)
	log := logger.GetLogger()
	log.Info("Starting tenancy service...", zap.String("environment", cfg.Server.Env))

	// Initialize database (includes migrations)
	if err := database.InitDB(cfg); err != nil {
		log.Fatal("Failed to initialize database", zap.Error(err))
	}
	log.Info("Database connection established and migrations completed")

	// Wire handlers with configuration and the gateway client
	handler.Init(cfg)

	// Initialize Prometheus metrics
	prometheus.InitMetrics(cfg)
	log.Info("Prometheus metrics initialized")

	// JWT validation for tokens issued by the identity service
	jwtUtil := jwtutil.NewJWTUtil(cfg.JWT.SigningKey)

	// Initialize Echo framework
	e := echo.New()

	// Apply global middleware - order matters
	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.CORS())
	e.Use(middleware.RequestIDMiddleware())
	e.Use(logger.Middleware(log))
	e.Use(prometheus.MetricsMiddleware())

	// Public routes - no authentication required
	e.GET("/", handler.Hello)
	e.GET("/health", handler.HealthCheck)
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	// Gateway webhook: authenticated by HMAC signature, not by bearer token
	e.POST("/webhooks/payment", handler.PaymentWebhook)

	// Authenticated API
	api := e.Group("/api")
	api.Use(middleware.JWTAuthMiddleware(jwtUtil))
	api.Use(middleware.RateLimitMiddleware(cfg))

	properties := api.Group("/properties")
	properties.POST("", handler.CreateProperty)

	units := api.Group("/units")
	units.POST("", handler.CreateUnit)
	units.GET("/:id", handler.GetUnit)
	units.POST("/:id/unlist", handler.UnlistUnit)
	units.POST("/:id/relist", handler.RelistUnit)

	applications := api.Group("/applications")
	applications.POST("", handler.SubmitApplication)
	applications.POST("/:id/approve", handler.ApproveApplication)
	applications.POST("/:id/reject", handler.RejectApplication)
	applications.POST("/:id/withdraw", handler.WithdrawApplication)

	invoices := api.Group("/invoices")
	invoices.GET("", handler.ListInvoices)
	invoices.GET("/:id", handler.GetInvoice)
	invoices.POST("/:id/pay", handler.InitiatePayment)
	invoices.POST("/generate-rent", handler.GenerateRentInvoices)

	payments := api.Group("/payments")
	payments.POST("/verify", handler.VerifyPayment)

	agreements := api.Group("/agreements")
	agreements.GET("/:id", handler.GetAgreement)
	agreements.POST("/sign", handler.SignAgreement)
	agreements.POST("/:id/terminate", handler.TerminateAgreement)

	// Start server
	port := cfg.Server.Port
	log.Info("Starting server", zap.String("port", port))
	if err := e.Start(":" + port); err != nil {
		log.Fatal("Failed to start server", zap.Error(err))
	}
}
