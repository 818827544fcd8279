package main

import (
	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"bakery-service/internal/handler"
	"bakery-service/internal/mailer"
	mid "bakery-service/internal/middleware"
	"bakery-service/internal/model"
	"bakery-service/internal/ordering"
	"bakery-service/internal/payment"
	"bakery-service/pkg/config"
	"bakery-service/pkg/database"
	"bakery-service/pkg/jwtutil"
	"bakery-service/pkg/logger"
	"bakery-service/prometheus"
)

func main() {
	// Load .env file; optional, environment variables win in production
	_ = godotenv.Load()

	// Load configuration
	appConfig, err := config.Load("bakery-service")
	if err != nil {
		// Can't use structured logger yet since it's not initialized
		panic("Failed to load configuration: " + err.Error())
	}

	// Initialize logger
	if err := logger.InitLogger(appConfig); err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	log := logger.GetLogger()
	defer log.Sync()

	log.Info("Starting bakery-service",
		zap.String("environment", appConfig.Server.Env),
		zap.String("port", appConfig.Server.Port))

	// Initialize JWT utility
	jwtutil.Initialize(&appConfig.JWT)
	log.Info("JWT utility initialized")

	// Initialize Prometheus metrics
	prometheus.InitMetrics(appConfig)
	log.Info("Prometheus metrics initialized",
		zap.String("metrics_prefix", appConfig.Metrics.Prefix))

	// Initialize database
	db, err := database.InitDB(&appConfig.DB)
	if err != nil {
		log.Fatal("Failed to initialize database", zap.Error(err))
	}
	if err := database.MigrateModels(db,
		&model.Bakery{}, &model.Product{}, &model.Order{}, &model.OrderItem{}); err != nil {
		log.Fatal("Failed to run migrations", zap.Error(err))
	}
	log.Info("Database connection established")

	// External collaborators
	payments := payment.NewClient(&payment.Config{
		BaseURL:    appConfig.Payment.BaseURL,
		SecretKey:  appConfig.Payment.SecretKey,
		SuccessURL: appConfig.Payment.SuccessURL,
		CancelURL:  appConfig.Payment.CancelURL,
		Currency:   appConfig.Payment.Currency,
	})
	mail := mailer.NewClient(&mailer.Config{
		BaseURL: appConfig.Mail.BaseURL,
		APIKey:  appConfig.Mail.APIKey,
		From:    appConfig.Mail.From,
	})

	// Ordering core
	store := ordering.NewStore(db)
	allocator := ordering.NewAllocator(store)
	coordinator := ordering.NewCoordinator(store)
	guard := ordering.NewGuard(store, payments, allocator, coordinator)

	// Handlers
	bakeryHandler := handler.NewBakeryHandler(db)
	productHandler := handler.NewProductHandler(db, store)
	orderHandler := handler.NewOrderHandler(db, allocator, coordinator, guard, payments, mail)

	// Initialize Echo instance
	e := echo.New()

	// Middleware
	e.Use(middleware.Recover())
	e.Use(mid.RequestIDMiddleware)
	e.Use(mid.MetricsMiddleware)

	// Metrics endpoint
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	// Health check endpoint
	e.GET("/health", handler.Health)

	// Public catalog and checkout
	e.GET("/api/products", productHandler.ListCrossBakery)
	e.GET("/api/bakeries", bakeryHandler.ListBakeries)
	e.GET("/api/bakeries/:id", bakeryHandler.GetBakery)
	e.GET("/api/bakeries/:id/products", productHandler.ListProducts)
	e.POST("/api/bakeries", bakeryHandler.CreateBakery)
	e.POST("/api/bakeries/:id/login", bakeryHandler.Login)
	e.POST("/api/orders", orderHandler.SubmitOrder)
	e.POST("/api/orders/confirm", orderHandler.ConfirmPayment)

	// Staff API - JWT scoped to the bakery in the route
	staffAPI := e.Group("/api/bakeries/:id", mid.AuthMiddleware)
	staffAPI.POST("/products", productHandler.CreateProduct)
	staffAPI.POST("/products/copy", productHandler.CopyProduct)
	staffAPI.PATCH("/products/:productId", productHandler.UpdateProduct)
	staffAPI.DELETE("/products/:productId", productHandler.DeleteProduct)
	staffAPI.DELETE("/products", productHandler.DeleteProduct)
	staffAPI.GET("/orders", orderHandler.ListOrders)
	staffAPI.PATCH("/orders/:orderId", orderHandler.UpdateOrder)
	staffAPI.DELETE("/orders/:orderId", orderHandler.DeleteOrder)
	staffAPI.DELETE("/orders", orderHandler.DeleteOrder)

	// Start server
	port := appConfig.Server.Port
	log.Info("Starting server", zap.String("port", port))
	if err := e.Start(":" + port); err != nil {
		log.Fatal("Server error", zap.Error(err))
	}
}
