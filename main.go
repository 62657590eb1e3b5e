package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/lumbarong/lumbarong-api/config"
	"github.com/lumbarong/lumbarong-api/controllers"
	"github.com/lumbarong/lumbarong-api/middleware"
	"github.com/lumbarong/lumbarong-api/models"
	"github.com/lumbarong/lumbarong-api/services"
	"github.com/rs/zerolog/log"
)

// redisChannel carries order events between API instances
const redisChannel = "lumbarong:events"

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}
	config.InitLogger(cfg)
	log.Info().Str("env", cfg.GoEnv).Msg("Starting LumBarong API server...")

	if err := config.ConnectDatabase(cfg.DatabaseURL); err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}

	db := config.GetDB()
	if err := models.Migrate(db); err != nil {
		log.Fatal().Err(err).Msg("Failed to migrate database")
	}
	log.Info().Msg("Database migration completed successfully")

	if err := controllers.RegisterValidators(); err != nil {
		log.Fatal().Err(err).Msg("Failed to register validators")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var storage services.ObjectStorage
	if cfg.UsesS3() {
		s3Storage, err := services.NewS3Storage(ctx, cfg)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to initialize S3 storage")
		}
		storage = s3Storage
		log.Info().Str("bucket", cfg.AWSS3Bucket).Msg("Storing uploads in S3")
	} else {
		storage = services.NewLocalStorage(cfg.UploadDir)
		log.Info().Str("dir", cfg.UploadDir).Msg("Storing uploads on local disk")
	}
	services.InitMediaService(storage)

	hub := services.NewHub(cfg.CORSOrigins)
	var broadcaster services.Broadcaster = hub
	if cfg.RedisURL != "" {
		client, err := services.NewRedisClient(ctx, cfg.RedisURL)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to connect to Redis")
		}
		defer client.Close()

		redisBroadcaster := services.NewRedisBroadcaster(client, redisChannel)
		broadcaster = redisBroadcaster
		go func() {
			if err := redisBroadcaster.Relay(ctx, hub); err != nil && !errors.Is(err, context.Canceled) {
				log.Error().Err(err).Msg("Redis relay stopped")
			}
		}()
		log.Info().Str("channel", redisChannel).Msg("Relaying order events through Redis")
	}

	services.InitOrderService(db, services.NewDBNotificationSink(db), broadcaster, services.OrderServiceOptions{
		PricePolicy: cfg.PricePolicy,
		LockTimeout: cfg.LockTimeout,
	})

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	router := setupRouter(cfg, hub)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info().Str("port", cfg.Port).Msgf("Server is running on http://localhost:%s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shut down")
	}
}

// setupRouter builds the HTTP routes. Authentication follows cfg: Auth0 when a domain is set, local tokens otherwise.
func setupRouter(cfg *config.Config, hub *services.Hub) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), middleware.RequestLogger())

	corsConfig := cors.DefaultConfig()
	if len(cfg.CORSOrigins) == 0 {
		corsConfig.AllowAllOrigins = true
	} else {
		corsConfig.AllowOrigins = cfg.CORSOrigins
	}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Authorization", middleware.RequestIDHeader}
	corsConfig.ExposeHeaders = []string{middleware.RequestIDHeader, "Retry-After"}
	router.Use(cors.New(corsConfig))

	v1 := router.Group("/api/v1")
	{
		v1.GET("/health", healthCheck)
		v1.GET("/database/status", databaseStatus)
		v1.GET("/uploads/:filename", controllers.GetUploadedFile)

		protected := v1.Group("")
		protected.Use(middleware.Authenticate(cfg))
		{
			protected.POST("/users", controllers.CreateUser)
			protected.GET("/users/me", controllers.GetMyProfile)
			protected.PUT("/users/me", controllers.UpdateMyProfile)

			protected.GET("/products", controllers.ListProducts)
			protected.GET("/products/:id", controllers.GetProduct)
			protected.POST("/products", middleware.RequireRole(models.RoleSeller, models.RoleAdmin), controllers.CreateProduct)
			protected.PUT("/products/:id/stock", middleware.RequireRole(models.RoleSeller, models.RoleAdmin), controllers.UpdateProductStock)

			protected.POST("/uploads", controllers.UploadMedia)

			orders := protected.Group("/orders")
			{
				orders.POST("", middleware.RequireRole(models.RoleCustomer), controllers.CreateOrder)
				orders.GET("", controllers.ListOrders)
				orders.GET("/:id", controllers.GetOrder)
				orders.PUT("/:id/status", controllers.UpdateOrderStatus)
				orders.POST("/:id/cancel-request", middleware.RequireRole(models.RoleCustomer), controllers.RequestCancellation)
				orders.POST("/:id/payment-proof", middleware.RequireRole(models.RoleCustomer), controllers.SubmitPaymentProof)
				orders.PUT("/:id/verify-payment", middleware.RequireRole(models.RoleSeller, models.RoleAdmin), controllers.VerifyPayment)
				orders.POST("/:id/review", middleware.RequireRole(models.RoleCustomer), controllers.SubmitReview)
				orders.POST("/:id/complete", middleware.RequireRole(models.RoleCustomer), controllers.CompleteOrder)
				orders.POST("/:id/return-request", middleware.RequireRole(models.RoleCustomer), controllers.SubmitReturnRequest)
				orders.PUT("/:id/return-request", middleware.RequireRole(models.RoleSeller, models.RoleAdmin), controllers.ResolveReturn)
				orders.GET("/:id/messages", controllers.ListMessages)
				orders.POST("/:id/messages", controllers.SendMessage)
			}

			protected.GET("/notifications", controllers.ListNotifications)
			protected.PUT("/notifications/:id/read", controllers.MarkNotificationRead)

			protected.GET("/ws", controllers.ServeRealtime(hub))
		}
	}

	return router
}

// healthCheck handles the health check endpoint
func healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "LumBarong API is running",
	})
}

// databaseStatus checks database connectivity and returns table information
func databaseStatus(c *gin.Context) {
	db := config.GetDB()

	sqlDB, err := db.DB()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "DATABASE_ERROR",
				"message": "Failed to get database instance",
			},
		})
		return
	}

	if err := sqlDB.PingContext(c.Request.Context()); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "DATABASE_CONNECTION_ERROR",
				"message": "Database connection failed",
			},
		})
		return
	}

	query := "SELECT tablename FROM pg_tables WHERE schemaname = 'public' ORDER BY tablename"
	if db.Dialector.Name() == "sqlite" {
		query = "SELECT name FROM sqlite_master WHERE type = 'table' AND name NOT LIKE 'sqlite_%' ORDER BY name"
	}

	var tables []string
	if err := db.WithContext(c.Request.Context()).Raw(query).Scan(&tables).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "DATABASE_QUERY_ERROR",
				"message": "Failed to query tables",
			},
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Database connected",
		"tables":  tables,
	})
}
