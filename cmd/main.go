package main

import (
	"advisor-app/session-service/internal/config"
	"advisor-app/session-service/internal/handler"
	"advisor-app/session-service/internal/repository"
	"advisor-app/session-service/internal/services"
	"advisor-app/session-service/internal/utils"
	"advisor-app/session-service/internal/utils/push"
	"advisor-app/session-service/internal/utils/video"
	"context"
	"log"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

func main() {
	baseCtx := context.Background()
	ctx, shutdownManager := utils.NewShutdownManager(baseCtx)
	shutdownManager.StartListening()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal("Failed to load config:", err)
	}

	mongoClient, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.MongoURI))
	if err != nil {
		log.Fatal("Failed to connect to MongoDB:", err)
	}
	db := mongoClient.Database(cfg.MongoDatabase)

	shutdownManager.Register(func(ctx context.Context) error {
		log.Println("[SHUTDOWN] Closing MongoDB connection...")
		return mongoClient.Disconnect(ctx)
	})

	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		log.Fatal("Invalid Redis URL:", err)
	}
	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Fatal("Failed to ping Redis:", err)
	}

	shutdownManager.Register(func(ctx context.Context) error {
		log.Println("[SHUTDOWN] Closing Redis connection...")
		return rdb.Close()
	})

	advisorRepo := repository.NewAdvisorRepository(db)
	requestRepo := repository.NewRequestRepository(db)
	sessionRepo := repository.NewSessionRepository(db)
	deviceTokenRepo := repository.NewDeviceTokenRepository(db)
	txRunner := repository.NewTxRunner(mongoClient)

	broker := services.NewRedisBroker(rdb)
	shutdownManager.Register(func(ctx context.Context) error {
		log.Println("[SHUTDOWN] Closing event broker...")
		return broker.Close()
	})

	var notifier services.Notifier = services.NoopNotifier{}
	if cfg.FCMCredentials != "" {
		fcmClient, err := push.NewFCMClient(cfg.FCMCredentials)
		if err != nil {
			log.Fatal("Failed to init FCM client:", err)
		}
		notifier = services.NewPushNotifier(deviceTokenRepo, fcmClient)
	}

	var videoClient *video.TwilioClient
	var rooms services.RoomProvisioner
	var tokens handler.TokenMinter
	if cfg.TwilioAccountSID != "" {
		videoClient = video.NewTwilioClient(cfg.TwilioAccountSID, cfg.TwilioAPIKey, cfg.TwilioAPISecret)
		rooms = videoClient
		tokens = videoClient
	}

	webhook := utils.NewWebhookClient(cfg.BillingWebhookURL)

	presenceService := services.NewPresenceService(advisorRepo, sessionRepo, txRunner, rdb, broker)
	coordinator := services.NewCoordinator(advisorRepo, requestRepo, sessionRepo, txRunner, presenceService, broker, webhook, rooms, notifier)
	queueService := services.NewQueueService(requestRepo, coordinator, broker, notifier)
	registryService := services.NewRegistryService(sessionRepo, broker, notifier)

	queueService.StartExpiry(ctx, time.Duration(cfg.RequestTTLMinutes)*time.Minute)

	requestHandler := handler.NewRequestHandler(queueService, coordinator)
	sessionHandler := handler.NewSessionHandler(registryService, coordinator, tokens)
	advisorHandler := handler.NewAdvisorHandler(presenceService, deviceTokenRepo)
	wsHandler := handler.NewWSHandler(registryService, queueService, broker)

	router := gin.Default()

	router.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.AllowedOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "PATCH", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	api := router.Group("/api")
	api.Use(utils.AuthMiddleware(cfg.JWTSecret))
	{
		requests := api.Group("/requests")
		{
			requests.POST("/", utils.RequireRoles("user"), requestHandler.CreateRequest)
			requests.GET("/pending", utils.RequireRoles("advisor"), requestHandler.ListPending)
			requests.POST("/:id/accept", utils.RequireRoles("advisor"), requestHandler.Accept)
			requests.POST("/:id/close", requestHandler.Close)
		}

		sessions := api.Group("/sessions")
		{
			sessions.GET("/:id", sessionHandler.Get)
			sessions.POST("/:id/end", sessionHandler.End)
			sessions.POST("/:id/messages", sessionHandler.SendMessage)
			sessions.GET("/:id/messages", sessionHandler.GetMessages)
			sessions.GET("/:id/token", sessionHandler.JoinToken)
		}

		advisors := api.Group("/advisors")
		{
			advisors.GET("/:id/presence", advisorHandler.GetPresence)
			advisors.PUT("/availability", utils.RequireRoles("advisor"), advisorHandler.SetAvailability)
		}

		api.POST("/devices/token", advisorHandler.RegisterDevice)

		admin := api.Group("/admin")
		admin.Use(utils.RequireRoles("admin"))
		{
			admin.GET("/sessions", sessionHandler.ListSessions)
			admin.POST("/sessions/:id/end", sessionHandler.End)
		}
	}

	ws := router.Group("/ws")
	ws.Use(utils.AuthMiddleware(cfg.JWTSecret))
	{
		ws.GET("/sessions/:id", wsHandler.StreamSession)
		ws.GET("/advisor/inbox", utils.RequireRoles("advisor"), wsHandler.StreamInbox)
	}

	server := &http.Server{
		Addr:    cfg.ServerPort,
		Handler: router,
	}

	go func() {
		log.Println("Session coordination service running on", cfg.ServerPort)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	shutdownManager.Register(func(ctx context.Context) error {
		log.Println("[SHUTDOWN] Shutting down HTTP server...")
		return server.Shutdown(ctx)
	})

	select {}
}
