package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"callbridge-backend/internal/config"
	"callbridge-backend/internal/database"
	authHandler "callbridge-backend/internal/handler/http/auth"
	callHandler "callbridge-backend/internal/handler/http/call"
	chatHandler "callbridge-backend/internal/handler/http/chat"
	userHandler "callbridge-backend/internal/handler/http/user"
	"callbridge-backend/internal/handler/ws"
	"callbridge-backend/internal/middleware"
	"callbridge-backend/internal/repository/cassandra"
	"callbridge-backend/internal/repository/cockroach"
	redisrepo "callbridge-backend/internal/repository/redis"
	authService "callbridge-backend/internal/service/auth"
	callService "callbridge-backend/internal/service/call"
	chatService "callbridge-backend/internal/service/chat"
	storageService "callbridge-backend/internal/service/storage"
	"callbridge-backend/pkg/constants"
	"callbridge-backend/pkg/jwt"
	"callbridge-backend/pkg/logger"
	"callbridge-backend/pkg/metrics"
	"callbridge-backend/pkg/push"
)

func main() {
	// .env is optional; real deployments set the environment directly
	_ = godotenv.Load()

	logger.InitDefault()
	defer logger.Sync()

	cfg := config.Load()
	if len(cfg.JWTSecret) < 32 {
		logger.Fatal("JWT_SECRET must be set and at least 32 characters")
	}

	ctx := context.Background()

	// 1. Connect to CockroachDB
	cockroachDB, err := database.NewCockroachDB(ctx, cfg.Cockroach)
	if err != nil {
		logger.Fatal("Failed to connect to CockroachDB", zap.Error(err))
	}
	defer cockroachDB.Close()
	logger.Info("Connected to CockroachDB")

	// 2. Connect to Cassandra
	cassandraDB, err := database.NewCassandraDB(cfg.Cassandra)
	if err != nil {
		logger.Fatal("Failed to connect to Cassandra", zap.Error(err))
	}
	defer cassandraDB.Close()
	logger.Info("Connected to Cassandra")

	// 3. Connect to Redis
	redisDB, err := database.NewRedisDB(cfg.Redis)
	if err != nil {
		logger.Fatal("Failed to connect to Redis", zap.Error(err))
	}
	defer redisDB.Close()
	logger.Info("Connected to Redis")

	// 4. Repositories
	callRepo := cockroach.NewCallRepository(cockroachDB.Pool)
	userRepo := cockroach.NewUserRepository(cockroachDB.Pool)
	messageRepo := cassandra.NewMessageRepository(cassandraDB.Session)
	presenceRepo := redisrepo.NewPresenceRepository(redisDB.Client)
	pushTokenRepo := redisrepo.NewPushTokenRepository(redisDB.Client)

	// 5. Metrics
	appMetrics := metrics.New("call-service")

	// 6. Push notifications
	pushProvider, err := push.NewProvider()
	if err != nil {
		logger.Fatal("Failed to initialize push provider", zap.Error(err))
	}
	pushSvc := push.NewService(pushProvider, pushTokenRepo, appMetrics)

	// 7. Object storage
	minioClient, err := storageService.NewMinIOClient(cfg.MinIO)
	if err != nil {
		logger.Fatal("Failed to connect to MinIO", zap.Error(err))
	}
	storageSvc := storageService.NewService(minioClient, userRepo, cfg.MinIO)
	if err := storageSvc.EnsureBucket(ctx); err != nil {
		logger.Fatal("Failed to prepare avatar bucket", zap.Error(err))
	}

	// 8. Hub and services. The hub carries service events to connected
	// clients, so it doubles as the services' notifier.
	hub := ws.NewHub(redisDB.Client, appMetrics)

	jwtManager := jwt.NewManager(cfg.JWTSecret, cfg.AccessTokenDuration, cfg.RefreshTokenDuration)
	authSvc := authService.NewService(userRepo, pushTokenRepo, jwtManager)
	callSvc := callService.NewService(callRepo, hub, pushSvc, appMetrics, cfg.CallRingTimeout)
	chatSvc := chatService.NewService(messageRepo, hub, pushSvc, appMetrics)

	wsRouter := ws.NewRouter(hub, callSvc, chatSvc, presenceRepo, appMetrics)

	// 9. Handlers
	authHdlr := authHandler.NewHandler(authSvc)
	callHdlr := callHandler.NewHandler(callSvc)
	chatHdlr := chatHandler.NewHandler(chatSvc)
	userHdlr := userHandler.NewHandler(authSvc, storageSvc, presenceRepo)

	// 10. Gin router
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.SetTrustedProxies(nil)

	prometheusMiddleware := middleware.NewPrometheusMiddleware(appMetrics)

	router.Use(middleware.Recovery())
	router.Use(middleware.RequestLogger())
	router.Use(middleware.CORSMiddleware())
	router.Use(prometheusMiddleware.Handler())

	router.GET("/health", func(c *gin.Context) {
		pingCtx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()

		status := gin.H{
			"service":     "call-service",
			"time":        time.Now().UTC(),
			"connections": hub.ConnectionCount(),
			"cockroach":   pingStatus(cockroachDB.Ping(pingCtx)),
			"cassandra":   pingStatus(cassandraDB.Ping()),
			"redis":       pingStatus(redisDB.Ping(pingCtx)),
		}
		c.JSON(http.StatusOK, status)
	})

	router.GET("/metrics", middleware.MetricsHandler())

	v1 := router.Group("/api/v1")
	{
		v1.POST("/auth/register", authHdlr.Register)
		v1.POST("/auth/login", authHdlr.Login)
		v1.POST("/auth/refresh", authHdlr.Refresh)
	}

	authed := v1.Group("")
	authed.Use(middleware.AuthMiddleware(jwtManager))
	{
		authed.GET("/ws", wsRouter.ServeWS)

		authed.GET("/calls", callHdlr.History)
		authed.GET("/messages/:peer_id", chatHdlr.History)

		authed.GET("/users/me", userHdlr.Me)
		authed.POST("/users/me/push-token", authHdlr.SavePushToken)
		authed.POST("/users/me/avatar", userHdlr.UploadAvatar)
		authed.GET("/users/online", userHdlr.Online)
		authed.GET("/users/:user_id", userHdlr.Get)
		authed.GET("/users/:user_id/busy", callHdlr.Busy)
	}

	// 11. Start server
	addr := fmt.Sprintf(":%d", cfg.Port)
	server := &http.Server{
		Addr:    addr,
		Handler: router,
	}

	go func() {
		logger.Info("Call service starting",
			zap.String("addr", addr),
			zap.String("env", cfg.Env))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// 12. Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), constants.GracefulShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}

	logger.Info("Server exited")
}

func pingStatus(err error) string {
	if err != nil {
		return "unhealthy"
	}
	return "healthy"
}
