// internal/app/server.go
package app

import (
	"context"
	"fmt"
	"log"

	"ruleboard-service/internal/config"
	"ruleboard-service/internal/db"
	authHandler "ruleboard-service/internal/handlers/auth"
	notifyH "ruleboard-service/internal/handlers/notification"
	streamHandler "ruleboard-service/internal/handlers/stream"
	"ruleboard-service/internal/cache"
	"ruleboard-service/internal/middleware"
	"ruleboard-service/internal/pkg/jwt"
	"ruleboard-service/internal/repository/postgres"
	"ruleboard-service/internal/storage"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type Server struct {
	cfg    *config.Config
	engine *gin.Engine
	logger *zap.Logger
}

func NewServer() *Server {
	cfg := config.Load()
	engine := gin.New()
	return &Server{cfg: cfg, engine: engine}
}

func (s *Server) Start() error {
	ctx := context.Background()

	// ----- PostgreSQL -----
	pool, err := postgres.Connect(ctx, s.cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to connect to PostgreSQL: %w", err)
	}

	// ----- Redis -----
	redisClient, err := db.NewRedisClient(db.RedisConfig{
		Addr:     s.cfg.RedisAddr,
		Password: s.cfg.RedisPass,
		DB:       0,
		PoolSize: 10,
	})
	if err != nil {
		return fmt.Errorf("failed to connect to Redis: %w", err)
	}
	log.Println("[REDIS] connected")

	// ----- Logger -----
	logger, _ := zap.NewProduction()
	defer logger.Sync()
	s.logger = logger

	// ----- Token verifier -----
	if s.cfg.JWT.Secret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}
	verifier := jwt.NewVerifier(s.cfg.JWT)

	// ----- Repositories -----
	profileRepo := postgres.NewProfileRepository(pool)
	notifRepo := postgres.NewNotificationRepository(pool)

	// ----- Credential stores -----
	// Durable store survives restarts the way a browser's persisted
	// storage survives a reload; the volatile store is per-process.
	durable := storage.NewRedis(redisClient)
	volatile := storage.NewMemory()

	invalidator := cache.NewRedisInvalidator(redisClient)

	// ----- Handlers -----
	authHandlerInst := authHandler.NewAuthHandler(durable, volatile, profileRepo, verifier, s.cfg.AuthURL, logger)
	notifHandler := notifyH.NewNotificationHandler(notifRepo, invalidator, logger)
	streamHandlerInst := streamHandler.NewStreamHandler(notifRepo, profileRepo, invalidator, verifier, durable, s.cfg.AuthURL, s.cfg.FeedURL, s.cfg.CORSOrigin, logger)

	// ----- Middlewares -----
	authMiddleware := middleware.NewAuthMiddleware(verifier)

	s.engine.Use(
		middleware.RecoveryMiddleware(logger),
		middleware.LoggingMiddleware(logger),
		middleware.CORSMiddleware(s.cfg.CORSOrigin),
	)

	// ----- Router -----
	handlers := &Handlers{
		AuthHandler:    authHandlerInst,
		NotifHandler:   notifHandler,
		StreamHandler:  streamHandlerInst,
		AuthMiddleware: authMiddleware,
	}
	SetupRouter(s.engine, logger, handlers)

	// ----- Start HTTP -----
	log.Printf("server running on %s", s.cfg.HTTPAddr)
	return s.engine.Run(s.cfg.HTTPAddr)
}
