package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/newshub-app/newshub/backend/internal/config"
	"github.com/newshub-app/newshub/backend/internal/ratelimit"
	ratelimitstore "github.com/newshub-app/newshub/backend/internal/ratelimit/store"
	"github.com/newshub-app/newshub/backend/internal/repository/postgres"
	redisrepo "github.com/newshub-app/newshub/backend/internal/repository/redis"
	"github.com/newshub-app/newshub/backend/internal/service/cleanup"
	"github.com/newshub-app/newshub/backend/internal/service/credential"
	"github.com/newshub-app/newshub/backend/internal/service/mailer"
	"github.com/newshub-app/newshub/backend/internal/service/session"
	"github.com/newshub-app/newshub/backend/internal/service/token"
	transportHttp "github.com/newshub-app/newshub/backend/internal/transport/http"
	"github.com/newshub-app/newshub/backend/internal/transport/http/middleware"
	"github.com/newshub-app/newshub/backend/pkg/auth"
)

func main() {
	// No .env file is fine; rely on the environment.
	if err := godotenv.Load(); err != nil {
		_ = godotenv.Load("../.env")
	}

	cfg := config.LoadConfig()

	var logger *zap.Logger
	var err error
	if cfg.Environment == "production" {
		logger, err = zap.NewProduction()
	} else {
		logger, err = zap.NewDevelopment()
	}
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	db, err := postgres.Connect(cfg.DatabaseURL, cfg.DBMaxOpenConns, cfg.DBMaxIdleConns, cfg.DBConnMaxLifetimeMin)
	if err != nil {
		logger.Fatal("failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	logger.Info("running database migrations")
	if err := postgres.RunMigrations(db); err != nil {
		logger.Fatal("migration failed", zap.Error(err))
	}

	// Repositories (persistence layer).
	userRepo := postgres.NewUserRepo(db)
	sessionRepo := postgres.NewSessionRepo(db)
	tokenRepo := postgres.NewTokenRepo(db)
	attemptRepo := postgres.NewAttemptRepo(db)

	// Redis is optional: without it sessions skip the cache and rate
	// limiting falls back to per-process memory counters.
	redisClient := redisrepo.Connect(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, logger)
	var cache session.CacheRepository
	var limiterStore ratelimitstore.Store
	if redisClient != nil {
		defer redisClient.Close()
		cache = redisrepo.NewCache(redisClient)
		limiterStore = ratelimitstore.NewRedisStore(redisClient, "ratelimit:")
	} else {
		limiterStore = ratelimitstore.NewMemoryStore()
	}
	defer limiterStore.Close()

	// Services (business logic layer).
	codec := auth.NewTokenCodec(cfg.JWTSecret, cfg.AccessTokenTTL, cfg.AccessTokenLeeway)
	users := credential.NewService(userRepo, cfg.BcryptCost, logger)
	sessions := session.NewRegistry(sessionRepo, cache, cfg.RefreshTokenTTL, cfg.SessionGracePeriod, logger)
	tokens := token.NewService(tokenRepo, cfg.VerifyTokenTTL, cfg.ResetTokenTTL, logger)
	mail := mailer.NewLogMailer(cfg.FrontendURL, logger)

	// Background GC of expired sessions and tokens.
	workerCtx, stopWorker := context.WithCancel(context.Background())
	defer stopWorker()
	worker := cleanup.NewWorker(sessions, tokens, time.Hour, logger)
	go worker.Start(workerCtx)

	authHandler := transportHttp.NewAuthHandler(
		users, sessions, tokens, codec, mail, attemptRepo,
		cfg.RequireVerifiedEmail,
		int(cfg.AccessTokenTTL.Seconds()),
		cfg.Environment == "production",
		logger,
	)

	limitFor := func(class string) gin.HandlerFunc {
		policy := cfg.RateLimits[class]
		limiter := ratelimit.NewFixedWindowLimiter(limiterStore, policy.MaxRequests, policy.Window, logger)
		return middleware.RateLimit(limiter, class, logger)
	}

	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.CORSMiddleware(cfg.AllowedOrigins))

	authMW := middleware.RequireAuth(codec)

	// Public auth routes, each behind its own rate-limit class.
	router.POST("/api/auth/register", limitFor(config.ClassRegister), authHandler.Register)
	router.POST("/api/auth/verify-email", authHandler.VerifyEmail)
	router.POST("/api/auth/resend-verification", limitFor(config.ClassResendVerification), authHandler.ResendVerification)
	router.POST("/api/auth/login", limitFor(config.ClassLogin), authHandler.Login)
	router.POST("/api/auth/token/refresh", limitFor(config.ClassRefresh), authHandler.Refresh)
	router.POST("/api/auth/logout", authHandler.Logout)
	router.GET("/api/auth/check", authHandler.Check)
	router.POST("/api/auth/password-reset", limitFor(config.ClassPasswordReset), authHandler.RequestPasswordReset)
	router.POST("/api/auth/password-reset/confirm", authHandler.ConfirmPasswordReset)

	// Protected routes.
	protected := router.Group("/")
	protected.Use(authMW)
	{
		protected.POST("/api/auth/change-password", authHandler.ChangePassword)
		protected.GET("/api/auth/profile", authHandler.Profile)
		protected.PATCH("/api/auth/profile", authHandler.UpdateProfile)
		protected.GET("/api/auth/sessions", authHandler.SessionHistory)
	}

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	go func() {
		logger.Info("server starting", zap.String("port", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server error", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit
	logger.Info("server is shutting down")

	stopWorker()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Fatal("server forced to shutdown", zap.Error(err))
	}

	logger.Info("server exited gracefully")
}
