package main

import (
	"context"
	"database/sql"
	"log"
	"os"
	"os/signal"
	"syscall"

	goredis "github.com/go-redis/redis/v8"

	"github.com/expensetrack/expensetrack/application/port/outbound"
	"github.com/expensetrack/expensetrack/application/usecase"
	"github.com/expensetrack/expensetrack/infrastructure/adapter/memory"
	"github.com/expensetrack/expensetrack/infrastructure/adapter/postgres"
	"github.com/expensetrack/expensetrack/infrastructure/adapter/redis"
	"github.com/expensetrack/expensetrack/infrastructure/config"
	"github.com/expensetrack/expensetrack/infrastructure/http/server"
	"github.com/expensetrack/expensetrack/infrastructure/service/jwt"
	"github.com/expensetrack/expensetrack/infrastructure/service/logger"
	"github.com/expensetrack/expensetrack/infrastructure/service/notification"
	"github.com/expensetrack/expensetrack/infrastructure/service/password"
	"github.com/expensetrack/expensetrack/infrastructure/service/ratelimit"
)

type repositories struct {
	users         outbound.UserRepository
	refreshTokens outbound.RefreshTokenRepository
	resetTokens   outbound.PasswordResetRepository
	registry      outbound.RevocationRegistry
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	structuredLogger := logger.NewStructuredLogger(logger.LoggerConfig{
		Level:       cfg.LogLevel,
		Format:      cfg.LogFormat,
		ServiceName: "expensetrack-auth",
	})
	structuredLogger.Info(ctx, "Application starting", map[string]interface{}{
		"env":                cfg.Environment,
		"storage_backend":    cfg.StorageBackend,
		"revocation_backend": cfg.RevocationBackend,
	})

	var db *sql.DB
	if cfg.StorageBackend == config.BackendPostgres || cfg.RevocationBackend == config.BackendPostgres {
		db, err = postgres.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			structuredLogger.Error(ctx, "Failed to connect to database", err, nil)
			os.Exit(1)
		}
		defer db.Close()
		structuredLogger.Info(ctx, "Database connection established", nil)

		if cfg.AutoMigrate {
			if err := postgres.RunMigrations(ctx, db); err != nil {
				structuredLogger.Error(ctx, "Failed to run migrations", err, nil)
				os.Exit(1)
			}
		}
	}

	var redisClient *goredis.Client
	if cfg.RedisURL != "" {
		redisClient, err = redis.NewClient(ctx, cfg.RedisURL)
		if err != nil {
			if cfg.RevocationBackend == config.BackendRedis {
				structuredLogger.Error(ctx, "Failed to connect to Redis", err, nil)
				os.Exit(1)
			}
			structuredLogger.Warn(ctx, "Redis unavailable, rate limiting disabled", map[string]interface{}{
				"error": err.Error(),
			})
			redisClient = nil
		} else {
			defer redisClient.Close()
		}
	}

	repos := buildRepositories(cfg, db, redisClient)

	tokenService, err := jwt.NewJWTService(cfg)
	if err != nil {
		structuredLogger.Error(ctx, "Failed to initialize JWT service", err, nil)
		os.Exit(1)
	}
	passwordService := password.NewBcryptPasswordService(cfg.BcryptCost)

	rateLimitService := ratelimit.NewRateLimitService(ratelimit.RateLimitConfig{
		Enabled:       cfg.RateLimitEnabled,
		IPAttempts:    cfg.RateLimitIPAttempts,
		IPWindow:      cfg.RateLimitIPWindow,
		UserAttempts:  cfg.RateLimitUserAttempts,
		UserWindow:    cfg.RateLimitUserWindow,
		BlockDuration: cfg.RateLimitBlockDuration,
	}, redisClient, structuredLogger)

	authUseCase := usecase.NewAuthUseCase(
		repos.users,
		repos.refreshTokens,
		repos.registry,
		tokenService,
		passwordService,
		rateLimitService,
		structuredLogger,
		usecase.AuthConfig{
			AccessTokenTTL:  cfg.AccessTokenTTL,
			RefreshTokenTTL: cfg.RefreshTokenTTL,
			IPAttempts:      cfg.RateLimitIPAttempts,
			IPWindow:        cfg.RateLimitIPWindow,
			UserAttempts:    cfg.RateLimitUserAttempts,
			UserWindow:      cfg.RateLimitUserWindow,
			BlockDuration:   cfg.RateLimitBlockDuration,
		},
	)

	resetUseCase := usecase.NewPasswordResetUseCase(
		repos.users,
		repos.resetTokens,
		repos.refreshTokens,
		tokenService,
		passwordService,
		notification.NewLogNotifier(structuredLogger, !cfg.IsProduction()),
		structuredLogger,
		usecase.PasswordResetConfig{
			TokenTTL:    cfg.PasswordResetTTL,
			LinkBaseURL: cfg.ResetLinkBaseURL,
		},
	)

	sweeper := usecase.NewSessionSweeper(repos.registry, repos.resetTokens, cfg.RevocationSweepInterval, structuredLogger)
	sweeperDone := sweeper.Start(ctx)

	srv := server.New(server.Config{
		Addr:                 cfg.Addr(),
		ReadTimeout:          cfg.ReadTimeout,
		WriteTimeout:         cfg.WriteTimeout,
		CorrelationIDHeader:  cfg.LogCorrelationIDHeader,
		EnableRequestLog:     cfg.LogEnableRequestLog,
		CORSEnabled:          cfg.CORSEnabled,
		CORSAllowedOrigins:   cfg.CORSAllowedOrigins,
		CORSAllowCredentials: cfg.CORSAllowCredentials,
		TrustedProxies:       cfg.TrustedProxies,
	}, server.Dependencies{
		AuthUseCase:      authUseCase,
		ResetUseCase:     resetUseCase,
		RateLimitService: rateLimitService,
		Logger:           structuredLogger,
	})

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start(ctx)
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil {
			structuredLogger.Error(ctx, "Server failed", err, map[string]interface{}{"addr": cfg.Addr()})
		}
		stop()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		structuredLogger.Error(shutdownCtx, "Server forced to shutdown", err, nil)
	}
	<-sweeperDone
	structuredLogger.Info(shutdownCtx, "Server exited", nil)
}

func buildRepositories(cfg *config.Config, db *sql.DB, redisClient *goredis.Client) repositories {
	var repos repositories
	mem := memory.New()

	switch cfg.StorageBackend {
	case config.BackendPostgres:
		repos.users = postgres.NewUserRepositoryAdapter(db)
		repos.refreshTokens = postgres.NewRefreshTokenRepositoryAdapter(db, cfg.RefreshTokenSalt)
		repos.resetTokens = postgres.NewPasswordResetRepositoryAdapter(db, cfg.RefreshTokenSalt)
	default:
		repos.users = mem.Users()
		repos.refreshTokens = mem.RefreshTokens()
		repos.resetTokens = mem.ResetTokens()
	}

	switch cfg.RevocationBackend {
	case config.BackendPostgres:
		repos.registry = postgres.NewRevocationRegistryAdapter(db)
	case config.BackendRedis:
		repos.registry = redis.NewRevocationRegistry(redisClient)
	default:
		repos.registry = mem.Revocations()
	}

	return repos
}
