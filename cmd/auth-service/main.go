package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"go.uber.org/zap"

	"github.com/arcadia-online/auth-service/internal/config"
	repoPostgres "github.com/arcadia-online/auth-service/internal/domain/repository/postgres"
	repoRedis "github.com/arcadia-online/auth-service/internal/domain/repository/redis"
	"github.com/arcadia-online/auth-service/internal/events/kafka"
	httpHandler "github.com/arcadia-online/auth-service/internal/handler/http"
	"github.com/arcadia-online/auth-service/internal/infrastructure/database"
	"github.com/arcadia-online/auth-service/internal/infrastructure/security"
	"github.com/arcadia-online/auth-service/internal/service"
	"github.com/arcadia-online/auth-service/internal/utils/logger"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		panic(fmt.Sprintf("Failed to load config: %v", err))
	}

	log, err := logger.NewLogger(cfg.Logging.Level, cfg.Logging.Format)
	if err != nil {
		panic(fmt.Sprintf("Failed to initialize logger: %v", err))
	}
	defer log.Sync()

	if cfg.Database.AutoMigrate {
		if err := runMigrations(cfg.Database); err != nil {
			log.Fatal("Failed to apply migrations", zap.Error(err))
		}
		log.Info("Migrations applied")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := database.NewPostgresPool(ctx, cfg.Database)
	if err != nil {
		log.Fatal("Failed to connect to PostgreSQL", zap.Error(err))
	}
	defer pool.Close()

	redisClient, err := database.NewRedisClient(ctx, cfg.Redis)
	if err != nil {
		log.Fatal("Failed to connect to Redis", zap.Error(err))
	}
	defer redisClient.Close()

	var producer *kafka.Producer
	if len(cfg.Kafka.Brokers) > 0 {
		producer, err = kafka.NewProducer(cfg.Kafka.Brokers, log, "/"+cfg.Cluster.ServiceName)
		if err != nil {
			log.Fatal("Failed to initialize Kafka producer", zap.Error(err))
		}
		defer producer.Close()
	} else {
		log.Warn("No Kafka brokers configured, events will be logged only")
	}

	// Repositories.
	txManager := repoPostgres.NewTxManager(pool)
	userRepo := repoPostgres.NewUserRepositoryPostgres(pool)
	deviceRepo := repoPostgres.NewDeviceRepositoryPostgres(pool)
	sessionRepo := repoPostgres.NewSessionRepositoryPostgres(pool)
	verificationRepo := repoPostgres.NewVerificationCodeRepositoryPostgres(pool)
	serviceTokenRepo := repoPostgres.NewServiceTokenRepositoryPostgres(pool, txManager)

	var sessionCache service.SessionCache
	if cfg.Cluster.MultiInstance {
		sessionCache = repoRedis.NewSessionCache(redisClient, log, cfg.Security.CacheSalt, cfg.Tokens.RefreshTTL)
	}

	// Security primitives.
	jwtService, err := security.NewJWTService(cfg.Tokens.Secret, cfg.Tokens.Issuer)
	if err != nil {
		log.Fatal("Failed to initialize token codec", zap.Error(err))
	}
	hasher, err := security.NewPasswordHasher(security.Argon2idParams{
		Memory:      cfg.Security.PasswordHash.Memory,
		Iterations:  cfg.Security.PasswordHash.Iterations,
		Parallelism: cfg.Security.PasswordHash.Parallelism,
		SaltLength:  cfg.Security.PasswordHash.SaltLength,
		KeyLength:   cfg.Security.PasswordHash.KeyLength,
	})
	if err != nil {
		log.Fatal("Failed to initialize password hasher", zap.Error(err))
	}
	totpService := security.NewTOTPService(cfg.Security.TOTPIssuer)

	// Services.
	var publisher service.EventPublisher
	if producer != nil {
		publisher = producer
	}
	auditTopic := cfg.Kafka.AuditTopic
	if auditTopic == "" {
		auditTopic = kafka.DefaultAuditTopic
	}
	notifTopic := cfg.Kafka.NotificationTopic
	if notifTopic == "" {
		notifTopic = kafka.DefaultNotificationTopic
	}
	auditor := service.NewAuditDispatcher(publisher, auditTopic, kafka.EventTypeAudit, 256, log)
	defer auditor.Close()

	tokenService := service.NewTokenService(jwtService, sessionRepo, deviceRepo, sessionCache, auditor, cfg.Tokens, log)
	loginPolicy := service.NewLoginPolicy(sessionRepo, cfg.Policy, cfg.Tokens.RefreshTTL, log)
	authService := service.NewAuthService(userRepo, deviceRepo, sessionRepo, txManager, hasher, totpService,
		tokenService, loginPolicy, sessionCache, auditor, cfg.Policy, log)
	verificationService := service.NewVerificationService(verificationRepo, sessionRepo, userRepo,
		publisher, auditor, cfg.Codes, notifTopic, log)
	rotator := service.NewServiceTokenRotator(jwtService, serviceTokenRepo, auditor, cfg.Tokens, cfg.Cluster, log)

	var siblings *service.SiblingClient
	if cfg.Cluster.MultiInstance && len(cfg.Cluster.Siblings) > 0 {
		siblings = service.NewSiblingClient(rotator, cfg.Cluster, log)
	}

	janitor := service.NewJanitor(verificationService, rotator, time.Hour, log)
	go janitor.Run(ctx)

	router := httpHandler.SetupRouter(httpHandler.RouterDeps{
		AuthService:  authService,
		TokenService: tokenService,
		Verification: verificationService,
		Rotator:      rotator,
		Siblings:     siblings,
		Users:        userRepo,
		Pool:         pool,
		Redis:        redisClient,
		Config:       cfg,
		Logger:       log,
	})

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		log.Info("HTTP server listening", zap.Int("port", cfg.Server.Port))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("HTTP server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	log.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("Graceful shutdown failed", zap.Error(err))
	}
}

func runMigrations(cfg config.DatabaseConfig) error {
	url := fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		cfg.User, cfg.Password, cfg.Host, cfg.Port, cfg.DBName, cfg.SSLMode)
	m, err := migrate.New("file://migrations", url)
	if err != nil {
		return fmt.Errorf("failed to create migrator: %w", err)
	}
	defer m.Close()
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to apply migrations: %w", err)
	}
	return nil
}
