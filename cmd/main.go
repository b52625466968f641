package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/redis/go-redis/v9"

	"github.com/shenikar/snap_and_send/internal/category"
	"github.com/shenikar/snap_and_send/internal/classifier"
	"github.com/shenikar/snap_and_send/internal/config"
	v1 "github.com/shenikar/snap_and_send/internal/handler/http/v1"
	"github.com/shenikar/snap_and_send/internal/repository"
	"github.com/shenikar/snap_and_send/internal/repository/memory"
	"github.com/shenikar/snap_and_send/internal/service"
	"github.com/shenikar/snap_and_send/internal/webhook"
	"github.com/shenikar/snap_and_send/pkg/logger"
	"github.com/shenikar/snap_and_send/pkg/postgres"
	redisclient "github.com/shenikar/snap_and_send/pkg/redis"
	"github.com/sirupsen/logrus"

	_ "github.com/shenikar/snap_and_send/docs"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

// @title SnapAndSend API
// @version 1.0
// @description Citizen incident reports with duplicate merging, proximity verification and partner webhooks.
// @host localhost:8080
// @BasePath /api/v1
// @securityDefinitions.apikey ApiKeyAuth
// @in header
// @name X-API-Key
func runMigrations(cfg *config.Config, log *logrus.Logger) error {
	log.Info("Running database migrations...")

	migrationURL := cfg.DatabaseURL
	if !strings.HasPrefix(migrationURL, "pgx5://") {
		migrationURL = strings.Replace(migrationURL, "postgres://", "pgx5://", 1)
		migrationURL = strings.Replace(migrationURL, "postgresql://", "pgx5://", 1)
	}

	m, err := migrate.New(cfg.MigrationsPath, migrationURL)
	if err != nil {
		return fmt.Errorf("could not create migrate instance: %w", err)
	}
	defer m.Close()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	log.Info("Database migrations applied successfully")
	return nil
}

// storage - репозитории выбранного драйвера
type storage struct {
	incidents     service.IncidentRepository
	partners      service.PartnerRepository
	subscriptions service.SubscriptionRepository
	close         func()
}

func openStorage(ctx context.Context, cfg *config.Config, log *logrus.Logger) (*storage, error) {
	if cfg.StorageDriver == config.StorageDriverMemory {
		log.Warn("Using in-memory storage, data will be lost on restart")
		repo := memory.NewRepository()
		return &storage{incidents: repo, partners: repo, subscriptions: repo, close: func() {}}, nil
	}

	if err := runMigrations(cfg, log); err != nil {
		return nil, err
	}

	dbpool, err := postgres.NewPostgresDB(ctx, postgres.Options{
		URL:            cfg.DatabaseURL,
		MaxConns:       cfg.DatabaseMaxConns,
		RequirePostGIS: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to PostgreSQL: %w", err)
	}
	log.Info("Successfully connected to PostgreSQL")

	return &storage{
		incidents:     repository.NewIncidentRepository(dbpool),
		partners:      repository.NewPartnerRepository(dbpool),
		subscriptions: repository.NewSubscriptionRepository(dbpool),
		close:         dbpool.Close,
	}, nil
}

func loadCategories(cfg *config.Config, log *logrus.Logger) []category.Category {
	if cfg.CategoriesFile == "" {
		return category.Defaults()
	}
	categories, err := category.LoadFile(cfg.CategoriesFile)
	if err != nil {
		log.WithError(err).Warn("Failed to load categories file, using defaults")
		return category.Defaults()
	}
	return categories
}

func newClassifier(cfg *config.Config, known []category.Category, log *logrus.Logger) classifier.Classifier {
	if cfg.OpenAIAPIKey == "" {
		log.Warn("OPENAI_API_KEY is not set, image classification returns the fallback suggestion")
		return classifier.Fallback{}
	}
	primary, err := classifier.NewOpenAI(cfg.OpenAIAPIKey, cfg.OpenAIModel, known)
	if err != nil {
		log.WithError(err).Warn("Failed to create OpenAI classifier")
		return classifier.Fallback{}
	}
	return classifier.WithFallback(primary, log)
}

func main() {
	// Загрузка конфигурации
	cfg, err := config.LoadConfig()
	if err != nil {
		logrus.Fatalf("Failed to load config: %v", err)
	}

	// Инициализация логгера
	log := logger.New(cfg.LogLevel, cfg.LogFormat)

	// Контекст для graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store, err := openStorage(ctx, cfg, log)
	if err != nil {
		log.Fatalf("Failed to open storage: %v", err)
	}
	defer store.close()

	// Redis необязателен: без него кэш отключён, а очередь и реестр категорий живут в памяти
	var (
		redisClient *redis.Client
		cache       service.IncidentCache
		queue       webhook.Queue
		customStore category.CustomStore
	)
	if cfg.RedisEnabled {
		redisClient, err = redisclient.NewRedisClient(ctx, redisclient.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPass,
			DB:       cfg.RedisDB,
			PoolSize: cfg.RedisPoolSize,
		})
		if err != nil {
			log.Fatalf("Failed to connect to Redis: %v", err)
		}
		defer redisClient.Close()
		log.Info("Successfully connected to Redis")

		cache = repository.NewIncidentCache(redisClient, cfg.CacheTTL)
		queue = webhook.NewRedisQueue(redisClient)
		customStore = category.NewRedisStore(redisClient)
	} else {
		queue = webhook.NewChannelQueue(cfg.WebhookQueueSize)
		customStore = category.NewMemoryStore()
	}

	known := loadCategories(cfg, log)
	registry := category.NewRegistry(known, customStore)

	// Инициализация сервисов
	incidentService := service.NewIncidentService(store.incidents, cache, queue, registry, service.Settings{
		DuplicateRadiusMeters:    cfg.DuplicateRadiusMeters,
		VerificationRadiusMeters: cfg.VerificationRadiusMeters,
		PromotionThreshold:       cfg.PromotionThreshold,
	}, log)
	subscriptionService := service.NewSubscriptionService(store.subscriptions, log)
	partnerService := service.NewPartnerService(store.partners, log)

	if err := partnerService.Bootstrap(ctx, cfg.APIKeys); err != nil {
		log.Fatalf("Failed to register static API keys: %v", err)
	}

	// Инициализация и запуск воркера вебхуков
	sender := webhook.NewHTTPSender(&http.Client{Timeout: cfg.WebhookTimeout})
	dispatcher := webhook.NewDispatcher(store.subscriptions, sender, log, cfg.WebhookTimeout)
	webhookWorker := webhook.NewWorker(queue, dispatcher, log)
	webhookWorker.Start(ctx)

	// Инициализация хэндлеров
	handler := v1.NewHandler(incidentService, subscriptionService, partnerService, registry, newClassifier(cfg, known, log), log)

	// Настройка Gin роутера
	router := gin.Default()
	api := router.Group("/api/v1")
	handler.RegisterRoutes(api)

	// Добавление маршрута для Swagger UI
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	// Запуск HTTP-сервера
	serverAddr := fmt.Sprintf(":%s", cfg.HTTPPort)

	srv := &http.Server{
		Addr:              serverAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Запуск сервера в горутине
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Error starting HTTP server: %v", err)
		}
	}()
	log.Infof("HTTP server started on port %s", cfg.HTTPPort)

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Received shutdown signal, shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Errorf("Server forced to shutdown: %v", err)
	}

	// Останавливаем воркер и дожидаемся доставки текущего события
	cancel()
	webhookWorker.Wait()

	log.Info("Server exited gracefully")
}
