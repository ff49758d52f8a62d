package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/mes-platform/production-service/internal/application"
	"github.com/mes-platform/production-service/internal/infrastructure/mongodb"
	"github.com/mes-platform/production-service/internal/infrastructure/notify"
	"github.com/mes-platform/production-service/internal/reconciler"
	"github.com/mes-platform/production-service/pkg/cloudevents"
	"github.com/mes-platform/production-service/pkg/kafka"
	"github.com/mes-platform/production-service/pkg/logging"
	"github.com/mes-platform/production-service/pkg/metrics"
	"github.com/mes-platform/production-service/pkg/middleware"
	mongoclient "github.com/mes-platform/production-service/pkg/mongodb"
)

const serviceName = "production-service"

func main() {
	logger := logging.New(&logging.Config{
		Level:       logging.LogLevel(getEnv("LOG_LEVEL", "info")),
		ServiceName: serviceName,
		Environment: getEnv("ENVIRONMENT", "development"),
		Version:     getEnv("SERVICE_VERSION", "dev"),
	})
	logger.SetDefault()

	if getEnv("ENVIRONMENT", "development") == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// MongoDB
	mongoConfig := mongoclient.DefaultConfig()
	mongoConfig.URI = getEnv("MONGODB_URI", mongoConfig.URI)
	mongoConfig.Database = getEnv("MONGODB_DATABASE", mongoConfig.Database)
	mongoConfig.Username = getEnv("MONGODB_USERNAME", "")
	mongoConfig.Password = getEnv("MONGODB_PASSWORD", "")
	mongoConfig.AuthDB = getEnv("MONGODB_AUTH_DB", "admin")
	mongoConfig.ReplicaSet = getEnv("MONGODB_REPLICA_SET", "")

	mongoClient, err := mongoclient.NewClient(ctx, mongoConfig)
	if err != nil {
		logger.WithError(err).Error("Failed to connect to MongoDB")
		os.Exit(1)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = mongoClient.Close(shutdownCtx)
	}()

	// Kafka
	kafkaConfig := kafka.DefaultConfig()
	kafkaConfig.Brokers = strings.Split(getEnv("KAFKA_BROKERS", "localhost:9092"), ",")
	producer := kafka.NewProducer(kafkaConfig)
	breakerProducer := kafka.NewBreakerProducer(producer)
	defer func() { _ = producer.Close() }()

	m := metrics.New(serviceName)

	// Repositories
	stageRepo := mongodb.NewStageRepository(mongoClient)
	machineRepo := mongodb.NewMachineRepository(mongoClient)
	reservationRepo := mongodb.NewReservationRepository(mongoClient)
	sessionRepo := mongodb.NewQCSessionRepository(mongoClient)
	issueRepo := mongodb.NewQualityIssueRepository(mongoClient)
	requisitionRepo := mongodb.NewRequisitionRepository(mongoClient)
	userRepo := mongodb.NewUserRepository(mongoClient)

	indexCtx, cancelIndexes := context.WithTimeout(ctx, 30*time.Second)
	defer cancelIndexes()
	for _, ensure := range []func(context.Context) error{
		stageRepo.EnsureIndexes,
		machineRepo.EnsureIndexes,
		reservationRepo.EnsureIndexes,
		sessionRepo.EnsureIndexes,
		issueRepo.EnsureIndexes,
		requisitionRepo.EnsureIndexes,
	} {
		if err := ensure(indexCtx); err != nil {
			logger.WithError(err).Error("Failed to ensure indexes")
			os.Exit(1)
		}
	}

	// Event publishing
	factory := cloudevents.NewEventFactory(serviceName)
	notifier := notify.NewKafkaNotifier(breakerProducer, factory, logger, m)

	// Application services
	stageService := application.NewStageApplicationService(
		stageRepo, reservationRepo, machineRepo, mongoClient, notifier, notifier, notifier, logger, m)
	qcService := application.NewQCApplicationService(
		stageRepo, sessionRepo, issueRepo, mongoClient, notifier, userRepo, notifier, logger, m)
	defectService := application.NewDefectApplicationService(
		stageRepo, issueRepo, requisitionRepo, mongoClient, notifier, userRepo, notifier, logger)
	schedulerService := application.NewSchedulerApplicationService(
		stageRepo, machineRepo, reservationRepo, mongoClient, notifier, logger, m)
	capacityService := application.NewCapacityApplicationService(machineRepo, logger)

	// Background reconciliation
	sweepInterval, _ := time.ParseDuration(getEnv("RECONCILE_INTERVAL", "5m"))
	sweeper := reconciler.New(stageRepo, machineRepo, reservationRepo, logger, m, sweepInterval)
	sweeper.Start(ctx)
	defer sweeper.Stop()

	// HTTP
	router := gin.New()
	middleware.Setup(router, middleware.DefaultConfig(serviceName, logger.Logger))
	router.Use(middleware.MetricsMiddleware(m))
	router.NoRoute(middleware.NoRoute())
	router.NoMethod(middleware.NoMethod())

	router.GET("/health", middleware.HealthCheck(serviceName))
	router.GET("/ready", middleware.ReadinessCheck(serviceName, func() error {
		checkCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		return mongoClient.HealthCheck(checkCtx)
	}))
	router.GET("/metrics", middleware.MetricsEndpoint(m))

	handlers := NewHandlers(stageService, qcService, defectService, schedulerService, capacityService, logger.Logger)
	handlers.RegisterRoutes(router)

	port, err := strconv.Atoi(getEnv("PORT", "8080"))
	if err != nil {
		port = 8080
	}
	server := &http.Server{
		Addr:              ":" + strconv.Itoa(port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("Starting HTTP server", "port", port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.WithError(err).Error("HTTP server failed")
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Error("HTTP server shutdown failed")
	}
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}
