package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	httptransport "github.com/pediamatch/intake-service/internal/api/http"
	"github.com/pediamatch/intake-service/internal/api/http/handlers"
	"github.com/pediamatch/intake-service/internal/auth"
	"github.com/pediamatch/intake-service/internal/changestream"
	"github.com/pediamatch/intake-service/internal/clinic"
	"github.com/pediamatch/intake-service/internal/config"
	"github.com/pediamatch/intake-service/internal/events"
	"github.com/pediamatch/intake-service/internal/gateway"
	"github.com/pediamatch/intake-service/internal/notify"
	"github.com/pediamatch/intake-service/internal/observability"
	"github.com/pediamatch/intake-service/internal/persistence"
	"github.com/pediamatch/intake-service/internal/repository"
	"github.com/pediamatch/intake-service/internal/service"
	"github.com/pediamatch/intake-service/internal/worker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logger)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	directory, err := clinic.Load(cfg.Clinics.DirectoryPath)
	if err != nil {
		logger.Fatal("failed to load clinic directory", zap.String("path", cfg.Clinics.DirectoryPath), zap.Error(err))
	}
	logger.Info("clinic directory loaded", zap.Int("clinics", directory.Len()))

	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		logger.Fatal("failed to connect postgres", zap.Error(err))
	}
	defer pg.Close()

	if cfg.Postgres.RunMigrations {
		if err := persistence.RunMigrations(ctx, pg.PoolHandle(), persistence.DefaultMigrationsDir, logger); err != nil {
			logger.Fatal("failed to run migrations", zap.Error(err))
		}
	}

	redis := persistence.NewRedis(ctx, cfg.Redis, logger)
	defer redis.Close()

	var patientRepo repository.PatientRepository
	if pg.Enabled() {
		patientRepo = repository.NewPatientRepository(pg.PoolHandle())
	} else {
		patientRepo = repository.NewMemoryPatientRepository()
	}

	metrics := observability.NewMetrics()
	composer := notify.NewComposer(cfg.Notification.RequestingPhysician)
	sms := gateway.NewTwilioClient(cfg.Twilio, nil)

	dispatcher := events.NewInMemoryDispatcher()
	worker.StartNotificationWorker(dispatcher,
		notify.NewCreationNotifier(directory, composer, sms, cfg.Notification.SMSRecipient, logger, metrics),
		changestream.NewPublisher(redis.Client, cfg.Stream.Name, logger),
	)

	patientService := service.NewPatientService(patientRepo, dispatcher, logger)
	replyService := service.NewSmsReplyService(patientRepo, dispatcher, composer, logger)
	authService := service.NewAuthService(cfg.Auth, logger)
	authMiddleware := auth.NewAuthMiddleware(authService.TokenManager())

	app := fiber.New(fiber.Config{
		AppName:           cfg.App.Name,
		EnablePrintRoutes: cfg.App.IsDev(),
	})
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())

	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:         handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, pg, redis),
		Patients:       handlers.NewPatientsHandler(patientService, logger),
		SMS:            handlers.NewSmsWebhookHandler(replyService, logger),
		Clinics:        handlers.NewClinicsHandler(directory),
		Auth:           handlers.NewAuthHandler(authService),
		Metrics:        handlers.NewMetricsHandler(metrics),
		AuthMiddleware: authMiddleware,
		PublicLimiter:  httptransport.PublicRateLimit(cfg.RateLimit),
		SMSLimiter:     httptransport.SmsWebhookRateLimit(cfg.RateLimit),
	})

	go func() {
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	if err := app.Shutdown(); err != nil {
		logger.Warn("fiber shutdown", zap.Error(err))
	}
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
