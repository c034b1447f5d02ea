// Command email-relay consumes the patient change stream and emails each new
// referral to the hospital.
package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/pediamatch/intake-service/internal/changestream"
	"github.com/pediamatch/intake-service/internal/clinic"
	"github.com/pediamatch/intake-service/internal/config"
	"github.com/pediamatch/intake-service/internal/gateway"
	"github.com/pediamatch/intake-service/internal/notify"
	"github.com/pediamatch/intake-service/internal/observability"
	"github.com/pediamatch/intake-service/internal/persistence"
	"github.com/pediamatch/intake-service/internal/relay"
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

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	directory, err := clinic.Load(cfg.Clinics.DirectoryPath)
	if err != nil {
		logger.Fatal("failed to load clinic directory", zap.String("path", cfg.Clinics.DirectoryPath), zap.Error(err))
	}
	if cfg.Notification.HospitalEmail == "" {
		logger.Warn("NOTIFY_HOSPITAL_EMAIL not set; every referral will fail")
	}

	redis := persistence.NewRedis(ctx, cfg.Redis, logger)
	defer redis.Close()

	email := gateway.NewSendGridClient(cfg.SendGrid, cfg.Notification.EmailFromName, cfg.Notification.EmailFrom)
	emailRelay := relay.NewEmailRelay(directory, notify.NewComposer(cfg.Notification.RequestingPhysician), email,
		cfg.Notification.HospitalEmail, logger, observability.NewMetrics())

	consumer := changestream.NewConsumer(redis.Client, cfg.Stream, emailRelay.Handle, logger)
	if err := consumer.Run(ctx); err != nil {
		logger.Fatal("change stream consumer stopped", zap.Error(err))
	}
	logger.Info("email relay stopped")
}
