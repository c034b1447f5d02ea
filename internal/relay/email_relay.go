// Package relay forwards new patient records to the hospital by email.
package relay

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/pediamatch/intake-service/internal/changestream"
	"github.com/pediamatch/intake-service/internal/gateway"
	"github.com/pediamatch/intake-service/internal/notify"
	"github.com/pediamatch/intake-service/internal/observability"
)

// ErrNoHospitalRecipient is returned when no hospital address is configured.
var ErrNoHospitalRecipient = errors.New("hospital email recipient not configured")

// EmailRelay turns INSERT change records into the bilingual referral email.
// Sends are attempted once; failures are logged and returned, never retried.
type EmailRelay struct {
	clinics   notify.ClinicLookup
	composer  *notify.Composer
	email     gateway.EmailGateway
	recipient string
	logger    *zap.Logger
	metrics   *observability.Metrics
}

// NewEmailRelay wires the relay.
func NewEmailRelay(clinics notify.ClinicLookup, composer *notify.Composer, email gateway.EmailGateway, recipient string, logger *zap.Logger, metrics *observability.Metrics) *EmailRelay {
	return &EmailRelay{
		clinics:   clinics,
		composer:  composer,
		email:     email,
		recipient: strings.TrimSpace(recipient),
		logger:    logger,
		metrics:   metrics,
	}
}

// Handle sends the referral email for rec. It satisfies changestream.Handler.
func (r *EmailRelay) Handle(ctx context.Context, rec changestream.Record) error {
	if r.recipient == "" {
		r.metrics.RecordNotification(observability.ChannelEmail, false)
		return ErrNoHospitalRecipient
	}

	info, found := r.clinics.Lookup(rec.SelectedClinic)
	if !found {
		r.logger.Warn("clinic not in directory", zap.Int("clinic_id", rec.SelectedClinic), zap.Int64("patient_id", rec.PatientID))
	}
	subject, body := r.composer.ComposeReferralEmail(rec, info.Name)

	messageID, err := r.email.Send(ctx, r.recipient, subject, body)
	if err != nil {
		r.metrics.RecordNotification(observability.ChannelEmail, false)
		r.logger.Error("referral email failed",
			zap.Int64("patient_id", rec.PatientID),
			zap.String("event_id", rec.EventID),
			zap.Error(err))
		return fmt.Errorf("send referral email for patient %d: %w", rec.PatientID, err)
	}

	r.metrics.RecordNotification(observability.ChannelEmail, true)
	r.logger.Info("referral email sent",
		zap.Int64("patient_id", rec.PatientID),
		zap.String("event_id", rec.EventID),
		zap.String("message_id", messageID))
	return nil
}
