package notify

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/pediamatch/intake-service/internal/clinic"
	"github.com/pediamatch/intake-service/internal/domain"
	"github.com/pediamatch/intake-service/internal/events"
	"github.com/pediamatch/intake-service/internal/gateway"
	"github.com/pediamatch/intake-service/internal/observability"
)

// ErrRecipientNotConfigured is returned when no operator number is set.
var ErrRecipientNotConfigured = errors.New("sms recipient not configured")

// ClinicLookup resolves a clinic id.
type ClinicLookup interface {
	Lookup(id int) (clinic.Info, bool)
}

// CreationNotifier texts the clinic operator after every patient write.
type CreationNotifier struct {
	clinics   ClinicLookup
	composer  *Composer
	sms       gateway.SmsGateway
	recipient string
	logger    *zap.Logger
	metrics   *observability.Metrics
}

// NewCreationNotifier wires the notifier. recipient is the fixed operator
// number, never the guardian's.
func NewCreationNotifier(clinics ClinicLookup, composer *Composer, sms gateway.SmsGateway, recipient string, logger *zap.Logger, metrics *observability.Metrics) *CreationNotifier {
	return &CreationNotifier{
		clinics:   clinics,
		composer:  composer,
		sms:       sms,
		recipient: strings.TrimSpace(recipient),
		logger:    logger,
		metrics:   metrics,
	}
}

// Register subscribes the notifier to patient creates and updates.
func (n *CreationNotifier) Register(d events.Dispatcher) {
	d.Subscribe(events.EventPatientCreated, "creation_notifier", n.handle)
	d.Subscribe(events.EventPatientUpdated, "creation_notifier", n.handle)
}

func (n *CreationNotifier) handle(ctx context.Context, event events.Event) error {
	_, err := n.Notify(ctx, event.Patient)
	return err
}

// Notify composes and sends one SMS for p and returns the provider message id.
func (n *CreationNotifier) Notify(ctx context.Context, p domain.Patient) (string, error) {
	if n.recipient == "" {
		n.metrics.RecordNotification(observability.ChannelSMS, false)
		n.logger.Error("creation sms skipped", zap.Int64("patient_id", p.ID), zap.Error(ErrRecipientNotConfigured))
		return "", ErrRecipientNotConfigured
	}

	info, found := n.clinics.Lookup(p.SelectedClinic)
	if !found {
		n.logger.Warn("clinic not in directory", zap.Int64("patient_id", p.ID), zap.Int("clinic_id", p.SelectedClinic))
	}
	body := n.composer.ComposeCreationMessage(p, info, found)

	messageID, err := n.sms.Send(ctx, n.recipient, body)
	if err != nil {
		n.metrics.RecordNotification(observability.ChannelSMS, false)
		n.logger.Error("creation sms failed",
			zap.Int64("patient_id", p.ID),
			zap.Int("clinic_id", p.SelectedClinic),
			zap.Error(err))
		return "", fmt.Errorf("send creation sms for patient %d: %w", p.ID, err)
	}

	n.metrics.RecordNotification(observability.ChannelSMS, true)
	n.logger.Info("creation sms sent",
		zap.Int64("patient_id", p.ID),
		zap.Int("clinic_id", p.SelectedClinic),
		zap.String("message_id", messageID))
	return messageID, nil
}
