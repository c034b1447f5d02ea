package service

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"go.uber.org/zap"

	"github.com/pediamatch/intake-service/internal/domain"
	"github.com/pediamatch/intake-service/internal/events"
	"github.com/pediamatch/intake-service/internal/notify"
	"github.com/pediamatch/intake-service/internal/repository"
)

// The name capture accepts any Unicode letter or digit so accented first
// names are matched whole.
var replyPattern = regexp.MustCompile(`Appointment scheduled for, Patient Name: ([\p{L}\p{M}\p{N}_]+)`)

// ParseReply extracts the patient first name from an operator SMS reply.
func ParseReply(body string) (string, bool) {
	m := replyPattern.FindStringSubmatch(body)
	if m == nil {
		return "", false
	}
	return m[1], true
}

// ReplyKind classifies how an inbound reply was resolved.
type ReplyKind string

const (
	ReplyMatched      ReplyKind = "MATCHED"
	ReplyNotFound     ReplyKind = "NOT_FOUND"
	ReplyUnrecognized ReplyKind = "UNRECOGNIZED"
)

// ReplyOutcome is what the webhook answers with.
type ReplyOutcome struct {
	Kind    ReplyKind
	Message string
	Patient *domain.Patient
	// NotifyErr is set when the update committed but the follow-up SMS failed.
	NotifyErr error
}

// SmsReplyService marks consultations as scheduled from operator replies.
type SmsReplyService struct {
	patients   repository.PatientRepository
	dispatcher events.Dispatcher
	composer   *notify.Composer
	logger     *zap.Logger
	now        func() time.Time
}

// NewSmsReplyService constructs the service.
func NewSmsReplyService(patients repository.PatientRepository, dispatcher events.Dispatcher, composer *notify.Composer, logger *zap.Logger) *SmsReplyService {
	return &SmsReplyService{
		patients:   patients,
		dispatcher: dispatcher,
		composer:   composer,
		logger:     logger,
		now:        time.Now,
	}
}

// HandleReply processes one inbound SMS. Only a store failure is returned as
// an error; unknown names and unparseable bodies produce a reply text.
//
// Every matched reply is saved and published, so the notifier fires again
// even when the consultation was already scheduled.
func (s *SmsReplyService) HandleReply(ctx context.Context, from, body string) (ReplyOutcome, error) {
	name, ok := ParseReply(body)
	if !ok {
		s.logger.Info("sms reply not recognized", zap.String("from", from))
		return ReplyOutcome{Kind: ReplyUnrecognized, Message: s.composer.ComposeReplyUnrecognized()}, nil
	}

	patient, err := s.patients.FindByFirstName(ctx, name)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			s.logger.Info("sms reply names unknown patient", zap.String("from", from), zap.String("name", name))
			return ReplyOutcome{Kind: ReplyNotFound, Message: s.composer.ComposeReplyNotFound(name)}, nil
		}
		return ReplyOutcome{}, fmt.Errorf("find patient %q: %w", name, err)
	}

	if !patient.ScheduleConsultation() {
		s.logger.Debug("consultation already scheduled", zap.Int64("patient_id", patient.ID))
	}
	if err := s.patients.Update(ctx, patient); err != nil {
		return ReplyOutcome{}, fmt.Errorf("update patient %d: %w", patient.ID, err)
	}

	outcome := ReplyOutcome{
		Kind:    ReplyMatched,
		Message: s.composer.ComposeReplyConfirmation(*patient),
		Patient: patient,
	}
	if err := s.dispatcher.Publish(ctx, events.NewPatientEvent(events.EventPatientUpdated, *patient, s.now())); err != nil {
		s.logger.Warn("patient updated notification failed", zap.Int64("patient_id", patient.ID), zap.Error(err))
		outcome.NotifyErr = &NotificationError{PatientID: patient.ID, Err: err}
	}

	s.logger.Info("consultation scheduled",
		zap.Int64("patient_id", patient.ID),
		zap.String("from", from))
	return outcome, nil
}
