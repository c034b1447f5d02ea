package service

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"
	"unicode"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/pediamatch/intake-service/internal/domain"
	"github.com/pediamatch/intake-service/internal/events"
	"github.com/pediamatch/intake-service/internal/repository"
	apperrors "github.com/pediamatch/intake-service/pkg/util/errorutil"
)

// NotificationError reports that a patient write was committed but one or
// more subscribers (SMS, change stream) failed afterwards.
type NotificationError struct {
	PatientID int64
	Err       error
}

func (e *NotificationError) Error() string {
	return fmt.Sprintf("patient %d saved but notification failed: %v", e.PatientID, e.Err)
}

func (e *NotificationError) Unwrap() error {
	return e.Err
}

// RegisterInput is the intake form submitted for a new patient.
type RegisterInput struct {
	FirstName         string `json:"firstName" validate:"required,max=30"`
	LastName          string `json:"lastName" validate:"required,max=30"`
	Email             string `json:"email" validate:"required,email,max=254"`
	PhoneNumber       string `json:"phoneNumber" validate:"required,max=15,phone"`
	PostalCode        string `json:"postalCode" validate:"required,max=10"`
	GuardianFirstName string `json:"guardianFirstName" validate:"max=30"`
	GuardianLastName  string `json:"guardianLastName" validate:"max=30"`
	SelectedClinic    int    `json:"selectedClinic" validate:"required,gt=0"`
}

// PatientService coordinates intake and operator reads.
type PatientService struct {
	patients   repository.PatientRepository
	dispatcher events.Dispatcher
	validate   *validator.Validate
	logger     *zap.Logger
	now        func() time.Time
}

// NewPatientService constructs the service.
func NewPatientService(patients repository.PatientRepository, dispatcher events.Dispatcher, logger *zap.Logger) *PatientService {
	return &PatientService{
		patients:   patients,
		dispatcher: dispatcher,
		validate:   newValidator(),
		logger:     logger,
		now:        time.Now,
	}
}

// Register validates and persists a new patient, then publishes
// patient_created. A subscriber failure does not undo the insert: the saved
// patient is returned along with a *NotificationError.
func (s *PatientService) Register(ctx context.Context, input RegisterInput) (*domain.Patient, error) {
	input = input.trimmed()
	if err := s.validate.Struct(input); err != nil {
		return nil, validationError(err)
	}

	patient := &domain.Patient{
		FirstName:         input.FirstName,
		LastName:          input.LastName,
		Email:             input.Email,
		PhoneNumber:       input.PhoneNumber,
		PostalCode:        input.PostalCode,
		GuardianFirstName: input.GuardianFirstName,
		GuardianLastName:  input.GuardianLastName,
		SelectedClinic:    input.SelectedClinic,
	}
	patient.StampDates(s.now())

	if err := s.patients.Create(ctx, patient); err != nil {
		return nil, fmt.Errorf("create patient: %w", err)
	}
	s.logger.Info("patient registered",
		zap.Int64("patient_id", patient.ID),
		zap.Int("clinic_id", patient.SelectedClinic))

	if err := s.dispatcher.Publish(ctx, events.NewPatientEvent(events.EventPatientCreated, *patient, s.now())); err != nil {
		s.logger.Warn("patient created notification failed", zap.Int64("patient_id", patient.ID), zap.Error(err))
		return patient, &NotificationError{PatientID: patient.ID, Err: err}
	}
	return patient, nil
}

// Get returns a single patient.
func (s *PatientService) Get(ctx context.Context, id int64) (*domain.Patient, error) {
	patient, err := s.patients.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.NewNotFound("patient", map[string]any{"id": id})
		}
		return nil, err
	}
	return patient, nil
}

// List pages through patients ordered by id.
func (s *PatientService) List(ctx context.Context, limit, offset int) ([]domain.Patient, error) {
	if offset < 0 {
		offset = 0
	}
	return s.patients.List(ctx, limit, offset)
}

func (in RegisterInput) trimmed() RegisterInput {
	in.FirstName = strings.TrimSpace(in.FirstName)
	in.LastName = strings.TrimSpace(in.LastName)
	in.Email = strings.TrimSpace(in.Email)
	in.PhoneNumber = strings.TrimSpace(in.PhoneNumber)
	in.PostalCode = strings.TrimSpace(in.PostalCode)
	in.GuardianFirstName = strings.TrimSpace(in.GuardianFirstName)
	in.GuardianLastName = strings.TrimSpace(in.GuardianLastName)
	return in
}

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	_ = v.RegisterValidation("phone", validatePhone)
	return v
}

// validatePhone accepts 7 to 15 digits, allowing a leading + and the usual
// separators.
func validatePhone(fl validator.FieldLevel) bool {
	digits := 0
	for i, r := range fl.Field().String() {
		switch {
		case unicode.IsDigit(r):
			digits++
		case r == '+' && i == 0:
		case r == ' ' || r == '-' || r == '(' || r == ')' || r == '.':
		default:
			return false
		}
	}
	return digits >= 7 && digits <= 15
}

func validationError(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return apperrors.NewValidationError("invalid patient", nil)
	}
	details := make(map[string]any, len(verrs))
	for _, fe := range verrs {
		details[fe.Field()] = ruleMessage(fe)
	}
	return apperrors.NewValidationError("invalid patient", details)
}

func ruleMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "max":
		return "must be at most " + fe.Param() + " characters"
	case "email":
		return "must be a valid email address"
	case "phone":
		return "must contain 7 to 15 digits"
	case "gt":
		return "must be greater than " + fe.Param()
	default:
		return "is invalid"
	}
}
