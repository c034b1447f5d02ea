package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/pediamatch/intake-service/internal/api/dto"
	"github.com/pediamatch/intake-service/internal/auth"
	"github.com/pediamatch/intake-service/internal/service"
	apperrors "github.com/pediamatch/intake-service/pkg/util/errorutil"
)

// PatientsHandler serves intake submissions and operator reads.
type PatientsHandler struct {
	service *service.PatientService
	logger  *zap.Logger
}

// NewPatientsHandler constructs handler.
func NewPatientsHandler(patientService *service.PatientService, logger *zap.Logger) *PatientsHandler {
	return &PatientsHandler{service: patientService, logger: logger}
}

// Create POST /patients.
func (h *PatientsHandler) Create(c *fiber.Ctx) error {
	var req dto.CreatePatientRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}

	patient, err := h.service.Register(c.UserContext(), service.RegisterInput{
		FirstName:         req.FirstName,
		LastName:          req.LastName,
		Email:             req.Email,
		PhoneNumber:       req.PhoneNumber,
		PostalCode:        req.PostalCode,
		GuardianFirstName: req.GuardianFirstName,
		GuardianLastName:  req.GuardianLastName,
		SelectedClinic:    req.SelectedClinic,
	})

	status := dto.NotificationStatus{Delivered: true}
	var notifyErr *service.NotificationError
	switch {
	case err == nil:
	case errors.As(err, &notifyErr) && patient != nil:
		status = dto.NotificationStatus{Delivered: false, Error: notifyErr.Err.Error()}
	default:
		return err
	}

	return c.Status(http.StatusCreated).JSON(fiber.Map{
		"data":         dto.NewPatientResponse(patient),
		"notification": status,
	})
}

// List GET /patients.
func (h *PatientsHandler) List(c *fiber.Ctx) error {
	page := parseInt(c.Query("page"), 1)
	pageSize := parseInt(c.Query("page_size"), 20)
	if page < 1 {
		page = 1
	}

	patients, err := h.service.List(c.UserContext(), pageSize, (page-1)*pageSize)
	if err != nil {
		return err
	}
	h.logger.Info("patients listed", zap.String("operator", operatorName(c)), zap.Int("count", len(patients)))
	items := make([]dto.PatientResponse, 0, len(patients))
	for i := range patients {
		items = append(items, dto.NewPatientResponse(&patients[i]))
	}
	return c.JSON(fiber.Map{"data": items})
}

// Get GET /patients/:id.
func (h *PatientsHandler) Get(c *fiber.Ctx) error {
	id, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil || id <= 0 {
		return apperrors.NewValidationError("invalid patient id", map[string]any{"id": c.Params("id")})
	}
	patient, err := h.service.Get(c.UserContext(), id)
	if err != nil {
		return err
	}
	h.logger.Info("patient read", zap.String("operator", operatorName(c)), zap.Int64("patient_id", id))
	return c.JSON(fiber.Map{"data": dto.NewPatientResponse(patient)})
}

func operatorName(c *fiber.Ctx) string {
	if op, ok := auth.OperatorFromContext(c); ok {
		return op.Username
	}
	return ""
}

func parseInt(val string, def int) int {
	if val == "" {
		return def
	}
	parsed, err := strconv.Atoi(val)
	if err != nil {
		return def
	}
	return parsed
}
