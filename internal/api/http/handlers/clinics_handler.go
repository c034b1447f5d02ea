package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/pediamatch/intake-service/internal/clinic"
)

// ClinicsHandler lists the clinics a patient can choose from.
type ClinicsHandler struct {
	directory *clinic.Directory
}

// NewClinicsHandler constructs handler.
func NewClinicsHandler(directory *clinic.Directory) *ClinicsHandler {
	return &ClinicsHandler{directory: directory}
}

// List GET /clinics.
func (h *ClinicsHandler) List(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"data": h.directory.All()})
}
