package dto

import (
	"time"

	"github.com/pediamatch/intake-service/internal/domain"
)

// CreatePatientRequest is the intake form, accepted as JSON or form data.
type CreatePatientRequest struct {
	FirstName         string `json:"firstName" form:"firstName"`
	LastName          string `json:"lastName" form:"lastName"`
	Email             string `json:"email" form:"email"`
	PhoneNumber       string `json:"phoneNumber" form:"phoneNumber"`
	PostalCode        string `json:"postalCode" form:"postalCode"`
	GuardianFirstName string `json:"guardianFirstName" form:"guardianFirstName"`
	GuardianLastName  string `json:"guardianLastName" form:"guardianLastName"`
	SelectedClinic    int    `json:"selectedClinic" form:"selectedClinic"`
}

// PatientResponse is the stored patient record.
type PatientResponse struct {
	ID                    int64                    `json:"id"`
	FirstName             string                   `json:"firstName"`
	LastName              string                   `json:"lastName"`
	Email                 string                   `json:"email"`
	PhoneNumber           string                   `json:"phoneNumber"`
	PostalCode            string                   `json:"postalCode"`
	GuardianFirstName     string                   `json:"guardianFirstName,omitempty"`
	GuardianLastName      string                   `json:"guardianLastName,omitempty"`
	SelectedClinic        int                      `json:"selectedClinic"`
	EntryDate             time.Time                `json:"entryDate"`
	FollowUpDate          time.Time                `json:"followUpDate"`
	ConsultationScheduled bool                     `json:"consultationScheduled"`
	ConsultationState     domain.ConsultationState `json:"consultationState"`
}

// NotificationStatus reports whether post-save notifications went out.
type NotificationStatus struct {
	Delivered bool   `json:"delivered"`
	Error     string `json:"error,omitempty"`
}

// NewPatientResponse maps a domain patient.
func NewPatientResponse(p *domain.Patient) PatientResponse {
	return PatientResponse{
		ID:                    p.ID,
		FirstName:             p.FirstName,
		LastName:              p.LastName,
		Email:                 p.Email,
		PhoneNumber:           p.PhoneNumber,
		PostalCode:            p.PostalCode,
		GuardianFirstName:     p.GuardianFirstName,
		GuardianLastName:      p.GuardianLastName,
		SelectedClinic:        p.SelectedClinic,
		EntryDate:             p.EntryDate,
		FollowUpDate:          p.FollowUpDate,
		ConsultationScheduled: p.ConsultationScheduled,
		ConsultationState:     p.State(),
	}
}
