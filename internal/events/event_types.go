package events

import (
	"time"

	"github.com/google/uuid"

	"github.com/pediamatch/intake-service/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventPatientCreated EventType = "patient_created"
	EventPatientUpdated EventType = "patient_updated"
)

// Event is emitted after a patient write has been committed.
type Event struct {
	ID        string         `json:"id"`
	Type      EventType      `json:"type"`
	PatientID int64          `json:"patient_id"`
	Timestamp time.Time      `json:"timestamp"`
	Patient   domain.Patient `json:"patient"`
}

// NewPatientEvent snapshots p into a new event.
func NewPatientEvent(eventType EventType, p domain.Patient, now time.Time) Event {
	return Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		PatientID: p.ID,
		Timestamp: now.UTC(),
		Patient:   p,
	}
}
