// Package changestream publishes patient inserts to a Redis stream and
// consumes them for the email relay.
package changestream

import (
	"fmt"
	"strconv"

	"github.com/pediamatch/intake-service/internal/domain"
)

// EventInsert marks a record describing a newly created patient.
const EventInsert = "INSERT"

// Record is one change-stream entry. Field names on the wire follow the
// relay's contract (selectedClinic, patientFirstName, ...).
type Record struct {
	EventID             string
	EventName           string
	PatientID           int64
	SelectedClinic      int
	PatientFirstName    string
	PatientLastName     string
	PatientPostalCode   string
	GuardianFirstName   string
	GuardianLastName    string
	GuardianPhoneNumber string
	GuardianEmail       string
}

// InsertRecord builds the INSERT record for a freshly created patient.
func InsertRecord(eventID string, p domain.Patient) Record {
	return Record{
		EventID:             eventID,
		EventName:           EventInsert,
		PatientID:           p.ID,
		SelectedClinic:      p.SelectedClinic,
		PatientFirstName:    p.FirstName,
		PatientLastName:     p.LastName,
		PatientPostalCode:   p.PostalCode,
		GuardianFirstName:   p.GuardianFirstName,
		GuardianLastName:    p.GuardianLastName,
		GuardianPhoneNumber: p.PhoneNumber,
		GuardianEmail:       p.Email,
	}
}

// Values encodes the record as XADD field/value pairs.
func (r Record) Values() map[string]any {
	return map[string]any{
		"eventId":             r.EventID,
		"eventName":           r.EventName,
		"patientId":           strconv.FormatInt(r.PatientID, 10),
		"selectedClinic":      strconv.Itoa(r.SelectedClinic),
		"patientFirstName":    r.PatientFirstName,
		"patientLastName":     r.PatientLastName,
		"patientPostalCode":   r.PatientPostalCode,
		"guardianFirstName":   r.GuardianFirstName,
		"guardianLastName":    r.GuardianLastName,
		"guardianPhoneNumber": r.GuardianPhoneNumber,
		"guardianEmail":       r.GuardianEmail,
	}
}

// DecodeRecord parses stream values back into a Record. Missing text fields
// decode as empty strings; eventName and selectedClinic are required.
func DecodeRecord(values map[string]any) (Record, error) {
	rec := Record{
		EventID:             stringValue(values, "eventId"),
		EventName:           stringValue(values, "eventName"),
		PatientFirstName:    stringValue(values, "patientFirstName"),
		PatientLastName:     stringValue(values, "patientLastName"),
		PatientPostalCode:   stringValue(values, "patientPostalCode"),
		GuardianFirstName:   stringValue(values, "guardianFirstName"),
		GuardianLastName:    stringValue(values, "guardianLastName"),
		GuardianPhoneNumber: stringValue(values, "guardianPhoneNumber"),
		GuardianEmail:       stringValue(values, "guardianEmail"),
	}
	if rec.EventName == "" {
		return Record{}, fmt.Errorf("missing eventName")
	}

	clinicID, err := strconv.Atoi(stringValue(values, "selectedClinic"))
	if err != nil {
		return Record{}, fmt.Errorf("invalid selectedClinic: %w", err)
	}
	rec.SelectedClinic = clinicID

	if raw := stringValue(values, "patientId"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return Record{}, fmt.Errorf("invalid patientId: %w", err)
		}
		rec.PatientID = id
	}
	return rec, nil
}

func stringValue(values map[string]any, key string) string {
	switch v := values[key].(type) {
	case string:
		return v
	case []byte:
		return string(v)
	case nil:
		return ""
	default:
		return fmt.Sprint(v)
	}
}
