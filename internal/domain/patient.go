package domain

import "time"

// FollowUpOffset separates a patient's entry date from the follow-up date.
const FollowUpOffset = 30 * 24 * time.Hour

// ConsultationState is the scheduling state derived from ConsultationScheduled.
type ConsultationState string

const (
	ConsultationUnscheduled ConsultationState = "UNSCHEDULED"
	ConsultationScheduled   ConsultationState = "SCHEDULED"
)

// Patient is one pediatric intake submission.
type Patient struct {
	ID                    int64
	FirstName             string
	LastName              string
	Email                 string
	PhoneNumber           string
	PostalCode            string
	GuardianFirstName     string
	GuardianLastName      string
	SelectedClinic        int
	EntryDate             time.Time
	FollowUpDate          time.Time
	ConsultationScheduled bool
}

// StampDates sets EntryDate to now and FollowUpDate to the fixed offset after it.
func (p *Patient) StampDates(now time.Time) {
	p.EntryDate = now.UTC()
	p.FollowUpDate = p.EntryDate.Add(FollowUpOffset)
}

// ScheduleConsultation marks the consultation as scheduled. The flag is
// write-once; calling it again is a no-op that reports false.
func (p *Patient) ScheduleConsultation() bool {
	if p.ConsultationScheduled {
		return false
	}
	p.ConsultationScheduled = true
	return true
}

// State reports the consultation state.
func (p Patient) State() ConsultationState {
	if p.ConsultationScheduled {
		return ConsultationScheduled
	}
	return ConsultationUnscheduled
}

// FullName joins first and last name.
func (p Patient) FullName() string {
	return p.FirstName + " " + p.LastName
}
