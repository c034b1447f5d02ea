package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestPatient_StampDates(t *testing.T) {
	loc := time.FixedZone("EST", -5*3600)
	now := time.Date(2024, 2, 10, 9, 30, 0, 0, loc)

	var p Patient
	p.StampDates(now)

	assert.Equal(t, time.UTC, p.EntryDate.Location())
	assert.True(t, p.EntryDate.Equal(now))
	assert.Equal(t, 30*24*time.Hour, p.FollowUpDate.Sub(p.EntryDate))
	assert.False(t, p.FollowUpDate.Before(p.EntryDate))
}

func TestPatient_ScheduleConsultationIsWriteOnce(t *testing.T) {
	p := Patient{FirstName: "Alice", LastName: "Martin"}
	assert.Equal(t, ConsultationUnscheduled, p.State())

	assert.True(t, p.ScheduleConsultation())
	assert.Equal(t, ConsultationScheduled, p.State())

	assert.False(t, p.ScheduleConsultation())
	assert.True(t, p.ConsultationScheduled)
	assert.Equal(t, "Alice Martin", p.FullName())
}
