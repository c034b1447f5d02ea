package relay

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/pediamatch/intake-service/internal/changestream"
	"github.com/pediamatch/intake-service/internal/clinic"
	"github.com/pediamatch/intake-service/internal/gateway/gatewaytest"
	"github.com/pediamatch/intake-service/internal/notify"
	"github.com/pediamatch/intake-service/internal/observability"
)

func directory(t *testing.T) *clinic.Directory {
	t.Helper()
	dir, err := clinic.New([]clinic.Info{{ID: 2, Name: "Lasalle Hospital Pediatrics"}})
	require.NoError(t, err)
	return dir
}

func record(clinicID int) changestream.Record {
	return changestream.Record{
		EventID:             "evt-1",
		EventName:           changestream.EventInsert,
		PatientID:           5,
		SelectedClinic:      clinicID,
		PatientFirstName:    "Alice",
		PatientLastName:     "Martin",
		GuardianEmail:       "claire@example.com",
		GuardianPhoneNumber: "5145550123",
	}
}

func TestEmailRelay_SendsReferral(t *testing.T) {
	email := &gatewaytest.RecordingEmail{}
	metrics := observability.NewMetrics()
	r := NewEmailRelay(directory(t), notify.NewComposer("Dr.Donlan"), email, "hospital@example.com", zap.NewNop(), metrics)

	require.NoError(t, r.Handle(context.Background(), record(2)))

	calls := email.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, "hospital@example.com", calls[0].To)
	assert.Equal(t, notify.ReferralSubject, calls[0].Subject)
	assert.Contains(t, calls[0].Body, "Dear Lasalle Hospital Pediatrics,")
	assert.Contains(t, calls[0].Body, "Email: claire@example.com")
	assert.Equal(t, int64(1), metrics.Snapshot().Notifications["email|sent"])
}

func TestEmailRelay_UnknownClinicDegrades(t *testing.T) {
	email := &gatewaytest.RecordingEmail{}
	r := NewEmailRelay(directory(t), notify.NewComposer("Dr.Donlan"), email, "hospital@example.com", zap.NewNop(), nil)

	require.NoError(t, r.Handle(context.Background(), record(77)))
	require.Len(t, email.Calls(), 1)
	assert.Contains(t, email.Calls()[0].Body, "Dear ,")
}

func TestEmailRelay_FailureIsReturnedOnce(t *testing.T) {
	email := &gatewaytest.RecordingEmail{Err: errors.New("ses down")}
	metrics := observability.NewMetrics()
	r := NewEmailRelay(directory(t), notify.NewComposer("Dr.Donlan"), email, "hospital@example.com", zap.NewNop(), metrics)

	err := r.Handle(context.Background(), record(2))
	require.Error(t, err)
	assert.Len(t, email.Calls(), 1, "no retry")
	assert.Equal(t, int64(1), metrics.Snapshot().Notifications["email|failed"])
}

func TestEmailRelay_NoRecipient(t *testing.T) {
	email := &gatewaytest.RecordingEmail{}
	r := NewEmailRelay(directory(t), notify.NewComposer("Dr.Donlan"), email, "", zap.NewNop(), nil)

	assert.ErrorIs(t, r.Handle(context.Background(), record(2)), ErrNoHospitalRecipient)
	assert.Empty(t, email.Calls())
}
