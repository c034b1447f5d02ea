package changestream

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/pediamatch/intake-service/internal/config"
	"github.com/pediamatch/intake-service/internal/domain"
	"github.com/pediamatch/intake-service/internal/events"
)

func newRedis(t *testing.T) *redis.Client {
	t.Helper()
	srv := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func streamConfig() config.StreamConfig {
	return config.StreamConfig{
		Name:        "patients:changes",
		Group:       "email-relay",
		Consumer:    "test",
		BatchSize:   10,
		BlockMillis: -1,
	}
}

func samplePatient() domain.Patient {
	return domain.Patient{
		ID:                12,
		FirstName:         "Alice",
		LastName:          "Martin",
		Email:             "claire@example.com",
		PhoneNumber:       "5145550123",
		PostalCode:        "H3X 2T8",
		GuardianFirstName: "Claire",
		GuardianLastName:  "Martin",
		SelectedClinic:    3,
	}
}

func TestRecord_RoundTripThroughValues(t *testing.T) {
	rec := InsertRecord("evt-1", samplePatient())
	values := rec.Values()

	for _, key := range []string{
		"selectedClinic", "patientFirstName", "patientLastName", "patientPostalCode",
		"guardianFirstName", "guardianLastName", "guardianPhoneNumber", "guardianEmail",
	} {
		assert.Contains(t, values, key)
	}

	decoded, err := DecodeRecord(values)
	require.NoError(t, err)
	assert.Equal(t, rec, decoded)
}

func TestDecodeRecord_Invalid(t *testing.T) {
	_, err := DecodeRecord(map[string]any{"selectedClinic": "1"})
	assert.Error(t, err, "eventName required")

	_, err = DecodeRecord(map[string]any{"eventName": "INSERT", "selectedClinic": "x"})
	assert.Error(t, err)

	_, err = DecodeRecord(map[string]any{"eventName": "INSERT", "selectedClinic": "1", "patientId": "abc"})
	assert.Error(t, err)
}

func TestPublisher_PublishesOnlyCreates(t *testing.T) {
	client := newRedis(t)
	ctx := context.Background()

	d := events.NewInMemoryDispatcher()
	NewPublisher(client, "patients:changes", zap.NewNop()).Register(d)

	p := samplePatient()
	require.NoError(t, d.Publish(ctx, events.NewPatientEvent(events.EventPatientCreated, p, time.Now())))
	require.NoError(t, d.Publish(ctx, events.NewPatientEvent(events.EventPatientUpdated, p, time.Now())))

	entries, err := client.XRange(ctx, "patients:changes", "-", "+").Result()
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "INSERT", entries[0].Values["eventName"])
	assert.Equal(t, "Claire", entries[0].Values["guardianFirstName"])
}

func TestPublisher_RedisDown(t *testing.T) {
	srv, err := miniredis.Run()
	require.NoError(t, err)
	client := redis.NewClient(&redis.Options{Addr: srv.Addr(), MaxRetries: -1})
	defer client.Close()
	srv.Close()

	_, err = NewPublisher(client, "s", zap.NewNop()).Publish(context.Background(), InsertRecord("e", samplePatient()))
	assert.Error(t, err)
}

func TestConsumer_PollHandlesInsertsAndAcksEverything(t *testing.T) {
	client := newRedis(t)
	ctx := context.Background()
	cfg := streamConfig()

	pub := NewPublisher(client, cfg.Name, zap.NewNop())
	_, err := pub.Publish(ctx, InsertRecord("e1", samplePatient()))
	require.NoError(t, err)
	require.NoError(t, client.XAdd(ctx, &redis.XAddArgs{Stream: cfg.Name, Values: map[string]any{"eventName": "MODIFY", "selectedClinic": "3"}}).Err())
	require.NoError(t, client.XAdd(ctx, &redis.XAddArgs{Stream: cfg.Name, Values: map[string]any{"garbage": "1"}}).Err())

	var got []Record
	consumer := NewConsumer(client, cfg, func(_ context.Context, rec Record) error {
		got = append(got, rec)
		return errors.New("provider down")
	}, zap.NewNop())

	require.NoError(t, consumer.EnsureGroup(ctx))
	require.NoError(t, consumer.EnsureGroup(ctx), "existing group is not an error")

	handled, err := consumer.Poll(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, handled)
	require.Len(t, got, 1)
	assert.Equal(t, "Alice", got[0].PatientFirstName)

	pending, err := client.XPendingExt(ctx, &redis.XPendingExtArgs{
		Stream: cfg.Name,
		Group:  cfg.Group,
		Start:  "-",
		End:    "+",
		Count:  10,
	}).Result()
	require.NoError(t, err)
	assert.Empty(t, pending, "failed handling is not retried")

	handled, err = consumer.Poll(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, handled)
}
