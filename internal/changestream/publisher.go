package changestream

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/pediamatch/intake-service/internal/events"
)

// Publisher appends an INSERT record to the stream for each created patient.
// Updates are not streamed.
type Publisher struct {
	client redis.Cmdable
	stream string
	logger *zap.Logger
}

// NewPublisher returns a publisher writing to stream.
func NewPublisher(client redis.Cmdable, stream string, logger *zap.Logger) *Publisher {
	return &Publisher{client: client, stream: stream, logger: logger}
}

// Register subscribes the publisher to patient creation.
func (p *Publisher) Register(d events.Dispatcher) {
	d.Subscribe(events.EventPatientCreated, "change_stream", p.handle)
}

func (p *Publisher) handle(ctx context.Context, event events.Event) error {
	_, err := p.Publish(ctx, InsertRecord(event.ID, event.Patient))
	return err
}

// Publish XADDs rec and returns the stream entry id.
func (p *Publisher) Publish(ctx context.Context, rec Record) (string, error) {
	id, err := p.client.XAdd(ctx, &redis.XAddArgs{
		Stream: p.stream,
		Values: rec.Values(),
	}).Result()
	if err != nil {
		p.logger.Error("change stream publish failed",
			zap.String("stream", p.stream),
			zap.Int64("patient_id", rec.PatientID),
			zap.Error(err))
		return "", fmt.Errorf("xadd %s: %w", p.stream, err)
	}

	p.logger.Debug("change stream record published",
		zap.String("stream", p.stream),
		zap.String("entry_id", id),
		zap.Int64("patient_id", rec.PatientID))
	return id, nil
}
