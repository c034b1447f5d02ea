package changestream

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/pediamatch/intake-service/internal/config"
)

// Handler processes one decoded INSERT record.
type Handler func(ctx context.Context, rec Record) error

// Consumer reads the stream through a consumer group. Every entry is
// acknowledged after one delivery attempt, whatever the handler returns.
type Consumer struct {
	client  redis.Cmdable
	cfg     config.StreamConfig
	handler Handler
	logger  *zap.Logger
	backoff time.Duration
}

// NewConsumer builds a consumer dispatching INSERT records to handler.
func NewConsumer(client redis.Cmdable, cfg config.StreamConfig, handler Handler, logger *zap.Logger) *Consumer {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 10
	}
	return &Consumer{client: client, cfg: cfg, handler: handler, logger: logger, backoff: time.Second}
}

// EnsureGroup creates the consumer group (and stream) if missing.
func (c *Consumer) EnsureGroup(ctx context.Context) error {
	err := c.client.XGroupCreateMkStream(ctx, c.cfg.Name, c.cfg.Group, "0").Err()
	if err != nil && !strings.Contains(err.Error(), "BUSYGROUP") {
		return err
	}
	return nil
}

// Run polls until ctx is cancelled.
func (c *Consumer) Run(ctx context.Context) error {
	if err := c.EnsureGroup(ctx); err != nil {
		return err
	}
	c.logger.Info("change stream consumer started",
		zap.String("stream", c.cfg.Name),
		zap.String("group", c.cfg.Group),
		zap.String("consumer", c.cfg.Consumer))

	for {
		if ctx.Err() != nil {
			return nil
		}
		if _, err := c.Poll(ctx); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			c.logger.Warn("change stream poll failed", zap.Error(err))
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(c.backoff):
			}
		}
	}
}

// Poll reads one batch of new entries, handles and acknowledges them, and
// returns how many INSERT records reached the handler.
func (c *Consumer) Poll(ctx context.Context) (int, error) {
	streams, err := c.client.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    c.cfg.Group,
		Consumer: c.cfg.Consumer,
		Streams:  []string{c.cfg.Name, ">"},
		Count:    int64(c.cfg.BatchSize),
		Block:    c.cfg.Block(),
	}).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}
		return 0, err
	}

	handled := 0
	for _, stream := range streams {
		for _, msg := range stream.Messages {
			if c.dispatch(ctx, msg) {
				handled++
			}
			if err := c.client.XAck(ctx, c.cfg.Name, c.cfg.Group, msg.ID).Err(); err != nil {
				c.logger.Error("change stream ack failed", zap.String("entry_id", msg.ID), zap.Error(err))
			}
		}
	}
	return handled, nil
}

func (c *Consumer) dispatch(ctx context.Context, msg redis.XMessage) bool {
	rec, err := DecodeRecord(msg.Values)
	if err != nil {
		c.logger.Error("change stream record malformed", zap.String("entry_id", msg.ID), zap.Error(err))
		return false
	}
	if rec.EventName != EventInsert {
		c.logger.Debug("change stream record skipped", zap.String("entry_id", msg.ID), zap.String("event_name", rec.EventName))
		return false
	}
	if err := c.handler(ctx, rec); err != nil {
		c.logger.Error("change stream handler failed",
			zap.String("entry_id", msg.ID),
			zap.Int64("patient_id", rec.PatientID),
			zap.Error(err))
	}
	return true
}
