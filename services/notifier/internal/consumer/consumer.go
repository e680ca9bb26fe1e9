// Package consumer drains the order event topic and turns each event into notifications.
package consumer

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/Skotchmaster/souq/pkg/events"
	"github.com/Skotchmaster/souq/services/notifier/internal/message"
)

const fetchBackoff = time.Second

// Reader is the part of *kafka.Reader the consumer needs.
type Reader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
}

type Dispatcher interface {
	Dispatch(ctx context.Context, msgs []message.Message) int
}

type Consumer struct {
	Reader     Reader
	Renderer   message.Renderer
	Dispatcher Dispatcher
	Log        *slog.Logger
}

// Run processes messages until ctx is cancelled. Offsets are committed whether or not delivery
// succeeded, so one bad message cannot stall the group.
func (c *Consumer) Run(ctx context.Context) error {
	for {
		m, err := c.Reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			c.Log.Error("kafka_fetch_failed", "error", err)
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(fetchBackoff):
			}
			continue
		}

		c.Handle(ctx, m)

		if err := c.Reader.CommitMessages(ctx, m); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			c.Log.Error("kafka_commit_failed", "partition", m.Partition, "offset", m.Offset, "error", err)
		}
	}
}

func (c *Consumer) Handle(ctx context.Context, m kafka.Message) {
	l := c.Log.With("partition", m.Partition, "offset", m.Offset, "key", string(m.Key))

	var e events.Event
	if err := json.Unmarshal(m.Value, &e); err != nil {
		l.Error("event_decode_failed", "error", err)
		return
	}

	msgs, err := c.Renderer.Render(e)
	if err != nil {
		if errors.Is(err, message.ErrUnsupported) {
			l.Warn("event_skipped", "type", e.Type)
			return
		}
		l.Error("event_render_failed", "type", e.Type, "error", err)
		return
	}

	sent := c.Dispatcher.Dispatch(ctx, msgs)
	l.Info("event_processed", "type", e.Type, "messages", len(msgs), "sent", sent)
}
