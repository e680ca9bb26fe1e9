package notify

import (
	"context"
	"log/slog"

	"github.com/Skotchmaster/souq/pkg/events"
)

type publisher interface {
	PublishEvent(ctx context.Context, topic, key string, event any) error
}

// KafkaSink forwards events to the order_events topic for the notifier service.
type KafkaSink struct {
	Producer publisher
	Topic    string
}

func NewKafkaSink(p publisher) *KafkaSink {
	return &KafkaSink{Producer: p, Topic: events.TopicOrderEvents}
}

func (k *KafkaSink) Name() string { return "kafka" }

func (k *KafkaSink) Deliver(ctx context.Context, e events.Event) error {
	return k.Producer.PublishEvent(ctx, k.Topic, e.Key(), e)
}

// LogSink stands in for the broker when none is configured.
type LogSink struct {
	Log *slog.Logger
}

func (LogSink) Name() string { return "log" }

func (s LogSink) Deliver(_ context.Context, e events.Event) error {
	l := s.Log
	if l == nil {
		l = slog.Default()
	}
	attrs := []any{"type", e.Type, "key", e.Key()}
	if e.Order != nil {
		attrs = append(attrs, "order_number", e.Order.OrderNumber, "status", e.Order.Status)
	}
	if len(e.Products) > 0 {
		attrs = append(attrs, "products", len(e.Products))
	}
	l.Info("order_event", attrs...)
	return nil
}
