// Package notify moves committed order events out of the request path.
package notify

import (
	"context"
	"log/slog"
	"time"

	"github.com/Skotchmaster/souq/pkg/events"
)

const (
	defaultOutboxSize = 256
	drainTimeout      = 5 * time.Second
)

// Sink delivers one event somewhere outside the process.
type Sink interface {
	Name() string
	Deliver(ctx context.Context, e events.Event) error
}

// Outbox is a bounded queue drained by a single worker that fans events out to every sink.
type Outbox struct {
	ch    chan events.Event
	sinks []Sink
	log   *slog.Logger
}

func NewOutbox(size int, log *slog.Logger, sinks ...Sink) *Outbox {
	if size <= 0 {
		size = defaultOutboxSize
	}
	if log == nil {
		log = slog.Default()
	}
	return &Outbox{ch: make(chan events.Event, size), sinks: sinks, log: log}
}

// Enqueue never blocks. It reports false when the queue is full and the event was dropped.
func (o *Outbox) Enqueue(e events.Event) bool {
	select {
	case o.ch <- e:
		return true
	default:
		return false
	}
}

func (o *Outbox) Len() int { return len(o.ch) }

// Run delivers events until ctx is cancelled, then flushes what is still queued.
func (o *Outbox) Run(ctx context.Context) {
	for {
		select {
		case e := <-o.ch:
			o.dispatch(ctx, e)
		case <-ctx.Done():
			o.drain(ctx)
			return
		}
	}
}

func (o *Outbox) drain(parent context.Context) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(parent), drainTimeout)
	defer cancel()
	for {
		select {
		case e := <-o.ch:
			o.dispatch(ctx, e)
		default:
			return
		}
	}
}

func (o *Outbox) dispatch(ctx context.Context, e events.Event) {
	for _, s := range o.sinks {
		if err := s.Deliver(ctx, e); err != nil {
			o.log.Error("notify_delivery_failed", "sink", s.Name(), "type", e.Type, "key", e.Key(), "error", err)
		}
	}
}
