package events

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Notification is a queued user notification.
type Notification struct {
	UserID  uuid.UUID              `json:"user_id"`
	Kind    string                 `json:"kind"`
	Payload map[string]interface{} `json:"payload,omitempty"`
}

// Sink receives dispatched notifications. The hub's per-user room is the
// default sink; a push provider would be another.
type Sink interface {
	Deliver(ctx context.Context, n Notification) error
}

// HubSink delivers notifications to the user's realtime room.
type HubSink struct {
	hub *Hub
}

func NewHubSink(hub *Hub) *HubSink {
	return &HubSink{hub: hub}
}

func (s *HubSink) Deliver(_ context.Context, n Notification) error {
	s.hub.Emit("user:"+n.UserID.String(), n.Kind, n.Payload)
	return nil
}

// Dispatcher decouples notification delivery from the state transitions
// that produce them. Notify enqueues and returns immediately; a full queue
// drops the notification rather than stalling a transaction write.
type Dispatcher struct {
	queue  chan Notification
	sinks  []Sink
	logger *zap.Logger

	wg       sync.WaitGroup
	stopOnce sync.Once
	stop     chan struct{}
}

// NewDispatcher creates a dispatcher with the given queue capacity and
// starts its delivery worker.
func NewDispatcher(capacity int, logger *zap.Logger, sinks ...Sink) *Dispatcher {
	if capacity <= 0 {
		capacity = 1024
	}
	d := &Dispatcher{
		queue:  make(chan Notification, capacity),
		sinks:  sinks,
		logger: logger,
		stop:   make(chan struct{}),
	}
	d.wg.Add(1)
	go d.run()
	return d
}

// Notify enqueues a notification. Best effort: it never blocks and never
// reports failure to the caller.
func (d *Dispatcher) Notify(_ context.Context, userID uuid.UUID, kind string, payload map[string]interface{}) {
	n := Notification{UserID: userID, Kind: kind, Payload: payload}
	select {
	case d.queue <- n:
	default:
		d.logger.Warn("notification dropped, queue full",
			zap.String("user_id", userID.String()),
			zap.String("kind", kind))
	}
}

// Close drains the queue and stops the worker.
func (d *Dispatcher) Close() {
	d.stopOnce.Do(func() { close(d.stop) })
	d.wg.Wait()
}

func (d *Dispatcher) run() {
	defer d.wg.Done()
	for {
		select {
		case n := <-d.queue:
			d.deliver(n)
		case <-d.stop:
			// Drain what is already queued before exiting.
			for {
				select {
				case n := <-d.queue:
					d.deliver(n)
				default:
					return
				}
			}
		}
	}
}

func (d *Dispatcher) deliver(n Notification) {
	ctx := context.Background()
	for _, sink := range d.sinks {
		if err := sink.Deliver(ctx, n); err != nil {
			d.logger.Warn("notification delivery failed",
				zap.String("user_id", n.UserID.String()),
				zap.String("kind", n.Kind),
				zap.Error(err))
		}
	}
}
