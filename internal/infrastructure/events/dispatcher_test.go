package events

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type recordingSink struct {
	mu       sync.Mutex
	received []Notification
	block    chan struct{}
}

func (s *recordingSink) Deliver(_ context.Context, n Notification) error {
	if s.block != nil {
		<-s.block
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.received = append(s.received, n)
	return nil
}

func (s *recordingSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.received)
}

func TestDispatcher_DeliversInOrder(t *testing.T) {
	sink := &recordingSink{}
	d := NewDispatcher(16, zap.NewNop(), sink)

	userID := uuid.New()
	for _, kind := range []string{"outbid", "bid_won", "transaction_completed"} {
		d.Notify(context.Background(), userID, kind, map[string]interface{}{"n": kind})
	}
	d.Close()

	require.Equal(t, 3, sink.count())
	assert.Equal(t, "outbid", sink.received[0].Kind)
	assert.Equal(t, "transaction_completed", sink.received[2].Kind)
	assert.Equal(t, userID, sink.received[0].UserID)
}

func TestDispatcher_FullQueueDropsInsteadOfBlocking(t *testing.T) {
	sink := &recordingSink{block: make(chan struct{})}
	d := NewDispatcher(1, zap.NewNop(), sink)

	// One in flight at the sink, one queued, the rest must drop without
	// blocking the caller.
	done := make(chan struct{})
	go func() {
		for i := 0; i < 10; i++ {
			d.Notify(context.Background(), uuid.New(), "outbid", nil)
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Notify blocked on a full queue")
	}

	close(sink.block)
	d.Close()
	assert.LessOrEqual(t, sink.count(), 3)
}

func TestDispatcher_CloseDrainsQueue(t *testing.T) {
	sink := &recordingSink{}
	d := NewDispatcher(64, zap.NewNop(), sink)

	for i := 0; i < 20; i++ {
		d.Notify(context.Background(), uuid.New(), "meetup_proposed", nil)
	}
	d.Close()

	assert.Equal(t, 20, sink.count())
}

func TestHubSink_EmitsToUserRoom(t *testing.T) {
	hub := NewHub(zap.NewNop())
	sink := NewHubSink(hub)

	// No subscribers: delivery still succeeds because Emit is fire and
	// forget.
	err := sink.Deliver(context.Background(), Notification{UserID: uuid.New(), Kind: "outbid"})
	assert.NoError(t, err)
}
