package hub

import (
	"encoding/json"
	"log/slog"
	"testing"
	"time"

	"github.com/splitpot/api/internal/wire"
)

func newTestHub() *Hub {
	return New(16, 0, slog.New(slog.NewTextHandler(discard{}, nil)))
}

type discard struct{}

func (discard) Write(p []byte) (int, error) { return len(p), nil }

func TestPublishReachesOnlyTopicSubscribers(t *testing.T) {
	h := newTestHub()
	defer h.Close()

	a := h.Register("conn-a")
	b := h.Register("conn-b")

	topic := wire.EventTopic("ABC123", wire.EntityExpense, wire.OpCreate)
	if !h.Subscribe("conn-a", topic) {
		t.Fatal("subscribe failed for registered connection")
	}

	if err := h.Publish(topic, map[string]string{"id": "e1"}); err != nil {
		t.Fatalf("publish: %v", err)
	}

	select {
	case frame := <-a.Frames:
		if frame.Destination != topic {
			t.Errorf("unexpected destination: %s", frame.Destination)
		}
	case <-time.After(time.Second):
		t.Fatal("subscriber did not receive the frame")
	}

	select {
	case frame := <-b.Frames:
		t.Errorf("unsubscribed connection received frame for %s", frame.Destination)
	default:
	}
}

func TestPublishPreservesOrder(t *testing.T) {
	h := newTestHub()
	defer h.Close()

	sub := h.Register("conn-a")
	topic := wire.EventTopic("ABC123", wire.EntityEvent, wire.OpUpdate)
	h.Subscribe("conn-a", topic)

	for i := 0; i < 5; i++ {
		if err := h.Publish(topic, i); err != nil {
			t.Fatalf("publish %d: %v", i, err)
		}
	}

	for i := 0; i < 5; i++ {
		frame := <-sub.Frames
		var got int
		if err := json.Unmarshal(frame.Body, &got); err != nil {
			t.Fatalf("decode body: %v", err)
		}
		if got != i {
			t.Fatalf("expected frame %d, got %d", i, got)
		}
	}
}

func TestReplyGoesToOneConnection(t *testing.T) {
	h := newTestHub()
	defer h.Close()

	a := h.Register("conn-a")
	b := h.Register("conn-b")

	if err := h.Reply("conn-a", "expense:create e1"); err != nil {
		t.Fatalf("reply: %v", err)
	}

	select {
	case frame := <-a.Frames:
		if frame.Destination != wire.ReplyQueue {
			t.Errorf("expected reply queue destination, got %s", frame.Destination)
		}
	case <-time.After(time.Second):
		t.Fatal("reply not delivered")
	}

	select {
	case <-b.Frames:
		t.Error("reply leaked to another connection")
	default:
	}
}

func TestReplyToUnknownConnectionIsDropped(t *testing.T) {
	h := newTestHub()
	defer h.Close()

	if err := h.Reply("nobody", "hello"); err != nil {
		t.Fatalf("reply to unknown connection must not error: %v", err)
	}
}

func TestUnsubscribeIsIdempotent(t *testing.T) {
	h := newTestHub()
	defer h.Close()

	h.Register("conn-a")
	topic := wire.EventTopic("ABC123", wire.EntityParticipant, wire.OpDelete)
	h.Subscribe("conn-a", topic)

	h.Unsubscribe("conn-a", topic)
	h.Unsubscribe("conn-a", topic)
	h.Unsubscribe("conn-a", "/topic/NEVER1/participant:delete")

	if count := h.SubscriberCount(topic); count != 0 {
		t.Errorf("expected 0 subscribers, got %d", count)
	}
}

func TestDeregisterRemovesTopicMemberships(t *testing.T) {
	h := newTestHub()
	defer h.Close()

	h.Register("conn-a")
	topic := wire.EventTopic("ABC123", wire.EntityExpense, wire.OpUpdate)
	h.Subscribe("conn-a", topic)

	h.Deregister("conn-a")

	if count := h.SubscriberCount(topic); count != 0 {
		t.Errorf("expected membership removed, got %d subscribers", count)
	}
	if h.Subscribe("conn-a", topic) {
		t.Error("subscribe must fail after deregister")
	}
}

func TestHasAdminSubscription(t *testing.T) {
	h := newTestHub()
	defer h.Close()

	h.Register("conn-a")
	h.Subscribe("conn-a", wire.EventTopic("ABC123", wire.EntityEvent, wire.OpUpdate))
	if h.HasAdminSubscription("conn-a") {
		t.Error("event topic must not count as admin subscription")
	}

	h.Subscribe("conn-a", wire.AdminTopic(wire.EntityEvent, wire.OpCreate))
	if !h.HasAdminSubscription("conn-a") {
		t.Error("expected admin subscription to be detected")
	}
}

func TestSlowSubscriberDoesNotBlockPublish(t *testing.T) {
	h := New(1, 0, slog.New(slog.NewTextHandler(discard{}, nil)))
	defer h.Close()

	h.Register("conn-a")
	topic := wire.EventTopic("ABC123", wire.EntityExpense, wire.OpCreate)
	h.Subscribe("conn-a", topic)

	done := make(chan struct{})
	go func() {
		for i := 0; i < 10; i++ {
			h.Publish(topic, i)
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("publish blocked on a full subscriber buffer")
	}
}

func TestHeartbeatsReachSubscribers(t *testing.T) {
	h := New(16, 10*time.Millisecond, slog.New(slog.NewTextHandler(discard{}, nil)))
	defer h.Close()

	sub := h.Register("conn-a")

	select {
	case frame := <-sub.Frames:
		if frame.Type != wire.FrameHeartbeat {
			t.Errorf("expected heartbeat, got %s", frame.Type)
		}
	case <-time.After(time.Second):
		t.Fatal("no heartbeat received")
	}
}

func TestSendDeliversToOneConnection(t *testing.T) {
	h := newTestHub()
	defer h.Close()

	a := h.Register("conn-a")
	b := h.Register("conn-b")

	h.Send("conn-a", wire.NewError("access denied"))

	select {
	case frame := <-a.Frames:
		if frame.Type != wire.FrameError {
			t.Errorf("expected ERROR frame, got %s", frame.Type)
		}
	case <-time.After(time.Second):
		t.Fatal("frame not delivered")
	}

	select {
	case <-b.Frames:
		t.Error("frame leaked to another connection")
	default:
	}
}

func TestSendAfterDisconnectIsDropped(t *testing.T) {
	h := newTestHub()

	h.Register("conn-a")
	h.Deregister("conn-a")
	h.Send("conn-a", wire.NewError("too late"))

	h.Register("conn-b")
	h.Close()
	h.Send("conn-b", wire.NewError("too late"))
}

func TestCloseDisconnectsSubscribers(t *testing.T) {
	h := newTestHub()
	sub := h.Register("conn-a")

	h.Close()

	select {
	case <-sub.Done:
	case <-time.After(time.Second):
		t.Fatal("Done not closed on hub shutdown")
	}
}
