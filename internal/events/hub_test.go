package events

import (
	"errors"
	"sync"
	"testing"
)

type recorderConn struct {
	mu     sync.Mutex
	events []Event
	fail   bool
}

func (r *recorderConn) Send(ev Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fail {
		return errors.New("connection gone")
	}
	r.events = append(r.events, ev)
	return nil
}

func (r *recorderConn) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.events)
}

func TestSubscribeUnknownChannel(t *testing.T) {
	h := NewHub()
	if err := h.Subscribe(&recorderConn{}, Channel("BOGUS")); !errors.Is(err, ErrUnknownChannel) {
		t.Fatalf("expected ErrUnknownChannel, got %v", err)
	}
}

func TestPublishDeliversToAllSubscribers(t *testing.T) {
	h := NewHub()
	a, b := &recorderConn{}, &recorderConn{}
	if err := h.Subscribe(a, ChannelOrder); err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	if err := h.Subscribe(b, ChannelOrder); err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	h.Publish(ChannelOrder, Event{Type: TypeRequestAcknowledged, ClientRequestID: "A"})

	if a.count() != 1 || b.count() != 1 {
		t.Fatalf("deliveries a=%d b=%d, expected 1 each", a.count(), b.count())
	}
	a.mu.Lock()
	ev := a.events[0]
	a.mu.Unlock()
	if ev.Channel != ChannelOrder || ev.ID == "" || ev.At.IsZero() {
		t.Fatalf("event missing system fields: %+v", ev)
	}
}

func TestPublishNoSubscribersIsNoop(t *testing.T) {
	h := NewHub()
	// Must not panic or error with zero subscribers.
	h.Publish(ChannelOrder, Event{Type: TypeRequestPending})
}

func TestFailedConnIsDroppedOthersStillDelivered(t *testing.T) {
	h := NewHub()
	bad := &recorderConn{fail: true}
	good := &recorderConn{}
	_ = h.Subscribe(bad, ChannelOrder)
	_ = h.Subscribe(bad, ChannelTrade)
	_ = h.Subscribe(good, ChannelOrder)

	h.Publish(ChannelOrder, Event{Type: TypeRequestFinalized})

	if good.count() != 1 {
		t.Fatalf("good subscriber got %d events, expected 1", good.count())
	}
	if h.Subscribers(ChannelOrder) != 1 || h.Subscribers(ChannelTrade) != 0 {
		t.Fatalf("failed conn not cleared: ORDER=%d TRADE=%d",
			h.Subscribers(ChannelOrder), h.Subscribers(ChannelTrade))
	}
}

func TestUnsubscribeAllClearsMembership(t *testing.T) {
	h := NewHub()
	c := &recorderConn{}
	_ = h.Subscribe(c, ChannelOrder)
	_ = h.Subscribe(c, ChannelTransfer)

	h.UnsubscribeAll(c)

	if h.Subscribers(ChannelOrder) != 0 || h.Subscribers(ChannelTransfer) != 0 {
		t.Fatal("memberships survived UnsubscribeAll")
	}
	h.Publish(ChannelOrder, Event{})
	if c.count() != 0 {
		t.Fatal("received event after UnsubscribeAll")
	}
}
