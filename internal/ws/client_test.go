package ws

import (
	"testing"

	"github.com/scottyhq/scotty/internal/authcontract"
)

func TestClientEnqueueDropsOldestOnOverflow(t *testing.T) {
	c := newClient(nil, authcontract.Claims{}, 2)

	c.Enqueue(newFrame(TagPing, nil))
	c.Enqueue(newFrame(TagPong, nil))
	c.Enqueue(newFrame(TagAppListUpdated, nil))

	first := <-c.send
	if first.Tag != TagAppListUpdated {
		t.Fatalf("expected the newest frame to survive the drop, got %v first", first.Tag)
	}

	second := <-c.send
	if second.Tag != TagError {
		t.Fatalf("expected a slow_consumer Error frame after the drop, got %v", second.Tag)
	}
}

func TestClientSubscriptionReplaceCancelsPrevious(t *testing.T) {
	c := newClient(nil, authcontract.Claims{}, DefaultOutboundQueueSize)

	firstCanceled := false
	c.addSubscription("s1", func() { firstCanceled = true })
	c.addSubscription("s1", func() {})

	if !firstCanceled {
		t.Error("expected replacing a subscription id to cancel the previous one")
	}
}

func TestClientCancelAllSubscriptions(t *testing.T) {
	c := newClient(nil, authcontract.Claims{}, DefaultOutboundQueueSize)

	n := 0
	c.addSubscription("a", func() { n++ })
	c.addSubscription("b", func() { n++ })
	c.cancelAllSubscriptions()

	if n != 2 {
		t.Errorf("expected both subscriptions canceled, got %d", n)
	}
	if len(c.subscriptions) != 0 {
		t.Error("expected subscriptions map cleared")
	}
}
