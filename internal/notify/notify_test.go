package notify

import (
	"context"
	"errors"
	"testing"
)

type fakeTransport struct {
	sent []Notification
	err  error
}

func (f *fakeTransport) Send(ctx context.Context, n Notification) error {
	f.sent = append(f.sent, n)
	return f.err
}

func TestRegistryEnqueueFansOutToRegisteredReceivers(t *testing.T) {
	r := NewRegistry()
	webhook := &fakeTransport{}
	r.Register("ops-webhook", webhook)

	err := r.Enqueue(context.Background(), []string{"ops-webhook"}, Notification{AppName: "acme", Success: true})
	if err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	if len(webhook.sent) != 1 {
		t.Fatalf("expected 1 delivery, got %d", len(webhook.sent))
	}
}

func TestRegistryEnqueueSwallowsTransportFailure(t *testing.T) {
	r := NewRegistry()
	broken := &fakeTransport{err: errors.New("endpoint down")}
	r.Register("broken", broken)

	err := r.Enqueue(context.Background(), []string{"broken"}, Notification{AppName: "acme"})
	if err != nil {
		t.Fatalf("Enqueue must never fail on transport error, got %v", err)
	}
}

func TestRegistryEnqueueIgnoresUnknownReceiver(t *testing.T) {
	r := NewRegistry()
	err := r.Enqueue(context.Background(), []string{"unregistered"}, Notification{AppName: "acme"})
	if err != nil {
		t.Fatalf("Enqueue must never fail on unknown receiver, got %v", err)
	}
}
