package eventbus

import (
	"testing"
	"time"
)

func TestPublishDeliversToSubscriber(t *testing.T) {
	bus := New()
	ch, unsubscribe := bus.Subscribe()
	defer unsubscribe()

	bus.Publish("map-approved", map[string]any{"map_id": 1})

	select {
	case evt := <-ch:
		if evt.Name != "map-approved" {
			t.Errorf("Name = %q, want %q", evt.Name, "map-approved")
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
	}
}

func TestPublishFansOutToAllSubscribers(t *testing.T) {
	bus := New()
	ch1, unsub1 := bus.Subscribe()
	defer unsub1()
	ch2, unsub2 := bus.Subscribe()
	defer unsub2()

	bus.Publish("server-connected", nil)

	for _, ch := range []<-chan Event{ch1, ch2} {
		select {
		case evt := <-ch:
			if evt.Name != "server-connected" {
				t.Errorf("Name = %q, want %q", evt.Name, "server-connected")
			}
		case <-time.After(time.Second):
			t.Fatal("timed out waiting for event")
		}
	}
}

func TestUnsubscribeClosesChannel(t *testing.T) {
	bus := New()
	ch, unsubscribe := bus.Subscribe()
	unsubscribe()

	_, ok := <-ch
	if ok {
		t.Errorf("expected channel to be closed after Unsubscribe")
	}
}

func TestUnsubscribeIsIdempotent(t *testing.T) {
	bus := New()
	_, unsubscribe := bus.Subscribe()
	unsubscribe()
	unsubscribe()
}

func TestPublishToNoSubscribersDoesNotBlock(t *testing.T) {
	bus := New()
	done := make(chan struct{})
	go func() {
		bus.Publish("no-subscribers", nil)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Publish blocked with no subscribers")
	}
}

func TestLaggingSubscriberGetsSyntheticLagEvent(t *testing.T) {
	bus := New()
	ch, unsubscribe := bus.Subscribe()
	defer unsubscribe()

	// Fill the subscriber's buffered channel, then publish one more to force
	// a skip, before draining: subscriberCapacity events fit, the next
	// doesn't.
	for i := 0; i < subscriberCapacity; i++ {
		bus.Publish("filler", i)
	}
	bus.Publish("overflow", nil)

	// Drain the buffered events.
	for i := 0; i < subscriberCapacity; i++ {
		<-ch
	}

	// Publishing again should flush a synthetic lag event ahead of the new one.
	bus.Publish("after-lag", nil)

	select {
	case evt := <-ch:
		if evt.Name != "lag" {
			t.Fatalf("Name = %q, want %q", evt.Name, "lag")
		}
		payload, ok := evt.Payload.(LagPayload)
		if !ok {
			t.Fatalf("Payload = %T, want LagPayload", evt.Payload)
		}
		if payload.Skipped != 1 {
			t.Errorf("Skipped = %d, want 1", payload.Skipped)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for lag event")
	}
}
