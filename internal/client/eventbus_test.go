package client

import (
	"sync"
	"testing"
)

func TestEventBusPublishDeliversInRegistrationOrder(t *testing.T) {
	bus := NewEventBus(nil)
	var mu sync.Mutex
	var order []int

	bus.Subscribe(TopicShapeCreated, func(ctx EventContext, payload any) {
		mu.Lock()
		order = append(order, 1)
		mu.Unlock()
	})
	bus.Subscribe(TopicShapeCreated, func(ctx EventContext, payload any) {
		mu.Lock()
		order = append(order, 2)
		mu.Unlock()
	})

	bus.Publish(TopicShapeCreated, EventContext{Source: SourceLocal}, nil)

	mu.Lock()
	defer mu.Unlock()
	if len(order) != 2 || order[0] != 1 || order[1] != 2 {
		t.Fatalf("expected delivery order [1 2], got %v", order)
	}
}

func TestEventBusUnsubscribeStopsDelivery(t *testing.T) {
	bus := NewEventBus(nil)
	calls := 0
	unsub := bus.Subscribe(TopicShapeDeleted, func(ctx EventContext, payload any) { calls++ })

	bus.Publish(TopicShapeDeleted, EventContext{}, nil)
	unsub()
	bus.Publish(TopicShapeDeleted, EventContext{}, nil)
	unsub() // second call is a no-op

	if calls != 1 {
		t.Fatalf("expected 1 delivery before unsubscribe, got %d", calls)
	}
}

func TestEventBusPublishRecoversPanickingSubscriber(t *testing.T) {
	bus := NewEventBus(nil)
	secondCalled := false

	bus.Subscribe(TopicShapeModified, func(ctx EventContext, payload any) {
		panic("boom")
	})
	bus.Subscribe(TopicShapeModified, func(ctx EventContext, payload any) {
		secondCalled = true
	})

	bus.Publish(TopicShapeModified, EventContext{}, nil)

	if !secondCalled {
		t.Fatal("expected second subscriber to still run after the first panicked")
	}
}

func TestEventBusOtherTopicsUnaffected(t *testing.T) {
	bus := NewEventBus(nil)
	called := false
	bus.Subscribe(TopicShapeSelected, func(ctx EventContext, payload any) { called = true })

	bus.Publish(TopicShapeUnselected, EventContext{}, nil)

	if called {
		t.Fatal("publishing to one topic must not invoke subscribers of another")
	}
}
