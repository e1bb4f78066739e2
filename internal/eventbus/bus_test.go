package eventbus

import "testing"

func TestBusPublishSubscribe(t *testing.T) {
	bus := New[string]()
	ch, cancel := bus.Subscribe(1)
	bus.Publish("hello")
	if v := <-ch; v != "hello" {
		t.Fatalf("expected hello got %v", v)
	}
	cancel()
	if _, ok := <-ch; ok {
		t.Fatalf("expected channel closed after cancel")
	}
}

func TestBusSlowSubscriberDropsEvents(t *testing.T) {
	bus := New[int]()
	ch, cancel := bus.Subscribe(1)
	defer cancel()
	bus.Publish(1)
	bus.Publish(2) // buffer full, dropped
	if v := <-ch; v != 1 {
		t.Fatalf("expected 1 got %v", v)
	}
	select {
	case v := <-ch:
		t.Fatalf("expected no second event, got %v", v)
	default:
	}
}

func TestBusClose(t *testing.T) {
	bus := New[int]()
	ch1, _ := bus.Subscribe(0)
	ch2, _ := bus.Subscribe(0)
	bus.Close()
	if _, ok := <-ch1; ok {
		t.Fatalf("expected ch1 closed")
	}
	if _, ok := <-ch2; ok {
		t.Fatalf("expected ch2 closed")
	}
	bus.Publish(42) // must not panic
}

func TestBusCancelAfterClose(t *testing.T) {
	bus := New[int]()
	_, cancel := bus.Subscribe(0)
	bus.Close()
	defer func() {
		if r := recover(); r != nil {
			t.Fatalf("panic on cancel after Close: %v", r)
		}
	}()
	cancel()
	cancel()
}
