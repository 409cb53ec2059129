package progress

import (
	"testing"
	"time"
)

func TestChannel(t *testing.T) {
	got := Channel("abc-123")
	want := "pipeline:progress:abc-123"
	if got != want {
		t.Errorf("Channel() = %q, want %q", got, want)
	}
}

func TestTerminal(t *testing.T) {
	for _, status := range []string{"completed", "failed", "cancelled"} {
		if !Terminal(status) {
			t.Errorf("Terminal(%q) = false, want true", status)
		}
	}
	for _, status := range []string{"running", "pending", ""} {
		if Terminal(status) {
			t.Errorf("Terminal(%q) = true, want false", status)
		}
	}
}

func TestBusPublishSubscribe(t *testing.T) {
	bus := NewBus(nil)

	ch, unsub := bus.Subscribe(Channel("job-1"))
	defer unsub()

	bus.Publish(Channel("job-1"), Event{Stage: "spider", Progress: 0.1, Status: "running"})

	select {
	case ev := <-ch:
		if ev.Stage != "spider" || ev.Progress != 0.1 || ev.Status != "running" {
			t.Errorf("unexpected event: %+v", ev)
		}
		if ev.Timestamp.IsZero() {
			t.Error("timestamp not stamped")
		}
	case <-time.After(time.Second):
		t.Fatal("no event received")
	}
}

func TestBusChannelIsolation(t *testing.T) {
	bus := NewBus(nil)

	ch, unsub := bus.Subscribe(Channel("job-1"))
	defer unsub()

	bus.Publish(Channel("job-2"), Event{Stage: "spider", Status: "running"})

	select {
	case ev := <-ch:
		t.Errorf("received event for other channel: %+v", ev)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestBusUnsubscribeClosesChannel(t *testing.T) {
	bus := NewBus(nil)

	ch, unsub := bus.Subscribe(Channel("job-1"))
	unsub()

	if _, ok := <-ch; ok {
		t.Error("channel not closed after unsubscribe")
	}

	// Publishing after unsubscribe must not panic.
	bus.Publish(Channel("job-1"), Event{Status: "running"})
}
