package local

import (
	"context"
	"testing"
	"time"
)

func TestSignalBusFanOut(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	bus := NewSignalBus()

	a, _ := bus.Subscribe(ctx, "listings")
	b, _ := bus.Subscribe(ctx, "listings")
	other, _ := bus.Subscribe(ctx, "other")

	if err := bus.Publish(ctx, "listings", []byte("hi")); err != nil {
		t.Fatal(err)
	}
	for name, ch := range map[string]<-chan []byte{"a": a, "b": b} {
		select {
		case got := <-ch:
			if string(got) != "hi" {
				t.Errorf("%s got %q", name, got)
			}
		case <-time.After(time.Second):
			t.Fatalf("%s received nothing", name)
		}
	}
	select {
	case got := <-other:
		t.Errorf("other channel received %q", got)
	default:
	}

	cancel()
	select {
	case _, ok := <-a:
		if ok {
			t.Error("subscription not closed after cancel")
		}
	case <-time.After(time.Second):
		t.Fatal("subscription not closed after cancel")
	}
}
