package poller

import (
	"os"
	"testing"
	"time"
)

func TestRegisterWaitReadable(t *testing.T) {
	p, err := New()
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer p.Close()

	r, w, err := os.Pipe()
	if err != nil {
		t.Fatalf("Pipe: %v", err)
	}
	defer r.Close()
	defer w.Close()

	rfd := int(r.Fd())
	if err := p.Register(rfd, Readable); err != nil {
		t.Fatalf("Register: %v", err)
	}

	if _, err := w.Write([]byte("x")); err != nil {
		t.Fatalf("Write: %v", err)
	}

	events, err := p.Wait(1000)
	if err != nil {
		t.Fatalf("Wait: %v", err)
	}

	found := false
	for _, ev := range events {
		if ev.Fd == rfd && ev.Events.Has(Readable) {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected readable event for fd %d, got %+v", rfd, events)
	}
}

func TestWaitTimeoutReturnsNoEvents(t *testing.T) {
	p, err := New()
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer p.Close()

	start := time.Now()
	events, err := p.Wait(50)
	if err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if len(events) != 0 {
		t.Fatalf("expected no events, got %+v", events)
	}
	if time.Since(start) > 2*time.Second {
		t.Fatalf("Wait blocked far longer than its timeout")
	}
}

func TestDeregisterUnregisteredIsNoop(t *testing.T) {
	p, err := New()
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer p.Close()

	if err := p.Deregister(999999); err != nil {
		t.Fatalf("Deregister of unregistered fd should be a no-op, got %v", err)
	}
}
