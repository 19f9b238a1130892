package submux

import (
	"testing"
	"time"
)

func TestNextSID(t *testing.T) {
	m := New[int](nil)
	for i, want := range []string{"1", "2", "3"} {
		if got := m.NextSID(); got != want {
			t.Fatalf("NextSID call %d = %q, want %q", i+1, got, want)
		}
	}
}

func TestDeliver(t *testing.T) {
	m := New[int](nil)
	ch := make(chan int, 4)
	m.Register("1", "foo", "", ch)

	if d := m.Deliver("1", 42); d != Delivered {
		t.Fatalf("Deliver = %v, want Delivered", d)
	}
	if got := <-ch; got != 42 {
		t.Fatalf("received %d, want 42", got)
	}

	if d := m.Deliver("99", 1); d != Unknown {
		t.Fatalf("Deliver unknown sid = %v, want Unknown", d)
	}
}

func TestUnregisterDrainWindow(t *testing.T) {
	m := New[int](nil)
	var fired []func()
	m.afterFunc = func(d time.Duration, f func()) *time.Timer {
		if d != DrainWindow {
			t.Errorf("drain timer duration = %v, want %v", d, DrainWindow)
		}
		fired = append(fired, f)
		return nil
	}

	ch := make(chan int, 1)
	m.Register("1", "foo", "", ch)
	m.Unregister("1")

	if _, open := <-ch; open {
		t.Fatal("channel not closed on Unregister")
	}

	// Inside the drain window the sid is still "known": silent drop.
	if d := m.Deliver("1", 5); d != Dropped {
		t.Fatalf("Deliver during drain = %v, want Dropped", d)
	}

	// Expire the window.
	if len(fired) != 1 {
		t.Fatalf("drain timers scheduled = %d, want 1", len(fired))
	}
	fired[0]()
	if d := m.Deliver("1", 5); d != Unknown {
		t.Fatalf("Deliver after drain window = %v, want Unknown", d)
	}
}

func TestRegisterRevivesDrainingSID(t *testing.T) {
	m := New[int](nil)
	m.afterFunc = func(time.Duration, func()) *time.Timer { return nil }

	ch := make(chan int, 1)
	m.Register("1", "foo", "", ch)
	m.Unregister("1")

	ch2 := make(chan int, 1)
	m.Register("1", "bar", "", ch2)
	if d := m.Deliver("1", 7); d != Delivered {
		t.Fatalf("Deliver to revived sid = %v, want Delivered", d)
	}
}

func TestAutoUnsubscribe(t *testing.T) {
	m := New[int](nil)
	m.afterFunc = func(time.Duration, func()) *time.Timer { return nil }

	ch := make(chan int, 8)
	m.Register("1", "foo", "", ch)
	m.SetAutoUnsubscribe("1", 3)

	for i := 0; i < 3; i++ {
		if d := m.Deliver("1", i); d != Delivered {
			t.Fatalf("delivery %d = %v, want Delivered", i, d)
		}
	}
	// Limit reached: channel closed, further deliveries silently
	// dropped inside the drain window.
	if d := m.Deliver("1", 99); d != Dropped {
		t.Fatalf("delivery past max = %v, want Dropped", d)
	}

	var got []int
	for v := range ch {
		got = append(got, v)
	}
	if len(got) != 3 {
		t.Fatalf("received %d messages, want exactly 3", len(got))
	}
}

func TestAutoUnsubscribeAlreadyPast(t *testing.T) {
	m := New[int](nil)
	m.afterFunc = func(time.Duration, func()) *time.Timer { return nil }

	ch := make(chan int, 8)
	m.Register("1", "foo", "", ch)
	m.Deliver("1", 1)
	m.Deliver("1", 2)

	// Limit at or below the delivered count finishes immediately.
	m.SetAutoUnsubscribe("1", 2)
	if d := m.Deliver("1", 3); d != Dropped {
		t.Fatalf("Deliver = %v, want Dropped", d)
	}
}

func TestFinishAll(t *testing.T) {
	m := New[int](nil)
	ch1 := make(chan int, 1)
	ch2 := make(chan int, 1)
	m.Register("1", "a", "", ch1)
	m.Register("2", "b", "", ch2)

	m.FinishAll()

	for _, ch := range []chan int{ch1, ch2} {
		if _, open := <-ch; open {
			t.Fatal("channel not closed by FinishAll")
		}
	}
	if d := m.Deliver("1", 1); d != Dropped {
		t.Fatalf("Deliver after FinishAll = %v, want Dropped", d)
	}
	if d := m.Deliver("nope", 1); d != Dropped {
		t.Fatalf("Deliver unknown after FinishAll = %v, want Dropped", d)
	}
	// Idempotent.
	m.FinishAll()
}

func TestSnapshotOrder(t *testing.T) {
	m := New[int](nil)
	m.afterFunc = func(time.Duration, func()) *time.Timer { return nil }

	m.Register("1", "a", "", make(chan int, 1))
	m.Register("2", "b", "q1", make(chan int, 1))
	m.Register("3", "c", "", make(chan int, 1))
	m.Unregister("2")

	snap := m.Snapshot()
	if len(snap) != 2 {
		t.Fatalf("snapshot length = %d, want 2", len(snap))
	}
	if snap[0].Subject != "a" || snap[1].Subject != "c" {
		t.Fatalf("snapshot order wrong: %+v", snap)
	}
}
