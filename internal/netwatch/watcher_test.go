package netwatch

import (
	"testing"

	"github.com/rs/zerolog"
)

func online() State {
	return State{Connected: true, InternetReachable: true, TransportType: "wifi"}
}

func offline() State {
	return State{Connected: false, InternetReachable: false}
}

func TestOfflineDerivation(t *testing.T) {
	cases := []struct {
		s    State
		want bool
	}{
		{State{Connected: true, InternetReachable: true}, false},
		{State{Connected: true, InternetReachable: false}, true},
		{State{Connected: false, InternetReachable: true}, true},
		{State{}, true},
	}
	for _, tc := range cases {
		if got := tc.s.Offline(); got != tc.want {
			t.Errorf("Offline(%+v) = %v, want %v", tc.s, got, tc.want)
		}
	}
}

func TestHooksFireOnlyOnFlip(t *testing.T) {
	w := New(zerolog.Nop())
	var reconnects, disconnects int
	w.OnReconnect(func() { reconnects++ })
	w.OnDisconnect(func() { disconnects++ })

	// The first observation is the baseline, not a transition.
	w.Set(online())
	if reconnects != 0 || disconnects != 0 {
		t.Fatalf("first observation fired hooks: %d/%d", reconnects, disconnects)
	}

	// Transport change without an offline flip must not fire hooks.
	s := online()
	s.TransportType = "cellular"
	w.Set(s)
	if reconnects != 0 || disconnects != 0 {
		t.Fatalf("transport change fired hooks: %d/%d", reconnects, disconnects)
	}

	w.Set(offline())
	if disconnects != 1 {
		t.Fatalf("disconnects = %d, want 1", disconnects)
	}

	// Repeated identical state is dropped entirely.
	w.Set(offline())
	if disconnects != 1 {
		t.Fatalf("duplicate state fired hook: %d", disconnects)
	}

	w.Set(online())
	if reconnects != 1 {
		t.Fatalf("reconnects = %d, want 1", reconnects)
	}
}

func TestStartupObservationNeverFiresReconnect(t *testing.T) {
	w := New(zerolog.Nop())
	var reconnects int
	w.OnReconnect(func() { reconnects++ })

	// Coming up already online must not replay anything; only a later genuine
	// offline→online transition is a reconnect.
	w.Set(online())
	if reconnects != 0 {
		t.Fatalf("startup observation fired reconnect %d times", reconnects)
	}
	w.Set(offline())
	w.Set(online())
	if reconnects != 1 {
		t.Fatalf("reconnects = %d, want 1 after genuine flip", reconnects)
	}
}

func TestFirstObservationOfflineDoesNotFire(t *testing.T) {
	w := New(zerolog.Nop())
	var disconnects int
	w.OnDisconnect(func() { disconnects++ })
	// Zero state is already offline: confirming it is not a flip.
	w.Set(offline())
	if disconnects != 0 {
		t.Fatalf("disconnects = %d, want 0", disconnects)
	}
}

func TestSubscribeAndCancel(t *testing.T) {
	w := New(zerolog.Nop())
	var seen []State
	cancel := w.Subscribe(func(s State) { seen = append(seen, s) })

	w.Set(online())
	w.Set(offline())
	if len(seen) != 2 {
		t.Fatalf("notifications = %d, want 2", len(seen))
	}

	cancel()
	w.Set(online())
	if len(seen) != 2 {
		t.Fatalf("listener notified after cancel")
	}
}

func TestStateSnapshot(t *testing.T) {
	w := New(zerolog.Nop())
	if !w.Offline() {
		t.Fatal("initial state must be offline")
	}
	w.Set(online())
	if got := w.State(); got != online() {
		t.Fatalf("State = %+v", got)
	}
	if w.Offline() {
		t.Fatal("watcher offline after online observation")
	}
}
