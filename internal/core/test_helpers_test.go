package core

import (
	"testing"
	"time"
)

func mustEvent(t *testing.T, ch <-chan *Event, kind EventKind) *Event {
	t.Helper()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		select {
		case ev := <-ch:
			if ev == nil {
				continue
			}
			if ev.Kind == kind {
				return ev
			}
		default:
			time.Sleep(10 * time.Millisecond)
		}
	}
	t.Fatalf("expected event kind %v not received", kind)
	return nil
}

// mustPresenceWhere waits for a presence event whose member list satisfies
// cond, skipping earlier broadcasts.
func mustPresenceWhere(t *testing.T, ch <-chan *Event, cond func([]MemberInfo) bool) *Event {
	t.Helper()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		select {
		case ev := <-ch:
			if ev != nil && ev.Kind == EventPresence && cond(ev.Members) {
				return ev
			}
		default:
			time.Sleep(10 * time.Millisecond)
		}
	}
	t.Fatal("expected presence event not received")
	return nil
}

// assertNoEcho drains the channel and fails on an editor sync authored by the
// given user. Call it only after fan-out for that edit is known to be done,
// e.g. once a peer observed it.
func assertNoEcho(t *testing.T, ch <-chan *Event, userID string) {
	t.Helper()
	for {
		select {
		case ev := <-ch:
			if ev != nil && ev.Kind == EventEditorSync && ev.Edit.From == userID {
				t.Fatalf("user %s received its own edit back (seq %d)", userID, ev.Edit.Seq)
			}
		default:
			return
		}
	}
}

func testRoomConfig() RoomConfig {
	cfg := DefaultRoomConfig()
	cfg.GraceWindow = 100 * time.Millisecond
	return cfg
}

func driverOf(members []MemberInfo) string {
	for _, m := range members {
		if m.Role == RoleDriver {
			return m.UserID
		}
	}
	return ""
}
