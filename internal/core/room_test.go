package core

import (
	"errors"
	"fmt"
	"testing"

	"github.com/codeclash/codeclash-server/internal/problems"
)

func TestPairJoinAssignsRoles(t *testing.T) {
	r := NewRoom("r1", RoomPair, nil, DefaultRoomConfig())

	if _, err := r.Join("u1", "alice", 1200, "c1"); err != nil {
		t.Fatalf("first join: %v", err)
	}
	if _, err := r.Join("u2", "bob", 1200, "c2"); err != nil {
		t.Fatalf("second join: %v", err)
	}

	if got := r.Participant("u1").Role; got != RoleDriver {
		t.Fatalf("first joiner role = %v, want driver", got)
	}
	if got := r.Participant("u2").Role; got != RoleNavigator {
		t.Fatalf("second joiner role = %v, want navigator", got)
	}
	if r.Status != StatusActive {
		t.Fatalf("status = %v, want active", r.Status)
	}
}

func TestPairRoomFull(t *testing.T) {
	r := NewRoom("r1", RoomPair, nil, DefaultRoomConfig())
	_, _ = r.Join("u1", "alice", 1200, "c1")
	_, _ = r.Join("u2", "bob", 1200, "c2")

	if _, err := r.Join("u3", "carol", 1200, "c3"); !errors.Is(err, ErrRoomFull) {
		t.Fatalf("third join err = %v, want ErrRoomFull", err)
	}
}

func TestJoinDuplicateIdentityRejected(t *testing.T) {
	r := NewRoom("r1", RoomPair, nil, DefaultRoomConfig())
	_, _ = r.Join("u1", "alice", 1200, "c1")

	if _, err := r.Join("u1", "alice", 1200, "c2"); !errors.Is(err, ErrDuplicateIdentity) {
		t.Fatalf("duplicate join err = %v, want ErrDuplicateIdentity", err)
	}
}

func TestResumeKeepsRoleAndDoesNotConsumeSlot(t *testing.T) {
	r := NewRoom("r1", RoomPair, nil, DefaultRoomConfig())
	_, _ = r.Join("u1", "alice", 1200, "c1")
	_, _ = r.Join("u2", "bob", 1200, "c2")

	if _, err := r.Disconnect("u2"); err != nil {
		t.Fatalf("disconnect: %v", err)
	}
	if got := r.Participant("u2").Status; got != StatusDisconnected {
		t.Fatalf("status after disconnect = %v", got)
	}

	resumed, err := r.Join("u2", "bob", 1200, "c3")
	if err != nil {
		t.Fatalf("resume: %v", err)
	}
	if !resumed {
		t.Fatal("expected resume, got fresh join")
	}
	if got := r.Participant("u2").Role; got != RoleNavigator {
		t.Fatalf("role after resume = %v, want navigator", got)
	}
	if got := r.Participant("u2").ConnID; got != "c3" {
		t.Fatalf("conn id after resume = %q, want c3", got)
	}
}

func TestDriverDisconnectPromotesRemaining(t *testing.T) {
	r := NewRoom("r1", RoomPair, nil, DefaultRoomConfig())
	_, _ = r.Join("u1", "alice", 1200, "c1")
	_, _ = r.Join("u2", "bob", 1200, "c2")

	roleChanged, err := r.Disconnect("u1")
	if err != nil {
		t.Fatalf("disconnect: %v", err)
	}
	if !roleChanged {
		t.Fatal("expected role change on driver disconnect")
	}
	if got := r.Participant("u2").Role; got != RoleDriver {
		t.Fatalf("remaining role = %v, want driver", got)
	}
	if got := r.Participant("u1").Role; got != RoleUnassigned {
		t.Fatalf("departed role = %v, want unassigned", got)
	}
}

func TestOnlyDriverEdits(t *testing.T) {
	r := NewRoom("r1", RoomPair, nil, DefaultRoomConfig())
	_, _ = r.Join("u1", "alice", 1200, "c1")
	_, _ = r.Join("u2", "bob", 1200, "c2")

	doc, err := r.ApplyEdit("u1", "print('hi')", "")
	if err != nil {
		t.Fatalf("driver edit: %v", err)
	}
	if doc.Seq != 1 || doc.Content != "print('hi')" {
		t.Fatalf("unexpected doc after edit: %+v", doc)
	}

	if _, err := r.ApplyEdit("u2", "sneaky", ""); !errors.Is(err, ErrNotDriver) {
		t.Fatalf("navigator edit err = %v, want ErrNotDriver", err)
	}
	if r.doc.Content != "print('hi')" {
		t.Fatalf("navigator edit mutated doc: %q", r.doc.Content)
	}
}

func TestLanguageSwitchResetsToTemplate(t *testing.T) {
	p := &problems.Problem{
		ID: "two-sum",
		Templates: map[string]string{
			"python": "def two_sum():\n    pass\n",
			"go":     "func twoSum() {}\n",
		},
	}
	r := NewRoom("r1", RoomPair, p, DefaultRoomConfig())
	_, _ = r.Join("u1", "alice", 1200, "c1")

	if _, _ = r.ApplyEdit("u1", "custom work", ""); r.doc.Seq != 1 {
		t.Fatalf("seq after edit = %d", r.doc.Seq)
	}

	doc, err := r.ApplyEdit("u1", "", "go")
	if err != nil {
		t.Fatalf("language switch: %v", err)
	}
	if doc.Language != "go" || doc.Content != "func twoSum() {}\n" {
		t.Fatalf("doc after switch: %+v", doc)
	}
	if doc.Seq != 2 {
		t.Fatalf("seq after switch = %d, want 2", doc.Seq)
	}
}

func TestDuelEditsAreIsolated(t *testing.T) {
	r := NewRoom("r1", RoomDuel, nil, DefaultRoomConfig())
	_, _ = r.Join("u1", "alice", 1200, "c1")
	_, _ = r.Join("u2", "bob", 1200, "c2")

	if r.Status != StatusActive {
		t.Fatalf("duel status after both joined = %v, want active", r.Status)
	}

	if _, err := r.ApplyEdit("u1", "alice code", ""); err != nil {
		t.Fatalf("u1 edit: %v", err)
	}
	if _, err := r.ApplyEdit("u2", "bob code", ""); err != nil {
		t.Fatalf("u2 edit: %v", err)
	}

	snap := r.Snapshot()
	if snap.Docs["u1"].Content != "alice code" || snap.Docs["u2"].Content != "bob code" {
		t.Fatalf("duel docs mixed up: %+v", snap.Docs)
	}
}

func TestRoleSwitchRequiresTwoConnected(t *testing.T) {
	r := NewRoom("r1", RoomPair, nil, DefaultRoomConfig())
	_, _ = r.Join("u1", "alice", 1200, "c1")

	if err := r.RoleSwitch("u1"); !errors.Is(err, ErrInsufficientParticipants) {
		t.Fatalf("solo switch err = %v, want ErrInsufficientParticipants", err)
	}

	_, _ = r.Join("u2", "bob", 1200, "c2")
	if err := r.RoleSwitch("u2"); err != nil {
		t.Fatalf("switch: %v", err)
	}
	if r.Participant("u2").Role != RoleDriver || r.Participant("u1").Role != RoleNavigator {
		t.Fatalf("roles after switch: u1=%v u2=%v", r.Participant("u1").Role, r.Participant("u2").Role)
	}

	// Switching in your own favor again is a no-op success.
	if err := r.RoleSwitch("u2"); err != nil {
		t.Fatalf("repeat switch: %v", err)
	}
	if r.Participant("u2").Role != RoleDriver {
		t.Fatal("repeat switch changed driver")
	}
}

func TestChatLogDropsOldest(t *testing.T) {
	cfg := DefaultRoomConfig()
	cfg.ChatLogCap = 3
	r := NewRoom("r1", RoomPair, nil, cfg)
	_, _ = r.Join("u1", "alice", 1200, "c1")

	for i := 0; i < 5; i++ {
		if _, err := r.AppendChat("u1", fmt.Sprintf("msg %d", i)); err != nil {
			t.Fatalf("append %d: %v", i, err)
		}
	}

	snap := r.Snapshot()
	if len(snap.Chat) != 3 {
		t.Fatalf("chat len = %d, want 3", len(snap.Chat))
	}
	if snap.Chat[0].Text != "msg 2" || snap.Chat[2].Text != "msg 4" {
		t.Fatalf("unexpected chat window: %+v", snap.Chat)
	}
	if snap.Chat[0].Seq != 3 || snap.Chat[2].Seq != 5 {
		t.Fatalf("chat seqs not monotonic: %+v", snap.Chat)
	}
}

func TestFullPassFinishesDuelOnce(t *testing.T) {
	r := NewRoom("r1", RoomDuel, nil, DefaultRoomConfig())
	_, _ = r.Join("u1", "alice", 1400, "c1")
	_, _ = r.Join("u2", "bob", 1600, "c2")

	finished, err := r.RecordProgress("u1", 5, 10, "partial")
	if err != nil || finished {
		t.Fatalf("partial progress finished=%v err=%v", finished, err)
	}

	finished, err = r.RecordProgress("u1", 10, 10, "accepted")
	if err != nil {
		t.Fatalf("winning progress: %v", err)
	}
	if !finished {
		t.Fatal("full pass did not finish room")
	}
	if r.Status != StatusFinished || r.WinnerID != "u1" {
		t.Fatalf("status=%v winner=%q", r.Status, r.WinnerID)
	}
	// 1400 beating 1600: upset win moves more than K/2.
	if r.WinnerDelta != 24 {
		t.Fatalf("winner delta = %d, want 24", r.WinnerDelta)
	}

	// A later full pass is bookkeeping only.
	finished, err = r.RecordProgress("u2", 10, 10, "accepted")
	if err != nil || finished {
		t.Fatalf("late progress finished=%v err=%v", finished, err)
	}
	if r.WinnerID != "u1" {
		t.Fatalf("winner changed to %q", r.WinnerID)
	}

	if _, err := r.ApplyEdit("u1", "more", ""); !errors.Is(err, ErrRoomFinished) {
		t.Fatalf("edit after finish err = %v, want ErrRoomFinished", err)
	}
}

func TestPairRoomRejectsSubmissions(t *testing.T) {
	r := NewRoom("r1", RoomPair, nil, DefaultRoomConfig())
	_, _ = r.Join("u1", "alice", 1200, "c1")
	_, _ = r.Join("u2", "bob", 1200, "c2")

	// A full pass from the navigator must not finish the shared session.
	finished, err := r.RecordProgress("u2", 10, 10, "accepted")
	if !errors.Is(err, ErrSubmissionNotAllowed) {
		t.Fatalf("pair submission err = %v, want ErrSubmissionNotAllowed", err)
	}
	if finished {
		t.Fatal("pair submission reported finished")
	}
	if r.Status != StatusActive || r.WinnerID != "" {
		t.Fatalf("pair room mutated: status=%v winner=%q", r.Status, r.WinnerID)
	}

	// Editing and chat carry on afterwards.
	if _, err := r.ApplyEdit("u1", "still going", ""); err != nil {
		t.Fatalf("edit after rejected submission: %v", err)
	}
	if _, err := r.AppendChat("u2", "phew"); err != nil {
		t.Fatalf("chat after rejected submission: %v", err)
	}
}

func TestRoleSwitchIsPairOnly(t *testing.T) {
	r := NewRoom("r1", RoomDuel, nil, DefaultRoomConfig())
	_, _ = r.Join("u1", "alice", 1200, "c1")
	_, _ = r.Join("u2", "bob", 1200, "c2")

	if err := r.RoleSwitch("u1"); !errors.Is(err, ErrRoleSwitchNotAllowed) {
		t.Fatalf("duel role switch err = %v, want ErrRoleSwitchNotAllowed", err)
	}
	if r.Participant("u1").Role != RoleUnassigned || r.Participant("u2").Role != RoleUnassigned {
		t.Fatal("duel participants acquired pair roles")
	}
}

func TestSnapshotIsDeepCopy(t *testing.T) {
	r := NewRoom("r1", RoomPair, nil, DefaultRoomConfig())
	_, _ = r.Join("u1", "alice", 1200, "c1")
	_, _ = r.AppendChat("u1", "before")

	snap := r.Snapshot()
	snap.Doc.Content = "mutated"
	snap.Chat[0].Text = "mutated"
	snap.Members[0].DisplayName = "mutated"

	if r.doc.Content == "mutated" {
		t.Fatal("snapshot doc aliases room doc")
	}
	if r.chat[0].Text == "mutated" {
		t.Fatal("snapshot chat aliases room chat")
	}
	if r.participants["u1"].DisplayName == "mutated" {
		t.Fatal("snapshot members alias room participants")
	}
}
