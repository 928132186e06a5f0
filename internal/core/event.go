package core

import "encoding/json"

// EventKind is a notification the core emits to clients.
type EventKind int

const (
	// EventRoomState delivers a full snapshot to one client on join/resume.
	EventRoomState EventKind = iota
	// EventPresence broadcasts the full membership list after join/leave.
	EventPresence
	// EventRoleUpdated broadcasts the membership list after a role change.
	EventRoleUpdated
	// EventEditorSync relays a document mutation tagged with its sequence
	// number and sender so receivers can suppress their own echo.
	EventEditorSync
	// EventChat broadcasts a chat message.
	EventChat
	// EventSignal relays an opaque peer-negotiation payload.
	EventSignal
	// EventProgress broadcasts a duel participant's grading state.
	EventProgress
	// EventDuelFinished announces the winner and rating deltas.
	EventDuelFinished
	// EventError notifies a single client about a domain error.
	EventError
)

// ProgressEvent carries one participant's grading state.
type ProgressEvent struct {
	UserID      string
	TestsPassed int
	TotalTests  int
	Verdict     string
}

// EditEvent carries a relayed document mutation.
type EditEvent struct {
	From     string // sender user id
	OwnerID  string // whose document (duel rooms); equals From for own edits
	Content  string
	Language string
	Seq      int64
}

// SignalEvent carries a relayed negotiation payload.
type SignalEvent struct {
	From    string
	Payload json.RawMessage
}

// FinishEvent announces a finished duel.
type FinishEvent struct {
	WinnerID string
	// Deltas maps user id to rating change; zero-sum for duels.
	Deltas map[string]int
}

// Event is sent to clients to describe what happened in their room.
type Event struct {
	Kind     EventKind
	Room     string
	Snapshot *RoomSnapshot
	Members  []MemberInfo
	Edit     *EditEvent
	Progress *ProgressEvent
	Chat     *ChatMessage
	Signal   *SignalEvent
	Finish   *FinishEvent
	Error    *CoreError
}
