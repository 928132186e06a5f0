package core

import "encoding/json"

// CommandKind describes what a client wants the room to do.
type CommandKind int

const (
	// CommandEdit applies an editor mutation.
	CommandEdit CommandKind = iota
	// CommandChat appends a chat message.
	CommandChat
	// CommandRoleSwitch swaps driver/navigator in a pair room.
	CommandRoleSwitch
	// CommandSignal relays an opaque peer-negotiation payload.
	CommandSignal
	// CommandProgress records a grading report for a duel participant.
	CommandProgress
	// CommandHeartbeat refreshes liveness, no state change.
	CommandHeartbeat
	// CommandLeave is an explicit departure, no grace window.
	CommandLeave
)

// Command represents an action requested by a connected client. Sender is the
// connection the command arrived on.
type Command struct {
	Kind   CommandKind
	Sender *Client

	// CommandEdit
	Content  string
	Language string

	// CommandChat
	Text string

	// CommandSignal
	Signal json.RawMessage
	To     string // optional recipient user id, empty = everyone else

	// CommandProgress
	TestsPassed int
	TotalTests  int
	Verdict     string
}
