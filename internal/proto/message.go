package proto

import "encoding/json"

// Inbound is the envelope for messages coming from the client. Join is
// implicit: identity and room travel in the connection URI and token.
type Inbound struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

const (
	ProtocolVersion = 1

	InboundTypeEditorSync = "editor_sync"
	InboundTypeChat       = "chat_message"
	InboundTypeRoleSwitch = "request_role_switch"
	InboundTypeSignal     = "webrtc_signal"
	InboundTypeHeartbeat  = "heartbeat"
	InboundTypeSubmission = "submission_result"
	InboundTypeLeave      = "leave"

	OutboundTypeRoomState    = "room_state"
	OutboundTypePresence     = "presence_update"
	OutboundTypeRoleUpdated  = "role_updated"
	OutboundTypeEditorSync   = "editor_sync"
	OutboundTypeChat         = "chat_message"
	OutboundTypeSignal       = "webrtc_signal"
	OutboundTypeBattleUpdate = "battle_update"
	OutboundTypeDuelFinished = "duel_finished"
	OutboundTypeError        = "error"
)

// EditorSyncData is a document mutation from the client.
type EditorSyncData struct {
	Content  string `json:"content"`
	Language string `json:"language,omitempty"`
}

// ChatData is a chat message from the client.
type ChatData struct {
	Text string `json:"text"`
}

// SignalData is an opaque peer-negotiation payload. The server never
// interprets Payload.
type SignalData struct {
	To      string          `json:"to,omitempty"`
	Payload json.RawMessage `json:"payload"`
}

// SubmissionData is a grading report from the client's submission flow.
type SubmissionData struct {
	TestsPassed int    `json:"tests_passed"`
	TotalTests  int    `json:"total_tests"`
	Verdict     string `json:"verdict"`
}

// Outbound is the envelope for messages sent to the client.
type Outbound struct {
	Type  string `json:"type"`
	Data  any    `json:"data,omitempty"`
	Error *Error `json:"error,omitempty"`
}

// Member is one participant in presence and snapshot payloads.
type Member struct {
	UserID      string `json:"user_id"`
	DisplayName string `json:"display_name"`
	Role        string `json:"role,omitempty"`
	Status      string `json:"status"`
	Rating      int    `json:"rating,omitempty"`
}

// Document is an editor buffer in snapshot payloads.
type Document struct {
	Content  string `json:"content"`
	Language string `json:"language"`
	Seq      int64  `json:"seq"`
}

// Progress is one participant's grading state.
type Progress struct {
	UserID      string `json:"user_id"`
	TestsPassed int    `json:"tests_passed"`
	TotalTests  int    `json:"total_tests"`
	Verdict     string `json:"verdict,omitempty"`
}

// ChatEntry is one chat log message.
type ChatEntry struct {
	Seq         int64  `json:"seq"`
	UserID      string `json:"user_id"`
	DisplayName string `json:"display_name"`
	Text        string `json:"text"`
	TS          int64  `json:"ts"`
}

// RoomStateData is the full snapshot sent on join and resume.
type RoomStateData struct {
	RoomID      string              `json:"room_id"`
	Kind        string              `json:"kind"`
	Status      string              `json:"status"`
	ProblemID   string              `json:"problem_id,omitempty"`
	Doc         *Document           `json:"doc,omitempty"`
	Docs        map[string]Document `json:"docs,omitempty"`
	Progress    []Progress          `json:"progress,omitempty"`
	Members     []Member            `json:"members"`
	Chat        []ChatEntry         `json:"chat,omitempty"`
	WinnerID    string              `json:"winner_id,omitempty"`
	WinnerDelta int                 `json:"winner_delta,omitempty"`
	StartedAt   int64               `json:"started_at,omitempty"`
}

// PresenceData is the full membership list, resent whole on every change.
type PresenceData struct {
	RoomID  string   `json:"room_id"`
	Members []Member `json:"members"`
}

// EditorSyncEvent is a relayed document mutation tagged with its sequence
// number and sender for echo suppression.
type EditorSyncEvent struct {
	From     string `json:"from"`
	OwnerID  string `json:"owner_id,omitempty"`
	Content  string `json:"content"`
	Language string `json:"language"`
	Seq      int64  `json:"seq"`
}

// SignalEvent is a relayed negotiation payload.
type SignalEvent struct {
	From    string          `json:"from"`
	Payload json.RawMessage `json:"payload"`
}

// DuelFinishedData announces the winner and zero-sum rating deltas.
type DuelFinishedData struct {
	WinnerID string         `json:"winner_id"`
	Deltas   map[string]int `json:"deltas,omitempty"`
}

// Error describes a protocol-level error response.
type Error struct {
	Code string `json:"code"`
	Msg  string `json:"msg"`
}
