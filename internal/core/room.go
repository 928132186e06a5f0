package core

import (
	"time"

	"github.com/codeclash/codeclash-server/internal/problems"
)

// RoomKind selects the collaboration mode of a room.
type RoomKind string

const (
	// RoomPair is a pair-programming room with one shared document and
	// driver/navigator roles.
	RoomPair RoomKind = "pair"
	// RoomDuel is a head-to-head race on the same problem, two slots.
	RoomDuel RoomKind = "duel"
	// RoomContest is like a duel but without the two-slot cap.
	RoomContest RoomKind = "contest"
)

// RoomStatus is the room lifecycle. Transitions are monotonic:
// waiting -> active -> finished.
type RoomStatus string

const (
	StatusWaiting  RoomStatus = "waiting"
	StatusActive   RoomStatus = "active"
	StatusFinished RoomStatus = "finished"
)

// Role is a pair-programming role. Only the driver may edit the shared
// document.
type Role string

const (
	RoleDriver     Role = "driver"
	RoleNavigator  Role = "navigator"
	RoleUnassigned Role = "unassigned"
)

// ConnStatus tracks whether a participant currently has a live connection.
type ConnStatus string

const (
	StatusConnected    ConnStatus = "connected"
	StatusDisconnected ConnStatus = "disconnected"
)

// DefaultLanguage is the editor language a fresh room starts with.
const DefaultLanguage = "python"

// Document is an editor buffer with a monotonic edit sequence number used for
// echo suppression.
type Document struct {
	Content  string
	Language string
	Seq      int64
}

// Progress is a duel participant's grading state.
type Progress struct {
	TestsPassed int
	TotalTests  int
	Verdict     string
	UpdatedAt   time.Time
}

// Participant is a room member keyed by durable user id. ConnID changes on
// every reconnect; UserID does not.
type Participant struct {
	UserID      string
	DisplayName string
	Rating      int
	Role        Role
	Status      ConnStatus
	LastSeen    time.Time
	ConnID      string
}

// ChatMessage is one immutable chat log entry with a room-scoped sequence
// number.
type ChatMessage struct {
	Seq         int64
	UserID      string
	DisplayName string
	Text        string
	SentAt      time.Time
}

// MemberInfo is the presence view of a participant.
type MemberInfo struct {
	UserID      string
	DisplayName string
	Role        Role
	Status      ConnStatus
	Rating      int
}

// RoomConfig tunes room behavior.
type RoomConfig struct {
	PairCapacity int
	ChatLogCap   int
	GraceWindow  time.Duration

	// IdleTTL is how long a freshly created room may sit with no
	// participant at all before its actor is reclaimed. Matchmaking can
	// create duel rooms that neither player ever connects to.
	IdleTTL time.Duration
}

// DefaultRoomConfig returns safe defaults for tests and lazy room creation.
func DefaultRoomConfig() RoomConfig {
	return RoomConfig{
		PairCapacity: 2,
		ChatLogCap:   200,
		GraceWindow:  30 * time.Second,
		IdleTTL:      2 * time.Minute,
	}
}

// Room is the authoritative state of one session. It is not safe for
// concurrent use: all access goes through the owning room actor.
type Room struct {
	ID         string
	Kind       RoomKind
	Status     RoomStatus
	Problem    *problems.Problem
	CreatedAt  time.Time
	StartedAt  time.Time
	FinishedAt time.Time

	WinnerID    string
	WinnerDelta int

	cfg RoomConfig

	// pair state
	doc Document

	// duel/contest state, keyed by user id
	docs     map[string]*Document
	progress map[string]*Progress

	participants map[string]*Participant
	order        []string // join order, for stable member lists

	chat    []ChatMessage
	chatSeq int64
}

// NewRoom constructs a room in the waiting state.
func NewRoom(id string, kind RoomKind, problem *problems.Problem, cfg RoomConfig) *Room {
	if cfg.PairCapacity < 2 {
		cfg.PairCapacity = 2
	}
	r := &Room{
		ID:           id,
		Kind:         kind,
		Status:       StatusWaiting,
		Problem:      problem,
		CreatedAt:    time.Now(),
		cfg:          cfg,
		docs:         make(map[string]*Document),
		progress:     make(map[string]*Progress),
		participants: make(map[string]*Participant),
	}
	if kind == RoomPair {
		r.doc = Document{
			Content:  problems.TemplateFor(problem, DefaultLanguage),
			Language: DefaultLanguage,
		}
	}
	return r
}

func (r *Room) capacity() int {
	switch r.Kind {
	case RoomPair:
		return r.cfg.PairCapacity
	case RoomDuel:
		return 2
	default:
		return 0 // contest: unbounded
	}
}

// Join admits a participant or resumes a disconnected one. It returns whether
// this was a resume. A second live connection for the same identity is
// rejected with ErrDuplicateIdentity; the caller decides whether to supersede.
func (r *Room) Join(userID, displayName string, rating int, connID string) (resumed bool, err error) {
	if r.Status == StatusFinished {
		return false, ErrRoomFinished
	}

	if p, ok := r.participants[userID]; ok {
		if p.Status == StatusConnected {
			return false, ErrDuplicateIdentity
		}
		// Reconnect within the grace window: same participant, new connection.
		p.Status = StatusConnected
		p.ConnID = connID
		p.DisplayName = displayName
		p.LastSeen = time.Now()
		return true, nil
	}

	if cap := r.capacity(); cap > 0 && len(r.participants) >= cap {
		return false, ErrRoomFull
	}

	p := &Participant{
		UserID:      userID,
		DisplayName: displayName,
		Rating:      rating,
		Role:        RoleUnassigned,
		Status:      StatusConnected,
		LastSeen:    time.Now(),
		ConnID:      connID,
	}
	if r.Kind == RoomPair {
		p.Role = RoleNavigator
		if len(r.participants) == 0 {
			p.Role = RoleDriver
		}
	}
	r.participants[userID] = p
	r.order = append(r.order, userID)

	if r.Kind == RoomPair && r.Status == StatusWaiting {
		r.Status = StatusActive
		r.StartedAt = time.Now()
	}
	if (r.Kind == RoomDuel || r.Kind == RoomContest) && r.Status == StatusWaiting && len(r.participants) >= 2 {
		// Both slots filled: the race is on. StartedAt feeds elapsed-time
		// scoring downstream.
		r.Status = StatusActive
		r.StartedAt = time.Now()
	}
	return false, nil
}

// Disconnect marks a participant as disconnected but keeps the record for the
// grace window. A disconnecting driver gives up the role; if exactly one other
// connected participant remains, the role moves to them instead of sitting
// unassigned.
func (r *Room) Disconnect(userID string) (roleChanged bool, err error) {
	p, ok := r.participants[userID]
	if !ok {
		return false, ErrNotInRoom
	}
	p.Status = StatusDisconnected
	p.LastSeen = time.Now()
	return r.reassignDriver(p), nil
}

// Remove permanently deletes a participant, after the grace window expires or
// on explicit leave.
func (r *Room) Remove(userID string) (roleChanged bool, err error) {
	p, ok := r.participants[userID]
	if !ok {
		return false, ErrNotInRoom
	}
	p.Status = StatusDisconnected
	roleChanged = r.reassignDriver(p)
	delete(r.participants, userID)
	delete(r.docs, userID)
	for i, id := range r.order {
		if id == userID {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	return roleChanged, nil
}

func (r *Room) reassignDriver(departed *Participant) bool {
	if r.Kind != RoomPair || departed.Role != RoleDriver {
		return false
	}
	departed.Role = RoleUnassigned

	var remaining *Participant
	for _, p := range r.participants {
		if p.UserID == departed.UserID || p.Status != StatusConnected {
			continue
		}
		if remaining != nil {
			// More than one candidate: leave the role unassigned until
			// someone claims it via a role switch.
			return true
		}
		remaining = p
	}
	if remaining != nil {
		remaining.Role = RoleDriver
	}
	return true
}

// ApplyEdit handles an editor mutation. Pair rooms enforce single-writer
// driver semantics on the shared document; duel rooms write the sender's own
// document. A language change resets the buffer to that language's template.
// Returns the resulting document with its bumped sequence number.
func (r *Room) ApplyEdit(userID, content, language string) (*Document, error) {
	if r.Status == StatusFinished {
		return nil, ErrRoomFinished
	}
	p, ok := r.participants[userID]
	if !ok {
		return nil, ErrNotInRoom
	}

	if r.Kind == RoomPair {
		if p.Role != RoleDriver {
			return nil, ErrNotDriver
		}
		if language != "" && language != r.doc.Language {
			r.doc.Language = language
			r.doc.Content = problems.TemplateFor(r.Problem, language)
		} else {
			r.doc.Content = content
		}
		r.doc.Seq++
		doc := r.doc
		return &doc, nil
	}

	d, ok := r.docs[userID]
	if !ok {
		d = &Document{Language: DefaultLanguage}
		r.docs[userID] = d
	}
	if language != "" && language != d.Language {
		d.Language = language
		d.Content = problems.TemplateFor(r.Problem, language)
	} else {
		d.Content = content
	}
	d.Seq++
	doc := *d
	return &doc, nil
}

// RoleSwitch makes the requester the driver and the other connected
// participant the navigator. Pair rooms only, and only with exactly two
// connected participants so the swap is unambiguous.
func (r *Room) RoleSwitch(userID string) error {
	if r.Kind != RoomPair {
		return ErrRoleSwitchNotAllowed
	}
	if r.Status == StatusFinished {
		return ErrRoomFinished
	}
	p, ok := r.participants[userID]
	if !ok || p.Status != StatusConnected {
		return ErrNotInRoom
	}

	var other *Participant
	connected := 0
	for _, cand := range r.participants {
		if cand.Status != StatusConnected {
			continue
		}
		connected++
		if cand.UserID != userID {
			other = cand
		}
	}
	if connected != 2 {
		return ErrInsufficientParticipants
	}

	p.Role = RoleDriver
	other.Role = RoleNavigator
	return nil
}

// AppendChat appends a chat message, dropping the oldest entries beyond the
// configured cap.
func (r *Room) AppendChat(userID, text string) (ChatMessage, error) {
	if r.Status == StatusFinished {
		return ChatMessage{}, ErrRoomFinished
	}
	p, ok := r.participants[userID]
	if !ok {
		return ChatMessage{}, ErrNotInRoom
	}

	r.chatSeq++
	msg := ChatMessage{
		Seq:         r.chatSeq,
		UserID:      userID,
		DisplayName: p.DisplayName,
		Text:        text,
		SentAt:      time.Now(),
	}
	r.chat = append(r.chat, msg)
	if cap := r.cfg.ChatLogCap; cap > 0 && len(r.chat) > cap {
		r.chat = r.chat[len(r.chat)-cap:]
	}
	return msg, nil
}

// RecordProgress updates a duel/contest participant's grading state. A full
// pass finishes the room exactly once; the first finisher is the winner and
// later reports are kept for bookkeeping without touching the outcome.
// Returns true when this call finished the room. Pair rooms have no grading,
// so a submission there is rejected instead of finishing the session under
// both participants.
func (r *Room) RecordProgress(userID string, testsPassed, totalTests int, verdict string) (bool, error) {
	if r.Kind == RoomPair {
		return false, ErrSubmissionNotAllowed
	}
	p, ok := r.participants[userID]
	if !ok {
		return false, ErrNotInRoom
	}

	r.progress[userID] = &Progress{
		TestsPassed: testsPassed,
		TotalTests:  totalTests,
		Verdict:     verdict,
		UpdatedAt:   time.Now(),
	}

	if r.Status == StatusFinished {
		return false, nil
	}
	if totalTests <= 0 || testsPassed < totalTests {
		return false, nil
	}

	r.Status = StatusFinished
	r.FinishedAt = time.Now()
	r.WinnerID = userID

	if r.Kind == RoomDuel {
		if opp := r.opponentOf(userID); opp != nil {
			r.WinnerDelta = RatingDelta(p.Rating, opp.Rating)
		}
	}
	return true, nil
}

func (r *Room) opponentOf(userID string) *Participant {
	for _, p := range r.participants {
		if p.UserID != userID {
			return p
		}
	}
	return nil
}

// Heartbeat refreshes a participant's last-seen timestamp. Liveness only, no
// state change beyond the timestamp.
func (r *Room) Heartbeat(userID string) {
	if p, ok := r.participants[userID]; ok {
		p.LastSeen = time.Now()
	}
}

// Participant returns the participant record for a user, or nil.
func (r *Room) Participant(userID string) *Participant {
	return r.participants[userID]
}

// Members returns presence info for all participants in join order.
func (r *Room) Members() []MemberInfo {
	members := make([]MemberInfo, 0, len(r.order))
	for _, id := range r.order {
		p := r.participants[id]
		members = append(members, MemberInfo{
			UserID:      p.UserID,
			DisplayName: p.DisplayName,
			Role:        p.Role,
			Status:      p.Status,
			Rating:      p.Rating,
		})
	}
	return members
}

// ConnectedCount returns the number of participants with a live connection.
func (r *Room) ConnectedCount() int {
	n := 0
	for _, p := range r.participants {
		if p.Status == StatusConnected {
			n++
		}
	}
	return n
}

// Empty reports whether no participants remain at all.
func (r *Room) Empty() bool {
	return len(r.participants) == 0
}

// RoomSnapshot is a deep copy of room state for room_state replies. Stale
// in-flight deltas during an outage are superseded by it on resume.
type RoomSnapshot struct {
	RoomID      string
	Kind        RoomKind
	Status      RoomStatus
	ProblemID   string
	CreatedAt   time.Time
	StartedAt   time.Time
	Doc         *Document
	Docs        map[string]Document
	Progress    map[string]Progress
	Members     []MemberInfo
	Chat        []ChatMessage
	WinnerID    string
	WinnerDelta int
}

// Snapshot captures the full current state of the room.
func (r *Room) Snapshot() *RoomSnapshot {
	snap := &RoomSnapshot{
		RoomID:      r.ID,
		Kind:        r.Kind,
		Status:      r.Status,
		CreatedAt:   r.CreatedAt,
		StartedAt:   r.StartedAt,
		Members:     r.Members(),
		Chat:        append([]ChatMessage(nil), r.chat...),
		WinnerID:    r.WinnerID,
		WinnerDelta: r.WinnerDelta,
	}
	if r.Problem != nil {
		snap.ProblemID = r.Problem.ID
	}
	if r.Kind == RoomPair {
		doc := r.doc
		snap.Doc = &doc
	} else {
		snap.Docs = make(map[string]Document, len(r.docs))
		for id, d := range r.docs {
			snap.Docs[id] = *d
		}
		snap.Progress = make(map[string]Progress, len(r.progress))
		for id, p := range r.progress {
			snap.Progress[id] = *p
		}
	}
	return snap
}
