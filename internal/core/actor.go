package core

import (
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// roomMsg is the sum type of everything a room actor processes. One goroutine
// per room consumes these, so all room mutation is serialized without locks.
type roomMsg interface{ isRoomMsg() }

type joinMsg struct {
	Client *Client
	Reply  chan error
}

func (joinMsg) isRoomMsg() {}

// leaveMsg covers both explicit departure and transport drop. Only explicit
// leaves skip the grace window.
type leaveMsg struct {
	Client   *Client
	Explicit bool
}

func (leaveMsg) isRoomMsg() {}

type commandMsg struct {
	Cmd *Command
}

func (commandMsg) isRoomMsg() {}

// sweepMsg fires after the grace window to evict a participant that never
// resumed. Seen guards against evicting someone who reconnected and dropped
// again in the meantime.
type sweepMsg struct {
	UserID string
	Seen   time.Time
}

func (sweepMsg) isRoomMsg() {}

type snapshotMsg struct {
	Reply chan *RoomSnapshot
}

func (snapshotMsg) isRoomMsg() {}

// idleMsg fires once after the idle TTL. Leave and sweep retirement only run
// for rooms that had a participant, so a room nobody ever joined would keep
// its actor forever without this.
type idleMsg struct{}

func (idleMsg) isRoomMsg() {}

// roomActor owns one Room and its live clients.
type roomActor struct {
	hub     *Hub
	room    *Room
	inbox   chan roomMsg
	clients map[string]*Client // user id -> live connection

	done     chan struct{}
	stopOnce sync.Once
	log      zerolog.Logger
}

func newRoomActor(hub *Hub, room *Room, logger zerolog.Logger) *roomActor {
	a := &roomActor{
		hub:     hub,
		room:    room,
		inbox:   make(chan roomMsg, 64),
		clients: make(map[string]*Client),
		done:    make(chan struct{}),
		log:     logger.With().Str("room_id", room.ID).Str("kind", string(room.Kind)).Logger(),
	}
	time.AfterFunc(room.cfg.IdleTTL, func() {
		_ = a.post(idleMsg{})
	})
	go a.loop()
	return a
}

// post delivers a message to the actor unless it has already stopped.
func (a *roomActor) post(m roomMsg) error {
	select {
	case a.inbox <- m:
		return nil
	case <-a.done:
		return ErrRoomNotFound
	}
}

func (a *roomActor) stop() {
	a.stopOnce.Do(func() { close(a.done) })
}

func (a *roomActor) loop() {
	for {
		select {
		case <-a.done:
			return
		case m := <-a.inbox:
			switch msg := m.(type) {
			case joinMsg:
				a.handleJoin(msg)
			case leaveMsg:
				a.handleLeave(msg)
			case commandMsg:
				a.handleCommand(msg.Cmd)
			case sweepMsg:
				a.handleSweep(msg)
			case snapshotMsg:
				msg.Reply <- a.room.Snapshot()
			case idleMsg:
				a.maybeRetire()
			}
		}
	}
}

func (a *roomActor) handleJoin(msg joinMsg) {
	c := msg.Client

	resumed, err := a.room.Join(c.UserID, c.DisplayName, c.Rating, c.ConnID)
	if err != nil {
		msg.Reply <- err
		return
	}

	// A grace-window resume supersedes whatever stale connection is still
	// around for this identity.
	if old, ok := a.clients[c.UserID]; ok && old != c {
		old.Close()
		a.hub.registry.Remove(old.ConnID)
	}
	a.clients[c.UserID] = c
	msg.Reply <- nil

	a.log.Debug().
		Str("user_id", c.UserID).
		Bool("resumed", resumed).
		Msg("participant joined")

	c.send(&Event{Kind: EventRoomState, Room: a.room.ID, Snapshot: a.room.Snapshot()})
	a.broadcast(&Event{Kind: EventPresence, Room: a.room.ID, Members: a.room.Members()})
}

func (a *roomActor) handleLeave(msg leaveMsg) {
	c := msg.Client
	p := a.room.Participant(c.UserID)
	if p == nil {
		return
	}
	// A superseded connection's drop must not evict the participant that
	// resumed on a new connection.
	if !msg.Explicit && p.ConnID != c.ConnID {
		return
	}

	if current, ok := a.clients[c.UserID]; ok && current == c {
		delete(a.clients, c.UserID)
	}

	var roleChanged bool
	if msg.Explicit {
		roleChanged, _ = a.room.Remove(c.UserID)
	} else {
		roleChanged, _ = a.room.Disconnect(c.UserID)
		seen := p.LastSeen
		userID := c.UserID
		time.AfterFunc(a.room.cfg.GraceWindow, func() {
			_ = a.post(sweepMsg{UserID: userID, Seen: seen})
		})
	}

	a.log.Debug().
		Str("user_id", c.UserID).
		Bool("explicit", msg.Explicit).
		Msg("participant left")

	a.broadcast(&Event{Kind: EventPresence, Room: a.room.ID, Members: a.room.Members()})
	if roleChanged {
		a.broadcast(&Event{Kind: EventRoleUpdated, Room: a.room.ID, Members: a.room.Members()})
	}
	a.maybeRetire()
}

func (a *roomActor) handleSweep(msg sweepMsg) {
	p := a.room.Participant(msg.UserID)
	if p == nil || p.Status != StatusDisconnected || !p.LastSeen.Equal(msg.Seen) {
		return
	}
	roleChanged, _ := a.room.Remove(msg.UserID)

	a.log.Debug().Str("user_id", msg.UserID).Msg("grace window expired, participant removed")

	a.broadcast(&Event{Kind: EventPresence, Room: a.room.ID, Members: a.room.Members()})
	if roleChanged {
		a.broadcast(&Event{Kind: EventRoleUpdated, Room: a.room.ID, Members: a.room.Members()})
	}
	a.maybeRetire()
}

// maybeRetire tears the actor down once nobody is left.
func (a *roomActor) maybeRetire() {
	if !a.room.Empty() {
		return
	}
	a.hub.dropActor(a.room.ID, a)
	a.log.Debug().Msg("room retired")
	a.stop()
}

func (a *roomActor) handleCommand(cmd *Command) {
	c := cmd.Sender
	switch cmd.Kind {
	case CommandEdit:
		doc, err := a.room.ApplyEdit(c.UserID, cmd.Content, cmd.Language)
		if err != nil {
			a.sendError(c, err)
			return
		}
		// Tagged with seq and sender so the sender's client can suppress the
		// echo; the server additionally skips the sender on fan-out.
		a.broadcastExcept(c.UserID, &Event{
			Kind: EventEditorSync,
			Room: a.room.ID,
			Edit: &EditEvent{
				From:     c.UserID,
				OwnerID:  c.UserID,
				Content:  doc.Content,
				Language: doc.Language,
				Seq:      doc.Seq,
			},
		})

	case CommandChat:
		chat, err := a.room.AppendChat(c.UserID, cmd.Text)
		if err != nil {
			a.sendError(c, err)
			return
		}
		a.broadcast(&Event{Kind: EventChat, Room: a.room.ID, Chat: &chat})

	case CommandRoleSwitch:
		if err := a.room.RoleSwitch(c.UserID); err != nil {
			a.sendError(c, err)
			return
		}
		a.broadcast(&Event{Kind: EventRoleUpdated, Room: a.room.ID, Members: a.room.Members()})

	case CommandSignal:
		ev := &Event{
			Kind:   EventSignal,
			Room:   a.room.ID,
			Signal: &SignalEvent{From: c.UserID, Payload: cmd.Signal},
		}
		if cmd.To != "" {
			// Best-effort: silent drop when the target is not connected.
			if target, ok := a.clients[cmd.To]; ok {
				target.send(ev)
			}
			return
		}
		a.broadcastExcept(c.UserID, ev)

	case CommandProgress:
		finished, err := a.room.RecordProgress(c.UserID, cmd.TestsPassed, cmd.TotalTests, cmd.Verdict)
		if err != nil {
			a.sendError(c, err)
			return
		}
		a.broadcast(&Event{
			Kind: EventProgress,
			Room: a.room.ID,
			Progress: &ProgressEvent{
				UserID:      c.UserID,
				TestsPassed: cmd.TestsPassed,
				TotalTests:  cmd.TotalTests,
				Verdict:     cmd.Verdict,
			},
		})
		if finished {
			a.finishDuel()
		}

	case CommandHeartbeat:
		a.room.Heartbeat(c.UserID)

	case CommandLeave:
		a.handleLeave(leaveMsg{Client: c, Explicit: true})
	}
}

func (a *roomActor) finishDuel() {
	r := a.room
	deltas := make(map[string]int)
	var loserID string
	if r.Kind == RoomDuel {
		if opp := r.opponentOf(r.WinnerID); opp != nil {
			loserID = opp.UserID
			deltas[r.WinnerID] = r.WinnerDelta
			deltas[loserID] = -r.WinnerDelta
		}
	}

	a.log.Info().
		Str("winner", r.WinnerID).
		Int("delta", r.WinnerDelta).
		Msg("duel finished")

	a.broadcast(&Event{
		Kind:   EventDuelFinished,
		Room:   r.ID,
		Finish: &FinishEvent{WinnerID: r.WinnerID, Deltas: deltas},
	})

	if loserID != "" {
		a.hub.persistDuel(r, loserID)
	}
}

func (a *roomActor) sendError(c *Client, err error) {
	c.send(&Event{
		Kind:  EventError,
		Room:  a.room.ID,
		Error: coreError(errorCode(err), err.Error()),
	})
}

// broadcast delivers an event to every connected participant in application
// order per room.
func (a *roomActor) broadcast(ev *Event) {
	for _, c := range a.clients {
		c.send(ev)
	}
}

func (a *roomActor) broadcastExcept(userID string, ev *Event) {
	for id, c := range a.clients {
		if id == userID {
			continue
		}
		c.send(ev)
	}
}
