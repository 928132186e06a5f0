// Package client implements a reconnecting WebSocket session client used by
// the smoke scripts and available to Go consumers of the coordinator.
package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/rs/zerolog"

	"github.com/codeclash/codeclash-server/internal/proto"
)

// State describes where the session currently is in its lifecycle.
type State int

const (
	// StateConnected means the socket is up and events are flowing.
	StateConnected State = iota
	// StateReconnecting means the socket dropped and dial attempts are running.
	StateReconnecting
	// StateDisconnected is terminal: reconnect attempts are exhausted or the
	// session was closed on purpose.
	StateDisconnected
)

func (s State) String() string {
	switch s {
	case StateConnected:
		return "connected"
	case StateReconnecting:
		return "reconnecting"
	case StateDisconnected:
		return "disconnected"
	default:
		return "unknown"
	}
}

// ErrDisconnected is returned by Send once the session is terminally down.
var ErrDisconnected = errors.New("session disconnected")

// Options tune the reconnect behaviour. The zero value is not usable, call
// DefaultOptions and override fields as needed.
type Options struct {
	// InitialBackoff is the delay before the first redial.
	InitialBackoff time.Duration
	// MaxBackoff caps the doubling backoff.
	MaxBackoff time.Duration
	// MaxAttempts bounds consecutive failed redials before giving up.
	MaxAttempts int
}

// DefaultOptions matches the server's reconnect grace window: backoff starts
// at one second, doubles, and caps at ten.
func DefaultOptions() Options {
	return Options{
		InitialBackoff: time.Second,
		MaxBackoff:     10 * time.Second,
		MaxAttempts:    5,
	}
}

// Session is a room connection that survives transient socket drops. The
// token carries the durable user identity, so a successful redial resumes the
// same participant and the server replies with a fresh full room snapshot.
type Session struct {
	url  string
	opts Options
	log  *zerolog.Logger

	events chan *proto.Outbound
	states chan State

	mu    sync.Mutex
	conn  *websocket.Conn
	state State

	cancel context.CancelFunc
	done   chan struct{}
}

// Dial opens the initial connection and starts the supervising read loop.
// url must be the full room endpoint including the token query parameter.
func Dial(ctx context.Context, url string, opts Options, logger *zerolog.Logger) (*Session, error) {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}

	conn, _, err := websocket.Dial(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", url, err)
	}

	runCtx, cancel := context.WithCancel(context.Background())
	s := &Session{
		url:    url,
		opts:   opts,
		log:    logger,
		events: make(chan *proto.Outbound, 64),
		states: make(chan State, 8),
		conn:   conn,
		state:  StateConnected,
		cancel: cancel,
		done:   make(chan struct{}),
	}

	go s.supervise(runCtx)
	return s, nil
}

// Events delivers server messages across reconnects. The channel closes when
// the session reaches StateDisconnected.
func (s *Session) Events() <-chan *proto.Outbound { return s.events }

// States delivers lifecycle transitions. Best effort: slow consumers miss
// intermediate states, never the terminal one.
func (s *Session) States() <-chan State { return s.states }

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Send writes one message on the current socket. During a reconnect window it
// fails fast; callers retry after the next StateConnected notification.
func (s *Session) Send(ctx context.Context, msgType string, data any) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", msgType, err)
	}

	s.mu.Lock()
	conn := s.conn
	state := s.state
	s.mu.Unlock()

	if state == StateDisconnected {
		return ErrDisconnected
	}
	if conn == nil {
		return fmt.Errorf("send %s: reconnect in progress", msgType)
	}
	return wsjson.Write(ctx, conn, proto.Inbound{Type: msgType, Data: payload})
}

// Close tears the session down and marks it terminally disconnected.
func (s *Session) Close() error {
	s.mu.Lock()
	conn := s.conn
	s.mu.Unlock()

	s.cancel()
	if conn != nil {
		_ = conn.Close(websocket.StatusNormalClosure, "bye")
	}
	<-s.done
	return nil
}

func (s *Session) supervise(ctx context.Context) {
	defer close(s.done)
	defer close(s.events)
	defer s.setState(StateDisconnected)

	for {
		s.mu.Lock()
		conn := s.conn
		s.mu.Unlock()

		err := s.readLoop(ctx, conn)
		if ctx.Err() != nil {
			return
		}

		switch websocket.CloseStatus(err) {
		case websocket.StatusNormalClosure, websocket.StatusPolicyViolation:
			// Server closed the session deliberately, do not redial.
			s.log.Info().Err(err).Msg("session closed by server")
			return
		}

		s.log.Warn().Err(err).Msg("connection lost, reconnecting")
		next, ok := s.redial(ctx)
		if !ok {
			return
		}

		s.mu.Lock()
		s.conn = next
		s.mu.Unlock()
		s.setState(StateConnected)
	}
}

func (s *Session) readLoop(ctx context.Context, conn *websocket.Conn) error {
	for {
		var msg proto.Outbound
		if err := wsjson.Read(ctx, conn, &msg); err != nil {
			return err
		}
		select {
		case s.events <- &msg:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// redial retries with doubling backoff until a dial succeeds, attempts run
// out, or the session context is cancelled.
func (s *Session) redial(ctx context.Context) (*websocket.Conn, bool) {
	s.setState(StateReconnecting)

	backoff := s.opts.InitialBackoff
	for attempt := 1; attempt <= s.opts.MaxAttempts; attempt++ {
		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			return nil, false
		}

		conn, _, err := websocket.Dial(ctx, s.url, nil)
		if err == nil {
			s.log.Info().Int("attempt", attempt).Msg("reconnected")
			return conn, true
		}
		s.log.Warn().Err(err).Int("attempt", attempt).Msg("reconnect attempt failed")

		backoff *= 2
		if backoff > s.opts.MaxBackoff {
			backoff = s.opts.MaxBackoff
		}
	}

	s.log.Error().Int("attempts", s.opts.MaxAttempts).Msg("reconnect attempts exhausted")
	return nil, false
}

func (s *Session) setState(st State) {
	s.mu.Lock()
	if s.state == StateDisconnected && st != StateDisconnected {
		s.mu.Unlock()
		return
	}
	s.state = st
	s.mu.Unlock()

	// Drop stale notifications rather than block the supervisor.
	for {
		select {
		case s.states <- st:
			return
		default:
			select {
			case <-s.states:
			default:
				return
			}
		}
	}
}
