package http

import (
	"context"
	"errors"
	"io"
	stdhttp "net/http"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/rs/zerolog"

	"github.com/codeclash/codeclash-server/internal/auth"
	"github.com/codeclash/codeclash-server/internal/core"
	"github.com/codeclash/codeclash-server/internal/proto"
	"github.com/codeclash/codeclash-server/internal/store"
	"github.com/codeclash/codeclash-server/internal/utils"
)

// WSHandler upgrades HTTP connections and bridges them to core clients.
// The room id travels in the path, the identity in the token query parameter.
type WSHandler struct {
	hub       *core.Hub
	auth      *auth.Service
	users     store.UserStore // may be nil: ratings default to zero
	rateLimit int
	log       *zerolog.Logger
}

// NewWSHandler builds a new WebSocket handler.
func NewWSHandler(hub *core.Hub, authService *auth.Service, users store.UserStore, rateLimit int, logger *zerolog.Logger) *WSHandler {
	return &WSHandler{
		hub:       hub,
		auth:      authService,
		users:     users,
		rateLimit: rateLimit,
		log:       logger,
	}
}

// Serve handles GET /ws/{room_id}?token=...
func (h *WSHandler) Serve(w stdhttp.ResponseWriter, r *stdhttp.Request, roomID string) {
	ctx := r.Context()

	// Identity is established before admission; without it the connection is
	// refused outright.
	token := r.URL.Query().Get("token")
	claims, err := h.auth.ValidateToken(token)
	if err != nil {
		h.log.Debug().Err(err).Msg("ws connection refused: invalid token")
		stdhttp.Error(w, "invalid token", stdhttp.StatusUnauthorized)
		return
	}

	rating := 0
	if h.users != nil {
		if user, err := h.users.GetUserByID(ctx, claims.UserID); err == nil {
			rating = user.Rating
		}
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: true,
	})
	if err != nil {
		h.log.Error().Err(err).Msg("ws accept error")
		return
	}
	defer conn.Close(websocket.StatusInternalError, "internal error")

	client := core.NewClient(utils.NewConnID(), claims.UserID, claims.DisplayName, rating)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if err := h.hub.Join(client, roomID); err != nil {
		code := wsJoinCode(err)
		var coreErr *core.CoreError
		if errors.As(err, &coreErr) {
			code = coreErr.Code
		}
		_ = wsjson.Write(ctx, conn, proto.Outbound{
			Type:  proto.OutboundTypeError,
			Error: &proto.Error{Code: code, Msg: err.Error()},
		})
		conn.Close(websocket.StatusPolicyViolation, code)
		return
	}

	h.log.Info().
		Str("room_id", roomID).
		Str("user_id", claims.UserID).
		Str("conn_id", client.ConnID).
		Msg("ws connection admitted")

	// A transport drop keeps the participant around for the grace window;
	// an explicit leave inside the read loop removes it first, making this
	// a no-op.
	defer h.hub.Disconnect(client)

	errCh := make(chan error, 2)
	go func() {
		errCh <- h.readLoop(ctx, conn, client)
	}()
	go func() {
		errCh <- h.writeLoop(ctx, conn, client)
	}()

	err = <-errCh
	cancel() // stop the other goroutine
	<-errCh

	status := websocket.StatusNormalClosure
	reason := "closing"
	if err != nil && !errors.Is(err, context.Canceled) {
		if errors.Is(err, io.EOF) {
			err = nil
		}
		if s := websocket.CloseStatus(err); s != 0 {
			status = s
		}
		if status == websocket.StatusNormalClosure || status == websocket.StatusGoingAway {
			err = nil
		}
		if err != nil {
			if status == websocket.StatusNormalClosure {
				status = websocket.StatusInternalError
			}
			reason = err.Error()
			h.log.Warn().Err(err).Str("conn_id", client.ConnID).Msg("ws connection closed with error")
		}
	}

	conn.Close(status, reason)
}

func wsJoinCode(err error) string {
	switch {
	case errors.Is(err, core.ErrRoomNotFound):
		return core.ErrCodeRoomNotFound
	case errors.Is(err, core.ErrRoomFull):
		return core.ErrCodeRoomFull
	case errors.Is(err, core.ErrRoomFinished):
		return core.ErrCodeRoomFinished
	case errors.Is(err, core.ErrDuplicateIdentity):
		return core.ErrCodeDuplicateIdentity
	default:
		return core.ErrCodeBadRequest
	}
}

var errRateLimited = errors.New("rate limit exceeded")

func (h *WSHandler) readLoop(ctx context.Context, conn *websocket.Conn, client *core.Client) error {
	limiter := newRateLimiter(h.rateLimit)
	defer limiter.stop()

	for {
		var inbound proto.Inbound
		if err := wsjson.Read(ctx, conn, &inbound); err != nil {
			return err
		}

		if !limiter.allow() {
			_ = wsjson.Write(ctx, conn, proto.Outbound{
				Type:  proto.OutboundTypeError,
				Error: &proto.Error{Code: core.ErrCodeBadRequest, Msg: "rate limit exceeded"},
			})
			return errRateLimited
		}

		if inbound.Type == proto.InboundTypeLeave {
			h.hub.Leave(client)
			return nil
		}

		cmd, protoErr, err := inboundToCommand(inbound)
		if err != nil {
			return err
		}
		if protoErr != nil {
			if writeErr := wsjson.Write(ctx, conn, proto.Outbound{
				Type:  proto.OutboundTypeError,
				Error: protoErr,
			}); writeErr != nil {
				return writeErr
			}
			// Malformed input terminates only this connection, never the room.
			if protoErr.Code == core.ErrCodeInvalidMessage {
				return errors.New(protoErr.Msg)
			}
			continue
		}
		if cmd != nil {
			if err := h.hub.Dispatch(client, cmd); err != nil {
				return err
			}
		}
	}
}

func (h *WSHandler) writeLoop(ctx context.Context, conn *websocket.Conn, client *core.Client) error {
	for {
		select {
		case event, ok := <-client.Events:
			if !ok {
				return nil
			}
			if err := wsjson.Write(ctx, conn, outboundFromEvent(event)); err != nil {
				h.log.Error().Err(err).Str("conn_id", client.ConnID).Msg("write ws event")
				return err
			}
		case <-client.Done():
			// Superseded by a reconnection on a fresh socket.
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
