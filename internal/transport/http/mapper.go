package http

import (
	"encoding/json"

	"github.com/codeclash/codeclash-server/internal/core"
	"github.com/codeclash/codeclash-server/internal/proto"
)

// inboundToCommand maps a wire message to a core command. A non-nil protoErr
// is reported to the client; the read loop closes the connection for
// invalid_message codes (malformed input, protocol violation) and keeps it
// open for recoverable bad_request ones. Leave is special-cased by the read
// loop before this mapper runs.
func inboundToCommand(inbound proto.Inbound) (*core.Command, *proto.Error, error) {
	switch inbound.Type {
	case proto.InboundTypeEditorSync:
		var edit proto.EditorSyncData
		if err := json.Unmarshal(inbound.Data, &edit); err != nil {
			return nil, malformed(), nil
		}
		return &core.Command{
			Kind:     core.CommandEdit,
			Content:  edit.Content,
			Language: edit.Language,
		}, nil, nil

	case proto.InboundTypeChat:
		var chat proto.ChatData
		if err := json.Unmarshal(inbound.Data, &chat); err != nil {
			return nil, malformed(), nil
		}
		if chat.Text == "" {
			return nil, &proto.Error{Code: core.ErrCodeBadRequest, Msg: "text is required"}, nil
		}
		return &core.Command{Kind: core.CommandChat, Text: chat.Text}, nil, nil

	case proto.InboundTypeRoleSwitch:
		return &core.Command{Kind: core.CommandRoleSwitch}, nil, nil

	case proto.InboundTypeSignal:
		var sig proto.SignalData
		if err := json.Unmarshal(inbound.Data, &sig); err != nil {
			return nil, malformed(), nil
		}
		return &core.Command{
			Kind:   core.CommandSignal,
			Signal: sig.Payload,
			To:     sig.To,
		}, nil, nil

	case proto.InboundTypeHeartbeat:
		return &core.Command{Kind: core.CommandHeartbeat}, nil, nil

	case proto.InboundTypeSubmission:
		var sub proto.SubmissionData
		if err := json.Unmarshal(inbound.Data, &sub); err != nil {
			return nil, malformed(), nil
		}
		if sub.TotalTests < 0 || sub.TestsPassed < 0 || sub.TestsPassed > sub.TotalTests {
			return nil, malformed(), nil
		}
		return &core.Command{
			Kind:        core.CommandProgress,
			TestsPassed: sub.TestsPassed,
			TotalTests:  sub.TotalTests,
			Verdict:     sub.Verdict,
		}, nil, nil

	default:
		return nil, &proto.Error{Code: core.ErrCodeInvalidMessage, Msg: "unknown message type"}, nil
	}
}

func malformed() *proto.Error {
	return &proto.Error{Code: core.ErrCodeInvalidMessage, Msg: "malformed message data"}
}

// outboundFromEvent maps a core event to its wire representation.
func outboundFromEvent(event *core.Event) proto.Outbound {
	switch event.Kind {
	case core.EventRoomState:
		return proto.Outbound{
			Type: proto.OutboundTypeRoomState,
			Data: snapshotToWire(event.Snapshot),
		}

	case core.EventPresence:
		return proto.Outbound{
			Type: proto.OutboundTypePresence,
			Data: proto.PresenceData{RoomID: event.Room, Members: membersToWire(event.Members)},
		}

	case core.EventRoleUpdated:
		return proto.Outbound{
			Type: proto.OutboundTypeRoleUpdated,
			Data: proto.PresenceData{RoomID: event.Room, Members: membersToWire(event.Members)},
		}

	case core.EventEditorSync:
		return proto.Outbound{
			Type: proto.OutboundTypeEditorSync,
			Data: proto.EditorSyncEvent{
				From:     event.Edit.From,
				OwnerID:  event.Edit.OwnerID,
				Content:  event.Edit.Content,
				Language: event.Edit.Language,
				Seq:      event.Edit.Seq,
			},
		}

	case core.EventChat:
		return proto.Outbound{
			Type: proto.OutboundTypeChat,
			Data: proto.ChatEntry{
				Seq:         event.Chat.Seq,
				UserID:      event.Chat.UserID,
				DisplayName: event.Chat.DisplayName,
				Text:        event.Chat.Text,
				TS:          event.Chat.SentAt.Unix(),
			},
		}

	case core.EventSignal:
		return proto.Outbound{
			Type: proto.OutboundTypeSignal,
			Data: proto.SignalEvent{From: event.Signal.From, Payload: event.Signal.Payload},
		}

	case core.EventProgress:
		return proto.Outbound{
			Type: proto.OutboundTypeBattleUpdate,
			Data: proto.Progress{
				UserID:      event.Progress.UserID,
				TestsPassed: event.Progress.TestsPassed,
				TotalTests:  event.Progress.TotalTests,
				Verdict:     event.Progress.Verdict,
			},
		}

	case core.EventDuelFinished:
		return proto.Outbound{
			Type: proto.OutboundTypeDuelFinished,
			Data: proto.DuelFinishedData{WinnerID: event.Finish.WinnerID, Deltas: event.Finish.Deltas},
		}

	case core.EventError:
		if event.Error == nil {
			return proto.Outbound{Type: proto.OutboundTypeError, Error: &proto.Error{Code: "unknown", Msg: "unknown error"}}
		}
		return proto.Outbound{
			Type:  proto.OutboundTypeError,
			Error: &proto.Error{Code: event.Error.Code, Msg: event.Error.Message},
		}

	default:
		return proto.Outbound{Type: proto.OutboundTypeError, Error: &proto.Error{Code: "unknown", Msg: "unhandled event"}}
	}
}

func membersToWire(members []core.MemberInfo) []proto.Member {
	out := make([]proto.Member, 0, len(members))
	for _, m := range members {
		out = append(out, proto.Member{
			UserID:      m.UserID,
			DisplayName: m.DisplayName,
			Role:        string(m.Role),
			Status:      string(m.Status),
			Rating:      m.Rating,
		})
	}
	return out
}

func snapshotToWire(snap *core.RoomSnapshot) proto.RoomStateData {
	data := proto.RoomStateData{
		RoomID:      snap.RoomID,
		Kind:        string(snap.Kind),
		Status:      string(snap.Status),
		ProblemID:   snap.ProblemID,
		Members:     membersToWire(snap.Members),
		WinnerID:    snap.WinnerID,
		WinnerDelta: snap.WinnerDelta,
	}
	if !snap.StartedAt.IsZero() {
		data.StartedAt = snap.StartedAt.Unix()
	}
	if snap.Doc != nil {
		data.Doc = &proto.Document{
			Content:  snap.Doc.Content,
			Language: snap.Doc.Language,
			Seq:      snap.Doc.Seq,
		}
	}
	if len(snap.Docs) > 0 {
		data.Docs = make(map[string]proto.Document, len(snap.Docs))
		for id, d := range snap.Docs {
			data.Docs[id] = proto.Document{Content: d.Content, Language: d.Language, Seq: d.Seq}
		}
	}
	for id, p := range snap.Progress {
		data.Progress = append(data.Progress, proto.Progress{
			UserID:      id,
			TestsPassed: p.TestsPassed,
			TotalTests:  p.TotalTests,
			Verdict:     p.Verdict,
		})
	}
	for _, msg := range snap.Chat {
		data.Chat = append(data.Chat, proto.ChatEntry{
			Seq:         msg.Seq,
			UserID:      msg.UserID,
			DisplayName: msg.DisplayName,
			Text:        msg.Text,
			TS:          msg.SentAt.Unix(),
		})
	}
	return data
}
