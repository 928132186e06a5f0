package http

import (
	"encoding/json"
	"testing"

	"github.com/codeclash/codeclash-server/internal/core"
	"github.com/codeclash/codeclash-server/internal/proto"
)

func TestInboundToCommandClassification(t *testing.T) {
	tests := []struct {
		name     string
		inbound  proto.Inbound
		wantKind core.CommandKind
		wantCode string // expected protoErr code, empty for success
	}{
		{
			name:     "valid edit",
			inbound:  proto.Inbound{Type: "editor_sync", Data: json.RawMessage(`{"content":"x"}`)},
			wantKind: core.CommandEdit,
		},
		{
			name:     "valid signal",
			inbound:  proto.Inbound{Type: "webrtc_signal", Data: json.RawMessage(`{"to":"u2","payload":{"sdp":"offer"}}`)},
			wantKind: core.CommandSignal,
		},
		{
			name:     "valid submission",
			inbound:  proto.Inbound{Type: "submission_result", Data: json.RawMessage(`{"tests_passed":3,"total_tests":10}`)},
			wantKind: core.CommandProgress,
		},
		{
			name:     "empty chat is recoverable",
			inbound:  proto.Inbound{Type: "chat_message", Data: json.RawMessage(`{"text":""}`)},
			wantCode: core.ErrCodeBadRequest,
		},
		{
			name:     "malformed payload is a protocol violation",
			inbound:  proto.Inbound{Type: "editor_sync", Data: json.RawMessage(`not json`)},
			wantCode: core.ErrCodeInvalidMessage,
		},
		{
			name:     "impossible test counts are a protocol violation",
			inbound:  proto.Inbound{Type: "submission_result", Data: json.RawMessage(`{"tests_passed":11,"total_tests":10}`)},
			wantCode: core.ErrCodeInvalidMessage,
		},
		{
			name:     "unknown type is a protocol violation",
			inbound:  proto.Inbound{Type: "bogus", Data: json.RawMessage(`{}`)},
			wantCode: core.ErrCodeInvalidMessage,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd, protoErr, err := inboundToCommand(tt.inbound)
			if err != nil {
				t.Fatalf("unexpected transport error: %v", err)
			}
			if tt.wantCode != "" {
				if protoErr == nil || protoErr.Code != tt.wantCode {
					t.Fatalf("protoErr = %+v, want code %q", protoErr, tt.wantCode)
				}
				return
			}
			if protoErr != nil {
				t.Fatalf("unexpected protoErr: %+v", protoErr)
			}
			if cmd == nil || cmd.Kind != tt.wantKind {
				t.Fatalf("cmd = %+v, want kind %v", cmd, tt.wantKind)
			}
		})
	}
}
