// Manual smoke client for pair rooms. Grabs a guest token, connects to a
// room and maps stdin lines to protocol messages:
//
//	/edit <text>   send an editor mutation
//	/lang <name>   switch the editor language
//	/role          request the driver seat
//	/leave         leave the room and exit
//	anything else  chat message
package main

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/codeclash/codeclash-server/internal/client"
	"github.com/codeclash/codeclash-server/internal/proto"
)

func main() {
	if err := run(); err != nil {
		log.Printf("ws_pair: %v", err)
		os.Exit(1)
	}
}

func run() error {
	server := flag.String("server", "http://localhost:8080", "server base URL")
	name := flag.String("name", "cli-guest", "guest display name")
	room := flag.String("room", "", "room id to join, empty creates a new pair room")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	token, userID, err := guestToken(ctx, *server, *name)
	if err != nil {
		return err
	}

	roomID := *room
	if roomID == "" {
		roomID, err = createPairRoom(ctx, *server, token)
		if err != nil {
			return err
		}
		fmt.Printf("created room %s\n", roomID)
	}

	wsBase := strings.Replace(*server, "http", "ws", 1)
	url := fmt.Sprintf("%s/ws/%s?token=%s", wsBase, roomID, token)

	session, err := client.Dial(ctx, url, client.DefaultOptions(), nil)
	if err != nil {
		return err
	}
	defer session.Close()

	fmt.Printf("joined room %s as %s (%s)\n", roomID, *name, userID)

	go printEvents(session, userID)
	go printStates(session)

	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if err := handleLine(ctx, session, line); err != nil {
			log.Printf("send: %v", err)
		}
		if line == "/leave" {
			return nil
		}
	}
	return scanner.Err()
}

func handleLine(ctx context.Context, session *client.Session, line string) error {
	switch {
	case strings.HasPrefix(line, "/edit "):
		return session.Send(ctx, proto.InboundTypeEditorSync,
			proto.EditorSyncData{Content: strings.TrimPrefix(line, "/edit ")})
	case strings.HasPrefix(line, "/lang "):
		return session.Send(ctx, proto.InboundTypeEditorSync,
			proto.EditorSyncData{Language: strings.TrimPrefix(line, "/lang ")})
	case line == "/role":
		return session.Send(ctx, proto.InboundTypeRoleSwitch, struct{}{})
	case line == "/leave":
		return session.Send(ctx, proto.InboundTypeLeave, struct{}{})
	default:
		return session.Send(ctx, proto.InboundTypeChat, proto.ChatData{Text: line})
	}
}

func printEvents(session *client.Session, selfID string) {
	for msg := range session.Events() {
		switch msg.Type {
		case proto.OutboundTypeRoomState:
			var state proto.RoomStateData
			if decode(msg.Data, &state) {
				fmt.Printf("<< room %s [%s] %d member(s)\n", state.RoomID, state.Status, len(state.Members))
				if state.Doc != nil {
					fmt.Printf("<< doc seq=%d lang=%s\n%s\n", state.Doc.Seq, state.Doc.Language, state.Doc.Content)
				}
			}
		case proto.OutboundTypePresence:
			var p proto.PresenceData
			if decode(msg.Data, &p) {
				for _, m := range p.Members {
					fmt.Printf("<< presence %s role=%s status=%s\n", m.DisplayName, m.Role, m.Status)
				}
			}
		case proto.OutboundTypeRoleUpdated:
			var p proto.PresenceData
			if decode(msg.Data, &p) {
				for _, m := range p.Members {
					if m.Role == "driver" {
						fmt.Printf("<< driver is now %s\n", m.DisplayName)
					}
				}
			}
		case proto.OutboundTypeEditorSync:
			var evt proto.EditorSyncEvent
			if decode(msg.Data, &evt) {
				if evt.From == selfID {
					continue // echo, already applied locally
				}
				fmt.Printf("<< edit seq=%d lang=%s\n%s\n", evt.Seq, evt.Language, evt.Content)
			}
		case proto.OutboundTypeChat:
			var entry proto.ChatEntry
			if decode(msg.Data, &entry) {
				fmt.Printf("<< %s: %s\n", entry.DisplayName, entry.Text)
			}
		case proto.OutboundTypeError:
			if msg.Error != nil {
				fmt.Printf("<< error %s: %s\n", msg.Error.Code, msg.Error.Msg)
			}
		default:
			fmt.Printf("<< %s\n", msg.Type)
		}
	}
}

func printStates(session *client.Session) {
	for st := range session.States() {
		fmt.Printf("-- %s\n", st)
	}
}

func decode(data any, dst any) bool {
	raw, err := json.Marshal(data)
	if err != nil {
		return false
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		log.Printf("decode: %v", err)
		return false
	}
	return true
}

func guestToken(ctx context.Context, server, name string) (token, userID string, err error) {
	body, _ := json.Marshal(map[string]string{"display_name": name})
	var resp struct {
		Token  string `json:"token"`
		UserID string `json:"user_id"`
	}
	if err := postJSON(ctx, server+"/api/auth/guest", "", body, &resp); err != nil {
		return "", "", fmt.Errorf("guest auth: %w", err)
	}
	return resp.Token, resp.UserID, nil
}

func createPairRoom(ctx context.Context, server, token string) (string, error) {
	body, _ := json.Marshal(map[string]string{"kind": "pair"})
	var resp struct {
		RoomID string `json:"room_id"`
	}
	if err := postJSON(ctx, server+"/api/rooms", token, body, &resp); err != nil {
		return "", fmt.Errorf("create room: %w", err)
	}
	return resp.RoomID, nil
}

func postJSON(ctx context.Context, url, token string, body []byte, dst any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("unexpected status %s", resp.Status)
	}
	return json.NewDecoder(resp.Body).Decode(dst)
}
