package http

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"testing"

	"github.com/rs/zerolog"
)

func testLogger() *zerolog.Logger {
	nop := zerolog.Nop()
	return &nop
}

func doJSON(t *testing.T, client *http.Client, method, url, token string, body any, dst any) int {
	t.Helper()

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequest(method, url, reader)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, url, err)
	}
	defer resp.Body.Close()

	if dst != nil {
		_ = json.NewDecoder(resp.Body).Decode(dst)
	}
	return resp.StatusCode
}

func TestAuthEndpoints(t *testing.T) {
	env := startTestServer(t)
	client := env.ts.Client()

	var registered TokenResponse
	status := doJSON(t, client, http.MethodPost, env.ts.URL+"/api/auth/register", "",
		map[string]string{"display_name": "alice", "password": "password123"}, &registered)
	if status != http.StatusCreated {
		t.Fatalf("register status = %d", status)
	}
	if registered.Token == "" || registered.UserID == "" || registered.Rating != 1200 {
		t.Fatalf("unexpected register response: %+v", registered)
	}

	status = doJSON(t, client, http.MethodPost, env.ts.URL+"/api/auth/register", "",
		map[string]string{"display_name": "alice", "password": "password456"}, nil)
	if status != http.StatusConflict {
		t.Fatalf("duplicate register status = %d, want 409", status)
	}

	var loggedIn TokenResponse
	status = doJSON(t, client, http.MethodPost, env.ts.URL+"/api/auth/login", "",
		map[string]string{"display_name": "alice", "password": "password123"}, &loggedIn)
	if status != http.StatusOK {
		t.Fatalf("login status = %d", status)
	}
	if loggedIn.UserID != registered.UserID {
		t.Fatal("login returned a different identity")
	}

	status = doJSON(t, client, http.MethodPost, env.ts.URL+"/api/auth/login", "",
		map[string]string{"display_name": "alice", "password": "wrong password"}, nil)
	if status != http.StatusUnauthorized {
		t.Fatalf("bad login status = %d, want 401", status)
	}

	var guest TokenResponse
	status = doJSON(t, client, http.MethodPost, env.ts.URL+"/api/auth/guest", "",
		map[string]string{}, &guest)
	if status != http.StatusCreated {
		t.Fatalf("guest status = %d", status)
	}
	if guest.Token == "" || guest.DisplayName == "" {
		t.Fatalf("unexpected guest response: %+v", guest)
	}
}

func TestRoomEndpointsRequireAuth(t *testing.T) {
	env := startTestServer(t)
	client := env.ts.Client()

	status := doJSON(t, client, http.MethodPost, env.ts.URL+"/api/rooms", "",
		map[string]string{"kind": "pair"}, nil)
	if status != http.StatusUnauthorized {
		t.Fatalf("unauthenticated create status = %d, want 401", status)
	}

	status = doJSON(t, client, http.MethodPost, env.ts.URL+"/api/rooms", "not-a-token",
		map[string]string{"kind": "pair"}, nil)
	if status != http.StatusUnauthorized {
		t.Fatalf("bad token create status = %d, want 401", status)
	}
}

func TestCreateAndGetRoom(t *testing.T) {
	env := startTestServer(t)
	client := env.ts.Client()
	token, _ := env.guestToken(t, "alice")

	var created CreateRoomResponse
	status := doJSON(t, client, http.MethodPost, env.ts.URL+"/api/rooms", token,
		map[string]string{"kind": "duel"}, &created)
	if status != http.StatusCreated {
		t.Fatalf("create status = %d", status)
	}
	if created.RoomID == "" {
		t.Fatal("empty room id")
	}

	var room RoomStateResponse
	status = doJSON(t, client, http.MethodGet, env.ts.URL+"/api/rooms/"+created.RoomID, token, nil, &room)
	if status != http.StatusOK {
		t.Fatalf("get status = %d", status)
	}
	if room.Kind != "duel" || room.Status != "waiting" || room.Members != 0 {
		t.Fatalf("unexpected room: %+v", room)
	}

	status = doJSON(t, client, http.MethodGet, env.ts.URL+"/api/rooms/missing", token, nil, nil)
	if status != http.StatusNotFound {
		t.Fatalf("missing room status = %d, want 404", status)
	}

	status = doJSON(t, client, http.MethodPost, env.ts.URL+"/api/rooms", token,
		map[string]string{"kind": "tournament"}, nil)
	if status != http.StatusBadRequest {
		t.Fatalf("bad kind status = %d, want 400", status)
	}
}

func TestMatchmakingEndpoints(t *testing.T) {
	env := startTestServer(t)
	client := env.ts.Client()

	tokenA, _ := env.guestToken(t, "alice")
	tokenB, _ := env.guestToken(t, "bob")

	var statusResp QueueStatusResponse
	status := doJSON(t, client, http.MethodGet, env.ts.URL+"/api/matchmaking/queue", tokenA, nil, &statusResp)
	if status != http.StatusOK || statusResp.Status != "idle" {
		t.Fatalf("initial status = %d %+v", status, statusResp)
	}

	var first QueueStatusResponse
	status = doJSON(t, client, http.MethodPost, env.ts.URL+"/api/matchmaking/queue", tokenA,
		map[string]string{}, &first)
	if status != http.StatusOK || first.Status != "waiting" || first.Token == "" {
		t.Fatalf("first enqueue = %d %+v", status, first)
	}

	// Both guests carry the default rating, so they match immediately.
	var second QueueStatusResponse
	status = doJSON(t, client, http.MethodPost, env.ts.URL+"/api/matchmaking/queue", tokenB,
		map[string]string{}, &second)
	if status != http.StatusOK || second.Status != "matched" || second.RoomID == "" {
		t.Fatalf("second enqueue = %d %+v", status, second)
	}

	doJSON(t, client, http.MethodGet, env.ts.URL+"/api/matchmaking/queue", tokenA, nil, &statusResp)
	if statusResp.Status != "matched" || statusResp.RoomID != second.RoomID {
		t.Fatalf("poll after match = %+v", statusResp)
	}

	// The matched room is live and joinable.
	var room RoomStateResponse
	status = doJSON(t, client, http.MethodGet, env.ts.URL+"/api/rooms/"+second.RoomID, tokenA, nil, &room)
	if status != http.StatusOK || room.Kind != "duel" {
		t.Fatalf("matched room = %d %+v", status, room)
	}

	status = doJSON(t, client, http.MethodDelete, env.ts.URL+"/api/matchmaking/queue", tokenA, nil, nil)
	if status != http.StatusNoContent {
		t.Fatalf("cancel status = %d, want 204", status)
	}
}
