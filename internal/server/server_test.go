package server_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"

	"PriceArena/internal/game"
	"PriceArena/internal/observability"
	"PriceArena/internal/orchestrator"
	"PriceArena/internal/server"
)

type stubArena struct {
	mu     sync.Mutex
	status orchestrator.Status
	votes  []game.Vote
	chats  []string
}

func (s *stubArena) Snapshot(context.Context) (orchestrator.Status, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status, nil
}

func (s *stubArena) SubmitVote(v game.Vote) {
	s.mu.Lock()
	s.votes = append(s.votes, v)
	s.mu.Unlock()
}

func (s *stubArena) SendChat(text string) {
	s.mu.Lock()
	s.chats = append(s.chats, text)
	s.mu.Unlock()
}

func newTestServer(t *testing.T, arena *stubArena, ready bool) *httptest.Server {
	t.Helper()
	health := observability.NewHealthChecker()
	health.SetReady(ready)
	srv := server.New(arena, health, nil, clockwork.NewRealClock(), zerolog.Nop())
	ts := httptest.NewServer(srv.Router())
	t.Cleanup(ts.Close)
	return ts
}

func TestStateEndpoint(t *testing.T) {
	arena := &stubArena{}
	arena.status.State = game.NewGameState()
	arena.status.State.CurrentPrice = 96123.45
	arena.status.LeaderID = "a"
	arena.status.IsLeader = true
	ts := newTestServer(t, arena, true)

	resp, err := http.Get(ts.URL + "/v1/state")
	if err != nil {
		t.Fatalf("get state: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status got %d, want 200", resp.StatusCode)
	}

	var got orchestrator.Status
	if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.State.CurrentPrice != 96123.45 || !got.IsLeader {
		t.Errorf("snapshot got %+v", got)
	}
}

func TestVoteEndpoint(t *testing.T) {
	arena := &stubArena{}
	ts := newTestServer(t, arena, true)

	cases := []struct {
		name string
		body string
		want int
	}{
		{"up", `{"direction":"UP"}`, http.StatusAccepted},
		{"down", `{"direction":"DOWN"}`, http.StatusAccepted},
		{"bad direction", `{"direction":"SIDEWAYS"}`, http.StatusBadRequest},
		{"malformed", `{"direction":`, http.StatusBadRequest},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			resp, err := http.Post(ts.URL+"/v1/vote", "application/json", strings.NewReader(tc.body))
			if err != nil {
				t.Fatalf("post: %v", err)
			}
			resp.Body.Close()
			if resp.StatusCode != tc.want {
				t.Errorf("status got %d, want %d", resp.StatusCode, tc.want)
			}
		})
	}

	arena.mu.Lock()
	defer arena.mu.Unlock()
	if len(arena.votes) != 2 || arena.votes[0] != game.VoteUp || arena.votes[1] != game.VoteDown {
		t.Errorf("forwarded votes got %v", arena.votes)
	}
}

func TestChatEndpoint(t *testing.T) {
	arena := &stubArena{}
	ts := newTestServer(t, arena, true)

	resp, err := http.Post(ts.URL+"/v1/chat", "application/json", strings.NewReader(`{"text":"hold"}`))
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("status got %d, want 202", resp.StatusCode)
	}

	for name, body := range map[string]string{
		"empty":    `{"text":""}`,
		"too long": `{"text":"` + strings.Repeat("x", 300) + `"}`,
	} {
		t.Run(name, func(t *testing.T) {
			resp, err := http.Post(ts.URL+"/v1/chat", "application/json", strings.NewReader(body))
			if err != nil {
				t.Fatalf("post: %v", err)
			}
			resp.Body.Close()
			if resp.StatusCode != http.StatusBadRequest {
				t.Errorf("status got %d, want 400", resp.StatusCode)
			}
		})
	}

	arena.mu.Lock()
	defer arena.mu.Unlock()
	if len(arena.chats) != 1 || arena.chats[0] != "hold" {
		t.Errorf("forwarded chats got %v", arena.chats)
	}
}

func TestReadiness(t *testing.T) {
	ts := newTestServer(t, &stubArena{}, false)

	resp, err := http.Get(ts.URL + "/readyz")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("not-ready status got %d, want 503", resp.StatusCode)
	}

	resp, err = http.Get(ts.URL + "/healthz")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("liveness status got %d, want 200", resp.StatusCode)
	}
}

func TestWebsocketPushesSnapshot(t *testing.T) {
	arena := &stubArena{}
	arena.status.State = game.NewGameState()
	arena.status.State.Phase = game.PhaseBattle
	ts := newTestServer(t, arena, true)

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/v1/ws"
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	if resp != nil {
		resp.Body.Close()
	}
	defer conn.Close()

	// The first frame is pushed immediately on connect.
	var got orchestrator.Status
	if err := conn.ReadJSON(&got); err != nil {
		t.Fatalf("read: %v", err)
	}
	if got.State.Phase != game.PhaseBattle {
		t.Errorf("pushed phase got %v, want BATTLE", got.State.Phase)
	}
}
