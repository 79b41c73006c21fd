package http

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"math-race-service/internal/app"
	"math-race-service/internal/domain"
	"math-race-service/internal/infra/memory"

	"github.com/gorilla/websocket"
)

func TestWebSocketAnswerFlow(t *testing.T) {
	arena := newTestArena(t)
	wsHandler := NewWSHandler(arena)

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", wsHandler.ServeWS)
	server := httptest.NewServer(mux)
	defer server.Close()

	u := "ws" + server.URL[len("http"):] + "/ws?name=Alice"
	conn, _, err := websocket.DefaultDialer.Dial(u, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	// On connect: current question, leaderboard snapshot, then the join's count.
	_, payload := readNext(conn, t, "question")
	if payload["prompt"] != "6 × 7 = ?" || payload["answer"] != nil {
		t.Fatalf("question payload leaked or incomplete: %+v", payload)
	}
	readNext(conn, t, "leaderboard")
	_, payload = readNext(conn, t, "usersCount")
	if payload["count"] != float64(1) {
		t.Fatalf("expected count 1, got %+v", payload)
	}

	answer := map[string]any{
		"type": "submitAnswer",
		"payload": map[string]any{
			"answer":    "42",
			"timestamp": 1712345678901,
		},
	}
	if err := conn.WriteJSON(answer); err != nil {
		t.Fatalf("write answer: %v", err)
	}

	winnerSeen := false
	youWonSeen := false
	for i := 0; i < 3; i++ {
		typ, payload := readNext(conn, t, "")
		switch typ {
		case "winnerAnnounced":
			winnerSeen = true
			if payload["username"] != "Alice" || payload["correctAnswer"] != float64(42) {
				t.Fatalf("unexpected winner payload %+v", payload)
			}
		case "youWon":
			youWonSeen = true
			if payload["points"] != float64(10) {
				t.Fatalf("expected 10 points, got %+v", payload)
			}
		}
		if winnerSeen && youWonSeen {
			break
		}
	}
	if !winnerSeen || !youWonSeen {
		t.Fatalf("expected winnerAnnounced and youWon, got winner=%v youWon=%v", winnerSeen, youWonSeen)
	}
}

func TestWebSocketWrongAnswer(t *testing.T) {
	arena := newTestArena(t)
	wsHandler := NewWSHandler(arena)

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", wsHandler.ServeWS)
	server := httptest.NewServer(mux)
	defer server.Close()

	u := "ws" + server.URL[len("http"):] + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(u, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	readNext(conn, t, "question")
	readNext(conn, t, "leaderboard")

	join := map[string]any{"type": "join", "payload": map[string]any{"username": "Bob"}}
	if err := conn.WriteJSON(join); err != nil {
		t.Fatalf("write join: %v", err)
	}
	readNext(conn, t, "usersCount")

	wrong := map[string]any{"type": "submitAnswer", "payload": map[string]any{"answer": "not a number"}}
	if err := conn.WriteJSON(wrong); err != nil {
		t.Fatalf("write answer: %v", err)
	}
	_, payload := readNext(conn, t, "wrongAnswer")
	if payload["message"] == "" {
		t.Fatalf("expected wrongAnswer message, got %+v", payload)
	}
}

func readNext(conn *websocket.Conn, t *testing.T, expect string) (string, map[string]any) {
	t.Helper()
	var msg struct {
		Type    string         `json:"type"`
		Payload map[string]any `json:"payload"`
	}
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("read json: %v", err)
	}
	if expect != "" && msg.Type != expect {
		t.Fatalf("expected type %s, got %s", expect, msg.Type)
	}
	return msg.Type, msg.Payload
}

// fixedSource always asks a question whose answer is 42.
type fixedSource struct {
	id int64
}

func (s *fixedSource) Next(_ context.Context) (domain.Question, error) {
	return domain.Question{
		ID:         atomic.AddInt64(&s.id, 1),
		Kind:       "fixed",
		Prompt:     "6 × 7 = ?",
		Difficulty: 1,
		Answer:     42,
	}, nil
}

func newTestArena(t *testing.T) *app.Arena {
	t.Helper()
	arena, err := app.NewArena(context.Background(), &fixedSource{}, memory.NewHighScoreStore(), time.Second, 10)
	if err != nil {
		t.Fatalf("new arena: %v", err)
	}
	return arena
}
