package http

import (
	"encoding/json"
	"log"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"math-race-service/internal/app"
)

const maxUsernameLen = 20

type WSHandler struct {
	arena    *app.Arena
	upgrader websocket.Upgrader
}

func NewWSHandler(arena *app.Arena) *WSHandler {
	return &WSHandler{
		arena: arena,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

type inboundMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type joinPayload struct {
	Username string `json:"username"`
}

type submitPayload struct {
	Answer    string `json:"answer"`
	Timestamp int64  `json:"timestamp"`
	Username  string `json:"username"`
}

type outboundMessage struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

// ServeWS upgrades HTTP requests to websockets and wires them into the arena.
// Every outbound message flows through the arena's subscription channel, so a
// single writer goroutine owns the socket.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("ws upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	connID := uuid.NewString()
	events, cancel := h.arena.Subscribe(r.Context(), connID)
	defer cancel()

	if name := clipUsername(r.URL.Query().Get("name")); name != "" {
		h.arena.Join(connID, name)
	}

	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		for ev := range events {
			if err := conn.WriteJSON(outboundMessage{Type: ev.Type, Payload: ev.Payload}); err != nil {
				log.Printf("ws write error: %v", err)
				return
			}
		}
	}()

	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			break
		}
		switch inbound.Type {
		case "join":
			var payload joinPayload
			if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
				log.Printf("ws %s: invalid join payload: %v", connID, err)
				continue
			}
			h.arena.Join(connID, clipUsername(payload.Username))
		case "submitAnswer":
			var payload submitPayload
			if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
				log.Printf("ws %s: invalid answer payload: %v", connID, err)
				continue
			}
			h.arena.SubmitAnswer(r.Context(), connID, clipUsername(payload.Username), payload.Answer, payload.Timestamp)
		default:
			log.Printf("ws %s: unsupported message type %q", connID, inbound.Type)
		}
	}

	// Disconnect closes the subscription channel, which stops the writer.
	h.arena.Disconnect(connID)
	<-writerDone
}

func clipUsername(name string) string {
	name = strings.TrimSpace(name)
	runes := []rune(name)
	if len(runes) > maxUsernameLen {
		return string(runes[:maxUsernameLen])
	}
	return name
}
