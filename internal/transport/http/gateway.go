package http

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"

	"serpukhov-quiz-bot/internal/app"
	"serpukhov-quiz-bot/internal/domain"
	"github.com/gorilla/websocket"
)

// Gateway is the chat adapter: a chat frontend (or platform relay) connects
// over WebSocket, forwards user commands and button taps as typed events, and
// renders the text/question messages the core pushes back. One connection
// serves one chat, keyed by the platform user id.
type Gateway struct {
	service  *app.AttemptService
	token    string
	upgrader websocket.Upgrader

	mu      sync.RWMutex
	clients map[string]*client
}

type client struct {
	send chan outboundMessage
}

func NewGateway(token string) *Gateway {
	return &Gateway{
		token: token,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		clients: make(map[string]*client),
	}
}

// Bind attaches the service after construction; the service needs the gateway
// as its Notifier, so the two are wired in this order.
func (g *Gateway) Bind(service *app.AttemptService) {
	g.service = service
}

type inboundMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type answerPayload struct {
	Token string `json:"token"`
}

type outboundMessage struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

type textPayload struct {
	Text string `json:"text"`
}

type questionPayload struct {
	Text    string                `json:"text"`
	Options []domain.AnswerOption `json:"options"`
}

// SendText implements app.Notifier.
func (g *Gateway) SendText(chatID, text string) {
	g.push(chatID, outboundMessage{Type: "text", Payload: textPayload{Text: text}})
}

// SendQuestion implements app.Notifier.
func (g *Gateway) SendQuestion(chatID, text string, options []domain.AnswerOption) {
	g.push(chatID, outboundMessage{Type: "question", Payload: questionPayload{Text: text, Options: options}})
}

func (g *Gateway) push(chatID string, msg outboundMessage) {
	g.mu.RLock()
	c, ok := g.clients[chatID]
	g.mu.RUnlock()
	if !ok {
		log.Printf("dropping message for disconnected chat %s", chatID)
		return
	}
	select {
	case c.send <- msg:
	default:
		log.Printf("send buffer full for chat %s, dropping message", chatID)
	}
}

// ServeWS upgrades the connection and pumps chat events into the core.
func (g *Gateway) ServeWS(w http.ResponseWriter, r *http.Request) {
	if g.token != "" && r.URL.Query().Get("token") != g.token {
		http.Error(w, "invalid token", http.StatusUnauthorized)
		return
	}
	userID := r.URL.Query().Get("userId")
	displayName := r.URL.Query().Get("name")
	if userID == "" {
		http.Error(w, "missing userId", http.StatusBadRequest)
		return
	}
	chatID := userID

	conn, err := g.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("ws upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	c := &client{send: make(chan outboundMessage, 16)}
	g.mu.Lock()
	g.clients[chatID] = c
	g.mu.Unlock()

	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		for msg := range c.send {
			if err := conn.WriteJSON(msg); err != nil {
				log.Printf("ws write error for chat %s: %v", chatID, err)
				return
			}
		}
	}()

	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			break
		}
		ctx := r.Context()
		switch inbound.Type {
		case "start":
			if err := g.service.StartQuiz(ctx, chatID, userID, displayName); err != nil {
				log.Printf("start quiz for chat %s: %v", chatID, err)
			}
		case "answer":
			var payload answerPayload
			if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
				g.SendText(chatID, "I couldn't read that answer. Send /test to start over.")
				continue
			}
			if err := g.service.HandleAnswer(ctx, chatID, payload.Token); err != nil {
				log.Printf("answer for chat %s: %v", chatID, err)
			}
		case "score":
			if err := g.service.ShowScore(ctx, chatID, userID, displayName); err != nil {
				log.Printf("score for chat %s: %v", chatID, err)
			}
		case "leaderboard":
			if err := g.service.ShowLeaderboard(ctx, chatID); err != nil {
				log.Printf("leaderboard for chat %s: %v", chatID, err)
			}
		case "reset":
			if err := g.service.ResetUser(ctx, chatID, userID, displayName); err != nil {
				log.Printf("reset for chat %s: %v", chatID, err)
			}
		case "help":
			if err := g.service.Help(ctx, chatID, userID, displayName); err != nil {
				log.Printf("help for chat %s: %v", chatID, err)
			}
		default:
			g.service.Unknown(chatID)
		}
	}

	// Unregister before closing so no push can hit a closed channel.
	g.mu.Lock()
	delete(g.clients, chatID)
	g.mu.Unlock()
	close(c.send)
	<-writerDone
}
